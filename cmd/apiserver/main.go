package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	redisDriver "github.com/redis/go-redis/v9"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/handlers/apiserver"
	appKafka "campusconnect/internal/kafka"
	"campusconnect/internal/middleware"
	appRedis "campusconnect/internal/redis"
	"campusconnect/internal/services"
	"campusconnect/internal/storage"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("API server configuration loaded.")

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("API server database connected.")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Printf("Warning: database migration may have failed: %v", err)
	}

	// One-off repair command for channel keys written by old clients.
	if len(os.Args) > 1 && os.Args[1] == "migrate-chat-keys" {
		if err := storage.MigrateLegacyChannelKeys(db); err != nil {
			log.Fatalf("Channel key migration failed: %v", err)
		}
		log.Println("Channel key migration finished.")
		return
	}

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	log.Println("Connected to Redis.")

	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)
	unreadCache := appRedis.NewRedisUnreadCache(redisClient)

	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	postRepo := storage.NewGormPostRepository(db)
	chatRepo := storage.NewGormChatRepository(db)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer kfkProducer.Close()
	log.Println("Kafka producer initialized.")

	authService := services.NewAuthService(userRepo, tokenBlacklist, cfg)
	userService := services.NewUserService(userRepo, friendshipRepo)
	friendService := services.NewFriendService(db, userRepo, friendshipRepo, kfkProducer, cfg.Kafka)
	feedService := services.NewFeedService(db, postRepo, userRepo, friendshipRepo, kfkProducer, cfg.Kafka)
	chatService := services.NewChatService(db, chatRepo, userRepo, friendshipRepo, unreadCache, kfkProducer, cfg.Kafka)

	var storageService cctypes.StorageService
	storageBaseURL := "/uploads"
	switch cfg.Storage.Type {
	case "local":
		storageService, err = storage.NewLocalStorageService(cfg.Storage, storageBaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize local storage: %v", err)
		}
		log.Println("Local storage initialized.")
	case "s3":
		storageService, err = storage.NewS3StorageService(context.Background(), cfg.Storage.S3)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		log.Printf("S3 storage initialized (bucket %s).", cfg.Storage.S3.BucketName)
	default:
		log.Fatalf("Unsupported storage type: %s", cfg.Storage.Type)
	}

	authHandler := apiserver.NewAuthHandler(authService)
	userHandler := apiserver.NewUserHandler(userService)
	friendHandler := apiserver.NewFriendHandler(friendService)
	feedHandler := apiserver.NewFeedHandler(feedService)
	chatHandler := apiserver.NewChatHandler(chatService)
	uploadHandler := apiserver.NewUploadHandler(storageService, cfg.Storage)

	r := mux.NewRouter()

	// Public auth routes.
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	authRouter.HandleFunc("/verify-email", authHandler.VerifyEmail).Methods(http.MethodGet)
	authRouter.HandleFunc("/password-reset/request", authHandler.RequestPasswordReset).Methods(http.MethodPost)
	authRouter.HandleFunc("/password-reset", authHandler.ResetPassword).Methods(http.MethodPost)

	authMW := middleware.AuthMiddleware(cfg.Auth, tokenBlacklist)

	// Authenticated API routes.
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(authMW)

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// Profiles and directory.
	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMe).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/search", userHandler.SearchUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/discover", userHandler.DiscoverUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users", userHandler.ListUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userId:[0-9]+}", userHandler.GetUser).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userId:[0-9]+}/posts", feedHandler.GetUserPosts).Methods(http.MethodGet)

	// Friend graph.
	apiRouter.HandleFunc("/friends", friendHandler.ListFriends).Methods(http.MethodGet)
	apiRouter.HandleFunc("/friends/{userId:[0-9]+}", friendHandler.Unfriend).Methods(http.MethodDelete)
	friendRequestRouter := apiRouter.PathPrefix("/friend-requests").Subrouter()
	friendRequestRouter.HandleFunc("", friendHandler.SendRequest).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/pending", friendHandler.ListPending).Methods(http.MethodGet)
	friendRequestRouter.HandleFunc("/{requestId:[0-9]+}/accept", friendHandler.AcceptRequest).Methods(http.MethodPost)
	friendRequestRouter.HandleFunc("/{requestId:[0-9]+}/decline", friendHandler.DeclineRequest).Methods(http.MethodPost)

	// Feed.
	apiRouter.HandleFunc("/posts", feedHandler.CreatePost).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts", feedHandler.GetFeed).Methods(http.MethodGet)
	apiRouter.HandleFunc("/posts/{postId:[0-9]+}", feedHandler.GetPost).Methods(http.MethodGet)
	apiRouter.HandleFunc("/posts/{postId:[0-9]+}", feedHandler.DeletePost).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/posts/{postId:[0-9]+}/like", feedHandler.ToggleLike).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postId:[0-9]+}/comments", feedHandler.AddComment).Methods(http.MethodPost)
	apiRouter.HandleFunc("/posts/{postId:[0-9]+}/comments", feedHandler.GetComments).Methods(http.MethodGet)

	// Chat history and unread state. Live delivery runs on the
	// chatserver websocket.
	apiRouter.HandleFunc("/chats", chatHandler.GetChannels).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/unread-counts", chatHandler.GetUnread).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/messages", chatHandler.SendMessage).Methods(http.MethodPost)
	apiRouter.HandleFunc("/chats/{userId:[0-9]+}/messages", chatHandler.GetMessages).Methods(http.MethodGet)
	apiRouter.HandleFunc("/chats/{userId:[0-9]+}/read", chatHandler.MarkRead).Methods(http.MethodPost)

	// Media upload.
	apiRouter.HandleFunc("/upload", uploadHandler.UploadFileHandler).Methods(http.MethodPost)

	// Serve locally stored uploads.
	if cfg.Storage.Type == "local" {
		staticPath := strings.TrimSuffix(storageBaseURL, "/") + "/"
		localDir := http.Dir(cfg.Storage.LocalPath)
		r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(localDir)))
		log.Printf("Serving uploaded files at %s -> %s", staticPath, cfg.Storage.LocalPath)
	}

	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}
	corsHandler := handlers.CORS(corsOptions...)(r)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      corsHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		log.Printf("API server listening on %s", serverAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping API server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("API server forced to shut down: %v", err)
	}

	log.Println("API server stopped.")
}
