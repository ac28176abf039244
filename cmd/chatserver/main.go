package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	redisDriver "github.com/redis/go-redis/v9"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/handlers/chatserver"
	appKafka "campusconnect/internal/kafka"
	appRedis "campusconnect/internal/redis"
	"campusconnect/internal/services"
	"campusconnect/internal/storage"
	"campusconnect/internal/websocket"
)

func main() {
	cfg, err := config.LoadConfig("")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Println("Chat server configuration loaded.")

	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Chat server database connected.")

	if err := storage.AutoMigrateTables(db); err != nil {
		log.Fatalf("Failed to migrate database tables: %v", err)
	}

	redisClient := redisDriver.NewClient(&redisDriver.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	tokenBlacklist := appRedis.NewRedisTokenBlacklist(redisClient)
	unreadCache := appRedis.NewRedisUnreadCache(redisClient)

	kfkProducer, err := appKafka.NewConfluentKafkaProducer(cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka producer: %v", err)
	}
	defer kfkProducer.Close()

	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)
	chatRepo := storage.NewGormChatRepository(db)

	// The websocket send path reuses the same chat service the API
	// server uses, so frames sent over either surface behave the same.
	chatService := services.NewChatService(db, chatRepo, userRepo, friendshipRepo, unreadCache, kfkProducer, cfg.Kafka)

	hub := websocket.NewHub()
	go hub.Run()
	log.Println("WebSocket hub started.")

	wsHandler := chatserver.NewWebSocketHandler(hub, chatService, tokenBlacklist, cfg)

	eventConsumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer eventConsumer.Close()

	consumerCtx, cancelConsumers := context.WithCancel(context.Background())
	defer cancelConsumers()

	// One consumer over all three topics: feed events fan out with
	// visibility filtering, everything else goes to its recipient.
	go func() {
		topics := []string{
			cfg.Kafka.FeedEventsTopic,
			cfg.Kafka.ChatEventsTopic,
			cfg.Kafka.NotificationsTopic,
		}
		log.Printf("Kafka event consumer starting for topics %v", topics)
		err := eventConsumer.Consume(consumerCtx, topics, cfg.Kafka.ConsumerGroup,
			func(ctx context.Context, kafkaMsg *confluentKafka.Message) error {
				var event cctypes.Event
				if err := json.Unmarshal(kafkaMsg.Value, &event); err != nil {
					log.Printf("Error decoding event from Kafka: %v, raw: %s", err, string(kafkaMsg.Value))
					return nil // commit past the bad message
				}
				if event.RecipientID != 0 {
					hub.DeliverDirect(&event)
				} else {
					hub.DeliverFeed(&event)
				}
				return nil
			})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Kafka event consumer error: %v", err)
		}
		log.Println("Kafka event consumer goroutine stopped.")
	}()

	serveMux := http.NewServeMux()
	serveMux.HandleFunc(cfg.Server.WebSocketPath, wsHandler.ServeWS)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:           serverAddr,
		Handler:        serveMux,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		log.Printf("Chat server listening on %s, websocket path %s", serverAddr, cfg.Server.WebSocketPath)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Chat server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutdown signal received, stopping chat server...")

	cancelConsumers()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Chat server forced to shut down: %v", err)
	}
	log.Println("Chat server stopped.")
}
