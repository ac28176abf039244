package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/config"
	"campusconnect/internal/models"
	"campusconnect/internal/storage"
)

// newTestDB opens an in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	// An in-memory sqlite database exists per connection.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Friendship{},
		&models.Post{},
		&models.PostComment{},
		&models.ChatChannel{},
		&models.ChatMessage{},
	)
	if err != nil {
		t.Fatalf("migrating test schema: %v", err)
	}
	return db
}

// testDeps bundles the repositories a service test needs.
type testDeps struct {
	db             *gorm.DB
	userRepo       storage.UserRepository
	friendshipRepo storage.FriendshipRepository
	postRepo       storage.PostRepository
	chatRepo       storage.ChatRepository
}

func newTestDeps(t *testing.T) *testDeps {
	t.Helper()
	db := newTestDB(t)
	return &testDeps{
		db:             db,
		userRepo:       storage.NewGormUserRepository(db),
		friendshipRepo: storage.NewGormFriendshipRepository(db),
		postRepo:       storage.NewGormPostRepository(db),
		chatRepo:       storage.NewGormChatRepository(db),
	}
}

// fakeProducer records published events instead of talking to Kafka.
type fakeProducer struct {
	mu       sync.Mutex
	messages []fakeMessage
}

type fakeMessage struct {
	Topic   string
	Key     string
	Payload []byte
}

func (p *fakeProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, fakeMessage{Topic: topic, Key: string(key), Payload: payload})
	return nil
}

func (p *fakeProducer) Close() {}

// eventsOfType decodes the recorded payloads and filters by event type.
func (p *fakeProducer) eventsOfType(t *testing.T, et cctypes.EventType) []cctypes.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []cctypes.Event
	for _, m := range p.messages {
		var e cctypes.Event
		if err := json.Unmarshal(m.Payload, &e); err != nil {
			t.Fatalf("decoding recorded event: %v", err)
		}
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

func testKafkaConfig() config.KafkaConfig {
	return config.KafkaConfig{
		FeedEventsTopic:    "test-feed",
		ChatEventsTopic:    "test-chat",
		NotificationsTopic: "test-notifications",
	}
}

// mustCreateUser inserts a verified user directly.
func mustCreateUser(t *testing.T, db *gorm.DB, name, email string) *models.User {
	t.Helper()
	u := &models.User{
		Email:         email,
		PasswordHash:  "x",
		Name:          name,
		Department:    "CSE",
		Year:          2,
		EmailVerified: true,
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("creating user %s: %v", name, err)
	}
	return u
}
