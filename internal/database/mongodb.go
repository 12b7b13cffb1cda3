package database

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	defaultMongoDBName  = "knowledgebot"
	mongoConnectTimeout = 10 * time.Second
)

// CollectionChatSessions mirrors store.TableChatSessions.
const CollectionChatSessions = "chat_sessions"

// MongoDB holds the client and the bot's database handle.
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects and pings within ctx (bounded by mongoConnectTimeout).
// The database name comes from the URI path, "knowledgebot" when absent.
func NewMongoDB(ctx context.Context, uri string) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetAppName("knowledgebot").
		SetMaxPoolSize(20).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(time.Minute).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	name := mongoDatabaseName(uri)
	log.Printf("✅ [MONGO] Connected to database %q", name)
	return &MongoDB{client: client, db: client.Database(name)}, nil
}

// mongoDatabaseName: mongodb://host:27017/support?authSource=admin -> support
func mongoDatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDBName
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDBName
}

// Initialize creates the index session lookups filter on.
func (m *MongoDB) Initialize(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		CollectionChatSessions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
	}
	for collection, models := range indexes {
		if _, err := m.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("indexes on %s: %w", collection, err)
		}
	}
	log.Println("📦 [MONGO] Indexes ready")
	return nil
}

func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

func (m *MongoDB) Name() string {
	return m.db.Name()
}

func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 [MONGO] Disconnecting")
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
