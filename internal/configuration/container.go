package configuration

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/sahilt56/messaging-app/internal/db"
	"github.com/sahilt56/messaging-app/internal/handler"
	"github.com/sahilt56/messaging-app/internal/hub"
	"github.com/sahilt56/messaging-app/internal/repo"
	"github.com/sahilt56/messaging-app/internal/store"
)

type Container struct {
	ChatHandler         handler.ChatHandler
	ConversationHandler handler.ConversationHandler
	PresenceHandler     handler.PresenceHandler
	Store               store.Store
	Hub                 *hub.Hub
	Config              Config
	Logger              *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

// storeBundle composes the repositories into the full store surface.
type storeBundle struct {
	repo.MessageRepository
	repo.ConversationRepository
	repo.UserRepository
}

func BuildContainer(configPath string) (*Container, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	feedHub := hub.NewHub(config.Server.AllowedOrigins, logger)

	messageRepo := repo.NewMessageRepository(con, feedHub, logger)
	conversationRepo := repo.NewConversationRepository(con, feedHub, logger)
	userRepo := repo.NewUserRepository(con, feedHub, logger)
	st := storeBundle{
		MessageRepository:      messageRepo,
		ConversationRepository: conversationRepo,
		UserRepository:         userRepo,
	}

	return &Container{
		ChatHandler:         handler.NewChatHandler(messageRepo, messageRepo, logger),
		ConversationHandler: handler.NewConversationHandler(conversationRepo, logger),
		PresenceHandler:     handler.NewPresenceHandler(userRepo, logger),
		Store:               st,
		Hub:                 feedHub,
		Config:              *config,
		Logger:              logger,
		mongoClient:         con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}
