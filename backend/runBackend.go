package backend

import (
	"context"
	"fmt"
	"log"

	"github.com/jghoshh/taskvibe/backend/config"
	"github.com/jghoshh/taskvibe/backend/engine"
	"github.com/jghoshh/taskvibe/backend/notifications"
	"github.com/jghoshh/taskvibe/backend/queue"
	"github.com/jghoshh/taskvibe/backend/server"
	"github.com/jghoshh/taskvibe/backend/server/auth"
	"github.com/jghoshh/taskvibe/backend/storage/cache"
	storage "github.com/jghoshh/taskvibe/backend/storage/persistent"
)

// RunBackend sets up the store, cache, event queue and engine, then serves the API
// until ctx is cancelled.
func RunBackend(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, err := storage.NewStorage(ctx, cfg.StorageOptions())
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting storage: %v", err)
		}
	}()

	eventCache, err := cache.NewCache(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer eventCache.Disconnect()

	feed := notifications.NewFeed(notifications.DefaultFeedSize)

	eventQueue, err := queue.BuildEventQueue(cfg.RabbitMQURL, cfg.NumEventProducers, cfg.NumEventConsumers, eventCache, toastHandler(feed))
	if err != nil {
		return fmt.Errorf("failed to build event queue: %w", err)
	}
	defer eventQueue.Close()

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	consumers := eventQueue.StartConsumers(consumerCtx)
	defer func() {
		stopConsumers()
		consumers.Wait()
	}()

	authenticator, err := auth.NewAuthenticator(cfg.JWTSigningKey, cfg.AuthPassphrase)
	if err != nil {
		return err
	}

	svc := engine.NewService(store, engine.Options{
		Location: loc,
		Events:   &queueSink{queue: eventQueue},
	})

	log.Printf("Using %s storage", cfg.StorageBackend)
	return server.New(svc, authenticator, feed).Start(ctx, cfg.ServerURL)
}
