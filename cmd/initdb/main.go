package main

import (
	"context"
	"log"
	"time"

	"github.com/everlastingflames/flood-monitoring/internal/config"
	"github.com/everlastingflames/flood-monitoring/internal/db"
)

const (
	maxRetries    = 5
	retryInterval = 5 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := waitForDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database not reachable: %v", err)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}
	log.Println("schema initialized")
}

func waitForDB(ctx context.Context, databaseURL string) (*db.Store, error) {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		store, err := db.New(ctx, databaseURL)
		if err == nil {
			return store, nil
		}
		lastErr = err
		log.Printf("database not ready (attempt %d/%d): %v", i+1, maxRetries, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return nil, lastErr
}
