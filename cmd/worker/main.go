package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"ponto/internal/config"
	"ponto/internal/queue"
	"ponto/internal/store"
)

// Worker drains audit entries from the queue into Postgres. Losing one
// entry on a bad day is acceptable; blocking an operator action is not,
// which is why the API only publishes and never writes the table itself.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "ponto:audit")
	}

	users := store.NewUsers(db.Client)

	entries, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("audit worker started, waiting for entries...")
	for entry := range entries {
		if err := users.InsertAudit(ctx, entry); err != nil {
			log.Printf("audit insert failed for %q: %v", entry.Action, err)
		}
	}

	log.Println("audit worker stopped")
}
