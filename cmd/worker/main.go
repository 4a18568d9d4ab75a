package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"krysselista/internal/config"
	"krysselista/internal/notify"
	"krysselista/internal/queue"
	"krysselista/internal/store"
)

// Worker drains the Redis notification queue into the document store. Run
// it alongside cmd/api when QUEUE_BACKEND=redis; with the in-memory queue
// the api process consumes its own queue and this worker is not needed.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found")
	}
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

	st, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("mongo connect failed: %v", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = st.Close(closeCtx)
	}()

	q := queue.Dial(cfg.RedisAddr).Queue("krysselista:notifications")

	log.Println("worker started, waiting for notification jobs...")
	if err := notify.RunConsumer(ctx, q, st); err != nil {
		log.Fatalf("consumer failed: %v", err)
	}
	log.Println("worker stopped")
}
