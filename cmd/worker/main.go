package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"checkin/internal/config"
	"checkin/internal/diploma"
	"checkin/internal/mailer"
	"checkin/internal/queue"
	"checkin/internal/store"
)

// Worker consumes diploma jobs published after accepted scans and drives the
// issuance pipeline. Failures leave the enrollment pending; the next scan of
// the same pair, or an operator resend, retries the full pipeline.
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

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "checkin:diplomas")
	}

	diplomas := diploma.NewService(
		diploma.NewPostgresStore(db.Client),
		diploma.NewPDFRenderer(""),
		mailer.NewChannelFromConfig(cfg),
	)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for diploma jobs...")
	for msg := range messages {
		if msg.Type != queue.TypeDiploma {
			continue
		}

		job, err := queue.ParseDiplomaJob(msg)
		if err != nil {
			log.Printf("malformed diploma job dropped: %v", err)
			continue
		}

		out, err := diplomas.TryIssue(ctx, job.AttendeeID, job.ActivityID)
		switch {
		case err != nil && out.OK:
			// Delivered, marker write failed. The enrollment stays pending
			// and the next trigger may resend: accepted at-least-once.
			log.Printf("diploma for attendee %d activity %d delivered but marker write failed: %v",
				job.AttendeeID, job.ActivityID, err)
		case err != nil:
			log.Printf("diploma job attendee %d activity %d: store error: %v",
				job.AttendeeID, job.ActivityID, err)
		case !out.OK:
			log.Printf("diploma job attendee %d activity %d: %s: %v",
				job.AttendeeID, job.ActivityID, out.Reason, out.Err)
		case out.Reason == diploma.ReasonSent:
			log.Printf("diploma sent to attendee %d for activity %d via %s",
				job.AttendeeID, job.ActivityID, out.Transport)
		}
	}

	log.Println("worker stopped")
}
