// Worker reaps ended sessions past the retention window and, when Kafka is
// configured, consumes the audit mirror topic and logs each event.
// Set DATABASE_URL; KAFKA_BROKERS, AUDIT_KAFKA_TOPIC, KAFKA_GROUP_ID are
// optional.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"genesis-iam/backend/internal/config"
	"genesis-iam/backend/internal/db"
	"genesis-iam/backend/internal/obs"
	storepg "genesis-iam/backend/internal/store/pg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("worker: DATABASE_URL is required")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("worker: db: %v", err)
	}
	defer conn.Close()

	logger := obs.Logger()
	st := storepg.New(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Info("worker shutting down")
		cancel()
	}()

	if brokers := cfg.KafkaBrokers(); len(brokers) > 0 {
		go consumeAuditStream(ctx, brokers, cfg.AuditKafkaTopic, cfg.KafkaGroupID)
	}

	retention := cfg.Retention()
	interval := cfg.ReapEvery()
	logger.Info("session reaper running", "retention", retention.String(), "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reap := func() {
		cutoff := time.Now().UTC().Add(-retention)
		reapCtx, reapCancel := context.WithTimeout(ctx, time.Minute)
		n, err := st.Sessions().DeleteEndedBefore(reapCtx, cutoff)
		reapCancel()
		if err != nil {
			logger.Error("session reap failed", "err", err)
			return
		}
		if n > 0 {
			logger.Info("reaped ended sessions", "count", n, "cutoff", cutoff.Format(time.RFC3339))
		}
	}

	reap()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			reap()
		}
	}
}

// consumeAuditStream tails the audit mirror topic and logs each event. The
// canonical trail lives in Postgres; this is an operational tap.
func consumeAuditStream(ctx context.Context, brokers []string, topic, groupID string) {
	logger := obs.Logger()
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	logger.Info("audit stream consumer running", "topic", topic, "group", groupID)
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("audit stream read failed", "err", err)
			continue
		}
		logger.Info("audit event", "key", string(msg.Key), "payload", string(msg.Value))
	}
}
