package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"genesis-iam/backend/internal/audit/domain"
)

// emitTimeout bounds a single async stream write.
const emitTimeout = 5 * time.Second

// Stream mirrors audit entries to an external sink (e.g. Kafka for SIEM
// export). Best-effort: callers log and ignore errors.
type Stream interface {
	Emit(ctx context.Context, entry *domain.Entry) error
	Close() error
}

// emitAsync writes the entry to the stream in a goroutine so request handlers
// are not blocked. Uses context.Background so request cancellation does not
// abort an in-flight emit.
func emitAsync(stream Stream, entry *domain.Entry) {
	if stream == nil || entry == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := stream.Emit(ctx, entry); err != nil {
			log.Printf("audit: async emit failed: %v", err)
		}
	}()
}

// KafkaStream implements Stream using segmentio/kafka-go.
type KafkaStream struct {
	writer *kafka.Writer
}

// NewKafkaStream creates a stream writing JSON-encoded entries to topic.
// Returns (nil, nil) when brokers or topic are unset, so the caller can wire
// the stream conditionally. Call Close when shutting down.
func NewKafkaStream(brokers []string, topic string) (*KafkaStream, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaStream{writer: writer}, nil
}

// Emit serializes the entry as JSON and writes it, keyed by actor so one
// user's events stay ordered within a partition.
func (s *KafkaStream) Emit(ctx context.Context, entry *domain.Entry) error {
	if s == nil || s.writer == nil || entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, emitTimeout)
	defer cancel()
	return s.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(entry.ActorUserID),
		Value: payload,
	})
}

// Close closes the Kafka writer. Safe to call on a nil stream.
func (s *KafkaStream) Close() error {
	if s == nil || s.writer == nil {
		return nil
	}
	return s.writer.Close()
}
