package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/logger"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
	"triage/pkg/logging"
	"triage/pkg/metrics"
	"triage/pkg/models"
	"triage/pkg/tracing"
)

// MessageReader is the subset of *kafka.Reader the source needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSource reads message envelopes from the input topic of a consumer
// group. Acknowledging a message commits its offset. Envelopes that repeat a
// pending id are folded into the first one: they are not returned again and
// acknowledging the id commits every copy.
type KafkaSource struct {
	reader    MessageReader
	topic     string
	fetchWait time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	pending map[string][]kafka.Message
}

func NewKafkaSource(cfg config.KafkaConfig, log logger.Logger) *KafkaSource {
	log.Infow("Creating Kafka reader",
		"topic", cfg.InputTopic,
		"brokers", cfg.Brokers,
		"group_id", cfg.GroupID,
	)

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.InputTopic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return NewKafkaSourceWithReader(r, cfg.InputTopic, constants.KafkaFetchWait, log)
}

func NewKafkaSourceWithReader(r MessageReader, topic string, fetchWait time.Duration, log logger.Logger) *KafkaSource {
	return &KafkaSource{
		reader:    r,
		topic:     topic,
		fetchWait: fetchWait,
		logger:    log,
		pending:   make(map[string][]kafka.Message),
	}
}

// Fetch returns up to limit messages. It stops early once no message arrives
// within the fetch wait. Envelopes that cannot be decoded or fail validation
// are committed and dropped.
func (s *KafkaSource) Fetch(ctx context.Context, limit int) ([]triage.RawMessage, error) {
	out := make([]triage.RawMessage, 0, limit)

	for len(out) < limit {
		fetchCtx, cancel := context.WithTimeout(ctx, s.fetchWait)
		m, err := s.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return out, fmt.Errorf("failed to fetch kafka message: %w", err)
		}
		metrics.IncKafkaMessagesRead(constants.ServiceName, s.topic)

		msg, ok := s.decode(ctx, m)
		if !ok {
			continue
		}

		s.mu.Lock()
		copies, dup := s.pending[msg.ID]
		s.pending[msg.ID] = append(copies, m)
		s.mu.Unlock()
		if dup {
			s.logger.WarnwCtx(ctx, "Duplicate message id in topic, folding into pending copy",
				"message_id", msg.ID,
				"partition", m.Partition,
				"offset", m.Offset,
			)
			continue
		}
		out = append(out, msg)
	}

	return out, nil
}

func (s *KafkaSource) decode(ctx context.Context, m kafka.Message) (triage.RawMessage, bool) {
	msgCtx, span := tracing.StartConsume(ctx, m)
	defer span.End()

	var envelope models.MessageEnvelope
	if err := json.Unmarshal(m.Value, &envelope); err != nil {
		s.logger.ErrorwCtx(msgCtx, "Failed to unmarshal message",
			"error", err,
			"topic", s.topic,
			"offset", m.Offset,
		)
		s.drop(msgCtx, m)
		return triage.RawMessage{}, false
	}

	if envelope.Metadata.TraceID != "" {
		msgCtx = logging.WithTraceID(msgCtx, envelope.Metadata.TraceID)
	}
	msgCtx = logging.WithMessageID(msgCtx, envelope.ID)

	if err := models.ValidateMessageEnvelope(&envelope); err != nil {
		s.logger.WarnwCtx(msgCtx, "Dropping invalid message envelope",
			"error", err,
			"topic", s.topic,
			"offset", m.Offset,
		)
		s.drop(msgCtx, m)
		return triage.RawMessage{}, false
	}

	return triage.RawMessage{
		ID:      envelope.ID,
		Source:  envelope.Source,
		Sender:  envelope.Sender,
		Subject: envelope.Subject,
		Body:    envelope.Body,
	}, true
}

func (s *KafkaSource) drop(ctx context.Context, m kafka.Message) {
	if err := s.reader.CommitMessages(ctx, m); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to commit dropped message",
			"error", err,
			"topic", s.topic,
		)
	}
}

func (s *KafkaSource) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	copies, ok := s.pending[id]
	s.mu.Unlock()
	if !ok {
		return apperrors.ErrNotFound.WithDetail("message_id", id)
	}

	if err := s.reader.CommitMessages(ctx, copies...); err != nil {
		return fmt.Errorf("failed to commit message %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
	return nil
}

func (s *KafkaSource) Name() string { return "kafka" }

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
