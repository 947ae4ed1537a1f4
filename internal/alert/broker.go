package alert

import (
	"context"

	"github.com/google/uuid"

	"triage/internal/broker"
	"triage/pkg/logging"
	"triage/pkg/models"
)

// BrokerNotifier publishes alerts to a topic for downstream consumers.
type BrokerNotifier struct {
	producer broker.Producer
	topic    string
}

func NewBrokerNotifier(producer broker.Producer, topic string) *BrokerNotifier {
	return &BrokerNotifier{producer: producer, topic: topic}
}

func (n *BrokerNotifier) Name() string {
	return "kafka"
}

func (n *BrokerNotifier) Notify(ctx context.Context, a Alert) error {
	env := models.AlertEnvelope{
		ID:             uuid.NewString(),
		Timestamp:      a.RaisedAt,
		MessageID:      a.MessageID,
		Source:         a.Source,
		Sender:         a.Sender,
		Subject:        a.Subject,
		Summary:        a.Summary,
		Category:       string(a.Category),
		Priority:       string(a.Priority),
		ActionRequired: a.ActionRequired,
		Metadata:       models.Metadata{TraceID: logging.GetTraceID(ctx)},
	}
	if a.Details.Len() > 0 {
		env.Details = a.Details.Map()
	}

	key := a.MessageID
	if key == "" {
		key = env.ID
	}
	return n.producer.Publish(ctx, n.topic, key, env)
}
