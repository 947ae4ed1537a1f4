//go:build integration

package source

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/broker"
	"triage/internal/config"
	"triage/internal/logger"
	"triage/internal/testinfra"
	"triage/pkg/models"
)

func TestKafkaSource_Integration(t *testing.T) {
	brokers := testinfra.Kafka(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	require.NoError(t, err)
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{Topic: "inbox", NumPartitions: 1, ReplicationFactor: 1}))
	conn.Close()

	cfg := config.KafkaConfig{Brokers: brokers, GroupID: "triage-test", InputTopic: "inbox"}
	producer := broker.NewKafkaProducer(cfg, logger.NopLogger())
	defer producer.Close()

	for _, env := range []models.MessageEnvelope{
		{ID: "m-1", Source: "gmail", Sender: "hr@google.com", Subject: "Interview with Google"},
		{ID: "m-2", Source: "gmail", Sender: "news@example.com", Subject: "Weekly"},
	} {
		require.NoError(t, producer.Publish(ctx, "inbox", env.ID, env))
	}

	src := NewKafkaSource(cfg, logger.NopLogger())
	src.fetchWait = 20 * time.Second

	msgs, err := src.Fetch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m-1", msgs[0].ID)
	assert.Equal(t, "Interview with Google", msgs[0].Subject)

	require.NoError(t, src.Acknowledge(ctx, "m-1"))
	require.NoError(t, src.Acknowledge(ctx, "m-2"))
	require.NoError(t, src.Close())

	again := NewKafkaSource(cfg, logger.NopLogger())
	again.fetchWait = 3 * time.Second
	defer again.Close()

	rest, err := again.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, rest)
}
