package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/logger"
)

type fakeWriter struct {
	failures int
	written  []kafka.Message
	calls    int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.calls++
	if w.calls <= w.failures {
		return errors.New("leader not available")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaProducer_PublishRetriesTransientWriteErrors(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := NewKafkaProducerWithWriter(w, logger.NopLogger())

	err := p.Publish(context.Background(), "alerts", "key-1", map[string]string{"subject": "hello"})
	require.NoError(t, err)

	assert.Equal(t, 2, w.calls)
	require.Len(t, w.written, 1)
	assert.Equal(t, "alerts", w.written[0].Topic)
	assert.Equal(t, []byte("key-1"), w.written[0].Key)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.written[0].Value, &body))
	assert.Equal(t, "hello", body["subject"])
}

func TestKafkaProducer_MarshalErrorIsNotRetried(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaProducerWithWriter(w, logger.NopLogger())

	err := p.Publish(context.Background(), "alerts", "k", make(chan int))
	require.Error(t, err)
	assert.Equal(t, 0, w.calls)
}
