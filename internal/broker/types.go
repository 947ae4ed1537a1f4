package broker

import "context"

// Producer publishes JSON encoded values keyed for partitioning.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
	Close() error
}
