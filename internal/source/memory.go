package source

import (
	"context"
	"fmt"
	"sync"

	"triage/internal/triage"
	apperrors "triage/pkg/errors"
)

// MemorySource serves a fixed queue of messages. Fetch returns the oldest
// unacknowledged messages that are not already pending.
type MemorySource struct {
	mu       sync.Mutex
	queue    []triage.RawMessage
	pending  map[string]bool
	acked    []string
	sequence int
}

func NewMemorySource(msgs ...triage.RawMessage) *MemorySource {
	s := &MemorySource{pending: make(map[string]bool)}
	s.Push(msgs...)
	return s
}

// Push enqueues messages, assigning an id to any message without one.
func (s *MemorySource) Push(msgs ...triage.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		s.sequence++
		if m.ID == "" {
			m.ID = fmt.Sprintf("mem-%d", s.sequence)
		}
		s.queue = append(s.queue, m)
	}
}

func (s *MemorySource) Fetch(ctx context.Context, limit int) ([]triage.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]triage.RawMessage, 0, limit)
	for _, m := range s.queue {
		if len(out) >= limit {
			break
		}
		if s.pending[m.ID] {
			continue
		}
		s.pending[m.ID] = true
		out = append(out, m)
	}
	return out, nil
}

func (s *MemorySource) Acknowledge(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.queue {
		if m.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			delete(s.pending, id)
			s.acked = append(s.acked, id)
			return nil
		}
	}
	return apperrors.ErrNotFound.WithDetail("message_id", id)
}

// Release returns pending messages to the queue so the next Fetch sees them again.
func (s *MemorySource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]bool)
}

// Acknowledged lists acknowledged ids in acknowledgement order.
func (s *MemorySource) Acknowledged() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.acked...)
}

func (s *MemorySource) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *MemorySource) Name() string { return "memory" }

func (s *MemorySource) Close() error { return nil }
