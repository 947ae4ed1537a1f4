package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Optional  bool      `json:"optional,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type entry struct {
	checker  Checker
	optional bool
}

// Registry runs dependency checks. A failing required check makes the
// service unhealthy; a failing optional one only degrades it.
type Registry struct {
	entries []entry
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{timeout: timeout}
}

func (r *Registry) Register(c Checker) {
	r.entries = append(r.entries, entry{checker: c})
}

// RegisterOptional adds a check for a dependency the service can run without,
// such as the classification cache.
func (r *Registry) RegisterOptional(c Checker) {
	r.entries = append(r.entries, entry{checker: c, optional: true})
}

func (r *Registry) Check(ctx context.Context) Health {
	results := make(map[string]CheckResult, len(r.entries))
	var mu sync.Mutex

	var g errgroup.Group
	for _, e := range r.entries {
		g.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()

			res := CheckResult{Status: StatusHealthy, Optional: e.optional}
			if err := e.checker.Check(checkCtx); err != nil {
				res.Status = StatusUnhealthy
				res.Message = err.Error()
			}
			res.Timestamp = time.Now().UTC()

			mu.Lock()
			results[e.checker.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, res := range results {
		if res.Status != StatusUnhealthy {
			continue
		}
		if !res.Optional {
			overall = StatusUnhealthy
			break
		}
		overall = StatusDegraded
	}

	return Health{
		Status:    overall,
		Timestamp: time.Now().UTC(),
		Checks:    results,
	}
}

// Handler serves the aggregated health; unhealthy maps to 503.
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := r.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

// CheckFunc adapts a function to Checker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (f CheckFunc) Name() string                    { return f.CheckName }
func (f CheckFunc) Check(ctx context.Context) error { return f.Fn(ctx) }

func PostgresChecker(db *sql.DB) Checker {
	return CheckFunc{CheckName: "postgres", Fn: func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
		return nil
	}}
}

func RedisChecker(client redis.UniversalClient) Checker {
	return CheckFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}}
}

func MongoChecker(client *mongo.Client) Checker {
	return CheckFunc{CheckName: "mongodb", Fn: func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb ping failed: %w", err)
		}
		return nil
	}}
}

// KafkaChecker dials the first reachable broker.
func KafkaChecker(brokers []string) Checker {
	return CheckFunc{CheckName: "kafka", Fn: func(ctx context.Context) error {
		var lastErr error
		for _, b := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", b)
			if err != nil {
				lastErr = err
				continue
			}
			return conn.Close()
		}
		if lastErr == nil {
			return fmt.Errorf("no kafka brokers configured")
		}
		return fmt.Errorf("kafka dial failed: %w", lastErr)
	}}
}
