package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"triage/internal/broker"
	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/logger"
	"triage/pkg/health"
	"triage/pkg/migrations"
)

// Resources holds the external connections a process needs. Only the
// connections the configuration calls for are opened; the rest stay nil.
type Resources struct {
	Postgres *sql.DB
	Redis    *redis.Client
	Mongo    *mongo.Client
	MongoDB  *mongo.Database
	Producer broker.Producer

	logger logger.Logger
}

func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Resources, error) {
	r := &Resources{logger: log}
	dc := NewDatabaseConnector(cfg, log)

	var err error
	switch cfg.Store.Type {
	case constants.StoreTypePostgres:
		if r.Postgres, err = dc.InitPostgreSQL(ctx); err != nil {
			return nil, err
		}
	case constants.StoreTypeMongoDB:
		if r.Mongo, err = dc.InitMongoDB(ctx); err != nil {
			return nil, err
		}
		name := cfg.Database.MongoDB.Database
		if name == "" {
			name = constants.DefaultMongoDBName
		}
		r.MongoDB = r.Mongo.Database(name)
		if err := migrations.EnsureMongoIndexes(ctx, r.MongoDB); err != nil {
			return nil, errors.Join(err, r.Close(ctx))
		}
	}

	if cfg.Database.Redis.Host != "" && cfg.Reasoning.CacheTTLSeconds > 0 {
		rdb, err := dc.InitRedis(ctx)
		if err != nil {
			log.Warnw("Redis unavailable, classification cache disabled", "error", err)
		} else {
			r.Redis = rdb
		}
	}

	if cfg.Alert.KafkaTopic != "" {
		producer, err := broker.NewProducer(cfg.Broker, log)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create producer: %w", err), r.Close(ctx))
		}
		r.Producer = producer
	}

	return r, nil
}

// HealthRegistry registers a check for every open connection. The cache is optional.
func (r *Resources) HealthRegistry() *health.Registry {
	reg := health.NewRegistry(constants.DatabaseHealthTimeout)
	if r.Postgres != nil {
		reg.Register(health.PostgresChecker(r.Postgres))
	}
	if r.Mongo != nil {
		reg.Register(health.MongoChecker(r.Mongo))
	}
	if r.Redis != nil {
		reg.RegisterOptional(health.RedisChecker(r.Redis))
	}
	return reg
}

func (r *Resources) Close(ctx context.Context) error {
	var errs []error

	if r.Producer != nil {
		if err := r.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}
	if r.Postgres != nil {
		if err := r.Postgres.Close(); err != nil {
			errs = append(errs, fmt.Errorf("postgres close error: %w", err))
		}
	}
	if r.Mongo != nil {
		if err := r.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errors.Join(errs...)
}
