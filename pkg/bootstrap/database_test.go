package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/config"
	"triage/internal/logger"
)

func TestPostgresDSN(t *testing.T) {
	dsn := PostgresDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		User:     "triage",
		Password: "p@ss/word",
		DBName:   "triage",
	})
	assert.Equal(t, "postgres://triage:p%40ss%2Fword@db:5432/triage?sslmode=disable", dsn)

	dsn = PostgresDSN(config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "d", SSLMode: "require"})
	assert.Contains(t, dsn, "sslmode=require")
}

func TestOpen_MemoryStoreNeedsNothing(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Type: "memory"}}

	r, err := Open(context.Background(), cfg, logger.NopLogger())
	require.NoError(t, err)
	assert.Nil(t, r.Postgres)
	assert.Nil(t, r.Mongo)
	assert.Nil(t, r.Redis)
	assert.Nil(t, r.Producer)

	h := r.HealthRegistry().Check(context.Background())
	assert.Empty(t, h.Checks)
	assert.NoError(t, r.Close(context.Background()))
}
