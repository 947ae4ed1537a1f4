package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"triage/internal/constants"
	"triage/internal/triage"
	pkgerrors "triage/pkg/errors"
	"triage/pkg/metrics"
)

const insertMessageQuery = `
	INSERT INTO messages (source, sender, subject, body, summary, category, priority, action_required, metadata_json, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	RETURNING id
`

const selectMessageColumns = `id, source, sender, subject, body, summary, category, priority, action_required, metadata_json, created_at`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string {
	return constants.StoreTypePostgres
}

// Insert runs BEGIN; INSERT ... RETURNING id; COMMIT. Any failure rolls back.
func (s *PostgresStore) Insert(ctx context.Context, rec triage.PersistedRecord) (id triage.RecordID, err error) {
	start := time.Now()
	defer func() { observeQuery("insert", start, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var action sql.NullString
	if rec.ActionRequired != nil {
		action = sql.NullString{String: *rec.ActionRequired, Valid: true}
	}

	var rawID int64
	err = tx.QueryRowContext(ctx, insertMessageQuery,
		rec.Source, rec.Sender, rec.Subject, rec.Body,
		rec.Summary, string(rec.Category), string(rec.Priority),
		action, rec.MetadataJSON, rec.CreatedAt,
	).Scan(&rawID)
	if err != nil {
		return 0, mapPostgresError(err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return triage.RecordID(rawID), nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) (_ []triage.PersistedRecord, err error) {
	start := time.Now()
	defer func() { observeQuery("list", start, err) }()

	limit = clampLimit(limit, constants.DefaultLimit, constants.MaxLimit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectMessageColumns+` FROM messages ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var records []triage.PersistedRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Get(ctx context.Context, id triage.RecordID) (_ triage.PersistedRecord, err error) {
	start := time.Now()
	defer func() { observeQuery("get", start, err) }()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectMessageColumns+` FROM messages WHERE id = $1`, int64(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return triage.PersistedRecord{}, notFound(id)
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (triage.PersistedRecord, error) {
	var (
		rec      triage.PersistedRecord
		rawID    int64
		category string
		priority string
		action   sql.NullString
	)
	err := row.Scan(&rawID, &rec.Source, &rec.Sender, &rec.Subject, &rec.Body,
		&rec.Summary, &category, &priority, &action, &rec.MetadataJSON, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, err
		}
		return rec, fmt.Errorf("failed to scan message: %w", err)
	}

	rec.ID = triage.RecordID(rawID)
	rec.Category = triage.Category(category)
	rec.Priority = triage.Priority(priority)
	if action.Valid {
		a := action.String
		rec.ActionRequired = &a
	}
	return rec, nil
}

func mapPostgresError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", "message record already exists")
	}
	return fmt.Errorf("failed to insert message: %w", err)
}

func observeQuery(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.IncDatabaseQuery(constants.ServiceName, constants.StoreTypePostgres, operation, status)
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, constants.StoreTypePostgres, operation, time.Since(start))
}
