// Package outbox implements the transactional outbox: producers enqueue
// messages in the same database transaction as the change they describe,
// and a relay publishes them to the broker afterwards.
package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "folio/pkg/platform/tx"
)

// Message is one pending outbox row.
type Message struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// NewMessage builds a message with a fresh id.
func NewMessage(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) Message {
	return Message{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

// PostgresStore reads and writes the outbox table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Enqueue inserts msg. When ctx carries a transaction the row commits or
// rolls back with it.
func (s *PostgresStore) Enqueue(ctx context.Context, msg Message) error {
	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		msg.ID,
		msg.AggregateType,
		msg.AggregateID,
		msg.EventType,
		msg.Payload,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Process claims up to limit unprocessed messages, oldest first, and hands
// them to fn. The ids fn returns are marked processed. Rows stay locked for
// the duration, so concurrent relays never publish the same message twice.
func (s *PostgresStore) Process(ctx context.Context, limit int, fn func(ctx context.Context, batch []Message) []uuid.UUID) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox batch: %w", err)
	}
	batch, err := scanMessages(rows)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	delivered := fn(ctx, batch)
	if len(delivered) > 0 {
		ids := make([]string, 0, len(delivered))
		for _, id := range delivered {
			ids = append(ids, id.String())
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE outbox SET processed_at = NOW() WHERE id = ANY($1::uuid[])`,
			pq.Array(ids),
		)
		if err != nil {
			return 0, fmt.Errorf("mark outbox entries processed: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox batch: %w", err)
	}
	return len(delivered), nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()
	var batch []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.AggregateType, &msg.AggregateID, &msg.EventType, &msg.Payload, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox entries: %w", err)
	}
	return batch, nil
}
