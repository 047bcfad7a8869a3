// Package postgres persists ranges, quotas and the audit log in PostgreSQL.
// Audit entries are mirrored into the transactional outbox so the relay can
// publish them after commit.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/pkg/platform/outbox"
	"folio/pkg/platform/sentinel"
	txcontext "folio/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// SQLSTATE codes that mean a concurrent writer won.
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
	uniqueViolation      = "23505"
)

// Store is the PostgreSQL implementation of ports.Store and ports.TxManager.
// Calls made directly on Store run in autocommit mode; RunInTx binds every
// call to one serializable transaction.
type Store struct {
	*queries
	db      *sql.DB
	timeout time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout bounds transactions whose context has no deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New constructs a PostgreSQL-backed numbering store.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		queries: &queries{db: db, outbox: outbox.NewPostgresStore(db)},
		db:      db,
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx implements ports.TxManager.
func (s *Store) RunInTx(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, txcontext.Options())
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&queries{db: tx, tx: tx, outbox: s.queries.outbox}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// AppendAudit outside a transaction still writes the entry and its outbox
// message atomically.
func (s *Store) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	return s.RunInTx(ctx, func(store ports.Store) error {
		return store.AppendAudit(ctx, entry)
	})
}

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs every statement against db, which is either the pool or an
// open transaction.
type queries struct {
	db     dbtx
	tx     *sql.Tx
	outbox *outbox.PostgresStore
}

func (q *queries) GetQuota(ctx context.Context, key models.QuotaKey) (*models.Quota, error) {
	query := `
		SELECT type_id, year, name, capacity, updated_at
		FROM numbering_quotas
		WHERE type_id = $1 AND year = $2
	`
	var quota models.Quota
	err := q.db.QueryRowContext(ctx, query, key.TypeID, key.Year).
		Scan(&quota.TypeID, &quota.Year, &quota.Name, &quota.Capacity, &quota.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quota %s: %w", key, sentinel.ErrNotFound)
		}
		return nil, classify(fmt.Errorf("get quota: %w", err))
	}
	return &quota, nil
}

func (q *queries) SaveQuota(ctx context.Context, quota *models.Quota) error {
	if quota == nil {
		return fmt.Errorf("quota is required")
	}
	query := `
		INSERT INTO numbering_quotas (type_id, year, name, capacity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (type_id, year) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			updated_at = EXCLUDED.updated_at
	`
	_, err := q.db.ExecContext(ctx, query, quota.TypeID, quota.Year, quota.Name, quota.Capacity, quota.UpdatedAt)
	if err != nil {
		return classify(fmt.Errorf("save quota: %w", err))
	}
	return nil
}

func (q *queries) DeleteQuota(ctx context.Context, key models.QuotaKey) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM numbering_quotas WHERE type_id = $1 AND year = $2`, key.TypeID, key.Year)
	if err != nil {
		return classify(fmt.Errorf("delete quota: %w", err))
	}
	return expectRows(res, 1, fmt.Sprintf("quota %s", key))
}

func (q *queries) ListQuotas(ctx context.Context) ([]*models.Quota, error) {
	query := `
		SELECT type_id, year, name, capacity, updated_at
		FROM numbering_quotas
		ORDER BY year DESC, type_id ASC
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, classify(fmt.Errorf("list quotas: %w", err))
	}
	defer rows.Close()

	quotas := make([]*models.Quota, 0)
	for rows.Next() {
		var quota models.Quota
		if err := rows.Scan(&quota.TypeID, &quota.Year, &quota.Name, &quota.Capacity, &quota.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		quotas = append(quotas, &quota)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list quotas: %w", err))
	}
	return quotas, nil
}

const rangeColumns = `id, type_id, year, office_id, name, start_number, end_number, last_number, active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRange(row rowScanner) (*models.Range, error) {
	var (
		r      models.Range
		office sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.TypeID, &r.Year, &office, &r.Name, &r.Start, &r.End, &r.Cursor, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	if office.Valid {
		v := int(office.Int32)
		r.OfficeID = &v
	}
	return &r, nil
}

func (q *queries) GetRange(ctx context.Context, id int64) (*models.Range, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+rangeColumns+` FROM numbering_ranges WHERE id = $1`, id)
	r, err := scanRange(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("range %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, classify(fmt.Errorf("get range: %w", err))
	}
	return r, nil
}

func (q *queries) listRanges(ctx context.Context, op, query string, args ...any) ([]*models.Range, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("%s: %w", op, err))
	}
	defer rows.Close()

	ranges := make([]*models.Range, 0)
	for rows.Next() {
		r, err := scanRange(rows)
		if err != nil {
			return nil, fmt.Errorf("scan range: %w", err)
		}
		ranges = append(ranges, r)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("%s: %w", op, err))
	}
	return ranges, nil
}

func (q *queries) ListRangesForKey(ctx context.Context, key models.QuotaKey) ([]*models.Range, error) {
	return q.listRanges(ctx, "list ranges for key", `
		SELECT `+rangeColumns+`
		FROM numbering_ranges
		WHERE type_id = $1 AND year = $2
		ORDER BY start_number, id
	`, key.TypeID, key.Year)
}

func (q *queries) ListActiveRanges(ctx context.Context, scope models.Scope) ([]*models.Range, error) {
	return q.listRanges(ctx, "list active ranges", `
		SELECT `+rangeColumns+`
		FROM numbering_ranges
		WHERE type_id = $1 AND year = $2 AND active
		  AND office_id IS NOT DISTINCT FROM $3
		ORDER BY start_number, id
	`, scope.TypeID, scope.Year, nullInt(scope.OfficeID))
}

func (q *queries) ListRanges(ctx context.Context) ([]*models.Range, error) {
	return q.listRanges(ctx, "list ranges", `
		SELECT `+rangeColumns+`
		FROM numbering_ranges
		ORDER BY year DESC, active DESC, start_number, id
	`)
}

func (q *queries) InsertRange(ctx context.Context, r *models.Range) error {
	if r == nil {
		return fmt.Errorf("range is required")
	}
	query := `
		INSERT INTO numbering_ranges (type_id, year, office_id, name, start_number, end_number, last_number, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := q.db.QueryRowContext(ctx, query,
		r.TypeID, r.Year, nullInt(r.OfficeID), r.Name, r.Start, r.End, r.Cursor, r.Active, r.CreatedAt,
	).Scan(&r.ID)
	if err != nil {
		return classify(fmt.Errorf("insert range: %w", err))
	}
	return nil
}

func (q *queries) UpdateRange(ctx context.Context, r *models.Range) error {
	if r == nil {
		return fmt.Errorf("range is required")
	}
	query := `
		UPDATE numbering_ranges SET
			type_id = $2,
			year = $3,
			office_id = $4,
			name = $5,
			start_number = $6,
			end_number = $7,
			last_number = $8,
			active = $9
		WHERE id = $1
	`
	res, err := q.db.ExecContext(ctx, query,
		r.ID, r.TypeID, r.Year, nullInt(r.OfficeID), r.Name, r.Start, r.End, r.Cursor, r.Active,
	)
	if err != nil {
		return classify(fmt.Errorf("update range: %w", err))
	}
	return expectRows(res, 1, fmt.Sprintf("range %d", r.ID))
}

func (q *queries) DeleteRanges(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM numbering_ranges WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return classify(fmt.Errorf("delete ranges: %w", err))
	}
	return expectRows(res, int64(len(ids)), fmt.Sprintf("ranges %v", ids))
}

// AdvanceCursor moves the cursor in one statement so two callers can never
// read the same value.
func (q *queries) AdvanceCursor(ctx context.Context, id int64) (int, error) {
	query := `
		UPDATE numbering_ranges
		SET last_number = last_number + 1
		WHERE id = $1 AND active AND last_number < end_number
		RETURNING last_number
	`
	var cursor int
	err := q.db.QueryRowContext(ctx, query, id).Scan(&cursor)
	if err == nil {
		return cursor, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, classify(fmt.Errorf("advance cursor: %w", err))
	}

	var active bool
	err = q.db.QueryRowContext(ctx, `SELECT active FROM numbering_ranges WHERE id = $1`, id).Scan(&active)
	switch {
	case errors.Is(err, sql.ErrNoRows) || (err == nil && !active):
		return 0, fmt.Errorf("active range %d: %w", id, sentinel.ErrNotFound)
	case err != nil:
		return 0, classify(fmt.Errorf("advance cursor: %w", err))
	default:
		return 0, models.ErrRangeExhausted
	}
}

// auditEvent is the outbox payload published for every audit entry.
type auditEvent struct {
	ID          int64           `json:"id"`
	OccurredAt  string          `json:"occurred_at"`
	Entity      string          `json:"entity"`
	Action      string          `json:"action"`
	TypeID      int             `json:"type_id"`
	Year        int             `json:"year"`
	OfficeID    *int            `json:"office_id,omitempty"`
	ActorID     *int            `json:"actor_id,omitempty"`
	ReferenceID *int64          `json:"reference_id,omitempty"`
	Summary     string          `json:"summary"`
	Changes     []models.Change `json:"changes"`
	Detail      string          `json:"detail"`
}

func (q *queries) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is required")
	}
	changes := entry.Changes
	if changes == nil {
		changes = []models.Change{}
	}
	encoded, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	query := `
		INSERT INTO numbering_audit (occurred_at, entity, action, type_id, year, office_id, actor_id, reference_id, summary, changes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err = q.db.QueryRowContext(ctx, query,
		entry.Timestamp,
		string(entry.Entity),
		string(entry.Action),
		entry.Scope.TypeID,
		entry.Scope.Year,
		nullInt(entry.Scope.OfficeID),
		nullInt(entry.ActorID),
		nullReference(entry.ReferenceID),
		entry.Summary,
		encoded,
	).Scan(&entry.ID)
	if err != nil {
		return classify(fmt.Errorf("insert audit entry: %w", err))
	}

	payload, err := json.Marshal(auditEvent{
		ID:          entry.ID,
		OccurredAt:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
		Entity:      string(entry.Entity),
		Action:      string(entry.Action),
		TypeID:      entry.Scope.TypeID,
		Year:        entry.Scope.Year,
		OfficeID:    entry.Scope.OfficeID,
		ActorID:     entry.ActorID,
		ReferenceID: entry.ReferenceID,
		Summary:     entry.Summary,
		Changes:     changes,
		Detail:      entry.Detail(),
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	msg := outbox.NewMessage(
		"numbering_"+strings.ToLower(string(entry.Entity)),
		aggregateID(entry),
		"numbering."+strings.ToLower(string(entry.Entity))+"."+strings.ToLower(string(entry.Action)),
		payload,
		entry.Timestamp,
	)
	if err := q.outbox.Enqueue(txcontext.WithTx(ctx, q.tx), msg); err != nil {
		return classify(err)
	}
	return nil
}

func (q *queries) ListAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	query := `
		SELECT id, occurred_at, entity, action, type_id, year, office_id, actor_id, reference_id, summary, changes
		FROM numbering_audit
		ORDER BY id DESC
		LIMIT $1
	`
	var bound sql.NullInt64
	if limit > 0 {
		bound = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := q.db.QueryContext(ctx, query, bound)
	if err != nil {
		return nil, classify(fmt.Errorf("list audit: %w", err))
	}
	defer rows.Close()

	entries := make([]*models.AuditEntry, 0)
	for rows.Next() {
		var (
			e              models.AuditEntry
			entity, action string
			office, actor  sql.NullInt64
			reference      sql.NullInt64
			encoded        []byte
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &entity, &action, &e.Scope.TypeID, &e.Scope.Year,
			&office, &actor, &reference, &e.Summary, &encoded); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Entity = models.EntityKind(entity)
		e.Action = models.Action(action)
		e.Scope.OfficeID = intFromNull(office)
		e.ActorID = intFromNull(actor)
		if reference.Valid {
			ref := reference.Int64
			e.ReferenceID = &ref
		}
		if err := json.Unmarshal(encoded, &e.Changes); err != nil {
			return nil, fmt.Errorf("decode audit changes: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("list audit: %w", err))
	}
	return entries, nil
}

func aggregateID(entry *models.AuditEntry) string {
	if entry.ReferenceID != nil {
		return strconv.FormatInt(*entry.ReferenceID, 10)
	}
	return fmt.Sprintf("%d-%d", entry.Scope.TypeID, entry.Scope.Year)
}

func expectRows(res sql.Result, want int64, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n != want {
		return fmt.Errorf("%s: %w", what, sentinel.ErrNotFound)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullReference(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intFromNull(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

// classify maps serialization failures, deadlocks and unique violations to
// sentinel.ErrConflict so the service can retry them.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailure, deadlockDetected, uniqueViolation:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}
