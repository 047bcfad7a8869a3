// Package ports defines the interfaces the numbering service depends on.
package ports

import (
	"context"

	"folio/internal/numbering/models"
)

// Store reads and writes ranges, quotas and audit entries. Implementations
// return sentinel.ErrNotFound for missing rows and sentinel.ErrConflict when
// the backing store aborts a transaction because of a concurrent writer.
type Store interface {
	// GetQuota returns the quota for key.
	GetQuota(ctx context.Context, key models.QuotaKey) (*models.Quota, error)

	// SaveQuota inserts or replaces the quota for its key.
	SaveQuota(ctx context.Context, quota *models.Quota) error

	// DeleteQuota removes the quota for key.
	DeleteQuota(ctx context.Context, key models.QuotaKey) error

	// ListQuotas returns every quota ordered by year desc, type asc.
	ListQuotas(ctx context.Context) ([]*models.Quota, error)

	// GetRange returns one range by id.
	GetRange(ctx context.Context, id int64) (*models.Range, error)

	// ListRangesForKey returns every range of (type, year), active or not,
	// ordered by start.
	ListRangesForKey(ctx context.Context, key models.QuotaKey) ([]*models.Range, error)

	// ListActiveRanges returns the active ranges of the exact scope ordered
	// by start. A nil office selects the global scope only.
	ListActiveRanges(ctx context.Context, scope models.Scope) ([]*models.Range, error)

	// ListRanges returns every range ordered by year desc, active first.
	ListRanges(ctx context.Context) ([]*models.Range, error)

	// InsertRange persists a new range and sets its ID.
	InsertRange(ctx context.Context, r *models.Range) error

	// UpdateRange replaces the stored values of r.
	UpdateRange(ctx context.Context, r *models.Range) error

	// DeleteRanges removes ranges by id.
	DeleteRanges(ctx context.Context, ids []int64) error

	// AdvanceCursor increments the cursor of an active, non-exhausted range
	// and returns the new value. It returns models.ErrRangeExhausted when
	// the cursor already sits on the end.
	AdvanceCursor(ctx context.Context, id int64) (int, error)

	// AppendAudit adds an entry to the audit log and sets its ID.
	AppendAudit(ctx context.Context, entry *models.AuditEntry) error

	// ListAudit returns the newest entries first.
	ListAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error)
}

// TxManager runs fn inside one serializable transaction. The Store passed to
// fn is bound to that transaction; returning an error rolls everything back,
// audit entries included.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(store Store) error) error
}

// LedgerCache holds the quota ledger report between mutations.
type LedgerCache interface {
	Get(ctx context.Context) ([]models.LedgerItem, bool, error)
	Set(ctx context.Context, items []models.LedgerItem) error
	Invalidate(ctx context.Context) error
}
