package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/pkg/platform/sentinel"
)

// InMemoryStore keeps ranges, quotas and the audit log in process memory.
// Transactions take the write lock and operate on a copy of the state that
// replaces the original only on commit, so they are serializable and roll
// back cleanly.
type InMemoryStore struct {
	mu    sync.RWMutex
	state *state
}

type state struct {
	quotas      map[models.QuotaKey]*models.Quota
	ranges      map[int64]*models.Range
	audit       []*models.AuditEntry
	nextRangeID int64
	nextAuditID int64
}

func newState() *state {
	return &state{
		quotas: make(map[models.QuotaKey]*models.Quota),
		ranges: make(map[int64]*models.Range),
	}
}

func (s *state) clone() *state {
	c := &state{
		quotas:      make(map[models.QuotaKey]*models.Quota, len(s.quotas)),
		ranges:      make(map[int64]*models.Range, len(s.ranges)),
		audit:       append([]*models.AuditEntry(nil), s.audit...),
		nextRangeID: s.nextRangeID,
		nextAuditID: s.nextAuditID,
	}
	for k, q := range s.quotas {
		c.quotas[k] = q.Clone()
	}
	for id, r := range s.ranges {
		c.ranges[id] = r.Clone()
	}
	return c
}

// New constructs an empty in-memory store.
func New() *InMemoryStore {
	return &InMemoryStore{state: newState()}
}

// RunInTx implements ports.TxManager.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&view{state: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = working
	return nil
}

func (s *InMemoryStore) read() *view {
	return &view{state: s.state}
}

func (s *InMemoryStore) GetQuota(ctx context.Context, key models.QuotaKey) (*models.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetQuota(ctx, key)
}

func (s *InMemoryStore) SaveQuota(ctx context.Context, quota *models.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveQuota(ctx, quota)
}

func (s *InMemoryStore) DeleteQuota(ctx context.Context, key models.QuotaKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteQuota(ctx, key)
}

func (s *InMemoryStore) ListQuotas(ctx context.Context) ([]*models.Quota, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListQuotas(ctx)
}

func (s *InMemoryStore) GetRange(ctx context.Context, id int64) (*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetRange(ctx, id)
}

func (s *InMemoryStore) ListRangesForKey(ctx context.Context, key models.QuotaKey) ([]*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRangesForKey(ctx, key)
}

func (s *InMemoryStore) ListActiveRanges(ctx context.Context, scope models.Scope) ([]*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListActiveRanges(ctx, scope)
}

func (s *InMemoryStore) ListRanges(ctx context.Context) ([]*models.Range, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListRanges(ctx)
}

func (s *InMemoryStore) InsertRange(ctx context.Context, r *models.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().InsertRange(ctx, r)
}

func (s *InMemoryStore) UpdateRange(ctx context.Context, r *models.Range) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().UpdateRange(ctx, r)
}

func (s *InMemoryStore) DeleteRanges(ctx context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteRanges(ctx, ids)
}

func (s *InMemoryStore) AdvanceCursor(ctx context.Context, id int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AdvanceCursor(ctx, id)
}

func (s *InMemoryStore) AppendAudit(ctx context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AppendAudit(ctx, entry)
}

func (s *InMemoryStore) ListAudit(ctx context.Context, limit int) ([]*models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListAudit(ctx, limit)
}

// view implements ports.Store over one state snapshot. Callers hold the
// store lock.
type view struct {
	state *state
}

func (v *view) GetQuota(_ context.Context, key models.QuotaKey) (*models.Quota, error) {
	q, ok := v.state.quotas[key]
	if !ok {
		return nil, fmt.Errorf("quota %s: %w", key, sentinel.ErrNotFound)
	}
	return q.Clone(), nil
}

func (v *view) SaveQuota(_ context.Context, quota *models.Quota) error {
	if quota == nil {
		return fmt.Errorf("quota is required")
	}
	v.state.quotas[quota.Key()] = quota.Clone()
	return nil
}

func (v *view) DeleteQuota(_ context.Context, key models.QuotaKey) error {
	if _, ok := v.state.quotas[key]; !ok {
		return fmt.Errorf("quota %s: %w", key, sentinel.ErrNotFound)
	}
	delete(v.state.quotas, key)
	return nil
}

func (v *view) ListQuotas(_ context.Context) ([]*models.Quota, error) {
	quotas := make([]*models.Quota, 0, len(v.state.quotas))
	for _, q := range v.state.quotas {
		quotas = append(quotas, q.Clone())
	}
	sort.Slice(quotas, func(i, j int) bool {
		if quotas[i].Year != quotas[j].Year {
			return quotas[i].Year > quotas[j].Year
		}
		return quotas[i].TypeID < quotas[j].TypeID
	})
	return quotas, nil
}

func (v *view) GetRange(_ context.Context, id int64) (*models.Range, error) {
	r, ok := v.state.ranges[id]
	if !ok {
		return nil, fmt.Errorf("range %d: %w", id, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (v *view) collect(keep func(r *models.Range) bool) []*models.Range {
	out := make([]*models.Range, 0)
	for _, r := range v.state.ranges {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (v *view) ListRangesForKey(_ context.Context, key models.QuotaKey) ([]*models.Range, error) {
	return v.collect(func(r *models.Range) bool {
		return r.TypeID == key.TypeID && r.Year == key.Year
	}), nil
}

func (v *view) ListActiveRanges(_ context.Context, scope models.Scope) ([]*models.Range, error) {
	return v.collect(func(r *models.Range) bool {
		return r.Active && r.Scope().Same(scope)
	}), nil
}

func (v *view) ListRanges(_ context.Context) ([]*models.Range, error) {
	out := v.collect(func(*models.Range) bool { return true })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Active && !out[j].Active
	})
	return out, nil
}

func (v *view) InsertRange(_ context.Context, r *models.Range) error {
	if r == nil {
		return fmt.Errorf("range is required")
	}
	v.state.nextRangeID++
	r.ID = v.state.nextRangeID
	v.state.ranges[r.ID] = r.Clone()
	return nil
}

func (v *view) UpdateRange(_ context.Context, r *models.Range) error {
	if r == nil {
		return fmt.Errorf("range is required")
	}
	if _, ok := v.state.ranges[r.ID]; !ok {
		return fmt.Errorf("range %d: %w", r.ID, sentinel.ErrNotFound)
	}
	v.state.ranges[r.ID] = r.Clone()
	return nil
}

func (v *view) DeleteRanges(_ context.Context, ids []int64) error {
	for _, id := range ids {
		if _, ok := v.state.ranges[id]; !ok {
			return fmt.Errorf("range %d: %w", id, sentinel.ErrNotFound)
		}
	}
	for _, id := range ids {
		delete(v.state.ranges, id)
	}
	return nil
}

func (v *view) AdvanceCursor(_ context.Context, id int64) (int, error) {
	r, ok := v.state.ranges[id]
	if !ok || !r.Active {
		return 0, fmt.Errorf("active range %d: %w", id, sentinel.ErrNotFound)
	}
	if r.Exhausted() {
		return 0, models.ErrRangeExhausted
	}
	r.Cursor++
	return r.Cursor, nil
}

func (v *view) AppendAudit(_ context.Context, entry *models.AuditEntry) error {
	if entry == nil {
		return fmt.Errorf("audit entry is required")
	}
	v.state.nextAuditID++
	entry.ID = v.state.nextAuditID
	stored := *entry
	stored.Changes = append([]models.Change(nil), entry.Changes...)
	v.state.audit = append(v.state.audit, &stored)
	return nil
}

func (v *view) ListAudit(_ context.Context, limit int) ([]*models.AuditEntry, error) {
	n := len(v.state.audit)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*models.AuditEntry, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		entry := *v.state.audit[i]
		out = append(out, &entry)
	}
	return out, nil
}
