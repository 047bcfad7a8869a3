//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/internal/numbering/service"
	"folio/internal/numbering/store/postgres"
	"folio/pkg/platform/sentinel"
	"folio/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB, postgres.WithTxTimeout(10*time.Second))
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(),
		"numbering_quotas", "numbering_ranges", "numbering_audit", "outbox")
	s.Require().NoError(err)
}

var created = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func (s *PostgresStoreSuite) seedRange(typeID, year int, office *int, start, end, cursor int, active bool) *models.Range {
	r := &models.Range{
		TypeID: typeID, Year: year, OfficeID: office,
		Name:  "seed",
		Start: start, End: end, Cursor: cursor,
		Active: active, CreatedAt: created,
	}
	s.Require().NoError(s.store.InsertRange(context.Background(), r))
	s.Require().NotZero(r.ID)
	return r
}

// =============================================================================
// Quotas
// =============================================================================

func (s *PostgresStoreSuite) TestQuotaUpsert() {
	ctx := context.Background()
	key := models.QuotaKey{TypeID: 7, Year: 2025}

	_, err := s.store.GetQuota(ctx, key)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SaveQuota(ctx, &models.Quota{TypeID: 7, Year: 2025, Name: "CUPO-7-2025", Capacity: 100, UpdatedAt: created}))
	s.Require().NoError(s.store.SaveQuota(ctx, &models.Quota{TypeID: 7, Year: 2025, Name: "CUPO-7-2025", Capacity: 300, UpdatedAt: created}))
	s.Require().NoError(s.store.SaveQuota(ctx, &models.Quota{TypeID: 8, Year: 2024, Name: "CUPO-8-2024", Capacity: 10, UpdatedAt: created}))

	quota, err := s.store.GetQuota(ctx, key)
	s.Require().NoError(err)
	s.Equal(300, quota.Capacity)

	quotas, err := s.store.ListQuotas(ctx)
	s.Require().NoError(err)
	s.Require().Len(quotas, 2)
	s.Equal(2025, quotas[0].Year, "newest year first")

	s.Require().NoError(s.store.DeleteQuota(ctx, key))
	s.ErrorIs(s.store.DeleteQuota(ctx, key), sentinel.ErrNotFound)
}

// =============================================================================
// Ranges
// =============================================================================

func (s *PostgresStoreSuite) TestRangeQueries() {
	ctx := context.Background()
	office := 3
	global := s.seedRange(7, 2025, nil, 1, 100, 0, true)
	officeRange := s.seedRange(7, 2025, &office, 101, 200, 150, true)
	s.seedRange(7, 2025, nil, 201, 300, 200, false)
	s.seedRange(7, 2024, nil, 1, 50, 0, true)

	forKey, err := s.store.ListRangesForKey(ctx, models.QuotaKey{TypeID: 7, Year: 2025})
	s.Require().NoError(err)
	s.Len(forKey, 3)
	s.Equal(global.ID, forKey[0].ID, "ordered by start")

	active, err := s.store.ListActiveRanges(ctx, models.Scope{TypeID: 7, Year: 2025})
	s.Require().NoError(err)
	s.Require().Len(active, 1, "nil office selects only the global scope")
	s.Equal(global.ID, active[0].ID)

	active, err = s.store.ListActiveRanges(ctx, models.Scope{TypeID: 7, Year: 2025, OfficeID: &office})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(officeRange.ID, active[0].ID)
	s.Equal(office, *active[0].OfficeID)

	all, err := s.store.ListRanges(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 4)
	s.Equal(2025, all[0].Year)
	s.True(all[0].Active)
	s.False(all[2].Active, "inactive ranges follow active ones within a year")
	s.Equal(2024, all[3].Year)
}

func (s *PostgresStoreSuite) TestUpdateAndDeleteRanges() {
	ctx := context.Background()
	r := s.seedRange(7, 2025, nil, 1, 100, 0, true)

	r.End = 150
	r.Active = false
	s.Require().NoError(s.store.UpdateRange(ctx, r))

	got, err := s.store.GetRange(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(150, got.End)
	s.False(got.Active)

	missing := &models.Range{ID: r.ID + 1000, TypeID: 7, Year: 2025, Start: 1, End: 2}
	s.ErrorIs(s.store.UpdateRange(ctx, missing), sentinel.ErrNotFound)

	other := s.seedRange(7, 2025, nil, 200, 300, 199, false)
	s.Require().NoError(s.store.DeleteRanges(ctx, []int64{r.ID, other.ID}))
	_, err = s.store.GetRange(ctx, r.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.DeleteRanges(ctx, []int64{r.ID}), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestSecondActiveRangeInScopeConflicts() {
	s.seedRange(7, 2025, nil, 1, 100, 0, true)

	dup := &models.Range{TypeID: 7, Year: 2025, Name: "dup", Start: 101, End: 200, Cursor: 100, Active: true, CreatedAt: created}
	err := s.store.InsertRange(context.Background(), dup)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestAdvanceCursor() {
	ctx := context.Background()

	s.Run("advances until the end then reports exhaustion", func() {
		r := s.seedRange(7, 2025, nil, 10, 11, 9, true)
		n, err := s.store.AdvanceCursor(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(10, n)
		n, err = s.store.AdvanceCursor(ctx, r.ID)
		s.Require().NoError(err)
		s.Equal(11, n)
		_, err = s.store.AdvanceCursor(ctx, r.ID)
		s.ErrorIs(err, models.ErrRangeExhausted)
	})

	s.Run("inactive or missing range is not found", func() {
		r := s.seedRange(8, 2025, nil, 1, 10, 0, false)
		_, err := s.store.AdvanceCursor(ctx, r.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)
		_, err = s.store.AdvanceCursor(ctx, r.ID+1000)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// =============================================================================
// Audit and outbox
// =============================================================================

func (s *PostgresStoreSuite) TestAuditIsMirroredToOutbox() {
	ctx := context.Background()
	ref := int64(12)
	actor := 5
	entry := &models.AuditEntry{
		Timestamp:   created,
		Entity:      models.EntityRange,
		Action:      models.ActionChange,
		Scope:       models.Scope{TypeID: 7, Year: 2025},
		ActorID:     &actor,
		ReferenceID: &ref,
		Summary:     "changed range",
		Changes:     []models.Change{{Field: "interval", Old: "1-100", New: "1-150"}},
	}
	s.Require().NoError(s.store.AppendAudit(ctx, entry))
	s.NotZero(entry.ID)

	entries, err := s.store.ListAudit(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(entry.Changes, entries[0].Changes)
	s.Equal(actor, *entries[0].ActorID)
	s.Nil(entries[0].Scope.OfficeID)

	var (
		eventType string
		payload   []byte
	)
	err = s.postgres.DB.QueryRowContext(ctx,
		`SELECT event_type, payload FROM outbox WHERE aggregate_id = '12'`).Scan(&eventType, &payload)
	s.Require().NoError(err)
	s.Equal("numbering.range.change", eventType)

	var decoded map[string]any
	s.Require().NoError(json.Unmarshal(payload, &decoded))
	s.Equal("changed range\ninterval: 1-100 -> 1-150", decoded["detail"])
}

func (s *PostgresStoreSuite) TestListAuditNewestFirstWithLimit() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.store.AppendAudit(ctx, &models.AuditEntry{
			Timestamp: created.Add(time.Duration(i) * time.Minute),
			Entity:    models.EntityQuota,
			Action:    models.ActionChange,
			Scope:     models.Scope{TypeID: 7, Year: 2025},
			Summary:   "quota",
		}))
	}
	entries, err := s.store.ListAudit(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Greater(entries[0].ID, entries[1].ID)
	s.Empty(entries[0].Changes)
}

// =============================================================================
// Transactions
// =============================================================================

func (s *PostgresStoreSuite) TestRollbackDiscardsEverything() {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.store.RunInTx(ctx, func(store ports.Store) error {
		if err := store.SaveQuota(ctx, &models.Quota{TypeID: 7, Year: 2025, Name: "q", Capacity: 10, UpdatedAt: created}); err != nil {
			return err
		}
		if err := store.AppendAudit(ctx, &models.AuditEntry{
			Timestamp: created, Entity: models.EntityQuota, Action: models.ActionOpen,
			Scope: models.Scope{TypeID: 7, Year: 2025}, Summary: "opened",
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.GetQuota(ctx, models.QuotaKey{TypeID: 7, Year: 2025})
	s.ErrorIs(err, sentinel.ErrNotFound)

	var outboxRows int
	s.Require().NoError(s.postgres.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&outboxRows))
	s.Zero(outboxRows)
}

// TestConcurrentConsumeIssuesContiguousNumbers drives the allocator against
// the real database: serialization failures are retried until every caller
// gets a number, and the numbers issued are exactly 1..N.
func (s *PostgresStoreSuite) TestConcurrentConsumeIssuesContiguousNumbers() {
	ctx := context.Background()
	svc, err := service.New(s.store, s.store,
		service.WithClock(func() time.Time { return created }),
		service.WithRetryPolicy(service.RetryPolicy{
			MaxRetries:      100,
			InitialInterval: time.Millisecond,
			MaxInterval:     20 * time.Millisecond,
		}),
	)
	s.Require().NoError(err)

	_, err = svc.SetQuota(ctx, models.QuotaKey{TypeID: 7, Year: 2025}, 1000, nil)
	s.Require().NoError(err)
	opened, err := svc.OpenOrUpdateRange(ctx, models.RangeInput{TypeID: 7, Year: 2025, Start: 1, End: 500, Active: true}, nil)
	s.Require().NoError(err)

	const goroutines = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		errs    []error
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.ConsumeNextNumber(ctx, service.ConsumeRequest{TypeID: 7})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, got.Number)
		}()
	}
	wg.Wait()

	s.Require().Empty(errs, "every consume should succeed within the retry budget")
	s.Require().Len(numbers, goroutines)

	sort.Ints(numbers)
	want := make([]int, goroutines)
	for i := range want {
		want[i] = i + 1
	}
	s.Equal(want, numbers)

	stored, err := s.store.GetRange(ctx, opened.ID)
	s.Require().NoError(err)
	s.Equal(goroutines, stored.Cursor)
	s.Equal(goroutines, stored.Issued())
}
