package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/pkg/platform/sentinel"
)

func newRange(start, end int, office *int, active bool) *models.Range {
	return &models.Range{
		TypeID:    1,
		Year:      2025,
		OfficeID:  office,
		Name:      "r",
		Start:     start,
		End:       end,
		Cursor:    start - 1,
		Active:    active,
		CreatedAt: time.Now(),
	}
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.RunInTx(ctx, func(tx ports.Store) error {
		return tx.InsertRange(ctx, newRange(1, 10, nil, true))
	})
	require.NoError(t, err)

	ranges, err := store.ListRanges(ctx)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
	assert.Equal(t, int64(1), ranges[0].ID)
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.RunInTx(ctx, func(tx ports.Store) error {
		if err := tx.InsertRange(ctx, newRange(1, 10, nil, true)); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, &models.AuditEntry{Summary: "opened"}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	ranges, err := store.ListRanges(ctx)
	require.NoError(t, err)
	assert.Empty(t, ranges)
	entries, err := store.ListAudit(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunInTxHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := New().RunInTx(ctx, func(ports.Store) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestAdvanceCursor(t *testing.T) {
	ctx := context.Background()
	store := New()
	r := newRange(5, 6, nil, true)
	require.NoError(t, store.InsertRange(ctx, r))

	n, err := store.AdvanceCursor(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = store.AdvanceCursor(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	_, err = store.AdvanceCursor(ctx, r.ID)
	assert.ErrorIs(t, err, models.ErrRangeExhausted)

	closed := newRange(20, 30, nil, false)
	require.NoError(t, store.InsertRange(ctx, closed))
	_, err = store.AdvanceCursor(ctx, closed.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListActiveRangesMatchesExactScope(t *testing.T) {
	ctx := context.Background()
	store := New()
	office := 3
	require.NoError(t, store.InsertRange(ctx, newRange(1, 10, nil, true)))
	require.NoError(t, store.InsertRange(ctx, newRange(11, 20, &office, true)))
	require.NoError(t, store.InsertRange(ctx, newRange(21, 30, &office, false)))

	global, err := store.ListActiveRanges(ctx, models.Scope{TypeID: 1, Year: 2025})
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, 1, global[0].Start)

	scoped, err := store.ListActiveRanges(ctx, models.Scope{TypeID: 1, Year: 2025, OfficeID: &office})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, 11, scoped[0].Start)
}

func TestReturnedValuesAreCopies(t *testing.T) {
	ctx := context.Background()
	store := New()
	r := newRange(1, 10, nil, true)
	require.NoError(t, store.InsertRange(ctx, r))

	got, err := store.GetRange(ctx, r.ID)
	require.NoError(t, err)
	got.End = 999

	again, err := store.GetRange(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, again.End)
}

func TestListAuditNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := New()
	for _, summary := range []string{"first", "second", "third"} {
		require.NoError(t, store.AppendAudit(ctx, &models.AuditEntry{Summary: summary}))
	}

	entries, err := store.ListAudit(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Summary)
	assert.Equal(t, "second", entries[1].Summary)
}

func TestMissingRowsReturnNotFound(t *testing.T) {
	ctx := context.Background()
	store := New()

	_, err := store.GetRange(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = store.GetQuota(ctx, models.QuotaKey{TypeID: 1, Year: 2025})
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	assert.ErrorIs(t, store.DeleteRanges(ctx, []int64{4}), sentinel.ErrNotFound)
}
