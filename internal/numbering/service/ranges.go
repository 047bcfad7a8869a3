package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/pkg/platform/sentinel"
)

// OpenOrUpdateRange creates a range when in.ID is zero and edits the range
// with that id otherwise. The range, every sibling invariant and the audit
// entry are checked and written in one transaction.
func (s *Service) OpenOrUpdateRange(ctx context.Context, in models.RangeInput, actor *int) (result *models.Range, err error) {
	op := "open range"
	if in.ID != 0 {
		op = "update range"
	}
	in.Normalize()
	ctx, span := s.startSpan(ctx, "OpenOrUpdateRange",
		append(scopeAttrs(models.Scope{TypeID: in.TypeID, Year: in.Year, OfficeID: in.OfficeID}),
			attribute.Int64("numbering.range_id", in.ID))...)
	defer func() {
		endSpan(span, err)
		s.finishAdmin(ctx, op, err, "range_id", rangeID(result, in.ID))
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := models.ValidateActor(actor); err != nil {
		return nil, invalid(err)
	}

	var saved *models.Range
	txErr := s.runInTx(ctx, func(store ports.Store) error {
		var err error
		if in.ID == 0 {
			saved, err = s.openRange(ctx, store, in, actor)
		} else {
			saved, err = s.updateRange(ctx, store, in, actor)
		}
		return err
	})
	if txErr != nil {
		return nil, s.fail(ctx, op, txErr)
	}
	return saved, nil
}

func rangeID(r *models.Range, fallback int64) int64 {
	if r != nil {
		return r.ID
	}
	return fallback
}

func (s *Service) openRange(ctx context.Context, store ports.Store, in models.RangeInput, actor *int) (*models.Range, error) {
	r, err := models.NewRange(in, s.now())
	if err != nil {
		return nil, invalid(err)
	}
	if err := checkFootprint(ctx, store, r); err != nil {
		return nil, err
	}
	if err := store.InsertRange(ctx, r); err != nil {
		return nil, fmt.Errorf("inserting range: %w", err)
	}

	changes := []models.Change{
		{Field: "interval", New: r.Interval()},
		{Field: "office", New: models.OfficeLabel(r.OfficeID)},
		{Field: "active", New: strconv.FormatBool(r.Active)},
	}
	if r.HasIssued() {
		changes = append(changes, models.Change{Field: "cursor", New: strconv.Itoa(r.Cursor)})
	}
	entry := models.NewRangeEntry(models.ActionOpen, r, actor,
		fmt.Sprintf("opened %s", models.RangeLabel(r)), changes, s.now())
	if err := store.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}
	return r, nil
}

func (s *Service) updateRange(ctx context.Context, store ports.Store, in models.RangeInput, actor *int) (*models.Range, error) {
	current, err := loadRange(ctx, store, in.ID)
	if err != nil {
		return nil, err
	}
	next, err := current.Apply(in)
	if err != nil {
		return nil, invalid(err)
	}
	if next.Cursor < current.Cursor && current.HasIssued() {
		return nil, invalid(fmt.Errorf("%w: cursor cannot move back from %d to %d", models.ErrInvalidInterval, current.Cursor, next.Cursor))
	}

	changes := models.DiffRanges(current, next)
	if len(changes) == 0 {
		return current, nil
	}
	if err := checkFootprint(ctx, store, next); err != nil {
		return nil, err
	}
	if err := store.UpdateRange(ctx, next); err != nil {
		return nil, fmt.Errorf("updating range %d: %w", next.ID, err)
	}

	action := models.RangeAction(current, next)
	entry := models.NewRangeEntry(action, next, actor,
		fmt.Sprintf("%s %s", pastTense(action), models.RangeLabel(next)), changes, s.now())
	if err := store.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("appending audit entry: %w", err)
	}
	return next, nil
}

// checkFootprint verifies candidate against the quota and the other ranges
// of its (type, year): no overlap, the sizes fit the capacity, no number
// above capacity, and at most one active range per scope.
func checkFootprint(ctx context.Context, store ports.Store, candidate *models.Range) error {
	key := candidate.Scope().Key()
	quota, err := store.GetQuota(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return violation(models.ErrQuotaNotConfigured, "no quota configured for %s", key)
	}
	if err != nil {
		return fmt.Errorf("loading quota %s: %w", key, err)
	}
	ranges, err := store.ListRangesForKey(ctx, key)
	if err != nil {
		return fmt.Errorf("listing ranges for %s: %w", key, err)
	}

	siblings := make([]*models.Range, 0, len(ranges))
	for _, r := range ranges {
		if candidate.ID != 0 && r.ID == candidate.ID {
			continue
		}
		siblings = append(siblings, r)
	}

	for _, r := range siblings {
		if candidate.Overlaps(r) {
			return violation(models.ErrOverlap, "interval %s overlaps %s (%s)",
				candidate.Interval(), models.RangeLabel(r), r.Interval())
		}
	}
	assigned := models.Assigned(siblings, nil)
	if assigned+candidate.Size() > quota.Capacity {
		return violation(models.ErrQuotaExceeded, "%d numbers requested, %d of %d already assigned for %s",
			candidate.Size(), assigned, quota.Capacity, key)
	}
	if candidate.End > quota.Capacity {
		return violation(models.ErrQuotaExceeded, "range end %d exceeds quota capacity %d for %s",
			candidate.End, quota.Capacity, key)
	}
	if candidate.Active {
		for _, r := range siblings {
			if r.Active && r.Scope().Same(candidate.Scope()) {
				return violation(models.ErrDuplicateActiveScope, "%s is already active for %s",
					models.RangeLabel(r), candidate.Scope())
			}
		}
	}
	return nil
}

func loadRange(ctx context.Context, store ports.Store, id int64) (*models.Range, error) {
	r, err := store.GetRange(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, notFound(models.ErrRangeNotFound, "range %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading range %d: %w", id, err)
	}
	return r, nil
}

func pastTense(action models.Action) string {
	switch action {
	case models.ActionClose:
		return "closed"
	case models.ActionReopen:
		return "reopened"
	case models.ActionDelete:
		return "deleted"
	case models.ActionOpen:
		return "opened"
	default:
		return "changed"
	}
}

// CloseRange deactivates a range. Closing an inactive range changes nothing.
func (s *Service) CloseRange(ctx context.Context, id int64, actor *int) (result *models.Range, err error) {
	const op = "close range"
	ctx, span := s.startSpan(ctx, "CloseRange", attribute.Int64("numbering.range_id", id))
	defer func() {
		endSpan(span, err)
		s.finishAdmin(ctx, op, err, "range_id", id)
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := models.ValidateActor(actor); err != nil {
		return nil, invalid(err)
	}

	var closed *models.Range
	txErr := s.runInTx(ctx, func(store ports.Store) error {
		current, err := loadRange(ctx, store, id)
		if err != nil {
			return err
		}
		if !current.Active {
			closed = current
			return nil
		}
		next := current.Clone()
		next.Active = false
		if err := store.UpdateRange(ctx, next); err != nil {
			return fmt.Errorf("updating range %d: %w", id, err)
		}
		entry := models.NewRangeEntry(models.ActionClose, next, actor,
			fmt.Sprintf("closed %s", models.RangeLabel(next)), models.DiffRanges(current, next), s.now())
		if err := store.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
		closed = next
		return nil
	})
	if txErr != nil {
		return nil, s.fail(ctx, op, txErr)
	}
	return closed, nil
}

// DeleteRange removes a range from which nothing was ever issued.
func (s *Service) DeleteRange(ctx context.Context, id int64, actor *int) (err error) {
	const op = "delete range"
	ctx, span := s.startSpan(ctx, "DeleteRange", attribute.Int64("numbering.range_id", id))
	defer func() {
		endSpan(span, err)
		s.finishAdmin(ctx, op, err, "range_id", id)
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := models.ValidateActor(actor); err != nil {
		return invalid(err)
	}

	txErr := s.runInTx(ctx, func(store ports.Store) error {
		current, err := loadRange(ctx, store, id)
		if err != nil {
			return err
		}
		if current.HasIssued() {
			return violation(models.ErrRangeInUse, "%s already issued %d numbers",
				models.RangeLabel(current), current.Issued())
		}
		if err := store.DeleteRanges(ctx, []int64{id}); err != nil {
			return fmt.Errorf("deleting range %d: %w", id, err)
		}
		entry := models.NewRangeEntry(models.ActionDelete, current, actor,
			fmt.Sprintf("deleted %s", models.RangeLabel(current)),
			[]models.Change{{Field: "interval", Old: current.Interval()}}, s.now())
		if err := store.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return s.fail(ctx, op, txErr)
	}
	return nil
}
