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

func keyAttrs(key models.QuotaKey) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("numbering.type_id", key.TypeID),
		attribute.Int("numbering.year", key.Year),
	}
}

// SetQuota creates or changes the capacity of (type, year). Shrinking trims
// ranges that reach above the new capacity and removes ranges that start
// above it; it fails when an issued number would fall outside. The capacity
// change and its cascade are one transaction and one audit entry.
func (s *Service) SetQuota(ctx context.Context, key models.QuotaKey, capacity int, actor *int) (result *models.QuotaChange, err error) {
	const op = "set quota"
	ctx, span := s.startSpan(ctx, "SetQuota", append(keyAttrs(key), attribute.Int("numbering.capacity", capacity))...)
	defer func() {
		endSpan(span, err)
		s.finishAdmin(ctx, op, err, "quota", key.String(), "capacity", capacity)
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := key.Validate(); err != nil {
		return nil, invalid(err)
	}
	if err := models.ValidateActor(actor); err != nil {
		return nil, invalid(err)
	}
	if capacity < 0 {
		return nil, invalid(fmt.Errorf("%w: %d", models.ErrNegativeCapacity, capacity))
	}

	var change *models.QuotaChange
	txErr := s.runInTx(ctx, func(store ports.Store) error {
		change = nil
		now := s.now()
		quota, err := store.GetQuota(ctx, key)
		created := false
		previous := 0
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			quota, err = models.NewQuota(key, capacity, now)
			if err != nil {
				return invalid(err)
			}
			created = true
		case err != nil:
			return fmt.Errorf("loading quota %s: %w", key, err)
		default:
			previous = quota.Capacity
		}

		ranges, err := store.ListRangesForKey(ctx, key)
		if err != nil {
			return fmt.Errorf("listing ranges for %s: %w", key, err)
		}
		plan, err := models.PlanQuotaShrink(capacity, ranges)
		if err != nil {
			return violation(models.ErrQuotaBelowConsumed, "%s", err.Error())
		}

		change = &models.QuotaChange{Quota: quota, Created: created, Trimmed: plan.Trimmed, Removed: plan.Removed}
		if !created && previous == capacity && plan.Empty() {
			return nil
		}

		byID := make(map[int64]*models.Range, len(ranges))
		for _, r := range ranges {
			byID[r.ID] = r
		}
		changes := []models.Change{{Field: "capacity", New: strconv.Itoa(capacity)}}
		if !created {
			changes[0].Old = strconv.Itoa(previous)
		}
		for _, r := range plan.Trimmed {
			if err := store.UpdateRange(ctx, r); err != nil {
				return fmt.Errorf("trimming range %d: %w", r.ID, err)
			}
			changes = append(changes, models.Change{
				Subject: models.RangeLabel(r),
				Field:   "interval",
				Old:     byID[r.ID].Interval(),
				New:     r.Interval(),
			})
		}
		if len(plan.Removed) > 0 {
			ids := make([]int64, 0, len(plan.Removed))
			for _, r := range plan.Removed {
				ids = append(ids, r.ID)
				changes = append(changes, models.Change{
					Subject: models.RangeLabel(r),
					Field:   "interval",
					Old:     r.Interval(),
				})
			}
			if err := store.DeleteRanges(ctx, ids); err != nil {
				return fmt.Errorf("removing ranges above capacity: %w", err)
			}
		}

		quota.Capacity = capacity
		quota.UpdatedAt = now
		if err := store.SaveQuota(ctx, quota); err != nil {
			return fmt.Errorf("saving quota %s: %w", key, err)
		}

		action, summary := models.ActionChange, fmt.Sprintf("quota %s set to %d", quota.Name, capacity)
		if created {
			action, summary = models.ActionOpen, fmt.Sprintf("quota %s configured with %d", quota.Name, capacity)
		}
		entry := models.NewQuotaEntry(action, key, actor, summary, changes, now)
		if err := store.AppendAudit(ctx, entry); err != nil {
			return fmt.Errorf("appending audit entry: %w", err)
		}
		return nil
	})
	if txErr != nil {
		return nil, s.fail(ctx, op, txErr)
	}
	return change, nil
}

// DeleteQuota removes the quota of (type, year). Quotas still referenced by
// any range cannot be removed.
func (s *Service) DeleteQuota(ctx context.Context, key models.QuotaKey, actor *int) (err error) {
	const op = "delete quota"
	ctx, span := s.startSpan(ctx, "DeleteQuota", keyAttrs(key)...)
	defer func() {
		endSpan(span, err)
		s.finishAdmin(ctx, op, err, "quota", key.String())
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := key.Validate(); err != nil {
		return invalid(err)
	}
	if err := models.ValidateActor(actor); err != nil {
		return invalid(err)
	}

	txErr := s.runInTx(ctx, func(store ports.Store) error {
		quota, err := store.GetQuota(ctx, key)
		if errors.Is(err, sentinel.ErrNotFound) {
			return notFound(models.ErrQuotaNotFound, "no quota configured for %s", key)
		}
		if err != nil {
			return fmt.Errorf("loading quota %s: %w", key, err)
		}
		ranges, err := store.ListRangesForKey(ctx, key)
		if err != nil {
			return fmt.Errorf("listing ranges for %s: %w", key, err)
		}
		if len(ranges) > 0 {
			return violation(models.ErrQuotaInUse, "quota %s is used by %d ranges", quota.Name, len(ranges))
		}
		if err := store.DeleteQuota(ctx, key); err != nil {
			return fmt.Errorf("deleting quota %s: %w", key, err)
		}
		entry := models.NewQuotaEntry(models.ActionDelete, key, actor,
			fmt.Sprintf("quota %s deleted", quota.Name),
			[]models.Change{{Field: "capacity", Old: strconv.Itoa(quota.Capacity)}}, s.now())
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

// GetCapacity returns the configured capacity of (type, year), or nil when
// no quota exists.
func (s *Service) GetCapacity(ctx context.Context, key models.QuotaKey) (result *int, err error) {
	const op = "get capacity"
	ctx, span := s.startSpan(ctx, "GetCapacity", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	if err := key.Validate(); err != nil {
		return nil, invalid(err)
	}
	quota, getErr := s.store.GetQuota(ctx, key)
	if errors.Is(getErr, sentinel.ErrNotFound) {
		return nil, nil
	}
	if getErr != nil {
		return nil, s.fail(ctx, op, getErr)
	}
	capacity := quota.Capacity
	return &capacity, nil
}

// GetConsumed sums the sizes of every range of (type, year), active or
// not, optionally leaving one range out.
func (s *Service) GetConsumed(ctx context.Context, key models.QuotaKey, excludeRangeID *int64) (result int, err error) {
	const op = "get consumed"
	ctx, span := s.startSpan(ctx, "GetConsumed", keyAttrs(key)...)
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	if err := key.Validate(); err != nil {
		return 0, invalid(err)
	}
	ranges, listErr := s.store.ListRangesForKey(ctx, key)
	if listErr != nil {
		return 0, s.fail(ctx, op, listErr)
	}
	return models.Assigned(ranges, excludeRangeID), nil
}
