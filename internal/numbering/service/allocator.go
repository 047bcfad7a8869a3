package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/sentinel"
)

// ConsumeRequest selects the scope a number is drawn from. A nil Year means
// the current year; a nil OfficeID asks for the global range.
type ConsumeRequest struct {
	TypeID   int
	Year     *int
	OfficeID *int
}

func (s *Service) scopeOf(req ConsumeRequest) models.Scope {
	year := s.now().Year()
	if req.Year != nil {
		year = *req.Year
	}
	return models.Scope{TypeID: req.TypeID, Year: year, OfficeID: req.OfficeID}
}

// ConsumeNextNumber issues the next number of the active range for the
// request's scope. Read, increment and write happen in one transaction, so
// no two callers ever receive the same number and none is skipped.
func (s *Service) ConsumeNextNumber(ctx context.Context, req ConsumeRequest) (result *models.AllocatedNumber, err error) {
	const op = "consume next number"
	started := time.Now()
	scope := s.scopeOf(req)
	ctx, span := s.startSpan(ctx, "ConsumeNextNumber", scopeAttrs(scope)...)
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.Int("numbering.number", result.Number))
		}
		endSpan(span, err)
	}()
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveAllocation(outcomeOf(err), time.Since(started).Seconds())
		}
	}()
	defer s.recoverPanic(ctx, op, &err)

	if err := scope.Validate(); err != nil {
		return nil, invalid(err)
	}

	var allocated *models.AllocatedNumber
	txErr := s.runInTxWithRetry(ctx, func(store ports.Store) error {
		allocated = nil
		r, err := findActiveForScope(ctx, store, scope)
		if err != nil {
			return err
		}
		if r.Exhausted() {
			return exhausted(models.ErrRangeExhausted, "range %q is exhausted at %d", r.Name, r.End)
		}
		number, err := store.AdvanceCursor(ctx, r.ID)
		if errors.Is(err, models.ErrRangeExhausted) {
			return exhausted(models.ErrRangeExhausted, "range %q is exhausted at %d", r.Name, r.End)
		}
		if err != nil {
			return fmt.Errorf("advancing cursor of range %d: %w", r.ID, err)
		}
		allocated = &models.AllocatedNumber{
			Number:    number,
			RangeID:   r.ID,
			RangeName: r.Name,
			Scope:     r.Scope(),
			Remaining: r.End - number,
		}
		return nil
	})
	if txErr != nil {
		err = s.fail(ctx, op, txErr)
		if !dErrors.HasCode(err, dErrors.CodeInternal) {
			s.logger.InfoContext(ctx, "number not issued",
				"scope", scope.String(),
				"reason", models.Reason(err),
			)
		}
		return nil, err
	}
	return allocated, nil
}

// GetActiveRange returns the range ConsumeNextNumber would draw from for
// req, without issuing anything.
func (s *Service) GetActiveRange(ctx context.Context, req ConsumeRequest) (result *models.Range, err error) {
	const op = "get active range"
	scope := s.scopeOf(req)
	ctx, span := s.startSpan(ctx, "GetActiveRange", scopeAttrs(scope)...)
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	if err := scope.Validate(); err != nil {
		return nil, invalid(err)
	}
	r, findErr := findActiveForScope(ctx, s.store, scope)
	if findErr != nil {
		return nil, s.fail(ctx, op, findErr)
	}
	return r, nil
}

// findActiveForScope picks the office's own active range first and falls
// back to the global range of (type, year) only when the office has none.
// An exhausted office range does not fall back.
func findActiveForScope(ctx context.Context, store ports.Store, scope models.Scope) (*models.Range, error) {
	if scope.OfficeID != nil {
		ranges, err := store.ListActiveRanges(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("listing active ranges for %s: %w", scope, err)
		}
		if len(ranges) > 0 {
			return ranges[0], nil
		}
	}
	global := models.Scope{TypeID: scope.TypeID, Year: scope.Year}
	ranges, err := store.ListActiveRanges(ctx, global)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("listing active ranges for %s: %w", global, err)
	}
	if len(ranges) == 0 {
		return nil, exhausted(models.ErrNoActiveRange, "no active range for %s", scope)
	}
	return ranges[0], nil
}
