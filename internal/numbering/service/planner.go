package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	"folio/pkg/platform/sentinel"
)

// SuggestRequest asks for a candidate interval. ExcludeRangeID leaves the
// range being edited out of the computation; DesiredSize <= 0 uses the
// configured default.
type SuggestRequest struct {
	TypeID         int
	Year           int
	OfficeID       *int
	DesiredSize    int
	ExcludeRangeID *int64
}

// SuggestRange proposes the lowest free interval of (type, year) that fits
// both the quota balance and the gap it starts in. It never writes.
func (s *Service) SuggestRange(ctx context.Context, req SuggestRequest) (result *models.Suggestion, err error) {
	const op = "suggest range"
	scope := models.Scope{TypeID: req.TypeID, Year: req.Year, OfficeID: req.OfficeID}
	ctx, span := s.startSpan(ctx, "SuggestRange", append(scopeAttrs(scope), attribute.Int("numbering.desired", req.DesiredSize))...)
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	if err := scope.Validate(); err != nil {
		return nil, invalid(err)
	}
	desired := req.DesiredSize
	if desired <= 0 {
		desired = s.suggestionSize
	}

	var suggestion models.Suggestion
	txErr := s.runInTxWithRetry(ctx, func(store ports.Store) error {
		capacity := 0
		quota, err := store.GetQuota(ctx, scope.Key())
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
		case err != nil:
			return fmt.Errorf("loading quota %s: %w", scope.Key(), err)
		default:
			capacity = quota.Capacity
		}

		ranges, err := store.ListRangesForKey(ctx, scope.Key())
		if err != nil {
			return fmt.Errorf("listing ranges for %s: %w", scope.Key(), err)
		}
		others := make([]*models.Range, 0, len(ranges))
		for _, r := range ranges {
			if req.ExcludeRangeID != nil && r.ID == *req.ExcludeRangeID {
				continue
			}
			others = append(others, r)
		}
		suggestion = models.PlanRange(capacity, others, desired)
		suggestion.Scope = scope

		for _, r := range others {
			if r.Active && r.Scope().Same(scope) {
				suggestion.OfficeHasActiveRange = true
				suggestion.ActiveRangeExhausted = r.Exhausted()
				break
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, s.fail(ctx, op, txErr)
	}
	span.SetAttributes(
		attribute.Int("numbering.suggested_start", suggestion.Start),
		attribute.Int("numbering.suggested_size", suggestion.Size),
	)
	return &suggestion, nil
}
