package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"folio/internal/numbering/models"
)

// ListRanges returns every range, newest year first and active before
// inactive. Reports read outside a transaction.
func (s *Service) ListRanges(ctx context.Context) (result []*models.Range, err error) {
	const op = "list ranges"
	ctx, span := s.startSpan(ctx, "ListRanges")
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	ranges, listErr := s.store.ListRanges(ctx)
	if listErr != nil {
		return nil, s.fail(ctx, op, listErr)
	}
	return ranges, nil
}

// ListAuditTrail returns the newest audit entries first. A non-positive
// limit uses the default page size.
func (s *Service) ListAuditTrail(ctx context.Context, limit int) (result []*models.AuditEntry, err error) {
	const op = "list audit trail"
	if limit <= 0 {
		limit = s.auditLimit
	}
	ctx, span := s.startSpan(ctx, "ListAuditTrail", attribute.Int("numbering.limit", limit))
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	entries, listErr := s.store.ListAudit(ctx, limit)
	if listErr != nil {
		return nil, s.fail(ctx, op, listErr)
	}
	return entries, nil
}

// ListQuotaLedger reports capacity, assigned, available and issued numbers
// per quota. The report may be served from the ledger cache; a cache fault
// falls through to the store.
func (s *Service) ListQuotaLedger(ctx context.Context) (result []models.LedgerItem, err error) {
	const op = "list quota ledger"
	ctx, span := s.startSpan(ctx, "ListQuotaLedger")
	defer func() { endSpan(span, err) }()
	defer s.recoverPanic(ctx, op, &err)

	if s.cache != nil {
		items, ok, cacheErr := s.cache.Get(ctx)
		if cacheErr != nil {
			s.logger.WarnContext(ctx, "quota ledger cache read failed", "error", cacheErr)
		}
		if s.metrics != nil {
			s.metrics.IncrementCacheLookup(ok)
		}
		span.SetAttributes(attribute.Bool("numbering.cache_hit", ok))
		if ok {
			return items, nil
		}
	}

	quotas, listErr := s.store.ListQuotas(ctx)
	if listErr != nil {
		return nil, s.fail(ctx, op, listErr)
	}
	ranges, listErr := s.store.ListRanges(ctx)
	if listErr != nil {
		return nil, s.fail(ctx, op, listErr)
	}
	items := models.BuildLedger(quotas, ranges)

	// A mutation that commits and invalidates between the reads above and
	// this write leaves a stale report cached until the TTL expires.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, items); cacheErr != nil {
			s.logger.WarnContext(ctx, "quota ledger cache write failed", "error", cacheErr)
		}
	}
	return items, nil
}
