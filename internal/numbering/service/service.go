// Package service implements official number allocation: the quota ledger,
// the range registry, the allocator, the range planner and the audit log.
// Every mutating operation runs in one serializable transaction and writes
// its audit entry in that same transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"folio/internal/numbering/metrics"
	"folio/internal/numbering/models"
	"folio/internal/numbering/ports"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/sentinel"
)

const (
	tracerName = "folio/internal/numbering"

	// DefaultAuditLimit is the audit trail page size when none is given.
	DefaultAuditLimit = 200
)

// Service is the numbering core exposed to the surrounding application.
type Service struct {
	store          ports.Store
	tx             ports.TxManager
	cache          ports.LedgerCache
	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	now            func() time.Time
	retry          RetryPolicy
	auditLimit     int
	suggestionSize int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLedgerCache caches the quota ledger report; mutations invalidate it.
func WithLedgerCache(cache ports.LedgerCache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

// WithClock overrides time.Now for timestamps and the default year.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRetryPolicy configures how allocations retry serialization failures.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(s *Service) {
		s.retry = policy
	}
}

func WithAuditLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.auditLimit = limit
		}
	}
}

func WithSuggestionSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.suggestionSize = size
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New constructs a Service. store serves non-transactional reads; tx opens
// the transactions every mutation runs in.
func New(store ports.Store, tx ports.TxManager, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("numbering store is required")
	}
	if tx == nil {
		return nil, fmt.Errorf("numbering transaction manager is required")
	}
	s := &Service{
		store:          store,
		tx:             tx,
		logger:         slog.New(slog.DiscardHandler),
		tracer:         otel.Tracer(tracerName),
		now:            time.Now,
		retry:          DefaultRetryPolicy(),
		auditLimit:     DefaultAuditLimit,
		suggestionSize: models.DefaultSuggestionSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "numbering."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if reason := models.Reason(err); reason != "" {
			span.SetAttributes(attribute.String("numbering.reason", reason))
		}
		span.SetStatus(otelcodes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}

func scopeAttrs(scope models.Scope) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("numbering.type_id", scope.TypeID),
		attribute.Int("numbering.year", scope.Year),
	}
	if scope.OfficeID != nil {
		attrs = append(attrs, attribute.Int("numbering.office_id", *scope.OfficeID))
	}
	return attrs
}

// recoverPanic turns a panic inside an operation into an internal error so
// the host process survives. The transaction has already rolled back by the
// time this runs.
func (s *Service) recoverPanic(ctx context.Context, op string, err *error) {
	if r := recover(); r != nil {
		s.logger.ErrorContext(ctx, "numbering operation panicked",
			"operation", op,
			"panic", r,
			"stack", string(debug.Stack()),
		)
		*err = dErrors.New(dErrors.CodeInternal, op+" failed")
	}
}

// fail converts whatever came out of a transaction into a coded error.
// Business errors are already coded and pass through; infrastructure faults
// are logged and hidden behind a generic message.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	var coded *dErrors.Error
	switch {
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrConflict):
		s.logger.WarnContext(ctx, "numbering transaction conflict",
			"operation", op,
			"error", err,
		)
		return dErrors.Wrap(fmt.Errorf("%w: %w", models.ErrConcurrencyConflict, err), dErrors.CodeConflict,
			"concurrent modification, retry the operation")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, op+" cancelled")
	default:
		s.logger.ErrorContext(ctx, "numbering operation failed",
			"operation", op,
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, op+" failed")
	}
}

func invalid(err error) error {
	return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
}

func violation(reason error, format string, args ...any) error {
	return dErrors.Wrap(reason, dErrors.CodeInvariantViolation, fmt.Sprintf(format, args...))
}

func exhausted(reason error, format string, args ...any) error {
	return dErrors.Wrap(reason, dErrors.CodeExhausted, fmt.Sprintf(format, args...))
}

func notFound(reason error, format string, args ...any) error {
	return dErrors.Wrap(reason, dErrors.CodeNotFound, fmt.Sprintf(format, args...))
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case dErrors.HasCode(err, dErrors.CodeExhausted):
		return metrics.OutcomeExhausted
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return metrics.OutcomeConflict
	case dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeInvariantViolation),
		dErrors.HasCode(err, dErrors.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// finishAdmin records metrics and logs for an administrative operation.
// Rejections are expected and logged at info; they are not faults.
func (s *Service) finishAdmin(ctx context.Context, op string, err error, attrs ...any) {
	outcome := outcomeOf(err)
	if s.metrics != nil {
		s.metrics.IncrementAdminOperation(op, outcome)
	}
	if outcome == metrics.OutcomeRejected {
		s.logger.InfoContext(ctx, "numbering operation rejected",
			append(attrs, "operation", op, "reason", models.Reason(err), "error", err.Error())...)
		return
	}
	if err == nil {
		s.logger.InfoContext(ctx, op, append(attrs, "log_type", "audit")...)
		s.invalidateLedger(ctx)
	}
}

func (s *Service) invalidateLedger(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate quota ledger cache", "error", err)
	}
}
