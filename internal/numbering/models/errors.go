package models

import "errors"

// Reasons a numbering operation can fail. Services wrap these with a
// dErrors code; callers branch on either.
var (
	// Validation
	ErrInvalidScope     = errors.New("numbering: invalid scope")
	ErrNegativeCapacity = errors.New("numbering: negative capacity")
	ErrInvalidInterval  = errors.New("numbering: invalid interval")
	ErrInvalidActor     = errors.New("numbering: invalid actor")

	// Invariant violations
	ErrOverlap              = errors.New("numbering: range overlaps an existing range")
	ErrQuotaExceeded        = errors.New("numbering: quota exceeded")
	ErrQuotaNotConfigured   = errors.New("numbering: quota not configured")
	ErrDuplicateActiveScope = errors.New("numbering: scope already has an active range")
	ErrQuotaBelowConsumed   = errors.New("numbering: capacity below issued numbers")
	ErrQuotaInUse           = errors.New("numbering: quota referenced by ranges")
	ErrRangeInUse           = errors.New("numbering: range has issued numbers")

	// Lookups
	ErrRangeNotFound = errors.New("numbering: range not found")
	ErrQuotaNotFound = errors.New("numbering: quota not found")

	// Exhaustion
	ErrNoActiveRange  = errors.New("numbering: no active range")
	ErrRangeExhausted = errors.New("numbering: range exhausted")

	// Concurrency
	ErrConcurrencyConflict = errors.New("numbering: concurrent modification")
)

var reasonNames = map[error]string{
	ErrInvalidScope:         "invalid_scope",
	ErrNegativeCapacity:     "negative_capacity",
	ErrInvalidInterval:      "invalid_interval",
	ErrInvalidActor:         "invalid_actor",
	ErrOverlap:              "overlap",
	ErrQuotaExceeded:        "quota_exceeded",
	ErrQuotaNotConfigured:   "quota_not_configured",
	ErrDuplicateActiveScope: "duplicate_active_scope",
	ErrQuotaBelowConsumed:   "quota_below_consumed",
	ErrQuotaInUse:           "quota_in_use",
	ErrRangeInUse:           "range_in_use",
	ErrRangeNotFound:        "range_not_found",
	ErrQuotaNotFound:        "quota_not_found",
	ErrNoActiveRange:        "no_active_range",
	ErrRangeExhausted:       "range_exhausted",
	ErrConcurrencyConflict:  "concurrency_conflict",
}

// Reason returns the stable machine name of the first numbering reason found
// in err's chain, or "" when there is none.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	for reason, name := range reasonNames {
		if errors.Is(err, reason) {
			return name
		}
	}
	return ""
}
