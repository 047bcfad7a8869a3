package models

import (
	"fmt"
	"time"
)

// Quota is the total amount of numbers grantable for a document type in a
// year, across all of its ranges.
type Quota struct {
	TypeID    int
	Year      int
	Name      string
	Capacity  int
	UpdatedAt time.Time
}

// Key returns the (type, year) key.
func (q *Quota) Key() QuotaKey { return QuotaKey{TypeID: q.TypeID, Year: q.Year} }

// Clone returns a copy.
func (q *Quota) Clone() *Quota {
	if q == nil {
		return nil
	}
	c := *q
	return &c
}

// DefaultQuotaName is the display name given to new quotas.
func DefaultQuotaName(key QuotaKey) string {
	return fmt.Sprintf("CUPO-%d-%d", key.TypeID, key.Year)
}

// NewQuota validates and builds a quota.
func NewQuota(key QuotaKey, capacity int, now time.Time) (*Quota, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCapacity, capacity)
	}
	return &Quota{
		TypeID:    key.TypeID,
		Year:      key.Year,
		Name:      DefaultQuotaName(key),
		Capacity:  capacity,
		UpdatedAt: now,
	}, nil
}

// Assigned sums the sizes of ranges, skipping the one with excludeID when
// it is non-nil.
func Assigned(ranges []*Range, excludeID *int64) int {
	total := 0
	for _, r := range ranges {
		if excludeID != nil && r.ID == *excludeID {
			continue
		}
		total += r.Size()
	}
	return total
}

// MaxCursor returns the highest issued number across ranges, 0 when none
// has been issued.
func MaxCursor(ranges []*Range) int {
	highest := 0
	for _, r := range ranges {
		if r.HasIssued() && r.Cursor > highest {
			highest = r.Cursor
		}
	}
	return highest
}

// LedgerItem is one row of the quota ledger report.
type LedgerItem struct {
	TypeID     int
	Year       int
	Name       string
	Capacity   int
	Assigned   int
	Available  int
	Issued     int
	RangeCount int
	UpdatedAt  time.Time
}

// BuildLedger joins quotas with the ranges of their (type, year).
func BuildLedger(quotas []*Quota, ranges []*Range) []LedgerItem {
	byKey := make(map[QuotaKey][]*Range)
	for _, r := range ranges {
		key := QuotaKey{TypeID: r.TypeID, Year: r.Year}
		byKey[key] = append(byKey[key], r)
	}
	items := make([]LedgerItem, 0, len(quotas))
	for _, q := range quotas {
		scoped := byKey[q.Key()]
		assigned := Assigned(scoped, nil)
		issued := 0
		for _, r := range scoped {
			issued += r.Issued()
		}
		items = append(items, LedgerItem{
			TypeID:     q.TypeID,
			Year:       q.Year,
			Name:       q.Name,
			Capacity:   q.Capacity,
			Assigned:   assigned,
			Available:  max(0, q.Capacity-assigned),
			Issued:     issued,
			RangeCount: len(scoped),
			UpdatedAt:  q.UpdatedAt,
		})
	}
	return items
}

// QuotaChange describes the outcome of a capacity change.
type QuotaChange struct {
	Quota   *Quota
	Created bool
	Trimmed []*Range
	Removed []*Range
}
