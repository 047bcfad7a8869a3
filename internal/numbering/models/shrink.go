package models

import "fmt"

// ShrinkPlan lists the range edits needed to fit a new capacity. Trimmed
// holds the updated copies; Removed holds the ranges as they were.
type ShrinkPlan struct {
	Trimmed []*Range
	Removed []*Range
}

// Empty reports whether the capacity change touches no range.
func (p *ShrinkPlan) Empty() bool {
	return len(p.Trimmed) == 0 && len(p.Removed) == 0
}

// PlanQuotaShrink computes how ranges must change for every number to stay
// within [1, capacity]. It refuses when an issued number would fall outside
// the new capacity.
func PlanQuotaShrink(capacity int, ranges []*Range) (*ShrinkPlan, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeCapacity, capacity)
	}
	if highest := MaxCursor(ranges); highest > capacity {
		return nil, fmt.Errorf("%w: number %d already issued, capacity %d", ErrQuotaBelowConsumed, highest, capacity)
	}
	plan := &ShrinkPlan{}
	for _, r := range ranges {
		switch {
		case r.Start > capacity:
			plan.Removed = append(plan.Removed, r.Clone())
		case r.End > capacity:
			trimmed := r.Clone()
			trimmed.End = capacity
			plan.Trimmed = append(plan.Trimmed, trimmed)
		}
	}
	return plan, nil
}
