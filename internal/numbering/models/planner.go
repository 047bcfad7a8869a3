package models

import "sort"

// DefaultSuggestionSize is used when the caller does not ask for a size.
const DefaultSuggestionSize = 50

// Suggestion is a candidate interval for a new (or edited) range. A zero
// Size is a valid result meaning nothing can be granted; callers check it
// before acting.
type Suggestion struct {
	Scope     Scope
	Start     int
	End       int
	Size      int
	Desired   int
	Clipped   bool
	Capacity  int
	Assigned  int
	Available int

	OfficeHasActiveRange bool
	ActiveRangeExhausted bool
}

// PlanRange finds the lowest gap not covered by ranges and grants as much
// of desired as both the quota balance and the gap allow. Numbers never go
// above capacity. ranges must already exclude the range being edited.
func PlanRange(capacity int, ranges []*Range, desired int) Suggestion {
	if desired <= 0 {
		desired = DefaultSuggestionSize
	}
	sorted := make([]*Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	assigned := Assigned(sorted, nil)
	available := max(0, capacity-assigned)

	candidate := 1
	gapEnd := capacity
	for _, r := range sorted {
		if candidate < r.Start {
			gapEnd = min(r.Start-1, capacity)
			break
		}
		candidate = max(candidate, r.End+1)
	}
	gapSize := max(0, gapEnd-candidate+1)

	granted := min(desired, available, gapSize)
	return Suggestion{
		Start:     candidate,
		End:       candidate + granted - 1,
		Size:      granted,
		Desired:   desired,
		Clipped:   granted < desired,
		Capacity:  capacity,
		Assigned:  assigned,
		Available: available,
	}
}
