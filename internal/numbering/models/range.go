package models

import (
	"fmt"
	"strings"
	"time"
)

// Range is a contiguous interval of official numbers owned by one scope.
// Cursor is the last issued number; Start-1 means nothing has been issued.
type Range struct {
	ID        int64
	TypeID    int
	Year      int
	OfficeID  *int
	Name      string
	Start     int
	End       int
	Cursor    int
	Active    bool
	CreatedAt time.Time
}

// Scope returns the partition tuple of the range.
func (r *Range) Scope() Scope {
	return Scope{TypeID: r.TypeID, Year: r.Year, OfficeID: r.OfficeID}
}

// Size is the number of values in the interval.
func (r *Range) Size() int { return r.End - r.Start + 1 }

// Issued is how many numbers have been handed out.
func (r *Range) Issued() int { return r.Cursor - r.Start + 1 }

// Remaining is how many numbers can still be handed out.
func (r *Range) Remaining() int { return r.End - r.Cursor }

// Exhausted reports whether the cursor has reached the end.
func (r *Range) Exhausted() bool { return r.Cursor >= r.End }

// HasIssued reports whether at least one number was consumed.
func (r *Range) HasIssued() bool { return r.Cursor >= r.Start }

// Overlaps reports whether both closed intervals share at least one value.
func (r *Range) Overlaps(other *Range) bool {
	return r.Start <= other.End && other.Start <= r.End
}

// Interval renders the interval as "start-end".
func (r *Range) Interval() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Clone returns a deep copy.
func (r *Range) Clone() *Range {
	if r == nil {
		return nil
	}
	c := *r
	if r.OfficeID != nil {
		office := *r.OfficeID
		c.OfficeID = &office
	}
	return &c
}

// Validate enforces the invariants a single range holds on its own:
// 1 <= start <= end and start-1 <= cursor <= end.
func (r *Range) Validate() error {
	if err := r.Scope().Validate(); err != nil {
		return err
	}
	if r.Start < 1 {
		return fmt.Errorf("%w: start %d must be at least 1", ErrInvalidInterval, r.Start)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidInterval, r.Start, r.End)
	}
	if r.Cursor > r.End {
		return fmt.Errorf("%w: cursor %d is after end %d", ErrInvalidInterval, r.Cursor, r.End)
	}
	if r.Cursor < r.Start-1 {
		return fmt.Errorf("%w: cursor %d is before start %d", ErrInvalidInterval, r.Cursor, r.Start)
	}
	return nil
}

// DefaultRangeName builds the display name used when none is supplied.
func DefaultRangeName(scope Scope, start, end int) string {
	office := "G"
	if scope.OfficeID != nil {
		office = fmt.Sprintf("%d", *scope.OfficeID)
	}
	return fmt.Sprintf("%d-%d-%s-%d-%d", scope.TypeID, scope.Year, office, start, end)
}

// RangeInput carries the administrative values for opening (ID == 0) or
// editing a range. A nil Cursor means "start-1" on create and "unchanged"
// on update.
type RangeInput struct {
	ID       int64
	TypeID   int
	Year     int
	OfficeID *int
	Name     string
	Start    int
	End      int
	Cursor   *int
	Active   bool
}

// Normalize trims the display name.
func (in *RangeInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
}

// Validate checks input shape before any transaction opens.
func (in *RangeInput) Validate() error {
	if in.ID < 0 {
		return fmt.Errorf("%w: range id %d", ErrInvalidScope, in.ID)
	}
	scope := Scope{TypeID: in.TypeID, Year: in.Year, OfficeID: in.OfficeID}
	if err := scope.Validate(); err != nil {
		return err
	}
	if in.Start < 1 {
		return fmt.Errorf("%w: start %d must be at least 1", ErrInvalidInterval, in.Start)
	}
	if in.Start > in.End {
		return fmt.Errorf("%w: start %d is after end %d", ErrInvalidInterval, in.Start, in.End)
	}
	if in.End > MaxID {
		return fmt.Errorf("%w: end %d exceeds %d", ErrInvalidInterval, in.End, MaxID)
	}
	if in.Cursor != nil && (*in.Cursor > in.End || *in.Cursor < in.Start-1) {
		return fmt.Errorf("%w: cursor %d outside %d-%d", ErrInvalidInterval, *in.Cursor, in.Start, in.End)
	}
	return nil
}

// NewRange builds a range from create input.
func NewRange(in RangeInput, now time.Time) (*Range, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	r := &Range{
		TypeID:    in.TypeID,
		Year:      in.Year,
		OfficeID:  in.OfficeID,
		Name:      in.Name,
		Start:     in.Start,
		End:       in.End,
		Cursor:    in.Start - 1,
		Active:    in.Active,
		CreatedAt: now,
	}
	if in.Cursor != nil {
		r.Cursor = *in.Cursor
	}
	if r.Name == "" {
		r.Name = DefaultRangeName(r.Scope(), r.Start, r.End)
	}
	return r, r.Validate()
}

// Apply returns a copy of r with the editable fields of in applied. Id and
// creation time are preserved.
func (r *Range) Apply(in RangeInput) (*Range, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}
	next := r.Clone()
	next.TypeID = in.TypeID
	next.Year = in.Year
	next.OfficeID = in.OfficeID
	next.Start = in.Start
	next.End = in.End
	next.Active = in.Active
	if in.Name != "" {
		next.Name = in.Name
	}
	switch {
	case in.Cursor != nil:
		next.Cursor = *in.Cursor
	case !r.HasIssued():
		// an unused range keeps following its start
		next.Cursor = in.Start - 1
	}
	return next, next.Validate()
}

// AllocatedNumber is the result of consuming the next number.
type AllocatedNumber struct {
	Number    int
	RangeID   int64
	RangeName string
	Scope     Scope
	Remaining int
}
