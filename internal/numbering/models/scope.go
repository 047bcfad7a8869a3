package models

import (
	"fmt"
	"math"
	"strconv"
)

// MaxID bounds type, year, office and actor ids, and range numbers, to the
// INTEGER columns that store them.
const MaxID = math.MaxInt32

// QuotaKey identifies a quota: one document type in one year.
type QuotaKey struct {
	TypeID int
	Year   int
}

// Validate rejects non-positive ids and ids above MaxID.
func (k QuotaKey) Validate() error {
	if !validID(k.TypeID) || !validID(k.Year) {
		return fmt.Errorf("%w: type %d, year %d", ErrInvalidScope, k.TypeID, k.Year)
	}
	return nil
}

func (k QuotaKey) String() string {
	return fmt.Sprintf("type %d / year %d", k.TypeID, k.Year)
}

// Scope is the partition a range belongs to. A nil OfficeID is the global
// scope, which is distinct from every office-specific scope.
type Scope struct {
	TypeID   int
	Year     int
	OfficeID *int
}

// Key drops the office component.
func (s Scope) Key() QuotaKey {
	return QuotaKey{TypeID: s.TypeID, Year: s.Year}
}

// Validate rejects out-of-bounds ids, including a present office id that is
// not positive or exceeds MaxID.
func (s Scope) Validate() error {
	if err := s.Key().Validate(); err != nil {
		return err
	}
	if s.OfficeID != nil && !validID(*s.OfficeID) {
		return fmt.Errorf("%w: office %d", ErrInvalidScope, *s.OfficeID)
	}
	return nil
}

// IsGlobal reports whether the scope has no office.
func (s Scope) IsGlobal() bool { return s.OfficeID == nil }

// Same reports whether both scopes are the exact same tuple.
func (s Scope) Same(other Scope) bool {
	return s.TypeID == other.TypeID && s.Year == other.Year && SameOffice(s.OfficeID, other.OfficeID)
}

func (s Scope) String() string {
	return fmt.Sprintf("type %d / year %d / office %s", s.TypeID, s.Year, OfficeLabel(s.OfficeID))
}

// SameOffice compares optional office ids; two nils are equal.
func SameOffice(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// OfficeLabel renders an optional office id, "global" when absent.
func OfficeLabel(office *int) string {
	if office == nil {
		return "global"
	}
	return strconv.Itoa(*office)
}

// ValidateActor rejects a present actor id outside 1..MaxID. A nil actor is
// allowed.
func ValidateActor(actor *int) error {
	if actor != nil && !validID(*actor) {
		return fmt.Errorf("%w: %d", ErrInvalidActor, *actor)
	}
	return nil
}

func validID(v int) bool { return v > 0 && v <= MaxID }

// IntPtr is a convenience for optional ids.
func IntPtr(v int) *int { return &v }
