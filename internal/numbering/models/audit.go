package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityKind names the kind of record an audit entry documents.
type EntityKind string

const (
	EntityRange EntityKind = "RANGE"
	EntityQuota EntityKind = "QUOTA"
)

// Action names the mutation an audit entry documents.
type Action string

const (
	ActionOpen   Action = "OPEN"
	ActionChange Action = "CHANGE"
	ActionClose  Action = "CLOSE"
	ActionReopen Action = "REOPEN"
	ActionDelete Action = "DELETE"
)

// Change is one field delta. Subject is set when the change concerns a
// record other than the entry's own reference (cascade side effects).
type Change struct {
	Subject string `json:"subject,omitempty"`
	Field   string `json:"field"`
	Old     string `json:"old,omitempty"`
	New     string `json:"new,omitempty"`
}

// String renders a change as one detail line.
func (c Change) String() string {
	var b strings.Builder
	if c.Subject != "" {
		b.WriteString(c.Subject)
		b.WriteString(" ")
	}
	b.WriteString(c.Field)
	switch {
	case c.Old == "" && c.New != "":
		fmt.Fprintf(&b, ": %s", c.New)
	case c.Old != "" && c.New == "":
		fmt.Fprintf(&b, ": %s removed", c.Old)
	default:
		fmt.Fprintf(&b, ": %s -> %s", c.Old, c.New)
	}
	return b.String()
}

// AuditEntry is an immutable record of one administrative mutation. It is
// always appended in the transaction of the mutation it documents.
type AuditEntry struct {
	ID          int64
	Timestamp   time.Time
	Entity      EntityKind
	Action      Action
	Scope       Scope
	ActorID     *int
	ReferenceID *int64
	Summary     string
	Changes     []Change
}

// Detail renders the summary followed by one line per change. This is the
// only place the structured diff becomes text.
func (e *AuditEntry) Detail() string {
	lines := make([]string, 0, len(e.Changes)+1)
	if e.Summary != "" {
		lines = append(lines, e.Summary)
	}
	for _, c := range e.Changes {
		lines = append(lines, c.String())
	}
	return strings.Join(lines, "\n")
}

// RangeLabel identifies a range in detail lines.
func RangeLabel(r *Range) string {
	return fmt.Sprintf("range %q (#%d)", r.Name, r.ID)
}

// RangeAction decides the audit action for an edit of before into after.
func RangeAction(before, after *Range) Action {
	switch {
	case before.Active && !after.Active:
		return ActionClose
	case !before.Active && after.Active:
		return ActionReopen
	default:
		return ActionChange
	}
}

// DiffRanges lists the field deltas between two versions of a range.
func DiffRanges(before, after *Range) []Change {
	var changes []Change
	if before.Start != after.Start || before.End != after.End {
		changes = append(changes, Change{Field: "interval", Old: before.Interval(), New: after.Interval()})
	}
	if before.Cursor != after.Cursor {
		changes = append(changes, Change{Field: "cursor", Old: strconv.Itoa(before.Cursor), New: strconv.Itoa(after.Cursor)})
	}
	if !SameOffice(before.OfficeID, after.OfficeID) {
		changes = append(changes, Change{Field: "office", Old: OfficeLabel(before.OfficeID), New: OfficeLabel(after.OfficeID)})
	}
	if before.Year != after.Year {
		changes = append(changes, Change{Field: "year", Old: strconv.Itoa(before.Year), New: strconv.Itoa(after.Year)})
	}
	if before.TypeID != after.TypeID {
		changes = append(changes, Change{Field: "type", Old: strconv.Itoa(before.TypeID), New: strconv.Itoa(after.TypeID)})
	}
	if before.Active != after.Active {
		changes = append(changes, Change{Field: "active", Old: strconv.FormatBool(before.Active), New: strconv.FormatBool(after.Active)})
	}
	if before.Name != after.Name {
		changes = append(changes, Change{Field: "name", Old: before.Name, New: after.Name})
	}
	return changes
}

// NewRangeEntry builds an audit entry for a range mutation.
func NewRangeEntry(action Action, r *Range, actor *int, summary string, changes []Change, now time.Time) *AuditEntry {
	ref := r.ID
	return &AuditEntry{
		Timestamp:   now,
		Entity:      EntityRange,
		Action:      action,
		Scope:       r.Scope(),
		ActorID:     actor,
		ReferenceID: &ref,
		Summary:     summary,
		Changes:     changes,
	}
}

// NewQuotaEntry builds an audit entry for a quota mutation. Quotas are keyed
// by (type, year) and carry no surrogate reference id.
func NewQuotaEntry(action Action, key QuotaKey, actor *int, summary string, changes []Change, now time.Time) *AuditEntry {
	return &AuditEntry{
		Timestamp: now,
		Entity:    EntityQuota,
		Action:    action,
		Scope:     Scope{TypeID: key.TypeID, Year: key.Year},
		ActorID:   actor,
		Summary:   summary,
		Changes:   changes,
	}
}
