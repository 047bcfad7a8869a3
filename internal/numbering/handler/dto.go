package handler

import (
	"time"

	"folio/internal/numbering/models"
)

type consumeRequest struct {
	TypeID   int  `json:"type_id"`
	Year     *int `json:"year,omitempty"`
	OfficeID *int `json:"office_id,omitempty"`
}

type numberResponse struct {
	Number    int    `json:"number"`
	RangeID   int64  `json:"range_id"`
	RangeName string `json:"range_name"`
	TypeID    int    `json:"type_id"`
	Year      int    `json:"year"`
	OfficeID  *int   `json:"office_id"`
	Remaining int    `json:"remaining"`
}

func toNumberResponse(n *models.AllocatedNumber) numberResponse {
	return numberResponse{
		Number:    n.Number,
		RangeID:   n.RangeID,
		RangeName: n.RangeName,
		TypeID:    n.Scope.TypeID,
		Year:      n.Scope.Year,
		OfficeID:  n.Scope.OfficeID,
		Remaining: n.Remaining,
	}
}

type rangeRequest struct {
	TypeID   int    `json:"type_id"`
	Year     int    `json:"year"`
	OfficeID *int   `json:"office_id,omitempty"`
	Name     string `json:"name"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Cursor   *int   `json:"cursor,omitempty"`
	Active   bool   `json:"active"`
}

func (r rangeRequest) toInput(id int64) models.RangeInput {
	return models.RangeInput{
		ID:       id,
		TypeID:   r.TypeID,
		Year:     r.Year,
		OfficeID: r.OfficeID,
		Name:     r.Name,
		Start:    r.Start,
		End:      r.End,
		Cursor:   r.Cursor,
		Active:   r.Active,
	}
}

type rangeResponse struct {
	ID        int64     `json:"id"`
	TypeID    int       `json:"type_id"`
	Year      int       `json:"year"`
	OfficeID  *int      `json:"office_id"`
	Name      string    `json:"name"`
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Cursor    int       `json:"cursor"`
	Issued    int       `json:"issued"`
	Remaining int       `json:"remaining"`
	Active    bool      `json:"active"`
	Exhausted bool      `json:"exhausted"`
	CreatedAt time.Time `json:"created_at"`
}

func toRangeResponse(r *models.Range) rangeResponse {
	return rangeResponse{
		ID:        r.ID,
		TypeID:    r.TypeID,
		Year:      r.Year,
		OfficeID:  r.OfficeID,
		Name:      r.Name,
		Start:     r.Start,
		End:       r.End,
		Cursor:    r.Cursor,
		Issued:    r.Issued(),
		Remaining: r.Remaining(),
		Active:    r.Active,
		Exhausted: r.Exhausted(),
		CreatedAt: r.CreatedAt,
	}
}

func toRangeResponses(ranges []*models.Range) []rangeResponse {
	out := make([]rangeResponse, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, toRangeResponse(r))
	}
	return out
}

type quotaRequest struct {
	Capacity *int `json:"capacity"`
}

type quotaResponse struct {
	TypeID    int             `json:"type_id"`
	Year      int             `json:"year"`
	Name      string          `json:"name"`
	Capacity  int             `json:"capacity"`
	UpdatedAt time.Time       `json:"updated_at"`
	Created   bool            `json:"created"`
	Trimmed   []rangeResponse `json:"trimmed"`
	Removed   []rangeResponse `json:"removed"`
}

func toQuotaResponse(c *models.QuotaChange) quotaResponse {
	return quotaResponse{
		TypeID:    c.Quota.TypeID,
		Year:      c.Quota.Year,
		Name:      c.Quota.Name,
		Capacity:  c.Quota.Capacity,
		UpdatedAt: c.Quota.UpdatedAt,
		Created:   c.Created,
		Trimmed:   toRangeResponses(c.Trimmed),
		Removed:   toRangeResponses(c.Removed),
	}
}

type balanceResponse struct {
	TypeID   int  `json:"type_id"`
	Year     int  `json:"year"`
	Capacity *int `json:"capacity"`
	Consumed int  `json:"consumed"`
}

type ledgerItemResponse struct {
	TypeID     int       `json:"type_id"`
	Year       int       `json:"year"`
	Name       string    `json:"name"`
	Capacity   int       `json:"capacity"`
	Assigned   int       `json:"assigned"`
	Available  int       `json:"available"`
	Issued     int       `json:"issued"`
	RangeCount int       `json:"range_count"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toLedgerResponse(items []models.LedgerItem) []ledgerItemResponse {
	out := make([]ledgerItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, ledgerItemResponse(it))
	}
	return out
}

type suggestionResponse struct {
	TypeID               int  `json:"type_id"`
	Year                 int  `json:"year"`
	OfficeID             *int `json:"office_id"`
	Start                int  `json:"start"`
	End                  int  `json:"end"`
	Size                 int  `json:"size"`
	Desired              int  `json:"desired"`
	Clipped              bool `json:"clipped"`
	Capacity             int  `json:"capacity"`
	Assigned             int  `json:"assigned"`
	Available            int  `json:"available"`
	OfficeHasActiveRange bool `json:"office_has_active_range"`
	ActiveRangeExhausted bool `json:"active_range_exhausted"`
}

func toSuggestionResponse(s *models.Suggestion) suggestionResponse {
	return suggestionResponse{
		TypeID:               s.Scope.TypeID,
		Year:                 s.Scope.Year,
		OfficeID:             s.Scope.OfficeID,
		Start:                s.Start,
		End:                  s.End,
		Size:                 s.Size,
		Desired:              s.Desired,
		Clipped:              s.Clipped,
		Capacity:             s.Capacity,
		Assigned:             s.Assigned,
		Available:            s.Available,
		OfficeHasActiveRange: s.OfficeHasActiveRange,
		ActiveRangeExhausted: s.ActiveRangeExhausted,
	}
}

type auditEntryResponse struct {
	ID          int64           `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Entity      string          `json:"entity"`
	Action      string          `json:"action"`
	TypeID      int             `json:"type_id"`
	Year        int             `json:"year"`
	OfficeID    *int            `json:"office_id"`
	ActorID     *int            `json:"actor_id"`
	ReferenceID *int64          `json:"reference_id"`
	Summary     string          `json:"summary"`
	Changes     []models.Change `json:"changes"`
	Detail      string          `json:"detail"`
}

func toAuditResponse(entries []*models.AuditEntry) []auditEntryResponse {
	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntryResponse{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			Entity:      string(e.Entity),
			Action:      string(e.Action),
			TypeID:      e.Scope.TypeID,
			Year:        e.Scope.Year,
			OfficeID:    e.Scope.OfficeID,
			ActorID:     e.ActorID,
			ReferenceID: e.ReferenceID,
			Summary:     e.Summary,
			Changes:     e.Changes,
			Detail:      e.Detail(),
		})
	}
	return out
}
