package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"folio/internal/numbering/handler/mocks"
	"folio/internal/numbering/models"
	"folio/internal/numbering/service"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/middleware/auth"
	"folio/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/numbering-mocks.go -package=mocks Service

const actor = 5

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	if token != "valid" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &auth.JWTClaims{ActorID: actor}, nil
}

type NumberingHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestNumberingHandlerSuite(t *testing.T) {
	suite.Run(t, new(NumberingHandlerSuite))
}

func (s *NumberingHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger, nil, stubValidator{}, 0).Register(s.router)
}

func (s *NumberingHandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	req := testutil.WithBearer(testutil.NewJSONRequest(s.T(), method, path, body), "valid")
	return testutil.DoRequest(s.router, req)
}

func (s *NumberingHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	return testutil.DecodeJSON[map[string]any](s.T(), w)
}

// matchFunc adapts a predicate to gomock.Matcher.
type matchFunc struct {
	desc string
	fn   func(x any) bool
}

func (m matchFunc) Matches(x any) bool { return m.fn(x) }
func (m matchFunc) String() string     { return m.desc }

func actorMatcher() gomock.Matcher {
	return matchFunc{desc: "authenticated actor", fn: func(x any) bool {
		p, ok := x.(*int)
		return ok && p != nil && *p == actor
	}}
}

// =============================================================================
// Authentication
// =============================================================================

func (s *NumberingHandlerSuite) TestRequiresToken() {
	w := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/numbering/ranges", nil))
	s.Equal(http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(s.router, testutil.WithBearer(
		testutil.NewJSONRequest(s.T(), http.MethodGet, "/numbering/ranges", nil), "forged"))
	s.Equal(http.StatusUnauthorized, w.Code)
}

// =============================================================================
// Allocation
// =============================================================================

func (s *NumberingHandlerSuite) TestConsume() {
	s.Run("returns the issued number", func() {
		office := 3
		s.service.EXPECT().ConsumeNextNumber(gomock.Any(), service.ConsumeRequest{TypeID: 7, OfficeID: &office}).
			Return(&models.AllocatedNumber{
				Number:    42,
				RangeID:   9,
				RangeName: "7-2025-3-1-100",
				Scope:     models.Scope{TypeID: 7, Year: 2025, OfficeID: &office},
				Remaining: 58,
			}, nil)

		w := s.do(http.MethodPost, "/numbering/consume", map[string]any{"type_id": 7, "office_id": 3})
		s.Equal(http.StatusOK, w.Code)
		body := s.decode(w)
		s.EqualValues(42, body["number"])
		s.EqualValues(58, body["remaining"])
		s.EqualValues(2025, body["year"])
	})

	s.Run("exhaustion maps to 409 with a reason", func() {
		s.service.EXPECT().ConsumeNextNumber(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(models.ErrRangeExhausted, dErrors.CodeExhausted, "range is exhausted"))

		w := s.do(http.MethodPost, "/numbering/consume", map[string]any{"type_id": 7})
		testutil.AssertError(s.T(), w, http.StatusConflict, "exhausted", "range_exhausted")
	})

	s.Run("malformed body is a bad request", func() {
		req := httptest.NewRequest(http.MethodPost, "/numbering/consume", strings.NewReader(`{"type_id":`))
		req.Header.Set("Content-Type", "application/json")
		w := testutil.DoRequest(s.router, testutil.WithBearer(req, "valid"))
		testutil.AssertError(s.T(), w, http.StatusBadRequest, "bad_request", "")
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().ConsumeNextNumber(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInternal, "consume next number failed"))

		w := s.do(http.MethodPost, "/numbering/consume", map[string]any{"type_id": 7})
		s.Equal(http.StatusInternalServerError, w.Code)
		s.NotContains(s.decode(w), "error_description")
	})
}

// =============================================================================
// Range Registry
// =============================================================================

func (s *NumberingHandlerSuite) TestOpenRange() {
	s.service.EXPECT().OpenOrUpdateRange(gomock.Any(), models.RangeInput{
		TypeID: 7, Year: 2025, Start: 1, End: 100, Active: true,
	}, actorMatcher()).Return(&models.Range{ID: 1, TypeID: 7, Year: 2025, Name: "7-2025-G-1-100", Start: 1, End: 100, Cursor: 0, Active: true}, nil)

	w := s.do(http.MethodPost, "/numbering/ranges", map[string]any{"type_id": 7, "year": 2025, "start": 1, "end": 100, "active": true})
	s.Equal(http.StatusCreated, w.Code)
	body := s.decode(w)
	s.EqualValues(1, body["id"])
	s.EqualValues(100, body["remaining"])
	s.Nil(body["office_id"])
}

func (s *NumberingHandlerSuite) TestUpdateRange() {
	s.Run("passes the path id", func() {
		s.service.EXPECT().OpenOrUpdateRange(gomock.Any(), matchFunc{desc: "range 12 input", fn: func(x any) bool {
			in, ok := x.(models.RangeInput)
			return ok && in.ID == 12 && in.End == 150
		}}, actorMatcher()).Return(&models.Range{ID: 12, TypeID: 7, Year: 2025, Start: 1, End: 150}, nil)

		w := s.do(http.MethodPut, "/numbering/ranges/12", map[string]any{"type_id": 7, "year": 2025, "start": 1, "end": 150})
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("overlap maps to 422", func() {
		s.service.EXPECT().OpenOrUpdateRange(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(models.ErrOverlap, dErrors.CodeInvariantViolation, "interval overlaps"))

		w := s.do(http.MethodPut, "/numbering/ranges/12", map[string]any{"type_id": 7, "year": 2025, "start": 1, "end": 150})
		s.Equal(http.StatusUnprocessableEntity, w.Code)
		s.Equal("overlap", s.decode(w)["reason"])
	})

	s.Run("non-numeric id is a bad request", func() {
		w := s.do(http.MethodPut, "/numbering/ranges/abc", map[string]any{"type_id": 7})
		s.Equal(http.StatusBadRequest, w.Code)
	})
}

func (s *NumberingHandlerSuite) TestCloseAndDeleteRange() {
	s.service.EXPECT().CloseRange(gomock.Any(), int64(4), actorMatcher()).
		Return(&models.Range{ID: 4, TypeID: 7, Year: 2025, Start: 1, End: 10}, nil)
	w := s.do(http.MethodPost, "/numbering/ranges/4/close", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Equal(false, s.decode(w)["active"])

	s.service.EXPECT().DeleteRange(gomock.Any(), int64(4), actorMatcher()).
		Return(dErrors.Wrap(models.ErrRangeInUse, dErrors.CodeInvariantViolation, "range in use"))
	w = s.do(http.MethodDelete, "/numbering/ranges/4", nil)
	s.Equal(http.StatusUnprocessableEntity, w.Code)

	s.service.EXPECT().DeleteRange(gomock.Any(), int64(5), actorMatcher()).Return(nil)
	w = s.do(http.MethodDelete, "/numbering/ranges/5", nil)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *NumberingHandlerSuite) TestActiveRange() {
	year := 2024
	s.service.EXPECT().GetActiveRange(gomock.Any(), service.ConsumeRequest{TypeID: 7, Year: &year}).
		Return(&models.Range{ID: 2, TypeID: 7, Year: 2024, Start: 1, End: 10, Cursor: 4, Active: true}, nil)

	w := s.do(http.MethodGet, "/numbering/ranges/active?type_id=7&year=2024", nil)
	s.Equal(http.StatusOK, w.Code)
	s.EqualValues(4, s.decode(w)["issued"])

	w = s.do(http.MethodGet, "/numbering/ranges/active", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

// =============================================================================
// Quota Ledger
// =============================================================================

func (s *NumberingHandlerSuite) TestSetQuota() {
	s.Run("created quota returns 201", func() {
		key := models.QuotaKey{TypeID: 7, Year: 2025}
		s.service.EXPECT().SetQuota(gomock.Any(), key, 3000, actorMatcher()).
			Return(&models.QuotaChange{Quota: &models.Quota{TypeID: 7, Year: 2025, Name: "CUPO-7-2025", Capacity: 3000}, Created: true}, nil)

		w := s.do(http.MethodPut, "/numbering/quotas/7/2025", map[string]any{"capacity": 3000})
		s.Equal(http.StatusCreated, w.Code)
		s.Equal("CUPO-7-2025", s.decode(w)["name"])
	})

	s.Run("missing capacity is a bad request", func() {
		w := s.do(http.MethodPut, "/numbering/quotas/7/2025", map[string]any{})
		s.Equal(http.StatusBadRequest, w.Code)
	})

	s.Run("shrinking below consumed maps to 422", func() {
		s.service.EXPECT().SetQuota(gomock.Any(), gomock.Any(), 120, gomock.Any()).
			Return(nil, dErrors.Wrap(models.ErrQuotaBelowConsumed, dErrors.CodeInvariantViolation, "number 130 already issued"))

		w := s.do(http.MethodPut, "/numbering/quotas/7/2025", map[string]any{"capacity": 120})
		s.Equal(http.StatusUnprocessableEntity, w.Code)
		s.Equal("quota_below_consumed", s.decode(w)["reason"])
	})
}

func (s *NumberingHandlerSuite) TestDeleteQuota() {
	s.service.EXPECT().DeleteQuota(gomock.Any(), models.QuotaKey{TypeID: 7, Year: 2025}, actorMatcher()).Return(nil)
	w := s.do(http.MethodDelete, "/numbering/quotas/7/2025", nil)
	s.Equal(http.StatusNoContent, w.Code)
}

func (s *NumberingHandlerSuite) TestBalance() {
	key := models.QuotaKey{TypeID: 7, Year: 2025}
	capacity := 3000
	exclude := int64(3)
	s.service.EXPECT().GetCapacity(gomock.Any(), key).Return(&capacity, nil)
	s.service.EXPECT().GetConsumed(gomock.Any(), key, &exclude).Return(501, nil)

	w := s.do(http.MethodGet, "/numbering/quotas/7/2025/balance?exclude_range_id=3", nil)
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.EqualValues(3000, body["capacity"])
	s.EqualValues(501, body["consumed"])
}

func (s *NumberingHandlerSuite) TestLedger() {
	s.service.EXPECT().ListQuotaLedger(gomock.Any()).Return([]models.LedgerItem{{TypeID: 7, Year: 2025, Capacity: 100, Assigned: 40, Available: 60}}, nil)

	w := s.do(http.MethodGet, "/numbering/quotas", nil)
	s.Equal(http.StatusOK, w.Code)
	quotas := s.decode(w)["quotas"].([]any)
	s.Len(quotas, 1)
	s.EqualValues(60, quotas[0].(map[string]any)["available"])
}

// =============================================================================
// Planner and reports
// =============================================================================

func (s *NumberingHandlerSuite) TestSuggestion() {
	s.service.EXPECT().SuggestRange(gomock.Any(), service.SuggestRequest{TypeID: 7, Year: 2025, DesiredSize: 250}).
		Return(&models.Suggestion{Scope: models.Scope{TypeID: 7, Year: 2025}, Start: 1, End: 200, Size: 200, Desired: 250, Clipped: true}, nil)

	w := s.do(http.MethodGet, "/numbering/suggestion?type_id=7&year=2025&size=250", nil)
	s.Equal(http.StatusOK, w.Code)
	body := s.decode(w)
	s.EqualValues(200, body["end"])
	s.Equal(true, body["clipped"])

	w = s.do(http.MethodGet, "/numbering/suggestion?type_id=7&year=soon", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *NumberingHandlerSuite) TestAudit() {
	ref := int64(1)
	s.service.EXPECT().ListAuditTrail(gomock.Any(), 10).Return([]*models.AuditEntry{{
		ID:          3,
		Entity:      models.EntityRange,
		Action:      models.ActionChange,
		Scope:       models.Scope{TypeID: 7, Year: 2025},
		ReferenceID: &ref,
		Summary:     "changed range",
		Changes:     []models.Change{{Field: "interval", Old: "1-100", New: "1-150"}},
	}}, nil)

	w := s.do(http.MethodGet, "/numbering/audit?limit=10", nil)
	s.Equal(http.StatusOK, w.Code)
	entries := s.decode(w)["entries"].([]any)
	s.Require().Len(entries, 1)
	entry := entries[0].(map[string]any)
	s.Equal("CHANGE", entry["action"])
	s.Equal("changed range\ninterval: 1-100 -> 1-150", entry["detail"])
}

func (s *NumberingHandlerSuite) TestListRanges() {
	s.service.EXPECT().ListRanges(gomock.Any()).Return([]*models.Range{{ID: 1, Start: 1, End: 10}}, nil)
	w := s.do(http.MethodGet, "/numbering/ranges", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["ranges"].([]any), 1)
}
