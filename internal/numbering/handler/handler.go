package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"folio/internal/numbering/models"
	"folio/internal/numbering/service"
	"folio/internal/platform/middleware"
	dErrors "folio/pkg/domain-errors"
	"folio/pkg/platform/httputil"
	"folio/pkg/platform/middleware/auth"
	"folio/pkg/platform/middleware/metadata"
	request "folio/pkg/platform/middleware/request"
	"folio/pkg/requestcontext"
)

// Service defines the numbering operations exposed over HTTP.
type Service interface {
	ConsumeNextNumber(ctx context.Context, req service.ConsumeRequest) (*models.AllocatedNumber, error)
	GetActiveRange(ctx context.Context, req service.ConsumeRequest) (*models.Range, error)
	OpenOrUpdateRange(ctx context.Context, in models.RangeInput, actor *int) (*models.Range, error)
	CloseRange(ctx context.Context, id int64, actor *int) (*models.Range, error)
	DeleteRange(ctx context.Context, id int64, actor *int) error
	SetQuota(ctx context.Context, key models.QuotaKey, capacity int, actor *int) (*models.QuotaChange, error)
	DeleteQuota(ctx context.Context, key models.QuotaKey, actor *int) error
	GetCapacity(ctx context.Context, key models.QuotaKey) (*int, error)
	GetConsumed(ctx context.Context, key models.QuotaKey, excludeRangeID *int64) (int, error)
	SuggestRange(ctx context.Context, req service.SuggestRequest) (*models.Suggestion, error)
	ListRanges(ctx context.Context) ([]*models.Range, error)
	ListAuditTrail(ctx context.Context, limit int) ([]*models.AuditEntry, error)
	ListQuotaLedger(ctx context.Context) ([]models.LedgerItem, error)
}

// Handler serves the numbering endpoints.
type Handler struct {
	logger       *slog.Logger
	numbering    Service
	latency      middleware.LatencyObserver
	jwtValidator auth.JWTValidator
	timeout      time.Duration
}

// New creates a numbering Handler. latency may be nil.
func New(
	numbering Service,
	logger *slog.Logger,
	latency middleware.LatencyObserver,
	jwtValidator auth.JWTValidator,
	timeout time.Duration) *Handler {
	return &Handler{
		logger:       logger,
		numbering:    numbering,
		latency:      latency,
		jwtValidator: jwtValidator,
		timeout:      timeout,
	}
}

// Register registers the numbering routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	numberingRouter := chi.NewRouter()
	numberingRouter.Use(request.Recovery(h.logger))
	numberingRouter.Use(request.RequestID)
	numberingRouter.Use(metadata.ClientMetadata)
	numberingRouter.Use(request.Logger(h.logger))
	if h.timeout > 0 {
		numberingRouter.Use(request.Timeout(h.timeout))
	}
	numberingRouter.Use(request.ContentTypeJSON)
	if h.latency != nil {
		numberingRouter.Use(middleware.LatencyMiddleware(h.latency))
	}
	numberingRouter.Use(auth.RequireAuth(h.jwtValidator, h.logger))

	numberingRouter.Post("/consume", h.handleConsume)
	numberingRouter.Get("/ranges", h.handleListRanges)
	numberingRouter.Post("/ranges", h.handleOpenRange)
	numberingRouter.Get("/ranges/active", h.handleActiveRange)
	numberingRouter.Put("/ranges/{id}", h.handleUpdateRange)
	numberingRouter.Post("/ranges/{id}/close", h.handleCloseRange)
	numberingRouter.Delete("/ranges/{id}", h.handleDeleteRange)
	numberingRouter.Get("/quotas", h.handleLedger)
	numberingRouter.Put("/quotas/{type}/{year}", h.handleSetQuota)
	numberingRouter.Delete("/quotas/{type}/{year}", h.handleDeleteQuota)
	numberingRouter.Get("/quotas/{type}/{year}/balance", h.handleBalance)
	numberingRouter.Get("/suggestion", h.handleSuggestion)
	numberingRouter.Get("/audit", h.handleAudit)

	r.Mount("/numbering", numberingRouter)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), "numbering request failed",
			"operation", op,
			"request_id", request.GetRequestID(r.Context()),
			"error", err.Error(),
		)
	}
	httputil.WriteErrorWithReason(w, err, models.Reason)
}

func (h *Handler) handleConsume(w http.ResponseWriter, r *http.Request) {
	var req consumeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "consume", err)
		return
	}
	number, err := h.numbering.ConsumeNextNumber(r.Context(), service.ConsumeRequest{
		TypeID:   req.TypeID,
		Year:     req.Year,
		OfficeID: req.OfficeID,
	})
	if err != nil {
		h.writeError(w, r, "consume", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toNumberResponse(number))
}

func (h *Handler) handleListRanges(w http.ResponseWriter, r *http.Request) {
	ranges, err := h.numbering.ListRanges(r.Context())
	if err != nil {
		h.writeError(w, r, "list ranges", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"ranges": toRangeResponses(ranges)})
}

func (h *Handler) handleOpenRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "open range", err)
		return
	}
	opened, err := h.numbering.OpenOrUpdateRange(r.Context(), req.toInput(0), requestcontext.ActorIDPtr(r.Context()))
	if err != nil {
		h.writeError(w, r, "open range", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRangeResponse(opened))
}

func (h *Handler) handleUpdateRange(w http.ResponseWriter, r *http.Request) {
	id, err := rangeIDParam(r)
	if err != nil {
		h.writeError(w, r, "update range", err)
		return
	}
	var req rangeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "update range", err)
		return
	}
	updated, err := h.numbering.OpenOrUpdateRange(r.Context(), req.toInput(id), requestcontext.ActorIDPtr(r.Context()))
	if err != nil {
		h.writeError(w, r, "update range", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRangeResponse(updated))
}

func (h *Handler) handleCloseRange(w http.ResponseWriter, r *http.Request) {
	id, err := rangeIDParam(r)
	if err != nil {
		h.writeError(w, r, "close range", err)
		return
	}
	closed, err := h.numbering.CloseRange(r.Context(), id, requestcontext.ActorIDPtr(r.Context()))
	if err != nil {
		h.writeError(w, r, "close range", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRangeResponse(closed))
}

func (h *Handler) handleDeleteRange(w http.ResponseWriter, r *http.Request) {
	id, err := rangeIDParam(r)
	if err != nil {
		h.writeError(w, r, "delete range", err)
		return
	}
	if err := h.numbering.DeleteRange(r.Context(), id, requestcontext.ActorIDPtr(r.Context())); err != nil {
		h.writeError(w, r, "delete range", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleActiveRange(w http.ResponseWriter, r *http.Request) {
	typeID, err := requiredInt(r, "type_id")
	if err != nil {
		h.writeError(w, r, "active range", err)
		return
	}
	year, err := optionalInt(r, "year")
	if err != nil {
		h.writeError(w, r, "active range", err)
		return
	}
	office, err := optionalInt(r, "office_id")
	if err != nil {
		h.writeError(w, r, "active range", err)
		return
	}
	active, err := h.numbering.GetActiveRange(r.Context(), service.ConsumeRequest{TypeID: typeID, Year: year, OfficeID: office})
	if err != nil {
		h.writeError(w, r, "active range", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRangeResponse(active))
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	items, err := h.numbering.ListQuotaLedger(r.Context())
	if err != nil {
		h.writeError(w, r, "quota ledger", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"quotas": toLedgerResponse(items)})
}

func (h *Handler) handleSetQuota(w http.ResponseWriter, r *http.Request) {
	key, err := quotaKeyParam(r)
	if err != nil {
		h.writeError(w, r, "set quota", err)
		return
	}
	var req quotaRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, "set quota", err)
		return
	}
	if req.Capacity == nil {
		h.writeError(w, r, "set quota", dErrors.New(dErrors.CodeBadRequest, "capacity is required"))
		return
	}
	change, err := h.numbering.SetQuota(r.Context(), key, *req.Capacity, requestcontext.ActorIDPtr(r.Context()))
	if err != nil {
		h.writeError(w, r, "set quota", err)
		return
	}
	status := http.StatusOK
	if change.Created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, toQuotaResponse(change))
}

func (h *Handler) handleDeleteQuota(w http.ResponseWriter, r *http.Request) {
	key, err := quotaKeyParam(r)
	if err != nil {
		h.writeError(w, r, "delete quota", err)
		return
	}
	if err := h.numbering.DeleteQuota(r.Context(), key, requestcontext.ActorIDPtr(r.Context())); err != nil {
		h.writeError(w, r, "delete quota", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	key, err := quotaKeyParam(r)
	if err != nil {
		h.writeError(w, r, "quota balance", err)
		return
	}
	exclude, err := optionalInt64(r, "exclude_range_id")
	if err != nil {
		h.writeError(w, r, "quota balance", err)
		return
	}
	capacity, err := h.numbering.GetCapacity(r.Context(), key)
	if err != nil {
		h.writeError(w, r, "quota balance", err)
		return
	}
	consumed, err := h.numbering.GetConsumed(r.Context(), key, exclude)
	if err != nil {
		h.writeError(w, r, "quota balance", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, balanceResponse{
		TypeID:   key.TypeID,
		Year:     key.Year,
		Capacity: capacity,
		Consumed: consumed,
	})
}

func (h *Handler) handleSuggestion(w http.ResponseWriter, r *http.Request) {
	typeID, err := requiredInt(r, "type_id")
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	year, err := requiredInt(r, "year")
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	office, err := optionalInt(r, "office_id")
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	size, err := optionalInt(r, "size")
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	exclude, err := optionalInt64(r, "exclude_range_id")
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	req := service.SuggestRequest{TypeID: typeID, Year: year, OfficeID: office, ExcludeRangeID: exclude}
	if size != nil {
		req.DesiredSize = *size
	}
	suggestion, err := h.numbering.SuggestRange(r.Context(), req)
	if err != nil {
		h.writeError(w, r, "suggest range", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toSuggestionResponse(suggestion))
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := optionalInt(r, "limit")
	if err != nil {
		h.writeError(w, r, "audit trail", err)
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}
	entries, err := h.numbering.ListAuditTrail(r.Context(), n)
	if err != nil {
		h.writeError(w, r, "audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"entries": toAuditResponse(entries)})
}

func badParam(name, raw string) error {
	return dErrors.New(dErrors.CodeBadRequest, "invalid "+name+" "+strconv.Quote(raw))
}

func rangeIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badParam("range id", raw)
	}
	return id, nil
}

func quotaKeyParam(r *http.Request) (models.QuotaKey, error) {
	rawType, rawYear := chi.URLParam(r, "type"), chi.URLParam(r, "year")
	typeID, err := strconv.Atoi(rawType)
	if err != nil {
		return models.QuotaKey{}, badParam("type", rawType)
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return models.QuotaKey{}, badParam("year", rawYear)
	}
	return models.QuotaKey{TypeID: typeID, Year: year}, nil
}

func requiredInt(r *http.Request, name string) (int, error) {
	v, err := optionalInt(r, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, name+" is required")
	}
	return *v, nil
}

func optionalInt(r *http.Request, name string) (*int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, badParam(name, raw)
	}
	return &v, nil
}

func optionalInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badParam(name, raw)
	}
	return &v, nil
}
