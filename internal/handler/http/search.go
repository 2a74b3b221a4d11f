package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/autolane/search-service/internal/domain"
	"github.com/autolane/search-service/internal/service"
	"github.com/autolane/search-service/pkg/httputil"
	"github.com/autolane/search-service/pkg/validator"
)

// SearchHandler handles HTTP requests for search endpoints.
type SearchHandler struct {
	service *service.SearchService
	logger  *slog.Logger

	// baseCtx bounds background work spawned by handlers to the application
	// lifetime, so a running reindex stops on shutdown instead of outliving
	// the server.
	baseCtx context.Context
}

// NewSearchHandler creates a new search HTTP handler.
func NewSearchHandler(baseCtx context.Context, svc *service.SearchService, logger *slog.Logger) *SearchHandler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &SearchHandler{
		service: svc,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// --- Request DTOs ---

// SearchRequestBody is the JSON request body for a role-scoped search.
type SearchRequestBody struct {
	UserType    string   `json:"userType" validate:"required,oneof=SELLER BUYER CARRIER AGENT"`
	AccountID   string   `json:"accountId"`
	SearchText  string   `json:"searchText"`
	Page        int      `json:"page" validate:"gte=0"`
	Limit       int      `json:"limit" validate:"gte=0,lte=100"`
	EntityTypes []string `json:"entityTypes" validate:"omitempty,dive,oneof=offer purchase transport"`
	Status      string   `json:"status"`
	Make        string   `json:"make"`
	Model       string   `json:"model"`
	MinYear     *int     `json:"minYear" validate:"omitempty,gte=0"`
	MaxYear     *int     `json:"maxYear" validate:"omitempty,gte=0"`
	MinPrice    *float64 `json:"minPrice" validate:"omitempty,gte=0"`
	MaxPrice    *float64 `json:"maxPrice" validate:"omitempty,gte=0"`
	Location    string   `json:"location"`
}

// IndexEntityRequest is the JSON request body for indexing a single entity.
type IndexEntityRequest struct {
	EntityType string          `json:"entityType" validate:"required,oneof=offer purchase transport"`
	EntityID   string          `json:"entityId" validate:"required"`
	Payload    json.RawMessage `json:"payload" validate:"required"`
}

// BulkIndexRequest is the JSON request body for bulk indexing entities.
type BulkIndexRequest struct {
	Entities []IndexEntityRequest `json:"entities" validate:"required,min=1,max=500,dive"`
}

// --- Handlers ---

// Search handles POST /api/v1/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var body SearchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(body); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if body.MinYear != nil && body.MaxYear != nil && *body.MinYear > *body.MaxYear {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "minYear must not exceed maxYear"},
		})
		return
	}
	if body.MinPrice != nil && body.MaxPrice != nil && *body.MinPrice > *body.MaxPrice {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "minPrice must not exceed maxPrice"},
		})
		return
	}

	req := &domain.SearchRequest{
		UserType:    domain.Role(body.UserType),
		AccountID:   strings.TrimSpace(body.AccountID),
		SearchText:  body.SearchText,
		Page:        body.Page,
		Limit:       body.Limit,
		EntityTypes: body.EntityTypes,
		Status:      body.Status,
		Make:        body.Make,
		Model:       body.Model,
		MinYear:     body.MinYear,
		MaxYear:     body.MaxYear,
		MinPrice:    body.MinPrice,
		MaxPrice:    body.MaxPrice,
		Location:    body.Location,
	}

	result, err := h.service.Search(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}

// Suggest handles GET /api/v1/search/suggest
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := strings.TrimSpace(r.URL.Query().Get("q"))
	if prefix == "" {
		httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": []string{}}})
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 20 {
			limit = l
		}
	}

	suggestions, err := h.service.Suggest(r.Context(), prefix, limit)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"suggestions": suggestions}})
}

// Stats handles GET /api/v1/search/stats
func (h *SearchHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: stats})
}

// IndexEntity handles POST /api/v1/search/index
func (h *SearchHandler) IndexEntity(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req IndexEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	if err := h.service.IndexEntity(r.Context(), req.EntityType, req.EntityID, req.Payload); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{
		"entityType": req.EntityType,
		"entityId":   req.EntityID,
		"status":     "indexed",
	}})
}

// DeleteEntity handles DELETE /api/v1/search/{entityType}/{entityId}
func (h *SearchHandler) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID := chi.URLParam(r, "entityId")

	if err := h.service.DeleteEntity(r.Context(), entityType, entityID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]string{
		"entityType": entityType,
		"entityId":   entityID,
		"status":     "deleted",
	}})
}

// BulkIndex handles POST /api/v1/search/bulk
func (h *SearchHandler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20) // 10MB limit for bulk endpoint

	var req BulkIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	items := make([]service.EntityRef, 0, len(req.Entities))
	for _, e := range req.Entities {
		items = append(items, service.EntityRef{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Payload:    e.Payload,
		})
	}

	if err := h.service.BulkIndexEntities(r.Context(), items); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: map[string]any{"indexed": len(items), "status": "ok"}})
}

// Reindex handles POST /api/v1/search/reindex
//
// The walk runs in the background on the application-lifetime context, not
// the request context: the 202 response must not cancel it, but process
// shutdown must.
func (h *SearchHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx := h.baseCtx
		report, err := h.service.Reindex(ctx)
		if err != nil {
			h.logger.ErrorContext(ctx, "background reindex failed", "error", err)
			return
		}
		h.logger.InfoContext(ctx, "background reindex finished",
			slog.Int("indexed", report.Indexed),
			slog.Int("skipped", report.Skipped),
		)
	}()

	httputil.WriteJSON(w, http.StatusAccepted, httputil.Response{Data: map[string]string{"status": "reindex started"}})
}
