package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "fundscope/internal/errors"
	mw "fundscope/internal/middleware"
	api "fundscope/pkg/contracts/api/v1"
)

// TrendHandler exposes the per-entity trend estimator.
type TrendHandler struct {
	service      TrendServiceInterface
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewTrendHandler creates a new trend handler
func NewTrendHandler(service TrendServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *TrendHandler {
	return &TrendHandler{
		service:      service,
		validate:     mw.NewValidator(),
		logger:       logger.With(slog.String("component", "trend_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the trend routes
func (h *TrendHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(mw.ContentTypeValidator(h.errorHandler, "application/json"))
	r.Post("/estimate", h.Estimate)
	return r
}

// Estimate handles POST /api/trend/estimate
func (h *TrendHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req api.EstimateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}
	if err := mw.ValidateStruct(h.validate, req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	resp, err := h.service.Estimate(r.Context(), req.ToDomain())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "trend estimated",
		slog.Int("observations", len(req.Observations)),
		slog.Int("entities", len(resp.Lines)),
		slog.String("request_id", mw.GetReqID(r.Context())))

	render.JSON(w, r, api.Response{Status: "success", Data: resp})
}
