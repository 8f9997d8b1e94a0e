package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "fundscope/internal/errors"
	mw "fundscope/internal/middleware"
	api "fundscope/pkg/contracts/api/v1"
)

// DatasetHandler reports and refreshes the dataset in service.
type DatasetHandler struct {
	service      DatasetServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(service DatasetServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DatasetHandler {
	return &DatasetHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "dataset_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/", h.GetStatus)
	r.Post("/reload", h.Reload)
	return r
}

// GetStatus handles GET /api/dataset
func (h *DatasetHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.Response{Status: "success", Data: h.service.Status()})
}

// Reload handles POST /api/dataset/reload
func (h *DatasetHandler) Reload(w http.ResponseWriter, r *http.Request) {
	h.logger.InfoContext(r.Context(), "dataset reload requested",
		slog.String("request_id", mw.GetReqID(r.Context())),
		slog.String("remote_addr", r.RemoteAddr))

	changed, err := h.service.Reload(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, api.Response{
		Status: "success",
		Data:   api.ReloadResponse{Changed: changed, Dataset: h.service.Status()},
	})
}
