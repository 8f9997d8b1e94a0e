package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "fundscope/internal/errors"
	"fundscope/internal/filter"
	mw "fundscope/internal/middleware"
	"fundscope/internal/services"
	api "fundscope/pkg/contracts/api/v1"
	"fundscope/pkg/contracts/domain"
)

// Content types of the export formats.
var exportContentTypes = map[string]string{
	services.FormatCSV:  "text/csv; charset=utf-8",
	services.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	services.FormatJSON: "application/json",
}

// DashboardHandler serves reports, sections and exports.
type DashboardHandler struct {
	service      DashboardServiceInterface
	validate     *validator.Validate
	params       *mw.QueryParamValidator
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *DashboardHandler {
	return &DashboardHandler{
		service:      service,
		validate:     mw.NewValidator(),
		params:       mw.NewQueryParamValidator(errorHandler),
		logger:       logger.With(slog.String("component", "dashboard_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the dashboard routes
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/", h.GetDashboard)
		r.Get("/options", h.GetOptions)
		r.Get("/layouts", h.GetLayouts)
		r.Get("/metrics", h.GetMetrics)
		r.Get("/predictions", h.GetPredictions)
		r.Get("/sections/{id}", h.GetSection)
	})

	r.Get("/export/{file}", h.Export)

	return r
}

// parseDashboardRequest reads ?layout= and the filter parameters and
// validates them.
func (h *DashboardHandler) parseDashboardRequest(r *http.Request) (string, filter.Selection, error) {
	q := r.URL.Query()
	sel, err := filter.FromQuery(q)
	if err != nil {
		return "", filter.Selection{}, err
	}

	req := api.DashboardRequest{
		Layout: strings.TrimSpace(q.Get("layout")),
		Selection: api.SelectionRequest{
			Years:      sel.Years,
			Rounds:     sel.Rounds,
			Locations:  sel.Locations,
			Industries: sel.Industries,
			MinAmount:  sel.MinAmount,
			MaxAmount:  sel.MaxAmount,
		},
	}
	if err := mw.ValidateStruct(h.validate, req); err != nil {
		return "", filter.Selection{}, err
	}
	return req.Layout, sel, nil
}

// GetDashboard handles GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	layout, sel, err := h.parseDashboardRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	rep, err := h.service.Dashboard(r.Context(), layout, sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "dashboard served",
		slog.String("layout", rep.Layout),
		slog.Int("sections", len(rep.Sections)),
		slog.String("request_id", mw.GetReqID(r.Context())))

	render.JSON(w, r, api.Response{Status: "success", Data: rep})
}

// GetOptions handles GET /api/dashboard/options
func (h *DashboardHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.service.Options(r.Context())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Response{Status: "success", Data: opts})
}

// GetLayouts handles GET /api/dashboard/layouts
func (h *DashboardHandler) GetLayouts(w http.ResponseWriter, r *http.Request) {
	layouts := h.service.Layouts()
	count := len(layouts)
	render.JSON(w, r, api.Response{Status: "success", Data: layouts, Count: &count})
}

// GetMetrics handles GET /api/dashboard/metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	_, sel, err := h.parseDashboardRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	m, err := h.service.Metrics(r.Context(), sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Response{Status: "success", Data: m})
}

// GetPredictions handles GET /api/dashboard/predictions
func (h *DashboardHandler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	_, sel, err := h.parseDashboardRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	offset, ok := h.params.ValidateInt(w, r, "offset", 0, math.MaxInt32, 0)
	if !ok {
		return
	}
	// 0 returns every row
	limit, ok := h.params.ValidateInt(w, r, "limit", 0, maxPredictionPage, 0)
	if !ok {
		return
	}

	p, err := h.service.Predictions(r.Context(), sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// count is the full row count so clients can page
	count := len(p.Rows)
	page := *p
	page.Rows = pageRows(p.Rows, offset, limit)
	render.JSON(w, r, api.Response{Status: "success", Data: page, Count: &count})
}

// maxPredictionPage caps ?limit= on the predictions table.
const maxPredictionPage = 10000

func pageRows(rows []domain.PredictionRow, offset, limit int) []domain.PredictionRow {
	if offset >= len(rows) {
		return []domain.PredictionRow{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// GetSection handles GET /api/dashboard/sections/{id}
func (h *DashboardHandler) GetSection(w http.ResponseWriter, r *http.Request) {
	layout, sel, err := h.parseDashboardRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	id := chi.URLParam(r, "id")
	if err := mw.ValidateStruct(h.validate, api.SectionRequest{Section: id}); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	sec, err := h.service.Section(r.Context(), layout, id, sel)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.Response{Status: "success", Data: sec})
}

// Export handles GET /api/dashboard/export/{section}.{csv|xlsx|json}. The
// section "all" exports every section of the layout as xlsx or json.
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	file := chi.URLParam(r, "file")
	ext := path.Ext(file)
	id, format := strings.TrimSuffix(file, ext), strings.TrimPrefix(ext, ".")

	req := api.ExportRequest{Format: format}
	req.Section = id
	if err := mw.ValidateStruct(h.validate, req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	layout, sel, err := h.parseDashboardRequest(r)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	// buffered so a failure can still be reported as a problem document
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), &buf, layout, id, format, sel); err != nil {
		if errors.Is(err, services.ErrInvalidExport) {
			err = apierrors.ErrValidation("file", err.Error())
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}

	name := id
	if layout != "" {
		name = layout + "-" + id
	}
	w.Header().Set("Content-Type", exportContentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write interrupted",
			slog.String("error", err.Error()),
			slog.String("file", file))
	}
}
