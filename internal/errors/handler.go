package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"

	"fundscope/internal/dataset"
	"fundscope/internal/filter"
	"fundscope/internal/infrastructure"
	"fundscope/internal/report"
	"fundscope/internal/trend"
)

// Common error types following RFC 7807
const (
	TypeValidation = "/errors/validation"
	TypeNotFound   = "/errors/not-found"
	TypeRateLimit  = "/errors/rate-limit"
	TypeInternal   = "/errors/internal"
	TypeTimeout    = "/errors/timeout"
)

// Domain-specific error types
const (
	TypeInvalidInput     = "/errors/trend/invalid-input"
	TypeInsufficientData = "/errors/trend/insufficient-data"
	TypeInvalidFilter    = "/errors/filter/invalid"
	TypeUnknownLayout    = "/errors/dashboard/unknown-layout"
	TypeUnknownSection   = "/errors/dashboard/unknown-section"
	TypeDatasetMissing   = "/errors/dataset/not-loaded"
	TypeDatasetColumns   = "/errors/dataset/missing-columns"
	TypeDatasetFormat    = "/errors/dataset/unsupported-format"
	TypeSourceDown       = "/errors/dataset/source-unavailable"
	TypeDatasetTooLarge  = "/errors/dataset/too-large"
	TypeWebSocket        = "/errors/websocket/upgrade-failed"
)

// ErrorHandler provides centralized error handling
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError converts any error to RFC 7807 format and responds
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	reqID := middleware.GetReqID(r.Context())
	problem := h.ErrorToProblem(err, r)
	problem.WithExtension("trace_id", reqID)

	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	if h.includeStack && problem.Status >= http.StatusInternalServerError {
		problem.WithExtension("stack", getStackTrace())
	}

	writeProblem(w, problem)
}

// ErrorToProblem converts an error to RFC 7807 Problem Details
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(
			http.StatusGatewayTimeout,
			TypeTimeout,
			"Request Timeout",
			"The request took too long to process and was cancelled",
			path,
		)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return h.apiErrorToProblem(apiErr, r)
	}

	var invalid *trend.InvalidInputError
	if errors.As(err, &invalid) {
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidInput, "Invalid Input", invalid.Error(), path).
			WithExtension("row", invalid.Row).
			WithExtension("entity_id", invalid.EntityID).
			WithExtension("field", invalid.Field)
	}

	var missing *dataset.MissingColumnsError
	if errors.As(err, &missing) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDatasetColumns, "Missing Columns", missing.Error(), path).
			WithExtension("columns", missing.Columns)
	}

	switch {
	case errors.Is(err, trend.ErrInvalidInput):
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidInput, "Invalid Input", err.Error(), path)
	case errors.Is(err, trend.ErrInsufficientData):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeInsufficientData, "Insufficient Data", err.Error(), path)
	case errors.Is(err, filter.ErrInvalidSelection):
		return NewProblemDetails(http.StatusBadRequest, TypeInvalidFilter, "Invalid Filter", err.Error(), path)
	case errors.Is(err, report.ErrUnknownLayout):
		return NewProblemDetails(http.StatusNotFound, TypeUnknownLayout, "Layout Not Found", err.Error(), path)
	case errors.Is(err, report.ErrUnknownSection):
		return NewProblemDetails(http.StatusNotFound, TypeUnknownSection, "Section Not Found", err.Error(), path)
	case errors.Is(err, report.ErrInvalidLayout):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Layout", err.Error(), path)
	case errors.Is(err, dataset.ErrNotLoaded):
		return NewProblemDetails(http.StatusServiceUnavailable, TypeDatasetMissing, "Dataset Not Loaded",
			"No dataset has been loaded yet", path).WithExtension("retry_after", 30)
	case errors.Is(err, dataset.ErrTooLarge):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDatasetTooLarge, "Dataset Too Large", err.Error(), path)
	case errors.Is(err, dataset.ErrUnsupportedFormat), errors.Is(err, dataset.ErrEmptyInput):
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeDatasetFormat, "Unprocessable Dataset", err.Error(), path)
	case errors.Is(err, dataset.ErrInvalidSource):
		return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Source", err.Error(), path)
	case errors.Is(err, infrastructure.ErrCircuitOpen):
		return NewProblemDetails(http.StatusServiceUnavailable, TypeSourceDown, "Source Unavailable", err.Error(), path)
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return h.appErrorToProblem(appErr, r)
	}

	return NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred while processing your request",
		path,
	)
}

// appErrorToProblem covers AppErrors whose cause matched nothing more
// specific above. Config failures keep the generic 500 detail.
func (h *ErrorHandler) appErrorToProblem(appErr *AppError, r *http.Request) *ProblemDetails {
	status := appErr.Type.Status()

	var problem *ProblemDetails
	switch appErr.Type {
	case ErrTypeParsing:
		problem = NewProblemDetails(status, TypeDatasetFormat, "Unprocessable Dataset", appErr.Error(), r.URL.Path)
	case ErrTypeStorage:
		problem = NewProblemDetails(status, TypeSourceDown, "Source Unavailable", appErr.Message, r.URL.Path).
			WithExtension("retry_after", 30)
	case ErrTypeValidation:
		problem = NewProblemDetails(status, TypeValidation, "Invalid Input", appErr.Error(), r.URL.Path)
	default:
		problem = NewProblemDetails(status, TypeInternal, "Internal Server Error",
			"An unexpected error occurred while processing your request", r.URL.Path)
	}
	problem.WithExtension("error_type", string(appErr.Type))
	if src, ok := appErr.Context["source"]; ok {
		problem.WithExtension("source", src)
	}
	return problem
}

func (h *ErrorHandler) apiErrorToProblem(apiErr *APIError, r *http.Request) *ProblemDetails {
	problemType := TypeInternal
	switch apiErr.ErrorCode {
	case "VALIDATION_FAILED", "INVALID_REQUEST":
		problemType = TypeValidation
	case "RATE_LIMIT_EXCEEDED":
		problemType = TypeRateLimit
	case "WEBSOCKET_UPGRADE_FAILED":
		problemType = TypeWebSocket
	}

	problem := NewProblemDetails(
		apiErr.StatusCode,
		problemType,
		http.StatusText(apiErr.StatusCode),
		apiErr.Message,
		r.URL.Path,
	).WithExtension("error_code", apiErr.ErrorCode)

	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}

	return problem
}

// HandlePanic recovers from panics and returns RFC 7807 error
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("request_id", reqID),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", string(debug.Stack())),
	)

	problem := NewProblemDetails(
		http.StatusInternalServerError,
		TypeInternal,
		"Internal Server Error",
		"An unexpected error occurred",
		r.URL.Path,
	).WithExtension("trace_id", reqID)

	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprintf("%v", recovered))
		problem.WithExtension("stack", getStackTrace())
	}

	writeProblem(w, problem)
}

// NotFound returns a standard 404 error
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusNotFound,
		TypeNotFound,
		"Not Found",
		"The requested resource was not found",
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	writeProblem(w, problem)
}

// MethodNotAllowed returns a standard 405 error
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	problem := NewProblemDetails(
		http.StatusMethodNotAllowed,
		TypeValidation,
		"Method Not Allowed",
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method),
		r.URL.Path,
	).WithExtension("trace_id", middleware.GetReqID(r.Context()))

	writeProblem(w, problem)
}

func getStackTrace() string {
	buf := make([]byte, 1024*8)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// RecoveryMiddleware turns panics into RFC 7807 responses.
func RecoveryMiddleware(handler *ErrorHandler) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					handler.HandlePanic(w, r, rec)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
