package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"fundscope/internal/config"
	apierrors "fundscope/internal/errors"
)

// Handler upgrades /ws requests and attaches the connection to a hub.
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	allowedOrigins []string
	devMode        bool
	errorHandler   *apierrors.ErrorHandler
	logger         *slog.Logger
}

// NewHandler creates the upgrade handler. Browser origins must be listed in
// allowedOrigins, match the request host, or devMode must be set. Rejected
// handshakes are answered as problem details through errorHandler.
func NewHandler(hub *Hub, cfg config.WebSocketConfig, allowedOrigins []string, devMode bool, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *Handler {
	if errorHandler == nil {
		errorHandler = apierrors.NewErrorHandler(logger, false)
	}
	h := &Handler{
		hub:            hub,
		allowedOrigins: allowedOrigins,
		devMode:        devMode,
		errorHandler:   errorHandler,
		logger:         logger.With(slog.String("component", "websocket.handler")),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     h.checkOrigin,
		Error: func(w http.ResponseWriter, r *http.Request, status int, reason error) {
			h.logger.WarnContext(r.Context(), "websocket upgrade rejected",
				slog.Int("status", status),
				slog.String("reason", reason.Error()),
				slog.String("origin", r.Header.Get("Origin")))
			h.errorHandler.HandleError(w, r, apierrors.WebSocketUpgradeError(status, reason))
		},
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// non-browser clients send no origin
	if origin == "" || h.devMode {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP handles GET /ws
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered
		return
	}

	client := NewClient(h.hub, NewConnection(conn), reqID, h.logger)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	h.logger.InfoContext(r.Context(), "websocket client connected",
		slog.String("client_id", client.ID()),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("request_id", reqID))

	go client.WritePump()
	go client.ReadPump()
}
