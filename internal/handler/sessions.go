package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/RomanRochniak/CapstoneGym/internal/middleware"
	"github.com/RomanRochniak/CapstoneGym/internal/service"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
)

// SessionHandler exposes the caller's chat sessions.
type SessionHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(svc *service.ChatService, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/ai/sessions/
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.ListSessions(ctx, middleware.GetUserID(ctx))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Messages handles GET /api/ai/sessions/{sessionID}/messages/
func (h *SessionHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := middleware.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgSessionNotFound)
		return
	}

	resp, err := h.service.Messages(ctx, middleware.GetUserID(ctx), sessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Close handles DELETE /api/ai/sessions/{sessionID}/
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sessionID, err := middleware.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusNotFound, msgSessionNotFound)
		return
	}

	if err := h.service.CloseSession(ctx, middleware.GetUserID(ctx), sessionID); err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := classifyError(err)
	if !f.expected {
		middleware.RequestLogger(r.Context(), h.logger).Error("session request failed", zap.Error(err))
	}
	writeError(w, f.status, f.message)
}
