package handler

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/RomanRochniak/CapstoneGym/internal/middleware"
	"github.com/RomanRochniak/CapstoneGym/internal/model"
	"github.com/RomanRochniak/CapstoneGym/internal/service"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
	"github.com/RomanRochniak/CapstoneGym/pkg/metrics"
)

// ChatHandler handles the assistant chat endpoint.
type ChatHandler struct {
	service *service.ChatService
	logger  *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(svc *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		service: svc,
		logger:  log,
	}
}

// Send handles POST /api/ai/chat/
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.ChatRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reply(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		h.reply(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	req.Message = strings.TrimSpace(req.Message)
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		h.reply(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Send(ctx, userID, &req)
	if err != nil {
		f := classifyError(err)
		log := middleware.RequestLogger(ctx, h.logger)
		if f.expected {
			log.Warn("chat request failed", zap.Int("status", f.status), zap.Error(err))
		} else {
			log.Error("chat request failed", zap.Int("status", f.status), zap.Error(err), zap.Stack("stack"))
		}
		h.reply(w, f.status, f.message)
		return
	}

	metrics.RecordChat(http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func (h *ChatHandler) reply(w http.ResponseWriter, status int, message string) {
	metrics.RecordChat(status)
	writeError(w, status, message)
}
