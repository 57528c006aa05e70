package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
	"github.com/RomanRochniak/CapstoneGym/internal/kv"
	"github.com/RomanRochniak/CapstoneGym/internal/llm"
	"github.com/RomanRochniak/CapstoneGym/internal/middleware"
	"github.com/RomanRochniak/CapstoneGym/internal/model"
	"github.com/RomanRochniak/CapstoneGym/internal/ratelimit"
	"github.com/RomanRochniak/CapstoneGym/internal/service"
	"github.com/RomanRochniak/CapstoneGym/internal/sitecontext"
	"github.com/RomanRochniak/CapstoneGym/pkg/logger"
)

const testSecret = "handler-test-secret"

type stubResponder struct {
	err   error
	calls int
}

func (s *stubResponder) GenerateResponse(_ context.Context, _ string, _ []llm.Message, _, _ any) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: "Hello from the gym!", Provider: "ollama", Model: "qwen2.5:7b"}, nil
}

type testServer struct {
	t         *testing.T
	db        *gorm.DB
	handler   http.Handler
	responder *stubResponder
}

func newTestServer(t *testing.T, chatLimit int) *testServer {
	t.Helper()
	responder := &stubResponder{}
	s := newTestServerWith(t, chatLimit, responder)
	s.responder = responder
	return s
}

func newTestServerWith(t *testing.T, chatLimit int, responder service.Responder) *testServer {
	t.Helper()
	gdb, err := db.Open(db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(gdb))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	require.NoError(t, gdb.Create(&model.User{ID: 1, Username: "rosha"}).Error)
	require.NoError(t, gdb.Create(&model.User{ID: 2, Username: "other"}).Error)

	log := logger.Nop()
	svc := service.NewChatService(
		db.NewConversationStore(gdb),
		sitecontext.NewBuilder(db.NewCatalogStore(gdb)),
		responder,
		nil,
		log,
	)

	router := NewRouter(RouterConfig{
		JWTSecret:          testSecret,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
		ChatLimiter:        ratelimit.New(kv.NewMemoryStore(time.Minute), chatLimit, time.Minute),
		Logger:             log,
	}, Handlers{
		Health:   NewHealthHandler(gdb, nil),
		Chat:     NewChatHandler(svc, log),
		Sessions: NewSessionHandler(svc, log),
	})

	return &testServer{t: t, db: gdb, handler: router}
}

func (s *testServer) do(method, path string, userID uint, body string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := middleware.IssueToken(testSecret, userID, "", time.Hour)
		require.NoError(s.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) count(m any) int64 {
	s.t.Helper()
	var n int64
	require.NoError(s.t, s.db.Model(m).Count(&n).Error)
	return n
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestChat_NewSession(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"How do I build muscle?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.SessionID)
	assert.Equal(t, "Hello from the gym!", resp.Response)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, "qwen2.5:7b", resp.Model)
	require.NotNil(t, resp.Suggestions)
	require.NotNil(t, resp.Suggestions.GoalDetected)
	assert.Equal(t, model.GoalMuscleGain, *resp.Suggestions.GoalDetected)

	assert.Equal(t, int64(1), s.count(&model.ChatSession{}))
	assert.Equal(t, int64(2), s.count(&model.ChatMessage{}))
}

func TestChat_ResponseShape(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, key := range []string{"session_id", "response", "provider", "model", "suggestions"} {
		assert.Contains(t, raw, key)
	}
	assert.JSONEq(t,
		`{"goal_detected":null,"recommended_trainers":[],"recommended_programs":[],"membership":null}`,
		string(raw["suggestions"]))
}

func TestChat_Timeout(t *testing.T) {
	s := newTestServer(t, 12)
	s.responder.err = fmt.Errorf("ollama: %w", llm.ErrTimeout)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, int64(1), s.count(&model.ChatSession{}))
	assert.Equal(t, int64(1), s.count(&model.ChatMessage{}))

	var msg model.ChatMessage
	require.NoError(t, s.db.First(&msg).Error)
	assert.Equal(t, model.RoleUser, msg.Role)
}

func TestChat_ForeignOrInactiveSession(t *testing.T) {
	s := newTestServer(t, 12)

	foreign := model.ChatSession{UserID: 2, IsActive: true}
	require.NoError(t, s.db.Create(&foreign).Error)
	inactive := model.ChatSession{UserID: 1, IsActive: true}
	require.NoError(t, s.db.Create(&inactive).Error)
	require.NoError(t, s.db.Model(&inactive).Update("is_active", false).Error)

	for _, id := range []int64{int64(foreign.ID), int64(inactive.ID), 12345, -1} {
		rec := s.do(http.MethodPost, "/api/ai/chat/", 1, fmt.Sprintf(`{"message":"hi","session_id":%d}`, id))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Session not found", errorOf(t, rec))
	}

	assert.Equal(t, int64(0), s.count(&model.ChatMessage{}))
	assert.Zero(t, s.responder.calls)
}

func TestChat_SessionIDAsString(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var first model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	rec = s.do(http.MethodPost, "/api/ai/chat/", 1, fmt.Sprintf(`{"message":"again","session_id":"%d"}`, first.SessionID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var second model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, int64(1), s.count(&model.ChatSession{}))
	assert.Equal(t, int64(4), s.count(&model.ChatMessage{}))
}

func TestChat_LongMessageAccepted(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"`+strings.Repeat("a", 4001)+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), s.count(&model.ChatMessage{}))
}

func TestChat_InvalidJSON(t *testing.T) {
	s := newTestServer(t, 12)

	for _, body := range []string{
		`{not json`,
		`[]`,
		`{"message":"hi","session_id":"abc"}`,
		`{"message":"hi","session_id":1.5}`,
		`{"message":"hi"} not json`,
		`{"message":"hi"}{"message":"again"}`,
		``,
	} {
		rec := s.do(http.MethodPost, "/api/ai/chat/", 1, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Invalid JSON", errorOf(t, rec), body)
	}

	assert.Equal(t, int64(0), s.count(&model.ChatSession{}))
	assert.Equal(t, int64(0), s.count(&model.ChatMessage{}))
}

func TestChat_EmptyMessage(t *testing.T) {
	s := newTestServer(t, 12)

	for _, body := range []string{`{"message":"   "}`, `{}`, `{"message":null}`, `null`} {
		rec := s.do(http.MethodPost, "/api/ai/chat/", 1, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Message is required", errorOf(t, rec), body)
	}
	assert.Equal(t, int64(0), s.count(&model.ChatSession{}))
}

func TestChat_BodyTooLarge(t *testing.T) {
	s := newTestServer(t, 12)

	body := `{"message":"` + strings.Repeat("a", middleware.MaxBodyBytes) + `"}`
	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestChat_RateLimited(t *testing.T) {
	s := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Rate limit exceeded. Please slow down.", errorOf(t, rec))

	// Invalid bodies are rejected by the limiter before parsing.
	rec = s.do(http.MethodPost, "/api/ai/chat/", 1, `{not json`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = s.do(http.MethodPost, "/api/ai/chat/", 2, `{"message":"hi"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChat_Unauthenticated(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 0, `{"message":"hi"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, int64(0), s.count(&model.ChatSession{}))
}

func TestChat_ProviderFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantPrefix string
	}{
		{"quota", &llm.StatusError{Provider: "gemini", StatusCode: 429}, http.StatusTooManyRequests, "AI service quota exceeded"},
		{"rejected", &llm.StatusError{Provider: "gemini", StatusCode: 400, Body: "bad  \n request"}, http.StatusBadGateway, "AI service rejected the request: bad request"},
		{"auth", &llm.StatusError{Provider: "gemini", StatusCode: 401}, http.StatusBadGateway, "AI service authentication failed"},
		{"forbidden", &llm.StatusError{Provider: "gemini", StatusCode: 403}, http.StatusBadGateway, "AI service access denied"},
		{"model", &llm.StatusError{Provider: "ollama", StatusCode: 404}, http.StatusBadGateway, "AI model not found"},
		{"upstream", &llm.StatusError{Provider: "ollama", StatusCode: 503}, http.StatusBadGateway, "AI service upstream error"},
		{"other status", &llm.StatusError{Provider: "ollama", StatusCode: 418}, http.StatusBadGateway, "AI service request failed"},
		{"config", llm.ErrMissingAPIKey, http.StatusServiceUnavailable, "AI service unavailable"},
		{"unknown", errors.New("ollama: dial tcp: connection refused"), http.StatusServiceUnavailable, "AI service unavailable. Try again later. (ollama: dial tcp: connection refused)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, 12)
			s.responder.err = tt.err

			rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.True(t, strings.HasPrefix(errorOf(t, rec), tt.wantPrefix), errorOf(t, rec))
			assert.Equal(t, int64(1), s.count(&model.ChatMessage{}))
		})
	}
}

func TestChat_ProviderFailuresThroughService(t *testing.T) {
	unreachable, err := llm.NewGeminiProvider("http://127.0.0.1:1", "secret-gemini-key", "gemini-1.5-flash", time.Second)
	require.NoError(t, err)

	tests := []struct {
		name       string
		provider   llm.Provider
		wantPrefix string
	}{
		{"missing key", llm.Unconfigured(llm.ProviderOpenAI), "AI service unavailable. Try again later. (provider is not configured)"},
		{"unreachable", unreachable, "AI service unavailable. Try again later. (gemini:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := llm.NewService(tt.provider, kv.NewMemoryStore(time.Minute), time.Minute, logger.Nop())
			s := newTestServerWith(t, 12, svc)

			rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)

			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
			msg := errorOf(t, rec)
			assert.True(t, strings.HasPrefix(msg, tt.wantPrefix), msg)
			assert.NotContains(t, msg, "secret-gemini-key")
			assert.Equal(t, int64(1), s.count(&model.ChatMessage{}))
		})
	}
}

func TestSessions_ListMessagesClose(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodPost, "/api/ai/chat/", 1, `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var chat model.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))

	rec = s.do(http.MethodGet, "/api/ai/sessions/", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list model.ListSessionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, chat.SessionID, list.Sessions[0].ID)

	path := fmt.Sprintf("/api/ai/sessions/%d/messages/", chat.SessionID)
	rec = s.do(http.MethodGet, path, 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs model.ListMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, model.RoleUser, msgs.Messages[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs.Messages[1].Role)

	rec = s.do(http.MethodGet, path, 2, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/ai/sessions/abc/messages/", 1, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	closePath := fmt.Sprintf("/api/ai/sessions/%d/", chat.SessionID)
	rec = s.do(http.MethodDelete, closePath, 2, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodDelete, closePath, 1, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/ai/sessions/", 1, "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Sessions)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 12)

	rec := s.do(http.MethodGet, "/health", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/ready", 0, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}
