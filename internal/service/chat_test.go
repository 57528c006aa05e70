package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RomanRochniak/CapstoneGym/internal/db"
	"github.com/RomanRochniak/CapstoneGym/internal/llm"
	"github.com/RomanRochniak/CapstoneGym/internal/model"
	"github.com/RomanRochniak/CapstoneGym/internal/sitecontext"
)

type fakeResponder struct {
	reply       string
	err         error
	calls       int
	lastMessage string
	lastHistory []llm.Message
	lastSuggest any
}

func (f *fakeResponder) GenerateResponse(_ context.Context, userMessage string, history []llm.Message, _, suggestions any) (*llm.Response, error) {
	f.calls++
	f.lastMessage = userMessage
	f.lastHistory = history
	f.lastSuggest = suggestions
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{
		Text:     f.reply,
		Provider: "ollama",
		Model:    "qwen2.5:7b",
		Meta:     map[string]any{"finish_reason": "stop"},
	}, nil
}

type recordingPublisher struct {
	events []*model.ExchangeEvent
	err    error
}

func (r *recordingPublisher) PublishExchange(_ context.Context, e *model.ExchangeEvent) error {
	r.events = append(r.events, e)
	return r.err
}

type fixture struct {
	db        *gorm.DB
	svc       *ChatService
	responder *fakeResponder
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
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
	require.NoError(t, gdb.Create(&model.Trainer{Name: "Anna", Specialization: "strength"}).Error)
	require.NoError(t, gdb.Create(&model.Trainer{Name: "Ben", Specialization: "cardio"}).Error)

	f := &fixture{
		db:        gdb,
		responder: &fakeResponder{reply: "Try strength training with Anna."},
		events:    &recordingPublisher{},
	}
	f.svc = NewChatService(
		db.NewConversationStore(gdb),
		sitecontext.NewBuilder(db.NewCatalogStore(gdb)),
		f.responder,
		f.events,
		nil,
	)
	return f
}

func (f *fixture) count(t *testing.T, m any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(m).Count(&n).Error)
	return n
}

func TestSend_NewSession(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: "  I want to gain muscle  "})
	require.NoError(t, err)

	assert.NotZero(t, resp.SessionID)
	assert.Equal(t, "Try strength training with Anna.", resp.Response)
	assert.Equal(t, "ollama", resp.Provider)
	require.NotNil(t, resp.Suggestions.GoalDetected)
	assert.Equal(t, model.GoalMuscleGain, *resp.Suggestions.GoalDetected)
	require.Len(t, resp.Suggestions.RecommendedTrainers, 1)
	assert.Equal(t, "Anna", resp.Suggestions.RecommendedTrainers[0].Name)

	assert.Equal(t, int64(1), f.count(t, &model.ChatSession{}))
	assert.Equal(t, int64(2), f.count(t, &model.ChatMessage{}))

	var msgs []model.ChatMessage
	require.NoError(t, f.db.Order("id").Find(&msgs).Error)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "I want to gain muscle", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "ollama", msgs[1].Meta["provider"])
	assert.Equal(t, "qwen2.5:7b", msgs[1].Meta["model"])
	assert.Equal(t, "stop", msgs[1].Meta["finish_reason"])

	assert.Equal(t, "I want to gain muscle", f.responder.lastMessage)
	assert.Empty(t, f.responder.lastHistory)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventTypeCompleted, f.events.events[0].Type)
	assert.Equal(t, resp.SessionID, f.events.events[0].SessionID)
	assert.Equal(t, model.GoalMuscleGain, f.events.events[0].Goal)
	assert.NotEmpty(t, f.events.events[0].ID)
}

func TestSend_ContinuesSessionWithHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "hello"})
	require.NoError(t, err)

	sid := model.SessionRef(first.SessionID)
	_, err = f.svc.Send(ctx, 1, &model.ChatRequest{Message: "what programs exist?", SessionID: &sid})
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.count(t, &model.ChatSession{}))
	assert.Equal(t, int64(4), f.count(t, &model.ChatMessage{}))
	assert.Equal(t, []llm.Message{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "Try strength training with Anna."},
	}, f.responder.lastHistory)
}

func TestSend_HistoryIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "m0"})
	require.NoError(t, err)
	sid := model.SessionRef(first.SessionID)
	for i := 0; i < 6; i++ {
		_, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "again", SessionID: &sid})
		require.NoError(t, err)
	}

	assert.Len(t, f.responder.lastHistory, HistoryLimit-1)
}

func TestSend_ZeroSessionIDCreatesSession(t *testing.T) {
	f := newFixture(t)
	zero := model.SessionRef(0)

	resp, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: "hi", SessionID: &zero})
	require.NoError(t, err)
	assert.NotZero(t, resp.SessionID)
}

func TestSend_ForeignOrInactiveSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	foreign := model.ChatSession{UserID: 2, IsActive: true}
	require.NoError(t, f.db.Create(&foreign).Error)
	inactive := model.ChatSession{UserID: 1, IsActive: true}
	require.NoError(t, f.db.Create(&inactive).Error)
	require.NoError(t, f.db.Model(&inactive).Update("is_active", false).Error)

	for _, id := range []int64{int64(foreign.ID), int64(inactive.ID), 999, -1} {
		sid := model.SessionRef(id)
		_, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "hi", SessionID: &sid})
		assert.ErrorIs(t, err, db.ErrSessionNotFound)
	}

	assert.Equal(t, int64(0), f.count(t, &model.ChatMessage{}))
	assert.Zero(t, f.responder.calls)
}

func TestSend_EmptyMessage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: " \n\t "})
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, int64(0), f.count(t, &model.ChatSession{}))
}

func TestSend_GenerationFailureKeepsUserMessage(t *testing.T) {
	f := newFixture(t)
	f.responder.err = llm.ErrTimeout

	_, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: "hi"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, llm.ErrTimeout)

	assert.Equal(t, int64(1), f.count(t, &model.ChatSession{}))
	assert.Equal(t, int64(1), f.count(t, &model.ChatMessage{}))

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventTypeFailed, f.events.events[0].Type)
	assert.Contains(t, f.events.events[0].Reason, "timed out")
}

func TestSend_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("nats down")

	resp, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Response)
}

func TestSend_NoGoal(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Send(context.Background(), 1, &model.ChatRequest{Message: "opening hours?"})
	require.NoError(t, err)

	assert.Nil(t, resp.Suggestions.GoalDetected)
	assert.NotNil(t, resp.Suggestions.RecommendedTrainers)
	assert.Empty(t, resp.Suggestions.RecommendedTrainers)
}

func TestSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "one"})
	require.NoError(t, err)
	second, err := f.svc.Send(ctx, 1, &model.ChatRequest{Message: "two"})
	require.NoError(t, err)

	list, err := f.svc.ListSessions(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, second.SessionID, list.Sessions[0].ID)

	msgs, err := f.svc.Messages(ctx, 1, first.SessionID)
	require.NoError(t, err)
	require.Len(t, msgs.Messages, 2)
	assert.Equal(t, "one", msgs.Messages[0].Content)

	_, err = f.svc.Messages(ctx, 2, first.SessionID)
	assert.ErrorIs(t, err, db.ErrSessionNotFound)

	require.NoError(t, f.svc.CloseSession(ctx, 1, first.SessionID))
	assert.ErrorIs(t, f.svc.CloseSession(ctx, 1, first.SessionID), db.ErrSessionNotFound)

	list, err = f.svc.ListSessions(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list.Sessions, 1)
}
