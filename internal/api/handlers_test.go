package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedrofnts/konver-app-sub001/internal/config"
	"github.com/pedrofnts/konver-app-sub001/internal/core"
	"github.com/pedrofnts/konver-app-sub001/internal/store"
)

type testEnv struct {
	router  http.Handler
	dbStore *store.SQLiteStore
}

func setupAPI(t *testing.T, n8nURL string) *testEnv {
	t.Helper()
	config.AppConfig.JWTSecret = "test-secret"

	dbStore, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	handler := NewAPIHandler(
		dbStore,
		core.NewFeedbackService(dbStore),
		core.NewRelayService(n8nURL, 2*time.Second),
		nil,
		nil,
	)
	return &testEnv{router: NewRouter(handler), dbStore: dbStore}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (e *testEnv) createBot(t *testing.T) *store.Bot {
	t.Helper()
	bot := &store.Bot{Name: "Support Bot", SystemPrompt: "helpful", Model: "gpt-4o", Temperature: 0.7, Active: true}
	require.NoError(t, e.dbStore.CreateBot(bot))
	return bot
}

func (e *testEnv) seedApplied(t *testing.T, botID, context, improved string) *store.FeedbackRecord {
	t.Helper()
	rec := &store.FeedbackRecord{
		BotID:               botID,
		UserMessageContext:  context,
		OriginalBotResponse: "old answer",
		ImprovedResponse:    improved,
		Status:              store.FeedbackApplied,
	}
	require.NoError(t, e.dbStore.CreateFeedback(rec))
	return rec
}

func TestFeedbackAPIRequiresBotID(t *testing.T) {
	env := setupAPI(t, "")

	paths := []struct {
		method, path string
	}{
		{http.MethodPost, "/bot-feedback-api/search"},
		{http.MethodPost, "/bot-feedback-api/best-response"},
		{http.MethodPost, "/bot-feedback-api/apply-feedback"},
		{http.MethodGet, "/bot-feedback-api/stats"},
	}
	for _, p := range paths {
		rec := env.do(t, p.method, p.path, map[string]any{}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, p.path)
		assert.Equal(t, "bot_id is required", decodeBody(t, rec)["error"], p.path)
	}
}

func TestFeedbackAPIBotIDHeaderWinsOverQuery(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)
	env.seedApplied(t, bot.ID, "how do I upgrade my plan", "Use the billing page.")

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/search?bot_id=other-bot",
		map[string]any{"userMessage": "upgrade plan"},
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["total"])
}

func TestSearchFeedbackEndpoint(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)
	env.seedApplied(t, bot.ID, "what are your opening hours", "We are open 9 to 5.")
	env.seedApplied(t, bot.ID, "do you ship internationally", "Yes, worldwide.")

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/search",
		map[string]any{"userMessage": "opening hours please"},
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["total"])
	feedbacks := body["feedbacks"].([]any)
	require.Len(t, feedbacks, 1)
	first := feedbacks[0].(map[string]any)
	assert.Equal(t, "We are open 9 to 5.", first["improved_response"])
}

func TestSearchFeedbackEmptyMessageIs400(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/search",
		map[string]any{"userMessage": "   "},
		map[string]string{"bot_id": bot.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestBestResponseEndpointFound(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)
	seeded := env.seedApplied(t, bot.ID, "cancel my subscription", "You can cancel from account settings.")

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/best-response",
		map[string]any{"userMessage": "I want to cancel my subscription today"},
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "You can cancel from account settings.", body["improved_response"])
	assert.Equal(t, float64(1), body["confidence"])
	assert.Equal(t, seeded.ID, body["feedback_id"])

	// The match was counted as a use.
	stored, err := env.dbStore.GetFeedbackByID(seeded.ID, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TimesApplied)
}

func TestBestResponseEndpointNotFound(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/best-response",
		map[string]any{"userMessage": "something never seen before"},
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["found"])
	assert.Equal(t, "No matching feedback found", body["message"])
}

func TestApplyFeedbackEndpoint(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)
	pending := &store.FeedbackRecord{
		BotID:              bot.ID,
		UserMessageContext: "refund policy",
		ImprovedResponse:   "Refunds within 30 days.",
		Status:             store.FeedbackPending,
	}
	require.NoError(t, env.dbStore.CreateFeedback(pending))

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/apply-feedback",
		map[string]any{"feedbackId": pending.ID},
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	feedback := body["feedback"].(map[string]any)
	assert.Equal(t, store.FeedbackApplied, feedback["status"])
}

func TestApplyFeedbackUnknownIDIs404(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)

	rec := env.do(t, http.MethodPost, "/bot-feedback-api/apply-feedback",
		map[string]any{"feedbackId": "no-such-id"},
		map[string]string{"bot_id": bot.ID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestFeedbackStatsEndpoint(t *testing.T) {
	env := setupAPI(t, "")
	bot := env.createBot(t)
	env.seedApplied(t, bot.ID, "hours", "9 to 5")
	require.NoError(t, env.dbStore.CreateFeedback(&store.FeedbackRecord{
		BotID:              bot.ID,
		UserMessageContext: "shipping",
		ImprovedResponse:   "worldwide",
	}))

	rec := env.do(t, http.MethodGet, "/bot-feedback-api/stats", nil,
		map[string]string{"bot_id": bot.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decodeBody(t, rec)["stats"].(map[string]any)
	assert.Equal(t, float64(2), stats["total"])
	byStatus := stats["by_status"].(map[string]any)
	assert.Equal(t, float64(1), byStatus[store.FeedbackApplied])
	assert.Equal(t, float64(1), byStatus[store.FeedbackPending])
}

func TestAssistantChatEndpoint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"output":"Hello from the workflow"}`))
	}))
	defer upstream.Close()

	env := setupAPI(t, upstream.URL)

	rec := env.do(t, http.MethodPost, "/assistant-chat", map[string]any{
		"chatInput": "hi there",
		"sessionId": "session-1",
		"assistant": map[string]any{"id": "bot-1"},
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Hello from the workflow", body["response"])
	assert.Equal(t, "session-1", body["sessionId"])
}

func TestAssistantChatValidation(t *testing.T) {
	env := setupAPI(t, "http://unused.invalid")

	rec := env.do(t, http.MethodPost, "/assistant-chat", map[string]any{
		"chatInput": "",
		"sessionId": "session-1",
		"assistant": map[string]any{"id": "bot-1"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistantChatUpstreamFailureIs502(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer upstream.Close()

	env := setupAPI(t, upstream.URL)

	rec := env.do(t, http.MethodPost, "/assistant-chat", map[string]any{
		"chatInput": "hi",
		"sessionId": "session-1",
		"assistant": map[string]any{"id": "bot-1"},
	}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	env := setupAPI(t, "")
	rec := env.do(t, http.MethodGet, "/api/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestUnknownRouteIs404(t *testing.T) {
	env := setupAPI(t, "")
	rec := env.do(t, http.MethodGet, "/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWrongMethodIs405(t *testing.T) {
	env := setupAPI(t, "")
	rec := env.do(t, http.MethodGet, "/assistant-chat", nil, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
