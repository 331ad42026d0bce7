package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"hellocity/models"
	"hellocity/services/assistant"
	"hellocity/services/capability"
	"hellocity/services/stream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubJudge struct{}

func (stubJudge) CompleteStructured(_ context.Context, _, _ string, _ any) (json.RawMessage, error) {
	return json.Marshal(models.AgentDecision{Action: models.ActionChat, Confidence: 0.9})
}

// recordingStreamer captures the message slice the engine was given.
type recordingStreamer struct {
	mu   sync.Mutex
	seen []capability.ChatMessage
}

func (r *recordingStreamer) Stream(_ context.Context, _ string, msgs []capability.ChatMessage, _ []capability.ToolDef, onDelta func(string) error) (*capability.ChatResult, error) {
	r.mu.Lock()
	r.seen = append([]capability.ChatMessage{}, msgs...)
	r.mu.Unlock()
	if err := onDelta("hello"); err != nil {
		return nil, err
	}
	return &capability.ChatResult{Content: "hello"}, nil
}

func (r *recordingStreamer) messages() []capability.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen
}

type memoryConversations struct {
	mu           sync.Mutex
	history      map[string][]models.Message
	appended     map[string][]models.Message
	historyCalls int
}

func (m *memoryConversations) History(_ context.Context, sessionID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls++
	return m.history[sessionID], nil
}

func (m *memoryConversations) AppendTurn(_ context.Context, sessionID string, messages []models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appended == nil {
		m.appended = make(map[string][]models.Message)
	}
	m.appended[sessionID] = append(m.appended[sessionID], messages...)
	return nil
}

func newChatRouter(streamer *recordingStreamer, repo *memoryConversations) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := &assistant.Engine{Judge: stubJudge{}, Chat: streamer, Logger: zap.NewNop()}
	handler := NewChatStreamHandler(ChatStreamDeps{
		Engine:        engine,
		Translator:    &stream.Translator{Logger: zap.NewNop()},
		Conversations: repo,
	})
	router := gin.New()
	router.POST("/chat/:sessionID", handler)
	return router
}

// closeNotifyRecorder adds http.CloseNotifier, which gin's Context.Stream
// requires from the response writer.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool {
	return c.closed
}

func postChat(t *testing.T, router *gin.Engine, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/chat/"+sessionID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := &closeNotifyRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
	router.ServeHTTP(w, req)
	return w.ResponseRecorder
}

func TestChatHandlerMergesStoredHistory(t *testing.T) {
	streamer := &recordingStreamer{}
	repo := &memoryConversations{history: map[string][]models.Message{
		"s1": {
			{Role: models.RoleUser, Content: "I want to move to Tokyo"},
			{Role: models.RoleAssistant, Content: "Great, when are you planning to go?"},
		},
	}}
	router := newChatRouter(streamer, repo)

	w := postChat(t, router, "s1", `{"messages":[{"role":"user","content":"Next month"}]}`)

	require.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "text-delta")

	// Stored turns precede the new message in the model's view.
	seen := streamer.messages()
	require.Len(t, seen, 3)
	assert.Equal(t, "I want to move to Tokyo", seen[0].Content)
	assert.Equal(t, "Next month", seen[2].Content)

	// Only the new turn is persisted, not the merged history.
	turn := repo.appended["s1"]
	require.Len(t, turn, 2)
	assert.Equal(t, models.RoleUser, turn[0].Role)
	assert.Equal(t, "Next month", turn[0].Content)
	assert.Equal(t, "hello", turn[1].Content)
}

func TestChatHandlerTrustsProvidedHistory(t *testing.T) {
	streamer := &recordingStreamer{}
	repo := &memoryConversations{history: map[string][]models.Message{
		"s1": {{Role: models.RoleUser, Content: "stale stored turn"}},
	}}
	router := newChatRouter(streamer, repo)

	body := `{"messages":[{"role":"user","content":"first"},{"role":"assistant","content":"reply"},{"role":"user","content":"second"}]}`
	w := postChat(t, router, "s1", body)

	require.Equal(t, 200, w.Code)
	assert.Equal(t, 0, repo.historyCalls)
	require.Len(t, streamer.messages(), 3)
	assert.Equal(t, "first", streamer.messages()[0].Content)
}
