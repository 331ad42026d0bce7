package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"hellocity/models"
	"hellocity/services/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStructured struct {
	fn func(name, prompt string) (json.RawMessage, error)
}

func (f fakeStructured) CompleteStructured(_ context.Context, name, prompt string, _ any) (json.RawMessage, error) {
	return f.fn(name, prompt)
}

type fakeStreamer struct {
	deltas []string
	result *capability.ChatResult
	err    error
}

func (f fakeStreamer) Stream(_ context.Context, _ string, _ []capability.ChatMessage, _ []capability.ToolDef, onDelta func(string) error) (*capability.ChatResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, d := range f.deltas {
		if err := onDelta(d); err != nil {
			return nil, err
		}
	}
	if f.result != nil {
		return f.result, nil
	}
	return &capability.ChatResult{Content: strings.Join(f.deltas, "")}, nil
}

type fakeSearch struct {
	results map[string]any
	err     error
	calls   int
}

func (f *fakeSearch) Search(_ context.Context, _ string) (map[string]any, error) {
	f.calls++
	return f.results, f.err
}

func decisionJSON(t *testing.T, d models.AgentDecision) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return b
}

func summaryJSON(t *testing.T, s models.PriceSummary) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return b
}

func runTurn(t *testing.T, e *Engine, msgs []models.Message) ([]models.Message, []Signal) {
	t.Helper()
	var signals []Signal
	appended, err := e.RunTurn(context.Background(), "session-1", msgs, func(s Signal) {
		signals = append(signals, s)
	})
	require.NoError(t, err)
	return appended, signals
}

func userTurn(content string) []models.Message {
	return []models.Message{{Role: models.RoleUser, Content: content}}
}

func TestChatDecisionRoutesToChat(t *testing.T) {
	search := &fakeSearch{}
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{Action: models.ActionChat, Confidence: 0.9}), nil
		}},
		Chat:   fakeStreamer{deltas: []string{"Hello ", "there"}},
		Search: search,
		Logger: zap.NewNop(),
	}

	appended, signals := runTurn(t, e, userTurn("hi"))

	require.Len(t, appended, 1)
	assert.Equal(t, models.RoleAssistant, appended[0].Role)
	assert.Equal(t, "Hello there", appended[0].Content)
	assert.Equal(t, 0, search.calls)

	var sawDecision bool
	for _, sig := range signals {
		switch s := sig.(type) {
		case DecisionSignal:
			sawDecision = true
			assert.Equal(t, models.ActionChat, s.Decision.Action)
		case SearchSignal, SummarySignal:
			t.Fatalf("unexpected search-related signal %T for a chat turn", s)
		}
	}
	assert.True(t, sawDecision)
}

func TestJudgeFailureFallsBackToChat(t *testing.T) {
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return nil, errors.New("judge offline")
		}},
		Chat:   fakeStreamer{deltas: []string{"ok"}},
		Logger: zap.NewNop(),
	}

	appended, signals := runTurn(t, e, userTurn("hi"))

	require.Len(t, appended, 1)
	require.IsType(t, DecisionSignal{}, signals[0])
	decision := signals[0].(DecisionSignal).Decision
	assert.Equal(t, models.ActionChat, decision.Action)
	assert.Equal(t, 0.0, decision.Confidence)
	assert.Contains(t, decision.Reason, "classification failed")
}

func TestUnknownActionResolvesToChat(t *testing.T) {
	search := &fakeSearch{}
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{Action: "interpretive_dance", Confidence: 0.5}), nil
		}},
		Chat:   fakeStreamer{deltas: []string{"sure"}},
		Search: search,
		Logger: zap.NewNop(),
	}

	appended, _ := runTurn(t, e, userTurn("hi"))

	require.Len(t, appended, 1)
	assert.Equal(t, "sure", appended[0].Content)
	assert.Equal(t, 0, search.calls)
}

func TestSearchFailureStillProducesSummary(t *testing.T) {
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{
				Action:      models.ActionSearchFlight,
				SearchQuery: "NYC to Tokyo July",
				Confidence:  0.8,
			}), nil
		}},
		Summarizer: fakeStructured{fn: func(name, _ string) (json.RawMessage, error) {
			require.Equal(t, "price_summary", name)
			return summaryJSON(t, models.PriceSummary{Reply: "No live prices, sorry."}), nil
		}},
		Search: &fakeSearch{err: errors.New("search backend down")},
		Logger: zap.NewNop(),
	}

	appended, signals := runTurn(t, e, userTurn("flights to Tokyo"))

	// Exactly one assistant message, even with the search down.
	require.Len(t, appended, 1)
	assert.Equal(t, "No live prices, sorry.", appended[0].Content)

	var searchSig *SearchSignal
	var summarySig *SummarySignal
	for _, sig := range signals {
		switch s := sig.(type) {
		case SearchSignal:
			searchSig = &s
		case SummarySignal:
			summarySig = &s
		}
	}
	require.NotNil(t, searchSig)
	assert.Equal(t, "search backend down", searchSig.Results["error"])
	assert.Equal(t, "NYC to Tokyo July", searchSig.Results["query"])
	require.NotNil(t, summarySig)
}

func TestMissingSearchQueryDegradesToChat(t *testing.T) {
	search := &fakeSearch{results: map[string]any{"answers": []any{}}}
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{Action: models.ActionSearchHotel, Confidence: 0.7}), nil
		}},
		Chat:   fakeStreamer{deltas: []string{"let me help"}},
		Search: search,
		Logger: zap.NewNop(),
	}

	appended, _ := runTurn(t, e, userTurn("hotels?"))

	require.Len(t, appended, 1)
	assert.Equal(t, "let me help", appended[0].Content)
	assert.Equal(t, 0, search.calls)
}

func TestDisabledSearchRoutesToChat(t *testing.T) {
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{
				Action:      models.ActionSearchGeneral,
				SearchQuery: "visa rules Japan",
			}), nil
		}},
		Chat:   fakeStreamer{deltas: []string{"from what I know..."}},
		Logger: zap.NewNop(),
	}

	appended, _ := runTurn(t, e, userTurn("visa rules?"))

	require.Len(t, appended, 1)
	assert.Equal(t, "from what I know...", appended[0].Content)
}

func TestSummarizerFailureUsesFallbackReply(t *testing.T) {
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{
				Action:      models.ActionSearchFlight,
				SearchQuery: "LAX to Paris",
			}), nil
		}},
		Summarizer: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return nil, errors.New("summarizer overloaded")
		}},
		Search: &fakeSearch{results: map[string]any{"results": []any{"some offer"}}},
		Logger: zap.NewNop(),
	}

	appended, signals := runTurn(t, e, userTurn("flights"))

	require.Len(t, appended, 1)
	assert.Equal(t, summaryFallbackReply, appended[0].Content)

	var summarySig *SummarySignal
	for _, sig := range signals {
		if s, ok := sig.(SummarySignal); ok {
			summarySig = &s
		}
	}
	require.NotNil(t, summarySig)
	assert.Contains(t, summarySig.Summary.Caution, "summarizer overloaded")
}

func TestSupervisorRevisionReplacesReply(t *testing.T) {
	reviewer := fakeCompleter{content: "Too curt.\nRevision: Here is a warmer, fuller answer."}
	e := &Engine{
		Judge: fakeStructured{fn: func(string, string) (json.RawMessage, error) {
			return decisionJSON(t, models.AgentDecision{Action: models.ActionChat}), nil
		}},
		Chat:     fakeStreamer{deltas: []string{"short answer"}},
		Reviewer: reviewer,
		Logger:   zap.NewNop(),
	}

	appended, signals := runTurn(t, e, userTurn("hi"))

	require.Len(t, appended, 1)
	assert.Equal(t, "Here is a warmer, fuller answer.", appended[0].Content)

	var sup *SupervisorSignal
	for _, sig := range signals {
		if s, ok := sig.(SupervisorSignal); ok {
			sup = &s
		}
	}
	require.NotNil(t, sup)
	assert.Equal(t, "Too curt.", sup.Feedback)
	assert.Equal(t, "Here is a warmer, fuller answer.", sup.Revision)
}

type fakeCompleter struct {
	content string
	err     error
}

func (f fakeCompleter) Complete(_ context.Context, _ string, _ []capability.ChatMessage, _ []capability.ToolDef) (*capability.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &capability.ChatMessage{Role: models.RoleAssistant, Content: f.content}, nil
}
