package stream

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"hellocity/models"
	"hellocity/services/assistant"
	"hellocity/services/capability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSubmitter struct {
	taskID   string
	stableID string
	submitFn func() error
	record   models.TaskRecord
}

func (f *fakeSubmitter) Submit(_ context.Context, _ string, _ []models.Message) (string, string, error) {
	if f.submitFn != nil {
		if err := f.submitFn(); err != nil {
			return "", "", err
		}
	}
	return f.taskID, f.stableID, nil
}

func (f *fakeSubmitter) Poll(_ context.Context, _ string) models.TaskRecord {
	return f.record
}

func translate(t *testing.T, tr *Translator, sigs []assistant.Signal) []Event {
	t.Helper()
	signals := make(chan assistant.Signal, len(sigs))
	for _, s := range sigs {
		signals <- s
	}
	close(signals)

	out := make(chan Event, 64)
	tr.Run(context.Background(), "session-1", nil, signals, out)

	var events []Event
	for ev := range out {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []Event) []string {
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.Type)
	}
	return types
}

func TestSearchTurnEventOrder(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.DecisionSignal{Decision: models.AgentDecision{
			Action:      models.ActionSearchFlight,
			SearchQuery: "NYC to Tokyo July",
		}},
		assistant.SearchSignal{Query: "NYC to Tokyo July", Results: models.SearchResult{"results": []any{"offer"}}},
		assistant.SummarySignal{Summary: models.PriceSummary{Reply: "Around $900 round trip."}},
	})

	assert.Equal(t, []string{
		EventAgentDecision,
		EventSearchResults,
		EventPriceSummary,
		EventTextComplete,
	}, eventTypes(events))
	assert.Equal(t, "Around $900 round trip.", events[3].Content)
}

func TestPlainTextStreamsThenCompletes(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.TokenSignal{Step: "chatbot", Delta: "Hello "},
		assistant.TokenSignal{Step: "chatbot", Delta: "there"},
		assistant.ModelEndSignal{Step: "chatbot"},
	})

	assert.Equal(t, []string{EventTextDelta, EventTextDelta, EventTextComplete}, eventTypes(events))
	assert.Equal(t, "Hello there", events[2].Content)
}

func TestSuppressionIsSticky(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.TokenSignal{Step: "chatbot", Delta: "prose "},
		assistant.TokenSignal{Step: "chatbot", Delta: `{"title`},
		assistant.TokenSignal{Step: "chatbot", Delta: "harmless afterwards"},
		assistant.ModelEndSignal{Step: "chatbot"},
	})

	// Only the first fragment streams; text-complete carries just the
	// unsuppressed text.
	assert.Equal(t, []string{EventTextDelta, EventTextComplete}, eventTypes(events))
	assert.Equal(t, "prose ", events[0].Delta)
	assert.Equal(t, "prose ", events[1].Content)
}

func TestSuppressionMarkers(t *testing.T) {
	cases := []struct {
		name     string
		step     string
		chunk    string
		suppress bool
	}{
		{"plain prose", "chatbot", "hello world", false},
		{"object prefix", "chatbot", `  {"items": [`, true},
		{"array prefix", "chatbot", `["first", "second"]`, true},
		{"title marker", "chatbot", `the "title" field`, true},
		{"summary marker", "chatbot", `a "summary" key`, true},
		{"generator step", "checklist_generator", "anything", true},
		{"converter step", "checklist_converter", "anything", true},
		{"brace mid-sentence", "chatbot", "use {curly} braces", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.suppress, suppressChunk(tc.step, tc.chunk))
		})
	}
}

func TestToolCallSkipsTextComplete(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.TokenSignal{Step: "chatbot", Delta: "working on it"},
		assistant.ModelEndSignal{Step: "chatbot", ToolCalls: []capability.ToolCall{
			{ID: "call-1", Name: "some_other_tool"},
		}},
	})

	assert.Equal(t, []string{EventTextDelta}, eventTypes(events))
}

func TestSupervisorRevisionWinsOverFeedback(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.TokenSignal{Step: "chatbot", Delta: "draft"},
		assistant.SupervisorSignal{Feedback: "too short", Revision: "a fuller answer"},
		assistant.ModelEndSignal{Step: "chatbot"},
	})

	assert.Equal(t, []string{EventTextDelta, EventTextComplete}, eventTypes(events))
	assert.Equal(t, "a fuller answer", events[1].Content)
}

func TestSupervisorFeedbackOnlyWhenNoRevision(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.TokenSignal{Step: "chatbot", Delta: "draft"},
		assistant.SupervisorSignal{Feedback: "looks fine"},
		assistant.ModelEndSignal{Step: "chatbot"},
	})

	assert.Equal(t, []string{EventTextDelta, EventSupervisorFeedback, EventTextComplete}, eventTypes(events))
	assert.Equal(t, "looks fine", events[1].Data)
	assert.Equal(t, "draft", events[2].Content)
}

func checklistTrigger() assistant.ModelEndSignal {
	return assistant.ModelEndSignal{Step: "chatbot", ToolCalls: []capability.ToolCall{
		{ID: "call-1", Name: assistant.ChecklistToolName},
	}}
}

func TestChecklistTriggerProtocol(t *testing.T) {
	final, err := json.Marshal(map[string]any{
		"checklistId": "stable-1",
		"title":       "Moving to Tokyo",
		"status":      "completed",
	})
	require.NoError(t, err)

	sub := &fakeSubmitter{
		taskID:   "task-1",
		stableID: "stable-1",
		record: models.TaskRecord{
			TaskID:   "task-1",
			StableID: "stable-1",
			Status:   models.TaskCompleted,
			Result:   final,
		},
	}
	tr := &Translator{Checklist: sub, Logger: zap.NewNop()}

	events := translate(t, tr, []assistant.Signal{checklistTrigger()})

	require.Equal(t, []string{
		EventTaskID,
		EventChecklistPending,
		EventChecklistBanner,
		EventChecklist,
	}, eventTypes(events))

	assert.Equal(t, "task-1", events[0].TaskID)
	assert.Equal(t, "pending", events[0].Status)

	pending, ok := events[1].Data.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "generating", pending["status"])

	banner, ok := events[2].Data.(models.FrontendChecklist)
	require.True(t, ok)
	assert.Equal(t, "stable-1", banner.ChecklistID)
	assert.Equal(t, "generating", banner.Status)

	// Final payload reuses the banner's stable identifier.
	var payload map[string]any
	require.NoError(t, json.Unmarshal(events[3].Data.(json.RawMessage), &payload))
	assert.Equal(t, banner.ChecklistID, payload["checklistId"])
}

func TestChecklistErrorPayload(t *testing.T) {
	errorResult := models.ChecklistError{Error: "No checklist data generated", SessionID: "session-1"}.Marshal()
	sub := &fakeSubmitter{
		taskID:   "task-1",
		stableID: "stable-1",
		record: models.TaskRecord{
			TaskID: "task-1",
			Status: models.TaskCompleted,
			Result: errorResult,
		},
	}
	tr := &Translator{Checklist: sub, Logger: zap.NewNop()}

	events := translate(t, tr, []assistant.Signal{checklistTrigger()})

	require.Len(t, events, 4)
	assert.Equal(t, EventChecklistError, events[3].Type)
	payload := events[3].Data.(map[string]string)
	assert.Equal(t, "No checklist data generated", payload["error"])
	assert.Equal(t, "task-1", payload["taskId"])
}

func TestChecklistFailedTask(t *testing.T) {
	sub := &fakeSubmitter{
		taskID:   "task-1",
		stableID: "stable-1",
		record: models.TaskRecord{
			TaskID: "task-1",
			Status: models.TaskFailed,
			Error:  "worker crashed",
		},
	}
	tr := &Translator{Checklist: sub, Logger: zap.NewNop()}

	events := translate(t, tr, []assistant.Signal{checklistTrigger()})

	require.Len(t, events, 4)
	assert.Equal(t, EventChecklistError, events[3].Type)
	assert.Equal(t, "worker crashed", events[3].Data.(map[string]string)["error"])
}

func TestChecklistSubmissionFailure(t *testing.T) {
	sub := &fakeSubmitter{
		submitFn: func() error { return errors.New("queue unreachable") },
	}
	tr := &Translator{Checklist: sub, Logger: zap.NewNop()}

	events := translate(t, tr, []assistant.Signal{checklistTrigger()})

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Contains(t, events[0].Error, "Checklist task submission failed")
}

func TestErrorSignalMapsToErrorEvent(t *testing.T) {
	tr := &Translator{Logger: zap.NewNop()}
	events := translate(t, tr, []assistant.Signal{
		assistant.ErrorSignal{Err: errors.New("model unavailable")},
	})

	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0].Type)
	assert.Equal(t, "model unavailable", events[0].Error)
}

func TestFrameFormat(t *testing.T) {
	ev := Event{Type: EventTextDelta, Delta: "hi"}
	assert.Equal(t, "data: {\"type\":\"text-delta\",\"delta\":\"hi\"}\n\n", ev.Frame())
}
