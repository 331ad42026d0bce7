// File: services/stream/translator.go
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"hellocity/models"
	"hellocity/services/assistant"
	"hellocity/services/checklist"

	"go.uber.org/zap"
)

const pendingMessage = "Generating your personalized checklist..."

// Steps whose output is always structured and never streamed as text.
var structuredSteps = map[string]bool{
	"checklist_generator": true,
	"checklist_converter": true,
}

// ChecklistSubmitter is the slice of the task correlator the translator
// needs: fire-and-forget submission plus a blocking poll.
type ChecklistSubmitter interface {
	Submit(ctx context.Context, sessionID string, msgs []models.Message) (taskID, stableID string, err error)
	Poll(ctx context.Context, taskID string) models.TaskRecord
}

// Translator converts one turn's internal signal stream into an ordered,
// one-shot sequence of wire events. It owns the token suppression policy and
// the checklist trigger protocol.
type Translator struct {
	Checklist ChecklistSubmitter
	Logger    *zap.Logger
}

// turnState is the per-turn translation state. Translators are stateless
// across turns; everything lives here.
type turnState struct {
	suppress    bool
	logged      bool
	accumulated strings.Builder
	textDone    bool
	taskID      string
	resultCh    chan models.TaskRecord
}

// Run consumes signals until the channel closes, emitting events on out.
// When a checklist job was triggered, it then waits for the poll result and
// emits exactly one of data-checklist or data-checklist-error. It closes out
// when done.
func (t *Translator) Run(ctx context.Context, sessionID string, msgs []models.Message, signals <-chan assistant.Signal, out chan<- Event) {
	defer close(out)

	st := &turnState{}
	for sig := range signals {
		t.handle(ctx, sessionID, msgs, sig, st, out)
	}

	if st.resultCh == nil {
		return
	}
	select {
	case rec := <-st.resultCh:
		t.emitFinalChecklist(rec, st, out)
	case <-ctx.Done():
		t.Logger.Info("client gone before checklist completion",
			zap.String("sessionID", sessionID),
			zap.String("taskID", st.taskID))
	}
}

func (t *Translator) handle(ctx context.Context, sessionID string, msgs []models.Message, sig assistant.Signal, st *turnState, out chan<- Event) {
	switch s := sig.(type) {
	case assistant.TokenSignal:
		if suppressChunk(s.Step, s.Delta) {
			st.suppress = true
		}
		if st.suppress {
			if !st.logged {
				t.Logger.Debug("structured content detected, suppressing stream",
					zap.String("sessionID", sessionID),
					zap.String("step", s.Step))
				st.logged = true
			}
			return
		}
		st.accumulated.WriteString(s.Delta)
		out <- Event{Type: EventTextDelta, Delta: s.Delta}

	case assistant.DecisionSignal:
		out <- Event{Type: EventAgentDecision, Data: s.Decision}

	case assistant.SearchSignal:
		if len(s.Results) > 0 {
			out <- Event{Type: EventSearchResults, Data: s.Results}
		}

	case assistant.SummarySignal:
		out <- Event{Type: EventPriceSummary, Data: s.Summary}
		if s.Summary.Reply != "" {
			out <- Event{Type: EventTextComplete, Content: s.Summary.Reply}
			st.textDone = true
		}

	case assistant.SupervisorSignal:
		// A revision replaces the streamed text as the final reply; raw
		// feedback is surfaced only when there is no revision.
		if s.Revision != "" {
			out <- Event{Type: EventTextComplete, Content: s.Revision}
			st.textDone = true
		} else if s.Feedback != "" {
			out <- Event{Type: EventSupervisorFeedback, Data: s.Feedback}
		}

	case assistant.ModelEndSignal:
		if len(s.ToolCalls) == 0 {
			if !st.textDone && st.accumulated.Len() > 0 {
				out <- Event{Type: EventTextComplete, Content: st.accumulated.String()}
				st.textDone = true
			}
			return
		}
		// A tool call owns the turn's final event; text-complete is skipped.
		for _, call := range s.ToolCalls {
			if call.Name == assistant.ChecklistToolName {
				t.startChecklist(ctx, sessionID, msgs, st, out)
			}
		}

	case assistant.ErrorSignal:
		out <- Event{Type: EventError, Error: s.Err.Error()}
	}
}

// startChecklist runs the trigger protocol: task-id, pending status, pending
// banner, in that order, then kicks off polling concurrently with the rest
// of the turn's event production.
func (t *Translator) startChecklist(ctx context.Context, sessionID string, msgs []models.Message, st *turnState, out chan<- Event) {
	if t.Checklist == nil {
		out <- Event{Type: EventError, Error: "Checklist task submission failed: checklist generation is not configured"}
		return
	}
	if st.resultCh != nil {
		// Already triggered this turn.
		return
	}

	taskID, stableID, err := t.Checklist.Submit(ctx, sessionID, msgs)
	if err != nil {
		t.Logger.Error("checklist task submission failed",
			zap.String("sessionID", sessionID), zap.Error(err))
		out <- Event{Type: EventError, Error: fmt.Sprintf("Checklist task submission failed: %v", err)}
		return
	}
	st.taskID = taskID

	out <- Event{Type: EventTaskID, TaskID: taskID, Status: "pending"}
	out <- Event{Type: EventChecklistPending, Data: map[string]string{
		"taskId":  taskID,
		"status":  "generating",
		"message": pendingMessage,
	}}
	out <- Event{Type: EventChecklistBanner, Data: checklist.BuildPendingBanner(sessionID, taskID, stableID, time.Now())}

	st.resultCh = make(chan models.TaskRecord, 1)
	go func() {
		st.resultCh <- t.Checklist.Poll(ctx, taskID)
	}()
}

// emitFinalChecklist maps the terminal task record to exactly one of
// data-checklist or data-checklist-error.
func (t *Translator) emitFinalChecklist(rec models.TaskRecord, st *turnState, out chan<- Event) {
	if rec.Status == models.TaskCompleted && len(rec.Result) > 0 {
		// A completed record can still carry an error payload when the
		// pipeline produced no artifact.
		if errMsg := resultError(rec.Result); errMsg != "" {
			out <- Event{Type: EventChecklistError, Data: map[string]string{
				"error":  errMsg,
				"taskId": st.taskID,
			}}
			return
		}
		out <- Event{Type: EventChecklist, Data: json.RawMessage(rec.Result)}
		return
	}

	errMsg := rec.Error
	if errMsg == "" {
		errMsg = "Checklist generation failed"
	}
	out <- Event{Type: EventChecklistError, Data: map[string]string{
		"error":  errMsg,
		"taskId": st.taskID,
	}}
}

func resultError(result json.RawMessage) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(result, &payload); err != nil {
		return ""
	}
	return payload.Error
}

// suppressChunk decides whether a token fragment looks like structured
// output. Heuristic by design; tuned to the markers the generator steps
// actually emit.
func suppressChunk(step, chunk string) bool {
	if structuredSteps[step] {
		return true
	}
	stripped := strings.TrimSpace(chunk)
	if strings.HasPrefix(stripped, "{") || strings.HasPrefix(stripped, `["`) {
		return true
	}
	return strings.Contains(chunk, `"title"`) || strings.Contains(chunk, `"summary"`)
}
