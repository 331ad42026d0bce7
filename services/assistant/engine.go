// File: services/assistant/engine.go
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"hellocity/models"
	"hellocity/services/capability"

	"go.uber.org/zap"
)

// ChecklistToolName is the tool the chat model calls when a conversation has
// enough detail to prepare a checklist. The streaming layer watches for it.
const ChecklistToolName = "trigger_checklist_generation"

// Step names tagged onto token signals.
const (
	StepChat = "chatbot"
	StepRAG  = "rag"
)

var checklistTool = capability.ToolDef{
	Name:        ChecklistToolName,
	Description: "Start generating a personalized relocation checklist for the user based on the conversation so far.",
}

// Engine is the per-turn routing state machine. Every node degrades to a
// safe default rather than propagating an error, so a turn always yields a
// reply. Search and retrieval are optional; a nil adapter routes to chat.
type Engine struct {
	Judge      capability.StructuredCompleter
	Chat       capability.Streamer
	Summarizer capability.StructuredCompleter
	Reviewer   capability.Completer
	Search     capability.SearchProvider
	Retriever  capability.Retriever
	Logger     *zap.Logger
}

// RunTurn drives one conversational turn: judge, then exactly one of chat,
// retrieve, or search+summarize. It returns the messages appended during the
// turn; the caller owns the conversation and persists the delta.
func (e *Engine) RunTurn(ctx context.Context, sessionID string, msgs []models.Message, emit func(Signal)) ([]models.Message, error) {
	decision := e.judge(ctx, msgs)
	emit(DecisionSignal{Decision: decision})

	switch decision.Action {
	case models.ActionSearchFlight, models.ActionSearchHotel, models.ActionSearchGeneral:
		if e.Search == nil || decision.SearchQuery == "" {
			e.Logger.Info("search unavailable for turn, degrading to chat",
				zap.String("sessionID", sessionID),
				zap.String("action", decision.Action))
			return e.runChat(ctx, sessionID, msgs, emit)
		}
		return e.runSearch(ctx, sessionID, decision, emit)
	case models.ActionRetrieve:
		if e.Retriever == nil {
			return e.runChat(ctx, sessionID, msgs, emit)
		}
		return e.runRetrieve(ctx, sessionID, msgs, emit)
	default:
		// Unknown or missing actions resolve to chat.
		return e.runChat(ctx, sessionID, msgs, emit)
	}
}

// judge classifies the turn. Classification failure never aborts the turn;
// it yields the deterministic chat fallback instead.
func (e *Engine) judge(ctx context.Context, msgs []models.Message) models.AgentDecision {
	prompt := fmt.Sprintf(judgePrompt, renderConversation(msgs))
	raw, err := e.Judge.CompleteStructured(ctx, "agent_decision", prompt, models.AgentDecision{})
	if err != nil {
		e.Logger.Warn("judge failed, falling back to chat", zap.Error(err))
		return models.FallbackDecision(fmt.Sprintf("classification failed: %v", err))
	}
	var decision models.AgentDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		e.Logger.Warn("judge returned undecodable decision", zap.Error(err))
		return models.FallbackDecision(fmt.Sprintf("classification undecodable: %v", err))
	}
	return decision
}

func (e *Engine) runChat(ctx context.Context, sessionID string, msgs []models.Message, emit func(Signal)) ([]models.Message, error) {
	return e.streamReply(ctx, sessionID, chatSystemPrompt, StepChat, msgs, emit)
}

// runRetrieve answers from the knowledge base. Retrieval failure or an empty
// index degrades to plain chat rather than failing the turn.
func (e *Engine) runRetrieve(ctx context.Context, sessionID string, msgs []models.Message, emit func(Signal)) ([]models.Message, error) {
	query := latestUserMessage(msgs)
	docs, err := e.Retriever.Retrieve(ctx, query, 4)
	if err != nil || len(docs) == 0 {
		if err != nil {
			e.Logger.Warn("retrieval failed, degrading to chat",
				zap.String("sessionID", sessionID), zap.Error(err))
		}
		return e.runChat(ctx, sessionID, msgs, emit)
	}

	var passages strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&passages, "[%d] (%s)\n%s\n\n", i+1, doc.Source, doc.Content)
	}
	system := fmt.Sprintf(ragSystemPrompt, passages.String())
	return e.streamReply(ctx, sessionID, system, StepRAG, msgs, emit)
}

// streamReply streams a model reply for the chat and retrieve branches,
// optionally passing it through the reviewer afterwards.
func (e *Engine) streamReply(ctx context.Context, sessionID, system, step string, msgs []models.Message, emit func(Signal)) ([]models.Message, error) {
	chatMsgs := toChatMessages(msgs)
	result, err := e.Chat.Stream(ctx, system, chatMsgs, []capability.ToolDef{checklistTool}, func(delta string) error {
		emit(TokenSignal{Step: step, Delta: delta})
		return nil
	})
	if err != nil {
		emit(ErrorSignal{Err: err})
		return nil, fmt.Errorf("chat stream: %w", err)
	}

	reply := result.Content
	if e.Reviewer != nil && len(result.ToolCalls) == 0 && reply != "" {
		if feedback, revision := e.review(ctx, msgs, reply); feedback != "" || revision != "" {
			emit(SupervisorSignal{Feedback: feedback, Revision: revision})
			if revision != "" {
				reply = revision
			}
		}
	}

	emit(ModelEndSignal{Step: step, ToolCalls: result.ToolCalls})

	if reply == "" {
		return nil, nil
	}
	return []models.Message{{Role: models.RoleAssistant, Content: reply}}, nil
}

// review runs the supervisor pass. A failed review is dropped silently; it
// only ever improves a reply, never blocks one.
func (e *Engine) review(ctx context.Context, msgs []models.Message, draft string) (feedback, revision string) {
	prompt := fmt.Sprintf(supervisorPrompt, latestUserMessage(msgs), draft)
	out, err := e.Reviewer.Complete(ctx, "", []capability.ChatMessage{{Role: models.RoleUser, Content: prompt}}, nil)
	if err != nil {
		e.Logger.Warn("supervisor review failed", zap.Error(err))
		return "", ""
	}
	return splitRevision(out.Content)
}

// runSearch executes the search branch. Summarize always runs after search,
// success or failure, and appends exactly one assistant message.
func (e *Engine) runSearch(ctx context.Context, sessionID string, decision models.AgentDecision, emit func(Signal)) ([]models.Message, error) {
	results, err := e.Search.Search(ctx, decision.SearchQuery)
	if err != nil {
		e.Logger.Warn("search failed, summarizing the error marker",
			zap.String("sessionID", sessionID),
			zap.String("query", decision.SearchQuery),
			zap.Error(err))
		results = models.SearchErrorMarker(decision.SearchQuery, err)
	}
	emit(SearchSignal{Query: decision.SearchQuery, Results: results})

	summary := e.summarize(ctx, decision.SearchQuery, results)
	emit(SummarySignal{Summary: summary})

	return []models.Message{{Role: models.RoleAssistant, Content: summary.Reply}}, nil
}

// summarize turns a search payload (or its error marker) into a PriceSummary.
// On failure it synthesizes a fixed fallback reply with the failure named in
// the caution field.
func (e *Engine) summarize(ctx context.Context, query string, results models.SearchResult) models.PriceSummary {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		resultsJSON = []byte(`{}`)
	}
	prompt := fmt.Sprintf(summaryPrompt, query, string(resultsJSON))
	raw, err := e.Summarizer.CompleteStructured(ctx, "price_summary", prompt, models.PriceSummary{})
	if err == nil {
		var summary models.PriceSummary
		if uErr := json.Unmarshal(raw, &summary); uErr == nil && summary.Reply != "" {
			return summary
		}
		err = fmt.Errorf("summary undecodable")
	}
	e.Logger.Warn("summarization failed, using fallback reply", zap.Error(err))
	return models.PriceSummary{
		Reply:   summaryFallbackReply,
		Caution: fmt.Sprintf("Summarization failed: %v", err),
	}
}

func renderConversation(msgs []models.Message) string {
	if len(msgs) == 0 {
		return "USER: (no prior messages)"
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), m.Content))
	}
	return strings.Join(lines, "\n")
}

func latestUserMessage(msgs []models.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}

func toChatMessages(msgs []models.Message) []capability.ChatMessage {
	out := make([]capability.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, capability.ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// splitRevision separates review feedback from an optional revised reply
// introduced by a "Revision:" line.
func splitRevision(content string) (feedback, revision string) {
	idx := strings.Index(content, "Revision:")
	if idx < 0 {
		return strings.TrimSpace(content), ""
	}
	feedback = strings.TrimSpace(content[:idx])
	revision = strings.TrimSpace(strings.TrimPrefix(content[idx:], "Revision:"))
	return feedback, revision
}
