// File: services/checklist/pipeline.go
package checklist

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"hellocity/models"
	"hellocity/services/capability"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultConfidence = 0.7

var confidencePattern = regexp.MustCompile(`CONFIDENCE_SCORE:\s*([0-9]*\.?[0-9]+)`)

var searchTool = capability.ToolDef{
	Name:        "web_search",
	Description: "Search the web for current, destination-specific information.",
	Parameters:  json.RawMessage(`{"type":"object","properties":{"query":{"type":"string","description":"The search query."}},"required":["query"]}`),
}

// Result is the pipeline's output. Checklist is the validated (or repaired)
// artifact; Raw carries the best-effort unvalidated candidate when
// validation and repair both failed; Metadata comes from the conversion
// stage. All three empty means no artifact was produced.
type Result struct {
	Checklist  *models.GeneratedChecklist
	Raw        json.RawMessage
	Metadata   *models.ChecklistMetadata
	Confidence float64
}

// Empty reports whether the pipeline produced nothing usable.
func (r Result) Empty() bool {
	return r.Checklist == nil && len(r.Raw) == 0 && r.Metadata == nil
}

// Outcome of a bounded tool loop. Budget exhaustion is its own outcome,
// distinct from success and failure.
type loopOutcome int

const (
	loopDone loopOutcome = iota
	loopBudgetExhausted
	loopFailed
)

// Pipeline runs the two-stage checklist generation inside the worker
// process: research and draft with validation and repair, then metadata
// conversion. Stages are fed forward; a stage failure degrades rather than
// aborting the job.
type Pipeline struct {
	Chat       capability.Completer
	Structured capability.StructuredCompleter
	Search     capability.SearchProvider
	Validate   *validator.Validate
	Logger     *zap.Logger
	MaxSteps   int
}

// Run executes both stages for one submitted job.
func (p *Pipeline) Run(ctx context.Context, payload models.ChecklistTaskPayload) Result {
	conversation := renderMessages(payload.Messages)

	notes, confidence := p.research(ctx, conversation)

	result, draftReply := p.generate(ctx, conversation, notes)
	result.Confidence = confidence

	result.Metadata = p.convert(ctx, conversionHistory(conversation, notes, draftReply, result))

	return result
}

// conversionHistory assembles the convert stage's input: the conversation,
// the research notes, and the generate stage's output. The metadata must
// describe the checklist that was actually drafted, so the draft reply and
// the checklist itself are fed forward, not just the conversation.
func conversionHistory(conversation, notes, draftReply string, result Result) string {
	var b strings.Builder
	b.WriteString(conversation)
	if notes != "" {
		b.WriteString("\n\nResearch notes:\n")
		b.WriteString(notes)
	}
	if draftReply != "" {
		b.WriteString("\n\nASSISTANT: ")
		b.WriteString(draftReply)
	}
	if draft := draftJSON(result); draft != "" {
		b.WriteString("\n\nGenerated checklist:\n")
		b.WriteString(draft)
	}
	return b.String()
}

// draftJSON renders the generate stage's artifact, validated or raw.
func draftJSON(result Result) string {
	if result.Checklist != nil {
		if encoded, err := json.Marshal(result.Checklist); err == nil {
			return string(encoded)
		}
	}
	return string(result.Raw)
}

// research is the websearch step. It never blocks the pipeline: any failure
// or a missing confidence marker yields empty notes and the default
// confidence.
func (p *Pipeline) research(ctx context.Context, conversation string) (notes string, confidence float64) {
	confidence = defaultConfidence
	if p.Search == nil {
		return "", confidence
	}

	prompt := fmt.Sprintf(researchPrompt, conversation)
	msgs, outcome := p.toolLoop(ctx, prompt)
	if outcome == loopFailed {
		p.Logger.Warn("research step failed, proceeding without notes")
		return "", confidence
	}
	if outcome == loopBudgetExhausted {
		p.Logger.Warn("research step exhausted its step budget", zap.Int("maxSteps", p.maxSteps()))
	}

	notes = lastAssistantText(msgs)
	if m := confidencePattern.FindStringSubmatch(notes); m != nil {
		if parsed, err := strconv.ParseFloat(m[1], 64); err == nil {
			confidence = parsed
		}
	}
	return notes, confidence
}

func (p *Pipeline) maxSteps() int {
	if p.MaxSteps > 0 {
		return p.MaxSteps
	}
	return 50
}

// toolLoop drives a bounded completion loop, answering web_search tool calls
// until the model stops calling tools or the step budget runs out.
func (p *Pipeline) toolLoop(ctx context.Context, prompt string) ([]capability.ChatMessage, loopOutcome) {
	msgs := []capability.ChatMessage{{Role: models.RoleUser, Content: prompt}}
	tools := []capability.ToolDef{searchTool}

	for step := 0; step < p.maxSteps(); step++ {
		reply, err := p.Chat.Complete(ctx, "", msgs, tools)
		if err != nil {
			p.Logger.Warn("tool loop completion failed", zap.Error(err))
			return msgs, loopFailed
		}
		msgs = append(msgs, *reply)
		if len(reply.ToolCalls) == 0 {
			return msgs, loopDone
		}
		for _, call := range reply.ToolCalls {
			msgs = append(msgs, capability.ChatMessage{
				Role:       capability.RoleTool,
				ToolCallID: call.ID,
				Content:    p.runSearchCall(ctx, call),
			})
		}
	}
	return msgs, loopBudgetExhausted
}

func (p *Pipeline) runSearchCall(ctx context.Context, call capability.ToolCall) string {
	if call.Name != searchTool.Name {
		return fmt.Sprintf(`{"error":"unknown tool %q"}`, call.Name)
	}
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil || args.Query == "" {
		return `{"error":"missing search query"}`
	}
	results, err := p.Search.Search(ctx, args.Query)
	if err != nil {
		p.Logger.Warn("search tool call failed", zap.String("query", args.Query), zap.Error(err))
		return fmt.Sprintf(`{"error":%q}`, err.Error())
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return `{"error":"unencodable search results"}`
	}
	return string(encoded)
}

// generate drafts the checklist, validates it, and repairs once on failure.
// A draft that still fails after repair is passed through raw rather than
// discarded. The second return value is the free-text draft reply when the
// fallback path ran, so the convert stage can see it.
func (p *Pipeline) generate(ctx context.Context, conversation, notes string) (Result, string) {
	prompt := fmt.Sprintf(generatePrompt, notes, conversation)

	var out capability.GenerationOutput
	var draftReply string
	structured, err := p.Structured.CompleteStructured(ctx, "generated_checklist", prompt, models.GeneratedChecklist{})
	if err == nil {
		out.Structured = structured
	} else {
		p.Logger.Warn("structured draft failed, falling back to free text", zap.Error(err))
		reply, cErr := p.Chat.Complete(ctx, "", []capability.ChatMessage{{Role: models.RoleUser, Content: prompt}}, nil)
		if cErr != nil {
			p.Logger.Warn("free text draft failed", zap.Error(cErr))
			return Result{}, ""
		}
		out.Messages = []capability.ChatMessage{*reply}
		draftReply = reply.Content
	}

	candidate, ok := extractCandidate(out, hasItems)
	if !ok {
		p.Logger.Warn("no checklist candidate extracted from draft")
		return Result{}, draftReply
	}

	if checklist, vErr := p.validateDraft(candidate); vErr == nil {
		return Result{Checklist: checklist}, draftReply
	} else {
		p.Logger.Warn("draft failed validation, attempting repair", zap.Error(vErr))
	}

	if repaired, ok := p.repair(ctx, candidate); ok {
		return Result{Checklist: repaired}, draftReply
	}

	// Best effort: a partially malformed checklist beats none.
	if lenient := p.lenientDecode(candidate); lenient != nil {
		return Result{Checklist: lenient, Raw: candidate}, draftReply
	}
	return Result{Raw: candidate}, draftReply
}

func (p *Pipeline) validateDraft(candidate json.RawMessage) (*models.GeneratedChecklist, error) {
	var checklist models.GeneratedChecklist
	if err := json.Unmarshal(candidate, &checklist); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	if err := p.Validate.Struct(checklist); err != nil {
		return nil, fmt.Errorf("validate draft: %w", err)
	}
	return &checklist, nil
}

// repair issues exactly one corrective structured call carrying the invalid
// candidate verbatim.
func (p *Pipeline) repair(ctx context.Context, candidate json.RawMessage) (*models.GeneratedChecklist, bool) {
	prompt := fmt.Sprintf(repairPrompt, string(candidate))
	raw, err := p.Structured.CompleteStructured(ctx, "generated_checklist", prompt, models.GeneratedChecklist{})
	if err != nil {
		p.Logger.Warn("repair call failed", zap.Error(err))
		return nil, false
	}
	checklist, vErr := p.validateDraft(raw)
	if vErr != nil {
		p.Logger.Warn("repaired draft still invalid", zap.Error(vErr))
		return nil, false
	}
	return checklist, true
}

func (p *Pipeline) lenientDecode(candidate json.RawMessage) *models.GeneratedChecklist {
	var checklist models.GeneratedChecklist
	if err := json.Unmarshal(candidate, &checklist); err != nil {
		return nil
	}
	if len(checklist.Items) == 0 {
		return nil
	}
	return &checklist
}

// convert is the second stage: metadata extraction. No repair path; absence
// of metadata is tolerated, not fatal.
func (p *Pipeline) convert(ctx context.Context, history string) *models.ChecklistMetadata {
	prompt := fmt.Sprintf(convertPrompt, history)

	var out capability.GenerationOutput
	structured, err := p.Structured.CompleteStructured(ctx, "checklist_metadata", prompt, models.ChecklistMetadata{})
	if err == nil {
		out.Structured = structured
	} else {
		p.Logger.Warn("structured conversion failed, falling back to free text", zap.Error(err))
		reply, cErr := p.Chat.Complete(ctx, "", []capability.ChatMessage{{Role: models.RoleUser, Content: prompt}}, nil)
		if cErr != nil {
			p.Logger.Warn("free text conversion failed", zap.Error(cErr))
			return nil
		}
		out.Messages = []capability.ChatMessage{*reply}
	}

	candidate, ok := extractCandidate(out, metadataObject)
	if !ok {
		return nil
	}
	var meta models.ChecklistMetadata
	if err := json.Unmarshal(candidate, &meta); err != nil {
		return nil
	}
	return &meta
}

func renderMessages(msgs []models.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(m.Role), m.Content))
	}
	return strings.Join(lines, "\n")
}

func lastAssistantText(msgs []capability.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == models.RoleAssistant && msgs[i].Content != "" {
			return msgs[i].Content
		}
	}
	return ""
}
