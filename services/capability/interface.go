// Package capability wraps the external reasoning, search, and retrieval
// services behind a closed set of typed interfaces. Which capability runs is
// decided by the routing layer, never inside an opaque agent loop.
package capability

import (
	"context"
	"encoding/json"
)

// Chat roles on top of the conversation roles, used for tool exchanges.
const (
	RoleSystem = "system"
	RoleTool   = "tool"
)

// ToolCall is a capability-requested invocation of a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolDef describes a tool offered to a chat capability. Parameters is a JSON
// schema object; nil means the tool takes no arguments.
type ToolDef struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// ChatMessage is one entry of a model conversation, including tool traffic.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ChatResult is the final outcome of a streamed chat completion.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

// Streamer produces free text incrementally, invoking onDelta for every
// fragment. A non-nil error from onDelta aborts the stream.
type Streamer interface {
	Stream(ctx context.Context, system string, msgs []ChatMessage, tools []ToolDef, onDelta func(delta string) error) (*ChatResult, error)
}

// Completer produces a single chat completion, possibly requesting tool
// calls. Used by bounded tool loops that feed results back in.
type Completer interface {
	Complete(ctx context.Context, system string, msgs []ChatMessage, tools []ToolDef) (*ChatMessage, error)
}

// StructuredCompleter asks for an object conforming to the JSON schema
// derived from schemaFor and returns the raw object bytes.
type StructuredCompleter interface {
	CompleteStructured(ctx context.Context, name string, prompt string, schemaFor any) (json.RawMessage, error)
}

// SearchProvider runs a web search and returns its opaque structured payload.
type SearchProvider interface {
	Search(ctx context.Context, query string) (map[string]any, error)
}

// Document is a retrieved context fragment.
type Document struct {
	Content   string
	Source    string
	Certainty float64
}

// Retriever answers a query against the document index.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Document, error)
}

// GenerationOutput is the uniform result of a generation step, fed to the
// candidate extractor chain. Structured is the capability-native structured
// response when one was produced.
type GenerationOutput struct {
	Structured json.RawMessage
	Messages   []ChatMessage
}
