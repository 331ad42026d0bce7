package checklist

import (
	"encoding/json"
	"strings"

	"hellocity/services/capability"
)

// candidateCheck decides whether a parsed object is an acceptable candidate.
type candidateCheck func(obj map[string]any) bool

// hasItems accepts only objects carrying a non-empty items list. Used for
// checklist drafts.
func hasItems(obj map[string]any) bool {
	items, ok := obj["items"].([]any)
	return ok && len(items) > 0
}

// metadataObject accepts any JSON object that is not itself a checklist
// draft. Used for metadata extraction, where a stray items-bearing object is
// the checklist, not its metadata.
func metadataObject(obj map[string]any) bool {
	_, carriesItems := obj["items"]
	return !carriesItems
}

type extractor func(out capability.GenerationOutput, check candidateCheck) (json.RawMessage, bool)

// The chain is order-significant: a structured-output field wins over
// message-content sniffing, and a direct object parse wins over digging an
// embedded JSON fragment out of surrounding prose.
var extractors = []extractor{
	extractStructured,
	extractDirectContent,
	extractEmbeddedJSON,
}

// extractCandidate walks the extractor chain and returns the first match.
func extractCandidate(out capability.GenerationOutput, check candidateCheck) (json.RawMessage, bool) {
	for _, ex := range extractors {
		if raw, ok := ex(out, check); ok {
			return raw, true
		}
	}
	return nil, false
}

func acceptObject(raw []byte, check candidateCheck) (json.RawMessage, bool) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	if !check(obj) {
		return nil, false
	}
	return json.RawMessage(raw), true
}

func extractStructured(out capability.GenerationOutput, check candidateCheck) (json.RawMessage, bool) {
	if len(out.Structured) == 0 {
		return nil, false
	}
	return acceptObject(out.Structured, check)
}

func extractDirectContent(out capability.GenerationOutput, check candidateCheck) (json.RawMessage, bool) {
	for i := len(out.Messages) - 1; i >= 0; i-- {
		content := strings.TrimSpace(out.Messages[i].Content)
		if content == "" {
			continue
		}
		if raw, ok := acceptObject([]byte(content), check); ok {
			return raw, true
		}
	}
	return nil, false
}

// extractEmbeddedJSON digs a JSON object out of prose, e.g. a reply wrapping
// the object in markdown fences or explanation text.
func extractEmbeddedJSON(out capability.GenerationOutput, check candidateCheck) (json.RawMessage, bool) {
	for i := len(out.Messages) - 1; i >= 0; i-- {
		content := out.Messages[i].Content
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start {
			continue
		}
		if raw, ok := acceptObject([]byte(content[start:end+1]), check); ok {
			return raw, true
		}
	}
	return nil, false
}
