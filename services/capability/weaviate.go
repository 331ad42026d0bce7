package capability

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// WeaviateRetriever implements Retriever against a Weaviate vector index.
type WeaviateRetriever struct {
	client    *weaviate.Client
	className string
}

// NewWeaviateRetriever connects to a Weaviate instance hosting the given class.
func NewWeaviateRetriever(host, scheme, className string) (*WeaviateRetriever, error) {
	client, err := weaviate.NewClient(weaviate.Config{
		Host:   host,
		Scheme: scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, className: className}, nil
}

type retrievedObject struct {
	Content    string `json:"content"`
	Source     string `json:"source"`
	Additional struct {
		Certainty float64 `json:"certainty"`
	} `json:"_additional"`
}

// Retrieve runs a near-text query and returns the matched documents.
func (w *WeaviateRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 4
	}

	nearText := w.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	fields := []graphql.Field{
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "certainty"}}},
	}

	result, err := w.client.GraphQL().Get().
		WithClassName(w.className).
		WithFields(fields...).
		WithNearText(nearText).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("weaviate query: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("weaviate query error: %s", result.Errors[0].Message)
	}

	// The GraphQL payload is untyped; round-trip the class slice through JSON
	// to decode it.
	getData, ok := result.Data["Get"]
	if !ok {
		return nil, nil
	}
	rawGet, err := json.Marshal(getData)
	if err != nil {
		return nil, fmt.Errorf("decode weaviate payload: %w", err)
	}
	var byClass map[string][]retrievedObject
	if err := json.Unmarshal(rawGet, &byClass); err != nil {
		return nil, fmt.Errorf("decode weaviate payload: %w", err)
	}

	objects := byClass[w.className]
	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		docs = append(docs, Document{
			Content:   obj.Content,
			Source:    obj.Source,
			Certainty: obj.Additional.Certainty,
		})
	}
	return docs, nil
}
