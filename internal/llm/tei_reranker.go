package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// TEIReranker scores documents against a query via a TEI server's
// /rerank endpoint.
type TEIReranker struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewTEIReranker builds a reranker for the TEI server at endpoint.
func NewTEIReranker(endpoint, model string, timeout time.Duration) *TEIReranker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TEIReranker{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

// RerankResult is one document's relevance judgment.
type RerankResult struct {
	Index int     // position in the input documents slice
	Score float64 // higher is more relevant
	Text  string  // the original document text
}

type teiRerankRequest struct {
	Query    string   `json:"query"`
	Texts    []string `json:"texts"`
	Truncate bool     `json:"truncate,omitempty"`
	Model    string   `json:"model,omitempty"`
}

type teiRerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank scores documents against query and returns the topN most
// relevant, highest score first. topN <= 0 returns all documents.
func (r *TEIReranker) Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	body, err := postJSON(ctx, r.client, r.endpoint+"/rerank", teiRerankRequest{
		Query:    query,
		Texts:    documents,
		Truncate: true,
		Model:    r.model,
	})
	if err != nil {
		return nil, fmt.Errorf("TEI rerank: %w", err)
	}

	var entries []teiRerankEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("TEI rerank: decode response: %w", err)
	}

	results := make([]RerankResult, 0, len(entries))
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(documents) {
			continue
		}
		results = append(results, RerankResult{
			Index: e.Index,
			Score: e.Score,
			Text:  documents[e.Index],
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}
