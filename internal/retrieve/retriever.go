package retrieve

import (
	"context"
	"log/slog"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/docloom/docloom/internal/index"
	"github.com/docloom/docloom/internal/llm"
	"github.com/docloom/docloom/types"
)

// SearchStore is the read slice of the vector index.
type SearchStore interface {
	Search(ctx context.Context, vector []float64, limit int, allow []string) ([]index.Hit, error)
}

// Reranker reorders candidate texts by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]llm.RerankResult, error)
}

// ContentFetcher returns a document's extracted text.
type ContentFetcher interface {
	Content(relativePath string) (string, error)
}

// Snippet is one retrieved text span.
type Snippet struct {
	RelativePath string
	Text         string
}

// Retriever runs one search pass: embed the query, search the index under
// the allow-list, resolve hits to text spans, and rerank.
type Retriever struct {
	embedder embedding.Embedder
	store    SearchStore
	fetch    ContentFetcher
	reranker Reranker // nil disables reranking
	topN     int
}

func NewRetriever(embedder embedding.Embedder, store SearchStore, fetch ContentFetcher, reranker Reranker, topN int) *Retriever {
	if topN <= 0 {
		topN = 3
	}
	return &Retriever{
		embedder: embedder,
		store:    store,
		fetch:    fetch,
		reranker: reranker,
		topN:     topN,
	}
}

// Search returns up to topN snippets for the query. The index is asked for
// twice that many candidates so the reranker has something to choose from.
func (r *Retriever) Search(ctx context.Context, query string, allow []string) ([]Snippet, error) {
	vectors, err := r.embedder.EmbedStrings(ctx, []string{query})
	if err != nil || len(vectors) == 0 {
		return nil, types.E(types.ModelError, "embed query", err)
	}

	hits, err := r.store.Search(ctx, vectors[0], 2*r.topN, allow)
	if err != nil {
		return nil, err
	}

	candidates := r.resolve(hits)
	if len(candidates) == 0 {
		return nil, nil
	}
	return r.pick(ctx, query, candidates), nil
}

// resolve turns hits into text spans. Each file's content is fetched once
// per call; hits whose span no longer fits the current content are dropped.
func (r *Retriever) resolve(hits []index.Hit) []Snippet {
	contents := make(map[string]string, len(hits))
	snippets := make([]Snippet, 0, len(hits))
	for _, h := range hits {
		content, ok := contents[h.RelativePath]
		if !ok {
			var err error
			content, err = r.fetch.Content(h.RelativePath)
			if err != nil {
				slog.Warn("fetch hit content", "path", h.RelativePath, "error", err)
				contents[h.RelativePath] = ""
				continue
			}
			contents[h.RelativePath] = content
		}
		if content == "" {
			continue
		}

		text, ok := sliceRunes(content, h.CharStart, h.CharEnd)
		if !ok {
			slog.Warn("hit span out of range", "path", h.RelativePath,
				"char_start", h.CharStart, "char_end", h.CharEnd)
			continue
		}
		snippets = append(snippets, Snippet{RelativePath: h.RelativePath, Text: text})
	}
	return snippets
}

// pick reranks the candidates down to topN. Without a reranker, or when it
// fails, the first topN keep the index's own ordering.
func (r *Retriever) pick(ctx context.Context, query string, candidates []Snippet) []Snippet {
	firstN := func() []Snippet {
		if len(candidates) > r.topN {
			return candidates[:r.topN]
		}
		return candidates
	}
	if r.reranker == nil {
		return firstN()
	}

	texts := make([]string, len(candidates))
	for i, s := range candidates {
		texts[i] = s.Text
	}
	results, err := r.reranker.Rerank(ctx, query, texts, r.topN)
	if err != nil {
		slog.Warn("rerank failed, keeping index order", "error", err)
		return firstN()
	}

	picked := make([]Snippet, 0, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) {
			continue
		}
		picked = append(picked, candidates[res.Index])
	}
	if len(picked) == 0 {
		return firstN()
	}
	return picked
}

func sliceRunes(content string, start, end int) (string, bool) {
	runes := []rune(content)
	if start < 0 || start >= len(runes) || end <= start {
		return "", false
	}
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[start:end]), true
}
