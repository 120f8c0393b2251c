// TEI (Text Embeddings Inference) client.
// See: https://github.com/huggingface/text-embeddings-inference
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/embedding"
)

// TEIEmbedder implements embedding.Embedder against a TEI server. The
// OpenAI-compatible /v1/embeddings endpoint is tried first; older TEI
// builds that only expose the native /embed endpoint are handled by
// falling back to it.
type TEIEmbedder struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewTEIEmbedder builds an embedder for the TEI server at endpoint.
// model may be empty; TEI servers host a single model.
func NewTEIEmbedder(endpoint, model string, timeout time.Duration) *TEIEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TEIEmbedder{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

type teiEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type teiEmbedResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type teiNativeRequest struct {
	Inputs   []string `json:"inputs"`
	Truncate bool     `json:"truncate,omitempty"`
}

// EmbedStrings implements embedding.Embedder.
func (e *TEIEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedOpenAI(ctx, texts)
	if err != nil {
		vectors, err = e.embedNative(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("TEI embedding: %w", err)
		}
	}
	return vectors, nil
}

func (e *TEIEmbedder) embedOpenAI(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := postJSON(ctx, e.client, e.endpoint+"/v1/embeddings", teiEmbedRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, err
	}
	var parsed teiEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	vectors := make([][]float64, len(texts))
	for _, d := range parsed.Data {
		if d.Index >= 0 && d.Index < len(vectors) {
			vectors[d.Index] = d.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return vectors, nil
}

func (e *TEIEmbedder) embedNative(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := postJSON(ctx, e.client, e.endpoint+"/embed", teiNativeRequest{
		Inputs:   texts,
		Truncate: true,
	})
	if err != nil {
		return nil, err
	}
	var vectors [][]float64
	if err := json.Unmarshal(body, &vectors); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	return vectors, nil
}

// postJSON sends payload to url and returns the response body, treating
// any non-200 status as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

var _ embedding.Embedder = (*TEIEmbedder)(nil)
