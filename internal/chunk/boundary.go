package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docloom/docloom/prompts"
	"github.com/docloom/docloom/types"
)

// BoundaryChunker asks the model, window by window, for the last
// sentence of each semantically complete span, then cuts the full
// content at those sentences in emission order.
type BoundaryChunker struct {
	llm  Completer
	opts Options
}

// NewBoundaryChunker returns a BoundaryChunker with normalized options.
func NewBoundaryChunker(llm Completer, opts Options) *BoundaryChunker {
	return &BoundaryChunker{llm: llm, opts: opts.normalized()}
}

// Chunk implements Chunker. A window whose model call fails contributes
// zero candidates; zero candidates overall (or zero resolvable chunks)
// falls back to RuleChunks.
func (c *BoundaryChunker) Chunk(ctx context.Context, content string) ([]types.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	template := prompts.GetPrompt(prompts.KeyChunkBoundaries, c.opts.PromptDir)
	var boundaries []string
	for _, w := range Windows(content, c.opts.Window, c.opts.Overlap) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := c.llm.Complete(ctx, fmt.Sprintf(template, w.Text))
		if err != nil {
			slog.Warn("boundary proposal failed for window",
				"window_start", w.Start, "error", err)
			continue
		}
		boundaries = append(boundaries, parseBoundaryLines(out)...)
	}

	if len(boundaries) == 0 {
		slog.Debug("no boundary candidates, falling back to rule-based chunking")
		return RuleChunks(content, c.opts.GroupSize), nil
	}
	chunks := ResolveBoundaries(content, boundaries)
	if len(chunks) == 0 {
		slog.Debug("no boundary resolved in content, falling back to rule-based chunking")
		return RuleChunks(content, c.opts.GroupSize), nil
	}
	return chunks, nil
}

// parseBoundaryLines turns the line-per-sentence reply into candidate
// boundary sentences, dropping fences, list markers, and blank lines.
func parseBoundaryLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if line = stripListMarker(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// stripListMarker removes the leading "- ", "* ", "3. " and "3) "
// markers models tend to add despite instructions.
func stripListMarker(line string) string {
	if rest, ok := strings.CutPrefix(line, "- "); ok {
		return strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutPrefix(line, "* "); ok {
		return strings.TrimSpace(rest)
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
