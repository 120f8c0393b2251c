/*
Package chunk splits extracted document text into indexable chunks.

Two strategies exist: BoundaryChunker asks the model for boundary
sentences window by window, PlanChunker asks for one whole-document
plan over a numbered sentence list. Both resolve model output against
the original text with a forward-only cursor, so chunk offsets always
come from cursor arithmetic and never from re-searching. RuleChunks is
the model-free fallback both strategies share.
*/
package chunk

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/docloom/docloom/types"
)

// Completer is the model capability the chunkers need.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Chunker turns extracted text into ordered, non-overlapping chunks.
type Chunker interface {
	Chunk(ctx context.Context, content string) ([]types.Chunk, error)
}

// Options carries the tunables shared by both chunking strategies.
type Options struct {
	Window    int // coarse window length in runes
	Overlap   int // runes shared by adjacent windows
	GroupSize int // sentences per chunk in the rule fallback
	PromptDir string
}

func (o Options) normalized() Options {
	if o.Window <= 0 {
		o.Window = 1000
	}
	if o.Overlap < 0 || o.Overlap >= o.Window {
		o.Overlap = o.Window / 5
	}
	if o.GroupSize <= 0 {
		o.GroupSize = 8
	}
	return o
}

// Window is a coarse slice of content used only to bound model context.
// Chunk boundaries never come from window edges.
type Window struct {
	Start int // rune offset of the window in the content
	Text  string
}

// Windows splits content into overlapping rune windows. The final
// window may be shorter; together they cover the whole content.
func Windows(content string, size, overlap int) []Window {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}

	var windows []Window
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, Window{Start: start, Text: string(runes[start:end])})
		if end >= len(runes) {
			break
		}
		start = end - overlap
	}
	return windows
}

var lineBreaks = regexp.MustCompile(`\n+`)

// Sentences splits content into trimmed sentences: lines first, then
// each line after every `.`, `!` or `?` followed by whitespace.
func Sentences(content string) []string {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	var sents []string
	for _, line := range lineBreaks.Split(content, -1) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		for _, part := range splitAfterTerminators(line) {
			part = strings.TrimSpace(part)
			if part != "" {
				sents = append(sents, part)
			}
		}
	}
	return sents
}

// splitAfterTerminators cuts a line after each sentence terminator
// that is followed by whitespace, keeping the terminator.
func splitAfterTerminators(line string) []string {
	runes := []rune(line)
	var parts []string
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		switch runes[i] {
		case '.', '!', '?':
			if unicode.IsSpace(runes[i+1]) {
				parts = append(parts, string(runes[start:i+1]))
				start = i + 1
			}
		}
	}
	if start < len(runes) {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

// Span is a half-open rune interval into the original content.
type Span struct {
	Start int
	End   int
}

// SentenceSpans locates each sentence in content with a forward-only
// cursor, so repeated sentences map to successive occurrences. A
// sentence that cannot be found yields a zero-width span at the cursor.
func SentenceSpans(content string, sentences []string) []Span {
	runes := []rune(content)
	spans := make([]Span, 0, len(sentences))
	cursor := 0
	for _, s := range sentences {
		at := indexRunes(runes, []rune(s), cursor)
		if at < 0 {
			spans = append(spans, Span{Start: cursor, End: cursor})
			continue
		}
		end := at + len([]rune(s))
		spans = append(spans, Span{Start: at, End: end})
		cursor = end
	}
	return spans
}

// ResolveBoundaries cuts content at each boundary sentence's first
// occurrence at or after a forward-only cursor. Unlocatable boundaries
// are dropped; spans whose text trims to empty are skipped without
// moving the cursor. A non-blank trailing remainder becomes the final
// chunk.
func ResolveBoundaries(content string, boundaries []string) []types.Chunk {
	runes := []rune(content)
	var chunks []types.Chunk
	cursor := 0
	for _, boundary := range boundaries {
		b := strings.TrimSpace(boundary)
		if b == "" {
			continue
		}
		at := indexRunes(runes, []rune(b), cursor)
		if at < 0 {
			continue
		}
		end := at + len([]rune(b))
		if strings.TrimSpace(string(runes[cursor:end])) == "" {
			continue
		}
		chunks = append(chunks, newChunk(len(chunks), runes, cursor, end))
		cursor = end
	}
	if cursor < len(runes) && strings.TrimSpace(string(runes[cursor:])) != "" {
		chunks = append(chunks, newChunk(len(chunks), runes, cursor, len(runes)))
	}
	return chunks
}

// RuleChunks groups sentences into fixed-size chunks; the group size
// is clamped to [3, 10]. Empty content yields no chunks, content
// without a sentence break yields one chunk spanning everything.
func RuleChunks(content string, groupSize int) []types.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	runes := []rune(content)
	sentences := Sentences(content)
	if len(sentences) <= 1 {
		return []types.Chunk{newChunk(0, runes, 0, len(runes))}
	}
	if groupSize < 3 {
		groupSize = 3
	}
	if groupSize > 10 {
		groupSize = 10
	}

	spans := SentenceSpans(content, sentences)
	var chunks []types.Chunk
	for i := 0; i < len(spans); i += groupSize {
		last := i + groupSize - 1
		if last >= len(spans) {
			last = len(spans) - 1
		}
		start, end := spans[i].Start, spans[last].End
		if end <= start || strings.TrimSpace(string(runes[start:end])) == "" {
			continue
		}
		chunks = append(chunks, newChunk(len(chunks), runes, start, end))
	}
	return chunks
}

// newChunk builds the chunk for runes[start:end] with word offsets
// counted as whitespace-separated fields before and inside the slice.
func newChunk(index int, runes []rune, start, end int) types.Chunk {
	text := string(runes[start:end])
	wordStart := len(strings.Fields(string(runes[:start])))
	wordEnd := wordStart
	if words := len(strings.Fields(text)); words > 0 {
		wordEnd = wordStart + words - 1
	}
	return types.Chunk{
		ChunkIndex: index,
		Text:       text,
		CharStart:  start,
		CharEnd:    end,
		WordStart:  wordStart,
		WordEnd:    wordEnd,
	}
}

// indexRunes returns the rune index of the first occurrence of needle
// in haystack at or after from, or -1.
func indexRunes(haystack, needle []rune, from int) int {
	if len(needle) == 0 || from < 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if haystack[i] != needle[0] {
			continue
		}
		found := true
		for j := 1; j < len(needle); j++ {
			if haystack[i+j] != needle[j] {
				found = false
				break
			}
		}
		if found {
			return i
		}
	}
	return -1
}
