package chunk

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/docloom/docloom/internal/utils"
	"github.com/docloom/docloom/prompts"
	"github.com/docloom/docloom/types"
)

// PlanChunker numbers every sentence of the content and asks the model
// for one JSON plan naming each chunk's first and last sentence. An
// unusable plan gets exactly one repair reprompt before the rule-based
// fallback runs.
type PlanChunker struct {
	llm  Completer
	opts Options
}

// NewPlanChunker returns a PlanChunker with normalized options.
func NewPlanChunker(llm Completer, opts Options) *PlanChunker {
	return &PlanChunker{llm: llm, opts: opts.normalized()}
}

const planSchema = `{"chunks": [{"first": "<string>", "last": "<string>"}]}`

type chunkPlan struct {
	Chunks []planEntry `json:"chunks"`
}

// planEntry tolerates the field spellings models actually produce: the
// documented first/last pair, the spelled-out sentence pair, and the
// numeric index pair.
type planEntry struct {
	First     json.RawMessage `json:"first"`
	Last      json.RawMessage `json:"last"`
	FirstSent json.RawMessage `json:"first_sentence"`
	LastSent  json.RawMessage `json:"last_sentence"`
	FirstIdx  json.RawMessage `json:"first_sentence_index"`
	LastIdx   json.RawMessage `json:"last_sentence_index"`
}

func (e planEntry) first() json.RawMessage {
	if len(e.First) > 0 {
		return e.First
	}
	if len(e.FirstSent) > 0 {
		return e.FirstSent
	}
	return e.FirstIdx
}

func (e planEntry) last() json.RawMessage {
	if len(e.Last) > 0 {
		return e.Last
	}
	if len(e.LastSent) > 0 {
		return e.LastSent
	}
	return e.LastIdx
}

// Chunk implements Chunker.
func (c *PlanChunker) Chunk(ctx context.Context, content string) ([]types.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	runes := []rune(content)
	sentences := Sentences(content)
	if len(sentences) <= 1 {
		return []types.Chunk{newChunk(0, runes, 0, len(runes))}, nil
	}
	spans := SentenceSpans(content, sentences)

	prompt := fmt.Sprintf(prompts.GetPrompt(prompts.KeyChunkPlan, c.opts.PromptDir),
		numberSentences(sentences))
	raw, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("chunk plan request failed", "error", err)
		raw = ""
	}

	chunks := c.applyPlan(raw, runes, sentences, spans)
	if len(chunks) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		repair := fmt.Sprintf(prompts.GetPrompt(prompts.KeyRepairJSON, c.opts.PromptDir),
			planSchema, utils.TruncateForPrompt(raw, 800))
		retry, rerr := c.llm.Complete(ctx, repair)
		if rerr != nil {
			slog.Warn("chunk plan repair request failed", "error", rerr)
		} else {
			chunks = c.applyPlan(retry, runes, sentences, spans)
		}
	}
	if len(chunks) == 0 {
		slog.Debug("chunk plan unusable, falling back to rule-based chunking")
		return RuleChunks(content, c.opts.GroupSize), nil
	}
	return chunks, nil
}

// applyPlan parses one model reply into chunks. When the first parsed
// value yields nothing (worked examples echoed from the prompt parse
// fine but map to nothing), the last balanced placeholder-free JSON
// fragment gets a second look.
func (c *PlanChunker) applyPlan(raw string, runes []rune, sentences []string, spans []Span) []types.Chunk {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if plan, err := utils.ExtractAndParseJSON[chunkPlan](raw); err == nil {
		if chunks := planToChunks(plan, runes, sentences, spans); len(chunks) > 0 {
			return chunks
		}
	}
	frag, ok := utils.LastBalancedJSON(raw)
	if !ok {
		return nil
	}
	plan, err := utils.ExtractAndParseJSON[chunkPlan](frag)
	if err != nil {
		slog.Debug("recovered JSON fragment did not parse as a plan", "error", err)
		return nil
	}
	return planToChunks(plan, runes, sentences, spans)
}

func planToChunks(plan chunkPlan, runes []rune, sentences []string, spans []Span) []types.Chunk {
	return rangesToChunks(mapPlanToRanges(plan, sentences), runes, spans)
}

// sentenceRange is an inclusive interval of sentence list positions.
type sentenceRange struct {
	first int
	last  int
}

// mapPlanToRanges resolves plan entries to sentence ranges. All-numeric
// plans are treated as index plans; anything else locates the literal
// sentences with a forward-only cursor.
func mapPlanToRanges(plan chunkPlan, sentences []string) []sentenceRange {
	if len(plan.Chunks) == 0 {
		return nil
	}
	if idx, ok := numericPlan(plan.Chunks); ok {
		return indexRanges(idx, len(sentences))
	}
	return literalRanges(plan.Chunks, sentences)
}

func numericPlan(entries []planEntry) ([]sentenceRange, bool) {
	ranges := make([]sentenceRange, 0, len(entries))
	for _, e := range entries {
		f, ok1 := rawInt(e.first())
		l, ok2 := rawInt(e.last())
		if !ok1 || !ok2 {
			return nil, false
		}
		ranges = append(ranges, sentenceRange{first: f, last: l})
	}
	return ranges, len(ranges) > 0
}

// indexRanges validates numeric plans. 1-based replies are auto
// detected: when every reported index is >= 1, one is subtracted.
// Entries that run backwards or out of range are dropped.
func indexRanges(ranges []sentenceRange, total int) []sentenceRange {
	oneBased := true
	for _, r := range ranges {
		if r.first < 1 || r.last < 1 {
			oneBased = false
			break
		}
	}
	out := make([]sentenceRange, 0, len(ranges))
	cursor := 0
	for _, r := range ranges {
		f, l := r.first, r.last
		if oneBased {
			f--
			l--
		}
		if f < cursor || l < f || l >= total {
			continue
		}
		out = append(out, sentenceRange{first: f, last: l})
		cursor = l + 1
	}
	return out
}

// literalRanges locates each entry's first and last sentence in the
// sentence list, first from the cursor and last from the first, so
// ranges never overlap or run backwards.
func literalRanges(entries []planEntry, sentences []string) []sentenceRange {
	var out []sentenceRange
	cursor := 0
	for i, e := range entries {
		first, ok1 := rawString(e.first())
		last, ok2 := rawString(e.last())
		if !ok1 || !ok2 {
			continue
		}
		fi := indexOfSentence(sentences, first, cursor)
		if fi < 0 {
			slog.Debug("plan chunk first sentence not found", "entry", i)
			continue
		}
		li := indexOfSentence(sentences, last, fi)
		if li < 0 {
			slog.Debug("plan chunk last sentence not found", "entry", i)
			continue
		}
		out = append(out, sentenceRange{first: fi, last: li})
		cursor = li + 1
	}
	return out
}

func rangesToChunks(ranges []sentenceRange, runes []rune, spans []Span) []types.Chunk {
	var chunks []types.Chunk
	for _, r := range ranges {
		if r.first < 0 || r.last < r.first || r.last >= len(spans) {
			continue
		}
		start, end := spans[r.first].Start, spans[r.last].End
		if end <= start || strings.TrimSpace(string(runes[start:end])) == "" {
			continue
		}
		chunks = append(chunks, newChunk(len(chunks), runes, start, end))
	}
	return chunks
}

func rawInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, aerr := strconv.Atoi(strings.TrimSpace(s)); aerr == nil {
			return n, true
		}
	}
	return 0, false
}

func rawString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// indexOfSentence finds the first sentence at or after from that equals
// s once trimmed.
func indexOfSentence(sentences []string, s string, from int) int {
	s = strings.TrimSpace(s)
	if from < 0 {
		from = 0
	}
	for i := from; i < len(sentences); i++ {
		if sentences[i] == s {
			return i
		}
	}
	return -1
}

// numberSentences renders the 1-based sentence list fed to the model,
// truncating very long sentences to keep the prompt bounded.
func numberSentences(sentences []string) string {
	var sb strings.Builder
	for i, s := range sentences {
		if r := []rune(s); len(r) > 300 {
			s = string(r[:300]) + "…"
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
	}
	return strings.TrimRight(sb.String(), "\n")
}
