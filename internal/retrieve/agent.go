package retrieve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/docloom/docloom/internal/utils"
	"github.com/docloom/docloom/prompts"
)

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AllowLister returns the paths a user may read.
type AllowLister interface {
	Authorized(userID string) ([]string, error)
}

// Searcher runs one retrieval pass.
type Searcher interface {
	Search(ctx context.Context, query string, allow []string) ([]Snippet, error)
}

// Decision is the structured verdict the model returns each pass.
type Decision struct {
	Answer    string `json:"answer"`
	NeedMore  bool   `json:"need_more"`
	NextQuery string `json:"next_query"`
}

func (d Decision) isZero() bool {
	return d.Answer == "" && !d.NeedMore && d.NextQuery == ""
}

const decisionSchema = `{"answer": "<string>", "need_more": <bool>, "next_query": "<string>"}`

const (
	accessDeniedAnswer = "You do not have access to any indexed documents."
	noResultsNote      = "(no results)"
	unexpectedAnswer   = "The search ended in an unexpected state. Please try again."
)

// Agent answers one question with up to Mode.Iterations() search passes.
type Agent struct {
	oracle AllowLister
	search Searcher
	llm    Completer

	decisionTmpl string
	repairTmpl   string
}

func NewAgent(oracle AllowLister, search Searcher, llm Completer, promptsDir string) *Agent {
	return &Agent{
		oracle:       oracle,
		search:       search,
		llm:          llm,
		decisionTmpl: prompts.GetPrompt(prompts.KeyRetrievalDecision, promptsDir),
		repairTmpl:   prompts.GetPrompt(prompts.KeyRepairJSON, promptsDir),
	}
}

// Answer runs the retrieval loop. A user with an empty allow-list gets a
// denial message, not an error; transport and model failures are errors.
func (a *Agent) Answer(ctx context.Context, userID, question string, mode Mode) (string, error) {
	maxIter := mode.Iterations()
	query := question
	var collected strings.Builder

	for i := 1; i <= maxIter; i++ {
		allow, err := a.oracle.Authorized(userID)
		if err != nil {
			return "", err
		}
		if len(allow) == 0 {
			return accessDeniedAnswer, nil
		}

		snippets, err := a.search.Search(ctx, query, allow)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&collected, "\n\n=== search pass %d ===\n%s", i, formatSnippets(snippets))
		slog.Debug("search pass done", "pass", i, "query", query, "snippets", len(snippets))

		final := i == maxIter
		decision, ok := a.decide(ctx, question, collected.String(), mode, i, final)
		if !ok {
			if final {
				return degradedAnswer(collected.String()), nil
			}
			continue // retry the same query on the next pass
		}

		if mode == ModeNormal || final || !decision.NeedMore {
			return decision.Answer, nil
		}
		if next := strings.TrimSpace(decision.NextQuery); next != "" {
			query = next
		} else {
			query = question
		}
	}
	return unexpectedAnswer, nil
}

// decide asks the model for a structured verdict, repairing malformed
// output with exactly one reprompt.
func (a *Agent) decide(ctx context.Context, question, collected string, mode Mode, iter int, final bool) (Decision, bool) {
	contextBlock := collected
	if strings.TrimSpace(contextBlock) == "" {
		contextBlock = prompts.NoContextPlaceholder
	}
	prompt := fmt.Sprintf(a.decisionTmpl, question, contextBlock, modeInstruction(mode, iter, final))

	out, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("decision call failed", "pass", iter, "error", err)
		out = ""
	}
	if d, ok := parseDecision(out); ok {
		return d, true
	}

	repair := fmt.Sprintf(a.repairTmpl, decisionSchema, utils.TruncateForPrompt(out, 800))
	out, err = a.llm.Complete(ctx, repair)
	if err != nil {
		slog.Warn("decision repair call failed", "pass", iter, "error", err)
		return Decision{}, false
	}
	if d, ok := parseDecision(out); ok {
		return d, true
	}
	slog.Warn("decision unparseable after repair", "pass", iter)
	return Decision{}, false
}

func parseDecision(out string) (Decision, bool) {
	d, err := utils.ExtractAndParseJSON[Decision](out)
	if err == nil && !d.isZero() {
		return d, true
	}
	// A worked example echoed before the real object parses as zero or
	// fails on placeholders; the last balanced object is the real one.
	if balanced, ok := utils.LastBalancedJSON(out); ok {
		if d, err := utils.ExtractAndParseJSON[Decision](balanced); err == nil && !d.isZero() {
			return d, true
		}
	}
	return Decision{}, false
}

func modeInstruction(mode Mode, iter int, final bool) string {
	if mode == ModeNormal {
		return prompts.NormalModeInstruction
	}
	if final {
		return fmt.Sprintf(prompts.FinalIterationInstruction, iter)
	}
	if mode == ModeDeeper {
		return fmt.Sprintf(prompts.DeeperModeInstruction, iter, deeperStrategies[iter])
	}
	return fmt.Sprintf(prompts.DeepModeInstruction, iter)
}

func formatSnippets(snippets []Snippet) string {
	if len(snippets) == 0 {
		return noResultsNote
	}
	parts := make([]string, len(snippets))
	for i, s := range snippets {
		parts[i] = fmt.Sprintf("[%s]\n%s", s.RelativePath, s.Text)
	}
	return strings.Join(parts, "\n\n")
}

// degradedAnswer is the last resort when the final pass's output cannot be
// parsed: surface a prefix of what was collected instead of nothing.
func degradedAnswer(collected string) string {
	runes := []rune(strings.TrimSpace(collected))
	if len(runes) > 500 {
		runes = runes[:500]
	}
	return "The answer could not be generated. Retrieved information so far:\n" + string(runes)
}
