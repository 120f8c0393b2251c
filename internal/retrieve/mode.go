// Package retrieve resolves user questions against the vector index: it
// searches under the user's allow-list, pulls the matching text spans from
// the preprocessor, and drives an iterative LLM loop that decides when the
// collected context suffices.
package retrieve

import (
	"fmt"
)

// Mode sets how many search passes the agent may spend on one question.
type Mode string

const (
	// ModeNormal answers from a single pass.
	ModeNormal Mode = "normal"
	// ModeDeep allows up to three passes.
	ModeDeep Mode = "deep"
	// ModeDeeper allows five passes, each with its own strategy.
	ModeDeeper Mode = "deeper"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeNormal, ModeDeep, ModeDeeper:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown retrieval mode %q (normal, deep, deeper)", s)
	}
}

// Iterations returns the pass budget for the mode.
func (m Mode) Iterations() int {
	switch m {
	case ModeDeep:
		return 3
	case ModeDeeper:
		return 5
	default:
		return 1
	}
}

// deeperStrategies labels each pass of deeper mode.
var deeperStrategies = map[int]string{
	1: "collect basic facts",
	2: "explore specific details",
	3: "expand context and background",
	4: "gather multiple perspectives",
	5: "verify and synthesize",
}
