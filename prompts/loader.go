package prompts

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// PromptKey is a type for identifying specific prompts.
type PromptKey string

const (
	// KeyChunkBoundaries is the key for the per-window boundary proposal prompt.
	KeyChunkBoundaries PromptKey = "ChunkBoundaries"
	// KeyChunkPlan is the key for the sentence-list chunking plan prompt.
	KeyChunkPlan PromptKey = "ChunkPlan"
	// KeyRepairJSON is the key for the malformed-JSON repair reprompt.
	KeyRepairJSON PromptKey = "RepairJSON"
	// KeyChunkSummary is the key for the per-chunk summary prompt.
	KeyChunkSummary PromptKey = "ChunkSummary"
	// KeyFileSummary is the key for the combined file summary prompt.
	KeyFileSummary PromptKey = "FileSummary"
	// KeyDiffSummary is the key for the update diff summary prompt.
	KeyDiffSummary PromptKey = "DiffSummary"
	// KeyRetrievalDecision is the key for the retrieval loop decision prompt.
	KeyRetrievalDecision PromptKey = "RetrievalDecision"
)

// promptConfig defines the default content and filename for a prompt.
type promptConfig struct {
	defaultContent string
	filename       string
}

// promptRegistry maps a PromptKey to its configuration.
var promptRegistry = map[PromptKey]promptConfig{
	KeyChunkBoundaries: {
		defaultContent: ChunkBoundariesPrompt,
		filename:       "chunk_boundaries_prompt.txt",
	},
	KeyChunkPlan: {
		defaultContent: ChunkPlanPrompt,
		filename:       "chunk_plan_prompt.txt",
	},
	KeyRepairJSON: {
		defaultContent: RepairJSONPrompt,
		filename:       "repair_json_prompt.txt",
	},
	KeyChunkSummary: {
		defaultContent: ChunkSummaryPrompt,
		filename:       "chunk_summary_prompt.txt",
	},
	KeyFileSummary: {
		defaultContent: FileSummaryPrompt,
		filename:       "file_summary_prompt.txt",
	},
	KeyDiffSummary: {
		defaultContent: DiffSummaryPrompt,
		filename:       "diff_summary_prompt.txt",
	},
	KeyRetrievalDecision: {
		defaultContent: RetrievalDecisionPrompt,
		filename:       "retrieval_decision_prompt.txt",
	},
}

// GetPrompt returns the prompt template for key. When templatesDir
// holds a file named after the key, that file's content overrides the
// built-in default. Lookup problems fall back to the default so a bad
// override never stops the pipeline.
func GetPrompt(key PromptKey, templatesDir string) string {
	config, ok := promptRegistry[key]
	if !ok {
		slog.Error("unrecognized prompt key", "key", string(key))
		return ""
	}
	if strings.TrimSpace(templatesDir) == "" {
		return config.defaultContent
	}

	customPromptPath := filepath.Join(templatesDir, config.filename)
	if _, err := os.Stat(customPromptPath); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cannot check custom prompt file, using default",
				"path", customPromptPath, "error", err)
		}
		return config.defaultContent
	}

	content, err := os.ReadFile(customPromptPath)
	if err != nil {
		slog.Warn("cannot read custom prompt file, using default",
			"path", customPromptPath, "error", err)
		return config.defaultContent
	}
	slog.Debug("using custom prompt", "path", customPromptPath)
	return string(content)
}
