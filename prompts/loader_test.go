package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetPromptDefaults(t *testing.T) {
	tests := []struct {
		name      string
		promptKey PromptKey
		contains  []string
	}{
		{
			name:      "chunk boundaries prompt",
			promptKey: KeyChunkBoundaries,
			contains:  []string{"last sentence", "one sentence per line"},
		},
		{
			name:      "chunk plan prompt",
			promptKey: KeyChunkPlan,
			contains:  []string{"chunks", "first", "last"},
		},
		{
			name:      "repair prompt",
			promptKey: KeyRepairJSON,
			contains:  []string{"one json object", "previous_invalid_output"},
		},
		{
			name:      "chunk summary prompt",
			promptKey: KeyChunkSummary,
			contains:  []string{"one or two sentences"},
		},
		{
			name:      "file summary prompt",
			promptKey: KeyFileSummary,
			contains:  []string{"combine", "two or three sentences"},
		},
		{
			name:      "diff summary prompt",
			promptKey: KeyDiffSummary,
			contains:  []string{"change"},
		},
		{
			name:      "retrieval decision prompt",
			promptKey: KeyRetrievalDecision,
			contains:  []string{"need_more", "next_query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := GetPrompt(tt.promptKey, "")
			promptLower := strings.ToLower(prompt)
			for _, expected := range tt.contains {
				if !strings.Contains(promptLower, strings.ToLower(expected)) {
					t.Errorf("GetPrompt(%v) missing expected content %q", tt.promptKey, expected)
				}
			}
		})
	}
}

func TestGetPromptFileOverride(t *testing.T) {
	dir := t.TempDir()
	override := "override template: %s"
	path := filepath.Join(dir, "chunk_summary_prompt.txt")
	if err := os.WriteFile(path, []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	if got := GetPrompt(KeyChunkSummary, dir); got != override {
		t.Errorf("GetPrompt() = %q, want override content", got)
	}
	// Keys without an override file in the same directory keep their defaults.
	if got := GetPrompt(KeyDiffSummary, dir); got != DiffSummaryPrompt {
		t.Errorf("GetPrompt() should fall back to the default template")
	}
}

func TestGetPromptUnknownKey(t *testing.T) {
	if got := GetPrompt(PromptKey("Bogus"), ""); got != "" {
		t.Errorf("GetPrompt(unknown) = %q, want empty", got)
	}
}

func TestTemplateSlotCounts(t *testing.T) {
	counts := map[PromptKey]int{
		KeyChunkBoundaries:   1,
		KeyChunkPlan:         1,
		KeyRepairJSON:        2,
		KeyChunkSummary:      1,
		KeyFileSummary:       1,
		KeyDiffSummary:       1,
		KeyRetrievalDecision: 3,
	}
	for key, want := range counts {
		if got := strings.Count(GetPrompt(key, ""), "%s"); got != want {
			t.Errorf("template %v has %d string slots, want %d", key, got, want)
		}
	}
}
