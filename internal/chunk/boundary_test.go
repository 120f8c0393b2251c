package chunk

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestBoundaryChunkerSplitsAtProposedSentences(t *testing.T) {
	content := "The quick brown fox jumps. A second thought follows here. Finally the tale ends."
	fake := &fakeCompleter{replies: []string{
		"The quick brown fox jumps.\nA second thought follows here.",
	}}
	c := NewBoundaryChunker(fake, Options{Window: 1000, Overlap: 200})

	chunks, err := c.Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	assertChunkGeometry(t, content, chunks)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	var joined string
	for _, c := range chunks {
		joined += c.Text
	}
	if joined != content {
		t.Errorf("chunks should tile the content, got %q", joined)
	}
	if len(fake.calls) != 1 {
		t.Errorf("got %d model calls, want 1", len(fake.calls))
	}
	if !strings.Contains(fake.calls[0], content) {
		t.Errorf("prompt should embed the window text")
	}
}

func TestBoundaryChunkerStripsFencesAndMarkers(t *testing.T) {
	content := "First sentence here. Second sentence there. Third closes it."
	fake := &fakeCompleter{replies: []string{
		"```\n1. First sentence here.\n- Second sentence there.\n```",
	}}
	c := NewBoundaryChunker(fake, Options{})

	chunks, err := c.Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	assertChunkGeometry(t, content, chunks)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[0].Text != "First sentence here." {
		t.Errorf("chunk 0 = %q", chunks[0].Text)
	}
}

func TestBoundaryChunkerAccumulatesAcrossWindows(t *testing.T) {
	content := "Alpha beta gamma delta one. Epsilon zeta eta theta two. Iota kappa lambda three."
	fake := &fakeCompleter{replies: []string{
		"Alpha beta gamma delta one.",
		"Epsilon zeta eta theta two.",
		"",
	}}
	c := NewBoundaryChunker(fake, Options{Window: 40, Overlap: 10})

	chunks, err := c.Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	assertChunkGeometry(t, content, chunks)
	if len(fake.calls) != 3 {
		t.Fatalf("got %d model calls, want 3 (one per window)", len(fake.calls))
	}
	if !strings.Contains(fake.calls[1], "zeta eta theta two.") {
		t.Errorf("second prompt should carry the second window")
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if chunks[2].Text != " Iota kappa lambda three." {
		t.Errorf("remainder chunk = %q", chunks[2].Text)
	}
}

func TestBoundaryChunkerModelFailureFallsBack(t *testing.T) {
	content := "One sentence here. Another sentence there."
	fake := &fakeCompleter{
		replies: []string{""},
		errs:    []error{errors.New("model unavailable")},
	}
	c := NewBoundaryChunker(fake, Options{GroupSize: 8})

	chunks, err := c.Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	want := RuleChunks(content, 8)
	if !reflect.DeepEqual(chunks, want) {
		t.Errorf("expected rule-based fallback chunks, got %+v", chunks)
	}
}

func TestBoundaryChunkerUnlocatableProposalKeepsRemainder(t *testing.T) {
	content := "Only this content exists."
	fake := &fakeCompleter{replies: []string{"a sentence that appears nowhere"}}
	c := NewBoundaryChunker(fake, Options{})

	chunks, err := c.Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].Text != content {
		t.Errorf("expected one whole-content chunk, got %+v", chunks)
	}
}

func TestBoundaryChunkerEmptyContent(t *testing.T) {
	fake := &fakeCompleter{}
	c := NewBoundaryChunker(fake, Options{})

	chunks, err := c.Chunk(context.Background(), "   \n ")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if chunks != nil {
		t.Errorf("got %v, want nil", chunks)
	}
	if len(fake.calls) != 0 {
		t.Errorf("blank content should not reach the model")
	}
}

func TestBoundaryChunkerDeterministic(t *testing.T) {
	content := "Repeatable input one. Repeatable input two. Repeatable input three."
	replies := []string{"Repeatable input one.\nRepeatable input two."}

	first, err := NewBoundaryChunker(&fakeCompleter{replies: replies}, Options{}).
		Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("first run error = %v", err)
	}
	second, err := NewBoundaryChunker(&fakeCompleter{replies: replies}, Options{}).
		Chunk(context.Background(), content)
	if err != nil {
		t.Fatalf("second run error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same content and replies must give identical chunks")
	}
}

func TestBoundaryChunkerCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewBoundaryChunker(&fakeCompleter{}, Options{})

	if _, err := c.Chunk(ctx, "Some content. More content."); err == nil {
		t.Fatal("expected context error")
	}
}
