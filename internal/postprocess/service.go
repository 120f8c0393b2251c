// Package postprocess turns extracted documents into embedding records in
// the vector index, produces human-readable change summaries, and notifies
// folder subscribers through the mailbox.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	"golang.org/x/sync/errgroup"

	"github.com/docloom/docloom/internal/chunk"
	"github.com/docloom/docloom/internal/index"
	"github.com/docloom/docloom/prompts"
	"github.com/docloom/docloom/types"
)

// Summaries shown when the model cannot produce one. Subscribers still
// learn that something happened.
const (
	fallbackCreateSummary = "A new document was indexed."
	fallbackUpdateSummary = "The document was updated."
	removalSummary        = "The document was deleted."
)

const defaultSummaryFanout = 4

// DocSource yields extracted documents from the preprocessor.
type DocSource interface {
	Pull(v any) error
}

// Indexer is the slice of the vector index this stage writes.
type Indexer interface {
	Upsert(ctx context.Context, records []index.Record) error
	DeleteFile(ctx context.Context, relativePath string) error
}

// Completer produces one completion for one prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Notifier delivers one notification to a set of users.
type Notifier interface {
	Notify(userList []string, note types.Notification) error
}

// Config assembles a Service.
type Config struct {
	Source   DocSource
	Chunker  chunk.Chunker
	Embedder embedding.Embedder
	Index    Indexer
	LLM      Completer
	Notifier Notifier

	PromptsDir    string
	SummaryFanout int
}

// Service is the indexing stage at the end of the ingestion pipeline.
type Service struct {
	source   DocSource
	chunker  chunk.Chunker
	embedder embedding.Embedder
	index    Indexer
	llm      Completer
	notifier Notifier
	fanout   int

	chunkPrompt string
	filePrompt  string
	diffPrompt  string
}

func NewService(cfg Config) *Service {
	if cfg.SummaryFanout <= 0 {
		cfg.SummaryFanout = defaultSummaryFanout
	}
	return &Service{
		source:      cfg.Source,
		chunker:     cfg.Chunker,
		embedder:    cfg.Embedder,
		index:       cfg.Index,
		llm:         cfg.LLM,
		notifier:    cfg.Notifier,
		fanout:      cfg.SummaryFanout,
		chunkPrompt: prompts.GetPrompt(prompts.KeyChunkSummary, cfg.PromptsDir),
		filePrompt:  prompts.GetPrompt(prompts.KeyFileSummary, cfg.PromptsDir),
		diffPrompt:  prompts.GetPrompt(prompts.KeyDiffSummary, cfg.PromptsDir),
	}
}

// Run consumes documents until ctx is canceled. A failed document is logged
// and the stream moves on; nothing is retried across documents.
func (s *Service) Run(ctx context.Context) {
	for {
		var doc types.ExtractedDoc
		if err := s.source.Pull(&doc); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("receive extracted document", "error", err)
			continue
		}

		if err := s.Handle(ctx, doc); err != nil {
			slog.Error("postprocess document",
				"path", doc.RelativePath, "op", string(doc.EventType), "error", err)
		}
	}
}

// Handle applies one document to the index and notifies subscribers.
func (s *Service) Handle(ctx context.Context, doc types.ExtractedDoc) error {
	switch doc.EventType {
	case types.EventCreate:
		return s.handleCreate(ctx, doc)
	case types.EventUpdate:
		return s.handleUpdate(ctx, doc)
	case types.EventDelete:
		return s.handleDelete(ctx, doc)
	default:
		return types.E(types.SchemaError, fmt.Sprintf("unknown event type %q", doc.EventType), nil)
	}
}

func (s *Service) handleCreate(ctx context.Context, doc types.ExtractedDoc) error {
	if doc.Status != types.StatusProcessed || doc.Content == nil {
		slog.Warn("create without extracted text, nothing to index",
			"path", doc.RelativePath, "status", string(doc.Status))
		return nil
	}

	chunks, err := s.chunker.Chunk(ctx, *doc.Content)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", doc.RelativePath, err)
	}
	records, err := s.embed(ctx, doc.RelativePath, chunks)
	if err != nil {
		return err
	}
	if err := s.upsertWithRetry(ctx, records); err != nil {
		return err
	}
	slog.Info("document indexed", "path", doc.RelativePath, "chunks", len(chunks))

	s.notify(doc, s.createSummary(ctx, chunks))
	return nil
}

// handleUpdate replaces the file's whole point generation: delete first,
// then insert the new chunks. Searches running in between see the old set
// or the new one, never a blend.
func (s *Service) handleUpdate(ctx context.Context, doc types.ExtractedDoc) error {
	if err := s.deleteWithRetry(ctx, doc.RelativePath); err != nil {
		return err
	}

	if doc.Status == types.StatusProcessed && doc.Content != nil {
		chunks, err := s.chunker.Chunk(ctx, *doc.Content)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", doc.RelativePath, err)
		}
		records, err := s.embed(ctx, doc.RelativePath, chunks)
		if err != nil {
			return err
		}
		if err := s.upsertWithRetry(ctx, records); err != nil {
			return err
		}
		slog.Info("document re-indexed", "path", doc.RelativePath, "chunks", len(chunks))
	} else {
		slog.Warn("update not re-indexed, stale points removed",
			"path", doc.RelativePath, "status", string(doc.Status))
	}

	s.notify(doc, s.diffSummary(ctx, doc))
	return nil
}

func (s *Service) handleDelete(ctx context.Context, doc types.ExtractedDoc) error {
	if err := s.deleteWithRetry(ctx, doc.RelativePath); err != nil {
		return err
	}
	slog.Info("document removed from index", "path", doc.RelativePath)

	s.notify(doc, removalSummary)
	return nil
}

// embed batches every chunk text into one embedding call. The vector count
// must match the chunk count or the file fails.
func (s *Service) embed(ctx context.Context, relativePath string, chunks []types.Chunk) ([]index.Record, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, types.E(types.ModelError, fmt.Sprintf("embed chunks of %s", relativePath), err)
	}
	if len(vectors) != len(chunks) {
		return nil, types.E(types.ModelError,
			fmt.Sprintf("embedding count mismatch for %s: %d vectors for %d chunks",
				relativePath, len(vectors), len(chunks)), nil)
	}

	records := make([]index.Record, len(chunks))
	for i, c := range chunks {
		records[i] = index.Record{
			RelativePath: relativePath,
			CharStart:    c.CharStart,
			CharEnd:      c.CharEnd,
			Vector:       vectors[i],
		}
	}
	return records, nil
}

func (s *Service) upsertWithRetry(ctx context.Context, records []index.Record) error {
	err := s.index.Upsert(ctx, records)
	if err == nil {
		return nil
	}
	slog.Warn("index upsert failed, retrying once", "error", err)
	return s.index.Upsert(ctx, records)
}

func (s *Service) deleteWithRetry(ctx context.Context, relativePath string) error {
	err := s.index.DeleteFile(ctx, relativePath)
	if err == nil {
		return nil
	}
	slog.Warn("index delete failed, retrying once", "path", relativePath, "error", err)
	return s.index.DeleteFile(ctx, relativePath)
}

// createSummary summarizes every chunk (bounded fan-out) and combines the
// parts into a file summary. Any model failure degrades to a fixed line
// rather than blocking the notification.
func (s *Service) createSummary(ctx context.Context, chunks []types.Chunk) string {
	if len(chunks) == 0 {
		return fallbackCreateSummary
	}

	parts := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fanout)
	for i, c := range chunks {
		g.Go(func() error {
			out, err := s.llm.Complete(gctx, fmt.Sprintf(s.chunkPrompt, c.Text))
			if err != nil {
				return err
			}
			parts[i] = strings.TrimSpace(out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		slog.Warn("chunk summaries degraded", "error", err)
		return fallbackCreateSummary
	}

	combined, err := s.llm.Complete(ctx, fmt.Sprintf(s.filePrompt, strings.Join(parts, "\n")))
	if err != nil {
		slog.Warn("file summary degraded", "error", err)
		return fallbackCreateSummary
	}
	return strings.TrimSpace(combined)
}

func (s *Service) diffSummary(ctx context.Context, doc types.ExtractedDoc) string {
	diff := strings.TrimSpace(doc.DiffContent)
	if diff == "" {
		return fallbackUpdateSummary
	}
	out, err := s.llm.Complete(ctx, fmt.Sprintf(s.diffPrompt, diff))
	if err != nil {
		slog.Warn("diff summary degraded", "path", doc.RelativePath, "error", err)
		return fallbackUpdateSummary
	}
	return strings.TrimSpace(out)
}

// notify posts to every subscriber except the author. Delivery failure is
// logged and never retried.
func (s *Service) notify(doc types.ExtractedDoc, summary string) {
	users := recipients(doc.LikedUsers, doc.UserID)
	if len(users) == 0 {
		return
	}
	note := types.Notification{
		EventType:    doc.EventType,
		RelativePath: doc.RelativePath,
		Summary:      summary,
		Timestamp:    types.UnixNow(),
	}
	if err := s.notifier.Notify(users, note); err != nil {
		slog.Error("notify subscribers", "path", doc.RelativePath, "users", len(users), "error", err)
	}
}

func recipients(likedUsers []string, author string) []string {
	users := make([]string, 0, len(likedUsers))
	for _, u := range likedUsers {
		if u != author {
			users = append(users, u)
		}
	}
	return users
}
