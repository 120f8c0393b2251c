// Package preprocess consumes raw file events, extracts document text, and
// forwards enriched documents to the indexing stage. It also serves on-demand
// extracted-text fetches by bridging to the watcher's raw-file channel.
package preprocess

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/docloom/docloom/internal/extract"
	"github.com/docloom/docloom/types"
)

// EventSource yields the watcher's file events.
type EventSource interface {
	Pull(v any) error
}

// DocSink receives the extracted documents.
type DocSink interface {
	Push(v any) error
}

// Fetcher requests raw file bytes from the watcher.
type Fetcher interface {
	Request(req, reply any) error
}

// Config assembles a Service.
type Config struct {
	Source EventSource
	Sink   DocSink
	Fetch  Fetcher

	// FS and ScratchDir back the fetch path's scratch files. Defaults:
	// the OS filesystem and os.TempDir().
	FS         afero.Fs
	ScratchDir string
}

// Service is the preprocessing stage between the watcher and the indexer.
type Service struct {
	source  EventSource
	sink    DocSink
	fetch   Fetcher
	fs      afero.Fs
	scratch string
}

func NewService(cfg Config) *Service {
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	return &Service{
		source:  cfg.Source,
		sink:    cfg.Sink,
		fetch:   cfg.Fetch,
		fs:      cfg.FS,
		scratch: cfg.ScratchDir,
	}
}

// Run consumes events until ctx is canceled. One bad event never stops the
// stream.
func (s *Service) Run(ctx context.Context) {
	for {
		var ev types.FileEvent
		if err := s.source.Pull(&ev); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("receive file event", "error", err)
			continue
		}

		doc := s.Process(ev)
		slog.Info("document preprocessed",
			"path", doc.RelativePath, "op", string(doc.EventType), "status", string(doc.Status))
		if err := s.sink.Push(doc); err != nil {
			slog.Error("forward document", "path", doc.RelativePath, "error", err)
		}
	}
}

// Process turns one file event into an extracted document. Deletes pass
// through untouched; create/update events are extracted, and extraction
// failure is reported in the document status rather than dropped.
func (s *Service) Process(ev types.FileEvent) types.ExtractedDoc {
	doc := types.ExtractedDoc{
		EventType:          ev.EventType,
		RelativePath:       ev.RelativePath,
		UserID:             ev.UserID,
		Timestamp:          ev.Timestamp,
		LikedUsers:         ev.LikedUsers,
		ProcessedTimestamp: types.UnixNow(),
	}
	if ev.EventType == types.EventDelete {
		doc.Status = types.StatusDeleted
		return doc
	}

	doc.DiffType = ev.DiffType
	doc.DiffContent = ev.DiffContent

	text, err := s.extractEvent(ev)
	if err != nil {
		slog.Warn("text extraction failed", "path", ev.RelativePath, "error", err)
		doc.Status = types.StatusExtractionFailed
		return doc
	}
	doc.Content = &text
	doc.ContentLength = utf8.RuneCountInString(text)
	doc.Status = types.StatusProcessed
	return doc
}

func (s *Service) extractEvent(ev types.FileEvent) (string, error) {
	if ev.FileContent == nil {
		return "", types.E(types.ExtractionFailed, "event carries no file content", nil)
	}
	data, err := base64.StdEncoding.DecodeString(*ev.FileContent)
	if err != nil {
		return "", types.E(types.SchemaError, "decode file content", err)
	}
	return extract.Text(ev.RelativePath, data)
}

// HandleFetch implements bus.Handler for the extracted-text channel. The raw
// bytes come from the watcher, land in a per-request scratch file, and are
// extracted from there; the scratch file is removed on every path.
func (s *Service) HandleFetch(req []byte) any {
	var r types.FileRequest
	if err := json.Unmarshal(req, &r); err != nil || r.RelativePath == "" {
		return types.TextReply{Status: types.StatusError, Error: "relative_path is required"}
	}

	var reply types.FileReply
	if err := s.fetch.Request(types.FileRequest{RelativePath: r.RelativePath}, &reply); err != nil {
		return types.TextReply{
			Status:       types.StatusError,
			RelativePath: r.RelativePath,
			Error:        fmt.Sprintf("fetch raw file: %v", err),
		}
	}
	if reply.Status != types.StatusSuccess {
		return types.TextReply{
			Status:       types.StatusError,
			RelativePath: r.RelativePath,
			Error:        reply.Error,
		}
	}

	data, err := base64.StdEncoding.DecodeString(reply.FileContent)
	if err != nil {
		return types.TextReply{
			Status:       types.StatusError,
			RelativePath: r.RelativePath,
			Error:        fmt.Sprintf("decode file content: %v", err),
		}
	}

	scratch := filepath.Join(s.scratch, fmt.Sprintf("fetch_%s_%s", uuid.NewString(), reply.FileName))
	if err := afero.WriteFile(s.fs, scratch, data, 0o600); err != nil {
		return types.TextReply{
			Status:       types.StatusError,
			RelativePath: r.RelativePath,
			Error:        fmt.Sprintf("write scratch file: %v", err),
		}
	}
	defer func() {
		if err := s.fs.Remove(scratch); err != nil {
			slog.Warn("remove scratch file", "path", scratch, "error", err)
		}
	}()

	text, err := extract.FromFile(s.fs, scratch)
	if err != nil {
		return types.TextReply{
			Status:       types.StatusError,
			RelativePath: r.RelativePath,
			Error:        fmt.Sprintf("extract text: %v", err),
		}
	}
	return types.TextReply{
		Status:        types.StatusSuccess,
		RelativePath:  r.RelativePath,
		FileName:      reply.FileName,
		FileSize:      reply.FileSize,
		Content:       text,
		ContentLength: utf8.RuneCountInString(text),
	}
}
