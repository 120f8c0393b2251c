// Package watcher turns filesystem mutations under one root into the
// ordered event stream the rest of the pipeline consumes, and serves
// raw-file fetches against that root.
package watcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/docloom/docloom/internal/access"
	"github.com/docloom/docloom/internal/git"
	"github.com/docloom/docloom/types"
)

// EventSink receives the watcher's outbound file events.
type EventSink interface {
	Push(v any) error
}

// Config assembles an Agent.
type Config struct {
	Root        string
	UserID      string
	AllowedExts []string
	Debounce    time.Duration

	FS       afero.Fs
	Snapshot *git.Snapshot
	Oracle   *access.Oracle
	Sink     EventSink
}

// Agent owns the fsnotify watch on the root, the debounce/dedup stage,
// and the emission of committed, authorized file events.
type Agent struct {
	root    string
	userID  string
	allowed map[string]bool

	fs       afero.Fs
	watcher  *fsnotify.Watcher
	snapshot *git.Snapshot
	oracle   *access.Oracle
	sink     EventSink

	debouncer *Debouncer
	hashes    *ContentHashTracker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAgent(cfg Config) (*Agent, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Agent{
		root:     cfg.Root,
		userID:   cfg.UserID,
		allowed:  extSet(cfg.AllowedExts),
		fs:       cfg.FS,
		watcher:  w,
		snapshot: cfg.Snapshot,
		oracle:   cfg.Oracle,
		sink:     cfg.Sink,
		ctx:      ctx,
		cancel:   cancel,
	}
	a.debouncer = NewDebouncer(cfg.Debounce, a.flushBatch)
	a.hashes = NewContentHashTracker(cfg.FS)
	return a, nil
}

// Start prepares the snapshot repository, registers the watch tree, and
// begins forwarding events.
func (a *Agent) Start() error {
	if err := a.snapshot.EnsureRepo(); err != nil {
		return fmt.Errorf("prepare snapshot repository: %w", err)
	}
	if err := a.addWatchRecursive(a.root); err != nil {
		return fmt.Errorf("register watch paths: %w", err)
	}

	a.wg.Add(1)
	go a.eventLoop()
	slog.Info("watching", "root", a.root)
	return nil
}

// Stop flushes anything pending and shuts the watch down.
func (a *Agent) Stop() {
	a.cancel()
	_ = a.watcher.Close()
	a.debouncer.Flush()
	a.debouncer.Stop()
	a.wg.Wait()
}

func (a *Agent) eventLoop() {
	defer a.wg.Done()
	for {
		select {
		case event, ok := <-a.watcher.Events:
			if !ok {
				return
			}
			a.handleEvent(event)

		case err, ok := <-a.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("filesystem watch error", "error", err)

		case <-a.ctx.Done():
			return
		}
	}
}

func (a *Agent) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(a.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if ignoredPath(rel) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if info, err := a.fs.Stat(event.Name); err == nil && info.IsDir() {
			if err := a.addWatchRecursive(event.Name); err != nil {
				slog.Warn("watch new directory", "path", rel, "error", err)
			}
			return
		}
		if !a.allowed[strings.ToLower(path.Ext(rel))] {
			return
		}
		a.hashes.HasChanged(event.Name)
		a.debouncer.Add(rel, types.EventCreate)

	case event.Op&fsnotify.Write != 0:
		if !a.allowed[strings.ToLower(path.Ext(rel))] {
			return
		}
		if !a.hashes.HasChanged(event.Name) {
			slog.Debug("content unchanged, update suppressed", "path", rel)
			return
		}
		a.debouncer.Add(rel, types.EventUpdate)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		a.hashes.Remove(event.Name)
		if !a.allowed[strings.ToLower(path.Ext(rel))] {
			return
		}
		a.debouncer.Add(rel, types.EventDelete)
	}
}

// addWatchRecursive registers dir and every non-hidden subdirectory.
func (a *Agent) addWatchRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return a.watcher.Add(p)
	})
}

// flushBatch emits each debounced change. One failed emission never
// blocks the rest of the batch.
func (a *Agent) flushBatch(changes []Change) {
	for _, c := range changes {
		var err error
		switch c.Op {
		case types.EventCreate:
			err = a.emitCreate(c.Path)
		case types.EventUpdate:
			err = a.emitUpdate(c.Path)
		case types.EventDelete:
			err = a.emitDelete(c.Path)
		}
		if err != nil {
			slog.Error("emit file event", "op", string(c.Op), "path", c.Path, "error", err)
		}
	}
}

func (a *Agent) emitCreate(rel string) error {
	data, ok := a.readFile(rel)
	committed := a.commit(a.snapshot.CommitAdd, rel)
	a.oracle.UpdateStructure(rel, types.EventCreate)

	ev := a.newEvent(types.EventCreate, rel, committed)
	if ok {
		content := encodeContent(data)
		ev.FileContent = &content
		ev.FileSize = len(data)
	}
	return a.sink.Push(ev)
}

func (a *Agent) emitUpdate(rel string) error {
	data, ok := a.readFile(rel)
	diffType, diffContent := a.computeDiff(rel, data)
	committed := a.commit(a.snapshot.CommitUpdate, rel)

	ev := a.newEvent(types.EventUpdate, rel, committed)
	ev.DiffType = diffType
	ev.DiffContent = diffContent
	if ok {
		content := encodeContent(data)
		ev.FileContent = &content
		ev.FileSize = len(data)
	}
	return a.sink.Push(ev)
}

func (a *Agent) emitDelete(rel string) error {
	committed := a.commit(a.snapshot.CommitDelete, rel)
	a.oracle.UpdateStructure(rel, types.EventDelete)
	return a.sink.Push(a.newEvent(types.EventDelete, rel, committed))
}

func (a *Agent) newEvent(op types.EventType, rel string, committed bool) types.FileEvent {
	return types.FileEvent{
		EventType:    op,
		RelativePath: rel,
		UserID:       a.userID,
		Timestamp:    types.UnixNow(),
		LikedUsers:   a.oracle.Subscribers(folderOf(rel)),
		GitCommitted: committed,
	}
}

// computeDiff runs before the commit so the diff reflects the change
// being announced, not an empty post-commit delta.
func (a *Agent) computeDiff(rel string, data []byte) (string, string) {
	if a.snapshot.IsTracked(rel) {
		diff, err := a.snapshot.DiffHead(rel)
		if err != nil {
			slog.Warn("diff against snapshot head", "path", rel, "error", err)
			diff = ""
		}
		return types.DiffModification, diff
	}
	return types.DiffNewFile, git.SynthesizeAddDiff(rel, string(data))
}

func (a *Agent) readFile(rel string) ([]byte, bool) {
	data, err := afero.ReadFile(a.fs, filepath.Join(a.root, filepath.FromSlash(rel)))
	if err != nil {
		slog.Warn("read file for event", "path", rel, "error", err)
		return nil, false
	}
	return data, true
}

func (a *Agent) commit(fn func(string) error, rel string) bool {
	if err := fn(rel); err != nil {
		slog.Warn("snapshot commit failed", "path", rel, "error", err)
		return false
	}
	return true
}

func encodeContent(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// ignoredPath reports whether any segment of the slash-relative path is
// hidden (covers .git and editor scratch directories).
func ignoredPath(rel string) bool {
	if rel == "." {
		return true
	}
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func folderOf(rel string) string {
	if folder, _, ok := strings.Cut(rel, "/"); ok {
		return folder
	}
	return ""
}
