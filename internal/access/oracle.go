// Package access holds the authorization oracle: the trusted mapping from
// users to the files they may read and from folders to the users subscribed
// to them. Grants are provisioned per top-level folder; the oracle tracks
// which files currently live in each folder as the watcher reports changes.
package access

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/docloom/docloom/types"
)

// Oracle is safe for concurrent use. Reads vastly outnumber writes: every
// fetch and every search consults it, while only watcher create/delete
// events mutate it.
type Oracle struct {
	mu    sync.RWMutex
	perms map[string]map[string]bool // user -> folders granted to them
	files map[string]map[string]bool // folder -> file names inside it
	subs  map[string][]string        // folder -> subscribed users
}

func NewOracle() *Oracle {
	return &Oracle{
		perms: make(map[string]map[string]bool),
		files: make(map[string]map[string]bool),
		subs:  make(map[string][]string),
	}
}

// tableFile is the YAML seed. Each user lists paths it may read; a bare
// folder name grants the folder without seeding any file into it. Each
// folder lists the users subscribed to its changes.
type tableFile struct {
	Users   map[string][]string `yaml:"users"`
	Folders map[string][]string `yaml:"folders"`
}

// Load reads the YAML access table at path.
func Load(fs afero.Fs, path string) (*Oracle, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read access table %s: %w", path, err)
	}
	var table tableFile
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse access table %s: %w", path, err)
	}

	o := NewOracle()
	for user, paths := range table.Users {
		if o.perms[user] == nil {
			o.perms[user] = make(map[string]bool)
		}
		for _, p := range paths {
			folder, name, hasFile := strings.Cut(p, "/")
			if folder == "" {
				slog.Warn("access table entry has empty folder", "user", user, "path", p)
				continue
			}
			o.perms[user][folder] = true
			if o.files[folder] == nil {
				o.files[folder] = make(map[string]bool)
			}
			if hasFile && name != "" {
				o.files[folder][name] = true
			}
		}
	}
	for folder, users := range table.Folders {
		o.subs[folder] = append([]string{}, users...)
		if o.files[folder] == nil {
			o.files[folder] = make(map[string]bool)
		}
	}
	return o, nil
}

// Authorized returns every path the user may read, as sorted folder/name
// joins. Unknown users get an empty list.
func (o *Oracle) Authorized(userID string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	paths := []string{}
	for folder := range o.perms[userID] {
		for name := range o.files[folder] {
			paths = append(paths, folder+"/"+name)
		}
	}
	sort.Strings(paths)
	return paths
}

// Subscribers returns the users subscribed to a top-level folder.
func (o *Oracle) Subscribers(folder string) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string{}, o.subs[folder]...)
}

// Folders returns the distinct top-level folders in which the user can
// currently read at least one file, sorted.
func (o *Oracle) Folders(userID string) []string {
	return FoldersOf(o.Authorized(userID))
}

// FoldersOf extracts the distinct first path segments from a path list.
func FoldersOf(paths []string) []string {
	seen := make(map[string]bool)
	folders := []string{}
	for _, p := range paths {
		folder, _, ok := strings.Cut(p, "/")
		if !ok || folder == "" {
			continue
		}
		if !seen[folder] {
			seen[folder] = true
			folders = append(folders, folder)
		}
	}
	sort.Strings(folders)
	return folders
}

// UpdateStructure records a file appearing in or vanishing from its folder.
// The folder is the segment before the first slash. Updates are idempotent:
// adding a present file, removing an absent one, or touching an unknown
// folder is a no-op with a diagnostic log. Folders are provisioned by the
// seed table and never created here.
func (o *Oracle) UpdateStructure(relativePath string, op types.EventType) {
	folder, name, ok := strings.Cut(relativePath, "/")
	if !ok || folder == "" || name == "" {
		slog.Warn("path has no folder segment, structure unchanged", "relative_path", relativePath)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	names, known := o.files[folder]
	if !known {
		slog.Warn("unknown folder, structure unchanged", "folder", folder, "relative_path", relativePath)
		return
	}

	switch op {
	case types.EventCreate:
		if names[name] {
			slog.Debug("file already tracked", "folder", folder, "file", name)
			return
		}
		names[name] = true
		slog.Info("file added to folder structure", "folder", folder, "file", name)
	case types.EventDelete:
		if !names[name] {
			slog.Debug("file not tracked", "folder", folder, "file", name)
			return
		}
		delete(names, name)
		slog.Info("file removed from folder structure", "folder", folder, "file", name)
	default:
		slog.Debug("structure unchanged for event", "event_type", string(op))
	}
}
