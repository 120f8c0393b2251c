package watcher

import (
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/docloom/docloom/types"
)

// FileServer answers raw-file fetch requests against the watched root.
// It backs the ROUTER socket the preprocessor bridges to.
type FileServer struct {
	root    string
	allowed map[string]bool
	fs      afero.Fs
}

func NewFileServer(root string, allowedExts []string, fs afero.Fs) *FileServer {
	return &FileServer{
		root:    root,
		allowed: extSet(allowedExts),
		fs:      fs,
	}
}

// Handle implements bus.Handler. Every request gets exactly one reply;
// failures are reported in-band as status-error replies.
func (s *FileServer) Handle(req []byte) any {
	var r types.FileRequest
	if err := json.Unmarshal(req, &r); err != nil || r.RelativePath == "" {
		return types.FileReply{Status: types.StatusError, Error: "relative_path is required"}
	}

	rel := path.Clean(filepath.ToSlash(r.RelativePath))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || strings.HasPrefix(rel, "/") {
		return types.FileReply{Status: types.StatusError, Error: "path escapes the watched root"}
	}

	full := filepath.Join(s.root, filepath.FromSlash(rel))
	if _, err := s.fs.Stat(full); err != nil {
		return types.FileReply{
			Status: types.StatusError,
			Error:  fmt.Sprintf("file not found: %s", rel),
		}
	}
	if !s.allowed[strings.ToLower(path.Ext(rel))] {
		return types.FileReply{
			Status: types.StatusError,
			Error:  fmt.Sprintf("unsupported file type: %s", path.Ext(rel)),
		}
	}

	data, err := afero.ReadFile(s.fs, full)
	if err != nil {
		return types.FileReply{
			Status: types.StatusError,
			Error:  fmt.Sprintf("read %s: %v", rel, err),
		}
	}
	return types.FileReply{
		Status:       types.StatusSuccess,
		RelativePath: rel,
		FileName:     path.Base(rel),
		FileSize:     len(data),
		FileContent:  encodeContent(data),
	}
}

// extSet normalizes an extension allow-list to lowercase dotted keys.
func extSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = true
	}
	return set
}
