// Package source provides read-only access to the document collection and a
// filesystem watcher that feeds document changes to the indexer.
package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DocumentSource is read-only access to the documents being indexed.
type DocumentSource interface {
	// ReadFile returns the document text for a source-relative path.
	ReadFile(ctx context.Context, path string) (string, error)

	// MTime returns the document's last modification time.
	MTime(ctx context.Context, path string) (time.Time, error)

	// List enumerates all document paths, relative to the source root.
	List(ctx context.Context) ([]string, error)
}

// DefaultExtensions are the document types indexed when none are
// configured.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// FilesystemSource serves documents from a directory tree. Paths handed out
// and accepted are slash-separated and relative to the root.
type FilesystemSource struct {
	root       string
	extensions map[string]struct{}
}

// NewFilesystemSource creates a source rooted at dir, indexing only files
// with the given extensions (DefaultExtensions when empty).
func NewFilesystemSource(dir string, extensions []string) (*FilesystemSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", dir)
	}

	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &FilesystemSource{root: dir, extensions: exts}, nil
}

// Root returns the source root directory.
func (s *FilesystemSource) Root() string { return s.root }

// Accepts reports whether the path's extension is indexed.
func (s *FilesystemSource) Accepts(path string) bool {
	_, ok := s.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

func (s *FilesystemSource) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// ReadFile returns the document text.
func (s *FilesystemSource) ReadFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(s.abs(path))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// MTime returns the document's modification time.
func (s *FilesystemSource) MTime(_ context.Context, path string) (time.Time, error) {
	info, err := os.Stat(s.abs(path))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.ModTime(), nil
}

// List walks the tree and returns all indexable document paths.
func (s *FilesystemSource) List(_ context.Context) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && p != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.Accepts(p) {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return paths, nil
}
