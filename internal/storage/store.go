// Package storage implements a sandboxed, create-only text store that keeps
// one file per key under a fixed root directory.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"cgi-kvstore/internal/cgierr"
	"cgi-kvstore/internal/config"
	"cgi-kvstore/internal/metrics"
)

// Causes attached to the errors returned by Store.
var (
	ErrInvalidKey = errors.New("key does not resolve inside the storage root")
	ErrEmpty      = errors.New("empty key or value")
	ErrNotFound   = errors.New("key not found")
	ErrExists     = errors.New("key already exists")
)

// Store maps keys to files directly under root. Values are never overwritten.
type Store struct {
	root     string
	fileMode fs.FileMode
	logger   *slog.Logger
	metrics  *metrics.Metrics

	stat func(string) (fs.FileInfo, error)
	sync func(*os.File) error
}

// New creates the storage root if needed and returns a Store for it.
// The metrics parameter is optional; pass nil to disable operation counting.
func New(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Store, error) {
	abs, err := filepath.Abs(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root %s: %w", cfg.Storage.Root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", abs, err)
	}
	root, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: canonicalize root %s: %w", abs, err)
	}

	return &Store{
		root:     root,
		fileMode: fs.FileMode(cfg.Storage.FileMode),
		logger:   logger.With("component", "storage"),
		metrics:  m,
		stat:     os.Stat,
		sync:     (*os.File).Sync,
	}, nil
}

// Root returns the canonical sandbox directory.
func (s *Store) Root() string {
	return s.root
}

// Resolve returns the canonical file path for key. The path must lie strictly
// inside the root; keys that are absolute, contain a separator or "..", or
// that resolve elsewhere through a symlink fail with 400.
func (s *Store) Resolve(key string) (string, error) {
	if key == "" ||
		filepath.IsAbs(key) ||
		strings.ContainsAny(key, `/\`+"\x00") ||
		strings.Contains(key, "..") {
		return "", invalidKey(key)
	}

	target := filepath.Join(s.root, key)
	canonical, err := filepath.EvalSymlinks(target)
	if errors.Is(err, fs.ErrNotExist) {
		// Dangling symlinks are resolved as far as they go and checked below.
		canonical, err = canonicalizeMissing(target)
		if errors.Is(err, fs.ErrNotExist) {
			return "", invalidKey(key)
		}
	}
	if err != nil {
		return "", cgierr.Wrap(http.StatusInternalServerError, "Internal Server Error",
			fmt.Errorf("canonicalize %s: %w", target, err))
	}

	if !within(s.root, canonical) {
		s.logger.Warn("key escapes storage root", "key", key, "resolved", canonical)
		return "", invalidKey(key)
	}
	return canonical, nil
}

// Get returns the trimmed value stored under key.
func (s *Store) Get(key string) (string, error) {
	path, err := s.Resolve(key)
	if err != nil {
		s.record("get", err)
		return "", err
	}

	info, err := s.stat(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		err = cgierr.Wrap(http.StatusInternalServerError, "Internal Server Error", fmt.Errorf("stat %s: %w", path, err))
		s.record("get", err)
		return "", err
	}
	if err != nil || !info.Mode().IsRegular() {
		err = cgierr.Wrap(http.StatusNotFound, fmt.Sprintf("Not Found: no value stored for key '%s'", key), ErrNotFound)
		s.record("get", err)
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		err = cgierr.Wrap(http.StatusInternalServerError, "Internal Server Error", fmt.Errorf("read %s: %w", path, err))
		s.record("get", err)
		return "", err
	}

	s.record("get", nil)
	return strings.TrimSpace(string(data)), nil
}

// Set stores value under key. It fails with 400 when key already holds a
// value. The value is written and synced to a temporary file that is then
// hard-linked into place, so a key never holds a partial value.
func (s *Store) Set(key, value string) (err error) {
	defer func() { s.record("set", err) }()

	if key == "" || value == "" {
		return cgierr.Wrap(http.StatusBadRequest, "Bad Request: key and value must not be empty", ErrEmpty)
	}

	path, err := s.Resolve(key)
	if err != nil {
		return err
	}

	tmp, err := s.writeTemp(filepath.Dir(path), value)
	if err != nil {
		return cgierr.Wrap(http.StatusInternalServerError, "Internal Server Error", err)
	}
	defer func() {
		if rerr := os.Remove(tmp); rerr != nil {
			s.logger.Warn("remove temporary file", "path", tmp, "err", rerr)
		}
	}()

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return cgierr.Wrap(http.StatusBadRequest, fmt.Sprintf("Bad Request: key '%s' already exists", key), ErrExists)
		}
		return cgierr.Wrap(http.StatusInternalServerError, "Internal Server Error", fmt.Errorf("link %s: %w", path, err))
	}

	s.logger.Debug("stored value", "key", key, "bytes", len(value))
	return nil
}

// writeTemp writes value to a new hidden file in dir and returns its path.
// The file is removed again on any failure.
func (s *Store) writeTemp(dir, value string) (_ string, err error) {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temporary file in %s: %w", dir, err)
	}
	name := f.Name()
	defer func() {
		if err != nil {
			err = multierr.Append(err, os.Remove(name))
		}
	}()

	if err := f.Chmod(s.fileMode); err != nil {
		return "", multierr.Combine(fmt.Errorf("chmod %s: %w", name, err), f.Close())
	}
	if _, err := f.WriteString(value); err != nil {
		return "", multierr.Combine(fmt.Errorf("write %s: %w", name, err), f.Close())
	}
	if err := s.sync(f); err != nil {
		return "", multierr.Combine(fmt.Errorf("sync %s: %w", name, err), f.Close())
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return name, nil
}

func (s *Store) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case errors.Is(err, ErrExists):
		result = "exists"
	case err != nil && cgierr.From(err).Code == http.StatusBadRequest:
		result = "invalid"
	case err != nil:
		result = "error"
	}
	s.metrics.StorageOperations.WithLabelValues(op, result).Inc()
}

func invalidKey(key string) error {
	return cgierr.Wrap(http.StatusBadRequest, fmt.Sprintf("Bad Request: invalid key '%s'", key), ErrInvalidKey)
}

// canonicalizeMissing canonicalizes a path whose final element does not
// exist. A dangling symlink is followed to its target's parent.
func canonicalizeMissing(target string) (string, error) {
	if link, err := os.Readlink(target); err == nil {
		if !filepath.IsAbs(link) {
			link = filepath.Join(filepath.Dir(target), link)
		}
		target = link
	}
	dir, err := filepath.EvalSymlinks(filepath.Dir(target))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(target)), nil
}

// within reports whether path is strictly inside root. The separator suffix
// keeps a sibling such as root+"-evil" from matching.
func within(root, path string) bool {
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return path != root && strings.HasPrefix(path, prefix)
}
