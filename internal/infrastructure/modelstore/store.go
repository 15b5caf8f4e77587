// Package modelstore loads linear model artifacts from a directory and caches them.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"hotspot_service/internal/domain/model"
	"hotspot_service/internal/metrics"
)

type cacheKey struct {
	name string
	dir  string
}

// Store is safe for concurrent use. An artifact is read from disk at most
// once per (name, dir); failed loads are not cached.
type Store struct {
	dir     string
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu    sync.RWMutex
	cache map[cacheKey]*model.LinearModelArtifact
	loads int
}

func New(dir string, log zerolog.Logger, m *metrics.Metrics) *Store {
	return &Store{
		dir:     dir,
		log:     log.With().Str("component", "modelstore").Logger(),
		metrics: m,
		cache:   make(map[cacheKey]*model.LinearModelArtifact),
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Path is the artifact file for a model name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *Store) GetOrLoad(name string) (*model.LinearModelArtifact, error) {
	key := cacheKey{name: name, dir: s.dir}

	s.mu.RLock()
	a, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return a, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.cache[key]; ok {
		return a, nil
	}

	a, err := Load(s.Path(name))
	s.loads++
	s.metrics.ModelLoaded(name, err)
	if err != nil {
		return nil, err
	}
	s.cache[key] = a
	s.log.Info().
		Str("model", name).
		Str("target", a.TargetCol).
		Int("features", len(a.FeatureColumns)).
		Float64("mae", a.Metrics.MAE).
		Msg("model loaded")
	return a, nil
}

// Invalidate drops every cached artifact so the next request reads from disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[cacheKey]*model.LinearModelArtifact)
	s.mu.Unlock()
}

// LoadCount reports how many disk reads were attempted.
func (s *Store) LoadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

// Watch drops the cache whenever an artifact file in the store directory is
// written, replaced or removed. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(s.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".json" {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.Invalidate()
			s.log.Info().Str("file", filepath.Base(ev.Name)).Str("op", ev.Op.String()).Msg("model file changed, cache dropped")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn().Err(err).Msg("model watcher error")
		}
	}
}

// Load reads and validates one artifact file.
func Load(path string) (*model.LinearModelArtifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", model.ErrModelUnavailable, path)
		}
		return nil, fmt.Errorf("failed to read model %s: %w", path, err)
	}
	var a model.LinearModelArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", model.ErrInvalidArtifact, path, err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &a, nil
}

// Save writes an artifact as indented JSON, creating the directory if needed.
// The file is written next to path and renamed over it, so readers and the
// watcher never see a partial artifact.
func Save(path string, a *model.LinearModelArtifact) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model dir: %w", err)
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal model: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write model %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace model %s: %w", path, err)
	}
	return nil
}
