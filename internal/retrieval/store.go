package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"skyquery-bot/internal/logger"
	"skyquery-bot/models"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor or writer produces.
const reloadDelay = 250 * time.Millisecond

// LoadChunks reads a JSON array of chunks from path.
func LoadChunks(path string) ([]models.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(data, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks file %s: %w", path, err)
	}
	return chunks, nil
}

// ChunkStore holds an immutable snapshot of the chunk file. Reloads swap the
// whole snapshot, so readers never observe a partial load.
type ChunkStore struct {
	path string

	mu       sync.RWMutex
	chunks   []models.Chunk
	loadedAt time.Time
	onReload []func([]models.Chunk)
}

// NewChunkStore loads path. A missing or malformed file yields an empty
// store and a warning, never an error.
func NewChunkStore(path string) *ChunkStore {
	s := &ChunkStore{path: path}
	chunks, err := LoadChunks(path)
	if err != nil {
		logger.Warn("Chunk file unavailable, starting with an empty store", "path", path, "error", err)
	}
	s.swap(chunks)
	return s
}

// NewStaticChunkStore serves a fixed set of chunks.
func NewStaticChunkStore(chunks []models.Chunk) *ChunkStore {
	s := &ChunkStore{}
	s.swap(chunks)
	return s
}

func (s *ChunkStore) swap(chunks []models.Chunk) {
	s.mu.Lock()
	s.chunks = chunks
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// List returns the current snapshot. Callers must not modify it.
func (s *ChunkStore) List() []models.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}

func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *ChunkStore) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// OnReload registers fn to run with the new snapshot after each successful
// Reload.
func (s *ChunkStore) OnReload(fn func([]models.Chunk)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, fn)
	s.mu.Unlock()
}

// Reload re-reads the chunk file. On failure the previous snapshot stays.
func (s *ChunkStore) Reload() error {
	if s.path == "" {
		return nil
	}
	chunks, err := LoadChunks(s.path)
	if err != nil {
		return err
	}
	s.swap(chunks)
	logger.Info("Chunk store reloaded", "path", s.path, "chunks", len(chunks))

	s.mu.RLock()
	subscribers := append(([]func([]models.Chunk))(nil), s.onReload...)
	s.mu.RUnlock()
	for _, fn := range subscribers {
		fn(chunks)
	}
	return nil
}

// Watch reloads the store whenever the chunk file is written, created or
// renamed into place. It blocks until ctx is done.
func (s *ChunkStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create chunk watcher: %w", err)
	}
	defer w.Close()

	// watch the directory so atomic rename-over writes are seen
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(reloadDelay, func() {
					if err := s.Reload(); err != nil {
						logger.Warn("Chunk reload failed, keeping previous snapshot", "path", s.path, "error", err)
					}
				})
			} else {
				timer.Reset(reloadDelay)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Chunk watcher error", "error", err)
		}
	}
}
