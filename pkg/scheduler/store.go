package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kartikay/folio/pkg/runtime"
)

// FileStore keeps tasks in a JSON file, rewritten atomically on each change
type FileStore struct {
	path  string
	tasks map[string]runtime.Task
	mu    sync.Mutex
}

// NewFileStore creates a store backed by path
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	return &FileStore{
		path:  path,
		tasks: make(map[string]runtime.Task),
	}, nil
}

// Load reads all tasks from disk
func (fs *FileStore) Load(ctx context.Context) ([]runtime.Task, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.path); os.IsNotExist(err) {
		log.Info().Str("path", fs.path).Msg("No existing task store, starting empty")
		return nil, nil
	}

	data, err := os.ReadFile(fs.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tasks file: %w", err)
	}

	var tasks []runtime.Task
	if len(data) > 0 {
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("failed to parse tasks file: %w", err)
		}
	}

	fs.tasks = make(map[string]runtime.Task, len(tasks))
	for _, task := range tasks {
		fs.tasks[task.ID] = task
	}

	log.Info().Int("count", len(tasks)).Msg("Loaded tasks from store")

	return tasks, nil
}

// Put inserts or replaces a task
func (fs *FileStore) Put(ctx context.Context, task runtime.Task) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, existed := fs.tasks[task.ID]
	fs.tasks[task.ID] = task
	if err := fs.persistLocked(); err != nil {
		if existed {
			fs.tasks[task.ID] = prev
		} else {
			delete(fs.tasks, task.ID)
		}
		return err
	}
	return nil
}

// Delete removes a task; unknown IDs are ignored
func (fs *FileStore) Delete(ctx context.Context, id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.tasks[id]; !ok {
		return nil
	}
	delete(fs.tasks, id)
	return fs.persistLocked()
}

// Close is a no-op; every change is already on disk
func (fs *FileStore) Close() error {
	return nil
}

// persistLocked saves tasks to disk (must hold lock)
func (fs *FileStore) persistLocked() error {
	tasks := make([]runtime.Task, 0, len(fs.tasks))
	for _, task := range fs.tasks {
		tasks = append(tasks, task)
	}
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}

	dir := filepath.Dir(fs.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := fs.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, fs.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	log.Debug().Int("count", len(tasks)).Msg("Persisted tasks to store")

	return nil
}

// OpenStore opens a task store by kind: "file" (default) or "sqlite"
func OpenStore(kind string, path string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store kind: %s", kind)
	}
}
