package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileStore keeps all keys in one JSON document so several console
// processes on the same machine share state. Changes made by other
// processes are picked up through fsnotify.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	snapshot map[string]string
	watchers []*fsnotify.Watcher
	closed   bool
}

var _ Storage = (*FileStore)(nil)

// NewFileStore opens (creating if needed) the store at path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	fs := &FileStore{path: path, logger: logger}
	data, err := fs.load()
	if err != nil {
		return nil, err
	}
	fs.snapshot = data
	return fs, nil
}

func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", false, ErrClosed
	}
	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	val, ok := data[key]
	return val, ok, nil
}

func (s *FileStore) Set(_ context.Context, key, value string) error {
	return s.mutate(key, value, false)
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	return s.mutate(key, "", true)
}

// mutate writes one key. Only that key is folded into the snapshot; changes
// other processes made in the meantime stay pending for the watcher.
func (s *FileStore) mutate(key, value string, remove bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	data, err := s.load()
	if err != nil {
		return err
	}
	if remove {
		delete(data, key)
	} else {
		data[key] = value
	}
	if err := s.persist(data); err != nil {
		return err
	}
	if remove {
		delete(s.snapshot, key)
	} else {
		s.snapshot[key] = value
	}
	return nil
}

// Watch watches the parent directory so atomic renames are observed.
func (s *FileStore) Watch(ctx context.Context, handler Handler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", s.path, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = watcher.Close()
		return ErrClosed
	}
	s.watchers = append(s.watchers, watcher)
	s.mu.Unlock()

	go s.processEvents(ctx, watcher, handler)
	return nil
}

func (s *FileStore) processEvents(ctx context.Context, watcher *fsnotify.Watcher, handler Handler) {
	defer watcher.Close()
	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			for _, change := range s.diff() {
				handler(change)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("storage watcher error", zap.Error(err))
		}
	}
}

// diff reloads the file and reports keys that changed since the last snapshot.
func (s *FileStore) diff() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	current, err := s.load()
	if err != nil {
		s.logger.Warn("reload storage file", zap.Error(err))
		return nil
	}
	var events []Event
	for key, old := range s.snapshot {
		if val, ok := current[key]; !ok || val != old {
			events = append(events, Event{Key: key, OldValue: old, NewValue: val, Source: s.path})
		}
	}
	for key, val := range current {
		if _, ok := s.snapshot[key]; !ok {
			events = append(events, Event{Key: key, NewValue: val, Source: s.path})
		}
	}
	s.snapshot = current
	return events
}

func (s *FileStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.load()
	return err
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, w := range s.watchers {
		errs = append(errs, w.Close())
	}
	s.watchers = nil
	return errors.Join(errs...)
}

func (s *FileStore) load() (map[string]string, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}
	return data, nil
}

func (s *FileStore) persist(data map[string]string) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".storage-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
