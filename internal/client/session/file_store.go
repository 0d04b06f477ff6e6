package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// FileStore persists the session as a JSON file. A missing file means no
// session. Other processes sharing the file are picked up through Watch.
type FileStore struct {
	hub
	path   string
	logger *zap.Logger
}

// NewFileStore opens the store at path and loads any session already there.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	s := &FileStore{path: path, logger: logger}
	sess, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current = sess
	return s, nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Set updates the in-process view first, then the file. A failed write is
// returned but never leaves the process believing a cleared session exists.
func (s *FileStore) Set(sess *Session) error {
	s.replace(sess)
	if sess == nil {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove session file: %w", err)
		}
		return nil
	}
	return s.write(sess)
}

// ClearToken clears the session if it still carries token. The file is
// removed only when it holds that token too, so a login written by another
// process is kept.
func (s *FileStore) ClearToken(token string) (bool, error) {
	if !s.dropToken(token) {
		return false, nil
	}
	s.publish()

	onDisk, err := s.read()
	if err != nil {
		return true, err
	}
	if onDisk != nil && onDisk.Token != token {
		s.replace(onDisk)
		return true, nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return true, fmt.Errorf("remove session file: %w", err)
	}
	return true, nil
}

func (s *FileStore) write(sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// read loads the file. Unreadable content counts as no session.
func (s *FileStore) read() (*Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Token == "" {
		s.logger.Warn("discarding unreadable session file", zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}
	return &sess, nil
}

// Reload re-reads the file and publishes the result if it differs from
// what the process holds.
func (s *FileStore) Reload() error {
	sess, err := s.read()
	if err != nil {
		return err
	}
	s.replace(sess)
	return nil
}

// Watch follows changes made to the file by other processes until ctx is
// done. The directory is watched so that atomic renames are observed.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch session dir: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := s.Reload(); err != nil {
					s.logger.Warn("reload session file", zap.Error(err))
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("session watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
