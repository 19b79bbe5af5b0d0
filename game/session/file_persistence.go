package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

const (
	lockFileName = ".sessions.lock"
	lockTimeout  = 5 * time.Second
	lockRetry    = 20 * time.Millisecond
)

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir   string
	configManager service.ConfigManager
	lock          *flock.Flock
	mu            sync.Mutex
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string, configManager service.ConfigManager) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir:   sessionsDir,
		configManager: configManager,
		lock:          flock.New(filepath.Join(sessionsDir, lockFileName)),
	}, nil
}

// Save persists session metadata to a JSON file
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	jsonData, err := json.MarshalIndent(persistedFrom(session), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	unlock, err := fp.acquire(true)
	if err != nil {
		return err
	}
	defer unlock()

	// Write through a temp file so readers never see a partial document
	filePath := fp.getFilePath(session.ID)
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Load rebuilds a session from its JSON file. The simulator starts with an
// empty run history.
func (fp *FilePersistence) Load(id string) (*service.Session, error) {
	unlock, err := fp.acquire(false)
	if err != nil {
		return nil, err
	}
	jsonData, err := os.ReadFile(fp.getFilePath(id))
	unlock()

	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	layout, err := fp.configManager.LoadConfig(data.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("failed to load config '%s': %w", data.ConfigID, err)
	}

	return data.restore(layout)
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return ErrSessionNotFound
	}

	unlock, err := fp.acquire(true)
	if err != nil {
		return err
	}
	defer unlock()

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	unlock, err := fp.acquire(false)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// acquire takes the directory lock, shared for reads and exclusive for
// writes. The flock handle is not safe for concurrent use within one process,
// so fp.mu is held for the duration as well.
func (fp *FilePersistence) acquire(exclusive bool) (func(), error) {
	fp.mu.Lock()

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	var locked bool
	var err error
	if exclusive {
		locked, err = fp.lock.TryLockContext(ctx, lockRetry)
	} else {
		locked, err = fp.lock.TryRLockContext(ctx, lockRetry)
	}
	if err != nil {
		fp.mu.Unlock()
		return nil, fmt.Errorf("session lock acquisition failed: %w", err)
	}
	if !locked {
		fp.mu.Unlock()
		return nil, fmt.Errorf("session lock held: %s", fp.lock.Path())
	}

	return func() {
		fp.lock.Unlock()
		fp.mu.Unlock()
	}, nil
}

// getFilePath returns the full file path for a session ID. IDs are stored
// lower-case to match the manager's case-insensitive lookup.
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}
