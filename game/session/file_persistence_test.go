package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/config"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

func newTestPersistence(t *testing.T) (*FilePersistence, *config.Manager, string) {
	t.Helper()

	configManager, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create config manager: %v", err)
	}

	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir, configManager)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	return persistence, configManager, dir
}

func newTestSession(t *testing.T, configManager *config.Manager, id string) *service.Session {
	t.Helper()

	layout := configManager.GetDefault()
	sim, err := engine.NewSimulator(layout)
	if err != nil {
		t.Fatalf("Failed to create simulator: %v", err)
	}

	now := time.Now().Truncate(time.Second)
	session := &service.Session{
		ID:        id,
		ConfigID:  configManager.DefaultName(),
		Engine:    sim,
		Config:    layout,
		CreatedAt: now.Add(-time.Minute),
	}
	session.Touch(now)
	return session
}

func TestFilePersistence_SaveAndLoad(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)
	session := newTestSession(t, configManager, "ab12")

	if _, err := session.Engine.EnergizeDefault(); err != nil {
		t.Fatalf("EnergizeDefault: %v", err)
	}

	if err := persistence.Save(session); err != nil {
		t.Fatalf("Failed to save session: %v", err)
	}
	if !persistence.Exists("ab12") {
		t.Error("Session file should exist after save")
	}

	// Only metadata is written
	raw, err := os.ReadFile(filepath.Join(dir, "ab12.json"))
	if err != nil {
		t.Fatalf("Failed to read session file: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatalf("Session file is not valid JSON: %v", err)
	}
	for _, key := range []string{"id", "config_name", "created_at", "last_accessed_at"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected %q in session file", key)
		}
	}
	if len(fields) != 4 {
		t.Errorf("Expected only metadata in session file, got %v", fields)
	}

	loaded, err := persistence.Load("AB12")
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if loaded.ID != "ab12" || loaded.ConfigID != "contraption" {
		t.Errorf("Unexpected loaded session %+v", loaded)
	}
	if !loaded.CreatedAt.Equal(session.CreatedAt) || !loaded.LastAccessed().Equal(session.LastAccessed()) {
		t.Errorf("Timestamps not restored: %v / %v", loaded.CreatedAt, loaded.LastAccessed())
	}
	if len(loaded.Engine.GetRunHistory()) != 0 {
		t.Error("Run history must not be restored")
	}

	record, err := loaded.Engine.EnergizeDefault()
	if err != nil {
		t.Fatalf("EnergizeDefault on loaded session: %v", err)
	}
	if record.Energized != 46 {
		t.Errorf("Expected 46 on reloaded contraption, got %d", record.Energized)
	}
}

func TestFilePersistence_ListAndDelete(t *testing.T) {
	persistence, configManager, dir := newTestPersistence(t)

	for _, id := range []string{"aaaa", "bbbb"} {
		if err := persistence.Save(newTestSession(t, configManager, id)); err != nil {
			t.Fatalf("Failed to save %s: %v", id, err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644); err != nil {
		t.Fatalf("Failed to write stray file: %v", err)
	}

	ids, err := persistence.ListAll()
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 session IDs, got %v", ids)
	}

	if err := persistence.Delete("aaaa"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if persistence.Exists("aaaa") {
		t.Error("Session file should be gone after delete")
	}
	if err := persistence.Delete("aaaa"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestFilePersistence_LoadErrors(t *testing.T) {
	persistence, _, dir := newTestPersistence(t)

	if _, err := persistence.Load("none"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "bad1.json"), []byte("{"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := persistence.Load("bad1"); err == nil {
		t.Error("Expected error for corrupt session file")
	}

	data, _ := json.Marshal(PersistedSessionData{ID: "gone", ConfigID: "missing_layout"})
	if err := os.WriteFile(filepath.Join(dir, "gone.json"), data, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := persistence.Load("gone"); !errors.Is(err, service.ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestManagerWithPersistence(t *testing.T) {
	persistence, configManager, _ := newTestPersistence(t)

	manager := NewManagerWithPersistence(persistence)
	created, err := manager.Create("", configManager.DefaultName(), configManager.GetDefault())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if !persistence.Exists(created.ID) {
		t.Fatal("Expected session to be persisted on create")
	}

	// A fresh manager finds the session lazily on Get
	restarted := NewManagerWithPersistence(persistence)
	restarted.SetWorkers(1)
	loaded, err := restarted.Get(created.ID)
	if err != nil {
		t.Fatalf("Failed to get persisted session: %v", err)
	}
	if loaded.ConfigID != created.ConfigID {
		t.Errorf("Expected config %s, got %s", created.ConfigID, loaded.ConfigID)
	}

	// And eagerly through LoadPersistedSessions
	eager := NewManagerWithPersistence(persistence)
	if err := eager.LoadPersistedSessions(); err != nil {
		t.Fatalf("LoadPersistedSessions: %v", err)
	}
	if eager.Count() != 1 {
		t.Errorf("Expected 1 loaded session, got %d", eager.Count())
	}

	if err := eager.SaveAllSessions(); err != nil {
		t.Errorf("SaveAllSessions: %v", err)
	}

	// Expired sessions leave memory but stay on disk
	eager.CleanupExpiredSessions(-time.Second)
	if eager.Count() != 0 {
		t.Errorf("Expected cleanup to empty memory, got %d", eager.Count())
	}
	if _, err := eager.Get(created.ID); err != nil {
		t.Errorf("Expected session to reload from disk, got %v", err)
	}

	if err := eager.Delete(created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if persistence.Exists(created.ID) {
		t.Error("Expected persisted file to be removed")
	}
}
