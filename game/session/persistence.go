package session

import (
	"fmt"
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

// SessionPersistence stores session metadata outside the process. IDs are
// matched case-insensitively.
type SessionPersistence interface {
	Save(session *service.Session) error
	// Load rebuilds a session with a fresh simulator; ErrSessionNotFound
	// if nothing is stored under id.
	Load(id string) (*service.Session, error)
	Delete(id string) error
	ListAll() ([]string, error)
	Exists(id string) bool
}

var _ SessionPersistence = (*FilePersistence)(nil)

// PersistedSessionData is the stored form of a session: which layout it runs
// and when it was used. Run history is not part of it.
type PersistedSessionData struct {
	ID             string    `json:"id"`
	ConfigID       string    `json:"config_name"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

func persistedFrom(session *service.Session) PersistedSessionData {
	return PersistedSessionData{
		ID:             session.ID,
		ConfigID:       session.ConfigID,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: session.LastAccessed(),
	}
}

// restore builds a live session over layout with an empty run history
func (d PersistedSessionData) restore(layout *engine.LayoutConfig) (*service.Session, error) {
	sim, err := engine.NewSimulator(layout)
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator: %w", err)
	}

	session := &service.Session{
		ID:        d.ID,
		ConfigID:  d.ConfigID,
		Engine:    sim,
		Config:    layout,
		CreatedAt: d.CreatedAt,
	}
	session.Touch(d.LastAccessedAt)
	return session, nil
}
