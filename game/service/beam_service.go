package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// BeamService defines all simulator operations
type BeamService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Simulation
	Energize(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*EnergizeResult, error)
	Sweep(ctx context.Context, sessionID string) (*SweepResponse, error)
	GetGrid(ctx context.Context, sessionID string) (*GridView, error)
	DescribeTile(ctx context.Context, sessionID string, pos engine.Position) (*engine.TileInfo, error)
	GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.LayoutConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.LayoutConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.LayoutConfig) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// ConfigManager handles layout configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.LayoutConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.LayoutConfig
	DefaultName() string
	SaveConfig(name string, config *engine.LayoutConfig) error
}

// Session is an active simulator session. Only the access time changes after
// creation; read and write it through LastAccessed and Touch.
type Session struct {
	ID        string
	ConfigID  string
	Engine    engine.Engine
	Config    *engine.LayoutConfig
	CreatedAt time.Time

	mu           sync.Mutex
	lastAccessed time.Time
}

// LastAccessed returns when the session was last used, CreatedAt if never
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastAccessed.IsZero() {
		return s.CreatedAt
	}
	return s.lastAccessed
}

// Touch records an access at t
func (s *Session) Touch(t time.Time) {
	s.mu.Lock()
	s.lastAccessed = t
	s.mu.Unlock()
}
