package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

// beamServiceImpl implements the BeamService interface
type beamServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
}

// NewBeamService creates a new beam service instance
func NewBeamService(sessions SessionManager, configs ConfigManager) BeamService {
	return &beamServiceImpl{
		sessions: sessions,
		configs:  configs,
	}
}

// CreateSession creates a new simulator session
func (s *beamServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	var config *engine.LayoutConfig
	configID := strings.TrimSpace(configName)

	if configID != "" {
		var err error
		config, err = s.configs.LoadConfig(configID)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				if ids := s.configIDs(); len(ids) > 0 {
					return nil, fmt.Errorf("%w: '%s'. Available configs: %s", ErrConfigNotFound, configID, strings.Join(ids, ", "))
				}
				return nil, fmt.Errorf("%w: '%s'. Use /api/configs to list available configurations", ErrConfigNotFound, configID)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configID, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultName()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return toSessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *beamServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}
	return toSessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *beamServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, toSessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *beamServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(sessionID); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// Energize runs one propagation. A nil entry uses the layout's default entry.
func (s *beamServiceImpl) Energize(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*EnergizeResult, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	start := sess.Config.DefaultEntry()
	if entry != nil {
		start = *entry
	}

	record, run, err := sess.Engine.Trace(start)
	if err != nil {
		return nil, fmt.Errorf("energize from %s: %w", start, err)
	}

	tiles := sess.Engine.TileMap()
	result := &EnergizeResult{
		SessionID: sess.ID,
		Run:       *record,
		Tiles:     tiles.Width() * tiles.Height(),
	}

	if withOverlay {
		result.Overlay = run.Overlay(tiles)
	}

	return result, nil
}

// Sweep runs every boundary entry of the session's layout
func (s *beamServiceImpl) Sweep(ctx context.Context, sessionID string) (*SweepResponse, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := sess.Engine.Sweep(ctx)
	if err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}

	return &SweepResponse{
		SessionID: sess.ID,
		Best:      result.Best,
		Max:       result.Max,
		Runs:      result.Runs,
		Entries:   result.Entries,
		Elapsed:   time.Since(start),
	}, nil
}

// GetGrid returns the session's layout rows and tile census
func (s *beamServiceImpl) GetGrid(ctx context.Context, sessionID string) (*GridView, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	tiles := sess.Engine.TileMap()
	return &GridView{
		SessionID: sess.ID,
		Width:     tiles.Width(),
		Height:    tiles.Height(),
		Rows:      tiles.Rows(),
		Census:    engine.Census(tiles),
		Legend:    Legend,
	}, nil
}

// DescribeTile reports the tile at pos in padded coordinates
func (s *beamServiceImpl) DescribeTile(ctx context.Context, sessionID string, pos engine.Position) (*engine.TileInfo, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	info, err := engine.DescribeTile(sess.Engine.TileMap(), pos)
	if err != nil {
		return nil, fmt.Errorf("describe tile %s: %w", pos, err)
	}
	return info, nil
}

// GetRunHistory returns paginated run history for a session
func (s *beamServiceImpl) GetRunHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.touch(sessionID)
	if err != nil {
		return nil, err
	}

	history := sess.Engine.GetRunHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit < 1 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	runs := []engine.RunRecord{}
	if start < total {
		if opts.Order == "desc" {
			// Most recent first
			for i := total - 1 - start; i >= total-end; i-- {
				runs = append(runs, history[i])
			}
		} else {
			runs = append(runs, history[start:end]...)
		}
	}

	return &HistoryResponse{
		Runs:        runs,
		TotalRuns:   total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListConfigs returns available layout configurations
func (s *beamServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific layout configuration
func (s *beamServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.LayoutConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a layout configuration to disk
func (s *beamServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.LayoutConfig) error {
	return s.configs.SaveConfig(configName, config)
}

// touch looks up a session and bumps its last access time
func (s *beamServiceImpl) touch(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

func (s *beamServiceImpl) configIDs() []string {
	configs, err := s.configs.ListConfigs()
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(configs))
	for _, cfg := range configs {
		ids = append(ids, cfg.ConfigID)
	}
	return ids
}

func toSessionInfo(sess *Session) *SessionInfo {
	tiles := sess.Engine.TileMap()
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     sess.ConfigID,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		Width:          tiles.Width(),
		Height:         tiles.Height(),
		DefaultEntry:   sess.Config.DefaultEntry(),
		RunCount:       len(sess.Engine.GetRunHistory()),
		LastRun:        sess.Engine.GetLastRun(),
		LayoutConfig:   sess.Config,
	}
}
