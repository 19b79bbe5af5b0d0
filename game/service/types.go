package service

import (
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

// SessionInfo provides information about a simulator session
type SessionInfo struct {
	ID             string               `json:"id"`
	ConfigName     string               `json:"config_name"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	Width          int                  `json:"width"`
	Height         int                  `json:"height"`
	DefaultEntry   engine.BeamState     `json:"default_entry"`
	RunCount       int                  `json:"run_count"`
	LastRun        *engine.RunRecord    `json:"last_run,omitempty"`
	LayoutConfig   *engine.LayoutConfig `json:"layout_config"`
}

// EnergizeResult is the outcome of a single energize run
type EnergizeResult struct {
	SessionID string           `json:"session_id"`
	Run       engine.RunRecord `json:"run"`
	Tiles     int              `json:"tiles"`
	Overlay   []string         `json:"overlay,omitempty"`
}

// SweepResponse is the outcome of a full boundary sweep
type SweepResponse struct {
	SessionID string               `json:"session_id"`
	Best      engine.BeamState     `json:"best"`
	Max       int                  `json:"max"`
	Runs      int                  `json:"runs"`
	Entries   []engine.EntryResult `json:"entries,omitempty"`
	Elapsed   time.Duration        `json:"elapsed_ns"`
}

// GridView is the layout of a session together with its tile census
type GridView struct {
	SessionID string            `json:"session_id"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Rows      []string          `json:"rows"`
	Census    map[string]int    `json:"census"`
	Legend    map[string]string `json:"legend"`
}

// HistoryOptions configures run history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated run history
type HistoryResponse struct {
	Runs        []engine.RunRecord `json:"runs"`
	TotalRuns   int                `json:"total_runs"`
	Page        int                `json:"page"`
	PageSize    int                `json:"page_size"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
}

// ConfigInfo provides information about a layout configuration
type ConfigInfo struct {
	Filename    string `json:"filename"`
	ConfigID    string `json:"config_id"` // The identifier to use for session creation
	Name        string `json:"name"`      // Display name
	Description string `json:"description"`
	Format      string `json:"format"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Legend maps layout symbols to tile names
var Legend = map[string]string{
	".":  "empty",
	"-":  "splitter_horizontal",
	"|":  "splitter_vertical",
	"/":  "mirror_forward",
	"\\": "mirror_backward",
}
