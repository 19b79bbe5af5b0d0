package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/wricardo/mcp-training/beamgrid/game/config"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
	"github.com/wricardo/mcp-training/beamgrid/game/session"
	"github.com/wricardo/mcp-training/beamgrid/transport/websocket"
)

// MockBeamService implements service.BeamService for testing
type MockBeamService struct {
	// Session Management
	CreateSessionFunc func(ctx context.Context, configName string) (*service.SessionInfo, error)
	GetSessionFunc    func(ctx context.Context, sessionID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	DeleteSessionFunc func(ctx context.Context, sessionID string) error

	// Simulation
	EnergizeFunc      func(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*service.EnergizeResult, error)
	SweepFunc         func(ctx context.Context, sessionID string) (*service.SweepResponse, error)
	GetGridFunc       func(ctx context.Context, sessionID string) (*service.GridView, error)
	DescribeTileFunc  func(ctx context.Context, sessionID string, pos engine.Position) (*engine.TileInfo, error)
	GetRunHistoryFunc func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error)

	// Configuration
	ListConfigsFunc func(ctx context.Context) ([]*service.ConfigInfo, error)
	LoadConfigFunc  func(ctx context.Context, configName string) (*engine.LayoutConfig, error)
	SaveConfigFunc  func(ctx context.Context, configName string, config *engine.LayoutConfig) error
}

func (m *MockBeamService) CreateSession(ctx context.Context, configName string) (*service.SessionInfo, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, configName)
	}
	return &service.SessionInfo{ID: "test-session", ConfigName: configName, CreatedAt: time.Now()}, nil
}

func (m *MockBeamService) GetSession(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	if m.GetSessionFunc != nil {
		return m.GetSessionFunc(ctx, sessionID)
	}
	return &service.SessionInfo{ID: sessionID, ConfigName: "test-config", CreatedAt: time.Now()}, nil
}

func (m *MockBeamService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	if m.ListSessionsFunc != nil {
		return m.ListSessionsFunc(ctx)
	}
	return []*service.SessionInfo{}, nil
}

func (m *MockBeamService) DeleteSession(ctx context.Context, sessionID string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, sessionID)
	}
	return nil
}

func (m *MockBeamService) Energize(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*service.EnergizeResult, error) {
	if m.EnergizeFunc != nil {
		return m.EnergizeFunc(ctx, sessionID, entry, withOverlay)
	}
	return &service.EnergizeResult{SessionID: sessionID}, nil
}

func (m *MockBeamService) Sweep(ctx context.Context, sessionID string) (*service.SweepResponse, error) {
	if m.SweepFunc != nil {
		return m.SweepFunc(ctx, sessionID)
	}
	return &service.SweepResponse{SessionID: sessionID}, nil
}

func (m *MockBeamService) GetGrid(ctx context.Context, sessionID string) (*service.GridView, error) {
	if m.GetGridFunc != nil {
		return m.GetGridFunc(ctx, sessionID)
	}
	return &service.GridView{SessionID: sessionID}, nil
}

func (m *MockBeamService) DescribeTile(ctx context.Context, sessionID string, pos engine.Position) (*engine.TileInfo, error) {
	if m.DescribeTileFunc != nil {
		return m.DescribeTileFunc(ctx, sessionID, pos)
	}
	return &engine.TileInfo{X: pos.X, Y: pos.Y}, nil
}

func (m *MockBeamService) GetRunHistory(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
	if m.GetRunHistoryFunc != nil {
		return m.GetRunHistoryFunc(ctx, sessionID, opts)
	}
	return &service.HistoryResponse{Runs: []engine.RunRecord{}, Page: opts.Page, PageSize: opts.Limit}, nil
}

func (m *MockBeamService) ListConfigs(ctx context.Context) ([]*service.ConfigInfo, error) {
	if m.ListConfigsFunc != nil {
		return m.ListConfigsFunc(ctx)
	}
	return []*service.ConfigInfo{}, nil
}

func (m *MockBeamService) LoadConfig(ctx context.Context, configName string) (*engine.LayoutConfig, error) {
	if m.LoadConfigFunc != nil {
		return m.LoadConfigFunc(ctx, configName)
	}
	return &engine.LayoutConfig{Name: configName, Layout: []string{"."}}, nil
}

func (m *MockBeamService) SaveConfig(ctx context.Context, configName string, config *engine.LayoutConfig) error {
	if m.SaveConfigFunc != nil {
		return m.SaveConfigFunc(ctx, configName, config)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockBeamService) *Server {
	t.Helper()
	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

// Session Management Tests

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		setupMock      func(*MockBeamService)
		expectedStatus int
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:        "Create session with default config",
			requestBody: nil,
			setupMock: func(m *MockBeamService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "" {
						t.Errorf("Expected empty config name, got %s", configName)
					}
					return &service.SessionInfo{ID: "ab12", ConfigName: "contraption"}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ID != "ab12" {
					t.Errorf("Expected session ID ab12, got %s", resp.ID)
				}
			},
		},
		{
			name:        "Create session with specific config",
			requestBody: map[string]string{"config_id": "mirrors"},
			setupMock: func(m *MockBeamService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					if configName != "mirrors" {
						t.Errorf("Expected config name 'mirrors', got %s", configName)
					}
					return &service.SessionInfo{ID: "cd34", ConfigName: configName}, nil
				}
			},
			expectedStatus: http.StatusCreated,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.SessionInfo
				parseResponse(t, w, &resp)
				if resp.ConfigName != "mirrors" {
					t.Errorf("Expected config name 'mirrors', got %s", resp.ConfigName)
				}
			},
		},
		{
			name:        "Unknown config",
			requestBody: map[string]string{"config_id": "missing"},
			setupMock: func(m *MockBeamService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("%w: 'missing'", service.ErrConfigNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:        "Malformed layout",
			requestBody: map[string]string{"config_id": "broken"},
			setupMock: func(m *MockBeamService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("failed to load config broken: %w", engine.ErrInvalidGridShape)
				}
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Handle service error",
			requestBody: nil,
			setupMock: func(m *MockBeamService) {
				m.CreateSessionFunc = func(ctx context.Context, configName string) (*service.SessionInfo, error) {
					return nil, fmt.Errorf("service error")
				}
			},
			expectedStatus: http.StatusInternalServerError,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] != "service error" {
					t.Errorf("Expected error message 'service error', got %s", resp["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBeamService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/sessions", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mockService := &MockBeamService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "old", CreatedAt: now.Add(-2 * time.Hour), LastAccessedAt: now.Add(-time.Minute)},
				{ID: "new", CreatedAt: now, LastAccessedAt: now.Add(-time.Hour)},
				{ID: "mid", CreatedAt: now.Add(-time.Hour), LastAccessedAt: now},
			}, nil
		},
	}
	server := setupTestServer(t, mockService)

	tests := []struct {
		name      string
		query     string
		wantOrder []string
		wantTotal int
	}{
		{"default sorts by access desc", "", []string{"mid", "old", "new"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"old", "mid", "new"}, 3},
		{"limit", "?sort=created&limit=1", []string{"new"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions"+tt.query, nil))

			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.wantTotal {
				t.Errorf("Expected total %d, got %d", tt.wantTotal, resp.Total)
			}
			if resp.Count != len(tt.wantOrder) {
				t.Fatalf("Expected count %d, got %d", len(tt.wantOrder), resp.Count)
			}
			for i, id := range tt.wantOrder {
				if resp.Sessions[i].ID != id {
					t.Errorf("position %d: expected %s, got %s", i, id, resp.Sessions[i].ID)
				}
			}
		})
	}
}

func TestGetAndDeleteSessionNotFound(t *testing.T) {
	mockService := &MockBeamService{
		GetSessionFunc: func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
			return nil, fmt.Errorf("%w: %s", service.ErrSessionNotFound, sessionID)
		},
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			return fmt.Errorf("failed to delete session %s: %w", sessionID, service.ErrSessionNotFound)
		},
	}
	server := setupTestServer(t, mockService)

	for _, method := range []string{"GET", "DELETE"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest(method, "/api/sessions/zz99", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", method, w.Code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	var deleted string
	mockService := &MockBeamService{
		DeleteSessionFunc: func(ctx context.Context, sessionID string) error {
			deleted = sessionID
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("DELETE", "/api/sessions/ab12", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if deleted != "ab12" {
		t.Errorf("Expected ab12 deleted, got %q", deleted)
	}
}

// Simulation Tests

func TestEnergize(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		requestBody    interface{}
		wantEntry      *engine.BeamState
		wantOverlay    bool
		serviceErr     error
		expectedStatus int
	}{
		{
			name:           "Default entry",
			path:           "/api/sessions/ab12/energize",
			expectedStatus: http.StatusOK,
		},
		{
			name: "Explicit entry with overlay",
			path: "/api/sessions/ab12/energize",
			requestBody: map[string]interface{}{
				"x": 4, "y": 1, "direction": "down", "overlay": true,
			},
			wantEntry:      &engine.BeamState{Pos: engine.Position{X: 4, Y: 1}, Dir: engine.Down},
			wantOverlay:    true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Overlay from query",
			path:           "/api/sessions/ab12/energize?overlay=true",
			wantOverlay:    true,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Partial entry",
			path:           "/api/sessions/ab12/energize",
			requestBody:    map[string]interface{}{"x": 1},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Bad direction",
			path:           "/api/sessions/ab12/energize",
			requestBody:    map[string]interface{}{"x": 1, "y": 1, "direction": "sideways"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Out of bounds",
			path:           "/api/sessions/ab12/energize",
			requestBody:    map[string]interface{}{"x": 99, "y": 1, "direction": "right"},
			wantEntry:      &engine.BeamState{Pos: engine.Position{X: 99, Y: 1}, Dir: engine.Right},
			serviceErr:     fmt.Errorf("energize: %w", engine.ErrOutOfBounds),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Unknown session",
			path:           "/api/sessions/zz99/energize",
			serviceErr:     fmt.Errorf("%w: zz99", service.ErrSessionNotFound),
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBeamService{
				EnergizeFunc: func(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*service.EnergizeResult, error) {
					if tt.wantEntry == nil && entry != nil {
						t.Errorf("Expected default entry, got %v", entry)
					}
					if tt.wantEntry != nil && (entry == nil || *entry != *tt.wantEntry) {
						t.Errorf("Expected entry %v, got %v", tt.wantEntry, entry)
					}
					if withOverlay != tt.wantOverlay {
						t.Errorf("Expected overlay %v, got %v", tt.wantOverlay, withOverlay)
					}
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return &service.EnergizeResult{
						SessionID: sessionID,
						Run:       engine.RunRecord{Kind: engine.RunKindSingle, Energized: 46, Runs: 1},
						Tiles:     100,
					}, nil
				},
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", tt.path, tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code == http.StatusOK {
				var resp service.EnergizeResult
				parseResponse(t, w, &resp)
				if resp.Run.Energized != 46 {
					t.Errorf("Expected 46 energized, got %d", resp.Run.Energized)
				}
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	mockService := &MockBeamService{
		CreateSessionFunc: func(ctx context.Context, configName string) (*service.SessionInfo, error) {
			t.Error("CreateSession must not be reached")
			return nil, nil
		},
		EnergizeFunc: func(ctx context.Context, sessionID string, entry *engine.BeamState, withOverlay bool) (*service.EnergizeResult, error) {
			t.Error("Energize must not be reached")
			return nil, nil
		},
		SaveConfigFunc: func(ctx context.Context, configName string, config *engine.LayoutConfig) error {
			t.Error("SaveConfig must not be reached")
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	for _, path := range []string{"/api/sessions", "/api/sessions/ab12/energize", "/api/configs"} {
		for _, body := range []string{`{"x":`, `[1, 2]`, `not json`} {
			req := httptest.NewRequest("POST", path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			server.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("POST %s %q: expected status 400, got %d: %s", path, body, w.Code, w.Body.String())
			}
		}
	}
}

func TestSweep(t *testing.T) {
	mockService := &MockBeamService{
		SweepFunc: func(ctx context.Context, sessionID string) (*service.SweepResponse, error) {
			return &service.SweepResponse{
				SessionID: sessionID,
				Best:      engine.BeamState{Pos: engine.Position{X: 4, Y: 1}, Dir: engine.Down},
				Max:       51,
				Runs:      40,
				Entries:   []engine.EntryResult{{Count: 51}},
			}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/sweep", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp service.SweepResponse
	parseResponse(t, w, &resp)
	if resp.Max != 51 || resp.Runs != 40 {
		t.Errorf("Expected max 51 over 40 runs, got %d over %d", resp.Max, resp.Runs)
	}
	if resp.Best.Dir != engine.Down || resp.Best.Pos.X != 4 {
		t.Errorf("Unexpected best entry %v", resp.Best)
	}
	if len(resp.Entries) != 1 {
		t.Errorf("Expected entries in response, got %d", len(resp.Entries))
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/sessions/ab12/sweep?entries=false", nil))
	var trimmed service.SweepResponse
	parseResponse(t, w, &trimmed)
	if len(trimmed.Entries) != 0 {
		t.Errorf("Expected entries dropped, got %d", len(trimmed.Entries))
	}
	if trimmed.Max != 51 {
		t.Errorf("Expected max 51, got %d", trimmed.Max)
	}
}

func TestGetHistory(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		wantOpts service.HistoryOptions
	}{
		{"defaults", "", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
		{"explicit", "?page=2&limit=5&order=asc", service.HistoryOptions{Page: 2, Limit: 5, Order: "asc"}},
		{"invalid values ignored", "?page=-1&limit=abc&order=sideways", service.HistoryOptions{Page: 1, Limit: 20, Order: "desc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBeamService{
				GetRunHistoryFunc: func(ctx context.Context, sessionID string, opts service.HistoryOptions) (*service.HistoryResponse, error) {
					if opts != tt.wantOpts {
						t.Errorf("Expected opts %+v, got %+v", tt.wantOpts, opts)
					}
					return &service.HistoryResponse{Runs: []engine.RunRecord{}, Page: opts.Page}, nil
				},
			}
			server := setupTestServer(t, mockService)

			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/history"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}
		})
	}
}

func TestDescribeTile(t *testing.T) {
	mockService := &MockBeamService{
		DescribeTileFunc: func(ctx context.Context, sessionID string, pos engine.Position) (*engine.TileInfo, error) {
			if pos.X > 10 || pos.X < 0 {
				return nil, fmt.Errorf("describe tile %s: %w", pos, engine.ErrOutOfBounds)
			}
			return &engine.TileInfo{X: pos.X, Y: pos.Y, Symbol: "|", Kind: "splitter_vertical"}, nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/tiles/2/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var info engine.TileInfo
	parseResponse(t, w, &info)
	if info.X != 2 || info.Y != 1 || info.Symbol != "|" {
		t.Errorf("Unexpected tile %+v", info)
	}

	for _, path := range []string{"/api/sessions/ab12/tiles/42/1", "/api/sessions/ab12/tiles/-3/1"} {
		w = httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", path, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", path, w.Code)
		}
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/sessions/ab12/tiles/x/1", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("non-numeric coordinates should not route, got %d", w.Code)
	}
}

// Configuration Tests

func TestConfigs(t *testing.T) {
	var saved *engine.LayoutConfig
	var savedName string
	mockService := &MockBeamService{
		ListConfigsFunc: func(ctx context.Context) ([]*service.ConfigInfo, error) {
			return []*service.ConfigInfo{{ConfigID: "contraption", Width: 10, Height: 10}}, nil
		},
		LoadConfigFunc: func(ctx context.Context, configName string) (*engine.LayoutConfig, error) {
			if configName != "contraption" {
				return nil, service.ErrConfigNotFound
			}
			return engine.DefaultLayoutConfig(), nil
		},
		SaveConfigFunc: func(ctx context.Context, configName string, config *engine.LayoutConfig) error {
			if len(config.Layout) == 0 {
				return fmt.Errorf("%w: empty layout", service.ErrInvalidConfig)
			}
			savedName, saved = configName, config
			return nil
		},
	}
	server := setupTestServer(t, mockService)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs", nil))
	var configs []*service.ConfigInfo
	parseResponse(t, w, &configs)
	if len(configs) != 1 || configs[0].ConfigID != "contraption" {
		t.Errorf("Unexpected configs %+v", configs)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs/contraption", nil))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/configs/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{
		"config_id": "tiny",
		"name":      "Tiny",
		"layout":    []string{"/\\", "\\/"},
		"entry":     map[string]interface{}{"x": 1, "y": 1, "direction": "right"},
	}))
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if savedName != "tiny" || saved == nil || saved.Name != "Tiny" || len(saved.Layout) != 2 {
		t.Errorf("Unexpected save %q %+v", savedName, saved)
	}
	if saved.Entry == nil || saved.Entry.Direction != engine.Right {
		t.Errorf("Entry not decoded: %+v", saved.Entry)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{"name": "empty"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/configs", map[string]interface{}{"layout": []string{"."}}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing name: expected status 400, got %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	server := setupTestServer(t, &MockBeamService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("Unexpected body %s", w.Body.String())
	}
}

func TestWebSocket(t *testing.T) {
	tests := []struct {
		name           string
		queryParams    string
		setupMock      func(*MockBeamService)
		expectedStatus int
	}{
		{
			name:           "Missing session parameter",
			queryParams:    "",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:        "Invalid session",
			queryParams: "?session=invalid",
			setupMock: func(m *MockBeamService) {
				m.GetSessionFunc = func(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
					return nil, service.ErrSessionNotFound
				}
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockBeamService{}
			if tt.setupMock != nil {
				tt.setupMock(mockService)
			}

			server := setupTestServer(t, mockService)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, httptest.NewRequest("GET", "/ws"+tt.queryParams, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// newLiveServer wires the real service stack behind an httptest server
func newLiveServer(t *testing.T) *httptest.Server {
	t.Helper()

	configs, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("config manager: %v", err)
	}
	beamService := service.NewBeamService(session.NewManager(), configs)

	hub := websocket.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer(beamService, hub))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return ts
}

func postJSON(t *testing.T, url string, body interface{}, target interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestContraptionEndToEnd(t *testing.T) {
	ts := newLiveServer(t)

	var sess service.SessionInfo
	if code := postJSON(t, ts.URL+"/api/sessions", nil, &sess); code != http.StatusCreated {
		t.Fatalf("create session: status %d", code)
	}
	if sess.ConfigName != "contraption" || sess.Width != 10 || sess.Height != 10 {
		t.Fatalf("unexpected session %+v", sess)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=" + sess.ID
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// Registration is asynchronous; retry the run until the event arrives
	var event struct {
		Event string           `json:"event"`
		Data  engine.RunRecord `json:"data"`
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		var result service.EnergizeResult
		if code := postJSON(t, ts.URL+"/api/sessions/"+sess.ID+"/energize", nil, &result); code != http.StatusOK {
			t.Fatalf("energize: status %d", code)
		}
		if result.Run.Energized != 46 {
			t.Fatalf("expected 46 energized, got %d", result.Run.Energized)
		}

		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err == nil {
			if err := json.Unmarshal(data, &event); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("no run event received")
		}
		// A read deadline error poisons the connection; redial
		conn.Close()
		conn, _, err = gorillaws.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("redial websocket: %v", err)
		}
	}
	if event.Event != websocket.EventRunCompleted || event.Data.Energized != 46 {
		t.Errorf("unexpected event %+v", event)
	}

	var sweep service.SweepResponse
	if code := postJSON(t, ts.URL+"/api/sessions/"+sess.ID+"/sweep?entries=false", nil, &sweep); code != http.StatusOK {
		t.Fatalf("sweep: status %d", code)
	}
	if sweep.Max != 51 || sweep.Runs != 40 {
		t.Errorf("expected max 51 over 40 runs, got %d over %d", sweep.Max, sweep.Runs)
	}
	want := engine.BeamState{Pos: engine.Position{X: 4, Y: 1}, Dir: engine.Down}
	if sweep.Best != want {
		t.Errorf("expected best %v, got %v", want, sweep.Best)
	}

	code := postJSON(t, ts.URL+"/api/sessions/"+sess.ID+"/energize", map[string]interface{}{
		"x": 0, "y": 0, "direction": "right",
	}, nil)
	if code != http.StatusBadRequest {
		t.Errorf("border entry: expected 400, got %d", code)
	}

	resp, err := http.Get(ts.URL + "/api/sessions/" + sess.ID + "/history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	var history service.HistoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if history.TotalRuns < 2 {
		t.Fatalf("expected at least 2 runs, got %d", history.TotalRuns)
	}
	last := history.Runs[0]
	if last.Kind != engine.RunKindSweep || last.Energized != 51 {
		t.Errorf("expected sweep as latest run, got %+v", last)
	}
}
