package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			// Sweeps on large layouts can take a while
			Timeout: 60 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Beam Grid",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Beam Grid - MCP Interface

This is a thin client that proxies all requests to the REST API server.

A beam of light travels through a grid of mirrors (/ \) and splitters (| -).
Each run counts the tiles the beam energizes.

AVAILABLE TOOLS:
- create_session: Create a session for a layout
- list_sessions: List active sessions
- get_session: Session details and last run
- show_grid: Layout rows with tile census
- energize: Run one beam from an entry (defaults to the layout entry)
- sweep: Try every boundary entry and report the best
- run_history: Past runs of a session
- list_configs: Available layouts
- describe_tile: How a single tile redirects beams
- beam_instructions: Full rules and coordinate conventions`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new session with optional layout selection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Layout to use (optional, see list_configs)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	// Simulation
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "show_grid",
		Description: "Show the session's layout with column and row numbers and a tile census",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleShowGrid)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "energize",
		Description: "Fire one beam and count the energized tiles. Omit x, y and direction to use the layout's default entry.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Entry column (1-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Entry row (1-based)",
				},
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"up", "down", "left", "right"},
					"description": "Heading of the beam as it arrives at the entry tile",
				},
				"overlay": map[string]interface{}{
					"type":        "boolean",
					"description": "Include the grid with energized tiles marked #",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleEnergize)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "sweep",
		Description: "Fire a beam from every boundary entry and report the maximum",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"top": map[string]interface{}{
					"type":        "integer",
					"description": "How many of the strongest entries to list (default 5)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleSweep)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "run_history",
		Description: "Get run history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest or newest first (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleRunHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available layouts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_tile",
		Description: "Describe a tile, how it redirects each incoming heading, and its neighbours",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "Column (1-based; 0 and width+1 are the border)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Row (1-based; 0 and height+1 are the border)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeTile)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "beam_instructions",
		Description: "Get the rules of beam propagation and the coordinate conventions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleBeamInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	configID, _ := args["config_id"].(string)

	body := map[string]string{}
	if configID != "" {
		body["config_id"] = configID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created session: %s\n%s", session.ID, formatSessionInfo(&session))), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Config: %s, %dx%d, Runs: %d, Created: %s)\n",
			s.ID, s.ConfigName, s.Width, s.Height, s.RunCount, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleShowGrid(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := request.GetArguments()["session_id"].(string)

	var grid service.GridView
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/grid"), nil, &grid); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGrid(&grid)), nil
}

func (c *Client) handleEnergize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	body := map[string]interface{}{}
	if overlay, _ := args["overlay"].(bool); overlay {
		body["overlay"] = true
	}

	x, hasX := intArg(args, "x")
	y, hasY := intArg(args, "y")
	direction, _ := args["direction"].(string)
	if hasX || hasY || direction != "" {
		if !hasX || !hasY || direction == "" {
			return mcp.NewToolResultError("x, y and direction must be given together"), nil
		}
		body["x"], body["y"], body["direction"] = x, y, direction
	}

	var result service.EnergizeResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/energize"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatEnergizeResult(&result)), nil
}

func (c *Client) handleSweep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	top, ok := intArg(args, "top")
	if !ok || top < 0 {
		top = 5
	}

	var result service.SweepResponse
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/sweep"), nil, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSweep(&result, top)), nil
}

func (c *Client) handleRunHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)

	params := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		params.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		params.Set("limit", fmt.Sprint(limit))
	}
	if order, _ := args["order"].(string); order != "" {
		params.Set("order", order)
	}

	path := sessionPath(sessionID, "/history")
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, "GET", "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Layouts:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  Grid: %dx%d, Format: %s\n\n",
			config.ConfigID, config.Name, config.Description, config.Width, config.Height, config.Format)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleDescribeTile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required integers"), nil
	}

	var info engine.TileInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, fmt.Sprintf("/tiles/%d/%d", x, y)), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTileInfo(&info)), nil
}

func (c *Client) handleBeamInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(beamInstructions), nil
}

const beamInstructions = `Beam Grid - Instructions

THE GRID:
A rectangular layout of tiles. The beam enters at an interior tile with a
heading and moves one tile per step.

TILE LEGEND:
• .  empty               - beam passes straight through
• /  mirror              - right→up, up→right, left→down, down→left
• \  mirror              - right→down, down→right, left→up, up→left
• |  vertical splitter   - up/down pass through; left/right split into up AND down
• -  horizontal splitter - left/right pass through; up/down split into left AND right

COORDINATES:
• x is the column, y is the row, both 1-based for the interior
• Row 0, row height+1, column 0 and column width+1 are the border; beams
  leave the grid there
• An entry (x, y, direction) means the beam ARRIVES at tile (x, y) heading
  direction; that tile already deflects or splits it
• The default entry of most layouts is (1, 1) heading right

ENERGIZED TILES:
A tile is energized if at least one beam passes through it. Beams that loop
are detected and stop; every run terminates.

SWEEP:
A sweep fires one beam inward from every boundary tile (top row heading down,
bottom row heading up, left column heading right, right column heading left)
and reports the entry with the most energized tiles. On ties the first entry
in that order wins.

SUGGESTED FLOW:
1. list_configs, then create_session
2. show_grid to read the layout
3. energize to try an entry, with overlay to see the path
4. sweep to find the best entry
5. describe_tile when a deflection looks surprising`

// Formatting helpers

func formatSessionInfo(session *service.SessionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s\nConfig: %s\nGrid: %dx%d\nDefault entry: %s\nRuns: %d\n",
		session.ID, session.ConfigName, session.Width, session.Height, session.DefaultEntry, session.RunCount)
	if session.LastRun != nil {
		fmt.Fprintf(&b, "Last run: %s\n", formatRunLine(*session.LastRun))
	}
	return b.String()
}

func formatGrid(grid *service.GridView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s - %dx%d\n\n", grid.SessionID, grid.Width, grid.Height)

	// Column ruler uses the last digit of each interior column number
	b.WriteString("     ")
	for x := 1; x <= grid.Width; x++ {
		fmt.Fprintf(&b, "%d", x%10)
	}
	b.WriteString("\n")
	for i, row := range grid.Rows {
		fmt.Fprintf(&b, "%4d %s\n", i+1, row)
	}

	b.WriteString("\nCensus:\n")
	symbols := make([]string, 0, len(grid.Census))
	for symbol := range grid.Census {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		name := service.Legend[symbol]
		if name == "" {
			name = symbol
		}
		fmt.Fprintf(&b, "  %s %-20s %d\n", symbol, name, grid.Census[symbol])
	}
	return b.String()
}

func formatRunLine(run engine.RunRecord) string {
	if run.Kind == engine.RunKindSweep {
		return fmt.Sprintf("#%d sweep: best %s = %d over %d runs (%s)",
			run.RunNumber, run.Entry, run.Energized, run.Runs, run.Elapsed)
	}
	return fmt.Sprintf("#%d energize %s = %d (%s)", run.RunNumber, run.Entry, run.Energized, run.Elapsed)
}

func formatEnergizeResult(result *service.EnergizeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entry: %s\nEnergized: %d of %d tiles\nRun: #%d (%s)\n",
		result.Run.Entry, result.Run.Energized, result.Tiles, result.Run.RunNumber, result.Run.Elapsed)
	if len(result.Overlay) > 0 {
		b.WriteString("\n")
		for _, row := range result.Overlay {
			b.WriteString(row)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatSweep(result *service.SweepResponse, top int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Best entry: %s\nMax energized: %d\nEntries tried: %d\nElapsed: %s\n",
		result.Best, result.Max, result.Runs, result.Elapsed)

	if top == 0 || len(result.Entries) == 0 {
		return b.String()
	}

	entries := append([]engine.EntryResult(nil), result.Entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if top < len(entries) {
		entries = entries[:top]
	}

	b.WriteString("\nStrongest entries:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "  %-22s %d\n", e.Entry, e.Count)
	}
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run History (Page %d/%d, Total: %d):\n\n", history.Page, history.TotalPages, history.TotalRuns)
	for _, run := range history.Runs {
		b.WriteString(formatRunLine(run))
		b.WriteString("\n")
	}
	if history.HasNext {
		b.WriteString("\nMore runs on the next page\n")
	}
	return b.String()
}

func formatTileInfo(info *engine.TileInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tile (%d,%d): '%s' %s\n", info.X, info.Y, info.Symbol, info.Kind)
	if !info.Interior {
		b.WriteString("Border tile: beams leave the grid here\n")
	}

	if len(info.Transitions) > 0 {
		b.WriteString("\nIncoming heading → outgoing:\n")
		for _, d := range engine.Directions {
			outs, ok := info.Transitions[d.String()]
			if !ok {
				continue
			}
			names := make([]string, len(outs))
			for i, o := range outs {
				names[i] = o.String()
			}
			fmt.Fprintf(&b, "  %-5s → %s\n", d, strings.Join(names, " + "))
		}
	}

	if len(info.Neighbors) > 0 {
		b.WriteString("\nNeighbours:\n")
		for _, n := range info.Neighbors {
			fmt.Fprintf(&b, "  %-5s (%d,%d) '%s' %s\n", n.Direction, n.X, n.Y, n.Symbol, n.Kind)
		}
	}
	return b.String()
}
