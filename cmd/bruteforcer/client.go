package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
	"github.com/wricardo/mcp-training/beamgrid/game/service"
)

// Client drives one session of a beam grid server over its REST API
type Client struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SessionID returns the session the client is bound to
func (c *Client) SessionID() string {
	return c.sessionID
}

func (c *Client) CreateSession(ctx context.Context, configID string) (*service.SessionInfo, error) {
	var body interface{}
	if configID != "" {
		body = map[string]string{"config_id": configID}
	}

	var session service.SessionInfo
	if err := c.do(ctx, http.MethodPost, "/api/sessions", body, &session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	c.sessionID = session.ID
	return &session, nil
}

// Resume binds the client to an existing session
func (c *Client) Resume(ctx context.Context, sessionID string) (*service.SessionInfo, error) {
	c.sessionID = sessionID

	var session service.SessionInfo
	if err := c.do(ctx, http.MethodGet, c.sessionPath(""), nil, &session); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

func (c *Client) Grid(ctx context.Context) (*service.GridView, error) {
	var grid service.GridView
	if err := c.do(ctx, http.MethodGet, c.sessionPath("/grid"), nil, &grid); err != nil {
		return nil, fmt.Errorf("get grid: %w", err)
	}
	return &grid, nil
}

type energizeRequest struct {
	X         int              `json:"x"`
	Y         int              `json:"y"`
	Direction engine.Direction `json:"direction"`
}

func (c *Client) Energize(ctx context.Context, entry engine.BeamState) (*service.EnergizeResult, error) {
	req := energizeRequest{X: entry.Pos.X, Y: entry.Pos.Y, Direction: entry.Dir}

	var result service.EnergizeResult
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/energize"), req, &result); err != nil {
		return nil, fmt.Errorf("energize %s: %w", entry, err)
	}
	return &result, nil
}

// Sweep asks the server for its own sweep, without per-entry counts
func (c *Client) Sweep(ctx context.Context) (*service.SweepResponse, error) {
	var result service.SweepResponse
	if err := c.do(ctx, http.MethodPost, c.sessionPath("/sweep")+"?entries=false", nil, &result); err != nil {
		return nil, fmt.Errorf("sweep: %w", err)
	}
	return &result, nil
}

func (c *Client) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
