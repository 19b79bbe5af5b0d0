// Package mcp exposes the beam grid REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one or two REST calls
// against a running server, and the JSON response is rendered as text for
// the agent.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - list_configs: available layouts
//   - show_grid: layout rows with a column ruler and tile census
//   - energize: one beam run, optionally with the energized overlay
//   - sweep: best boundary entry and the strongest runs
//   - run_history: paginated run records
//   - describe_tile: per-heading transitions and neighbours of one tile
//   - beam_instructions: rules and coordinate conventions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
