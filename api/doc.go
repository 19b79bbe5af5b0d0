// Package api provides the HTTP REST API for beam grid sessions.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"config_id": "contraption"}, optional)
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N)
//   - GET /api/sessions/{id} - Get session details
//   - DELETE /api/sessions/{id} - Delete a session
//
// Simulation:
//   - GET /api/sessions/{id}/grid - Layout rows, tile census and legend
//   - POST /api/sessions/{id}/energize - Run one beam
//   - POST /api/sessions/{id}/sweep - Run every boundary entry (?entries=false drops per-entry results)
//   - GET /api/sessions/{id}/history - Paginated run history (?page=&limit=&order=)
//   - GET /api/sessions/{id}/tiles/{x}/{y} - Describe one tile
//
// Configuration:
//   - GET /api/configs - List layouts
//   - POST /api/configs - Save a layout
//   - GET /api/configs/{name} - Get a layout
//
// Other:
//   - GET /health - Liveness
//   - GET /ws?session={id} - Subscribe to run events
//
// Energize body (all fields optional; omit x, y and direction to use the
// layout's default entry). Coordinates are padded, so the interior spans
// 1..width and 1..height:
//
//	{"x": 1, "y": 1, "direction": "right", "overlay": true}
//
// Errors are returned as JSON:
//
//	{"error": "session not found: ab12"}
//
// Unknown sessions and layouts give 404. Out-of-bounds entries, bad
// directions and malformed layouts give 400.
package api
