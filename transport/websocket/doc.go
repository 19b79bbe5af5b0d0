// Package websocket pushes simulator events to browser and tool clients.
//
// A central Hub owns every connection. Clients subscribe to one session by
// connecting to /ws?session=<id>; after that the connection is receive-only.
//
// Events are JSON objects:
//
//	{"session_id": "ab12", "event": "run_completed", "data": {...RunRecord}}
//	{"session_id": "ab12", "event": "sweep_completed", "data": {...SweepResponse}}
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
// Concurrency:
//
// Registration, broadcast and subscriber counts are all serialized through
// the hub goroutine, so callers never touch the session map directly. A
// client whose send buffer fills up is dropped.
package websocket
