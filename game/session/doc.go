// Package session provides session management for the beam grid simulator.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Optional file persistence of session metadata
//   - Expiry of idle sessions
//
// Core Types:
//
// Manager is the session manager that handles all session operations.
// Each service.Session owns an engine.Simulator built from its layout.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs for easy reference. Lookups are
// case-insensitive.
//
// Persistence:
//
// FilePersistence writes one JSON file per session holding the session ID,
// its layout ID and timestamps. Run history is never written to disk; a
// reloaded session starts with an empty history. Access to the sessions
// directory is serialized across processes with a lock file.
//
// Usage:
//
//	manager := session.NewManager()
//
//	sess, err := manager.Create("", "contraption", layout)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
package session
