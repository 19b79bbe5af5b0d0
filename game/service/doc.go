// Package service provides the business logic layer for the beam grid
// simulator.
//
// The service package implements:
//   - Multi-session management, one simulator per session
//   - Layout configuration loading and saving
//   - Single energize runs and full boundary sweeps
//   - Paginated run history
//
// Core Interfaces:
//
// BeamService is the main service interface used by the transports.
// SessionManager handles session creation, retrieval and lifecycle.
// ConfigManager loads and stores layout configurations.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the engine. Each session owns an engine.Simulator over an immutable tile
// map, so concurrent runs on the same session never interfere.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	beamService := service.NewBeamService(sessionMgr, configMgr)
//
//	info, err := beamService.CreateSession(ctx, "contraption")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := beamService.Energize(ctx, info.ID, nil, true)
package service
