// Package engine provides the beam propagation core for the beam grid simulator.
//
// The engine package implements:
//   - The tile map: an immutable grid of mirrors and splitters surrounded by a border ring
//   - The transition rule for every tile kind and incoming direction
//   - Beam propagation: the reachability closure over (position, direction) states
//   - The boundary sweep: every edge entry is simulated and the best one kept
//   - Layout configuration validation and a session-scoped Simulator
//
// Core Types:
//
// TileMap holds the padded grid. A BeamState is a position plus a heading; two
// beams with the same state have the same future, so each state is expanded at
// most once per run. Propagator runs one entry state and returns a Run holding
// the energized positions. Sweep runs all 2H+2W boundary entries in parallel.
//
// Usage:
//
//	m, err := engine.NewTileMap([]string{
//		`.|...\....`,
//		`|.-.\.....`,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Enter at the top-left interior cell heading right
//	count, err := engine.Energize(m, engine.Position{X: 1, Y: 1}, engine.Right)
//
//	// Best entry over the whole boundary
//	best, err := engine.MaxEnergize(m)
//
// Coordinates:
//
// Positions are expressed in padded coordinates: the border ring occupies
// column 0, row 0, column W+1 and row H+1, so the interior spans 1..W and 1..H.
package engine
