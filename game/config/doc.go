// Package config provides layout configuration management for the beam grid
// simulator.
//
// The config package handles:
//   - Loading layouts from JSON, TOML and raw text files
//   - Layout validation through engine.ValidateLayoutConfig
//   - Default layout selection
//   - Layout discovery and listing
//
// Configuration Formats:
//
// Layouts live in the configs directory. The file stem is the config ID.
//   - name.json: {"name", "description", "layout": [...], "entry": {...}}
//   - name.toml: the same fields in TOML
//   - name.txt: the raw puzzle grid, one row per line
//
// The optional entry gives the default beam entry in padded coordinates
// (interior cells span 1..W and 1..H), for example
// {"x": 1, "y": 1, "direction": "right"}.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	layout, err := manager.LoadConfig("contraption")
//	configs, err := manager.ListConfigs()
//
// The "contraption" config always resolves. Without a file of that name the
// built-in 10x10 example is used.
package config
