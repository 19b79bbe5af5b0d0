// Command validate provides a small CLI that validates layout files (JSON,
// TOML, or raw text grids) in the ../configs directory. It checks:
//   - File structure and required fields
//   - Grid shape and allowed characters (. - | / \)
//   - Default entry position and heading, when present
//   - Coverage: which mirrors and splitters no boundary entry ever reaches
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wricardo/mcp-training/beamgrid/game/config"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

// validateLayout loads and validates a single layout file. It performs
// structural checks, per-cell symbol validation, entry validation, and
// boundary coverage analysis.
func validateLayout(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	format := config.FormatOf(filePath)
	if format == "" {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Unsupported file type: %s", filepath.Ext(filePath)))
		return result
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	stem := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	layout, err := config.DecodeLayout(data, format, stem)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Invalid %s: %v", strings.ToUpper(format), err))
		return result
	}

	if strings.TrimSpace(layout.Name) == "" {
		result.Valid = false
		result.Errors = append(result.Errors, "Name is required")
	}

	// Validate grid
	if len(layout.Layout) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "Layout is empty")
	}

	gridWidth := -1
	for i, row := range layout.Layout {
		symbols := []rune(row)
		if gridWidth == -1 {
			gridWidth = len(symbols)
		} else if len(symbols) != gridWidth {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Inconsistent grid width at row %d: expected %d, got %d", i+1, gridWidth, len(symbols)))
		}

		for j, char := range symbols {
			if _, ok := engine.ParseTileSymbol(char); !ok {
				result.Valid = false
				result.Errors = append(result.Errors, fmt.Sprintf("Invalid character '%c' at position [%d,%d]", char, i+1, j+1))
			}
		}
	}

	if !result.Valid {
		return result
	}

	// Remaining checks (entry, size limits) are the engine's own
	tiles, err := engine.ValidateLayoutConfig(layout)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	entry := layout.DefaultEntry()
	energized, err := engine.Energize(tiles, entry.Pos, entry.Dir)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Default entry %s: %v", entry, err))
		return result
	}

	coverage := validateCoverage(tiles)
	result.Errors = append(result.Errors, coverage.Errors...)

	// Add informational data
	census := engine.Census(tiles)
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Name: %s", layout.Name))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Grid: %dx%d", tiles.Width(), tiles.Height()))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Mirrors: %d", census[engine.MirrorForward.String()]+census[engine.MirrorBackward.String()]))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Splitters: %d", census[engine.SplitterHorizontal.String()]+census[engine.SplitterVertical.String()]))
	result.Errors = append(result.Errors, fmt.Sprintf("✓ Default entry %s: %d energized", entry, energized))

	return result
}

// validateCoverage runs every boundary entry and reports the mirrors and
// splitters that no entry reaches. Unreached optics are informational: the
// layout is still valid.
func validateCoverage(tiles *engine.TileMap) ValidationResult {
	result := ValidationResult{
		Valid:  true,
		Errors: []string{},
	}

	reached := make(map[engine.Position]bool)
	for _, entry := range engine.BoundaryEntries(tiles) {
		run, err := engine.DefaultPropagator.Run(tiles, entry)
		if err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("Entry %s: %v", entry, err))
			continue
		}
		for _, p := range run.Positions() {
			reached[p] = true
		}
	}

	var unreached []engine.Position
	optics := 0
	for y := 1; y <= tiles.Height(); y++ {
		for x := 1; x <= tiles.Width(); x++ {
			p := engine.Position{X: x, Y: y}
			kind, _ := tiles.Lookup(p)
			if kind == engine.Empty {
				continue
			}
			optics++
			if !reached[p] {
				unreached = append(unreached, p)
			}
		}
	}

	sort.Slice(unreached, func(i, j int) bool {
		if unreached[i].Y != unreached[j].Y {
			return unreached[i].Y < unreached[j].Y
		}
		return unreached[i].X < unreached[j].X
	})

	if len(unreached) > 0 {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Coverage: %d/%d mirrors and splitters never energized", len(unreached), optics))
		for _, p := range unreached {
			result.Errors = append(result.Errors, fmt.Sprintf("✓ Unreached: %s", p))
		}
	} else {
		result.Errors = append(result.Errors, fmt.Sprintf("✓ Coverage: All %d mirrors and splitters reachable", optics))
	}

	result.Errors = append(result.Errors, fmt.Sprintf("✓ Tiles reachable: %d/%d", len(reached), tiles.Width()*tiles.Height()))
	return result
}

// layoutFiles lists the files in dir that have a supported layout extension
func layoutFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || config.FormatOf(entry.Name()) == "" {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// main scans ../configs (or the directory given as the first argument) for
// layout files and validates each one, printing a concise report and exiting
// with non-zero status if any are invalid.
func main() {
	configDir := "../configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	files, err := layoutFiles(configDir)
	if err != nil {
		fmt.Printf("Error finding layout files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateLayout(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All layouts are valid!")
	} else {
		fmt.Println("❌ Some layouts have errors")
		os.Exit(1)
	}
}
