// Command analyze prints quick, human-readable heuristics about layout files
// in the project's configs directory. It summarizes dimensions, the tile
// census, the default-entry run, and the strongest boundary entry found by a
// full sweep.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/wricardo/mcp-training/beamgrid/game/config"
	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#aad94c"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorDim     = lipgloss.AdaptiveColor{Light: "#8a9199", Dark: "#6c7380"}

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorDim).
			Width(16)

	bestStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

// Analysis is the summary of one layout file
type Analysis struct {
	File         string
	Name         string
	Width        int
	Height       int
	Census       map[string]int
	DefaultEntry engine.BeamState
	DefaultCount int
	Best         engine.BeamState
	Max          int
	Runs         int
	Dark         int // boundary entries that energize only their entry tile
	Elapsed      time.Duration
}

func main() {
	configDir := "configs"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	entries, err := os.ReadDir(configDir)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", configDir, err)
		os.Exit(1)
	}

	for _, entry := range entries {
		if entry.IsDir() || config.FormatOf(entry.Name()) == "" {
			continue
		}
		path := filepath.Join(configDir, entry.Name())

		analysis, err := analyzeLayout(context.Background(), path)
		if err != nil {
			fmt.Println(warnStyle.Render(fmt.Sprintf("⚠️  %s: %v", entry.Name(), err)))
			continue
		}
		printAnalysis(os.Stdout, analysis)
	}
}

// analyzeLayout loads a layout file and runs the default entry and a full
// boundary sweep over it
func analyzeLayout(ctx context.Context, path string) (*Analysis, error) {
	format := config.FormatOf(path)
	if format == "" {
		return nil, fmt.Errorf("unsupported layout file: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	layout, err := config.DecodeLayout(data, format, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	if err != nil {
		return nil, err
	}

	tiles, err := engine.ValidateLayoutConfig(layout)
	if err != nil {
		return nil, err
	}

	entry := layout.DefaultEntry()
	defaultCount, err := engine.Energize(tiles, entry.Pos, entry.Dir)
	if err != nil {
		return nil, fmt.Errorf("default entry %s: %w", entry, err)
	}

	start := time.Now()
	sweep, err := engine.Sweep(ctx, tiles, engine.SweepOptions{Propagator: engine.DefaultPropagator})
	if err != nil {
		return nil, err
	}

	dark := 0
	for _, e := range sweep.Entries {
		if e.Count == 1 {
			dark++
		}
	}

	return &Analysis{
		File:         filepath.Base(path),
		Name:         layout.Name,
		Width:        tiles.Width(),
		Height:       tiles.Height(),
		Census:       engine.Census(tiles),
		DefaultEntry: entry,
		DefaultCount: defaultCount,
		Best:         sweep.Best,
		Max:          sweep.Max,
		Runs:         sweep.Runs,
		Dark:         dark,
		Elapsed:      time.Since(start),
	}, nil
}

// renderAnalysis formats an analysis as a bordered panel
func renderAnalysis(a *Analysis) string {
	row := func(label, value string) string {
		return labelStyle.Render(label) + value
	}

	kinds := make([]string, 0, len(a.Census))
	for kind := range a.Census {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	census := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		census = append(census, fmt.Sprintf("%s=%d", kind, a.Census[kind]))
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s (%s)", a.Name, a.File)),
		row("Grid", fmt.Sprintf("%d x %d", a.Width, a.Height)),
		row("Tiles", strings.Join(census, " ")),
		row("Default entry", fmt.Sprintf("%s → %d energized", a.DefaultEntry, a.DefaultCount)),
		row("Best entry", bestStyle.Render(fmt.Sprintf("%s → %d energized", a.Best, a.Max))),
		row("Sweep", fmt.Sprintf("%d runs in %s", a.Runs, a.Elapsed.Round(time.Microsecond))),
	}

	if a.Dark > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("⚠️  %d boundary entries energize only their entry tile", a.Dark)))
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintln(w, renderAnalysis(a))
}
