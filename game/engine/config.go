package engine

import (
	"fmt"
	"strings"
)

// EntryPoint is the default entry of a layout, in padded coordinates
type EntryPoint struct {
	X         int       `json:"x" toml:"x"`
	Y         int       `json:"y" toml:"y"`
	Direction Direction `json:"direction" toml:"direction"`
}

// BeamState converts the entry point to a beam state
func (e EntryPoint) BeamState() BeamState {
	return BeamState{Pos: Position{X: e.X, Y: e.Y}, Dir: e.Direction}
}

// LayoutConfig is a named grid layout as stored in the configs directory
type LayoutConfig struct {
	Name        string      `json:"name" toml:"name"`
	Description string      `json:"description" toml:"description"`
	Layout      []string    `json:"layout" toml:"layout"`
	Entry       *EntryPoint `json:"entry,omitempty" toml:"entry,omitempty"`
}

// DefaultEntry returns the layout's entry, falling back to the top-left
// interior cell heading right.
func (c *LayoutConfig) DefaultEntry() BeamState {
	if c.Entry != nil {
		return c.Entry.BeamState()
	}
	return BeamState{Pos: Position{X: 1, Y: 1}, Dir: Right}
}

// ValidateLayoutConfig validates a layout configuration and returns the
// tile map it describes. Stored layouts are capped at MaxGridSize per side.
func ValidateLayoutConfig(config *LayoutConfig) (*TileMap, error) {
	if config == nil {
		return nil, fmt.Errorf("config validation: config is nil")
	}
	if strings.TrimSpace(config.Name) == "" {
		return nil, fmt.Errorf("config validation: name is required")
	}

	if len(config.Layout) > MaxGridSize {
		return nil, fmt.Errorf("config validation: %w: layout has %d rows, max is %d",
			ErrInvalidGridShape, len(config.Layout), MaxGridSize)
	}

	m, err := NewTileMap(config.Layout)
	if err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if m.Width() > MaxGridSize {
		return nil, fmt.Errorf("config validation: %w: layout has %d columns, max is %d",
			ErrInvalidGridShape, m.Width(), MaxGridSize)
	}

	if config.Entry != nil {
		pos := Position{X: config.Entry.X, Y: config.Entry.Y}
		if !m.Interior(pos) {
			return nil, fmt.Errorf("config validation: %w: entry %s must be inside 1..%d x 1..%d",
				ErrOutOfBounds, pos, m.Width(), m.Height())
		}
		if config.Entry.Direction > Right {
			return nil, fmt.Errorf("config validation: %w: entry direction %d", ErrInvalidDirection, uint8(config.Entry.Direction))
		}
	}

	return m, nil
}

// ParseLayoutText splits raw puzzle text into layout rows. Trailing carriage
// returns and blank lines are dropped.
func ParseLayoutText(text string) []string {
	var rows []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, line)
	}
	return rows
}

// ContraptionLayout is the published 10x10 example contraption
var ContraptionLayout = []string{
	`.|...\....`,
	`|.-.\.....`,
	`.....|-...`,
	`........|.`,
	`..........`,
	`.........\`,
	`..../.\\..`,
	`.-.-/..|..`,
	`.|....-|.\`,
	`..//.|....`,
}

// DefaultLayoutConfig returns the built-in contraption layout
func DefaultLayoutConfig() *LayoutConfig {
	return &LayoutConfig{
		Name:        "contraption",
		Description: "Published 10x10 example contraption",
		Layout:      append([]string(nil), ContraptionLayout...),
	}
}
