package engine

import (
	"fmt"
	"strings"
)

// Direction is the heading of a beam
type Direction uint8

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every heading
var Directions = [...]Direction{Up, Down, Left, Right}

// TileKind represents the content of a single grid cell
type TileKind uint8

const (
	Empty TileKind = iota
	SplitterHorizontal
	SplitterVertical
	MirrorForward
	MirrorBackward
	Border

	// Validation constants
	MinGridSize = 1
	// MaxGridSize bounds each side of a stored layout configuration
	MaxGridSize = 256
)

// Position represents x,y coordinates in the padded grid
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BeamState is a beam sitting on Pos heading Dir
type BeamState struct {
	Pos Position  `json:"pos"`
	Dir Direction `json:"dir"`
}

// String returns the lower-case name used on the wire
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// ParseDirection accepts "up", "down", "left", "right", the compass names
// "north", "south", "west", "east" and the single letters U, D, L, R. Case
// and surrounding space are ignored.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "u", "north":
		return Up, nil
	case "down", "d", "south":
		return Down, nil
	case "left", "l", "west":
		return Left, nil
	case "right", "r", "east":
		return Right, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Delta returns the unit step for the direction
func (d Direction) Delta() (dx, dy int) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	panic(fmt.Sprintf("engine: invalid direction %d", uint8(d)))
}

// Opposite returns the reversed heading
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	case Right:
		return Left
	}
	panic(fmt.Sprintf("engine: invalid direction %d", uint8(d)))
}

// MarshalText implements encoding.TextMarshaler
func (d Direction) MarshalText() ([]byte, error) {
	if d > Right {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Direction) UnmarshalText(text []byte) error {
	parsed, err := ParseDirection(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Symbol returns the layout character for the tile kind
func (k TileKind) Symbol() rune {
	switch k {
	case Empty:
		return '.'
	case SplitterHorizontal:
		return '-'
	case SplitterVertical:
		return '|'
	case MirrorForward:
		return '/'
	case MirrorBackward:
		return '\\'
	case Border:
		return '#'
	}
	return '?'
}

// String returns a readable tile name
func (k TileKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case SplitterHorizontal:
		return "splitter_horizontal"
	case SplitterVertical:
		return "splitter_vertical"
	case MirrorForward:
		return "mirror_forward"
	case MirrorBackward:
		return "mirror_backward"
	case Border:
		return "border"
	}
	return fmt.Sprintf("tile(%d)", uint8(k))
}

// ParseTileSymbol maps a layout character to its tile kind. The border
// character is not a legal layout symbol.
func ParseTileSymbol(r rune) (TileKind, bool) {
	switch r {
	case '.':
		return Empty, true
	case '-':
		return SplitterHorizontal, true
	case '|':
		return SplitterVertical, true
	case '/':
		return MirrorForward, true
	case '\\':
		return MirrorBackward, true
	}
	return 0, false
}

// Step returns the neighbouring position in direction d
func (p Position) Step(d Direction) Position {
	dx, dy := d.Delta()
	return Position{X: p.X + dx, Y: p.Y + dy}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

func (s BeamState) String() string {
	return fmt.Sprintf("%s %s", s.Pos, s.Dir)
}
