package engine

import (
	"fmt"
	"strings"
)

// TileMap is an immutable grid of tiles padded with a one-cell Border ring.
// It is safe for concurrent use by any number of runs.
type TileMap struct {
	width  int // interior width
	height int // interior height
	stride int // padded width
	tiles  []TileKind
}

// NewTileMap builds a tile map from layout rows. Every row must have the same
// number of symbols and every symbol must be one of . - | / \
// There is no upper bound on the grid size.
func NewTileMap(rows []string) (*TileMap, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: layout has no rows", ErrInvalidGridShape)
	}

	width := len([]rune(rows[0]))
	if width < MinGridSize {
		return nil, fmt.Errorf("%w: row 1 is empty", ErrInvalidGridShape)
	}

	m := &TileMap{
		width:  width,
		height: len(rows),
		stride: width + 2,
	}
	m.tiles = make([]TileKind, m.stride*(m.height+2))
	for i := range m.tiles {
		m.tiles[i] = Border
	}

	for y, row := range rows {
		symbols := []rune(row)
		if len(symbols) != width {
			return nil, fmt.Errorf("%w: row %d has %d symbols, expected %d", ErrInvalidGridShape, y+1, len(symbols), width)
		}
		for x, r := range symbols {
			kind, ok := ParseTileSymbol(r)
			if !ok {
				return nil, &TileSymbolError{Row: y, Col: x, Symbol: r}
			}
			m.tiles[(y+1)*m.stride+x+1] = kind
		}
	}

	return m, nil
}

// Width returns the interior width
func (m *TileMap) Width() int {
	return m.width
}

// Height returns the interior height
func (m *TileMap) Height() int {
	return m.height
}

// Contains reports whether p lies inside the padded grid, border included
func (m *TileMap) Contains(p Position) bool {
	return p.X >= 0 && p.X < m.stride && p.Y >= 0 && p.Y < m.height+2
}

// Interior reports whether p is a non-border cell
func (m *TileMap) Interior(p Position) bool {
	return p.X >= 1 && p.X <= m.width && p.Y >= 1 && p.Y <= m.height
}

// Lookup returns the tile at p or ErrOutOfBounds when p is outside the padded grid
func (m *TileMap) Lookup(p Position) (TileKind, error) {
	if !m.Contains(p) {
		return Border, fmt.Errorf("%w: %s outside %dx%d padded grid", ErrOutOfBounds, p, m.stride, m.height+2)
	}
	return m.at(p), nil
}

// at skips the bounds check; callers step at most one cell past the interior
func (m *TileMap) at(p Position) TileKind {
	return m.tiles[p.Y*m.stride+p.X]
}

// Rows renders the interior back into layout rows
func (m *TileMap) Rows() []string {
	rows := make([]string, m.height)
	var b strings.Builder
	for y := 1; y <= m.height; y++ {
		b.Reset()
		for x := 1; x <= m.width; x++ {
			b.WriteRune(m.at(Position{X: x, Y: y}).Symbol())
		}
		rows[y-1] = b.String()
	}
	return rows
}

func (m *TileMap) String() string {
	return strings.Join(m.Rows(), "\n")
}

var (
	goUp        = []Direction{Up}
	goDown      = []Direction{Down}
	goLeft      = []Direction{Left}
	goRight     = []Direction{Right}
	splitAcross = []Direction{Left, Right}
	splitAlong  = []Direction{Up, Down}
)

func straight(d Direction) []Direction {
	switch d {
	case Up:
		return goUp
	case Down:
		return goDown
	case Left:
		return goLeft
	case Right:
		return goRight
	}
	panic(fmt.Sprintf("engine: invalid direction %d", uint8(d)))
}

// Transition returns the outgoing headings of a beam entering tile while
// travelling in d. The returned slice is shared and must not be modified.
// Border has no transition; asking for one is a programming error and panics.
func Transition(tile TileKind, d Direction) []Direction {
	switch tile {
	case Empty:
		return straight(d)
	case SplitterHorizontal:
		if d == Up || d == Down {
			return splitAcross
		}
		return straight(d)
	case SplitterVertical:
		if d == Left || d == Right {
			return splitAlong
		}
		return straight(d)
	case MirrorForward:
		switch d {
		case Right:
			return goUp
		case Up:
			return goRight
		case Left:
			return goDown
		case Down:
			return goLeft
		}
	case MirrorBackward:
		switch d {
		case Right:
			return goDown
		case Down:
			return goRight
		case Left:
			return goUp
		case Up:
			return goLeft
		}
	case Border:
		panic("engine: transition requested from a border tile")
	}
	panic(fmt.Sprintf("engine: no transition for %s heading %s", tile, d))
}
