package engine

// CountTiles counts the interior tiles of the given kind
func CountTiles(m *TileMap, kind TileKind) int {
	count := 0
	for y := 1; y <= m.height; y++ {
		for x := 1; x <= m.width; x++ {
			if m.at(Position{X: x, Y: y}) == kind {
				count++
			}
		}
	}
	return count
}

// Census counts every interior tile kind, keyed by tile name
func Census(m *TileMap) map[string]int {
	census := make(map[string]int)
	for y := 1; y <= m.height; y++ {
		for x := 1; x <= m.width; x++ {
			census[m.at(Position{X: x, Y: y}).String()]++
		}
	}
	return census
}

// NeighborTile is a neighbouring cell of a described tile
type NeighborTile struct {
	Direction Direction `json:"direction"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
	Symbol    string    `json:"symbol"`
	Kind      string    `json:"kind"`
}

// TileInfo describes a single cell and how it redirects beams
type TileInfo struct {
	X           int                    `json:"x"`
	Y           int                    `json:"y"`
	Symbol      string                 `json:"symbol"`
	Kind        string                 `json:"kind"`
	Interior    bool                   `json:"interior"`
	Transitions map[string][]Direction `json:"transitions,omitempty"`
	Neighbors   []NeighborTile         `json:"neighbors"`
}

// DescribeTile reports the tile at p, its outgoing headings for every
// incoming heading, and its four orthogonal neighbours. Neighbours outside
// the padded grid are omitted.
func DescribeTile(m *TileMap, p Position) (*TileInfo, error) {
	kind, err := m.Lookup(p)
	if err != nil {
		return nil, err
	}

	info := &TileInfo{
		X:        p.X,
		Y:        p.Y,
		Symbol:   string(kind.Symbol()),
		Kind:     kind.String(),
		Interior: kind != Border,
	}

	if kind != Border {
		info.Transitions = make(map[string][]Direction, len(Directions))
		for _, d := range Directions {
			out := Transition(kind, d)
			info.Transitions[d.String()] = append([]Direction(nil), out...)
		}
	}

	for _, d := range Directions {
		n := p.Step(d)
		if !m.Contains(n) {
			continue
		}
		nk := m.at(n)
		info.Neighbors = append(info.Neighbors, NeighborTile{
			Direction: d,
			X:         n.X,
			Y:         n.Y,
			Symbol:    string(nk.Symbol()),
			Kind:      nk.String(),
		})
	}

	return info, nil
}
