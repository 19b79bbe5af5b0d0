package main

import (
	"fmt"
	"sort"

	"github.com/wricardo/mcp-training/beamgrid/game/engine"
)

// Strategy names accepted by --strategy
const (
	StrategyEdge       = "edge"
	StrategySystematic = "systematic"
)

// SystematicStrategy hands out every boundary entry exactly once. The
// systematic order tries entries whose beam meets a splitter soonest first,
// so the best-so-far count climbs early; edge order follows the grid edges.
type SystematicStrategy struct {
	entries []engine.BeamState
	next    int
}

func NewSystematicStrategy(rows []string, order string) (*SystematicStrategy, error) {
	tiles, err := engine.NewTileMap(rows)
	if err != nil {
		return nil, fmt.Errorf("parse grid: %w", err)
	}

	entries := engine.BoundaryEntries(tiles)

	switch order {
	case StrategyEdge:
	case StrategySystematic, "":
		scores := make(map[engine.BeamState]int, len(entries))
		for _, e := range entries {
			scores[e] = firstOpticScore(tiles, e)
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return scores[entries[i]] > scores[entries[j]]
		})
	default:
		return nil, fmt.Errorf("unknown strategy %q (use %s or %s)", order, StrategyEdge, StrategySystematic)
	}

	return &SystematicStrategy{entries: entries}, nil
}

// firstOpticScore walks straight from the entry to the first non-empty tile.
// Splitters that split the beam score highest, then mirrors, then the
// distance travelled counts against the entry.
func firstOpticScore(tiles *engine.TileMap, entry engine.BeamState) int {
	size := tiles.Width() + tiles.Height()
	for p, steps := entry.Pos, 0; tiles.Interior(p); p, steps = p.Step(entry.Dir), steps+1 {
		kind, _ := tiles.Lookup(p)
		if kind == engine.Empty {
			continue
		}
		if out := engine.Transition(kind, entry.Dir); len(out) > 1 {
			return 3*size - steps
		}
		if kind == engine.MirrorForward || kind == engine.MirrorBackward {
			return 2*size - steps
		}
	}
	return 0
}

// NextEntry returns the next untried entry, or false when all were handed out
func (s *SystematicStrategy) NextEntry() (engine.BeamState, bool) {
	if s.next >= len(s.entries) {
		return engine.BeamState{}, false
	}
	entry := s.entries[s.next]
	s.next++
	return entry, true
}

// Remaining reports how many entries have not been handed out
func (s *SystematicStrategy) Remaining() int {
	return len(s.entries) - s.next
}

func (s *SystematicStrategy) Reset() {
	s.next = 0
}
