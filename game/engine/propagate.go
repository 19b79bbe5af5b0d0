package engine

import (
	"fmt"
	"sort"

	"github.com/zyedidia/generic/mapset"
)

// Strategy selects the worklist discipline. The energized set does not
// depend on it; only the expansion order changes.
type Strategy uint8

const (
	Queue Strategy = iota // FIFO, breadth first
	Stack                 // LIFO, depth first
)

func (s Strategy) String() string {
	if s == Stack {
		return "stack"
	}
	return "queue"
}

// Propagator computes the energized set reachable from one entry state
type Propagator struct {
	Strategy Strategy
	// SkipAhead walks straight runs of empty tiles in one step instead of
	// pushing a state per cell.
	SkipAhead bool
}

// DefaultPropagator is used by Energize, Sweep and the Simulator
var DefaultPropagator = Propagator{Strategy: Queue, SkipAhead: true}

// Run is the outcome of one propagation. Its sets are owned by the run and
// never shared with another one.
type Run struct {
	Entry     BeamState
	Energized mapset.Set[Position]
	Visited   mapset.Set[BeamState]
}

// Count returns the number of energized tiles
func (r *Run) Count() int {
	return r.Energized.Size()
}

// IsEnergized reports whether p was touched by a beam
func (r *Run) IsEnergized(p Position) bool {
	return r.Energized.Has(p)
}

// Positions returns the energized positions in row-major order
func (r *Run) Positions() []Position {
	out := make([]Position, 0, r.Energized.Size())
	r.Energized.Each(func(p Position) {
		out = append(out, p)
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

// Overlay renders the interior with '#' on energized cells and '.' elsewhere
func (r *Run) Overlay(m *TileMap) []string {
	rows := make([]string, m.height)
	line := make([]byte, m.width)
	for y := 1; y <= m.height; y++ {
		for x := 1; x <= m.width; x++ {
			if r.Energized.Has(Position{X: x, Y: y}) {
				line[x-1] = '#'
			} else {
				line[x-1] = '.'
			}
		}
		rows[y-1] = string(line)
	}
	return rows
}

// Run propagates a beam arriving at entry.Pos travelling entry.Dir. The entry
// tile itself deflects or splits the beam. entry.Pos must be an interior cell.
func (p Propagator) Run(m *TileMap, entry BeamState) (*Run, error) {
	if entry.Dir > Right {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDirection, uint8(entry.Dir))
	}
	if !m.Contains(entry.Pos) {
		return nil, fmt.Errorf("%w: entry %s outside the padded grid", ErrOutOfBounds, entry.Pos)
	}
	if !m.Interior(entry.Pos) {
		return nil, fmt.Errorf("%w: entry %s is on the border", ErrOutOfBounds, entry.Pos)
	}

	run := &Run{
		Entry:     entry,
		Energized: mapset.New[Position](),
		Visited:   mapset.New[BeamState](),
	}

	work := worklist{lifo: p.Strategy == Stack}
	for _, d := range Transition(m.at(entry.Pos), entry.Dir) {
		work.push(BeamState{Pos: entry.Pos, Dir: d})
	}

	for work.len() > 0 {
		s := work.pop()
		if run.Visited.Has(s) {
			continue
		}
		run.Visited.Put(s)
		run.Energized.Put(s.Pos)

		next := s.Pos.Step(s.Dir)
		tile := m.at(next)
		if tile == Border {
			continue
		}

		if tile == Empty && p.SkipAhead {
			if last, ok := skipAhead(m, run, next, s.Dir); ok {
				work.push(BeamState{Pos: last, Dir: s.Dir})
			}
			continue
		}

		for _, d := range Transition(tile, s.Dir) {
			work.push(BeamState{Pos: next, Dir: d})
		}
	}

	return run, nil
}

// skipAhead marks the straight run of Empty tiles starting at p as visited
// and energized, stopping on the last Empty tile before a non-empty one. It
// reports false if the walk met a state that was already visited.
func skipAhead(m *TileMap, run *Run, p Position, d Direction) (Position, bool) {
	for {
		after := p.Step(d)
		if m.at(after) != Empty {
			return p, true
		}
		s := BeamState{Pos: p, Dir: d}
		if run.Visited.Has(s) {
			return p, false
		}
		run.Visited.Put(s)
		run.Energized.Put(p)
		p = after
	}
}

// Energize runs the default propagator once and returns the energized count
func Energize(m *TileMap, pos Position, dir Direction) (int, error) {
	run, err := DefaultPropagator.Run(m, BeamState{Pos: pos, Dir: dir})
	if err != nil {
		return 0, err
	}
	return run.Count(), nil
}

type worklist struct {
	items []BeamState
	head  int
	lifo  bool
}

func (w *worklist) push(s BeamState) {
	w.items = append(w.items, s)
}

func (w *worklist) len() int {
	return len(w.items) - w.head
}

func (w *worklist) pop() BeamState {
	if w.lifo {
		s := w.items[len(w.items)-1]
		w.items = w.items[:len(w.items)-1]
		return s
	}
	s := w.items[w.head]
	w.head++
	if w.head >= 64 && w.head*2 >= len(w.items) {
		n := copy(w.items, w.items[w.head:])
		w.items = w.items[:n]
		w.head = 0
	}
	return s
}
