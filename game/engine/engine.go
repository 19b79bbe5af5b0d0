package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine provides the main interface for simulator operations
type Engine interface {
	// Layout
	GetConfig() *LayoutConfig
	TileMap() *TileMap

	// Runs
	Energize(entry BeamState) (*RunRecord, error)
	Trace(entry BeamState) (*RunRecord, *Run, error)
	EnergizeDefault() (*RunRecord, error)
	Sweep(ctx context.Context) (*SweepResult, error)

	// History
	GetRunHistory() []RunRecord
	GetLastRun() *RunRecord
}

var _ Engine = (*Simulator)(nil)

// Run kinds recorded in the history
const (
	RunKindSingle = "single"
	RunKindSweep  = "sweep"
)

// RunRecord is a history entry for one energize call or one sweep
type RunRecord struct {
	ID        string        `json:"id"`
	Kind      string        `json:"kind"`
	Entry     BeamState     `json:"entry"`
	Energized int           `json:"energized"`
	Runs      int           `json:"runs"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Timestamp int64         `json:"timestamp"`
	RunNumber int           `json:"run_number"`
}

// Simulator implements the Engine interface for one layout. The tile map is
// shared by every run; the history is the only mutable state.
type Simulator struct {
	config     *LayoutConfig
	tiles      *TileMap
	propagator Propagator
	workers    int

	mu      sync.Mutex
	history []RunRecord
	sweep   *SweepResult
}

// NewSimulator validates the configuration and builds its tile map
func NewSimulator(config *LayoutConfig) (*Simulator, error) {
	tiles, err := ValidateLayoutConfig(config)
	if err != nil {
		return nil, err
	}

	return &Simulator{
		config:     config,
		tiles:      tiles,
		propagator: DefaultPropagator,
		history:    []RunRecord{},
	}, nil
}

// NewSimulatorWithDefaults creates a simulator over the built-in contraption
func NewSimulatorWithDefaults() *Simulator {
	sim, err := NewSimulator(DefaultLayoutConfig())
	if err != nil {
		panic(fmt.Sprintf("engine: built-in layout is invalid: %v", err))
	}
	return sim
}

// SetWorkers bounds the parallelism of Sweep; 0 means GOMAXPROCS
func (s *Simulator) SetWorkers(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = n
}

// GetConfig returns the layout configuration
func (s *Simulator) GetConfig() *LayoutConfig {
	return s.config
}

// TileMap returns the shared, read-only tile map
func (s *Simulator) TileMap() *TileMap {
	return s.tiles
}

// Energize runs a single propagation from entry and records it
func (s *Simulator) Energize(entry BeamState) (*RunRecord, error) {
	record, _, err := s.Trace(entry)
	return record, err
}

// Trace is Energize that also hands back the run, so callers can render it
// without propagating again
func (s *Simulator) Trace(entry BeamState) (*RunRecord, *Run, error) {
	start := time.Now()
	run, err := s.propagator.Run(s.tiles, entry)
	if err != nil {
		return nil, nil, err
	}

	record := s.record(RunKindSingle, entry, run.Count(), 1, time.Since(start))
	return &record, run, nil
}

// EnergizeDefault runs the layout's default entry
func (s *Simulator) EnergizeDefault() (*RunRecord, error) {
	return s.Energize(s.config.DefaultEntry())
}

// Sweep runs the boundary sweep. The tile map never changes, so the result
// is computed once and replayed on later calls.
func (s *Simulator) Sweep(ctx context.Context) (*SweepResult, error) {
	s.mu.Lock()
	cached := s.sweep
	workers := s.workers
	s.mu.Unlock()

	start := time.Now()
	result := cached
	if result == nil {
		var err error
		result, err = Sweep(ctx, s.tiles, SweepOptions{Workers: workers, Propagator: s.propagator})
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.sweep = result
		s.mu.Unlock()
	}

	s.record(RunKindSweep, result.Best, result.Max, result.Runs, time.Since(start))
	return result, nil
}

// GetRunHistory returns a copy of the run history
func (s *Simulator) GetRunHistory() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RunRecord(nil), s.history...)
}

// GetLastRun returns the last recorded run, or nil if nothing ran yet
func (s *Simulator) GetLastRun() *RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) == 0 {
		return nil
	}
	last := s.history[len(s.history)-1]
	return &last
}

func (s *Simulator) record(kind string, entry BeamState, energized, runs int, elapsed time.Duration) RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := RunRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Entry:     entry,
		Energized: energized,
		Runs:      runs,
		Elapsed:   elapsed,
		Timestamp: time.Now().Unix(),
		RunNumber: len(s.history) + 1,
	}
	s.history = append(s.history, record)
	return record
}
