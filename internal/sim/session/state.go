package session

import (
	"blockremental/internal/protocol"
	"blockremental/internal/sim/grid"
)

// State is a read-only copy of a session after a step. It shares no memory with the live grid.
type State struct {
	SessionID string
	Tick      uint64

	Points        int64
	PointsPerTick int64

	Width  int
	Height int
	// Cells and Values are indexed [x][y].
	Cells  [][]grid.BlockType
	Values [][]int64

	Digest string
}

func (st State) CellAt(x, y int) grid.BlockType {
	if x < 0 || y < 0 || x >= st.Width || y >= st.Height {
		return grid.Empty
	}
	return st.Cells[x][y]
}

func (st State) ValueAt(x, y int) int64 {
	if x < 0 || y < 0 || x >= st.Width || y >= st.Height {
		return 0
	}
	return st.Values[x][y]
}

// StateMsg renders the state as rows (y-major) for the wire.
func (st State) StateMsg() protocol.StateMsg {
	cells := make([][]string, st.Height)
	values := make([][]int64, st.Height)
	for y := 0; y < st.Height; y++ {
		cells[y] = make([]string, st.Width)
		values[y] = make([]int64, st.Width)
		for x := 0; x < st.Width; x++ {
			cells[y][x] = st.Cells[x][y].String()
			values[y][x] = st.Values[x][y]
		}
	}
	return protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            st.Tick,
		Points:          st.Points,
		PointsPerTick:   st.PointsPerTick,
		Width:           st.Width,
		Height:          st.Height,
		Cells:           cells,
		Values:          values,
		Digest:          st.Digest,
	}
}

// Snapshot returns the state published by the most recent step.
func (s *Session) Snapshot() State {
	if s == nil {
		return State{}
	}
	v := s.snapshot.Load()
	if v == nil {
		return State{}
	}
	st, ok := v.(State)
	if !ok {
		return State{}
	}
	return st
}

func (s *Session) publish(tick uint64, digest string) {
	if digest == "" {
		digest = s.Digest()
	}
	values := make([][]int64, s.grid.Width())
	for x := range values {
		values[x] = make([]int64, s.grid.Height())
		for y := range values[x] {
			values[x][y] = s.prod.ValueAt(x, y)
		}
	}
	s.snapshot.Store(State{
		SessionID:     s.cfg.ID,
		Tick:          tick,
		Points:        s.econ.Points(),
		PointsPerTick: s.econ.PointsPerTick(),
		Width:         s.grid.Width(),
		Height:        s.grid.Height(),
		Cells:         s.grid.Cells(),
		Values:        values,
		Digest:        digest,
	})
}
