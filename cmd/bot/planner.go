package main

import (
	"encoding/json"
	"fmt"

	"blockremental/internal/protocol"
	"blockremental/internal/sim/catalogs"
	"blockremental/internal/sim/grid"
	"blockremental/internal/sim/production"
)

// defaultStaleTicks bounds the ACK wait when WELCOME carried no update rate.
const defaultStaleTicks = 120

// planner picks at most one purchase per STATE and waits for its ACK before
// picking another. An ACK that has not arrived staleTicks after the send is
// treated as lost.
type planner struct {
	blocks   []catalogs.BlockDef
	upgrades []catalogs.UpgradeDef
	maxW     int
	maxH     int

	seq        int
	pending    string
	sentTick   uint64
	staleTicks uint64
}

// welcome records the session limits and sizes the ACK wait to two seconds
// of simulation.
func (p *planner) welcome(params protocol.SessionParams) {
	p.maxW, p.maxH = params.MaxWidth, params.MaxHeight
	if params.UpdateRateHz > 0 {
		p.staleTicks = uint64(2 * params.UpdateRateHz)
	}
}

// ack clears the pending action when id answers it.
func (p *planner) ack(id string) {
	if id == p.pending {
		p.pending = ""
	}
}

func (p *planner) loadCatalog(msg []byte) error {
	var c struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &c); err != nil {
		return err
	}
	switch c.Name {
	case "blocks":
		return json.Unmarshal(c.Data, &p.blocks)
	case "upgrades":
		return json.Unmarshal(c.Data, &p.upgrades)
	default:
		return fmt.Errorf("unknown catalog %q", c.Name)
	}
}

func (p *planner) next(st protocol.StateMsg) (protocol.ActMsg, bool) {
	if p.pending != "" {
		stale := p.staleTicks
		if stale == 0 {
			stale = defaultStaleTicks
		}
		if st.Tick <= p.sentTick+stale {
			return protocol.ActMsg{}, false
		}
		p.pending = ""
	}
	act, ok := choose(st, p.blocks, p.upgrades, p.maxW, p.maxH)
	if !ok {
		return act, false
	}
	p.seq++
	act.Type = protocol.TypeAct
	act.ProtocolVersion = protocol.Version
	act.ID = fmt.Sprintf("B%d", p.seq)
	p.pending = act.ID
	p.sentTick = st.Tick
	return act, true
}

// choose returns the affordable placement with the best rate gain per point
// spent. When the grid is full it buys growth instead.
func choose(st protocol.StateMsg, blocks []catalogs.BlockDef, upgrades []catalogs.UpgradeDef, maxW, maxH int) (protocol.ActMsg, bool) {
	g := gridFromState(st)
	base := production.PointsPerTick(g)

	var (
		best             protocol.ActMsg
		bestGain, bestCo int64
		found, hasEmpty  bool
	)
	for x := 0; x < g.Width(); x++ {
		for y := 0; y < g.Height(); y++ {
			if g.CellAt(x, y) != grid.Empty {
				continue
			}
			hasEmpty = true
			for _, b := range blocks {
				if b.Cost > st.Points {
					continue
				}
				t, ok := grid.ParseBlockType(b.ID)
				if !ok || t == grid.Empty {
					continue
				}
				trial := g.Clone()
				trial.Place(x, y, t)
				gain := production.PointsPerTick(trial) - base
				if gain <= 0 {
					continue
				}
				// gain/cost > bestGain/bestCo without division.
				if !found || gain*bestCo > bestGain*b.Cost {
					best = protocol.ActMsg{Kind: protocol.ActPlace, X: x, Y: y, Block: b.ID}
					bestGain, bestCo, found = gain, b.Cost, true
				}
			}
		}
	}
	if found {
		return best, true
	}
	if hasEmpty {
		return protocol.ActMsg{}, false
	}

	for _, u := range upgrades {
		if u.Effect.Kind != catalogs.EffectGrowGrid || u.Cost > st.Points {
			continue
		}
		if (maxW > 0 && st.Width+u.Effect.DW > maxW) || (maxH > 0 && st.Height+u.Effect.DH > maxH) {
			continue
		}
		return protocol.ActMsg{Kind: protocol.ActUpgrade, Upgrade: u.ID}, true
	}
	return protocol.ActMsg{}, false
}

// gridFromState rebuilds a grid from the row-major STATE cells.
func gridFromState(st protocol.StateMsg) *grid.Grid {
	g := grid.New(st.Width, st.Height)
	for y, row := range st.Cells {
		for x, id := range row {
			if t, ok := grid.ParseBlockType(id); ok && t != grid.Empty {
				g.Place(x, y, t)
			}
		}
	}
	return g
}
