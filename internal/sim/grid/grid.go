package grid

import "strings"

// BlockType is the content of a single cell. Ordinals are only stable map keys.
type BlockType uint8

const (
	Empty BlockType = iota
	Incrementor
	Adder
	Doubler
)

var blockNames = [...]string{
	Empty:       "EMPTY",
	Incrementor: "INCREMENTOR",
	Adder:       "ADDER",
	Doubler:     "DOUBLER",
}

// Types lists every placeable (non-empty) block type in ordinal order.
func Types() []BlockType { return []BlockType{Incrementor, Adder, Doubler} }

func (b BlockType) Valid() bool { return int(b) < len(blockNames) }

func (b BlockType) String() string {
	if !b.Valid() {
		return "UNKNOWN"
	}
	return blockNames[b]
}

// ParseBlockType maps a catalog/wire id ("ADDER") back to its BlockType.
func ParseBlockType(s string) (BlockType, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range blockNames {
		if n == s {
			return BlockType(i), true
		}
	}
	return Empty, false
}

// Grid is a growable rectangle of cells indexed [x][y].
// It is not safe for concurrent mutation; the owning session serializes access.
type Grid struct {
	w, h  int
	cells [][]BlockType
}

// New returns an all-empty grid. Dimensions below 1 are raised to 1.
func New(w, h int) *Grid {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	g := &Grid{}
	g.resize(w, h)
	return g
}

func (g *Grid) Width() int  { return g.w }
func (g *Grid) Height() int { return g.h }

func (g *Grid) InBounds(x, y int) bool {
	return x >= 0 && x < g.w && y >= 0 && y < g.h
}

// CellAt returns Empty for any out-of-bounds coordinate so neighbor lookups
// never need bounds checks at the call site.
func (g *Grid) CellAt(x, y int) BlockType {
	if !g.InBounds(x, y) {
		return Empty
	}
	return g.cells[x][y]
}

// CanPlace reports whether Place(x, y, t) would succeed.
func (g *Grid) CanPlace(x, y int, t BlockType) bool {
	if t == Empty || !t.Valid() {
		return false
	}
	return g.InBounds(x, y) && g.cells[x][y] == Empty
}

// Place puts t into an empty in-bounds cell. Anything else is a no-op returning false.
func (g *Grid) Place(x, y int, t BlockType) bool {
	if !g.CanPlace(x, y, t) {
		return false
	}
	g.cells[x][y] = t
	return true
}

// Grow extends the grid by dw columns and dh rows. Existing cells keep their
// coordinates; new cells are Empty. Negative deltas are ignored (grids never shrink).
func (g *Grid) Grow(dw, dh int) {
	if dw < 0 {
		dw = 0
	}
	if dh < 0 {
		dh = 0
	}
	if dw == 0 && dh == 0 {
		return
	}
	g.resize(g.w+dw, g.h+dh)
}

func (g *Grid) resize(w, h int) {
	for x := 0; x < w; x++ {
		if x < len(g.cells) {
			col := g.cells[x]
			for len(col) < h {
				col = append(col, Empty)
			}
			g.cells[x] = col
			continue
		}
		g.cells = append(g.cells, make([]BlockType, h))
	}
	g.w, g.h = w, h
}

// Count returns how many cells hold t.
func (g *Grid) Count(t BlockType) int {
	n := 0
	for x := 0; x < g.w; x++ {
		for y := 0; y < g.h; y++ {
			if g.cells[x][y] == t {
				n++
			}
		}
	}
	return n
}

// Cells returns a deep copy of the cell array, indexed [x][y].
func (g *Grid) Cells() [][]BlockType {
	out := make([][]BlockType, g.w)
	for x := 0; x < g.w; x++ {
		out[x] = append([]BlockType(nil), g.cells[x][:g.h]...)
	}
	return out
}

func (g *Grid) Clone() *Grid {
	return &Grid{w: g.w, h: g.h, cells: g.Cells()}
}
