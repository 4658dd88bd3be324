// Package production computes a grid's steady-state points per tick.
//
// Evaluation always runs in this order over the full grid:
//
//	base values -> doubler propagation -> adder propagation -> sum
//
// Doublers scale an adder's output multiplier, so they must resolve before
// any adder contributes to an incrementor.
package production

import "blockremental/internal/sim/grid"

// Reader is the read-only view of a grid the evaluator needs.
type Reader interface {
	Width() int
	Height() int
	CellAt(x, y int) grid.BlockType
}

// Result holds the transient per-cell values of one evaluation, indexed [x][y].
type Result struct {
	Width  int
	Height int

	IncrementorValue [][]int64
	AdderMultiplier  [][]int64

	PointsPerTick int64
}

// ValueAt returns the incrementor value of a cell, 0 when out of bounds.
func (r Result) ValueAt(x, y int) int64 {
	if x < 0 || x >= r.Width || y < 0 || y >= r.Height {
		return 0
	}
	return r.IncrementorValue[x][y]
}

var neighbors = [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

// Evaluate is total: any well-formed grid, including an all-empty one, yields a result.
func Evaluate(g Reader) Result {
	w, h := g.Width(), g.Height()
	r := Result{
		Width:            w,
		Height:           h,
		IncrementorValue: make2D(w, h),
		AdderMultiplier:  make2D(w, h),
	}

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			switch g.CellAt(x, y) {
			case grid.Incrementor:
				r.IncrementorValue[x][y] = 1
			case grid.Adder:
				r.AdderMultiplier[x][y] = 1
			}
		}
	}

	forEach(g, grid.Doubler, func(x, y int) {
		for _, d := range neighbors {
			nx, ny := x+d[0], y+d[1]
			if g.CellAt(nx, ny) == grid.Adder {
				r.AdderMultiplier[nx][ny] *= 2
			}
		}
	})

	forEach(g, grid.Adder, func(x, y int) {
		bonus := r.AdderMultiplier[x][y]
		for _, d := range neighbors {
			nx, ny := x+d[0], y+d[1]
			if g.CellAt(nx, ny) == grid.Incrementor {
				r.IncrementorValue[nx][ny] += bonus
			}
		}
	})

	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			r.PointsPerTick += r.IncrementorValue[x][y]
		}
	}
	return r
}

// PointsPerTick is a shorthand for Evaluate(g).PointsPerTick.
func PointsPerTick(g Reader) int64 { return Evaluate(g).PointsPerTick }

func forEach(g Reader, t grid.BlockType, fn func(x, y int)) {
	w, h := g.Width(), g.Height()
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			if g.CellAt(x, y) == t {
				fn(x, y)
			}
		}
	}
}

func make2D(w, h int) [][]int64 {
	backing := make([]int64, w*h)
	out := make([][]int64, w)
	for x := range out {
		out[x] = backing[x*h : (x+1)*h : (x+1)*h]
	}
	return out
}
