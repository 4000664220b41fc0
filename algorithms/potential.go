package algorithms

import (
	"container/heap"

	"crowdnav-backend/models"
)

// PotentialHigh - sentinel potential for cells the wavefront never reached
const PotentialHigh = 1e10

// neutralCost - base traversal cost added per cell step, on top of the
// grid's own cell cost
const neutralCost = 50.0

// cell - one frontier entry of the wavefront expansion
type cell struct {
	index     int
	potential float64
	heapIndex int
}

// frontier - min-heap of frontier cells ordered by potential
type frontier []*cell

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	return f[i].potential < f[j].potential
}

func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].heapIndex = i
	f[j].heapIndex = j
}

func (f *frontier) Push(x interface{}) {
	c := x.(*cell)
	c.heapIndex = len(*f)
	*f = append(*f, c)
}

func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.heapIndex = -1
	*f = old[0 : n-1]
	return c
}

// PotentialSolver - wavefront potential propagation over a cost grid.
//
// The solver holds no state between calls; Solve only fills the potential
// array handed in by the caller.
type PotentialSolver struct {
	width        int
	height       int
	allowUnknown bool
}

// NewPotentialSolver - solver for a width x height grid
func NewPotentialSolver(width, height int, allowUnknown bool) *PotentialSolver {
	return &PotentialSolver{width: width, height: height, allowUnknown: allowUnknown}
}

// Solve propagates a scalar potential outward from the start cell until the
// target cell is finalized or maxCellVisits expansions have been spent.
//
// costs is the row-major cost grid (the caller outlines the borders with
// lethal cost once per planning pass); potential must hold width*height
// entries. Finite potentials increase monotonically with path cost from the
// start; unreached cells keep PotentialHigh.
func (s *PotentialSolver) Solve(costs []uint8, startX, startY, targetX, targetY float64, maxCellVisits int, potential []float64) bool {
	for i := range potential {
		potential[i] = PotentialHigh
	}

	start := s.index(int(startX+models.ConvertOffset), int(startY+models.ConvertOffset))
	target := s.index(int(targetX+models.ConvertOffset), int(targetY+models.ConvertOffset))
	if start < 0 || target < 0 {
		return false
	}

	potential[start] = 0

	open := make(frontier, 0, 64)
	heap.Init(&open)
	heap.Push(&open, &cell{index: start, potential: 0})

	visits := 0
	for open.Len() > 0 {
		current := heap.Pop(&open).(*cell)
		if current.potential > potential[current.index] {
			continue // stale entry, a cheaper path was found meanwhile
		}
		if current.index == target {
			return true
		}

		visits++
		if visits > maxCellVisits {
			return false
		}

		for _, next := range s.neighbors(current.index) {
			step, ok := s.stepCost(costs[next])
			if !ok {
				continue
			}
			p := potential[current.index] + step
			if p < potential[next] {
				potential[next] = p
				heap.Push(&open, &cell{index: next, potential: p})
			}
		}
	}

	return false
}

// stepCost - traversal cost of entering a cell, false when impassable
func (s *PotentialSolver) stepCost(c uint8) (float64, bool) {
	if c == models.CostUnknown {
		if !s.allowUnknown {
			return 0, false
		}
		c = models.CostInscribed - 1
	}
	if c >= models.CostInscribed {
		return 0, false
	}
	return neutralCost + float64(c), true
}

// neighbors - 4-connected in-bounds neighbor indices
func (s *PotentialSolver) neighbors(index int) []int {
	x := index % s.width
	y := index / s.width

	out := make([]int, 0, 4)
	if x > 0 {
		out = append(out, index-1)
	}
	if x < s.width-1 {
		out = append(out, index+1)
	}
	if y > 0 {
		out = append(out, index-s.width)
	}
	if y < s.height-1 {
		out = append(out, index+s.width)
	}
	return out
}

func (s *PotentialSolver) index(x, y int) int {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return -1
	}
	return y*s.width + x
}
