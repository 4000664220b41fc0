package algorithms

import (
	"math"
)

// GradientExtractor - sub-cell path extraction by steepest potential descent.
//
// The extractor walks from the target cell back toward the start cell,
// following the interpolated potential gradient at fractions of a cell. The
// produced path is in target→start order; callers reverse it before use.
type GradientExtractor struct {
	width    int
	height   int
	pathStep float64
}

// NewGradientExtractor - extractor for a width x height potential field
func NewGradientExtractor(width, height int) *GradientExtractor {
	return &GradientExtractor{width: width, height: height, pathStep: 0.5}
}

// Extract descends the potential from (targetX, targetY) to the vicinity of
// (startX, startY). Fails when the descent stalls before reaching the start.
func (e *GradientExtractor) Extract(potential []float64, startX, startY, targetX, targetY float64) ([][2]float64, bool) {
	cx, cy := targetX, targetY
	limit := e.width * e.height * 4

	path := make([][2]float64, 0, 64)
	for i := 0; i < limit; i++ {
		path = append(path, [2]float64{cx, cy})

		if math.Abs(cx-startX) < 1 && math.Abs(cy-startY) < 1 {
			path = append(path, [2]float64{startX, startY})
			return path, true
		}

		x0 := int(cx)
		y0 := int(cy)
		if x0 < 0 || y0 < 0 || x0 >= e.width || y0 >= e.height {
			return nil, false
		}
		fx := cx - float64(x0)
		fy := cy - float64(y0)

		// Bilinear interpolation of the gradient across the four corner cells.
		g00x, g00y := e.gradientAt(potential, x0, y0)
		g10x, g10y := e.gradientAt(potential, x0+1, y0)
		g01x, g01y := e.gradientAt(potential, x0, y0+1)
		g11x, g11y := e.gradientAt(potential, x0+1, y0+1)

		gx := (1-fy)*((1-fx)*g00x+fx*g10x) + fy*((1-fx)*g01x+fx*g11x)
		gy := (1-fy)*((1-fx)*g00y+fx*g10y) + fy*((1-fx)*g01y+fx*g11y)

		norm := math.Hypot(gx, gy)
		if norm < 1e-12 {
			return nil, false // no decreasing neighbor, descent stalled
		}

		cx -= e.pathStep * gx / norm
		cy -= e.pathStep * gy / norm
	}

	return nil, false
}

// gradientAt - potential gradient at one cell.
//
// One-sided differences are used next to unreachable (PotentialHigh) cells so
// the descent is steered back toward finalized potential.
func (e *GradientExtractor) gradientAt(potential []float64, x, y int) (float64, float64) {
	cv := e.potAt(potential, x, y)

	left := e.potAt(potential, x-1, y)
	right := e.potAt(potential, x+1, y)
	down := e.potAt(potential, x, y-1)
	up := e.potAt(potential, x, y+1)

	return difference(left, cv, right), difference(down, cv, up)
}

func (e *GradientExtractor) potAt(potential []float64, x, y int) float64 {
	if x < 0 || y < 0 || x >= e.width || y >= e.height {
		return PotentialHigh
	}
	return potential[y*e.width+x]
}

func difference(lo, mid, hi float64) float64 {
	switch {
	case lo < PotentialHigh && hi < PotentialHigh:
		return (hi - lo) / 2
	case hi < PotentialHigh:
		return hi - mid
	case lo < PotentialHigh:
		return mid - lo
	default:
		return 0
	}
}
