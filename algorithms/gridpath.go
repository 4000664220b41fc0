package algorithms

import (
	"math"

	"crowdnav-backend/models"
)

// GridExtractor - discrete steepest-descent fallback for path extraction.
//
// Less smooth than the gradient descent, but strictly deterministic and
// always terminating on a finite potential field. Used only when the
// gradient extractor fails. Output is in target→start order.
type GridExtractor struct {
	width  int
	height int
}

// NewGridExtractor - extractor for a width x height potential field
func NewGridExtractor(width, height int) *GridExtractor {
	return &GridExtractor{width: width, height: height}
}

// Extract walks the 4-neighborhood from the target cell to the start cell,
// stepping to the lowest-potential neighbor each time.
func (e *GridExtractor) Extract(potential []float64, startX, startY, targetX, targetY float64) ([][2]float64, bool) {
	cx := int(targetX + models.ConvertOffset)
	cy := int(targetY + models.ConvertOffset)
	sx := int(startX + models.ConvertOffset)
	sy := int(startY + models.ConvertOffset)
	if e.index(cx, cy) < 0 || e.index(sx, sy) < 0 {
		return nil, false
	}

	path := make([][2]float64, 0, 64)
	for i := 0; i < e.width*e.height; i++ {
		path = append(path, [2]float64{float64(cx), float64(cy)})

		if cx == sx && cy == sy {
			return path, true
		}

		bestX, bestY := cx, cy
		best := math.Inf(1)
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := cx+d[0], cy+d[1]
			n := e.index(nx, ny)
			if n < 0 {
				continue
			}
			if potential[n] < best {
				best = potential[n]
				bestX, bestY = nx, ny
			}
		}

		if best >= potential[e.index(cx, cy)] {
			return nil, false // no descent available
		}
		cx, cy = bestX, bestY
	}

	return nil, false
}

func (e *GridExtractor) index(x, y int) int {
	if x < 0 || y < 0 || x >= e.width || y >= e.height {
		return -1
	}
	return y*e.width + x
}
