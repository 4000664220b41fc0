package algorithms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solvedField - potential field over an open grid, propagated far enough to
// finalize the target cell
func solvedField(t *testing.T, w, h int, sx, sy, tx, ty float64) []float64 {
	t.Helper()
	solver := NewPotentialSolver(w, h, true)
	potential := make([]float64, w*h)
	require.True(t, solver.Solve(make([]uint8, w*h), sx, sy, tx, ty, w*h*2, potential))
	return potential
}

func TestGradientDescendsToStart(t *testing.T) {
	const w, h = 12, 12
	potential := solvedField(t, w, h, 2, 2, 9, 9)

	extractor := NewGradientExtractor(w, h)
	path, ok := extractor.Extract(potential, 2, 2, 9, 9)
	require.True(t, ok)
	require.NotEmpty(t, path)

	// target→start order, ending exactly on the start coordinates
	assert.Equal(t, [2]float64{9, 9}, path[0])
	assert.Equal(t, [2]float64{2, 2}, path[len(path)-1])

	for _, p := range path {
		assert.GreaterOrEqual(t, p[0], 0.0)
		assert.GreaterOrEqual(t, p[1], 0.0)
		assert.Less(t, p[0], float64(w))
		assert.Less(t, p[1], float64(h))
	}
}

func TestGradientStallsOnFlatField(t *testing.T) {
	const w, h = 8, 8
	potential := make([]float64, w*h) // uniformly zero, no gradient anywhere

	extractor := NewGradientExtractor(w, h)
	_, ok := extractor.Extract(potential, 1, 1, 6, 6)
	assert.False(t, ok)
}

func TestGridWalkDescendsToStart(t *testing.T) {
	const w, h = 12, 12
	potential := solvedField(t, w, h, 2, 2, 9, 9)

	extractor := NewGridExtractor(w, h)
	path, ok := extractor.Extract(potential, 2, 2, 9, 9)
	require.True(t, ok)

	assert.Equal(t, [2]float64{9, 9}, path[0])
	assert.Equal(t, [2]float64{2, 2}, path[len(path)-1])

	// every step moves to a strictly lower potential
	for i := 1; i < len(path); i++ {
		prev := int(path[i-1][1])*w + int(path[i-1][0])
		cur := int(path[i][1])*w + int(path[i][0])
		assert.Less(t, potential[cur], potential[prev])
	}
}

func TestGridWalkFailsWithoutDescent(t *testing.T) {
	const w, h = 8, 8
	potential := make([]float64, w*h)

	extractor := NewGridExtractor(w, h)
	_, ok := extractor.Extract(potential, 1, 1, 6, 6)
	assert.False(t, ok)
}
