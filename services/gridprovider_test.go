package services

import (
	"os"
	"path/filepath"
	"testing"

	"crowdnav-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMapFile(t *testing.T) {
	yaml := `
frame: warehouse
width: 40
height: 30
resolution: 0.25
origin:
  x: -1.0
  y: -1.0
obstacles:
  - x: 2.0
    y: 2.0
    radius: 0.6
`
	path := filepath.Join(t.TempDir(), "map.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	p := NewGridProvider()
	require.NoError(t, p.LoadMapFile(path))

	assert.Equal(t, "warehouse", p.GlobalFrame())

	snap := p.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 40, snap.Width)
	assert.Equal(t, 30, snap.Height)
	assert.Equal(t, -1.0, snap.OriginX)
	require.Len(t, snap.Obstacles, 1)

	// the obstacle center cell is lethal
	err := p.WithGrid(func(g *models.CostGrid) error {
		cx, cy, ok := g.WorldToCell(2.0, 2.0)
		require.True(t, ok)
		assert.Equal(t, models.CostLethal, g.Cost(int(cx+models.ConvertOffset), int(cy+models.ConvertOffset)))
		return nil
	})
	require.NoError(t, err)
}

func TestLoadMapFileInvalid(t *testing.T) {
	p := NewGridProvider()

	assert.Error(t, p.LoadMapFile(filepath.Join(t.TempDir(), "missing.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("width: -3\nheight: 5\nresolution: 0.5"), 0o644))
	assert.Error(t, p.LoadMapFile(path))
}

func TestGenerateMapKeepsBoundaryClear(t *testing.T) {
	p := NewGridProvider()
	grid := p.GenerateMap(50, 50, 0.2, "map", 5)

	assert.Len(t, grid.Obstacles, 5)
	for _, ob := range grid.Obstacles {
		assert.Greater(t, ob.Position.X, 0.0)
		assert.Less(t, ob.Position.X, 10.0)
	}
}

func TestReleaseAndActivate(t *testing.T) {
	p := openGridProvider()

	p.Release()
	err := p.WithGrid(func(*models.CostGrid) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "released")

	p.Activate()
	assert.NoError(t, p.WithGrid(func(*models.CostGrid) error { return nil }))
}

func TestWithGridWithoutGrid(t *testing.T) {
	p := NewGridProvider()
	err := p.WithGrid(func(*models.CostGrid) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active grid")
}

func TestClearRestoresStaticObstacles(t *testing.T) {
	p := openGridProvider()

	// transient cost data, not backed by an obstacle
	_ = p.WithGrid(func(g *models.CostGrid) error {
		g.SetCost(4, 4, models.CostLethal)
		return nil
	})

	require.NoError(t, p.Clear())

	_ = p.WithGrid(func(g *models.CostGrid) error {
		assert.Equal(t, models.CostFree, g.Cost(4, 4))
		return nil
	})
}
