package models

import "time"

// Cost values, matching the usual occupancy-grid convention
const (
	CostFree      uint8 = 0
	CostInscribed uint8 = 253
	CostLethal    uint8 = 254
	CostUnknown   uint8 = 255
)

// Cell-center offset used when converting between world and cell coordinates
const ConvertOffset = 0.5

// Obstacle - a circular obstacle rasterized into the cost grid
type Obstacle struct {
	ID       string   `json:"id"`
	Position Position `json:"position"`
	Radius   float64  `json:"radius"`
}

// CostGrid - a 2D cost field with world anchoring.
//
// Cells are row-major, Width*Height entries. The grid is owned by the grid
// provider; the planner only borrows it for the duration of one pass.
type CostGrid struct {
	ID         string     `json:"id"`
	Width      int        `json:"width"`  // cells
	Height     int        `json:"height"` // cells
	Resolution float64    `json:"resolution"` // meters per cell
	OriginX    float64    `json:"origin_x"`
	OriginY    float64    `json:"origin_y"`
	Frame      string     `json:"frame"`
	Cells      []uint8    `json:"-"`
	Obstacles  []Obstacle `json:"obstacles"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Index - row-major cell index
func (g *CostGrid) Index(x, y int) int {
	return y*g.Width + x
}

// Cost - cost at a cell, CostLethal when out of bounds
func (g *CostGrid) Cost(x, y int) uint8 {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return CostLethal
	}
	return g.Cells[g.Index(x, y)]
}

// SetCost - write one cell, ignoring out-of-bounds writes
func (g *CostGrid) SetCost(x, y int, c uint8) {
	if x < 0 || y < 0 || x >= g.Width || y >= g.Height {
		return
	}
	g.Cells[g.Index(x, y)] = c
}

// WorldToCell - world coordinates to continuous cell coordinates.
// Returns false when the point lies off the grid.
func (g *CostGrid) WorldToCell(wx, wy float64) (float64, float64, bool) {
	if wx < g.OriginX || wy < g.OriginY {
		return 0, 0, false
	}
	cx := (wx-g.OriginX)/g.Resolution - ConvertOffset
	cy := (wy-g.OriginY)/g.Resolution - ConvertOffset
	if cx < float64(g.Width) && cy < float64(g.Height) {
		return cx, cy, true
	}
	return 0, 0, false
}

// CellToWorld - continuous cell coordinates to world coordinates
func (g *CostGrid) CellToWorld(cx, cy float64) (float64, float64) {
	wx := g.OriginX + (cx+ConvertOffset)*g.Resolution
	wy := g.OriginY + (cy+ConvertOffset)*g.Resolution
	return wx, wy
}

// MapFile - on-disk static map description (YAML)
type MapFile struct {
	Frame      string  `yaml:"frame"`
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Resolution float64 `yaml:"resolution"`
	Origin     struct {
		X float64 `yaml:"x"`
		Y float64 `yaml:"y"`
	} `yaml:"origin"`
	Obstacles []struct {
		X      float64 `yaml:"x"`
		Y      float64 `yaml:"y"`
		Radius float64 `yaml:"radius"`
	} `yaml:"obstacles"`
}
