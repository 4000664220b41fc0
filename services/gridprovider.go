package services

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"crowdnav-backend/models"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Safety margin rasterized around obstacles (meters)
const obstacleMargin = 0.3

// GridProvider owns the cost grid and its lock.
//
// The planner's solve phase and the execution feedback phase both read the
// grid through WithGrid, which holds the grid's own lock so a map swap can
// never be observed mid-read.
type GridProvider struct {
	mu       sync.Mutex
	grid     *models.CostGrid
	released bool
	rng      *rand.Rand
}

// NewGridProvider creates a provider with no active grid
func NewGridProvider() *GridProvider {
	return &GridProvider{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateMap - build and activate a random map with circular obstacles,
// keeping a boundary margin free the way the old arena generator did
func (p *GridProvider) GenerateMap(width, height int, resolution float64, frame string, obstacleCount int) *models.CostGrid {
	grid := &models.CostGrid{
		ID:         uuid.New().String(),
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Frame:      frame,
		Cells:      make([]uint8, width*height),
		CreatedAt:  time.Now(),
	}

	worldW := float64(width) * resolution
	worldH := float64(height) * resolution
	margin := 0.1
	for i := 0; i < obstacleCount; i++ {
		grid.Obstacles = append(grid.Obstacles, models.Obstacle{
			ID: fmt.Sprintf("obstacle-%d", i+1),
			Position: models.Position{
				X: worldW * (margin + p.rng.Float64()*(1-2*margin)),
				Y: worldH * (margin + p.rng.Float64()*(1-2*margin)),
			},
			Radius: 0.5 + p.rng.Float64(),
		})
	}
	rasterize(grid)

	p.mu.Lock()
	p.grid = grid
	p.released = false
	p.mu.Unlock()

	log.Printf("🗺️ generated map %s: %dx%d cells, %d obstacles", grid.ID, width, height, obstacleCount)
	return grid
}

// LoadMapFile - build and activate a grid from a YAML map file
func (p *GridProvider) LoadMapFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read map file: %w", err)
	}

	var mf models.MapFile
	if err := yaml.Unmarshal(raw, &mf); err != nil {
		return fmt.Errorf("parse map file: %w", err)
	}
	if mf.Width <= 0 || mf.Height <= 0 || mf.Resolution <= 0 {
		return fmt.Errorf("map file %s: width, height and resolution must be positive", path)
	}

	frame := mf.Frame
	if frame == "" {
		frame = "map"
	}
	grid := &models.CostGrid{
		ID:         uuid.New().String(),
		Width:      mf.Width,
		Height:     mf.Height,
		Resolution: mf.Resolution,
		OriginX:    mf.Origin.X,
		OriginY:    mf.Origin.Y,
		Frame:      frame,
		Cells:      make([]uint8, mf.Width*mf.Height),
		CreatedAt:  time.Now(),
	}
	for i, ob := range mf.Obstacles {
		grid.Obstacles = append(grid.Obstacles, models.Obstacle{
			ID:       fmt.Sprintf("obstacle-%d", i+1),
			Position: models.Position{X: ob.X, Y: ob.Y},
			Radius:   ob.Radius,
		})
	}
	rasterize(grid)

	p.mu.Lock()
	p.grid = grid
	p.released = false
	p.mu.Unlock()

	log.Printf("🗺️ loaded map %s from %s (%dx%d cells)", grid.ID, path, mf.Width, mf.Height)
	return nil
}

// SetGrid - activate a prebuilt grid (tests, embedded setups)
func (p *GridProvider) SetGrid(grid *models.CostGrid) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grid = grid
	p.released = false
}

// WithGrid - run fn with the grid lock held for the duration of the read
func (p *GridProvider) WithGrid(fn func(*models.CostGrid) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grid == nil {
		return fmt.Errorf("no active grid")
	}
	if p.released {
		return fmt.Errorf("grid resources are released")
	}
	return fn(p.grid)
}

// GlobalFrame - frame id all planning happens in; empty when no grid is up
func (p *GridProvider) GlobalFrame() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grid == nil {
		return ""
	}
	return p.grid.Frame
}

// Snapshot - current grid metadata for the API surface (cells excluded)
func (p *GridProvider) Snapshot() *models.CostGrid {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grid == nil {
		return nil
	}
	meta := *p.grid
	meta.Cells = nil
	return &meta
}

// Release - drop grid access while no request is active
func (p *GridProvider) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// Activate - undo Release when a request arrives
func (p *GridProvider) Activate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = false
}

// Clear - rebuild cell costs from the grid's static obstacle list, dropping
// any transient cost data
func (p *GridProvider) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.grid == nil {
		return fmt.Errorf("no active grid")
	}
	for i := range p.grid.Cells {
		p.grid.Cells[i] = models.CostFree
	}
	rasterize(p.grid)
	return nil
}

// rasterize - stamp obstacles into the cells: lethal inside the radius,
// raised cost inside the safety margin
func rasterize(g *models.CostGrid) {
	for _, ob := range g.Obstacles {
		stampCircle(g, ob.Position.X, ob.Position.Y, ob.Radius, models.CostLethal)
		stampCircle(g, ob.Position.X, ob.Position.Y, ob.Radius+obstacleMargin, 100)
	}
}

func stampCircle(g *models.CostGrid, wx, wy, radius float64, cost uint8) {
	minX := int(math.Floor((wx - radius - g.OriginX) / g.Resolution))
	maxX := int(math.Ceil((wx + radius - g.OriginX) / g.Resolution))
	minY := int(math.Floor((wy - radius - g.OriginY) / g.Resolution))
	maxY := int(math.Ceil((wy + radius - g.OriginY) / g.Resolution))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			cx := g.OriginX + (float64(x)+0.5)*g.Resolution
			cy := g.OriginY + (float64(y)+0.5)*g.Resolution
			if math.Hypot(cx-wx, cy-wy) > radius {
				continue
			}
			if g.Cost(x, y) < cost {
				g.SetCost(x, y, cost)
			}
		}
	}
}
