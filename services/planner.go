package services

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"crowdnav-backend/algorithms"
	"crowdnav-backend/models"
)

// MultiGoalPlanner - potential-field planner that stitches one path per
// agent through an ordered waypoint chain [start, sub-goals..., goal].
type MultiGoalPlanner struct {
	mu   sync.Mutex
	grid *GridProvider
}

// NewMultiGoalPlanner - planner reading grids from the provider
func NewMultiGoalPlanner(grid *GridProvider) *MultiGoalPlanner {
	return &MultiGoalPlanner{grid: grid}
}

// MakePlans - plan straight start→goal paths for every agent
func (p *MultiGoalPlanner) MakePlans(starts, goals models.PoseMap) (models.PlanBatch, error) {
	return p.MakePlansThrough(starts, nil, goals)
}

// MakePlansThrough - plan start→sub-goals→goal paths for every agent.
//
// One agent's failure (off-grid waypoint, blocked segment, extraction
// failure) only drops that agent; a broken link anywhere in an agent's
// waypoint chain invalidates that agent's whole path, never a part of it.
func (p *MultiGoalPlanner) MakePlansThrough(starts models.PoseMap, subGoals models.PoseSequenceMap, goals models.PoseMap) (models.PlanBatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(starts) != len(goals) {
		return nil, fmt.Errorf("number of start and goal poses must be the same")
	}
	for id := range starts {
		if _, ok := goals[id]; !ok {
			return nil, fmt.Errorf("inconsistent agent ids in starts and goals")
		}
	}
	for id := range subGoals {
		if _, ok := starts[id]; !ok {
			log.Printf("⚠️ sub-goals for unknown agent %d will be discarded", id)
		}
	}

	batch := make(models.PlanBatch)

	// The whole pass reads the grid under its own lock, so a map update can
	// never be observed mid-solve.
	err := p.grid.WithGrid(func(grid *models.CostGrid) error {
		nx, ny := grid.Width, grid.Height

		// Scratch copy of the costs with the boundary outlined as lethal,
		// once per pass, shared by every segment solve.
		costs := make([]uint8, len(grid.Cells))
		copy(costs, grid.Cells)
		outline(costs, nx, ny, models.CostLethal)

		potential := make([]float64, nx*ny)
		solver := algorithms.NewPotentialSolver(nx, ny, true)
		gradient := algorithms.NewGradientExtractor(nx, ny)
		fallback := algorithms.NewGridExtractor(nx, ny)

		// Deterministic agent order keeps planning passes reproducible.
		ids := make([]models.AgentID, 0, len(starts))
		for id := range starts {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			start := starts[id]
			goal := goals[id]

			if !p.framesUsable(grid.Frame, id, start, goal, subGoals[id]) {
				continue
			}

			waypoints, ok := p.waypointCells(grid, id, start, subGoals[id], goal)
			if !ok || len(waypoints) < 2 {
				continue
			}

			var combined models.Plan
			complete := true
			for i := 0; i+1 < len(waypoints); i++ {
				from, to := waypoints[i], waypoints[i+1]
				if !solver.Solve(costs, from[0], from[1], to[0], to[1], nx*ny*2, potential) {
					log.Printf("❌ failed to plan segment %d for agent %d", i, id)
					complete = false
					break
				}
				segment, ok := p.extractSegment(grid, potential, gradient, fallback, from, to)
				if !ok {
					log.Printf("❌ failed to get a path from potential for agent %d although a legal potential was found", id)
					complete = false
					break
				}
				combined = append(combined, segment...)
			}
			if !complete || len(combined) == 0 {
				continue
			}

			algorithms.ApplyOrientations(start, combined)

			goalCopy := goal
			goalCopy.Stamp = time.Now()
			combined = append(combined, goalCopy)

			batch[id] = []models.Plan{combined}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// framesUsable - all of one agent's waypoints must already be in the
// planner's global frame
func (p *MultiGoalPlanner) framesUsable(frame string, id models.AgentID, start, goal models.Pose, subGoals models.PoseSequence) bool {
	if start.Frame != frame {
		log.Printf("❌ start pose of agent %d must be in the %s frame, it is in %s", id, frame, start.Frame)
		return false
	}
	if goal.Frame != frame {
		log.Printf("❌ goal pose of agent %d must be in the %s frame, it is in %s", id, frame, goal.Frame)
		return false
	}
	for _, sg := range subGoals {
		if sg.Frame != frame {
			log.Printf("❌ sub-goal pose of agent %d must be in the %s frame, it is in %s", id, frame, sg.Frame)
			return false
		}
	}
	return true
}

// waypointCells - convert the agent's waypoint chain to cell coordinates;
// any off-grid waypoint skips the whole agent for this pass
func (p *MultiGoalPlanner) waypointCells(grid *models.CostGrid, id models.AgentID, start models.Pose, subGoals models.PoseSequence, goal models.Pose) ([][2]float64, bool) {
	var cells [][2]float64

	cx, cy, ok := grid.WorldToCell(start.Position.X, start.Position.Y)
	if !ok {
		log.Printf("⚠️ start position of agent %d is off the cost grid", id)
		return nil, false
	}
	cells = append(cells, [2]float64{cx, cy})

	for _, sg := range subGoals {
		cx, cy, ok = grid.WorldToCell(sg.Position.X, sg.Position.Y)
		if !ok {
			log.Printf("⚠️ sub-goal position of agent %d is off the cost grid", id)
			return nil, false
		}
		cells = append(cells, [2]float64{cx, cy})
	}

	cx, cy, ok = grid.WorldToCell(goal.Position.X, goal.Position.Y)
	if !ok {
		log.Printf("⚠️ goal position of agent %d is off the cost grid", id)
		return nil, false
	}
	cells = append(cells, [2]float64{cx, cy})

	return cells, true
}

// extractSegment - trace one segment out of the potential field and convert
// it to world poses in start→target order
func (p *MultiGoalPlanner) extractSegment(grid *models.CostGrid, potential []float64, gradient *algorithms.GradientExtractor, fallback *algorithms.GridExtractor, from, to [2]float64) (models.PoseSequence, bool) {
	cells, ok := gradient.Extract(potential, from[0], from[1], to[0], to[1])
	if !ok {
		log.Printf("⚠️ no path from potential using gradient descent, trying grid walk")
		cells, ok = fallback.Extract(potential, from[0], from[1], to[0], to[1])
		if !ok {
			return nil, false
		}
	}

	stamp := time.Now()
	segment := make(models.PoseSequence, 0, len(cells))
	// The extractors emit target→start order; reverse while converting.
	for i := len(cells) - 1; i >= 0; i-- {
		wx, wy := grid.CellToWorld(cells[i][0], cells[i][1])
		segment = append(segment, models.Pose{
			Position:    models.Position{X: wx, Y: wy},
			Orientation: models.IdentityQuaternion(),
			Frame:       grid.Frame,
			Stamp:       stamp,
		})
	}
	return segment, true
}

// PlanLength - world length of a plan in meters, for the published batch
func PlanLength(plan models.Plan) float64 {
	total := 0.0
	for i := 1; i < len(plan); i++ {
		total += math.Hypot(
			plan[i].Position.X-plan[i-1].Position.X,
			plan[i].Position.Y-plan[i-1].Position.Y,
		)
	}
	return total
}

// outline - mark the grid border as lethal so the wavefront never leaves it
func outline(costs []uint8, nx, ny int, value uint8) {
	for x := 0; x < nx; x++ {
		costs[x] = value
		costs[(ny-1)*nx+x] = value
	}
	for y := 0; y < ny; y++ {
		costs[y*nx] = value
		costs[y*nx+nx-1] = value
	}
}
