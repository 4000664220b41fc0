package services

import (
	"log"
	"math"
	"sync"
	"time"

	"crowdnav-backend/models"
)

// Simulated controller tuning
const (
	simSpeed            = 1.5  // m/s
	simReachedTolerance = 0.25 // m
)

// PositionSeeder - optionally implemented by controllers that can be told
// the agents' initial positions when a request is accepted
type PositionSeeder interface {
	SeedPositions(positions models.PoseMap)
}

// simAgent - one simulated agent's motion state
type simAgent struct {
	pose   models.Pose
	target *models.Pose
}

// SimController - controller that moves agents straight toward their current
// target pose at a fixed speed. It is the default runtime controller and the
// workhorse of the end-to-end tests.
type SimController struct {
	mu      sync.RWMutex
	grid    *GridProvider
	agents  map[models.AgentID]*simAgent
	running bool
	stop    chan struct{}
}

// NewSimController - simulated controller over the provider's grid frame
func NewSimController(grid *GridProvider) *SimController {
	return &SimController{
		grid:   grid,
		agents: make(map[models.AgentID]*simAgent),
		stop:   make(chan struct{}),
	}
}

// SeedPositions - place agents at their request start poses
func (s *SimController) SeedPositions(positions models.PoseMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, pose := range positions {
		if agent, ok := s.agents[id]; ok {
			agent.pose = pose
			agent.target = nil
			continue
		}
		s.agents[id] = &simAgent{pose: pose}
	}
}

// SetCurrentTargets - update each agent's current target pose
func (s *SimController) SetCurrentTargets(targets models.PoseMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, target := range targets {
		t := target
		agent, ok := s.agents[id]
		if !ok {
			// Unknown agent, spawn it at its target.
			agent = &simAgent{pose: t}
			s.agents[id] = agent
		}
		agent.target = &t
	}
	return nil
}

// ReachedAgents - ids of agents within tolerance of their current target
func (s *SimController) ReachedAgents() ([]models.AgentID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reached []models.AgentID
	for id, agent := range s.agents {
		if agent.target == nil {
			continue
		}
		d := math.Hypot(
			agent.target.Position.X-agent.pose.Position.X,
			agent.target.Position.Y-agent.pose.Position.Y,
		)
		if d <= simReachedTolerance {
			reached = append(reached, id)
		}
	}
	return reached, nil
}

// AgentPositions - current pose estimate of every known agent
func (s *SimController) AgentPositions() (models.PoseMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make(models.PoseMap, len(s.agents))
	for id, agent := range s.agents {
		positions[id] = agent.pose
	}
	return positions, nil
}

// Step - advance every agent toward its target by dt seconds of travel
func (s *SimController) Step(dt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, agent := range s.agents {
		if agent.target == nil {
			continue
		}
		dx := agent.target.Position.X - agent.pose.Position.X
		dy := agent.target.Position.Y - agent.pose.Position.Y
		dist := math.Hypot(dx, dy)
		if dist < 1e-9 {
			continue
		}

		move := simSpeed * dt
		if move > dist {
			move = dist
		}
		agent.pose.Position.X += dx / dist * move
		agent.pose.Position.Y += dy / dist * move
		agent.pose.Orientation = models.QuaternionFromYaw(math.Atan2(dy, dx))
		agent.pose.Stamp = time.Now()
	}
}

// Start - run the motion simulation at 10Hz until Stop
func (s *SimController) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	log.Println("🚶 simulated controller started")
	go s.run()
}

// Stop - halt the motion simulation
func (s *SimController) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	log.Println("🛑 simulated controller stopped")
}

func (s *SimController) run() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Step(0.1)
		}
	}
}
