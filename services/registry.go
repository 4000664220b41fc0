package services

import (
	"fmt"
	"sync"

	"crowdnav-backend/models"
)

// Planner computes one plan per agent over the provider's cost grid.
//
// A returned error means the whole request was malformed; an empty batch
// with a nil error means planning failed for every agent individually.
type Planner interface {
	// MakePlans plans straight start→goal paths for every agent.
	MakePlans(starts, goals models.PoseMap) (models.PlanBatch, error)

	// MakePlansThrough plans start→sub-goals→goal paths for every agent.
	MakePlansThrough(starts models.PoseMap, subGoals models.PoseSequenceMap, goals models.PoseMap) (models.PlanBatch, error)
}

// Controller executes plans: it is told each agent's current target pose and
// reports which agents reached theirs, plus current position estimates.
type Controller interface {
	SetCurrentTargets(targets models.PoseMap) error
	ReachedAgents() ([]models.AgentID, error)
	AgentPositions() (models.PoseMap, error)
}

// PlannerFactory builds a planner bound to a grid provider.
type PlannerFactory func(grid *GridProvider) Planner

// ControllerFactory builds a controller bound to a grid provider.
type ControllerFactory func(grid *GridProvider) Controller

// PlannerRegistry maps planner names to factories. Loading by unknown name
// returns an error instead of panicking, so a failed runtime swap can keep
// the previously loaded planner.
type PlannerRegistry struct {
	mu        sync.RWMutex
	factories map[string]PlannerFactory
}

// NewPlannerRegistry creates an empty planner registry.
func NewPlannerRegistry() *PlannerRegistry {
	return &PlannerRegistry{factories: make(map[string]PlannerFactory)}
}

// Register adds a planner factory under a name.
func (r *PlannerRegistry) Register(name string, f PlannerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create instantiates the named planner.
func (r *PlannerRegistry) Create(name string, grid *GridProvider) (Planner, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown planner %q", name)
	}
	return f(grid), nil
}

// Names lists the registered planner names.
func (r *PlannerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// ControllerRegistry maps controller names to factories.
type ControllerRegistry struct {
	mu        sync.RWMutex
	factories map[string]ControllerFactory
}

// NewControllerRegistry creates an empty controller registry.
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{factories: make(map[string]ControllerFactory)}
}

// Register adds a controller factory under a name.
func (r *ControllerRegistry) Register(name string, f ControllerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Create instantiates the named controller.
func (r *ControllerRegistry) Create(name string, grid *GridProvider) (Controller, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown controller %q", name)
	}
	return f(grid), nil
}

// Names lists the registered controller names.
func (r *ControllerRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
