package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"crowdnav-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptController - deterministic controller stub for coordinator tests
type scriptController struct {
	mu           sync.Mutex
	positions    models.PoseMap
	targets      models.PoseMap
	reachAll     bool
	targetsErr   error
	reachedErr   error
	positionsErr error
}

func newScriptController() *scriptController {
	return &scriptController{
		positions: make(models.PoseMap),
		targets:   make(models.PoseMap),
	}
}

func (s *scriptController) SeedPositions(positions models.PoseMap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range positions {
		s.positions[id] = p
	}
}

func (s *scriptController) SetCurrentTargets(targets models.PoseMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.targetsErr != nil {
		return s.targetsErr
	}
	for id, p := range targets {
		s.targets[id] = p
	}
	return nil
}

func (s *scriptController) ReachedAgents() ([]models.AgentID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reachedErr != nil {
		return nil, s.reachedErr
	}
	if !s.reachAll {
		return nil, nil
	}
	reached := make([]models.AgentID, 0, len(s.targets))
	for id := range s.targets {
		reached = append(reached, id)
	}
	return reached, nil
}

func (s *scriptController) AgentPositions() (models.PoseMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.positionsErr != nil {
		return nil, s.positionsErr
	}
	return s.positions.Copy(), nil
}

func (s *scriptController) setReached(reached bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reachAll = reached
}

func (s *scriptController) targetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.targets)
}

// msgSink - collects broadcast messages for assertions
type msgSink struct {
	mu   sync.Mutex
	msgs []models.WebSocketMessage
}

func (s *msgSink) add(msg models.WebSocketMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *msgSink) byType(msgType string) []models.WebSocketMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WebSocketMessage
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// newTestCoordinator wires a coordinator over an open grid with the real
// planner and a scripted controller. Only the planning worker runs; ticks
// are driven manually.
func newTestCoordinator(t *testing.T) (*Coordinator, *scriptController, *msgSink) {
	t.Helper()
	return newTestCoordinatorWith(t, func(g *GridProvider) Planner {
		return NewMultiGoalPlanner(g)
	})
}

func newTestCoordinatorWith(t *testing.T, factory PlannerFactory) (*Coordinator, *scriptController, *msgSink) {
	t.Helper()

	grid := openGridProvider()
	tf := NewStaticTransformer()
	tf.RegisterFrame("map", FrameOffset{})

	planners := NewPlannerRegistry()
	planners.Register("multigoal", factory)

	script := newScriptController()
	controllers := NewControllerRegistry()
	controllers.Register("script", func(*GridProvider) Controller {
		return script
	})

	cfg := Config{
		PlannerFrequency:    0,
		ControllerFrequency: 20,
		PublishFeedback:     true,
		PlannerName:         "multigoal",
		ControllerName:      "script",
	}
	coord, err := NewCoordinator(cfg, grid, tf, planners, controllers)
	require.NoError(t, err)

	sink := &msgSink{}
	coord.SetBroadcast(sink.add)

	coord.startWorker()
	t.Cleanup(coord.Stop)

	return coord, script, sink
}

func singleAgentRequest() *models.GoalRequest {
	return &models.GoalRequest{
		Starts: []models.AgentPose{agentPose(1, 1.5, 1.5, "map")},
		Goals:  []models.AgentPose{agentPose(1, 8.5, 8.5, "map")},
	}
}

func TestCoordinatorSuccessfulRequest(t *testing.T) {
	coord, script, sink := newTestCoordinator(t)

	requestID, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)
	require.NotEmpty(t, requestID)

	require.Eventually(t, func() bool {
		return coord.State() == models.StateControlling
	}, time.Second, 5*time.Millisecond, "worker should deliver plans")

	// first tick consumes the fresh batch and pushes initial targets
	finished := coord.Tick()
	assert.False(t, finished)
	assert.Equal(t, 1, script.targetCount())
	assert.NotEmpty(t, sink.byType(models.MessageTypeFeedback))

	// once the agent reaches its target the queue drains and the request
	// succeeds
	script.setReached(true)
	finished = coord.Tick()
	assert.True(t, finished)

	status := coord.Status()
	assert.False(t, status.Active)
	assert.Equal(t, models.StateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultSucceeded, status.LastResult.Status)
	assert.Equal(t, requestID, status.LastResult.RequestID)

	assert.NotEmpty(t, sink.byType(models.MessageTypeCurrentGoals))
	assert.NotEmpty(t, sink.byType(models.MessageTypePlans))
	results := sink.byType(models.MessageTypeResult)
	require.Len(t, results, 1)
}

func TestCoordinatorRejectsInvalidRequest(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	_, err := coord.SubmitRequest(&models.GoalRequest{})
	require.Error(t, err)

	status := coord.Status()
	assert.False(t, status.Active)
	assert.Equal(t, models.StateIdle, status.State)
}

func TestCoordinatorAbortsWhenPlanningFails(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	// wall the goal cell in so no agent can be planned for
	_ = coord.grid.WithGrid(func(g *models.CostGrid) error {
		for _, d := range [][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}} {
			g.SetCost(8+d[0], 8+d[1], models.CostLethal)
		}
		return nil
	})

	_, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)

	// the worker gives up and falls back to IDLE with the request still open
	require.Eventually(t, func() bool {
		return coord.State() == models.StateIdle
	}, time.Second, 5*time.Millisecond)

	finished := coord.Tick()
	assert.True(t, finished)

	status := coord.Status()
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultAborted, status.LastResult.Status)
	assert.Contains(t, status.LastResult.Reason, "could not calculate plans")
}

func TestCoordinatorCancel(t *testing.T) {
	coord, _, sink := newTestCoordinator(t)

	requestID, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)

	require.True(t, coord.Cancel())
	assert.False(t, coord.Cancel(), "second cancel has nothing to preempt")

	status := coord.Status()
	assert.False(t, status.Active)
	assert.Equal(t, models.StateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultPreempted, status.LastResult.Status)
	assert.Equal(t, requestID, status.LastResult.RequestID)

	require.NotEmpty(t, sink.byType(models.MessageTypeResult))
}

func TestCoordinatorLastRequestWins(t *testing.T) {
	coord, _, sink := newTestCoordinator(t)

	first, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)
	second, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.Equal(t, second, coord.Status().RequestID)

	var preempted bool
	for _, msg := range sink.byType(models.MessageTypeResult) {
		if r, ok := msg.Data.(models.ResultData); ok && r.RequestID == first {
			preempted = r.Status == models.ResultPreempted
		}
	}
	assert.True(t, preempted, "the first request must be preempted")
}

func TestCoordinatorAbortsOnPositionFailure(t *testing.T) {
	coord, script, _ := newTestCoordinator(t)

	script.positionsErr = fmt.Errorf("odometry lost")

	_, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return coord.State() == models.StateControlling
	}, time.Second, 5*time.Millisecond)

	finished := coord.Tick()
	assert.True(t, finished)

	status := coord.Status()
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultAborted, status.LastResult.Status)
	assert.Contains(t, status.LastResult.Reason, "agent positions")
}

func TestCoordinatorAbortsOnReachedFailure(t *testing.T) {
	coord, script, _ := newTestCoordinator(t)

	script.reachedErr = fmt.Errorf("controller offline")

	_, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return coord.State() == models.StateControlling
	}, time.Second, 5*time.Millisecond)

	finished := coord.Tick()
	assert.True(t, finished)

	status := coord.Status()
	assert.False(t, status.Active)
	assert.Equal(t, models.StateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultAborted, status.LastResult.Status)
	assert.Equal(t, "controller failure", status.LastResult.Reason)

	// terminal, further ticks have nothing to drive
	assert.False(t, coord.Tick())
}

func TestCoordinatorAllAgentsReachSameTick(t *testing.T) {
	coord, script, sink := newTestCoordinator(t)

	requestID, err := coord.SubmitRequest(&models.GoalRequest{
		Starts: []models.AgentPose{agentPose(1, 1.5, 1.5, "map"), agentPose(2, 2.5, 1.5, "map")},
		Goals:  []models.AgentPose{agentPose(1, 8.5, 8.5, "map"), agentPose(2, 7.5, 8.5, "map")},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return coord.State() == models.StateControlling
	}, time.Second, 5*time.Millisecond)

	finished := coord.Tick()
	require.False(t, finished)
	assert.Equal(t, 2, script.targetCount())

	// both agents reach their goals on the same tick
	script.setReached(true)
	assert.True(t, coord.Tick())

	status := coord.Status()
	assert.Equal(t, models.StateIdle, status.State)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, models.ResultSucceeded, status.LastResult.Status)
	assert.Equal(t, requestID, status.LastResult.RequestID)

	// success is delivered exactly once
	results := sink.byType(models.MessageTypeResult)
	require.Len(t, results, 1)
	assert.False(t, coord.Tick())
	assert.Len(t, sink.byType(models.MessageTypeResult), 1)
}

// gatePlanner - planner stub whose passes block until the gate opens
type gatePlanner struct {
	inner Planner
	gate  chan struct{}
}

func (g *gatePlanner) MakePlans(starts, goals models.PoseMap) (models.PlanBatch, error) {
	<-g.gate
	return g.inner.MakePlans(starts, goals)
}

func (g *gatePlanner) MakePlansThrough(starts models.PoseMap, subGoals models.PoseSequenceMap, goals models.PoseMap) (models.PlanBatch, error) {
	<-g.gate
	return g.inner.MakePlansThrough(starts, subGoals, goals)
}

func TestCoordinatorDiscardsPlansOfReplacedRequest(t *testing.T) {
	gate := make(chan struct{})
	coord, _, sink := newTestCoordinatorWith(t, func(g *GridProvider) Planner {
		return &gatePlanner{inner: NewMultiGoalPlanner(g), gate: gate}
	})

	// the worker may snapshot the first request and block mid-plan while the
	// second one replaces it
	first, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)
	second, err := coord.SubmitRequest(singleAgentRequest())
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	close(gate)

	require.Eventually(t, func() bool {
		return len(sink.byType(models.MessageTypePlans)) > 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.StateControlling, coord.State())

	// only the surviving request's plans may surface
	published := sink.byType(models.MessageTypePlans)
	for _, msg := range published {
		data, ok := msg.Data.(models.PlansData)
		require.True(t, ok)
		assert.Equal(t, second, data.RequestID)
	}
	assert.Equal(t, second, coord.Status().RequestID)
}

func TestCoordinatorSwapPlannerUnknownName(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	err := coord.SwapPlanner("does-not-exist")
	require.Error(t, err)

	// the previous planner keeps working
	_, err = coord.SubmitRequest(singleAgentRequest())
	assert.NoError(t, err)
}

func TestCoordinatorSetControllerFrequency(t *testing.T) {
	coord, _, _ := newTestCoordinator(t)

	assert.Error(t, coord.SetControllerFrequency(0))
	assert.Error(t, coord.SetControllerFrequency(-5))
	assert.NoError(t, coord.SetControllerFrequency(10))
	assert.Equal(t, 10.0, coord.Status().ControllerFrequency)
}
