package services

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"crowdnav-backend/models"

	"github.com/google/uuid"
)

// Config - runtime configuration of the coordinator
type Config struct {
	PlannerFrequency    float64 // Hz; <=0 means plan once per request
	ControllerFrequency float64 // Hz; execution tick rate
	PublishFeedback     bool
	ReleaseGridWhenIdle bool
	PlannerName         string
	ControllerName      string
}

// ConfigFromEnv - read configuration from the environment, with defaults
func ConfigFromEnv() Config {
	cfg := Config{
		PlannerFrequency:    0,
		ControllerFrequency: 20,
		PublishFeedback:     true,
		ReleaseGridWhenIdle: false,
		PlannerName:         "multigoal",
		ControllerName:      "sim",
	}

	if v := os.Getenv("PLANNER_FREQUENCY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PlannerFrequency = f
		}
	}
	if v := os.Getenv("CONTROLLER_FREQUENCY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.ControllerFrequency = f
		}
	}
	if v := os.Getenv("PUBLISH_FEEDBACK"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.PublishFeedback = b
		}
	}
	if v := os.Getenv("RELEASE_GRID_WHEN_IDLE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ReleaseGridWhenIdle = b
		}
	}
	if v := os.Getenv("PLANNER_NAME"); v != "" {
		cfg.PlannerName = v
	}
	if v := os.Getenv("CONTROLLER_NAME"); v != "" {
		cfg.ControllerName = v
	}

	return cfg
}

// Coordinator owns the IDLE/PLANNING/CONTROLLING lifecycle for a batch of
// agents: it accepts requests, hands snapshots to the background planning
// worker, swaps fresh plan batches into the controller slot and drives the
// per-tick execution cycle.
//
// All shared fields are guarded by mu; the plan hand-off between the worker
// and the execution side happens under this one lock.
type Coordinator struct {
	mu       sync.Mutex
	planCond *sync.Cond

	state models.CoordinatorState

	// planner hand-off
	runPlanner  bool
	waitForWake bool
	stopping    bool
	newPlans    bool

	plannerStarts   models.PoseMap
	plannerGoals    models.PoseMap
	plannerSubGoals models.PoseSequenceMap

	latestPlans     models.PlanBatch
	controllerPlans models.PlanBatch

	// active request
	active       bool
	requestID    string
	requestFrame string
	lastResult   *models.ResultData

	// configuration
	plannerFrequency    float64
	controllerFrequency float64
	publishFeedback     bool
	releaseGridWhenIdle bool
	cFreqChange         bool

	planner        Planner
	controller     Controller
	plannerName    string
	controllerName string

	grid        *GridProvider
	normalizer  *Normalizer
	tf          TransformService
	planners    *PlannerRegistry
	controllers *ControllerRegistry

	broadcast func(models.WebSocketMessage)

	wg sync.WaitGroup
}

// NewCoordinator - build a coordinator with its planner and controller
// instantiated from the registries
func NewCoordinator(cfg Config, grid *GridProvider, tf TransformService, planners *PlannerRegistry, controllers *ControllerRegistry) (*Coordinator, error) {
	planner, err := planners.Create(cfg.PlannerName, grid)
	if err != nil {
		return nil, fmt.Errorf("load planner: %w", err)
	}
	controller, err := controllers.Create(cfg.ControllerName, grid)
	if err != nil {
		return nil, fmt.Errorf("load controller: %w", err)
	}

	c := &Coordinator{
		state:               models.StateIdle,
		plannerFrequency:    cfg.PlannerFrequency,
		controllerFrequency: cfg.ControllerFrequency,
		publishFeedback:     cfg.PublishFeedback,
		releaseGridWhenIdle: cfg.ReleaseGridWhenIdle,
		planner:             planner,
		controller:          controller,
		plannerName:         cfg.PlannerName,
		controllerName:      cfg.ControllerName,
		grid:                grid,
		tf:                  tf,
		planners:            planners,
		controllers:         controllers,
	}
	c.planCond = sync.NewCond(&c.mu)
	c.normalizer = NewNormalizer(tf, grid.GlobalFrame)
	return c, nil
}

// SetBroadcast - sink for stream messages (current goals, plans, feedback,
// results); nil disables streaming
func (c *Coordinator) SetBroadcast(fn func(models.WebSocketMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcast = fn
}

// Start - launch the planning worker and the execution loop
func (c *Coordinator) Start() {
	c.startWorker()
	c.wg.Add(1)
	go c.controlLoop()
}

// Stop - interrupt both loops and join them
func (c *Coordinator) Stop() {
	c.mu.Lock()
	c.stopping = true
	c.mu.Unlock()
	c.planCond.Broadcast()
	c.wg.Wait()
}

// SubmitRequest validates and accepts a new planning request. A request
// arriving while another is active replaces it (last-request-wins).
func (c *Coordinator) SubmitRequest(req *models.GoalRequest) (string, error) {
	starts, subGoals, goals, err := c.normalizer.Normalize(req)
	if err != nil {
		log.Printf("❌ rejecting request: %v", err)
		return "", err
	}

	requestID := uuid.New().String()

	c.mu.Lock()
	if c.active {
		c.active = false
		replaced := models.ResultData{
			RequestID: c.requestID,
			Status:    models.ResultPreempted,
			Reason:    "replaced by a new request",
		}
		c.lastResult = &replaced
		c.mu.Unlock()
		c.publish(models.MessageTypeResult, replaced)
		LogResult(replaced.RequestID, replaced.Status, replaced.Reason)
		c.mu.Lock()
	}

	if c.releaseGridWhenIdle {
		c.grid.Activate()
	}

	c.plannerStarts = starts
	c.plannerGoals = goals
	c.plannerSubGoals = subGoals
	c.latestPlans = nil
	c.newPlans = false
	c.requestID = requestID
	c.requestFrame = c.grid.GlobalFrame()
	c.active = true
	c.setStateLocked(models.StatePlanning)
	c.runPlanner = true
	c.mu.Unlock()
	c.planCond.Signal()

	if seeder, ok := c.controller.(PositionSeeder); ok {
		seeder.SeedPositions(starts)
	}

	c.publishCurrentGoals(requestID, goals)
	LogRequestAccepted(requestID, len(starts))
	log.Printf("📨 accepted planning request %s for %d agents", requestID, len(starts))

	return requestID, nil
}

// Cancel preempts the active request, if any.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}
	c.active = false
	result := models.ResultData{
		RequestID: c.requestID,
		Status:    models.ResultPreempted,
		Reason:    "request cancelled",
	}
	c.lastResult = &result
	c.mu.Unlock()

	c.resetState()
	c.publish(models.MessageTypeResult, result)
	LogResult(result.RequestID, result.Status, result.Reason)
	log.Printf("✋ preempted request %s", result.RequestID)
	return true
}

// StatusData - coordinator status for the API surface
type StatusData struct {
	State               models.CoordinatorState `json:"state"`
	Active              bool                    `json:"active"`
	RequestID           string                  `json:"request_id,omitempty"`
	LastResult          *models.ResultData      `json:"last_result,omitempty"`
	Planner             string                  `json:"planner"`
	Controller          string                  `json:"controller"`
	PlannerFrequency    float64                 `json:"planner_frequency"`
	ControllerFrequency float64                 `json:"controller_frequency"`
	PublishFeedback     bool                    `json:"publish_feedback"`
}

// Status - snapshot of the coordinator state
func (c *Coordinator) Status() StatusData {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := StatusData{
		State:               c.state,
		Active:              c.active,
		LastResult:          c.lastResult,
		Planner:             c.plannerName,
		Controller:          c.controllerName,
		PlannerFrequency:    c.plannerFrequency,
		ControllerFrequency: c.controllerFrequency,
		PublishFeedback:     c.publishFeedback,
	}
	if c.active {
		s.RequestID = c.requestID
	}
	return s
}

// ========================================
// Runtime reconfiguration
// ========================================

// SetPlannerFrequency - change the planning rate; takes effect on the next
// planning pass
func (c *Coordinator) SetPlannerFrequency(f float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plannerFrequency = f
	log.Printf("🔧 planner frequency set to %.2f", f)
}

// SetControllerFrequency - change the execution tick rate
func (c *Coordinator) SetControllerFrequency(f float64) error {
	if f <= 0 {
		return fmt.Errorf("controller frequency must be positive")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controllerFrequency = f
	c.cFreqChange = true
	return nil
}

// SetPublishFeedback - toggle feedback streaming
func (c *Coordinator) SetPublishFeedback(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publishFeedback = enabled
}

// SwapPlanner replaces the planner by registry name. On load failure the
// previously loaded planner is retained and an error returned.
func (c *Coordinator) SwapPlanner(name string) error {
	planner, err := c.planners.Create(name, c.grid)
	if err != nil {
		log.Printf("❌ failed to load planner %q, keeping %q: %v", name, c.plannerName, err)
		return err
	}

	c.mu.Lock()
	c.planner = planner
	c.plannerName = name
	c.latestPlans = nil
	c.controllerPlans = nil
	c.newPlans = false
	c.active = false
	c.mu.Unlock()

	c.resetState()
	log.Printf("🔧 planner swapped to %q", name)
	return nil
}

// SwapController replaces the controller by registry name, with the same
// retain-on-failure behavior as SwapPlanner.
func (c *Coordinator) SwapController(name string) error {
	controller, err := c.controllers.Create(name, c.grid)
	if err != nil {
		log.Printf("❌ failed to load controller %q, keeping %q: %v", name, c.controllerName, err)
		return err
	}

	c.mu.Lock()
	c.controller = controller
	c.controllerName = name
	c.latestPlans = nil
	c.controllerPlans = nil
	c.newPlans = false
	c.active = false
	c.mu.Unlock()

	c.resetState()
	log.Printf("🔧 controller swapped to %q", name)
	return nil
}

// ========================================
// Execution loop
// ========================================

func (c *Coordinator) controlLoop() {
	defer c.wg.Done()

	c.mu.Lock()
	freq := c.controllerFrequency
	c.mu.Unlock()

	ticker := time.NewTicker(tickPeriod(freq))
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.stopping {
			c.mu.Unlock()
			return
		}
		if c.cFreqChange {
			freq = c.controllerFrequency
			ticker.Reset(tickPeriod(freq))
			c.cFreqChange = false
			log.Printf("🔧 controller frequency set to %.2f", freq)
		}
		active := c.active
		controlling := c.state == models.StateControlling
		c.mu.Unlock()

		if !active {
			continue
		}

		start := time.Now()
		c.Tick()
		if elapsed := time.Since(start); controlling && elapsed > tickPeriod(freq) {
			log.Printf("⚠️ control loop missed its desired rate of %.2fHz, the tick took %v", freq, elapsed)
		}
	}
}

// Tick runs one logical execution cycle. It returns true when the active
// request reached a terminal outcome during this tick.
func (c *Coordinator) Tick() bool {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return false
	}

	// The planning frame can change when the map is replaced; the active
	// request then needs re-expression and a fresh plan.
	if global := c.grid.GlobalFrame(); global != "" && c.requestFrame != "" && global != c.requestFrame {
		c.replanForFrameLocked(global)
	}

	if c.newPlans {
		// Swap and flag clear form one critical section, so a batch can
		// neither be consumed twice nor observed half-written.
		c.controllerPlans, c.latestPlans = c.latestPlans, c.controllerPlans
		c.newPlans = false
		targets := currentTargets(c.controllerPlans)
		c.mu.Unlock()

		if err := c.controller.SetCurrentTargets(targets); err != nil {
			log.Printf("❌ failed to pass the plans to the controller: %v", err)
			c.finish(models.ResultAborted, "failed to pass the plans to the controller")
			return true
		}
		c.mu.Lock()
	}
	state := c.state
	c.mu.Unlock()

	switch state {
	case models.StatePlanning:
		log.Printf("⏳ waiting for plan, in the planning state")
		return false

	case models.StateControlling:
		return c.executeCycle()

	case models.StateIdle:
		// The worker gave up on the whole batch.
		c.finish(models.ResultAborted, "the planner could not calculate plans")
		return true
	}
	return false
}

// executeCycle - one CONTROLLING tick: advance reached agents through their
// plan queues, detect batch completion and stream position feedback.
func (c *Coordinator) executeCycle() bool {
	reached, err := c.controller.ReachedAgents()
	if err != nil {
		log.Printf("❌ controller failure: %v", err)
		c.finish(models.ResultAborted, "controller failure")
		return true
	}

	changed := make(models.PoseMap)
	c.mu.Lock()
	for _, id := range reached {
		queue, ok := c.controllerPlans[id]
		if !ok || len(queue) == 0 {
			continue
		}
		queue = queue[1:]
		c.controllerPlans[id] = queue
		if len(queue) > 0 && len(queue[0]) > 0 {
			next := queue[0]
			changed[id] = next[len(next)-1]
		}
	}
	allReached := true
	for _, queue := range c.controllerPlans {
		if len(queue) > 0 {
			allReached = false
			break
		}
	}
	publishFeedback := c.publishFeedback
	requestID := c.requestID
	c.mu.Unlock()

	if len(changed) > 0 {
		// Best effort: a failed target push does not abort the tick.
		if err := c.controller.SetCurrentTargets(changed); err != nil {
			log.Printf("⚠️ failed to pass updated targets to the controller: %v", err)
		}
	}

	if allReached {
		log.Printf("🎉 all goals reached")
		c.finish(models.ResultSucceeded, "goals reached")
		return true
	}

	var positions models.PoseMap
	err = c.grid.WithGrid(func(*models.CostGrid) error {
		var perr error
		positions, perr = c.controller.AgentPositions()
		return perr
	})
	if err != nil {
		log.Printf("❌ the controller could not calculate new agent positions: %v", err)
		c.finish(models.ResultAborted, "the controller could not calculate new agent positions")
		return true
	}

	if publishFeedback {
		c.publish(models.MessageTypeFeedback, models.FeedbackData{
			RequestID: requestID,
			Poses:     agentPoseList(positions),
		})
	}
	return false
}

// replanForFrameLocked - re-express the stored request in the new planning
// frame and arm the worker again; caller holds mu
func (c *Coordinator) replanForFrameLocked(frame string) {
	log.Printf("🔁 replanning, the planning frame changed to %s", frame)
	c.plannerStarts = c.reframe(c.plannerStarts, frame)
	c.plannerGoals = c.reframe(c.plannerGoals, frame)
	for id, seq := range c.plannerSubGoals {
		converted := make(models.PoseSequence, 0, len(seq))
		for _, p := range seq {
			cp, err := c.tf.Transform(p, frame)
			if err != nil {
				cp = p
			}
			converted = append(converted, cp)
		}
		c.plannerSubGoals[id] = converted
	}
	c.requestFrame = frame
	c.setStateLocked(models.StatePlanning)
	c.runPlanner = true
	c.planCond.Signal()
}

func (c *Coordinator) reframe(poses models.PoseMap, frame string) models.PoseMap {
	out := make(models.PoseMap, len(poses))
	for id, p := range poses {
		cp, err := c.tf.Transform(p, frame)
		if err != nil {
			log.Printf("⚠️ failed to transform pose of agent %d into %s: %v", id, frame, err)
			cp = p
		}
		out[id] = cp
	}
	return out
}

// finish - deliver the terminal result for the active request exactly once
func (c *Coordinator) finish(status, reason string) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	result := models.ResultData{
		RequestID: c.requestID,
		Status:    status,
		Reason:    reason,
	}
	c.lastResult = &result
	c.mu.Unlock()

	c.resetState()
	c.publish(models.MessageTypeResult, result)
	LogResult(result.RequestID, status, reason)
}

// resetState - back to IDLE: stop the planner arm and release the grid if
// configured to do so while idle
func (c *Coordinator) resetState() {
	c.mu.Lock()
	c.runPlanner = false
	c.setStateLocked(models.StateIdle)
	release := c.releaseGridWhenIdle
	c.mu.Unlock()

	if release {
		c.grid.Release()
	}
}

// setStateLocked - state transition with logging; caller holds mu
func (c *Coordinator) setStateLocked(state models.CoordinatorState) {
	if c.state == state {
		return
	}
	log.Printf("🔀 changing from %s to %s state", c.state, state)
	LogStateChange(c.requestID, string(c.state), string(state))
	c.state = state
}

// State - current lifecycle state
func (c *Coordinator) State() models.CoordinatorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) publish(msgType string, data interface{}) {
	c.mu.Lock()
	fn := c.broadcast
	c.mu.Unlock()
	if fn == nil {
		return
	}
	fn(models.WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (c *Coordinator) publishCurrentGoals(requestID string, goals models.PoseMap) {
	frame := ""
	for _, p := range goals {
		frame = p.Frame
		break
	}
	c.publish(models.MessageTypeCurrentGoals, models.CurrentGoalsData{
		RequestID: requestID,
		Frame:     frame,
		Goals:     agentPoseList(goals),
	})
}

// currentTargets - final pose of the front plan of every agent's queue
func currentTargets(batch models.PlanBatch) models.PoseMap {
	targets := make(models.PoseMap)
	for id, queue := range batch {
		if len(queue) == 0 || len(queue[0]) == 0 {
			continue
		}
		plan := queue[0]
		targets[id] = plan[len(plan)-1]
	}
	return targets
}

func agentPoseList(poses models.PoseMap) []models.AgentPose {
	out := make([]models.AgentPose, 0, len(poses))
	for id, p := range poses {
		out = append(out, models.AgentPose{AgentID: id, Pose: p})
	}
	return out
}

func tickPeriod(freq float64) time.Duration {
	if freq <= 0 {
		freq = 20
	}
	return time.Duration(float64(time.Second) / freq)
}
