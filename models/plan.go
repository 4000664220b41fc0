package models

// Plan - one agent's full path for one planning pass
type Plan = PoseSequence

// PlanBatch - per-agent FIFO of plans produced by one planning pass.
//
// In practice every agent gets exactly one plan per pass, but the slot stays
// a queue so plans can be replaced in order without races.
type PlanBatch map[AgentID][]Plan

// ========================================
// Coordinator state
// ========================================

// CoordinatorState - lifecycle state of the whole request batch
type CoordinatorState string

const (
	StateIdle        CoordinatorState = "idle"        // no active request
	StatePlanning    CoordinatorState = "planning"    // awaiting first plan batch
	StateControlling CoordinatorState = "controlling" // executing active plans
)

// Terminal result statuses
const (
	ResultSucceeded = "succeeded"
	ResultAborted   = "aborted"
	ResultPreempted = "preempted"
)
