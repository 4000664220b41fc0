package models

import (
	"time"
)

// PlanEvent - one coordinator/planner event persisted to the log store
type PlanEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	EventType string    `json:"event_type"` // "request_accepted", "state_change", "plan_ready", ...

	// Request context
	RequestID string `json:"request_id"`
	AgentID   uint64 `json:"agent_id"`
	State     string `json:"state"`
	Frame     string `json:"frame"`

	// Pose context, when the event concerns a single agent
	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`
	Yaw       float64 `json:"yaw"`

	// Planning context
	PlanPoses  int    `json:"plan_poses"`
	AgentCount int    `json:"agent_count"`
	Detail     string `json:"detail"`

	// Raw payload for anything not covered by the columns above
	DataJSON string `json:"data_json"`
}
