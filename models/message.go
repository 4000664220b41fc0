package models

// ========================================
// Message type constants
// ========================================
const (
	// Server → Web
	MessageTypeCurrentGoals = "current_goals" // goal set of the accepted request
	MessageTypePlans        = "plans"         // freshly produced plan batch
	MessageTypeFeedback     = "feedback"      // per-agent current poses
	MessageTypeResult       = "result"        // terminal request outcome
	MessageTypeMapUpdate    = "map_update"    // cost grid replaced/cleared
	MessageTypeSystemInfo   = "system_info"   // connection/system info

	// Web → Server
	MessageTypeCancel = "cancel" // preempt the active request
)

// ========================================
// Common WebSocket message envelope
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// ========================================
// Request surface
// ========================================

// AgentPose - one agent's stamped pose in a request
type AgentPose struct {
	AgentID AgentID `json:"agent_id"`
	Pose    Pose    `json:"pose"`
}

// AgentPoseList - one agent's ordered pose list in a request
type AgentPoseList struct {
	AgentID AgentID `json:"agent_id"`
	Poses   []Pose  `json:"poses"`
}

// GoalRequest - a batch planning request: per-agent start pose, goal pose
// and an optional ordered list of sub-goal poses
type GoalRequest struct {
	Starts   []AgentPose     `json:"starts"`
	Goals    []AgentPose     `json:"goals"`
	SubGoals []AgentPoseList `json:"sub_goals,omitempty"`
}

// GoalResponse - synchronous answer to a submitted request
type GoalResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ========================================
// Stream payloads
// ========================================

// CurrentGoalsData - goal poses of the accepted request
type CurrentGoalsData struct {
	RequestID string      `json:"request_id"`
	Frame     string      `json:"frame"`
	Goals     []AgentPose `json:"goals"`
}

// PlanData - one agent's published plan
type PlanData struct {
	AgentID AgentID `json:"agent_id"`
	Poses   []Pose  `json:"poses"`
	Length  float64 `json:"length"` // meters
}

// PlansData - the plan batch of one planning pass
type PlansData struct {
	RequestID string     `json:"request_id"`
	Frame     string     `json:"frame"`
	Plans     []PlanData `json:"plans"`
}

// FeedbackData - per-agent current poses during execution
type FeedbackData struct {
	RequestID string      `json:"request_id"`
	Poses     []AgentPose `json:"current_poses"`
}

// ResultData - terminal outcome of one request
type ResultData struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"` // succeeded | aborted | preempted
	Reason    string `json:"reason,omitempty"`
}
