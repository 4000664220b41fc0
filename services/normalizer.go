package services

import (
	"fmt"
	"log"

	"crowdnav-backend/models"
)

// Normalizer validates raw goal requests and re-expresses every pose in the
// planner's global frame.
type Normalizer struct {
	tf          TransformService
	globalFrame func() string
}

// NewNormalizer - normalizer using tf for frame conversion and globalFrame
// for the planning frame lookup
func NewNormalizer(tf TransformService, globalFrame func() string) *Normalizer {
	return &Normalizer{tf: tf, globalFrame: globalFrame}
}

// Normalize - validate, filter and frame-convert one request.
//
// Batch-level problems (mismatched counts, mixed frames, nothing left after
// reconciliation) reject the whole request. Individual bad poses are only
// dropped, and individual transform failures fall back to the untransformed
// pose.
func (n *Normalizer) Normalize(req *models.GoalRequest) (models.PoseMap, models.PoseSequenceMap, models.PoseMap, error) {
	if len(req.Starts) == 0 || len(req.Goals) == 0 || len(req.Starts) != len(req.Goals) {
		return nil, nil, nil, fmt.Errorf("number of start and goal poses must be equal and non-zero")
	}

	frame := req.Starts[0].Pose.Frame
	for _, ap := range req.Starts {
		if ap.Pose.Frame != frame {
			return nil, nil, nil, fmt.Errorf("all start, goal and sub-goal poses must be in the same frame")
		}
	}
	for _, ap := range req.Goals {
		if ap.Pose.Frame != frame {
			return nil, nil, nil, fmt.Errorf("all start, goal and sub-goal poses must be in the same frame")
		}
	}
	for _, list := range req.SubGoals {
		for _, p := range list.Poses {
			if p.Frame != frame {
				return nil, nil, nil, fmt.Errorf("all start, goal and sub-goal poses must be in the same frame")
			}
		}
	}

	starts := make(models.PoseMap)
	for _, ap := range req.Starts {
		if err := ap.Pose.Orientation.Validate(); err != nil {
			log.Printf("⚠️ not planning for agent %d, start pose dropped: %v", ap.AgentID, err)
			continue
		}
		starts[ap.AgentID] = ap.Pose
	}

	goals := make(models.PoseMap)
	for _, ap := range req.Goals {
		if err := ap.Pose.Orientation.Validate(); err != nil {
			log.Printf("⚠️ not planning for agent %d, goal pose dropped: %v", ap.AgentID, err)
			continue
		}
		goals[ap.AgentID] = ap.Pose
	}

	subGoals := make(models.PoseSequenceMap)
	for _, list := range req.SubGoals {
		var valid models.PoseSequence
		for _, p := range list.Poses {
			if err := p.Orientation.Validate(); err != nil {
				log.Printf("⚠️ dropping a sub-goal of agent %d: %v", list.AgentID, err)
				continue
			}
			valid = append(valid, p)
		}
		if len(valid) > 0 {
			subGoals[list.AgentID] = valid
		}
	}

	// Reconcile starts and goals to a common agent id set.
	for id := range starts {
		if _, ok := goals[id]; !ok {
			delete(starts, id)
			delete(subGoals, id)
		}
	}
	for id := range goals {
		if _, ok := starts[id]; !ok {
			delete(goals, id)
			delete(subGoals, id)
		}
	}

	if len(starts) == 0 || len(goals) == 0 {
		return nil, nil, nil, fmt.Errorf("no valid start-goal pair found")
	}

	global := n.globalFrame()
	starts = n.toGlobalFrame(starts, global)
	goals = n.toGlobalFrame(goals, global)
	subGoals = n.sequencesToGlobalFrame(subGoals, global)

	return starts, subGoals, goals, nil
}

// toGlobalFrame - reproject a pose map, falling back per pose on failure
func (n *Normalizer) toGlobalFrame(poses models.PoseMap, frame string) models.PoseMap {
	out := make(models.PoseMap, len(poses))
	for id, p := range poses {
		converted, err := n.tf.Transform(p, frame)
		if err != nil {
			log.Printf("⚠️ failed to transform pose of agent %d from %s into %s: %v", id, p.Frame, frame, err)
			converted = p
		}
		out[id] = converted
	}
	return out
}

func (n *Normalizer) sequencesToGlobalFrame(seqs models.PoseSequenceMap, frame string) models.PoseSequenceMap {
	out := make(models.PoseSequenceMap, len(seqs))
	for id, seq := range seqs {
		converted := make(models.PoseSequence, 0, len(seq))
		for _, p := range seq {
			c, err := n.tf.Transform(p, frame)
			if err != nil {
				log.Printf("⚠️ failed to transform sub-goal of agent %d from %s into %s: %v", id, p.Frame, frame, err)
				c = p
			}
			converted = append(converted, c)
		}
		out[id] = converted
	}
	return out
}
