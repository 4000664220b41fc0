package models

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

// AgentID - opaque identifier of one tracked human/agent
type AgentID uint64

// ========================================
// Orientation
// ========================================

// Quaternion - orientation as a unit quaternion
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// IdentityQuaternion - no rotation
func IdentityQuaternion() Quaternion {
	return Quaternion{W: 1}
}

// QuaternionFromYaw - quaternion for a rotation of yaw radians around z
func QuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Validate - reject quaternions the 2D planner cannot work with.
//
// A quaternion is usable only when it is finite, has non-negligible norm and
// keeps the z-axis close to vertical (tilted poses have no meaning on a
// planar costmap).
func (q Quaternion) Validate() error {
	for _, v := range []float64{q.X, q.Y, q.Z, q.W} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("quaternion has nans or infs")
		}
	}

	n := q.number()
	if quat.Abs(n)*quat.Abs(n) < 1e-6 {
		return fmt.Errorf("quaternion has length close to zero")
	}

	unit := quat.Scale(1/quat.Abs(n), n)
	up := quat.Number{Kmag: 1}
	rotated := quat.Mul(quat.Mul(unit, up), quat.Conj(unit))
	if math.Abs(rotated.Kmag-1) > 1e-3 {
		return fmt.Errorf("quaternion z-axis must be close to vertical")
	}

	return nil
}

// Yaw - heading implied by the quaternion, in radians
func (q Quaternion) Yaw() float64 {
	n := q.number()
	abs := quat.Abs(n)
	if abs == 0 {
		return 0
	}
	unit := quat.Scale(1/abs, n)
	forward := quat.Number{Imag: 1}
	rotated := quat.Mul(quat.Mul(unit, forward), quat.Conj(unit))
	return math.Atan2(rotated.Jmag, rotated.Imag)
}

// ========================================
// Poses
// ========================================

// Position - a point in world coordinates (meters)
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose - a stamped position + orientation in a named frame
type Pose struct {
	Position    Position   `json:"position"`
	Orientation Quaternion `json:"orientation"`
	Frame       string     `json:"frame"`
	Stamp       time.Time  `json:"stamp"`
}

// PoseMap - per-agent pose set; used for starts, goals and current targets
type PoseMap map[AgentID]Pose

// PoseSequence - ordered list of poses (traversal order is significant)
type PoseSequence []Pose

// PoseSequenceMap - per-agent ordered pose lists (sub-goals, plan queues)
type PoseSequenceMap map[AgentID]PoseSequence

// Copy - shallow per-entry copy, so a snapshot is not aliased by the caller
func (m PoseMap) Copy() PoseMap {
	out := make(PoseMap, len(m))
	for id, p := range m {
		out[id] = p
	}
	return out
}

// Copy - per-entry copy of every sequence
func (m PoseSequenceMap) Copy() PoseSequenceMap {
	out := make(PoseSequenceMap, len(m))
	for id, seq := range m {
		cp := make(PoseSequence, len(seq))
		copy(cp, seq)
		out[id] = cp
	}
	return out
}
