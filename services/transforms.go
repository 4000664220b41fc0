package services

import (
	"fmt"
	"math"
	"sync"

	"crowdnav-backend/models"
)

// TransformService re-expresses poses in another coordinate frame.
// A call may fail per pose; callers fall back to the untransformed pose.
type TransformService interface {
	Transform(pose models.Pose, targetFrame string) (models.Pose, error)
}

// FrameOffset - planar pose of a frame's origin, expressed in the world root
type FrameOffset struct {
	X   float64
	Y   float64
	Yaw float64
}

// StaticTransformer - TransformService over a fixed set of 2D frame offsets.
//
// Every registered frame is anchored to a common root; transforming goes
// frame → root → target frame.
type StaticTransformer struct {
	mu      sync.RWMutex
	offsets map[string]FrameOffset
}

// NewStaticTransformer - empty transformer; register frames before use
func NewStaticTransformer() *StaticTransformer {
	return &StaticTransformer{offsets: make(map[string]FrameOffset)}
}

// RegisterFrame - set the planar offset of a named frame
func (t *StaticTransformer) RegisterFrame(frame string, offset FrameOffset) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offsets[frame] = offset
}

// Transform - re-express a pose in targetFrame
func (t *StaticTransformer) Transform(pose models.Pose, targetFrame string) (models.Pose, error) {
	if pose.Frame == targetFrame {
		return pose, nil
	}

	t.mu.RLock()
	from, okFrom := t.offsets[pose.Frame]
	to, okTo := t.offsets[targetFrame]
	t.mu.RUnlock()

	if !okFrom {
		return pose, fmt.Errorf("unknown source frame %q", pose.Frame)
	}
	if !okTo {
		return pose, fmt.Errorf("unknown target frame %q", targetFrame)
	}

	// frame → root
	sin, cos := math.Sincos(from.Yaw)
	wx := from.X + pose.Position.X*cos - pose.Position.Y*sin
	wy := from.Y + pose.Position.X*sin + pose.Position.Y*cos
	wyaw := pose.Orientation.Yaw() + from.Yaw

	// root → target
	sin, cos = math.Sincos(-to.Yaw)
	lx := (wx-to.X)*cos - (wy-to.Y)*sin
	ly := (wx-to.X)*sin + (wy-to.Y)*cos

	out := pose
	out.Position.X = lx
	out.Position.Y = ly
	out.Orientation = models.QuaternionFromYaw(wyaw - to.Yaw)
	out.Frame = targetFrame
	return out, nil
}
