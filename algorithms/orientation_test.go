package algorithms

import (
	"math"
	"testing"

	"crowdnav-backend/models"

	"github.com/stretchr/testify/assert"
)

func poseAt(x, y float64) models.Pose {
	return models.Pose{
		Position:    models.Position{X: x, Y: y},
		Orientation: models.IdentityQuaternion(),
	}
}

func TestApplyOrientationsStraightLine(t *testing.T) {
	start := models.Pose{Orientation: models.QuaternionFromYaw(math.Pi / 2)}
	path := models.PoseSequence{poseAt(0, 0), poseAt(1, 0), poseAt(2, 0), poseAt(3, 0)}

	ApplyOrientations(start, path)

	// first pose keeps the agent's current heading
	assert.InDelta(t, math.Pi/2, path[0].Orientation.Yaw(), 1e-9)

	// intermediate and final poses face along the path (+x here)
	for i := 1; i < len(path); i++ {
		assert.InDelta(t, 0, path[i].Orientation.Yaw(), 1e-9, "pose %d", i)
	}
}

func TestApplyOrientationsTurn(t *testing.T) {
	start := models.Pose{Orientation: models.IdentityQuaternion()}
	path := models.PoseSequence{poseAt(0, 0), poseAt(1, 0), poseAt(1, 1)}

	ApplyOrientations(start, path)

	// the middle pose looks across the corner
	assert.InDelta(t, math.Pi/4, path[1].Orientation.Yaw(), 1e-9)

	// the last pose keeps its incoming segment heading (+y)
	assert.InDelta(t, math.Pi/2, path[2].Orientation.Yaw(), 1e-9)
}

func TestApplyOrientationsShortPaths(t *testing.T) {
	ApplyOrientations(models.Pose{}, nil) // no panic

	single := models.PoseSequence{poseAt(1, 1)}
	ApplyOrientations(models.Pose{Orientation: models.QuaternionFromYaw(1)}, single)
	assert.InDelta(t, 1.0, single[0].Orientation.Yaw(), 1e-9)
}
