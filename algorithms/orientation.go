package algorithms

import (
	"math"

	"crowdnav-backend/models"
)

// ApplyOrientations assigns a heading to every pose of a stitched path from
// its direction of travel.
//
// The first pose inherits the agent's current heading; every intermediate
// pose faces along the local path direction; the final pose keeps the
// heading of its incoming segment (the oriented goal pose is appended by the
// planner afterwards).
func ApplyOrientations(start models.Pose, path models.PoseSequence) {
	if len(path) == 0 {
		return
	}

	path[0].Orientation = start.Orientation

	for i := 1; i < len(path)-1; i++ {
		yaw := headingBetween(path[i-1].Position, path[i+1].Position)
		path[i].Orientation = models.QuaternionFromYaw(yaw)
	}

	if len(path) > 1 {
		last := len(path) - 1
		yaw := headingBetween(path[last-1].Position, path[last].Position)
		path[last].Orientation = models.QuaternionFromYaw(yaw)
	}
}

func headingBetween(from, to models.Position) float64 {
	return math.Atan2(to.Y-from.Y, to.X-from.X)
}
