package services

import (
	"math"
	"testing"

	"crowdnav-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimControllerChasesTarget(t *testing.T) {
	sim := NewSimController(openGridProvider())

	sim.SeedPositions(models.PoseMap{1: mapPose(0, 0)})
	require.NoError(t, sim.SetCurrentTargets(models.PoseMap{1: mapPose(3, 0)}))

	reached, err := sim.ReachedAgents()
	require.NoError(t, err)
	assert.Empty(t, reached)

	// 1.5 m/s for 2.5s covers the 3m to the target, clamped at arrival
	for i := 0; i < 25; i++ {
		sim.Step(0.1)
	}

	positions, err := sim.AgentPositions()
	require.NoError(t, err)
	assert.InDelta(t, 3.0, positions[1].Position.X, 1e-6)
	assert.InDelta(t, 0.0, positions[1].Position.Y, 1e-6)

	reached, err = sim.ReachedAgents()
	require.NoError(t, err)
	assert.Equal(t, []models.AgentID{1}, reached)
}

func TestSimControllerHeadingFollowsMotion(t *testing.T) {
	sim := NewSimController(openGridProvider())

	sim.SeedPositions(models.PoseMap{1: mapPose(0, 0)})
	require.NoError(t, sim.SetCurrentTargets(models.PoseMap{1: mapPose(0, 5)}))

	sim.Step(0.1)

	positions, err := sim.AgentPositions()
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, positions[1].Orientation.Yaw(), 1e-6)
}

func TestSimControllerSpawnsUnknownAgent(t *testing.T) {
	sim := NewSimController(openGridProvider())

	require.NoError(t, sim.SetCurrentTargets(models.PoseMap{42: mapPose(2, 2)}))

	reached, err := sim.ReachedAgents()
	require.NoError(t, err)
	assert.Equal(t, []models.AgentID{42}, reached, "spawned at its target, immediately reached")
}
