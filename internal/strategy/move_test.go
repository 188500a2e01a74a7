package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStepsTowardsTile_MatchesOriginalMapping(t *testing.T) {
	require.Nil(t, stepsTowardsTile(0), "tile 0 is the agent's own tile, no movement needed")
	require.Equal(t, []Step{StepLeft, StepForward}, stepsTowardsTile(1))
	require.Equal(t, []Step{StepForward}, stepsTowardsTile(2))
	require.Equal(t, []Step{StepRight, StepForward}, stepsTowardsTile(3))
	require.Equal(t, []Step{StepForward}, stepsTowardsTile(4), "indices >= 4 fall back to a plain advance")
	require.Equal(t, []Step{StepForward}, stepsTowardsTile(7))
}
