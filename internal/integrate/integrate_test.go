package integrate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCombineMatchesScenarioS5(t *testing.T) {
	v0 := Voxel{SDF: 0.2, Weight: 3, Color: [3]uint8{60, 60, 60}}
	v1 := Voxel{SDF: 0.5, Weight: 2, Color: [3]uint8{100, 100, 100}}

	out := Combine(v0, v1, Params{IntegrationWeightMax: 255})

	require.InDelta(t, 0.32, out.SDF, 1e-5)
	require.EqualValues(t, 5, out.Weight)
	require.Equal(t, [3]uint8{76, 76, 76}, out.Color)
}

func TestCombineWeightSaturates(t *testing.T) {
	v0 := Voxel{SDF: 0, Weight: 200}
	v1 := Voxel{SDF: 0, Weight: 100}

	out := Combine(v0, v1, Params{IntegrationWeightMax: 250})
	require.EqualValues(t, 250, out.Weight)
}

func TestTruncationLinearInDepth(t *testing.T) {
	p := Params{Truncation: 0.02, TruncScale: 0.01}
	require.InDelta(t, 0.02, p.Truncation(0), 1e-6)
	require.InDelta(t, 0.05, p.Truncation(3), 1e-6)
}
