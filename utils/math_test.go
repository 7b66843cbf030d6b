package utils

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestQuatDropWRoundTrip(t *testing.T) {
	for _, q := range []mgl32.Quat{
		mgl32.QuatIdent(),
		mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}),
		mgl32.QuatRotate(mgl32.DegToRad(-170), mgl32.Vec3{1, 1, 0}.Normalize()),
		{W: -0.5, V: mgl32.Vec3{0.5, 0.5, 0.5}},
	} {
		rebuilt := QuatFromPositiveW(QuatDropW(q))
		require.True(t, rebuilt.W >= 0)
		require.True(t, rebuilt.ApproxEqualThreshold(q, 1e-5) || rebuilt.ApproxEqualThreshold(q.Scale(-1), 1e-5),
			"%v != %v", rebuilt, q)
	}
}

func TestQuatToEulerDegrees(t *testing.T) {
	e := QuatToEulerDegrees(mgl32.QuatRotate(mgl32.DegToRad(45), mgl32.Vec3{0, 0, 1}))
	require.InDelta(t, 0, e[0], 1e-3)
	require.InDelta(t, 0, e[1], 1e-3)
	require.InDelta(t, 45, e[2], 1e-3)
}
