package pose

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestPoseWriters(t *testing.T) {
	p := New(2)
	require.Equal(t, IdentityTransform(), p.Bones[1])

	var w ScaleWriter = p
	rotation := mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0})
	w.WriteBoneRotation(1, rotation)
	w.WriteBoneTranslation(1, mgl32.Vec3{1, 2, 3})
	w.WriteBoneScale(1, mgl32.Vec3{2, 2, 2})

	require.Equal(t, rotation, p.Bones[1].Rotation)
	require.Equal(t, mgl32.Vec3{1, 2, 3}, p.Bones[1].Translation)
	require.Equal(t, IdentityTransform(), p.Bones[0])

	p.SetIdentity()
	require.Equal(t, IdentityTransform(), p.Bones[1])
}

func TestTransformMatrix(t *testing.T) {
	tr := Transform{
		Rotation:    mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 0, 1}),
		Translation: mgl32.Vec3{10, 0, 0},
		Scale:       mgl32.Vec3{2, 2, 2},
	}
	point := tr.Matrix().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	require.True(t, point.ApproxEqualThreshold(mgl32.Vec4{10, 2, 0, 1}, 1e-5), "%v", point)
}
