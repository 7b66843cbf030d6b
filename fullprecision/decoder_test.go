package fullprecision

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/internal/clipbuilder"
	"github.com/mogaika/anim_decompressor/pose"
)

func mustClip(t *testing.T, buf []byte) *clip.Clip {
	c, err := clip.New(buf)
	require.NoError(t, err)
	require.NoError(t, c.Validate(true))
	return c
}

// Bone 0 is identity, bone 1 turns by half a circle around Y between its two samples
// while holding a constant translation.
func twoBoneClip(t *testing.T) *clip.Clip {
	half := mgl32.Quat{W: 0, V: mgl32.Vec3{0, 1, 0}}
	bone := clipbuilder.ConstantBone(2, mgl32.QuatIdent(), mgl32.Vec3{1, 2, 3}, mgl32.Vec3{1, 1, 1})
	bone.Rotations[1] = half

	return mustClip(t, clipbuilder.FullPrecision(clipbuilder.Description{
		SampleRate: 30,
		NumSamples: 2,
		Bones:      []clipbuilder.BoneSamples{clipbuilder.IdentityBone(2), bone},
	}))
}

func TestDecodeTwoBones(t *testing.T) {
	c := twoBoneClip(t)
	duration := float32(1) / 30

	for _, test := range []struct {
		time     float32
		rotation mgl32.Quat
	}{
		{0, mgl32.QuatIdent()},
		{-1, mgl32.QuatIdent()},
		{duration, mgl32.Quat{W: 0, V: mgl32.Vec3{0, 1, 0}}},
		{duration * 10, mgl32.Quat{W: 0, V: mgl32.Vec3{0, 1, 0}}},
		// blended component wise, not renormalized
		{duration / 2, mgl32.Quat{W: 0.5, V: mgl32.Vec3{0, 0.5, 0}}},
	} {
		p := pose.New(2)
		Decode(c, test.time, p)

		require.Equal(t, mgl32.QuatIdent(), p.Bones[0].Rotation, "time %v", test.time)
		require.Equal(t, mgl32.Vec3{}, p.Bones[0].Translation, "time %v", test.time)
		require.True(t, p.Bones[1].Rotation.ApproxEqualThreshold(test.rotation, 1e-6),
			"time %v: got %v expected %v", test.time, p.Bones[1].Rotation, test.rotation)
		require.Equal(t, mgl32.Vec3{1, 2, 3}, p.Bones[1].Translation, "time %v", test.time)
	}
}

func TestDecodeRunningOffset(t *testing.T) {
	for _, numBones := range []int{1, 2, 17, 40} {
		bones := make([]clipbuilder.BoneSamples, numBones)
		for i := range bones {
			bones[i] = clipbuilder.IdentityBone(3)
			if i%3 == 1 {
				bones[i].Translations[2] = mgl32.Vec3{float32(i), 0, 0}
			}
			if i%3 == 2 {
				bones[i] = clipbuilder.ConstantBone(3, mgl32.QuatRotate(1, mgl32.Vec3{1, 0, 0}), mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
			}
		}
		c := mustClip(t, clipbuilder.FullPrecision(clipbuilder.Description{SampleRate: 10, NumSamples: 3, Bones: bones}))

		p := pose.New(uint32(numBones))
		require.Equal(t, uint32(numBones*2), decode(c, 0.1, p))
	}
}

type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) WriteBoneRotation(boneIndex uint32, rotation mgl32.Quat) {
	w.calls = append(w.calls, "rotation")
}

func (w *recordingWriter) WriteBoneTranslation(boneIndex uint32, translation mgl32.Vec3) {
	w.calls = append(w.calls, "translation")
}

func TestDecodeWriteOrder(t *testing.T) {
	w := &recordingWriter{}
	Decode(twoBoneClip(t), 0, w)
	require.Equal(t, []string{"rotation", "translation", "rotation", "translation"}, w.calls)
}

func TestDecodeMatchesSamples(t *testing.T) {
	const numSamples = 5
	bone := clipbuilder.IdentityBone(numSamples)
	for i := range bone.Rotations {
		bone.Rotations[i] = mgl32.QuatRotate(float32(i)*0.3, mgl32.Vec3{0, 0, 1})
		bone.Translations[i] = mgl32.Vec3{float32(i), float32(i * i), -1}
	}
	c := mustClip(t, clipbuilder.FullPrecision(clipbuilder.Description{
		SampleRate: 4,
		NumSamples: numSamples,
		Bones:      []clipbuilder.BoneSamples{bone},
	}))

	for i := 0; i < numSamples; i++ {
		p := pose.New(1)
		Decode(c, float32(i)/4, p)
		require.True(t, p.Bones[0].Rotation.ApproxEqualThreshold(bone.Rotations[i], 1e-5), "sample %d", i)
		require.True(t, p.Bones[0].Translation.ApproxEqualThreshold(bone.Translations[i], 1e-5), "sample %d", i)
	}

	// blending between two samples stays between them
	p := pose.New(1)
	Decode(c, 0.125, p)
	require.InDelta(t, 0.5, p.Bones[0].Translation[0], 1e-5)
	require.InDelta(t, 0.5, p.Bones[0].Translation[1], 1e-5)
}

func TestDecodePanicsOnWrongAlgorithm(t *testing.T) {
	built := clipbuilder.Uniform(clipbuilder.Description{
		SampleRate: 30,
		NumSamples: 2,
		Bones:      []clipbuilder.BoneSamples{clipbuilder.IdentityBone(2)},
	}, clipbuilder.UniformSettings{})
	c := mustClip(t, built.Buffer)

	require.PanicsWithValue(t, ErrWrongAlgorithm, func() { Decode(c, 0, pose.New(1)) })
	require.PanicsWithValue(t, ErrWrongAlgorithm, func() { Decode(nil, 0, pose.New(1)) })
}
