// Package fullprecision is the reference decoder for clips storing raw float samples.
//
// Every track is classified through two bitsets that share one running index:
// a set default bit means the track was omitted and decodes to identity, otherwise a set
// constant bit means a single value lives in the constant stream, otherwise the track is
// animated and its two surrounding samples are blended.
package fullprecision

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/anim_decompressor/bitset"
	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/pose"
	"github.com/mogaika/anim_decompressor/sampling"
)

var ErrWrongAlgorithm = errors.New("clip is not full precision")

func f32(b []byte, index uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[index*4:]))
}

func loadQuat(b []byte) mgl32.Quat {
	return mgl32.Quat{W: f32(b, 3), V: mgl32.Vec3{f32(b, 0), f32(b, 1), f32(b, 2)}}
}

func loadVec3(b []byte) mgl32.Vec3 {
	return mgl32.Vec3{f32(b, 0), f32(b, 1), f32(b, 2)}
}

// Blends component wise. Samples are expected to be stored in the same hemisphere,
// no sign flip and no renormalization happens here.
func lerpQuat(a, b mgl32.Quat, alpha float32) mgl32.Quat {
	return mgl32.Quat{
		W: a.W + (b.W-a.W)*alpha,
		V: lerpVec3(a.V, b.V, alpha),
	}
}

func lerpVec3(a, b mgl32.Vec3, alpha float32) mgl32.Vec3 {
	return mgl32.Vec3{
		a[0] + (b[0]-a[0])*alpha,
		a[1] + (b[1]-a[1])*alpha,
		a[2] + (b[2]-a[2])*alpha,
	}
}

// Decode writes the pose of every bone at sampleTime. It panics unless c is a valid full precision clip.
func Decode(c *clip.Clip, sampleTime float32, writer pose.Writer) {
	decode(c, sampleTime, writer)
}

// decode returns the final running track offset.
func decode(c *clip.Clip, sampleTime float32, writer pose.Writer) uint32 {
	if c == nil || c.Algorithm() != clip.AlgorithmFullPrecision {
		panic(ErrWrongAlgorithm)
	}
	if err := c.Validate(false); err != nil {
		panic(errors.Wrap(err, "full precision decoder"))
	}

	buf := c.Bytes()
	header := c.FullPrecisionHeader()

	clipDuration := sampling.ClipDuration(header.NumSamples, float32(header.SampleRate))
	keyFrame0, keyFrame1, alpha := sampling.ResolveKeys(header.NumSamples, clipDuration, sampleTime)

	desc := bitset.MakeDescription(uint32(header.NumBones) * clip.FullPrecisionTracksPerBone)
	defaultTracks := header.DefaultTracksBitset.AddTo(buf)
	constantTracks := header.ConstantTracksBitset.AddTo(buf)
	constantData := header.ConstantTrackData.AddTo(buf)

	floatsPerKeyFrame := header.FloatsPerKeyFrame()
	trackData := header.TrackData.AddTo(buf)
	keyFrameData0 := trackData[keyFrame0*floatsPerKeyFrame*4:]
	keyFrameData1 := trackData[keyFrame1*floatsPerKeyFrame*4:]

	trackOffset := uint32(0)
	for boneIndex := uint32(0); boneIndex < uint32(header.NumBones); boneIndex++ {
		var rotation mgl32.Quat
		switch clip.ClassifyTrack(defaultTracks, constantTracks, desc, trackOffset) {
		case clip.TrackModeDefault:
			rotation = mgl32.QuatIdent()
		case clip.TrackModeConstant:
			rotation = loadQuat(constantData)
			constantData = constantData[4*4:]
		default:
			rotation = lerpQuat(loadQuat(keyFrameData0), loadQuat(keyFrameData1), alpha)
			keyFrameData0 = keyFrameData0[4*4:]
			keyFrameData1 = keyFrameData1[4*4:]
		}
		trackOffset++

		writer.WriteBoneRotation(boneIndex, rotation)

		var translation mgl32.Vec3
		switch clip.ClassifyTrack(defaultTracks, constantTracks, desc, trackOffset) {
		case clip.TrackModeDefault:
			translation = mgl32.Vec3{}
		case clip.TrackModeConstant:
			translation = loadVec3(constantData)
			constantData = constantData[3*4:]
		default:
			translation = lerpVec3(loadVec3(keyFrameData0), loadVec3(keyFrameData1), alpha)
			keyFrameData0 = keyFrameData0[3*4:]
			keyFrameData1 = keyFrameData1[3*4:]
		}
		trackOffset++

		writer.WriteBoneTranslation(boneIndex, translation)
	}
	return trackOffset
}
