// Package clipbuilder encodes raw samples into compressed clip buffers. It exists so tests
// and tools can produce well formed clips, it makes no attempt at choosing good formats.
package clipbuilder

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/anim_decompressor/bitset"
	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/utils"
)

// BoneSamples holds one value per sample for every track of a bone.
// Scales are ignored by the full precision layout.
type BoneSamples struct {
	Rotations    []mgl32.Quat
	Translations []mgl32.Vec3
	Scales       []mgl32.Vec3
}

type Description struct {
	Name       string
	SampleRate float32
	NumSamples uint32
	Bones      []BoneSamples
}

// ConstantBone returns a bone whose tracks hold the same value for every sample.
func ConstantBone(numSamples uint32, rotation mgl32.Quat, translation, scale mgl32.Vec3) BoneSamples {
	b := BoneSamples{
		Rotations:    make([]mgl32.Quat, numSamples),
		Translations: make([]mgl32.Vec3, numSamples),
		Scales:       make([]mgl32.Vec3, numSamples),
	}
	for i := range b.Rotations {
		b.Rotations[i] = rotation
		b.Translations[i] = translation
		b.Scales[i] = scale
	}
	return b
}

// IdentityBone returns a bone whose tracks are all default.
func IdentityBone(numSamples uint32) BoneSamples {
	return ConstantBone(numSamples, mgl32.QuatIdent(), mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
}

type track struct {
	category clip.TrackCategory
	mode     clip.TrackMode
	// per sample components, rotations are x, y, z, w
	samples [][]float32
}

func quatComponents(q mgl32.Quat) []float32 {
	return []float32{q.V[0], q.V[1], q.V[2], q.W}
}

func vecComponents(v mgl32.Vec3) []float32 {
	return []float32{v[0], v[1], v[2]}
}

func classify(samples [][]float32, identity []float32) clip.TrackMode {
	isDefault, isConstant := true, true
	for _, s := range samples {
		for i := range s {
			if s[i] != identity[i] {
				isDefault = false
			}
			if s[i] != samples[0][i] {
				isConstant = false
			}
		}
	}
	switch {
	case isDefault:
		return clip.TrackModeDefault
	case isConstant:
		return clip.TrackModeConstant
	default:
		return clip.TrackModeAnimated
	}
}

func newTrack(category clip.TrackCategory, samples [][]float32) track {
	var identity []float32
	switch category {
	case clip.CategoryRotation:
		identity = []float32{0, 0, 0, 1}
	case clip.CategoryTranslation:
		identity = []float32{0, 0, 0}
	default:
		identity = []float32{1, 1, 1}
	}
	return track{category: category, mode: classify(samples, identity), samples: samples}
}

// tracks flattens the description in bone major order.
func (d *Description) tracks(withScale bool) []track {
	tracks := make([]track, 0, len(d.Bones)*3)
	for _, bone := range d.Bones {
		rotations := make([][]float32, d.NumSamples)
		translations := make([][]float32, d.NumSamples)
		for i := uint32(0); i < d.NumSamples; i++ {
			rotations[i] = quatComponents(bone.Rotations[i])
			translations[i] = vecComponents(bone.Translations[i])
		}
		tracks = append(tracks, newTrack(clip.CategoryRotation, rotations), newTrack(clip.CategoryTranslation, translations))

		if withScale {
			scales := make([][]float32, d.NumSamples)
			for i := uint32(0); i < d.NumSamples; i++ {
				if bone.Scales == nil {
					scales[i] = []float32{1, 1, 1}
				} else {
					scales[i] = vecComponents(bone.Scales[i])
				}
			}
			tracks = append(tracks, newTrack(clip.CategoryScale, scales))
		}
	}
	return tracks
}

type blob struct {
	buf []byte
}

func (b *blob) align(n int) {
	for len(b.buf)%n != 0 {
		b.buf = append(b.buf, 0)
	}
}

func (b *blob) offset() clip.PtrOffset32 {
	return clip.PtrOffset32(len(b.buf))
}

func (b *blob) f32(values ...float32) {
	for _, v := range values {
		b.buf = binary.LittleEndian.AppendUint32(b.buf, math.Float32bits(v))
	}
}

func (b *blob) raw(p []byte) {
	b.buf = append(b.buf, p...)
}

func (b *blob) bitsets(tracks []track) (defaults, constants clip.PtrOffset32) {
	desc := bitset.MakeDescription(uint32(len(tracks)))
	defaultWords := make([]byte, desc.NumBytes())
	constantWords := make([]byte, desc.NumBytes())
	for i, t := range tracks {
		bitset.Set(defaultWords, desc, uint32(i), t.mode == clip.TrackModeDefault)
		bitset.Set(constantWords, desc, uint32(i), t.mode == clip.TrackModeConstant)
	}

	b.align(4)
	defaults = b.offset()
	b.raw(defaultWords)
	constants = b.offset()
	b.raw(constantWords)
	return defaults, constants
}

func (b *blob) clipName(name string) clip.PtrOffset32 {
	if name == "" {
		return clip.InvalidPtrOffset
	}
	encoded, err := utils.StringToBytes(name, false)
	if err != nil {
		panic(err)
	}
	b.align(2)
	offset := b.offset()
	b.buf = binary.LittleEndian.AppendUint16(b.buf, uint16(len(encoded)))
	b.raw(encoded)
	return offset
}

// FullPrecision encodes d with raw float samples.
func FullPrecision(d Description) []byte {
	tracks := d.tracks(false)
	b := &blob{buf: make([]byte, clip.HeaderSize+clip.FullPrecisionHeaderSize)}

	h := clip.FullPrecisionHeader{
		NumBones:   uint16(len(d.Bones)),
		NumSamples: d.NumSamples,
		SampleRate: uint32(d.SampleRate),
	}
	h.DefaultTracksBitset, h.ConstantTracksBitset = b.bitsets(tracks)

	h.ConstantTrackData = b.offset()
	for _, t := range tracks {
		if t.mode == clip.TrackModeConstant {
			b.f32(t.samples[0]...)
		}
	}

	for _, t := range tracks {
		if t.mode == clip.TrackModeAnimated {
			if t.category == clip.CategoryRotation {
				h.NumAnimatedRotationTracks++
			} else {
				h.NumAnimatedTranslationTracks++
			}
		}
	}

	h.TrackData = b.offset()
	for sample := uint32(0); sample < d.NumSamples; sample++ {
		for _, t := range tracks {
			if t.mode == clip.TrackModeAnimated {
				b.f32(t.samples[sample]...)
			}
		}
	}

	h.Put(b.buf)
	clip.PutHeader(b.buf, clip.VersionLatest, clip.AlgorithmFullPrecision)
	return b.buf
}
