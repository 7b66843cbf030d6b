// Package decompression decodes uniformly sampled clips through a persistent context
// that is bound once and then seeked and walked track by track every frame.
package decompression

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/mogaika/anim_decompressor/bitpack"
	"github.com/mogaika/anim_decompressor/bitset"
	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/pose"
	"github.com/mogaika/anim_decompressor/sampling"
	"github.com/mogaika/anim_decompressor/utils"
)

var (
	ErrNilClip           = errors.New("clip is nil")
	ErrUnsupportedFormat = errors.New("clip format is not supported by the context settings")
	ErrDatabaseRequired  = errors.New("clip animated data lives in a database, none was provided")

	// Panic values of misused contexts.
	ErrNotBound    = errors.New("context is not bound to a clip")
	ErrNotSeeked   = errors.New("context was not seeked since it was bound")
	ErrOutOfOrder  = errors.New("tracks decoded out of order")
	ErrNotResident = errors.New("animated data of the seeked samples is not resident")
)

// PersistentContext is the whole state of a Context. Its layout is fixed, 192 bytes on
// 64 bit targets: the first cache line holds what Bind caches, the second and third
// what Seek and the decode cursors update.
type PersistentContext struct {
	clip *clip.Clip
	db   Database

	constantTracksBitset clip.PtrOffset32
	constantTrackData    clip.PtrOffset32
	defaultTracksBitset  clip.PtrOffset32
	clipRangeData        clip.PtrOffset32

	clipDuration float32
	bitsetDesc   bitset.Description
	clipHash     uint32

	rotationFormat        clip.RotationFormat
	translationFormat     clip.VectorFormat
	scaleFormat           clip.VectorFormat
	rangeReduction        clip.RangeReductionFlags
	numRotationComponents uint8
	hasSegments           bool
	hasScale              bool
	resident              bool

	sampleTime float32

	formatPerTrackData [2]clip.PtrOffset32
	segmentRangeData   [2]clip.PtrOffset32
	animatedTrackData  [2][]byte
	keyFrameBitOffsets [2]uint32
	interpolationAlpha float32

	// decode cursors, rewound by Seek
	trackIndex             uint32
	constantDataOffset     uint32
	clipRangeOffset        uint32
	variableTrackIndex     uint32
	rangeReducedTrackIndex uint32
	trackBitOffsets        [2]uint32

	numSamples     uint32
	segmentHeaders clip.PtrOffset32
	numBones       uint32
	numSegments    uint16
	hasDatabase    bool
	seeked         bool

	_ [8]byte
}

// Context decodes clips whose formats are supported by S.
// A Context is a cursor: it must not be used from several goroutines at once,
// while any number of contexts may share a clip.
type Context[S Settings] struct {
	PersistentContext
}

func NewContext[S Settings]() *Context[S] {
	return &Context[S]{}
}

func (c *Context[S]) Bind(cl *clip.Clip) error {
	return c.BindWithDatabase(cl, nil)
}

// BindWithDatabase caches the static state of cl. On error the context is left untouched.
func (c *Context[S]) BindWithDatabase(cl *clip.Clip, db Database) error {
	if cl == nil {
		return ErrNilClip
	}
	if err := cl.Validate(false); err != nil {
		return errors.Wrap(err, "bind")
	}
	if cl.Algorithm() != clip.AlgorithmUniformlySampled {
		return errors.Wrapf(clip.ErrUnsupportedAlgorithm, "context cannot decode %v clips", cl.Algorithm())
	}

	h := cl.UniformHeader()
	var s S
	if !s.IsRotationFormatSupported(h.RotationFormat) {
		return errors.Wrapf(ErrUnsupportedFormat, "rotation %v", h.RotationFormat)
	}
	if !(TranslationAdapter[S]{}).IsFormatSupported(h.TranslationFormat) {
		return errors.Wrapf(ErrUnsupportedFormat, "translation %v", h.TranslationFormat)
	}
	if h.HasScale && !(ScaleAdapter[S]{}).IsFormatSupported(h.ScaleFormat) {
		return errors.Wrapf(ErrUnsupportedFormat, "scale %v", h.ScaleFormat)
	}
	if h.HasDatabase && db == nil {
		return ErrDatabaseRequired
	}
	if h.NumSamples != 0 && h.NumSegments == 0 {
		return errors.Wrap(clip.ErrInvalidOffset, "clip has samples but no segments")
	}

	c.PersistentContext = PersistentContext{
		clip:                  cl,
		db:                    db,
		constantTracksBitset:  h.ConstantTracksBitset,
		constantTrackData:     h.ConstantTrackData,
		defaultTracksBitset:   h.DefaultTracksBitset,
		clipRangeData:         h.ClipRangeData,
		clipDuration:          sampling.ClipDuration(h.NumSamples, h.SampleRate),
		bitsetDesc:            bitset.MakeDescription(h.NumTracks()),
		clipHash:              cl.Hash(),
		rotationFormat:        h.RotationFormat,
		translationFormat:     h.TranslationFormat,
		scaleFormat:           h.ScaleFormat,
		rangeReduction:        h.RangeReduction,
		numRotationComponents: h.RotationFormat.NumComponents(),
		hasSegments:           h.NumSegments > 1,
		hasScale:              h.HasScale,
		numSamples:            h.NumSamples,
		segmentHeaders:        h.SegmentHeaders,
		numBones:              h.NumBones,
		numSegments:           h.NumSegments,
		hasDatabase:           h.HasDatabase,
	}
	return nil
}

// Reset unbinds the context.
func (ctx *PersistentContext) Reset() {
	*ctx = PersistentContext{}
}

func (ctx *PersistentContext) IsBound() bool {
	return ctx.clip != nil
}

func (ctx *PersistentContext) Duration() float32 {
	return ctx.clipDuration
}

func (ctx *PersistentContext) ClipHash() uint32 {
	return ctx.clipHash
}

func (ctx *PersistentContext) NumBones() uint32 {
	return ctx.numBones
}

func (ctx *PersistentContext) HasScale() bool {
	return ctx.hasScale
}

// SampleTime is the time of the last seek.
func (ctx *PersistentContext) SampleTime() float32 {
	return ctx.sampleTime
}

func (ctx *PersistentContext) InterpolationAlpha() float32 {
	return ctx.interpolationAlpha
}

func (ctx *PersistentContext) tracksPerBone() uint32 {
	if ctx.hasScale {
		return 3
	}
	return 2
}

func (ctx *PersistentContext) segmentFor(sample uint32) clip.SegmentHeader {
	for i := uint32(0); i < uint32(ctx.numSegments); i++ {
		seg := ctx.clip.SegmentHeaderAt(ctx.segmentHeaders, i)
		if seg.ContainsSample(sample) {
			return seg
		}
	}
	panic(errors.Errorf("sample %d is outside of every segment", sample))
}

// Seek positions the context at sampleTime and rewinds the track cursors. It reports false
// when the database does not currently hold the animated data of the surrounding samples,
// the context then refuses to decode until a later seek succeeds.
func (ctx *PersistentContext) Seek(sampleTime float32) bool {
	if ctx.clip == nil {
		panic(ErrNotBound)
	}

	key0, key1, alpha := sampling.ResolveKeys(ctx.numSamples, ctx.clipDuration, sampleTime)
	ctx.sampleTime = sampleTime
	ctx.interpolationAlpha = alpha
	ctx.seeked = true
	ctx.resident = true

	if ctx.numSamples != 0 {
		keys := [2]uint32{key0, key1}
		for k, key := range keys {
			seg := ctx.segmentFor(key)
			ctx.formatPerTrackData[k] = seg.FormatPerTrackData
			ctx.segmentRangeData[k] = seg.RangeData
			ctx.keyFrameBitOffsets[k] = (key - seg.StartSample) * seg.AnimatedPoseBitSize

			if !ctx.hasDatabase {
				ctx.animatedTrackData[k] = clip.PtrOffset32(seg.AnimatedData).AddTo(ctx.clip.Bytes())
				continue
			}
			data, ok := ctx.db.TierData(ctx.clipHash, seg.Tier)
			if !ok || int(seg.AnimatedData) > len(data) {
				ctx.resident = false
				ctx.animatedTrackData[k] = nil
				continue
			}
			ctx.animatedTrackData[k] = data[seg.AnimatedData:]
		}
	}

	ctx.rewind()
	return ctx.resident
}

func (ctx *PersistentContext) rewind() {
	ctx.trackIndex = 0
	ctx.constantDataOffset = 0
	ctx.clipRangeOffset = 0
	ctx.variableTrackIndex = 0
	ctx.rangeReducedTrackIndex = 0
	ctx.trackBitOffsets = ctx.keyFrameBitOffsets
}

// beginTrack checks the decode order and classifies the next track.
func (ctx *PersistentContext) beginTrack(category clip.TrackCategory) clip.TrackMode {
	switch {
	case ctx.clip == nil:
		panic(ErrNotBound)
	case !ctx.seeked:
		panic(ErrNotSeeked)
	case !ctx.resident:
		panic(ErrNotResident)
	}
	tracksPerBone := ctx.tracksPerBone()
	if ctx.trackIndex >= ctx.numBones*tracksPerBone || ctx.trackIndex%tracksPerBone != uint32(category) {
		panic(ErrOutOfOrder)
	}

	buf := ctx.clip.Bytes()
	return clip.ClassifyTrack(ctx.defaultTracksBitset.AddTo(buf), ctx.constantTracksBitset.AddTo(buf),
		ctx.bitsetDesc, ctx.trackIndex)
}

func f32(b []byte, index uint32) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[index*4:]))
}

func (ctx *PersistentContext) nextConstant(numFloats uint32) []byte {
	data := ctx.constantTrackData.AddTo(ctx.clip.Bytes())[ctx.constantDataOffset:]
	ctx.constantDataOffset += numFloats * 4
	return data
}

func (ctx *PersistentContext) readFloat(k int) float32 {
	v := bitpack.ReadFloat(ctx.animatedTrackData[k], ctx.trackBitOffsets[k])
	ctx.trackBitOffsets[k] += clip.FullComponentBits
	return v
}

func (ctx *PersistentContext) readFloat3(k int) mgl32.Vec3 {
	var v mgl32.Vec3
	for i := range v {
		v[i] = ctx.readFloat(k)
	}
	return v
}

// readVariable3 reads one quantized vector of keyframe k and undoes its range reduction.
func (ctx *PersistentContext) readVariable3(k int, rangeReduced bool) mgl32.Vec3 {
	buf := ctx.clip.Bytes()
	bitRate := ctx.formatPerTrackData[k].AddTo(buf)[ctx.variableTrackIndex]
	if clip.IsRawBitRate(bitRate) {
		return ctx.readFloat3(k)
	}

	numBits := clip.BitRateNumBits(bitRate)
	var v mgl32.Vec3
	for i := range v {
		v[i] = bitpack.Normalized(bitpack.Read(ctx.animatedTrackData[k], ctx.trackBitOffsets[k], numBits), numBits)
		ctx.trackBitOffsets[k] += numBits
	}

	if !rangeReduced {
		return v.Mul(2).Sub(mgl32.Vec3{1, 1, 1})
	}
	if ctx.hasSegments {
		r := ctx.segmentRangeData[k].AddTo(buf)[ctx.rangeReducedTrackIndex*clip.SegmentRangeEntrySize:]
		for i := range v {
			v[i] = float32(r[i])/clip.SegmentRangeNormalizer + float32(r[clip.RangeComponents+i])/clip.SegmentRangeNormalizer*v[i]
		}
	}
	r := ctx.clipRangeData.AddTo(buf)[ctx.clipRangeOffset:]
	for i := range v {
		v[i] = f32(r, uint32(i)) + f32(r, uint32(clip.RangeComponents+i))*v[i]
	}
	return v
}

func (ctx *PersistentContext) endAnimatedTrack(variable, rangeReduced bool) {
	if variable {
		ctx.variableTrackIndex++
	}
	if rangeReduced {
		ctx.rangeReducedTrackIndex++
		ctx.clipRangeOffset += clip.ClipRangeEntrySize
	}
}

func (ctx *PersistentContext) readRotation(k int, format clip.RotationFormat, rangeReduced bool) mgl32.Quat {
	switch format {
	case clip.QuatfFull:
		v := ctx.readFloat3(k)
		return mgl32.Quat{W: ctx.readFloat(k), V: v}
	case clip.QuatfDropWFull:
		return utils.QuatFromPositiveW(ctx.readFloat3(k))
	default:
		return utils.QuatFromPositiveW(ctx.readVariable3(k, rangeReduced))
	}
}

func lerpVec3(a, b mgl32.Vec3, alpha float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(alpha))
}

// DecodeNextRotation decodes the rotation of the next bone. Animated rotations are blended
// component wise and renormalized, except on key frames.
func (c *Context[S]) DecodeNextRotation() mgl32.Quat {
	ctx := &c.PersistentContext
	mode := ctx.beginTrack(clip.CategoryRotation)
	format := RotationFormat[S](ctx.rotationFormat)

	var rotation mgl32.Quat
	switch mode {
	case clip.TrackModeDefault:
		rotation = mgl32.QuatIdent()
	case clip.TrackModeConstant:
		data := ctx.nextConstant(uint32(format.NumComponents()))
		v := mgl32.Vec3{f32(data, 0), f32(data, 1), f32(data, 2)}
		if format == clip.QuatfFull {
			rotation = mgl32.Quat{W: f32(data, 3), V: v}
		} else {
			rotation = utils.QuatFromPositiveW(v)
		}
	default:
		rangeReduced := format.IsVariable() && ctx.rangeReduction.Has(clip.RangeReductionRotations)
		q0 := ctx.readRotation(0, format, rangeReduced)
		q1 := ctx.readRotation(1, format, rangeReduced)
		// on a key frame the stored rotation is returned untouched
		if alpha := ctx.interpolationAlpha; alpha == 0 {
			rotation = q0
		} else {
			rotation = mgl32.Quat{
				W: q0.W + (q1.W-q0.W)*alpha,
				V: lerpVec3(q0.V, q1.V, alpha),
			}.Normalize()
		}
		ctx.endAnimatedTrack(format.IsVariable(), rangeReduced)
	}
	ctx.trackIndex++
	return rotation
}

func decodeVector3[A VectorAdapter](ctx *PersistentContext) mgl32.Vec3 {
	var a A
	mode := ctx.beginTrack(a.Category())

	var value mgl32.Vec3
	switch mode {
	case clip.TrackModeDefault:
		value = a.DefaultValue()
	case clip.TrackModeConstant:
		data := ctx.nextConstant(3)
		value = mgl32.Vec3{f32(data, 0), f32(data, 1), f32(data, 2)}
	default:
		format := VectorFormat[A](a.StoredFormat(ctx))
		variable := format.IsVariable()
		rangeReduced := variable && ctx.rangeReduction.Has(a.RangeReductionFlag())

		var v0, v1 mgl32.Vec3
		if variable {
			v0 = ctx.readVariable3(0, rangeReduced)
			v1 = ctx.readVariable3(1, rangeReduced)
		} else {
			v0 = ctx.readFloat3(0)
			v1 = ctx.readFloat3(1)
		}
		value = lerpVec3(v0, v1, ctx.interpolationAlpha)
		ctx.endAnimatedTrack(variable, rangeReduced)
	}
	ctx.trackIndex++
	return value
}

func (c *Context[S]) DecodeNextTranslation() mgl32.Vec3 {
	return decodeVector3[TranslationAdapter[S]](&c.PersistentContext)
}

func (c *Context[S]) DecodeNextScale() mgl32.Vec3 {
	return decodeVector3[ScaleAdapter[S]](&c.PersistentContext)
}

// DecodeNextTrack decodes the next track of category. Rotations are returned as x, y, z, w.
func (c *Context[S]) DecodeNextTrack(category clip.TrackCategory) mgl32.Vec4 {
	switch category {
	case clip.CategoryRotation:
		q := c.DecodeNextRotation()
		return mgl32.Vec4{q.V[0], q.V[1], q.V[2], q.W}
	case clip.CategoryTranslation:
		return c.DecodeNextTranslation().Vec4(0)
	case clip.CategoryScale:
		return c.DecodeNextScale().Vec4(0)
	default:
		panic(ErrOutOfOrder)
	}
}

// DecompressPose rewinds to the last seek and writes every bone. Scales are only written
// when the clip has them and w is a pose.ScaleWriter.
func (c *Context[S]) DecompressPose(w pose.Writer) {
	ctx := &c.PersistentContext
	if ctx.clip == nil {
		panic(ErrNotBound)
	}
	ctx.rewind()

	scaleWriter, writeScale := w.(pose.ScaleWriter)
	for bone := uint32(0); bone < ctx.numBones; bone++ {
		w.WriteBoneRotation(bone, c.DecodeNextRotation())
		w.WriteBoneTranslation(bone, c.DecodeNextTranslation())
		if ctx.hasScale {
			scale := c.DecodeNextScale()
			if writeScale {
				scaleWriter.WriteBoneScale(bone, scale)
			}
		}
	}
}
