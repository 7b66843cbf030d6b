package clipbuilder

import (
	"bytes"
	"math"

	bitstream "github.com/dgryski/go-bitstream"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/utils"
)

// NumTiers is the amount of database tiers segments get spread over.
const NumTiers = 2

type UniformSettings struct {
	// zero means clip.VersionLatest
	Version           uint16
	RotationFormat    clip.RotationFormat
	TranslationFormat clip.VectorFormat
	ScaleFormat       clip.VectorFormat
	RangeReduction    clip.RangeReductionFlags
	HasScale          bool
	// Bit rates of variable tracks, picked by (variable track ordinal + segment index) modulo length.
	// Empty means 16 bits per component.
	BitRates []uint8
	// Maximum samples per segment, zero keeps one segment.
	SegmentSize uint32
	// Moves animated data out of the clip into tier blobs, segment i goes to tier i % NumTiers.
	Database bool
}

type UniformClip struct {
	Buffer []byte
	Tiers  [NumTiers][]byte
}

type encodedTrack struct {
	track
	variable      bool
	rangeReduced  bool
	numComponents int
	ordinal       int // among variable tracks
	values        [][]float32
	clipMin       [3]float32
	clipExtent    [3]float32
}

type encodedSegment struct {
	header   clip.SegmentHeader
	formats  []byte
	ranges   []byte
	animated []byte
}

func (s *UniformSettings) bitRate(ordinal int, segment int) uint8 {
	if len(s.BitRates) == 0 {
		return 14 // 16 bits
	}
	return s.BitRates[(ordinal+segment)%len(s.BitRates)]
}

func (s *UniformSettings) encodeTrack(t track) encodedTrack {
	e := encodedTrack{track: t}
	dropW := t.category == clip.CategoryRotation && s.RotationFormat != clip.QuatfFull

	switch t.category {
	case clip.CategoryRotation:
		e.variable = s.RotationFormat.IsVariable()
		e.rangeReduced = e.variable && s.RangeReduction.Has(clip.RangeReductionRotations)
		e.numComponents = int(s.RotationFormat.NumComponents())
	case clip.CategoryTranslation:
		e.variable = s.TranslationFormat.IsVariable()
		e.rangeReduced = e.variable && s.RangeReduction.Has(clip.RangeReductionTranslations)
		e.numComponents = 3
	default:
		e.variable = s.ScaleFormat.IsVariable()
		e.rangeReduced = e.variable && s.RangeReduction.Has(clip.RangeReductionScales)
		e.numComponents = 3
	}

	e.values = make([][]float32, len(t.samples))
	for i, sample := range t.samples {
		if dropW {
			v := utils.QuatDropW(mgl32.Quat{W: sample[3], V: mgl32.Vec3{sample[0], sample[1], sample[2]}})
			e.values[i] = []float32{v[0], v[1], v[2]}
		} else {
			e.values[i] = sample
		}
	}

	if e.rangeReduced {
		for c := 0; c < 3; c++ {
			lo, hi := e.values[0][c], e.values[0][c]
			for _, v := range e.values {
				lo = float32(math.Min(float64(lo), float64(v[c])))
				hi = float32(math.Max(float64(hi), float64(v[c])))
			}
			e.clipMin[c] = lo
			e.clipExtent[c] = hi - lo
		}
	}
	return e
}

// normalized maps a value into the clip range of component c.
func (e *encodedTrack) normalized(v float32, c int) float64 {
	if e.clipExtent[c] == 0 {
		return 0
	}
	return clamp01((float64(v) - float64(e.clipMin[c])) / float64(e.clipExtent[c]))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func (e *encodedTrack) bitSize(bitRate uint8) uint32 {
	if !e.variable {
		return uint32(e.numComponents) * clip.FullComponentBits
	}
	return 3 * clip.BitRateNumBits(bitRate)
}

func (e *encodedTrack) segmentRange(first, count uint32) [6]uint8 {
	var r [6]uint8
	for c := 0; c < 3; c++ {
		lo, hi := 1.0, 0.0
		for i := first; i < first+count; i++ {
			x := e.normalized(e.values[i][c], c)
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
		}
		qmin := math.Floor(lo * clip.SegmentRangeNormalizer)
		qmax := math.Ceil(hi * clip.SegmentRangeNormalizer)
		r[c] = uint8(qmin)
		r[3+c] = uint8(qmax - qmin)
	}
	return r
}

func (e *encodedTrack) writeSample(w *bitstream.BitWriter, sample uint32, bitRate uint8, segRange *[6]uint8) {
	v := e.values[sample]
	if !e.variable || clip.IsRawBitRate(bitRate) {
		for c := 0; c < e.numComponents; c++ {
			if err := w.WriteBits(uint64(math.Float32bits(v[c])), clip.FullComponentBits); err != nil {
				panic(err)
			}
		}
		return
	}

	numBits := clip.BitRateNumBits(bitRate)
	if numBits == 0 {
		return
	}
	maxValue := float64(uint64(1)<<numBits - 1)
	for c := 0; c < 3; c++ {
		var x float64
		if e.rangeReduced {
			x = e.normalized(v[c], c)
			if segRange != nil {
				segMin := float64(segRange[c]) / clip.SegmentRangeNormalizer
				segExtent := float64(segRange[3+c]) / clip.SegmentRangeNormalizer
				if segExtent == 0 {
					x = 0
				} else {
					x = clamp01((x - segMin) / segExtent)
				}
			}
		} else {
			x = clamp01((float64(v[c]) + 1) * 0.5)
		}
		if err := w.WriteBits(uint64(math.Round(x*maxValue)), int(numBits)); err != nil {
			panic(err)
		}
	}
}

// Uniform encodes d with the formats of s.
func Uniform(d Description, s UniformSettings) UniformClip {
	if d.NumSamples == 0 {
		panic("clipbuilder: clip without samples")
	}
	version := s.Version
	if version == 0 {
		version = clip.VersionLatest
	}

	tracks := d.tracks(s.HasScale)
	encoded := make([]encodedTrack, len(tracks))
	numVariable := 0
	anyRangeReduced := false
	for i, t := range tracks {
		encoded[i] = s.encodeTrack(t)
		if encoded[i].mode == clip.TrackModeAnimated && encoded[i].variable {
			encoded[i].ordinal = numVariable
			numVariable++
			anyRangeReduced = anyRangeReduced || encoded[i].rangeReduced
		}
	}

	segmentSize := s.SegmentSize
	if segmentSize == 0 || segmentSize > d.NumSamples {
		segmentSize = d.NumSamples
	}
	numSegments := (d.NumSamples + segmentSize - 1) / segmentSize

	b := &blob{buf: make([]byte, clip.HeaderSize+clip.UniformHeaderSize)}
	h := clip.UniformHeader{
		NumBones:          uint32(len(d.Bones)),
		NumSamples:        d.NumSamples,
		SampleRate:        d.SampleRate,
		RotationFormat:    s.RotationFormat,
		TranslationFormat: s.TranslationFormat,
		ScaleFormat:       s.ScaleFormat,
		RangeReduction:    s.RangeReduction,
		HasScale:          s.HasScale,
		HasDatabase:       s.Database,
		NumSegments:       uint16(numSegments),
		ClipRangeData:     clip.InvalidPtrOffset,
	}
	h.DefaultTracksBitset, h.ConstantTracksBitset = b.bitsets(tracks)

	h.ConstantTrackData = b.offset()
	for _, e := range encoded {
		if e.mode == clip.TrackModeConstant {
			b.f32(e.values[0][:e.numComponents]...)
		}
	}

	if anyRangeReduced {
		h.ClipRangeData = b.offset()
		for _, e := range encoded {
			if e.mode == clip.TrackModeAnimated && e.rangeReduced {
				b.f32(e.clipMin[:]...)
				b.f32(e.clipExtent[:]...)
			}
		}
	}

	h.SegmentHeaders = b.offset()
	b.raw(make([]byte, numSegments*clip.SegmentHeaderSize))

	var result UniformClip
	segments := make([]encodedSegment, numSegments)
	for iSeg := range segments {
		seg := &segments[iSeg]
		first := uint32(iSeg) * segmentSize
		count := segmentSize
		if first+count > d.NumSamples {
			count = d.NumSamples - first
		}
		seg.header = clip.SegmentHeader{
			StartSample:        first,
			NumSamples:         count,
			FormatPerTrackData: clip.InvalidPtrOffset,
			RangeData:          clip.InvalidPtrOffset,
		}

		segRanges := make(map[int][6]uint8)
		for i := range encoded {
			e := &encoded[i]
			if e.mode != clip.TrackModeAnimated {
				continue
			}
			bitRate := uint8(0)
			if e.variable {
				bitRate = s.bitRate(e.ordinal, iSeg)
				seg.formats = append(seg.formats, bitRate)
			}
			if e.rangeReduced && numSegments > 1 {
				r := e.segmentRange(first, count)
				segRanges[i] = r
				seg.ranges = append(seg.ranges, r[:]...)
			}
			seg.header.AnimatedPoseBitSize += e.bitSize(bitRate)
		}

		var animated bytes.Buffer
		w := bitstream.NewWriter(&animated)
		for sample := first; sample < first+count; sample++ {
			for i := range encoded {
				e := &encoded[i]
				if e.mode != clip.TrackModeAnimated {
					continue
				}
				bitRate := uint8(0)
				if e.variable {
					bitRate = s.bitRate(e.ordinal, iSeg)
				}
				var segRange *[6]uint8
				if r, ok := segRanges[i]; ok {
					segRange = &r
				}
				e.writeSample(w, sample, bitRate, segRange)
			}
		}
		if err := w.Flush(bitstream.Zero); err != nil {
			panic(err)
		}
		seg.animated = animated.Bytes()

		if len(seg.formats) != 0 {
			seg.header.FormatPerTrackData = b.offset()
			b.raw(seg.formats)
		}
		if len(seg.ranges) != 0 {
			seg.header.RangeData = b.offset()
			b.raw(seg.ranges)
		}
		if s.Database {
			tier := iSeg % NumTiers
			seg.header.Tier = uint8(tier)
			seg.header.AnimatedData = uint32(len(result.Tiers[tier]))
			result.Tiers[tier] = append(result.Tiers[tier], seg.animated...)
		} else {
			seg.header.AnimatedData = uint32(b.offset())
			b.raw(seg.animated)
		}
		b.align(4)
	}

	h.ClipName = clip.InvalidPtrOffset
	if version >= clip.VersionClipName {
		h.ClipName = b.clipName(d.Name)
	}
	b.align(4)

	for iSeg := range segments {
		segments[iSeg].header.Put(b.buf[uint32(h.SegmentHeaders)+uint32(iSeg)*clip.SegmentHeaderSize:])
	}
	h.Put(b.buf)
	clip.PutHeader(b.buf, version, clip.AlgorithmUniformlySampled)

	result.Buffer = b.buf
	return result
}
