package clip

import (
	"github.com/mogaika/anim_decompressor/bitset"
	"github.com/mogaika/anim_decompressor/utils"
)

// TrackCounts holds the number of tracks of every mode, indexed by TrackCategory.
type TrackCounts struct {
	Default  [3]uint32
	Constant [3]uint32
	Animated [3]uint32
}

func countTracks(defaults, constants []byte, numBones, tracksPerBone uint32) TrackCounts {
	var counts TrackCounts
	desc := bitset.MakeDescription(numBones * tracksPerBone)
	for i := uint32(0); i < numBones*tracksPerBone; i++ {
		category := i % tracksPerBone
		switch ClassifyTrack(defaults, constants, desc, i) {
		case TrackModeDefault:
			counts.Default[category]++
		case TrackModeConstant:
			counts.Constant[category]++
		default:
			counts.Animated[category]++
		}
	}
	return counts
}

// TrackCounts walks both bitsets of the clip. Meant for tooling, decoders never need the totals.
func (c *Clip) TrackCounts() TrackCounts {
	switch c.Algorithm() {
	case AlgorithmFullPrecision:
		h := c.FullPrecisionHeader()
		return countTracks(h.DefaultTracksBitset.AddTo(c.buf), h.ConstantTracksBitset.AddTo(c.buf),
			uint32(h.NumBones), FullPrecisionTracksPerBone)
	case AlgorithmUniformlySampled:
		h := c.UniformHeader()
		return countTracks(h.DefaultTracksBitset.AddTo(c.buf), h.ConstantTracksBitset.AddTo(c.buf),
			h.NumBones, h.TracksPerBone())
	default:
		return TrackCounts{}
	}
}

func regionAt(root *utils.BufStack, kind string, offset PtrOffset32, size uint32) {
	if !offset.IsValid() {
		return
	}
	root.SubBuf(kind, int(offset)).SetSize(int(size))
}

// Layout maps the regions of the clip for dumps.
func (c *Clip) Layout() *utils.BufStack {
	root := utils.NewBufStack("clip", c.buf)
	root.SubBuf("header", 0).SetSize(HeaderSize)
	counts := c.TrackCounts()

	switch c.Algorithm() {
	case AlgorithmFullPrecision:
		h := c.FullPrecisionHeader()
		desc := bitset.MakeDescription(uint32(h.NumBones) * FullPrecisionTracksPerBone)
		constantFloats := counts.Constant[CategoryRotation]*4 + counts.Constant[CategoryTranslation]*3

		root.SubBuf("full_precision_header", HeaderSize).SetSize(FullPrecisionHeaderSize)
		regionAt(root, "default_tracks_bitset", h.DefaultTracksBitset, desc.NumBytes())
		regionAt(root, "constant_tracks_bitset", h.ConstantTracksBitset, desc.NumBytes())
		regionAt(root, "constant_track_data", h.ConstantTrackData, constantFloats*4)
		regionAt(root, "track_data", h.TrackData, h.FloatsPerKeyFrame()*h.NumSamples*4)
	case AlgorithmUniformlySampled:
		h := c.UniformHeader()
		desc := bitset.MakeDescription(h.NumTracks())
		constantFloats := counts.Constant[CategoryRotation]*uint32(h.RotationFormat.NumComponents()) +
			(counts.Constant[CategoryTranslation]+counts.Constant[CategoryScale])*3

		var numVariable, numRangeReduced uint32
		if h.RotationFormat.IsVariable() {
			numVariable += counts.Animated[CategoryRotation]
			if h.RangeReduction.Has(RangeReductionRotations) {
				numRangeReduced += counts.Animated[CategoryRotation]
			}
		}
		if h.TranslationFormat.IsVariable() {
			numVariable += counts.Animated[CategoryTranslation]
			if h.RangeReduction.Has(RangeReductionTranslations) {
				numRangeReduced += counts.Animated[CategoryTranslation]
			}
		}
		if h.HasScale && h.ScaleFormat.IsVariable() {
			numVariable += counts.Animated[CategoryScale]
			if h.RangeReduction.Has(RangeReductionScales) {
				numRangeReduced += counts.Animated[CategoryScale]
			}
		}

		root.SubBuf("uniform_header", HeaderSize).SetSize(UniformHeaderSize)
		regionAt(root, "default_tracks_bitset", h.DefaultTracksBitset, desc.NumBytes())
		regionAt(root, "constant_tracks_bitset", h.ConstantTracksBitset, desc.NumBytes())
		regionAt(root, "constant_track_data", h.ConstantTrackData, constantFloats*4)
		regionAt(root, "clip_range_data", h.ClipRangeData, numRangeReduced*ClipRangeEntrySize)
		regionAt(root, "segment_headers", h.SegmentHeaders, uint32(h.NumSegments)*SegmentHeaderSize)

		for i := uint32(0); i < uint32(h.NumSegments); i++ {
			s := c.SegmentHeader(&h, i)
			regionAt(root, "format_per_track_data", s.FormatPerTrackData, numVariable)
			regionAt(root, "segment_range_data", s.RangeData, numRangeReduced*SegmentRangeEntrySize)
			if !h.HasDatabase {
				regionAt(root, "animated_data", PtrOffset32(s.AnimatedData), (s.NumSamples*s.AnimatedPoseBitSize+7)/8)
			}
		}
		if h.ClipName.IsValid() {
			root.SubBuf("clip_name", int(h.ClipName)).SetSize(2 + int(root.LU16(int(h.ClipName))))
		}
	}
	return root
}
