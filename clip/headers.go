package clip

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/mogaika/anim_decompressor/utils"
)

const FullPrecisionHeaderSize = 0x24

type FullPrecisionHeader struct {
	NumBones                     uint16
	NumSamples                   uint32
	SampleRate                   uint32
	NumAnimatedRotationTracks    uint32
	NumAnimatedTranslationTracks uint32

	DefaultTracksBitset  PtrOffset32
	ConstantTracksBitset PtrOffset32
	ConstantTrackData    PtrOffset32
	TrackData            PtrOffset32
}

// Rotation and translation for every bone.
const FullPrecisionTracksPerBone = 2

func (c *Clip) FullPrecisionHeader() FullPrecisionHeader {
	const o = HeaderSize
	return FullPrecisionHeader{
		NumBones:                     c.u16(o + 0x00),
		NumSamples:                   c.u32(o + 0x04),
		SampleRate:                   c.u32(o + 0x08),
		NumAnimatedRotationTracks:    c.u32(o + 0x0c),
		NumAnimatedTranslationTracks: c.u32(o + 0x10),
		DefaultTracksBitset:          PtrOffset32(c.u32(o + 0x14)),
		ConstantTracksBitset:         PtrOffset32(c.u32(o + 0x18)),
		ConstantTrackData:            PtrOffset32(c.u32(o + 0x1c)),
		TrackData:                    PtrOffset32(c.u32(o + 0x20)),
	}
}

func (h *FullPrecisionHeader) Put(buf []byte) {
	b := buf[HeaderSize:]
	binary.LittleEndian.PutUint16(b[0x00:], h.NumBones)
	binary.LittleEndian.PutUint16(b[0x02:], 0)
	binary.LittleEndian.PutUint32(b[0x04:], h.NumSamples)
	binary.LittleEndian.PutUint32(b[0x08:], h.SampleRate)
	binary.LittleEndian.PutUint32(b[0x0c:], h.NumAnimatedRotationTracks)
	binary.LittleEndian.PutUint32(b[0x10:], h.NumAnimatedTranslationTracks)
	binary.LittleEndian.PutUint32(b[0x14:], uint32(h.DefaultTracksBitset))
	binary.LittleEndian.PutUint32(b[0x18:], uint32(h.ConstantTracksBitset))
	binary.LittleEndian.PutUint32(b[0x1c:], uint32(h.ConstantTrackData))
	binary.LittleEndian.PutUint32(b[0x20:], uint32(h.TrackData))
}

// FloatsPerKeyFrame is the stride of the animated stream.
func (h *FullPrecisionHeader) FloatsPerKeyFrame() uint32 {
	return h.NumAnimatedRotationTracks*4 + h.NumAnimatedTranslationTracks*3
}

const UniformHeaderSize = 0x30

const (
	uniformFlagHasScale    = 1 << 0
	uniformFlagHasDatabase = 1 << 1
)

type UniformHeader struct {
	NumBones          uint32
	NumSamples        uint32
	SampleRate        float32
	RotationFormat    RotationFormat
	TranslationFormat VectorFormat
	ScaleFormat       VectorFormat
	RangeReduction    RangeReductionFlags
	HasScale          bool
	HasDatabase       bool
	NumSegments       uint16

	DefaultTracksBitset  PtrOffset32
	ConstantTracksBitset PtrOffset32
	ConstantTrackData    PtrOffset32
	ClipRangeData        PtrOffset32
	SegmentHeaders       PtrOffset32
	ClipName             PtrOffset32
}

func (c *Clip) UniformHeader() UniformHeader {
	const o = HeaderSize
	flags := c.buf[o+0x10]
	h := UniformHeader{
		NumBones:             c.u32(o + 0x00),
		NumSamples:           c.u32(o + 0x04),
		SampleRate:           math.Float32frombits(c.u32(o + 0x08)),
		RotationFormat:       RotationFormat(c.buf[o+0x0c]),
		TranslationFormat:    VectorFormat(c.buf[o+0x0d]),
		ScaleFormat:          VectorFormat(c.buf[o+0x0e]),
		RangeReduction:       RangeReductionFlags(c.buf[o+0x0f]),
		HasScale:             flags&uniformFlagHasScale != 0,
		HasDatabase:          flags&uniformFlagHasDatabase != 0,
		NumSegments:          c.u16(o + 0x12),
		DefaultTracksBitset:  PtrOffset32(c.u32(o + 0x14)),
		ConstantTracksBitset: PtrOffset32(c.u32(o + 0x18)),
		ConstantTrackData:    PtrOffset32(c.u32(o + 0x1c)),
		ClipRangeData:        PtrOffset32(c.u32(o + 0x20)),
		SegmentHeaders:       PtrOffset32(c.u32(o + 0x24)),
		ClipName:             InvalidPtrOffset,
	}
	if c.Version() >= VersionClipName {
		h.ClipName = PtrOffset32(c.u32(o + 0x28))
	}
	return h
}

func (h *UniformHeader) Put(buf []byte) {
	b := buf[HeaderSize:]
	var flags byte
	if h.HasScale {
		flags |= uniformFlagHasScale
	}
	if h.HasDatabase {
		flags |= uniformFlagHasDatabase
	}
	binary.LittleEndian.PutUint32(b[0x00:], h.NumBones)
	binary.LittleEndian.PutUint32(b[0x04:], h.NumSamples)
	binary.LittleEndian.PutUint32(b[0x08:], math.Float32bits(h.SampleRate))
	b[0x0c] = byte(h.RotationFormat)
	b[0x0d] = byte(h.TranslationFormat)
	b[0x0e] = byte(h.ScaleFormat)
	b[0x0f] = byte(h.RangeReduction)
	b[0x10] = flags
	b[0x11] = 0
	binary.LittleEndian.PutUint16(b[0x12:], h.NumSegments)
	binary.LittleEndian.PutUint32(b[0x14:], uint32(h.DefaultTracksBitset))
	binary.LittleEndian.PutUint32(b[0x18:], uint32(h.ConstantTracksBitset))
	binary.LittleEndian.PutUint32(b[0x1c:], uint32(h.ConstantTrackData))
	binary.LittleEndian.PutUint32(b[0x20:], uint32(h.ClipRangeData))
	binary.LittleEndian.PutUint32(b[0x24:], uint32(h.SegmentHeaders))
	binary.LittleEndian.PutUint32(b[0x28:], uint32(h.ClipName))
	binary.LittleEndian.PutUint32(b[0x2c:], 0)
}

func (h *UniformHeader) TracksPerBone() uint32 {
	if h.HasScale {
		return 3
	}
	return 2
}

func (h *UniformHeader) NumTracks() uint32 {
	return h.NumBones * h.TracksPerBone()
}

const SegmentHeaderSize = 0x20

type SegmentHeader struct {
	StartSample         uint32
	NumSamples          uint32
	AnimatedPoseBitSize uint32
	FormatPerTrackData  PtrOffset32
	RangeData           PtrOffset32
	// clip offset, or tier blob offset for database backed clips
	AnimatedData uint32
	Tier         uint8
}

func (c *Clip) SegmentHeader(h *UniformHeader, index uint32) SegmentHeader {
	return c.SegmentHeaderAt(h.SegmentHeaders, index)
}

// SegmentHeaderAt reads a segment header from the table at headers.
func (c *Clip) SegmentHeaderAt(headers PtrOffset32, index uint32) SegmentHeader {
	o := uint32(headers) + index*SegmentHeaderSize
	return SegmentHeader{
		StartSample:         c.u32(o + 0x00),
		NumSamples:          c.u32(o + 0x04),
		AnimatedPoseBitSize: c.u32(o + 0x08),
		FormatPerTrackData:  PtrOffset32(c.u32(o + 0x0c)),
		RangeData:           PtrOffset32(c.u32(o + 0x10)),
		AnimatedData:        c.u32(o + 0x14),
		Tier:                c.buf[o+0x18],
	}
}

func (s *SegmentHeader) Put(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0x00:], s.StartSample)
	binary.LittleEndian.PutUint32(buf[0x04:], s.NumSamples)
	binary.LittleEndian.PutUint32(buf[0x08:], s.AnimatedPoseBitSize)
	binary.LittleEndian.PutUint32(buf[0x0c:], uint32(s.FormatPerTrackData))
	binary.LittleEndian.PutUint32(buf[0x10:], uint32(s.RangeData))
	binary.LittleEndian.PutUint32(buf[0x14:], s.AnimatedData)
	buf[0x18] = s.Tier
	for i := 0x19; i < SegmentHeaderSize; i++ {
		buf[i] = 0
	}
}

// ContainsSample reports whether the clip wide sample index lives in this segment.
func (s *SegmentHeader) ContainsSample(sample uint32) bool {
	return sample >= s.StartSample && sample < s.StartSample+s.NumSamples
}

// ClipName returns the name stored in the clip metadata, or an empty string when the clip has none.
func (c *Clip) ClipName() (string, error) {
	if c.Algorithm() != AlgorithmUniformlySampled {
		return "", nil
	}
	h := c.UniformHeader()
	if !h.ClipName.IsValid() {
		return "", nil
	}
	meta := h.ClipName.AddTo(c.buf)
	if len(meta) < 2 {
		return "", errors.Wrapf(ErrBufferTooSmall, "clip name at 0x%x", uint32(h.ClipName))
	}
	length := binary.LittleEndian.Uint16(meta)
	if int(length)+2 > len(meta) {
		return "", errors.Wrapf(ErrBufferTooSmall, "clip name of %d bytes at 0x%x", length, uint32(h.ClipName))
	}
	return utils.BytesToString(meta[2 : 2+length])
}
