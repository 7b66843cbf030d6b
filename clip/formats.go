package clip

import (
	"fmt"

	"github.com/mogaika/anim_decompressor/bitset"
)

type RotationFormat uint8

const (
	QuatfFull RotationFormat = iota
	QuatfDropWFull
	QuatfDropWVariable
)

func (f RotationFormat) String() string {
	switch f {
	case QuatfFull:
		return "quatf_full"
	case QuatfDropWFull:
		return "quatf_drop_w_full"
	case QuatfDropWVariable:
		return "quatf_drop_w_variable"
	default:
		return fmt.Sprintf("rotation_format(%d)", uint8(f))
	}
}

func (f RotationFormat) IsVariable() bool {
	return f == QuatfDropWVariable
}

// NumComponents is the amount of stored components, w is rebuilt for drop w formats.
func (f RotationFormat) NumComponents() uint8 {
	if f == QuatfFull {
		return 4
	}
	return 3
}

type VectorFormat uint8

const (
	Vector3fFull VectorFormat = iota
	Vector3fVariable
)

func (f VectorFormat) String() string {
	switch f {
	case Vector3fFull:
		return "vector3f_full"
	case Vector3fVariable:
		return "vector3f_variable"
	default:
		return fmt.Sprintf("vector_format(%d)", uint8(f))
	}
}

func (f VectorFormat) IsVariable() bool {
	return f == Vector3fVariable
}

type RangeReductionFlags uint8

const (
	RangeReductionNone         RangeReductionFlags = 0
	RangeReductionRotations    RangeReductionFlags = 1 << 0
	RangeReductionTranslations RangeReductionFlags = 1 << 1
	RangeReductionScales       RangeReductionFlags = 1 << 2
)

func (f RangeReductionFlags) Has(flag RangeReductionFlags) bool {
	return f&flag != 0
}

type TrackCategory uint8

const (
	CategoryRotation TrackCategory = iota
	CategoryTranslation
	CategoryScale
)

func (c TrackCategory) String() string {
	switch c {
	case CategoryRotation:
		return "rotation"
	case CategoryTranslation:
		return "translation"
	case CategoryScale:
		return "scale"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

// Bits per component for every bit rate index of variable formats.
var bitRateNumBits = [...]uint8{0, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 32}

const (
	BitRateConstant uint8 = 0
	BitRateRaw      uint8 = uint8(len(bitRateNumBits) - 1)
	NumBitRates           = len(bitRateNumBits)
)

func BitRateNumBits(bitRate uint8) uint32 {
	return uint32(bitRateNumBits[bitRate])
}

// IsRawBitRate reports bit rates that store plain floats and skip range reduction.
func IsRawBitRate(bitRate uint8) bool {
	return bitRate == BitRateRaw
}

// Components stored per sample are always 32 bit for full formats.
const FullComponentBits = 32

// Range data strides per range reduced track.
const (
	RangeComponents        = 3
	ClipRangeEntrySize     = RangeComponents * 2 * 4
	SegmentRangeEntrySize  = RangeComponents * 2
	SegmentRangeNormalizer = 255.0
)

type TrackMode uint8

const (
	TrackModeDefault TrackMode = iota
	TrackModeConstant
	TrackModeAnimated
)

func (m TrackMode) String() string {
	switch m {
	case TrackModeDefault:
		return "default"
	case TrackModeConstant:
		return "constant"
	case TrackModeAnimated:
		return "animated"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ClassifyTrack resolves the mode of the track at index. Both bitsets share the same index space,
// the default bit takes precedence.
func ClassifyTrack(defaults, constants []byte, desc bitset.Description, index uint32) TrackMode {
	if bitset.Test(defaults, desc, index) {
		return TrackModeDefault
	}
	if bitset.Test(constants, desc, index) {
		return TrackModeConstant
	}
	return TrackModeAnimated
}
