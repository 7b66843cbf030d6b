package clip

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

const CLIP_TAG = 0xac10ac10

const (
	VersionFirst  = 1
	VersionLatest = 2
	// first version carrying the clip name metadata offset
	VersionClipName = 2
)

// Common header layout, every clip starts with it.
const (
	offsetSize      = 0x0
	offsetHash      = 0x4
	offsetTag       = 0x8
	offsetVersion   = 0xc
	offsetAlgorithm = 0xe

	HeaderSize = 0x10
)

var (
	ErrBufferTooSmall       = errors.New("clip buffer is too small")
	ErrInvalidTag           = errors.New("clip tag mismatch")
	ErrSizeMismatch         = errors.New("clip size does not match its buffer")
	ErrUnsupportedVersion   = errors.New("this library does not support this version of animation clip")
	ErrUnsupportedAlgorithm = errors.New("unsupported clip algorithm")
	ErrHashMismatch         = errors.New("clip hash mismatch")
	ErrInvalidOffset        = errors.New("invalid offset used as a value")
)

type AlgorithmType uint8

const (
	AlgorithmFullPrecision AlgorithmType = iota
	AlgorithmUniformlySampled
)

func (a AlgorithmType) String() string {
	switch a {
	case AlgorithmFullPrecision:
		return "full precision"
	case AlgorithmUniformlySampled:
		return "uniformly sampled"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

func (a AlgorithmType) headerSize() int {
	switch a {
	case AlgorithmFullPrecision:
		return FullPrecisionHeaderSize
	case AlgorithmUniformlySampled:
		return UniformHeaderSize
	default:
		return -1
	}
}

// PtrOffset32 is a byte offset relative to the start of the clip buffer.
type PtrOffset32 uint32

// InvalidPtrOffset marks an absent region.
const InvalidPtrOffset PtrOffset32 = 0xffffffff

func (o PtrOffset32) IsValid() bool {
	return o != InvalidPtrOffset
}

// AddTo returns base advanced by the offset. It panics on an invalid offset.
func (o PtrOffset32) AddTo(base []byte) []byte {
	if !o.IsValid() {
		panic(ErrInvalidOffset)
	}
	return base[o:]
}

// SafeAddTo is AddTo that returns nil for an invalid offset.
func (o PtrOffset32) SafeAddTo(base []byte) []byte {
	if !o.IsValid() {
		return nil
	}
	return base[o:]
}

// Clip is a read only view over a compressed clip buffer. Decoding never mutates it,
// so any number of decoders may share one Clip.
type Clip struct {
	buf []byte
}

// New wraps buf. Only the common header is checked, use Validate for the full integrity pass.
func New(buf []byte) (*Clip, error) {
	if len(buf) < HeaderSize {
		return nil, errors.Wrapf(ErrBufferTooSmall, "%d bytes", len(buf))
	}
	c := &Clip{buf: buf}
	if c.Tag() != CLIP_TAG {
		return nil, errors.Wrapf(ErrInvalidTag, "got 0x%x", c.Tag())
	}
	return c, nil
}

func (c *Clip) Bytes() []byte {
	return c.buf
}

func (c *Clip) Size() uint32 {
	return binary.LittleEndian.Uint32(c.buf[offsetSize:])
}

func (c *Clip) Hash() uint32 {
	return binary.LittleEndian.Uint32(c.buf[offsetHash:])
}

func (c *Clip) Tag() uint32 {
	return binary.LittleEndian.Uint32(c.buf[offsetTag:])
}

func (c *Clip) Version() uint16 {
	return binary.LittleEndian.Uint16(c.buf[offsetVersion:])
}

func (c *Clip) Algorithm() AlgorithmType {
	return AlgorithmType(c.buf[offsetAlgorithm])
}

func (c *Clip) u32(off uint32) uint32 {
	return binary.LittleEndian.Uint32(c.buf[off:])
}

func (c *Clip) u16(off uint32) uint16 {
	return binary.LittleEndian.Uint16(c.buf[off:])
}

// ComputeHash returns the hash stored in the common header of buf.
func ComputeHash(buf []byte) uint32 {
	size := binary.LittleEndian.Uint32(buf[offsetSize:])
	return uint32(xxhash.Sum64(buf[offsetTag:size]))
}

// Validate is the integrity pass decoders expect to have happened before they see a clip.
func (c *Clip) Validate(checkHash bool) error {
	if c == nil || len(c.buf) < HeaderSize {
		return ErrBufferTooSmall
	}
	if c.Tag() != CLIP_TAG {
		return errors.Wrapf(ErrInvalidTag, "got 0x%x", c.Tag())
	}
	if int(c.Size()) != len(c.buf) {
		return errors.Wrapf(ErrSizeMismatch, "header %d, buffer %d", c.Size(), len(c.buf))
	}
	if v := c.Version(); v < VersionFirst || v > VersionLatest {
		return errors.Wrapf(ErrUnsupportedVersion, "version %d", v)
	}
	headerSize := c.Algorithm().headerSize()
	if headerSize < 0 {
		return errors.Wrapf(ErrUnsupportedAlgorithm, "%v", c.Algorithm())
	}
	if len(c.buf) < HeaderSize+headerSize {
		return errors.Wrapf(ErrBufferTooSmall, "%v header does not fit", c.Algorithm())
	}
	if checkHash {
		if hash := ComputeHash(c.buf); hash != c.Hash() {
			return errors.Wrapf(ErrHashMismatch, "computed 0x%.8x, stored 0x%.8x", hash, c.Hash())
		}
	}
	return nil
}

// PutHeader writes the common header into buf. The hash is computed over the rest of buf,
// so it has to be called after everything else was written.
func PutHeader(buf []byte, version uint16, algorithm AlgorithmType) {
	binary.LittleEndian.PutUint32(buf[offsetSize:], uint32(len(buf)))
	binary.LittleEndian.PutUint32(buf[offsetTag:], CLIP_TAG)
	binary.LittleEndian.PutUint16(buf[offsetVersion:], version)
	buf[offsetAlgorithm] = byte(algorithm)
	buf[offsetAlgorithm+1] = 0
	binary.LittleEndian.PutUint32(buf[offsetHash:], ComputeHash(buf))
}
