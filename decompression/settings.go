package decompression

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/mogaika/anim_decompressor/clip"
)

// Settings selects the formats a Context is able to decode. Implementations are zero size
// types, the predicates have to be pure so the reflection helpers can evaluate them on a zero value.
type Settings interface {
	IsRotationFormatSupported(f clip.RotationFormat) bool
	IsTranslationFormatSupported(f clip.VectorFormat) bool
	IsScaleFormatSupported(f clip.VectorFormat) bool
}

// DefaultSettings supports every format.
type DefaultSettings struct{}

func (DefaultSettings) IsRotationFormatSupported(clip.RotationFormat) bool  { return true }
func (DefaultSettings) IsTranslationFormatSupported(clip.VectorFormat) bool { return true }
func (DefaultSettings) IsScaleFormatSupported(clip.VectorFormat) bool       { return true }

// VariableSettings only supports the quantized formats.
type VariableSettings struct{}

func (VariableSettings) IsRotationFormatSupported(f clip.RotationFormat) bool {
	return f == clip.QuatfDropWVariable
}
func (VariableSettings) IsTranslationFormatSupported(f clip.VectorFormat) bool {
	return f == clip.Vector3fVariable
}
func (VariableSettings) IsScaleFormatSupported(f clip.VectorFormat) bool {
	return f == clip.Vector3fVariable
}

// FullSettings only supports raw float formats.
type FullSettings struct{}

func (FullSettings) IsRotationFormatSupported(f clip.RotationFormat) bool {
	return f == clip.QuatfFull || f == clip.QuatfDropWFull
}
func (FullSettings) IsTranslationFormatSupported(f clip.VectorFormat) bool {
	return f == clip.Vector3fFull
}
func (FullSettings) IsScaleFormatSupported(f clip.VectorFormat) bool {
	return f == clip.Vector3fFull
}

var allRotationFormats = [...]clip.RotationFormat{clip.QuatfFull, clip.QuatfDropWFull, clip.QuatfDropWVariable}
var allVectorFormats = [...]clip.VectorFormat{clip.Vector3fFull, clip.Vector3fVariable}

// NumSupportedRotationFormats counts the rotation formats S accepts.
func NumSupportedRotationFormats[S Settings]() int {
	var s S
	n := 0
	for _, f := range allRotationFormats {
		if s.IsRotationFormatSupported(f) {
			n++
		}
	}
	return n
}

// RotationFormat returns the only rotation format S supports when there is exactly one,
// the stored format otherwise.
func RotationFormat[S Settings](stored clip.RotationFormat) clip.RotationFormat {
	var s S
	if NumSupportedRotationFormats[S]() == 1 {
		for _, f := range allRotationFormats {
			if s.IsRotationFormatSupported(f) {
				return f
			}
		}
	}
	return stored
}

// VectorAdapter exposes one vector track category of a Settings type,
// so translations and scales share a single decoding path.
type VectorAdapter interface {
	Category() clip.TrackCategory
	RangeReductionFlag() clip.RangeReductionFlags
	StoredFormat(ctx *PersistentContext) clip.VectorFormat
	IsFormatSupported(f clip.VectorFormat) bool
	DefaultValue() mgl32.Vec3
}

type TranslationAdapter[S Settings] struct{}

func (TranslationAdapter[S]) Category() clip.TrackCategory { return clip.CategoryTranslation }
func (TranslationAdapter[S]) RangeReductionFlag() clip.RangeReductionFlags {
	return clip.RangeReductionTranslations
}
func (TranslationAdapter[S]) StoredFormat(ctx *PersistentContext) clip.VectorFormat {
	return ctx.translationFormat
}
func (TranslationAdapter[S]) IsFormatSupported(f clip.VectorFormat) bool {
	var s S
	return s.IsTranslationFormatSupported(f)
}
func (TranslationAdapter[S]) DefaultValue() mgl32.Vec3 { return mgl32.Vec3{} }

type ScaleAdapter[S Settings] struct{}

func (ScaleAdapter[S]) Category() clip.TrackCategory { return clip.CategoryScale }
func (ScaleAdapter[S]) RangeReductionFlag() clip.RangeReductionFlags {
	return clip.RangeReductionScales
}
func (ScaleAdapter[S]) StoredFormat(ctx *PersistentContext) clip.VectorFormat {
	return ctx.scaleFormat
}
func (ScaleAdapter[S]) IsFormatSupported(f clip.VectorFormat) bool {
	var s S
	return s.IsScaleFormatSupported(f)
}
func (ScaleAdapter[S]) DefaultValue() mgl32.Vec3 { return mgl32.Vec3{1, 1, 1} }

// NumSupportedVectorFormats counts the formats the category of A accepts.
func NumSupportedVectorFormats[A VectorAdapter]() int {
	var a A
	n := 0
	for _, f := range allVectorFormats {
		if a.IsFormatSupported(f) {
			n++
		}
	}
	return n
}

// VectorFormat is RotationFormat for vector categories.
func VectorFormat[A VectorAdapter](stored clip.VectorFormat) clip.VectorFormat {
	var a A
	if NumSupportedVectorFormats[A]() == 1 {
		for _, f := range allVectorFormats {
			if a.IsFormatSupported(f) {
				return f
			}
		}
	}
	return stored
}
