package sampler

import (
	"github.com/pkg/errors"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/sampling"
)

// TrackSummary counts the tracks of one category by mode.
type TrackSummary struct {
	Default  uint32 `json:"default" yaml:"default"`
	Constant uint32 `json:"constant" yaml:"constant"`
	Animated uint32 `json:"animated" yaml:"animated"`
}

type ClipInfo struct {
	Name        string  `json:"name,omitempty" yaml:"name,omitempty"`
	Hash        uint32  `json:"hash" yaml:"hash"`
	Size        uint32  `json:"size" yaml:"size"`
	Version     uint16  `json:"version" yaml:"version"`
	Algorithm   string  `json:"algorithm" yaml:"algorithm"`
	NumBones    uint32  `json:"num_bones" yaml:"num_bones"`
	NumSamples  uint32  `json:"num_samples" yaml:"num_samples"`
	SampleRate  float32 `json:"sample_rate" yaml:"sample_rate"`
	Duration    float32 `json:"duration" yaml:"duration"`
	HasScale    bool    `json:"has_scale" yaml:"has_scale"`
	HasDatabase bool    `json:"has_database" yaml:"has_database"`
	NumSegments uint16  `json:"num_segments,omitempty" yaml:"num_segments,omitempty"`

	RotationFormat    string `json:"rotation_format" yaml:"rotation_format"`
	TranslationFormat string `json:"translation_format" yaml:"translation_format"`
	ScaleFormat       string `json:"scale_format,omitempty" yaml:"scale_format,omitempty"`

	Rotations    TrackSummary  `json:"rotations" yaml:"rotations"`
	Translations TrackSummary  `json:"translations" yaml:"translations"`
	Scales       *TrackSummary `json:"scales,omitempty" yaml:"scales,omitempty"`

	// regions of the buffer sharing bytes, a well formed clip has none
	Overlaps []string `json:"overlaps,omitempty" yaml:"overlaps,omitempty"`
}

func summary(counts clip.TrackCounts, category clip.TrackCategory) TrackSummary {
	return TrackSummary{
		Default:  counts.Default[category],
		Constant: counts.Constant[category],
		Animated: counts.Animated[category],
	}
}

// Describe summarizes a validated clip.
func Describe(c *clip.Clip) (*ClipInfo, error) {
	if err := c.Validate(true); err != nil {
		return nil, err
	}
	name, err := c.ClipName()
	if err != nil {
		return nil, errors.Wrap(err, "clip name")
	}

	counts := c.TrackCounts()
	info := &ClipInfo{
		Name:         name,
		Hash:         c.Hash(),
		Size:         c.Size(),
		Version:      c.Version(),
		Algorithm:    c.Algorithm().String(),
		Rotations:    summary(counts, clip.CategoryRotation),
		Translations: summary(counts, clip.CategoryTranslation),
	}

	switch c.Algorithm() {
	case clip.AlgorithmFullPrecision:
		h := c.FullPrecisionHeader()
		info.NumBones = uint32(h.NumBones)
		info.NumSamples = h.NumSamples
		info.SampleRate = float32(h.SampleRate)
		info.RotationFormat = clip.QuatfFull.String()
		info.TranslationFormat = clip.Vector3fFull.String()
	case clip.AlgorithmUniformlySampled:
		h := c.UniformHeader()
		info.NumBones = h.NumBones
		info.NumSamples = h.NumSamples
		info.SampleRate = h.SampleRate
		info.HasScale = h.HasScale
		info.HasDatabase = h.HasDatabase
		info.NumSegments = h.NumSegments
		info.RotationFormat = h.RotationFormat.String()
		info.TranslationFormat = h.TranslationFormat.String()
		if h.HasScale {
			info.ScaleFormat = h.ScaleFormat.String()
			scales := summary(counts, clip.CategoryScale)
			info.Scales = &scales
		}
	}
	info.Duration = sampling.ClipDuration(info.NumSamples, info.SampleRate)
	for _, o := range c.Layout().Overlaps() {
		info.Overlaps = append(info.Overlaps, o.String())
	}
	return info, nil
}
