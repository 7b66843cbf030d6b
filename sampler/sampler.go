// Package sampler picks the decoder matching a clip and a settings name at runtime,
// for tools that cannot know the clip formats at compile time.
package sampler

import (
	"github.com/pkg/errors"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/config"
	"github.com/mogaika/anim_decompressor/decompression"
	"github.com/mogaika/anim_decompressor/fullprecision"
	"github.com/mogaika/anim_decompressor/pose"
	"github.com/mogaika/anim_decompressor/sampling"
)

var (
	ErrUnknownSettings = errors.New("unknown decompression settings")
	ErrNotResident     = errors.New("clip data for this time is not resident")
)

// MaxFrames caps the length of SampleTimes whatever the clip duration.
const MaxFrames = 1 << 16

// Settings names accepted by New.
const (
	SettingsDefault  = "default"
	SettingsVariable = "variable"
	SettingsFull     = "full"
)

func SettingsNames() []string {
	return []string{SettingsDefault, SettingsVariable, SettingsFull}
}

type contextDecoder interface {
	BindWithDatabase(c *clip.Clip, db decompression.Database) error
	Seek(sampleTime float32) bool
	DecompressPose(w pose.Writer)
	Duration() float32
	NumBones() uint32
}

func newContext(settings string) (contextDecoder, error) {
	switch settings {
	case SettingsDefault, "":
		return decompression.NewContext[decompression.DefaultSettings](), nil
	case SettingsVariable:
		return decompression.NewContext[decompression.VariableSettings](), nil
	case SettingsFull:
		return decompression.NewContext[decompression.FullSettings](), nil
	default:
		return nil, errors.Wrapf(ErrUnknownSettings, "%q", settings)
	}
}

// Sampler decodes whole poses of one clip. Not safe for concurrent use.
type Sampler struct {
	clip     *clip.Clip
	ctx      contextDecoder
	numBones uint32
	duration float32
}

// New binds c. Full precision clips go through the reference decoder and ignore settings,
// db is only needed for database backed clips.
func New(c *clip.Clip, settings string, db decompression.Database) (*Sampler, error) {
	if c == nil {
		return nil, decompression.ErrNilClip
	}
	if err := c.Validate(false); err != nil {
		return nil, err
	}

	s := &Sampler{clip: c}
	if c.Algorithm() == clip.AlgorithmFullPrecision {
		h := c.FullPrecisionHeader()
		s.numBones = uint32(h.NumBones)
		s.duration = sampling.ClipDuration(h.NumSamples, float32(h.SampleRate))
		return s, nil
	}

	ctx, err := newContext(settings)
	if err != nil {
		return nil, err
	}
	if err := ctx.BindWithDatabase(c, db); err != nil {
		return nil, err
	}
	s.ctx = ctx
	s.numBones = ctx.NumBones()
	s.duration = ctx.Duration()
	return s, nil
}

func (s *Sampler) Clip() *clip.Clip {
	return s.clip
}

func (s *Sampler) NumBones() uint32 {
	return s.numBones
}

func (s *Sampler) Duration() float32 {
	return s.duration
}

// Sample writes the pose at sampleTime into w.
func (s *Sampler) Sample(sampleTime float32, w pose.Writer) error {
	if s.ctx == nil {
		fullprecision.Decode(s.clip, sampleTime, w)
		return nil
	}
	if !s.ctx.Seek(sampleTime) {
		return errors.Wrapf(ErrNotResident, "time %v", sampleTime)
	}
	s.ctx.DecompressPose(w)
	return nil
}

// Pose returns a new pose sampled at sampleTime.
func (s *Sampler) Pose(sampleTime float32) (*pose.Pose, error) {
	p := pose.New(s.numBones)
	if err := s.Sample(sampleTime, p); err != nil {
		return nil, err
	}
	return p, nil
}

// SampleTimes returns the times of a playback at fps covering the whole clip, end included.
// Rates above config.MaxFramesPerSecond are clamped, and so is the frame count.
func SampleTimes(duration float32, fps float32) []float32 {
	if !(duration > 0 && fps > 0) {
		return []float32{0}
	}
	if fps > config.MaxFramesPerSecond {
		fps = config.MaxFramesPerSecond
	}
	step := 1 / fps
	if duration/step > MaxFrames {
		step = duration / MaxFrames
	}
	count := int(duration/step) + 1
	times := make([]float32, 0, count+1)
	for i := 0; i < count; i++ {
		times = append(times, float32(i)*step)
	}
	if times[len(times)-1] < duration {
		times = append(times, duration)
	}
	return times
}

// SampleAll returns the poses at every time of SampleTimes.
func (s *Sampler) SampleAll(fps float32) ([]float32, []*pose.Pose, error) {
	times := SampleTimes(s.duration, fps)
	poses := make([]*pose.Pose, len(times))
	for i, t := range times {
		p, err := s.Pose(t)
		if err != nil {
			return nil, nil, err
		}
		poses[i] = p
	}
	return times, poses, nil
}
