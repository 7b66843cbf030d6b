// Package sampling maps playback time to the pair of uniformly spaced samples that surround it.
package sampling

import "math"

// ClipDuration returns the time between the first and the last sample.
func ClipDuration(numSamples uint32, sampleRate float32) float32 {
	if numSamples < 2 || sampleRate <= 0 {
		return 0
	}
	return float32(numSamples-1) / sampleRate
}

// ResolveKeys returns the two samples to interpolate between at sampleTime and the blend
// factor in [0, 1]. Times outside of [0, duration] clamp to the first or last sample with a
// zero blend factor.
func ResolveKeys(numSamples uint32, duration float32, sampleTime float32) (key0, key1 uint32, alpha float32) {
	if numSamples == 0 || sampleTime <= 0 {
		return 0, 0, 0
	}

	lastSample := numSamples - 1
	if sampleTime >= duration {
		return lastSample, lastSample, 0
	}

	position := float64(sampleTime) / float64(duration) * float64(lastSample)
	whole := math.Floor(position)

	key0 = uint32(whole)
	if key0 >= lastSample {
		return lastSample, lastSample, 0
	}
	key1 = key0 + 1

	alpha = float32(position - whole)
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}
	return key0, key1, alpha
}
