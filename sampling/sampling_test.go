package sampling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClipDuration(t *testing.T) {
	assert.InDelta(t, 1.0/30.0, ClipDuration(2, 30), 1e-7)
	assert.Equal(t, float32(1), ClipDuration(31, 30))
	assert.Equal(t, float32(0), ClipDuration(1, 30))
	assert.Equal(t, float32(0), ClipDuration(0, 30))
}

func TestResolveKeysBoundaries(t *testing.T) {
	duration := ClipDuration(11, 10)

	key0, key1, alpha := ResolveKeys(11, duration, 0)
	require.Equal(t, []interface{}{uint32(0), uint32(0), float32(0)}, []interface{}{key0, key1, alpha})

	key0, key1, alpha = ResolveKeys(11, duration, -3)
	require.Equal(t, []interface{}{uint32(0), uint32(0), float32(0)}, []interface{}{key0, key1, alpha})

	key0, key1, alpha = ResolveKeys(11, duration, duration)
	require.Equal(t, []interface{}{uint32(10), uint32(10), float32(0)}, []interface{}{key0, key1, alpha})

	key0, key1, alpha = ResolveKeys(11, duration, duration+5)
	require.Equal(t, []interface{}{uint32(10), uint32(10), float32(0)}, []interface{}{key0, key1, alpha})
}

func TestResolveKeysInterior(t *testing.T) {
	duration := ClipDuration(11, 10)

	key0, key1, alpha := ResolveKeys(11, duration, 0.25)
	require.Equal(t, uint32(2), key0)
	require.Equal(t, uint32(3), key1)
	require.InDelta(t, 0.5, alpha, 1e-5)

	for i := 1; i < 1000; i++ {
		sampleTime := duration * float32(i) / 1000
		key0, key1, alpha := ResolveKeys(11, duration, sampleTime)
		require.LessOrEqual(t, key0, key1)
		require.Less(t, key1, uint32(11))
		require.GreaterOrEqual(t, alpha, float32(0))
		require.LessOrEqual(t, alpha, float32(1))
		if key0 != key1 {
			require.Equal(t, key0+1, key1)
		}
	}
}

func TestResolveKeysSingleSample(t *testing.T) {
	key0, key1, alpha := ResolveKeys(1, 0, 0.5)
	require.Equal(t, uint32(0), key0)
	require.Equal(t, uint32(0), key1)
	require.Equal(t, float32(0), alpha)
}
