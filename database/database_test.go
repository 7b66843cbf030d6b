package database

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/decompression"
	"github.com/mogaika/anim_decompressor/internal/clipbuilder"
	"github.com/mogaika/anim_decompressor/pose"
)

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		var total float64
		for _, m := range family.GetMetric() {
			total += m.GetGauge().GetValue() + m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestStreaming(t *testing.T) {
	db := New()
	defer db.Close()
	db.WithLogger(zaptest.NewLogger(t))

	reg := prometheus.NewRegistry()
	reg.MustRegister(db.PrometheusCollectors()...)

	payload := []byte("animated data of the coarsest tier")
	db.Register(0xabcd, 0, CompressTier(payload))
	db.Register(0xabcd, 1, []byte("not zstd"))

	_, ok := db.TierData(0xabcd, 0)
	require.False(t, ok)

	require.NoError(t, db.StreamIn(0xabcd, 0))
	data, ok := db.TierData(0xabcd, 0)
	require.True(t, ok)
	require.Equal(t, payload, data)
	require.True(t, db.IsResident(0xabcd, 0))
	require.Equal(t, float64(len(payload)), gaugeValue(t, reg, "anim_database_resident_bytes"))

	// streaming in twice keeps the same blob
	require.NoError(t, db.StreamIn(0xabcd, 0))
	again, _ := db.TierData(0xabcd, 0)
	require.Same(t, &data[0], &again[0])

	require.Equal(t, ErrCorruptTier, errors.Cause(db.StreamIn(0xabcd, 1)))
	require.False(t, db.IsResident(0xabcd, 1))
	require.Equal(t, ErrUnknownTier, errors.Cause(db.StreamIn(0x1234, 0)))

	db.StreamOut(0xabcd, 0)
	require.False(t, db.IsResident(0xabcd, 0))
	require.Equal(t, payload, data, "evicted blobs stay valid for their readers")
	require.Zero(t, gaugeValue(t, reg, "anim_database_resident_bytes"))
	require.Equal(t, float64(2), gaugeValue(t, reg, "anim_database_tiers_registered"))
	require.Equal(t, float64(1), gaugeValue(t, reg, "anim_database_stream_out_total"))

	db.Unregister(0xabcd)
	require.Zero(t, gaugeValue(t, reg, "anim_database_tiers_registered"))
	require.Equal(t, ErrUnknownTier, errors.Cause(db.StreamIn(0xabcd, 0)))
}

func TestRegisterReplacesTier(t *testing.T) {
	db := New()
	defer db.Close()

	db.Register(1, 0, CompressTier([]byte{1, 2, 3}))
	require.NoError(t, db.StreamIn(1, 0))
	db.Register(1, 0, CompressTier([]byte{4, 5}))
	require.False(t, db.IsResident(1, 0))

	require.NoError(t, db.StreamIn(1, 0))
	data, ok := db.TierData(1, 0)
	require.True(t, ok)
	require.Equal(t, []byte{4, 5}, data)
}

func TestDecodeThroughDatabase(t *testing.T) {
	const numSamples = 8
	bone := clipbuilder.IdentityBone(numSamples)
	for i := range bone.Rotations {
		bone.Rotations[i] = mgl32.QuatRotate(0.2*float32(i), mgl32.Vec3{0, 0, 1})
		bone.Translations[i] = mgl32.Vec3{0, 0.1 * float32(i), 0}
	}
	d := clipbuilder.Description{SampleRate: 8, NumSamples: numSamples, Bones: []clipbuilder.BoneSamples{bone}}
	built := clipbuilder.Uniform(d, clipbuilder.UniformSettings{
		RotationFormat:    clip.QuatfDropWVariable,
		TranslationFormat: clip.Vector3fVariable,
		RangeReduction:    clip.RangeReductionRotations | clip.RangeReductionTranslations,
		SegmentSize:       4,
		Database:          true,
	})
	c, err := clip.New(built.Buffer)
	require.NoError(t, err)

	db := New()
	defer db.Close()
	for tierIndex, data := range built.Tiers {
		db.Register(c.Hash(), uint8(tierIndex), CompressTier(data))
	}

	ctx := decompression.NewContext[decompression.VariableSettings]()
	require.NoError(t, ctx.BindWithDatabase(c, db))
	require.False(t, ctx.Seek(0))

	require.NoError(t, db.StreamIn(c.Hash(), 0))
	require.True(t, ctx.Seek(0.25))
	require.False(t, ctx.Seek(0.75))

	require.NoError(t, db.StreamIn(c.Hash(), 1))
	require.True(t, ctx.Seek(0.75))
	p := pose.New(1)
	ctx.DecompressPose(p)
	require.InDelta(t, 0.6, p.Bones[0].Translation[1], 1e-3)
}
