// Package database keeps the animated data of database backed clips. Tiers are registered
// zstd compressed and decompressed on stream in, decoders only ever see resident tiers.
// Which tiers are resident is up to the caller.
package database

import (
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mogaika/anim_decompressor/decompression"
)

var (
	ErrUnknownTier = errors.New("tier is not registered")
	ErrCorruptTier = errors.New("tier payload cannot be decompressed")
)

var _ decompression.Database = (*Database)(nil)

type tierKey struct {
	clipHash uint32
	tier     uint8
}

type tier struct {
	compressed []byte
	resident   []byte
}

// Database is safe for concurrent use. Blobs returned by TierData stay valid after
// StreamOut, the database only drops its own reference.
type Database struct {
	mu    sync.RWMutex
	tiers map[tierKey]*tier

	decoder *zstd.Decoder
	logger  *zap.Logger
	metrics *metrics
}

func New() *Database {
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderLowmem(true))
	if err != nil {
		panic(err)
	}
	return &Database{
		tiers:   make(map[tierKey]*tier),
		decoder: decoder,
		logger:  zap.NewNop(),
		metrics: newMetrics(nil),
	}
}

// WithLogger sets the logger of the database. It must be called before the database is shared.
func (db *Database) WithLogger(l *zap.Logger) {
	db.logger = l.With(zap.String("service", "anim_database"))
}

// PrometheusCollectors returns the metrics of this database.
func (db *Database) PrometheusCollectors() []prometheus.Collector {
	return db.metrics.PrometheusCollectors()
}

func (db *Database) Close() {
	db.decoder.Close()
}

var encoderPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderConcurrency(1),
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
		if err != nil {
			panic(err)
		}
		return enc
	},
}

// CompressTier produces the payload Register expects.
func CompressTier(data []byte) []byte {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)
	return enc.EncodeAll(data, nil)
}

// Register makes a compressed tier known. A tier registered again is replaced and evicted.
func (db *Database) Register(clipHash uint32, tierIndex uint8, compressed []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()

	key := tierKey{clipHash, tierIndex}
	if old, ok := db.tiers[key]; ok {
		db.evict(old)
	} else {
		db.metrics.Registered.Inc()
	}
	db.tiers[key] = &tier{compressed: compressed}
}

// StreamIn decompresses a registered tier and makes it visible to decoders.
func (db *Database) StreamIn(clipHash uint32, tierIndex uint8) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t, ok := db.tiers[tierKey{clipHash, tierIndex}]
	if !ok {
		db.metrics.StreamIns.WithLabelValues("error").Inc()
		return errors.Wrapf(ErrUnknownTier, "clip 0x%.8x tier %d", clipHash, tierIndex)
	}
	if t.resident != nil {
		return nil
	}

	data, err := db.decoder.DecodeAll(t.compressed, nil)
	if err != nil {
		db.metrics.StreamIns.WithLabelValues("error").Inc()
		db.logger.Error("Tier stream in failed",
			zap.Uint32("clip_hash", clipHash), zap.Uint8("tier", tierIndex), zap.Error(err))
		return errors.Wrapf(ErrCorruptTier, "clip 0x%.8x tier %d: %v", clipHash, tierIndex, err)
	}
	if data == nil {
		data = []byte{}
	}
	t.resident = data

	db.metrics.StreamIns.WithLabelValues("ok").Inc()
	db.metrics.Resident.Inc()
	db.metrics.ResidentBytes.Add(float64(len(data)))
	db.logger.Debug("Tier streamed in",
		zap.Uint32("clip_hash", clipHash), zap.Uint8("tier", tierIndex), zap.Int("bytes", len(data)))
	return nil
}

func (db *Database) evict(t *tier) bool {
	if t.resident == nil {
		return false
	}
	db.metrics.Resident.Dec()
	db.metrics.ResidentBytes.Sub(float64(len(t.resident)))
	db.metrics.StreamOuts.Inc()
	t.resident = nil
	return true
}

// StreamOut drops the decompressed data of a tier, it stays registered.
func (db *Database) StreamOut(clipHash uint32, tierIndex uint8) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if t, ok := db.tiers[tierKey{clipHash, tierIndex}]; ok && db.evict(t) {
		db.logger.Debug("Tier streamed out", zap.Uint32("clip_hash", clipHash), zap.Uint8("tier", tierIndex))
	}
}

// Unregister forgets every tier of a clip.
func (db *Database) Unregister(clipHash uint32) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for key, t := range db.tiers {
		if key.clipHash == clipHash {
			db.evict(t)
			delete(db.tiers, key)
			db.metrics.Registered.Dec()
		}
	}
}

func (db *Database) IsResident(clipHash uint32, tierIndex uint8) bool {
	_, ok := db.TierData(clipHash, tierIndex)
	return ok
}

// TierData returns the resident data of a tier.
func (db *Database) TierData(clipHash uint32, tierIndex uint8) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	t, ok := db.tiers[tierKey{clipHash, tierIndex}]
	if !ok || t.resident == nil {
		db.metrics.misses.Inc()
		return nil, false
	}
	db.metrics.hits.Inc()
	return t.resident, true
}
