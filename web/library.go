package web

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mogaika/anim_decompressor/clip"
	"github.com/mogaika/anim_decompressor/database"
	"github.com/mogaika/anim_decompressor/sampler"
	"github.com/mogaika/anim_decompressor/status"
)

const ClipExtension = ".clip"

var (
	ErrUnknownClip = errors.New("unknown clip")
	ErrInvalidName = errors.New("invalid clip name")
)

// TierFileName is the name of the zstd compressed tier file stored next to a database backed clip.
func TierFileName(name string, tier uint8) string {
	return fmt.Sprintf("%s.tier%d", name, tier)
}

// SaveClipFiles writes a clip and its raw tiers into dir the way Library.Load expects them.
func SaveClipFiles(dir, name string, buf []byte, tiers [][]byte) error {
	if err := os.WriteFile(filepath.Join(dir, name+ClipExtension), buf, 0644); err != nil {
		return errors.Wrapf(err, "Cannot write clip %q", name)
	}
	for i, data := range tiers {
		if len(data) == 0 {
			continue
		}
		path := filepath.Join(dir, TierFileName(name, uint8(i)))
		if err := os.WriteFile(path, database.CompressTier(data), 0644); err != nil {
			return errors.Wrapf(err, "Cannot write tier %d of %q", i, name)
		}
	}
	return nil
}

type Entry struct {
	Name  string
	Clip  *clip.Clip
	Info  *sampler.ClipInfo
	Tiers []uint8
}

// usedTiers lists the database tiers referenced by the segments of a clip.
func usedTiers(c *clip.Clip) []uint8 {
	if c.Algorithm() != clip.AlgorithmUniformlySampled {
		return nil
	}
	h := c.UniformHeader()
	if !h.HasDatabase {
		return nil
	}
	seen := make(map[uint8]bool)
	tiers := make([]uint8, 0)
	for i := uint32(0); i < uint32(h.NumSegments); i++ {
		tier := c.SegmentHeader(&h, i).Tier
		if !seen[tier] {
			seen[tier] = true
			tiers = append(tiers, tier)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}

func (e *Entry) HasTier(tier uint8) bool {
	for _, t := range e.Tiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Library holds the clips of one directory. Tiers of database backed clips are registered
// in the shared database, none of them resident until streamed in.
type Library struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]*Entry

	db     *database.Database
	hub    *status.Hub
	logger *zap.Logger
}

func NewLibrary(dir string, db *database.Database, hub *status.Hub, logger *zap.Logger) *Library {
	return &Library{
		dir:     dir,
		entries: make(map[string]*Entry),
		db:      db,
		hub:     hub,
		logger:  logger.With(zap.String("service", "library")),
	}
}

func (l *Library) Database() *database.Database {
	return l.db
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, `/\`) && name != "." && name != ".."
}

// Load adds every clip of the directory. A broken clip is logged and skipped.
func (l *Library) Load() error {
	files, err := filepath.Glob(filepath.Join(l.dir, "*"+ClipExtension))
	if err != nil {
		return errors.Wrapf(err, "Cannot list %q", l.dir)
	}
	sort.Strings(files)

	for i, path := range files {
		name := strings.TrimSuffix(filepath.Base(path), ClipExtension)
		l.hub.Progress(float32(i)/float32(len(files)), "Loading %s", name)

		data, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("Cannot read clip", zap.String("path", path), zap.Error(err))
			continue
		}
		if _, err := l.add(name, data); err != nil {
			l.logger.Warn("Skipping clip", zap.String("path", path), zap.Error(err))
			continue
		}
	}
	l.hub.Info("Loaded %d clips from %s", len(l.Names()), l.dir)
	return nil
}

// prepare parses a clip and reads its tier files without touching the library.
func (l *Library) prepare(name string, data []byte) (*Entry, map[uint8][]byte, error) {
	if !validName(name) {
		return nil, nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	c, err := clip.New(data)
	if err != nil {
		return nil, nil, err
	}
	info, err := sampler.Describe(c)
	if err != nil {
		return nil, nil, err
	}

	e := &Entry{Name: name, Clip: c, Info: info, Tiers: usedTiers(c)}
	tiers := make(map[uint8][]byte, len(e.Tiers))
	for _, tier := range e.Tiers {
		compressed, err := os.ReadFile(filepath.Join(l.dir, TierFileName(name, tier)))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Cannot read tier %d", tier)
		}
		tiers[tier] = compressed
	}
	return e, tiers, nil
}

// holdsHash reports whether any entry uses the clip hash. Caller holds l.mu.
func (l *Library) holdsHash(hash uint32) bool {
	for _, e := range l.entries {
		if e.Clip.Hash() == hash {
			return true
		}
	}
	return false
}

// commit inserts a prepared entry. Tiers are shared by every entry with the same clip hash,
// they are registered by the first one and unregistered with the last one.
func (l *Library) commit(e *Entry, tiers map[uint8][]byte) {
	hash := e.Clip.Hash()

	l.mu.Lock()
	old, replaced := l.entries[e.Name]
	if !l.holdsHash(hash) {
		for tier, compressed := range tiers {
			l.db.Register(hash, tier, compressed)
		}
	}
	l.entries[e.Name] = e
	if replaced && old.Clip.Hash() != hash && !l.holdsHash(old.Clip.Hash()) {
		l.db.Unregister(old.Clip.Hash())
	}
	l.mu.Unlock()

	l.logger.Debug("Clip added", zap.String("name", e.Name),
		zap.Uint32("hash", hash), zap.Int("tiers", len(e.Tiers)))
}

func (l *Library) add(name string, data []byte) (*Entry, error) {
	e, tiers, err := l.prepare(name, data)
	if err != nil {
		return nil, err
	}
	l.commit(e, tiers)
	return e, nil
}

// Save stores an uploaded clip on disk and adds it. Tier files of database backed clips
// must already be in the directory. Nothing changes when the clip cannot be written.
func (l *Library) Save(name string, data []byte) (*Entry, error) {
	e, tiers, err := l.prepare(name, data)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(l.dir, name+ClipExtension), data, 0644); err != nil {
		return nil, errors.Wrapf(err, "Cannot write clip %q", name)
	}
	l.commit(e, tiers)
	l.hub.Info("Clip %s uploaded", name)
	return e, nil
}

func (l *Library) Get(name string) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if e, ok := l.entries[name]; ok {
		return e, nil
	}
	return nil, errors.Wrapf(ErrUnknownClip, "%q", name)
}

func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.entries))
	for name := range l.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StreamTier moves one tier of a clip in or out of the database.
func (l *Library) StreamTier(name string, tier uint8, in bool) error {
	e, err := l.Get(name)
	if err != nil {
		return err
	}
	if !e.HasTier(tier) {
		return errors.Wrapf(database.ErrUnknownTier, "clip %q tier %d", name, tier)
	}
	if in {
		if err := l.db.StreamIn(e.Clip.Hash(), tier); err != nil {
			l.hub.Error("Stream in of %s tier %d failed: %v", name, tier, err)
			return err
		}
		l.hub.Info("Streamed in %s tier %d", name, tier)
	} else {
		l.db.StreamOut(e.Clip.Hash(), tier)
		l.hub.Info("Streamed out %s tier %d", name, tier)
	}
	return nil
}

// TierStatus reports residency per tier of a clip.
func (l *Library) TierStatus(e *Entry) map[uint8]bool {
	res := make(map[uint8]bool, len(e.Tiers))
	for _, tier := range e.Tiers {
		res[tier] = l.db.IsResident(e.Clip.Hash(), tier)
	}
	return res
}
