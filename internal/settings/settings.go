// Package settings exposes the public site feature toggles.
package settings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/thejerf/abtime"
	"golang.org/x/sync/singleflight"

	"github.com/dealerhub/admingate/internal/observability/logger"
)

// Known setting keys.
const (
	KeyListenToContent    = "listen_to_content_enabled"
	KeyEngineSoundSection = "engine_sound_section_enabled"
)

// ErrUnknownKey is returned when updating a key that is not a known setting.
var ErrUnknownKey = errors.New("unknown setting key")

// SiteSettings is the public view of the feature toggles.
type SiteSettings struct {
	ListenToContentEnabled    bool `json:"listen_to_content_enabled"`
	EngineSoundSectionEnabled bool `json:"engine_sound_section_enabled"`
}

// Defaults returns the settings used when a key has never been stored.
func Defaults() SiteSettings {
	return SiteSettings{
		ListenToContentEnabled:    true,
		EngineSoundSectionEnabled: true,
	}
}

// IsKnownKey reports whether key names a setting.
func IsKnownKey(key string) bool {
	return key == KeyListenToContent || key == KeyEngineSoundSection
}

// FromRows overlays stored values on the defaults. Unknown rows are ignored.
func FromRows(rows map[string]bool) SiteSettings {
	s := Defaults()
	if v, ok := rows[KeyListenToContent]; ok {
		s.ListenToContentEnabled = v
	}
	if v, ok := rows[KeyEngineSoundSection]; ok {
		s.EngineSoundSectionEnabled = v
	}
	return s
}

// Repository persists settings rows.
type Repository interface {
	List(ctx context.Context) (map[string]bool, error)
	Upsert(ctx context.Context, key string, value bool, updatedBy string) error
}

// Cache serves settings from memory for a bounded TTL.
// On a store error it keeps serving the last good value, or the defaults.
type Cache struct {
	repo  Repository
	ttl   time.Duration
	clock abtime.AbstractTime
	loads singleflight.Group

	mu        sync.Mutex
	current   SiteSettings
	loaded    bool
	fetchedAt time.Time
	gen       uint64
}

// NewCache creates a settings cache. A zero ttl reads through on every call.
func NewCache(repo Repository, ttl time.Duration, clock abtime.AbstractTime) *Cache {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &Cache{repo: repo, ttl: ttl, clock: clock, current: Defaults()}
}

// Get returns the current settings. Concurrent reloads share one store read
// and the lock is not held while it runs.
func (c *Cache) Get(ctx context.Context) SiteSettings {
	c.mu.Lock()
	now := c.clock.Now()
	if c.loaded && now.Sub(c.fetchedAt) < c.ttl {
		cur := c.current
		c.mu.Unlock()
		return cur
	}
	gen := c.gen
	c.mu.Unlock()

	// Keyed by generation so a read started before Invalidate is never
	// shared with callers that arrive after it.
	v, err, _ := c.loads.Do(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.repo.List(ctx)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		slog.WarnContext(ctx, "settings load failed, serving cached values",
			logger.Component("settings"),
			logger.Error(err),
		)
		return c.current
	}

	fresh := FromRows(v.(map[string]bool))
	if c.gen == gen {
		c.current = fresh
		c.loaded = true
		c.fetchedAt = now
	}
	return fresh
}

// Update validates and stores a single setting, then drops the cached copy.
func (c *Cache) Update(ctx context.Context, key string, value bool, updatedBy string) error {
	if !IsKnownKey(key) {
		return ErrUnknownKey
	}
	if err := c.repo.Upsert(ctx, key, value, updatedBy); err != nil {
		return err
	}
	c.Invalidate()
	return nil
}

// Invalidate forces the next Get to reload from the store.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.gen++
	c.mu.Unlock()
}
