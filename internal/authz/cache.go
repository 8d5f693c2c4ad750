// Copyright 2026 The Admingate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package authz

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/thejerf/abtime"
)

type cachedRecord struct {
	record    Record
	expiresAt time.Time
}

// CachedLookup memoises found records for a bounded TTL.
// Misses are never cached so a newly granted role takes effect immediately.
type CachedLookup struct {
	next  Lookuper
	ttl   time.Duration
	clock abtime.AbstractTime
	cache *lru.Cache[string, cachedRecord]
}

// NewCachedLookup wraps next with an LRU of the given size.
func NewCachedLookup(next Lookuper, size int, ttl time.Duration, clock abtime.AbstractTime) (*CachedLookup, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("cache ttl must be positive, got %s", ttl)
	}
	cache, err := lru.New[string, cachedRecord](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization cache: %w", err)
	}
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &CachedLookup{next: next, ttl: ttl, clock: clock, cache: cache}, nil
}

// Lookup implements Lookuper.
func (c *CachedLookup) Lookup(ctx context.Context, principalID string) (Record, bool) {
	now := c.clock.Now()
	if entry, ok := c.cache.Get(principalID); ok {
		if now.Before(entry.expiresAt) {
			return entry.record, true
		}
		c.cache.Remove(principalID)
	}

	rec, ok := c.next.Lookup(ctx, principalID)
	if ok && ctx.Err() == nil {
		c.cache.Add(principalID, cachedRecord{record: rec, expiresAt: now.Add(c.ttl)})
	}
	return rec, ok
}

// Invalidate drops the cached record for principalID.
func (c *CachedLookup) Invalidate(principalID string) {
	c.cache.Remove(principalID)
}

// Purge drops every cached record.
func (c *CachedLookup) Purge() {
	c.cache.Purge()
}
