package flagpole

import (
	"encoding/json"
	"sync"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

// FlagCache is a concurrent store for the most recent flag definitions
// snapshot, plus the group-type mapping and cohort side tables that ship with
// it. Snapshots are replaced wholesale, never merged, so a reader always
// observes one consistent set of definitions.
type FlagCache struct {
	mu               sync.RWMutex
	flags            map[string]*flagengine.FeatureFlag
	order            []*flagengine.FeatureFlag
	groupTypeMapping map[string]string
	cohorts          map[string]json.RawMessage
}

// NewFlagCache returns an empty cache.
func NewFlagCache() *FlagCache {
	return &FlagCache{}
}

// Replace atomically installs snapshot, discarding the previous contents.
// The lookup tables are built before the lock is taken; only the swap itself
// is guarded, so in-flight readers see either the old snapshot or the new
// one, never a mix.
func (c *FlagCache) Replace(snapshot *flagengine.Snapshot) {
	flags := make(map[string]*flagengine.FeatureFlag, len(snapshot.Flags))
	order := make([]*flagengine.FeatureFlag, 0, len(snapshot.Flags))
	for _, flag := range snapshot.Flags {
		flags[flag.Key] = flag
		order = append(order, flag)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = flags
	c.order = order
	c.groupTypeMapping = snapshot.GroupTypeMapping
	c.cohorts = snapshot.Cohorts
}

// GetFlag returns the cached definition for key, if any.
func (c *FlagCache) GetFlag(key string) (*flagengine.FeatureFlag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	flag, ok := c.flags[key]
	return flag, ok
}

// GetAllFlags returns the cached flags in snapshot order. The returned slice
// is a copy and is safe to iterate without holding any lock.
func (c *FlagCache) GetAllFlags() []*flagengine.FeatureFlag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	flags := make([]*flagengine.FeatureFlag, len(c.order))
	copy(flags, c.order)
	return flags
}

// flagsSnapshot returns the current flag lookup table. The map is replaced
// wholesale on every Replace and never mutated in place, so callers may read
// it without further locking but must not modify it.
func (c *FlagCache) flagsSnapshot() map[string]*flagengine.FeatureFlag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.flags
}

// GroupTypeMapping returns a copy of the cached group-type mapping.
func (c *FlagCache) GroupTypeMapping() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	mapping := make(map[string]string, len(c.groupTypeMapping))
	for k, v := range c.groupTypeMapping {
		mapping[k] = v
	}
	return mapping
}

// GetCohort returns the opaque cohort definition for id, if cached.
func (c *FlagCache) GetCohort(id string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cohort, ok := c.cohorts[id]
	return cohort, ok
}

// Len returns the number of cached flags.
func (c *FlagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.flags)
}

// Clear empties all tables.
func (c *FlagCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flags = nil
	c.order = nil
	c.groupTypeMapping = nil
	c.cohorts = nil
}
