package flagpole

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
	"github.com/flagpole-io/flagpole-go-client/fixtures"
)

func fixtureSnapshot(t *testing.T) *flagengine.Snapshot {
	t.Helper()
	snapshot := new(flagengine.Snapshot)
	require.NoError(t, json.Unmarshal([]byte(fixtures.DefinitionsJson), snapshot))
	return snapshot
}

func TestCacheReplaceAndLookup(t *testing.T) {
	cache := NewFlagCache()
	snapshot := fixtureSnapshot(t)

	cache.Replace(snapshot)

	assert.Equal(t, len(snapshot.Flags), cache.Len())

	flag, ok := cache.GetFlag("simple-flag")
	require.True(t, ok)
	assert.Equal(t, "simple-flag", flag.Key)

	_, ok = cache.GetFlag("no-such-flag")
	assert.False(t, ok)

	all := cache.GetAllFlags()
	require.Len(t, all, len(snapshot.Flags))
	for i, flag := range all {
		assert.Equal(t, snapshot.Flags[i].Key, flag.Key, "GetAllFlags preserves snapshot order")
	}
}

func TestCacheReplaceDiscardsPreviousSnapshot(t *testing.T) {
	cache := NewFlagCache()
	cache.Replace(fixtureSnapshot(t))
	require.Greater(t, cache.Len(), 1)

	cache.Replace(&flagengine.Snapshot{
		Flags: []*flagengine.FeatureFlag{{Key: "only-flag", Active: true}},
	})

	assert.Equal(t, 1, cache.Len())
	_, ok := cache.GetFlag("simple-flag")
	assert.False(t, ok)
}

func TestCacheSideTables(t *testing.T) {
	cache := NewFlagCache()
	cache.Replace(fixtureSnapshot(t))

	mapping := cache.GroupTypeMapping()
	assert.Equal(t, "company", mapping["0"])
	// Mutating the returned copy must not affect the cache.
	mapping["0"] = "tampered"
	assert.Equal(t, "company", cache.GroupTypeMapping()["0"])

	cohort, ok := cache.GetCohort("42")
	require.True(t, ok)
	assert.JSONEq(t, `{"type": "AND", "values": []}`, string(cohort))

	_, ok = cache.GetCohort("99")
	assert.False(t, ok)
}

func TestCacheClear(t *testing.T) {
	cache := NewFlagCache()
	cache.Replace(fixtureSnapshot(t))
	require.Greater(t, cache.Len(), 0)

	cache.Clear()

	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, cache.GetAllFlags())
}

// markerSnapshot builds a snapshot where every flag key carries the same
// generation marker, so a torn read is detectable.
func markerSnapshot(generation, size int) *flagengine.Snapshot {
	flags := make([]*flagengine.FeatureFlag, size)
	for i := range flags {
		flags[i] = &flagengine.FeatureFlag{
			Key:    fmt.Sprintf("gen-%02d-flag-%d", generation, i),
			Active: true,
		}
	}
	return &flagengine.Snapshot{Flags: flags}
}

func TestCacheReplaceIsAtomicUnderConcurrentReads(t *testing.T) {
	cache := NewFlagCache()
	cache.Replace(markerSnapshot(0, 10))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				flags := cache.GetAllFlags()
				if len(flags) == 0 {
					continue
				}
				generation := flags[0].Key[:6]
				for _, flag := range flags {
					assert.Equal(t, generation, flag.Key[:6], "observed flags from two different snapshots")
				}
			}
		}()
	}

	for g := 1; g <= 50; g++ {
		cache.Replace(markerSnapshot(g, 10))
	}
	close(stop)
	wg.Wait()
}
