package flagpole

import (
	"encoding/json"
	"log/slog"

	"github.com/flagpole-io/flagpole-go-client/flagengine"
)

// EvaluationResult is the outcome of one flag's local evaluation. Err is
// non-nil when the verdict was inconclusive; Value is only meaningful when
// Err is nil.
type EvaluationResult struct {
	Value flagengine.FlagValue
	Err   error
}

// LocalEvaluator answers flag evaluations from a FlagCache without any
// network I/O. It never mutates the cache.
type LocalEvaluator struct {
	cache *FlagCache
	log   *slog.Logger
}

func NewLocalEvaluator(cache *FlagCache, log *slog.Logger) *LocalEvaluator {
	if log == nil {
		log = slog.Default()
	}
	return &LocalEvaluator{cache: cache, log: log}
}

// EvaluateFlag evaluates a single cached flag for the subject. ok is false
// when the key is not in the cache, which is distinct from a present flag
// evaluating to false. A non-nil error is always an
// flagengine.InconclusiveMatchError.
func (e *LocalEvaluator) EvaluateFlag(key, distinctID string, properties map[string]interface{}) (value flagengine.FlagValue, ok bool, err error) {
	flag, ok := e.cache.GetFlag(key)
	if !ok {
		e.log.Debug("flag not found in local cache", slog.String("flag", key))
		return flagengine.FlagValue{}, false, nil
	}
	value, err = flagengine.MatchFeatureFlagWithDependencies(flag, distinctID, properties, e.cache.flagsSnapshot())
	if err != nil {
		return flagengine.FlagValue{}, true, err
	}
	return value, true, nil
}

// EvaluateAllFlags evaluates every cached flag independently: one flag's
// inconclusive result does not affect the others.
func (e *LocalEvaluator) EvaluateAllFlags(distinctID string, properties map[string]interface{}) map[string]EvaluationResult {
	flags := e.cache.GetAllFlags()
	deps := e.cache.flagsSnapshot()
	results := make(map[string]EvaluationResult, len(flags))
	for _, flag := range flags {
		value, err := flagengine.MatchFeatureFlagWithDependencies(flag, distinctID, properties, deps)
		results[flag.Key] = EvaluationResult{Value: value, Err: err}
	}
	e.log.Debug("evaluated all cached flags", slog.Int("flag_count", len(results)))
	return results
}

// GetFlagPayload returns the JSON payload attached to the given flag and
// evaluation result, if any.
func (e *LocalEvaluator) GetFlagPayload(key string, value flagengine.FlagValue) (json.RawMessage, bool) {
	flag, ok := e.cache.GetFlag(key)
	if !ok {
		return nil, false
	}
	return flag.PayloadFor(value)
}
