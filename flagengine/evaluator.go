package flagengine

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/itlightning/dateparse"
)

// InconclusiveMatchError reports that a flag could not be decided with the
// locally available data, for example when a required subject property is
// missing or a condition refers to state that only the server holds. It is
// distinct from a false verdict: callers are expected to fall back to remote
// evaluation.
type InconclusiveMatchError struct {
	Reason string
}

func (e *InconclusiveMatchError) Error() string {
	return "inconclusive flag match: " + e.Reason
}

func inconclusive(format string, args ...interface{}) error {
	return &InconclusiveMatchError{Reason: fmt.Sprintf(format, args...)}
}

// IsInconclusive reports whether err is an InconclusiveMatchError.
func IsInconclusive(err error) bool {
	var e *InconclusiveMatchError
	return errors.As(err, &e)
}

// MatchFeatureFlag evaluates flag for the given subject without consulting
// any other flag definitions. Properties with a "$feature/" key or a cohort
// type are inconclusive; use MatchFeatureFlagWithDependencies when the full
// flag set is available.
func MatchFeatureFlag(flag *FeatureFlag, distinctID string, properties map[string]interface{}) (FlagValue, error) {
	return matchFeatureFlag(flag, distinctID, properties, nil)
}

// MatchFeatureFlagWithDependencies evaluates flag for the given subject,
// resolving "$feature/<key>" conditions against deps, the full flag set of
// the current snapshot.
func MatchFeatureFlagWithDependencies(flag *FeatureFlag, distinctID string, properties map[string]interface{}, deps map[string]*FeatureFlag) (FlagValue, error) {
	return matchFeatureFlag(flag, distinctID, properties, deps)
}

func matchFeatureFlag(flag *FeatureFlag, distinctID string, properties map[string]interface{}, deps map[string]*FeatureFlag) (FlagValue, error) {
	if !flag.Active {
		return BooleanValue(false), nil
	}

	// Groups carrying a variant override are evaluated first so that explicit
	// overrides win over plain rollout groups regardless of declaration
	// order. The sort is stable: ties keep their relative order.
	groups := make([]FlagCondition, len(flag.Filters.Groups))
	copy(groups, flag.Filters.Groups)
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Variant != nil && groups[j].Variant == nil
	})

	sawInconclusive := false
	for i := range groups {
		matched, err := matchCondition(flag, distinctID, &groups[i], properties, deps)
		if err != nil {
			// Another group may still match conclusively, so keep going.
			sawInconclusive = true
			continue
		}
		if !matched {
			continue
		}
		if override := groups[i].Variant; override != nil && flag.Filters.Multivariate.hasVariant(*override) {
			return VariantValue(*override), nil
		}
		if variant, ok := matchingVariant(flag, distinctID); ok {
			return VariantValue(variant), nil
		}
		return BooleanValue(true), nil
	}

	if sawInconclusive {
		return FlagValue{}, inconclusive("cannot determine flag %q with the given properties", flag.Key)
	}
	return BooleanValue(false), nil
}

// matchingVariant walks the cumulative variant ranges in declared order and
// returns the first variant whose half-open range [low, high) contains the
// subject's bucket. Percentages need not sum to 100; a bucket past the last
// range yields no variant.
func matchingVariant(flag *FeatureFlag, distinctID string) (string, bool) {
	if flag.Filters.Multivariate == nil {
		return "", false
	}
	bucket := HashBucket(flag.Key, distinctID, variantSalt)
	low := 0.0
	for _, variant := range flag.Filters.Multivariate.Variants {
		high := low + variant.RolloutPercentage/100
		if bucket >= low && bucket < high {
			return variant.Key, true
		}
		low = high
	}
	return "", false
}

func matchCondition(flag *FeatureFlag, distinctID string, cond *FlagCondition, properties map[string]interface{}, deps map[string]*FeatureFlag) (bool, error) {
	for i := range cond.Properties {
		ok, err := matchPropertyFilter(&cond.Properties[i], distinctID, properties, deps)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	// An empty property list matches vacuously; the rollout percentage is
	// then the only gate.
	if pct := cond.RolloutPercentage; pct != nil {
		if HashBucket(flag.Key, distinctID, rolloutSalt) > *pct/100 {
			return false, nil
		}
	}
	return true, nil
}

func matchPropertyFilter(prop *PropertyFilter, distinctID string, properties map[string]interface{}, deps map[string]*FeatureFlag) (bool, error) {
	if prop.Type == PropertyTypeCohort {
		// Cohort expressions are only evaluated server-side.
		return false, inconclusive("cohort condition on %q cannot be evaluated locally", prop.Key)
	}
	if flagKey, ok := strings.CutPrefix(prop.Key, flagDependencyPrefix); ok {
		return matchFlagDependency(prop, flagKey, distinctID, deps)
	}
	return MatchProperty(prop, properties)
}

// matchFlagDependency resolves a "$feature/<key>" condition by evaluating the
// referenced flag for the same subject. The dependency is evaluated with no
// properties: one that needs them is inconclusive, like any other condition
// that cannot be resolved locally.
func matchFlagDependency(prop *PropertyFilter, flagKey, distinctID string, deps map[string]*FeatureFlag) (bool, error) {
	dep, ok := deps[flagKey]
	if !ok {
		return false, inconclusive("flag %q not found in the local cache", flagKey)
	}
	value, err := matchFeatureFlag(dep, distinctID, nil, nil)
	if err != nil {
		return false, err
	}
	matched := flagValueMatches(value, prop.Value)
	switch prop.operator() {
	case Exact:
		return matched, nil
	case IsNot:
		return !matched, nil
	}
	return false, inconclusive("unknown flag dependency operator %q", prop.Operator)
}

// flagValueMatches compares a dependency's evaluation result against the
// expected condition value, which may be a boolean (enabled at all) or a
// string (a specific variant).
func flagValueMatches(v FlagValue, expected interface{}) bool {
	switch expected := expected.(type) {
	case bool:
		if v.IsVariant() {
			// Any variant counts as enabled.
			return expected
		}
		return v.Enabled() == expected
	case string:
		if variant, ok := v.Variant(); ok {
			return strings.EqualFold(variant, expected)
		}
		if v.Enabled() {
			return expected == "" || expected == "true"
		}
		return expected == "" || expected == "false"
	}
	return false
}

// MatchProperty evaluates a single property filter against the subject's
// attributes. A missing attribute resolves is_set/is_not_set immediately and
// is inconclusive for every other operator.
func MatchProperty(prop *PropertyFilter, properties map[string]interface{}) (bool, error) {
	op := prop.operator()
	value, ok := properties[prop.Key]
	if !ok {
		switch op {
		case IsNotSet:
			return true, nil
		case IsSet:
			return false, nil
		}
		return false, inconclusive("property %q not found in the provided properties", prop.Key)
	}

	switch op {
	case Exact:
		return matchExact(prop.Value, value), nil
	case IsNot:
		return !matchExact(prop.Value, value), nil
	case IsSet:
		return true, nil
	case IsNotSet:
		return false, nil
	case IContains:
		return strings.Contains(strings.ToLower(valueToString(value)), strings.ToLower(valueToString(prop.Value))), nil
	case NotIContains:
		return !strings.Contains(strings.ToLower(valueToString(value)), strings.ToLower(valueToString(prop.Value))), nil
	case Regex:
		return matchRegex(valueToString(value), valueToString(prop.Value)), nil
	case NotRegex:
		return !matchRegex(valueToString(value), valueToString(prop.Value)), nil
	case GreaterThan, GreaterOrEqual, LessThan, LessOrEqual:
		return matchOrdered(op, prop.Value, value), nil
	case IsDateBefore, IsDateAfter:
		return matchDate(op, prop, value)
	}
	return false, inconclusive("unknown operator %q", op)
}

// matchExact matches value against the condition value, or against any
// element when the condition value is an array. Strings compare
// case-insensitively, everything else by value equality.
func matchExact(conditionValue, value interface{}) bool {
	if arr, ok := conditionValue.([]interface{}); ok {
		for _, cv := range arr {
			if equalValues(cv, value) {
				return true
			}
		}
		return false
	}
	return equalValues(conditionValue, value)
}

func equalValues(a, b interface{}) bool {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.EqualFold(as, bs)
	}
	return reflect.DeepEqual(a, b)
}

// matchRegex compiles the pattern on demand. A malformed pattern never
// matches, so regex yields false and not_regex yields true; a broken pattern
// in one flag must not abort evaluation of its siblings.
func matchRegex(value, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// matchOrdered compares numerically when both sides parse as numbers and
// falls back to lexicographic string comparison otherwise. The fallback
// mirrors the server-side evaluator and is preserved deliberately; changing
// it would silently diverge local verdicts from remote ones.
func matchOrdered(op Operator, conditionValue, value interface{}) bool {
	cn, cok := toFloat(conditionValue)
	vn, vok := toFloat(value)
	if cok && vok {
		switch op {
		case GreaterThan:
			return vn > cn
		case GreaterOrEqual:
			return vn >= cn
		case LessThan:
			return vn < cn
		case LessOrEqual:
			return vn <= cn
		}
		return false
	}

	cs := valueToString(conditionValue)
	vs := valueToString(value)
	switch op {
	case GreaterThan:
		return vs > cs
	case GreaterOrEqual:
		return vs >= cs
	case LessThan:
		return vs < cs
	case LessOrEqual:
		return vs <= cs
	}
	return false
}

func matchDate(op Operator, prop *PropertyFilter, value interface{}) (bool, error) {
	target, ok := parseDateValue(prop.Value)
	if !ok {
		return false, inconclusive("cannot parse target date value %v", prop.Value)
	}
	actual, ok := parseDateValue(value)
	if !ok {
		return false, inconclusive("cannot parse date value of property %q: %v", prop.Key, value)
	}
	if op == IsDateBefore {
		return actual.Before(target), nil
	}
	return actual.After(target), nil
}

// parseDateValue accepts relative dates ("-7d"), ISO dates and datetimes, and
// the other common formats dateparse understands.
func parseDateValue(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	if t, ok := parseRelativeDate(s); ok {
		return t, true
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseRelativeDate handles offsets from now such as "-7d", "-24h", "-2w",
// "-3m", "-1y". Months and years are approximated as 30 and 365 days.
func parseRelativeDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 3 || !strings.HasPrefix(s, "-") {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(s[1:len(s)-1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	var d time.Duration
	switch s[len(s)-1] {
	case 'h':
		d = time.Duration(n) * time.Hour
	case 'd':
		d = time.Duration(n) * 24 * time.Hour
	case 'w':
		d = time.Duration(n) * 7 * 24 * time.Hour
	case 'm':
		d = time.Duration(n) * 30 * 24 * time.Hour
	case 'y':
		d = time.Duration(n) * 365 * 24 * time.Hour
	default:
		return time.Time{}, false
	}
	return time.Now().UTC().Add(-d), true
}

func valueToString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}
