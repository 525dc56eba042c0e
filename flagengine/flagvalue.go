package flagengine

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlagValue is the result of evaluating a feature flag: either a boolean
// (enabled/disabled) or the key of a multivariate variant. On the wire it is
// untagged, a plain JSON boolean or string; in Go it is an explicit two-case
// value built with BooleanValue or VariantValue.
//
// The zero value is Boolean(false).
type FlagValue struct {
	variant   string
	enabled   bool
	isVariant bool
}

// BooleanValue returns a boolean flag result.
func BooleanValue(enabled bool) FlagValue {
	return FlagValue{enabled: enabled}
}

// VariantValue returns a multivariate flag result carrying the variant key.
func VariantValue(key string) FlagValue {
	return FlagValue{variant: key, isVariant: true}
}

// Variant returns the assigned variant key, and whether the value is a
// variant at all.
func (v FlagValue) Variant() (string, bool) {
	return v.variant, v.isVariant
}

// IsVariant reports whether the value is a multivariate variant.
func (v FlagValue) IsVariant() bool {
	return v.isVariant
}

// Enabled reports whether the flag is on for the subject. Any variant counts
// as enabled.
func (v FlagValue) Enabled() bool {
	return v.isVariant || v.enabled
}

func (v FlagValue) String() string {
	if v.isVariant {
		return v.variant
	}
	return strconv.FormatBool(v.enabled)
}

func (v FlagValue) MarshalJSON() ([]byte, error) {
	if v.isVariant {
		return json.Marshal(v.variant)
	}
	return json.Marshal(v.enabled)
}

func (v *FlagValue) UnmarshalJSON(data []byte) error {
	var enabled bool
	if err := json.Unmarshal(data, &enabled); err == nil {
		*v = BooleanValue(enabled)
		return nil
	}
	var variant string
	if err := json.Unmarshal(data, &variant); err == nil {
		*v = VariantValue(variant)
		return nil
	}
	return fmt.Errorf("flag value must be a JSON boolean or string, got %s", data)
}
