package flagengine

import "encoding/json"

// Operator compares a subject attribute against a condition value.
type Operator string

const (
	Exact          Operator = "exact"
	IsNot          Operator = "is_not"
	IsSet          Operator = "is_set"
	IsNotSet       Operator = "is_not_set"
	IContains      Operator = "icontains"
	NotIContains   Operator = "not_icontains"
	Regex          Operator = "regex"
	NotRegex       Operator = "not_regex"
	GreaterThan    Operator = "gt"
	GreaterOrEqual Operator = "gte"
	LessThan       Operator = "lt"
	LessOrEqual    Operator = "lte"
	IsDateBefore   Operator = "is_date_before"
	IsDateAfter    Operator = "is_date_after"
)

// PropertyTypeCohort marks a property filter as a cohort membership check.
// Cohort expressions are not evaluated locally.
const PropertyTypeCohort = "cohort"

// flagDependencyPrefix marks a property key as a dependency on another flag's
// evaluation result.
const flagDependencyPrefix = "$feature/"

type FeatureFlag struct {
	Key     string      `json:"key"`
	Active  bool        `json:"active"`
	Filters FlagFilters `json:"filters"`
}

type FlagFilters struct {
	Groups       []FlagCondition            `json:"groups"`
	Multivariate *MultivariateFilter        `json:"multivariate,omitempty"`
	Payloads     map[string]json.RawMessage `json:"payloads,omitempty"`
}

// FlagCondition is one rule group: all properties must match, then the
// rollout percentage gates the group. Groups are combined with OR logic.
type FlagCondition struct {
	Properties        []PropertyFilter `json:"properties"`
	RolloutPercentage *float64         `json:"rollout_percentage,omitempty"`
	Variant           *string          `json:"variant,omitempty"`
}

type PropertyFilter struct {
	Key      string      `json:"key"`
	Value    interface{} `json:"value"`
	Operator Operator    `json:"operator,omitempty"`
	Type     string      `json:"type,omitempty"`
}

// operator returns the effective operator; the server omits it for "exact".
func (p *PropertyFilter) operator() Operator {
	if p.Operator == "" {
		return Exact
	}
	return p.Operator
}

type MultivariateFilter struct {
	Variants []MultivariateVariant `json:"variants"`
}

func (m *MultivariateFilter) hasVariant(key string) bool {
	if m == nil {
		return false
	}
	for _, v := range m.Variants {
		if v.Key == key {
			return true
		}
	}
	return false
}

type MultivariateVariant struct {
	Key               string  `json:"key"`
	RolloutPercentage float64 `json:"rollout_percentage"`
}

// Snapshot is one versioned set of flag definitions as served by the
// definitions endpoint. It is published into the cache as a whole, never
// merged.
type Snapshot struct {
	Flags            []*FeatureFlag             `json:"flags"`
	GroupTypeMapping map[string]string          `json:"group_type_mapping"`
	Cohorts          map[string]json.RawMessage `json:"cohorts"`
}

// PayloadFor returns the JSON payload attached to the given evaluation
// result. Boolean true looks up the "true" payload, a variant looks up the
// payload under its key. Disabled flags carry no payload.
func (f *FeatureFlag) PayloadFor(v FlagValue) (json.RawMessage, bool) {
	key := "true"
	if variant, ok := v.Variant(); ok {
		key = variant
	} else if !v.Enabled() {
		return nil, false
	}
	payload, ok := f.Filters.Payloads[key]
	return payload, ok
}
