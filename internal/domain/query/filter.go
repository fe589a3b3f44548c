package query

import "fmt"

// MaxConditionsPerGroup is the maximum number of conditions per filter group.
const MaxConditionsPerGroup = 32

// Filter restricts search hits by metadata with must/must_not semantics.
type Filter struct {
	must    []Condition
	mustNot []Condition
}

// NewFilter validates and creates a Filter.
func NewFilter(must, mustNot []Condition) (Filter, error) {
	if len(must) > MaxConditionsPerGroup {
		return Filter{}, fmt.Errorf("too many must conditions (max %d)", MaxConditionsPerGroup)
	}
	if len(mustNot) > MaxConditionsPerGroup {
		return Filter{}, fmt.Errorf("too many must_not conditions (max %d)", MaxConditionsPerGroup)
	}
	return Filter{must: must, mustNot: mustNot}, nil
}

// Must returns the must conditions.
func (f Filter) Must() []Condition { return f.must }

// MustNot returns the must-not conditions.
func (f Filter) MustNot() []Condition { return f.mustNot }

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.must) == 0 && len(f.mustNot) == 0
}

// Condition is a single filter clause: either a tag match or a numeric range.
type Condition struct {
	key       string
	match     string
	rangeExpr *Range
}

// NewMatch creates an exact tag match condition.
func NewMatch(key, match string) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	if match == "" {
		return Condition{}, fmt.Errorf("match value is required for key %q", key)
	}
	return Condition{key: key, match: match}, nil
}

// NewRange creates a numeric range condition.
func NewRange(key string, r Range) (Condition, error) {
	if key == "" {
		return Condition{}, fmt.Errorf("filter key is required")
	}
	return Condition{key: key, rangeExpr: &r}, nil
}

// Key returns the field name.
func (c Condition) Key() string { return c.key }

// Match returns the exact match value.
func (c Condition) Match() string { return c.match }

// Range returns the numeric range expression.
func (c Condition) Range() *Range { return c.rangeExpr }

// IsMatch reports whether this is a match condition.
func (c Condition) IsMatch() bool { return c.match != "" }

// IsRange reports whether this is a range condition.
func (c Condition) IsRange() bool { return c.rangeExpr != nil }

// Range is a numeric range with gte/lte boundaries (inclusive).
type Range struct {
	gte *float64
	lte *float64
}

// NewRangeBounds validates and creates a Range. At least one boundary required.
func NewRangeBounds(gte, lte *float64) (Range, error) {
	if gte == nil && lte == nil {
		return Range{}, fmt.Errorf("at least one range boundary is required")
	}
	return Range{gte: gte, lte: lte}, nil
}

// GTE returns the lower inclusive bound.
func (r Range) GTE() *float64 { return r.gte }

// LTE returns the upper inclusive bound.
func (r Range) LTE() *float64 { return r.lte }

// Matches reports whether the given metadata satisfies the filter.
// Used by the in-process store; remote stores evaluate filters server-side.
func (f Filter) Matches(tags map[string]string, numerics map[string]float64) bool {
	for _, c := range f.must {
		if !conditionHolds(c, tags, numerics) {
			return false
		}
	}
	for _, c := range f.mustNot {
		if conditionHolds(c, tags, numerics) {
			return false
		}
	}
	return true
}

func conditionHolds(c Condition, tags map[string]string, numerics map[string]float64) bool {
	if c.IsMatch() {
		return tags[c.key] == c.match
	}
	if c.IsRange() {
		v, ok := numerics[c.key]
		if !ok {
			return false
		}
		r := c.rangeExpr
		if r.gte != nil && v < *r.gte {
			return false
		}
		if r.lte != nil && v > *r.lte {
			return false
		}
		return true
	}
	return false
}
