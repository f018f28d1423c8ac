package features

import (
	"fmt"
	"math"
)

// Vector is an ordered feature mapping derived from one lead record.
// Insertion order is preserved so engineered output is reproducible, and
// each entry remembers whether it came from real data or a fallback.
type Vector struct {
	names     []string
	values    []float64
	fallbacks []bool
	index     map[string]int
}

// NewVector allocates a vector sized for n features.
func NewVector(n int) *Vector {
	return &Vector{
		names:     make([]string, 0, n),
		values:    make([]float64, 0, n),
		fallbacks: make([]bool, 0, n),
		index:     make(map[string]int, n),
	}
}

// Set appends or replaces a named feature. usedFallback marks values that
// did not come from real lead data.
func (v *Vector) Set(name string, value float64, usedFallback bool) {
	if i, ok := v.index[name]; ok {
		v.values[i] = value
		v.fallbacks[i] = usedFallback
		return
	}
	v.index[name] = len(v.names)
	v.names = append(v.names, name)
	v.values = append(v.values, value)
	v.fallbacks = append(v.fallbacks, usedFallback)
}

// Get looks up a feature by name.
func (v *Vector) Get(name string) (float64, bool) {
	i, ok := v.index[name]
	if !ok {
		return 0, false
	}
	return v.values[i], true
}

// Len reports the number of features.
func (v *Vector) Len() int { return len(v.names) }

// Names returns the insertion-ordered feature names.
func (v *Vector) Names() []string { return v.names }

// Selection is the model-ordered column subset of a vector.
type Selection struct {
	Values        []float64
	FallbackCount int
}

// Coverage is the fraction of selected features derived from real data.
func (s Selection) Coverage() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return float64(len(s.Values)-s.FallbackCount) / float64(len(s.Values))
}

// Select extracts the features named by the model, in the model's order.
// Names the vector cannot supply resolve to zero and count as fallbacks.
// Every returned value is guaranteed finite.
func (v *Vector) Select(required []string) (Selection, error) {
	sel := Selection{Values: make([]float64, 0, len(required))}
	for _, name := range required {
		i, ok := v.index[name]
		if !ok {
			sel.Values = append(sel.Values, 0)
			sel.FallbackCount++
			continue
		}
		val := v.values[i]
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return Selection{}, fmt.Errorf("feature %q is not finite after sanitization", name)
		}
		sel.Values = append(sel.Values, val)
		if v.fallbacks[i] {
			sel.FallbackCount++
		}
	}
	return sel, nil
}
