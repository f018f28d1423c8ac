package features

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidFieldKind is returned when a raw value's fundamental type cannot
// be converted to a scalar at all (slices, maps, structs). Malformed numeric
// input never produces this error; it falls back instead.
var ErrInvalidFieldKind = errors.New("invalid field kind")

// FieldSpec describes the acceptable shape of one raw input value.
type FieldSpec struct {
	Name     string
	Min      float64
	Max      float64
	Fallback float64
}

// Sanitize converts a raw scalar into a safe float64. NaN, infinities and
// values outside [Min, Max] by more than the clamp margin are replaced with
// the fallback; values just past a bound are clamped onto it. The second
// return reports whether any substitution or clamp occurred, which feeds the
// feature coverage ratio.
func Sanitize(value any, spec FieldSpec) (float64, bool, error) {
	v, err := toFloat(value)
	if err != nil {
		return spec.Fallback, true, err
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return spec.Fallback, true, nil
	}

	if spec.Max > spec.Min {
		// Borderline overshoot clamps onto the bound; anything further out
		// is treated as garbage and replaced wholesale.
		margin := (spec.Max - spec.Min) * 0.05
		switch {
		case v < spec.Min-margin || v > spec.Max+margin:
			return spec.Fallback, true, nil
		case v < spec.Min:
			return spec.Min, true, nil
		case v > spec.Max:
			return spec.Max, true, nil
		}
	}

	return v, false, nil
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return math.NaN(), nil
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrInvalidFieldKind, value)
	}
}
