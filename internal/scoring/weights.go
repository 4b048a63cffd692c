package scoring

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// Metric names one adjustable weight of a field.
type Metric string

const (
	MetricCompleteness Metric = "completeness"
	MetricCorrectness  Metric = "correctness"
	MetricUniqueness   Metric = "uniqueness"
	MetricImportance   Metric = "importance"
)

// ParseMetric accepts a metric name in any case.
func ParseMetric(s string) (Metric, bool) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case MetricCompleteness, MetricCorrectness, MetricUniqueness, MetricImportance:
		return m, true
	}
	return "", false
}

// FieldScore is the per-field result produced by the analysis backend.
// Scores are percentages in [0,100].
type FieldScore struct {
	FieldName         string  `json:"field_name"`
	DataType          string  `json:"data_type"`
	CompletenessScore float64 `json:"completeness_score"`
	CorrectnessScore  float64 `json:"correctness_score"`
	UniquenessScore   float64 `json:"uniqueness_score"`
	OverallScore      float64 `json:"overall_score"`
}

// FieldWeights holds the metric weights and table importance of one field.
// Completeness, Correctness and Uniqueness sum to 1 once normalized.
type FieldWeights struct {
	Completeness float64 `json:"completeness" yaml:"completeness"`
	Correctness  float64 `json:"correctness" yaml:"correctness"`
	Uniqueness   float64 `json:"uniqueness" yaml:"uniqueness"`
	Importance   float64 `json:"importance" yaml:"importance"`
}

// EqualMetricWeights returns 1/3 on each metric with the given importance.
func EqualMetricWeights(importance float64) FieldWeights {
	return FieldWeights{
		Completeness: 1.0 / 3,
		Correctness:  1.0 / 3,
		Uniqueness:   1.0 / 3,
		Importance:   importance,
	}
}

// MetricSum returns completeness + correctness + uniqueness.
func (w FieldWeights) MetricSum() float64 {
	return w.Completeness + w.Correctness + w.Uniqueness
}

// Get returns the weight stored for m.
func (w FieldWeights) Get(m Metric) float64 {
	switch m {
	case MetricCompleteness:
		return w.Completeness
	case MetricCorrectness:
		return w.Correctness
	case MetricUniqueness:
		return w.Uniqueness
	case MetricImportance:
		return w.Importance
	}
	return 0
}

// With returns a copy of w with m set to v. Unknown metrics leave w unchanged.
func (w FieldWeights) With(m Metric, v float64) FieldWeights {
	switch m {
	case MetricCompleteness:
		w.Completeness = v
	case MetricCorrectness:
		w.Correctness = v
	case MetricUniqueness:
		w.Uniqueness = v
	case MetricImportance:
		w.Importance = v
	}
	return w
}

// clamped bounds every weight to [0,1].
func (w FieldWeights) clamped() FieldWeights {
	return FieldWeights{
		Completeness: Clamp01(w.Completeness),
		Correctness:  Clamp01(w.Correctness),
		Uniqueness:   Clamp01(w.Uniqueness),
		Importance:   Clamp01(w.Importance),
	}
}

// normalizedMetrics rescales the three metric weights to sum to 1, or splits
// them evenly when they are all zero. Importance is untouched.
func (w FieldWeights) normalizedMetrics() FieldWeights {
	sum := w.MetricSum()
	if sum <= 0 {
		return EqualMetricWeights(w.Importance)
	}
	w.Completeness /= sum
	w.Correctness /= sum
	w.Uniqueness /= sum
	return w
}

// WeightConfig maps field names to weights for one loaded analysis.
type WeightConfig struct {
	Name   string                  `json:"name"`
	Fields map[string]FieldWeights `json:"fields"`
}

// NewWeightConfig returns an empty config tagged with name.
func NewWeightConfig(name string) *WeightConfig {
	return &WeightConfig{Name: name, Fields: make(map[string]FieldWeights)}
}

// Len returns the number of field entries.
func (c *WeightConfig) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Fields)
}

// Lookup returns the stored weights for field, if any.
func (c *WeightConfig) Lookup(field string) (FieldWeights, bool) {
	if c == nil {
		return FieldWeights{}, false
	}
	w, ok := c.Fields[field]
	return w, ok
}

// ImportanceSum returns the total importance over all stored entries.
func (c *WeightConfig) ImportanceSum() float64 {
	if c == nil {
		return 0
	}
	var sum float64
	for _, w := range c.Fields {
		sum += w.Importance
	}
	return sum
}

// Clone returns a deep copy.
func (c *WeightConfig) Clone() *WeightConfig {
	if c == nil {
		return nil
	}
	out := &WeightConfig{Name: c.Name, Fields: make(map[string]FieldWeights, len(c.Fields))}
	for k, v := range c.Fields {
		out.Fields[k] = v
	}
	return out
}

// EffectiveWeights is the single place the fallback policy lives: a field
// without an entry gets equal metric weights and 1/fieldCount importance.
func EffectiveWeights(c *WeightConfig, field string, fieldCount int) FieldWeights {
	if w, ok := c.Lookup(field); ok {
		return w
	}
	importance := 0.0
	if fieldCount > 0 {
		importance = 1.0 / float64(fieldCount)
	}
	return EqualMetricWeights(importance)
}

// CoerceWeight turns any user-supplied value into a weight in [0,1]. It
// never fails.
//
// Numbers, numeric strings and booleans (0 or 1) are read as numbers and
// clamped, so +Inf and overflowing strings such as "1e400" become 1 and
// their negative forms become 0. NaN and anything that does not read as a
// number become 0.
func CoerceWeight(raw interface{}) float64 {
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		s, ok := raw.(string)
		if !ok {
			return 0
		}
		// Out of range strings still carry a sign: ParseFloat returns ±Inf.
		f, perr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if !errors.Is(perr, strconv.ErrRange) {
			return 0
		}
		v = f
	}
	return Clamp01(v)
}

// Clamp01 bounds v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return clamp(v, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
