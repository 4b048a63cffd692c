package scoring

import "math"

// Grade is a letter bucket for a 0-100 quality score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// GradeFor maps a score onto the fixed ladder:
//
//	>=85 A, >=70 B, >=55 C, otherwise D
func GradeFor(score float64) Grade {
	switch {
	case score >= 85:
		return GradeA
	case score >= 70:
		return GradeB
	case score >= 55:
		return GradeC
	default:
		return GradeD
	}
}

// FieldSummary is the weighted view of one field.
type FieldSummary struct {
	FieldName         string  `json:"field_name"`
	DataType          string  `json:"data_type"`
	CompletenessScore float64 `json:"completeness_score"`
	CorrectnessScore  float64 `json:"correctness_score"`
	UniquenessScore   float64 `json:"uniqueness_score"`
	WeightedScore     float64 `json:"weighted_score"`
	Importance        float64 `json:"importance"`
	QualityGrade      Grade   `json:"quality_grade"`
}

// TableAggregate is the importance-weighted roll-up of field summaries.
type TableAggregate struct {
	CompletenessScore float64 `json:"completeness_score"`
	CorrectnessScore  float64 `json:"correctness_score"`
	UniquenessScore   float64 `json:"uniqueness_score"`
	WeightedScore     float64 `json:"weighted_score"`
	QualityGrade      Grade   `json:"quality_grade"`
	TotalImportance   float64 `json:"total_importance"`
	FieldCount        int     `json:"field_count"`
}

// TableSummary holds every field summary plus the table aggregate.
type TableSummary struct {
	Name   string         `json:"name"`
	Fields []FieldSummary `json:"fields"`
	Table  TableAggregate `json:"table"`

	index map[string]int
}

// Field looks up a field summary by name.
func (s *TableSummary) Field(name string) (FieldSummary, bool) {
	if s == nil {
		return FieldSummary{}, false
	}
	i, ok := s.index[name]
	if !ok {
		return FieldSummary{}, false
	}
	return s.Fields[i], true
}

// scorePrecision is the rounding unit for every derived score. Equal 1/3
// weights otherwise leave 100 as 99.99999999999999 and drop grades a bucket.
const scorePrecision = 1e9

func roundScore(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}

// WeightedScore combines the three metric scores with the field's metric
// weights. Importance plays no part here.
func WeightedScore(f FieldScore, w FieldWeights) float64 {
	return roundScore(f.CompletenessScore*w.Completeness +
		f.CorrectnessScore*w.Correctness +
		f.UniquenessScore*w.Uniqueness)
}

// Summarize computes weighted field and table scores. It returns nil when cfg
// is nil. An empty field list yields an empty summary graded D.
func Summarize(fields []FieldScore, cfg *WeightConfig) *TableSummary {
	if cfg == nil {
		return nil
	}

	summary := &TableSummary{
		Name:   cfg.Name,
		Fields: make([]FieldSummary, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		w := EffectiveWeights(cfg, f.FieldName, len(fields))
		score := WeightedScore(f, w)
		fs := FieldSummary{
			FieldName:         f.FieldName,
			DataType:          f.DataType,
			CompletenessScore: f.CompletenessScore,
			CorrectnessScore:  f.CorrectnessScore,
			UniquenessScore:   f.UniquenessScore,
			WeightedScore:     score,
			Importance:        w.Importance,
			QualityGrade:      GradeFor(score),
		}
		summary.index[f.FieldName] = len(summary.Fields)
		summary.Fields = append(summary.Fields, fs)
	}
	summary.Table = Aggregate(summary.Fields)
	return summary
}

// Aggregate rolls field summaries up by importance. With no importance to
// weigh by it reports zeros and grade D.
func Aggregate(fields []FieldSummary) TableAggregate {
	agg := TableAggregate{FieldCount: len(fields)}
	var c, r, u, ws float64
	for _, f := range fields {
		agg.TotalImportance += f.Importance
		c += f.CompletenessScore * f.Importance
		r += f.CorrectnessScore * f.Importance
		u += f.UniquenessScore * f.Importance
		ws += f.WeightedScore * f.Importance
	}

	if agg.TotalImportance <= 0 || math.IsNaN(agg.TotalImportance) {
		agg.QualityGrade = GradeD
		return agg
	}

	agg.CompletenessScore = roundScore(c / agg.TotalImportance)
	agg.CorrectnessScore = roundScore(r / agg.TotalImportance)
	agg.UniquenessScore = roundScore(u / agg.TotalImportance)
	agg.WeightedScore = roundScore(ws / agg.TotalImportance)
	agg.QualityGrade = GradeFor(agg.WeightedScore)
	return agg
}
