package scoring

// Initialize derives starting weights for an analysis from its raw scores.
//
// A field's metric weights are proportional to its normalized scores, so a
// field that scores well on completeness leans on completeness. Importance is
// each field's share of the summed overall scores.
//
// When existing was built for the same name with the same number of fields it
// is returned as is, keeping any user edits; the second result reports
// whether a new config was built.
func Initialize(name string, fields []FieldScore, existing *WeightConfig) (*WeightConfig, bool) {
	if existing != nil && existing.Name == name && existing.Len() == distinctFields(fields) {
		return existing, false
	}

	cfg := NewWeightConfig(name)
	if len(fields) == 0 {
		return cfg, true
	}

	var overallSum float64
	for _, f := range fields {
		overallSum += nonNegative(f.OverallScore)
	}

	for _, f := range fields {
		w := FieldWeights{
			Completeness: nonNegative(f.CompletenessScore) / 100,
			Correctness:  nonNegative(f.CorrectnessScore) / 100,
			Uniqueness:   nonNegative(f.UniquenessScore) / 100,
		}
		w = w.normalizedMetrics()

		if overallSum > 0 {
			w.Importance = nonNegative(f.OverallScore) / overallSum
		} else {
			w.Importance = 1.0 / float64(len(fields))
		}

		cfg.Fields[f.FieldName] = w.clamped()
	}

	// Duplicate names collapse into one entry, so the shares can drift off 1.
	if sum := cfg.ImportanceSum(); sum > 0 {
		for field, w := range cfg.Fields {
			w.Importance /= sum
			cfg.Fields[field] = w
		}
	}

	return cfg, true
}

func distinctFields(fields []FieldScore) int {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		seen[f.FieldName] = struct{}{}
	}
	return len(seen)
}

// nonNegative drops negative and NaN scores to 0.
func nonNegative(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	return v
}
