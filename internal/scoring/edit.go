package scoring

// Edit is one user change to a field weight. Value is whatever the client
// sent and is coerced with CoerceWeight.
type Edit struct {
	Field  string      `json:"field" yaml:"field"`
	Metric Metric      `json:"metric" yaml:"metric"`
	Value  interface{} `json:"value" yaml:"value"`
}

// ApplyEdits returns a new config with the edits merged into cfg.
//
// Edited fields have their metric weights renormalized to sum to 1 (or reset
// to 1/3 each when all are zero). Importance is then renormalized across
// every field of the analysis; if the total is zero it is split evenly over
// the fields edited in this batch. Fields not edited keep their metric
// weights. Edits for unknown fields or metrics are dropped.
//
// fields is the analysis the config belongs to; when empty the config's own
// entries define the field set.
func ApplyEdits(cfg *WeightConfig, fields []FieldScore, edits []Edit) *WeightConfig {
	out := cfg.Clone()
	if out == nil {
		out = NewWeightConfig("")
	}

	names := fieldNames(out, fields)
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	var edited []string
	updated := make(map[string]FieldWeights)
	for _, e := range edits {
		if !known[e.Field] {
			continue
		}
		m, ok := ParseMetric(string(e.Metric))
		if !ok {
			continue
		}
		w, seen := updated[e.Field]
		if !seen {
			w = EffectiveWeights(out, e.Field, len(names))
			edited = append(edited, e.Field)
		}
		updated[e.Field] = w.With(m, CoerceWeight(e.Value))
	}
	if len(edited) == 0 {
		return out
	}

	for _, field := range edited {
		out.Fields[field] = updated[field].clamped().normalizedMetrics()
	}

	var total float64
	for _, n := range names {
		total += EffectiveWeights(out, n, len(names)).Importance
	}

	if total > 0 {
		for _, n := range names {
			w := EffectiveWeights(out, n, len(names))
			w.Importance = Clamp01(w.Importance / total)
			out.Fields[n] = w
		}
		return out
	}

	share := 1.0 / float64(len(edited))
	for _, field := range edited {
		w := out.Fields[field]
		w.Importance = share
		out.Fields[field] = w
	}
	return out
}

// fieldNames lists the analysis field names in order, deduplicated.
func fieldNames(cfg *WeightConfig, fields []FieldScore) []string {
	var names []string
	seen := make(map[string]bool)
	if len(fields) > 0 {
		for _, f := range fields {
			if !seen[f.FieldName] {
				seen[f.FieldName] = true
				names = append(names, f.FieldName)
			}
		}
		return names
	}
	for n := range cfg.Fields {
		names = append(names, n)
	}
	return names
}
