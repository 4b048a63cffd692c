package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analysesLoaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "prism_analyses_loaded_total",
		Help: "Analyses loaded into the session, by source.",
	}, []string{"source"})

	weightsInitialized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prism_weights_initialized_total",
		Help: "Weight configurations built from scratch.",
	})

	weightEdits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prism_weight_edits_total",
		Help: "Individual weight edits received.",
	})

	recomputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "prism_summary_recomputations_total",
		Help: "Weighted summary recomputations.",
	})

	loadedFields = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "prism_session_fields",
		Help: "Field count of the analysis currently loaded, 0 when none.",
	})
)
