package hermes

import "strings"

const (
	SubjectPrefix = "prism"
	// SubjectAll matches every Prism event.
	SubjectAll = SubjectPrefix + ".>"

	SubjectSessionReset  = "prism.session.reset"
	SubjectBackendStatus = "prism.backend.status"

	StreamName   = "PRISM_EVENTS"
	StreamMaxAge = "720h" // 30 days
)

func SubjectAnalysisLoaded(entity string) string {
	return "prism.analysis." + token(entity) + ".loaded"
}

func SubjectWeightsInitialized(entity string) string {
	return "prism.weights." + token(entity) + ".initialized"
}

func SubjectWeightsUpdated(entity string) string {
	return "prism.weights." + token(entity) + ".updated"
}

// token makes an entity name safe for use as one subject token. Dots, spaces
// and wildcards would otherwise split or widen the subject.
func token(entity string) string {
	if entity == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ' ', '*', '>', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, entity)
}
