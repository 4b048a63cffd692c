package analyst

import (
	"encoding/json"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

// Analysis is the data-quality result for one table or uploaded file.
// The raw payload is kept so it can be sent back to the backend untouched.
type Analysis struct {
	TableName      string                 `json:"table_name,omitempty"`
	TotalRecords   int                    `json:"total_records"`
	TableScores    map[string]interface{} `json:"table_scores,omitempty"`
	FieldAnalyses  []scoring.FieldScore   `json:"field_analyses"`
	Issues         []json.RawMessage      `json:"issues"`
	AIInsights     json.RawMessage        `json:"ai_insights,omitempty"`
	DetectedDomain string                 `json:"detected_domain,omitempty"`

	raw json.RawMessage
}

type analysisAlias Analysis

func (a *Analysis) UnmarshalJSON(data []byte) error {
	var alias analysisAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*a = Analysis(alias)
	a.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	if len(a.raw) > 0 {
		return a.raw, nil
	}
	return json.Marshal(analysisAlias(a))
}

// Member returns a top-level member of the original payload, falling back to
// the typed value when the analysis was built in code.
func (a *Analysis) Member(name string) json.RawMessage {
	if len(a.raw) > 0 {
		var members map[string]json.RawMessage
		if err := json.Unmarshal(a.raw, &members); err == nil {
			if v, ok := members[name]; ok {
				return v
			}
		}
	}
	var v interface{}
	switch name {
	case "field_analyses":
		v = a.FieldAnalyses
	case "issues":
		v = a.Issues
	case "table_scores":
		v = a.TableScores
	default:
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}

// Domain returns the detected domain, or def when the backend found none.
func (a *Analysis) Domain(def string) string {
	if a.DetectedDomain != "" && a.DetectedDomain != "Unknown" {
		return a.DetectedDomain
	}
	return def
}

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type analysisResponse struct {
	envelope
	Analysis *Analysis `json:"analysis"`
}

// LLMStatus reports whether the backend can reach its language model.
type LLMStatus struct {
	Connected bool   `json:"connected"`
	Model     string `json:"model,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Rule is a validation rule suggested from detected issues.
type Rule struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Field       string  `json:"field"`
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Weight      float64 `json:"weight"`
	Active      bool    `json:"active"`
}

type rulesResponse struct {
	envelope
	Rules []Rule `json:"rules"`
}

type Finding struct {
	Field    string `json:"field"`
	Finding  string `json:"finding"`
	Priority string `json:"priority"`
	Impact   string `json:"impact,omitempty"`
}

type Action struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
	Details  string `json:"details,omitempty"`
}

// StructuredAnalysis is the detailed AI write-up of an analysis' issues.
type StructuredAnalysis struct {
	Domain             string    `json:"domain"`
	CriticalFindings   []Finding `json:"critical_findings"`
	RecommendedActions []Action  `json:"recommended_actions"`
}

type structuredResponse struct {
	envelope
	StructuredAnalysis StructuredAnalysis `json:"structured_analysis"`
}

type Domain struct {
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
}

type domainsResponse struct {
	envelope
	Domains []Domain `json:"domains"`
}

// SubdomainRequest identifies a sub-domain for AI summaries.
type SubdomainRequest struct {
	Domain    string  `json:"domain"`
	SubDomain string  `json:"sub_domain"`
	Score     float64 `json:"score"`
}

type SubdomainSummary struct {
	Domain    string  `json:"domain"`
	SubDomain string  `json:"sub_domain"`
	Score     float64 `json:"score"`
	Summary   string  `json:"summary"`
}

type subdomainResponse struct {
	envelope
	SubdomainSummary
}

// SaveSummaryRequest stores a human-edited sub-domain summary.
type SaveSummaryRequest struct {
	Domain    string `json:"domain"`
	SubDomain string `json:"sub_domain"`
	Summary   string `json:"summary"`
	EditedBy  string `json:"edited_by,omitempty"`
}

type SaveSummaryResult struct {
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type saveSummaryResponse struct {
	envelope
	Timestamp string `json:"timestamp"`
}
