package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

type AnalysisLoadedEvent struct {
	EntityName    string        `json:"entity_name"`
	Source        string        `json:"source"`
	TotalRecords  int           `json:"total_records"`
	FieldCount    int           `json:"field_count"`
	WeightedScore float64       `json:"weighted_score"`
	QualityGrade  scoring.Grade `json:"quality_grade"`
	Reinitialized bool          `json:"weights_reinitialized"`
}

type WeightsEvent struct {
	EntityName    string                `json:"entity_name"`
	Weights       *scoring.WeightConfig `json:"weights"`
	EditCount     int                   `json:"edit_count,omitempty"`
	WeightedScore float64               `json:"weighted_score"`
	QualityGrade  scoring.Grade         `json:"quality_grade"`
}

type SessionResetEvent struct {
	EntityName string    `json:"entity_name,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type BackendStatusEvent struct {
	Reachable    bool      `json:"reachable"`
	LLMConnected bool      `json:"llm_connected"`
	Model        string    `json:"model,omitempty"`
	Error        string    `json:"error,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}
