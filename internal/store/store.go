package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

type Source string

const (
	SourceTable Source = "table"
	SourceCSV   Source = "csv"
)

// Snapshot records the weighted table aggregate of an analysis at one point
// in time. It is an audit trail, not a cache of the live summary.
type Snapshot struct {
	ID                uuid.UUID     `json:"id"`
	EntityName        string        `json:"entity_name"`
	Source            Source        `json:"source"`
	TotalRecords      int           `json:"total_records"`
	FieldCount        int           `json:"field_count"`
	WeightedScore     float64       `json:"weighted_score"`
	QualityGrade      scoring.Grade `json:"quality_grade"`
	CompletenessScore float64       `json:"completeness_score"`
	CorrectnessScore  float64       `json:"correctness_score"`
	UniquenessScore   float64       `json:"uniqueness_score"`
	CreatedAt         time.Time     `json:"created_at"`
}

// NewSnapshot captures the table aggregate of summary.
func NewSnapshot(entity string, source Source, totalRecords int, summary *scoring.TableSummary) *Snapshot {
	s := &Snapshot{
		EntityName:   entity,
		Source:       source,
		TotalRecords: totalRecords,
		QualityGrade: scoring.GradeD,
	}
	if summary == nil {
		return s
	}
	s.FieldCount = summary.Table.FieldCount
	s.WeightedScore = summary.Table.WeightedScore
	s.QualityGrade = summary.Table.QualityGrade
	s.CompletenessScore = summary.Table.CompletenessScore
	s.CorrectnessScore = summary.Table.CorrectnessScore
	s.UniquenessScore = summary.Table.UniquenessScore
	return s
}

type SnapshotFilter struct {
	EntityName string
	Source     Source
	Limit      int
	Offset     int
}

// Overview aggregates snapshot history for the dashboard landing view.
// IssuesFound counts snapshots graded C or D.
type Overview struct {
	SnapshotCount int        `json:"snapshot_count"`
	EntityCount   int        `json:"entity_count"`
	TotalRecords  int64      `json:"total_records"`
	AvgQuality    float64    `json:"avg_quality"`
	IssuesFound   int        `json:"issues_found"`
	LastUpdated   *time.Time `json:"last_updated,omitempty"`
}

type Store interface {
	CreateSnapshot(ctx context.Context, s *Snapshot) error
	ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Snapshot, error)
	GetOverview(ctx context.Context) (*Overview, error)
	Close() error
}
