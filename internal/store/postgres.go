package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeSquared-Agency/Prism/internal/scoring"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS prism_snapshots (
	id                 UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	entity_name        TEXT NOT NULL,
	source             TEXT NOT NULL,
	total_records      INTEGER NOT NULL DEFAULT 0,
	field_count        INTEGER NOT NULL DEFAULT 0,
	weighted_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	quality_grade      TEXT NOT NULL,
	completeness_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	correctness_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	uniqueness_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS prism_snapshots_entity_idx ON prism_snapshots (entity_name, created_at DESC);`

// Migrate creates the snapshot table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const snapshotColumns = `id, entity_name, source, total_records, field_count,
	weighted_score, quality_grade,
	completeness_score, correctness_score, uniqueness_score,
	created_at`

func (s *PostgresStore) CreateSnapshot(ctx context.Context, snap *Snapshot) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO prism_snapshots (entity_name, source, total_records, field_count,
			weighted_score, quality_grade,
			completeness_score, correctness_score, uniqueness_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		snap.EntityName, string(snap.Source), snap.TotalRecords, snap.FieldCount,
		snap.WeightedScore, string(snap.QualityGrade),
		snap.CompletenessScore, snap.CorrectnessScore, snap.UniquenessScore,
	).Scan(&snap.ID, &snap.CreatedAt)
}

func (s *PostgresStore) ListSnapshots(ctx context.Context, filter SnapshotFilter) ([]*Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM prism_snapshots WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.EntityName != "" {
		n++
		query += fmt.Sprintf(" AND entity_name = $%d", n)
		args = append(args, filter.EntityName)
	}
	if filter.Source != "" {
		n++
		query += fmt.Sprintf(" AND source = $%d", n)
		args = append(args, string(filter.Source))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

func (s *PostgresStore) GetOverview(ctx context.Context) (*Overview, error) {
	o := &Overview{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT entity_name),
			COALESCE(SUM(total_records), 0),
			COALESCE(ROUND(AVG(weighted_score)::numeric, 1), 0)::float8,
			COALESCE(SUM(CASE WHEN quality_grade IN ('C', 'D') THEN 1 ELSE 0 END), 0),
			MAX(created_at)
		FROM prism_snapshots`,
	).Scan(&o.SnapshotCount, &o.EntityCount, &o.TotalRecords, &o.AvgQuality, &o.IssuesFound, &o.LastUpdated)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanSnapshots(rows pgx.Rows) ([]*Snapshot, error) {
	var snaps []*Snapshot
	for rows.Next() {
		s := &Snapshot{}
		var source, grade string
		if err := rows.Scan(
			&s.ID, &s.EntityName, &source, &s.TotalRecords, &s.FieldCount,
			&s.WeightedScore, &grade,
			&s.CompletenessScore, &s.CorrectnessScore, &s.UniquenessScore,
			&s.CreatedAt,
		); err != nil {
			return nil, err
		}
		s.Source = Source(source)
		s.QualityGrade = scoring.Grade(grade)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
