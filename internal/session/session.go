package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/hermes"
	"github.com/MikeSquared-Agency/Prism/internal/scoring"
	"github.com/MikeSquared-Agency/Prism/internal/store"
)

// ErrNoAnalysis is returned by operations that need a loaded analysis.
var ErrNoAnalysis = errors.New("no analysis loaded")

// State is the analysis currently on screen together with its weights and
// the summary derived from them.
type State struct {
	Name     string                `json:"name"`
	Source   store.Source          `json:"source"`
	Analysis *analyst.Analysis     `json:"analysis"`
	Weights  *scoring.WeightConfig `json:"weights"`
	Summary  *scoring.TableSummary `json:"summary"`
	LoadedAt time.Time             `json:"loaded_at"`
	EditedAt *time.Time            `json:"edited_at,omitempty"`
}

// Summaries are rebuilt on every change and never mutated, so only the
// weights need a deep copy.
func (s *State) clone() *State {
	out := *s
	out.Weights = s.Weights.Clone()
	return &out
}

// Controller owns the session state. The zero value is not usable; use New.
// Store and Hermes are optional.
type Controller struct {
	analyst       analyst.Client
	store         store.Store
	hermes        hermes.Client
	defaultDomain string
	logger        *slog.Logger

	mu    sync.RWMutex
	state *State
}

func New(a analyst.Client, s store.Store, h hermes.Client, defaultDomain string, logger *slog.Logger) *Controller {
	if defaultDomain == "" {
		defaultDomain = "Data"
	}
	return &Controller{
		analyst:       a,
		store:         s,
		hermes:        h,
		defaultDomain: defaultDomain,
		logger:        logger,
	}
}

// AnalyzeTable runs the backend analysis for a database table and loads it.
// On failure the previous state stays current.
func (c *Controller) AnalyzeTable(ctx context.Context, table string, generateInsights bool) (*State, error) {
	a, err := c.analyst.AnalyzeTable(ctx, table, generateInsights)
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, table, store.SourceTable, a)
}

// AnalyzeCSV uploads file to the backend and loads the result under filename.
func (c *Controller) AnalyzeCSV(ctx context.Context, filename string, file io.Reader, generateInsights bool) (*State, error) {
	a, err := c.analyst.AnalyzeCSV(ctx, filename, file, generateInsights)
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, filename, store.SourceCSV, a)
}

// Load makes a the current analysis. Weights are kept when the previous
// analysis had the same name and field count, otherwise they are rebuilt.
func (c *Controller) Load(ctx context.Context, name string, source store.Source, a *analyst.Analysis) (*State, error) {
	if a == nil {
		return nil, fmt.Errorf("load %q: nil analysis", name)
	}

	c.mu.Lock()
	var existing *scoring.WeightConfig
	if c.state != nil {
		existing = c.state.Weights
	}
	weights, rebuilt := scoring.Initialize(name, a.FieldAnalyses, existing)
	summary := scoring.Summarize(a.FieldAnalyses, weights)
	next := &State{
		Name:     name,
		Source:   source,
		Analysis: a,
		Weights:  weights,
		Summary:  summary,
		LoadedAt: time.Now().UTC(),
	}
	c.state = next
	out := next.clone()
	c.mu.Unlock()

	analysesLoaded.WithLabelValues(string(source)).Inc()
	recomputations.Inc()
	loadedFields.Set(float64(len(a.FieldAnalyses)))
	if rebuilt {
		weightsInitialized.Inc()
	}

	c.logger.Info("analysis loaded", "name", name, "source", source,
		"fields", len(a.FieldAnalyses), "weights_rebuilt", rebuilt,
		"weighted_score", summary.Table.WeightedScore, "grade", summary.Table.QualityGrade)

	c.recordSnapshot(ctx, out)

	c.publish(hermes.SubjectAnalysisLoaded(name), hermes.AnalysisLoadedEvent{
		EntityName:    name,
		Source:        string(source),
		TotalRecords:  a.TotalRecords,
		FieldCount:    len(a.FieldAnalyses),
		WeightedScore: summary.Table.WeightedScore,
		QualityGrade:  summary.Table.QualityGrade,
		Reinitialized: rebuilt,
	})
	if rebuilt {
		c.publish(hermes.SubjectWeightsInitialized(name), hermes.WeightsEvent{
			EntityName:    name,
			Weights:       out.Weights,
			WeightedScore: summary.Table.WeightedScore,
			QualityGrade:  summary.Table.QualityGrade,
		})
	}
	return out, nil
}

// EditWeights applies a batch of edits to the current weights and
// recomputes the summary.
func (c *Controller) EditWeights(ctx context.Context, edits []scoring.Edit) (*State, error) {
	c.mu.Lock()
	if c.state == nil {
		c.mu.Unlock()
		return nil, ErrNoAnalysis
	}
	cur := c.state
	weights := scoring.ApplyEdits(cur.Weights, cur.Analysis.FieldAnalyses, edits)
	now := time.Now().UTC()
	next := &State{
		Name:     cur.Name,
		Source:   cur.Source,
		Analysis: cur.Analysis,
		Weights:  weights,
		Summary:  scoring.Summarize(cur.Analysis.FieldAnalyses, weights),
		LoadedAt: cur.LoadedAt,
		EditedAt: &now,
	}
	c.state = next
	out := next.clone()
	c.mu.Unlock()

	weightEdits.Add(float64(len(edits)))
	recomputations.Inc()

	c.logger.Info("weights updated", "name", out.Name, "edits", len(edits),
		"weighted_score", out.Summary.Table.WeightedScore, "grade", out.Summary.Table.QualityGrade)

	c.publish(hermes.SubjectWeightsUpdated(out.Name), hermes.WeightsEvent{
		EntityName:    out.Name,
		Weights:       out.Weights,
		EditCount:     len(edits),
		WeightedScore: out.Summary.Table.WeightedScore,
		QualityGrade:  out.Summary.Table.QualityGrade,
	})
	return out, nil
}

// Current returns a copy of the session state.
func (c *Controller) Current() (*State, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, ErrNoAnalysis
	}
	return c.state.clone(), nil
}

func (c *Controller) Weights() (*scoring.WeightConfig, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, ErrNoAnalysis
	}
	return c.state.Weights.Clone(), nil
}

func (c *Controller) Summary() (*scoring.TableSummary, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, ErrNoAnalysis
	}
	return c.state.Summary, nil
}

// Reset discards the analysis, its weights and its summary.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	prev := c.state
	c.state = nil
	c.mu.Unlock()

	loadedFields.Set(0)

	ev := hermes.SessionResetEvent{Timestamp: time.Now().UTC()}
	if prev != nil {
		ev.EntityName = prev.Name
		c.logger.Info("session reset", "name", prev.Name)
	}
	c.publish(hermes.SubjectSessionReset, ev)
}

// GenerateRules asks the backend for validation rules covering the current
// analysis' issues.
func (c *Controller) GenerateRules(ctx context.Context) ([]analyst.Rule, error) {
	a, _, err := c.analysis()
	if err != nil {
		return nil, err
	}
	return c.analyst.GenerateRules(ctx, a)
}

// IssueAnalysis requests the detailed write-up. An empty domain falls back to
// the detected domain, then to the configured default.
func (c *Controller) IssueAnalysis(ctx context.Context, domain string) (*analyst.StructuredAnalysis, error) {
	a, _, err := c.analysis()
	if err != nil {
		return nil, err
	}
	if domain == "" {
		domain = a.Domain(c.defaultDomain)
	}
	return c.analyst.DetailedIssueAnalysis(ctx, a, domain)
}

// ExportPDF streams the backend's PDF report for the current analysis. The
// entity name defaults to the analysis name. The caller closes the reader.
func (c *Controller) ExportPDF(ctx context.Context, entityName string) (io.ReadCloser, string, error) {
	a, name, err := c.analysis()
	if err != nil {
		return nil, "", err
	}
	if entityName == "" {
		entityName = name
	}
	rc, err := c.analyst.ExportPDF(ctx, a, entityName)
	if err != nil {
		return nil, "", err
	}
	return rc, entityName, nil
}

func (c *Controller) analysis() (*analyst.Analysis, string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == nil {
		return nil, "", ErrNoAnalysis
	}
	return c.state.Analysis, c.state.Name, nil
}

func (c *Controller) recordSnapshot(ctx context.Context, s *State) {
	if c.store == nil {
		return
	}
	snap := store.NewSnapshot(s.Name, s.Source, s.Analysis.TotalRecords, s.Summary)
	if err := c.store.CreateSnapshot(ctx, snap); err != nil {
		c.logger.Warn("failed to record snapshot", "name", s.Name, "error", err)
	}
}

func (c *Controller) publish(subject string, data interface{}) {
	if c.hermes == nil {
		return
	}
	if err := c.hermes.Publish(subject, data); err != nil {
		c.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
