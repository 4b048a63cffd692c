package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Prism/internal/analyst"
	"github.com/MikeSquared-Agency/Prism/internal/config"
	"github.com/MikeSquared-Agency/Prism/internal/monitor"
	"github.com/MikeSquared-Agency/Prism/internal/ratelimit"
	"github.com/MikeSquared-Agency/Prism/internal/scoring"
	"github.com/MikeSquared-Agency/Prism/internal/session"
	"github.com/MikeSquared-Agency/Prism/internal/store"
)

// Mocks
type fakeAnalyst struct {
	mu        sync.Mutex
	analysis  *analyst.Analysis
	err       error
	csvName   string
	csvBody   string
	domain    string
	initCalls int
}

func (f *fakeAnalyst) Ping(_ context.Context) error { return f.err }
func (f *fakeAnalyst) TestLLM(_ context.Context) (*analyst.LLMStatus, error) {
	return &analyst.LLMStatus{Connected: true, Model: "llama3"}, nil
}
func (f *fakeAnalyst) AnalyzeTable(_ context.Context, table string, _ bool) (*analyst.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	a := *f.analysis
	a.TableName = table
	return &a, nil
}
func (f *fakeAnalyst) AnalyzeCSV(_ context.Context, filename string, file io.Reader, _ bool) (*analyst.Analysis, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, _ := io.ReadAll(file)
	f.mu.Lock()
	f.csvName, f.csvBody = filename, string(data)
	f.mu.Unlock()
	a := *f.analysis
	return &a, nil
}
func (f *fakeAnalyst) GenerateRules(_ context.Context, _ *analyst.Analysis) ([]analyst.Rule, error) {
	return []analyst.Rule{{ID: "r1", Name: "Email format", Field: "email", Active: true}}, f.err
}
func (f *fakeAnalyst) DetailedIssueAnalysis(_ context.Context, _ *analyst.Analysis, domain string) (*analyst.StructuredAnalysis, error) {
	f.domain = domain
	return &analyst.StructuredAnalysis{Domain: domain}, f.err
}
func (f *fakeAnalyst) ExportPDF(_ context.Context, _ *analyst.Analysis, entity string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4 " + entity)), nil
}
func (f *fakeAnalyst) ListDomains(_ context.Context) ([]analyst.Domain, error) {
	return []analyst.Domain{{Name: "HR", Source: "database"}}, f.err
}
func (f *fakeAnalyst) SubdomainSummary(_ context.Context, req analyst.SubdomainRequest) (*analyst.SubdomainSummary, error) {
	return &analyst.SubdomainSummary{Domain: req.Domain, SubDomain: req.SubDomain, Score: req.Score, Summary: "ok"}, f.err
}
func (f *fakeAnalyst) SaveSubdomainSummary(_ context.Context, req analyst.SaveSummaryRequest) (*analyst.SaveSummaryResult, error) {
	return &analyst.SaveSummaryResult{Message: "saved by " + req.EditedBy}, f.err
}
func (f *fakeAnalyst) InitDB(_ context.Context) error {
	f.initCalls++
	return f.err
}

type mockStore struct {
	snaps []*store.Snapshot
}

func (m *mockStore) CreateSnapshot(_ context.Context, s *store.Snapshot) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	m.snaps = append(m.snaps, s)
	return nil
}
func (m *mockStore) ListSnapshots(_ context.Context, f store.SnapshotFilter) ([]*store.Snapshot, error) {
	var out []*store.Snapshot
	for _, s := range m.snaps {
		if f.EntityName == "" || s.EntityName == f.EntityName {
			out = append(out, s)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
func (m *mockStore) GetOverview(_ context.Context) (*store.Overview, error) {
	return &store.Overview{SnapshotCount: len(m.snaps), AvgQuality: 81.5}, nil
}
func (m *mockStore) Close() error { return nil }

type mockMonitor struct {
	status *monitor.Status
	probes int
}

func (m *mockMonitor) Status() (monitor.Status, bool) {
	if m.status == nil {
		return monitor.Status{}, false
	}
	return *m.status, true
}
func (m *mockMonitor) Probe(_ context.Context) monitor.Status {
	m.probes++
	s := monitor.Status{Reachable: true, CheckedAt: time.Now()}
	m.status = &s
	return s
}

func employees() *analyst.Analysis {
	return &analyst.Analysis{
		TotalRecords: 200,
		FieldAnalyses: []scoring.FieldScore{
			{FieldName: "employee_id", DataType: "int64", CompletenessScore: 100, CorrectnessScore: 100, UniquenessScore: 100, OverallScore: 100},
			{FieldName: "email", DataType: "object", CompletenessScore: 80, CorrectnessScore: 60, UniquenessScore: 100, OverallScore: 80},
		},
		DetectedDomain: "HR",
	}
}

type testEnv struct {
	router  http.Handler
	analyst *fakeAnalyst
	store   *mockStore
	monitor *mockMonitor
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fa := &fakeAnalyst{analysis: employees()}
	ms := &mockStore{}
	mm := &mockMonitor{}
	cfg := &config.Config{Server: config.ServerConfig{AdminToken: "test-token", AllowedOrigins: []string{"*"}}}
	ctrl := session.New(fa, ms, nil, "Data", logger)
	return &testEnv{
		router:  NewRouter(ctrl, fa, ms, mm, ratelimit.NewMemory(1000, time.Minute), cfg, logger),
		analyst: fa,
		store:   ms,
		monitor: mm,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) load(t *testing.T) {
	t.Helper()
	w := e.do(t, "POST", "/api/v1/analyses/table/employees", `{"generate_insights":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestEndpointsBeforeLoadReturn404(t *testing.T) {
	env := setupTestRouter(t)

	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/v1/session", ""},
		{"GET", "/api/v1/weights", ""},
		{"GET", "/api/v1/summary", ""},
		{"PATCH", "/api/v1/weights", `{"edits":[]}`},
		{"POST", "/api/v1/rules", ""},
		{"POST", "/api/v1/issues/analysis", ""},
		{"POST", "/api/v1/export/pdf", ""},
	} {
		w := env.do(t, tc.method, tc.path, tc.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: expected 404, got %d", tc.method, tc.path, w.Code)
		}
	}
}

func TestAnalyzeTable(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(t, "POST", "/api/v1/analyses/table/employees", `{"generate_insights":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var st struct {
		Name    string                `json:"name"`
		Source  string                `json:"source"`
		Weights scoring.WeightConfig  `json:"weights"`
		Summary *scoring.TableSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	assert.Equal(t, "employees", st.Name)
	assert.Equal(t, "table", st.Source)
	assert.Len(t, st.Weights.Fields, 2)
	require.NotNil(t, st.Summary)
	assert.Len(t, st.Summary.Fields, 2)
	assert.Len(t, env.store.snaps, 1)
}

func TestAnalyzeTableWithoutBody(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, "POST", "/api/v1/analyses/table/employees", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAnalyzeTableBadBody(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do(t, "POST", "/api/v1/analyses/table/employees", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeBackendFailureIs502AndKeepsState(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	env.analyst.err = errors.New("analyst POST /api/analyze/table/x: 500 boom")
	w := env.do(t, "POST", "/api/v1/analyses/table/x", "")
	if w.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", w.Code)
	}
	env.analyst.err = nil

	w = env.do(t, "GET", "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"employees"`)
}

func TestAnalyzeCSVUpload(t *testing.T) {
	env := setupTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "vendors.csv")
	require.NoError(t, err)
	io.WriteString(part, "id,name\n1,acme\n")
	mw.WriteField("generate_insights", "true")
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/v1/analyses/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	assert.Equal(t, "vendors.csv", env.analyst.csvName)
	assert.Equal(t, "id,name\n1,acme\n", env.analyst.csvBody)
	assert.Contains(t, w.Body.String(), `"source":"csv"`)
}

func TestAnalyzeCSVMissingFile(t *testing.T) {
	env := setupTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("generate_insights", "false")
	mw.Close()

	req := httptest.NewRequest("POST", "/api/v1/analyses/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPatchWeightsRenormalizes(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	body := `{"edits":[
		{"field":"email","metric":"completeness","value":"abc"},
		{"field":"employee_id","metric":"importance","value":0.3},
		{"field":"email","metric":"importance","value":"0.3"}
	]}`
	w := env.do(t, "PATCH", "/api/v1/weights", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp EditWeightsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	email := resp.Weights.Fields["email"]
	assert.Equal(t, 0.0, email.Completeness)
	assert.InDelta(t, 1.0, email.MetricSum(), 1e-9)
	assert.InDelta(t, 0.5, email.Importance, 1e-9)
	assert.InDelta(t, 0.5, resp.Weights.Fields["employee_id"].Importance, 1e-9)
	require.NotNil(t, resp.Summary)
	assert.InDelta(t, 1.0, resp.Summary.Table.TotalImportance, 1e-9)

	w = env.do(t, "GET", "/api/v1/weights", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cfg scoring.WeightConfig
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cfg))
	assert.InDelta(t, 0.5, cfg.Fields["email"].Importance, 1e-9)
}

func TestPatchWeightsBadBody(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)
	w := env.do(t, "PATCH", "/api/v1/weights", `[1,2`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestSummaryAfterLoad(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	w := env.do(t, "GET", "/api/v1/summary", "")
	require.Equal(t, http.StatusOK, w.Code)

	var s scoring.TableSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&s))
	assert.Len(t, s.Fields, 2)
	assert.False(t, math.IsNaN(s.Table.WeightedScore))
	assert.Equal(t, scoring.GradeFor(s.Table.WeightedScore), s.Table.QualityGrade)
}

func TestDeleteSessionResets(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	w := env.do(t, "DELETE", "/api/v1/session", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/api/v1/summary", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 after reset, got %d", w.Code)
	}
}

func TestInsightProxies(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	w := env.do(t, "POST", "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"email"`)

	w = env.do(t, "POST", "/api/v1/issues/analysis", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HR", env.analyst.domain)

	w = env.do(t, "POST", "/api/v1/issues/analysis", `{"domain":"Finance"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Finance", env.analyst.domain)

	w = env.do(t, "GET", "/api/v1/domains", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"HR"`)
}

func TestExportPDF(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)

	w := env.do(t, "POST", "/api/v1/export/pdf", `{"entity_name":"Q3 payroll"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="analysis_Q3_payroll_`)
	assert.Equal(t, "%PDF-1.4 Q3 payroll", w.Body.String())
}

func TestReportFilename(t *testing.T) {
	at := time.Date(2026, 10, 19, 14, 5, 9, 0, time.UTC)
	assert.Equal(t, "analysis_vendors_20261019_140509.pdf", reportFilename("vendors.csv", at))
	assert.Equal(t, "analysis_a_b__c_20261019_140509.pdf", reportFilename("a/b\"'c", at))
}

func TestSubdomainEndpoints(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(t, "POST", "/api/v1/subdomains/summary", `{"domain":"HR","sub_domain":"Payroll","score":82}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sub_domain":"Payroll"`)

	w = env.do(t, "POST", "/api/v1/subdomains/summary", `{"domain":"HR"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/v1/subdomains/summary/save", `{"domain":"HR","sub_domain":"Payroll","summary":"fine"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "saved by User")
}

func TestSnapshotsAndOverview(t *testing.T) {
	env := setupTestRouter(t)
	env.load(t)
	env.load(t)

	w := env.do(t, "GET", "/api/v1/snapshots?entity=employees&limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var snaps []store.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snaps))
	assert.Len(t, snaps, 1)

	w = env.do(t, "GET", "/api/v1/snapshots?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "GET", "/api/v1/overview", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"snapshot_count":2`)
}

func TestStatusProbesWhenUnknown(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(t, "GET", "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reachable":true`)
	assert.Equal(t, 1, env.monitor.probes)

	env.do(t, "GET", "/api/v1/status", "")
	assert.Equal(t, 1, env.monitor.probes, "cached status is reused")
}

func TestInitDBRequiresAdminToken(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(t, "POST", "/api/v1/admin/init-db", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}

	req := httptest.NewRequest("POST", "/api/v1/admin/init-db", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	assert.Equal(t, 1, env.analyst.initCalls)
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestRouter(t)

	req := httptest.NewRequest("OPTIONS", "/api/v1/weights", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "PATCH")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("expected CORS allow-origin header")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	h := NewHistoryHandler(nil, nil)

	w := httptest.NewRecorder()
	h.Snapshots(w, httptest.NewRequest("GET", "/api/v1/snapshots", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	h.Status(w, httptest.NewRequest("GET", "/api/v1/status", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
