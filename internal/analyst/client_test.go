package analyst

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const analysisJSON = `{
	"success": true,
	"analysis": {
		"total_records": 120,
		"table_scores": {"overall_score": 81.5, "quality_grade": "B"},
		"field_analyses": [
			{"field_name": "email", "data_type": "object", "completeness_score": 80, "correctness_score": 60, "uniqueness_score": 100, "overall_score": 80, "null_count": 24},
			{"field_name": "salary", "data_type": "float64", "completeness_score": 100, "correctness_score": 90, "uniqueness_score": 40, "overall_score": 77}
		],
		"issues": [{"field": "email", "type": "invalid_format", "count": 12}],
		"detected_domain": "HR"
	}
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, "", 5*time.Second)
}

func TestAnalyzeTable(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/analyze/table/employees", r.URL.Path)
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body["generate_insights"])
		io.WriteString(w, analysisJSON)
	})

	a, err := c.AnalyzeTable(t.Context(), "employees", true)
	require.NoError(t, err)
	assert.Equal(t, "employees", a.TableName)
	assert.Equal(t, 120, a.TotalRecords)
	require.Len(t, a.FieldAnalyses, 2)
	assert.Equal(t, "email", a.FieldAnalyses[0].FieldName)
	assert.Equal(t, 60.0, a.FieldAnalyses[0].CorrectnessScore)
	assert.Equal(t, "HR", a.Domain("Data"))
}

func TestAnalysisKeepsUnknownMembers(t *testing.T) {
	var resp analysisResponse
	require.NoError(t, json.Unmarshal([]byte(analysisJSON), &resp))

	fields := resp.Analysis.Member("field_analyses")
	assert.Contains(t, string(fields), `"null_count": 24`)

	out, err := json.Marshal(resp.Analysis)
	require.NoError(t, err)
	assert.Contains(t, string(out), "null_count")
}

func TestAnalysisMemberFallsBackToTypedValues(t *testing.T) {
	a := &Analysis{TableScores: map[string]interface{}{"overall_score": 70.0}}
	assert.JSONEq(t, `{"overall_score": 70}`, string(a.Member("table_scores")))
	assert.Nil(t, a.Member("unknown"))
	assert.Equal(t, "Data", (&Analysis{DetectedDomain: "Unknown"}).Domain("Data"))
}

func TestAnalyzeCSVUploadsMultipart(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze/csv", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "vendors.csv", header.Filename)
		assert.Equal(t, "id,name\n1,acme\n", string(data))
		assert.Equal(t, "false", r.FormValue("generate_insights"))
		io.WriteString(w, analysisJSON)
	})

	a, err := c.AnalyzeCSV(t.Context(), "vendors.csv", strings.NewReader("id,name\n1,acme\n"), false)
	require.NoError(t, err)
	assert.Equal(t, "vendors.csv", a.TableName)
}

func TestBackendFailureIsWrapped(t *testing.T) {
	t.Run("success false", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"success": false, "error": "Invalid table name"}`)
		})
		_, err := c.AnalyzeTable(t.Context(), "nope", false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnsuccessful))
		assert.Contains(t, err.Error(), "Invalid table name")
	})

	t.Run("http status", func(t *testing.T) {
		c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			io.WriteString(w, `{"success": false, "error": "boom"}`)
		})
		_, err := c.ListDomains(t.Context())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})
}

func TestTestLLMDisconnectedIsNotAnError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/llm/test", r.URL.Path)
		io.WriteString(w, `{"success": false, "message": "Cannot connect to LLM", "model": "llama3"}`)
	})

	status, err := c.TestLLM(t.Context())
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "llama3", status.Model)
}

func TestGenerateRulesSendsIssuesAndFields(t *testing.T) {
	var resp analysisResponse
	require.NoError(t, json.Unmarshal([]byte(analysisJSON), &resp))

	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate-rules-from-issues", r.URL.Path)
		var body map[string][]map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body["issues"], 1)
		assert.Len(t, body["field_analyses"], 2)
		io.WriteString(w, `{"success": true, "rules": [{"id": "r1", "name": "Email format", "field": "email", "type": "format", "severity": "high", "weight": 0.8, "active": true}]}`)
	})

	rules, err := c.GenerateRules(t.Context(), resp.Analysis)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "email", rules[0].Field)
	assert.True(t, rules[0].Active)
}

func TestDetailedIssueAnalysis(t *testing.T) {
	a := &Analysis{}
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.JSONEq(t, `"Finance"`, string(body["domain"]))
		assert.JSONEq(t, `[]`, string(body["issues"]))
		io.WriteString(w, `{"success": true, "structured_analysis": {"domain": "Finance", "critical_findings": [{"field": "amount", "finding": "amount: negative values", "priority": "Immediate"}], "recommended_actions": [{"action": "Add range check", "priority": "High"}]}}`)
	})

	sa, err := c.DetailedIssueAnalysis(t.Context(), a, "Finance")
	require.NoError(t, err)
	assert.Equal(t, "Finance", sa.Domain)
	require.Len(t, sa.CriticalFindings, 1)
	assert.Equal(t, "Immediate", sa.CriticalFindings[0].Priority)
	require.Len(t, sa.RecommendedActions, 1)
}

func TestExportPDFStreamsBody(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EntityName string          `json:"entity_name"`
			Analysis   json.RawMessage `json:"analysis"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "employees", body.EntityName)
		w.Header().Set("Content-Type", "application/pdf")
		io.WriteString(w, "%PDF-1.4 fake")
	})

	rc, err := c.ExportPDF(t.Context(), &Analysis{TotalRecords: 3}, "employees")
	require.NoError(t, err)
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "%PDF-1.4 fake", string(data))
}

func TestSubdomainSummaryRoundTrip(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/subdomain/ai-summary":
			io.WriteString(w, `{"success": true, "summary": "Payroll is mostly clean.", "score": 82}`)
		case "/api/subdomain/save-summary":
			io.WriteString(w, `{"success": true, "message": "Summary saved successfully", "timestamp": "2026-10-19T10:00:00"}`)
		default:
			http.NotFound(w, r)
		}
	})

	s, err := c.SubdomainSummary(t.Context(), SubdomainRequest{Domain: "HR", SubDomain: "Payroll", Score: 82})
	require.NoError(t, err)
	assert.Equal(t, "Payroll is mostly clean.", s.Summary)
	assert.Equal(t, "HR", s.Domain)
	assert.Equal(t, "Payroll", s.SubDomain)

	saved, err := c.SaveSubdomainSummary(t.Context(), SaveSummaryRequest{Domain: "HR", SubDomain: "Payroll", Summary: s.Summary})
	require.NoError(t, err)
	assert.Equal(t, "Summary saved successfully", saved.Message)
}

func TestPingAndInitDB(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"success": true}`)
	})
	assert.NoError(t, c.Ping(t.Context()))
	assert.NoError(t, c.InitDB(t.Context()))
}
