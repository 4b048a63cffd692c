package analyst

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrUnsuccessful is wrapped when the backend answers with success=false.
var ErrUnsuccessful = errors.New("analyst reported failure")

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "prism_analyst_request_duration_seconds",
	Help:    "Latency of calls to the data-quality analysis backend.",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
}, []string{"endpoint", "outcome"})

// Client is the data-quality analysis backend.
type Client interface {
	Ping(ctx context.Context) error
	TestLLM(ctx context.Context) (*LLMStatus, error)
	AnalyzeTable(ctx context.Context, table string, generateInsights bool) (*Analysis, error)
	AnalyzeCSV(ctx context.Context, filename string, file io.Reader, generateInsights bool) (*Analysis, error)
	GenerateRules(ctx context.Context, a *Analysis) ([]Rule, error)
	DetailedIssueAnalysis(ctx context.Context, a *Analysis, domain string) (*StructuredAnalysis, error)
	ExportPDF(ctx context.Context, a *Analysis, entityName string) (io.ReadCloser, error)
	ListDomains(ctx context.Context) ([]Domain, error)
	SubdomainSummary(ctx context.Context, req SubdomainRequest) (*SubdomainSummary, error)
	SaveSubdomainSummary(ctx context.Context, req SaveSummaryRequest) (*SaveSummaryResult, error)
	InitDB(ctx context.Context) error
}

type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type checkable interface {
	check() error
}

func (e envelope) check() error {
	if e.Success {
		return nil
	}
	msg := e.Error
	if msg == "" {
		msg = e.Message
	}
	if msg == "" {
		return ErrUnsuccessful
	}
	return fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
}

// do sends the request and returns the response when the status is < 400.
// The caller closes the body.
func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyst %s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("analyst %s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, endpoint, method, path string, in interface{}, out checkable) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		requestDuration.WithLabelValues(endpoint, outcome).Observe(time.Since(start).Seconds())
	}()

	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if err := out.check(); err != nil {
		return fmt.Errorf("analyst %s: %w", endpoint, err)
	}
	return nil
}

// Ping confirms the backend is reachable.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp envelope
	return c.doJSON(ctx, "stats_overall", http.MethodGet, "/api/stats/overall", nil, &resp)
}

// TestLLM asks the backend whether its language model answers. A reachable
// backend with a disconnected model is not an error.
func (c *HTTPClient) TestLLM(ctx context.Context) (*LLMStatus, error) {
	var resp struct {
		envelope
		Model string `json:"model"`
	}
	err := c.doJSON(ctx, "llm_test", http.MethodGet, "/api/llm/test", nil, &resp)
	if err != nil && !errors.Is(err, ErrUnsuccessful) {
		return nil, err
	}
	return &LLMStatus{Connected: resp.Success, Model: resp.Model, Message: resp.Message}, nil
}

func (c *HTTPClient) AnalyzeTable(ctx context.Context, table string, generateInsights bool) (*Analysis, error) {
	var resp analysisResponse
	req := map[string]bool{"generate_insights": generateInsights}
	if err := c.doJSON(ctx, "analyze_table", http.MethodPost, "/api/analyze/table/"+url.PathEscape(table), req, &resp); err != nil {
		return nil, err
	}
	if resp.Analysis == nil {
		return nil, fmt.Errorf("analyst analyze_table: empty analysis for %q", table)
	}
	if resp.Analysis.TableName == "" {
		resp.Analysis.TableName = table
	}
	return resp.Analysis, nil
}

func (c *HTTPClient) AnalyzeCSV(ctx context.Context, filename string, file io.Reader, generateInsights bool) (*Analysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build csv upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("build csv upload: %w", err)
	}
	if err := mw.WriteField("generate_insights", fmt.Sprintf("%t", generateInsights)); err != nil {
		return nil, fmt.Errorf("build csv upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build csv upload: %w", err)
	}

	start := time.Now()
	outcome := "error"
	defer func() {
		requestDuration.WithLabelValues("analyze_csv", outcome).Observe(time.Since(start).Seconds())
	}()

	resp, err := c.do(ctx, http.MethodPost, "/api/analyze/csv", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out analysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode analyze_csv response: %w", err)
	}
	if err := out.check(); err != nil {
		return nil, fmt.Errorf("analyst analyze_csv: %w", err)
	}
	if out.Analysis == nil {
		return nil, fmt.Errorf("analyst analyze_csv: empty analysis for %q", filename)
	}
	if out.Analysis.TableName == "" {
		out.Analysis.TableName = filename
	}
	outcome = "ok"
	return out.Analysis, nil
}

func (c *HTTPClient) GenerateRules(ctx context.Context, a *Analysis) ([]Rule, error) {
	req := map[string]json.RawMessage{
		"issues":         orEmptyList(a.Member("issues")),
		"field_analyses": orEmptyList(a.Member("field_analyses")),
	}
	var resp rulesResponse
	if err := c.doJSON(ctx, "generate_rules", http.MethodPost, "/api/generate-rules-from-issues", req, &resp); err != nil {
		return nil, err
	}
	return resp.Rules, nil
}

func (c *HTTPClient) DetailedIssueAnalysis(ctx context.Context, a *Analysis, domain string) (*StructuredAnalysis, error) {
	domainJSON, _ := json.Marshal(domain)
	req := map[string]json.RawMessage{
		"issues":         orEmptyList(a.Member("issues")),
		"field_analyses": orEmptyList(a.Member("field_analyses")),
		"domain":         domainJSON,
		"table_scores":   orEmptyObject(a.Member("table_scores")),
	}
	var resp structuredResponse
	if err := c.doJSON(ctx, "issue_analysis", http.MethodPost, "/api/generate-detailed-issue-analysis", req, &resp); err != nil {
		return nil, err
	}
	return &resp.StructuredAnalysis, nil
}

// ExportPDF streams the rendered report. The caller closes the reader.
func (c *HTTPClient) ExportPDF(ctx context.Context, a *Analysis, entityName string) (io.ReadCloser, error) {
	payload, err := json.Marshal(struct {
		Analysis   *Analysis `json:"analysis"`
		EntityName string    `json:"entity_name"`
	}{a, entityName})
	if err != nil {
		return nil, fmt.Errorf("encode export request: %w", err)
	}

	start := time.Now()
	resp, err := c.do(ctx, http.MethodPost, "/api/export/analysis-pdf", "application/json", bytes.NewReader(payload))
	if err != nil {
		requestDuration.WithLabelValues("export_pdf", "error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	requestDuration.WithLabelValues("export_pdf", "ok").Observe(time.Since(start).Seconds())
	return resp.Body, nil
}

func (c *HTTPClient) ListDomains(ctx context.Context) ([]Domain, error) {
	var resp domainsResponse
	if err := c.doJSON(ctx, "domains", http.MethodGet, "/api/domains/from-database", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Domains, nil
}

func (c *HTTPClient) SubdomainSummary(ctx context.Context, req SubdomainRequest) (*SubdomainSummary, error) {
	var resp subdomainResponse
	if err := c.doJSON(ctx, "subdomain_summary", http.MethodPost, "/api/subdomain/ai-summary", req, &resp); err != nil {
		return nil, err
	}
	out := resp.SubdomainSummary
	if out.Domain == "" {
		out.Domain = req.Domain
	}
	if out.SubDomain == "" {
		out.SubDomain = req.SubDomain
	}
	return &out, nil
}

func (c *HTTPClient) SaveSubdomainSummary(ctx context.Context, req SaveSummaryRequest) (*SaveSummaryResult, error) {
	var resp saveSummaryResponse
	if err := c.doJSON(ctx, "save_summary", http.MethodPost, "/api/subdomain/save-summary", req, &resp); err != nil {
		return nil, err
	}
	return &SaveSummaryResult{Message: resp.Message, Timestamp: resp.Timestamp}, nil
}

func (c *HTTPClient) InitDB(ctx context.Context) error {
	var resp envelope
	return c.doJSON(ctx, "init_db", http.MethodPost, "/admin/init-db", nil, &resp)
}

func orEmptyList(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return json.RawMessage("[]")
	}
	return v
}

func orEmptyObject(v json.RawMessage) json.RawMessage {
	if len(v) == 0 || string(v) == "null" {
		return json.RawMessage("{}")
	}
	return v
}
