// seed_weights.go parses a markdown weights sheet kept by data stewards and
// applies it to the loaded Prism session in a single PATCH.
//
// Sheet format:
//
//	## email 🔴
//	- completeness: 0.6
//	- uniqueness: 0.4
//
// Usage:
//
//	go run scripts/seed_weights.go -sheet WEIGHTS.md -api http://localhost:8600
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type edit struct {
	Field  string `json:"field"`
	Metric string `json:"metric"`
	Value  string `json:"value"`
}

// Priority marker to field importance.
var importanceMap = map[string]string{
	"🔴": "0.95",
	"🟠": "0.75",
	"🟡": "0.50",
	"🟢": "0.25",
}

var metrics = map[string]bool{
	"completeness": true,
	"correctness":  true,
	"uniqueness":   true,
	"importance":   true,
}

func main() {
	sheetPath := flag.String("sheet", "WEIGHTS.md", "path to the weights sheet")
	apiURL := flag.String("api", "http://localhost:8600", "Prism API base URL")
	clientID := flag.String("client", "seed", "X-Client-ID header value")
	dryRun := flag.Bool("dry-run", false, "print edits without sending")
	flag.Parse()

	f, err := os.Open(*sheetPath)
	if err != nil {
		log.Fatalf("open sheet: %v", err)
	}
	defer f.Close()

	var edits []edit
	var field string
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "## ") {
			field = strings.TrimSpace(strings.TrimPrefix(line, "## "))
			for marker, importance := range importanceMap {
				if strings.Contains(field, marker) {
					field = strings.TrimSpace(strings.ReplaceAll(field, marker, ""))
					edits = append(edits, edit{Field: field, Metric: "importance", Value: importance})
					break
				}
			}
			continue
		}

		if field == "" || !strings.HasPrefix(line, "- ") {
			continue
		}

		key, value, ok := strings.Cut(strings.TrimPrefix(line, "- "), ":")
		if !ok {
			continue
		}
		metric := strings.ToLower(strings.TrimSpace(key))
		if !metrics[metric] {
			log.Printf("skip %s.%s: unknown metric", field, metric)
			continue
		}
		edits = append(edits, edit{Field: field, Metric: metric, Value: strings.TrimSpace(value)})
	}

	if err := scanner.Err(); err != nil {
		log.Fatalf("scan sheet: %v", err)
	}

	log.Printf("parsed %d edits from %s", len(edits), *sheetPath)

	if *dryRun {
		for i, e := range edits {
			fmt.Printf("[%d] %s.%s = %s\n", i+1, e.Field, e.Metric, e.Value)
		}
		return
	}
	if len(edits) == 0 {
		return
	}

	body, _ := json.Marshal(map[string]interface{}{"edits": edits})
	req, err := http.NewRequest(http.MethodPatch, *apiURL+"/api/v1/weights", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", *clientID)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("patch weights: %v", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var out struct {
			Summary struct {
				Table struct {
					WeightedScore float64 `json:"weighted_score"`
					QualityGrade  string  `json:"quality_grade"`
				} `json:"table"`
			} `json:"summary"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			log.Printf("applied %d edits", len(edits))
			return
		}
		log.Printf("applied %d edits: weighted %.1f grade %s", len(edits),
			out.Summary.Table.WeightedScore, out.Summary.Table.QualityGrade)
	case http.StatusNotFound:
		log.Fatalf("no analysis loaded; analyze a table first")
	default:
		log.Fatalf("patch weights: status %d", resp.StatusCode)
	}
}
