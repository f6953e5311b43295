package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:8080", "justscrape API base URL")
	apiKey = flag.String("api-key", "", "API key for authenticated requests")
	runs   = flag.Int("runs", 3, "Number of runs per URL for averaging")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering the escalation spectrum: pages static fetch handles,
// pages that need rendering, and a known bot wall.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Rendered", "https://github.com/go-rod/rod"},
}

// --- Request / Response types (mirrors models package) ---

type retrieveRequest struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type retrieveResponse struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Signals struct {
		ContentLength  int    `json:"content_length"`
		Method         string `json:"method"`
		TokensEstimate int    `json:"tokens_estimate"`
	} `json:"signals"`
	Classification struct {
		Status     string `json:"status"`
		Confidence string `json:"confidence"`
	} `json:"classification"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// --- Benchmark result types ---

type runResult struct {
	Run            int    `json:"run"`
	TotalMs        int64  `json:"total_ms"`
	Method         string `json:"method"`
	Status         string `json:"status"`
	TokensEstimate int    `json:"tokens_estimate"`
	ContentLength  int    `json:"content_length"`
	HasTitle       bool   `json:"has_title"`
	Usable         bool   `json:"usable"`
	Error          string `json:"error,omitempty"`
}

type urlAverages struct {
	TotalMs        float64 `json:"total_ms"`
	TokensEstimate float64 `json:"tokens_estimate"`
	ContentLength  float64 `json:"content_length"`
	UsableRate     float64 `json:"usable_rate"`
}

type urlResult struct {
	URL      string       `json:"url"`
	Label    string       `json:"label"`
	Runs     []runResult  `json:"runs"`
	Averages *urlAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== justscrape Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure justscrape is running (e.g. make run)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(t.URL, i)
			if rr.Error == "" {
				fmt.Printf("%s  %dms  %s  ~%d tokens\n", rr.Status, rr.TotalMs, rr.Method, rr.TokensEstimate)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Averages = computeAverages(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(url string, run int) runResult {
	rr := runResult{Run: run}

	reqBody := retrieveRequest{
		URL:            url,
		TimeoutSeconds: 60,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest("POST", *apiURL+"/api/v1/retrieve", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.TotalMs = time.Since(start).Milliseconds()

	var rv retrieveResponse
	if err := json.NewDecoder(resp.Body).Decode(&rv); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Method = rv.Signals.Method
	rr.Status = rv.Classification.Status
	rr.TokensEstimate = rv.Signals.TokensEstimate
	rr.ContentLength = rv.Signals.ContentLength
	rr.HasTitle = rv.Title != ""
	rr.Usable = rv.Classification.Status == "usable"

	if rv.Error != nil {
		rr.Error = rv.Error.Message
	}

	return rr
}

func computeAverages(runs []runResult) *urlAverages {
	var completed, usable int
	var avg urlAverages

	for _, r := range runs {
		if r.Error != "" {
			continue
		}
		completed++
		if r.Usable {
			usable++
		}
		avg.TotalMs += float64(r.TotalMs)
		avg.TokensEstimate += float64(r.TokensEstimate)
		avg.ContentLength += float64(r.ContentLength)
	}

	if completed == 0 {
		return nil
	}

	n := float64(completed)
	avg.TotalMs /= n
	avg.TokensEstimate /= n
	avg.ContentLength /= n
	avg.UsableRate = float64(usable) / n
	return &avg
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tMethod\tContent Len\tUsable\n")
	fmt.Fprintf(w, "───\t───────────\t──────\t───────────\t──────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}

		fmt.Fprintf(w, "%s\t%dms\t%s\t%s\t%.0f%%\n",
			truncateURL(r.URL, 40),
			int64(r.Averages.TotalMs),
			dominantMethod(r.Runs),
			formatInt(int(r.Averages.ContentLength)),
			r.Averages.UsableRate*100,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func dominantMethod(runs []runResult) string {
	counts := map[string]int{}
	for _, r := range runs {
		if r.Error == "" {
			counts[r.Method]++
		}
	}
	best, bestCount := "-", 0
	for method, count := range counts {
		if count > bestCount {
			best = method
			bestCount = count
		}
	}
	return best
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
