package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:3000", "Coastwatch API base URL")
	runs   = flag.Int("runs", 3, "Number of requests per route")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Routes exercised by the benchmark. The first request to a cached route is
// expected to be a MISS and the rest HITs.
var routes = []struct {
	Label string
	Path  string
}{
	{"Tides", "/api/tides"},
	{"Forecast", "/api/weatherforecast"},
	{"Waves", "/api/waves"},
	{"Live wind", "/api/wind"},
}

// --- Benchmark result types ---

type runResult struct {
	Run        int    `json:"run"`
	TotalMs    int64  `json:"total_ms"`
	StatusCode int    `json:"status_code"`
	Cache      string `json:"cache,omitempty"`
	BodyLength int    `json:"body_length"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type routeAverages struct {
	MissMs float64 `json:"miss_ms"`
	HitMs  float64 `json:"hit_ms"`
	Hits   int     `json:"hits"`
	Misses int     `json:"misses"`
}

type routeResult struct {
	Path     string         `json:"path"`
	Label    string         `json:"label"`
	Runs     []runResult    `json:"runs"`
	Averages *routeAverages `json:"averages,omitempty"`
}

type benchmarkReport struct {
	Timestamp    string        `json:"timestamp"`
	APIURL       string        `json:"api_url"`
	RunsPerRoute int           `json:"runs_per_route"`
	Results      []routeResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== Coastwatch Benchmark ===")
	fmt.Printf("API URL:     %s\n", *apiURL)
	fmt.Printf("Runs/route:  %d\n", *runs)
	fmt.Printf("Output:      %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure coastwatch is running (go run ./cmd/coastwatch)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		APIURL:       *apiURL,
		RunsPerRoute: *runs,
	}

	client := &http.Client{Timeout: 90 * time.Second}
	for _, r := range routes {
		fmt.Printf("Benchmarking [%s] %s ...\n", r.Label, r.Path)
		rr := routeResult{Path: r.Path, Label: r.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			res := benchmarkRoute(client, r.Path, i)
			if res.Success {
				fmt.Printf("OK  %dms  %s\n", res.TotalMs, cacheLabel(res.Cache))
			} else {
				fmt.Printf("FAILED: %s\n", res.Error)
			}
			rr.Runs = append(rr.Runs, res)
		}

		rr.Averages = computeAverages(rr.Runs)
		report.Results = append(report.Results, rr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/api/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkRoute(client *http.Client, path string, run int) runResult {
	rr := runResult{Run: run}

	start := time.Now()
	resp, err := client.Get(*apiURL + path)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.TotalMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	rr.StatusCode = resp.StatusCode
	rr.Cache = resp.Header.Get("X-Cache")
	rr.BodyLength = len(body)
	rr.Success = resp.StatusCode == http.StatusOK

	if !rr.Success {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			rr.Error = e.Error
		} else {
			rr.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
	}
	return rr
}

func computeAverages(runs []runResult) *routeAverages {
	var avg routeAverages
	for _, r := range runs {
		if !r.Success {
			continue
		}
		if r.Cache == "HIT" {
			avg.Hits++
			avg.HitMs += float64(r.TotalMs)
		} else {
			avg.Misses++
			avg.MissMs += float64(r.TotalMs)
		}
	}

	if avg.Hits+avg.Misses == 0 {
		return nil
	}
	if avg.Hits > 0 {
		avg.HitMs /= float64(avg.Hits)
	}
	if avg.Misses > 0 {
		avg.MissMs /= float64(avg.Misses)
	}
	return &avg
}

func printTable(results []routeResult) {
	fmt.Println(strings.Repeat("─", 72))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Route\tMiss Latency\tHit Latency\tHits/Misses\n")
	fmt.Fprintf(w, "─────\t────────────\t───────────\t───────────\n")

	for _, r := range results {
		if r.Averages == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\n", r.Path)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\n",
			r.Path,
			formatMs(r.Averages.MissMs, r.Averages.Misses),
			formatMs(r.Averages.HitMs, r.Averages.Hits),
			r.Averages.Hits, r.Averages.Misses,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 72))
}

func cacheLabel(c string) string {
	if c == "" {
		return "uncached"
	}
	return c
}

func formatMs(ms float64, n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%dms", int64(ms))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
