package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	// LookupEvery sends every Nth request to the term endpoint instead of
	// search. Zero disables term lookups.
	LookupEvery int
	Queries     []string
}

// Stats holds counters for one endpoint.
type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *Stats) RecordRequest(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)

	if err != nil {
		s.errorCount.Add(1)
		return
	}

	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

var defaultQueries = []string{
	"build",
	"getting started",
	"cmake presets",
	"install compiler",
	"test cases",
	"scalar advection",
	"configuration",
	"kokkos flags",
	"neofoam backend",
	"prerequisites",
	"plugin OR library",
	"build -test",
	"documentation",
	"nonexistent",
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	lookupEvery := flag.Int("lookup-every", 3, "send every Nth request to /api/v1/terms/{term} (0 disables)")
	queriesFile := flag.String("queries", "", "file with one query per line (default: built-in list)")
	flag.Parse()

	queries := defaultQueries
	if *queriesFile != "" {
		loaded, err := readQueries(*queriesFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "reading queries: %v\n", err)
			os.Exit(1)
		}
		queries = loaded
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		LookupEvery: *lookupEvery,
		Queries:     queries,
	}

	fmt.Println("=== Docsearch Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	search, lookup := runLoadTest(cfg)
	printReport("search", search, cfg.Duration)
	if cfg.LookupEvery > 0 {
		printReport("term lookup", lookup, cfg.Duration)
	}
	if search.totalRequests.Load()+lookup.totalRequests.Load() == 0 {
		fmt.Println()
		fmt.Println("WARNING: No requests completed. Is the service running?")
		os.Exit(1)
	}
}

func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" && !strings.HasPrefix(q, "#") {
			queries = append(queries, q)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("%s has no queries", path)
	}
	return queries, nil
}

// requestURL picks the endpoint for the n-th request of a worker.
func requestURL(cfg Config, n int) (target string, isLookup bool) {
	query := cfg.Queries[n%len(cfg.Queries)]
	if cfg.LookupEvery > 0 && n%cfg.LookupEvery == 0 {
		term := strings.Fields(query)[0]
		return fmt.Sprintf("%s/api/v1/terms/%s", cfg.BaseURL, url.PathEscape(term)), true
	}
	return fmt.Sprintf("%s/api/v1/search?q=%s&limit=10", cfg.BaseURL, url.QueryEscape(query)), false
}

func runLoadTest(cfg Config) (search, lookup *Stats) {
	search, lookup = NewStats(), NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	var wg sync.WaitGroup
	fmt.Print("Running")

	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			n := workerID

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				target, isLookup := requestURL(cfg, n)
				n++
				stats := search
				if isLookup {
					stats = lookup
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.RecordRequest(0, 0, err)
					continue
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)

				if err != nil {
					if ctx.Err() == nil {
						stats.RecordRequest(duration, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()

				stats.RecordRequest(duration, resp.StatusCode, nil)
			}
		}(w)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	wg.Wait()
	fmt.Println(" done!")
	fmt.Println()
	return search, lookup
}

func printReport(name string, stats *Stats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errors := stats.errorCount.Load()

	fmt.Printf("=== Results: %s ===\n", name)
	fmt.Printf("Total Requests:  %d\n", total)
	fmt.Printf("Successful:      %d\n", success)
	fmt.Printf("Errors:          %d\n", errors)

	if total > 0 {
		errorRate := float64(errors) / float64(total) * 100
		fmt.Printf("Error Rate:      %.2f%%\n", errorRate)
		rps := float64(total) / duration.Seconds()
		fmt.Printf("Requests/sec:    %.2f\n", rps)
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})

		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Println()
		fmt.Println("Latency:")
		fmt.Printf("  Min: %s\n", latencies[0])
		fmt.Printf("  Avg: %s\n", avg)
		fmt.Printf("  P50: %s\n", percentile(latencies, 50))
		fmt.Printf("  P95: %s\n", percentile(latencies, 95))
		fmt.Printf("  P99: %s\n", percentile(latencies, 99))
		fmt.Printf("  Max: %s\n", latencies[len(latencies)-1])
	}

	fmt.Println()
	fmt.Println("Status Codes:")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()
	fmt.Println()
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
