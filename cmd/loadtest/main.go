package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/propply/backend/pkg/sdk"
)

// LoadTestConfig holds load test parameters
type LoadTestConfig struct {
	BaseURL        string
	NumRuns        int
	Concurrency    int
	Domains        []string
	ReportInterval time.Duration
}

// LoadTestStats tracks test metrics
type LoadTestStats struct {
	TotalRuns           uint64
	SuccessfulRuns      uint64
	PartialRuns         uint64
	FailedRuns          uint64
	TotalDuration       time.Duration
	AvgLatency          time.Duration
	MaxLatency          time.Duration
	MinLatency          time.Duration
	P95Latency          time.Duration
	P99Latency          time.Duration
	ThroughputPerMinute float64
}

// demoAddresses rotates real NYC buildings through the workers so runs
// exercise different geocode and dataset paths.
var demoAddresses = []struct {
	Address string
	Borough string
}{
	{"1662 Park Avenue", "Manhattan"},
	{"350 5th Avenue", "Manhattan"},
	{"1 Centre Street", "Manhattan"},
	{"30 Rockefeller Plaza", "Manhattan"},
	{"345 Adams Street", "Brooklyn"},
	{"851 Grand Concourse", "Bronx"},
	{"120-55 Queens Boulevard", "Queens"},
	{"10 Richmond Terrace", "Staten Island"},
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Compliance API base URL")
	numRuns := flag.Int("runs", 50, "Number of compliance runs to issue")
	concurrency := flag.Int("concurrency", 5, "Number of concurrent workers")
	domainCSV := flag.String("domains", "", "Comma-separated domain filter (empty = all domains)")
	reportInterval := flag.Duration("report", 10*time.Second, "Stats reporting interval")
	flag.Parse()

	var domains []string
	if *domainCSV != "" {
		for _, d := range strings.Split(*domainCSV, ",") {
			if d = strings.TrimSpace(d); d != "" {
				domains = append(domains, d)
			}
		}
	}

	config := LoadTestConfig{
		BaseURL:        *baseURL,
		NumRuns:        *numRuns,
		Concurrency:    *concurrency,
		Domains:        domains,
		ReportInterval: *reportInterval,
	}

	slog.Info("🚀 Starting Compliance API Load Test")
	slog.Info("Target", "url", config.BaseURL)
	slog.Info("Runs", "num_runs", config.NumRuns)
	slog.Info("Concurrency", "concurrency", config.Concurrency)
	stats := runLoadTest(config)

	// Print final results
	printResults(stats)
}

func runLoadTest(config LoadTestConfig) *LoadTestStats {
	client := sdk.NewClient(sdk.Config{
		BaseURL: config.BaseURL,
		APIKey:  os.Getenv("PROPPLY_API_KEY"),
	})

	// Stats tracking
	stats := &LoadTestStats{
		MinLatency: time.Hour, // Initialize to large value
	}
	var latencies []time.Duration
	var latenciesMu sync.Mutex

	// Worker pool
	runChan := make(chan int, config.NumRuns)
	var wg sync.WaitGroup

	// Start stats reporter
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go reportStats(ctx, stats, config.ReportInterval)

	// Start workers
	startTime := time.Now()
	for i := 0; i < config.Concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for runID := range runChan {
				processRun(ctx, client, config.Domains, runID, stats, &latencies, &latenciesMu)
			}
		}(i)
	}

	// Feed runs
	for i := 0; i < config.NumRuns; i++ {
		runChan <- i
	}
	close(runChan)

	// Wait for completion
	wg.Wait()
	totalDuration := time.Since(startTime)

	// Calculate final stats
	stats.TotalDuration = totalDuration
	stats.ThroughputPerMinute = float64(stats.TotalRuns) / totalDuration.Minutes()

	// Calculate latency percentiles
	latenciesMu.Lock()
	if len(latencies) > 0 {
		stats.AvgLatency = calculateAverage(latencies)
		stats.P95Latency = calculatePercentile(latencies, 95)
		stats.P99Latency = calculatePercentile(latencies, 99)
	}
	latenciesMu.Unlock()

	return stats
}

func processRun(
	ctx context.Context,
	client *sdk.Client,
	domains []string,
	runID int,
	stats *LoadTestStats,
	latencies *[]time.Duration,
	latenciesMu *sync.Mutex,
) {
	target := demoAddresses[runID%len(demoAddresses)]

	// Measure end-to-end run latency
	start := time.Now()
	result, err := client.RunCompliance(ctx, sdk.RunRequest{
		Address: target.Address,
		Borough: target.Borough,
		Domains: domains,
	})
	latency := time.Since(start)

	// Update stats
	atomic.AddUint64(&stats.TotalRuns, 1)

	if err != nil {
		atomic.AddUint64(&stats.FailedRuns, 1)
	} else {
		atomic.AddUint64(&stats.SuccessfulRuns, 1)
		if result.Report != nil && result.Report.DataSources == sdk.DataSourcesPartial {
			atomic.AddUint64(&stats.PartialRuns, 1)
		}
	}

	// Track latency
	latenciesMu.Lock()
	*latencies = append(*latencies, latency)
	if latency > stats.MaxLatency {
		stats.MaxLatency = latency
	}
	if latency < stats.MinLatency {
		stats.MinLatency = latency
	}
	latenciesMu.Unlock()
}

func reportStats(ctx context.Context, stats *LoadTestStats, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			total := atomic.LoadUint64(&stats.TotalRuns)
			success := atomic.LoadUint64(&stats.SuccessfulRuns)
			failed := atomic.LoadUint64(&stats.FailedRuns)

			slog.Warn("Progress: runs | success | failed | Latency: min= max", "total", total, "success", success, "failed", failed, "min_latency", stats.MinLatency, "max_latency", stats.MaxLatency)
		case <-ctx.Done():
			return
		}
	}
}

func printResults(stats *LoadTestStats) {
	separator := "================================================================================"
	divider := "--------------------------------------------------------------------------------"

	fmt.Println("\n" + separator)
	fmt.Println("📊 LOAD TEST RESULTS")
	fmt.Println(separator)
	fmt.Printf("Total Runs:             %d\n", stats.TotalRuns)
	fmt.Printf("Successful Runs:        %d (%.2f%%)\n",
		stats.SuccessfulRuns,
		float64(stats.SuccessfulRuns)/float64(stats.TotalRuns)*100)
	fmt.Printf("Partial Reports:        %d\n", stats.PartialRuns)
	fmt.Printf("Failed Runs:            %d (%.2f%%)\n",
		stats.FailedRuns,
		float64(stats.FailedRuns)/float64(stats.TotalRuns)*100)
	fmt.Println(divider)
	fmt.Printf("Total Duration:         %v\n", stats.TotalDuration)
	fmt.Printf("Throughput:             %.2f runs/min\n", stats.ThroughputPerMinute)
	fmt.Println(divider)
	fmt.Printf("Latency (min):          %v\n", stats.MinLatency)
	fmt.Printf("Latency (avg):          %v\n", stats.AvgLatency)
	fmt.Printf("Latency (p95):          %v\n", stats.P95Latency)
	fmt.Printf("Latency (p99):          %v\n", stats.P99Latency)
	fmt.Printf("Latency (max):          %v\n", stats.MaxLatency)
	fmt.Println(separator)

	// Performance assessment. A full run fans out to eight city datasets,
	// so latency targets are in seconds, not milliseconds.
	successRate := float64(stats.SuccessfulRuns) / float64(stats.TotalRuns) * 100
	if successRate >= 95 {
		fmt.Println("✅ PASS: Success rate meets target (>95%)")
	} else {
		fmt.Println("❌ FAIL: Success rate below target (<95%)")
	}

	if stats.P95Latency < 30*time.Second {
		fmt.Println("✅ PASS: P95 latency meets target (<30s)")
	} else {
		fmt.Println("⚠️  WARN: P95 latency above target (>30s)")
	}

	if stats.PartialRuns == 0 {
		fmt.Println("✅ PASS: No partial reports (no runs hit the deadline)")
	} else {
		fmt.Println("⚠️  WARN: Some runs returned partial reports")
	}
	fmt.Println(separator + "\n")
}

func calculateAverage(latencies []time.Duration) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	var total time.Duration
	for _, l := range latencies {
		total += l
	}

	return total / time.Duration(len(latencies))
}

func calculatePercentile(latencies []time.Duration, percentile int) time.Duration {
	if len(latencies) == 0 {
		return 0
	}

	// Sort latencies
	sorted := make([]time.Duration, len(latencies))
	copy(sorted, latencies)

	// Simple bubble sort (good enough for testing)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[i] > sorted[j] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	// Calculate percentile index
	idx := int(float64(len(sorted)) * float64(percentile) / 100.0)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
