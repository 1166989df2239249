// Package main provides a performance benchmarking tool for the rosmap CLI.
// It measures `rosmap analyze` across worker counts, running each configuration
// multiple times, treating the first successful run as cold and averaging the
// rest as warm, and writes CSV output for performance analysis.
//
// Prerequisites:
// - rosmap binary installed and available in PATH
// - A workspace with cloned checkouts under <workspace>/repositories/{git,hg,svn}
//
// Usage: go run benchmark/main.go [workspace]
package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BenchmarkResult holds the result of one benchmarked configuration.
type BenchmarkResult struct {
	Scenario string
	Workers  int
	ColdTime string
	WarmTime string
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	Workspace string
	Timeout   time.Duration
	Workers   []int
	Runs      int
	Scenarios map[string][]string // scenario name -> extra analyze flags
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [workspace]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		Workspace: os.Args[1],
		Timeout:   30 * time.Minute,
		Workers:   []int{1, 4, 8, 16},
		Runs:      3,
		Scenarios: map[string][]string{
			"local":        {"--skip-remote"},
			"remote-cache": {"--cache-backend", "sqlite"},
		},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing cache...\n")
	clearCmd := exec.Command("rosmap", "cache", "clear")
	if output, err := clearCmd.CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	}

	results := runBenchmarks(config)
	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// checkPrerequisites verifies that the rosmap binary and the workspace exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("rosmap"); err != nil {
		return fmt.Errorf("rosmap binary not found in PATH")
	}
	repoPath := filepath.Join(config.Workspace, "repositories")
	if _, err := os.Stat(repoPath); os.IsNotExist(err) {
		return fmt.Errorf("repository folder not found at %s", repoPath)
	}
	return nil
}

// runBenchmarks executes every scenario for every worker count
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult
	fmt.Printf("Starting benchmark: %v workers, %v timeout, %d runs each\n", config.Workers, config.Timeout, config.Runs)

	for _, scenario := range []string{"local", "remote-cache"} {
		for _, workers := range config.Workers {
			fmt.Printf("Running %s with %d workers\n", scenario, workers)
			args := append([]string{"analyze", config.Workspace, "--run-backend", "none", "--workers", strconv.Itoa(workers)}, config.Scenarios[scenario]...)
			cold, warm := runBenchmark(config, args)
			results = append(results, BenchmarkResult{Scenario: scenario, Workers: workers, ColdTime: cold, WarmTime: warm})
			fmt.Printf("  Cold time: %s, Warm average: %s\n", cold, warm)
		}
	}
	return results
}

// runBenchmark runs one command config.Runs times and returns the cold time and warm average
func runBenchmark(config BenchmarkConfig, args []string) (coldTime, warmAvg string) {
	var times []float64
	for range config.Runs {
		start := time.Now()
		cmd := exec.Command("rosmap", args...)
		cmd.Stdout = nil // records are not needed

		done := make(chan error, 1)
		var stderr strings.Builder
		cmd.Stderr = &stderr
		go func() { done <- cmd.Run() }()

		select {
		case err := <-done:
			if err == nil && strings.Contains(stderr.String(), "Analysis complete") {
				times = append(times, time.Since(start).Seconds())
			}
		case <-time.After(config.Timeout):
			_ = cmd.Process.Kill()
		}
	}

	coldTime, warmAvg = "TIMEOUT", "TIMEOUT"
	if len(times) > 0 {
		coldTime = fmt.Sprintf("%.3fs", times[0])
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		warmAvg = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}
	return coldTime, warmAvg
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/rosmap_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"scenario", "workers", "cold_time", "warm_avg"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, result := range results {
		if err := writer.Write([]string{result.Scenario, strconv.Itoa(result.Workers), result.ColdTime, result.WarmTime}); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results summary
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, result := range results {
		fmt.Printf("  %-13s workers=%-3d Cold: %s, Warm: %s\n", result.Scenario, result.Workers, result.ColdTime, result.WarmTime)
	}
}
