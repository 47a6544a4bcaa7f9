// Package main runs every solver backend on a directory of problems and
// collects metrics.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elektrokombinacija/planilp/internal/loader"
	"github.com/elektrokombinacija/planilp/internal/planner"
	"github.com/elektrokombinacija/planilp/internal/solver"
)

// BenchmarkResult stores results from a single solver run.
type BenchmarkResult struct {
	Timestamp   string  `json:"timestamp"`
	CommitHash  string  `json:"commit_hash"`
	GoVersion   string  `json:"go_version"`
	OS          string  `json:"os"`
	Arch        string  `json:"arch"`
	Instance    string  `json:"instance"`
	Solver      string  `json:"solver"`
	Horizon     int     `json:"horizon"`
	Status      string  `json:"status"` // solved, infeasible or error
	Facts       int     `json:"facts"`
	Actions     int     `json:"actions"`
	Variables   int     `json:"variables"`
	Constraints int     `json:"constraints"`
	PlanLength  int     `json:"plan_length"`
	Cost        int     `json:"cost"`
	GroundMs    float64 `json:"ground_ms"`
	EncodeMs    float64 `json:"encode_ms"`
	SolveMs     float64 `json:"solve_ms"`
	RuntimeMs   float64 `json:"runtime_ms"`
	Error       string  `json:"error,omitempty"`
}

// SolverMetrics holds per-solver aggregated metrics.
type SolverMetrics struct {
	Name           string
	TotalRuns      int
	Solved         int
	Infeasible     int
	Errors         int
	TotalRuntimeMs float64
	TotalCost      int
}

func getGitCommit() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(output))
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }

// runSolver loads path and solves it with one backend, at the problem's
// horizon or, with search, at the shortest feasible horizon up to it.
func runSolver(ctx context.Context, path, backend string, timeout time.Duration, search bool, commit string) *BenchmarkResult {
	result := &BenchmarkResult{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		CommitHash: commit,
		GoVersion:  runtime.Version(),
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
		Instance:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Solver:     backend,
		Status:     "error",
	}

	prob, err := loader.LoadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Instance = prob.Name

	s, err := solver.New(backend, solver.Options{Timeout: timeout})
	if err != nil {
		result.Error = err.Error()
		return result
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pl := planner.New(s)
	startTime := time.Now()
	var res *planner.Result
	if search {
		res, err = pl.Search(ctx, prob, 0, prob.Horizon)
	} else {
		res, err = pl.CompileAndSolve(ctx, prob, planner.NoOverride)
	}
	result.RuntimeMs = ms(time.Since(startTime))
	if err != nil {
		result.Error = err.Error()
		return result
	}

	st := res.Stats
	result.Horizon = res.Horizon
	result.Status = res.Status.String()
	result.Facts, result.Actions = st.Facts, st.Actions
	result.Variables, result.Constraints = st.Variables, st.Constraints
	result.GroundMs, result.EncodeMs, result.SolveMs = ms(st.Ground), ms(st.Encode), ms(st.Solve)
	if res.Status == planner.Solved {
		result.PlanLength = res.Plan.Len()
		result.Cost = res.Plan.Cost
	}
	return result
}

func writeCSV(results []*BenchmarkResult, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	header := []string{
		"timestamp", "commit_hash", "go_version", "os", "arch",
		"instance", "solver", "horizon", "status",
		"facts", "actions", "variables", "constraints", "plan_length", "cost",
		"ground_ms", "encode_ms", "solve_ms", "runtime_ms", "error",
	}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.Timestamp, r.CommitHash, r.GoVersion, r.OS, r.Arch,
			r.Instance, r.Solver, strconv.Itoa(r.Horizon), r.Status,
			strconv.Itoa(r.Facts), strconv.Itoa(r.Actions),
			strconv.Itoa(r.Variables), strconv.Itoa(r.Constraints),
			strconv.Itoa(r.PlanLength), strconv.Itoa(r.Cost),
			fmt.Sprintf("%.3f", r.GroundMs), fmt.Sprintf("%.3f", r.EncodeMs),
			fmt.Sprintf("%.3f", r.SolveMs), fmt.Sprintf("%.3f", r.RuntimeMs),
			r.Error,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(results []*BenchmarkResult, path string) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printSummary(results []*BenchmarkResult) {
	metrics := make(map[string]*SolverMetrics)
	for _, r := range results {
		m, ok := metrics[r.Solver]
		if !ok {
			m = &SolverMetrics{Name: r.Solver}
			metrics[r.Solver] = m
		}
		m.TotalRuns++
		switch r.Status {
		case "solved":
			m.Solved++
			m.TotalRuntimeMs += r.RuntimeMs
			m.TotalCost += r.Cost
		case "infeasible":
			m.Infeasible++
		default:
			m.Errors++
		}
	}

	fmt.Println("\n=== BENCHMARK SUMMARY ===")
	fmt.Printf("%-12s %6s %7s %10s %7s %12s %9s\n",
		"Solver", "Runs", "Solved", "Infeasible", "Errors", "Avg Time(ms)", "Avg Cost")
	fmt.Println(strings.Repeat("-", 70))

	var names []string
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := metrics[name]
		avgTime, avgCost := 0.0, 0.0
		if m.Solved > 0 {
			avgTime = m.TotalRuntimeMs / float64(m.Solved)
			avgCost = float64(m.TotalCost) / float64(m.Solved)
		}
		fmt.Printf("%-12s %6d %7d %10d %7d %12.2f %9.2f\n",
			m.Name, m.TotalRuns, m.Solved, m.Infeasible, m.Errors, avgTime, avgCost)
	}
}

func main() {
	inputDir := flag.String("input", "testdata", "Directory containing problem files (*.txt)")
	outputFile := flag.String("output", "evidence/benchmark_results.csv", "Output CSV file; a .json file is written alongside")
	timeout := flag.Duration("timeout", 5*time.Minute, "Timeout per solver run")
	solverFilter := flag.String("solver", "", "Run only specific backends (comma-separated)")
	search := flag.Bool("search", false, "Search for the shortest horizon instead of solving at t_max")
	parallel := flag.Int("parallel", 1, "Concurrent runs")
	verbose := flag.Bool("verbose", false, "Verbose output")

	flag.Parse()

	outputDir := filepath.Dir(*outputFile)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(*inputDir, "*.txt"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding problem files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "No problem files found in %s\n", *inputDir)
		fmt.Fprintf(os.Stderr, "Run gen_instances first: go run ./tools/gen_instances -scaling -output testdata\n")
		os.Exit(1)
	}

	activeSolvers := solver.Backends()
	if *solverFilter != "" {
		activeSolvers = strings.Split(*solverFilter, ",")
	}

	totalRuns := len(files) * len(activeSolvers)
	results := make([]*BenchmarkResult, totalRuns)
	commit := getGitCommit()

	fmt.Printf("Running benchmarks: %d problems x %d backends = %d runs\n",
		len(files), len(activeSolvers), totalRuns)
	fmt.Printf("Timeout per run: %v\n", *timeout)
	fmt.Println()

	var (
		mu   sync.Mutex
		done int
	)
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(max(1, *parallel))
	for i, file := range files {
		for j, backend := range activeSolvers {
			idx := i*len(activeSolvers) + j
			g.Go(func() error {
				r := runSolver(ctx, file, backend, *timeout, *search, commit)
				results[idx] = r

				mu.Lock()
				defer mu.Unlock()
				done++
				if *verbose {
					fmt.Printf("[%d/%d] %s / %s: %s (%.2fms, horizon %d, cost %d) %s\n",
						done, totalRuns, r.Instance, r.Solver, r.Status, r.RuntimeMs, r.Horizon, r.Cost, r.Error)
				} else {
					fmt.Printf("\r[%d/%d] Running...", done, totalRuns)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	fmt.Println()

	if err := writeCSV(results, *outputFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		os.Exit(1)
	}
	jsonFile := strings.TrimSuffix(*outputFile, filepath.Ext(*outputFile)) + ".json"
	if err := writeJSON(results, jsonFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing results: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Results written to: %s, %s\n", *outputFile, jsonFile)

	printSummary(results)
}
