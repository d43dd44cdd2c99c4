// Command benchmark renders a set of template cases through jinja-lite and
// pongo2 and reports the average time per render for each engine.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"github.com/flosch/pongo2/v6"
	"github.com/natefinch/atomic"
)

type BenchmarkCase struct {
	Name     string         `json:"name"`
	Template string         `json:"template"`
	Context  map[string]any `json:"context"`
}

type BenchmarkResult struct {
	Name      string  `json:"name"`
	Engine    string  `json:"engine"`
	AvgTimeMs float64 `json:"avg_time_ms"`
	Output    int     `json:"output_bytes"`
	Error     string  `json:"error,omitempty"`
}

type renderFunc func(ctx map[string]any) (string, error)

func main() {
	iterations := flag.Int("iterations", 1000, "Number of iterations for each benchmark")
	outputFile := flag.String("output", "benchmark_results.json", "Output file for benchmark results")
	templatesFile := flag.String("templates", "cmd/benchmark/templates.json", "JSON file containing template test cases")
	flag.Parse()

	benchmarks, err := loadBenchmarkCases(*templatesFile)
	if err != nil {
		fmt.Printf("Error loading template cases: %v\n", err)
		os.Exit(1)
	}

	filters := jinja.DefaultFilters()
	results := make([]BenchmarkResult, 0, 2*len(benchmarks))

	for _, bm := range benchmarks {
		fmt.Printf("Running benchmark: %s\n", bm.Name)

		engines := map[string]func() (renderFunc, error){
			"jinja-lite": func() (renderFunc, error) {
				t, err := jinja.Compile(bm.Template, filters)
				if err != nil {
					return nil, err
				}
				return func(ctx map[string]any) (string, error) { return t.Render(ctx) }, nil
			},
			"pongo2": func() (renderFunc, error) {
				t, err := pongo2.FromString(bm.Template)
				if err != nil {
					return nil, err
				}
				return func(ctx map[string]any) (string, error) { return t.Execute(pongo2.Context(ctx)) }, nil
			},
		}

		for _, engine := range []string{"jinja-lite", "pongo2"} {
			res := run(bm, engine, engines[engine], *iterations)
			if res.Error != "" {
				fmt.Printf("  %-10s error: %s\n", engine, res.Error)
			} else {
				fmt.Printf("  %-10s average time: %.6f ms\n", engine, res.AvgTimeMs)
			}
			results = append(results, res)
		}
	}

	jsonData, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Printf("Error marshaling results: %v\n", err)
		os.Exit(1)
	}
	if err = atomic.WriteFile(*outputFile, bytes.NewReader(jsonData)); err != nil {
		fmt.Printf("Error writing results to file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Benchmark results written to %s\n", *outputFile)
}

// run compiles the case once and times iterations renders.
func run(bm BenchmarkCase, engine string, compile func() (renderFunc, error), iterations int) BenchmarkResult {
	res := BenchmarkResult{Name: bm.Name, Engine: engine}
	render, err := compile()
	if err != nil {
		res.Error = err.Error()
		return res
	}

	start := time.Now()
	var out string
	for i := 0; i < iterations; i++ {
		if out, err = render(bm.Context); err != nil {
			res.Error = err.Error()
			return res
		}
	}
	elapsed := time.Since(start)

	res.AvgTimeMs = float64(elapsed.Microseconds()) / float64(iterations) / 1000.0
	res.Output = len(out)
	return res
}

// loadBenchmarkCases loads benchmark test cases from a JSON file
func loadBenchmarkCases(filename string) ([]BenchmarkCase, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read templates file: %w", err)
	}

	var benchmarks []BenchmarkCase
	if err = json.Unmarshal(data, &benchmarks); err != nil {
		return nil, fmt.Errorf("failed to parse templates JSON: %w", err)
	}
	return benchmarks, nil
}
