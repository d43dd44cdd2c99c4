package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"github.com/AlexanderGrooff/jinja-lite/internal/contextfile"
)

var (
	cpuprofile   = flag.String("cpuprofile", "", "write cpu profile to file")
	memprofile   = flag.String("memprofile", "", "write memory profile to file")
	blockprofile = flag.String("blockprofile", "", "write goroutine blocking profile to file")
	templateFile = flag.String("template", "", "template file to render")
	contextFile  = flag.String("context", "", "JSON or YAML file with context data")
	iterations   = flag.Int("iterations", 1000, "number of iterations to run")
	template     = flag.String("template-string", "", "template string to render (alternative to template file)")
	recompile    = flag.Bool("recompile", false, "compile the template on every iteration instead of once")
	outputDir    = flag.String("output-dir", "profile", "directory to store profile output")
)

func main() {
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	var templateContent string
	if *templateFile != "" {
		content, err := os.ReadFile(*templateFile)
		if err != nil {
			log.Fatalf("Failed to read template file: %v", err)
		}
		templateContent = string(content)
	} else if *template != "" {
		templateContent = *template
	} else {
		log.Fatal("Either --template or --template-string must be provided")
	}

	context := make(map[string]any)
	if *contextFile != "" {
		var err error
		if context, err = contextfile.Load(*contextFile); err != nil {
			log.Fatalf("Failed to load context: %v", err)
		}
	}

	if *blockprofile != "" {
		runtime.SetBlockProfileRate(1)
	}

	if *cpuprofile != "" {
		cpuFile := filepath.Join(*outputDir, *cpuprofile)
		f, err := os.Create(cpuFile)
		if err != nil {
			log.Fatalf("Failed to create CPU profile file: %v", err)
		}
		defer f.Close()

		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatalf("Failed to start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
		fmt.Printf("CPU profiling enabled, writing to %s\n", cpuFile)
	}

	env := jinja.NewEnvironment(jinja.WithGlobals(jinja.DefaultFilters()), jinja.WithCache(nil))
	tmpl, err := env.FromString(templateContent)
	if err != nil {
		log.Fatalf("Failed to compile template: %v", err)
	}
	if missing := tmpl.Missing(context); len(missing) > 0 {
		log.Fatalf("Context is missing %v", missing)
	}

	fmt.Printf("Rendering template %d times (recompile=%v)\n", *iterations, *recompile)
	start := time.Now()

	for i := 0; i < *iterations; i++ {
		if *recompile {
			if tmpl, err = env.FromString(templateContent); err != nil {
				log.Fatalf("Failed to compile template: %v", err)
			}
		}
		result, err := tmpl.Render(context)
		if err != nil {
			log.Fatalf("Failed to render template: %v", err)
		}
		if i == *iterations-1 {
			fmt.Printf("Result length: %d\n", len(result))
		}
	}

	duration := time.Since(start)
	fmt.Printf("Time taken: %v\n", duration)
	fmt.Printf("Average time per iteration: %v\n", duration/time.Duration(*iterations))

	if *memprofile != "" {
		runtime.GC()
		writeProfile("heap", *memprofile)
	}
	if *blockprofile != "" {
		writeProfile("block", *blockprofile)
	}
}

// writeProfile dumps the named runtime profile into the output directory.
func writeProfile(kind, name string) {
	path := filepath.Join(*outputDir, name)
	f, err := os.Create(path)
	if err != nil {
		log.Fatalf("Failed to create %s profile file: %v", kind, err)
	}
	defer f.Close()

	if err := pprof.Lookup(kind).WriteTo(f, 0); err != nil {
		log.Fatalf("Failed to write %s profile: %v", kind, err)
	}
	fmt.Printf("%s profile written to %s\n", kind, path)
}
