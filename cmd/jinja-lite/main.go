// Command jinja-lite renders a template with context read from JSON or YAML
// files and name=value flags.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"strings"

	jinja "github.com/AlexanderGrooff/jinja-lite"
	"github.com/AlexanderGrooff/jinja-lite/internal/config"
	"github.com/AlexanderGrooff/jinja-lite/internal/contextfile"
	"github.com/natefinch/atomic"
)

// pathList collects repeated -context flags.
type pathList []string

func (p *pathList) String() string { return strings.Join(*p, ",") }

func (p *pathList) Set(v string) error {
	*p = append(*p, v)
	return nil
}

type options struct {
	templateFile   string
	templateString string
	contexts       pathList
	sets           contextfile.Sets
	output         string
	dump           bool
	vars           bool
	interactive    bool
	logLevel       string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{sets: contextfile.Sets{}}
	fs := flag.NewFlagSet("jinja-lite", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.templateFile, "template", "", "template file to render")
	fs.StringVar(&opts.templateString, "template-string", "", "template text to render (alternative to -template)")
	fs.Var(&opts.contexts, "context", "JSON or YAML context file (repeatable, later files win)")
	fs.Var(opts.sets, "set", "context value as name=value (repeatable, wins over files)")
	fs.StringVar(&opts.output, "o", "", "write output to this file instead of stdout")
	fs.BoolVar(&opts.dump, "dump", false, "print the compiled instruction listing and exit")
	fs.BoolVar(&opts.vars, "vars", false, "print the names the template requires and exit")
	fs.BoolVar(&opts.interactive, "interactive", false, "prompt for required names missing from the context")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (opts.templateFile == "") == (opts.templateString == "") {
		return nil, errors.New("exactly one of -template or -template-string is required")
	}
	return opts, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, surveyPrompter{}); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "jinja-lite:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer, prompter Prompter) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: config.ParseLevel(opts.logLevel)}))
	env := jinja.NewEnvironment(
		jinja.WithGlobals(jinja.DefaultFilters()),
		jinja.WithLogger(logger),
	)

	var tmpl *jinja.Template
	if opts.templateFile != "" {
		tmpl, err = env.FromFile(opts.templateFile)
	} else {
		tmpl, err = env.FromString(opts.templateString)
	}
	if err != nil {
		return err
	}

	switch {
	case opts.dump:
		_, err = io.WriteString(stdout, tmpl.Source())
		return err
	case opts.vars:
		for _, name := range tmpl.Required() {
			if _, err = fmt.Fprintln(stdout, name); err != nil {
				return err
			}
		}
		return nil
	}

	ctx, err := contextfile.LoadAll(opts.contexts...)
	if err != nil {
		return err
	}
	maps.Copy(ctx, opts.sets)

	if missing := tmpl.Missing(ctx); len(missing) > 0 {
		if !opts.interactive {
			return fmt.Errorf("missing context values: %s", strings.Join(missing, ", "))
		}
		logger.Info("Prompting for missing context values", "names", missing)
		for _, name := range missing {
			answer, err := prompter.Ask(name)
			if err != nil {
				return err
			}
			_, v, err := contextfile.ParseSet(name + "=" + answer)
			if err != nil {
				return err
			}
			ctx[name] = v
		}
	}

	out, err := tmpl.Render(ctx)
	if err != nil {
		return err
	}
	if opts.output != "" {
		if err := atomic.WriteFile(opts.output, bytes.NewReader([]byte(out))); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		logger.Info("Output written", "path", opts.output, "bytes", len(out))
		return nil
	}
	_, err = io.WriteString(stdout, out)
	return err
}
