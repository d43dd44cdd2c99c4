package jinja

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
)

// Environment holds settings shared by many templates: globals merged under
// every template's base contexts, the dotted-path resolver, a logger and a
// cache of compiled templates.
type Environment struct {
	globals  map[string]any
	resolver Resolver
	logger   *slog.Logger
	cache    *TemplateCache
}

// Option configures an Environment.
type Option func(*Environment)

// WithGlobals adds base context entries available to every template. Later
// maps override earlier ones; template contexts override globals.
func WithGlobals(globals ...map[string]any) Option {
	return func(e *Environment) {
		for _, g := range globals {
			maps.Copy(e.globals, g)
		}
	}
}

// WithResolver replaces the dotted-path resolver.
func WithResolver(r Resolver) Option {
	return func(e *Environment) { e.resolver = r }
}

// WithLogger sets the logger used for compile diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) { e.logger = l }
}

// WithCache replaces the template cache. A nil cache disables caching.
func WithCache(c *TemplateCache) Option {
	return func(e *Environment) { e.cache = c }
}

// NewEnvironment creates an Environment with a discarding logger, the
// default resolver and a fresh cache.
func NewEnvironment(opts ...Option) *Environment {
	e := &Environment{
		globals:  make(map[string]any),
		resolver: DefaultResolver,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		cache:    NewTemplateCache(DefaultCacheSize),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Cache keys for string and file templates live in disjoint namespaces.
const (
	textKeyPrefix = "text:"
	fileKeyPrefix = "file:"
)

// FromString compiles text with the environment's globals and the given
// contexts. Templates compiled without extra contexts are cached by text.
func (e *Environment) FromString(text string, contexts ...map[string]any) (*Template, error) {
	cacheable := e.cache != nil && len(contexts) == 0
	key := textKeyPrefix + text
	if cacheable {
		if t, ok := e.cache.Get(key); ok {
			e.logger.Debug("template cache hit", "size", len(text))
			return t, nil
		}
	}

	t, err := e.compile(text, contexts)
	if err != nil {
		return nil, err
	}
	if cacheable {
		e.cache.Set(key, t)
	}
	return t, nil
}

// FromFile reads and compiles a template file. Without extra contexts the
// result is cached by path and recompiled when the file's modification time
// moves past the cached one.
func (e *Environment) FromFile(path string, contexts ...map[string]any) (*Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template file %q: %w", path, err)
	}

	cacheable := e.cache != nil && len(contexts) == 0
	key := fileKeyPrefix + path
	if cacheable {
		if t, modTime, ok := e.cache.GetStamped(key); ok && !modTime.Before(info.ModTime()) {
			e.logger.Debug("template cache hit", "path", path)
			return t, nil
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template %q: %w", path, err)
	}
	t, err := e.compile(string(content), contexts)
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", path, err)
	}
	if cacheable {
		e.cache.SetStamped(key, t, info.ModTime())
	}
	return t, nil
}

// Render compiles text through the cache and renders it with ctx.
func (e *Environment) Render(text string, ctx map[string]any) (string, error) {
	t, err := e.FromString(text)
	if err != nil {
		return "", err
	}
	return t.Render(ctx)
}

func (e *Environment) compile(text string, contexts []map[string]any) (*Template, error) {
	all := make([]map[string]any, 0, len(contexts)+1)
	all = append(all, e.globals)
	all = append(all, contexts...)

	t, err := compileWith(text, e.resolver, all...)
	if err != nil {
		e.logger.Debug("template compile failed", "error", err)
		return nil, err
	}
	e.logger.Debug("template compiled",
		"referenced", t.referenced,
		"loop_bound", t.loopBound,
		"required", t.required,
	)
	return t, nil
}

var defaultEnvironment = NewEnvironment()

// TemplateString compiles text (cached by content) and renders it with
// context in one call.
func TemplateString(text string, context map[string]any) (string, error) {
	return defaultEnvironment.Render(text, context)
}
