package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	jinja "github.com/AlexanderGrooff/jinja-lite"
)

// Loader compiles templates from a Source through an Environment and
// recompiles a template only when its source stamp moves forward.
type Loader struct {
	env    *jinja.Environment
	src    Source
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	template *jinja.Template
	stamp    time.Time
}

// NewLoader returns a Loader reading from src. A nil logger discards.
func NewLoader(env *jinja.Environment, src Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		env:     env,
		src:     src,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Template returns the compiled template for name.
func (l *Loader) Template(ctx context.Context, name string) (*jinja.Template, error) {
	text, stamp, err := l.src.Load(ctx, name)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	e, ok := l.entries[name]
	l.mu.RUnlock()
	if ok && !e.stamp.Before(stamp) {
		return e.template, nil
	}

	t, err := l.env.FromString(text)
	if err != nil {
		return nil, fmt.Errorf("compiling template %q: %w", name, err)
	}
	if ok {
		l.logger.Info("Template reloaded", "template", name, "stamp", stamp)
	} else {
		l.logger.Debug("Template loaded", "template", name, "required", t.Required())
	}

	l.mu.Lock()
	l.entries[name] = &entry{template: t, stamp: stamp}
	l.mu.Unlock()
	return t, nil
}

// Render loads name and renders it with ctx.
func (l *Loader) Render(ctx context.Context, name string, data map[string]any) (string, error) {
	t, err := l.Template(ctx, name)
	if err != nil {
		return "", err
	}
	return t.Render(data)
}
