// Package tplengine renders the `{{identifier}}` / `{{ expr }}` placeholder
// templates used throughout workflow configs and variable resolution. It is
// a thin, engine-scoped wrapper around text/template with a sprig funcmap.
// The workflow execution core only ever resolves a placeholder into a Go
// value or a plain string (engine/variables.Store.Resolve), so there are no
// format-specific render modes beyond the Format hint below.
package tplengine

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Format hints how a rendered template's surrounding document is
// structured. The Engine records it but renders the same way for every
// Format; all three are accepted so callers can declare intent ahead of need.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var templateMarkers = []string{"{{", "}}"}

// HasTemplate reports whether s contains template delimiters.
func HasTemplate(s string) bool {
	for _, m := range templateMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// barePlaceholderRe matches a `{{identifier}}` placeholder whose braces
// contain nothing but a bare name -- the workflow config placeholder
// grammar -- without touching `{{ .field }}`, `{{ .field | pipe }}`, or any
// other multi-token text/template action. Single-word keyword actions such
// as `{{ end }}` also match; bridgeBareIdentifiers skips those.
var barePlaceholderRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// bridgeBareIdentifiers rewrites every bare `{{name}}` placeholder in body
// into text/template's dot-field form `{{ .name }}` so the config-level
// placeholder syntax parses over the same text/template + sprig engine as
// hand-written `{{ .field }}` templates. The keywords end, else, break,
// continue, true, false and nil are left as they are.
func bridgeBareIdentifiers(body string) string {
	return barePlaceholderRe.ReplaceAllStringFunc(body, func(m string) string {
		name := barePlaceholderRe.FindStringSubmatch(m)[1]
		switch name {
		case "end", "else", "break", "continue", "true", "false", "nil":
			return m
		}
		return "{{ ." + name + " }}"
	})
}

// Engine compiles and renders named templates, or renders ad hoc strings.
// It is safe for concurrent use.
type Engine struct {
	mu                   sync.RWMutex
	format               Format
	preservePrecision    bool
	templates            map[string]*template.Template
}

// NewEngine constructs an Engine. An empty format defaults to FormatText.
func NewEngine(format Format) *Engine {
	if format == "" {
		format = FormatText
	}
	return &Engine{
		format:    format,
		templates: make(map[string]*template.Template),
	}
}

// WithFormat sets the render format and returns the engine for chaining.
func (e *Engine) WithFormat(f Format) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.format = f
	return e
}

// WithPrecisionPreservation toggles numeric-precision preservation. The
// engine's own render path never needs it since it never round-trips
// through JSON number parsing.
func (e *Engine) WithPrecisionPreservation(v bool) *Engine {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.preservePrecision = v
	return e
}

func funcMap() template.FuncMap {
	return sprig.TxtFuncMap()
}

// AddTemplate parses and stores body under name for later Render calls.
func (e *Engine) AddTemplate(name, body string) error {
	t, err := template.New(name).Funcs(funcMap()).Option("missingkey=error").Parse(bridgeBareIdentifiers(body))
	if err != nil {
		return fmt.Errorf("failed to parse template %q: %w", name, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[name] = t
	return nil
}

// Render executes the named template (previously added via AddTemplate)
// against data and returns the rendered string.
func (e *Engine) Render(name string, data any) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %q", name)
	}
	return execute(t, data)
}

// RenderString renders an ad hoc template body without registering it.
func (e *Engine) RenderString(body string, data any) (string, error) {
	if !HasTemplate(body) {
		return body, nil
	}
	t, err := template.New("inline").Funcs(funcMap()).Option("missingkey=error").Parse(bridgeBareIdentifiers(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse template string: %w", err)
	}
	return execute(t, data)
}

func execute(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
