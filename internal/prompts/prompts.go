// Package prompts provides the named template registry for ConsultFlow.
//
// One template exists per response action plus one per evaluation type
// (emotional state evaluation, intent classification, response scoring).
// Defaults are embedded; a template directory can override any of them.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/medleaf/ConsultFlow/internal/models"
)

//go:embed templates/*.tmpl
var defaultTemplates embed.FS

// Evaluation template names, alongside the per-action templates named after
// their ActionID.
const (
	TemplateStateEvaluator = "state_evaluator"
	TemplateIntentAnalyzer = "intent_analyzer"
	TemplateResponseScorer = "response_scorer"
)

// Context carries the values a template can reference.
type Context struct {
	History         string
	LastUserMessage string
	Stage           string
	Action          string
	Response        string
	Appointment     string
}

// Opts holds configuration for the registry.
type Opts struct {
	// Dir optionally points at a directory of <name>.tmpl files that
	// override the embedded defaults.
	Dir string
}

// Option configures the registry.
type Option func(*Opts)

// WithDir sets the template override directory.
func WithDir(dir string) Option {
	return func(o *Opts) { o.Dir = dir }
}

// Registry resolves template names to parsed templates. It is resolved once
// at startup and read-only afterwards.
type Registry struct {
	templates map[string]*template.Template
}

// NewRegistry loads the embedded templates and applies any overrides from
// the configured directory. A malformed override fails startup rather than
// surfacing mid-conversation.
func NewRegistry(opts ...Option) (*Registry, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Registry{templates: make(map[string]*template.Template)}

	entries, err := defaultTemplates.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded templates: %w", err)
	}
	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".tmpl")
		content, err := defaultTemplates.ReadFile("templates/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded template %s: %w", name, err)
		}
		tmpl, err := template.New(name).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse embedded template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}

	if cfg.Dir != "" {
		overrides, err := filepath.Glob(filepath.Join(cfg.Dir, "*.tmpl"))
		if err != nil {
			return nil, fmt.Errorf("failed to scan template directory: %w", err)
		}
		for _, path := range overrides {
			name := strings.TrimSuffix(filepath.Base(path), ".tmpl")
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read template override %s: %w", path, err)
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("failed to parse template override %s: %w", path, err)
			}
			r.templates[name] = tmpl
			slog.Debug("prompts.NewRegistry: template overridden", "name", name, "path", path)
		}
	}

	slog.Debug("prompts.NewRegistry: registry loaded", "count", len(r.templates))
	return r, nil
}

// Has reports whether a template with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render executes the named template against the given context.
func (r *Registry) Render(name string, data Context) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("no template registered for %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return buf.String(), nil
}

// RenderAction renders the generation template for an action.
func (r *Registry) RenderAction(action models.ActionID, data Context) (string, error) {
	return r.Render(string(action), data)
}

// FormatHistory renders a message history as a plain transcript for prompt
// interpolation.
func FormatHistory(history []models.ConversationMessage) string {
	if len(history) == 0 {
		return "(no history)"
	}
	var b strings.Builder
	for _, msg := range history {
		role := "Consultant"
		if msg.Role == models.RoleUser {
			role = "Customer"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
