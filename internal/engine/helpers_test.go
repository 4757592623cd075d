package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// mockClient substitutes both GenAI capabilities with test-provided functions.
type mockClient struct {
	generateFn func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error)
	judgeFn    func(ctx context.Context, prompt string) (string, error)
}

func (m *mockClient) Generate(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	if m.generateFn == nil {
		return "", errors.New("generate not configured")
	}
	return m.generateFn(ctx, systemPrompt, userPrompt, temperature)
}

func (m *mockClient) Judge(ctx context.Context, prompt string) (string, error) {
	if m.judgeFn == nil {
		return "", errors.New("judge not configured")
	}
	return m.judgeFn(ctx, prompt)
}

// newTestRegistry builds a registry whose overridden templates render fixed
// markers, so mocks can dispatch on prompt content.
func newTestRegistry(t *testing.T, overrides map[string]string) *prompts.Registry {
	t.Helper()
	dir := t.TempDir()
	for name, content := range overrides {
		path := filepath.Join(dir, name+".tmpl")
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write template override %s: %v", name, err)
		}
	}
	registry, err := prompts.NewRegistry(prompts.WithDir(dir))
	if err != nil {
		t.Fatalf("Failed to build registry: %v", err)
	}
	return registry
}
