package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medleaf/ConsultFlow/internal/models"
)

func newPipelineSession() *models.Session {
	sess := models.NewSession("pipeline-test")
	sess.AppendUser("tell me about teeth whitening")
	return sess
}

// pipelineOverrides renders each involved template to a fixed marker so the
// mock can dispatch per action.
func pipelineOverrides() map[string]string {
	return map[string]string{
		"greeting":        "GEN:greeting",
		"value_display":   "GEN:value_display",
		"needs_analysis":  "GEN:needs_analysis",
		"response_scorer": "SCORER_PROMPT",
	}
}

func TestPipelineProducesCandidatePerAction(t *testing.T) {
	registry := newTestRegistry(t, pipelineOverrides())
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return "reply for " + strings.TrimPrefix(systemPrompt, "GEN:"), nil
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			return `{"score": 0.6, "reasoning": "reasonable"}`, nil
		},
	}
	pipeline := NewPipeline(client, registry, NewScorer(client, registry))

	actions := []models.ActionID{models.ActionGreeting, models.ActionValueDisplay, models.ActionNeedsAnalysis}
	candidates, trace := pipeline.Run(context.Background(), actions, newPipelineSession(), models.IntentMedium)
	if len(candidates) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(candidates))
	}
	seen := make(map[models.ActionID]bool)
	for _, c := range candidates {
		seen[c.Action] = true
		if c.Score != 0.6 {
			t.Errorf("Expected score 0.6 for %s, got %v", c.Action, c.Score)
		}
		if !strings.HasPrefix(c.Response, "reply for ") {
			t.Errorf("Unexpected response for %s: %q", c.Action, c.Response)
		}
	}
	for _, a := range actions {
		if !seen[a] {
			t.Errorf("Missing candidate for action %s", a)
		}
	}
	if len(trace) != 3 {
		t.Errorf("Expected 3 trace notes, got %d", len(trace))
	}
}

func TestPipelineIsolatesSingleTaskFailure(t *testing.T) {
	registry := newTestRegistry(t, pipelineOverrides())
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			if systemPrompt == "GEN:value_display" {
				return "", errors.New("model overloaded")
			}
			return "a fine reply", nil
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			return `{"score": 0.5, "reasoning": "fine"}`, nil
		},
	}
	pipeline := NewPipeline(client, registry, NewScorer(client, registry))

	actions := []models.ActionID{models.ActionGreeting, models.ActionValueDisplay, models.ActionNeedsAnalysis}
	candidates, trace := pipeline.Run(context.Background(), actions, newPipelineSession(), models.IntentMedium)
	if len(candidates) != 2 {
		t.Fatalf("Expected 2 surviving candidates, got %d", len(candidates))
	}
	for _, c := range candidates {
		if c.Action == models.ActionValueDisplay {
			t.Errorf("Failed action should not produce a candidate")
		}
	}
	var failureNoted bool
	for _, note := range trace {
		if strings.Contains(note, "value_display") && strings.Contains(note, "generation failed") {
			failureNoted = true
		}
	}
	if !failureNoted {
		t.Errorf("Expected the failure to be recorded in the trace, got %v", trace)
	}
}

func TestPipelineSentinelScoresZero(t *testing.T) {
	registry := newTestRegistry(t, pipelineOverrides())
	judgeCalls := 0
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return InfoSufficientSentinel, nil
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			judgeCalls++
			return `{"score": 0.9, "reasoning": "should never run"}`, nil
		},
	}
	pipeline := NewPipeline(client, registry, NewScorer(client, registry))

	candidates, _ := pipeline.Run(context.Background(), []models.ActionID{models.ActionValueDisplay}, newPipelineSession(), models.IntentMedium)
	if len(candidates) != 1 {
		t.Fatalf("Expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].Score != 0.0 {
		t.Errorf("Expected sentinel candidate to score 0.0, got %v", candidates[0].Score)
	}
	if judgeCalls != 0 {
		t.Errorf("Expected the sentinel to bypass the judge, got %d calls", judgeCalls)
	}
}

func TestPipelineEmptyGenerationSkipped(t *testing.T) {
	registry := newTestRegistry(t, pipelineOverrides())
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return "   ", nil
		},
	}
	pipeline := NewPipeline(client, registry, NewScorer(client, registry))

	candidates, trace := pipeline.Run(context.Background(), []models.ActionID{models.ActionGreeting}, newPipelineSession(), models.IntentLow)
	if len(candidates) != 0 {
		t.Errorf("Expected no candidates for blank generations, got %d", len(candidates))
	}
	if len(trace) != 1 || !strings.Contains(trace[0], "empty generation") {
		t.Errorf("Expected an empty-generation note, got %v", trace)
	}
}

func TestPipelineNoActions(t *testing.T) {
	registry := newTestRegistry(t, nil)
	pipeline := NewPipeline(&mockClient{}, registry, NewScorer(&mockClient{}, registry))
	candidates, trace := pipeline.Run(context.Background(), nil, newPipelineSession(), models.IntentLow)
	if candidates != nil || trace != nil {
		t.Errorf("Expected nil results for an empty action list, got %v / %v", candidates, trace)
	}
}
