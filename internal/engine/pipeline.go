package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/models"
	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// InfoSufficientSentinel marks a generation that decided the conversation
// already contains the needed information. It must never surface to the
// user, so such candidates are scored 0.0 without entering the judge.
const InfoSufficientSentinel = "[INFO_SUFFICIENT]"

// maxConcurrentTasks bounds the generate+score worker pool.
const maxConcurrentTasks = 3

// Pipeline runs one generate+score task per candidate action concurrently.
// A failure in any single task is recorded in the trace and excluded from
// the result set; it never aborts sibling tasks.
type Pipeline struct {
	genaiClient genai.ClientInterface
	registry    *prompts.Registry
	scorer      *Scorer
}

// NewPipeline creates a candidate pipeline with its dependencies.
func NewPipeline(genaiClient genai.ClientInterface, registry *prompts.Registry, scorer *Scorer) *Pipeline {
	return &Pipeline{genaiClient: genaiClient, registry: registry, scorer: scorer}
}

// taskResult carries either a finished candidate, a trace note, or both out
// of a worker.
type taskResult struct {
	candidate *models.Candidate
	note      string
}

// Run generates and scores a candidate per action with a bounded worker
// pool. Candidate order and trace order follow task completion, not
// submission; callers must not rely on either.
func (p *Pipeline) Run(ctx context.Context, actions []models.ActionID, sess *models.Session, level models.IntentLevel) ([]models.Candidate, []string) {
	if len(actions) == 0 {
		return nil, nil
	}

	limit := len(actions)
	if limit > maxConcurrentTasks {
		limit = maxConcurrentTasks
	}

	results := make(chan taskResult, len(actions))
	var g errgroup.Group
	g.SetLimit(limit)

	for _, action := range actions {
		g.Go(func() error {
			// Tasks own their failures; the pool never sees an error.
			results <- p.runOne(ctx, action, sess, level)
			return nil
		})
	}
	g.Wait() //nolint:errcheck // tasks always return nil
	close(results)

	var candidates []models.Candidate
	var trace []string
	for res := range results {
		if res.candidate != nil {
			candidates = append(candidates, *res.candidate)
		}
		if res.note != "" {
			trace = append(trace, res.note)
		}
	}

	slog.Debug("Pipeline.Run: candidate generation finished", "requested", len(actions), "produced", len(candidates))
	return candidates, trace
}

// runOne generates and scores the response for a single action.
func (p *Pipeline) runOne(ctx context.Context, action models.ActionID, sess *models.Session, level models.IntentLevel) taskResult {
	if !p.registry.Has(string(action)) {
		slog.Warn("Pipeline.runOne: no template registered for action", "action", action)
		return taskResult{note: fmt.Sprintf("  - [%s] no generation template registered, skipped", action)}
	}

	systemPrompt, err := p.registry.RenderAction(action, prompts.Context{
		History:     prompts.FormatHistory(sess.History),
		Stage:       string(sess.Stage),
		Appointment: formatAppointment(sess.Appointment),
	})
	if err != nil {
		slog.Warn("Pipeline.runOne: failed to render action template", "action", action, "error", err)
		return taskResult{note: fmt.Sprintf("  - [%s] template render failed, skipped: %v", action, err)}
	}

	response, err := p.genaiClient.Generate(ctx, systemPrompt, sess.LastUserMessage(), sess.Temperature)
	if err != nil {
		slog.Warn("Pipeline.runOne: generation failed", "action", action, "error", err)
		return taskResult{note: fmt.Sprintf("  - [%s] generation failed, skipped: %v", action, err)}
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return taskResult{note: fmt.Sprintf("  - [%s] empty generation, skipped", action)}
	}

	var score float64
	var reasoning string
	if strings.Contains(response, InfoSufficientSentinel) {
		score, reasoning = 0.0, "internal marker, must not surface"
	} else {
		score, reasoning = p.scorer.Score(ctx, action, response, sess, level)
	}

	candidate := &models.Candidate{Action: action, Response: response, Score: score, Reasoning: reasoning}
	note := fmt.Sprintf("  - [%s] generated reply: '%s' -> score %.2f (%s)", action, snippet(response, 30), score, reasoning)
	return taskResult{candidate: candidate, note: note}
}

func formatAppointment(a models.AppointmentInfo) string {
	var parts []string
	parts = append(parts, "status: "+string(a.Status))
	if a.HasTime {
		parts = append(parts, "time: "+a.PreferredTime)
	}
	if a.HasName {
		parts = append(parts, "name: "+a.CustomerName)
	}
	if a.HasPhone {
		parts = append(parts, "phone: "+a.CustomerPhone)
	}
	if a.PreferredService != "" {
		parts = append(parts, "service: "+a.PreferredService)
	}
	return strings.Join(parts, ", ")
}

func snippet(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
