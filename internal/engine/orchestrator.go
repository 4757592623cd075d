// Package engine implements the per-turn decision pipeline: emotional state
// evaluation, stage transition, candidate action selection, concurrent
// generate-and-score, and tiered final selection.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/models"
	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// Engine sequences one conversation turn end to end. It is safe to share
// across sessions; all per-turn state lives in the Session passed in. A turn
// never fails outward: ProcessTurn always yields a non-empty response.
type Engine struct {
	genaiClient genai.ClientInterface
	registry    *prompts.Registry
	evaluator   *StateEvaluator
	intents     *IntentAnalyzer
	pipeline    *Pipeline
}

// New creates an engine wired with the given capability client and template
// registry.
func New(genaiClient genai.ClientInterface, registry *prompts.Registry) *Engine {
	scorer := NewScorer(genaiClient, registry)
	return &Engine{
		genaiClient: genaiClient,
		registry:    registry,
		evaluator:   NewStateEvaluator(genaiClient, registry),
		intents:     NewIntentAnalyzer(genaiClient, registry),
		pipeline:    NewPipeline(genaiClient, registry, scorer),
	}
}

// ProcessTurn runs the full pipeline for one user message and mutates the
// session in place. The returned error only signals invalid input; once a
// turn starts it always completes with a non-empty final response.
func (e *Engine) ProcessTurn(ctx context.Context, sess *models.Session, userMessage string) (*models.TurnResult, error) {
	if sess == nil {
		return nil, models.ErrSessionNotFound
	}
	if userMessage == "" {
		return nil, models.ErrEmptyMessage
	}

	sess.TurnCount++
	sess.AppendUser(userMessage)
	var trace []string

	slog.Debug("Engine.ProcessTurn: turn started", "sessionID", sess.ID, "turn", sess.TurnCount, "stage", sess.Stage)

	// Tune the generation temperature from the current emotional read.
	sess.Temperature = tuneTemperature(sess.Emotional)
	trace = append(trace, fmt.Sprintf("temperature set to %.1f (comfort %.2f, familiarity %.2f)",
		sess.Temperature, sess.Emotional.Comfort, sess.Emotional.Familiarity))

	// Evaluate the emotional state and coarse intent level.
	sess.Emotional, sess.IntentLevel = e.evaluator.Evaluate(ctx, sess)
	if stateJSON, err := json.Marshal(sess.Emotional); err == nil {
		trace = append(trace, "state evaluation complete: "+string(stateJSON))
	}
	trace = append(trace, "customer intent level: "+string(sess.IntentLevel))

	// Classify the behavioral intent of the latest message and fold any
	// extracted facts into the appointment record. The classification is
	// strictly per-turn: a failed analysis leaves no intent rather than
	// last turn's.
	sess.Intent = e.intents.Analyze(ctx, sess)
	if intent := sess.Intent; intent != nil {
		sess.Appointment.Merge(*intent)
		trace = append(trace, fmt.Sprintf("behavioral intent: %s (confidence %.2f)", intent.IntentType, intent.Confidence))
		if len(intent.ExtractedInfo) > 0 {
			trace = append(trace, fmt.Sprintf("extracted info: %v", intent.ExtractedInfo))
		}
		trace = append(trace, fmt.Sprintf("appointment status: %s", sess.Appointment.Status))
	}

	// Stage settles before actions are chosen; selection never feeds back.
	var stageNotes []string
	sess.Stage, stageNotes = TransitionStage(sess.Stage, sess.TurnCount, sess.Emotional, sess.IntentLevel)
	trace = append(trace, stageNotes...)

	actions, actionNotes := SelectActions(sess.Stage, sess.Emotional, sess.IntentLevel, sess.Intent)
	trace = append(trace, actionNotes...)
	trace = append(trace, fmt.Sprintf("strategy decision (stage: %s, intent: %s, trust: %.2f) -> candidate actions: %v",
		sess.Stage, sess.IntentLevel, sess.Emotional.Trust, actions))

	candidates, pipelineNotes := e.pipeline.Run(ctx, actions, sess, sess.IntentLevel)
	trace = append(trace, pipelineNotes...)

	var final string
	if len(candidates) == 0 {
		// First net: every task failed, try handing off to a human.
		trace = append(trace, "all candidate tasks failed, attempting human handoff")
		final = e.handoff(ctx, sess)
	}
	if final == "" {
		// Second, independent net: the selector's tiered choice, which
		// degrades to the fixed emergency reply on an empty set.
		var selNotes []string
		final, selNotes = ChooseResponse(candidates)
		trace = append(trace, selNotes...)
	}

	sess.AppendAssistant(final)
	sess.UpdatedAt = time.Now()

	slog.Info("Engine.ProcessTurn: turn complete", "sessionID", sess.ID, "turn", sess.TurnCount, "stage", sess.Stage, "responseLength", len(final))

	result := &models.TurnResult{FinalResponse: final}
	if sess.Verbose {
		result.Trace = trace
	}
	return result, nil
}

// handoff attempts one generation with the human-handoff template. Returns
// "" when that also fails.
func (e *Engine) handoff(ctx context.Context, sess *models.Session) string {
	systemPrompt, err := e.registry.RenderAction(models.ActionHumanHandoff, prompts.Context{
		History: prompts.FormatHistory(sess.History),
	})
	if err != nil {
		slog.Warn("Engine.handoff: failed to render handoff template", "error", err)
		return ""
	}
	response, err := e.genaiClient.Generate(ctx, systemPrompt, sess.LastUserMessage(), sess.Temperature)
	if err != nil {
		slog.Warn("Engine.handoff: handoff generation failed", "error", err)
		return ""
	}
	return response
}

// tuneTemperature derives the generation temperature from comfort and
// familiarity: livelier when the customer is at ease, more careful when not.
func tuneTemperature(es models.EmotionalState) float64 {
	switch {
	case es.Comfort > 0.6 && es.Familiarity > 0.5:
		return 0.7
	case es.Comfort < 0.3:
		return 0.5
	default:
		return models.DefaultTemperature
	}
}
