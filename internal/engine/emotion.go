package engine

import (
	"context"
	"log/slog"

	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/models"
	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// StateEvaluator derives the emotional state vector and intent level from
// the conversation history via the judge capability. It fails soft: on any
// capability or parse failure the caller keeps the previous state and the
// intent level defaults to low. No error ever crosses this boundary.
type StateEvaluator struct {
	genaiClient genai.ClientInterface
	registry    *prompts.Registry
}

// NewStateEvaluator creates a state evaluator with its dependencies.
func NewStateEvaluator(genaiClient genai.ClientInterface, registry *prompts.Registry) *StateEvaluator {
	return &StateEvaluator{genaiClient: genaiClient, registry: registry}
}

// emotionalStatePatch uses pointer fields so a dimension the judge omitted
// leaves the prior value unchanged.
type emotionalStatePatch struct {
	Security    *float64 `json:"security_level"`
	Familiarity *float64 `json:"familiarity_level"`
	Comfort     *float64 `json:"comfort_level"`
	Intimacy    *float64 `json:"intimacy_level"`
	Gain        *float64 `json:"gain_level"`
	Recognition *float64 `json:"recognition_level"`
	Trust       *float64 `json:"trust_level"`
}

type stateEvaluation struct {
	EmotionalState      emotionalStatePatch `json:"emotional_state"`
	CustomerIntentLevel string              `json:"customer_intent_level"`
}

// Evaluate builds the evaluation prompt from the session history, invokes
// the judge, and returns the updated state and intent level.
func (e *StateEvaluator) Evaluate(ctx context.Context, sess *models.Session) (models.EmotionalState, models.IntentLevel) {
	state := sess.Emotional

	prompt, err := e.registry.Render(prompts.TemplateStateEvaluator, prompts.Context{
		History: prompts.FormatHistory(sess.History),
		Stage:   string(sess.Stage),
	})
	if err != nil {
		slog.Warn("StateEvaluator.Evaluate: failed to render prompt, keeping previous state", "error", err)
		return state, models.IntentLow
	}

	raw, err := e.genaiClient.Judge(ctx, prompt)
	if err != nil {
		slog.Warn("StateEvaluator.Evaluate: judge call failed, keeping previous state", "error", err)
		return state, models.IntentLow
	}

	var eval stateEvaluation
	if err := decodeLooseJSON(raw, &eval); err != nil {
		slog.Warn("StateEvaluator.Evaluate: unparseable judge output, keeping previous state", "error", err)
		return state, models.IntentLow
	}

	applyPatch(&state, eval.EmotionalState)
	state.Clamp()

	level := models.IntentLevel(eval.CustomerIntentLevel)
	if !models.IsValidIntentLevel(level) {
		level = models.IntentLow
	}

	slog.Debug("StateEvaluator.Evaluate: evaluation complete", "trust", state.Trust, "comfort", state.Comfort, "intentLevel", level)
	return state, level
}

func applyPatch(state *models.EmotionalState, patch emotionalStatePatch) {
	if patch.Security != nil {
		state.Security = *patch.Security
	}
	if patch.Familiarity != nil {
		state.Familiarity = *patch.Familiarity
	}
	if patch.Comfort != nil {
		state.Comfort = *patch.Comfort
	}
	if patch.Intimacy != nil {
		state.Intimacy = *patch.Intimacy
	}
	if patch.Gain != nil {
		state.Gain = *patch.Gain
	}
	if patch.Recognition != nil {
		state.Recognition = *patch.Recognition
	}
	if patch.Trust != nil {
		state.Trust = *patch.Trust
	}
}
