package engine

import (
	"context"
	"log/slog"

	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/models"
	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// intentHistoryWindow limits how much history the intent analyzer sees;
// behavioral intent lives in the last few exchanges.
const intentHistoryWindow = 5

// IntentAnalyzer classifies the customer's latest message into a behavioral
// intent with extracted booking facts. Like the state evaluator it fails
// soft: any failure yields a nil intent and the turn continues without one.
type IntentAnalyzer struct {
	genaiClient genai.ClientInterface
	registry    *prompts.Registry
}

// NewIntentAnalyzer creates an intent analyzer with its dependencies.
func NewIntentAnalyzer(genaiClient genai.ClientInterface, registry *prompts.Registry) *IntentAnalyzer {
	return &IntentAnalyzer{genaiClient: genaiClient, registry: registry}
}

type intentClassification struct {
	IntentType     string            `json:"intent_type"`
	Confidence     float64           `json:"confidence"`
	ExtractedInfo  map[string]string `json:"extracted_info"`
	RequiresAction []string          `json:"requires_action"`
}

// Analyze inspects the latest user message against recent history and
// returns the classified intent, or nil when nothing could be classified.
func (a *IntentAnalyzer) Analyze(ctx context.Context, sess *models.Session) *models.CustomerIntent {
	lastMessage := sess.LastUserMessage()
	if lastMessage == "" {
		return nil
	}

	recent := sess.History
	if len(recent) > intentHistoryWindow {
		recent = recent[len(recent)-intentHistoryWindow:]
	}

	prompt, err := a.registry.Render(prompts.TemplateIntentAnalyzer, prompts.Context{
		History:         prompts.FormatHistory(recent),
		LastUserMessage: lastMessage,
	})
	if err != nil {
		slog.Warn("IntentAnalyzer.Analyze: failed to render prompt", "error", err)
		return nil
	}

	raw, err := a.genaiClient.Judge(ctx, prompt)
	if err != nil {
		slog.Warn("IntentAnalyzer.Analyze: judge call failed", "error", err)
		return nil
	}

	var cls intentClassification
	if err := decodeLooseJSON(raw, &cls); err != nil {
		slog.Warn("IntentAnalyzer.Analyze: unparseable judge output", "error", err)
		return nil
	}

	intentType := models.IntentType(cls.IntentType)
	if !models.IsValidIntentType(intentType) {
		intentType = models.IntentGeneralChat
	}
	confidence := cls.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	intent := &models.CustomerIntent{
		IntentType:     intentType,
		Confidence:     confidence,
		ExtractedInfo:  cls.ExtractedInfo,
		RequiresAction: cls.RequiresAction,
	}
	slog.Debug("IntentAnalyzer.Analyze: intent classified", "intentType", intentType, "confidence", confidence)
	return intent
}
