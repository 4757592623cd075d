package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medleaf/ConsultFlow/internal/genai"
	"github.com/medleaf/ConsultFlow/internal/models"
	"github.com/medleaf/ConsultFlow/internal/prompts"
)

// Scorer scores one generated response against the conversation context.
// The primary path asks the judge capability for a rubric-based score; when
// the judge fails or returns garbage it falls back to a deterministic
// rule-based score. The fallback is total: it never errors.
type Scorer struct {
	genaiClient genai.ClientInterface
	registry    *prompts.Registry
}

// NewScorer creates a scorer with its dependencies.
func NewScorer(genaiClient genai.ClientInterface, registry *prompts.Registry) *Scorer {
	return &Scorer{genaiClient: genaiClient, registry: registry}
}

type judgeVerdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
}

// Score evaluates a response generated for an action. It always returns a
// finite score in [0,1] with a reasoning string.
func (s *Scorer) Score(ctx context.Context, action models.ActionID, response string, sess *models.Session, level models.IntentLevel) (float64, string) {
	prompt, err := s.registry.Render(prompts.TemplateResponseScorer, prompts.Context{
		LastUserMessage: sess.LastUserMessage(),
		Action:          string(action),
		Response:        response,
	})
	if err != nil {
		slog.Warn("Scorer.Score: failed to render scoring prompt, using rule-based score", "action", action, "error", err)
		return s.ruleScore(action, response, sess.Stage, sess.Emotional, level, err)
	}

	raw, err := s.genaiClient.Judge(ctx, prompt)
	if err != nil {
		slog.Warn("Scorer.Score: judge call failed, using rule-based score", "action", action, "error", err)
		return s.ruleScore(action, response, sess.Stage, sess.Emotional, level, err)
	}

	var verdict judgeVerdict
	if err := decodeLooseJSON(raw, &verdict); err != nil {
		slog.Warn("Scorer.Score: unparseable judge verdict, using rule-based score", "action", action, "error", err)
		return s.ruleScore(action, response, sess.Stage, sess.Emotional, level, err)
	}

	score := verdict.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	reasoning := verdict.Reasoning
	if reasoning == "" {
		reasoning = "judge returned no reasoning"
	}
	return score, reasoning
}

// stageActionScores is the rule-based lookup of how well each action suits
// each stage.
var stageActionScores = map[models.ConversationStage]map[models.ActionID]float64{
	models.StageInitialContact:        {models.ActionGreeting: 0.8, models.ActionRapportBuilding: 0.7},
	models.StageIceBreaking:           {models.ActionRapportBuilding: 0.8, models.ActionNeedsAnalysis: 0.6},
	models.StageSubtleExpertise:       {models.ActionValueDisplay: 0.8, models.ActionNeedsAnalysis: 0.7},
	models.StagePainPointMining:       {models.ActionNeedsAnalysis: 0.8, models.ActionPainPointTest: 0.7},
	models.StageSolutionVisualization: {models.ActionValuePitch: 0.8, models.ActionValueDisplay: 0.7},
	models.StageNaturalInvitation:     {models.ActionActiveClose: 0.8, models.ActionValuePitch: 0.6},
}

// Keyword signals for the information-provided vs. further-probing
// adjustment.
var (
	infoKeywords  = []string{"price", "treatment", "session", "option", "we can", "takes about"}
	probeKeywords = []string{"what", "how", "which", "why"}
)

// ruleScore is the deterministic fallback scorer.
func (s *Scorer) ruleScore(action models.ActionID, response string, stage models.ConversationStage, es models.EmotionalState, level models.IntentLevel, cause error) (float64, string) {
	reasoning := fmt.Sprintf("judge unavailable, rule-based score (%v)", cause)

	trimmed := strings.TrimSpace(response)
	if len(trimmed) < 3 {
		return 0.2, reasoning
	}
	if len(response) > 500 {
		return 0.4, reasoning
	}

	score := 0.5
	if byAction, ok := stageActionScores[stage]; ok {
		if base, ok := byAction[action]; ok {
			score = base
		}
	}

	// Low trust favors relationship work over closing.
	if es.Trust < 0.3 {
		switch action {
		case models.ActionRapportBuilding, models.ActionGreeting:
			score += 0.1
		case models.ActionActiveClose, models.ActionValuePitch:
			score -= 0.2
		}
	}

	// Low comfort favors pressure relief.
	if es.Comfort < 0.3 {
		switch action {
		case models.ActionStressResponse, models.ActionRapportBuilding:
			score += 0.1
		case models.ActionActiveClose:
			score -= 0.1
		}
	}

	// Intent-level alignment: reward closing at high intent, punish it at low.
	if level == models.IntentHigh && action == models.ActionActiveClose {
		score += 0.1
	} else if level == models.IntentLow && action == models.ActionActiveClose {
		score -= 0.2
	}

	// Prefer answers over continued probing once the need is on the table.
	lower := strings.ToLower(response)
	switch action {
	case models.ActionValueDisplay:
		if containsAny(lower, infoKeywords) {
			score += 0.15
		}
	case models.ActionNeedsAnalysis:
		if containsAny(lower, probeKeywords) {
			score -= 0.1
		}
	}

	if score < 0.1 {
		score = 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score, reasoning
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
