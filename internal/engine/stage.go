package engine

import (
	"fmt"
	"log/slog"

	"github.com/medleaf/ConsultFlow/internal/models"
)

// TransitionStage advances or rolls back the conversation stage based on the
// emotional state and intent level. At most one forward hop happens per turn;
// regression checks run after forward evaluation and override it. The
// returned notes annotate the decision for the turn trace.
func TransitionStage(stage models.ConversationStage, turnCount int, es models.EmotionalState, level models.IntentLevel) (models.ConversationStage, []string) {
	var notes []string
	next := stage

	switch stage {
	case models.StageInitialContact:
		if turnCount >= 1 && es.Comfort > 0.2 {
			next = models.StageIceBreaking
		}
	case models.StageIceBreaking:
		if es.Familiarity > 0.3 {
			next = models.StageSubtleExpertise
		}
	case models.StageSubtleExpertise:
		if es.Trust > 0.4 {
			next = models.StagePainPointMining
		}
	case models.StagePainPointMining:
		if es.Trust > 0.6 && (level == models.IntentMedium || level == models.IntentHigh) {
			next = models.StageSolutionVisualization
		}
	case models.StageSolutionVisualization:
		if es.Trust > 0.7 && level == models.IntentHigh {
			next = models.StageNaturalInvitation
		}
	}

	// Regression takes precedence over any forward advancement this turn.
	if es.Comfort < 0.3 && stage != models.StageInitialContact && stage != models.StageIceBreaking {
		next = models.StageIceBreaking
		notes = append(notes, fmt.Sprintf("comfort too low (%.2f), falling back to ice breaking", es.Comfort))
	} else if es.Trust < 0.2 && stage != models.StageInitialContact {
		next = models.StageInitialContact
		notes = append(notes, fmt.Sprintf("trust too low (%.2f), restarting the conversation", es.Trust))
	}

	if next != stage {
		notes = append(notes, fmt.Sprintf("stage transition: '%s' -> '%s' (trust %.2f / comfort %.2f / familiarity %.2f)",
			stage, next, es.Trust, es.Comfort, es.Familiarity))
		slog.Debug("engine.TransitionStage: stage changed", "from", stage, "to", next, "turnCount", turnCount)
	}
	return next, notes
}
