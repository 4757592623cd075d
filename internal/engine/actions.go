package engine

import (
	"fmt"

	"github.com/medleaf/ConsultFlow/internal/models"
)

// maxCandidateActions caps the search space per turn.
const maxCandidateActions = 3

// actionSet keeps candidate actions in insertion order with first-occurrence
// dedup, so truncation and the selector tie-break stay deterministic.
type actionSet struct {
	actions []models.ActionID
	seen    map[models.ActionID]bool
}

func newActionSet(actions ...models.ActionID) *actionSet {
	s := &actionSet{seen: make(map[models.ActionID]bool)}
	s.add(actions...)
	return s
}

func (s *actionSet) add(actions ...models.ActionID) {
	for _, a := range actions {
		if !s.seen[a] {
			s.seen[a] = true
			s.actions = append(s.actions, a)
		}
	}
}

func (s *actionSet) prepend(a models.ActionID) {
	if s.seen[a] {
		return
	}
	s.seen[a] = true
	s.actions = append([]models.ActionID{a}, s.actions...)
}

func (s *actionSet) replace(actions ...models.ActionID) {
	s.actions = nil
	s.seen = make(map[models.ActionID]bool)
	s.add(actions...)
}

func (s *actionSet) contains(a models.ActionID) bool { return s.seen[a] }
func (s *actionSet) len() int                        { return len(s.actions) }

// SelectActions maps the settled stage, emotional state and intent signals
// to 1-3 candidate actions. Priority-ordered rules pick the base set, global
// overrides adjust it, and a normalization step keeps the search space
// between one and three actions.
func SelectActions(stage models.ConversationStage, es models.EmotionalState, level models.IntentLevel, intent *models.CustomerIntent) ([]models.ActionID, []string) {
	var notes []string
	set := newActionSet()

	switch {
	// Priority 1: explicit booking intent.
	case intent != nil && intent.IntentType.IsBookingFlavored():
		if intent.Confidence > 0.8 {
			set.add(models.ActionActiveClose, models.ActionValueDisplay)
			notes = append(notes, "clear booking intent detected, moving to a natural invitation")
		} else {
			set.add(models.ActionNeedsAnalysis, models.ActionValueDisplay)
			notes = append(notes, "booking intent unclear, understanding the need first")
		}

	// Priority 2: information requests get information, not probing.
	case intent != nil && intent.IntentType == models.IntentInfoSeeking:
		set.add(models.ActionValueDisplay)
		if es.Familiarity > 0.4 {
			set.add(models.ActionNeedsAnalysis)
		}
		notes = append(notes, "customer seeking information, leading with a concrete answer")

	// Priority 3: price questions get a straight answer.
	case intent != nil && intent.IntentType == models.IntentPriceInquiry:
		set.add(models.ActionValueDisplay, models.ActionValuePitch)
		if es.Trust > 0.5 {
			set.add(models.ActionActiveClose)
		}
		notes = append(notes, "price inquiry, answering honestly")

	// Priority 4: concerns get empathy before anything else.
	case intent != nil && intent.IntentType == models.IntentConcernRaised:
		set.add(models.ActionStressResponse, models.ActionRapportBuilding)
		notes = append(notes, "customer raised a concern, acknowledging it")

	// Priority 5: stage defaults.
	default:
		switch stage {
		case models.StageInitialContact:
			set.add(models.ActionGreeting)
		case models.StageIceBreaking:
			set.add(models.ActionRapportBuilding)
		case models.StageSubtleExpertise:
			set.add(models.ActionValueDisplay)
			if es.Familiarity > 0.4 {
				set.add(models.ActionNeedsAnalysis)
			}
		case models.StagePainPointMining:
			set.add(models.ActionNeedsAnalysis, models.ActionPainPointTest)
			if es.Trust > 0.6 {
				set.add(models.ActionValueDisplay)
			}
		case models.StageSolutionVisualization:
			set.add(models.ActionValuePitch, models.ActionValueDisplay)
			if level == models.IntentHigh {
				set.add(models.ActionActiveClose)
			}
		case models.StageNaturalInvitation:
			set.add(models.ActionActiveClose)
			if level != models.IntentHigh {
				set.add(models.ActionValuePitch)
			}
		}
	}

	// Global overrides, highest priority first. The trust override is
	// terminal: the set becomes exactly rapport building and later
	// overrides are skipped. An all-zero vector means no signal yet, not
	// distrust, so it never triggers the override.
	if es.Trust < 0.3 && es != (models.EmotionalState{}) {
		set.replace(models.ActionRapportBuilding)
		notes = append(notes, fmt.Sprintf("trust too low (%.2f), prioritizing the relationship", es.Trust))
		return set.actions, notes
	}
	if es.Comfort < 0.2 && (stage == models.StageSolutionVisualization || stage == models.StageNaturalInvitation) {
		set.prepend(models.ActionStressResponse)
		notes = append(notes, fmt.Sprintf("comfort too low (%.2f), easing the pressure first", es.Comfort))
	}
	if level == models.IntentFakeHigh {
		set.add(models.ActionReverseProbe)
		notes = append(notes, "possible fake enthusiasm, adding a reverse probe")
	} else if level == models.IntentLow && (stage == models.StageSolutionVisualization || stage == models.StageNaturalInvitation) {
		set.replace(models.ActionRapportBuilding, models.ActionNeedsAnalysis)
		notes = append(notes, "low intent in a closing stage, stepping back to basics")
	}

	notes = append(notes, normalizeSearchSpace(set, es)...)

	if set.len() == 0 {
		set.add(models.ActionRapportBuilding)
		notes = append(notes, "no strategy matched, defaulting to rapport building")
	}
	return set.actions, notes
}

// normalizeSearchSpace expands a lone action with related ones to preserve
// exploration breadth and truncates oversized sets back to three, keeping
// insertion order.
func normalizeSearchSpace(set *actionSet, es models.EmotionalState) []string {
	var notes []string

	if set.len() == 1 {
		primary := set.actions[0]
		switch primary {
		case models.ActionActiveClose:
			if es.Comfort < 0.6 {
				set.add(models.ActionStressResponse)
			}
			if es.Trust > 0.7 {
				set.add(models.ActionValueDisplay)
			}
		case models.ActionValueDisplay, models.ActionValuePitch:
			set.add(models.ActionNeedsAnalysis)
			if es.Trust > 0.6 {
				set.add(models.ActionActiveClose)
			}
		case models.ActionStressResponse:
			set.add(models.ActionRapportBuilding)
		}
		if set.len() > 1 {
			notes = append(notes, fmt.Sprintf("expanded search space: %s -> %v", primary, set.actions))
		}
	} else if set.len() > maxCandidateActions {
		set.actions = set.actions[:maxCandidateActions]
		notes = append(notes, "search space truncated to 3 options")
	}
	return notes
}
