package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/medleaf/ConsultFlow/internal/models"
)

func TestProcessTurnRejectsInvalidInput(t *testing.T) {
	registry := newTestRegistry(t, nil)
	eng := New(&mockClient{}, registry)

	if _, err := eng.ProcessTurn(context.Background(), nil, "hello"); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound for nil session, got %v", err)
	}

	sess := models.NewSession("turn-test")
	if _, err := eng.ProcessTurn(context.Background(), sess, ""); !errors.Is(err, models.ErrEmptyMessage) {
		t.Errorf("Expected ErrEmptyMessage for empty message, got %v", err)
	}
}

func TestProcessTurnHappyPath(t *testing.T) {
	registry := newTestRegistry(t, map[string]string{
		"state_evaluator": "STATE_PROMPT",
		"intent_analyzer": "INTENT_PROMPT",
		"response_scorer": "SCORER_PROMPT",
	})
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return "Happy to help with that.", nil
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			switch prompt {
			case "STATE_PROMPT":
				return `{"emotional_state": {"trust_level": 0.5, "comfort_level": 0.5, "familiarity_level": 0.4}, "customer_intent_level": "medium"}`, nil
			case "INTENT_PROMPT":
				return `{"intent_type": "appointment_request", "confidence": 0.9, "extracted_info": {"time": "Friday morning"}}`, nil
			case "SCORER_PROMPT":
				return `{"score": 0.8, "reasoning": "on point"}`, nil
			default:
				return "", errors.New("unexpected judge prompt")
			}
		},
	}
	eng := New(client, registry)

	sess := models.NewSession("turn-test")
	sess.Verbose = true
	result, err := eng.ProcessTurn(context.Background(), sess, "Can I book something for Friday morning?")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if result.FinalResponse != "Happy to help with that." {
		t.Errorf("Unexpected final response: %q", result.FinalResponse)
	}
	if len(result.Trace) == 0 {
		t.Error("Expected a trace on a verbose session")
	}

	if sess.TurnCount != 1 {
		t.Errorf("Expected turn count 1, got %d", sess.TurnCount)
	}
	// Comfort 0.5 clears the initial-contact threshold, one forward hop.
	if sess.Stage != models.StageIceBreaking {
		t.Errorf("Expected stage ice_breaking, got %s", sess.Stage)
	}
	if sess.IntentLevel != models.IntentMedium {
		t.Errorf("Expected intent level medium, got %s", sess.IntentLevel)
	}
	if sess.Emotional.Trust != 0.5 {
		t.Errorf("Expected trust 0.5, got %v", sess.Emotional.Trust)
	}
	// Extracted booking facts fold into the appointment record.
	if !sess.Appointment.HasTime || sess.Appointment.PreferredTime != "Friday morning" {
		t.Errorf("Expected extracted time in appointment, got %+v", sess.Appointment)
	}
	if sess.Appointment.Status != models.AppointmentInfoCollecting {
		t.Errorf("Expected appointment status info_collecting, got %s", sess.Appointment.Status)
	}
	// Temperature tuned from the pre-turn state, which was all zero.
	if sess.Temperature != 0.5 {
		t.Errorf("Expected cautious temperature 0.5, got %v", sess.Temperature)
	}
	// History carries both sides of the turn.
	if len(sess.History) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(sess.History))
	}
	if sess.History[0].Role != models.RoleUser || sess.History[1].Role != models.RoleAssistant {
		t.Errorf("Unexpected history roles: %s, %s", sess.History[0].Role, sess.History[1].Role)
	}
}

func TestProcessTurnIntentIsPerTurn(t *testing.T) {
	// A classified intent must not outlive its turn: when the next turn's
	// analysis fails, action selection falls back to the stage defaults
	// instead of replaying last turn's booking intent.
	registry := newTestRegistry(t, map[string]string{
		"state_evaluator": "STATE_PROMPT",
		"intent_analyzer": "INTENT_PROMPT",
		"response_scorer": "SCORER_PROMPT",
	})
	judgeDown := false
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return "Of course, happy to help.", nil
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			if judgeDown {
				return "", errors.New("judge offline")
			}
			switch prompt {
			case "STATE_PROMPT":
				return `{"emotional_state": {"trust_level": 0.5, "comfort_level": 0.5, "familiarity_level": 0.2}, "customer_intent_level": "medium"}`, nil
			case "INTENT_PROMPT":
				return `{"intent_type": "appointment_request", "confidence": 0.9}`, nil
			case "SCORER_PROMPT":
				return `{"score": 0.8, "reasoning": "fits"}`, nil
			default:
				return "", errors.New("unexpected judge prompt")
			}
		},
	}
	eng := New(client, registry)

	sess := models.NewSession("turn-test")
	sess.Verbose = true
	if _, err := eng.ProcessTurn(context.Background(), sess, "Can I book an appointment?"); err != nil {
		t.Fatalf("First turn failed: %v", err)
	}
	if sess.Intent == nil || sess.Intent.IntentType != models.IntentAppointmentRequest {
		t.Fatalf("Expected a booking intent after turn one, got %+v", sess.Intent)
	}

	judgeDown = true
	result, err := eng.ProcessTurn(context.Background(), sess, "hm, let me think")
	if err != nil {
		t.Fatalf("Second turn failed: %v", err)
	}
	if sess.Intent != nil {
		t.Errorf("Expected no intent after a failed analysis, got %+v", sess.Intent)
	}
	for _, note := range result.Trace {
		if strings.Contains(note, "candidate actions") && strings.Contains(note, string(models.ActionActiveClose)) {
			t.Errorf("Stale booking intent leaked into action selection: %s", note)
		}
	}
	var defaulted bool
	for _, note := range result.Trace {
		if strings.Contains(note, "candidate actions: [rapport_building]") {
			defaulted = true
		}
	}
	if !defaulted {
		t.Errorf("Expected the ice-breaking stage default, got trace %v", result.Trace)
	}
}

func TestProcessTurnSurvivesTotalOutage(t *testing.T) {
	registry := newTestRegistry(t, nil)
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			return "", errors.New("model offline")
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("judge offline")
		},
	}
	eng := New(client, registry)

	sess := models.NewSession("turn-test")
	sess.Verbose = true
	result, err := eng.ProcessTurn(context.Background(), sess, "hello?")
	if err != nil {
		t.Fatalf("ProcessTurn must not fail outward: %v", err)
	}
	if result.FinalResponse != EmergencyReply {
		t.Errorf("Expected the emergency reply, got %q", result.FinalResponse)
	}
	var handoffNoted bool
	for _, note := range result.Trace {
		if strings.Contains(note, "human handoff") {
			handoffNoted = true
		}
	}
	if !handoffNoted {
		t.Errorf("Expected a handoff attempt in the trace, got %v", result.Trace)
	}
	// The reply still lands in the history.
	if len(sess.History) != 2 || sess.History[1].Content != EmergencyReply {
		t.Errorf("Expected the emergency reply in history, got %+v", sess.History)
	}
}

func TestProcessTurnHandoffNet(t *testing.T) {
	// Generation fails for normal actions but the handoff template still
	// works: the handoff reply goes out instead of the emergency fallback.
	registry := newTestRegistry(t, map[string]string{"human_handoff": "HANDOFF_PROMPT"})
	client := &mockClient{
		generateFn: func(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
			if systemPrompt == "HANDOFF_PROMPT" {
				return "Let me get a colleague who can help you directly.", nil
			}
			return "", errors.New("model offline")
		},
		judgeFn: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("judge offline")
		},
	}
	eng := New(client, registry)

	sess := models.NewSession("turn-test")
	result, err := eng.ProcessTurn(context.Background(), sess, "is anyone there?")
	if err != nil {
		t.Fatalf("ProcessTurn failed: %v", err)
	}
	if result.FinalResponse != "Let me get a colleague who can help you directly." {
		t.Errorf("Expected the handoff reply, got %q", result.FinalResponse)
	}
	// Trace stays private on non-verbose sessions.
	if result.Trace != nil {
		t.Errorf("Expected no trace without verbose, got %v", result.Trace)
	}
}

func TestTuneTemperature(t *testing.T) {
	tests := []struct {
		name string
		es   models.EmotionalState
		want float64
	}{
		{"at ease", models.EmotionalState{Comfort: 0.7, Familiarity: 0.6}, 0.7},
		{"uncomfortable", models.EmotionalState{Comfort: 0.2, Familiarity: 0.9}, 0.5},
		{"neutral", models.EmotionalState{Comfort: 0.5, Familiarity: 0.4}, models.DefaultTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tuneTemperature(tt.es); got != tt.want {
				t.Errorf("tuneTemperature(%v) = %v, want %v", tt.es, got, tt.want)
			}
		})
	}
}
