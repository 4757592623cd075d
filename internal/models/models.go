// Package models defines the core data structures for ConsultFlow.
//
// It includes the emotional state vector, conversation stages, the response
// action vocabulary, and the intent/appointment types shared across modules.
package models

import "errors"

// ConversationStage identifies the current phase of a consultation.
type ConversationStage string

const (
	StageInitialContact        ConversationStage = "initial_contact"
	StageIceBreaking           ConversationStage = "ice_breaking"
	StageSubtleExpertise       ConversationStage = "subtle_expertise"
	StagePainPointMining       ConversationStage = "pain_point_mining"
	StageSolutionVisualization ConversationStage = "solution_visualization"
	StageNaturalInvitation     ConversationStage = "natural_invitation"
)

// StageSequence lists the stages in forward order.
var StageSequence = []ConversationStage{
	StageInitialContact,
	StageIceBreaking,
	StageSubtleExpertise,
	StagePainPointMining,
	StageSolutionVisualization,
	StageNaturalInvitation,
}

// IsValidStage checks if the given stage is part of the defined sequence.
func IsValidStage(s ConversationStage) bool {
	for _, stage := range StageSequence {
		if stage == s {
			return true
		}
	}
	return false
}

// IntentLevel is the coarse classification of engagement readiness.
type IntentLevel string

const (
	IntentLow      IntentLevel = "low"
	IntentMedium   IntentLevel = "medium"
	IntentHigh     IntentLevel = "high"
	IntentFakeHigh IntentLevel = "fake_high"
)

// IsValidIntentLevel checks if the given intent level is supported.
func IsValidIntentLevel(l IntentLevel) bool {
	switch l {
	case IntentLow, IntentMedium, IntentHigh, IntentFakeHigh:
		return true
	default:
		return false
	}
}

// ActionID identifies one response strategy from the fixed vocabulary.
type ActionID string

const (
	ActionGreeting        ActionID = "greeting"
	ActionRapportBuilding ActionID = "rapport_building"
	ActionNeedsAnalysis   ActionID = "needs_analysis"
	ActionValueDisplay    ActionID = "value_display"
	ActionStressResponse  ActionID = "stress_response"
	ActionPainPointTest   ActionID = "pain_point_test"
	ActionValuePitch      ActionID = "value_pitch"
	ActionActiveClose     ActionID = "active_close"
	ActionReverseProbe    ActionID = "reverse_probe"
	// ActionHumanHandoff is reserved for the terminal all-candidates-failed
	// path and is never emitted by the action selector.
	ActionHumanHandoff ActionID = "human_handoff"
)

// AllActions lists every action in the vocabulary, handoff included.
var AllActions = []ActionID{
	ActionGreeting,
	ActionRapportBuilding,
	ActionNeedsAnalysis,
	ActionValueDisplay,
	ActionStressResponse,
	ActionPainPointTest,
	ActionValuePitch,
	ActionActiveClose,
	ActionReverseProbe,
	ActionHumanHandoff,
}

// IsValidAction checks if the given action is part of the vocabulary.
func IsValidAction(a ActionID) bool {
	for _, action := range AllActions {
		if action == a {
			return true
		}
	}
	return false
}

// EmotionalState is a 7-dimensional bounded vector summarizing the user's
// rapport and trust signals. Every field is kept in [0,1].
type EmotionalState struct {
	Security    float64 `json:"security_level"`
	Familiarity float64 `json:"familiarity_level"`
	Comfort     float64 `json:"comfort_level"`
	Intimacy    float64 `json:"intimacy_level"`
	Gain        float64 `json:"gain_level"`
	Recognition float64 `json:"recognition_level"`
	Trust       float64 `json:"trust_level"`
}

// Clamp forces every field back into [0,1].
func (e *EmotionalState) Clamp() {
	e.Security = clamp01(e.Security)
	e.Familiarity = clamp01(e.Familiarity)
	e.Comfort = clamp01(e.Comfort)
	e.Intimacy = clamp01(e.Intimacy)
	e.Gain = clamp01(e.Gain)
	e.Recognition = clamp01(e.Recognition)
	e.Trust = clamp01(e.Trust)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IntentType classifies the user's latest message.
type IntentType string

const (
	IntentAppointmentRequest IntentType = "appointment_request"
	IntentTimeConfirmation   IntentType = "time_confirmation"
	IntentPriceInquiry       IntentType = "price_inquiry"
	IntentConcernRaised      IntentType = "concern_raised"
	IntentGeneralChat        IntentType = "general_chat"
	IntentReadyToBook        IntentType = "ready_to_book"
	IntentInfoSeeking        IntentType = "info_seeking"
)

// IsValidIntentType checks if the given intent type is supported.
func IsValidIntentType(t IntentType) bool {
	switch t {
	case IntentAppointmentRequest, IntentTimeConfirmation, IntentPriceInquiry,
		IntentConcernRaised, IntentGeneralChat, IntentReadyToBook, IntentInfoSeeking:
		return true
	default:
		return false
	}
}

// IsBookingFlavored reports whether the intent signals appointment interest.
func (t IntentType) IsBookingFlavored() bool {
	switch t {
	case IntentAppointmentRequest, IntentTimeConfirmation, IntentReadyToBook:
		return true
	default:
		return false
	}
}

// CustomerIntent is the structured classification of the latest user message.
type CustomerIntent struct {
	IntentType     IntentType        `json:"intent_type"`
	Confidence     float64           `json:"confidence"`
	ExtractedInfo  map[string]string `json:"extracted_info,omitempty"`
	RequiresAction []string          `json:"requires_action,omitempty"`
}

// AppointmentStatus tracks how far booking info collection has progressed.
type AppointmentStatus string

const (
	AppointmentPending        AppointmentStatus = "pending"
	AppointmentInfoCollecting AppointmentStatus = "info_collecting"
	AppointmentConfirmed      AppointmentStatus = "confirmed"
)

// AppointmentInfo accumulates booking-relevant facts over a session.
type AppointmentInfo struct {
	HasTime          bool              `json:"has_time"`
	PreferredTime    string            `json:"preferred_time,omitempty"`
	HasName          bool              `json:"has_name"`
	CustomerName     string            `json:"customer_name,omitempty"`
	HasPhone         bool              `json:"has_phone"`
	CustomerPhone    string            `json:"customer_phone,omitempty"`
	PreferredService string            `json:"preferred_service,omitempty"`
	Status           AppointmentStatus `json:"appointment_status"`
}

// NewAppointmentInfo returns an empty appointment record in pending status.
func NewAppointmentInfo() AppointmentInfo {
	return AppointmentInfo{Status: AppointmentPending}
}

// Merge folds extracted intent info into the appointment record. Facts are
// filled field by field and an already-set fact is never overwritten, so a
// later low-certainty extraction cannot clobber an earlier one.
func (a *AppointmentInfo) Merge(intent CustomerIntent) {
	if a.Status == "" {
		a.Status = AppointmentPending
	}
	info := intent.ExtractedInfo
	if v, ok := info["time"]; ok && v != "" && !a.HasTime {
		a.HasTime = true
		a.PreferredTime = v
	}
	if v, ok := info["name"]; ok && v != "" && !a.HasName {
		a.HasName = true
		a.CustomerName = v
	}
	if v, ok := info["phone"]; ok && v != "" && !a.HasPhone {
		a.HasPhone = true
		a.CustomerPhone = v
	}
	if v, ok := info["service"]; ok && v != "" && a.PreferredService == "" {
		a.PreferredService = v
	}
	if intent.IntentType.IsBookingFlavored() && a.Status == AppointmentPending {
		a.Status = AppointmentInfoCollecting
	}
}

// Candidate is a generated response for one action, with its score.
type Candidate struct {
	Action    ActionID `json:"action"`
	Response  string   `json:"response"`
	Score     float64  `json:"score"`
	Reasoning string   `json:"reasoning"`
}

// Error variables for validation and lookup failures.
var (
	ErrEmptyMessage    = errors.New("user message cannot be empty")
	ErrEmptySessionID  = errors.New("session id cannot be empty")
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownStage    = errors.New("unknown conversation stage")
)
