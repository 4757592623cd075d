// Package models defines session state structures for ConsultFlow.
package models

import "time"

// Message roles in the conversation history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage represents a single message in the session history.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session carries everything that persists across turns for one conversation:
// the stage machine position, the emotional state vector, accumulated
// appointment facts and the full message history. Only one turn processes a
// session at a time, so no locking is needed inside.
type Session struct {
	ID          string                `json:"id"`
	Stage       ConversationStage     `json:"current_stage"`
	Emotional   EmotionalState        `json:"emotional_state"`
	IntentLevel IntentLevel           `json:"intent_level"`
	Intent      *CustomerIntent       `json:"customer_intent,omitempty"`
	Appointment AppointmentInfo       `json:"appointment_info"`
	TurnCount   int                   `json:"turn_count"`
	History     []ConversationMessage `json:"history"`
	Temperature float64               `json:"temperature"`
	Verbose     bool                  `json:"verbose"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// NewSession creates a fresh session positioned at initial contact with an
// all-zero emotional state.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:          id,
		Stage:       StageInitialContact,
		IntentLevel: IntentLow,
		Appointment: NewAppointmentInfo(),
		Temperature: DefaultTemperature,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DefaultTemperature is the generation temperature before any sentiment
// tuning has run.
const DefaultTemperature = 0.6

// AppendUser adds a user message to the history.
func (s *Session) AppendUser(content string) {
	s.History = append(s.History, ConversationMessage{Role: RoleUser, Content: content, Timestamp: time.Now()})
}

// AppendAssistant adds an assistant message to the history.
func (s *Session) AppendAssistant(content string) {
	s.History = append(s.History, ConversationMessage{Role: RoleAssistant, Content: content, Timestamp: time.Now()})
}

// LastUserMessage returns the most recent user message, or "" if none exists.
func (s *Session) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// TurnResult is the externally visible outcome of one processed turn.
type TurnResult struct {
	FinalResponse string   `json:"final_response"`
	Trace         []string `json:"trace,omitempty"`
}
