package models

import "testing"

func TestEmotionalStateClamp(t *testing.T) {
	state := EmotionalState{
		Security:    -0.5,
		Familiarity: 1.5,
		Comfort:     0.5,
		Intimacy:    2.0,
		Gain:        -1.0,
		Recognition: 0.0,
		Trust:       1.0,
	}
	state.Clamp()
	want := EmotionalState{Familiarity: 1.0, Comfort: 0.5, Intimacy: 1.0, Trust: 1.0}
	if state != want {
		t.Errorf("Clamp() = %+v, want %+v", state, want)
	}
}

func TestIsValidStage(t *testing.T) {
	for _, stage := range StageSequence {
		if !IsValidStage(stage) {
			t.Errorf("Expected %s to be valid", stage)
		}
	}
	if IsValidStage("closing_ceremony") {
		t.Error("Expected unknown stage to be invalid")
	}
}

func TestIsValidIntentLevel(t *testing.T) {
	for _, level := range []IntentLevel{IntentLow, IntentMedium, IntentHigh, IntentFakeHigh} {
		if !IsValidIntentLevel(level) {
			t.Errorf("Expected %s to be valid", level)
		}
	}
	if IsValidIntentLevel("lukewarm") {
		t.Error("Expected unknown level to be invalid")
	}
}

func TestIsBookingFlavored(t *testing.T) {
	booking := []IntentType{IntentAppointmentRequest, IntentTimeConfirmation, IntentReadyToBook}
	for _, it := range booking {
		if !it.IsBookingFlavored() {
			t.Errorf("Expected %s to be booking flavored", it)
		}
	}
	other := []IntentType{IntentPriceInquiry, IntentConcernRaised, IntentGeneralChat, IntentInfoSeeking}
	for _, it := range other {
		if it.IsBookingFlavored() {
			t.Errorf("Expected %s not to be booking flavored", it)
		}
	}
}

func TestAppointmentMergeFillsGaps(t *testing.T) {
	appt := NewAppointmentInfo()
	appt.Merge(CustomerIntent{
		IntentType:    IntentAppointmentRequest,
		ExtractedInfo: map[string]string{"time": "Tuesday 3pm", "service": "whitening"},
	})
	if !appt.HasTime || appt.PreferredTime != "Tuesday 3pm" {
		t.Errorf("Expected time to be recorded, got %+v", appt)
	}
	if appt.PreferredService != "whitening" {
		t.Errorf("Expected service to be recorded, got %+v", appt)
	}
	if appt.Status != AppointmentInfoCollecting {
		t.Errorf("Expected status info_collecting after a booking intent, got %s", appt.Status)
	}
}

func TestAppointmentMergeNeverOverwrites(t *testing.T) {
	appt := NewAppointmentInfo()
	appt.Merge(CustomerIntent{
		IntentType:    IntentAppointmentRequest,
		ExtractedInfo: map[string]string{"time": "Tuesday 3pm", "name": "Ana"},
	})
	appt.Merge(CustomerIntent{
		IntentType:    IntentTimeConfirmation,
		ExtractedInfo: map[string]string{"time": "never mind, Wednesday", "name": "Anna banana", "phone": "555-0101"},
	})
	if appt.PreferredTime != "Tuesday 3pm" {
		t.Errorf("Expected the first extracted time to stick, got %q", appt.PreferredTime)
	}
	if appt.CustomerName != "Ana" {
		t.Errorf("Expected the first extracted name to stick, got %q", appt.CustomerName)
	}
	if !appt.HasPhone || appt.CustomerPhone != "555-0101" {
		t.Errorf("Expected the phone gap to be filled, got %+v", appt)
	}
}

func TestAppointmentMergeNonBookingKeepsPending(t *testing.T) {
	appt := NewAppointmentInfo()
	appt.Merge(CustomerIntent{
		IntentType:    IntentGeneralChat,
		ExtractedInfo: map[string]string{"name": "Ana"},
	})
	if appt.Status != AppointmentPending {
		t.Errorf("Expected status to stay pending, got %s", appt.Status)
	}
	if !appt.HasName {
		t.Error("Expected the name fact to be recorded regardless of intent")
	}
}

func TestAppointmentMergeIgnoresEmptyValues(t *testing.T) {
	appt := NewAppointmentInfo()
	appt.Merge(CustomerIntent{
		IntentType:    IntentAppointmentRequest,
		ExtractedInfo: map[string]string{"time": "", "phone": ""},
	})
	if appt.HasTime || appt.HasPhone {
		t.Errorf("Expected empty extractions to be ignored, got %+v", appt)
	}
}
