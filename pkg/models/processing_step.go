package models

import "time"

// StepType is a facility operation applied to a batch.
type StepType string

const (
	StepCleaning  StepType = "cleaning"
	StepDrying    StepType = "drying"
	StepGrinding  StepType = "grinding"
	StepSieving   StepType = "sieving"
	StepPackaging StepType = "packaging"
)

// IsValid returns true if the step type is known.
func (t StepType) IsValid() bool {
	switch t {
	case StepCleaning, StepDrying, StepGrinding, StepSieving, StepPackaging:
		return true
	default:
		return false
	}
}

// Label returns the display label ("Drying").
func (t StepType) Label() string {
	switch t {
	case StepCleaning:
		return "Cleaning"
	case StepDrying:
		return "Drying"
	case StepGrinding:
		return "Grinding"
	case StepSieving:
		return "Sieving"
	case StepPackaging:
		return "Packaging"
	default:
		return string(t)
	}
}

// ProcessingStep is one entry of a batch's processing log.
// Timestamp is assigned by the system at submission.
type ProcessingStep struct {
	ID            int64     `json:"id"`
	BatchID       string    `json:"batch_id"`
	StepType      StepType  `json:"step_type"`
	Temperature   *float64  `json:"temperature,omitempty"` // Celsius
	Humidity      *float64  `json:"humidity,omitempty"`    // percent
	DurationHours *float64  `json:"duration_hours,omitempty"`
	OperatorName  string    `json:"operator_name"`
	EquipmentUsed string    `json:"equipment_used,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
