package models

import (
	"time"

	"github.com/google/uuid"
)

// Transition reasons recorded in the audit trail.
const (
	TransitionReasonQualityTest = "quality_test"
	TransitionReasonOperator    = "operator"
)

// StatusTransition is an audit entry for a batch status change.
// Stored in batch_status_transitions table.
type StatusTransition struct {
	ID            uuid.UUID   `json:"id"`
	BatchID       string      `json:"batch_id"`
	FromStatus    BatchStatus `json:"from_status"`
	ToStatus      BatchStatus `json:"to_status"`
	QualityTestID *uuid.UUID  `json:"quality_test_id,omitempty"` // set when a lab result triggered the change
	Reason        string      `json:"reason"`
	CreatedAt     time.Time   `json:"created_at"`
}
