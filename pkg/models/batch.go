package models

import (
	"time"
)

// BatchStatus is the lifecycle state of a processing batch.
type BatchStatus string

const (
	BatchStatusProcessing     BatchStatus = "processing"
	BatchStatusQualityTesting BatchStatus = "quality_testing"
	BatchStatusCompleted      BatchStatus = "completed"
	BatchStatusRejected       BatchStatus = "rejected"
)

// IsValid returns true if the status is a known batch status.
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusProcessing, BatchStatusQualityTesting, BatchStatusCompleted, BatchStatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no transition out of the status is defined.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusRejected
}

// Label returns the display label ("Quality Testing").
func (s BatchStatus) Label() string {
	switch s {
	case BatchStatusProcessing:
		return "Processing"
	case BatchStatusQualityTesting:
		return "Quality Testing"
	case BatchStatusCompleted:
		return "Completed"
	case BatchStatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}

// TestableStatuses are the statuses of batches a lab may still submit results for.
var TestableStatuses = []BatchStatus{BatchStatusProcessing, BatchStatusQualityTesting}

// ProcessingBatch is the unit of traceability. BatchID is chosen by the
// submitting facility and never changes. Stored in processing_batches table.
type ProcessingBatch struct {
	ID                 int64       `json:"-"`
	BatchID            string      `json:"batch_id"`
	ProcessingFacility string      `json:"processing_facility"`
	StartDate          time.Time   `json:"start_date"`
	EndDate            *time.Time  `json:"end_date,omitempty"`
	BatchSizeKg        float64     `json:"batch_size_kg"`
	Status             BatchStatus `json:"status"`
	LocatorURL         string      `json:"locator_url,omitempty"`
	LocatorPNG         []byte      `json:"-"`
	CreatedAt          time.Time   `json:"created_at"`
}

// HasLocator reports whether phase two of batch creation has completed.
func (b *ProcessingBatch) HasLocator() bool {
	return b.LocatorURL != "" && len(b.LocatorPNG) > 0
}

// AttachResult lists which collection event references were linked to a
// batch and which were skipped because they did not resolve.
type AttachResult struct {
	Attached []string `json:"attached"`
	Skipped  []string `json:"skipped"`
}
