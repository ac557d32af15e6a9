package models

import (
	"time"

	"github.com/google/uuid"
)

// TestStatus is a lab verdict on a batch.
type TestStatus string

const (
	TestStatusPending TestStatus = "pending"
	TestStatusPassed  TestStatus = "passed"
	TestStatusFailed  TestStatus = "failed"
)

// IsValid returns true if the status is pending, passed or failed.
func (s TestStatus) IsValid() bool {
	switch s {
	case TestStatusPending, TestStatusPassed, TestStatusFailed:
		return true
	default:
		return false
	}
}

// Label returns the display label ("Passed").
func (s TestStatus) Label() string {
	switch s {
	case TestStatusPending:
		return "Pending"
	case TestStatusPassed:
		return "Passed"
	case TestStatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

// PesticideLevel is the measured pesticide residue band.
type PesticideLevel string

const (
	PesticideNone PesticideLevel = "none"
	PesticideLow  PesticideLevel = "low"
	PesticideHigh PesticideLevel = "high"
)

// Label returns the display label ("None Detected").
func (p PesticideLevel) Label() string {
	switch p {
	case PesticideNone:
		return "None Detected"
	case PesticideLow:
		return "Low Levels"
	case PesticideHigh:
		return "High Levels"
	default:
		return string(p)
	}
}

// HeavyMetalsVerdict is pass/fail against heavy metal limits.
type HeavyMetalsVerdict string

const (
	HeavyMetalsPass HeavyMetalsVerdict = "pass"
	HeavyMetalsFail HeavyMetalsVerdict = "fail"
)

// Label returns the display label ("Within Limits").
func (v HeavyMetalsVerdict) Label() string {
	switch v {
	case HeavyMetalsPass:
		return "Within Limits"
	case HeavyMetalsFail:
		return "Exceeds Limits"
	default:
		return string(v)
	}
}

// QualityTest is one lab result for a batch. Append-only.
// CertificateNumber is unique across all batches.
type QualityTest struct {
	ID                uuid.UUID          `json:"id"`
	BatchID           string             `json:"batch_id"`
	TestDate          time.Time          `json:"test_date"`
	LabName           string             `json:"lab_name"`
	LabLicense        string             `json:"lab_license"`
	MoistureContent   float64            `json:"moisture_content"`
	PesticideResidue  PesticideLevel     `json:"pesticide_residue"`
	HeavyMetals       HeavyMetalsVerdict `json:"heavy_metals"`
	MicrobialCount    int                `json:"microbial_count"` // CFU/g
	DNAVerification   bool               `json:"dna_verification"`
	ActiveCompounds   map[string]string  `json:"active_compounds"`
	TestStatus        TestStatus         `json:"test_status"`
	CertificateNumber string             `json:"certificate_number"`
	Notes             string             `json:"notes,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}
