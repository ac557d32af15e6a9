package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestBatchStatus_IsValid(t *testing.T) {
	tests := []struct {
		status   BatchStatus
		expected bool
	}{
		{BatchStatusProcessing, true},
		{BatchStatusQualityTesting, true},
		{BatchStatusCompleted, true},
		{BatchStatusRejected, true},
		{BatchStatus("shipped"), false},
		{BatchStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.expected {
				t.Errorf("BatchStatus(%q).IsValid() = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestBatchStatus_IsTerminal(t *testing.T) {
	if BatchStatusProcessing.IsTerminal() || BatchStatusQualityTesting.IsTerminal() {
		t.Error("expected processing and quality_testing to be non-terminal")
	}
	if !BatchStatusCompleted.IsTerminal() || !BatchStatusRejected.IsTerminal() {
		t.Error("expected completed and rejected to be terminal")
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"batch status", BatchStatusQualityTesting.Label(), "Quality Testing"},
		{"grade", GradeB.Label(), "Grade B"},
		{"step", StepSieving.Label(), "Sieving"},
		{"test status", TestStatusPassed.Label(), "Passed"},
		{"pesticide", PesticideNone.Label(), "None Detected"},
		{"heavy metals", HeavyMetalsFail.Label(), "Exceeds Limits"},
		{"unknown step", StepType("roasting").Label(), "roasting"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("Label() = %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestStepType_IsValid(t *testing.T) {
	for _, st := range []StepType{StepCleaning, StepDrying, StepGrinding, StepSieving, StepPackaging} {
		if !st.IsValid() {
			t.Errorf("expected %q to be valid", st)
		}
	}
	if StepType("roasting").IsValid() {
		t.Error("expected roasting to be invalid")
	}
}

func TestSpeciesDisplayName(t *testing.T) {
	s := &HerbSpecies{Name: SpeciesTulsi, ScientificName: "Ocimum tenuiflorum"}
	if got := s.DisplayName(); got != "Tulsi (Ocimum tenuiflorum)" {
		t.Errorf("DisplayName() = %q", got)
	}
	if got := SpeciesDisplayName("neem", ""); got != "Neem" {
		t.Errorf("SpeciesDisplayName without scientific name = %q", got)
	}
	if got := SpeciesDisplayName("", ""); got != "" {
		t.Errorf("SpeciesDisplayName of empty = %q", got)
	}
}

func TestCollectionEvent_ToMapPoint(t *testing.T) {
	id := uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	e := &CollectionEvent{
		ID:             id,
		HarvestDate:    time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Latitude:       26.9124,
		Longitude:      75.7873,
		QuantityKg:     12.5,
		QualityGrade:   GradeA,
		CollectorName:  "Ramesh Kumar",
		SpeciesDisplay: "Ashwagandha (Withania somnifera)",
	}

	p := e.ToMapPoint()
	if p.ID != id.String() {
		t.Errorf("ID = %q", p.ID)
	}
	if p.Lat != 26.9124 || p.Lng != 75.7873 {
		t.Errorf("coordinates = %v,%v", p.Lat, p.Lng)
	}
	if p.HarvestDate != "2025-03-14" {
		t.Errorf("HarvestDate = %q", p.HarvestDate)
	}
	if p.Collector != "Ramesh Kumar" || p.Species != "Ashwagandha (Withania somnifera)" {
		t.Errorf("names = %q, %q", p.Collector, p.Species)
	}
	if p.Quantity != 12.5 || p.Grade != GradeA {
		t.Errorf("quantity/grade = %v, %v", p.Quantity, p.Grade)
	}
}

func TestProcessingBatch_HasLocator(t *testing.T) {
	b := &ProcessingBatch{}
	if b.HasLocator() {
		t.Error("expected empty batch to have no locator")
	}
	b.LocatorURL = "http://localhost:8000/batch/B1/"
	if b.HasLocator() {
		t.Error("expected URL without image to be incomplete")
	}
	b.LocatorPNG = []byte{0x89, 'P', 'N', 'G'}
	if !b.HasLocator() {
		t.Error("expected locator to be present")
	}
}
