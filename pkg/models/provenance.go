// Package models contains domain types for herbtrace.
package models

import "time"

// Provenance is the consumer-facing view of a batch: where the herbs came
// from, what was done to them, and what the labs found.
type Provenance struct {
	BatchID            string               `json:"batch_id"`
	Status             BatchStatus          `json:"status"`
	StatusLabel        string               `json:"status_label"`
	Facility           string               `json:"facility"`
	StartDate          time.Time            `json:"start_date"`
	EndDate            *time.Time           `json:"end_date,omitempty"`
	BatchSizeKg        float64              `json:"batch_size_kg"`
	LocatorURL         string               `json:"locator_url,omitempty"`
	CollectionEvents   []MapPoint           `json:"collection_events"`
	ProcessingTimeline []TimelineEntry      `json:"processing_timeline"`
	QualityTests       []QualityTestSummary `json:"quality_tests"`
	Certification      CertificationSummary `json:"certification"`
}

// TimelineEntry is a processing step projected for the timeline.
type TimelineEntry struct {
	Step        string    `json:"step"`
	StepType    StepType  `json:"step_type"`
	Timestamp   time.Time `json:"timestamp"`
	Operator    string    `json:"operator"`
	Temperature *float64  `json:"temperature"`
	Humidity    *float64  `json:"humidity"`
}

// QualityTestSummary is a quality test projected for the provenance view.
type QualityTestSummary struct {
	Lab         string     `json:"lab"`
	Date        string     `json:"date"`
	Status      TestStatus `json:"status"`
	StatusLabel string     `json:"status_label"`
	Moisture    float64    `json:"moisture"`
	Pesticide   string     `json:"pesticide"`
	Certificate string     `json:"certificate"`
}

// CertificationSummary condenses the batch's certification standing.
type CertificationSummary struct {
	Certified         bool       `json:"certified"`
	LatestTestStatus  TestStatus `json:"latest_test_status,omitempty"`
	LatestCertificate string     `json:"latest_certificate,omitempty"`
	Organic           bool       `json:"organic"`
	FairTrade         bool       `json:"fair_trade"`
	TotalCollectedKg  float64    `json:"total_collected_kg"`
	Species           []string   `json:"species"`
}

// DashboardSummary holds register-wide counters and recent activity.
type DashboardSummary struct {
	TotalCollections  int                `json:"total_collections"`
	ActiveBatches     int                `json:"active_batches"`
	CompletedBatches  int                `json:"completed_batches"`
	TotalCollectors   int                `json:"total_collectors"`
	RecentCollections []*CollectionEvent `json:"recent_collections"`
	RecentBatches     []*ProcessingBatch `json:"recent_batches"`
}
