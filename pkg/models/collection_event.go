package models

import (
	"time"

	"github.com/google/uuid"
)

// QualityGrade is the collector's own grading of a harvest.
type QualityGrade string

const (
	GradeA QualityGrade = "A"
	GradeB QualityGrade = "B"
	GradeC QualityGrade = "C"
)

// IsValid returns true if the grade is one of A, B, C.
func (g QualityGrade) IsValid() bool {
	switch g {
	case GradeA, GradeB, GradeC:
		return true
	default:
		return false
	}
}

// Label returns the display label ("Grade A").
func (g QualityGrade) Label() string {
	return "Grade " + string(g)
}

// HarvestDateLayout is the wire format of harvest dates.
const HarvestDateLayout = "2006-01-02"

// CollectionEvent is one harvest. Append-only: there is no update or delete path.
// Stored in collection_events table; ID is the externally visible event_id.
type CollectionEvent struct {
	ID                 uuid.UUID    `json:"event_id"`
	CollectorID        uuid.UUID    `json:"-"`
	SpeciesID          int          `json:"-"`
	HarvestDate        time.Time    `json:"harvest_date"`
	Latitude           float64      `json:"gps_latitude"`
	Longitude          float64      `json:"gps_longitude"`
	QuantityKg         float64      `json:"quantity_kg"`
	QualityGrade       QualityGrade `json:"quality_grade"`
	WeatherConditions  string       `json:"weather_conditions"`
	SoilPH             *float64     `json:"soil_ph,omitempty"`
	OrganicCertified   bool         `json:"organic_certified"`
	FairTradeCertified bool         `json:"fair_trade_certified"`
	CreatedAt          time.Time    `json:"created_at"`

	// Joined from collectors and herb_species on read.
	CollectorRef   string `json:"collector_id"`
	CollectorName  string `json:"collector_name"`
	SpeciesName    string `json:"species"`
	SpeciesDisplay string `json:"species_name"`
}

// MapPoint is a collection event projected for map display.
type MapPoint struct {
	ID          string       `json:"id,omitempty"`
	Lat         float64      `json:"lat"`
	Lng         float64      `json:"lng"`
	Collector   string       `json:"collector"`
	Species     string       `json:"species"`
	HarvestDate string       `json:"harvest_date"`
	Quantity    float64      `json:"quantity"`
	Grade       QualityGrade `json:"grade"`
}

// ToMapPoint projects the event onto the map/provenance shape.
func (e *CollectionEvent) ToMapPoint() MapPoint {
	return MapPoint{
		ID:          e.ID.String(),
		Lat:         e.Latitude,
		Lng:         e.Longitude,
		Collector:   e.CollectorName,
		Species:     e.SpeciesDisplay,
		HarvestDate: e.HarvestDate.Format(HarvestDateLayout),
		Quantity:    e.QuantityKg,
		Grade:       e.QualityGrade,
	}
}
