package models

import (
	"fmt"
	"strings"
)

// Known herb species. The rows are inserted by the initial migration.
const (
	SpeciesAshwagandha = "ashwagandha"
	SpeciesTulsi       = "tulsi"
	SpeciesBrahmi      = "brahmi"
	SpeciesNeem        = "neem"
	SpeciesTurmeric    = "turmeric"
	SpeciesGinger      = "ginger"
	SpeciesAmla        = "amla"
)

// HerbSpecies is reference data, unique by Name.
type HerbSpecies struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	ScientificName string `json:"scientific_name"`
	Description    string `json:"description,omitempty"`
}

// DisplayName returns the consumer-facing label, e.g. "Tulsi (Ocimum tenuiflorum)".
func (s *HerbSpecies) DisplayName() string {
	return SpeciesDisplayName(s.Name, s.ScientificName)
}

// SpeciesDisplayName formats a species key and scientific name for display.
func SpeciesDisplayName(name, scientificName string) string {
	title := name
	if name != "" {
		title = strings.ToUpper(name[:1]) + name[1:]
	}
	if scientificName == "" {
		return title
	}
	return fmt.Sprintf("%s (%s)", title, scientificName)
}
