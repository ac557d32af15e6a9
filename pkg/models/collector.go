package models

import (
	"time"

	"github.com/google/uuid"
)

// Collector is a registered harvester. Stored in collectors table.
// CollectorID is assigned outside the system (e.g. a cooperative card number).
type Collector struct {
	ID            uuid.UUID `json:"id"`
	CollectorID   string    `json:"collector_id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone,omitempty"`
	Village       string    `json:"village"`
	State         string    `json:"state"`
	LicenseNumber string    `json:"license_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
