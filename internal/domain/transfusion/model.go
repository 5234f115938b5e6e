package transfusion

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutcomeSuccessful  = "Successful"
	OutcomeComplicated = "Complicated"
	OutcomeAborted     = "Aborted"
)

var validOutcomes = map[string]bool{OutcomeSuccessful: true, OutcomeComplicated: true, OutcomeAborted: true}

// Record maps to the transfusion_record table. BloodUnitID is unique across
// all records.
type Record struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	TransfusionNumber string     `db:"transfusion_number" json:"transfusion_number"`
	RecipientID       uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	BloodUnitID       uuid.UUID  `db:"blood_unit_id" json:"blood_unit_id"`
	RequestID         *uuid.UUID `db:"request_id" json:"request_id,omitempty"`
	TransfusionDate   time.Time  `db:"transfusion_date" json:"transfusion_date"`
	Hospital          *string    `db:"hospital" json:"hospital,omitempty"`
	Physician         *string    `db:"physician" json:"physician,omitempty"`
	VolumeML          *int       `db:"volume_ml" json:"volume_ml,omitempty"`
	Outcome           string     `db:"outcome" json:"outcome"`
	AdverseReactions  *string    `db:"adverse_reactions" json:"adverse_reactions,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CreatedBy         string     `db:"created_by" json:"created_by"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Compatibility is the answer to GET /compatibility.
type Compatibility struct {
	DonorType     string   `json:"donor_type"`
	RecipientType string   `json:"recipient_type"`
	Compatible    bool     `json:"compatible"`
	CanReceive    []string `json:"recipient_can_receive"`
}
