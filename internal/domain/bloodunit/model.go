package bloodunit

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusQuarantined = "Quarantined"
	StatusAvailable   = "Available"
	StatusReserved    = "Reserved"
	StatusTransfused  = "Transfused"
	StatusDiscarded   = "Discarded"
	StatusExpired     = "Expired"
)

// DefaultShelfLifeDays is the whole-blood shelf life applied when a unit is
// recorded without an explicit expiration date.
const DefaultShelfLifeDays = 42

const (
	ComponentWholeBlood      = "Whole Blood"
	ComponentRedCells        = "Red Blood Cells"
	ComponentPlasma          = "Plasma"
	ComponentPlatelets       = "Platelets"
	ComponentCryoprecipitate = "Cryoprecipitate"
)

var validComponents = map[string]bool{
	ComponentWholeBlood: true, ComponentRedCells: true, ComponentPlasma: true,
	ComponentPlatelets: true, ComponentCryoprecipitate: true,
}

func ValidComponent(c string) bool { return validComponents[c] }

// BloodUnit maps to the blood_unit table.
type BloodUnit struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UnitNumber      string          `db:"unit_number" json:"unit_number"`
	DonorID         uuid.UUID       `db:"donor_id" json:"donor_id"`
	BloodType       string          `db:"blood_type" json:"blood_type"`
	Component       string          `db:"component" json:"component"`
	VolumeML        int             `db:"volume_ml" json:"volume_ml"`
	CollectionDate  time.Time       `db:"collection_date" json:"collection_date"`
	ExpirationDate  time.Time       `db:"expiration_date" json:"expiration_date"`
	Status          string          `db:"status" json:"status"`
	StorageLocation *string         `db:"storage_location" json:"storage_location,omitempty"`
	Transfusion     *TransfusionRef `db:"-" json:"transfusion,omitempty"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// TransfusionRef is the back-reference a unit carries once it has been
// transfused.
type TransfusionRef struct {
	TransfusionID uuid.UUID `json:"transfusion_id"`
	RecipientID   uuid.UUID `json:"recipient_id"`
	Date          time.Time `json:"date"`
	Hospital      *string   `json:"hospital,omitempty"`
	Physician     *string   `json:"physician,omitempty"`
}

// StatusChange maps to the blood_unit_status_history table. FromStatus is
// nil for the entry written when the unit is collected.
type StatusChange struct {
	ID         uuid.UUID `db:"id" json:"id"`
	UnitID     uuid.UUID `db:"blood_unit_id" json:"blood_unit_id"`
	FromStatus *string   `db:"from_status" json:"from_status,omitempty"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
	ChangedBy  string    `db:"changed_by" json:"changed_by"`
	Note       string    `db:"note" json:"note"`
}
