package recipient

import (
	"time"

	"github.com/google/uuid"
)

// Recipient maps to the recipient table. TransfusionCount and
// LastTransfusionDate are maintained by the transfusion workflow.
type Recipient struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	RecipientNumber     string     `db:"recipient_number" json:"recipient_number"`
	FirstName           string     `db:"first_name" json:"first_name"`
	LastName            string     `db:"last_name" json:"last_name"`
	DateOfBirth         time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender              *string    `db:"gender" json:"gender,omitempty"`
	BloodType           string     `db:"blood_type" json:"blood_type"`
	Hospital            *string    `db:"hospital" json:"hospital,omitempty"`
	Phone               *string    `db:"phone" json:"phone,omitempty"`
	MedicalNotes        *string    `db:"medical_notes" json:"medical_notes,omitempty"`
	TransfusionCount    int        `db:"transfusion_count" json:"transfusion_count"`
	LastTransfusionDate *time.Time `db:"last_transfusion_date" json:"last_transfusion_date,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	UrgencyRoutine   = "Routine"
	UrgencyUrgent    = "Urgent"
	UrgencyEmergency = "Emergency"
)

var validUrgencies = map[string]bool{UrgencyRoutine: true, UrgencyUrgent: true, UrgencyEmergency: true}

const (
	RequestPending    = "Pending"
	RequestProcessing = "Processing"
	RequestFulfilled  = "Fulfilled"
	RequestCancelled  = "Cancelled"
)

// BloodRequest maps to the blood_request table.
type BloodRequest struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	RequestNumber  string     `db:"request_number" json:"request_number"`
	RecipientID    uuid.UUID  `db:"recipient_id" json:"recipient_id"`
	BloodType      string     `db:"blood_type" json:"blood_type"`
	Component      string     `db:"component" json:"component"`
	UnitsRequested int        `db:"units_requested" json:"units_requested"`
	Urgency        string     `db:"urgency" json:"urgency"`
	RequiredBy     *time.Time `db:"required_by" json:"required_by,omitempty"`
	Status         string     `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	UpdatedBy      *string    `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether transfusions may still be recorded against r.
func (r *BloodRequest) Open() bool {
	return r.Status == RequestPending || r.Status == RequestProcessing
}
