package donor

import (
	"time"

	"github.com/google/uuid"
)

// ABO/Rh blood groups.
const (
	BloodTypeAPos  = "A+"
	BloodTypeANeg  = "A-"
	BloodTypeBPos  = "B+"
	BloodTypeBNeg  = "B-"
	BloodTypeABPos = "AB+"
	BloodTypeABNeg = "AB-"
	BloodTypeOPos  = "O+"
	BloodTypeONeg  = "O-"
)

// BloodTypes lists every valid blood group in display order.
var BloodTypes = []string{
	BloodTypeAPos, BloodTypeANeg, BloodTypeBPos, BloodTypeBNeg,
	BloodTypeABPos, BloodTypeABNeg, BloodTypeOPos, BloodTypeONeg,
}

func ValidBloodType(t string) bool {
	for _, bt := range BloodTypes {
		if bt == t {
			return true
		}
	}
	return false
}

const (
	StatusActive   = "Active"
	StatusInactive = "Inactive"
	StatusDeferred = "Deferred"
)

// Donor maps to the donor table.
type Donor struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	DonorNumber      string     `db:"donor_number" json:"donor_number"`
	FirstName        string     `db:"first_name" json:"first_name"`
	LastName         string     `db:"last_name" json:"last_name"`
	DateOfBirth      time.Time  `db:"date_of_birth" json:"date_of_birth"`
	Gender           *string    `db:"gender" json:"gender,omitempty"`
	BloodType        string     `db:"blood_type" json:"blood_type"`
	Phone            *string    `db:"phone" json:"phone,omitempty"`
	Email            *string    `db:"email" json:"email,omitempty"`
	Address          *string    `db:"address" json:"address,omitempty"`
	Status           string     `db:"status" json:"status"`
	DonationCount    int        `db:"donation_count" json:"donation_count"`
	LastDonationDate *time.Time `db:"last_donation_date" json:"last_donation_date,omitempty"`
	RetiredAt        *time.Time `db:"retired_at" json:"retired_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (d *Donor) Retired() bool { return d.RetiredAt != nil }

// DonationType selects the minimum interval applied by the eligibility rules.
type DonationType string

const (
	DonationWholeBlood DonationType = "Whole Blood"
	DonationPlasma     DonationType = "Plasma"
	DonationPlatelets  DonationType = "Platelets"
	DonationDoubleRed  DonationType = "Double Red Cells"
)

var validDonationTypes = map[DonationType]bool{
	DonationWholeBlood: true, DonationPlasma: true, DonationPlatelets: true, DonationDoubleRed: true,
}

// DonationHistory maps to the donation_history table. One row is appended
// per collected blood unit.
type DonationHistory struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	DonorID      uuid.UUID    `db:"donor_id" json:"donor_id"`
	BloodUnitID  uuid.UUID    `db:"blood_unit_id" json:"blood_unit_id"`
	UnitNumber   string       `db:"unit_number" json:"unit_number"`
	DonationDate time.Time    `db:"donation_date" json:"donation_date"`
	DonationType DonationType `db:"donation_type" json:"donation_type"`
	VolumeML     int          `db:"volume_ml" json:"volume_ml"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

const (
	DeferralTemporary = "Temporary"
	DeferralPermanent = "Permanent"
)

const (
	DeferralActive      = "Active"
	DeferralExpired     = "Expired"
	DeferralReinstated  = "Reinstated"
	DeferralUnderReview = "Under Review"
)

var validDeferralReasons = map[string]bool{
	"Low Hemoglobin":     true,
	"Medication":         true,
	"Travel":             true,
	"Recent Procedure":   true,
	"Infection":          true,
	"High Risk Behavior": true,
	"Medical Condition":  true,
	"Other":              true,
}

// Deferral maps to the donor_deferral table.
type Deferral struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	DonorID      uuid.UUID  `db:"donor_id" json:"donor_id"`
	DeferralType string     `db:"deferral_type" json:"deferral_type"`
	Reason       string     `db:"reason" json:"reason"`
	ReasonDetail *string    `db:"reason_detail" json:"reason_detail,omitempty"`
	StartDate    time.Time  `db:"start_date" json:"start_date"`
	EndDate      *time.Time `db:"end_date" json:"end_date,omitempty"`
	Indefinite   bool       `db:"indefinite" json:"indefinite"`
	Status       string     `db:"status" json:"status"`
	CreatedBy    string     `db:"created_by" json:"created_by"`
	ReviewedBy   *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote   *string    `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt   *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// HealthAssessment maps to the donor_health table. Rows are never updated.
type HealthAssessment struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	DonorID             uuid.UUID  `db:"donor_id" json:"donor_id"`
	AssessedAt          time.Time  `db:"assessed_at" json:"assessed_at"`
	HemoglobinGDL       *float64   `db:"hemoglobin_g_dl" json:"hemoglobin_g_dl,omitempty"`
	SystolicBP          *int       `db:"systolic_bp" json:"systolic_bp,omitempty"`
	DiastolicBP         *int       `db:"diastolic_bp" json:"diastolic_bp,omitempty"`
	PulseBPM            *int       `db:"pulse_bpm" json:"pulse_bpm,omitempty"`
	TemperatureC        *float64   `db:"temperature_c" json:"temperature_c,omitempty"`
	WeightKG            *float64   `db:"weight_kg" json:"weight_kg,omitempty"`
	IsEligible          bool       `db:"is_eligible" json:"is_eligible"`
	IneligibilityReason *string    `db:"ineligibility_reason" json:"ineligibility_reason,omitempty"`
	NextEligibleDate    *time.Time `db:"next_eligible_date" json:"next_eligible_date,omitempty"`
	PermanentlyDeferred bool       `db:"permanently_deferred" json:"permanently_deferred"`
	AssessedBy          string     `db:"assessed_by" json:"assessed_by"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// EligibilityResult is the outcome of Rules.Evaluate. Rule names the check
// that decided it.
type EligibilityResult struct {
	DonorID          uuid.UUID  `json:"donor_id"`
	IsEligible       bool       `json:"is_eligible"`
	Reason           *string    `json:"reason"`
	NextEligibleDate *time.Time `json:"next_eligible_date"`
	Rule             string     `json:"rule"`
	EvaluatedAt      time.Time  `json:"evaluated_at"`
}
