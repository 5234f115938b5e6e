package bloodunit

import (
	"fmt"
	"time"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

// allowedStatusTransitions defines the valid state machine transitions for
// BloodUnit.Status. Transfused, Discarded and Expired are terminal.
var allowedStatusTransitions = map[string]map[string]bool{
	StatusQuarantined: {
		StatusAvailable: true,
		StatusDiscarded: true,
	},
	StatusAvailable: {
		StatusReserved:   true,
		StatusTransfused: true,
		StatusDiscarded:  true,
		StatusExpired:    true,
	},
	StatusReserved: {
		StatusAvailable:  true,
		StatusTransfused: true,
	},
	StatusTransfused: {},
	StatusDiscarded:  {},
	StatusExpired:    {},
}

func ValidStatus(s string) bool {
	_, ok := allowedStatusTransitions[s]
	return ok
}

// CheckTransition reports whether a unit may move from one status to another.
// A request to stay in the current status is rejected like any other
// unreachable target.
func CheckTransition(from, to string) error {
	if !ValidStatus(to) {
		return apperr.Validation("invalid status: %q", to)
	}
	if from == StatusTransfused && (to == StatusDiscarded || to == StatusQuarantined) {
		return apperr.New(apperr.KindImmutableRecord,
			"transfused units are permanent history and cannot become %s", to)
	}
	if !allowedStatusTransitions[from][to] {
		return apperr.New(apperr.KindInvalidTransition,
			"invalid status transition from %s to %s", from, to)
	}
	return nil
}

func defaultNote(from, to string) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// ExpiryLevel buckets the days remaining before a unit expires.
type ExpiryLevel string

const (
	ExpiryExpired  ExpiryLevel = "Expired"
	ExpiryCritical ExpiryLevel = "Critical"
	ExpiryWarning  ExpiryLevel = "Warning"
	ExpiryCaution  ExpiryLevel = "Caution"
	ExpiryNormal   ExpiryLevel = "Normal"
)

// ExpiryLevels lists the levels from most to least urgent.
var ExpiryLevels = []ExpiryLevel{ExpiryExpired, ExpiryCritical, ExpiryWarning, ExpiryCaution, ExpiryNormal}

type ExpiryInfo struct {
	ExpirationDate time.Time   `json:"expiration_date"`
	DaysRemaining  int         `json:"days_remaining"`
	Level          ExpiryLevel `json:"level"`
}

// LevelFor maps a signed day count to its expiry level.
func LevelFor(daysRemaining int) ExpiryLevel {
	switch {
	case daysRemaining <= 0:
		return ExpiryExpired
	case daysRemaining <= 3:
		return ExpiryCritical
	case daysRemaining <= 7:
		return ExpiryWarning
	case daysRemaining <= 14:
		return ExpiryCaution
	default:
		return ExpiryNormal
	}
}

// ExpiryStatus derives the expiry view of u at asOf. It depends only on the
// expiration date, never on the unit's status.
func ExpiryStatus(u *BloodUnit, asOf time.Time) ExpiryInfo {
	days := dateutil.DaysUntil(asOf, u.ExpirationDate)
	return ExpiryInfo{
		ExpirationDate: u.ExpirationDate,
		DaysRemaining:  days,
		Level:          LevelFor(days),
	}
}

// ExpirationFor returns collection plus shelfLifeDays.
func ExpirationFor(collection time.Time, shelfLifeDays int) time.Time {
	return dateutil.AddDays(collection, shelfLifeDays)
}
