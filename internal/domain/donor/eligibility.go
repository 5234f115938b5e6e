package donor

import (
	"fmt"
	"time"

	"github.com/bloodbank/bloodbank/pkg/dateutil"
)

// DefaultWholeBloodIntervalDays is the minimum gap between whole-blood
// donations (8 weeks).
const DefaultWholeBloodIntervalDays = 56

// Rule names reported in EligibilityResult.Rule.
const (
	RuleDeferral = "deferral"
	RuleStatus   = "status"
	RuleInterval = "interval"
	RuleHealth   = "health"
	RuleNone     = "none"
)

const (
	ReasonPermanentlyDeferred = "Permanently deferred"
	ReasonRetired             = "Donor status: Retired"
	ReasonIntervalNotMet      = "Minimum interval between donations not met"
	ReasonHealthFallback      = "Health parameters not within acceptable range"
)

// Rules holds the tunable eligibility parameters. Intervals are keyed by
// donation type; types without an entry use the whole-blood interval.
type Rules struct {
	Intervals map[DonationType]int
}

func DefaultRules() Rules {
	return NewRules(DefaultWholeBloodIntervalDays)
}

// NewRules returns rules with the given whole-blood interval in days.
func NewRules(wholeBloodDays int) Rules {
	return Rules{Intervals: map[DonationType]int{DonationWholeBlood: wholeBloodDays}}
}

// WithInterval returns a copy of r with a specific interval for t.
func (r Rules) WithInterval(t DonationType, days int) Rules {
	out := Rules{Intervals: make(map[DonationType]int, len(r.Intervals)+1)}
	for k, v := range r.Intervals {
		out.Intervals[k] = v
	}
	out.Intervals[t] = days
	return out
}

// IntervalFor returns the minimum interval in days for a donation type.
func (r Rules) IntervalFor(t DonationType) int {
	if days, ok := r.Intervals[t]; ok {
		return days
	}
	if days, ok := r.Intervals[DonationWholeBlood]; ok {
		return days
	}
	return DefaultWholeBloodIntervalDays
}

// Evaluate applies the whole-blood rules. See EvaluateFor.
func (r Rules) Evaluate(d *Donor, activeDeferral *Deferral, latest *HealthAssessment, asOf time.Time) EligibilityResult {
	return r.EvaluateFor(DonationWholeBlood, d, activeDeferral, latest, asOf)
}

// EvaluateFor decides whether d may give a donation of type t at asOf. The
// checks run in a fixed order and the first failure wins: active deferral,
// retirement and donor status, minimum interval, latest health verdict.
func (r Rules) EvaluateFor(t DonationType, d *Donor, activeDeferral *Deferral, latest *HealthAssessment, asOf time.Time) EligibilityResult {
	res := EligibilityResult{DonorID: d.ID, EvaluatedAt: asOf}

	if activeDeferral != nil && activeDeferral.Status == DeferralActive {
		res.Rule = RuleDeferral
		if activeDeferral.DeferralType == DeferralPermanent {
			res.Reason = strPtr(ReasonPermanentlyDeferred)
			return res
		}
		res.Reason = strPtr(activeDeferral.Reason)
		res.NextEligibleDate = activeDeferral.EndDate
		return res
	}

	if d.Retired() {
		res.Rule = RuleStatus
		res.Reason = strPtr(ReasonRetired)
		return res
	}

	if d.Status != StatusActive {
		res.Rule = RuleStatus
		res.Reason = strPtr(fmt.Sprintf("Donor status: %s", d.Status))
		return res
	}

	if d.LastDonationDate != nil {
		interval := r.IntervalFor(t)
		if dateutil.DaysBetween(*d.LastDonationDate, asOf) < interval {
			next := dateutil.AddDays(*d.LastDonationDate, interval)
			res.Rule = RuleInterval
			res.Reason = strPtr(ReasonIntervalNotMet)
			res.NextEligibleDate = &next
			return res
		}
	}

	if latest != nil && !latest.IsEligible {
		res.Rule = RuleHealth
		reason := ReasonHealthFallback
		if latest.IneligibilityReason != nil && *latest.IneligibilityReason != "" {
			reason = *latest.IneligibilityReason
		}
		res.Reason = &reason
		res.NextEligibleDate = latest.NextEligibleDate
		return res
	}

	res.IsEligible = true
	res.Rule = RuleNone
	return res
}

// SelectActiveDeferral returns the most recently started Active deferral, or
// nil when there is none.
func SelectActiveDeferral(deferrals []*Deferral) *Deferral {
	var active *Deferral
	for _, d := range deferrals {
		if d.Status != DeferralActive {
			continue
		}
		if active == nil || d.StartDate.After(active.StartDate) ||
			(d.StartDate.Equal(active.StartDate) && d.CreatedAt.After(active.CreatedAt)) {
			active = d
		}
	}
	return active
}

// LatestAssessment returns the assessment with the greatest AssessedAt.
func LatestAssessment(assessments []*HealthAssessment) *HealthAssessment {
	var latest *HealthAssessment
	for _, h := range assessments {
		if latest == nil || h.AssessedAt.After(latest.AssessedAt) {
			latest = h
		}
	}
	return latest
}

func strPtr(s string) *string { return &s }
