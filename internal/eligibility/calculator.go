// Package eligibility computes EU 261/2004 compensation for a normalized
// flight record. Everything here is pure and performs no I/O.
package eligibility

import "github.com/Domenick1991/claimjet/internal/domain"

const (
	// DelayThresholdMinutes is the minimum arrival delay that qualifies.
	DelayThresholdMinutes = 180

	mediumHaulKm = 1500
	longHaulKm   = 3500

	shortHaulAmount  = 250
	mediumHaulAmount = 400
	longHaulAmount   = 600
)

// Calculate applies the rule table in order: cancellation, qualifying delay,
// otherwise not eligible. A cancelled flight always qualifies for the top
// tier whatever its recorded delay or distance.
func Calculate(record domain.FlightRecord) domain.ClaimEstimate {
	if record.Status == domain.FlightStatusCancelled {
		return domain.ClaimEstimate{
			Eligible:   true,
			Amount:     longHaulAmount,
			Currency:   domain.CurrencyEUR,
			Regulation: domain.RegulationEU261,
		}
	}

	if record.Status == domain.FlightStatusDelayed && record.DelayDurationMinutes >= DelayThresholdMinutes {
		return domain.ClaimEstimate{
			Eligible:   true,
			Amount:     amountForDistance(record.DistanceKm),
			Currency:   domain.CurrencyEUR,
			Regulation: domain.RegulationEU261,
		}
	}

	return domain.ClaimEstimate{
		Eligible:   false,
		Amount:     0,
		Currency:   domain.CurrencyEUR,
		Regulation: domain.RegulationNone,
	}
}

func amountForDistance(km int) int {
	switch {
	case km > longHaulKm:
		return longHaulAmount
	case km > mediumHaulKm:
		return mediumHaulAmount
	default:
		return shortHaulAmount
	}
}
