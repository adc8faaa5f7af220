package eligibility

import "math"

// CompetitorFeeRate is the share of the payout typically kept by claim agencies.
const CompetitorFeeRate = 0.35

// DefaultServiceFeeCents is the flat fee charged for one generated letter.
const DefaultServiceFeeCents = 299

type PayoutComparison struct {
	ClaimAmount      int `json:"claim_amount"`
	CompetitorFee    int `json:"competitor_fee"`
	CompetitorPayout int `json:"competitor_payout"`
	Payout           int `json:"payout"`
	ServiceFeeCents  int `json:"service_fee_cents"`
}

// ComparePayout contrasts a percentage-fee agency with the flat upfront fee.
// The flat fee is paid separately, so the passenger keeps the full amount.
func ComparePayout(amount, serviceFeeCents int) PayoutComparison {
	if amount < 0 {
		amount = 0
	}
	if serviceFeeCents <= 0 {
		serviceFeeCents = DefaultServiceFeeCents
	}

	fee := int(math.Round(float64(amount) * CompetitorFeeRate))
	return PayoutComparison{
		ClaimAmount:      amount,
		CompetitorFee:    fee,
		CompetitorPayout: amount - fee,
		Payout:           amount,
		ServiceFeeCents:  serviceFeeCents,
	}
}
