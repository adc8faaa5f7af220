package domain

import (
	"fmt"
	"strings"
)

const (
	CurrencyEUR = "€"

	RegulationEU261 = "EU 261/2004"
	RegulationNone  = "N/A"
)

// ClaimEstimate is computed once per FlightRecord and never mutated.
type ClaimEstimate struct {
	Eligible   bool   `json:"eligible"`
	Amount     int    `json:"amount"`
	Currency   string `json:"currency"`
	Regulation string `json:"regulation"`
}

// ClaimLetter is the drafted demand letter plus the deduplicated sources the
// provider grounded it on.
type ClaimLetter struct {
	Body    string   `json:"body"`
	Sources []string `json:"sources,omitempty"`
	Failed  bool     `json:"failed"`
}

const sourcesHeader = "Sources for Airline Contact Info:"

// Text renders the letter body followed by the sources block, if any.
func (l ClaimLetter) Text() string {
	if len(l.Sources) == 0 {
		return l.Body
	}

	var b strings.Builder
	b.WriteString(l.Body)
	b.WriteString("\n\n---\n")
	b.WriteString(sourcesHeader)
	for _, src := range l.Sources {
		b.WriteString("\n- ")
		b.WriteString(src)
	}
	return b.String()
}

func LetterFileName(flightNumber string) string {
	return fmt.Sprintf("Claim_Letter_%s.txt", flightNumber)
}
