package domain

import (
	"fmt"
	"net/mail"
	"strings"
)

// PassengerDetails only parameterize the letter prompt; they are kept for the
// lifetime of a session and never stored anywhere else.
type PassengerDetails struct {
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	BookingReference string `json:"booking_reference"`
	Email            string `json:"email"`
}

func (p PassengerDetails) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

func (p PassengerDetails) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"first name", p.FirstName},
		{"last name", p.LastName},
		{"booking reference", p.BookingReference},
		{"email", p.Email},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, f.name)
		}
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return nil
}
