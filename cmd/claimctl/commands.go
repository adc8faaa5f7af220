package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Domenick1991/claimjet/config"
	"github.com/Domenick1991/claimjet/internal/bootstrap"
	"github.com/Domenick1991/claimjet/internal/domain"
	"github.com/Domenick1991/claimjet/internal/eligibility"
	"github.com/Domenick1991/claimjet/internal/logger"
	"github.com/Domenick1991/claimjet/internal/service/flights"
	"github.com/Domenick1991/claimjet/internal/workflow"
	"github.com/spf13/cobra"
)

type backend struct {
	flights         flights.FlightUseCase
	drafter         workflow.Drafter
	serviceFeeCents int
	close           func() error
}

type backendFactory func(ctx context.Context) (*backend, error)

func newBackend(ctx context.Context) (*backend, error) {
	cfg, err := config.LoadConfig(config.Path())
	if err != nil {
		return nil, err
	}
	// the CLI writes results to stdout; keep the log to warnings
	log, err := logger.New("cli", "warn")
	if err != nil {
		return nil, err
	}

	services, err := bootstrap.NewServices(ctx, log, cfg)
	if err != nil {
		return nil, err
	}
	return &backend{
		flights:         services.Flights,
		drafter:         services.Letters,
		serviceFeeCents: cfg.Pricing.ServiceFeeCents,
		close:           services.Close,
	}, nil
}

func newRootCmd(factory backendFactory) *cobra.Command {
	root := &cobra.Command{
		Use:           "claimjet",
		Short:         "Check flight compensation eligibility and draft claim letters",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(factory), newLetterCmd(factory))
	return root
}

func newCheckCmd(factory backendFactory) *cobra.Command {
	var flightNumber, date string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look up a flight and print its compensation estimate",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlight(flightNumber, date); err != nil {
				return err
			}
			b, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			record, claim := lookup(cmd.Context(), b, flightNumber, date)
			printCheck(cmd.OutOrStdout(), record, claim, b.serviceFeeCents)
			return nil
		},
	}
	cmd.Flags().StringVar(&flightNumber, "flight", "", "flight number, e.g. LH401")
	cmd.Flags().StringVar(&date, "date", "", "flight date, e.g. 2025-01-10")
	return cmd
}

func newLetterCmd(factory backendFactory) *cobra.Command {
	var flightNumber, date string
	var passenger domain.PassengerDetails

	cmd := &cobra.Command{
		Use:   "letter",
		Short: "Draft a claim letter for an eligible flight",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlight(flightNumber, date); err != nil {
				return err
			}
			if err := passenger.Validate(); err != nil {
				return err
			}
			b, err := factory(cmd.Context())
			if err != nil {
				return err
			}
			defer b.close()

			record, claim := lookup(cmd.Context(), b, flightNumber, date)
			if !claim.Eligible {
				printCheck(cmd.OutOrStdout(), record, claim, b.serviceFeeCents)
				return domain.ErrNotEligible
			}

			letter := b.drafter.DraftLetter(cmd.Context(), record, passenger, claim.Regulation, claim.Amount, claim.Currency)
			fmt.Fprintln(cmd.OutOrStdout(), letter.Text())
			if letter.Failed {
				return fmt.Errorf("letter generation failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flightNumber, "flight", "", "flight number, e.g. LH401")
	cmd.Flags().StringVar(&date, "date", "", "flight date, e.g. 2025-01-10")
	cmd.Flags().StringVar(&passenger.FirstName, "first-name", "", "passenger first name")
	cmd.Flags().StringVar(&passenger.LastName, "last-name", "", "passenger last name")
	cmd.Flags().StringVar(&passenger.BookingReference, "booking-ref", "", "booking reference (PNR)")
	cmd.Flags().StringVar(&passenger.Email, "email", "", "passenger email")
	return cmd
}

func requireFlight(flightNumber, date string) error {
	if strings.TrimSpace(flightNumber) == "" || strings.TrimSpace(date) == "" {
		return fmt.Errorf("%w: --flight and --date are required", domain.ErrInvalidInput)
	}
	return nil
}

func lookup(ctx context.Context, b *backend, flightNumber, date string) (domain.FlightRecord, domain.ClaimEstimate) {
	record := b.flights.Resolve(ctx, flightNumber, date)
	return record, eligibility.Calculate(record)
}

func printCheck(w io.Writer, record domain.FlightRecord, claim domain.ClaimEstimate, serviceFeeCents int) {
	fmt.Fprintf(w, "Flight:    %s (%s)\n", record.FlightNumber, record.Date)
	fmt.Fprintf(w, "Airline:   %s\n", record.Airline)
	fmt.Fprintf(w, "Route:     %s -> %s (%d km)\n", record.Departure, record.Arrival, record.DistanceKm)
	fmt.Fprintf(w, "Status:    %s", record.Status)
	if record.Status == domain.FlightStatusDelayed {
		fmt.Fprintf(w, " by %d min", record.DelayDurationMinutes)
	}
	fmt.Fprintln(w)
	if record.LookupFailed {
		fmt.Fprintln(w, "Warning:   the status check failed; the result above is a placeholder")
	}

	if !claim.Eligible {
		fmt.Fprintln(w, "Eligible:  no")
		return
	}
	fmt.Fprintf(w, "Eligible:  yes, %s%d under %s\n", claim.Currency, claim.Amount, claim.Regulation)

	p := eligibility.ComparePayout(claim.Amount, serviceFeeCents)
	fmt.Fprintf(w, "Agencies:  you keep %s%d after a %s%d fee\n", claim.Currency, p.CompetitorPayout, claim.Currency, p.CompetitorFee)
	fmt.Fprintf(w, "ClaimJet:  you keep %s%d for a flat %s%d.%02d\n", claim.Currency, p.Payout, claim.Currency, p.ServiceFeeCents/100, p.ServiceFeeCents%100)
}
