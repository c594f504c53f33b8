package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/Domenick1991/airreservation/config"
	"github.com/Domenick1991/airreservation/internal/bootstrap"
	"github.com/Domenick1991/airreservation/internal/domain"
	"github.com/Domenick1991/airreservation/internal/fare"
	"github.com/Domenick1991/airreservation/internal/logging"
	"github.com/Domenick1991/airreservation/internal/service/reservation"
	"github.com/urfave/cli/v2"
)

type command func(c *cli.Context, cfg *config.Config, app *bootstrap.App) error

// withApp loads the configuration and builds the service before running cmd.
func withApp(cmd command) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := config.LoadConfig(c.String("config"))
		if err != nil {
			return err
		}
		logger := logging.NewWithOutput(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, c.App.ErrWriter)

		app, err := bootstrap.Build(c.Context, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		return cmd(c, cfg, app)
	}
}

func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: %s %s <%s>", c.App.Name, c.Command.Name, name), 2)
	}
	return c.Args().First(), nil
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, cli.Exit(fmt.Sprintf("--%s must be YYYY-MM-DD", flag), 2)
	}
	return t, nil
}

func migrate(c *cli.Context, cfg *config.Config, app *bootstrap.App) error {
	seeded, err := app.Migrate(c.Context, cfg.Fleet, c.Bool("seed"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "schema applied, %d flights seeded\n", seeded)
	return nil
}

func search(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	date, err := parseDate("date", c.String("date"))
	if err != nil {
		return err
	}
	flights, err := app.Service.SearchAvailableFlights(c.Context, reservation.SearchInput{
		TravelDate: date,
		SeatClass:  c.String("class"),
		Route:      c.String("route"),
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tROUTE\tDEPARTS\tFREE\tFARE")
	for _, f := range flights {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d/%d\t%.2f\n",
			f.Flight.Code, f.Flight.Name, f.Flight.Route(), clock(f.Flight.DepartureTime),
			f.AvailableSeats, f.TotalSeats, f.BaseFare)
	}
	return w.Flush()
}

func book(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	travelDate, err := parseDate("date", c.String("date"))
	if err != nil {
		return err
	}
	dob, err := parseDate("dob", c.String("dob"))
	if err != nil {
		return err
	}

	result, err := app.Service.MakeReservation(c.Context, reservation.MakeReservationInput{
		Name:           c.String("name"),
		FatherName:     c.String("father-name"),
		Gender:         c.String("gender"),
		DateOfBirth:    dob,
		Address:        c.String("address"),
		Phone:          c.String("phone"),
		Profession:     c.String("profession"),
		Concession:     c.String("concession"),
		FlightCode:     c.Int64("flight"),
		SeatClass:      c.String("class"),
		SeatPreference: c.String("seat"),
		TravelDate:     travelDate,
	})
	if err != nil {
		return err
	}

	if !result.Confirmed {
		fmt.Fprintf(c.App.Writer, "waitlisted: customer %d is number %d\n", result.CustomerID, result.WaitingNumber)
		return nil
	}
	fmt.Fprintf(c.App.Writer, "confirmed %s: seat %d, fare %.2f (discount %.2f)\n",
		result.PNR, result.SeatNumber, result.Fare, result.Discount)
	return nil
}

func cancel(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	pnr, err := requireArg(c, "pnr")
	if err != nil {
		return err
	}
	result, err := app.Service.CancelReservation(c.Context, pnr)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "cancelled %s: refund %.2f, fee %.2f\n", result.PNR, result.RefundAmount, result.CancellationFee)
	if p := result.Promoted; p != nil {
		fmt.Fprintf(c.App.Writer, "promoted waiting number %d to %s, seat %d\n", p.WaitingNumber, p.PNR, p.SeatNumber)
	}
	return nil
}

func refund(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	pnr, err := requireArg(c, "pnr")
	if err != nil {
		return err
	}
	r, err := app.Service.PreviewRefund(c.Context, pnr)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "refund %.2f, fee %.2f, %d days before travel\n", r.RefundAmount, r.CancellationFee, r.DaysUntilTravel)
	return nil
}

func show(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	pnr, err := requireArg(c, "pnr")
	if err != nil {
		return err
	}
	r, err := app.Service.GetReservation(c.Context, pnr)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "PNR:\t%s\n", r.PNR)
	fmt.Fprintf(w, "Customer:\t%s (%d)\n", r.CustomerName, r.CustomerID)
	fmt.Fprintf(w, "Flight:\t%d %s\n", r.FlightCode, r.FlightName)
	fmt.Fprintf(w, "Class:\t%s, seat %d\n", r.SeatClass, r.SeatNumber)
	fmt.Fprintf(w, "Travel date:\t%s\n", r.TravelDate.Format(time.DateOnly))
	fmt.Fprintf(w, "Fare:\t%.2f\n", r.Fare)
	fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	return w.Flush()
}

func list(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	reservations, err := app.Service.ListReservations(c.Context, c.Int("offset"), c.Int("limit"))
	if err != nil {
		return err
	}
	return printReservations(c, reservations)
}

func history(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	phone, err := requireArg(c, "phone")
	if err != nil {
		return err
	}
	reservations, err := app.Service.CustomerReservations(c.Context, phone)
	if err != nil {
		return err
	}
	return printReservations(c, reservations)
}

func quote(c *cli.Context, _ *config.Config, app *bootstrap.App) error {
	q, err := app.Service.QuoteFare(c.Context, c.Int64("flight"), c.String("class"), c.String("concession"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "base %.2f, %s discount %s (%.2f), final %.2f\n",
		q.BaseFare, q.Concession, fare.DiscountPercentage(q.Concession), q.Discount, q.FinalFare)
	return nil
}

func printReservations(c *cli.Context, reservations []domain.Reservation) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PNR\tCUSTOMER\tFLIGHT\tCLASS\tSEAT\tDATE\tFARE\tSTATUS")
	for _, r := range reservations {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%.2f\t%s\n",
			r.PNR, r.CustomerName, r.FlightCode, r.SeatClass, r.SeatNumber,
			r.TravelDate.Format(time.DateOnly), r.Fare, r.Status)
	}
	return w.Flush()
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(config.ClockLayout)
}
