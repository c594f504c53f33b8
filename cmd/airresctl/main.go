package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "airresctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:      "airresctl",
		Usage:     "Operate the airline reservation system",
		Writer:    out,
		ErrWriter: errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "config.yaml",
				EnvVars: []string{"CONFIG_PATH"},
				Usage:   "path to the YAML configuration",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "create the database schema",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "seed", Usage: "insert the configured fleet"},
				},
				Action: withApp(migrate),
			},
			{
				Name:  "search",
				Usage: "list flights with their free seats on a date",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Required: true, Usage: "travel date, YYYY-MM-DD"},
					&cli.StringFlag{Name: "class", Value: "Economy"},
					&cli.StringFlag{Name: "route", Usage: `"source → destination"`},
				},
				Action: withApp(search),
			},
			{
				Name:  "book",
				Usage: "reserve a seat or join the waiting list",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "phone", Required: true},
					&cli.StringFlag{Name: "father-name"},
					&cli.StringFlag{Name: "gender"},
					&cli.StringFlag{Name: "dob", Usage: "date of birth, YYYY-MM-DD"},
					&cli.StringFlag{Name: "address"},
					&cli.StringFlag{Name: "profession"},
					&cli.StringFlag{Name: "concession", Usage: "None, Student, Senior Citizen or Cancer Patient"},
					&cli.Int64Flag{Name: "flight", Required: true},
					&cli.StringFlag{Name: "class", Value: "Economy"},
					&cli.StringFlag{Name: "seat", Usage: "Window, Aisle or Any"},
					&cli.StringFlag{Name: "date", Required: true, Usage: "travel date, YYYY-MM-DD"},
				},
				Action: withApp(book),
			},
			{
				Name:      "cancel",
				Usage:     "cancel a reservation and promote the next waiting customer",
				ArgsUsage: "<pnr>",
				Action:    withApp(cancel),
			},
			{
				Name:      "refund",
				Usage:     "show the refund a cancellation would give today",
				ArgsUsage: "<pnr>",
				Action:    withApp(refund),
			},
			{
				Name:      "show",
				Usage:     "show a reservation",
				ArgsUsage: "<pnr>",
				Action:    withApp(show),
			},
			{
				Name:  "list",
				Usage: "list reservations, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "offset"},
					&cli.IntFlag{Name: "limit", Value: 20},
				},
				Action: withApp(list),
			},
			{
				Name:      "history",
				Usage:     "list the reservations of a customer",
				ArgsUsage: "<phone>",
				Action:    withApp(history),
			},
			{
				Name:  "quote",
				Usage: "price a fare with a concession",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "flight", Required: true},
					&cli.StringFlag{Name: "class", Value: "Economy"},
					&cli.StringFlag{Name: "concession"},
				},
				Action: withApp(quote),
			},
		},
	}
}
