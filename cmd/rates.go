package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/etnz/espp/norgesbank"
	"github.com/google/subcommands"
)

type ratesCmd struct {
	year       int
	currencies string
	output     string
	api        string
}

func (*ratesCmd) Name() string     { return "rates" }
func (*ratesCmd) Synopsis() string { return "download the exchange rates of a year from Norges Bank" }
func (*ratesCmd) Usage() string {
	return `espp2 rates [-y <year>] [-c USD,EUR] [-o <file>]

  Downloads the daily exchange rates against NOK published by Norges Bank
  and writes them to the rates file, loaded once at start by the other
  commands. Rates already in the file for other currencies or dates are
  kept. The last days of the previous year are included so that the first
  days of January have a rate.
`
}

func (c *ratesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", date.Today().Year()-1, "Year to download")
	f.StringVar(&c.currencies, "c", "USD", "Comma separated list of currencies")
	f.StringVar(&c.output, "o", "", "Rates file to update, defaults to -rates-file")
	f.StringVar(&c.api, "api", norgesbank.DefaultURL, "Norges Bank data API")
}

func (c *ratesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	output := c.output
	if output == "" {
		output = *ratesFile
	}
	if output == "" {
		fmt.Fprintln(os.Stderr, "Error: no rates file, use -o or -rates-file")
		return subcommands.ExitUsageError
	}

	var existing []espp.Observation
	if in, err := os.Open(output); err == nil {
		table, err := espp.DecodeRates(in, espp.DefaultMaxLookback)
		in.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", output, err)
			return subcommands.ExitFailure
		}
		if table.Base() != norgesbank.Base {
			fmt.Fprintf(os.Stderr, "Error: %q holds rates against %s, not %s\n", output, table.Base(), norgesbank.Base)
			return subcommands.ExitFailure
		}
		existing = table.Observations()
	}

	var currencies []string
	for _, cur := range strings.Split(c.currencies, ",") {
		if cur = strings.ToUpper(strings.TrimSpace(cur)); cur != "" {
			currencies = append(currencies, cur)
		}
	}
	period := date.Year(c.year)
	period.From = period.From.Add(-espp.DefaultMaxLookback)

	obs, err := norgesbank.FetchAll(norgesbank.Daily(*cacheDir, logger()), c.api, currencies, period)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error downloading rates: %v\n", err)
		return subcommands.ExitFailure
	}

	table, err := espp.NewRateTable(norgesbank.Base, espp.DefaultMaxLookback, append(existing, obs...))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	out, err := os.Create(output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := espp.EncodeRates(out, table); err != nil {
		out.Close()
		fmt.Fprintf(os.Stderr, "Error writing rates: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := out.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing rates: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "Wrote %d rates of %s to %q.\n", len(obs), strings.Join(currencies, ", "), output)
	return subcommands.ExitSuccess
}
