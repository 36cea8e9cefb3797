package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/etnz/espp/renderer"
	"github.com/google/subcommands"
)

// taxreportCmd holds the flags for the 'taxreport' subcommand.
type taxreportCmd struct {
	year     int
	broker   string
	files    stringList
	prior    string
	wires    string
	holdings string
	report   string
}

func (*taxreportCmd) Name() string     { return "taxreport" }
func (*taxreportCmd) Synopsis() string { return "compute the tax report of a year" }
func (*taxreportCmd) Usage() string {
	return `espp2 taxreport -y <year> -b <broker> -t <file> [-prior <file>] [-w <file>] [-holdings <file>] [-json <file>]

  Computes the realized sales, dividends and totals of <year>, starting from
  the holdings of the previous year. Wires are matched against dividends and
  sale proceeds; unmatched ones are listed as warnings.

Usage Examples:
$ espp2 taxreport -y 2023 -b schwab -t 2023.jsonl -prior holdings-2022.json -holdings holdings-2023.json
`
}

func (c *taxreportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "y", date.Today().Year()-1, "Tax year")
	f.StringVar(&c.broker, "b", "", "Broker name")
	f.Var(&c.files, "t", "Transaction file (JSONL), repeatable")
	f.StringVar(&c.prior, "prior", "", "Holdings snapshot at the end of the previous year")
	f.StringVar(&c.wires, "w", "", "Wires file (JSONL)")
	f.StringVar(&c.holdings, "holdings", "", "Write the holdings at the end of the year to this file")
	f.StringVar(&c.report, "json", "", "Write the report and summary as JSON to this file")
}

func (c *taxreportCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(c.files) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one transaction file is required")
		return subcommands.ExitUsageError
	}
	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	sources, err := decodeTransactionFiles(c.files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	in := espp.TaxInputs{Year: c.year, Broker: c.broker, Transactions: espp.MergeSources(sources...)}
	if in.Prior, err = decodeHoldingsFile(c.prior); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prior holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	if in.Wires, err = decodeWiresFile(c.wires); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading wires: %v\n", err)
		return subcommands.ExitFailure
	}

	res, err := espp.Taxes(in, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error computing taxes: %v\n", err)
		return subcommands.ExitFailure
	}

	if c.holdings != "" {
		if err := writeHoldings(c.holdings, res.Holdings); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing holdings: %v\n", err)
			return subcommands.ExitFailure
		}
	}
	if c.report != "" {
		out := struct {
			Report  *espp.TaxReport `json:"taxReport"`
			Summary *espp.Summary   `json:"summary"`
		}{res.Report, res.Summary}
		if err := writeJSON(c.report, out); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	printMarkdown(renderer.TaxReportMarkdown(res.Report, res.Summary))
	return subcommands.ExitSuccess
}
