package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/etnz/espp/renderer"
	"github.com/google/subcommands"
)

// holdingsCmd holds the flags for the 'holdings' subcommand.
type holdingsCmd struct {
	strategy string
	year     int
	broker   string
	files    stringList
	prior    string
	opening  string
	expected string
	output   string
	quiet    bool
	renames  stringList
}

func (*holdingsCmd) Name() string { return "holdings" }
func (*holdingsCmd) Synopsis() string {
	return "build the opening holdings of a tax year from transaction history"
}
func (*holdingsCmd) Usage() string {
	return `espp2 holdings -y <year> -b <broker> -t <file> [-t <file>...] [-s <strategy>] [-prior <file>] [-opening <file>] [-expected <file>] [-o <file>]

  Builds the snapshot of the open lots at the end of the year before <year>,
  to be used as the opening state of the <year> tax report.

  Strategies:
    full-history      merge every transaction file, on top of an optional
                      prior snapshot or opening balance (default).
    purchase-history  a complete export of every purchase, validated
                      against the expected balance.
    liquidation       a single, possibly partial file; anything held before
                      its first transaction is assumed sold. Validated
                      against the expected balance.
    alternate         same as purchase-history, for files exported with
                      another broker's conventions. Symbols are renamed
                      with -rename OLD=NEW.

Usage Examples:
$ espp2 holdings -y 2023 -b schwab -t 2021.jsonl -t 2022.jsonl -o holdings-2022.json
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.strategy, "s", "full-history", "Construction strategy: full-history, purchase-history, liquidation or alternate")
	f.IntVar(&c.year, "y", date.Today().Year(), "Tax year the holdings open")
	f.StringVar(&c.broker, "b", "", "Broker name")
	f.Var(&c.files, "t", "Transaction file (JSONL), repeatable")
	f.StringVar(&c.prior, "prior", "", "Holdings snapshot of a previous year")
	f.StringVar(&c.opening, "opening", "", "Opening balance, in the holdings format")
	f.StringVar(&c.expected, "expected", "", "Expected balance at the end of the previous year (JSON)")
	f.StringVar(&c.output, "o", "-", "Output holdings file, - for stdout")
	f.BoolVar(&c.quiet, "q", false, "Do not print the holdings table")
	f.Var(&c.renames, "rename", "Symbol renaming OLD=NEW for the alternate strategy, repeatable")
}

func (c *holdingsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	strategy, err := espp.ParseStrategy(c.strategy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	if len(c.renames) > 0 {
		alt, ok := strategy.(espp.AlternateBroker)
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: -rename only applies to the alternate strategy")
			return subcommands.ExitUsageError
		}
		symbols := make(map[string]string)
		for _, r := range c.renames {
			old, renamed, found := strings.Cut(r, "=")
			if !found || old == "" || renamed == "" {
				fmt.Fprintf(os.Stderr, "Error: invalid -rename %q, want OLD=NEW\n", r)
				return subcommands.ExitUsageError
			}
			symbols[old] = renamed
		}
		alt.Normalize = espp.RenameSymbols(c.broker, symbols)
		strategy = alt
	}
	if len(c.files) == 0 && c.prior == "" && c.opening == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one transaction file or snapshot is required")
		return subcommands.ExitUsageError
	}
	opts, err := options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	in := espp.Inputs{Year: c.year, Broker: c.broker}
	if in.Sources, err = decodeTransactionFiles(c.files); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading transactions: %v\n", err)
		return subcommands.ExitFailure
	}
	if in.Prior, err = decodeHoldingsFile(c.prior); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading prior holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	if in.Opening, err = decodeHoldingsFile(c.opening); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading opening balance: %v\n", err)
		return subcommands.ExitFailure
	}
	if in.Expected, err = decodeExpectedFile(c.expected); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading expected balance: %v\n", err)
		return subcommands.ExitFailure
	}

	holdings, err := espp.Build(strategy, in, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building holdings: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := writeHoldings(c.output, holdings); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing holdings: %v\n", err)
		return subcommands.ExitFailure
	}
	if !c.quiet && c.output != "-" {
		printMarkdown(renderer.HoldingsMarkdown(holdings))
	}
	return subcommands.ExitSuccess
}
