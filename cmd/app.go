// Package cmd implements the CLI application to compute ESPP tax positions.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/google/subcommands"
	"github.com/joho/godotenv"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&holdingsCmd{}, "reports")
	c.Register(&taxreportCmd{}, "reports")

	c.Register(&fmtCmd{}, "files")
	c.Register(&ratesCmd{}, "files")

	c.Register(&topicCmd{}, "help")
}

// Commands lists the subcommands, for shell completion.
func Commands() []subcommands.Command {
	return []subcommands.Command{&holdingsCmd{}, &taxreportCmd{}, &fmtCmd{}, &ratesCmd{}, &topicCmd{}}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	ratesFile = flag.String("rates-file", "", "Path to the exchange rates file (JSONL), defaults to $"+EnvRatesFile)
	currency  = flag.String("currency", "", "Reporting currency, defaults to $"+EnvCurrency+" or NOK")
	cacheDir  = flag.String("cache", "", "Directory of the HTTP cache, defaults to $"+EnvCache+" or the system temp dir")
	logLevel  = flag.String("log-level", "", "Log level (debug, info, warn, error), defaults to $"+EnvLogLevel+" or warn")
	Verbose   = flag.Bool("v", false, "Verbose mode, same as -log-level=debug")

	longTerm           = flag.String("long-term", "", "Holding period of a long term sale, like 1y or 18m, defaults to $"+EnvLongTerm+" or 1y")
	qualifyingOffer    = flag.String("qualifying-offer", "", "Period between the offer and a qualifying sale, defaults to $"+EnvQualifyingOffer+" or 2y")
	qualifyingPurchase = flag.String("qualifying-purchase", "", "Period between the purchase and a qualifying sale, defaults to $"+EnvQualifyingPurchase+" or 1y")
	tieBreak           = flag.String("tie-break", "", "Order of same date lots (key, highest-cost, lowest-cost), defaults to $"+EnvTieBreak+" or key")
)

// Configure completes the global flags left empty with the environment. A
// .env file in the working directory is loaded first, variables already set
// in the environment take precedence over it.
func Configure() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot load .env: %w", err)
	}
	fromEnv(ratesFile, EnvRatesFile, "")
	fromEnv(currency, EnvCurrency, "NOK")
	fromEnv(cacheDir, EnvCache, "")
	fromEnv(logLevel, EnvLogLevel, "warn")
	def := espp.DefaultPolicy()
	fromEnv(longTerm, EnvLongTerm, def.LongTermAfter.String())
	fromEnv(qualifyingOffer, EnvQualifyingOffer, def.QualifyingAfterOffer.String())
	fromEnv(qualifyingPurchase, EnvQualifyingPurchase, def.QualifyingAfterPurchase.String())
	fromEnv(tieBreak, EnvTieBreak, def.TieBreak.String())
	if *Verbose {
		*logLevel = "debug"
	}
	return nil
}

func fromEnv(v *string, env, def string) {
	if *v != "" {
		return
	}
	if s, ok := os.LookupEnv(env); ok && s != "" {
		*v = s
		return
	}
	*v = def
}

// logger returns the structured logger of the application, writing on stderr.
func logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(*logLevel))); err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// options returns the engine options configured by the global flags.
func options() (espp.Options, error) {
	opts := espp.DefaultOptions()
	opts.Logger = logger()
	if *currency != "" {
		opts.Currency = strings.ToUpper(*currency)
	}
	if err := espp.ValidateCurrency(opts.Currency); err != nil {
		return opts, fmt.Errorf("invalid reporting currency: %w", err)
	}
	if err := parsePolicy(&opts.Policy); err != nil {
		return opts, err
	}
	if *ratesFile != "" {
		rates, err := decodeRatesFile(*ratesFile, opts.Currency)
		if err != nil {
			return opts, err
		}
		opts.Rates = rates
	}
	return opts, nil
}

// parsePolicy overrides the thresholds of p set by the global flags. Empty
// flags keep p values.
func parsePolicy(p *espp.Policy) error {
	for _, f := range []struct {
		name  string
		value string
		span  *date.Span
	}{
		{"long-term", *longTerm, &p.LongTermAfter},
		{"qualifying-offer", *qualifyingOffer, &p.QualifyingAfterOffer},
		{"qualifying-purchase", *qualifyingPurchase, &p.QualifyingAfterPurchase},
	} {
		if f.value == "" {
			continue
		}
		s, err := date.ParseSpan(f.value)
		if err != nil {
			return fmt.Errorf("invalid -%s: %w", f.name, err)
		}
		*f.span = s
	}
	if *tieBreak != "" {
		t, err := espp.ParseTieBreak(*tieBreak)
		if err != nil {
			return fmt.Errorf("invalid -tie-break: %w", err)
		}
		p.TieBreak = t
	}
	return nil
}
