package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/espp"
)

// stringList is a repeatable string flag.
type stringList []string

func (l *stringList) String() string     { return strings.Join(*l, ",") }
func (l *stringList) Set(s string) error { *l = append(*l, s); return nil }

// decodeTransactionFile reads a JSONL transaction file.
func decodeTransactionFile(path string) ([]espp.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	txs, err := espp.DecodeTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return txs, nil
}

// decodeTransactionFiles reads every file as a separate source.
func decodeTransactionFiles(paths []string) ([][]espp.Transaction, error) {
	sources := make([][]espp.Transaction, 0, len(paths))
	for _, path := range paths {
		txs, err := decodeTransactionFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, txs)
	}
	return sources, nil
}

// decodeHoldingsFile reads a Holdings snapshot, an empty path returns nil.
func decodeHoldingsFile(path string) (*espp.Holdings, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h, err := espp.DecodeHoldings(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}

// decodeExpectedFile reads an expected balance, an empty path returns nil.
func decodeExpectedFile(path string) (*espp.ExpectedBalance, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	eb, err := espp.DecodeExpectedBalance(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return eb, nil
}

// decodeWiresFile reads a JSONL wires file, an empty path returns no wires.
func decodeWiresFile(path string) ([]espp.Wire, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	wires, err := espp.DecodeWires(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return wires, nil
}

func decodeRatesFile(path, reporting string) (*espp.RateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open rates: %w", err)
	}
	defer f.Close()
	rates, err := espp.DecodeRates(f, espp.DefaultMaxLookback)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if rates.Base() != reporting && !slices.Contains(rates.Currencies(), reporting) {
		return nil, fmt.Errorf("%s has no rate for the reporting currency %s", path, reporting)
	}
	return rates, nil
}

// writeHoldings writes a Holdings snapshot to path, or stdout if path is "-".
func writeHoldings(path string, h *espp.Holdings) error {
	if path == "-" {
		return espp.EncodeHoldings(os.Stdout, h)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := espp.EncodeHoldings(f, h); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeJSON writes v as indented JSON to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// printMarkdown renders markdown for the terminal on stdout.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}
