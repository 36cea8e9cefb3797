package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/espp"
	"github.com/etnz/espp/date"
	"github.com/google/subcommands"
)

const history = `{"type":"SELL","date":"2021-06-01","symbol":"X","quantity":60,"price":15.0,"currency":"USD"}
{"type":"BUY","date":"2020-01-01","symbol":"X","quantity":100,"price":10,"currency":"USD"}
`

// writeFile writes content to a file in a temporary directory.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// execute runs a subcommand with args, reporting in USD.
func execute(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	*currency = "USD"
	t.Cleanup(func() { *currency = "" })

	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("invalid arguments %q: %v", args, err)
	}
	return c.Execute(context.Background(), f)
}

func TestFmt(t *testing.T) {
	path := writeFile(t, "history.jsonl", history)

	if status := execute(t, &fmtCmd{}, path); status != subcommands.ExitSuccess {
		t.Fatalf("fmt exited with %v", status)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"type":"BUY","date":"2020-01-01","symbol":"X","quantity":100,"price":10,"currency":"USD"}
{"type":"SELL","date":"2021-06-01","symbol":"X","quantity":60,"price":15,"currency":"USD"}
`
	if string(got) != want {
		t.Errorf("formatted file:\n%s\nwant:\n%s", got, want)
	}
}

func TestFmtMerge(t *testing.T) {
	a := writeFile(t, "a.jsonl", history)
	b := writeFile(t, "b.jsonl", history+`{"type":"DIVIDEND","date":"2021-03-01","symbol":"X","amount":12,"currency":"USD"}`+"\n")
	out := filepath.Join(t.TempDir(), "all.jsonl")

	if status := execute(t, &fmtCmd{}, "-o", out, a, b); status != subcommands.ExitSuccess {
		t.Fatalf("fmt exited with %v", status)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	txs, err := espp.DecodeTransactions(f)
	if err != nil {
		t.Fatalf("merged file is invalid: %v", err)
	}
	if len(txs) != 3 {
		t.Errorf("merged file has %d transactions, want 3", len(txs))
	}
}

func TestFmtInvalid(t *testing.T) {
	path := writeFile(t, "bad.jsonl", `{"type":"BUY","date":"2020-01-01","symbol":"X","quantity":-1,"price":10,"currency":"USD"}`+"\n")
	if status := execute(t, &fmtCmd{}, path); status != subcommands.ExitFailure {
		t.Errorf("fmt of an invalid file exited with %v, want failure", status)
	}
}

func TestHoldings(t *testing.T) {
	path := writeFile(t, "history.jsonl", history)
	out := filepath.Join(t.TempDir(), "holdings.json")

	status := execute(t, &holdingsCmd{}, "-y", "2022", "-b", "B", "-t", path, "-o", out, "-q")
	if status != subcommands.ExitSuccess {
		t.Fatalf("holdings exited with %v", status)
	}

	h, err := decodeHoldingsFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if h.Year != 2021 || h.Broker != "B" {
		t.Errorf("holdings are for %d %q, want 2021 %q", h.Year, h.Broker, "B")
	}
	if got := h.Balance()["X"]; !got.Equal(espp.Q(40)) {
		t.Errorf("holdings of X = %s, want 40", got)
	}
}

func TestHoldingsUnknownStrategy(t *testing.T) {
	path := writeFile(t, "history.jsonl", history)
	if status := execute(t, &holdingsCmd{}, "-s", "guess", "-t", path); status != subcommands.ExitUsageError {
		t.Errorf("holdings exited with %v, want a usage error", status)
	}
}

func TestHoldingsAlternate(t *testing.T) {
	path := writeFile(t, "history.jsonl", strings.ReplaceAll(history, `"X"`, `"ACME.O"`))
	expected := writeFile(t, "expected.json", `{"year":2021,"broker":"B","balances":{"X":40}}`)
	out := filepath.Join(t.TempDir(), "holdings.json")

	status := execute(t, &holdingsCmd{}, "-s", "alternate", "-rename", "ACME.O=X", "-y", "2022", "-b", "B", "-t", path, "-expected", expected, "-o", out, "-q")
	if status != subcommands.ExitSuccess {
		t.Fatalf("holdings exited with %v", status)
	}
	h, err := decodeHoldingsFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := h.Symbols(); len(got) != 1 || got[0] != "X" {
		t.Errorf("holdings symbols = %v, want [X]", got)
	}

	if status := execute(t, &holdingsCmd{}, "-rename", "ACME.O=X", "-t", path); status != subcommands.ExitUsageError {
		t.Errorf("-rename with the default strategy exited with %v, want a usage error", status)
	}
	if status := execute(t, &holdingsCmd{}, "-s", "alternate", "-rename", "ACME.O", "-t", path); status != subcommands.ExitUsageError {
		t.Errorf("invalid -rename exited with %v, want a usage error", status)
	}
}

func TestTaxreport(t *testing.T) {
	path := writeFile(t, "history.jsonl", history)
	dir := t.TempDir()
	holdings := filepath.Join(dir, "holdings.json")
	report := filepath.Join(dir, "report.json")

	status := execute(t, &taxreportCmd{}, "-y", "2021", "-b", "B", "-t", path, "-holdings", holdings, "-json", report)
	if status != subcommands.ExitSuccess {
		t.Fatalf("taxreport exited with %v", status)
	}

	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Summary struct {
			LongTermGain struct {
				Amount   json.Number `json:"amount"`
				Currency string      `json:"currency"`
			} `json:"longTermGain"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid report: %v", err)
	}
	if got.Summary.LongTermGain.Amount != "300" || got.Summary.LongTermGain.Currency != "USD" {
		t.Errorf("long term gain = %s %s, want 300 USD", got.Summary.LongTermGain.Amount, got.Summary.LongTermGain.Currency)
	}

	h, err := decodeHoldingsFile(holdings)
	if err != nil {
		t.Fatal(err)
	}
	if h.Year != 2021 {
		t.Errorf("holdings year = %d, want 2021", h.Year)
	}
}

func TestTaxreportPolicy(t *testing.T) {
	*longTerm = "2y"
	t.Cleanup(func() { *longTerm = "" })
	path := writeFile(t, "history.jsonl", history)
	report := filepath.Join(t.TempDir(), "report.json")

	if status := execute(t, &taxreportCmd{}, "-y", "2021", "-b", "B", "-t", path, "-json", report); status != subcommands.ExitSuccess {
		t.Fatalf("taxreport exited with %v", status)
	}
	data, err := os.ReadFile(report)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Summary struct {
			ShortTermGain struct {
				Amount json.Number `json:"amount"`
			} `json:"shortTermGain"`
			LongTermGain struct {
				Amount json.Number `json:"amount"`
			} `json:"longTermGain"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid report: %v", err)
	}
	if got.Summary.ShortTermGain.Amount != "300" || got.Summary.LongTermGain.Amount != "0" {
		t.Errorf("gains short %s long %s, want 300 and 0 with a two years long term period", got.Summary.ShortTermGain.Amount, got.Summary.LongTermGain.Amount)
	}
}

func TestOptionsPolicy(t *testing.T) {
	t.Cleanup(func() { *longTerm, *qualifyingOffer, *qualifyingPurchase, *tieBreak = "", "", "", "" })

	*longTerm, *qualifyingOffer, *qualifyingPurchase, *tieBreak = "18m", "2y6m", "30d", "lowest-cost"
	opts, err := options()
	if err != nil {
		t.Fatalf("options() failed: %v", err)
	}
	want := espp.Policy{
		LongTermAfter:           date.Span{Months: 18},
		QualifyingAfterOffer:    date.Span{Years: 2, Months: 6},
		QualifyingAfterPurchase: date.Span{Days: 30},
		TieBreak:                espp.LowestCostFirst,
	}
	if opts.Policy != want {
		t.Errorf("options() policy = %+v, want %+v", opts.Policy, want)
	}

	for _, tc := range []struct{ name, longTerm, tieBreak string }{
		{"invalid span", "one year", ""},
		{"invalid tie break", "", "newest"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			*longTerm, *qualifyingOffer, *qualifyingPurchase, *tieBreak = tc.longTerm, "", "", tc.tieBreak
			if _, err := options(); err == nil {
				t.Errorf("options() succeeded with -long-term %q -tie-break %q", tc.longTerm, tc.tieBreak)
			}
		})
	}
}

func TestConfigurePolicy(t *testing.T) {
	t.Cleanup(func() {
		*ratesFile, *currency, *cacheDir, *logLevel = "", "", "", ""
		*longTerm, *qualifyingOffer, *qualifyingPurchase, *tieBreak = "", "", "", ""
	})
	t.Setenv(EnvLongTerm, "2y")
	*tieBreak = "highest-cost"

	if err := Configure(); err != nil {
		t.Fatalf("Configure() failed: %v", err)
	}
	for _, c := range []struct{ name, got, want string }{
		{"long-term", *longTerm, "2y"},
		{"qualifying-offer", *qualifyingOffer, "2y"},
		{"qualifying-purchase", *qualifyingPurchase, "1y"},
		{"tie-break", *tieBreak, "highest-cost"},
	} {
		if c.got != c.want {
			t.Errorf("-%s = %q, want %q", c.name, c.got, c.want)
		}
	}
}
