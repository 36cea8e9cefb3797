package espp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/etnz/espp/date"
	"github.com/shopspring/decimal"
)

// Rates converts money between currencies at a given date.
//
// Implementations must be safe for concurrent use: a single Rates value is
// shared by every run of a process.
type Rates interface {
	Convert(m Money, currency string, on date.Date) (Money, error)
}

// Observation is the exchange rate of one currency on one day, expressed in
// units of the Base currency for one unit of Currency.
type Observation struct {
	Date     date.Date       `json:"date"`
	Base     string          `json:"base"`
	Currency string          `json:"currency"`
	Rate     decimal.Decimal `json:"rate"`
}

// DefaultMaxLookback is the number of days a rate lookup may reach back to
// find the latest banking day.
const DefaultMaxLookback = 7

// RateTable is a read only set of daily exchange rates against a single base
// currency.
//
// It is built once, usually at process start, and never mutated afterward.
type RateTable struct {
	base        string
	maxLookback int
	series      map[string]*date.History[decimal.Decimal]
}

// NewRateTable creates a table of rates against base. Every observation
// must be expressed against base and have a positive rate.
func NewRateTable(base string, maxLookback int, observations []Observation) (*RateTable, error) {
	if err := ValidateCurrency(base); err != nil {
		return nil, fmt.Errorf("invalid base currency: %w", err)
	}
	t := &RateTable{
		base:        base,
		maxLookback: maxLookback,
		series:      make(map[string]*date.History[decimal.Decimal]),
	}
	for _, o := range observations {
		if o.Base != base {
			return nil, fmt.Errorf("observation %s %s is against %q, table base is %q", o.Date, o.Currency, o.Base, base)
		}
		if err := ValidateCurrency(o.Currency); err != nil {
			return nil, fmt.Errorf("observation on %s: %w", o.Date, err)
		}
		if !o.Rate.IsPositive() {
			return nil, fmt.Errorf("observation %s %s has a non positive rate %s", o.Date, o.Currency, o.Rate)
		}
		h, ok := t.series[o.Currency]
		if !ok {
			h = new(date.History[decimal.Decimal])
			t.series[o.Currency] = h
		}
		h.Append(o.Date, o.Rate)
	}
	return t, nil
}

// Base returns the table base currency.
func (t *RateTable) Base() string { return t.base }

// Currencies returns the sorted list of currencies with at least one rate.
func (t *RateTable) Currencies() []string { return slices.Sorted(maps.Keys(t.series)) }

// Rate returns the value of one unit of currency in the base currency on the
// given day, or on the latest earlier day within the lookback window.
func (t *RateTable) Rate(currency string, on date.Date) (decimal.Decimal, error) {
	if currency == t.base {
		return decimal.NewFromInt(1), nil
	}
	h, ok := t.series[currency]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s/%s rate available", currency, t.base)
	}
	found, rate, ok := h.ValueAsOf(on)
	if !ok || on.Sub(found) > t.maxLookback {
		return decimal.Zero, fmt.Errorf("no %s/%s rate on %s or in the %d days before", currency, t.base, on, t.maxLookback)
	}
	return rate, nil
}

// Convert converts m into currency using the rates of the given day.
func (t *RateTable) Convert(m Money, currency string, on date.Date) (Money, error) {
	if m.Currency() == currency {
		return m, nil
	}
	from, err := t.Rate(m.Currency(), on)
	if err != nil {
		return Money{}, err
	}
	to, err := t.Rate(currency, on)
	if err != nil {
		return Money{}, err
	}
	return m.MulRate(from.Div(to)).In(currency), nil
}

// Observations returns every rate in the table, sorted by currency then date.
func (t *RateTable) Observations() []Observation {
	var obs []Observation
	for _, cur := range t.Currencies() {
		for on, rate := range t.series[cur].Values() {
			obs = append(obs, Observation{Date: on, Base: t.base, Currency: cur, Rate: rate})
		}
	}
	return obs
}

// DecodeRates reads observations in JSONL format and builds a RateTable. The
// table base is the base of the observations, which must all share it. An
// empty stream builds an empty table against NOK.
func DecodeRates(r io.Reader, maxLookback int) (*RateTable, error) {
	var obs []Observation
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue
		}
		var o Observation
		if err := json.Unmarshal(lineBytes, &o); err != nil {
			return nil, fmt.Errorf("line %d: cannot decode rate: %w", line, err)
		}
		obs = append(obs, o)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading rates: %w", err)
	}
	base := "NOK"
	if len(obs) > 0 {
		base = obs[0].Base
	}
	return NewRateTable(base, maxLookback, obs)
}

// EncodeRates writes every observation of the table in JSONL format.
func EncodeRates(w io.Writer, t *RateTable) error {
	enc := json.NewEncoder(w)
	for _, o := range t.Observations() {
		if err := enc.Encode(o); err != nil {
			return fmt.Errorf("failed to write rate %s %s: %w", o.Date, o.Currency, err)
		}
	}
	return nil
}

// sameCurrency is the Rates used when no table is configured: it only
// converts between identical currencies.
type sameCurrency struct{}

func (sameCurrency) Convert(m Money, currency string, on date.Date) (Money, error) {
	if m.Currency() != currency && !m.IsZero() {
		return Money{}, fmt.Errorf("no rate configured to convert %s to %s on %s", m.Currency(), currency, on)
	}
	return m.In(currency), nil
}
