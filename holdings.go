package espp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/etnz/espp/date"
	"github.com/shopspring/decimal"
)

// HoldingsVersion is the version of the Holdings schema written by this
// package.
const HoldingsVersion = 2

// Position is the ordered sequence of open lots of one symbol.
type Position struct {
	Symbol string
	Lots   []Lot // oldest first
}

// Quantity returns the quantity held in the position.
func (p Position) Quantity() Quantity { return lots(p.Lots).total() }

// Holdings is the snapshot of the open lots of a broker account at the end
// of a year. It is the opening state of the following year.
type Holdings struct {
	Year      int
	Broker    string
	Positions []Position // sorted by symbol
}

// Symbols returns the symbols held.
func (h *Holdings) Symbols() []string {
	symbols := make([]string, 0, len(h.Positions))
	for _, p := range h.Positions {
		symbols = append(symbols, p.Symbol)
	}
	return symbols
}

// Lots returns the open lots of symbol, nil if none.
func (h *Holdings) Lots(symbol string) []Lot {
	for _, p := range h.Positions {
		if p.Symbol == symbol {
			return p.Lots
		}
	}
	return nil
}

// Balance returns the quantity held per symbol.
func (h *Holdings) Balance() map[string]Quantity {
	balance := make(map[string]Quantity, len(h.Positions))
	for _, p := range h.Positions {
		balance[p.Symbol] = p.Quantity()
	}
	return balance
}

// ExpectedBalance is an externally supplied quantity per symbol that the
// ledger must reach at the end of Year.
type ExpectedBalance struct {
	Year     int                 `json:"year"`
	Broker   string              `json:"broker"`
	Balances map[string]Quantity `json:"balances"`
}

// lotRecord is the persisted shape of a lot.
type lotRecord struct {
	Symbol   string          `json:"symbol,omitempty"` // version 1 only
	Date     date.Date       `json:"date"`
	Key      string          `json:"key,omitempty"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
	Currency string          `json:"currency"`
	Offer    date.Date       `json:"offer,omitzero"`
	Eligible date.Date       `json:"eligible,omitzero"`

	hasCost bool
}

func newLotRecord(l Lot) lotRecord {
	return lotRecord{
		Date:     l.Date,
		Key:      l.Key,
		Quantity: l.Quantity.Decimal(),
		Price:    l.Price.Decimal(),
		Cost:     l.Cost.Decimal(),
		Currency: l.Currency(),
		Offer:    l.Offer,
		Eligible: l.Eligible,
	}
}

func (r lotRecord) lot(symbol string) Lot {
	l := Lot{
		Symbol:   symbol,
		Date:     r.Date,
		Key:      r.Key,
		Quantity: Q(r.Quantity),
		Price:    M(r.Price, r.Currency),
		Cost:     M(r.Cost, r.Currency),
		Offer:    r.Offer,
		Eligible: r.Eligible,
	}
	if !r.hasCost {
		// version 1 snapshots did not record fees.
		l.Cost = l.Price.Mul(l.Quantity)
	}
	return l
}

type positionRecord struct {
	Symbol string      `json:"symbol"`
	Lots   []lotRecord `json:"lots"`
}

type holdingsRecord struct {
	Version int              `json:"version"`
	Year    int              `json:"year"`
	Broker  string           `json:"broker"`
	Symbols []positionRecord `json:"symbols"`
}

// MarshalJSON writes the current version of the schema. Numbers keep all
// their digits so that decoding reproduces the exact same lots.
func (h *Holdings) MarshalJSON() ([]byte, error) {
	rec := holdingsRecord{Version: HoldingsVersion, Year: h.Year, Broker: h.Broker, Symbols: []positionRecord{}}
	for _, p := range h.Positions {
		pr := positionRecord{Symbol: p.Symbol, Lots: []lotRecord{}}
		for _, l := range p.Lots {
			pr.Lots = append(pr.Lots, newLotRecord(l))
		}
		rec.Symbols = append(rec.Symbols, pr)
	}
	return json.Marshal(rec)
}

// UnmarshalJSON reads any known version of the schema.
func (h *Holdings) UnmarshalJSON(data []byte) error {
	var header struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	version := 1
	if header.Version != nil {
		version = *header.Version
	}
	switch version {
	case 1:
		return h.unmarshalV1(data)
	case 2:
		return h.unmarshalV2(data)
	default:
		return invalid(nil, "unsupported holdings version %d", version)
	}
}

// rawLot decodes a lot record, and remembers if the cost was present.
type rawLot struct{ lotRecord }

func (r *rawLot) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	type plain lotRecord
	var rec plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	r.lotRecord = lotRecord(rec)
	_, r.hasCost = fields["cost"]
	return nil
}

func (h *Holdings) unmarshalV2(data []byte) error {
	var rec struct {
		Version int    `json:"version"`
		Year    int    `json:"year"`
		Broker  string `json:"broker"`
		Symbols []struct {
			Symbol string   `json:"symbol"`
			Lots   []rawLot `json:"lots"`
		} `json:"symbols"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	*h = Holdings{Year: rec.Year, Broker: rec.Broker}
	for _, s := range rec.Symbols {
		p := Position{Symbol: s.Symbol}
		for _, r := range s.Lots {
			if r.Symbol != "" && r.Symbol != s.Symbol {
				return invalid(nil, "lot of %s listed under %s", r.Symbol, s.Symbol)
			}
			p.Lots = append(p.Lots, r.lot(s.Symbol))
		}
		h.Positions = append(h.Positions, p)
	}
	return h.validate()
}

// unmarshalV1 reads the flat list of lots of the first version; lots of a
// symbol are in acquisition order.
func (h *Holdings) unmarshalV1(data []byte) error {
	var rec struct {
		Version int      `json:"version"`
		Year    int      `json:"year"`
		Broker  string   `json:"broker"`
		Lots    []rawLot `json:"lots"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return err
	}
	*h = Holdings{Year: rec.Year, Broker: rec.Broker}
	index := make(map[string]int)
	for _, r := range rec.Lots {
		i, ok := index[r.Symbol]
		if !ok {
			i = len(h.Positions)
			index[r.Symbol] = i
			h.Positions = append(h.Positions, Position{Symbol: r.Symbol})
		}
		h.Positions[i].Lots = append(h.Positions[i].Lots, r.lot(r.Symbol))
	}
	slices.SortStableFunc(h.Positions, func(a, b Position) int { return strings.Compare(a.Symbol, b.Symbol) })
	return h.validate()
}

// validate checks the snapshot structure and every lot.
func (h *Holdings) validate() error {
	for i, p := range h.Positions {
		if p.Symbol == "" {
			return invalid(nil, "holdings position %d has no symbol", i)
		}
		if i > 0 && h.Positions[i-1].Symbol >= p.Symbol {
			return invalid(nil, "holdings symbols are not sorted or not unique at %q", p.Symbol)
		}
		var last date.Date
		for _, l := range p.Lots {
			if err := l.validate(); err != nil {
				return err
			}
			if l.Date.Before(last) {
				return invalid(l, "lots of %s are not ordered oldest first", p.Symbol)
			}
			last = l.Date
		}
	}
	return nil
}

// DecodeHoldings reads a Holdings snapshot.
func DecodeHoldings(r io.Reader) (*Holdings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cannot read holdings: %w", err)
	}
	h := new(Holdings)
	if err := json.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("cannot decode holdings: %w", err)
	}
	return h, nil
}

// EncodeHoldings writes a Holdings snapshot in the current schema version.
func EncodeHoldings(w io.Writer, h *Holdings) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode holdings: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("cannot write holdings: %w", err)
	}
	return nil
}

// DecodeExpectedBalance reads an ExpectedBalance in JSON.
func DecodeExpectedBalance(r io.Reader) (*ExpectedBalance, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var eb ExpectedBalance
	if err := dec.Decode(&eb); err != nil {
		return nil, fmt.Errorf("cannot decode expected balance: %w", err)
	}
	for symbol, q := range eb.Balances {
		if q.IsNegative() {
			return nil, invalid(nil, "expected balance of %s is negative: %s", symbol, q)
		}
	}
	return &eb, nil
}
