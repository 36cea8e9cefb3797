package espp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/etnz/espp/date"
	"github.com/shopspring/decimal"
)

// Direction of a wire transfer, seen from the participant's bank account.
type Direction string

const (
	In  Direction = "IN"
	Out Direction = "OUT"
)

// Wire is a bank transfer of cash.
type Wire struct {
	Date      date.Date
	Amount    Money // always positive
	Direction Direction
	Memo      string
}

func (w Wire) String() string { return fmt.Sprintf("%s wire %s %s", w.Date, w.Direction, w.Amount) }

// Validate checks the wire fields. The returned error is always a
// *ValidationError.
func (w Wire) Validate() error {
	if w.Date.IsZero() {
		return invalid(w, "date is missing")
	}
	if w.Direction != In && w.Direction != Out {
		return invalid(w, "unknown direction %q", w.Direction)
	}
	if err := ValidateCurrency(w.Amount.Currency()); err != nil {
		return invalid(w, "%v", err)
	}
	if !w.Amount.IsPositive() {
		return invalid(w, "amount must be positive, got %s", w.Amount)
	}
	return nil
}

type wireRecord struct {
	Date      date.Date       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Direction Direction       `json:"direction"`
	Memo      string          `json:"memo,omitempty"`
}

// DecodeWires reads wires in JSONL format, one wire per line.
func DecodeWires(r io.Reader) ([]Wire, error) {
	var wires []Wire
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue
		}
		var rec wireRecord
		dec := json.NewDecoder(bytes.NewReader(lineBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rec); err != nil {
			return nil, invalid(lineRef(line), "cannot decode wire %q: %v", string(lineBytes), err)
		}
		w := Wire{Date: rec.Date, Amount: M(rec.Amount, rec.Currency), Direction: rec.Direction, Memo: rec.Memo}
		if err := w.Validate(); err != nil {
			return nil, err
		}
		wires = append(wires, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading wires: %w", err)
	}
	return wires, nil
}

// EncodeWires writes wires in JSONL format.
func EncodeWires(w io.Writer, wires []Wire) error {
	enc := json.NewEncoder(w)
	for _, wire := range wires {
		rec := wireRecord{Date: wire.Date, Amount: wire.Amount.Decimal(), Currency: wire.Amount.Currency(), Direction: wire.Direction, Memo: wire.Memo}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write %s: %w", wire, err)
		}
	}
	return nil
}

// CashEvent is an amount of cash the broker is expected to wire to the
// participant.
type CashEvent struct {
	Date   date.Date
	Kind   TxType // DIVIDEND or SELL
	Symbol string
	Key    string
	Amount Money
}

// CashEvents extracts the cash generating events of txs, in date order:
// dividends net of the tax withheld on the same day for the same symbol,
// and sale proceeds.
func CashEvents(txs []Transaction) []CashEvent {
	var events []CashEvent
	for _, tx := range SortTransactions(txs) {
		switch tx.Type {
		case Dividend:
			events = append(events, CashEvent{Date: tx.Date, Kind: Dividend, Symbol: tx.Symbol, Key: tx.Key, Amount: tx.Amount})
		case Sell:
			events = append(events, CashEvent{Date: tx.Date, Kind: Sell, Symbol: tx.Symbol, Key: tx.Key, Amount: tx.Proceeds()})
		}
	}
	for _, tx := range txs {
		if tx.Type != TaxWithheld {
			continue
		}
		i := slices.IndexFunc(events, func(e CashEvent) bool {
			return e.Kind == Dividend && e.Date == tx.Date && e.Symbol == tx.Symbol && e.Amount.Currency() == tx.Amount.Currency()
		})
		if i >= 0 {
			events[i].Amount = events[i].Amount.Sub(tx.Amount)
		}
	}
	return events
}

// WireMatch pairs a cash event with the wire that settled it.
type WireMatch struct {
	Event      CashEvent
	Wire       Wire
	Difference Money // wire amount - event amount, in the wire currency
}

// WireReconciliation is the result of matching wires against cash events.
type WireReconciliation struct {
	Matches  []WireMatch
	Warnings []UnmatchedWireWarning // sorted by date
}

// ReconcileWires matches every cash event to at most one incoming wire.
//
// Events are processed in date order. A wire is a candidate if it is dated
// within the settlement window after the event, and its amount is within
// tolerance of the event amount converted to the wire currency. Among
// candidates the smallest difference wins, then the earliest wire, then the
// first in input order. Anything left unpaired is reported as a warning.
func ReconcileWires(wires []Wire, events []CashEvent, opts Options) *WireReconciliation {
	log, rates, tol := opts.logger(), opts.rates(), opts.Wires
	used := make([]bool, len(wires))
	res := new(WireReconciliation)

	for _, ev := range events {
		best := -1
		var bestDiff Money
		for i, w := range wires {
			if used[i] || w.Direction != In {
				continue
			}
			if w.Date.Before(ev.Date) || w.Date.Sub(ev.Date) > tol.SettlementDays {
				continue
			}
			expected, err := rates.Convert(ev.Amount, w.Amount.Currency(), w.Date)
			if err != nil {
				log.Debug("wire not comparable", "wire", w, "event", ev.Date, "error", err)
				continue
			}
			diff := w.Amount.Sub(expected)
			allowed := decimal.Max(tol.AmountAbs, tol.AmountRel.Mul(expected.Decimal().Abs()))
			if diff.Decimal().Abs().GreaterThan(allowed) {
				continue
			}
			if best < 0 || diff.Abs().LessThan(bestDiff.Abs()) ||
				(diff.Abs().Equal(bestDiff.Abs()) && w.Date.Before(wires[best].Date)) {
				best, bestDiff = i, diff
			}
		}
		if best < 0 {
			warning := UnmatchedWireWarning{
				Date:   ev.Date,
				Kind:   string(ev.Kind),
				Symbol: ev.Symbol,
				Amount: ev.Amount,
				Reason: fmt.Sprintf("no incoming wire within %d days", tol.SettlementDays),
			}
			log.Warn("unmatched cash event", "event", warning)
			res.Warnings = append(res.Warnings, warning)
			continue
		}
		used[best] = true
		res.Matches = append(res.Matches, WireMatch{Event: ev, Wire: wires[best], Difference: bestDiff})
	}

	for i, w := range wires {
		if used[i] {
			continue
		}
		reason := "no matching dividend or sale proceeds"
		if w.Direction == Out {
			reason = "outgoing wire"
		}
		warning := UnmatchedWireWarning{Date: w.Date, Kind: "wire", Amount: w.Amount, Reason: reason}
		log.Warn("unmatched wire", "wire", warning)
		res.Warnings = append(res.Warnings, warning)
	}
	slices.SortStableFunc(res.Warnings, func(a, b UnmatchedWireWarning) int { return a.Date.Compare(b.Date) })
	return res
}
