package espp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/etnz/espp/date"
)

// Sentinels matched with errors.Is by callers that only need the category.
var (
	ErrValidation       = errors.New("invalid input")
	ErrInsufficientLots = errors.New("insufficient lots")
	ErrReconciliation   = errors.New("balance reconciliation failed")
)

// ValidationError reports a malformed or unrecognized input record.
type ValidationError struct {
	Record string // the offending record, as printed by its String method
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Record == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid record %s: %s", e.Record, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// invalid creates a ValidationError for an arbitrary record.
func invalid(record fmt.Stringer, format string, args ...any) *ValidationError {
	e := &ValidationError{Reason: fmt.Sprintf(format, args...)}
	if record != nil {
		e.Record = record.String()
	}
	return e
}

// InsufficientLotError is raised when a sale needs more shares than the open
// lots of its symbol hold. It usually means the history is missing a deposit.
type InsufficientLotError struct {
	Symbol    string
	Date      date.Date
	Requested Quantity
	Available Quantity
	Deficit   Quantity // Requested - Available
}

func (e *InsufficientLotError) Error() string {
	return fmt.Sprintf("on %s, cannot sell %s %s: only %s in open lots, %s missing (incomplete transaction history?)",
		e.Date, e.Requested, e.Symbol, e.Available, e.Deficit)
}

func (e *InsufficientLotError) Is(target error) bool { return target == ErrInsufficientLots }

// Discrepancy is the difference between an expected and a computed quantity
// for one symbol.
type Discrepancy struct {
	Symbol   string
	Expected Quantity
	Computed Quantity
	Delta    Quantity // Expected - Computed
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: expected %s, computed %s, delta %s", d.Symbol, d.Expected, d.Computed, d.Delta)
}

// ReconciliationError reports every symbol whose computed balance does not
// match the expected balance.
type ReconciliationError struct {
	Year          int
	Broker        string
	Assumption    string // non empty when the reconciliation ran under an assumption.
	Discrepancies []Discrepancy
}

func (e *ReconciliationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "balance mismatch for %s at end of %d", e.Broker, e.Year)
	if e.Assumption != "" {
		fmt.Fprintf(&b, " (assuming %s)", e.Assumption)
	}
	for i, d := range e.Discrepancies {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(d.String())
	}
	return b.String()
}

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }

// UnmatchedWireWarning flags a wire or a cash event that could not be paired.
// It is never fatal: it is attached to the Summary for human review.
type UnmatchedWireWarning struct {
	Date   date.Date `json:"date"`
	Kind   string    `json:"kind"` // "wire" or the cash event type.
	Symbol string    `json:"symbol,omitempty"`
	Amount Money     `json:"amount"`
	Reason string    `json:"reason"`
}

func (w UnmatchedWireWarning) String() string {
	if w.Symbol != "" {
		return fmt.Sprintf("%s %s %s %s: %s", w.Date, w.Kind, w.Symbol, w.Amount, w.Reason)
	}
	return fmt.Sprintf("%s %s %s: %s", w.Date, w.Kind, w.Amount, w.Reason)
}
