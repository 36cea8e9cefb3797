package espp

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// liquidationAssumption is reported by reconciliations of partial history.
const liquidationAssumption = "any balance held before the first transaction was fully liquidated"

// ReconcileBalance compares computed quantities with the expected ones, for
// every symbol in either. It returns a *ReconciliationError listing every
// symbol whose difference exceeds tolerance, sorted by symbol.
func ReconcileBalance(computed map[string]Quantity, expected *ExpectedBalance, tolerance Quantity) error {
	if expected == nil {
		return nil
	}
	symbols := make(map[string]struct{})
	for s := range computed {
		symbols[s] = struct{}{}
	}
	for s := range expected.Balances {
		symbols[s] = struct{}{}
	}

	var discrepancies []Discrepancy
	for _, s := range slices.Sorted(maps.Keys(symbols)) {
		exp, got := expected.Balances[s], computed[s]
		delta := exp.Sub(got)
		if delta.Abs().GreaterThan(tolerance.Abs()) {
			discrepancies = append(discrepancies, Discrepancy{Symbol: s, Expected: exp, Computed: got, Delta: delta})
		}
	}
	if len(discrepancies) == 0 {
		return nil
	}
	return &ReconciliationError{Year: expected.Year, Broker: expected.Broker, Discrepancies: discrepancies}
}

// ReconcileLiquidation runs a ledger over a possibly partial transaction
// window, assuming nothing was held before it, and validates its ending
// balance against expected.
//
// When the assumption does not hold, either because a sale exceeds the
// visible lots or because the ending balance does not match, the error
// names the assumption. Missing history is never guessed.
func ReconcileLiquidation(txs []Transaction, expected *ExpectedBalance, opts Options) (*Ledger, error) {
	if expected == nil {
		return nil, invalid(nil, "reconciling a partial history requires an expected balance")
	}
	ledger := NewLedger(opts)
	if err := ledger.Ingest(txs); err != nil {
		var lotErr *InsufficientLotError
		if errors.As(err, &lotErr) {
			return nil, fmt.Errorf("liquidation assumption violated: %w", err)
		}
		return nil, err
	}
	if err := ReconcileBalance(ledger.Positions(), expected, opts.BalanceTolerance); err != nil {
		var recErr *ReconciliationError
		if errors.As(err, &recErr) {
			recErr.Assumption = liquidationAssumption
		}
		return nil, err
	}
	opts.logger().Debug("balance reconciled", "year", expected.Year, "broker", expected.Broker, "assumption", liquidationAssumption)
	return ledger, nil
}
