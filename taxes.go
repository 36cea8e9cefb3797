package espp

import (
	"fmt"

	"github.com/etnz/espp/date"
)

// TaxInputs are the inputs of a tax year run.
type TaxInputs struct {
	Year         int
	Broker       string
	Transactions []Transaction
	Prior        *Holdings // snapshot at the end of Year-1, nil if nothing was held
	Wires        []Wire
}

// TaxResult is the outcome of a tax year run. It is only returned whole.
type TaxResult struct {
	Report   *TaxReport
	Holdings *Holdings // snapshot at the end of Year, the opening state of Year+1
	Summary  *Summary
}

// Taxes computes the tax report of a year from the snapshot of the previous
// year and the transactions of the year.
//
// Transactions already covered by the snapshot and transactions after the
// end of the year are ignored.
func Taxes(in TaxInputs, opts Options) (*TaxResult, error) {
	if in.Prior != nil && in.Prior.Year != in.Year-1 {
		return nil, invalid(nil, "holdings of %d cannot open the tax year %d", in.Prior.Year, in.Year)
	}
	for _, w := range in.Wires {
		if err := w.Validate(); err != nil {
			return nil, err
		}
	}
	ledger, err := seeded(Inputs{Year: in.Year + 1, Broker: in.Broker, Prior: in.Prior}, in.Transactions, opts)
	if err != nil {
		return nil, fmt.Errorf("tax year %d: %w", in.Year, err)
	}
	report, summary, err := Generate(in.Year, in.Broker, ledger.Sales(), until(in.Transactions, date.EndOfYear(in.Year)), in.Wires, opts)
	if err != nil {
		return nil, fmt.Errorf("tax year %d: %w", in.Year, err)
	}
	return &TaxResult{
		Report:   report,
		Holdings: ledger.Holdings(in.Year, in.Broker),
		Summary:  summary,
	}, nil
}
