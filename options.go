package espp

import (
	"io"
	"log/slog"

	"github.com/shopspring/decimal"
)

// WireTolerance configures how far a wire may deviate from the cash event it
// settles.
type WireTolerance struct {
	SettlementDays int             // the wire is dated within [event, event + SettlementDays].
	AmountAbs      decimal.Decimal // absolute amount difference, in the wire currency.
	AmountRel      decimal.Decimal // relative amount difference, as a fraction of the event amount.
}

// Options configures a run of the engine.
type Options struct {
	Policy Policy
	// Currency is the reporting currency of realized sales and summaries.
	Currency string
	// Rates converts native amounts to the reporting currency. Nil only
	// converts between identical currencies.
	Rates Rates
	Wires WireTolerance
	// BalanceTolerance is the largest quantity difference accepted per
	// symbol by the balance reconciler.
	BalanceTolerance Quantity
	// Logger receives debug and warning records. Nil discards them.
	Logger *slog.Logger
}

// DefaultOptions returns options reporting in NOK with the default policy,
// a five days settlement window and a one percent amount tolerance.
func DefaultOptions() Options {
	return Options{
		Policy:   DefaultPolicy(),
		Currency: "NOK",
		Wires: WireTolerance{
			SettlementDays: 5,
			AmountAbs:      decimal.NewFromInt(1),
			AmountRel:      decimal.RequireFromString("0.01"),
		},
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o.Logger
}

func (o Options) rates() Rates {
	if o.Rates == nil {
		return sameCurrency{}
	}
	return o.Rates
}
