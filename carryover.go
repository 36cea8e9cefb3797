package espp

import (
	"fmt"

	"github.com/etnz/espp/date"
)

// Inputs are the material a Strategy builds a Holdings snapshot from.
//
// The snapshot is the opening state of Year: it reflects every transaction
// up to the end of Year-1.
type Inputs struct {
	Year     int
	Broker   string
	Sources  [][]Transaction  // transaction exports, possibly overlapping
	Prior    *Holdings        // snapshot of a previous year, optional
	Opening  *Holdings        // opening balance from another source, optional
	Expected *ExpectedBalance // expected balance at the end of Year-1, optional
}

// ResultKind tells which variant a Result holds.
type ResultKind int

const (
	// RawEntriesKind results hold the merged transactions; the ledger has
	// not been run yet.
	RawEntriesKind ResultKind = iota
	// HoldingsKind results hold a snapshot.
	HoldingsKind
)

// Result is either raw entries or a Holdings snapshot.
type Result struct {
	Kind     ResultKind
	Year     int
	Broker   string
	Entries  []Transaction // for RawEntriesKind
	Holdings *Holdings     // for HoldingsKind
}

// RawEntries creates a Result of merged transactions.
func RawEntries(year int, broker string, txs []Transaction) Result {
	return Result{Kind: RawEntriesKind, Year: year, Broker: broker, Entries: txs}
}

// HoldingsResult creates a Result holding a snapshot.
func HoldingsResult(h *Holdings) Result {
	return Result{Kind: HoldingsKind, Year: h.Year + 1, Broker: h.Broker, Holdings: h}
}

// Resolve returns the snapshot of a Result, running the ledger over raw
// entries up to the end of Year-1 if needed.
func Resolve(r Result, opts Options) (*Holdings, error) {
	switch r.Kind {
	case HoldingsKind:
		return r.Holdings, nil
	case RawEntriesKind:
		ledger := NewLedger(opts)
		if err := ledger.Ingest(until(r.Entries, date.EndOfYear(r.Year-1))); err != nil {
			return nil, err
		}
		return ledger.Holdings(r.Year-1, r.Broker), nil
	default:
		return nil, fmt.Errorf("unknown result kind %d", r.Kind)
	}
}

// Strategy builds the opening state of a year.
type Strategy interface {
	Build(in Inputs, opts Options) (Result, error)
}

// Build runs a strategy and resolves its result.
func Build(s Strategy, in Inputs, opts Options) (*Holdings, error) {
	r, err := s.Build(in, opts)
	if err != nil {
		return nil, err
	}
	return Resolve(r, opts)
}

// ParseStrategy returns the strategy named name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "full-history", "":
		return FullHistory{}, nil
	case "purchase-history":
		return CompletePurchaseHistory{}, nil
	case "liquidation":
		return SingleFileLiquidation{}, nil
	case "alternate":
		return AlternateBroker{}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (want full-history, purchase-history, liquidation or alternate)", name)
	}
}

// until returns the transactions dated on or before end.
func until(txs []Transaction, end date.Date) []Transaction {
	var kept []Transaction
	for _, tx := range txs {
		if !tx.Date.After(end) {
			kept = append(kept, tx)
		}
	}
	return kept
}

// merge validates and merges the sources of in.
func merge(in Inputs, opts Options) ([]Transaction, error) {
	total := 0
	for _, src := range in.Sources {
		for _, tx := range src {
			if err := tx.Validate(); err != nil {
				return nil, err
			}
		}
		total += len(src)
	}
	merged := MergeSources(in.Sources...)
	if dropped := total - len(merged); dropped > 0 {
		opts.logger().Debug("duplicate transactions dropped", "broker", in.Broker, "count", dropped)
	}
	return merged, nil
}

// seed returns the snapshot to start from, if any.
func seed(in Inputs) (*Holdings, error) {
	if in.Prior != nil && in.Opening != nil {
		return nil, invalid(nil, "both a prior snapshot and an opening balance are given for %s, only one can seed the ledger", in.Broker)
	}
	h := in.Prior
	if h == nil {
		h = in.Opening
	}
	if h != nil && h.Year >= in.Year {
		return nil, invalid(nil, "opening snapshot of %d cannot seed the year %d", h.Year, in.Year)
	}
	return h, nil
}

// seeded runs a ledger from the optional snapshot over the transactions not
// covered by it, up to the end of Year-1.
func seeded(in Inputs, txs []Transaction, opts Options) (*Ledger, error) {
	h, err := seed(in)
	if err != nil {
		return nil, err
	}
	ledger := NewLedger(opts)
	if h != nil {
		if err := ledger.Open(h); err != nil {
			return nil, fmt.Errorf("invalid opening snapshot: %w", err)
		}
		covered := date.EndOfYear(h.Year)
		var kept []Transaction
		for _, tx := range txs {
			if !tx.Date.After(covered) {
				opts.logger().Debug("transaction covered by snapshot skipped", "tx", tx, "snapshot", h.Year)
				continue
			}
			kept = append(kept, tx)
		}
		txs = kept
	}
	if err := ledger.Ingest(until(txs, date.EndOfYear(in.Year-1))); err != nil {
		return nil, err
	}
	return ledger, nil
}

// FullHistory merges every source on top of an optional snapshot.
//
// Without any snapshot, the merged transactions are returned as raw
// entries. With an expected balance, the result is reconciled against it.
type FullHistory struct{}

func (FullHistory) Build(in Inputs, opts Options) (Result, error) {
	if in.Expected != nil {
		if err := checkExpected(in); err != nil {
			return Result{}, err
		}
	}
	txs, err := merge(in, opts)
	if err != nil {
		return Result{}, err
	}
	if in.Prior == nil && in.Opening == nil && in.Expected == nil {
		return RawEntries(in.Year, in.Broker, txs), nil
	}
	ledger, err := seeded(in, txs, opts)
	if err != nil {
		return Result{}, err
	}
	if err := ReconcileBalance(ledger.Positions(), in.Expected, opts.BalanceTolerance); err != nil {
		return Result{}, err
	}
	return HoldingsResult(ledger.Holdings(in.Year-1, in.Broker)), nil
}

// CompletePurchaseHistory runs the ledger over a complete export of every
// purchase and sale, and validates the outcome against the expected balance.
type CompletePurchaseHistory struct{}

func (CompletePurchaseHistory) Build(in Inputs, opts Options) (Result, error) {
	if err := checkExpected(in); err != nil {
		return Result{}, err
	}
	txs, err := merge(in, opts)
	if err != nil {
		return Result{}, err
	}
	ledger, err := seeded(in, txs, opts)
	if err != nil {
		return Result{}, err
	}
	if err := ReconcileBalance(ledger.Positions(), in.Expected, opts.BalanceTolerance); err != nil {
		return Result{}, err
	}
	return HoldingsResult(ledger.Holdings(in.Year-1, in.Broker)), nil
}

// SingleFileLiquidation runs the ledger over a single, possibly partial
// export, assuming every share held before its first transaction was sold.
type SingleFileLiquidation struct{}

func (SingleFileLiquidation) Build(in Inputs, opts Options) (Result, error) {
	if len(in.Sources) != 1 {
		return Result{}, invalid(nil, "liquidation strategy takes exactly one transaction file, got %d", len(in.Sources))
	}
	if in.Prior != nil || in.Opening != nil {
		return Result{}, invalid(nil, "liquidation strategy cannot start from a snapshot")
	}
	if err := checkExpected(in); err != nil {
		return Result{}, err
	}
	txs, err := merge(in, opts)
	if err != nil {
		return Result{}, err
	}
	ledger, err := ReconcileLiquidation(until(txs, date.EndOfYear(in.Year-1)), in.Expected, opts)
	if err != nil {
		return Result{}, err
	}
	return HoldingsResult(ledger.Holdings(in.Year-1, in.Broker)), nil
}

// Normalizer maps a transaction exported with another broker's conventions
// to the common schema.
type Normalizer func(Transaction) (Transaction, error)

// RenameSymbols returns a Normalizer renaming symbols, and labelling every
// transaction with broker when it has none.
func RenameSymbols(broker string, symbols map[string]string) Normalizer {
	return func(tx Transaction) (Transaction, error) {
		if s, ok := symbols[tx.Symbol]; ok {
			tx.Symbol = s
		}
		if tx.Broker == "" {
			tx.Broker = broker
		}
		return tx, nil
	}
}

// AlternateBroker normalizes every source with Normalize, then delegates to
// Then. Nil fields default to labelling the broker and to
// CompletePurchaseHistory.
type AlternateBroker struct {
	Normalize Normalizer
	Then      Strategy
}

func (s AlternateBroker) Build(in Inputs, opts Options) (Result, error) {
	normalize, next := s.Normalize, s.Then
	if normalize == nil {
		normalize = RenameSymbols(in.Broker, nil)
	}
	if next == nil {
		next = CompletePurchaseHistory{}
	}
	sources := make([][]Transaction, len(in.Sources))
	for i, src := range in.Sources {
		for _, tx := range src {
			n, err := normalize(tx)
			if err != nil {
				return Result{}, fmt.Errorf("cannot normalize %s: %w", tx, err)
			}
			sources[i] = append(sources[i], n)
		}
	}
	in.Sources = sources
	return next.Build(in, opts)
}

func checkExpected(in Inputs) error {
	if in.Expected == nil {
		return invalid(nil, "an expected balance is required to validate the history of %s", in.Broker)
	}
	if in.Expected.Year != in.Year-1 {
		return invalid(nil, "expected balance is for %d, the opening state of %d needs the balance at the end of %d", in.Expected.Year, in.Year, in.Year-1)
	}
	return nil
}
