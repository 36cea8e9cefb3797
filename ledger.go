package espp

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/etnz/espp/date"
)

// Amounts are the money of a realized sale in one currency.
type Amounts struct {
	Cost     Money `json:"cost"`
	Proceeds Money `json:"proceeds"`
	Gain     Money `json:"gain"`
}

// RealizedSale is the part of a SELL funded by a single lot.
type RealizedSale struct {
	Symbol      string    `json:"symbol"`
	Date        date.Date `json:"date"`           // sale date
	Key         string    `json:"key,omitempty"`  // ordering key of the SELL
	Acquired    date.Date `json:"acquired"`       // acquisition date of the lot
	AcquiredKey string    `json:"acquiredKey,omitempty"`
	Offer       date.Date `json:"offer,omitempty"`
	Quantity    Quantity  `json:"quantity"`
	Price       Money     `json:"price"` // unit acquisition price of the lot
	Native      Amounts   `json:"native"`
	Reported    Amounts   `json:"reported"` // converted to the reporting currency
	Term        Term      `json:"term"`
	Qualifying  bool      `json:"qualifying"`
}

// Ledger maintains the FIFO queues of open lots of every symbol, and records
// the sales realized against them.
//
// A Ledger is owned by a single run. After any error it is left in an
// unspecified state and must be discarded.
type Ledger struct {
	opts   Options
	log    *slog.Logger
	rates  Rates
	queues map[string]lots
	sales  []RealizedSale
}

// NewLedger creates an empty ledger.
func NewLedger(opts Options) *Ledger {
	return &Ledger{
		opts:   opts,
		log:    opts.logger(),
		rates:  opts.rates(),
		queues: make(map[string]lots),
	}
}

// Open seeds the ledger with the open lots of a snapshot. No sale is
// recorded. Lots are queued in the snapshot order, which must be oldest first.
func (l *Ledger) Open(h *Holdings) error {
	if h == nil {
		return nil
	}
	for _, p := range h.Positions {
		var last date.Date
		for _, lot := range p.Lots {
			if lot.Symbol != p.Symbol {
				return invalid(lot, "lot listed under symbol %q", p.Symbol)
			}
			if err := lot.validate(); err != nil {
				return err
			}
			if lot.Date.Before(last) {
				return invalid(lot, "lots of %s are not ordered oldest first", p.Symbol)
			}
			if q := l.queues[p.Symbol]; len(q) > 0 && q[0].Currency() != lot.Currency() {
				return invalid(lot, "lots of %s are in %s", p.Symbol, q[0].Currency())
			}
			last = lot.Date
			if lot.Eligible.IsZero() {
				// version 1 snapshots did not record eligibility.
				lot.Eligible = l.opts.Policy.Eligibility(lot.Date, lot.Offer)
			}
			l.queues[p.Symbol] = append(l.queues[p.Symbol], lot)
		}
	}
	return nil
}

// Ingest applies transactions in date and ordering key order.
func (l *Ledger) Ingest(txs []Transaction) error {
	for _, tx := range SortTransactions(txs) {
		if err := l.Apply(tx); err != nil {
			return err
		}
	}
	return nil
}

// Apply applies a single transaction. Transactions must be applied in
// chronological order.
func (l *Ledger) Apply(tx Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	switch {
	case tx.Type.acquires():
		return l.acquire(tx)
	case tx.Type == Sell:
		return l.sell(tx)
	}
	// cash events do not change lots.
	return nil
}

func (l *Ledger) acquire(tx Transaction) error {
	if queue := l.queues[tx.Symbol]; len(queue) > 0 && queue[0].Currency() != tx.Currency() {
		return invalid(tx, "bought in %s, lots of %s are in %s", tx.Currency(), tx.Symbol, queue[0].Currency())
	}
	cost := tx.Price.Mul(tx.Quantity)
	if !tx.Fee.IsZero() {
		cost = cost.Add(tx.Fee)
	}
	lot := Lot{
		Symbol:   tx.Symbol,
		Date:     tx.Date,
		Key:      tx.Key,
		Quantity: tx.Quantity,
		Price:    tx.Price,
		Cost:     cost,
		Offer:    tx.Offer,
		Eligible: l.opts.Policy.Eligibility(tx.Date, tx.Offer),
	}
	l.queues[tx.Symbol] = l.queues[tx.Symbol].insert(lot, l.opts.Policy.TieBreak)
	l.log.Debug("lot opened", "symbol", lot.Symbol, "date", lot.Date, "quantity", lot.Quantity, "cost", lot.Cost)
	return nil
}

func (l *Ledger) sell(tx Transaction) error {
	queue := l.queues[tx.Symbol]
	available := queue.total()
	if available.LessThan(tx.Quantity) {
		return &InsufficientLotError{
			Symbol:    tx.Symbol,
			Date:      tx.Date,
			Requested: tx.Quantity,
			Available: available,
			Deficit:   tx.Quantity.Sub(available),
		}
	}
	if len(queue) > 0 && queue[0].Currency() != tx.Currency() {
		return invalid(tx, "sold in %s, lots of %s are in %s", tx.Currency(), tx.Symbol, queue[0].Currency())
	}

	proceeds := tx.Proceeds()
	reportedProceeds, err := l.rates.Convert(proceeds, l.opts.Currency, tx.Date)
	if err != nil {
		return fmt.Errorf("cannot convert proceeds of %s: %w", tx, err)
	}

	remaining, used := queue.sell(tx.Quantity)
	left, reportedLeft := proceeds, reportedProceeds
	for i, c := range used {
		// proceeds are apportioned pro rata, the last part takes the rest
		// so that parts always sum up to the whole.
		part, reportedPart := left, reportedLeft
		if i < len(used)-1 {
			part = proceeds.Mul(c.Quantity).Div(tx.Quantity)
			reportedPart = reportedProceeds.Mul(c.Quantity).Div(tx.Quantity)
		}
		left, reportedLeft = left.Sub(part), reportedLeft.Sub(reportedPart)

		reportedCost, err := l.rates.Convert(c.Cost, l.opts.Currency, c.Lot.Date)
		if err != nil {
			return fmt.Errorf("cannot convert cost of %s: %w", c.Lot, err)
		}
		l.sales = append(l.sales, RealizedSale{
			Symbol:      tx.Symbol,
			Date:        tx.Date,
			Key:         tx.Key,
			Acquired:    c.Lot.Date,
			AcquiredKey: c.Lot.Key,
			Offer:       c.Lot.Offer,
			Quantity:    c.Quantity,
			Price:       c.Lot.Price,
			Native:      Amounts{Cost: c.Cost, Proceeds: part, Gain: part.Sub(c.Cost)},
			Reported:    Amounts{Cost: reportedCost, Proceeds: reportedPart, Gain: reportedPart.Sub(reportedCost)},
			Term:        l.opts.Policy.Term(c.Lot.Date, tx.Date),
			Qualifying:  !tx.Date.Before(c.Lot.Eligible),
		})
		l.log.Debug("lot consumed", "symbol", tx.Symbol, "sold", tx.Date, "acquired", c.Lot.Date, "quantity", c.Quantity)
	}
	if len(remaining) == 0 {
		delete(l.queues, tx.Symbol)
	} else {
		l.queues[tx.Symbol] = remaining
	}
	return nil
}

// Sales returns a copy of the realized sales, in the order they happened.
func (l *Ledger) Sales() []RealizedSale { return slices.Clone(l.sales) }

// Symbols returns the sorted symbols with open lots.
func (l *Ledger) Symbols() []string { return slices.Sorted(maps.Keys(l.queues)) }

// Position returns the quantity held in open lots of symbol.
func (l *Ledger) Position(symbol string) Quantity { return l.queues[symbol].total() }

// Positions returns the quantity held per symbol.
func (l *Ledger) Positions() map[string]Quantity {
	pos := make(map[string]Quantity, len(l.queues))
	for symbol, queue := range l.queues {
		pos[symbol] = queue.total()
	}
	return pos
}

// Lots returns a copy of the open lots of symbol, oldest first.
func (l *Ledger) Lots(symbol string) []Lot { return slices.Clone(l.queues[symbol]) }

// Holdings returns a snapshot of the open lots, labelled with year and
// broker. The snapshot shares nothing with the ledger.
func (l *Ledger) Holdings(year int, broker string) *Holdings {
	h := &Holdings{Year: year, Broker: broker}
	for _, symbol := range l.Symbols() {
		h.Positions = append(h.Positions, Position{Symbol: symbol, Lots: l.Lots(symbol)})
	}
	return h
}
