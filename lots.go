package espp

import (
	"fmt"
	"slices"

	"github.com/etnz/espp/date"
)

// Lot is a quantity of shares acquired together, on one date at one price.
//
// Selling part of a lot keeps its identity (symbol, date, price, key): only
// the remaining quantity and the remaining cost decrease.
type Lot struct {
	Symbol   string
	Date     date.Date // acquisition date
	Key      string    // ordering key of the acquiring transaction
	Quantity Quantity  // remaining quantity
	Price    Money     // unit acquisition price, as given
	Cost     Money     // cost basis of the remaining quantity, fees included
	Offer    date.Date // ESPP offer date, if any
	Eligible date.Date // first day a sale is a qualifying disposition
}

func (l Lot) String() string {
	return fmt.Sprintf("lot %s %s %s @ %s", l.Symbol, l.Date, l.Quantity, l.Price)
}

// Currency returns the lot currency.
func (l Lot) Currency() string { return l.Price.Currency() }

// validate checks a lot read from a snapshot.
func (l Lot) validate() error {
	if l.Symbol == "" {
		return invalid(l, "symbol is missing")
	}
	if l.Date.IsZero() {
		return invalid(l, "acquisition date is missing")
	}
	if !l.Quantity.IsPositive() {
		return invalid(l, "quantity must be positive, got %s", l.Quantity)
	}
	if err := ValidateCurrency(l.Currency()); err != nil {
		return invalid(l, "%v", err)
	}
	if l.Cost.Currency() != l.Currency() {
		return invalid(l, "cost currency %q differs from price currency %q", l.Cost.Currency(), l.Currency())
	}
	if l.Price.IsNegative() || l.Cost.IsNegative() {
		return invalid(l, "price and cost must not be negative")
	}
	return nil
}

// lots is a FIFO queue of open lots of a single symbol, oldest first.
type lots []Lot

// total returns the quantity held by all lots.
func (l lots) total() Quantity {
	var q Quantity
	for _, lot := range l {
		q = q.Add(lot.Quantity)
	}
	return q
}

// before returns true if a must be consumed before b. Both lots have the
// same symbol.
func before(a, b Lot, tb TieBreak) bool {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c < 0
	}
	// unit costs are compared as a.Cost/a.Quantity vs b.Cost/b.Quantity
	ua := a.Cost.Decimal().Mul(b.Quantity.Decimal())
	ub := b.Cost.Decimal().Mul(a.Quantity.Decimal())
	switch tb {
	case HighestCostFirst:
		return ua.GreaterThan(ub)
	case LowestCostFirst:
		return ua.LessThan(ub)
	default:
		return compareKeys(a.Key, b.Key) < 0
	}
}

// insert adds a new lot after every lot that must be consumed before it.
func (l lots) insert(lot Lot, tb TieBreak) lots {
	i := len(l)
	for i > 0 && before(lot, l[i-1], tb) {
		i--
	}
	return slices.Insert(l, i, lot)
}

// consumption is the part of a lot used to fund a sale.
type consumption struct {
	Lot      Lot // the lot as it was before the sale
	Quantity Quantity
	Cost     Money
}

// sell consumes quantityToSell from the head of the queue. It returns the
// remaining queue and the consumed parts, oldest first.
//
// The caller must have checked that the queue holds enough shares.
func (l lots) sell(quantityToSell Quantity) (lots, []consumption) {
	var used []consumption
	remainingLots := l
	for !quantityToSell.IsZero() && len(remainingLots) > 0 {
		head := remainingLots[0]
		if head.Quantity.GreaterThan(quantityToSell) {
			// Partial sale from this lot
			costOfSoldPortion := head.Cost.Mul(quantityToSell).Div(head.Quantity)
			used = append(used, consumption{Lot: head, Quantity: quantityToSell, Cost: costOfSoldPortion})
			head.Quantity = head.Quantity.Sub(quantityToSell)
			head.Cost = head.Cost.Sub(costOfSoldPortion)
			remainingLots = append(lots{head}, remainingLots[1:]...)
			quantityToSell = Quantity{}
		} else {
			// Full sale of this lot
			used = append(used, consumption{Lot: head, Quantity: head.Quantity, Cost: head.Cost})
			quantityToSell = quantityToSell.Sub(head.Quantity)
			remainingLots = remainingLots[1:]
		}
	}
	return slices.Clip(remainingLots), used
}
