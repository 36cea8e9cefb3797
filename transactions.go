package espp

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/etnz/espp/date"
)

// TxType identifies the kind of a Transaction.
type TxType string

// Transaction types every importer normalizes into.
const (
	Deposit          TxType = "DEPOSIT"           // shares deposited by the plan (ESPP purchase, RSU vest).
	Buy              TxType = "BUY"               // shares bought on the market.
	Sell             TxType = "SELL"              // shares sold.
	Dividend         TxType = "DIVIDEND"          // cash dividend, gross.
	DividendReinvest TxType = "DIVIDEND_REINVEST" // shares bought with a dividend.
	TaxWithheld      TxType = "TAX_WITHHELD"      // tax withheld at source on a dividend.
	Fee              TxType = "FEE"               // standalone broker fee.
)

// ParseTxType parses a transaction type, case insensitive.
func ParseTxType(s string) (TxType, error) {
	t := TxType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case Deposit, Buy, Sell, Dividend, DividendReinvest, TaxWithheld, Fee:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// acquires returns true for types that open a new lot.
func (t TxType) acquires() bool { return t == Deposit || t == Buy || t == DividendReinvest }

// isCash returns true for types that only carry an amount of cash.
func (t TxType) isCash() bool { return t == Dividend || t == TaxWithheld || t == Fee }

// Transaction is the common record shape all broker importers produce.
//
// Transactions are values: the engine never modifies one it has been given.
type Transaction struct {
	Type     TxType
	Date     date.Date
	Symbol   string
	Quantity Quantity  // number of shares, for DEPOSIT, BUY, SELL, DIVIDEND_REINVEST.
	Price    Money     // unit price.
	Amount   Money     // cash amount for DIVIDEND, TAX_WITHHELD, FEE. Gross proceeds for a SELL, if the broker reports it.
	Fee      Money     // fee charged on this transaction.
	Key      string    // broker ordering key, breaks same date ties.
	Offer    date.Date // ESPP offering date the shares were purchased under, if any.
	Broker   string
	Memo     string
}

// Currency returns the currency of the transaction.
func (t Transaction) Currency() string {
	for _, m := range []Money{t.Price, t.Amount, t.Fee} {
		if m.Currency() != "" {
			return m.Currency()
		}
	}
	return ""
}

func (t Transaction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", t.Date, t.Type)
	if t.Symbol != "" {
		fmt.Fprintf(&b, " %s", t.Symbol)
	}
	if !t.Quantity.IsZero() {
		fmt.Fprintf(&b, " %s @ %s", t.Quantity, t.Price)
	}
	if !t.Amount.IsZero() {
		fmt.Fprintf(&b, " amount %s", t.Amount)
	}
	if t.Key != "" {
		fmt.Fprintf(&b, " #%s", t.Key)
	}
	return b.String()
}

// Proceeds returns the net cash of a SELL: the gross proceeds reported by
// the broker, or quantity × price, minus the fee.
func (t Transaction) Proceeds() Money {
	proceeds := t.Price.Mul(t.Quantity)
	if t.Amount.IsPositive() {
		proceeds = t.Amount
	}
	if !t.Fee.IsZero() {
		proceeds = proceeds.Sub(t.Fee)
	}
	return proceeds
}

// Equal returns true if both transactions record the same fact.
func (t Transaction) Equal(o Transaction) bool { return t.identity() == o.identity() }

// identity is a canonical string of every field of the transaction.
func (t Transaction) identity() string {
	return strings.Join([]string{
		string(t.Type), t.Date.String(), t.Symbol, t.Quantity.String(),
		t.Price.Decimal().String(), t.Amount.Decimal().String(), t.Fee.Decimal().String(), t.Currency(),
		t.Key, t.Offer.String(), t.Broker, t.Memo,
	}, "|")
}

// Validate checks the transaction fields. The returned error is always a
// *ValidationError naming the transaction.
func (t Transaction) Validate() error {
	if _, err := ParseTxType(string(t.Type)); err != nil {
		return invalid(t, "%v", err)
	}
	if t.Date.IsZero() {
		return invalid(t, "date is missing")
	}
	cur := t.Currency()
	if err := ValidateCurrency(cur); err != nil {
		return invalid(t, "%v", err)
	}
	for _, m := range []Money{t.Price, t.Amount, t.Fee} {
		if m.Currency() != "" && m.Currency() != cur {
			return invalid(t, "mixed currencies %s and %s", cur, m.Currency())
		}
	}
	if t.Fee.IsNegative() {
		return invalid(t, "fee must not be negative, got %s", t.Fee)
	}

	switch {
	case t.Type.acquires() || t.Type == Sell:
		if t.Symbol == "" {
			return invalid(t, "symbol is missing")
		}
		if !t.Quantity.IsPositive() {
			return invalid(t, "quantity must be positive, got %s", t.Quantity)
		}
		if t.Price.IsNegative() {
			return invalid(t, "price must not be negative, got %s", t.Price)
		}
		if t.Type == Sell && !t.Price.IsPositive() && !t.Amount.IsPositive() {
			return invalid(t, "sell needs a positive price or proceeds amount")
		}
		if t.Type != Sell && !t.Amount.IsZero() {
			return invalid(t, "%s does not carry an amount", t.Type)
		}
	case t.Type.isCash():
		if t.Type == Dividend && t.Symbol == "" {
			return invalid(t, "symbol is missing")
		}
		if !t.Amount.IsPositive() {
			return invalid(t, "amount must be positive, got %s", t.Amount)
		}
		if !t.Quantity.IsZero() {
			return invalid(t, "%s does not carry a quantity", t.Type)
		}
	}
	return nil
}

// compareKeys orders broker ordering keys: numerically when both are
// integers, lexically otherwise.
func compareKeys(a, b string) int {
	x, errA := strconv.ParseInt(a, 10, 64)
	y, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return cmpInt64(x, y)
	}
	return strings.Compare(a, b)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareTransactions orders transactions by date then ordering key.
func compareTransactions(a, b Transaction) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	return compareKeys(a.Key, b.Key)
}

// SortTransactions returns a copy of txs sorted by date then ordering key.
// The sort is stable: transactions with the same date and key keep their
// relative order.
func SortTransactions(txs []Transaction) []Transaction {
	sorted := slices.Clone(txs)
	slices.SortStableFunc(sorted, compareTransactions)
	return sorted
}

// MergeSources returns the sorted union of several transaction sources.
//
// Broker exports often overlap, so a transaction found in several sources is
// kept once. Identical transactions within one source are all kept: the union
// keeps, for each distinct transaction, the largest number of occurrences
// found in any single source.
func MergeSources(sources ...[]Transaction) []Transaction {
	kept := make(map[string]int)
	var merged []Transaction
	for _, src := range sources {
		seen := make(map[string]int)
		for _, tx := range src {
			id := tx.identity()
			seen[id]++
			if seen[id] > kept[id] {
				kept[id] = seen[id]
				merged = append(merged, tx)
			}
		}
	}
	return SortTransactions(merged)
}
