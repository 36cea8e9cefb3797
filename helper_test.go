package espp

import (
	"github.com/etnz/espp/date"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

// USD is a helper for test to create usd money from const
func USD(v float64) Money { return M(v, "USD") }

// NOK is a helper for test to create nok money from const
func NOK(v float64) Money { return M(v, "NOK") }

// day is a helper for test to parse dates.
func day(s string) date.Date { return date.MustParse(s) }

// cmpOpts compares the value types of the package by value.
var cmpOpts = cmp.Options{
	cmp.Comparer(func(a, b Money) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b Quantity) bool { return a.Equal(b) }),
	cmp.Comparer(func(a, b date.Date) bool { return a == b }),
	cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
}

// buy is a USD BUY of quantity shares at price.
func buy(on, symbol string, quantity, price float64, key string) Transaction {
	return Transaction{Type: Buy, Date: day(on), Symbol: symbol, Quantity: Q(quantity), Price: USD(price), Key: key}
}

// sell is a USD SELL of quantity shares at price.
func sell(on, symbol string, quantity, price float64, key string) Transaction {
	return Transaction{Type: Sell, Date: day(on), Symbol: symbol, Quantity: Q(quantity), Price: USD(price), Key: key}
}

// cash is a USD cash transaction of the given type.
func cash(typ TxType, on, symbol string, amount float64, key string) Transaction {
	return Transaction{Type: typ, Date: day(on), Symbol: symbol, Amount: USD(amount), Key: key}
}

// table is a RateTable against NOK with one rate per currency and day.
func table(obs ...Observation) *RateTable {
	t, err := NewRateTable("NOK", DefaultMaxLookback, obs)
	if err != nil {
		panic(err)
	}
	return t
}

// usdnok is an observation of the USD rate on a day.
func usdnok(on string, rate float64) Observation {
	return Observation{Date: day(on), Base: "NOK", Currency: "USD", Rate: decimal.NewFromFloat(rate)}
}

// usdOptions are the default options reporting in USD.
func usdOptions() Options {
	opts := DefaultOptions()
	opts.Currency = "USD"
	return opts
}
