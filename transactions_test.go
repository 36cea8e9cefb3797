package espp

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTxType(t *testing.T) {
	testCases := []struct {
		in      string
		want    TxType
		wantErr bool
	}{
		{in: "BUY", want: Buy},
		{in: "deposit", want: Deposit},
		{in: " Dividend_Reinvest ", want: DividendReinvest},
		{in: "tax_withheld", want: TaxWithheld},
		{in: "SPLIT", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range testCases {
		got, err := ParseTxType(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseTxType(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTxType(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTransaction_Validate(t *testing.T) {
	withFee := func(tx Transaction, fee Money) Transaction { tx.Fee = fee; return tx }
	withAmount := func(tx Transaction, amount Money) Transaction { tx.Amount = amount; return tx }

	testCases := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{name: "buy", tx: buy("2021-01-01", "X", 1, 10, "1")},
		{name: "free deposit", tx: Transaction{Type: Deposit, Date: day("2021-01-01"), Symbol: "X", Quantity: Q(1), Price: USD(0), Key: "1"}},
		{name: "sell with proceeds only", tx: Transaction{Type: Sell, Date: day("2021-01-01"), Symbol: "X", Quantity: Q(1), Amount: USD(10)}},
		{name: "dividend", tx: cash(Dividend, "2021-01-01", "X", 10, "")},
		{name: "fee without symbol", tx: cash(Fee, "2021-01-01", "", 10, "")},
		{name: "missing date", tx: Transaction{Type: Buy, Symbol: "X", Quantity: Q(1), Price: USD(10)}, wantErr: true},
		{name: "missing currency", tx: Transaction{Type: Buy, Date: day("2021-01-01"), Symbol: "X", Quantity: Q(1)}, wantErr: true},
		{name: "mixed currencies", tx: withFee(buy("2021-01-01", "X", 1, 10, ""), NOK(1)), wantErr: true},
		{name: "negative fee", tx: withFee(buy("2021-01-01", "X", 1, 10, ""), USD(-1)), wantErr: true},
		{name: "zero quantity", tx: buy("2021-01-01", "X", 0, 10, ""), wantErr: true},
		{name: "negative price", tx: buy("2021-01-01", "X", 1, -10, ""), wantErr: true},
		{name: "free sale", tx: sell("2021-01-01", "X", 1, 0, ""), wantErr: true},
		{name: "buy with amount", tx: withAmount(buy("2021-01-01", "X", 1, 10, ""), USD(10)), wantErr: true},
		{name: "dividend without symbol", tx: cash(Dividend, "2021-01-01", "", 10, ""), wantErr: true},
		{name: "negative dividend", tx: cash(Dividend, "2021-01-01", "X", -10, ""), wantErr: true},
		{name: "dividend with quantity", tx: Transaction{Type: Dividend, Date: day("2021-01-01"), Symbol: "X", Quantity: Q(1), Amount: USD(10)}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() error %v is not a validation error", err)
			}
		})
	}
}

func TestTransaction_Proceeds(t *testing.T) {
	s := sell("2021-01-01", "X", 10, 15, "")
	if got := s.Proceeds(); !got.Equal(USD(150)) {
		t.Errorf("Proceeds() = %s, want $150", got)
	}
	s.Fee = USD(1.5)
	if got := s.Proceeds(); !got.Equal(USD(148.5)) {
		t.Errorf("Proceeds() with fee = %s, want $148.50", got)
	}
	// the gross amount reported by the broker wins over quantity x price.
	s.Amount = USD(149.99)
	if got := s.Proceeds(); !got.Equal(USD(148.49)) {
		t.Errorf("Proceeds() with amount = %s, want $148.49", got)
	}
}

func TestSortTransactions(t *testing.T) {
	txs := []Transaction{
		buy("2021-01-02", "X", 1, 1, "1"),
		buy("2021-01-01", "X", 1, 1, "10"),
		buy("2021-01-01", "X", 1, 1, "9"),
		buy("2021-01-01", "X", 1, 1, "b"),
		buy("2021-01-01", "X", 1, 1, "a"),
		buy("2021-01-01", "Y", 1, 1, "9"),
	}
	got := SortTransactions(txs)
	var keys []string
	for _, tx := range got {
		keys = append(keys, tx.Date.String()+"/"+tx.Key+tx.Symbol)
	}
	want := []string{"2021-01-01/9X", "2021-01-01/9Y", "2021-01-01/10X", "2021-01-01/aX", "2021-01-01/bX", "2021-01-02/1X"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("SortTransactions() order mismatch (-want +got):\n%s", diff)
	}
	if txs[0].Key != "1" {
		t.Error("SortTransactions() modified its input")
	}
}

func TestMergeSources(t *testing.T) {
	a := buy("2021-01-01", "X", 1, 10, "1")
	b := buy("2021-01-02", "X", 1, 10, "2")
	c := cash(Dividend, "2021-03-01", "X", 1, "3")

	testCases := []struct {
		name    string
		sources [][]Transaction
		want    []Transaction
	}{
		{
			name:    "overlapping exports",
			sources: [][]Transaction{{a, b}, {b, c}},
			want:    []Transaction{a, b, c},
		},
		{
			name:    "repeated within a source",
			sources: [][]Transaction{{a, a, b}, {a, b}},
			want:    []Transaction{a, a, b},
		},
		{
			name:    "repeated more in another source",
			sources: [][]Transaction{{a}, {c, a, a}},
			want:    []Transaction{a, a, c},
		},
		{
			name:    "no source",
			sources: nil,
			want:    nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := MergeSources(tc.sources...)
			if diff := cmp.Diff(tc.want, got, cmpOpts); diff != "" {
				t.Errorf("MergeSources() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTransactionsEncoding(t *testing.T) {
	deposit := Transaction{
		Type: Deposit, Date: day("2021-01-10"), Symbol: "X", Quantity: Q(12.5),
		Price: USD(17.85), Fee: USD(0.5), Key: "7", Offer: day("2020-07-01"), Broker: "B", Memo: "espp",
	}
	txs := []Transaction{cash(Dividend, "2021-06-15", "X", 25, "d1"), deposit}

	var buf bytes.Buffer
	if err := EncodeTransactions(&buf, txs); err != nil {
		t.Fatalf("EncodeTransactions() failed: %v", err)
	}
	want := `{"type":"DEPOSIT","date":"2021-01-10","symbol":"X","quantity":12.5,"price":17.85,"fee":0.5,"currency":"USD","key":"7","offer":"2020-07-01","broker":"B","memo":"espp"}
{"type":"DIVIDEND","date":"2021-06-15","symbol":"X","amount":25,"currency":"USD","key":"d1"}
`
	if buf.String() != want {
		t.Errorf("EncodeTransactions() =\n%s\nwant:\n%s", buf.String(), want)
	}

	got, err := DecodeTransactions(&buf)
	if err != nil {
		t.Fatalf("DecodeTransactions() failed: %v", err)
	}
	// decoding labels zero amounts with the transaction currency, Equal
	// compares the recorded facts.
	sameFact := cmp.Comparer(func(a, b Transaction) bool { return a.Equal(b) })
	if diff := cmp.Diff(SortTransactions(txs), got, sameFact); diff != "" {
		t.Errorf("DecodeTransactions() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTransactions_Errors(t *testing.T) {
	testCases := []struct {
		name     string
		jsonl    string
		wantLine string
	}{
		{
			name:     "unknown field",
			jsonl:    `{"type":"BUY","date":"2021-01-01","symbol":"X","quantity":1,"price":1,"currency":"USD","shares":1}`,
			wantLine: "line 1",
		},
		{
			name: "invalid record",
			jsonl: `{"type":"BUY","date":"2021-01-01","symbol":"X","quantity":1,"price":1,"currency":"USD"}

{"type":"SELL","date":"2021-01-02","symbol":"X","quantity":-1,"price":1,"currency":"USD"}`,
			wantLine: "line 3",
		},
		{
			name:     "unknown type",
			jsonl:    `{"type":"SPLIT","date":"2021-01-01","symbol":"X","quantity":2,"currency":"USD"}`,
			wantLine: "line 1",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTransactions(strings.NewReader(tc.jsonl))
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("DecodeTransactions() error = %v, want a *ValidationError", err)
			}
			if !strings.Contains(verr.Record, tc.wantLine) {
				t.Errorf("error record %q does not name %q", verr.Record, tc.wantLine)
			}
		})
	}
}
