package espp

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// encodeResult returns the persisted form of every output of a run.
func encodeResult(t *testing.T, res *TaxResult) string {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeHoldings(&buf, res.Holdings); err != nil {
		t.Fatalf("EncodeHoldings() failed: %v", err)
	}
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(res.Report); err != nil {
		t.Fatalf("cannot encode report: %v", err)
	}
	if err := enc.Encode(res.Summary); err != nil {
		t.Fatalf("cannot encode summary: %v", err)
	}
	return buf.String()
}

func TestTaxes(t *testing.T) {
	txs, wires := history2021()
	res, err := Taxes(TaxInputs{Year: 2021, Broker: "B", Transactions: txs, Wires: wires}, usdOptions())
	if err != nil {
		t.Fatalf("Taxes() failed: %v", err)
	}
	if len(res.Report.Sales) != 2 {
		t.Errorf("got %d sales in 2021, want 2", len(res.Report.Sales))
	}
	if !res.Summary.LongTermGain.Equal(USD(300)) || !res.Summary.ShortTermGain.Equal(USD(50)) {
		t.Errorf("gains long %s short %s, want $300 and $50", res.Summary.LongTermGain, res.Summary.ShortTermGain)
	}
	// the 2020 sale consumed 10 more shares of the lot.
	want := lotX()
	want.Quantity, want.Cost = Q(30), USD(300)
	if diff := cmp.Diff([]Lot{want}, res.Holdings.Lots("X"), cmpOpts); diff != "" {
		t.Errorf("closing lots mismatch (-want +got):\n%s", diff)
	}
	if res.Holdings.Year != 2021 || len(res.Holdings.Positions) != 1 || res.Holdings.Symbols()[0] != "X" {
		t.Errorf("closing holdings = %d %v, want 2021 [X]", res.Holdings.Year, res.Holdings.Symbols())
	}
}

func TestTaxes_Idempotent(t *testing.T) {
	txs, wires := history2021()
	in := TaxInputs{Year: 2021, Broker: "B", Transactions: txs, Wires: wires}

	first, err := Taxes(in, usdOptions())
	if err != nil {
		t.Fatalf("Taxes() failed: %v", err)
	}
	second, err := Taxes(in, usdOptions())
	if err != nil {
		t.Fatalf("Taxes() failed: %v", err)
	}
	if a, b := encodeResult(t, first), encodeResult(t, second); a != b {
		t.Errorf("two runs differ:\n%s\n%s", a, b)
	}
}

// TestTaxes_Chained runs two consecutive years through the persisted
// snapshot, and compares with a single run over the whole history.
func TestTaxes_Chained(t *testing.T) {
	txs, _ := history2021()
	txs = append(txs,
		buy("2022-01-10", "X", 10, 12, "10"),
		sell("2022-05-01", "X", 35, 20, "11"),
	)

	y2021, err := Taxes(TaxInputs{Year: 2021, Broker: "B", Transactions: txs}, usdOptions())
	if err != nil {
		t.Fatalf("Taxes(2021) failed: %v", err)
	}
	var snapshot bytes.Buffer
	if err := EncodeHoldings(&snapshot, y2021.Holdings); err != nil {
		t.Fatalf("EncodeHoldings() failed: %v", err)
	}
	prior, err := DecodeHoldings(&snapshot)
	if err != nil {
		t.Fatalf("DecodeHoldings() failed: %v", err)
	}

	chained, err := Taxes(TaxInputs{Year: 2022, Broker: "B", Transactions: txs, Prior: prior}, usdOptions())
	if err != nil {
		t.Fatalf("Taxes(2022) from snapshot failed: %v", err)
	}
	whole, err := Taxes(TaxInputs{Year: 2022, Broker: "B", Transactions: txs}, usdOptions())
	if err != nil {
		t.Fatalf("Taxes(2022) from history failed: %v", err)
	}
	if a, b := encodeResult(t, chained), encodeResult(t, whole); a != b {
		t.Errorf("chained run differs from the full history run:\n%s\n%s", a, b)
	}
	if got := chained.Holdings.Balance()["X"]; !got.Equal(Q(5)) {
		t.Errorf("X held at the end of 2022 = %s, want 5", got)
	}
}

func TestTaxes_Errors(t *testing.T) {
	txs, _ := history2021()
	testCases := []struct {
		name string
		in   TaxInputs
		want error
	}{
		{
			name: "snapshot of the wrong year",
			in:   TaxInputs{Year: 2022, Broker: "B", Transactions: txs, Prior: &Holdings{Year: 2020, Broker: "B"}},
			want: ErrValidation,
		},
		{
			name: "invalid wire",
			in:   TaxInputs{Year: 2021, Broker: "B", Transactions: txs, Wires: []Wire{{Date: day("2021-01-01"), Amount: USD(1), Direction: "UP"}}},
			want: ErrValidation,
		},
		{
			name: "incomplete history",
			in:   TaxInputs{Year: 2021, Broker: "B", Transactions: txs[1:]},
			want: ErrInsufficientLots,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Taxes(tc.in, usdOptions())
			if !errors.Is(err, tc.want) {
				t.Errorf("Taxes() error = %v, want %v", err, tc.want)
			}
			if res != nil {
				t.Error("Taxes() returned a partial result with an error")
			}
		})
	}
}
