package espp

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/etnz/espp/date"
	"github.com/shopspring/decimal"
)

// txRecord is the persisted shape of a Transaction: a flat object with a
// single currency shared by price, amount and fee.
type txRecord struct {
	Type     TxType          `json:"type"`
	Date     date.Date       `json:"date"`
	Symbol   string          `json:"symbol,omitempty"`
	Quantity decimal.Decimal `json:"quantity,omitempty"`
	Price    decimal.Decimal `json:"price,omitempty"`
	Amount   decimal.Decimal `json:"amount,omitempty"`
	Fee      decimal.Decimal `json:"fee,omitempty"`
	Currency string          `json:"currency"`
	Key      string          `json:"key,omitempty"`
	Offer    date.Date       `json:"offer,omitempty"`
	Broker   string          `json:"broker,omitempty"`
	Memo     string          `json:"memo,omitempty"`
}

func (r txRecord) transaction() Transaction {
	return Transaction{
		Type:     r.Type,
		Date:     r.Date,
		Symbol:   r.Symbol,
		Quantity: Q(r.Quantity),
		Price:    M(r.Price, r.Currency),
		Amount:   M(r.Amount, r.Currency),
		Fee:      M(r.Fee, r.Currency),
		Key:      r.Key,
		Offer:    r.Offer,
		Broker:   r.Broker,
		Memo:     r.Memo,
	}
}

// MarshalJSON implements the json.Marshaler interface for Transaction.
// Keys are written in a fixed order, zero values are omitted.
func (t Transaction) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("type", t.Type)
	w.Append("date", t.Date)
	w.Optional("symbol", t.Symbol)
	w.Optional("quantity", t.Quantity)
	w.Optional("price", Q(t.Price.Decimal()))
	w.Optional("amount", Q(t.Amount.Decimal()))
	w.Optional("fee", Q(t.Fee.Decimal()))
	w.Append("currency", t.Currency())
	w.Optional("key", t.Key)
	w.Optional("offer", t.Offer)
	w.Optional("broker", t.Broker)
	w.Optional("memo", t.Memo)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var r txRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return err
	}
	*t = r.transaction()
	return nil
}

// lineRef names a line of a JSONL stream in validation errors.
type lineRef int

func (l lineRef) String() string { return fmt.Sprintf("line %d", int(l)) }

// DecodeTransactions decodes transactions from a stream of JSONL data. Every
// transaction is validated, the first invalid one fails the whole decoding.
// Transactions are returned in stream order.
func DecodeTransactions(r io.Reader) ([]Transaction, error) {
	var txs []Transaction
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := bytes.TrimSpace(scanner.Bytes())
		if len(lineBytes) == 0 {
			continue // Skip empty lines
		}

		var tx Transaction
		if err := json.Unmarshal(lineBytes, &tx); err != nil {
			return nil, invalid(lineRef(line), "cannot decode %q: %v", string(lineBytes), err)
		}
		if err := tx.Validate(); err != nil {
			var verr *ValidationError
			if errors.As(err, &verr) {
				verr.Record = fmt.Sprintf("%s (%s)", lineRef(line), verr.Record)
			}
			return nil, err
		}
		txs = append(txs, tx)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading from input: %w", err)
	}
	return txs, nil
}

// EncodeTransaction marshals a single transaction to JSON and writes it to the
// writer, followed by a newline, in JSONL format.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("failed to marshal transaction %s: %w", tx, err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write transaction: %w", err)
	}
	return nil
}

// EncodeTransactions sorts transactions by date and ordering key, and
// persists them to w in JSONL format.
func EncodeTransactions(w io.Writer, txs []Transaction) error {
	for _, tx := range SortTransactions(txs) {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}
