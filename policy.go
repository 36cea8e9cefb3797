package espp

import (
	"fmt"

	"github.com/etnz/espp/date"
)

// TieBreak selects which of several lots acquired on the same date is
// consumed first.
type TieBreak int

const (
	// ByOrderingKey consumes same date lots in broker ordering key order.
	ByOrderingKey TieBreak = iota
	// HighestCostFirst consumes the most expensive same date lot first.
	HighestCostFirst
	// LowestCostFirst consumes the cheapest same date lot first.
	LowestCostFirst
)

func (t TieBreak) String() string {
	switch t {
	case ByOrderingKey:
		return "key"
	case HighestCostFirst:
		return "highest-cost"
	case LowestCostFirst:
		return "lowest-cost"
	default:
		return "unknown"
	}
}

// ParseTieBreak parses a string into a TieBreak.
func ParseTieBreak(s string) (TieBreak, error) {
	switch s {
	case "key", "":
		return ByOrderingKey, nil
	case "highest-cost":
		return HighestCostFirst, nil
	case "lowest-cost":
		return LowestCostFirst, nil
	default:
		return 0, fmt.Errorf("unknown tie break rule: %q", s)
	}
}

// Term is the holding period classification of a realized sale.
type Term string

const (
	ShortTerm Term = "short"
	LongTerm  Term = "long"
)

// Policy holds the holding period thresholds. They depend on the
// jurisdiction and the plan, so none is hardcoded in the ledger.
type Policy struct {
	// LongTermAfter is the holding period after which a sale is long term.
	// The sale must happen strictly after acquisition + LongTermAfter.
	LongTermAfter date.Span
	// QualifyingAfterOffer is the minimum period between the offer date
	// and the sale for a qualifying disposition.
	QualifyingAfterOffer date.Span
	// QualifyingAfterPurchase is the minimum period between the purchase
	// and the sale for a qualifying disposition.
	QualifyingAfterPurchase date.Span
	// TieBreak orders same date lots.
	TieBreak TieBreak
}

// DefaultPolicy returns the most common US ESPP thresholds: long term after
// one year, qualifying two years after the offer and one year after the
// purchase.
func DefaultPolicy() Policy {
	return Policy{
		LongTermAfter:           date.Years(1),
		QualifyingAfterOffer:    date.Years(2),
		QualifyingAfterPurchase: date.Years(1),
		TieBreak:                ByOrderingKey,
	}
}

// Eligibility returns the first day a lot acquired on acquired, under an
// offer dated offer, can be sold as a qualifying disposition. A zero offer
// date ignores the offer term.
func (p Policy) Eligibility(acquired, offer date.Date) date.Date {
	eligible := acquired.AddSpan(p.QualifyingAfterPurchase)
	if !offer.IsZero() {
		if d := offer.AddSpan(p.QualifyingAfterOffer); d.After(eligible) {
			eligible = d
		}
	}
	return eligible
}

// Term classifies a sale on sold of shares acquired on acquired.
func (p Policy) Term(acquired, sold date.Date) Term {
	if sold.After(acquired.AddSpan(p.LongTermAfter)) {
		return LongTerm
	}
	return ShortTerm
}
