package espp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/etnz/espp/date"
)

// DividendEntry is a dividend received in the tax year, with the tax
// withheld at source on it.
type DividendEntry struct {
	Date     date.Date `json:"date"`
	Symbol   string    `json:"symbol"`
	Gross    Money     `json:"gross"`
	Withheld Money     `json:"withheld"`
	// Reported amounts are converted to the reporting currency on the
	// dividend date.
	ReportedGross    Money `json:"reportedGross"`
	ReportedWithheld Money `json:"reportedWithheld"`
}

// TaxReport details every taxable event of a year.
type TaxReport struct {
	Year      int             `json:"year"`
	Broker    string          `json:"broker"`
	Currency  string          `json:"currency"`
	Sales     []RealizedSale  `json:"sales"`
	Dividends []DividendEntry `json:"dividends"`
}

// Summary holds the totals of a tax year, in the reporting currency.
type Summary struct {
	Year          int    `json:"year"`
	Broker        string `json:"broker"`
	Currency      string `json:"currency"`
	Proceeds      Money  `json:"proceeds"`
	Cost          Money  `json:"cost"`
	ShortTermGain Money  `json:"shortTermGain"`
	LongTermGain  Money  `json:"longTermGain"`
	// QualifyingGain is the part of the gains realized in qualifying
	// dispositions.
	QualifyingGain Money                  `json:"qualifyingGain"`
	Dividends      Money                  `json:"dividends"`
	TaxWithheld    Money                  `json:"taxWithheld"`
	Fees           Money                  `json:"fees"`
	WiresIn        Money                  `json:"wiresIn"`
	WiresOut       Money                  `json:"wiresOut"`
	NetWires       Money                  `json:"netWires"`
	Warnings       []UnmatchedWireWarning `json:"warnings"`
}

// TotalGain returns the sum of short and long term gains.
func (s *Summary) TotalGain() Money { return s.ShortTermGain.Add(s.LongTermGain) }

// compareSales orders realized sales by sale date, then symbol, then the
// ordering key of the sale.
func compareSales(a, b RealizedSale) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
		return c
	}
	return compareKeys(a.Key, b.Key)
}

// Generate aggregates the realized sales, dividends and wires of a tax year.
//
// Realized sales and transactions outside the year are ignored, they may
// be given for the whole history. Wires are matched against the cash
// events of the year; wires dated up to the settlement window after the
// year end may settle events of the year, and wires of the beginning of the
// year may settle events of the end of the previous year. Only warnings
// dated in the year are reported.
func Generate(year int, broker string, sales []RealizedSale, txs []Transaction, wires []Wire, opts Options) (*TaxReport, *Summary, error) {
	cur := opts.Currency
	period := date.Year(year)
	zero := M(0, cur)
	report := &TaxReport{Year: year, Broker: broker, Currency: cur, Sales: []RealizedSale{}, Dividends: []DividendEntry{}}
	summary := &Summary{
		Year: year, Broker: broker, Currency: cur,
		Proceeds: zero, Cost: zero, ShortTermGain: zero, LongTermGain: zero, QualifyingGain: zero,
		Dividends: zero, TaxWithheld: zero, Fees: zero,
		WiresIn: zero, WiresOut: zero, NetWires: zero,
		Warnings: []UnmatchedWireWarning{},
	}

	for _, s := range sales {
		if !period.Contains(s.Date) {
			continue
		}
		report.Sales = append(report.Sales, s)
		summary.Proceeds = summary.Proceeds.Add(s.Reported.Proceeds)
		summary.Cost = summary.Cost.Add(s.Reported.Cost)
		if s.Term == LongTerm {
			summary.LongTermGain = summary.LongTermGain.Add(s.Reported.Gain)
		} else {
			summary.ShortTermGain = summary.ShortTermGain.Add(s.Reported.Gain)
		}
		if s.Qualifying {
			summary.QualifyingGain = summary.QualifyingGain.Add(s.Reported.Gain)
		}
	}
	slices.SortStableFunc(report.Sales, compareSales)

	rates := opts.rates()
	convert := func(m Money, on date.Date) (Money, error) {
		c, err := rates.Convert(m, cur, on)
		if err != nil {
			return Money{}, fmt.Errorf("cannot convert %s on %s: %w", m, on, err)
		}
		return c, nil
	}

	// wires settle cash events up to SettlementDays later, so the events
	// and wires of the end of the previous year take part in the matching.
	window := date.Range{From: period.From.Add(-opts.Wires.SettlementDays), To: period.To}
	var events []Transaction
	var withholdings []Transaction
	for _, tx := range SortTransactions(txs) {
		if !window.Contains(tx.Date) {
			continue
		}
		events = append(events, tx)
		if !period.Contains(tx.Date) {
			continue
		}
		switch tx.Type {
		case Dividend:
			gross, err := convert(tx.Amount, tx.Date)
			if err != nil {
				return nil, nil, err
			}
			report.Dividends = append(report.Dividends, DividendEntry{
				Date: tx.Date, Symbol: tx.Symbol,
				Gross: tx.Amount, Withheld: M(0, tx.Currency()),
				ReportedGross: gross, ReportedWithheld: zero,
			})
			summary.Dividends = summary.Dividends.Add(gross)
		case TaxWithheld:
			withholdings = append(withholdings, tx)
		case Fee:
			fee, err := convert(tx.Amount, tx.Date)
			if err != nil {
				return nil, nil, err
			}
			summary.Fees = summary.Fees.Add(fee)
		}
	}
	// withholdings are attached once every dividend is known, whatever
	// their ordering key.
	for _, tx := range withholdings {
		withheld, err := convert(tx.Amount, tx.Date)
		if err != nil {
			return nil, nil, err
		}
		summary.TaxWithheld = summary.TaxWithheld.Add(withheld)
		i := slices.IndexFunc(report.Dividends, func(d DividendEntry) bool {
			return d.Date == tx.Date && d.Symbol == tx.Symbol && d.Gross.Currency() == tx.Currency()
		})
		if i >= 0 {
			report.Dividends[i].Withheld = report.Dividends[i].Withheld.Add(tx.Amount)
			report.Dividends[i].ReportedWithheld = report.Dividends[i].ReportedWithheld.Add(withheld)
		}
	}

	settled := date.Range{From: window.From, To: period.To.Add(opts.Wires.SettlementDays)}
	var candidates []Wire
	for _, w := range wires {
		if !settled.Contains(w.Date) {
			continue
		}
		candidates = append(candidates, w)
		if !period.Contains(w.Date) {
			continue
		}
		amount, err := convert(w.Amount, w.Date)
		if err != nil {
			return nil, nil, err
		}
		if w.Direction == In {
			summary.WiresIn = summary.WiresIn.Add(amount)
		} else {
			summary.WiresOut = summary.WiresOut.Add(amount)
		}
	}
	summary.NetWires = summary.WiresIn.Sub(summary.WiresOut)

	rec := ReconcileWires(candidates, CashEvents(events), opts)
	for _, w := range rec.Warnings {
		if period.Contains(w.Date) {
			summary.Warnings = append(summary.Warnings, w)
		}
	}
	return report, summary, nil
}
