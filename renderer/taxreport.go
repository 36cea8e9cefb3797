package renderer

import (
	"fmt"
	"io"
	"strings"

	"github.com/etnz/espp"
)

// TaxReportMarkdown renders the report and the summary of a tax year.
func TaxReportMarkdown(r *espp.TaxReport, s *espp.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Tax Report %d", r.Year)
	if r.Broker != "" {
		fmt.Fprintf(&b, " (%s)", r.Broker)
	}
	fmt.Fprint(&b, "\n\n")
	fmt.Fprintf(&b, "Amounts in %s unless stated otherwise.\n\n", r.Currency)

	fmt.Fprint(&b, "## Summary\n\n")
	fmt.Fprintln(&b, "| Item | Amount |")
	fmt.Fprintln(&b, "|:---|---:|")
	row(&b, "Proceeds", s.Proceeds)
	row(&b, "Cost basis", s.Cost)
	row(&b, "Short term gain", s.ShortTermGain.SignedString())
	row(&b, "Long term gain", s.LongTermGain.SignedString())
	row(&b, "Qualifying gain", s.QualifyingGain.SignedString())
	row(&b, bold("Total gain"), bold(s.TotalGain().SignedString()))
	row(&b, "Dividends", s.Dividends)
	row(&b, "Tax withheld", s.TaxWithheld)
	row(&b, "Fees", s.Fees)
	row(&b, "Wires in", s.WiresIn)
	row(&b, "Wires out", s.WiresOut)
	row(&b, "Net wires", s.NetWires.SignedString())

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "\n## Realized Sales\n\n")
		fmt.Fprintln(w, "| Sold | Symbol | Acquired | Quantity | Cost | Proceeds | Gain | Term | Qualifying |")
		fmt.Fprintln(w, "|:---|:---|:---|---:|---:|---:|---:|:---:|:---:|")
		for _, sale := range r.Sales {
			row(w, sale.Date, sale.Symbol, sale.Acquired, sale.Quantity,
				sale.Reported.Cost, sale.Reported.Proceeds, sale.Reported.Gain.SignedString(),
				sale.Term, yesNo(sale.Qualifying))
		}
		return len(r.Sales) > 0
	})

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "\n## Dividends\n\n")
		fmt.Fprintln(w, "| Date | Symbol | Gross | Withheld | Gross | Withheld |")
		fmt.Fprintln(w, "|:---|:---|---:|---:|---:|---:|")
		for _, d := range r.Dividends {
			row(w, d.Date, d.Symbol, d.Gross, orDash(d.Withheld), d.ReportedGross, orDash(d.ReportedWithheld))
		}
		return len(r.Dividends) > 0
	})

	ConditionalBlock(&b, func(w io.Writer) bool {
		fmt.Fprint(w, "\n## Warnings\n\n")
		for _, warning := range s.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
		return len(s.Warnings) > 0
	})

	return b.String()
}
