package renderer

import (
	"fmt"
	"strings"

	"github.com/etnz/espp"
)

// HoldingsMarkdown renders the open lots of a snapshot, oldest first per
// symbol.
func HoldingsMarkdown(h *espp.Holdings) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Holdings at the end of %d", h.Year)
	if h.Broker != "" {
		fmt.Fprintf(&b, " (%s)", h.Broker)
	}
	fmt.Fprint(&b, "\n\n")

	if len(h.Positions) == 0 {
		fmt.Fprintln(&b, "No open lots.")
		return b.String()
	}

	fmt.Fprintln(&b, "| Symbol | Acquired | Quantity | Price | Cost | Qualifying from |")
	fmt.Fprintln(&b, "|:---|:---|---:|---:|---:|:---|")
	for _, p := range h.Positions {
		var cost espp.Money
		for _, lot := range p.Lots {
			row(&b, p.Symbol, lot.Date, lot.Quantity, lot.Price, lot.Cost, lot.Eligible)
			cost = cost.Add(lot.Cost)
		}
		row(&b, bold(p.Symbol), "", bold(p.Quantity()), "", bold(cost), "")
	}
	return b.String()
}
