package renderer

import (
	"bytes"
	"fmt"
	"io"

	"github.com/etnz/espp"
)

// ConditionalBlock let you fully write a block and decide at the end to print it or not.
// If the block function returns true, the content is printed to w, otherwise it is discarded.
func ConditionalBlock(w io.Writer, block func(io.Writer) bool) {
	bw := &bytes.Buffer{}
	if block(bw) {
		io.Copy(w, bw)
	}
}

// row prints a markdown table row.
func row(w io.Writer, cells ...any) {
	for _, c := range cells {
		fmt.Fprintf(w, "| %v ", c)
	}
	fmt.Fprintln(w, "|")
}

// bold wraps a cell content in strong emphasis.
func bold(v any) string { return fmt.Sprintf("**%v**", v) }

// yesNo renders a boolean cell.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// orDash renders zero money as a dash.
func orDash(m espp.Money) string {
	if m.IsZero() {
		return "-"
	}
	return m.String()
}
