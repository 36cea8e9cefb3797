package date

import (
	"fmt"
	"regexp"
	"strconv"
)

// Span is a calendar length expressed in years, months and days.
//
// Spans are used for holding periods: "one year after acquisition" is not a
// fixed number of days.
type Span struct {
	Years  int `json:"years,omitempty"`
	Months int `json:"months,omitempty"`
	Days   int `json:"days,omitempty"`
}

// Years returns a span of n years.
func Years(n int) Span { return Span{Years: n} }

// IsZero reports whether the span is empty.
func (s Span) IsZero() bool { return s == Span{} }

// String formats the span like "1y6m", "2y", "30d".
func (s Span) String() string {
	if s.IsZero() {
		return "0d"
	}
	var str string
	if s.Years != 0 {
		str += strconv.Itoa(s.Years) + "y"
	}
	if s.Months != 0 {
		str += strconv.Itoa(s.Months) + "m"
	}
	if s.Days != 0 {
		str += strconv.Itoa(s.Days) + "d"
	}
	return str
}

var spanRegexp = regexp.MustCompile(`^(?:(\d+)y)?(?:(\d+)m)?(?:(\d+)d)?$`)

// ParseSpan parses the format produced by Span.String.
func ParseSpan(str string) (Span, error) {
	m := spanRegexp.FindStringSubmatch(str)
	if m == nil || str == "" {
		return Span{}, fmt.Errorf("invalid span %q want format like \"1y6m15d\"", str)
	}
	var s Span
	for i, field := range []*int{&s.Years, &s.Months, &s.Days} {
		if m[i+1] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Span{}, fmt.Errorf("invalid span %q: %w", str, err)
		}
		*field = v
	}
	return s, nil
}
