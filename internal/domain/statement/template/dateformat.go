package template

import (
	"fmt"
	"strings"
	"time"
)

// dateTokens maps human date tokens to Go layout fragments, longest first so
// YYYY is not read as two YY. Matching is case-insensitive.
var dateTokens = []struct{ token, layout string }{
	{"MONTH", "January"},
	{"YYYY", "2006"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MON", "Jan"},
	{"YY", "06"},
	{"MM", "01"},
	{"DD", "02"},
	{"M", "1"},
	{"D", "2"},
}

// layoutCheckDate has a distinct day, month and year so a layout missing any
// of them fails the round trip.
var layoutCheckDate = time.Date(2025, time.November, 23, 0, 0, 0, 0, time.UTC)

// GoLayout converts a template date format such as "DD-MM-YYYY" or
// "DD-Mon-YYYY" to a Go time layout. A format containing digits is taken as a
// Go layout already. An empty format yields an empty layout. Unknown letters,
// or a layout that does not carry a day, a month and a year, are errors.
func GoLayout(format string) (string, error) {
	if format == "" {
		return "", nil
	}

	layout := format
	if !strings.ContainsAny(format, "0123456789") {
		var err error
		if layout, err = convertTokens(format); err != nil {
			return "", err
		}
	}

	parsed, err := time.Parse(layout, layoutCheckDate.Format(layout))
	if err != nil || !parsed.Equal(layoutCheckDate) {
		return "", fmt.Errorf("date format %q must contain a day, a month and a year", format)
	}
	return layout, nil
}

func convertTokens(format string) (string, error) {
	var b strings.Builder
	upper := strings.ToUpper(format)
	for i := 0; i < len(format); {
		if !isLetter(format[i]) {
			b.WriteByte(format[i])
			i++
			continue
		}
		matched := false
		for _, dt := range dateTokens {
			if strings.HasPrefix(upper[i:], dt.token) {
				b.WriteString(dt.layout)
				i += len(dt.token)
				matched = true
				break
			}
		}
		if !matched {
			j := i
			for j < len(format) && isLetter(format[j]) {
				j++
			}
			return "", fmt.Errorf("date format %q: unknown token %q", format, format[i:j])
		}
	}
	return b.String(), nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
