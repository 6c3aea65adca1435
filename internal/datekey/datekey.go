// Package datekey produces the calendar-day identifier that keys the
// current-day document and history entries.
package datekey

import "time"

const layout = "2006-01-02"

// Today returns the current UTC calendar date as YYYY-MM-DD. The format
// sorts lexically in date order.
func Today() string {
	return time.Now().UTC().Format(layout)
}

// Format renders any instant as its UTC calendar date key.
func Format(t time.Time) string {
	return t.UTC().Format(layout)
}

// Valid reports whether s is a well-formed date key. time.Parse accepts
// unpadded components, so the round trip is checked too.
func Valid(s string) bool {
	t, err := time.Parse(layout, s)
	return err == nil && t.Format(layout) == s
}
