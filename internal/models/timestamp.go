package models

import (
	"strings"
	"time"
)

// DateBucketLayout is the layout of a calendar-day bucket key
const DateBucketLayout = "2006-01-02"

// TimestampLayout is how a parsed timestamp is rendered in reports
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout pairs the documented pattern of an accepted timestamp format
// with the Go layout that parses it.
type DateLayout struct {
	Pattern string
	Layout  string
}

// DateLayouts are the accepted timestamp formats in precedence order. The
// first layout that parses wins. Day, month and hour accept one or two digits.
var DateLayouts = []DateLayout{
	{Pattern: "YYYY-MM-DD HH:MM:SS", Layout: "2006-1-2 15:4:5"},
	{Pattern: "YYYY-MM-DD HH:MM", Layout: "2006-1-2 15:4"},
	{Pattern: "DD-MM-YYYY HH:MM:SS", Layout: "2-1-2006 15:4:5"},
	{Pattern: "DD-MM-YYYY HH:MM", Layout: "2-1-2006 15:4"},
	{Pattern: "DD/MM/YYYY HH:MM:SS", Layout: "2/1/2006 15:4:5"},
	{Pattern: "DD/MM/YYYY HH:MM", Layout: "2/1/2006 15:4"},
}

// ParseTimestamp parses v against DateLayouts in loc (UTC when nil). It
// reports false when v is not a string, is blank, or matches no layout.
func ParseTimestamp(v any, loc *time.Location) (time.Time, bool) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	// time.Parse accepts a fractional second after the seconds field even
	// when the layout has none, so anything beyond the fixed shape is rejected
	// up front.
	if strings.IndexFunc(s, notTimestampRune) >= 0 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range DateLayouts {
		if t, err := time.ParseInLocation(layout.Layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func notTimestampRune(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return false
	case r == '-', r == '/', r == ':', r == ' ':
		return false
	}
	return true
}

// DayOf truncates t to midnight of its calendar day in t's location
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AcceptedDatePatterns lists the documented patterns in precedence order
func AcceptedDatePatterns() []string {
	out := make([]string, len(DateLayouts))
	for i, l := range DateLayouts {
		out[i] = l.Pattern
	}
	return out
}
