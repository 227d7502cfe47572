// Package locale formats sensor values and timestamps for the user's locale,
// the way a browser's toLocaleString would.
package locale

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var supported = []language.Tag{
	language.Und, // fallback: ISO-like
	language.AmericanEnglish,
	language.BritishEnglish,
	language.German,
	language.French,
	language.Japanese,
}

var layouts = []string{
	"2006-01-02 15:04:05",
	"1/2/2006, 3:04:05 PM",
	"02/01/2006, 15:04:05",
	"2.1.2006, 15:04:05",
	"02/01/2006 15:04:05",
	"2006/1/2 15:04:05",
}

var matcher = language.NewMatcher(supported)

// Formatter renders numbers and times for one locale.
type Formatter struct {
	layout  string
	printer *message.Printer
	loc     *time.Location
}

// New returns a formatter for a BCP 47 tag such as "de-DE". Unknown or
// malformed tags fall back to an ISO layout with en number formatting.
func New(tag string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	t, err := language.Parse(tag)
	if err != nil {
		t = language.Und
	}
	_, idx, conf := matcher.Match(t)
	if conf == language.No {
		idx = 0
	}
	printTag := t
	if idx == 0 {
		printTag = language.English
	}
	return &Formatter{
		layout:  layouts[idx],
		printer: message.NewPrinter(printTag),
		loc:     loc,
	}
}

// Timestamp formats unix seconds.
func (f *Formatter) Timestamp(unix int64) string {
	return f.Time(time.Unix(unix, 0))
}

// Time formats t in the formatter's zone.
func (f *Formatter) Time(t time.Time) string {
	return t.In(f.loc).Format(f.layout)
}

// Number formats v with one decimal and the locale's separators.
func (f *Formatter) Number(v float64) string {
	return f.printer.Sprintf("%.1f", v)
}

// Count formats an integer with the locale's grouping.
func (f *Formatter) Count(n int) string {
	return f.printer.Sprintf("%d", n)
}

// Temperature formats a Celsius value, e.g. "24.5 °C".
func (f *Formatter) Temperature(v float64) string {
	return f.Number(v) + " °C"
}

// Humidity formats a relative humidity value, e.g. "61.0 %".
func (f *Formatter) Humidity(v float64) string {
	return f.Number(v) + " %"
}
