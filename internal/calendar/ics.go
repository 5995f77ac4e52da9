package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Event is a single calendar entry exported for a confirmed viewing.
type Event struct {
	UID      string
	Start    time.Time
	End      time.Time
	Summary  string
	Location string
}

const icsTimeLayout = "20060102T150405Z"

// RenderICS produces an iCalendar document with one VEVENT per event.
// Times are emitted in UTC.
func RenderICS(events []Event, now time.Time) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//rentora//viewings//EN\r\n")
	b.WriteString("CALSCALE:GREGORIAN\r\n")

	stamp := now.UTC().Format(icsTimeLayout)
	for _, ev := range events {
		b.WriteString("BEGIN:VEVENT\r\n")
		fmt.Fprintf(&b, "UID:%s\r\n", escapeText(ev.UID))
		fmt.Fprintf(&b, "DTSTAMP:%s\r\n", stamp)
		fmt.Fprintf(&b, "DTSTART:%s\r\n", ev.Start.UTC().Format(icsTimeLayout))
		fmt.Fprintf(&b, "DTEND:%s\r\n", ev.End.UTC().Format(icsTimeLayout))
		fmt.Fprintf(&b, "SUMMARY:%s\r\n", escapeText(ev.Summary))
		if ev.Location != "" {
			fmt.Fprintf(&b, "LOCATION:%s\r\n", escapeText(ev.Location))
		}
		b.WriteString("END:VEVENT\r\n")
	}

	b.WriteString("END:VCALENDAR\r\n")
	return b.String()
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
		"\r", "",
	)
	return r.Replace(s)
}
