package ical

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventParams describes a VEVENT to generate. Description, Location and
// Timezone are optional; empty strings omit the corresponding lines.
type EventParams struct {
	UID         string
	Summary     string
	DTStart     string
	DTEnd       string
	Description string
	Location    string
	Timezone    string
}

// BuildEvent produces a minimal VCALENDAR wrapping a single VEVENT.
//
// If Timezone names an IANA zone, DTSTART/DTEND are emitted with a TZID
// parameter and a compact RRULE-based VTIMEZONE is included. Otherwise
// the datetime values are written verbatim, so callers supply UTC
// Z-suffixed values or any other valid iCal datetime form.
//
// Output lines are CRLF-terminated and never folded.
func BuildEvent(p EventParams) string {
	now := time.Now().UTC().Format("20060102T150405Z")

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//CalDAV Server//EN",
	}

	if p.Timezone != "" {
		lines = append(lines,
			"BEGIN:VTIMEZONE",
			"TZID:"+p.Timezone,
			"BEGIN:STANDARD",
			"DTSTART:19671029T020000",
			"RRULE:FREQ=YEARLY;BYDAY=1SU;BYMONTH=11",
			"TZOFFSETFROM:"+standardOffset(p.Timezone),
			"TZOFFSETTO:"+daylightOffset(p.Timezone),
			"END:STANDARD",
			"BEGIN:DAYLIGHT",
			"DTSTART:20070311T020000",
			"RRULE:FREQ=YEARLY;BYDAY=2SU;BYMONTH=3",
			"TZOFFSETFROM:"+daylightOffset(p.Timezone),
			"TZOFFSETTO:"+standardOffset(p.Timezone),
			"END:DAYLIGHT",
			"END:VTIMEZONE",
		)
	}

	lines = append(lines,
		"BEGIN:VEVENT",
		"UID:"+p.UID,
		"DTSTAMP:"+now,
	)

	if p.Timezone != "" {
		lines = append(lines,
			fmt.Sprintf("DTSTART;TZID=%s:%s", p.Timezone, p.DTStart),
			fmt.Sprintf("DTEND;TZID=%s:%s", p.Timezone, p.DTEnd),
		)
	} else {
		lines = append(lines, "DTSTART:"+p.DTStart, "DTEND:"+p.DTEnd)
	}

	lines = append(lines, "SUMMARY:"+p.Summary)

	if p.Description != "" {
		lines = append(lines, "DESCRIPTION:"+p.Description)
	}
	if p.Location != "" {
		lines = append(lines, "LOCATION:"+p.Location)
	}

	lines = append(lines, "END:VEVENT", "END:VCALENDAR")

	return strings.Join(lines, "\r\n") + "\r\n"
}

// standardOffset returns the UTC offset of the standard (winter) period
// for a handful of common zones. Unknown zones fall back to +0000.
func standardOffset(tz string) string {
	switch tz {
	case "America/Los_Angeles", "America/Vancouver":
		return "-0800"
	case "America/Denver", "America/Phoenix":
		return "-0700"
	case "America/Chicago":
		return "-0600"
	case "America/New_York", "America/Toronto":
		return "-0500"
	case "Europe/London":
		return "+0000"
	case "Europe/Paris", "Europe/Berlin", "Europe/Rome":
		return "+0100"
	case "Asia/Tokyo":
		return "+0900"
	case "Australia/Sydney":
		return "+1100"
	default:
		return "+0000"
	}
}

// daylightOffset returns the UTC offset of the daylight-saving period.
// Zones without DST reuse their standard offset.
func daylightOffset(tz string) string {
	switch tz {
	case "America/Los_Angeles", "America/Vancouver":
		return "-0700"
	case "America/Denver":
		return "-0600"
	case "America/Chicago":
		return "-0500"
	case "America/New_York", "America/Toronto":
		return "-0400"
	case "Europe/London":
		return "+0100"
	case "Europe/Paris", "Europe/Berlin", "Europe/Rome":
		return "+0200"
	case "Asia/Tokyo":
		return "+0900"
	case "America/Phoenix":
		return "-0700"
	case "Australia/Sydney":
		return "+1100"
	default:
		return "+0000"
	}
}

// GenerateUID returns a new globally unique event UID.
func GenerateUID() string {
	return fmt.Sprintf("%s@caldav-server", uuid.New())
}
