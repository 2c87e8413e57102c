// Package ical provides line-based iCalendar field extraction and
// generation. Stored data is kept verbatim, so parsing only has to pull
// out the handful of properties used for indexing and never needs to
// round-trip a full component tree.
package ical

import "strings"

// Fields holds the indexed properties extracted from raw iCalendar data.
// A nil pointer means the property was absent.
type Fields struct {
	UID       string
	Component string
	DTStart   *string
	DTEnd     *string
	Summary   *string
}

// ExtractFields pulls the indexed properties out of raw iCalendar data.
// It tolerates malformed input: anything it cannot interpret is skipped
// and the caller stores the raw bytes unchanged.
func ExtractFields(data string) Fields {
	fields := Fields{Component: "VEVENT"}

	inComponent := false
	for _, line := range unfoldLines(data) {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "BEGIN:VEVENT"):
			inComponent = true
			fields.Component = "VEVENT"
		case strings.HasPrefix(line, "BEGIN:VTODO"):
			inComponent = true
			fields.Component = "VTODO"
		case strings.HasPrefix(line, "END:VEVENT"), strings.HasPrefix(line, "END:VTODO"):
			inComponent = false
		}

		// UID may appear at the VCALENDAR level in some implementations.
		if !inComponent && !strings.HasPrefix(line, "UID") {
			continue
		}

		if v, ok := propertyValue(line, "UID"); ok {
			fields.UID = v
		} else if v, ok := propertyValue(line, "DTSTART"); ok {
			fields.DTStart = &v
		} else if v, ok := propertyValue(line, "DTEND"); ok {
			fields.DTEnd = &v
		} else if v, ok := propertyValue(line, "DUE"); ok {
			// VTODO uses DUE instead of DTEND.
			if fields.DTEnd == nil {
				fields.DTEnd = &v
			}
		} else if v, ok := propertyValue(line, "SUMMARY"); ok {
			fields.Summary = &v
		}
	}

	return fields
}

// propertyValue matches "NAME:value" or "NAME;PARAM=...:value" and
// returns the value part.
func propertyValue(line, name string) (string, bool) {
	if !strings.HasPrefix(line, name) {
		return "", false
	}
	rest := line[len(name):]
	if after, ok := strings.CutPrefix(rest, ":"); ok {
		return after, true
	}
	if strings.HasPrefix(rest, ";") {
		if idx := strings.Index(rest, ":"); idx >= 0 {
			return rest[idx+1:], true
		}
	}
	return "", false
}

// unfoldLines joins iCalendar continuation lines (lines starting with a
// space or tab) onto the preceding line. Both CRLF and bare LF endings
// are accepted.
func unfoldLines(data string) []string {
	var result []string
	var current strings.Builder
	haveCurrent := false

	for _, raw := range strings.Split(data, "\n") {
		line := strings.TrimSuffix(raw, "\r")

		if strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t") {
			current.WriteString(line[1:])
			continue
		}
		if haveCurrent && current.Len() > 0 {
			result = append(result, current.String())
		}
		current.Reset()
		current.WriteString(line)
		haveCurrent = line != ""
	}
	if haveCurrent && current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
