package ical

import (
	"strings"
	"testing"

	goical "github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEvent(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:         "test-uid@example.com",
		Summary:     "Test Event",
		DTStart:     "20260301T090000Z",
		DTEnd:       "20260301T100000Z",
		Description: "A description",
		Location:    "Room 101",
	})

	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "END:VCALENDAR")
	assert.Contains(t, out, "UID:test-uid@example.com")
	assert.Contains(t, out, "SUMMARY:Test Event")
	assert.Contains(t, out, "DTSTART:20260301T090000Z")
	assert.Contains(t, out, "DESCRIPTION:A description")
	assert.Contains(t, out, "LOCATION:Room 101")
	assert.NotContains(t, out, "VTIMEZONE")
}

func TestBuildEventMinimal(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:     "min-uid@example.com",
		Summary: "Minimal",
		DTStart: "20260301T090000Z",
		DTEnd:   "20260301T100000Z",
	})

	assert.Contains(t, out, "UID:min-uid@example.com")
	assert.NotContains(t, out, "DESCRIPTION:")
	assert.NotContains(t, out, "LOCATION:")
}

func TestBuildEventWithTimezone(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:      "tz-uid@example.com",
		Summary:  "TZ Event",
		DTStart:  "20260301T090000",
		DTEnd:    "20260301T100000",
		Timezone: "America/Los_Angeles",
	})

	assert.Contains(t, out, "BEGIN:VTIMEZONE")
	assert.Contains(t, out, "TZID:America/Los_Angeles")
	assert.Contains(t, out, "DTSTART;TZID=America/Los_Angeles:20260301T090000")
	assert.Contains(t, out, "DTEND;TZID=America/Los_Angeles:20260301T100000")
}

func TestBuildEventOffsets(t *testing.T) {
	cases := []struct {
		tz   string
		from string
		to   string
	}{
		{"America/New_York", "TZOFFSETFROM:-0500", "TZOFFSETTO:-0400"},
		{"America/Chicago", "TZOFFSETFROM:-0600", "TZOFFSETTO:-0500"},
		{"America/Denver", "TZOFFSETFROM:-0700", "TZOFFSETTO:-0600"},
		{"Europe/London", "TZOFFSETFROM:+0000", "TZOFFSETTO:+0100"},
		{"Europe/Paris", "TZOFFSETFROM:+0100", "TZOFFSETTO:+0200"},
		{"Pacific/Fake", "TZOFFSETFROM:+0000", "TZOFFSETTO:+0000"},
	}
	for _, tc := range cases {
		t.Run(tc.tz, func(t *testing.T) {
			out := BuildEvent(EventParams{
				UID:      "offsets@example.com",
				Summary:  "Offsets",
				DTStart:  "20260301T090000",
				DTEnd:    "20260301T100000",
				Timezone: tc.tz,
			})
			assert.Contains(t, out, "TZID:"+tc.tz)
			assert.Contains(t, out, tc.from)
			assert.Contains(t, out, tc.to)
		})
	}
}

func TestBuildEventEndsWithCRLF(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:     "crlf@test.com",
		Summary: "CRLF Test",
		DTStart: "20260101T000000Z",
		DTEnd:   "20260101T010000Z",
	})
	assert.True(t, strings.HasSuffix(out, "\r\n"))
	assert.NotContains(t, strings.TrimSuffix(out, "\r\n"), "\n ", "output lines must not be folded")
}

// Generated payloads must decode with a strict RFC 5545 parser.
func TestBuildEventDecodes(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:         "decode@example.com",
		Summary:     "Decode Check",
		DTStart:     "20260301T090000",
		DTEnd:       "20260301T100000",
		Description: "desc",
		Location:    "loc",
		Timezone:    "America/New_York",
	})

	cal, err := goical.NewDecoder(strings.NewReader(out)).Decode()
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 1)
	uid, err := events[0].Props.Text(goical.PropUID)
	require.NoError(t, err)
	assert.Equal(t, "decode@example.com", uid)
	summary, err := events[0].Props.Text(goical.PropSummary)
	require.NoError(t, err)
	assert.Equal(t, "Decode Check", summary)
}

func TestBuildRoundTrip(t *testing.T) {
	out := BuildEvent(EventParams{
		UID:     "rt@example.com",
		Summary: "Round Trip",
		DTStart: "20260301T090000Z",
		DTEnd:   "20260301T100000Z",
	})

	fields := ExtractFields(out)
	assert.Equal(t, "rt@example.com", fields.UID)
	require.NotNil(t, fields.DTStart)
	assert.Equal(t, "20260301T090000Z", *fields.DTStart)
	require.NotNil(t, fields.Summary)
	assert.Equal(t, "Round Trip", *fields.Summary)
}

func TestGenerateUID(t *testing.T) {
	uid := GenerateUID()
	assert.Contains(t, uid, "@caldav-server")
	assert.NotEqual(t, uid, GenerateUID())
}
