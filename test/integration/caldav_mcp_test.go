package integration

import (
	"net/http"
	"strings"
	"testing"
)

const sampleEvent = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:evt1\r\n" +
	"DTSTAMP:20260220T120000Z\r\n" +
	"DTSTART:20260301T090000Z\r\n" +
	"DTEND:20260301T100000Z\r\n" +
	"SUMMARY:Planning\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const propfindAllProp = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`

// Full client bootstrap: well-known redirect, unauthenticated discovery,
// authenticated home listing, then an event round trip.
func TestClientBootstrapFlow(t *testing.T) {
	e := newEnv(t, "full")
	e.createUser(t, "alice", "password")
	authz := basicAuth("alice", "password")

	resp := e.dav(t, "PROPFIND", "/.well-known/caldav", "", "", nil)
	if resp.status != http.StatusMovedPermanently {
		t.Fatalf("well-known status = %d", resp.status)
	}
	if loc := resp.header.Get("Location"); loc != "/caldav/" {
		t.Fatalf("well-known location = %q", loc)
	}

	// Discovery without credentials still yields a 207.
	resp = e.dav(t, "PROPFIND", "/caldav/", "", propfindAllProp, nil)
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("unauthenticated discovery status = %d", resp.status)
	}
	if !strings.Contains(resp.body, "unauthenticated") {
		t.Fatalf("expected unauthenticated marker in body:\n%s", resp.body)
	}

	// With credentials the principal href appears.
	resp = e.dav(t, "PROPFIND", "/caldav/", authz, propfindAllProp, nil)
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("authenticated discovery status = %d", resp.status)
	}
	if !strings.Contains(resp.body, "/caldav/principals/alice/") {
		t.Fatalf("expected principal href in body:\n%s", resp.body)
	}

	resp = e.dav(t, "MKCALENDAR", "/caldav/users/alice/work/", authz, "", nil)
	if resp.status != http.StatusCreated {
		t.Fatalf("mkcalendar status = %d: %s", resp.status, resp.body)
	}

	resp = e.dav(t, "PROPFIND", "/caldav/users/alice/", authz, propfindAllProp, map[string]string{"Depth": "1"})
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("home propfind status = %d", resp.status)
	}
	ms := parseMultiStatus(t, resp.body)
	found := false
	for _, href := range hrefs(ms) {
		if href == "/caldav/users/alice/work/" {
			found = true
		}
	}
	if !found {
		t.Fatalf("calendar href missing from home listing: %v", hrefs(ms))
	}

	resp = e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, sampleEvent,
		map[string]string{"Content-Type": "text/calendar"})
	if resp.status != http.StatusCreated {
		t.Fatalf("put status = %d: %s", resp.status, resp.body)
	}
	etag := resp.header.Get("ETag")
	if etag == "" {
		t.Fatal("put returned no etag")
	}

	resp = e.dav(t, http.MethodGet, "/caldav/users/alice/work/evt1.ics", authz, "", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("get status = %d", resp.status)
	}
	if resp.header.Get("ETag") != etag {
		t.Fatalf("get etag %q != put etag %q", resp.header.Get("ETag"), etag)
	}
	if !strings.Contains(resp.body, "SUMMARY:Planning") {
		t.Fatalf("event body missing summary:\n%s", resp.body)
	}
}

func TestConcurrentEditConflict(t *testing.T) {
	e := newEnv(t, "full")
	e.createUser(t, "alice", "password")
	authz := basicAuth("alice", "password")

	e.dav(t, "MKCALENDAR", "/caldav/users/alice/work/", authz, "", nil)
	resp := e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, sampleEvent, nil)
	if resp.status != http.StatusCreated {
		t.Fatalf("initial put status = %d", resp.status)
	}
	current := resp.header.Get("ETag")

	updated := strings.Replace(sampleEvent, "SUMMARY:Planning", "SUMMARY:Replanned", 1)
	resp = e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, updated,
		map[string]string{"If-Match": `"stale-etag"`})
	if resp.status != http.StatusPreconditionFailed {
		t.Fatalf("stale put status = %d, want 412", resp.status)
	}

	resp = e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, updated,
		map[string]string{"If-Match": current})
	if resp.status != http.StatusNoContent {
		t.Fatalf("conditional put status = %d, want 204", resp.status)
	}
	if resp.header.Get("ETag") == current {
		t.Fatal("etag did not rotate on update")
	}
}

func TestIncrementalSync(t *testing.T) {
	e := newEnv(t, "full")
	e.createUser(t, "alice", "password")
	authz := basicAuth("alice", "password")

	e.dav(t, "MKCALENDAR", "/caldav/users/alice/work/", authz, "", nil)
	e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, sampleEvent, nil)

	initial := `<?xml version="1.0" encoding="utf-8"?>
<D:sync-collection xmlns:D="DAV:">
  <D:sync-token></D:sync-token>
  <D:prop><D:getetag/></D:prop>
</D:sync-collection>`
	resp := e.dav(t, "REPORT", "/caldav/users/alice/work/", authz, initial, nil)
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("initial sync status = %d", resp.status)
	}
	ms := parseMultiStatus(t, resp.body)
	if len(ms.Responses) != 1 {
		t.Fatalf("initial sync responses = %d, want 1", len(ms.Responses))
	}
	token := ms.SyncToken
	if token == "" {
		t.Fatal("initial sync returned no token")
	}

	evt2 := strings.Replace(sampleEvent, "UID:evt1", "UID:evt2", 1)
	e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt2.ics", authz, evt2, nil)
	e.dav(t, http.MethodDelete, "/caldav/users/alice/work/evt1.ics", authz, "", nil)

	delta := `<?xml version="1.0" encoding="utf-8"?>
<D:sync-collection xmlns:D="DAV:">
  <D:sync-token>` + token + `</D:sync-token>
  <D:prop><D:getetag/></D:prop>
</D:sync-collection>`
	resp = e.dav(t, "REPORT", "/caldav/users/alice/work/", authz, delta, nil)
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("delta sync status = %d", resp.status)
	}
	ms = parseMultiStatus(t, resp.body)
	if ms.SyncToken == token {
		t.Fatal("sync token did not advance")
	}

	var sawNew, sawTombstone bool
	for _, r := range ms.Responses {
		if strings.Contains(r.Href, "evt2.ics") && len(r.PropStat) > 0 {
			sawNew = true
		}
		if strings.Contains(r.Href, "evt1.ics") && strings.Contains(r.Status, "404") {
			if len(r.PropStat) != 0 {
				t.Fatal("tombstone carries propstat")
			}
			sawTombstone = true
		}
	}
	if !sawNew || !sawTombstone {
		t.Fatalf("delta missing entries (new=%v tombstone=%v):\n%s", sawNew, sawTombstone, resp.body)
	}
}

func TestTimeRangeQueryReport(t *testing.T) {
	e := newEnv(t, "full")
	e.createUser(t, "alice", "password")
	authz := basicAuth("alice", "password")

	e.dav(t, "MKCALENDAR", "/caldav/users/alice/work/", authz, "", nil)
	e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt1.ics", authz, sampleEvent, nil)
	late := strings.NewReplacer(
		"UID:evt1", "UID:evt2",
		"DTSTART:20260301T090000Z", "DTSTART:20260401T090000Z",
		"DTEND:20260301T100000Z", "DTEND:20260401T100000Z",
	).Replace(sampleEvent)
	e.dav(t, http.MethodPut, "/caldav/users/alice/work/evt2.ics", authz, late, nil)

	query := `<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <D:prop><D:getetag/><C:calendar-data/></D:prop>
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:time-range start="20260228T000000Z" end="20260302T000000Z"/>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`
	resp := e.dav(t, "REPORT", "/caldav/users/alice/work/", authz, query, nil)
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("query status = %d", resp.status)
	}
	ms := parseMultiStatus(t, resp.body)
	if len(ms.Responses) != 1 {
		t.Fatalf("query responses = %d, want 1:\n%s", len(ms.Responses), resp.body)
	}
	if !strings.Contains(ms.Responses[0].Href, "evt1.ics") {
		t.Fatalf("wrong event matched: %s", ms.Responses[0].Href)
	}
	if !strings.Contains(resp.body, "SUMMARY:Planning") {
		t.Fatal("calendar-data not inlined in query response")
	}
}

// Unauthenticated email discovery must not reveal whether an address
// exists.
func TestEmailDiscoveryDoesNotEnumerate(t *testing.T) {
	e := newEnv(t, "full")
	e.createUser(t, "alice", "password")

	known := e.dav(t, "PROPFIND", "/calendar/dav/alice%40example.com/user/", "", propfindAllProp, nil)
	unknown := e.dav(t, "PROPFIND", "/calendar/dav/ghost%40example.com/user/", "", propfindAllProp, nil)

	if known.status != http.StatusMultiStatus || unknown.status != http.StatusMultiStatus {
		t.Fatalf("discovery statuses = %d / %d, want 207", known.status, unknown.status)
	}
	if known.body != unknown.body {
		t.Fatalf("discovery bodies differ:\n%s\n---\n%s", known.body, unknown.body)
	}

	// Authenticated discovery switches to the email-flavored hrefs.
	authz := basicAuth("alice", "password")
	e.dav(t, "MKCALENDAR", "/caldav/users/alice/work/", authz, "", nil)
	resp := e.dav(t, "PROPFIND", "/calendar/dav/alice%40example.com/user/", authz, propfindAllProp,
		map[string]string{"Depth": "1"})
	if resp.status != http.StatusMultiStatus {
		t.Fatalf("authenticated email discovery status = %d", resp.status)
	}
	if !strings.Contains(resp.body, "/calendar/dav/alice%40example.com/user/work/") {
		t.Fatalf("expected email-flavored calendar href:\n%s", resp.body)
	}
}

// Events created over MCP are immediately visible over CalDAV with the
// same ETag, and vice versa.
func TestCrossProtocolConsistency(t *testing.T) {
	e := newEnv(t, "full")
	user := e.createUser(t, "alice", "password")
	token := e.createToken(t, user.ID)
	authz := basicAuth("alice", "password")

	created := e.callTool(t, token, "create_calendar", map[string]any{"name": "Work"})
	calID := created["id"].(string)

	event := e.callTool(t, token, "create_event", map[string]any{
		"calendar_id": calID,
		"title":       "Cross Check",
		"start":       "20260301T090000Z",
		"end":         "20260301T100000Z",
	})
	uid := event["uid"].(string)
	mcpETag := event["etag"].(string)

	resp := e.dav(t, http.MethodGet, "/caldav/users/alice/"+calID+"/"+uid+".ics", authz, "", nil)
	if resp.status != http.StatusOK {
		t.Fatalf("caldav get status = %d", resp.status)
	}
	if resp.header.Get("ETag") != mcpETag {
		t.Fatalf("caldav etag %q != mcp etag %q", resp.header.Get("ETag"), mcpETag)
	}
	if !strings.Contains(resp.body, "SUMMARY:Cross Check") {
		t.Fatalf("event body mismatch:\n%s", resp.body)
	}

	// Now the other direction.
	put := e.dav(t, http.MethodPut, "/caldav/users/alice/"+calID+"/evt-dav.ics", authz, sampleEvent, nil)
	if put.status != http.StatusCreated {
		t.Fatalf("caldav put status = %d", put.status)
	}

	queried := e.callTool(t, token, "query_events", map[string]any{"calendar_id": calID})
	if int(queried["count"].(float64)) != 2 {
		t.Fatalf("query count = %v, want 2", queried["count"])
	}
}
