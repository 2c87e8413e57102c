package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiStatusEmpty(t *testing.T) {
	ms := NewMultiStatus()
	out := string(ms.Build())
	assert.Contains(t, out, "D:multistatus")
	assert.Contains(t, out, `xmlns:D="DAV:"`)
	assert.Contains(t, out, `xmlns:C="urn:ietf:params:xml:ns:caldav"`)
}

func TestMultiStatusTextProp(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddResponse("/caldav/", []PropValue{
		{Namespace: NSDAV, Name: "displayname", Content: TextContent("My Calendar")},
	}, nil)
	out := string(ms.Build())
	assert.Contains(t, out, "<D:displayname>My Calendar</D:displayname>")
	assert.Contains(t, out, "<D:href>/caldav/</D:href>")
	assert.Contains(t, out, "HTTP/1.1 200 OK")
}

func TestMultiStatusNotFoundProps(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddResponse("/caldav/", nil, []string{"D:missing-prop"})
	out := string(ms.Build())
	assert.Contains(t, out, "<D:missing-prop/>")
	assert.Contains(t, out, "HTTP/1.1 404 Not Found")
}

func TestMultiStatusTombstone(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddTombstone("/caldav/users/alice/cal/evt1.ics")
	out := string(ms.Build())
	assert.Contains(t, out, "<D:href>/caldav/users/alice/cal/evt1.ics</D:href>")
	assert.Contains(t, out, "<D:status>HTTP/1.1 404 Not Found</D:status>")
	assert.NotContains(t, out, "propstat")
}

func TestMultiStatusEscapesText(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddResponse("/x/", []PropValue{
		{Namespace: NSDAV, Name: "displayname", Content: TextContent("A <B> & C")},
	}, nil)
	out := string(ms.Build())
	assert.Contains(t, out, "A &lt;B&gt; &amp; C")
}

func TestMultiStatusSyncToken(t *testing.T) {
	ms := NewMultiStatus()
	ms.AddSyncToken("sync-0190abc")
	out := string(ms.Build())
	assert.Contains(t, out, "<D:sync-token>sync-0190abc</D:sync-token>")
}

func TestPrefixMapping(t *testing.T) {
	assert.Equal(t, "D", Prefix(NSDAV))
	assert.Equal(t, "C", Prefix(NSCalDAV))
	assert.Equal(t, "A", Prefix(NSApple))
	assert.Equal(t, "CS", Prefix(NSCS))
	assert.Equal(t, "D", Prefix("urn:example:unknown"))
}
