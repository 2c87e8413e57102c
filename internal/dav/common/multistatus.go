// Package common implements the WebDAV XML layer: request body parsing
// for PROPFIND/PROPPATCH/REPORT and construction of 207 Multi-Status
// responses with namespace-aware propstats.
package common

import (
	"bytes"
	"net/http"
	"strings"
)

// Namespace URIs used across the CalDAV surface.
const (
	NSDAV    = "DAV:"
	NSCalDAV = "urn:ietf:params:xml:ns:caldav"
	NSApple  = "http://apple.com/ns/ical/"
	NSCS     = "http://calendarserver.org/ns/"
)

// DAVCapabilities is sent in the DAV response header on OPTIONS and 207s.
const DAVCapabilities = "1, 2, 3, calendar-access, calendar-schedule"

type propKind int

const (
	propText propKind = iota
	propXML
	propEmpty
)

// PropContent is the value of a property: escaped text, a raw XML
// fragment, or an empty element.
type PropContent struct {
	kind propKind
	s    string
}

func TextContent(s string) PropContent { return PropContent{kind: propText, s: s} }
func XMLContent(s string) PropContent  { return PropContent{kind: propXML, s: s} }
func EmptyContent() PropContent        { return PropContent{kind: propEmpty} }

// IsEmpty reports whether the content renders as a self-closing element.
func (c PropContent) IsEmpty() bool { return c.kind == propEmpty }

// PropValue is a single property in a 200 propstat.
type PropValue struct {
	Namespace string
	Name      string
	Content   PropContent
}

// Prefix maps a namespace URI to the prefix declared on the multistatus
// root. Unknown namespaces collapse to D.
func Prefix(namespace string) string {
	switch namespace {
	case NSCalDAV:
		return "C"
	case NSApple:
		return "A"
	case NSCS:
		return "CS"
	default:
		return "D"
	}
}

// MultiStatus incrementally builds a 207 Multi-Status document with the
// D/C/A/CS prefixes declared on the root element.
type MultiStatus struct {
	buf bytes.Buffer
}

func NewMultiStatus() *MultiStatus {
	m := &MultiStatus{}
	m.buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	m.buf.WriteString(`<D:multistatus xmlns:D="` + NSDAV + `" xmlns:C="` + NSCalDAV +
		`" xmlns:A="` + NSApple + `" xmlns:CS="` + NSCS + `">`)
	return m
}

// AddResponse emits one response element: found properties in a 200
// propstat, requested-but-unavailable names in a 404 propstat.
func (m *MultiStatus) AddResponse(href string, found []PropValue, notFound []string) {
	m.buf.WriteString("<D:response>")
	m.writeTextElem("D:href", href)

	if len(found) > 0 {
		m.buf.WriteString("<D:propstat><D:prop>")
		for _, p := range found {
			name := Prefix(p.Namespace) + ":" + p.Name
			switch p.Content.kind {
			case propText:
				m.writeTextElem(name, p.Content.s)
			case propXML:
				m.buf.WriteString("<" + name + ">" + p.Content.s + "</" + name + ">")
			case propEmpty:
				m.buf.WriteString("<" + name + "/>")
			}
		}
		m.buf.WriteString("</D:prop>")
		m.writeTextElem("D:status", "HTTP/1.1 200 OK")
		m.buf.WriteString("</D:propstat>")
	}

	if len(notFound) > 0 {
		m.buf.WriteString("<D:propstat><D:prop>")
		for _, name := range notFound {
			m.buf.WriteString("<" + name + "/>")
		}
		m.buf.WriteString("</D:prop>")
		m.writeTextElem("D:status", "HTTP/1.1 404 Not Found")
		m.buf.WriteString("</D:propstat>")
	}

	m.buf.WriteString("</D:response>")
}

// AddTombstone emits a bare response carrying only a 404 status, used
// for deleted entries in sync-collection reports.
func (m *MultiStatus) AddTombstone(href string) {
	m.buf.WriteString("<D:response>")
	m.writeTextElem("D:href", href)
	m.writeTextElem("D:status", "HTTP/1.1 404 Not Found")
	m.buf.WriteString("</D:response>")
}

// AddSyncToken emits the trailing sync-token element of a
// sync-collection response.
func (m *MultiStatus) AddSyncToken(token string) {
	m.writeTextElem("D:sync-token", token)
}

// Build closes the document and returns the XML bytes.
func (m *MultiStatus) Build() []byte {
	m.buf.WriteString("</D:multistatus>")
	return m.buf.Bytes()
}

// xmlEscaper escapes markup only; newlines in calendar-data stay raw.
var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func (m *MultiStatus) writeTextElem(name, text string) {
	m.buf.WriteString("<" + name + ">")
	_, _ = xmlEscaper.WriteString(&m.buf, text)
	m.buf.WriteString("</" + name + ">")
}

// ServeMultiStatus writes the finished document as a 207 response.
func ServeMultiStatus(w http.ResponseWriter, ms *MultiStatus) {
	body := ms.Build()
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("DAV", DAVCapabilities)
	w.WriteHeader(http.StatusMultiStatus)
	_, _ = w.Write(body)
}
