package common

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
)

// PropRequest names a property requested by the client.
type PropRequest struct {
	Namespace string
	Local     string
}

// PropfindRequest is a parsed PROPFIND body.
type PropfindRequest struct {
	AllProp  bool
	PropName bool
	Props    []PropRequest
}

// ParsePropfind parses a PROPFIND body. An empty or unparseable body is
// treated as allprop, matching what permissive CalDAV clients expect.
func ParsePropfind(body []byte) PropfindRequest {
	if len(body) == 0 {
		return PropfindRequest{AllProp: true}
	}

	d := newDecoder(body)
	inProp := false
	var props []PropRequest

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PropfindRequest{AllProp: true}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "allprop":
				return PropfindRequest{AllProp: true}
			case "propname":
				return PropfindRequest{PropName: true}
			case "prop":
				inProp = true
			default:
				if inProp {
					props = append(props, PropRequest{
						Namespace: normalizeNS(t.Name.Space),
						Local:     t.Name.Local,
					})
				}
			}
		case xml.EndElement:
			if t.Name.Local == "prop" {
				inProp = false
			}
		}
	}

	if len(props) == 0 {
		return PropfindRequest{AllProp: true}
	}
	return PropfindRequest{Props: props}
}

// Requested reports whether the client asked for the given property.
func (r PropfindRequest) Requested(namespace, local string) bool {
	if r.AllProp || r.PropName {
		return true
	}
	for _, p := range r.Props {
		if p.Local == local && p.Namespace == namespace {
			return true
		}
	}
	return false
}

// FilterProps splits the available properties into the requested-found
// set and the prefixed names of requested-but-unavailable properties.
// PropName requests strip values down to empty elements.
func FilterProps(req PropfindRequest, available []PropValue) (found []PropValue, notFound []string) {
	if req.AllProp {
		return available, nil
	}
	if req.PropName {
		for _, p := range available {
			found = append(found, PropValue{Namespace: p.Namespace, Name: p.Name, Content: EmptyContent()})
		}
		return found, nil
	}

	for _, avail := range available {
		for _, want := range req.Props {
			if want.Local == avail.Name && want.Namespace == avail.Namespace {
				found = append(found, avail)
				break
			}
		}
	}
	for _, want := range req.Props {
		matched := false
		for _, p := range found {
			if p.Name == want.Local && p.Namespace == want.Namespace {
				matched = true
				break
			}
		}
		if !matched {
			notFound = append(notFound, Prefix(want.Namespace)+":"+want.Local)
		}
	}
	return found, notFound
}

// ReportRequest is a parsed REPORT body, discriminated by the root
// element of the document.
type ReportRequest struct {
	Multiget       bool
	Query          bool
	SyncCollection bool

	Props     []PropRequest
	Hrefs     []string
	TimeStart string
	TimeEnd   string
	SyncToken string
}

// PropsRequested reports whether the report asked for the given property.
func (r *ReportRequest) PropsRequested(namespace, local string) bool {
	for _, p := range r.Props {
		if p.Local == local && p.Namespace == namespace {
			return true
		}
	}
	return false
}

// ParseReport parses a REPORT body. Returns nil when the body is empty
// or the root element is not a supported report.
func ParseReport(body []byte) *ReportRequest {
	if len(body) == 0 {
		return nil
	}

	d := newDecoder(body)
	var req ReportRequest
	known := false
	inProp := false
	inHref := false
	inSyncToken := false

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "calendar-multiget":
				req.Multiget, known = true, true
			case "calendar-query":
				req.Query, known = true, true
			case "sync-collection":
				req.SyncCollection, known = true, true
			case "prop":
				inProp = true
			case "href":
				inHref = true
			case "sync-token":
				inSyncToken = true
			case "time-range":
				for _, attr := range t.Attr {
					switch attr.Name.Local {
					case "start":
						req.TimeStart = attr.Value
					case "end":
						req.TimeEnd = attr.Value
					}
				}
			default:
				if inProp {
					req.Props = append(req.Props, PropRequest{
						Namespace: normalizeNS(t.Name.Space),
						Local:     t.Name.Local,
					})
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "prop":
				inProp = false
			case "href":
				inHref = false
			case "sync-token":
				inSyncToken = false
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" {
				continue
			}
			if inHref {
				req.Hrefs = append(req.Hrefs, text)
			} else if inSyncToken {
				req.SyncToken = text
			}
		}
	}

	if !known {
		return nil
	}
	return &req
}

// PropUpdate is one property assignment from a PROPPATCH or MKCALENDAR
// set block.
type PropUpdate struct {
	Namespace string
	Local     string
	Value     string
}

// ParseSetProps extracts the set/prop children of a PROPPATCH or
// MKCALENDAR body as (qname, text) pairs, plus the names listed under
// remove blocks.
func ParseSetProps(body []byte) (sets []PropUpdate, removes []PropRequest) {
	if len(body) == 0 {
		return nil, nil
	}

	d := newDecoder(body)
	inSet := false
	inRemove := false
	inProp := false
	var current *PropUpdate
	var text strings.Builder

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sets, removes
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "set":
				inSet = true
			case t.Name.Local == "remove":
				inRemove = true
			case t.Name.Local == "prop":
				inProp = true
			case inProp && inRemove:
				removes = append(removes, PropRequest{
					Namespace: normalizeNS(t.Name.Space),
					Local:     t.Name.Local,
				})
			case inProp && inSet && current == nil:
				current = &PropUpdate{
					Namespace: normalizeNS(t.Name.Space),
					Local:     t.Name.Local,
				}
				text.Reset()
			}
		case xml.EndElement:
			switch {
			case current != nil && t.Name.Local == current.Local:
				current.Value = strings.TrimSpace(text.String())
				sets = append(sets, *current)
				current = nil
			case t.Name.Local == "prop":
				inProp = false
			case t.Name.Local == "set":
				inSet = false
			case t.Name.Local == "remove":
				inRemove = false
			}
		case xml.CharData:
			if current != nil {
				text.Write(t)
			}
		}
	}
	return sets, removes
}

func newDecoder(body []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(body))
	d.Strict = false
	return d
}

// normalizeNS maps the decoder's resolved namespace to one of the four
// known URIs. Unprefixed elements and unknown prefixes default to DAV:.
func normalizeNS(space string) string {
	switch space {
	case NSDAV, NSCalDAV, NSApple, NSCS:
		return space
	case "C", "c", "cal":
		return NSCalDAV
	case "A", "IC":
		return NSApple
	case "CS", "cs":
		return NSCS
	default:
		return NSDAV
	}
}
