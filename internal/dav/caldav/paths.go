package caldav

import (
	"strings"

	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
)

// HrefContext tracks which URL family the request arrived under so that
// every href in the response reuses the same stem. Apple's dataaccessd
// only sends credentials to the prefix where account setup authenticated,
// so mixing stems breaks its sync.
type HrefContext struct {
	// Email is the percent-encoded address from a /calendar/dav/ path,
	// empty for /caldav/users/ requests.
	Email    string
	Username string
}

func emailContext(encodedEmail string) HrefContext {
	return HrefContext{Email: encodedEmail}
}

func userContext(username string) HrefContext {
	return HrefContext{Username: username}
}

// HomeHref is the calendar home collection for this context.
func (c HrefContext) HomeHref() string {
	if c.Email != "" {
		return "/calendar/dav/" + c.Email + "/user/"
	}
	return "/caldav/users/" + c.Username + "/"
}

// CalendarHref is the collection href for one calendar.
func (c HrefContext) CalendarHref(calendarID string) string {
	return c.HomeHref() + calendarID + "/"
}

// ObjectHref is the href for one calendar object resource.
func (c HrefContext) ObjectHref(calendarID, uid string) string {
	return c.CalendarHref(calendarID) + uid + ".ics"
}

// PrincipalHref is the principal URL advertised for the user. Email
// contexts keep the principal under the email stem so dataaccessd never
// leaves the authenticated prefix.
func (c HrefContext) PrincipalHref() string {
	if c.Email != "" {
		return "/calendar/dav/" + c.Email + "/user/"
	}
	return "/caldav/principals/" + c.Username + "/"
}

// objectUIDFromHref extracts the object UID from a multiget href: the
// final segment with .ics stripped and percent escapes decoded.
func objectUIDFromHref(href string) string {
	href = strings.TrimSuffix(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		href = href[i+1:]
	}
	href = strings.TrimSuffix(href, ".ics")
	return common.PercentDecode(href)
}
