package caldav

import (
	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const supportedReportSet = "<D:supported-report><D:report><C:calendar-multiget/></D:report></D:supported-report>" +
	"<D:supported-report><D:report><C:calendar-query/></D:report></D:supported-report>" +
	"<D:supported-report><D:report><D:sync-collection/></D:report></D:supported-report>"

// rootProps is the discovery-root property set for an authenticated user.
func rootProps(username string) []common.PropValue {
	return []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/>")},
		{Namespace: common.NSDAV, Name: "current-user-principal",
			Content: common.XMLContent("<D:href>/caldav/principals/" + username + "/</D:href>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent("CalDAV Server")},
	}
}

// rootPropsUnauthenticated is the discovery-root property set when no
// valid credentials accompanied the request. RFC 5397 unauthenticated
// form, so probes can progress without a 401.
func rootPropsUnauthenticated() []common.PropValue {
	return []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/>")},
		{Namespace: common.NSDAV, Name: "current-user-principal", Content: common.XMLContent("<D:unauthenticated/>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent("CalDAV Server")},
	}
}

func calendarHomeProps(username string) []common.PropValue {
	return []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent(username + "'s calendars")},
		{Namespace: common.NSDAV, Name: "current-user-principal",
			Content: common.XMLContent("<D:href>/caldav/principals/" + username + "/</D:href>")},
		{Namespace: common.NSCalDAV, Name: "calendar-home-set",
			Content: common.XMLContent("<D:href>/caldav/users/" + username + "/</D:href>")},
		{Namespace: common.NSDAV, Name: "supported-report-set", Content: common.XMLContent(supportedReportSet)},
	}
}

// emailHomeProps is the property set for /calendar/dav/{email}/user/ when
// the request authenticated. dataaccessd treats this URL as principal and
// calendar home at once, so principal-URL, calendar-home-set and the
// auxiliary CalendarServer URLs all point back at requestPath. That keeps
// the daemon on the URL it authenticated against.
func emailHomeProps(username, email, requestPath string) []common.PropValue {
	selfHref := "<D:href>" + requestPath + "</D:href>"
	return []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/><D:principal/>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent(username)},
		{Namespace: common.NSDAV, Name: "current-user-principal", Content: common.XMLContent(selfHref)},
		{Namespace: common.NSDAV, Name: "principal-URL", Content: common.XMLContent(selfHref)},
		{Namespace: common.NSCalDAV, Name: "calendar-home-set", Content: common.XMLContent(selfHref)},
		{Namespace: common.NSCalDAV, Name: "calendar-user-address-set",
			Content: common.XMLContent("<D:href>mailto:" + email + "</D:href>")},
		{Namespace: common.NSCS, Name: "email-address-set",
			Content: common.XMLContent("<CS:email-address>" + email + "</CS:email-address>")},
		{Namespace: common.NSCalDAV, Name: "schedule-inbox-URL",
			Content: common.XMLContent("<D:href>" + requestPath + "inbox/</D:href>")},
		{Namespace: common.NSCalDAV, Name: "schedule-outbox-URL",
			Content: common.XMLContent("<D:href>" + requestPath + "outbox/</D:href>")},
		{Namespace: common.NSDAV, Name: "supported-report-set", Content: common.XMLContent(supportedReportSet)},
		{Namespace: common.NSDAV, Name: "current-user-privilege-set",
			Content: common.XMLContent("<D:privilege><D:read/></D:privilege><D:privilege><D:write/></D:privilege>")},
		{Namespace: common.NSCS, Name: "notification-URL",
			Content: common.XMLContent("<D:href>" + requestPath + "notifications/</D:href>")},
		{Namespace: common.NSCS, Name: "dropbox-home-URL",
			Content: common.XMLContent("<D:href>" + requestPath + "dropbox/</D:href>")},
		{Namespace: common.NSDAV, Name: "principal-collection-set", Content: common.XMLContent(selfHref)},
		{Namespace: common.NSDAV, Name: "resource-id",
			Content: common.XMLContent("<D:href>urn:uuid:" + username + "</D:href>")},
		{Namespace: common.NSDAV, Name: "owner", Content: common.XMLContent(selfHref)},
	}
}

// calendarProps is the property set for one calendar collection, with
// every href rooted at the request's URL family.
func calendarProps(ctx HrefContext, cal *storage.Calendar) []common.PropValue {
	principalHref := "<D:href>" + ctx.HomeHref() + "</D:href>"
	return []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/><C:calendar/>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent(cal.Name)},
		{Namespace: common.NSCalDAV, Name: "calendar-description", Content: common.TextContent(cal.Description)},
		{Namespace: common.NSApple, Name: "calendar-color", Content: common.TextContent(cal.Color)},
		{Namespace: common.NSApple, Name: "calendar-order", Content: common.TextContent("1")},
		{Namespace: common.NSCalDAV, Name: "calendar-timezone", Content: common.TextContent(cal.Timezone)},
		{Namespace: common.NSCalDAV, Name: "supported-calendar-component-set",
			Content: common.XMLContent(`<C:comp name="VEVENT"/><C:comp name="VTODO"/>`)},
		{Namespace: common.NSCS, Name: "getctag", Content: common.TextContent(cal.CTag)},
		{Namespace: common.NSDAV, Name: "sync-token", Content: common.TextContent(cal.SyncToken)},
		{Namespace: common.NSDAV, Name: "current-user-principal", Content: common.XMLContent(principalHref)},
		{Namespace: common.NSDAV, Name: "current-user-privilege-set",
			Content: common.XMLContent("<D:privilege><D:read/></D:privilege><D:privilege><D:write/></D:privilege>" +
				"<D:privilege><D:write-content/></D:privilege>")},
		{Namespace: common.NSDAV, Name: "owner", Content: common.XMLContent(principalHref)},
		{Namespace: common.NSDAV, Name: "supported-report-set", Content: common.XMLContent(supportedReportSet)},
		{Namespace: common.NSCalDAV, Name: "schedule-calendar-transp", Content: common.XMLContent("<C:opaque/>")},
		{Namespace: common.NSCalDAV, Name: "schedule-default-calendar-URL",
			Content: common.XMLContent("<D:href>" + ctx.CalendarHref(cal.ID) + "</D:href>")},
		{Namespace: common.NSDAV, Name: "getcontenttype", Content: common.TextContent("text/calendar; charset=utf-8")},
		{Namespace: common.NSDAV, Name: "resource-id",
			Content: common.XMLContent("<D:href>urn:uuid:" + cal.ID + "</D:href>")},
	}
}

// objectProps is the property set for one calendar object. calendar-data
// is included only when the report asked for it.
func objectProps(obj *storage.Object, includeData bool) []common.PropValue {
	props := []common.PropValue{
		{Namespace: common.NSDAV, Name: "getetag", Content: common.TextContent(obj.ETag)},
		{Namespace: common.NSDAV, Name: "getcontenttype", Content: common.TextContent("text/calendar; charset=utf-8")},
	}
	if includeData {
		props = append(props, common.PropValue{
			Namespace: common.NSCalDAV, Name: "calendar-data", Content: common.TextContent(obj.ICalData),
		})
	}
	return props
}
