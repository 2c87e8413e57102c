package caldav

import (
	"errors"
	"net/http"

	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

// handleDiscoveryRoot serves the no-auth discovery endpoints. PROPFIND
// always yields a usable 207; current-user-principal reflects whether
// the request carried valid credentials. These endpoints never 401, so
// client probes can progress to account setup.
func (h *Handler) handleDiscoveryRoot(w http.ResponseWriter, r *http.Request, selfHref string, redirectOthers bool) {
	switch r.Method {
	case http.MethodOptions:
		writeOptions(w)
		return
	case "PROPFIND":
	default:
		if redirectOthers {
			http.Redirect(w, r, "/caldav/", http.StatusMovedPermanently)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	body, _ := readBody(r, xmlBodyLimit)
	req := common.ParsePropfind(body)

	var props []common.PropValue
	if p, err := h.strictAuth(r); err == nil {
		props = rootProps(p.Username)
	} else {
		props = rootPropsUnauthenticated()
	}

	ms := common.NewMultiStatus()
	found, notFound := common.FilterProps(req, props)
	ms.AddResponse(selfHref, found, notFound)
	common.ServeMultiStatus(w, ms)
}

// handleCalendarHome serves /caldav/users/{username}/. Depth 1 adds one
// response per calendar visible to the user, owned or shared.
func (h *Handler) handleCalendarHome(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	if r.Method != "PROPFIND" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p, err := h.authOrPathUser(r, username)
	if err != nil {
		h.authFailure(w, err)
		return
	}

	body, _ := readBody(r, xmlBodyLimit)
	req := common.ParsePropfind(body)

	ms := common.NewMultiStatus()
	found, notFound := common.FilterProps(req, calendarHomeProps(username))
	ms.AddResponse("/caldav/users/"+username+"/", found, notFound)

	if requestDepth(r) == 1 {
		cals, err := h.store.ListCalendarsVisibleTo(r.Context(), p.UserID)
		if err != nil {
			h.internalError(w, err, "Listing calendars failed")
			return
		}
		hctx := userContext(username)
		for _, cal := range cals {
			f, nf := common.FilterProps(req, calendarProps(hctx, cal))
			ms.AddResponse(hctx.CalendarHref(cal.ID), f, nf)
		}
	}

	common.ServeMultiStatus(w, ms)
}

// propfindCollection serves PROPFIND on one calendar. Depth 1 adds one
// response per object, without calendar-data.
func (h *Handler) propfindCollection(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID string) {
	cal, err := h.store.GetCalendar(r.Context(), calendarID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "Loading calendar failed")
		return
	}

	body, _ := readBody(r, xmlBodyLimit)
	req := common.ParsePropfind(body)

	ms := common.NewMultiStatus()
	found, notFound := common.FilterProps(req, calendarProps(ctx, cal))
	ms.AddResponse(ctx.CalendarHref(cal.ID), found, notFound)

	if requestDepth(r) == 1 {
		objs, err := h.store.ListObjects(r.Context(), cal.ID)
		if err != nil {
			h.internalError(w, err, "Listing objects failed")
			return
		}
		for _, obj := range objs {
			f, nf := common.FilterProps(req, objectProps(obj, false))
			ms.AddResponse(ctx.ObjectHref(cal.ID, obj.UID), f, nf)
		}
	}

	common.ServeMultiStatus(w, ms)
}

// handleEmailHome serves /calendar/dav/{email}/user/, the URL Apple's
// account setup authenticates against. A present Authorization header
// must verify. Absent credentials always get the same fixed body, so
// the endpoint cannot be used to enumerate addresses.
func (h *Handler) handleEmailHome(w http.ResponseWriter, r *http.Request, pathEmail string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	if r.Method != "PROPFIND" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.Header.Get("Authorization") == "" {
		h.writeAnonymousEmailDiscovery(w)
		return
	}

	p, err := h.strictAuth(r)
	if err != nil {
		h.authFailure(w, err)
		return
	}

	encodedEmail := common.EncodeEmailForPath(pathEmail)
	requestPath := "/calendar/dav/" + encodedEmail + "/user/"
	body, _ := readBody(r, xmlBodyLimit)
	req := common.ParsePropfind(body)

	email := p.Email
	if email == "" {
		email = pathEmail
	}

	ms := common.NewMultiStatus()
	found, notFound := common.FilterProps(req, emailHomeProps(p.Username, email, requestPath))
	ms.AddResponse(requestPath, found, notFound)

	if requestDepth(r) == 1 {
		cals, err := h.store.ListCalendarsVisibleTo(r.Context(), p.UserID)
		if err != nil {
			h.internalError(w, err, "Listing calendars failed")
			return
		}
		hctx := HrefContext{Email: encodedEmail, Username: p.Username}
		for _, cal := range cals {
			f, nf := common.FilterProps(req, calendarProps(hctx, cal))
			ms.AddResponse(hctx.CalendarHref(cal.ID), f, nf)
		}
	}

	common.ServeMultiStatus(w, ms)
}

// writeAnonymousEmailDiscovery emits the fixed body served to every
// unauthenticated discovery probe. Nothing in it derives from the
// requested address or body, so valid and invalid emails are
// indistinguishable byte-for-byte.
func (h *Handler) writeAnonymousEmailDiscovery(w http.ResponseWriter) {
	ms := common.NewMultiStatus()
	ms.AddResponse("/calendar/dav/", []common.PropValue{
		{Namespace: common.NSDAV, Name: "resourcetype", Content: common.XMLContent("<D:collection/><D:principal/>")},
		{Namespace: common.NSDAV, Name: "displayname", Content: common.TextContent("CalDAV Account")},
		{Namespace: common.NSDAV, Name: "current-user-principal", Content: common.XMLContent("<D:unauthenticated/>")},
	}, nil)
	common.ServeMultiStatus(w, ms)
}
