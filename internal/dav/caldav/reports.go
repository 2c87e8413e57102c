package caldav

import (
	"errors"
	"net/http"

	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID string) {
	body, _ := readBody(r, xmlBodyLimit)
	req := common.ParseReport(body)
	if req == nil {
		http.Error(w, "Unsupported report", http.StatusBadRequest)
		return
	}

	includeData := req.PropsRequested(common.NSCalDAV, "calendar-data")
	switch {
	case req.Multiget:
		h.reportMultiget(w, r, ctx, calendarID, req.Hrefs, includeData)
	case req.Query:
		h.reportQuery(w, r, ctx, calendarID, req.TimeStart, req.TimeEnd, includeData)
	case req.SyncCollection:
		h.reportSync(w, r, ctx, calendarID, req.SyncToken, includeData)
	}
}

func (h *Handler) reportMultiget(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID string, hrefs []string, includeData bool) {
	uids := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		uids = append(uids, objectUIDFromHref(href))
	}

	objs, err := h.store.GetObjectsByUIDs(r.Context(), calendarID, uids)
	if err != nil {
		h.internalError(w, err, "Loading objects failed")
		return
	}
	byUID := make(map[string]*storage.Object, len(objs))
	for _, obj := range objs {
		byUID[obj.UID] = obj
	}

	ms := common.NewMultiStatus()
	for _, uid := range uids {
		obj, ok := byUID[uid]
		if !ok {
			continue
		}
		ms.AddResponse(ctx.ObjectHref(calendarID, obj.UID), objectProps(obj, includeData), nil)
	}
	common.ServeMultiStatus(w, ms)
}

// reportQuery serves calendar-query. A parsed time-range narrows the
// result to objects overlapping [start, end); otherwise all objects
// are returned.
func (h *Handler) reportQuery(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID, start, end string, includeData bool) {
	var objs []*storage.Object
	var err error
	if start != "" && end != "" {
		objs, err = h.store.ListObjectsInRange(r.Context(), calendarID, start, end)
	} else {
		objs, err = h.store.ListObjects(r.Context(), calendarID)
	}
	if err != nil {
		h.internalError(w, err, "Listing objects failed")
		return
	}

	ms := common.NewMultiStatus()
	for _, obj := range objs {
		ms.AddResponse(ctx.ObjectHref(calendarID, obj.UID), objectProps(obj, includeData), nil)
	}
	common.ServeMultiStatus(w, ms)
}

// reportSync serves sync-collection. An empty or unknown token yields a
// full initial sync. Otherwise each change since the token becomes one
// response: deletions as bare 404 tombstones, creations and
// modifications as the object's current state, or a tombstone when the
// object has since disappeared. The trailing sync-token is the
// calendar's current one.
func (h *Handler) reportSync(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID, token string, includeData bool) {
	cal, err := h.store.GetCalendar(r.Context(), calendarID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Calendar not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "Loading calendar failed")
		return
	}

	initial := token == ""
	var changes []storage.SyncChange
	if !initial {
		var found bool
		changes, found, err = h.store.ChangesSince(r.Context(), calendarID, token)
		if err != nil {
			h.internalError(w, err, "Loading change log failed")
			return
		}
		// Unknown tokens mean the client's cursor predates the log.
		// Restart it with a full sync rather than erroring.
		if !found {
			initial = true
		}
	}

	ms := common.NewMultiStatus()
	if initial {
		objs, err := h.store.ListObjects(r.Context(), calendarID)
		if err != nil {
			h.internalError(w, err, "Listing objects failed")
			return
		}
		for _, obj := range objs {
			ms.AddResponse(ctx.ObjectHref(calendarID, obj.UID), objectProps(obj, includeData), nil)
		}
	} else {
		for _, ch := range changes {
			href := ctx.ObjectHref(calendarID, ch.ObjectUID)
			if ch.ChangeType == "deleted" {
				ms.AddTombstone(href)
				continue
			}
			obj, err := h.store.GetObject(r.Context(), calendarID, ch.ObjectUID)
			if errors.Is(err, storage.ErrNotFound) {
				ms.AddTombstone(href)
				continue
			}
			if err != nil {
				h.internalError(w, err, "Loading object failed")
				return
			}
			ms.AddResponse(href, objectProps(obj, includeData), nil)
		}
	}

	ms.AddSyncToken(cal.SyncToken)
	common.ServeMultiStatus(w, ms)
}
