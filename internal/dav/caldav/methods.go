package caldav

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/pkg/ical"
)

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, calendarID, uid string, withBody bool) {
	obj, err := h.store.GetObject(r.Context(), calendarID, uid)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "Loading object failed")
		return
	}

	if r.Header.Get("If-None-Match") == obj.ETag {
		w.Header().Set("ETag", obj.ETag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("ETag", obj.ETag)
	w.Header().Set("Last-Modified", obj.UpdatedAt.UTC().Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if withBody {
		_, _ = w.Write([]byte(obj.ICalData))
	}
}

// handlePut upserts a calendar object. The UID comes from the parsed
// body when present, otherwise from the filename.
func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, calendarID, fallbackUID string) {
	body, err := readBody(r, h.maxICSBytes+1)
	if err != nil {
		h.internalError(w, err, "Reading request body failed")
		return
	}
	if int64(len(body)) > h.maxICSBytes {
		http.Error(w, "Request body too large", http.StatusBadRequest)
		return
	}
	if !utf8.Valid(body) {
		http.Error(w, "Request body must be valid UTF-8", http.StatusBadRequest)
		return
	}

	data := string(body)
	fields := ical.ExtractFields(data)
	uid := fields.UID
	if uid == "" {
		uid = fallbackUID
	}
	if uid == "" {
		http.Error(w, "Missing UID", http.StatusBadRequest)
		return
	}

	// If-Match: * matches any current state, so the upsert proceeds
	// either way and only a concrete ETag is checked.
	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" && ifMatch != "*" {
		existing, err := h.store.GetObject(r.Context(), calendarID, uid)
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Precondition failed", http.StatusPreconditionFailed)
			return
		}
		if err != nil {
			h.internalError(w, err, "Loading object failed")
			return
		}
		if ifMatch != existing.ETag {
			http.Error(w, "Precondition failed", http.StatusPreconditionFailed)
			return
		}
	}

	obj, isNew, err := h.store.PutObject(r.Context(), calendarID, uid, data, storage.ObjectFields{
		Component: fields.Component,
		DTStart:   fields.DTStart,
		DTEnd:     fields.DTEnd,
		Summary:   fields.Summary,
	})
	if err != nil {
		h.internalError(w, err, "Storing object failed")
		return
	}

	w.Header().Set("ETag", obj.ETag)
	if isNew {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) handleDeleteObject(w http.ResponseWriter, r *http.Request, calendarID, uid string) {
	err := h.store.DeleteObject(r.Context(), calendarID, uid)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "Deleting object failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteCalendar removes a whole collection. Shares grant read or write
// on contents only, so the caller must be the owner.
func (h *Handler) deleteCalendar(w http.ResponseWriter, r *http.Request, p *auth.Principal, calendarID string) {
	cal, err := h.store.GetCalendar(r.Context(), calendarID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, err, "Loading calendar failed")
		return
	}
	if cal.OwnerID != p.UserID {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if err := h.store.DeleteCalendar(r.Context(), calendarID); err != nil {
		h.internalError(w, err, "Deleting calendar failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMkcalendar creates a calendar at the path's calendar id. The
// target does not exist yet, so instead of the ownership check the
// authenticated identity must match the path user.
func (h *Handler) handleMkcalendar(w http.ResponseWriter, r *http.Request, p *auth.Principal, pathOwner, calendarID string) {
	if p.Username != pathOwner {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	if _, err := h.store.GetCalendar(r.Context(), calendarID); err == nil {
		http.Error(w, "Calendar already exists", http.StatusMethodNotAllowed)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		h.internalError(w, err, "Loading calendar failed")
		return
	}

	body, _ := readBody(r, xmlBodyLimit)
	sets, _ := common.ParseSetProps(body)

	name := calendarID
	description := ""
	color := storage.DefaultColor
	timezone := storage.DefaultTimezone
	for _, set := range sets {
		switch {
		case set.Namespace == common.NSDAV && set.Local == "displayname":
			name = set.Value
		case set.Namespace == common.NSCalDAV && set.Local == "calendar-description":
			description = set.Value
		case set.Namespace == common.NSApple && set.Local == "calendar-color":
			color = set.Value
		}
	}

	if _, err := h.store.CreateCalendarWithID(r.Context(), calendarID, p.UserID, name, description, color, timezone); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			http.Error(w, "Calendar already exists", http.StatusMethodNotAllowed)
			return
		}
		h.internalError(w, err, "Creating calendar failed")
		return
	}

	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte("Calendar created"))
}

// handleProppatch updates the mutable calendar properties and reports
// a 200 propstat per accepted property.
func (h *Handler) handleProppatch(w http.ResponseWriter, r *http.Request, ctx HrefContext, calendarID string) {
	if _, err := h.store.GetCalendar(r.Context(), calendarID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "Calendar not found", http.StatusNotFound)
			return
		}
		h.internalError(w, err, "Loading calendar failed")
		return
	}

	body, _ := readBody(r, xmlBodyLimit)
	sets, _ := common.ParseSetProps(body)

	var name, description, color *string
	var applied []common.PropValue
	for _, set := range sets {
		v := set.Value
		switch {
		case set.Namespace == common.NSDAV && set.Local == "displayname":
			name = &v
		case set.Namespace == common.NSCalDAV && set.Local == "calendar-description":
			description = &v
		case set.Namespace == common.NSApple && set.Local == "calendar-color":
			color = &v
		default:
			continue
		}
		applied = append(applied, common.PropValue{
			Namespace: set.Namespace, Name: set.Local, Content: common.EmptyContent(),
		})
	}

	if name != nil || description != nil || color != nil {
		if _, err := h.store.UpdateCalendarProps(r.Context(), calendarID, name, description, color); err != nil {
			h.internalError(w, err, "Updating calendar failed")
			return
		}
	}

	ms := common.NewMultiStatus()
	ms.AddResponse(ctx.CalendarHref(calendarID), applied, nil)
	common.ServeMultiStatus(w, ms)
}
