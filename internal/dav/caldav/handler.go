// Package caldav implements the CalDAV frontend: method dispatch over
// the discovery, principal, calendar-home, collection and object URL
// levels, including the email-rooted URL family Apple Calendar's
// dataaccessd requires.
package caldav

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/common"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
)

const allowedMethods = "OPTIONS, GET, HEAD, PUT, DELETE, PROPFIND, PROPPATCH, REPORT, MKCALENDAR"

// xmlBodyLimit caps PROPFIND/PROPPATCH/REPORT/MKCALENDAR request bodies.
const xmlBodyLimit = 1 << 20

type Handler struct {
	store       storage.Store
	basic       *auth.BasicAuth
	logger      zerolog.Logger
	maxICSBytes int64
}

func New(store storage.Store, logger zerolog.Logger, maxICSBytes int64) *Handler {
	return &Handler{
		store:       store,
		basic:       &auth.BasicAuth{Store: store, Logger: logger},
		logger:      logger,
		maxICSBytes: maxICSBytes,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	if path == "/.well-known/caldav" {
		h.handleWellKnown(w, r)
		return
	}

	segs := splitPath(path)
	switch {
	case len(segs) == 0:
		h.handleDiscoveryRoot(w, r, "/", true)
	case segs[0] == "caldav":
		h.routeCaldav(w, r, segs[1:])
	case segs[0] == "principals":
		// Some clients probe /principals/ before reading the
		// well-known redirect. Point them at /caldav/.
		h.handleDiscoveryRoot(w, r, "/caldav/", false)
	case segs[0] == "calendar" && len(segs) >= 4 && segs[1] == "dav" && segs[3] == "user":
		h.routeEmail(w, r, segs[2], segs[4:])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) routeCaldav(w http.ResponseWriter, r *http.Request, segs []string) {
	switch {
	case len(segs) == 0:
		h.handleDiscoveryRoot(w, r, "/caldav/", false)
	case segs[0] == "principals" && len(segs) == 1:
		h.handleDiscoveryRoot(w, r, "/caldav/", false)
	case segs[0] == "principals" && len(segs) == 2:
		h.handlePrincipalRedirect(w, r, segs[1])
	case segs[0] == "users" && len(segs) == 2:
		h.handleCalendarHome(w, r, segs[1])
	case segs[0] == "users" && len(segs) == 3:
		h.handleUserCollection(w, r, segs[1], segs[2])
	case segs[0] == "users" && len(segs) == 4:
		h.handleUserObject(w, r, segs[1], segs[2], segs[3])
	default:
		http.NotFound(w, r)
	}
}

// routeEmail handles the /calendar/dav/{email}/user/ family. The email
// arrives percent-decoded in URL.Path; hrefs re-encode it.
func (h *Handler) routeEmail(w http.ResponseWriter, r *http.Request, email string, segs []string) {
	switch len(segs) {
	case 0:
		h.handleEmailHome(w, r, email)
	case 1:
		h.handleEmailCollection(w, r, email, segs[0])
	case 2:
		h.handleEmailObject(w, r, email, segs[0], segs[1])
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleWellKnown(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	http.Redirect(w, r, "/caldav/", http.StatusMovedPermanently)
}

func (h *Handler) handlePrincipalRedirect(w http.ResponseWriter, r *http.Request, username string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	http.Redirect(w, r, "/caldav/users/"+username+"/", http.StatusMovedPermanently)
}

func (h *Handler) handleUserCollection(w http.ResponseWriter, r *http.Request, username, calendarID string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	p, err := h.authOrPathUser(r, username)
	if err != nil {
		h.authFailure(w, err)
		return
	}
	h.serveCollection(w, r, p, userContext(username), username, calendarID)
}

func (h *Handler) handleUserObject(w http.ResponseWriter, r *http.Request, username, calendarID, filename string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	p, err := h.authOrPathUser(r, username)
	if err != nil {
		h.authFailure(w, err)
		return
	}
	h.serveObject(w, r, p, userContext(username), calendarID, filename)
}

func (h *Handler) handleEmailCollection(w http.ResponseWriter, r *http.Request, email, calendarID string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	p, err := h.authOrEmailUser(r, email)
	if err != nil {
		h.authFailure(w, err)
		return
	}
	h.serveCollection(w, r, p, emailContext(common.EncodeEmailForPath(email)), p.Username, calendarID)
}

func (h *Handler) handleEmailObject(w http.ResponseWriter, r *http.Request, email, calendarID, filename string) {
	if r.Method == http.MethodOptions {
		writeOptions(w)
		return
	}
	p, err := h.authOrEmailUser(r, email)
	if err != nil {
		h.authFailure(w, err)
		return
	}
	h.serveObject(w, r, p, emailContext(common.EncodeEmailForPath(email)), calendarID, filename)
}

// serveCollection dispatches collection-level methods after the shared
// access check. MKCALENDAR targets a calendar that does not exist yet,
// so it is checked against the path identity instead.
func (h *Handler) serveCollection(w http.ResponseWriter, r *http.Request, p *auth.Principal, ctx HrefContext, pathOwner, calendarID string) {
	if !common.SafeSegment(calendarID) {
		http.NotFound(w, r)
		return
	}

	if r.Method == "MKCALENDAR" {
		h.handleMkcalendar(w, r, p, pathOwner, calendarID)
		return
	}

	ok, err := h.canAccess(r.Context(), p, calendarID)
	if err != nil {
		h.internalError(w, err, "Calendar access check failed")
		return
	}
	if !ok {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	switch r.Method {
	case "PROPFIND":
		h.propfindCollection(w, r, ctx, calendarID)
	case "PROPPATCH":
		h.handleProppatch(w, r, ctx, calendarID)
	case "REPORT":
		h.handleReport(w, r, ctx, calendarID)
	case http.MethodDelete:
		h.deleteCalendar(w, r, p, calendarID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) serveObject(w http.ResponseWriter, r *http.Request, p *auth.Principal, ctx HrefContext, calendarID, filename string) {
	if !common.SafeSegment(calendarID) || !common.SafeSegment(filename) {
		http.NotFound(w, r)
		return
	}

	ok, err := h.canAccess(r.Context(), p, calendarID)
	if err != nil {
		h.internalError(w, err, "Calendar access check failed")
		return
	}
	if !ok {
		http.Error(w, "Access denied", http.StatusForbidden)
		return
	}

	uid := strings.TrimSuffix(filename, ".ics")
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r, calendarID, uid, true)
	case http.MethodHead:
		h.handleGet(w, r, calendarID, uid, false)
	case http.MethodPut:
		h.handlePut(w, r, calendarID, uid)
	case http.MethodDelete:
		h.handleDeleteObject(w, r, calendarID, uid)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// strictAuth requires valid Basic credentials.
func (h *Handler) strictAuth(r *http.Request) (*auth.Principal, error) {
	return h.basic.Authenticate(r.Context(), r.Header.Get("Authorization"))
}

// authOrPathUser resolves the request identity: strict Basic when an
// Authorization header is present, the path username otherwise. This
// returns an identity, not an authorisation; callers must still verify
// calendar access. dataaccessd only sends credentials to the URL it
// authenticated at during account setup, so collection URLs arrive bare.
func (h *Handler) authOrPathUser(r *http.Request, username string) (*auth.Principal, error) {
	if r.Header.Get("Authorization") != "" {
		return h.strictAuth(r)
	}
	user, err := h.store.GetUserByUsername(r.Context(), username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return principalOf(user), nil
}

// authOrEmailUser is authOrPathUser for the email URL family.
func (h *Handler) authOrEmailUser(r *http.Request, email string) (*auth.Principal, error) {
	if r.Header.Get("Authorization") != "" {
		return h.strictAuth(r)
	}
	user, err := h.store.GetUserByEmail(r.Context(), email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, auth.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	return principalOf(user), nil
}

// canAccess reports whether the user owns the calendar or holds a share.
func (h *Handler) canAccess(ctx context.Context, p *auth.Principal, calendarID string) (bool, error) {
	_, err := h.store.Permission(ctx, calendarID, p.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (h *Handler) authFailure(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUnauthorized) {
		h.unauthorized(w)
		return
	}
	h.internalError(w, err, "Authentication failed")
}

func (h *Handler) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="caldav"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

func (h *Handler) internalError(w http.ResponseWriter, err error, msg string) {
	h.logger.Error().Err(err).Msg(msg)
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

func principalOf(u *storage.User) *auth.Principal {
	p := &auth.Principal{UserID: u.ID, Username: u.Username}
	if u.Email != nil {
		p.Email = *u.Email
	}
	return p
}

func writeOptions(w http.ResponseWriter) {
	w.Header().Set("DAV", common.DAVCapabilities)
	w.Header().Set("Allow", allowedMethods)
	w.WriteHeader(http.StatusOK)
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// requestDepth parses the Depth header. Anything other than "1",
// including "infinity", collapses to 0.
func requestDepth(r *http.Request) int {
	if r.Header.Get("Depth") == "1" {
		return 1
	}
	return 0
}

func readBody(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, limit))
}
