package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage/sqlite"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := sqlite.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(st.Close)
	return st
}

func seedUserWithToken(t *testing.T, st storage.Store, username string) (*storage.User, string) {
	t.Helper()
	ctx := context.Background()
	hash, err := auth.HashPassword("secret123")
	require.NoError(t, err)
	email := username + "@example.com"
	user, err := st.CreateUser(ctx, username, &email, hash)
	require.NoError(t, err)

	raw, tokenHash, err := auth.GenerateToken()
	require.NoError(t, err)
	_, err = st.CreateToken(ctx, user.ID, tokenHash, "test-token")
	require.NoError(t, err)
	return user, raw
}

func rpcCall(t *testing.T, s *Server, token, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var parsed map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	return rec.Code, parsed
}

func toolCall(t *testing.T, s *Server, token, name string, args map[string]any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	status, resp := rpcCall(t, s, token, string(body))
	require.Equal(t, http.StatusOK, status)
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "expected success result, got: %v", resp)
	structured, ok := result["structuredContent"].(map[string]any)
	require.True(t, ok)
	return structured
}

func toolCallError(t *testing.T, s *Server, token, name string, args map[string]any) map[string]any {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	require.NoError(t, err)

	status, resp := rpcCall(t, s, token, string(body))
	require.Equal(t, http.StatusOK, status)
	rpcErr, ok := resp["error"].(map[string]any)
	require.True(t, ok, "expected error, got: %v", resp)
	return rpcErr
}

func TestMissingBearerIs401(t *testing.T) {
	st := newTestStore(t)
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, "", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", resp["error"])
}

func TestInvalidBearerIs401(t *testing.T) {
	st := newTestStore(t)
	s := NewServer(st, zerolog.Nop(), "full")

	status, _ := rpcCall(t, s, "mcp_bogus_token", `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestInitialize(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","clientInfo":{"name":"test","version":"0.1"}}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Mcp-Session-Id"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	result := resp["result"].(map[string]any)
	assert.Equal(t, "2025-03-26", result["protocolVersion"])
	assert.Equal(t, "caldav-mcp-server", result["serverInfo"].(map[string]any)["name"])
}

func TestPing(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, token, `{"jsonrpc":"2.0","id":1,"method":"ping"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{}, resp["result"])
}

func TestToolsListFullMode(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, token, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, status)
	toolList := resp["result"].(map[string]any)["tools"].([]any)
	require.Len(t, toolList, 12)

	names := make([]string, 0, len(toolList))
	for _, tool := range toolList {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.Contains(t, names, "list_calendars")
	assert.Contains(t, names, "create_event")
	assert.Contains(t, names, "share_calendar")
}

func TestUnknownMethod(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, token, `{"jsonrpc":"2.0","id":1,"method":"nonexistent/method"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(-32601), resp["error"].(map[string]any)["code"])
}

func TestNotificationReturns202(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, _ := rpcCall(t, s, token, `{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Equal(t, http.StatusAccepted, status)
}

func TestParseErrorReturns32700(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, token, "not valid json")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(-32700), resp["error"].(map[string]any)["code"])
}

func TestToolsCallMissingName(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	status, resp := rpcCall(t, s, token, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(-32602), resp["error"].(map[string]any)["code"])
}

func TestUnknownToolIsAppError(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	rpcErr := toolCallError(t, s, token, "nonexistent_tool", map[string]any{})
	assert.Equal(t, float64(-32000), rpcErr["code"])
	assert.Contains(t, rpcErr["message"], "unknown tool")
}

func TestCreateAndListCalendar(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	created := toolCall(t, s, token, "create_calendar", map[string]any{
		"name":        "Work",
		"description": "Work events",
		"color":       "#FF0000",
	})
	assert.Equal(t, "Work", created["name"])
	assert.Equal(t, "#FF0000", created["color"])
	calID := created["id"].(string)

	listed := toolCall(t, s, token, "list_calendars", map[string]any{})
	cals := listed["calendars"].([]any)
	require.Len(t, cals, 1)
	assert.Equal(t, calID, cals[0].(map[string]any)["id"])
}

func TestDeleteCalendar(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Temp", "", "#000", "UTC")
	require.NoError(t, err)

	result := toolCall(t, s, token, "delete_calendar", map[string]any{"calendar_id": cal.ID})
	assert.Equal(t, true, result["deleted"])

	_, err = st.GetCalendar(context.Background(), cal.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestEventLifecycle(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	created := toolCall(t, s, token, "create_event", map[string]any{
		"calendar_id": cal.ID,
		"title":       "Team Standup",
		"start":       "20260301T090000Z",
		"end":         "20260301T093000Z",
		"description": "Daily sync",
		"location":    "Room 42",
	})
	assert.Equal(t, "Team Standup", created["title"])
	uid := created["uid"].(string)
	etag := created["etag"].(string)
	assert.Contains(t, uid, "@caldav-server")

	got := toolCall(t, s, token, "get_event", map[string]any{
		"calendar_id": cal.ID,
		"event_uid":   uid,
	})
	assert.Equal(t, "Team Standup", got["summary"])
	assert.Equal(t, etag, got["etag"])
	assert.Contains(t, got["ical_data"].(string), "VEVENT")

	updated := toolCall(t, s, token, "update_event", map[string]any{
		"calendar_id": cal.ID,
		"event_uid":   uid,
		"title":       "Team Standup v2",
		"start":       "20260301T100000Z",
		"end":         "20260301T103000Z",
	})
	assert.Equal(t, true, updated["updated"])
	assert.NotEqual(t, etag, updated["etag"])

	deleted := toolCall(t, s, token, "delete_event", map[string]any{
		"calendar_id": cal.ID,
		"event_uid":   uid,
	})
	assert.Equal(t, true, deleted["deleted"])

	_, err = st.GetObject(context.Background(), cal.ID, uid)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestCreateEventAcceptsISO8601(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	created := toolCall(t, s, token, "create_event", map[string]any{
		"calendar_id": cal.ID,
		"title":       "ISO Times",
		"start":       "2026-03-01T09:00:00Z",
		"end":         "2026-03-01T10:00:00Z",
	})
	assert.Equal(t, "20260301T090000Z", created["start"])
	assert.Equal(t, "20260301T100000Z", created["end"])
}

func TestQueryEventsTimeRange(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	toolCall(t, s, token, "create_event", map[string]any{
		"calendar_id": cal.ID, "title": "Morning",
		"start": "20260301T090000Z", "end": "20260301T100000Z",
	})
	toolCall(t, s, token, "create_event", map[string]any{
		"calendar_id": cal.ID, "title": "Afternoon",
		"start": "20260301T140000Z", "end": "20260301T150000Z",
	})

	all := toolCall(t, s, token, "query_events", map[string]any{"calendar_id": cal.ID})
	assert.Equal(t, float64(2), all["count"])

	ranged := toolCall(t, s, token, "query_events", map[string]any{
		"calendar_id": cal.ID,
		"start":       "20260301T080000Z",
		"end":         "20260301T110000Z",
	})
	assert.Equal(t, float64(1), ranged["count"])
	events := ranged["events"].([]any)
	assert.Equal(t, "Morning", events[0].(map[string]any)["summary"])
}

func TestCrossUserCalendarDenied(t *testing.T) {
	st := newTestStore(t)
	alice, _ := seedUserWithToken(t, st, "alice")
	_, bobToken := seedUserWithToken(t, st, "bob")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), alice.ID, "Private", "", "#000", "UTC")
	require.NoError(t, err)

	rpcErr := toolCallError(t, s, bobToken, "create_event", map[string]any{
		"calendar_id": cal.ID,
		"title":       "Intrusion",
		"start":       "20260301T090000Z",
		"end":         "20260301T100000Z",
	})
	assert.Equal(t, float64(-32000), rpcErr["code"])
}

func TestShareUnshareFlow(t *testing.T) {
	st := newTestStore(t)
	_, aliceToken := seedUserWithToken(t, st, "alice")
	_, bobToken := seedUserWithToken(t, st, "bob")
	s := NewServer(st, zerolog.Nop(), "full")

	created := toolCall(t, s, aliceToken, "create_calendar", map[string]any{"name": "Shared Cal"})
	calID := created["id"].(string)

	shared := toolCall(t, s, aliceToken, "share_calendar", map[string]any{
		"calendar_id": calID,
		"username":    "bob",
		"permission":  "read",
	})
	assert.Equal(t, "bob", shared["shared_with"])
	assert.Equal(t, "read", shared["permission"])

	bobView := toolCall(t, s, bobToken, "list_shared_calendars", map[string]any{})
	sharedCals := bobView["shared_calendars"].([]any)
	require.Len(t, sharedCals, 1)
	assert.Equal(t, "Shared Cal", sharedCals[0].(map[string]any)["name"])

	// Read share must not grant writes.
	rpcErr := toolCallError(t, s, bobToken, "create_event", map[string]any{
		"calendar_id": calID,
		"title":       "Nope",
		"start":       "20260301T090000Z",
		"end":         "20260301T100000Z",
	})
	assert.Equal(t, float64(-32000), rpcErr["code"])

	unshared := toolCall(t, s, aliceToken, "unshare_calendar", map[string]any{
		"calendar_id": calID,
		"username":    "bob",
	})
	assert.Equal(t, true, unshared["unshared"])

	bobView = toolCall(t, s, bobToken, "list_shared_calendars", map[string]any{})
	assert.Empty(t, bobView["shared_calendars"])
}

func TestShareRequiresOwner(t *testing.T) {
	st := newTestStore(t)
	alice, _ := seedUserWithToken(t, st, "alice")
	_, bobToken := seedUserWithToken(t, st, "bob")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), alice.ID, "Private", "", "#000", "UTC")
	require.NoError(t, err)

	rpcErr := toolCallError(t, s, bobToken, "share_calendar", map[string]any{
		"calendar_id": cal.ID,
		"username":    "bob",
		"permission":  "read",
	})
	assert.Equal(t, float64(-32000), rpcErr["code"])
}

func TestGetEventNotFound(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	rpcErr := toolCallError(t, s, token, "get_event", map[string]any{
		"calendar_id": cal.ID,
		"event_uid":   "nonexistent-uid",
	})
	assert.Equal(t, float64(-32000), rpcErr["code"])
	assert.Contains(t, rpcErr["message"], "not found")
}

func TestDeleteSession(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	req := httptest.NewRequest(http.MethodDelete, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Mcp-Session-Id", "some-session-id")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Session terminated", rec.Body.String())
}

func TestGetOpensEventStream(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "full")

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}

func TestSimpleModeToolsList(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "simple")

	status, resp := rpcCall(t, s, token, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	require.Equal(t, http.StatusOK, status)
	toolList := resp["result"].(map[string]any)["tools"].([]any)
	require.Len(t, toolList, 3)

	names := make([]string, 0, len(toolList))
	for _, tool := range toolList {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{"add_event", "delete_event", "list_events"}, names)
}

func TestSimpleAddCreatesDefaultCalendar(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "simple")

	result := toolCall(t, s, token, "add_event", map[string]any{
		"title": "Standup",
		"start": "20260301T090000Z",
		"end":   "20260301T093000Z",
	})
	assert.Equal(t, "Standup", result["title"])
	assert.NotEmpty(t, result["uid"])

	cals, err := st.ListCalendarsVisibleTo(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, cals, 1)
	assert.Equal(t, "Calendar", cals[0].Name)
}

func TestSimpleAddUsesExistingCalendar(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "simple")

	cal, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	toolCall(t, s, token, "add_event", map[string]any{
		"title": "Lunch",
		"start": "20260301T120000Z",
		"end":   "20260301T130000Z",
	})

	cals, err := st.ListCalendarsVisibleTo(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, cals, 1)

	objs, err := st.ListObjects(context.Background(), cal.ID)
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "Lunch", *objs[0].Summary)
}

func TestSimpleListWithTimeRange(t *testing.T) {
	st := newTestStore(t)
	user, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "simple")

	_, err := st.CreateCalendar(context.Background(), user.ID, "Work", "", "#000", "UTC")
	require.NoError(t, err)

	toolCall(t, s, token, "add_event", map[string]any{
		"title": "March Event",
		"start": "20260301T090000Z",
		"end":   "20260301T100000Z",
	})
	toolCall(t, s, token, "add_event", map[string]any{
		"title": "April Event",
		"start": "20260401T090000Z",
		"end":   "20260401T100000Z",
	})

	all := toolCall(t, s, token, "list_events", map[string]any{})
	assert.Equal(t, float64(2), all["count"])

	march := toolCall(t, s, token, "list_events", map[string]any{
		"start": "20260301T000000Z",
		"end":   "20260331T235959Z",
	})
	assert.Equal(t, float64(1), march["count"])
	events := march["events"].([]any)
	assert.Equal(t, "March Event", events[0].(map[string]any)["summary"])
}

func TestSimpleModeHidesFullTools(t *testing.T) {
	st := newTestStore(t)
	_, token := seedUserWithToken(t, st, "alice")
	s := NewServer(st, zerolog.Nop(), "simple")

	rpcErr := toolCallError(t, s, token, "create_event", map[string]any{})
	assert.Equal(t, float64(-32000), rpcErr["code"])
}

func TestSessionManager(t *testing.T) {
	m := NewSessionManager()
	sid := m.Create("user-123")

	userID, ok := m.UserID(sid)
	assert.True(t, ok)
	assert.Equal(t, "user-123", userID)

	m.Remove(sid)
	_, ok = m.UserID(sid)
	assert.False(t, ok)

	_, ok = m.UserID("nonexistent")
	assert.False(t, ok)
}
