package integration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/caldav-mcp/internal/auth"
	"github.com/sonroyaalmerol/caldav-mcp/internal/dav/caldav"
	"github.com/sonroyaalmerol/caldav-mcp/internal/mcp"
	"github.com/sonroyaalmerol/caldav-mcp/internal/router"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage"
	"github.com/sonroyaalmerol/caldav-mcp/internal/storage/sqlite"
)

// env runs both frontends over one store, the way the binary wires them.
type env struct {
	store     storage.Store
	caldavURL string
	mcpURL    string
	client    *http.Client
}

func newEnv(t *testing.T, toolMode string) *env {
	t.Helper()
	logger := zerolog.Nop()
	store, err := sqlite.New(":memory:", logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	davSrv := httptest.NewServer(router.CalDAV(caldav.New(store, logger, 256<<10), logger))
	t.Cleanup(davSrv.Close)
	mcpSrv := httptest.NewServer(router.MCP(mcp.NewServer(store, logger, toolMode), logger))
	t.Cleanup(mcpSrv.Close)

	return &env{
		store:     store,
		caldavURL: davSrv.URL,
		mcpURL:    mcpSrv.URL + "/mcp",
		client:    &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }},
	}
}

func (e *env) createUser(t *testing.T, username, password string) *storage.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	email := username + "@example.com"
	user, err := e.store.CreateUser(context.Background(), username, &email, hash)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (e *env) createToken(t *testing.T, userID string) string {
	t.Helper()
	raw, hash, err := auth.GenerateToken()
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := e.store.CreateToken(context.Background(), userID, hash, "integration"); err != nil {
		t.Fatalf("store token: %v", err)
	}
	return raw
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

type davResponse struct {
	status int
	header http.Header
	body   string
}

func (e *env) dav(t *testing.T, method, path, authz, body string, headers map[string]string) davResponse {
	t.Helper()
	req, err := http.NewRequest(method, e.caldavURL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return davResponse{status: resp.StatusCode, header: resp.Header, body: string(b)}
}

// rpc posts one JSON-RPC request to the MCP endpoint.
func (e *env) rpc(t *testing.T, token string, payload map[string]any) map[string]any {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, e.mcpURL, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("post rpc: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rpc status = %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode rpc response: %v", err)
	}
	return out
}

// callTool invokes an MCP tool and returns its structuredContent.
func (e *env) callTool(t *testing.T, token, name string, args map[string]any) map[string]any {
	t.Helper()
	resp := e.rpc(t, token, map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": name, "arguments": args},
	})
	result, ok := resp["result"].(map[string]any)
	if !ok {
		t.Fatalf("tool %s failed: %v", name, resp["error"])
	}
	structured, ok := result["structuredContent"].(map[string]any)
	if !ok {
		t.Fatalf("tool %s returned no structuredContent", name)
	}
	return structured
}

// Minimal Multi-Status parser sufficient for validations.
type multiStatus struct {
	XMLName   xml.Name     `xml:"multistatus"`
	Responses []msResponse `xml:"response"`
	SyncToken string       `xml:"sync-token"`
}

type msResponse struct {
	Href     string     `xml:"href"`
	PropStat []propStat `xml:"propstat"`
	Status   string     `xml:"status"`
}

type propStat struct {
	Status  string `xml:"status"`
	PropRaw anyXML `xml:"prop"`
}

type anyXML struct {
	Inner string `xml:",innerxml"`
}

func parseMultiStatus(t *testing.T, body string) *multiStatus {
	t.Helper()
	var ms multiStatus
	if err := xml.Unmarshal([]byte(body), &ms); err != nil {
		t.Fatalf("parse multistatus: %v\n%s", err, body)
	}
	return &ms
}

func hrefs(ms *multiStatus) []string {
	out := make([]string, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		out = append(out, r.Href)
	}
	return out
}
