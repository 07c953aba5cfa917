package domreview

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domreview/agentapi"
	"github.com/hazyhaar/domreview/bridge"
	"github.com/hazyhaar/domreview/config"
	"github.com/hazyhaar/domreview/dom"
	"github.com/hazyhaar/domreview/notify"
	"github.com/hazyhaar/domreview/review"
	"github.com/hazyhaar/domreview/storage"
)

const testPage = `<!DOCTYPE html><html><head><title>Shop</title></head><body>
<header><h1 id="title">Shop</h1></header>
<main><button id="buy" class="btn" style="background-color: green">Buy now</button></main>
</body></html>`

var testClock = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func parse(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(testPage, "https://example.com/shop")
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Debounce = 5 * time.Millisecond
	return cfg
}

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithStorage(storage.NewMemory()), WithClock(func() time.Time { return testClock })}, opts...)
	s, err := New(context.Background(), testConfig(), parse(t), nil, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatal(err)
	}
}

func TestHTTP_CallAndList(t *testing.T) {
	s := newSession(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := do(t, srv, http.MethodPost, "/api/call",
		`{"method":"addComment","params":{"selector":"#buy","comment":"Make it orange","priority":"high"}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	var env bridge.Response
	decode(t, resp, &env)
	if !env.Success {
		t.Fatalf("addComment failed: %s", env.Error)
	}

	resp = do(t, srv, http.MethodPost, "/api/call", `{"method":"explode"}`)
	decode(t, resp, &env)
	if env.Success || env.Error != "Unknown method: explode" {
		t.Fatalf("unknown method: %+v", env)
	}

	resp = do(t, srv, http.MethodGet, "/api/reviews?filter=open&sort=priority", "")
	var list reviewList
	decode(t, resp, &list)
	if list.Open != 1 || len(list.Reviews) != 1 || list.Page != "https://example.com/shop" {
		t.Fatalf("list: %+v", list)
	}
	r := list.Reviews[0]
	if r.Priority != review.PriorityHigh || r.Context == nil || r.Context.Styles["backgroundColor"] != "green" {
		t.Fatalf("review: %+v", r)
	}

	if resp := do(t, srv, http.MethodGet, "/api/reviews?sort=size", ""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad sort: got %d, want 400", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/api/call", `{`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad body: got %d, want 400", resp.StatusCode)
	}
}

func TestHTTP_UserReply(t *testing.T) {
	s := newSession(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	id, err := s.Client().AddComment(context.Background(), agentapi.Params{Selector: "#title", Comment: agentapi.Text("Too small")})
	if err != nil {
		t.Fatal(err)
	}

	resp := do(t, srv, http.MethodPost, "/api/reviews/"+id+"/replies", `{"comment":"agreed"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want 201", resp.StatusCode)
	}
	got, _ := s.Store().Get(id)
	if len(got.Replies) != 1 || got.Replies[0].Author != agentapi.AuthorUser || got.Replies[0].Comment != "agreed" {
		t.Fatalf("replies: %+v", got.Replies)
	}

	if resp := do(t, srv, http.MethodPost, "/api/reviews/r_404/replies", `{"comment":"x"}`); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown review: got %d, want 404", resp.StatusCode)
	}
	if resp := do(t, srv, http.MethodPost, "/api/reviews/"+id+"/replies", `{"comment":""}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty comment: got %d, want 400", resp.StatusCode)
	}
}

func TestHTTP_ExportImport(t *testing.T) {
	src := newSession(t)
	ctx := context.Background()
	if _, err := src.Client().AddComment(ctx, agentapi.Params{Selector: "#buy", Comment: agentapi.Text("a")}); err != nil {
		t.Fatal(err)
	}
	srcSrv := httptest.NewServer(src.Routes())
	defer srcSrv.Close()

	resp := do(t, srcSrv, http.MethodGet, "/api/export", "")
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="dom-review-example-com-2026-10-17.json"` {
		t.Fatalf("content disposition: %q", cd)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)

	dst := newSession(t)
	dstSrv := httptest.NewServer(dst.Routes())
	defer dstSrv.Close()

	if resp := do(t, dstSrv, http.MethodPost, "/api/import", `{"reviews":[{"id":"r_1"}]}`); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid import: got %d, want 400", resp.StatusCode)
	}
	resp = do(t, dstSrv, http.MethodPost, "/api/import", buf.String())
	var out map[string]int
	decode(t, resp, &out)
	if out["imported"] != 1 || dst.Store().Len() != 1 {
		t.Fatalf("imported: %v, store has %d", out, dst.Store().Len())
	}
}

func TestHTTP_PageAndReport(t *testing.T) {
	s := newSession(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	id, err := s.Client().AddComment(context.Background(), agentapi.Params{Selector: "#buy", Comment: agentapi.Text("Bigger"), Category: "layout"})
	if err != nil {
		t.Fatal(err)
	}

	resp := do(t, srv, http.MethodGet, "/page", "")
	var page bytes.Buffer
	page.ReadFrom(resp.Body)
	for _, want := range []string{`data-review-id="` + id + `"`, `id="dom-review-data"`, `"getReviews"`} {
		if !strings.Contains(page.String(), want) {
			t.Fatalf("page lacks %q", want)
		}
	}

	resp = do(t, srv, http.MethodGet, "/api/report", "")
	var md bytes.Buffer
	md.ReadFrom(resp.Body)
	if !strings.Contains(md.String(), "[MEDIUM] layout: Bigger") {
		t.Fatalf("report:\n%s", md.String())
	}

	resp = do(t, srv, http.MethodGet, "/health", "")
	var health map[string]any
	decode(t, resp, &health)
	if health["status"] != "ok" || health["reviews"] != float64(1) {
		t.Fatalf("health: %v", health)
	}
}

func TestHTTP_Hardening(t *testing.T) {
	s := newSession(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	resp := do(t, srv, http.MethodGet, "/page", "")
	if csp := resp.Header.Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'none'") {
		t.Fatalf("page csp: %q", csp)
	}
	resp = do(t, srv, http.MethodGet, "/api/reviews", "")
	if csp := resp.Header.Get("Content-Security-Policy"); csp != "default-src 'none'; frame-ancestors 'none'" {
		t.Fatalf("api csp: %q", csp)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	resp = do(t, srv, http.MethodHead, "/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("HEAD /health: got %d, want 200", resp.StatusCode)
	}

	if got := bodyStatus(&http.MaxBytesError{Limit: maxBody}); got != http.StatusRequestEntityTooLarge {
		t.Fatalf("body cap status: got %d, want 413", got)
	}
	if got := bodyStatus(io.ErrUnexpectedEOF); got != http.StatusBadRequest {
		t.Fatalf("bad body status: got %d, want 400", got)
	}
}

func TestHTTP_WebSocket(t *testing.T) {
	s := newSession(t)
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := s.Client().AddComment(context.Background(), agentapi.Params{Selector: "#buy", Comment: agentapi.Text("x")}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Type string        `json:"type"`
		Data notify.Change `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatal(err)
	}
	if env.Data.Open != 1 || env.Data.Page != "https://example.com/shop" {
		t.Fatalf("change: %+v", env)
	}
}

func mcpSession(t *testing.T, s *Session) *mcp.ClientSession {
	t.Helper()
	srv := s.MCPServer()
	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "domreview-test", Version: "0.1.0"}, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) (string, bool) {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text, result.IsError
}

func TestMCP_Tools(t *testing.T) {
	s := newSession(t)
	session := mcpSession(t, s)

	tools, err := session.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tools.Tools) != len(agentapi.Methods) {
		t.Fatalf("tools: got %d, want %d", len(tools.Tools), len(agentapi.Methods))
	}

	text, isErr := callTool(t, session, "domreview_addComment", map[string]any{
		"selector": "#title",
		"comment":  "Rename to Store",
		"category": "text",
	})
	if isErr {
		t.Fatalf("addComment: %s", text)
	}
	var added agentapi.Added
	if err := json.Unmarshal([]byte(text), &added); err != nil {
		t.Fatal(err)
	}

	text, isErr = callTool(t, session, "domreview_getReviews", map[string]any{})
	if isErr {
		t.Fatalf("getReviews: %s", text)
	}
	var snap review.Snapshot
	if err := json.Unmarshal([]byte(text), &snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Reviews) != 1 || snap.Reviews[0].ID != added.ID || snap.Reviews[0].Category != review.CategoryText {
		t.Fatalf("snapshot: %+v", snap)
	}

	if text, isErr = callTool(t, session, "domreview_resolveReview", map[string]any{"reviewId": added.ID}); isErr || text != `{"success":true}` {
		t.Fatalf("resolve: %s (error %v)", text, isErr)
	}

	text, isErr = callTool(t, session, "domreview_resolveReview", map[string]any{"reviewId": "r_missing"})
	if !isErr || text != "Review r_missing not found" {
		t.Fatalf("resolve missing: %q (error %v)", text, isErr)
	}
}

func TestSession_PersistsAcrossSessions(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "reviews.db")
	ctx := context.Background()

	first, err := New(ctx, cfg, parse(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := first.Client().AddComment(ctx, agentapi.Params{Selector: "#buy", Comment: agentapi.Text("persist me")})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(ctx); err != nil {
		t.Fatal(err)
	}

	doc := parse(t)
	second, err := New(ctx, cfg, doc, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close(ctx)

	r, ok := second.Store().Get(id)
	if !ok || r.Comment != "persist me" {
		t.Fatalf("review after reload: %+v, %v", r, ok)
	}
	if v, _ := doc.Attr(doc.ElementByID("buy"), review.MarkerAttr); v != id {
		t.Fatalf("marker after reload: got %q, want %q", v, id)
	}
	if _, ok := doc.JSONScript(review.DataScriptID); !ok {
		t.Fatal("page data node not written on load")
	}
}

func TestSession_PicksUpExternalWrites(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "reviews.db")
	cfg.Storage.Watch = 20 * time.Millisecond
	cfg.Debounce = 5 * time.Millisecond
	ctx := context.Background()

	changes := make(chan notify.Change, 8)
	server, err := New(ctx, cfg, parse(t), nil, WithSink(notify.Func(func(_ context.Context, c notify.Change) error {
		changes <- c
		return nil
	})))
	if err != nil {
		t.Fatal(err)
	}
	defer server.Close(ctx)

	cli, err := New(ctx, cfg, parse(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	id, err := cli.Client().AddComment(ctx, agentapi.Params{Selector: "#buy", Comment: agentapi.Text("from the cli")})
	if err != nil {
		t.Fatal(err)
	}
	if err := cli.Close(ctx); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if c.Open != 1 {
			t.Fatalf("change: %+v", c)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("external write not picked up")
	}
	if r, ok := server.Store().Get(id); !ok || r.Comment != "from the cli" {
		t.Fatalf("server store: %+v, %v", r, ok)
	}
}

func TestSession_ExtraSink(t *testing.T) {
	var (
		mu  sync.Mutex
		got []notify.Change
	)
	s, err := New(context.Background(), testConfig(), parse(t), nil,
		WithStorage(storage.NewMemory()),
		WithSink(notify.Func(func(_ context.Context, c notify.Change) error {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
			return nil
		})))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	id, err := s.Client().AddComment(ctx, agentapi.Params{Selector: "#buy", Comment: agentapi.Text("x")})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Client().Resolve(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[1].Resolved != 1 {
		t.Fatalf("changes: %+v", got)
	}
}

func TestOpenStorage_SQLiteTuning(t *testing.T) {
	st, err := openStorage(config.StorageConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "reviews.db"),
		BusyTimeout: 2500 * time.Millisecond,
		Synchronous: "full",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	sq := st.(*storage.SQLite)
	sq.DB.SetMaxOpenConns(2)

	// A second connection gets the same pragmas as the first.
	ctx := context.Background()
	c1, err := sq.DB.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c1.Close()
	c2, err := sq.DB.Conn(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer c2.Close()
	for i, c := range []*sql.Conn{c1, c2} {
		var busy, sync int
		if err := c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&busy); err != nil {
			t.Fatal(err)
		}
		if err := c.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync); err != nil {
			t.Fatal(err)
		}
		if busy != 2500 || sync != 2 {
			t.Fatalf("conn %d: busy_timeout = %d, synchronous = %d, want 2500, 2", i, busy, sync)
		}
	}
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	if _, err := openStorage(config.StorageConfig{Driver: "redis"}); err == nil {
		t.Fatal("expected error")
	}
}
