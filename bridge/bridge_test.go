package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hazyhaar/domreview/dom"
)

func newDoc(t *testing.T) *dom.Document {
	t.Helper()
	d, err := dom.ParseString(`<html><body><p id="x">x</p></body></html>`, "https://example.com/")
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func echo(ctx context.Context, call Call) Response {
	var params map[string]any
	_ = json.Unmarshal(call.Params, &params)
	return OK(call.RequestID, map[string]any{"method": call.Method, "params": params})
}

func TestClient_RoundTrip(t *testing.T) {
	doc := newDoc(t)
	stop := Serve(doc, Agent, HandlerFunc(echo), nil)
	defer stop()

	c := NewClient(doc, Agent)
	resp := c.Call(context.Background(), "getReview", map[string]string{"reviewId": "r_1"})
	if !resp.Success || resp.Synthesized {
		t.Fatalf("response: %+v", resp)
	}
	var data struct {
		Method string            `json:"method"`
		Params map[string]string `json:"params"`
	}
	if err := resp.Decode(&data); err != nil {
		t.Fatal(err)
	}
	if data.Method != "getReview" || data.Params["reviewId"] != "r_1" {
		t.Fatalf("echo: %+v", data)
	}

	root := doc.DocumentElement()
	for _, attr := range []string{Agent.RequestAttr, Agent.ResponseAttr} {
		if _, ok := doc.Attr(root, attr); ok {
			t.Fatalf("%s left on the document after the exchange", attr)
		}
	}
}

func TestClient_RequestIDs(t *testing.T) {
	doc := newDoc(t)
	var ids []string
	stop := Serve(doc, Agent, HandlerFunc(func(ctx context.Context, call Call) Response {
		ids = append(ids, call.RequestID)
		return OK(call.RequestID, nil)
	}), nil)
	defer stop()

	c := NewClient(doc, Agent)
	for range 2 {
		if resp := c.Call(context.Background(), "getReviews", nil); !resp.Success {
			t.Fatalf("response: %+v", resp)
		}
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("request ids: %v", ids)
	}
	for _, id := range ids {
		u, err := uuid.Parse(strings.TrimPrefix(id, "req_"))
		if !strings.HasPrefix(id, "req_") || err != nil || u.Version() != 7 {
			t.Fatalf("request id %q: want req_<uuidv7>, parse error %v", id, err)
		}
	}
}

func TestClient_NoListener(t *testing.T) {
	doc := newDoc(t)
	resp := NewClient(doc, Agent).Call(context.Background(), "getReviews", nil)
	if resp.Success || !resp.Synthesized || resp.Error != ErrNoResponse {
		t.Fatalf("response: %+v", resp)
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	doc := newDoc(t)
	doc.AddEventListener(Agent.Event, func(*dom.Event) {
		doc.SetAttr(doc.DocumentElement(), Agent.ResponseAttr, "{not json")
	})
	resp := NewClient(doc, Agent).Call(context.Background(), "getReviews", nil)
	if resp.Success || !resp.Synthesized {
		t.Fatalf("response: %+v", resp)
	}
	if len(resp.Error) <= len(ErrInvalidResponse) || resp.Error[:len(ErrInvalidResponse)] != ErrInvalidResponse {
		t.Fatalf("error: got %q", resp.Error)
	}
}

func TestServe_InvalidRequestJSON(t *testing.T) {
	doc := newDoc(t)
	stop := Serve(doc, Agent, HandlerFunc(echo), nil)
	defer stop()

	raw, ok := Exchange(context.Background(), doc, doc.DocumentElement(), Agent, "{broken")
	if !ok {
		t.Fatal("no response to malformed request")
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Error != "Invalid request JSON" || resp.RequestID != "" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestServe_PanicBecomesInternalError(t *testing.T) {
	doc := newDoc(t)
	stop := Serve(doc, Agent, HandlerFunc(func(context.Context, Call) Response { panic("store exploded") }), nil)
	defer stop()

	resp := NewClient(doc, Agent).Call(context.Background(), "getReviews", nil)
	if resp.Success || resp.Error != "Internal error: store exploded" {
		t.Fatalf("response: %+v", resp)
	}
}

func TestServe_Stop(t *testing.T) {
	doc := newDoc(t)
	stop := Serve(doc, Agent, HandlerFunc(echo), nil)
	stop()
	if resp := NewClient(doc, Agent).Call(context.Background(), "getReviews", nil); !resp.Synthesized {
		t.Fatalf("uninstalled handler still answered: %+v", resp)
	}
}

func TestExchange_MutualExclusion(t *testing.T) {
	doc := newDoc(t)
	root := doc.DocumentElement()

	var (
		active   atomic.Int32
		overlaps atomic.Int32
	)
	stop := Serve(doc, Agent, HandlerFunc(func(ctx context.Context, call Call) Response {
		if active.Add(1) > 1 {
			overlaps.Add(1)
		}
		if _, leftover := doc.Attr(root, Agent.ResponseAttr); leftover {
			overlaps.Add(1)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return OK(call.RequestID, nil)
	}), nil)
	defer stop()

	c := NewClient(doc, Agent)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if resp := c.Call(context.Background(), "getReviews", nil); !resp.Success {
				t.Errorf("call failed: %+v", resp)
			}
		}()
	}
	wg.Wait()
	if n := overlaps.Load(); n != 0 {
		t.Fatalf("overlapping exchanges: %d", n)
	}
}

func TestExchange_NestedCallFromListener(t *testing.T) {
	doc := newDoc(t)
	inner := Channel{Event: "inner", RequestAttr: "data-inner-req", ResponseAttr: "data-inner-resp"}
	doc.AddEventListener(inner.Event, func(ev *dom.Event) {
		doc.SetAttr(ev.Target, inner.ResponseAttr, "inner-ok")
	})
	stop := Serve(doc, Agent, HandlerFunc(func(ctx context.Context, call Call) Response {
		raw, ok := Exchange(ctx, doc, doc.ElementByID("x"), inner, "")
		if !ok {
			return Fail(call.RequestID, "inner exchange failed")
		}
		return OK(call.RequestID, raw)
	}), nil)
	defer stop()

	done := make(chan Response, 1)
	go func() { done <- NewClient(doc, Agent).Call(context.Background(), "nested", nil) }()
	select {
	case resp := <-done:
		var got string
		if err := resp.Decode(&got); err != nil || got != "inner-ok" {
			t.Fatalf("nested: %q %v", got, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("nested exchange deadlocked")
	}
}

func TestReady(t *testing.T) {
	doc := newDoc(t)
	if Ready(doc, Agent) {
		t.Fatal("ready before announce")
	}
	NewClient(doc, Agent).Announce()
	if !Ready(doc, Agent) {
		t.Fatal("not ready after announce")
	}
}

func TestOK_NoData(t *testing.T) {
	resp := OK("req_1", nil)
	raw, _ := json.Marshal(resp)
	if string(raw) != `{"requestId":"req_1","success":true}` {
		t.Fatalf("encoded: %s", raw)
	}
}
