package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func testServer(t *testing.T, status int) (*httptest.Server, *[]map[string]any) {
	t.Helper()
	var mu sync.Mutex
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("bad payload: %v", err)
		}
		payload["_auth"] = r.Header.Get("Authorization")
		mu.Lock()
		bodies = append(bodies, payload)
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestDispatchMissingCredentials(t *testing.T) {
	srv, bodies := testServer(t, http.StatusOK)
	d := NewDispatcher(srv.URL,
		AppCred{Name: "appA", AppID: "id-a", APIKey: "key-a"},
		AppCred{Name: "appB"}, // 未配置
	)

	sent, results := d.DispatchToAllApps(context.Background(), GroupIDs{
		AppA: []string{"p1"},
		AppB: []string{"p1"},
	}, "Alice", "hi", nil)

	if !sent {
		t.Fatalf("appA succeeded, sent should be true")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %+v", results)
	}
	var sawMissing bool
	for _, r := range results {
		if r.App == "appB" {
			sawMissing = true
			if r.Success || r.Error != "Missing credentials" {
				t.Fatalf("appB result wrong: %+v", r)
			}
		}
	}
	if !sawMissing {
		t.Fatalf("no appB entry in %+v", results)
	}
	if len(*bodies) != 1 {
		t.Fatalf("only appA should hit the endpoint, got %d calls", len(*bodies))
	}
}

func TestDispatchEmptyIDListSkipped(t *testing.T) {
	srv, bodies := testServer(t, http.StatusOK)
	d := NewDispatcher(srv.URL,
		AppCred{Name: "appA", AppID: "id-a", APIKey: "key-a"},
		AppCred{Name: "appB", AppID: "id-b", APIKey: "key-b"},
	)

	sent, results := d.DispatchToAllApps(context.Background(), GroupIDs{AppA: []string{"p1"}}, "t", "b", nil)
	if !sent || len(results) != 1 {
		t.Fatalf("configured app with empty list should be skipped silently: %v %+v", sent, results)
	}
	if len(*bodies) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*bodies))
	}
}

func TestDispatchPayloadShape(t *testing.T) {
	srv, bodies := testServer(t, http.StatusOK)
	d := NewDispatcher(srv.URL,
		AppCred{Name: "appA", AppID: "id-a", APIKey: "key-a"},
		AppCred{Name: "appB"},
	)

	d.DispatchToAllApps(context.Background(), GroupIDs{AppA: []string{"p1", "p2"}},
		"Alice", "hello", map[string]any{"childId": "c1"})

	b := (*bodies)[0]
	if b["app_id"] != "id-a" {
		t.Fatalf("app_id wrong: %v", b["app_id"])
	}
	if b["_auth"] != "Basic key-a" {
		t.Fatalf("auth header wrong: %v", b["_auth"])
	}
	ids, _ := b["include_player_ids"].([]any)
	if len(ids) != 2 {
		t.Fatalf("player ids wrong: %v", b["include_player_ids"])
	}
	headings, _ := b["headings"].(map[string]any)
	if headings["en"] != "Alice" {
		t.Fatalf("headings wrong: %v", b["headings"])
	}
	data, _ := b["data"].(map[string]any)
	if data["childId"] != "c1" {
		t.Fatalf("data wrong: %v", b["data"])
	}
}

func TestDispatchNon2xxFailsThatAppOnly(t *testing.T) {
	bad, _ := testServer(t, http.StatusBadRequest)
	d := NewDispatcher(bad.URL,
		AppCred{Name: "appA", AppID: "id-a", APIKey: "key-a"},
		AppCred{Name: "appB"},
	)

	sent, results := d.DispatchToAllApps(context.Background(), GroupIDs{AppA: []string{"p1"}}, "t", "b", nil)
	if sent {
		t.Fatalf("all sends failed, sent must be false")
	}
	for _, r := range results {
		if r.Success {
			t.Fatalf("no result should be a success: %+v", results)
		}
	}
}

func TestSendViaLegacyProject(t *testing.T) {
	srv, bodies := testServer(t, http.StatusOK)
	d := NewDispatcher("", AppCred{}, AppCred{})
	d.LegacyEndpoint = srv.URL
	d.LegacyKeyB = "legacy-b" // A 缺位时落到 B

	if err := d.SendViaLegacyProject(context.Background(), "tok-1", "t", "b"); err != nil {
		t.Fatalf("send: %v", err)
	}
	b := (*bodies)[0]
	if b["to"] != "tok-1" {
		t.Fatalf("to wrong: %v", b["to"])
	}
	if b["_auth"] != "key=legacy-b" {
		t.Fatalf("auth wrong: %v", b["_auth"])
	}

	d.LegacyKeyA, d.LegacyKeyB = "", ""
	if err := d.SendViaLegacyProject(context.Background(), "tok-1", "t", "b"); err == nil {
		t.Fatalf("no keys configured should error")
	}
}
