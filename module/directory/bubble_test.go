package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolveParsesWorkflowResponse(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"response": map[string]any{
				"recipients": []map[string]any{
					{"userId": "u1", "playerIds": []string{"p1", "p2"}},
					{"userId": "u2"},
				},
				"senderName":         "Alice",
				"primaryCaregiverId": "pc9",
				"altOrg":             "org2",
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	res := c.Resolve(context.Background(), "c1", "s1")

	if gotAuth != "Bearer tok" {
		t.Fatalf("auth header: %q", gotAuth)
	}
	if gotBody["childId"] != "c1" || gotBody["senderId"] != "s1" {
		t.Fatalf("request body: %v", gotBody)
	}
	if res.SenderName != "Alice" || res.PrimaryCaregiverID != "pc9" || res.AltOrg != "org2" {
		t.Fatalf("resolution: %+v", res)
	}
	if len(res.Recipients) != 2 || len(res.Recipients[0].PlayerIDs) != 2 {
		t.Fatalf("recipients: %+v", res.Recipients)
	}
}

func TestResolveFallsBackOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	res := NewClient(srv.URL, "").Resolve(context.Background(), "c1", "s1")
	if len(res.Recipients) != 0 || res.SenderName != "Someone" {
		t.Fatalf("expected fallback, got %+v", res)
	}
}

func TestResolveFallsBackOnTransportError(t *testing.T) {
	// 端口未监听
	res := NewClient("http://127.0.0.1:1/resolve", "").Resolve(context.Background(), "c1", "s1")
	if len(res.Recipients) != 0 || res.SenderName != "Someone" {
		t.Fatalf("expected fallback, got %+v", res)
	}
}

func TestResolveDefaultsEmptySenderName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "success",
			"response": map[string]any{
				"recipients": []map[string]any{{"userId": "u1"}},
			},
		})
	}))
	defer srv.Close()

	res := NewClient(srv.URL, "").Resolve(context.Background(), "c1", "s1")
	if res.SenderName != "Someone" {
		t.Fatalf("empty sender name should default, got %q", res.SenderName)
	}
	if len(res.Recipients) != 1 {
		t.Fatalf("recipients should survive: %+v", res)
	}
}
