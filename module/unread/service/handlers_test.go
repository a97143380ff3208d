package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"NapChat/module/unread"
	"NapChat/module/unread/model"

	"github.com/gin-gonic/gin"
)

type fakeCounters struct {
	counters map[string]*model.UnreadCounter
	families int
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{counters: map[string]*model.UnreadCounter{}}
}

func (f *fakeCounters) get(userID, childID string) *model.UnreadCounter {
	key := unread.CounterKey(userID, childID)
	if c, ok := f.counters[key]; ok {
		return c
	}
	c := unread.NewCounter(userID, childID)
	f.counters[key] = c
	return c
}

func (f *fakeCounters) GetCounter(_ context.Context, userID, childID string) (*model.UnreadCounter, error) {
	return f.get(userID, childID), nil
}

func (f *fakeCounters) MarkChatRead(_ context.Context, userID, childID, _ string) (int64, error) {
	return unread.ApplyChatReset(f.get(userID, childID)), nil
}

func (f *fakeCounters) MarkLogRead(_ context.Context, userID, childID, logID string) (int64, error) {
	return unread.ApplyLogReset(f.get(userID, childID), logID), nil
}

func (f *fakeCounters) MarkAllLogsRead(_ context.Context, userID, childID string) (int64, error) {
	return unread.ApplyAllLogsReset(f.get(userID, childID)), nil
}

func (f *fakeCounters) RecomputeFamily(_ context.Context, userID, originalChildID string, siblings []string) (*model.FamilyUnreadCounter, error) {
	f.families++
	members := unread.FamilyMembers(originalChildID, siblings)
	cs := make([]*model.UnreadCounter, 0, len(members))
	for _, m := range members {
		cs = append(cs, f.get(userID, m))
	}
	return unread.ComputeFamily(userID, originalChildID, cs), nil
}

func setupRouter(f *fakeCounters) *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := NewServer(f)
	r := gin.New()
	r.GET("/getUnreadCounters", s.GetUnreadCounters)
	r.GET("/getFamilyUnreadCounters", s.GetFamilyUnreadCounters)
	r.POST("/markChatAsRead", s.MarkChatAsRead)
	r.POST("/markLogAsRead", s.MarkLogAsRead)
	r.POST("/markAllLogsAsRead", s.MarkAllLogsAsRead)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out map[string]any
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %q: %v", w.Body.String(), err)
		}
	}
	return w, out
}

func TestGetUnreadCountersValidation(t *testing.T) {
	r := setupRouter(newFakeCounters())
	w, out := doJSON(t, r, http.MethodGet, "/getUnreadCounters?userId=u1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	if _, ok := out["error"]; !ok {
		t.Fatalf("missing error message: %v", out)
	}
}

func TestGetUnreadCountersReturnsZeroForUnknown(t *testing.T) {
	r := setupRouter(newFakeCounters())
	w, out := doJSON(t, r, http.MethodGet, "/getUnreadCounters?userId=u1&childId=c1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if out["totalUnreadCount"].(float64) != 0 || out["chatUnreadCount"].(float64) != 0 {
		t.Fatalf("unknown counter should read as zeros: %v", out)
	}
}

func TestMarkChatAsReadFlow(t *testing.T) {
	f := newFakeCounters()
	c := f.get("u1", "c1")
	unread.ApplyIncrement(c, false, "")
	unread.ApplyIncrement(c, false, "")
	r := setupRouter(f)

	body := map[string]any{"userId": "u1", "childId": "c1", "conversationId": "conv1"}
	w, out := doJSON(t, r, http.MethodPost, "/markChatAsRead", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %v", w.Code, out)
	}
	if out["success"] != true || out["messagesMarkedRead"].(float64) != 2 {
		t.Fatalf("unexpected response: %v", out)
	}
	if f.families != 1 {
		t.Fatalf("mutation should recompute family once, got %d", f.families)
	}

	// 重复调用是 no-op，仍然成功
	w, out = doJSON(t, r, http.MethodPost, "/markChatAsRead", body)
	if w.Code != http.StatusOK || out["messagesMarkedRead"].(float64) != 0 {
		t.Fatalf("repeat should be an idempotent no-op: %v", out)
	}
}

func TestMarkLogAsReadRequiresLogID(t *testing.T) {
	r := setupRouter(newFakeCounters())
	w, _ := doJSON(t, r, http.MethodPost, "/markLogAsRead", map[string]any{"userId": "u1", "childId": "c1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestMarkAllLogsAsRead(t *testing.T) {
	f := newFakeCounters()
	c := f.get("u1", "c1")
	unread.ApplyIncrement(c, true, "L1")
	unread.ApplyIncrement(c, true, "L2")
	unread.ApplyIncrement(c, false, "")
	r := setupRouter(f)

	w, out := doJSON(t, r, http.MethodPost, "/markAllLogsAsRead", map[string]any{"userId": "u1", "childId": "c1"})
	if w.Code != http.StatusOK || out["messagesMarkedRead"].(float64) != 2 {
		t.Fatalf("unexpected: %d %v", w.Code, out)
	}
	if c.ChatUnreadCount != 1 || c.TotalUnreadCount != 1 {
		t.Fatalf("chat unread must survive: %+v", c)
	}
}

func TestGetFamilyUnreadCountersSiblingsQuery(t *testing.T) {
	f := newFakeCounters()
	unread.ApplyIncrement(f.get("u1", "c1"), false, "")
	unread.ApplyIncrement(f.get("u1", "c2"), true, "L1")
	r := setupRouter(f)

	w, out := doJSON(t, r, http.MethodGet, "/getFamilyUnreadCounters?userId=u1&originalChildId=c1&siblings=c2,c3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %v", w.Code, out)
	}
	if out["familyChatUnreadCount"].(float64) != 1 || out["familyLogUnreadCount"].(float64) != 1 {
		t.Fatalf("unexpected aggregate: %v", out)
	}
	if out["familyTotalUnreadCount"].(float64) != 2 {
		t.Fatalf("unexpected total: %v", out)
	}
}
