package unread

import (
	"testing"

	"NapChat/module/unread/model"
)

func checkInvariants(t *testing.T, c *model.UnreadCounter) {
	t.Helper()
	if c.TotalUnreadCount != c.ChatUnreadCount+c.LogUnreadCount {
		t.Fatalf("total=%d != chat=%d + log=%d", c.TotalUnreadCount, c.ChatUnreadCount, c.LogUnreadCount)
	}
	var sum int64
	for _, v := range c.LogUnreadByLogID {
		sum += v
	}
	if c.LogUnreadCount != sum {
		t.Fatalf("logUnreadCount=%d != sum(map)=%d", c.LogUnreadCount, sum)
	}
}

func TestIncrementChat(t *testing.T) {
	c := NewCounter("u1", "c1")
	ApplyIncrement(c, false, "")
	checkInvariants(t, c)
	if c.ChatUnreadCount != 1 || c.TotalUnreadCount != 1 {
		t.Fatalf("unexpected counts: %+v", c)
	}
}

func TestIncrementSameLogTwice(t *testing.T) {
	c := NewCounter("u1", "c1")
	ApplyIncrement(c, true, "L1")
	ApplyIncrement(c, true, "L1")
	checkInvariants(t, c)
	if c.LogUnreadByLogID["L1"] != 2 || c.LogUnreadCount != 2 {
		t.Fatalf("expected L1=2 log=2, got %+v", c)
	}
}

func TestLogResetOnlyTouchesOneLog(t *testing.T) {
	c := NewCounter("u1", "c1")
	ApplyIncrement(c, true, "L1")
	ApplyIncrement(c, true, "L1")
	ApplyIncrement(c, true, "L2")
	ApplyIncrement(c, false, "")

	n := ApplyLogReset(c, "L1")
	checkInvariants(t, c)
	if n != 2 {
		t.Fatalf("expected reset of 2, got %d", n)
	}
	if c.LogUnreadByLogID["L2"] != 1 {
		t.Fatalf("L2 slot should be untouched: %+v", c.LogUnreadByLogID)
	}
	if c.ChatUnreadCount != 1 {
		t.Fatalf("chat count should be untouched: %+v", c)
	}
}

func TestChatResetIdempotent(t *testing.T) {
	c := NewCounter("u1", "c1")
	ApplyIncrement(c, false, "")
	ApplyIncrement(c, false, "")

	if n := ApplyChatReset(c); n != 2 {
		t.Fatalf("first reset expected 2, got %d", n)
	}
	checkInvariants(t, c)
	if n := ApplyChatReset(c); n != 0 {
		t.Fatalf("second reset expected no-op, got %d", n)
	}
	if c.ChatUnreadCount != 0 {
		t.Fatalf("chat should stay at zero: %+v", c)
	}
}

func TestAllLogsResetClearsMap(t *testing.T) {
	c := NewCounter("u1", "c1")
	ApplyIncrement(c, true, "L1")
	ApplyIncrement(c, true, "L2")
	ApplyIncrement(c, false, "")

	if n := ApplyAllLogsReset(c); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
	checkInvariants(t, c)
	if len(c.LogUnreadByLogID) != 0 {
		t.Fatalf("map should be empty: %+v", c.LogUnreadByLogID)
	}
	if c.TotalUnreadCount != 1 {
		t.Fatalf("chat unread should survive: %+v", c)
	}
	if n := ApplyAllLogsReset(c); n != 0 {
		t.Fatalf("repeat should be no-op, got %d", n)
	}
}

func TestComputeFamily(t *testing.T) {
	orig := NewCounter("u1", "child1")
	ApplyIncrement(orig, false, "")
	ApplyIncrement(orig, false, "")
	ApplyIncrement(orig, true, "L1")

	sib := NewCounter("u1", "child2")
	ApplyIncrement(sib, true, "L9")
	ApplyIncrement(sib, true, "L9")
	// 兄弟姐妹自己的聊天未读不进家庭聚合
	ApplyIncrement(sib, false, "")

	fam := ComputeFamily("u1", "child1", []*model.UnreadCounter{orig, sib})
	if fam.FamilyChatUnreadCount != 2 {
		t.Fatalf("family chat should come from original only, got %d", fam.FamilyChatUnreadCount)
	}
	if fam.FamilyLogUnreadCount != 3 {
		t.Fatalf("family log should sum across members, got %d", fam.FamilyLogUnreadCount)
	}
	if fam.FamilyTotalUnread != 5 {
		t.Fatalf("family total mismatch: %+v", fam)
	}
}

func TestFamilyMembersDedup(t *testing.T) {
	members := FamilyMembers("c1", []string{"c2", "c1", "", "c2", "c3"})
	if len(members) != 3 || members[0] != "c1" {
		t.Fatalf("unexpected members: %v", members)
	}
}
