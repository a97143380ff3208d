package fanout

import (
	"strings"
	"testing"
)

func TestNotificationBody(t *testing.T) {
	if got := NotificationBody("hello", "", ""); got != "hello" {
		t.Fatalf("got %q", got)
	}
	if got := NotificationBody("", "img-123", ""); got != "Sent an image" {
		t.Fatalf("got %q", got)
	}
	if got := NotificationBody("", "", "aud-1"); got != "Audio message" {
		t.Fatalf("got %q", got)
	}

	long := strings.Repeat("a", 150)
	got := NotificationBody(long, "", "")
	if len([]rune(got)) != 98 { // 97 + 省略号
		t.Fatalf("truncated length = %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("missing ellipsis: %q", got)
	}

	exact := strings.Repeat("b", 100)
	if got := NotificationBody(exact, "", ""); got != exact {
		t.Fatalf("100 chars should pass untouched")
	}
}

func TestNotificationTitle(t *testing.T) {
	if got := NotificationTitle("  Alice  "); got != "Alice" {
		t.Fatalf("got %q", got)
	}
	if got := NotificationTitle("   "); got != "Someone" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildDeepLink(t *testing.T) {
	link := BuildDeepLink("https://app.example.com", "dev", true, "L1", "pc9", "org2")
	if !strings.HasPrefix(link, "https://app.example.com/version-dev/log2?") {
		t.Fatalf("got %q", link)
	}
	for _, want := range []string{"caregiver=pc9", "altorg=org2", "log=L1"} {
		if !strings.Contains(link, want) {
			t.Fatalf("link %q missing %q", link, want)
		}
	}

	link = BuildDeepLink("https://app.example.com", "production", false, "", "pc9", "org2")
	if !strings.HasPrefix(link, "https://app.example.com/chat2?") {
		t.Fatalf("got %q", link)
	}
	if strings.Contains(link, "log=") {
		t.Fatalf("chat link should not carry log id: %q", link)
	}

	link = BuildDeepLink("https://app.example.com", "test", false, "", "", "")
	if !strings.HasPrefix(link, "https://app.example.com/version-test/chat2?") {
		t.Fatalf("got %q", link)
	}
}
