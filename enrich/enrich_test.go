package enrich

import (
	"context"
	"testing"
	"time"
)

func TestUserAgentClassification(t *testing.T) {
	cases := []struct {
		ua                  string
		browser, os, device string
	}{
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge", "Windows", "desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Version/17.0 Mobile/15E148 Safari/604.1", "Safari", "iOS", "mobile"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox", "Linux", "desktop"},
		{"curl/8.4.0", "curl", "", ""},
	}
	for _, c := range cases {
		r := UserAgent{}.Enrich(context.Background(), c.ua, "")
		if r.Browser != c.browser || r.OS != c.os || r.Device != c.device {
			t.Fatalf("ua %q: got %+v", c.ua, r)
		}
	}
}

func TestChainFillsUnavailable(t *testing.T) {
	c := Chain{UserAgent{}, PrivateNetwork{}}
	r := c.Enrich(context.Background(), "curl/8.4.0", "10.1.2.3")
	if r.Browser != "curl" || r.Location != "private network" {
		t.Fatalf("unexpected %+v", r)
	}
	if r.OS != Unavailable || r.Device != Unavailable {
		t.Fatalf("missing fields must be unavailable: %+v", r)
	}

	r = c.Enrich(context.Background(), "", "203.0.113.9")
	if r != (Result{}).Fill() {
		t.Fatalf("expected all unavailable, got %+v", r)
	}
}

func TestSafeRecoversPanic(t *testing.T) {
	s := NewSafe(Func(func(context.Context, string, string) Result { panic("geo db corrupt") }), time.Second, nil)
	r := s.Enrich(context.Background(), "ua", "1.1.1.1")
	if r.Browser != Unavailable || r.Location != Unavailable {
		t.Fatalf("expected sentinel values, got %+v", r)
	}
}

func TestSafeTimesOut(t *testing.T) {
	slow := Func(func(ctx context.Context, _, _ string) Result {
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return Result{Browser: "late"}
	})
	s := NewSafe(slow, 10*time.Millisecond, nil)
	if r := s.Enrich(context.Background(), "ua", ""); r.Browser != Unavailable {
		t.Fatalf("expected timeout sentinel, got %+v", r)
	}
}
