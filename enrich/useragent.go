package enrich

import (
	"context"
	"net/netip"
	"strings"
)

// UserAgent classifies a User-Agent header into coarse browser, OS and
// device families by substring match.
type UserAgent struct{}

type rule struct {
	needle string
	name   string
}

// Order matters: Edge and Opera carry "Chrome", Chrome carries "Safari".
var browserRules = []rule{
	{"Edg/", "Edge"},
	{"OPR/", "Opera"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"Safari/", "Safari"},
	{"curl/", "curl"},
}

var osRules = []rule{
	{"Android", "Android"},
	{"iPhone", "iOS"},
	{"iPad", "iOS"},
	{"Windows", "Windows"},
	{"Mac OS X", "macOS"},
	{"Linux", "Linux"},
}

func (UserAgent) Enrich(_ context.Context, clientIdentity, _ string) Result {
	var r Result
	if clientIdentity == "" {
		return r
	}
	r.Browser = match(browserRules, clientIdentity)
	r.OS = match(osRules, clientIdentity)
	switch {
	case strings.Contains(clientIdentity, "iPad") || strings.Contains(clientIdentity, "Tablet"):
		r.Device = "tablet"
	case strings.Contains(clientIdentity, "Mobile") || strings.Contains(clientIdentity, "iPhone"):
		r.Device = "mobile"
	case r.OS == "Windows" || r.OS == "macOS" || r.OS == "Linux":
		r.Device = "desktop"
	}
	return r
}

func match(rules []rule, s string) string {
	for _, r := range rules {
		if strings.Contains(s, r.needle) {
			return r.name
		}
	}
	return ""
}

// PrivateNetwork labels loopback and private origins. Public addresses are
// left for a geo enricher further down a Chain.
type PrivateNetwork struct{}

func (PrivateNetwork) Enrich(_ context.Context, _, origin string) Result {
	addr, err := netip.ParseAddr(origin)
	if err != nil {
		return Result{}
	}
	switch {
	case addr.IsLoopback():
		return Result{Location: "loopback"}
	case addr.IsPrivate():
		return Result{Location: "private network"}
	}
	return Result{}
}
