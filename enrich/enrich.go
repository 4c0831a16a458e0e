// Package enrich derives descriptive login metadata (browser, OS, device,
// location) from the client identity string and origin address. Enrichment
// is best effort: any field that cannot be resolved is reported as
// [Unavailable] and callers never see an error.
package enrich

import (
	"context"
	"time"

	"github.com/MrEthical07/marketauth/logging"
)

const Unavailable = "unavailable"

type Result struct {
	Browser  string
	OS       string
	Device   string
	Location string
}

// Fill replaces empty fields with Unavailable.
func (r Result) Fill() Result {
	for _, f := range []*string{&r.Browser, &r.OS, &r.Device, &r.Location} {
		if *f == "" {
			*f = Unavailable
		}
	}
	return r
}

func unavailable() Result {
	return Result{}.Fill()
}

type Enricher interface {
	Enrich(ctx context.Context, clientIdentity, origin string) Result
}

// Func adapts a function to Enricher.
type Func func(ctx context.Context, clientIdentity, origin string) Result

func (f Func) Enrich(ctx context.Context, clientIdentity, origin string) Result {
	return f(ctx, clientIdentity, origin)
}

// Nop resolves nothing.
type Nop struct{}

func (Nop) Enrich(context.Context, string, string) Result { return unavailable() }

// Safe bounds an enricher with a timeout and recovers panics. On timeout or
// panic it returns all fields as Unavailable.
type Safe struct {
	next    Enricher
	timeout time.Duration
	log     logging.Logger
}

func NewSafe(next Enricher, timeout time.Duration, log logging.Logger) *Safe {
	if log == nil {
		log = logging.Nop()
	}
	if timeout <= 0 {
		timeout = 250 * time.Millisecond
	}
	return &Safe{next: next, timeout: timeout, log: log}
}

func (s *Safe) Enrich(ctx context.Context, clientIdentity, origin string) Result {
	if s.next == nil {
		return unavailable()
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				s.log.Warn(ctx, "enricher panicked", "panic", p)
				done <- unavailable()
			}
		}()
		done <- s.next.Enrich(ctx, clientIdentity, origin).Fill()
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		s.log.Warn(ctx, "enricher timed out", "timeout", s.timeout)
		return unavailable()
	}
}

// Chain merges several enrichers; the first non-empty value per field wins.
type Chain []Enricher

func (c Chain) Enrich(ctx context.Context, clientIdentity, origin string) Result {
	var out Result
	for _, e := range c {
		r := e.Enrich(ctx, clientIdentity, origin)
		pick(&out.Browser, r.Browser)
		pick(&out.OS, r.OS)
		pick(&out.Device, r.Device)
		pick(&out.Location, r.Location)
	}
	return out.Fill()
}

func pick(dst *string, v string) {
	if (*dst == "" || *dst == Unavailable) && v != "" && v != Unavailable {
		*dst = v
	}
}
