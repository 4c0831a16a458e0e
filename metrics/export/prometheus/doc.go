// Package prometheus publishes engine metrics through client_golang.
//
// [Collector] reads [marketauth.Engine.MetricsSnapshot] on every scrape and
// emits const metrics, so it never keeps its own counters. Counter names are
// marketauth_*_total and the login latency histogram is
// marketauth_login_latency_seconds.
//
// The collector is not registered globally; callers register it with their
// own registry or use [Handler].
package prometheus
