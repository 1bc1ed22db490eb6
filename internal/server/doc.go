// Package server exposes the transcription store to local clients over a
// unix domain socket, one framed request and response per connection,
// plus an optional HTTP endpoint for health, stats and Prometheus metrics.
package server
