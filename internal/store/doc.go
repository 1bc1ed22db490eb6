// Package store implements the time-indexed transcription store shared by
// the capture pipeline and connected clients. It provides TTL eviction
// and per-client monotonic read markers under a single lock.
package store
