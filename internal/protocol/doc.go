// Package protocol defines the length-prefixed JSON messages exchanged
// over the daemon's unix socket: 4-byte big-endian length, then a UTF-8
// JSON body, with a hard cap on payload size in both directions.
package protocol
