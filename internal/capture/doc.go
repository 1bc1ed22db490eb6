// Package capture reads microphone audio as fixed-size float32 chunks.
// The PortAudio source is the production implementation; tests feed the
// pipeline through an in-memory source.
package capture
