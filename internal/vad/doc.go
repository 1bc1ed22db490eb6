// Package vad provides two-stage voice activity detection. A cheap
// energy-based coarse detector filters obvious silence; the Silero ONNX
// model confirms candidates that pass the coarse filter, and its verdict
// is authoritative.
package vad
