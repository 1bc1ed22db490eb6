// Package dispatch runs the capture pipeline: chunks from the source go
// through voice activity detection and segmentation, emitted clips are
// transcribed in the background, and accepted text lands in the store.
package dispatch
