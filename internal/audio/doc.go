// Package audio implements utterance segmentation for a continuous
// microphone stream. It provides the pre-roll history buffer, the
// speech/silence segmentation state machine, and WAV encoding of
// finished clips for transcription hand-off.
package audio
