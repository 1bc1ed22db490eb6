// Package transcription converts utterance clips to text. The HTTP
// client targets a whisper-compatible endpoint with bounded concurrency
// and retries.
package transcription
