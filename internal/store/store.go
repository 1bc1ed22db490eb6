package store

import (
	"encoding/json"
	"strings"
	"sync"
	"time"
	"unicode"
)

// timestampLayout is RFC 3339 with millisecond precision, matching the
// wire format clients parse.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Utterance is a single transcribed utterance. Immutable once created.
type Utterance struct {
	Timestamp time.Time
	Text      string
}

// line encodes the utterance as one JSONL line.
func (u Utterance) line() string {
	payload, _ := json.Marshal(struct {
		TS   string `json:"ts"`
		Text string `json:"text"`
	}{
		TS:   u.Timestamp.Format(timestampLayout),
		Text: u.Text,
	})
	return string(payload)
}

// NormalizePhrase lowercases text and strips everything that is not a
// letter or digit, for discard-phrase matching.
func NormalizePhrase(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(text)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Store is a thread-safe, insertion-ordered store of transcribed
// utterances with TTL eviction and per-client read markers. One mutex
// covers the utterance sequence and the marker table; it is never held
// across blocking I/O.
type Store struct {
	retention      time.Duration
	discardPhrases map[string]struct{}

	utterances []Utterance
	markers    map[string]time.Time

	now func() time.Time // swapped out by tests

	mu sync.Mutex
}

// Stats reports store counters for monitoring.
type Stats struct {
	Utterances int `json:"utterance_count"`
	Markers    int `json:"marker_count"`
}

// New creates a store. Discard phrases are normalized once here so Add
// does a set lookup per call.
func New(retention time.Duration, discardPhrases []string) *Store {
	discard := make(map[string]struct{}, len(discardPhrases))
	for _, phrase := range discardPhrases {
		if normalized := NormalizePhrase(phrase); normalized != "" {
			discard[normalized] = struct{}{}
		}
	}

	return &Store{
		retention:      retention,
		discardPhrases: discard,
		markers:        make(map[string]time.Time),
		now:            time.Now,
	}
}

// Add appends a new utterance timestamped at call time. It returns false
// without changing state when the text is empty after trimming or its
// normalized form matches a discard phrase. Retention eviction runs on
// every successful append.
func (s *Store) Add(text string) bool {
	return s.AddAt(text, time.Time{})
}

// AddAt is Add with an explicit timestamp; a zero timestamp means "now".
func (s *Store) AddAt(text string, timestamp time.Time) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	if _, discard := s.discardPhrases[NormalizePhrase(text)]; discard {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if timestamp.IsZero() {
		timestamp = s.now()
	}

	s.utterances = append(s.utterances, Utterance{Timestamp: timestamp, Text: text})
	s.evictExpired()

	return true
}

// SetMarker unconditionally sets the client's read marker to the current
// time, overwriting any previous value.
func (s *Store) SetMarker(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markers[uid] = s.now()
}

// GetSince returns all utterances newer than the client's marker as
// newline-joined JSONL, in insertion order, and advances the marker to
// the newest returned timestamp. Advancing to that timestamp rather than
// "now" keeps an utterance visible when its insertion is concurrently in
// flight with a timestamp at or before this call.
//
// A first call from an unknown client creates the marker at the current
// time and returns empty.
func (s *Store) GetSince(uid string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	marker, exists := s.markers[uid]
	if !exists {
		s.markers[uid] = s.now()
		return ""
	}

	var lines []string
	latest := marker
	for _, u := range s.utterances {
		if u.Timestamp.After(marker) {
			lines = append(lines, u.line())
			if u.Timestamp.After(latest) {
				latest = u.Timestamp
			}
		}
	}

	if len(lines) == 0 {
		return ""
	}

	s.markers[uid] = latest
	return strings.Join(lines, "\n")
}

// GetStats returns current store counters.
func (s *Store) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Stats{
		Utterances: len(s.utterances),
		Markers:    len(s.markers),
	}
}

// evictExpired removes the maximal prefix of utterances strictly older
// than the retention window. An entry exactly at the boundary is kept.
// Caller must hold the lock.
func (s *Store) evictExpired() {
	if len(s.utterances) == 0 {
		return
	}

	now := s.now()
	keepFrom := len(s.utterances)
	for i, u := range s.utterances {
		if now.Sub(u.Timestamp) <= s.retention {
			keepFrom = i
			break
		}
	}

	if keepFrom > 0 {
		s.utterances = append([]Utterance(nil), s.utterances[keepFrom:]...)
	}
}
