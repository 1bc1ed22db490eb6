package store

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNormalizePhrase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Thank you.", "thankyou"},
		{"  THANKS for Watching!  ", "thanksforwatching"},
		{"", ""},
		{"...", ""},
		{"a1 b2", "a1b2"},
	}

	for _, tt := range tests {
		if got := NormalizePhrase(tt.in); got != tt.want {
			t.Errorf("NormalizePhrase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddRejectsEmptyText(t *testing.T) {
	s := New(30*time.Minute, nil)

	for _, text := range []string{"", "   ", "\t\n"} {
		if s.Add(text) {
			t.Errorf("Add(%q) = true, want false", text)
		}
	}

	if got := s.GetStats().Utterances; got != 0 {
		t.Errorf("expected empty store, got %d utterances", got)
	}
}

func TestAddRejectsDiscardPhrases(t *testing.T) {
	s := New(30*time.Minute, []string{"Thank you.", "thanks for watching"})

	tests := []struct {
		text string
		want bool
	}{
		{"thank you", false},
		{"THANK YOU!!!", false},
		{"Thanks, for watching...", false},
		{"thank you very much", true},
		{"hello world", true},
	}

	for _, tt := range tests {
		if got := s.Add(tt.text); got != tt.want {
			t.Errorf("Add(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}

	if got := s.GetStats().Utterances; got != 2 {
		t.Errorf("expected 2 stored utterances, got %d", got)
	}
}

func TestAddTrimsWhitespace(t *testing.T) {
	s := New(30*time.Minute, nil)
	now := time.Now()
	s.now = func() time.Time { return now.Add(time.Minute) }

	if !s.Add("  hello  ") {
		t.Fatal("Add returned false")
	}

	s.markers["u"] = now
	got := s.GetSince("u")
	var line struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(got), &line); err != nil {
		t.Fatalf("invalid JSONL output %q: %v", got, err)
	}
	if line.Text != "hello" {
		t.Errorf("expected trimmed text 'hello', got %q", line.Text)
	}
}

func TestGetSinceNewClientReturnsEmpty(t *testing.T) {
	s := New(30*time.Minute, nil)
	s.Add("already here")

	if got := s.GetSince("new-client"); got != "" {
		t.Errorf("first GetSince = %q, want empty", got)
	}

	// No new adds: the second call is also empty.
	if got := s.GetSince("new-client"); got != "" {
		t.Errorf("second GetSince = %q, want empty", got)
	}
}

func TestGetSinceReturnsInInsertionOrder(t *testing.T) {
	s := New(30*time.Minute, nil)
	base := time.Now()

	s.markers["u"] = base
	s.AddAt("A", base.Add(1*time.Second))
	s.AddAt("B", base.Add(2*time.Second))

	got := s.GetSince("u")
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), got)
	}
	if !strings.Contains(lines[0], `"A"`) || !strings.Contains(lines[1], `"B"`) {
		t.Errorf("lines out of order: %q", got)
	}

	// Marker advanced: nothing new on the next call.
	if got := s.GetSince("u"); got != "" {
		t.Errorf("expected empty follow-up read, got %q", got)
	}
}

func TestGetSinceAdvancesMarkerToLastReturned(t *testing.T) {
	s := New(30*time.Minute, nil)
	base := time.Now()

	s.markers["u"] = base
	s.AddAt("A", base.Add(1*time.Second))
	s.GetSince("u")

	if got := s.markers["u"]; !got.Equal(base.Add(1 * time.Second)) {
		t.Errorf("marker = %v, want last returned timestamp %v", got, base.Add(1*time.Second))
	}

	// An insertion that was in flight during the previous read lands with
	// a timestamp after the marker and is still visible.
	s.AddAt("late", base.Add(1500*time.Millisecond))
	got := s.GetSince("u")
	if !strings.Contains(got, `"late"`) {
		t.Errorf("late insertion invisible: %q", got)
	}
}

func TestGetSinceEmptyLeavesMarkerUnchanged(t *testing.T) {
	s := New(30*time.Minute, nil)
	base := time.Now()

	s.markers["u"] = base
	s.GetSince("u")

	if got := s.markers["u"]; !got.Equal(base) {
		t.Errorf("marker moved on empty read: %v != %v", got, base)
	}
}

func TestSetMarkerSkipsHistory(t *testing.T) {
	s := New(30*time.Minute, nil)
	base := time.Now()
	current := base
	s.now = func() time.Time { return current }

	s.AddAt("old news", base.Add(-time.Minute))
	s.SetMarker("u")

	current = base.Add(time.Second)
	s.AddAt("C", current)

	current = base.Add(2 * time.Second)
	got := s.GetSince("u")
	if !strings.Contains(got, `"C"`) {
		t.Fatalf("expected C in result, got %q", got)
	}
	if strings.Contains(got, "old news") {
		t.Errorf("marker did not skip history: %q", got)
	}
	if len(strings.Split(got, "\n")) != 1 {
		t.Errorf("expected exactly one line, got %q", got)
	}
}

func TestRetentionEviction(t *testing.T) {
	s := New(10*time.Minute, nil)
	base := time.Now()
	s.now = func() time.Time { return base }

	s.AddAt("expired", base.Add(-11*time.Minute))
	s.AddAt("boundary", base.Add(-10*time.Minute)) // exactly at the cutoff
	s.AddAt("fresh", base.Add(-time.Minute))

	// Eviction runs on add.
	s.AddAt("trigger", base)

	stats := s.GetStats()
	if stats.Utterances != 3 {
		t.Fatalf("expected 3 utterances after eviction, got %d", stats.Utterances)
	}

	s.markers["u"] = base.Add(-time.Hour)
	got := s.GetSince("u")
	if strings.Contains(got, "expired") {
		t.Error("expired utterance still visible")
	}
	if !strings.Contains(got, "boundary") {
		t.Error("boundary utterance must be retained (inclusive threshold)")
	}
	if !strings.Contains(got, "fresh") {
		t.Error("fresh utterance missing")
	}
}

func TestJSONLTimestampFormat(t *testing.T) {
	s := New(30*time.Minute, nil)
	ts := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	s.now = func() time.Time { return ts.Add(time.Minute) }

	s.markers["u"] = ts.Add(-time.Second)
	s.AddAt("pi time", ts)

	got := s.GetSince("u")
	var line struct {
		TS   string `json:"ts"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(got), &line); err != nil {
		t.Fatalf("invalid JSONL %q: %v", got, err)
	}
	if line.TS != "2026-03-14T15:09:26.535Z" {
		t.Errorf("unexpected timestamp encoding: %q", line.TS)
	}
	if line.Text != "pi time" {
		t.Errorf("unexpected text: %q", line.Text)
	}
}

func TestConcurrentAddAndGet(t *testing.T) {
	s := New(30*time.Minute, nil)
	s.SetMarker("reader")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Add("concurrent utterance")
				s.GetSince("reader")
			}
		}()
	}
	wg.Wait()

	// Every stored utterance was eventually visible to some read.
	if stats := s.GetStats(); stats.Utterances != 800 {
		t.Errorf("expected 800 utterances, got %d", stats.Utterances)
	}
}
