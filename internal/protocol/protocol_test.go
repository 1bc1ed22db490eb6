package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"simple payload", []byte(`{"command":"get","uid":"client-1"}`)},
		{"empty payload", []byte{}},
		{"binary payload", []byte{0x00, 0xff, 0x7f, 0x80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteFrame(&buf, tt.payload, DefaultMaxPayloadBytes); err != nil {
				t.Fatalf("WriteFrame returned error: %v", err)
			}

			got, err := ReadFrame(&buf, DefaultMaxPayloadBytes)
			if err != nil {
				t.Fatalf("ReadFrame returned error: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Errorf("payload mismatch: got %v, want %v", got, tt.payload)
			}
		})
	}
}

func TestWriteFrameRejectsOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, 101)

	err := WriteFrame(&buf, payload, 100)
	if err == nil {
		t.Fatal("expected error for oversize payload")
	}
	if buf.Len() != 0 {
		t.Errorf("oversize payload must not be partially written, wrote %d bytes", buf.Len())
	}
}

func TestReadFrameRejectsOversizeAnnouncement(t *testing.T) {
	var buf bytes.Buffer
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], 200)
	buf.Write(prefix[:])

	if _, err := ReadFrame(&buf, 100); err == nil {
		t.Fatal("expected error for oversize announcement")
	}
}

func TestReadFrameNoMessageOnEOF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"immediate close", nil},
		{"partial prefix", []byte{0x00, 0x00}},
		{"prefix without body", func() []byte {
			var p [LengthPrefixSize]byte
			binary.BigEndian.PutUint32(p[:], 10)
			return p[:]
		}()},
		{"truncated body", func() []byte {
			var p [LengthPrefixSize]byte
			binary.BigEndian.PutUint32(p[:], 10)
			return append(p[:], []byte("short")...)
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadFrame(bytes.NewReader(tt.data), DefaultMaxPayloadBytes)
			if !errors.Is(err, ErrNoMessage) {
				t.Errorf("expected ErrNoMessage, got %v", err)
			}
		})
	}
}

func TestZeroLengthFrameIsNotNoMessage(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, nil, DefaultMaxPayloadBytes); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}

	got, err := ReadFrame(&buf, DefaultMaxPayloadBytes)
	if err != nil {
		t.Fatalf("expected empty payload, got error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty payload, got %d bytes", len(got))
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr string
	}{
		{"valid set", `{"command":"set","uid":"u1"}`, ""},
		{"valid get", `{"command":"get","uid":"u1"}`, ""},
		{"missing uid", `{"command":"get"}`, "missing 'uid' field"},
		{"empty uid", `{"command":"set","uid":""}`, "missing 'uid' field"},
		{"unknown command", `{"command":"purge","uid":"u1"}`, `unknown command: "purge"`},
		{"no command", `{"uid":"u1"}`, "missing 'command' field"},
		{"empty command", `{"command":"","uid":"u1"}`, "missing 'command' field"},
		{"malformed json", `{"command":`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.payload))
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseRequest returned error: %v", err)
				}
				if req.UID != "u1" {
					t.Errorf("unexpected uid %q", req.UID)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRequestResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Request{Command: CommandGet, UID: "client-42"}
	if err := WriteRequest(&buf, want, DefaultMaxPayloadBytes); err != nil {
		t.Fatalf("WriteRequest returned error: %v", err)
	}

	req, err := ReadRequest(&buf, DefaultMaxPayloadBytes)
	if err != nil {
		t.Fatalf("ReadRequest returned error: %v", err)
	}
	if *req != want {
		t.Errorf("request mismatch: got %+v, want %+v", req, want)
	}

	buf.Reset()
	if err := WriteResponse(&buf, OKText("line1\nline2"), DefaultMaxPayloadBytes); err != nil {
		t.Fatalf("WriteResponse returned error: %v", err)
	}

	resp, err := ReadResponse(&buf, DefaultMaxPayloadBytes)
	if err != nil {
		t.Fatalf("ReadResponse returned error: %v", err)
	}
	if resp.Status != StatusOK || resp.Text != "line1\nline2" {
		t.Errorf("response mismatch: %+v", resp)
	}
}

func TestReadResponseRejectsUnknownStatus(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte(`{"status":"maybe"}`), DefaultMaxPayloadBytes); err != nil {
		t.Fatalf("WriteFrame returned error: %v", err)
	}

	if _, err := ReadResponse(&buf, DefaultMaxPayloadBytes); err == nil {
		t.Error("expected error for unknown status")
	}
}
