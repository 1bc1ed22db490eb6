package protocol

import (
	"encoding/json"
	"fmt"
	"io"
)

// Commands accepted by the daemon.
const (
	CommandSet = "set"
	CommandGet = "get"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Request is the wire form of a client request.
type Request struct {
	Command string `json:"command"`
	UID     string `json:"uid"`
}

// Response is the wire form of a daemon reply. Text carries JSONL
// utterance lines on a successful get; Message carries the error detail
// on a failed request.
type Response struct {
	Status  string `json:"status"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK returns a success response with no body.
func OK() Response {
	return Response{Status: StatusOK}
}

// OKText returns a success response carrying utterance text.
func OKText(text string) Response {
	return Response{Status: StatusOK, Text: text}
}

// Error returns an error response with the given detail message.
func Error(message string) Response {
	return Response{Status: StatusError, Message: message}
}

// ParseRequest decodes and validates a request body. The returned error
// text is safe to send back to the client verbatim.
func ParseRequest(payload []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %v", err)
	}

	if req.Command == "" {
		return nil, fmt.Errorf("missing 'command' field")
	}
	if req.Command != CommandSet && req.Command != CommandGet {
		return nil, fmt.Errorf("unknown command: %q", req.Command)
	}
	if req.UID == "" {
		return nil, fmt.Errorf("missing 'uid' field")
	}

	return &req, nil
}

// WriteRequest encodes and frames a request.
func WriteRequest(w io.Writer, req Request, maxBytes int) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return WriteFrame(w, payload, maxBytes)
}

// ReadRequest reads one framed request and validates it.
func ReadRequest(r io.Reader, maxBytes int) (*Request, error) {
	payload, err := ReadFrame(r, maxBytes)
	if err != nil {
		return nil, err
	}
	return ParseRequest(payload)
}

// WriteResponse encodes and frames a response.
func WriteResponse(w io.Writer, resp Response, maxBytes int) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	return WriteFrame(w, payload, maxBytes)
}

// ReadResponse reads one framed response.
func ReadResponse(r io.Reader, maxBytes int) (*Response, error) {
	payload, err := ReadFrame(r, maxBytes)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("invalid response JSON: %v", err)
	}
	if resp.Status != StatusOK && resp.Status != StatusError {
		return nil, fmt.Errorf("unknown response status: %q", resp.Status)
	}

	return &resp, nil
}
