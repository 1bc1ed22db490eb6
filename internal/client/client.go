package client

import (
	"fmt"
	"net"
	"time"

	"github.com/mikesmullin/perception-voice/internal/protocol"
)

// DefaultTimeout bounds a full request/response exchange.
const DefaultTimeout = 5 * time.Second

// Client talks to a running daemon over its unix socket. Each call opens
// a fresh connection; the daemon serves one request per connection.
type Client struct {
	socketPath string
	maxBytes   int
	timeout    time.Duration
}

// New creates a client for the daemon listening at socketPath.
func New(socketPath string, maxBytes int) *Client {
	return &Client{
		socketPath: socketPath,
		maxBytes:   maxBytes,
		timeout:    DefaultTimeout,
	}
}

// SetMarker moves the client's read marker to the present, skipping all
// history accumulated so far.
func (c *Client) SetMarker(uid string) error {
	resp, err := c.roundTrip(protocol.Request{Command: protocol.CommandSet, UID: uid})
	if err != nil {
		return err
	}
	if resp.Status != protocol.StatusOK {
		return fmt.Errorf("daemon error: %s", resp.Message)
	}
	return nil
}

// GetSince fetches utterances transcribed since the last call for this
// uid, as newline-joined JSONL. Empty string means nothing new.
func (c *Client) GetSince(uid string) (string, error) {
	resp, err := c.roundTrip(protocol.Request{Command: protocol.CommandGet, UID: uid})
	if err != nil {
		return "", err
	}
	if resp.Status != protocol.StatusOK {
		return "", fmt.Errorf("daemon error: %s", resp.Message)
	}
	return resp.Text, nil
}

// roundTrip performs one request/response exchange on a new connection
func (c *Client) roundTrip(req protocol.Request) (*protocol.Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set connection deadline: %w", err)
	}

	if err := protocol.WriteRequest(conn, req, c.maxBytes); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	resp, err := protocol.ReadResponse(conn, c.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp, nil
}
