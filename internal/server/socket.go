package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/mikesmullin/perception-voice/internal/metrics"
	"github.com/mikesmullin/perception-voice/internal/protocol"
	"github.com/mikesmullin/perception-voice/internal/store"
)

// SocketServer accepts client connections on a unix domain socket and
// answers set/get requests against the store
type SocketServer struct {
	socketPath string
	maxBytes   int
	store      *store.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics

	listener *net.UnixListener

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Request counters
	connectionsAccepted uint64
	requestsHandled     uint64
	requestErrors       uint64
	mu                  sync.RWMutex
}

// SocketStatistics represents socket server counters
type SocketStatistics struct {
	ConnectionsAccepted uint64 `json:"connections_accepted"`
	RequestsHandled     uint64 `json:"requests_handled"`
	RequestErrors       uint64 `json:"request_errors"`
}

// NewSocketServer creates a new unix socket server instance
func NewSocketServer(socketPath string, maxBytes int, st *store.Store, logger *slog.Logger, m *metrics.Metrics) *SocketServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &SocketServer{
		socketPath: socketPath,
		maxBytes:   maxBytes,
		store:      st,
		logger:     logger,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start binds the unix socket and begins accepting connections. A stale
// socket file from a previous run is removed first. Bind failure is
// returned to the caller, who treats it as fatal.
func (s *SocketServer) Start() error {
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove stale socket %s: %w", s.socketPath, err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to resolve unix address: %w", err)
	}

	listener, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on unix socket %s: %w", s.socketPath, err)
	}
	s.listener = listener

	// Owner-only: the socket carries everything the microphone hears.
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.logger.Info("Socket server started",
		slog.String("socket_path", s.socketPath),
		slog.Int("max_message_bytes", s.maxBytes),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop gracefully stops the socket server and removes the socket file
func (s *SocketServer) Stop() error {
	s.logger.Info("Stopping socket server...")

	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("Error closing unix listener", slog.String("error", err.Error()))
		}
	}

	s.wg.Wait()

	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("Failed to remove socket file", slog.String("error", err.Error()))
	}

	s.mu.RLock()
	accepted := s.connectionsAccepted
	handled := s.requestsHandled
	errored := s.requestErrors
	s.mu.RUnlock()

	s.logger.Info("Socket server stopped",
		slog.Uint64("connections_accepted", accepted),
		slog.Uint64("requests_handled", handled),
		slog.Uint64("request_errors", errored),
	)

	return nil
}

// acceptLoop is the main connection accepting loop
func (s *SocketServer) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Debug("Accept loop stopping due to context cancellation")
			return
		default:
			// Continue accepting connections
		}

		// Set accept deadline to check for context cancellation periodically
		if err := s.listener.SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
			s.logger.Error("Failed to set accept deadline", slog.String("error", err.Error()))
			continue
		}

		conn, err := s.listener.Accept()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue // Check context and try again
			}

			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Error("Failed to accept connection", slog.String("error", err.Error()))
				continue
			}
		}

		s.mu.Lock()
		s.connectionsAccepted++
		s.mu.Unlock()

		if s.metrics != nil {
			s.metrics.ConnectionsAccepted.Inc()
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection serves exactly one request/response pair, then closes.
// A handler panic must not take down the accept loop.
func (s *SocketServer) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic in connection handler", slog.Any("panic", r))
			s.writeErrorResponse(conn, "internal server error")
		}
	}()

	req, err := protocol.ReadRequest(conn, s.maxBytes)
	if err != nil {
		if errors.Is(err, protocol.ErrNoMessage) {
			s.logger.Debug("Client closed connection without a request")
			return
		}
		s.logger.Warn("Failed to read request", slog.String("error", err.Error()))
		s.writeErrorResponse(conn, err.Error())
		return
	}

	resp := s.handleRequest(req)

	if err := protocol.WriteResponse(conn, resp, s.maxBytes); err != nil {
		s.logger.Warn("Failed to write response",
			slog.String("command", req.Command),
			slog.String("uid", req.UID),
			slog.String("error", err.Error()),
		)
		return
	}

	s.mu.Lock()
	s.requestsHandled++
	s.mu.Unlock()
}

// handleRequest executes a validated request against the store
func (s *SocketServer) handleRequest(req *protocol.Request) protocol.Response {
	switch req.Command {
	case protocol.CommandSet:
		s.store.SetMarker(req.UID)
		s.logger.Debug("Marker set", slog.String("uid", req.UID))
		return protocol.OK()

	case protocol.CommandGet:
		text := s.store.GetSince(req.UID)
		s.logger.Debug("Utterances fetched",
			slog.String("uid", req.UID),
			slog.Int("bytes", len(text)),
		)
		return protocol.OKText(text)

	default:
		// Unreachable: ParseRequest rejects unknown commands.
		return protocol.Error(fmt.Sprintf("unknown command: %q", req.Command))
	}
}

// writeErrorResponse sends a best-effort error response to the client
func (s *SocketServer) writeErrorResponse(conn net.Conn, message string) {
	s.mu.Lock()
	s.requestErrors++
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RequestErrors.Inc()
	}

	if err := protocol.WriteResponse(conn, protocol.Error(message), s.maxBytes); err != nil {
		s.logger.Debug("Failed to write error response", slog.String("error", err.Error()))
	}
}

// GetStatistics returns current socket server counters
func (s *SocketServer) GetStatistics() SocketStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return SocketStatistics{
		ConnectionsAccepted: s.connectionsAccepted,
		RequestsHandled:     s.requestsHandled,
		RequestErrors:       s.requestErrors,
	}
}
