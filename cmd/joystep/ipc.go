package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Lets joystep-ctl and scripts steer the daemon.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "set_direction", "data": {"direction": "up-left"}}
//                   {"type": "release"}
//                   {"type": "status"}
//   - Server responds: {"status": "ok"}, {"status": "ok", "state": {...}}
//     or {"status": "error", "error": "msg"}
// ============================================================================

// ipcStatusTimeout bounds the snapshot round-trip through the detection loop.
// A pulse blocks the loop, so this must exceed the longest pulse.
const ipcStatusTimeout = 2 * time.Second

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string         `json:"status"`          // "ok" or "error"
	Error  string         `json:"error,omitempty"` // error message if status == "error"
	State  *StateSnapshot `json:"state,omitempty"` // set for status queries
}

// IPCServer accepts control connections.
type IPCServer struct {
	socketPath string
	register   *DirectionRegister
	events     chan<- Event
	logger     *slog.Logger
}

func NewIPCServer(socketPath string, register *DirectionRegister, events chan<- Event, logger *slog.Logger) *IPCServer {
	return &IPCServer{
		socketPath: socketPath,
		register:   register,
		events:     events,
		logger:     logger,
	}
}

// Run listens until ctx is canceled, then closes the listener and removes
// the socket file.
func (s *IPCServer) Run(ctx context.Context) error {
	if err := os.RemoveAll(s.socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(s.socketPath)

	if err := os.Chmod(s.socketPath, 0666); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	s.logger.Info("IPC listening", "socket", s.socketPath)

	// Closing the listener unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				s.logger.Debug("IPC listener closed")
				return nil
			}
			s.logger.Error("IPC accept error", "error", err)
			continue
		}

		go s.handleConn(ctx, conn)
	}
}

func (s *IPCServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		s.logger.Debug("IPC received", "line", string(line))

		resp := s.handle(ctx, line)
		if err := encoder.Encode(resp); err != nil {
			s.logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	s.logger.Debug("IPC connection closed")
}

// handle executes one request line and builds its response.
func (s *IPCServer) handle(ctx context.Context, line []byte) IPCResponse {
	ev, err := UnmarshalEvent(line)
	if err != nil {
		return errorResponse(fmt.Errorf("parse event: %w", err))
	}

	switch e := ev.(type) {
	case SetDirection:
		prev := s.register.Load()
		s.register.Store(e.Direction)
		s.logger.Info("direction set over IPC", "direction", e.Direction, "previous", prev)
		return IPCResponse{Status: "ok"}

	case StatusQuery:
		snap, err := s.requestSnapshot(ctx)
		if err != nil {
			return errorResponse(err)
		}
		return IPCResponse{Status: "ok", State: &snap}

	default:
		select {
		case s.events <- ev:
			return IPCResponse{Status: "ok"}
		default:
			return errorResponse(errors.New("event queue full"))
		}
	}
}

func (s *IPCServer) requestSnapshot(ctx context.Context) (StateSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, ipcStatusTimeout)
	defer cancel()

	reply := make(chan StateSnapshot, 1)
	select {
	case s.events <- RequestStateSnapshot{Reply: reply}:
	case <-ctx.Done():
		return StateSnapshot{}, fmt.Errorf("status request: %w", ctx.Err())
	}

	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return StateSnapshot{}, fmt.Errorf("status reply: %w", ctx.Err())
	}
}

func errorResponse(err error) IPCResponse {
	return IPCResponse{Status: "error", Error: err.Error()}
}
