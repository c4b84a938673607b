// Package node talks to the local node over its control socket.
//
// The control protocol is newline-delimited JSON. Each connection carries a
// single request, such as {"command":"status"}, answered by a single JSON
// line. A failed command is answered with {"error":"..."}.
package node

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

var (
	// ErrUnreachable is returned when the control socket exists but cannot be
	// used, e.g. because of permissions or a timeout. A node that is simply
	// not running is reported as StateStopped instead.
	ErrUnreachable = errors.New("node: control socket unreachable")

	// ErrNotRunning is returned by Config when the node is stopped.
	ErrNotRunning = errors.New("node: not running")
)

// State is the lifecycle state of the local node.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Control socket commands.
const (
	CommandStatus = "status"
	CommandConfig = "config"
)

// maxReplySize bounds a single reply line.
const maxReplySize = 1 << 20

// Config configures a Handle.
type Config struct {
	SocketPath     string
	DialTimeout    time.Duration
	RequestTimeout time.Duration
}

// DefaultConfig returns defaults for the socket at path.
func DefaultConfig(path string) Config {
	return Config{
		SocketPath:     path,
		DialTimeout:    time.Second,
		RequestTimeout: 5 * time.Second,
	}
}

// Handle is a client for the control socket. It holds no connection between
// calls and is safe for concurrent use.
type Handle struct {
	config Config
}

// NewHandle creates a handle for the configured socket.
func NewHandle(cfg Config) *Handle {
	return &Handle{config: cfg}
}

// SocketPath returns the control socket path.
func (h *Handle) SocketPath() string {
	return h.config.SocketPath
}

type request struct {
	Command string `json:"command"`
}

type errorReply struct {
	Error string `json:"error"`
}

// State reports whether the node is running. A missing socket or a refused
// connection means the node is stopped.
func (h *Handle) State(ctx context.Context) (State, error) {
	reply, err := h.call(ctx, CommandStatus)
	if errors.Is(err, ErrNotRunning) {
		return StateStopped, nil
	}
	if err != nil {
		return "", err
	}

	var status struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(reply, &status); err != nil {
		return "", fmt.Errorf("%w: decode status: %v", ErrUnreachable, err)
	}
	if status.Status != "ok" {
		return "", fmt.Errorf("%w: unexpected status %q", ErrUnreachable, status.Status)
	}
	return StateRunning, nil
}

// Config returns the live node configuration as a raw JSON object.
func (h *Handle) Config(ctx context.Context) (json.RawMessage, error) {
	reply, err := h.call(ctx, CommandConfig)
	if err != nil {
		return nil, err
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(reply, &obj); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return reply, nil
}

// call sends one command and returns the reply line.
func (h *Handle) call(ctx context.Context, command string) (json.RawMessage, error) {
	conn, err := h.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	var deadline time.Time
	if h.config.RequestTimeout > 0 {
		deadline = time.Now().Add(h.config.RequestTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if !deadline.IsZero() {
		conn.SetDeadline(deadline)
	}

	// Unblock reads when the caller goes away.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	data, err := json.Marshal(request{Command: command})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, h.ioError(ctx, "write request", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxReplySize)
	if !scanner.Scan() {
		err := scanner.Err()
		if err == nil {
			err = errors.New("connection closed before reply")
		}
		return nil, h.ioError(ctx, "read reply", err)
	}
	reply := append(json.RawMessage(nil), scanner.Bytes()...)

	var failure errorReply
	if json.Unmarshal(reply, &failure) == nil && failure.Error != "" {
		return nil, fmt.Errorf("node: %s: %s", command, failure.Error)
	}
	return reply, nil
}

// dial connects to the control socket.
func (h *Handle) dial(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: h.config.DialTimeout,
	}

	conn, err := dialer.DialContext(ctx, "unix", h.config.SocketPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, ErrNotRunning
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return conn, nil
}

// ioError attributes a socket error to the caller's context when that is what
// ended the call.
func (h *Handle) ioError(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return fmt.Errorf("%w: %s: %v", ErrUnreachable, op, err)
}
