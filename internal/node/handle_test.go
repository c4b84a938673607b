package node

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode serves the control protocol with canned replies.
type fakeNode struct {
	listener *net.UnixListener
	replies  map[string]string
	commands chan string
}

func startFakeNode(t *testing.T, replies map[string]string) (*fakeNode, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "control.sock")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)

	f := &fakeNode{listener: l, replies: replies, commands: make(chan string, 16)}
	go f.serve()
	t.Cleanup(func() { l.Close() })
	return f, path
}

func (f *fakeNode) serve() {
	for {
		conn, err := f.listener.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *fakeNode) handle(conn net.Conn) {
	defer conn.Close()

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return
	}
	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return
	}
	f.commands <- req.Command

	reply, ok := f.replies[req.Command]
	if !ok {
		return
	}
	if reply == "hang" {
		time.Sleep(time.Second)
		return
	}
	conn.Write([]byte(reply + "\n"))
}

func testConfig(path string) Config {
	cfg := DefaultConfig(path)
	cfg.RequestTimeout = 200 * time.Millisecond
	return cfg
}

func TestState_Running(t *testing.T) {
	f, path := startFakeNode(t, map[string]string{CommandStatus: `{"status":"ok"}`})
	h := NewHandle(testConfig(path))

	state, err := h.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateRunning, state)
	assert.Equal(t, CommandStatus, <-f.commands)
}

func TestState_MissingSocket(t *testing.T) {
	h := NewHandle(testConfig(filepath.Join(t.TempDir(), "absent.sock")))

	state, err := h.State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestState_RefusedConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stale.sock")
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	require.NoError(t, err)
	l.SetUnlinkOnClose(false)
	require.NoError(t, l.Close())

	state, err := NewHandle(testConfig(path)).State(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)
}

func TestState_Unreachable(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"closed without reply", ""},
		{"timeout", "hang"},
		{"not ok", `{"status":"starting"}`},
		{"garbage", `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			replies := map[string]string{}
			if tt.reply != "" {
				replies[CommandStatus] = tt.reply
			}
			_, path := startFakeNode(t, replies)

			_, err := NewHandle(testConfig(path)).State(context.Background())
			assert.ErrorIs(t, err, ErrUnreachable)
		})
	}
}

func TestConfig(t *testing.T) {
	_, path := startFakeNode(t, map[string]string{
		CommandConfig: `{"alias":"seed","externalAddresses":["seed.example.com:8776"]}`,
	})

	cfg, err := NewHandle(testConfig(path)).Config(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"alias":"seed","externalAddresses":["seed.example.com:8776"]}`, string(cfg))
}

func TestConfig_Errors(t *testing.T) {
	_, path := startFakeNode(t, map[string]string{CommandConfig: `{"error":"config unavailable"}`})
	_, err := NewHandle(testConfig(path)).Config(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config unavailable")

	_, path = startFakeNode(t, map[string]string{CommandConfig: `[1,2,3]`})
	_, err = NewHandle(testConfig(path)).Config(context.Background())
	assert.Error(t, err)

	_, err = NewHandle(testConfig(filepath.Join(t.TempDir(), "absent.sock"))).Config(context.Background())
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestCall_HonoursContext(t *testing.T) {
	_, path := startFakeNode(t, map[string]string{CommandStatus: "hang"})

	cfg := testConfig(path)
	cfg.RequestTimeout = 10 * time.Second
	h := NewHandle(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := h.State(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
