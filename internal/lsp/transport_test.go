package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// fakeServer is the far end of a Transport, speaking raw framed JSON.
type fakeServer struct {
	in  *bufio.Reader
	out io.Writer
}

func newTransportPair(t *testing.T) (*Transport, *fakeServer) {
	t.Helper()
	clientR, serverW := io.Pipe()
	serverR, clientW := io.Pipe()

	tr := NewTransport(clientR, clientW, clientW, WithTransportLogger(zaptest.NewLogger(t).Sugar()))
	tr.Start(context.Background())
	t.Cleanup(func() {
		_ = tr.Close()
		_ = serverW.Close()
		_ = serverR.Close()
	})
	return tr, &fakeServer{in: bufio.NewReader(serverR), out: serverW}
}

func (s *fakeServer) write(t *testing.T, msg string) {
	t.Helper()
	_, err := fmt.Fprintf(s.out, "Content-Length: %d\r\n\r\n%s", len(msg), msg)
	require.NoError(t, err)
}

func (s *fakeServer) read(t *testing.T) map[string]any {
	t.Helper()
	length := 0
	for {
		line, err := s.in.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "Content-Length: "); ok {
			length, err = strconv.Atoi(v)
			require.NoError(t, err)
		}
	}
	body := make([]byte, length)
	_, err := io.ReadFull(s.in, body)
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(body, &msg))
	return msg
}

func TestTransport_Call(t *testing.T) {
	tr, srv := newTransportPair(t)

	done := make(chan error, 1)
	var result struct {
		Label string `json:"label"`
	}
	go func() {
		done <- tr.Call(context.Background(), "completionItem/resolve", map[string]string{"label": "x"}, &result)
	}()

	req := srv.read(t)
	assert.Equal(t, "2.0", req["jsonrpc"])
	assert.Equal(t, "completionItem/resolve", req["method"])
	srv.write(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%v,"result":{"label":"resolved"}}`, req["id"]))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Call did not return")
	}
	assert.Equal(t, "resolved", result.Label)
}

func TestTransport_CallRPCError(t *testing.T) {
	tr, srv := newTransportPair(t)

	done := make(chan error, 1)
	go func() {
		done <- tr.Call(context.Background(), "completionItem/resolve", nil, nil)
	}()

	req := srv.read(t)
	srv.write(t, fmt.Sprintf(`{"jsonrpc":"2.0","id":%v,"error":{"code":-32800,"message":"cancelled"}}`, req["id"]))

	err := <-done
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.True(t, rpcErr.IsCancelled())
}

func TestTransport_CallContextCancelSendsCancelRequest(t *testing.T) {
	tr, srv := newTransportPair(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Call(ctx, "completionItem/resolve", nil, nil)
	}()

	req := srv.read(t)
	cancel()

	cancelMsg := srv.read(t)
	assert.Equal(t, "$/cancelRequest", cancelMsg["method"])
	params := cancelMsg["params"].(map[string]any)
	assert.Equal(t, req["id"], params["id"])
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestTransport_Notification(t *testing.T) {
	tr, srv := newTransportPair(t)

	got := make(chan string, 1)
	tr.OnNotification("window/logMessage", func(method string, params json.RawMessage) {
		got <- string(params)
	})

	srv.write(t, `{"jsonrpc":"2.0","method":"window/logMessage","params":{"message":"hi"}}`)

	select {
	case params := <-got:
		assert.JSONEq(t, `{"message":"hi"}`, params)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestTransport_ServerRequest(t *testing.T) {
	tr, srv := newTransportPair(t)

	tr.OnRequest("client/registerCapability", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, nil
	})

	srv.write(t, `{"jsonrpc":"2.0","id":"reg-1","method":"client/registerCapability","params":{"registrations":[]}}`)

	resp := srv.read(t)
	assert.Equal(t, "reg-1", resp["id"])
	assert.Contains(t, resp, "result")
	assert.NotContains(t, resp, "error")
}

func TestTransport_ServerRequestUnknownMethod(t *testing.T) {
	_, srv := newTransportPair(t)

	srv.write(t, `{"jsonrpc":"2.0","id":7,"method":"workspace/configuration","params":{}}`)

	resp := srv.read(t)
	assert.EqualValues(t, 7, resp["id"])
	errObj := resp["error"].(map[string]any)
	assert.EqualValues(t, CodeMethodNotFound, errObj["code"])
}

func TestTransport_ClosedRejectsCalls(t *testing.T) {
	tr, _ := newTransportPair(t)
	require.NoError(t, tr.Close())

	assert.True(t, tr.IsClosed())
	assert.ErrorIs(t, tr.Call(context.Background(), "x", nil, nil), ErrShutdown)
	assert.ErrorIs(t, tr.Notify(context.Background(), "x", nil), ErrShutdown)
}
