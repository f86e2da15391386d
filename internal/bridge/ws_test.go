package bridge

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/cortexlipsync/internal/bus"
)

func startServer(t *testing.T) (*Server, *websocket.Conn) {
	t.Helper()

	srv := NewServer(zerolog.Nop(), bus.NewEventBus())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Stand-in for the frame loop.
	go func() {
		for req := range srv.Requests() {
			if strings.Contains(req.Payload, "###") {
				req.Result <- nil
			} else {
				req.Result <- errors.New("missing separator")
			}
		}
	}()

	return srv, conn
}

func readMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServer_SpeakAck(t *testing.T) {
	_, conn := startServer(t)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypeSpeak, Payload: "HI###0.5"}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeAck, msg.Type)
}

func TestServer_SpeakError(t *testing.T) {
	_, conn := startServer(t)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypeSpeak, Payload: "HI 0.5"}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
	assert.Contains(t, msg.Error, "separator")
}

func TestServer_UnsupportedType(t *testing.T) {
	_, conn := startServer(t)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "dance"}))
	msg := readMessage(t, conn)
	assert.Equal(t, TypeError, msg.Type)
}

func TestServer_BroadcastFrame(t *testing.T) {
	srv, conn := startServer(t)

	// The ack guarantees the client is registered before broadcasting.
	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypeSpeak, Payload: "HI###0.5"}))
	require.Equal(t, TypeAck, readMessage(t, conn).Type)
	require.Equal(t, 1, srv.Clients())

	srv.Broadcast(map[string]float32{"jawOpen": 42.5})

	msg := readMessage(t, conn)
	assert.Equal(t, TypeFrame, msg.Type)
	assert.Equal(t, float32(42.5), msg.Weights["jawOpen"])
}

func TestServer_ClientRemovedOnClose(t *testing.T) {
	srv, conn := startServer(t)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypeSpeak, Payload: "HI###0.5"}))
	require.Equal(t, TypeAck, readMessage(t, conn).Type)

	conn.Close()
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_CloseReleasesWaitingHandlers(t *testing.T) {
	// No frame loop drains Requests, so the handler waits for a result.
	srv := NewServer(zerolog.Nop(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.WriteJSON(WSMessage{Type: TypeSpeak, Payload: "HI###0.5"}))
	select {
	case <-srv.Requests():
	case <-time.After(5 * time.Second):
		t.Fatal("request not queued")
	}

	srv.Close()
	srv.Close()

	// The handler gives up on the result and drops the connection.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg WSMessage
	err = conn.ReadJSON(&msg)
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "handler still blocked after Close")
	}
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
}
