package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"PeerMatch/internal/utils"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	hub := NewHub(utils.Discard())
	go hub.Run()
	t.Cleanup(hub.Close)
	return hub
}

func TestHubBroadcastToUsers(t *testing.T) {
	hub := newTestHub(t)

	c1 := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{UserID: "bob", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- c1
	hub.register <- c2

	msg := OutgoingMessage{
		Event: "match_outcome",
		Data:  map[string]interface{}{"status": "MATCHED"},
	}
	hub.BroadcastToUsers([]string{"alice", "bob"}, msg)

	select {
	case m := <-c1.Send:
		assert.Equal(t, "match_outcome", m.Event)
	case <-time.After(time.Second):
		t.Fatal("alice received nothing")
	}
	select {
	case m := <-c2.Send:
		assert.Equal(t, "match_outcome", m.Event)
	case <-time.After(time.Second):
		t.Fatal("bob received nothing")
	}
}

func TestHubSendToUser(t *testing.T) {
	hub := newTestHub(t)

	c1 := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	c2 := &Client{UserID: "bob", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- c1
	hub.register <- c2

	hub.SendToUser("alice", OutgoingMessage{Event: "private", Data: "hello alice"})

	select {
	case received := <-c1.Send:
		assert.Equal(t, "private", received.Event)
		assert.Equal(t, "hello alice", received.Data)
	case <-time.After(time.Second):
		t.Fatal("alice received nothing")
	}

	// the hub loop handles one request at a time, so bob's queue is final here
	hub.SendToUser("nobody", OutgoingMessage{Event: "sync"})
	select {
	case <-c2.Send:
		assert.Fail(t, "bob should not receive anything")
	default:
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := newTestHub(t)

	c := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- c
	assert.Eventually(t, func() bool { return hub.Connected("alice") }, time.Second, 5*time.Millisecond)

	hub.unregister <- c
	assert.Eventually(t, func() bool { return !hub.Connected("alice") }, time.Second, 5*time.Millisecond)

	_, open := <-c.Send
	assert.False(t, open, "Send should be closed on unregister")
}

func TestHubReplacedClientIsNotRemovedByStaleUnregister(t *testing.T) {
	hub := newTestHub(t)

	old := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	fresh := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1), Hub: hub}
	hub.register <- old
	hub.register <- fresh

	_, open := <-old.Send
	assert.False(t, open, "replaced client should be closed")

	hub.unregister <- old
	hub.SendToUser("alice", OutgoingMessage{Event: "still_here"})

	select {
	case m := <-fresh.Send:
		assert.Equal(t, "still_here", m.Event)
	case <-time.After(time.Second):
		t.Fatal("fresh client was dropped")
	}
}

func TestHubClosedDoesNotBlock(t *testing.T) {
	hub := NewHub(utils.Discard())
	go hub.Run()
	hub.Close()

	done := make(chan struct{})
	go func() {
		hub.SendToUser("alice", OutgoingMessage{Event: "late"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked after Close")
	}
}

func TestServeWS_DeliversToConnectedUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t)

	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=alice"
	conn, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return hub.Connected("alice") }, time.Second, 5*time.Millisecond)
	hub.SendToUser("alice", OutgoingMessage{Event: "match_outcome", Data: "TIMEOUT"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got OutgoingMessage
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "match_outcome", got.Event)
	assert.Equal(t, "TIMEOUT", got.Data)
}

func TestServeWS_RequiresUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := newTestHub(t)

	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func BenchmarkHubBroadcast(b *testing.B) {
	hub := NewHub(utils.Discard())
	go hub.Run()
	defer hub.Close()

	c1 := &Client{UserID: "alice", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	c2 := &Client{UserID: "bob", Send: make(chan OutgoingMessage, 1024), Hub: hub}
	go func() {
		for range c1.Send {
		}
	}()
	go func() {
		for range c2.Send {
		}
	}()
	hub.register <- c1
	hub.register <- c2

	b.ResetTimer()
	msg := OutgoingMessage{Event: "bench"}
	for i := 0; i < b.N; i++ {
		hub.BroadcastToUsers([]string{"alice", "bob"}, msg)
	}
}

func TestServeWS_ForwardsClientFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(utils.Discard())
	got := make(chan IncomingMessage, 1)
	hub.OnIncoming = func(msg IncomingMessage) { got <- msg }
	go hub.Run()
	t.Cleanup(hub.Close)

	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=alice"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// From is always stamped by the server
	require.NoError(t, conn.WriteJSON(IncomingMessage{From: "mallory", Event: "hello"}))
	select {
	case msg := <-got:
		assert.Equal(t, "alice", msg.From)
		assert.Equal(t, "hello", msg.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never reached OnIncoming")
	}
}

func TestServeWS_AfterCloseDoesNotBlock(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(utils.Discard())
	go hub.Run()
	hub.Close()

	r := gin.New()
	r.GET("/ws", ServeWS(hub))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?userId=alice"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// the server closes the socket instead of parking the handler
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, gws.IsCloseError(err, gws.CloseGoingAway), "got %v", err)
	assert.False(t, hub.Connected("alice"))
}
