package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fileops.io/notifyd/internal/core"
)

func TestRegistryBidirectional(t *testing.T) {
	r := NewRegistry()
	c1 := &Conn{send: make(chan []byte, 1)}
	c2 := &Conn{send: make(chan []byte, 1)}

	r.Add("u1", c1)
	r.Add("u1", c2)
	assert.Equal(t, 2, r.Count())
	assert.Equal(t, 1, r.UserCount())
	assert.Len(t, r.Connections("u1"), 2)

	r.Remove(c1)
	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.Connections("u1"), 1)

	// Last connection gone drops the user entry.
	r.Remove(c2)
	assert.Zero(t, r.Count())
	assert.Zero(t, r.UserCount())
	assert.Empty(t, r.Connections("u1"))

	// Removing twice is harmless.
	r.Remove(c2)
	assert.Zero(t, r.Count())
}

func TestPushSkipsFullBuffers(t *testing.T) {
	r := NewRegistry()
	g := NewGateway(r)

	full := &Conn{send: make(chan []byte)}
	open := &Conn{send: make(chan []byte, 4)}
	r.Add("u1", full)
	r.Add("u1", open)

	n := &core.Notification{ID: "n1", UserID: "u1", Type: core.TypeFileUploaded}
	pushed := g.Push(context.Background(), "u1", n)
	assert.Equal(t, 1, pushed)
	assert.Len(t, open.send, 1)
}

func TestPushAfterCloseIsDropped(t *testing.T) {
	r := NewRegistry()
	g := NewGateway(r)

	c := &Conn{send: make(chan []byte, 4)}
	r.Add("u1", c)
	c.close()

	n := &core.Notification{ID: "n1", UserID: "u1", Type: core.TypeFileUploaded}
	assert.Zero(t, g.Push(context.Background(), "u1", n))
}

func TestGatewayEndToEnd(t *testing.T) {
	g := NewGateway(NewRegistry())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.Handle(w, r, "u1")
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	// Registration is synchronous with the upgrade, but give the handler
	// goroutine a moment on loaded CI machines.
	require.Eventually(t, func() bool { return g.Registry().Count() == 1 },
		time.Second, 10*time.Millisecond)

	n := &core.Notification{
		ID:     "n1",
		UserID: "u1",
		Type:   core.TypeFileUploaded,
		Title:  "File uploaded",
	}
	assert.Equal(t, 1, g.Push(context.Background(), "u1", n))

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := ws.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event        string             `json:"event"`
		Notification *core.Notification `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "notification", msg.Event)
	assert.Equal(t, "n1", msg.Notification.ID)

	// Disconnect cleans the registry up.
	ws.Close()
	require.Eventually(t, func() bool { return g.Registry().Count() == 0 },
		2*time.Second, 10*time.Millisecond)
}
