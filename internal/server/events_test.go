package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialEvents(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clientCount = %d, want %d", hub.clientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubBroadcastsToClient(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.handleWS))
	defer srv.Close()

	conn := dialEvents(t, srv.URL)
	waitForClients(t, hub, 1)

	hub.Broadcast(EventClipCreated, "clip_1700000000.wav")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventClipCreated {
		t.Errorf("type = %q, want %q", ev.Type, EventClipCreated)
	}
	if ev.Name != "clip_1700000000.wav" {
		t.Errorf("name = %q", ev.Name)
	}
	if ev.Timestamp == "" {
		t.Error("timestamp empty")
	}
}

func TestHubDropsClosedClient(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.handleWS))
	defer srv.Close()

	conn := dialEvents(t, srv.URL)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)

	// Broadcasting with no clients must not panic.
	hub.Broadcast(EventUploadReceived, "speech.wav")
}

func TestBroadcastDropsClientThatStoppedReading(t *testing.T) {
	hub := NewHub(nil)
	hub.writeWait = 50 * time.Millisecond
	srv := httptest.NewServer(http.HandlerFunc(hub.handleWS))
	defer srv.Close()

	// Connect but never read, so the client's TCP buffers fill up.
	dialEvents(t, srv.URL)
	waitForClients(t, hub, 1)

	// Large payloads saturate the buffers within a few broadcasts. The
	// loop must finish anyway: the hub drops the stalled client instead
	// of blocking on it with the mutex held.
	name := strings.Repeat("x", 1<<20)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 64; i++ {
			hub.Broadcast(EventClipCreated, name)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("broadcast loop blocked behind a client that stopped reading")
	}
	waitForClients(t, hub, 0)
}

func TestEventsEndpointThroughRouter(t *testing.T) {
	env := newTestEnv(t, &stubTranscriber{}, nil)

	conn := dialEvents(t, env.srv.URL)

	// The upload path broadcasts lifecycle events to connected clients.
	// Give the hub a moment to register before uploading.
	time.Sleep(20 * time.Millisecond)
	resp := postUpload(t, env.srv.URL, "speech.wav", makeWAV(t, 8000, 800))
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != EventUploadReceived {
		t.Errorf("first event = %q, want %q", ev.Type, EventUploadReceived)
	}
}
