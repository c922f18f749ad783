package stream

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func receive(t *testing.T, client *Client) string {
	t.Helper()
	select {
	case msg := <-client.Send:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for message")
	}
	return ""
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-1", []byte("hello"))

	if msg := receive(t, client); msg != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestHubBroadcastOtherSession(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	client := hub.Register("session-1")
	defer hub.Unregister(client)

	hub.Broadcast("session-2", []byte("hello"))

	select {
	case msg := <-client.Send:
		t.Fatalf("unexpected message %q", msg)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHubHelpers(t *testing.T) {
	ch := redisChannel("abc")
	if ch != "drive:abc:broadcast" {
		t.Fatalf("unexpected channel %q", ch)
	}
	if sessionIDFromChannel(ch) != "abc" {
		t.Fatalf("unexpected session id")
	}
	if sessionIDFromChannel("bad") != "" {
		t.Fatalf("expected empty session id")
	}
	if sessionIDFromChannel("fleet:abc:broadcast") != "" {
		t.Fatalf("expected foreign channel to be ignored")
	}
}

func TestUnregisterCloses(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	client := hub.Register("session-2")
	hub.Unregister(client)
	_, ok := <-client.Send
	if ok {
		t.Fatalf("expected channel closed")
	}
	hub.Unregister(client)
}

func TestHubRedisBroadcastDeliversOnce(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(client, zerolog.Nop())
	defer hub.Close()
	ws := hub.Register("session-redis")
	defer hub.Unregister(ws)

	hub.Broadcast("session-redis", []byte("ping"))

	if msg := receive(t, ws); msg != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}
	select {
	case msg := <-ws.Send:
		t.Fatalf("duplicate delivery %q", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubRedisAcrossInstances(t *testing.T) {
	s := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer clientB.Close()

	watcher := NewHub(clientA, zerolog.Nop())
	defer watcher.Close()
	producer := NewHub(clientB, zerolog.Nop())
	defer producer.Close()

	ws := watcher.Register("session-x")
	defer watcher.Unregister(ws)

	producer.Broadcast("session-x", []byte("pong"))

	if msg := receive(t, ws); msg != "pong" {
		t.Fatalf("unexpected message from redis %q", msg)
	}
}

func TestHubRedisUnavailableDeliversLocally(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr(), MaxRetries: -1})
	server.Close()
	defer client.Close()

	hub := NewHub(client, zerolog.Nop())
	defer hub.Close()
	ws := hub.Register("session-bad")
	defer hub.Unregister(ws)

	hub.Broadcast("session-bad", []byte("ping"))

	if msg := receive(t, ws); msg != "ping" {
		t.Fatalf("unexpected message %q", msg)
	}
}
