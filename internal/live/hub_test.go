package live

import (
	"context"
	"encoding/json"
	"foodflow/internal/core"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, r.URL.Query().Get("user"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDeliversEventsToOwnerOnly(t *testing.T) {
	hub := NewHub(nil)
	srv := newHubServer(t, hub)
	owner := dial(t, srv, "usr-1")
	other := dial(t, srv, "usr-2")
	waitFor(t, func() bool { return hub.Subscribers("usr-1") == 1 && hub.Subscribers("usr-2") == 1 })

	hub.Publish(context.Background(), core.Event{UserID: "usr-1", Entity: core.EntityParcel, Action: core.ActionCreate, ID: "par-1"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := owner.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got core.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "par-1" || got.Entity != core.EntityParcel {
		t.Fatalf("unexpected event %+v", got)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelShort()
	if _, _, err := other.Read(short); err == nil {
		t.Fatalf("expected no event for another user")
	}
}

func TestHubUnsubscribesOnDisconnect(t *testing.T) {
	hub := NewHub(nil)
	srv := newHubServer(t, hub)
	conn := dial(t, srv, "usr-1")
	waitFor(t, func() bool { return hub.Subscribers("usr-1") == 1 })
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	waitFor(t, func() bool { return hub.Subscribers("usr-1") == 0 })
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.subscribe("usr-1")
	for i := 0; i < defaultBuffer+1; i++ {
		hub.Publish(context.Background(), core.Event{UserID: "usr-1", ID: "x"})
	}
	select {
	case <-sub.dropped:
	default:
		t.Fatalf("expected subscriber to be dropped once its queue filled")
	}
	hub.unsubscribe("usr-1", sub)
	if hub.Subscribers("usr-1") != 0 {
		t.Fatalf("expected no subscribers")
	}
}
