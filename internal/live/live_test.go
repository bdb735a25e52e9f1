package live

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/matheus3301/twin/internal/status"
)

func TestUnwrap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"publication", `{"pub":{"data":{"content":"hi"}}}`, `{"content":"hi"}`, true},
		{"empty object", `{}`, "", false},
		{"blank", "  ", "", false},
		{"malformed", `{"pub":`, "", false},
		{"no pub", `{"connect":{"client":"x"}}`, "", false},
		{"null data", `{"pub":{"data":null}}`, "", false},
		{"pub without data", `{"pub":{}}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Unwrap([]byte(tt.in))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.JSONEq(t, tt.want, string(got))
			}
		})
	}
}

func TestParamsComplete(t *testing.T) {
	assert.True(t, Params{"http://x", "tok", "ch"}.Complete())
	assert.False(t, Params{"http://x", "", "ch"}.Complete())
	assert.False(t, Params{}.Complete())
}

func TestReadEvents(t *testing.T) {
	stream := ": comment\n" +
		"event: message\n" +
		"data: {\"pub\":\n" +
		"data: {\"data\":1}}\n" +
		"\n" +
		"id: 3\n" +
		"data:{}\n" +
		"\n"
	var got []string
	err := readEvents(strings.NewReader(stream), func(b []byte) { got = append(got, string(b)) })
	assert.Error(t, err, "end of stream is reported")
	assert.Equal(t, []string{"{\"pub\":\n{\"data\":1}}", "{}"}, got)
}

// sseServer publishes whatever is written to its channel to every connected stream.
type sseServer struct {
	*httptest.Server
	mu       sync.Mutex
	connects []string
	events   chan string
}

func newSSEServer(t *testing.T) *sseServer {
	s := &sseServer{events: make(chan string, 16)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var connect struct {
			Token string                     `json:"token"`
			Subs  map[string]json.RawMessage `json:"subs"`
		}
		if err := json.Unmarshal([]byte(r.URL.Query().Get("cf_connect")), &connect); err != nil {
			http.Error(w, "bad connect", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		for ch := range connect.Subs {
			s.connects = append(s.connects, connect.Token+"@"+ch)
		}
		s.mu.Unlock()

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		for {
			select {
			case <-r.Context().Done():
				return
			case evt := <-s.events:
				if evt == "close" {
					return
				}
				fmt.Fprintf(w, "data: %s\n\n", evt)
				w.(http.Flusher).Flush()
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *sseServer) connections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.connects...)
}

type collector struct {
	mu  sync.Mutex
	got []string
}

func (c *collector) handle(data json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, string(data))
}

func (c *collector) items() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestSSESubscriberForwardsPublications(t *testing.T) {
	srv := newSSEServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	machine := status.NewMachine(nil)
	var c collector
	sub := NewSubscriber(&SSETransport{Client: srv.Client()}, c.handle, Options{Machine: machine})

	sub.Update(Params{Endpoint: srv.URL, Token: "tok", Channel: "conv-1"})
	require.Eventually(t, func() bool { return machine.Current() == status.Live }, 2*time.Second, 10*time.Millisecond)

	srv.events <- `{}`
	srv.events <- `not json`
	srv.events <- `{"pub":{"data":{"msg_code":"m1","content":"hello"}}}`

	require.Eventually(t, func() bool { return len(c.items()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"msg_code":"m1","content":"hello"}`, c.items()[0])
	assert.Equal(t, []string{"tok@conv-1"}, srv.connections())

	sub.Close()
	srv.Client().CloseIdleConnections()
}

func TestUpdateResubscribesOnChange(t *testing.T) {
	srv := newSSEServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	machine := status.NewMachine(nil)
	var c collector
	sub := NewSubscriber(&SSETransport{Client: srv.Client()}, c.handle, Options{Machine: machine})

	p := Params{Endpoint: srv.URL, Token: "tok", Channel: "conv-1"}
	sub.Update(p)
	require.Eventually(t, func() bool { return len(srv.connections()) == 1 }, 2*time.Second, 10*time.Millisecond)

	sub.Update(p)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, srv.connections(), 1, "same params keep the stream")

	sub.Update(Params{Endpoint: srv.URL, Token: "tok", Channel: "conv-2"})
	require.Eventually(t, func() bool { return len(srv.connections()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "tok@conv-2", srv.connections()[1])

	sub.Update(Params{Endpoint: srv.URL, Channel: "conv-2"})
	assert.Equal(t, status.Offline, machine.Current())

	sub.Close()
	srv.Client().CloseIdleConnections()
}

func TestSubscriberReconnectsAfterDrop(t *testing.T) {
	srv := newSSEServer(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	var c collector
	sub := NewSubscriber(&SSETransport{Client: srv.Client()}, c.handle, Options{
		MinBackoff: 10 * time.Millisecond,
		MaxBackoff: 20 * time.Millisecond,
	})
	sub.Update(Params{Endpoint: srv.URL, Token: "tok", Channel: "conv-1"})
	require.Eventually(t, func() bool { return len(srv.connections()) == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.events <- "close"
	require.Eventually(t, func() bool { return len(srv.connections()) >= 2 }, 2*time.Second, 10*time.Millisecond)

	srv.events <- `{"pub":{"data":{"content":"after"}}}`
	require.Eventually(t, func() bool { return len(c.items()) == 1 }, 2*time.Second, 10*time.Millisecond)

	sub.Close()
	srv.Client().CloseIdleConnections()
}

func TestWebSocketTransport(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	pong := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd struct {
			ID      int `json:"id"`
			Connect struct {
				Token string              `json:"token"`
				Subs  map[string]struct{} `json:"subs"`
			} `json:"connect"`
		}
		if json.Unmarshal(msg, &cmd) != nil || cmd.Connect.Token != "tok" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"error":{"code":109,"message":"token expired"}}`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"connect":{"client":"abc"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{}"))
		if _, reply, err := conn.ReadMessage(); err == nil && string(reply) == "{}" {
			pong <- struct{}{}
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(
			`{"push":{"channel":"other","pub":{"data":{"n":0}}}}`+"\n"+
				`{"push":{"channel":"conv-1","pub":{"data":{"n":1}}}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opened := make(chan struct{}, 1)
	got := make(chan string, 4)
	errc := make(chan error, 1)
	go func() {
		errc <- (&WebSocketTransport{}).Stream(ctx, Params{Endpoint: endpoint, Token: "tok", Channel: "conv-1"},
			func() { opened <- struct{}{} },
			func(b []byte) { got <- string(b) })
	}()

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("connect reply not seen")
	}
	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("ping was not answered")
	}
	select {
	case payload := <-got:
		data, ok := Unwrap([]byte(payload))
		require.True(t, ok)
		assert.JSONEq(t, `{"n":1}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("publication not delivered")
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop on cancel")
	}
}

func TestWebSocketConnectError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"id":1,"error":{"code":109,"message":"token expired"}}`))
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	err := (&WebSocketTransport{}).Stream(context.Background(),
		Params{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http"), Token: "old", Channel: "c"},
		func() { t.Error("onOpen must not fire") }, func([]byte) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token expired")
}
