package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/chat"
	"github.com/matheus3301/twin/internal/history"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/preview"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/status"
	"github.com/matheus3301/twin/internal/store"
	twinsync "github.com/matheus3301/twin/internal/sync"
	"github.com/matheus3301/twin/internal/transcript"
)

type fakeConversation struct {
	state       chat.State
	loadErr     error
	sendErr     error
	rateErr     error
	feedbackErr error
	sent        []string
	reconnects  int
}

func (f *fakeConversation) State(time.Time) chat.State { return f.state }

func (f *fakeConversation) LoadOlder(context.Context, bool) error { return f.loadErr }

func (f *fakeConversation) Send(_ context.Context, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConversation) RateTurn(context.Context, int, int) error { return f.rateErr }

func (f *fakeConversation) Feedback(context.Context, []string, string, string) error {
	return f.feedbackErr
}

func (f *fakeConversation) PreviewURL(_ context.Context, text string) (string, *preview.Preview) {
	return text, &preview.Preview{URL: text, Title: "T"}
}

func (f *fakeConversation) Reconnect(context.Context) error {
	f.reconnects++
	return nil
}

type fakeStream struct {
	ctx    context.Context
	events chan *rpc.Event
}

func (s *fakeStream) Send(e *rpc.Event) error {
	s.events <- e
	return nil
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	_, err = db.UpgradeSchema()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleState() chat.State {
	entries := []transcript.Entry{
		transcript.Welcome("hi"),
		{ID: 1, Role: transcript.RoleUser, Content: "hello", SequenceCode: "u1"},
		{ID: 2, Role: transcript.RoleBot, Content: "first", SequenceCode: "b1", Rating: 1},
		{ID: 3, Role: transcript.RoleBot, Content: "second", SequenceCode: "b1", Segment: 1},
	}
	return chat.State{
		BotCode:    "bot",
		BotName:    "Twin",
		ConvCode:   "c1",
		Transcript: transcript.Snapshot{Version: 7, Entries: entries},
		Turns:      transcript.Group(entries),
		History: history.Status{
			Conversation: "c1",
			Cursor:       history.Cursor{Backward: "p2", PageIndex: 1},
			State:        history.Idle,
			HasMore:      true,
			Loaded:       3,
			Total:        9,
		},
	}
}

func newService(t *testing.T, conv *fakeConversation) (*Service, *store.DB, *bus.Bus) {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	m := status.NewMachine(b)
	return NewService("main", conv, m, db, twinsync.NewReconciler(db, nil), b, nil), db, b
}

func TestGetStatus(t *testing.T) {
	conv := &fakeConversation{state: sampleState()}
	svc, db, _ := newService(t, conv)
	require.NoError(t, db.UpsertMessage(&store.Message{ConvCode: "c1", MsgCode: "m1", SenderType: "bot", Content: "x", SentAt: 1}))
	at := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, svc.reconciler.MarkIngested("c1", at))

	resp, err := svc.GetStatus(context.Background(), &rpc.GetStatusRequest{})
	require.NoError(t, err)
	assert.Equal(t, "main", resp.Session)
	assert.Equal(t, string(status.Booting), resp.Status)
	assert.Equal(t, "Twin", resp.BotName)
	assert.Equal(t, "c1", resp.ConvCode)
	assert.Equal(t, 1, resp.CachedMessages)
	assert.Equal(t, at.UnixMilli(), resp.LastSyncedAtMs)
}

func TestGetTranscript(t *testing.T) {
	conv := &fakeConversation{state: sampleState()}
	svc, _, _ := newService(t, conv)

	resp, err := svc.GetTranscript(context.Background(), &rpc.GetTranscriptRequest{})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), resp.Version)
	require.Len(t, resp.Entries, 4)
	assert.Equal(t, "welcome", resp.Entries[0].Kind)
	assert.Equal(t, "message", resp.Entries[1].Kind)

	require.Len(t, resp.Turns, 3)
	assert.Equal(t, 2, resp.Turns[2].Index)
	assert.Equal(t, []string{"b1"}, resp.Turns[2].Codes)
	assert.Equal(t, 1, resp.Turns[2].Rating)
	assert.Equal(t, rpc.Cursor{Backward: "p2", PageIndex: 1, HasMore: true, Loaded: 3, Total: 9}, resp.Cursor)
	assert.Empty(t, resp.SubscribeURL)
}

func TestLoadOlderReasons(t *testing.T) {
	tests := []struct {
		err    error
		loaded bool
		reason string
	}{
		{nil, true, ""},
		{history.ErrNotVisible, false, "not_visible"},
		{history.ErrBusy, false, "busy"},
		{history.ErrExhausted, false, "exhausted"},
	}
	for _, tt := range tests {
		conv := &fakeConversation{state: sampleState(), loadErr: tt.err}
		svc, _, _ := newService(t, conv)

		resp, err := svc.LoadOlder(context.Background(), &rpc.LoadOlderRequest{SentinelVisible: true})
		require.NoError(t, err)
		assert.Equal(t, tt.loaded, resp.Loaded)
		assert.Equal(t, tt.reason, resp.Reason)
	}
}

func TestLoadOlderPlatformError(t *testing.T) {
	conv := &fakeConversation{state: sampleState(), loadErr: &platform.APIError{StatusCode: 503, StatMsg: "down"}}
	svc, _, _ := newService(t, conv)

	_, err := svc.LoadOlder(context.Background(), &rpc.LoadOlderRequest{SentinelVisible: true})
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, grpcstatus.Code(err))
	assert.Contains(t, grpcstatus.Convert(err).Message(), "down")
}

func TestSendText(t *testing.T) {
	conv := &fakeConversation{state: sampleState()}
	svc, _, _ := newService(t, conv)

	resp, err := svc.SendText(context.Background(), &rpc.SendTextRequest{Text: "hey"})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, []string{"hey"}, conv.sent)
}

func TestSendTextGated(t *testing.T) {
	conv := &fakeConversation{sendErr: &chat.GateError{Gate: chat.GateExpired, SubscribeURL: "https://sub"}}
	svc, _, _ := newService(t, conv)

	resp, err := svc.SendText(context.Background(), &rpc.SendTextRequest{Text: "hey"})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.Equal(t, "expired", resp.Gate)
	assert.Equal(t, "https://sub", resp.SubscribeURL)
}

func TestSendTextErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{chat.ErrEmptyMessage, codes.InvalidArgument},
		{chat.ErrNotReady, codes.Unavailable},
		{chat.ErrBotBusy, codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		svc, _, _ := newService(t, &fakeConversation{sendErr: tt.err})
		_, err := svc.SendText(context.Background(), &rpc.SendTextRequest{Text: "x"})
		assert.Equal(t, tt.code, grpcstatus.Code(err), "%v", tt.err)
	}
}

func TestRateTurnPartial(t *testing.T) {
	conv := &fakeConversation{
		state:   sampleState(),
		rateErr: &chat.BatchError{Op: "rating", Failed: []string{"b2"}, Total: 2, Err: errors.New("x")},
	}
	svc, _, _ := newService(t, conv)

	resp, err := svc.RateTurn(context.Background(), &rpc.RateTurnRequest{Turn: 2, Value: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Rated)
	assert.Equal(t, []string{"b2"}, resp.Failed)
}

func TestRateTurnNotFound(t *testing.T) {
	svc, _, _ := newService(t, &fakeConversation{rateErr: chat.ErrNoSuchTurn})

	_, err := svc.RateTurn(context.Background(), &rpc.RateTurnRequest{Turn: 9, Value: 1})
	assert.Equal(t, codes.NotFound, grpcstatus.Code(err))
}

func TestSendFeedback(t *testing.T) {
	svc, _, _ := newService(t, &fakeConversation{})

	resp, err := svc.SendFeedback(context.Background(), &rpc.SendFeedbackRequest{Codes: []string{"a", "b"}, Feedback: "bad"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Sent)
	assert.Empty(t, resp.Failed)
}

func TestSearchMessagesScopesToConversation(t *testing.T) {
	conv := &fakeConversation{state: sampleState()}
	svc, db, _ := newService(t, conv)
	require.NoError(t, db.UpsertMessage(&store.Message{ConvCode: "c1", MsgCode: "m1", SenderType: "bot", Content: "hello there", SentAt: 10}))
	require.NoError(t, db.UpsertMessage(&store.Message{ConvCode: "c2", MsgCode: "m2", SenderType: "bot", Content: "hello elsewhere", SentAt: 20}))

	resp, err := svc.SearchMessages(context.Background(), &rpc.SearchMessagesRequest{Query: " hello "})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "m1", resp.Results[0].MsgCode)
	assert.Equal(t, int64(10), resp.Results[0].SentAtMs)

	resp, err = svc.SearchMessages(context.Background(), &rpc.SearchMessagesRequest{Query: "hello", All: true})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
}

func TestPreviewURLAndReconnect(t *testing.T) {
	conv := &fakeConversation{}
	svc, _, _ := newService(t, conv)

	p, err := svc.PreviewURL(context.Background(), &rpc.PreviewURLRequest{Text: "https://x"})
	require.NoError(t, err)
	assert.Equal(t, "T", p.Preview.Title)

	r, err := svc.Reconnect(context.Background(), &rpc.ReconnectRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, conv.reconnects)
	assert.Equal(t, string(status.Booting), r.Status)
}

func TestWatchEventsFiltersAndEncodes(t *testing.T) {
	svc, _, b := newService(t, &fakeConversation{})
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx, events: make(chan *rpc.Event, 8)}

	done := make(chan error, 1)
	go func() { done <- svc.WatchEvents(&rpc.WatchEventsRequest{Prefix: "notify.|transcript."}, stream) }()

	// Wait for the subscription before publishing.
	require.Eventually(t, func() bool {
		b.Publish(bus.Notify("error", "boom"))
		select {
		case <-stream.events:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)

	b.Publish(bus.Event{Kind: bus.KindLiveMessage, Payload: bus.LiveMessage{ConvCode: "c1"}})
	b.Publish(bus.Event{Kind: bus.KindTranscriptChanged, Payload: transcript.Snapshot{Version: 3, Entries: make([]transcript.Entry, 2)}})

	var evt *rpc.Event
	require.Eventually(t, func() bool {
		select {
		case evt = <-stream.events:
			return evt.Kind == bus.KindTranscriptChanged
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	assert.JSONEq(t, `{"version":3,"entries":2}`, string(evt.Payload))
	assert.NotEmpty(t, evt.ID)

	cancel()
	require.NoError(t, <-done)
}

func TestEncodePayload(t *testing.T) {
	raw, err := encodePayload(bus.Event{Payload: status.StatusChange{From: status.Connecting, To: status.Live}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"CONNECTING","to":"LIVE"}`, string(raw))

	raw, err = encodePayload(bus.Notify("info", "saved"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"saved"}`, string(raw))

	raw, err = encodePayload(bus.Event{Payload: bus.OutboxResult{ClientMsgID: "id", ConvCode: "c", Err: errors.New("nope")}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client_msg_id":"id","conv_code":"c","error":"nope"}`, string(raw))
}
