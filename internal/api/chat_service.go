package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/twin/internal/chat"
	"github.com/matheus3301/twin/internal/history"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/transcript"
)

func (s *Service) GetTranscript(_ context.Context, _ *rpc.GetTranscriptRequest) (*rpc.GetTranscriptResponse, error) {
	st := s.conv.State(time.Now())
	resp := &rpc.GetTranscriptResponse{
		Version:   st.Transcript.Version,
		BotName:   st.BotName,
		BotAvatar: st.BotAvatar,
		ConvCode:  st.ConvCode,
		Entries:   entriesToRPC(st.Transcript.Entries),
		Turns:     make([]rpc.Turn, 0, len(st.Turns)),
		Cursor:    cursorToRPC(st.History),
		Gate:      string(st.Gate),
	}
	if st.Gate != chat.GateNone {
		resp.SubscribeURL = st.SubscribeURL
	}
	for i, t := range st.Turns {
		resp.Turns = append(resp.Turns, rpc.Turn{
			Index:   i,
			Role:    string(t.Role),
			Entries: entriesToRPC(t.Entries),
			Codes:   t.Codes(),
			Rating:  t.Rating(),
			Pending: t.Pending(),
		})
	}
	return resp, nil
}

func (s *Service) LoadOlder(ctx context.Context, req *rpc.LoadOlderRequest) (*rpc.LoadOlderResponse, error) {
	err := s.conv.LoadOlder(ctx, req.SentinelVisible)
	resp := &rpc.LoadOlderResponse{Loaded: err == nil}
	switch {
	case err == nil:
	case errors.Is(err, history.ErrNotVisible):
		resp.Reason = "not_visible"
	case errors.Is(err, history.ErrBusy):
		resp.Reason = "busy"
	case errors.Is(err, history.ErrExhausted):
		resp.Reason = "exhausted"
	default:
		return nil, toStatus("load older", err)
	}
	resp.Cursor = cursorToRPC(s.conv.State(time.Now()).History)
	return resp, nil
}

func (s *Service) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendTextResponse, error) {
	err := s.conv.Send(ctx, req.Text)
	var gate *chat.GateError
	if errors.As(err, &gate) {
		return &rpc.SendTextResponse{Gate: string(gate.Gate), SubscribeURL: gate.SubscribeURL}, nil
	}
	if err != nil {
		return nil, toStatus("send", err)
	}
	return &rpc.SendTextResponse{Accepted: true}, nil
}

func (s *Service) PreviewURL(ctx context.Context, req *rpc.PreviewURLRequest) (*rpc.PreviewURLResponse, error) {
	url, p := s.conv.PreviewURL(ctx, req.Text)
	return &rpc.PreviewURLResponse{URL: url, Preview: p}, nil
}

func entriesToRPC(entries []transcript.Entry) []rpc.Entry {
	out := make([]rpc.Entry, 0, len(entries))
	for _, e := range entries {
		out = append(out, rpc.Entry{
			ID:           e.ID,
			Role:         string(e.Role),
			Kind:         kindName(e.Kind),
			Content:      e.Content,
			HTML:         e.HTML,
			SequenceCode: e.SequenceCode,
			Segment:      e.Segment,
			Transient:    e.Transient,
			URL:          e.URL,
			Preview:      e.Preview,
			Rating:       e.Rating,
		})
	}
	return out
}

func kindName(k transcript.Kind) string {
	switch k {
	case transcript.KindWelcome:
		return "welcome"
	case transcript.KindApology:
		return "apology"
	default:
		return "message"
	}
}

func cursorToRPC(st history.Status) rpc.Cursor {
	return rpc.Cursor{
		Forward:   st.Cursor.Forward,
		Backward:  st.Cursor.Backward,
		PageIndex: st.Cursor.PageIndex,
		Loading:   st.State == history.Loading,
		HasMore:   st.HasMore,
		Loaded:    st.Loaded,
		Total:     st.Total,
	}
}
