package api

import (
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/status"
	twinsync "github.com/matheus3301/twin/internal/sync"
	"github.com/matheus3301/twin/internal/transcript"
)

const watchBuffer = 256

func (s *Service) WatchEvents(req *rpc.WatchEventsRequest, stream rpc.EventSender) error {
	ch, unsub := s.bus.Subscribe(req.Prefix, watchBuffer)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, err := encodePayload(evt)
			if err != nil {
				s.logger.Warn("encode event payload", zap.String("kind", evt.Kind), zap.Error(err))
				continue
			}
			if err := stream.Send(&rpc.Event{
				ID:           uuid.New().String(),
				Kind:         evt.Kind,
				OccurredAtMs: evt.Timestamp.UnixMilli(),
				Payload:      payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

// encodePayload returns the wire payload for each event kind. Full
// transcripts are not streamed; clients refetch on transcript.changed.
func encodePayload(evt bus.Event) (json.RawMessage, error) {
	var v any
	switch p := evt.Payload.(type) {
	case status.StatusChange:
		v = rpc.StatusPayload{From: string(p.From), To: string(p.To)}
	case transcript.Snapshot:
		v = rpc.TranscriptPayload{Version: p.Version, Entries: len(p.Entries)}
	case string:
		v = rpc.NotifyPayload{Text: p}
	case bus.OutboxResult:
		out := map[string]string{"client_msg_id": p.ClientMsgID, "conv_code": p.ConvCode}
		if p.Err != nil {
			out["error"] = p.Err.Error()
		}
		v = out
	case bus.MessageRated:
		v = map[string]any{"conv_code": p.ConvCode, "codes": p.Codes, "value": p.Value}
	case bus.LiveMessage:
		v = map[string]string{"conv_code": p.ConvCode, "msg_code": p.Message.MsgCode}
	case bus.HistoryPage:
		v = map[string]any{"conv_code": p.ConvCode, "messages": len(p.Messages)}
	case twinsync.Ingested:
		v = map[string]any{"conv_code": p.ConvCode, "count": p.Count}
	case nil:
		return nil, nil
	default:
		v = p
	}
	return json.Marshal(v)
}
