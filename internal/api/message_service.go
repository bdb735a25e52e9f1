package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/twin/internal/chat"
	"github.com/matheus3301/twin/internal/rpc"
)

const defaultSearchLimit = 50

func (s *Service) RateTurn(ctx context.Context, req *rpc.RateTurnRequest) (*rpc.RateTurnResponse, error) {
	err := s.conv.RateTurn(ctx, req.Turn, req.Value)
	var batch *chat.BatchError
	if errors.As(err, &batch) {
		return &rpc.RateTurnResponse{Rated: batch.Total - len(batch.Failed), Failed: batch.Failed}, nil
	}
	if err != nil {
		return nil, toStatus("rate turn", err)
	}
	st := s.conv.State(time.Now())
	rated := 0
	if req.Turn >= 0 && req.Turn < len(st.Turns) {
		rated = len(st.Turns[req.Turn].Codes())
	}
	return &rpc.RateTurnResponse{Rated: rated}, nil
}

func (s *Service) SendFeedback(ctx context.Context, req *rpc.SendFeedbackRequest) (*rpc.SendFeedbackResponse, error) {
	err := s.conv.Feedback(ctx, req.Codes, req.Feedback, req.Description)
	var batch *chat.BatchError
	if errors.As(err, &batch) {
		return &rpc.SendFeedbackResponse{Sent: batch.Total - len(batch.Failed), Failed: batch.Failed}, nil
	}
	if err != nil {
		return nil, toStatus("send feedback", err)
	}
	return &rpc.SendFeedbackResponse{Sent: len(req.Codes)}, nil
}

func (s *Service) SearchMessages(_ context.Context, req *rpc.SearchMessagesRequest) (*rpc.SearchMessagesResponse, error) {
	if s.db == nil {
		return nil, grpcstatus.Errorf(codes.Unavailable, "message cache not open")
	}
	limit := defaultSearchLimit
	if req.Limit > 0 {
		limit = req.Limit
	}
	conv := ""
	if !req.All {
		conv = s.conv.State(time.Now()).ConvCode
		if conv == "" {
			return &rpc.SearchMessagesResponse{Results: []rpc.SearchResult{}}, nil
		}
	}

	results, err := s.db.SearchMessages(strings.TrimSpace(req.Query), conv, limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	out := make([]rpc.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, rpc.SearchResult{
			ConvCode:   r.Message.ConvCode,
			MsgCode:    r.Message.MsgCode,
			SenderType: r.Message.SenderType,
			Content:    r.Message.Content,
			Snippet:    r.Snippet,
			SentAtMs:   r.Message.SentAt,
		})
	}
	return &rpc.SearchMessagesResponse{Results: out}, nil
}
