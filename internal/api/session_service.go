package api

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/status"
)

func (s *Service) GetStatus(_ context.Context, _ *rpc.GetStatusRequest) (*rpc.GetStatusResponse, error) {
	st := s.conv.State(time.Now())
	resp := &rpc.GetStatusResponse{
		Session:   s.sessionName,
		Status:    string(s.currentStatus()),
		BotCode:   st.BotCode,
		BotName:   st.BotName,
		ConvCode:  st.ConvCode,
		UptimeMs:  time.Since(s.startedAt).Milliseconds(),
		Revealing: st.Revealing,
		Gate:      string(st.Gate),
	}

	if s.db != nil && st.ConvCode != "" {
		if n, err := s.db.CountMessages(st.ConvCode); err == nil {
			resp.CachedMessages = n
		} else {
			s.logger.Warn("count cached messages", zap.Error(err))
		}
	}
	if s.reconciler != nil && st.ConvCode != "" {
		if at, err := s.reconciler.LastIngest(st.ConvCode); err == nil && !at.IsZero() {
			resp.LastSyncedAtMs = at.UnixMilli()
		}
	}
	return resp, nil
}

func (s *Service) Reconnect(ctx context.Context, _ *rpc.ReconnectRequest) (*rpc.ReconnectResponse, error) {
	if err := s.conv.Reconnect(ctx); err != nil {
		return nil, toStatus("reconnect", err)
	}
	return &rpc.ReconnectResponse{Status: string(s.currentStatus())}, nil
}

func (s *Service) currentStatus() status.State {
	if s.machine == nil {
		return status.Booting
	}
	return s.machine.Current()
}
