// Package api implements the daemon's gRPC surface on top of the chat
// controller and the local message cache.
package api

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/chat"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/preview"
	"github.com/matheus3301/twin/internal/rpc"
	"github.com/matheus3301/twin/internal/status"
	"github.com/matheus3301/twin/internal/store"
	twinsync "github.com/matheus3301/twin/internal/sync"
)

// Conversation is the part of the chat controller the service drives.
type Conversation interface {
	State(now time.Time) chat.State
	LoadOlder(ctx context.Context, sentinelVisible bool) error
	Send(ctx context.Context, text string) error
	RateTurn(ctx context.Context, turnIndex, value int) error
	Feedback(ctx context.Context, codes []string, feedback, desc string) error
	PreviewURL(ctx context.Context, text string) (string, *preview.Preview)
	Reconnect(ctx context.Context) error
}

// Service implements rpc.TwinServer.
type Service struct {
	sessionName string
	startedAt   time.Time
	conv        Conversation
	machine     *status.Machine
	db          *store.DB
	reconciler  *twinsync.Reconciler
	bus         *bus.Bus
	logger      *zap.Logger
}

var _ rpc.TwinServer = (*Service)(nil)

// NewService creates the gRPC service. The reconciler may be nil.
func NewService(sessionName string, conv Conversation, machine *status.Machine, db *store.DB, reconciler *twinsync.Reconciler, b *bus.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sessionName: sessionName,
		startedAt:   time.Now(),
		conv:        conv,
		machine:     machine,
		db:          db,
		reconciler:  reconciler,
		bus:         b,
		logger:      logger,
	}
}

// toStatus maps controller errors onto gRPC status codes.
func toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *platform.APIError
	switch {
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrNotRateable), errors.Is(err, chat.ErrNoMessages):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, chat.ErrNotReady):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.Is(err, chat.ErrBotBusy):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, chat.ErrNoSuchTurn):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return grpcstatus.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	case errors.As(err, &apiErr):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %s", op, platform.UserMessage(err))
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
