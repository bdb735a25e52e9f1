// Package model caches daemon state for the TUI.
package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"google.golang.org/grpc"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/twin/internal/rpc"
)

// Backend is the daemon API the view model calls.
type Backend interface {
	GetStatus(ctx context.Context, in *rpc.GetStatusRequest, opts ...grpc.CallOption) (*rpc.GetStatusResponse, error)
	GetTranscript(ctx context.Context, in *rpc.GetTranscriptRequest, opts ...grpc.CallOption) (*rpc.GetTranscriptResponse, error)
	LoadOlder(ctx context.Context, in *rpc.LoadOlderRequest, opts ...grpc.CallOption) (*rpc.LoadOlderResponse, error)
	SendText(ctx context.Context, in *rpc.SendTextRequest, opts ...grpc.CallOption) (*rpc.SendTextResponse, error)
	RateTurn(ctx context.Context, in *rpc.RateTurnRequest, opts ...grpc.CallOption) (*rpc.RateTurnResponse, error)
	SendFeedback(ctx context.Context, in *rpc.SendFeedbackRequest, opts ...grpc.CallOption) (*rpc.SendFeedbackResponse, error)
	SearchMessages(ctx context.Context, in *rpc.SearchMessagesRequest, opts ...grpc.CallOption) (*rpc.SearchMessagesResponse, error)
	PreviewURL(ctx context.Context, in *rpc.PreviewURLRequest, opts ...grpc.CallOption) (*rpc.PreviewURLResponse, error)
	Reconnect(ctx context.Context, in *rpc.ReconnectRequest, opts ...grpc.CallOption) (*rpc.ReconnectResponse, error)
	WatchEvents(ctx context.Context, in *rpc.WatchEventsRequest, opts ...grpc.CallOption) (rpc.EventStream, error)
}

// ErrNoTurnSelected is returned when a rating or feedback has no target.
var ErrNoTurnSelected = errors.New("no answer selected")

// ViewModel caches the last status and transcript and tracks the selected turn.
type ViewModel struct {
	mu sync.RWMutex

	backend    Backend
	status     *rpc.GetStatusResponse
	transcript *rpc.GetTranscriptResponse
	selected   int
}

// NewViewModel creates a view model over b.
func NewViewModel(b Backend) *ViewModel {
	return &ViewModel{backend: b, selected: -1}
}

// LoadStatus fetches the session status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.backend.GetStatus(ctx, &rpc.GetStatusRequest{})
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	return nil
}

// LoadTranscript fetches the transcript and reports whether its version moved.
func (vm *ViewModel) LoadTranscript(ctx context.Context) (bool, error) {
	resp, err := vm.backend.GetTranscript(ctx, &rpc.GetTranscriptRequest{})
	if err != nil {
		return false, err
	}
	vm.mu.Lock()
	defer vm.mu.Unlock()
	changed := vm.transcript == nil || vm.transcript.Version != resp.Version
	vm.transcript = resp
	if vm.selected >= len(resp.Turns) || (vm.selected >= 0 && !Rateable(resp.Turns[vm.selected])) {
		vm.selected = -1
	}
	return changed, nil
}

// LoadOlder asks for the previous history page. A skipped request returns
// loaded=false with the daemon's reason.
func (vm *ViewModel) LoadOlder(ctx context.Context) (loaded bool, reason string, err error) {
	resp, err := vm.backend.LoadOlder(ctx, &rpc.LoadOlderRequest{SentinelVisible: true})
	if err != nil {
		return false, "", err
	}
	return resp.Loaded, resp.Reason, nil
}

// Send submits text. A gated send is returned with Accepted=false.
func (vm *ViewModel) Send(ctx context.Context, text string) (*rpc.SendTextResponse, error) {
	return vm.backend.SendText(ctx, &rpc.SendTextRequest{Text: text})
}

// Rate rates turn with value.
func (vm *ViewModel) Rate(ctx context.Context, turn, value int) (*rpc.RateTurnResponse, error) {
	return vm.backend.RateTurn(ctx, &rpc.RateTurnRequest{Turn: turn, Value: value})
}

// RateSelected rates the selected turn.
func (vm *ViewModel) RateSelected(ctx context.Context, value int) (*rpc.RateTurnResponse, error) {
	turn := vm.Selected()
	if turn < 0 {
		return nil, ErrNoTurnSelected
	}
	return vm.Rate(ctx, turn, value)
}

// Feedback sends written feedback for every message of turn.
func (vm *ViewModel) Feedback(ctx context.Context, turn int, feedback, desc string) (*rpc.SendFeedbackResponse, error) {
	vm.mu.RLock()
	var codes []string
	if vm.transcript != nil && turn >= 0 && turn < len(vm.transcript.Turns) {
		codes = vm.transcript.Turns[turn].Codes
	}
	vm.mu.RUnlock()
	if len(codes) == 0 {
		return nil, ErrNoTurnSelected
	}
	return vm.backend.SendFeedback(ctx, &rpc.SendFeedbackRequest{Codes: codes, Feedback: feedback, Description: desc})
}

// Search queries the local message cache.
func (vm *ViewModel) Search(ctx context.Context, query string, all bool) ([]rpc.SearchResult, error) {
	resp, err := vm.backend.SearchMessages(ctx, &rpc.SearchMessagesRequest{Query: query, Limit: 50, All: all})
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Preview resolves the link preview of a draft.
func (vm *ViewModel) Preview(ctx context.Context, text string) (*rpc.PreviewURLResponse, error) {
	return vm.backend.PreviewURL(ctx, &rpc.PreviewURLRequest{Text: text})
}

// Reconnect re-bootstraps the daemon's conversation and returns the new status.
func (vm *ViewModel) Reconnect(ctx context.Context) (string, error) {
	resp, err := vm.backend.Reconnect(ctx, &rpc.ReconnectRequest{})
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

// Watch streams every daemon event to fn until ctx ends or the stream breaks.
func (vm *ViewModel) Watch(ctx context.Context, fn func(*rpc.Event)) error {
	stream, err := vm.backend.WatchEvents(ctx, &rpc.WatchEventsRequest{})
	if err != nil {
		return err
	}
	for {
		evt, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(evt)
	}
}

// Status returns the last fetched status.
func (vm *ViewModel) Status() *rpc.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// Transcript returns the last fetched transcript.
func (vm *ViewModel) Transcript() *rpc.GetTranscriptResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.transcript
}

// Selected returns the selected turn index, or -1.
func (vm *ViewModel) Selected() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.selected
}

// Select moves the selection delta rateable turns away, starting from the
// newest when nothing is selected. It returns the new index.
func (vm *ViewModel) Select(delta int) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	if vm.transcript == nil {
		return -1
	}
	var rateable []int
	for i, t := range vm.transcript.Turns {
		if Rateable(t) {
			rateable = append(rateable, i)
		}
	}
	if len(rateable) == 0 {
		vm.selected = -1
		return -1
	}
	pos := slices.Index(rateable, vm.selected)
	switch {
	case pos < 0:
		pos = len(rateable) - 1
	default:
		pos = min(max(pos+delta, 0), len(rateable)-1)
	}
	vm.selected = rateable[pos]
	return vm.selected
}

// ClearSelection drops the selected turn.
func (vm *ViewModel) ClearSelection() {
	vm.mu.Lock()
	vm.selected = -1
	vm.mu.Unlock()
}

// Rateable reports whether t is a settled bot answer backed by server messages.
func Rateable(t rpc.Turn) bool {
	return t.Role == "bot" && len(t.Codes) > 0 && !t.Pending
}

// ErrorText extracts the human readable part of a daemon error.
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	if s, ok := grpcstatus.FromError(err); ok {
		return s.Message()
	}
	return fmt.Sprint(err)
}
