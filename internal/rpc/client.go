package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a typed client for twin.v1.Twin.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an existing connection. Calls must use the json subtype,
// which Dial configures.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to a daemon socket.
func Dial(socketPath string) (*grpc.ClientConn, error) {
	return grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context, in *GetStatusRequest, opts ...grpc.CallOption) (*GetStatusResponse, error) {
	return invoke[GetStatusResponse](ctx, c.cc, MethodGetStatus, in, opts...)
}

func (c *Client) GetTranscript(ctx context.Context, in *GetTranscriptRequest, opts ...grpc.CallOption) (*GetTranscriptResponse, error) {
	return invoke[GetTranscriptResponse](ctx, c.cc, MethodGetTranscript, in, opts...)
}

func (c *Client) LoadOlder(ctx context.Context, in *LoadOlderRequest, opts ...grpc.CallOption) (*LoadOlderResponse, error) {
	return invoke[LoadOlderResponse](ctx, c.cc, MethodLoadOlder, in, opts...)
}

func (c *Client) SendText(ctx context.Context, in *SendTextRequest, opts ...grpc.CallOption) (*SendTextResponse, error) {
	return invoke[SendTextResponse](ctx, c.cc, MethodSendText, in, opts...)
}

func (c *Client) RateTurn(ctx context.Context, in *RateTurnRequest, opts ...grpc.CallOption) (*RateTurnResponse, error) {
	return invoke[RateTurnResponse](ctx, c.cc, MethodRateTurn, in, opts...)
}

func (c *Client) SendFeedback(ctx context.Context, in *SendFeedbackRequest, opts ...grpc.CallOption) (*SendFeedbackResponse, error) {
	return invoke[SendFeedbackResponse](ctx, c.cc, MethodSendFeedback, in, opts...)
}

func (c *Client) SearchMessages(ctx context.Context, in *SearchMessagesRequest, opts ...grpc.CallOption) (*SearchMessagesResponse, error) {
	return invoke[SearchMessagesResponse](ctx, c.cc, MethodSearchMessages, in, opts...)
}

func (c *Client) PreviewURL(ctx context.Context, in *PreviewURLRequest, opts ...grpc.CallOption) (*PreviewURLResponse, error) {
	return invoke[PreviewURLResponse](ctx, c.cc, MethodPreviewURL, in, opts...)
}

func (c *Client) Reconnect(ctx context.Context, in *ReconnectRequest, opts ...grpc.CallOption) (*ReconnectResponse, error) {
	return invoke[ReconnectResponse](ctx, c.cc, MethodReconnect, in, opts...)
}

// EventStream is the client side of WatchEvents.
type EventStream interface {
	Recv() (*Event, error)
	grpc.ClientStream
}

type eventStream struct {
	grpc.ClientStream
}

func (s eventStream) Recv() (*Event, error) {
	e := new(Event)
	if err := s.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// WatchEvents streams daemon events until ctx ends.
func (c *Client) WatchEvents(ctx context.Context, in *WatchEventsRequest, opts ...grpc.CallOption) (EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatchEvents, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return eventStream{stream}, nil
}
