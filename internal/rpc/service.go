package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "twin.v1.Twin"

// Full method names.
const (
	MethodGetStatus      = "/" + ServiceName + "/GetStatus"
	MethodGetTranscript  = "/" + ServiceName + "/GetTranscript"
	MethodLoadOlder      = "/" + ServiceName + "/LoadOlder"
	MethodSendText       = "/" + ServiceName + "/SendText"
	MethodRateTurn       = "/" + ServiceName + "/RateTurn"
	MethodSendFeedback   = "/" + ServiceName + "/SendFeedback"
	MethodSearchMessages = "/" + ServiceName + "/SearchMessages"
	MethodPreviewURL     = "/" + ServiceName + "/PreviewURL"
	MethodReconnect      = "/" + ServiceName + "/Reconnect"
	MethodWatchEvents    = "/" + ServiceName + "/WatchEvents"
)

// TwinServer is implemented by the daemon.
type TwinServer interface {
	GetStatus(context.Context, *GetStatusRequest) (*GetStatusResponse, error)
	GetTranscript(context.Context, *GetTranscriptRequest) (*GetTranscriptResponse, error)
	LoadOlder(context.Context, *LoadOlderRequest) (*LoadOlderResponse, error)
	SendText(context.Context, *SendTextRequest) (*SendTextResponse, error)
	RateTurn(context.Context, *RateTurnRequest) (*RateTurnResponse, error)
	SendFeedback(context.Context, *SendFeedbackRequest) (*SendFeedbackResponse, error)
	SearchMessages(context.Context, *SearchMessagesRequest) (*SearchMessagesResponse, error)
	PreviewURL(context.Context, *PreviewURLRequest) (*PreviewURLResponse, error)
	Reconnect(context.Context, *ReconnectRequest) (*ReconnectResponse, error)
	WatchEvents(*WatchEventsRequest, EventSender) error
}

// EventSender is the server side of the WatchEvents stream.
type EventSender interface {
	Send(*Event) error
	Context() context.Context
}

// RegisterTwinServer registers srv on s.
func RegisterTwinServer(s grpc.ServiceRegistrar, srv TwinServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary builds a method handler that decodes Req and calls call.
func unary[Req any, Resp any](method string, call func(TwinServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TwinServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(TwinServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type eventSender struct {
	grpc.ServerStream
}

func (s eventSender) Send(e *Event) error {
	return s.ServerStream.SendMsg(e)
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(TwinServer).WatchEvents(in, eventSender{stream})
}

// ServiceDesc describes twin.v1.Twin.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TwinServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: unary(MethodGetStatus, TwinServer.GetStatus)},
		{MethodName: "GetTranscript", Handler: unary(MethodGetTranscript, TwinServer.GetTranscript)},
		{MethodName: "LoadOlder", Handler: unary(MethodLoadOlder, TwinServer.LoadOlder)},
		{MethodName: "SendText", Handler: unary(MethodSendText, TwinServer.SendText)},
		{MethodName: "RateTurn", Handler: unary(MethodRateTurn, TwinServer.RateTurn)},
		{MethodName: "SendFeedback", Handler: unary(MethodSendFeedback, TwinServer.SendFeedback)},
		{MethodName: "SearchMessages", Handler: unary(MethodSearchMessages, TwinServer.SearchMessages)},
		{MethodName: "PreviewURL", Handler: unary(MethodPreviewURL, TwinServer.PreviewURL)},
		{MethodName: "Reconnect", Handler: unary(MethodReconnect, TwinServer.Reconnect)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "internal/rpc/service.go",
}
