package live

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// WebSocketTransport speaks the Centrifugo bidirectional JSON protocol.
type WebSocketTransport struct {
	Dialer *websocket.Dialer
}

type wsReply struct {
	ID      uint32          `json:"id,omitempty"`
	Connect json.RawMessage `json:"connect,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Push *struct {
		Channel string          `json:"channel"`
		Pub     json.RawMessage `json:"pub"`
	} `json:"push,omitempty"`
}

// Stream implements Transport.
func (t *WebSocketTransport) Stream(ctx context.Context, p Params, onOpen func(), emit func([]byte)) error {
	dialer := t.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, p.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	var closeOnce sync.Once
	closeConn := func() { closeOnce.Do(func() { _ = conn.Close() }) }
	defer closeConn()
	stop := context.AfterFunc(ctx, closeConn)
	defer stop()

	connect, err := connectPayload(p)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf(`{"id":1,"connect":%s}`, connect)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		// One frame may carry several newline-delimited replies.
		for _, line := range bytes.Split(frame, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if bytes.Equal(line, []byte("{}")) {
				if err := conn.WriteMessage(websocket.TextMessage, []byte("{}")); err != nil {
					return fmt.Errorf("pong: %w", err)
				}
				continue
			}
			var reply wsReply
			if err := json.Unmarshal(line, &reply); err != nil {
				emit(line)
				continue
			}
			switch {
			case reply.Error != nil:
				return fmt.Errorf("centrifugo error %d: %s", reply.Error.Code, reply.Error.Message)
			case reply.ID == 1 && reply.Connect != nil:
				onOpen()
			case reply.Push != nil && (reply.Push.Channel == "" || reply.Push.Channel == p.Channel):
				if reply.Push.Pub == nil {
					continue
				}
				emit([]byte(fmt.Sprintf(`{"pub":%s}`, reply.Push.Pub)))
			}
		}
	}
}
