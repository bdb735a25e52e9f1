package chat

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/bus"
	"github.com/matheus3301/twin/internal/platform"
	"github.com/matheus3301/twin/internal/reveal"
)

// HandleLive receives the data of one live publication. User echoes and
// undecodable payloads are ignored; bot answers are queued for reveal.
func (c *Controller) HandleLive(data json.RawMessage) {
	var m platform.Message
	if err := json.Unmarshal(data, &m); err != nil {
		c.metrics.LiveEvent("malformed")
		c.logger.Debug("live payload is not a message", zap.Error(err))
		return
	}
	if !m.IsBot() {
		c.metrics.LiveEvent("echo")
		return
	}
	conv := c.Conversation()
	if conv == "" {
		return
	}

	c.bus.Publish(bus.Event{
		Kind:      bus.KindLiveMessage,
		Timestamp: time.Now(),
		Payload:   bus.LiveMessage{ConvCode: conv, Message: m},
	})

	m.Rating = 0
	if err := c.driver.Enqueue(reveal.Task{Code: m.MsgCode, Entries: toEntries(m)}); err != nil {
		level := c.logger.Warn
		if errors.Is(err, reveal.ErrStopped) {
			level = c.logger.Debug
		}
		level("live answer not revealed", zap.String("msg_code", m.MsgCode), zap.Error(err))
	}
}
