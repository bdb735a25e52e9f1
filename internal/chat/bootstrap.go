package chat

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/twin/internal/live"
	"github.com/matheus3301/twin/internal/status"
	"github.com/matheus3301/twin/internal/transcript"
)

// Bootstrap loads the bot, opens a conversation, reads its newest page and
// points the live subscription at it. A failure moves the session to ERROR.
func (c *Controller) Bootstrap(ctx context.Context) error {
	bot, err := c.platform.GetBot(ctx, c.cfg.BotCode)
	if err != nil {
		return c.bootstrapFailed(fmt.Errorf("load bot: %w", err))
	}
	conv, err := c.platform.InitConversation(ctx, c.cfg.BotCode)
	if err != nil {
		return c.bootstrapFailed(fmt.Errorf("init conversation: %w", err))
	}

	welcome := bot.WelcomeMsg
	if welcome == "" {
		welcome = c.cfg.WelcomeText
	}

	c.mu.Lock()
	c.bot = bot
	c.conv = conv.ConvCode
	c.liveToken = conv.CentToken
	c.welcome = welcome
	c.subscription = nil
	clear(c.pending)
	lu := c.live
	c.mu.Unlock()

	c.cursor.Reset(conv.ConvCode)
	c.store.Dispatch(transcript.Reset())
	c.logger.Info("conversation opened", zap.String("bot", bot.Code), zap.String("conv_code", conv.ConvCode))

	if conv.ConvCode == "" {
		c.store.Dispatch(transcript.SeedWelcome(welcome))
		return nil
	}

	if err := c.Open(ctx); err != nil {
		c.logger.Warn("initial history load failed", zap.Error(err))
		c.notifyError(err)
	}
	c.RefreshSubscription(ctx)

	if lu != nil {
		lu.Update(live.Params{Endpoint: c.cfg.LiveEndpoint, Token: conv.CentToken, Channel: conv.ConvCode})
	}
	return nil
}

// Reconnect drops the live subscription and runs Bootstrap again.
func (c *Controller) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	lu := c.live
	c.mu.Unlock()
	if lu != nil {
		lu.Close()
	}
	c.transition(status.Offline)
	c.transition(status.Booting)
	return c.Bootstrap(ctx)
}

func (c *Controller) bootstrapFailed(err error) error {
	c.logger.Error("bootstrap failed", zap.Error(err))
	c.transition(status.Error)
	c.notifyError(err)
	return err
}
