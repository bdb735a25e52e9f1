package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// Client talks to the platform REST API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a client. timeout bounds each request.
func NewClient(baseURL, token string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetBot fetches the bot profile.
func (c *Client) GetBot(ctx context.Context, botCode string) (*Bot, error) {
	var out Bot
	if err := c.do(ctx, http.MethodGet, c.path("v1", "bots", botCode), nil, &out); err != nil {
		return nil, fmt.Errorf("get bot %s: %w", botCode, err)
	}
	return &out, nil
}

// InitConversation opens (or resumes) the user's conversation with a bot.
func (c *Client) InitConversation(ctx context.Context, botCode string) (*ConversationInit, error) {
	var out ConversationInit
	if err := c.do(ctx, http.MethodPost, c.path("v1", "bots", botCode, "conversations"), struct{}{}, &out); err != nil {
		return nil, fmt.Errorf("init conversation: %w", err)
	}
	return &out, nil
}

// ConversationDetail fetches one history page, newest first.
func (c *Client) ConversationDetail(ctx context.Context, botCode, convCode string, q HistoryQuery) (*HistoryPage, error) {
	v := url.Values{}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Next != "" {
		v.Set("next", q.Next)
	}
	if q.Prev != "" {
		v.Set("prev", q.Prev)
	}
	if q.Order != "" {
		v.Set("order", q.Order)
	}
	endpoint := c.path("v1", "bots", botCode, "conversations", convCode)
	if len(v) > 0 {
		endpoint += "?" + v.Encode()
	}

	var out historyData
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, fmt.Errorf("conversation detail: %w", err)
	}
	return &HistoryPage{Messages: out.Messages.Data, Pagination: out.Messages.Pagination}, nil
}

// SubmitChat sends a user message. The answer arrives on the live channel.
func (c *Client) SubmitChat(ctx context.Context, botCode, convCode string, req ChatRequest) error {
	if req.ContentType == "" {
		req.ContentType = "text"
	}
	if err := c.do(ctx, http.MethodPost, c.path("v1", "bots", botCode, "conversations", convCode, "chat"), req, nil); err != nil {
		return fmt.Errorf("submit chat: %w", err)
	}
	return nil
}

// SubmitRating rates one message.
func (c *Client) SubmitRating(ctx context.Context, botCode, convCode, msgCode string, value int) error {
	body := struct {
		Value int `json:"value"`
	}{value}
	if err := c.do(ctx, http.MethodPost, c.path("v1", "bots", botCode, "conversations", convCode, "messages", msgCode, "rating"), body, nil); err != nil {
		return fmt.Errorf("rate %s: %w", msgCode, err)
	}
	return nil
}

// SubmitFeedback attaches feedback to one message.
func (c *Client) SubmitFeedback(ctx context.Context, botCode, convCode, msgCode string, fb Feedback) error {
	if err := c.do(ctx, http.MethodPost, c.path("v1", "bots", botCode, "conversations", convCode, "messages", msgCode, "feedback"), fb, nil); err != nil {
		return fmt.Errorf("feedback %s: %w", msgCode, err)
	}
	return nil
}

// CheckSubscription returns the user's plan state for the conversation.
func (c *Client) CheckSubscription(ctx context.Context, botCode, convCode string) (*Subscription, error) {
	var out Subscription
	if err := c.do(ctx, http.MethodGet, c.path("v1", "subscriptions", "bots", botCode, "conversations", convCode), nil, &out); err != nil {
		return nil, fmt.Errorf("check subscription: %w", err)
	}
	return &out, nil
}

func (c *Client) path(segments ...string) string {
	p, err := url.JoinPath(c.baseURL, segments...)
	if err != nil {
		return c.baseURL
	}
	return p
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("platform request",
		zap.String("method", method),
		zap.String("url", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env envelope[json.RawMessage]
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if json.Unmarshal(raw, &env) == nil {
			apiErr.StatCode = env.StatCode
			apiErr.StatMsg = env.StatMsg
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	env := envelope[json.RawMessage]{}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
