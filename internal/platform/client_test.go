package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "secret", 5*time.Second, nil)
}

func writeData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"stat_code": "OK", "stat_msg": "", "data": data})
}

func TestGetBotAndInit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/v1/bots/ada":
			assert.Equal(t, http.MethodGet, r.Method)
			writeData(w, Bot{Code: "ada", Name: "Ada", WelcomeMsg: "Hi!"})
		case "/v1/bots/ada/conversations":
			assert.Equal(t, http.MethodPost, r.Method)
			writeData(w, ConversationInit{ConvCode: "c1", CentToken: "tok"})
		default:
			http.NotFound(w, r)
		}
	})

	bot, err := c.GetBot(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", bot.WelcomeMsg)

	conv, err := c.InitConversation(context.Background(), "ada")
	require.NoError(t, err)
	assert.Equal(t, ConversationInit{ConvCode: "c1", CentToken: "tok"}, *conv)
}

func TestConversationDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/bots/ada/conversations/c1", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "tok2", q.Get("next"))
		assert.Equal(t, "desc", q.Get("order"))
		writeData(w, map[string]any{
			"messages": map[string]any{
				"data": []Message{
					{MsgCode: "m2", SenderType: SenderBot, Content: "answer"},
					{MsgCode: "m1", SenderType: SenderUser, Content: "question"},
				},
				"pagination": Pagination{Next: "https://api/x?next=tok3", TotalMessages: 42},
			},
		})
	})

	page, err := c.ConversationDetail(context.Background(), "ada", "c1", HistoryQuery{Limit: 20, Next: "tok2", Order: "desc"})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.True(t, page.Messages[0].IsBot())
	assert.False(t, page.Messages[1].IsBot())
	assert.Equal(t, 42, page.Pagination.TotalMessages)
}

func TestSubmitChatDefaultsContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ChatRequest{Content: "hello", ContentType: "text"}, body)
		writeData(w, nil)
	})
	require.NoError(t, c.SubmitChat(context.Background(), "ada", "c1", ChatRequest{Content: "hello"}))
}

func TestRatingAndFeedbackPaths(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		writeData(w, nil)
	})
	require.NoError(t, c.SubmitRating(context.Background(), "ada", "c1", "m9", 5))
	require.NoError(t, c.SubmitFeedback(context.Background(), "ada", "c1", "m9", Feedback{Feedback: "a,b", FeedbackDesc: "x"}))
	assert.Equal(t, []string{
		"/v1/bots/ada/conversations/c1/messages/m9/rating",
		"/v1/bots/ada/conversations/c1/messages/m9/feedback",
	}, paths)
}

func TestAPIErrorCarriesStatMsg(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"stat_code":"LIMIT","stat_msg":"Free quota used up"}`))
	})

	err := c.SubmitChat(context.Background(), "ada", "c1", ChatRequest{Content: "x"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "Free quota used up", UserMessage(err))
}

func TestAPIErrorWithoutBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.SubmitChat(context.Background(), "ada", "c1", ChatRequest{Content: "x"})
	assert.Equal(t, "platform: status 500", UserMessage(err))
}

func TestUserMessageForTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second, nil)
	err := c.SubmitChat(context.Background(), "ada", "c1", ChatRequest{Content: "x"})
	require.Error(t, err)
	assert.Equal(t, GenericErrorText, UserMessage(err))
	assert.Equal(t, GenericErrorText, UserMessage(fmt.Errorf("wrapped: %w", errors.New("eof"))))
	assert.Equal(t, "", UserMessage(nil))
}

func TestCheckSubscription(t *testing.T) {
	tests := []struct {
		body   string
		active bool
		ends   bool
	}{
		{`{"data":{"subscribe_plan_status":true,"end_time":"2020-01-01T00:00:00Z"}}`, true, true},
		{`{"data":{"subscribe_plan_status":1}}`, true, false},
		{`{"data":{"subscribe_plan_status":"0"}}`, false, false},
		{`{"data":null}`, false, false},
	}
	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/subscriptions/bots/ada/conversations/c1", r.URL.Path)
			_, _ = w.Write([]byte(tt.body))
		})
		sub, err := c.CheckSubscription(context.Background(), "ada", "c1")
		require.NoError(t, err, tt.body)
		assert.Equal(t, tt.active, bool(sub.PlanActive), tt.body)
		_, ends := sub.Ends()
		assert.Equal(t, tt.ends, ends, tt.body)
	}
}

func TestFlagRejectsGarbage(t *testing.T) {
	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &f))
}
