package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/pkg/logger"
)

// fakeAPI records calls and answers with the configured responder.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []apiCall
	respond func(method string, body map[string]interface{}) (int, string)
}

type apiCall struct {
	Method string
	Body   map[string]interface{}
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	raw, _ := io.ReadAll(r.Body)
	body := map[string]interface{}{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{Method: method, Body: body})
	respond := f.respond
	f.mu.Unlock()

	status, resp := http.StatusOK, `{"ok":true,"result":{"message_id":1,"chat":{"id":1,"type":"private"}}}`
	if respond != nil {
		status, resp = respond(method, body)
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, resp)
}

func (f *fakeAPI) Calls() []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiCall(nil), f.calls...)
}

func newTestClient(t *testing.T, api *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	return NewClient(ClientConfig{
		Token:         "TEST",
		BaseURL:       srv.URL,
		Timeout:       5 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		PollTimeout:   1,
		Logger:        logger.Discard(),
	})
}

func TestClient_SendMessageWithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	kb := NewKeyboard().Row(Button("❤️ Лайк", "like_2"), Button("👎 Пропустить", "skip_2")).Build()
	msg, err := c.SendWithKeyboard(context.Background(), 42, "hello", kb)
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, float64(42), calls[0].Body["chat_id"])

	markup := calls[0].Body["reply_markup"].(map[string]interface{})
	rows := markup["inline_keyboard"].([]interface{})
	require.Len(t, rows, 1)
	first := rows[0].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "like_2", first["callback_data"])
}

func TestClient_SendPhoto(t *testing.T) {
	api := &fakeAPI{}
	c := newTestClient(t, api)

	_, err := c.SendPhoto(context.Background(), SendPhotoParams{ChatID: 1, FileID: "file-1", Caption: "card"})
	require.NoError(t, err)

	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendPhoto", calls[0].Method)
	assert.Equal(t, "file-1", calls[0].Body["photo"])
	assert.Equal(t, "card", calls[0].Body["caption"])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	api := &fakeAPI{respond: func(string, map[string]interface{}) (int, string) {
		if n.Add(1) < 3 {
			return http.StatusBadGateway, `{"ok":false,"error_code":502,"description":"Bad Gateway"}`
		}
		return http.StatusOK, `{"ok":true,"result":true}`
	}}
	c := newTestClient(t, api)

	require.NoError(t, c.AnswerCallbackQuery(context.Background(), "cb", "ok", false))
	assert.Len(t, api.Calls(), 3)
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]interface{}) (int, string) {
		return http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	}}
	c := newTestClient(t, api)

	_, err := c.SendText(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.True(t, IsBlocked(err))
	assert.False(t, IsRetryable(err))
	assert.Len(t, api.Calls(), 1)
}

func TestAPIError_Classification(t *testing.T) {
	rate := &APIError{Code: 429, Description: "Too Many Requests", RetryAfterSeconds: 3}
	assert.True(t, IsRetryable(rate))
	assert.Equal(t, 3*time.Second, rate.RetryAfter())

	notFound := &APIError{Code: 400, Description: "Bad Request: chat not found"}
	assert.True(t, IsChatNotFound(notFound))
	assert.False(t, IsRetryable(notFound))

	assert.True(t, IsNotModified(&APIError{Code: 400, Description: "Bad Request: message is not modified"}))
	assert.False(t, IsRetryable(context.Canceled))
}

func TestClient_StartPollingAdvancesOffset(t *testing.T) {
	var polls atomic.Int32
	api := &fakeAPI{respond: func(method string, body map[string]interface{}) (int, string) {
		if method != "getUpdates" {
			return http.StatusOK, `{"ok":true,"result":true}`
		}
		if polls.Add(1) == 1 {
			return http.StatusOK, `{"ok":true,"result":[
				{"update_id":10,"message":{"message_id":1,"from":{"id":5,"first_name":"A"},"chat":{"id":5,"type":"private"},"text":"hi"}},
				{"update_id":11,"callback_query":{"id":"q","from":{"id":6,"first_name":"B"},"data":"like_5"}}
			]}`
		}
		return http.StatusOK, `{"ok":true,"result":[]}`
	}}
	c := newTestClient(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	var got []int64
	var users []int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.StartPolling(ctx, func(_ context.Context, u *Update) error {
			got = append(got, u.UpdateID)
			users = append(users, u.UserID())
			if len(got) == 2 {
				cancel()
			}
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("polling did not stop")
	}

	assert.Equal(t, []int64{10, 11}, got)
	assert.Equal(t, []int64{5, 6}, users)
	assert.Equal(t, int64(12), c.updateOffset)
}

func TestExtractCommand(t *testing.T) {
	msg := &Message{
		Text:     "/start@GamerMatchBot ref",
		Entities: []MessageEntity{{Type: "bot_command", Offset: 0, Length: 20}},
	}
	assert.Equal(t, "start", ExtractCommand(msg))
	assert.Equal(t, "ref", ExtractCommandArgs(msg))
	assert.Equal(t, "", ExtractCommand(&Message{Text: "hello"}))
}

func TestReplyKeyboardLayout(t *testing.T) {
	kb := ReplyKeyboard(2, false, "a", "b", "c")
	require.Len(t, kb.Keyboard, 2)
	assert.Len(t, kb.Keyboard[0], 2)
	assert.Equal(t, "c", kb.Keyboard[1][0].Text)
	assert.True(t, kb.ResizeKeyboard)
}

func TestMessage_LargestPhoto(t *testing.T) {
	m := &Message{Photo: []PhotoSize{{FileID: "small"}, {FileID: "big"}}}
	assert.Equal(t, "big", m.LargestPhoto())
	assert.Equal(t, "", (&Message{}).LargestPhoto())
}
