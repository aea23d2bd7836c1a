package telegram

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/pkg/logger"
)

func TestNotifier_SendsRenderedMessages(t *testing.T) {
	api := &fakeAPI{}
	n := NewNotifier(newTestClient(t, api), DefaultBreakerConfig(), logger.Discard())

	require.NoError(t, n.Send(context.Background(), 2, notification.NewLike(2, 1, "Alice")))
	require.NoError(t, n.Send(context.Background(), 1, notification.NewMatch(1, 2, "Bob", "bob")))

	calls := api.Calls()
	require.Len(t, calls, 2)

	assert.Equal(t, float64(2), calls[0].Body["chat_id"])
	assert.Contains(t, calls[0].Body["text"], "Alice")
	assert.Contains(t, calls[0].Body, "reply_markup")

	assert.Equal(t, float64(1), calls[1].Body["chat_id"])
	assert.Contains(t, calls[1].Body["text"], "@bob")
}

func TestRenderNotification_MatchWithoutUsername(t *testing.T) {
	p := RenderNotification(1, notification.NewMatch(1, 2, "Bob", ""))
	assert.NotContains(t, p.Text, "@")
	assert.Nil(t, p.ReplyMarkup)

	like := RenderNotification(2, notification.NewLike(2, 7, ""))
	kb := like.ReplyMarkup.(*InlineKeyboardMarkup)
	assert.Equal(t, "view_like_7", kb.InlineKeyboard[0][0].CallbackData)
}

func TestNotifier_RejectsUnknownKind(t *testing.T) {
	n := NewNotifier(newTestClient(t, &fakeAPI{}), DefaultBreakerConfig(), logger.Discard())
	assert.Error(t, n.Send(context.Background(), 1, notification.Notification{Kind: "poke"}))
}

func TestNotifier_BreakerOpensOnServerFailures(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]interface{}) (int, string) {
		return http.StatusInternalServerError, `{"ok":false,"error_code":500,"description":"Internal Server Error"}`
	}}
	client := newTestClient(t, api)
	cfg := BreakerConfig{Name: "test-open", MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 3, FailureRatio: 0.5}
	n := NewNotifier(singleShot(client), cfg, logger.Discard())

	for i := 0; i < 3; i++ {
		err := n.Send(context.Background(), 1, notification.NewLike(1, 2, "A"))
		assert.ErrorIs(t, err, shared.ErrTelegramAPIFailed)
		assert.True(t, shared.IsExternalService(err))
	}
	assert.Equal(t, gobreaker.StateOpen, n.State())

	before := len(api.Calls())
	err := n.Send(context.Background(), 1, notification.NewLike(1, 2, "A"))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, shared.ErrNotificationFailed)
	assert.NotErrorIs(t, err, shared.ErrTelegramAPIFailed)
	assert.Equal(t, before, len(api.Calls()))
}

func TestNotifier_BlockedRecipientsDoNotTrip(t *testing.T) {
	api := &fakeAPI{respond: func(string, map[string]interface{}) (int, string) {
		return http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`
	}}
	cfg := BreakerConfig{Name: "test-blocked", MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, MinRequests: 2, FailureRatio: 0.5}
	n := NewNotifier(newTestClient(t, api), cfg, logger.Discard())

	for i := 0; i < 5; i++ {
		err := n.Send(context.Background(), 1, notification.NewLike(1, 2, "A"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRecipientUnreachable)
		assert.ErrorIs(t, err, shared.ErrTelegramAPIFailed)
		assert.True(t, strings.Contains(err.Error(), "like"))
	}
	assert.Equal(t, gobreaker.StateClosed, n.State())
}

// singleShot rebuilds the client so every call is attempted exactly once.
func singleShot(c *Client) *Client {
	cfg := c.config
	cfg.RetryAttempts = 1
	return NewClient(cfg)
}
