package eventhandler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/pkg/logger"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification.Notification
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, userID int64, n notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	n.RecipientID = userID
	f.sent = append(f.sent, n)
	return nil
}

type payloadEvent struct {
	typ     shared.EventType
	payload map[string]interface{}
}

func (e payloadEvent) EventType() shared.EventType     { return e.typ }
func (e payloadEvent) OccurredAt() time.Time           { return time.Now() }
func (e payloadEvent) AggregateID() string             { return "" }
func (e payloadEvent) Payload() map[string]interface{} { return e.payload }

type subscriberFunc func(shared.EventType, shared.EventHandler) error

func (f subscriberFunc) Subscribe(t shared.EventType, h shared.EventHandler) error { return f(t, h) }
func (f subscriberFunc) SubscribeAll(shared.EventHandler) error                    { return nil }

func TestOnMatchEvents_DeliversLikeAndMatch(t *testing.T) {
	n := &fakeNotifier{}
	h := NewOnMatchEventsHandler(n, logger.Discard(), DefaultNotifyConfig())

	require.NoError(t, h.Handle(shared.NewLikeReceivedEvent(1, 2, "Alice")))
	require.NoError(t, h.Handle(shared.NewMatchCreatedEvent(1, 2, "Bob", "bob")))

	require.Len(t, n.sent, 2)
	assert.Equal(t, notification.KindLike, n.sent[0].Kind)
	assert.Equal(t, int64(2), n.sent[0].RecipientID)
	assert.Equal(t, "Alice", n.sent[0].PartnerName)

	assert.Equal(t, notification.KindMatch, n.sent[1].Kind)
	assert.Equal(t, int64(1), n.sent[1].RecipientID)
	assert.Equal(t, "bob", n.sent[1].PartnerUsername)
}

func TestOnMatchEvents_PayloadOnlyEvents(t *testing.T) {
	n := &fakeNotifier{}
	h := NewOnMatchEventsHandler(n, logger.Discard(), DefaultNotifyConfig())

	err := h.Handle(payloadEvent{
		typ: shared.EventMatchCreated,
		payload: map[string]interface{}{
			"recipient_id":     float64(7),
			"partner_id":       float64(8),
			"partner_name":     "Eve",
			"partner_username": "eve",
		},
	})
	require.NoError(t, err)
	require.Len(t, n.sent, 1)
	assert.Equal(t, int64(7), n.sent[0].RecipientID)
	assert.Equal(t, int64(8), n.sent[0].PartnerID)

	// Malformed payloads are skipped.
	require.NoError(t, h.Handle(payloadEvent{typ: shared.EventLikeReceived, payload: map[string]interface{}{}}))
	assert.Len(t, n.sent, 1)
}

func TestOnMatchEvents_FailureIsSwallowed(t *testing.T) {
	n := &fakeNotifier{err: errors.New("blocked by user")}
	h := NewOnMatchEventsHandler(n, logger.Discard(), DefaultNotifyConfig())

	assert.NoError(t, h.Handle(shared.NewLikeReceivedEvent(1, 2, "Alice")))
}

func TestOnMatchEvents_FlagsDisableKinds(t *testing.T) {
	n := &fakeNotifier{}
	cfg := DefaultNotifyConfig()
	cfg.LikesEnabled = func() bool { return false }
	h := NewOnMatchEventsHandler(n, logger.Discard(), cfg)

	require.NoError(t, h.Handle(shared.NewLikeReceivedEvent(1, 2, "Alice")))
	require.NoError(t, h.Handle(shared.NewMatchCreatedEvent(1, 2, "Bob", "")))

	require.Len(t, n.sent, 1)
	assert.Equal(t, notification.KindMatch, n.sent[0].Kind)
}

func TestOnMatchEvents_Register(t *testing.T) {
	var types []shared.EventType
	bus := subscriberFunc(func(t shared.EventType, _ shared.EventHandler) error {
		types = append(types, t)
		return nil
	})

	h := NewOnMatchEventsHandler(&fakeNotifier{}, logger.Discard(), DefaultNotifyConfig())
	require.NoError(t, h.Register(bus))
	assert.ElementsMatch(t, []shared.EventType{shared.EventLikeReceived, shared.EventMatchCreated}, types)
}
