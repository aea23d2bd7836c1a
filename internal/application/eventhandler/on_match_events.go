// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON MATCH EVENTS HANDLER
// Доставляет уведомления о лайках и мэтчах через Notifier.
//
// Доставка "выстрелил и забыл": одна попытка, ошибка логируется
// и не возвращается в шину. Повторы, если нужны, делает сам Notifier.
// ═══════════════════════════════════════════════════════════════════════════

// NotifyConfig содержит конфигурацию обработчика.
type NotifyConfig struct {
	// LikesEnabled - отправлять ли уведомления о лайках. nil означает "да".
	LikesEnabled func() bool

	// MatchesEnabled - отправлять ли уведомления о мэтчах. nil означает "да".
	MatchesEnabled func() bool

	// SendTimeout - таймаут одной отправки.
	SendTimeout time.Duration
}

// DefaultNotifyConfig возвращает конфигурацию по умолчанию.
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{SendTimeout: 10 * time.Second}
}

// OnMatchEventsHandler переводит события лайков и мэтчей в уведомления.
type OnMatchEventsHandler struct {
	notifier notification.Notifier
	logger   *slog.Logger
	config   NotifyConfig
}

// NewOnMatchEventsHandler создаёт обработчик.
func NewOnMatchEventsHandler(notifier notification.Notifier, log *slog.Logger, config NotifyConfig) *OnMatchEventsHandler {
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultNotifyConfig().SendTimeout
	}
	return &OnMatchEventsHandler{
		notifier: notifier,
		logger:   logger.OrDefault(log).With("handler", "on_match_events"),
		config:   config,
	}
}

// Register подписывает обработчик на события лайков и мэтчей.
func (h *OnMatchEventsHandler) Register(bus shared.EventSubscriber) error {
	if err := bus.Subscribe(shared.EventLikeReceived, h.Handle); err != nil {
		return err
	}
	return bus.Subscribe(shared.EventMatchCreated, h.Handle)
}

// Handle обрабатывает событие. Реализует shared.EventHandler.
// Всегда возвращает nil: ошибки доставки не должны ретраиться шиной.
func (h *OnMatchEventsHandler) Handle(event shared.Event) error {
	n, ok := toNotification(event)
	if !ok {
		h.logger.Warn("received unsupported event", logger.EventType(string(event.EventType())))
		return nil
	}

	if !h.enabled(n.Kind) {
		metrics.RecordNotification(string(n.Kind), "disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.SendTimeout)
	defer cancel()

	if err := h.notifier.Send(ctx, n.RecipientID, n); err != nil {
		metrics.RecordNotification(string(n.Kind), "failed")
		h.logger.Error("failed to send notification",
			"kind", string(n.Kind),
			logger.ProfileID(n.RecipientID),
			"partner_id", n.PartnerID,
			logger.Err(err),
		)
		return nil
	}

	metrics.RecordNotification(string(n.Kind), "sent")
	h.logger.Debug("notification sent", "kind", string(n.Kind), logger.ProfileID(n.RecipientID))
	return nil
}

func (h *OnMatchEventsHandler) enabled(kind notification.Kind) bool {
	var flag func() bool
	switch kind {
	case notification.KindLike:
		flag = h.config.LikesEnabled
	case notification.KindMatch:
		flag = h.config.MatchesEnabled
	}
	return flag == nil || flag()
}

// toNotification понимает как типизированные события, так и события,
// восстановленные из внешней шины (только Payload).
func toNotification(event shared.Event) (notification.Notification, bool) {
	switch e := event.(type) {
	case shared.LikeReceivedEvent:
		return notification.NewLike(e.ToID, e.FromID, e.FromName), true
	case *shared.LikeReceivedEvent:
		return notification.NewLike(e.ToID, e.FromID, e.FromName), true
	case shared.MatchCreatedEvent:
		return notification.NewMatch(e.RecipientID, e.PartnerID, e.PartnerName, e.PartnerUsername), true
	case *shared.MatchCreatedEvent:
		return notification.NewMatch(e.RecipientID, e.PartnerID, e.PartnerName, e.PartnerUsername), true
	}

	p := event.Payload()
	switch event.EventType() {
	case shared.EventLikeReceived:
		to, ok1 := payloadInt(p, "to_id")
		from, ok2 := payloadInt(p, "from_id")
		if !ok1 || !ok2 {
			return notification.Notification{}, false
		}
		return notification.NewLike(to, from, payloadString(p, "from_name")), true
	case shared.EventMatchCreated:
		rcpt, ok1 := payloadInt(p, "recipient_id")
		partner, ok2 := payloadInt(p, "partner_id")
		if !ok1 || !ok2 {
			return notification.Notification{}, false
		}
		return notification.NewMatch(rcpt, partner, payloadString(p, "partner_name"), payloadString(p, "partner_username")), true
	}
	return notification.Notification{}, false
}

// payloadInt reads an id that may have been decoded from JSON as float64.
func payloadInt(p map[string]interface{}, key string) (int64, bool) {
	switch v := p[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

func payloadString(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}
