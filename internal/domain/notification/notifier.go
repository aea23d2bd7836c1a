// Package notification содержит доменную модель уведомлений GamerMatch:
// что сообщается пользователю о лайках и мэтчах и через какой интерфейс.
package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind - тип уведомления.
type Kind string

const (
	// KindLike - "тебя лайкнули". Отправляется цели лайка один раз.
	KindLike Kind = "like"

	// KindMatch - "взаимная симпатия". Отправляется каждой стороне один раз.
	KindMatch Kind = "match"
)

// IsValid проверяет корректность типа.
func (k Kind) IsValid() bool {
	return k == KindLike || k == KindMatch
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - полезная нагрузка уведомления, без представления.
// Как её отрисовать, решает реализация Notifier.
type Notification struct {
	Kind Kind

	// RecipientID - кому отправляется.
	RecipientID int64

	// PartnerID - второй участник (кто лайкнул или с кем мэтч).
	PartnerID int64

	// PartnerName - имя второго участника.
	PartnerName string

	// PartnerUsername - @handle второго участника без "@", только для мэтчей.
	PartnerUsername string

	CreatedAt time.Time
}

// NewLike создаёт уведомление о лайке.
func NewLike(recipientID, fromID int64, fromName string) Notification {
	return Notification{
		Kind:        KindLike,
		RecipientID: recipientID,
		PartnerID:   fromID,
		PartnerName: fromName,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewMatch создаёт уведомление о мэтче.
func NewMatch(recipientID, partnerID int64, partnerName, partnerUsername string) Notification {
	return Notification{
		Kind:            KindMatch,
		RecipientID:     recipientID,
		PartnerID:       partnerID,
		PartnerName:     partnerName,
		PartnerUsername: partnerUsername,
		CreatedAt:       time.Now().UTC(),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Notifier доставляет уведомления пользователю.
// Доставка "выстрелил и забыл": ошибка логируется вызывающим кодом,
// ядро её не ретраит. Политика повторов, если она есть, принадлежит реализации.
type Notifier interface {
	Send(ctx context.Context, userID int64, n Notification) error
}

// NotifierFunc адаптирует функцию к интерфейсу Notifier.
type NotifierFunc func(ctx context.Context, userID int64, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, userID int64, n Notification) error {
	return f(ctx, userID, n)
}
