package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/waykegoat/MATCH/internal/domain/notification"
	"github.com/waykegoat/MATCH/internal/domain/shared"
	"github.com/waykegoat/MATCH/internal/infrastructure/metrics"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ErrRecipientUnreachable is returned when the recipient blocked the bot or
// the chat no longer exists. Such failures do not count against the breaker.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// BreakerConfig configures the circuit breaker around notification delivery.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration

	// MinRequests and FailureRatio decide when the breaker opens.
	MinRequests  uint32
	FailureRatio float64
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "telegram-notifier",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  10,
		FailureRatio: 0.6,
	}
}

// Notifier delivers like and match notifications as Telegram messages.
type Notifier struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[*Message]
	logger *slog.Logger
}

// NewNotifier creates a notifier that sends through client behind a circuit breaker.
func NewNotifier(client *Client, cfg BreakerConfig, log *slog.Logger) *Notifier {
	log = logger.OrDefault(log).With(logger.Component("telegram_notifier"))
	if cfg.Name == "" {
		cfg.Name = DefaultBreakerConfig().Name
	}

	metrics.SetBreakerState(cfg.Name, int(gobreaker.StateClosed))

	cb := gobreaker.NewCircuitBreaker[*Message](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.SetBreakerState(name, int(to))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRecipientUnreachable)
		},
	})

	return &Notifier{client: client, cb: cb, logger: log}
}

// Send implements notification.Notifier.
func (n *Notifier) Send(ctx context.Context, userID int64, notif notification.Notification) error {
	if !notif.Kind.IsValid() {
		return fmt.Errorf("send notification: unknown kind %q", notif.Kind)
	}

	params := RenderNotification(userID, notif)

	_, err := n.cb.Execute(func() (*Message, error) {
		msg, err := n.client.SendMessage(ctx, params)
		if err != nil && (IsBlocked(err) || IsChatNotFound(err)) {
			return nil, fmt.Errorf("%w: %v", ErrRecipientUnreachable, err)
		}
		return msg, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			n.logger.Warn("notification rejected by circuit breaker", logger.ProfileID(userID))
			return fmt.Errorf("send %s notification: %w: %w", notif.Kind, shared.ErrNotificationFailed, err)
		}
		return fmt.Errorf("send %s notification: %w: %w", notif.Kind, shared.ErrTelegramAPIFailed, err)
	}
	return nil
}

// State returns the breaker state, for health reporting.
func (n *Notifier) State() gobreaker.State {
	return n.cb.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// RENDERING
// ══════════════════════════════════════════════════════════════════════════════

// RenderNotification builds the message sent to the recipient.
func RenderNotification(chatID int64, n notification.Notification) SendMessageParams {
	switch n.Kind {
	case notification.KindMatch:
		text := fmt.Sprintf("🎉 Мэтч! Вы понравились друг другу с %s!", displayName(n.PartnerName))
		if n.PartnerUsername != "" {
			text += "\nНапишите: @" + n.PartnerUsername
		} else {
			text += "\nУ собеседника нет username, загляните в «💌 Мэтчи»."
		}
		return SendMessageParams{ChatID: chatID, Text: text}

	default:
		text := fmt.Sprintf("❤️ Вас лайкнул %s!\nОтветьте взаимностью, чтобы получить контакт.", displayName(n.PartnerName))
		kb := NewKeyboard().
			Row(Button("👀 Посмотреть анкету", "view_like_"+strconv.FormatInt(n.PartnerID, 10))).
			Build()
		return SendMessageParams{ChatID: chatID, Text: text, ReplyMarkup: kb}
	}
}

func displayName(name string) string {
	if name == "" {
		return "кто-то"
	}
	return name
}
