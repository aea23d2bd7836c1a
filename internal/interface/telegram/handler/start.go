package handler

import (
	"context"
	"errors"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// START / HELP / MY PROFILE
// /start - приветствие и мастер анкеты для новичка, меню для остальных.
// ══════════════════════════════════════════════════════════════════════════════

const textHelp = "🎮 <b>GamerMatch</b> помогает найти тиммейтов.\n\n" +
	"📝 Моя анкета - посмотреть и изменить анкету, добавить фото\n" +
	"🔍 Искать игроков - анкеты с общими интересами\n" +
	"❤️ Мои лайки - кто лайкнул тебя\n" +
	"💌 Мэтчи - взаимные симпатии с контактами\n" +
	"⚙️ Настройки - скрыть анкету или искать случайно\n\n" +
	"Когда симпатия взаимна, оба получат контакт друг друга.\n" +
	"/cancel - прервать заполнение анкеты"

// Start handles /start.
func (h *Handlers) Start(ctx context.Context, req Request) (*Response, error) {
	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	switch {
	case err == nil:
		return &Response{Replies: []Reply{{
			Text:     "👋 С возвращением, " + escape(p.Name) + "! Чем займёмся?",
			MainMenu: true,
		}}}, nil
	case errors.Is(err, profile.ErrProfileNotFound):
	default:
		return h.failure(req, "start", err)
	}

	w := session.NewWizard(req.UserID, session.StepName, h.now())
	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		return h.failure(req, "start", err)
	}

	text := "👋 Привет! Это <b>GamerMatch</b>: здесь находят тиммейтов по общим играм.\n\n" +
		"Давай заполним анкету. Как тебя зовут?"
	return reply(text, nil), nil
}

// Help handles /help and «❓ Помощь».
func (h *Handlers) Help(_ context.Context, _ Request) (*Response, error) {
	return &Response{Replies: []Reply{{Text: textHelp, MainMenu: true}}}, nil
}

// Cancel handles /cancel: drops an unfinished wizard.
func (h *Handlers) Cancel(ctx context.Context, req Request) (*Response, error) {
	if err := h.deps.Sessions.Drop(ctx, req.UserID); err != nil {
		return h.failure(req, "cancel", err)
	}
	return &Response{Replies: []Reply{{Text: "👌 Отменено.", MainMenu: true}}}, nil
}

// MyProfile handles «📝 Моя анкета».
func (h *Handlers) MyProfile(ctx context.Context, req Request) (*Response, error) {
	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "my_profile", err)
	}
	return &Response{Replies: []Reply{card(h.cards.OwnProfile(p))}}, nil
}

// Fallback answers text that matched nothing.
func (h *Handlers) Fallback(_ context.Context, _ Request) (*Response, error) {
	return &Response{Replies: []Reply{{Text: "Используй кнопки для навигации! 🎮", MainMenu: true}}}, nil
}
