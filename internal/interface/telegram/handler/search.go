package handler

import (
	"context"
	"errors"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/interest"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH
// Показ кандидатов, лайк и пропуск. Уведомления о лайке и мэтче
// рассылает обработчик событий, здесь только ответ нажавшему.
// ══════════════════════════════════════════════════════════════════════════════

const textNoCandidates = "😔 Пока нет подходящих анкет. Загляни позже или включи случайный поиск в ⚙️ Настройках."

// Search handles «🔍 Искать игроков» and «🔍 Искать дальше».
func (h *Handlers) Search(ctx context.Context, req Request) (*Response, error) {
	return h.nextCandidate(ctx, req, nil)
}

// Like handles like_<id>.
func (h *Handlers) Like(ctx context.Context, req Request) (*Response, error) {
	targetID, ok := presenter.IDSuffix(req.Text, presenter.CbLike)
	if !ok {
		return toast("⚠️ Неизвестная анкета"), nil
	}

	cmd := command.LikeProfileCommand{ViewerID: req.UserID, TargetID: targetID}

	var res *command.LikeProfileResult
	err := h.deps.LikeRetrier.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = h.deps.Like.Handle(ctx, cmd)
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrSelfLike):
		return toast("🙃 Себя лайкнуть нельзя"), nil
	case errors.Is(err, profile.ErrTargetHidden):
		return h.nextCandidate(ctx, req, &Response{Toast: "🙈 Игрок скрыл анкету"})
	case errors.Is(err, profile.ErrUnknownUser):
		return h.nextCandidate(ctx, req, &Response{Toast: textGone})
	default:
		return h.failure(req, "like", err)
	}

	head := &Response{Toast: "❤️ Лайк отправлен!"}
	switch {
	case res.NewMatch:
		head.Toast = "🎉 Это мэтч! Контакт пришёл сообщением."
	case res.IsMatch():
		head.Toast = "💌 У вас уже мэтч"
	case !res.FirstLike:
		head.Toast = "❤️ Лайк уже был"
	}
	return h.nextCandidate(ctx, req, head)
}

// Skip handles skip_<id>.
func (h *Handlers) Skip(ctx context.Context, req Request) (*Response, error) {
	return h.nextCandidate(ctx, req, &Response{Toast: "⏭"})
}

// ViewLike handles view_like_<id>: shows who liked the user.
func (h *Handlers) ViewLike(ctx context.Context, req Request) (*Response, error) {
	likerID, ok := presenter.IDSuffix(req.Text, presenter.CbViewLike)
	if !ok {
		return toast("⚠️ Неизвестная анкета"), nil
	}

	me, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "view_like", err)
	}
	liker, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: likerID})
	if err != nil {
		return h.failure(req, "view_like", err)
	}

	if profile.Matched(me, liker) {
		return toast("💌 У вас уже мэтч, контакт в разделе «Мэтчи»"), nil
	}
	view := h.cards.Liker(liker, interest.Shared(me.Interests, liker.Interests))
	return &Response{Replies: []Reply{card(view)}}, nil
}

// nextCandidate appends the next card to head (which may carry a toast).
func (h *Handlers) nextCandidate(ctx context.Context, req Request, head *Response) (*Response, error) {
	if head == nil {
		head = &Response{}
	}

	res, err := h.deps.NextCandidate.Handle(ctx, query.NextCandidateQuery{ViewerID: req.UserID})
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrNoCandidates):
		head.Replies = append(head.Replies, Reply{Text: textNoCandidates})
		return head, nil
	default:
		resp, err := h.failure(req, "next_candidate", err)
		if head.Toast != "" && resp.Toast == "" {
			resp.Toast = head.Toast
		}
		return resp, err
	}

	head.Replies = append(head.Replies, card(h.cards.Candidate(res)))
	return head, nil
}
