package handler

import (
	"context"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
)

const textConfirmDelete = "❌ Вы уверены, что хотите удалить анкету?\nЭто действие нельзя отменить!"

// DeleteProfile handles delete_profile: asks for confirmation.
func (h *Handlers) DeleteProfile(_ context.Context, _ Request) (*Response, error) {
	return reply(textConfirmDelete, h.keyboards.DeleteConfirmKeyboard()), nil
}

// ConfirmDelete handles confirm_delete.
func (h *Handlers) ConfirmDelete(ctx context.Context, req Request) (*Response, error) {
	if _, err := h.deps.RemoveProfile.Handle(ctx, command.RemoveProfileCommand{ProfileID: req.UserID}); err != nil {
		return h.failure(req, "remove_profile", err)
	}
	h.dropSession(ctx, req.UserID)
	if h.deps.OnProfileRemoved != nil {
		h.deps.OnProfileRemoved(req.UserID)
	}

	return &Response{
		Toast: "Анкета удалена",
		Replies: []Reply{{
			Text: "🗑 Анкета удалена. Чтобы вернуться, нажми /start.",
			Edit: true,
		}},
	}, nil
}

// CancelDelete handles cancel_delete: returns to the own card.
func (h *Handlers) CancelDelete(ctx context.Context, req Request) (*Response, error) {
	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "cancel_delete", err)
	}
	resp := &Response{Toast: "👌 Отменено", Replies: []Reply{{Text: "Анкета на месте 👇", Edit: true}}}
	resp.Replies = append(resp.Replies, card(h.cards.OwnProfile(p)))
	return resp, nil
}

// Stats handles /stats for admins.
func (h *Handlers) Stats(ctx context.Context, req Request) (*Response, error) {
	if !h.deps.IsAdmin(req.UserID) {
		return h.Fallback(ctx, req)
	}

	st, err := h.deps.Stats.Handle(ctx, query.GetStatsQuery{Fresh: req.Text == "fresh"})
	if err != nil {
		return h.failure(req, "stats", err)
	}
	return reply(presenter.Stats(st), nil), nil
}
