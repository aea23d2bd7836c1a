package handler

import (
	"context"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
)

// Likes handles «❤️ Мои лайки» and view_likers.
// Those who already matched are listed under «💌 Мэтчи» instead.
func (h *Handlers) Likes(ctx context.Context, req Request) (*Response, error) {
	res, err := h.deps.Relations.Handle(ctx, query.GetRelationsQuery{
		ProfileID:      req.UserID,
		Kind:           query.RelationLikedBy,
		Limit:          h.deps.ListLimit,
		ExcludeMatched: true,
	})
	if err != nil {
		return h.failure(req, "likes", err)
	}

	view := presenter.Likes(res, h.keyboards)
	return reply(view.Text, view.Keyboard), nil
}

// Matches handles «💌 Мэтчи».
func (h *Handlers) Matches(ctx context.Context, req Request) (*Response, error) {
	res, err := h.deps.Relations.Handle(ctx, query.GetRelationsQuery{
		ProfileID: req.UserID,
		Kind:      query.RelationMatched,
		Limit:     h.deps.ListLimit,
	})
	if err != nil {
		return h.failure(req, "matches", err)
	}

	view := presenter.Matches(res)
	return reply(view.Text, view.Keyboard), nil
}
