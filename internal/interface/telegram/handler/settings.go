package handler

import (
	"context"
	"strings"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS
// Видимость анкеты и режим поиска.
// ══════════════════════════════════════════════════════════════════════════════

// Settings handles «⚙️ Настройки» and search_settings.
func (h *Handlers) Settings(ctx context.Context, req Request) (*Response, error) {
	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "settings", err)
	}
	return reply(settingsText(p.Visible, p.InterestSearch), h.keyboards.SettingsKeyboard(p.Visible, p.InterestSearch)), nil
}

// ToggleSetting handles hide_profile, show_profile, random_search and interest_search.
func (h *Handlers) ToggleSetting(ctx context.Context, req Request) (*Response, error) {
	cmd := command.UpdateSettingsCommand{ProfileID: req.UserID}
	var done string

	switch req.Text {
	case presenter.CbHideProfile:
		cmd.Visible = boolPtr(false)
		done = "🙈 Анкета скрыта. Новые лайки не придут, мэтчи сохранятся."
	case presenter.CbShowProfile:
		cmd.Visible = boolPtr(true)
		done = "👁 Анкета снова видна в поиске."
	case presenter.CbRandomSearch:
		cmd.InterestSearch = boolPtr(false)
		done = "🎲 Включён случайный поиск."
	case presenter.CbInterestSearch:
		cmd.InterestSearch = boolPtr(true)
		done = "🎯 Включён поиск по интересам."
	default:
		return toast("⚠️ Неизвестная настройка"), nil
	}

	res, err := h.deps.UpdateSettings.Handle(ctx, cmd)
	if err != nil {
		return h.failure(req, "update_settings", err)
	}

	resp := edit(settingsText(res.Visible, res.InterestSearch), h.keyboards.SettingsKeyboard(res.Visible, res.InterestSearch))
	resp.Toast = done
	return resp, nil
}

func settingsText(visible, interestSearch bool) string {
	var sb strings.Builder
	sb.WriteString("⚙️ <b>Настройки поиска</b>\n\n")
	if visible {
		sb.WriteString("👁 Анкета видна другим игрокам\n")
	} else {
		sb.WriteString("🙈 Анкета скрыта из поиска\n")
	}
	if interestSearch {
		sb.WriteString("🎯 Подбор по общим интересам")
	} else {
		sb.WriteString("🎲 Случайный подбор")
	}
	return sb.String()
}

func boolPtr(v bool) *bool { return &v }
