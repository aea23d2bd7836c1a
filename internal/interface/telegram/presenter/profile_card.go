package presenter

import (
	"fmt"
	"html"
	"strings"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE CARD PRESENTER
// Карточка анкеты: своя (со счётчиками и кнопками) и чужая (в поиске).
// ══════════════════════════════════════════════════════════════════════════════

// ParseModeHTML - все карточки размечены HTML.
const ParseModeHTML = "HTML"

// CardView содержит отформатированную карточку.
type CardView struct {
	// Text - текст сообщения или подпись к фото (HTML).
	Text string

	// PhotoID - первое фото анкеты; пусто, если фото нет.
	PhotoID string

	// Keyboard - inline-клавиатура.
	Keyboard *InlineKeyboard
}

// CardPresenter форматирует карточки анкет.
type CardPresenter struct {
	keyboards *KeyboardBuilder
}

// NewCardPresenter создаёт презентер карточек.
func NewCardPresenter(keyboards *KeyboardBuilder) *CardPresenter {
	if keyboards == nil {
		keyboards = NewKeyboardBuilder()
	}
	return &CardPresenter{keyboards: keyboards}
}

// OwnProfile - карточка «📝 Моя анкета».
func (p *CardPresenter) OwnProfile(pr *profile.Profile) *CardView {
	var sb strings.Builder
	sb.WriteString("📝 <b>Твоя анкета</b>\n\n")
	writeBase(&sb, pr)

	sb.WriteString("\n")
	fmt.Fprintf(&sb, "❤️ Лайков получено: %d\n", pr.Ledger.LikedByCount())
	fmt.Fprintf(&sb, "💌 Мэтчей: %d\n", pr.Ledger.MatchedCount())
	fmt.Fprintf(&sb, "📸 Фото: %d/%d", len(pr.Attachments), profile.MaxAttachments)
	if !pr.Visible {
		sb.WriteString("\n\n🙈 Анкета скрыта из поиска")
	}

	return &CardView{
		Text:     sb.String(),
		PhotoID:  firstPhoto(pr),
		Keyboard: p.keyboards.ProfileKeyboard(),
	}
}

// Candidate - карточка кандидата в поиске.
func (p *CardPresenter) Candidate(res *query.NextCandidateResult) *CardView {
	var sb strings.Builder
	writeBase(&sb, res.Candidate)

	if len(res.SharedInterests) > 0 {
		fmt.Fprintf(&sb, "\n🤝 Общие интересы: %s", esc(strings.Join(res.SharedInterests, ", ")))
	}
	if res.LikedYou {
		sb.WriteString("\n\n❤️ Уже лайкнул(а) тебя! Лайк в ответ, и это мэтч.")
	}

	return &CardView{
		Text:     sb.String(),
		PhotoID:  firstPhoto(res.Candidate),
		Keyboard: p.keyboards.CandidateKeyboard(res.Candidate.ID.Int64()),
	}
}

// Liker - анкета того, кто лайкнул.
func (p *CardPresenter) Liker(pr *profile.Profile, shared []string) *CardView {
	var sb strings.Builder
	sb.WriteString("❤️ <b>Тебя лайкнул(а)</b>\n\n")
	writeBase(&sb, pr)
	if len(shared) > 0 {
		fmt.Fprintf(&sb, "\n🤝 Общие интересы: %s", esc(strings.Join(shared, ", ")))
	}
	return &CardView{
		Text:     sb.String(),
		PhotoID:  firstPhoto(pr),
		Keyboard: p.keyboards.LikerKeyboard(pr.ID.Int64()),
	}
}

func writeBase(sb *strings.Builder, pr *profile.Profile) {
	fmt.Fprintf(sb, "👤 Имя: %s\n", esc(pr.Name))
	fmt.Fprintf(sb, "🌍 Регион: %s\n", pr.Region)
	fmt.Fprintf(sb, "🎮 Платформа: %s\n", pr.Platform)
	fmt.Fprintf(sb, "🎲 Интересы: %s\n", esc(strings.Join(pr.Interests, ", ")))
	if pr.Age > 0 {
		fmt.Fprintf(sb, "🎂 Возраст: %d\n", pr.Age)
	}
	if pr.About != "" {
		fmt.Fprintf(sb, "📝 О себе: %s\n", esc(pr.About))
	}
}

func firstPhoto(pr *profile.Profile) string {
	if len(pr.Attachments) == 0 {
		return ""
	}
	return pr.Attachments[0]
}

func esc(s string) string {
	return html.EscapeString(s)
}
