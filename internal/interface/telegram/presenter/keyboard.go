// Package presenter formats data for Telegram display.
// Presenters handle the conversion from domain objects to user-friendly
// Telegram messages, keyboards, and other UI elements.
package presenter

import (
	"fmt"
	"strconv"

	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/interest"
	"github.com/waykegoat/MATCH/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE KEYBOARD TYPES
// These types represent Telegram inline keyboards in a library-agnostic way.
// The transport converts them to the Bot API format.
// ══════════════════════════════════════════════════════════════════════════════

// InlineKeyboard represents an inline keyboard.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineButton represents a single inline button.
type InlineButton struct {
	// Text is the button text.
	Text string

	// CallbackData is the callback data (for callback buttons).
	CallbackData string

	// URL is the URL to open (for URL buttons).
	URL string
}

// NewInlineKeyboard creates a new empty inline keyboard.
func NewInlineKeyboard() *InlineKeyboard {
	return &InlineKeyboard{
		Rows: make([][]InlineButton, 0),
	}
}

// AddRow adds a row of buttons. Empty rows are skipped.
func (k *InlineKeyboard) AddRow(buttons ...InlineButton) *InlineKeyboard {
	if len(buttons) > 0 {
		k.Rows = append(k.Rows, buttons)
	}
	return k
}

// CallbackButton creates a callback button.
func CallbackButton(text, callbackData string) InlineButton {
	return InlineButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// URLButton creates a URL button.
func URLButton(text, url string) InlineButton {
	return InlineButton{
		Text: text,
		URL:  url,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// Telegram ограничивает callback_data 64 байтами, поэтому интересы
// передаются индексом в каталоге, а не строкой.
// ══════════════════════════════════════════════════════════════════════════════

const (
	CbLike       = "like_"
	CbSkip       = "skip_"
	CbViewLike   = "view_like_"
	CbViewLikers = "view_likers"
	CbNext       = "next_candidate"

	CbEditProfile    = "edit_profile_menu"
	CbManagePhotos   = "manage_photos"
	CbSearchSettings = "search_settings"
	CbDeleteProfile  = "delete_profile"
	CbConfirmDelete  = "confirm_delete"
	CbCancelDelete   = "cancel_delete"

	CbAddPhoto        = "add_photo"
	CbDeletePhoto     = "delete_photo_"
	CbDeleteAllPhotos = "delete_all_photos"
	CbPhotosDone      = "photos_done"

	CbHideProfile    = "hide_profile"
	CbShowProfile    = "show_profile"
	CbRandomSearch   = "random_search"
	CbInterestSearch = "interest_search"

	CbRegion        = "region_"
	CbPlatform      = "platform_"
	CbSkipAge       = "skip_age"
	CbInterest      = "interest_"
	CbInterestsDone = "interests_done"
)

// IDSuffix parses the numeric suffix of callback data, e.g. "like_42" -> 42.
func IDSuffix(data, prefix string) (int64, bool) {
	if len(data) <= len(prefix) || data[:len(prefix)] != prefix {
		return 0, false
	}
	id, err := strconv.ParseInt(data[len(prefix):], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IndexSuffix parses a non-negative index suffix, e.g. "delete_photo_0" -> 0.
func IndexSuffix(data, prefix string) (int, bool) {
	if len(data) <= len(prefix) || data[:len(prefix)] != prefix {
		return 0, false
	}
	i, err := strconv.Atoi(data[len(prefix):])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN MENU
// Reply-клавиатура: кнопки приходят обычным текстом.
// ══════════════════════════════════════════════════════════════════════════════

const (
	BtnMyProfile = "📝 Моя анкета"
	BtnSearch    = "🔍 Искать игроков"
	BtnLikes     = "❤️ Мои лайки"
	BtnMatches   = "💌 Мэтчи"
	BtnSettings  = "⚙️ Настройки"
	BtnHelp      = "❓ Помощь"
)

// MainMenuButtons returns the main menu in display order, two per row.
func MainMenuButtons() []string {
	return []string{BtnMyProfile, BtnSearch, BtnLikes, BtnMatches, BtnSettings, BtnHelp}
}

// SkipWord - текст, которым можно пропустить шаг возраста.
const SkipWord = "пропустить"

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// Builds keyboards for different use cases.
// ══════════════════════════════════════════════════════════════════════════════

// KeyboardBuilder builds inline keyboards for various handlers.
type KeyboardBuilder struct {
	catalog []string
}

// NewKeyboardBuilder creates a new KeyboardBuilder over the interest catalog.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{catalog: interest.Catalog()}
}

// InterestAt returns the catalog tag for a callback index.
func (b *KeyboardBuilder) InterestAt(i int) (string, bool) {
	if i < 0 || i >= len(b.catalog) {
		return "", false
	}
	return b.catalog[i], true
}

// ─────────────────────────────────────────────────────────────────────────────
// Profile
// ─────────────────────────────────────────────────────────────────────────────

// ProfileKeyboard - действия со своей анкетой.
func (b *KeyboardBuilder) ProfileKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().
		AddRow(
			CallbackButton("✏️ Изменить", CbEditProfile),
			CallbackButton("📸 Фото", CbManagePhotos),
		).
		AddRow(CallbackButton("⚙️ Настройки поиска", CbSearchSettings)).
		AddRow(CallbackButton("🗑 Удалить анкету", CbDeleteProfile))
}

// DeleteConfirmKeyboard asks to confirm profile deletion.
func (b *KeyboardBuilder) DeleteConfirmKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(
		CallbackButton("✅ Да, удалить", CbConfirmDelete),
		CallbackButton("❌ Отмена", CbCancelDelete),
	)
}

// PhotosKeyboard lists photo actions for count uploaded photos.
func (b *KeyboardBuilder) PhotosKeyboard(count int) *InlineKeyboard {
	kb := NewInlineKeyboard()
	if count < profile.MaxAttachments {
		kb.AddRow(CallbackButton("➕ Добавить фото", CbAddPhoto))
	}

	row := make([]InlineButton, 0, count)
	for i := 0; i < count; i++ {
		row = append(row, CallbackButton(fmt.Sprintf("🗑 %d", i+1), CbDeletePhoto+strconv.Itoa(i)))
	}
	kb.AddRow(row...)

	if count > 0 {
		kb.AddRow(CallbackButton("🗑 Удалить все", CbDeleteAllPhotos))
	}
	return kb.AddRow(CallbackButton("✅ Готово", CbPhotosDone))
}

// ─────────────────────────────────────────────────────────────────────────────
// Search
// ─────────────────────────────────────────────────────────────────────────────

// CandidateKeyboard - лайк или пропуск кандидата.
func (b *KeyboardBuilder) CandidateKeyboard(candidateID int64) *InlineKeyboard {
	id := strconv.FormatInt(candidateID, 10)
	return NewInlineKeyboard().AddRow(
		CallbackButton("❤️ Лайк", CbLike+id),
		CallbackButton("⏭ Дальше", CbSkip+id),
	)
}

// LikerKeyboard - ответ на входящий лайк.
func (b *KeyboardBuilder) LikerKeyboard(likerID int64) *InlineKeyboard {
	id := strconv.FormatInt(likerID, 10)
	return NewInlineKeyboard().AddRow(
		CallbackButton("❤️ Лайк в ответ", CbLike+id),
		CallbackButton("⏭ Пропустить", CbSkip+id),
	)
}

// LikersKeyboard - кнопка на каждого лайкнувшего.
func (b *KeyboardBuilder) LikersKeyboard(entries []query.RelationEntry) *InlineKeyboard {
	kb := NewInlineKeyboard()
	for _, e := range entries {
		kb.AddRow(CallbackButton("👀 "+e.Name, CbViewLike+strconv.FormatInt(e.ID, 10)))
	}
	return kb
}

// ViewLikersKeyboard opens the likers list.
func (b *KeyboardBuilder) ViewLikersKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(CallbackButton("👀 Посмотреть", CbViewLikers))
}

// NextKeyboard offers one more search round.
func (b *KeyboardBuilder) NextKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(CallbackButton("🔍 Искать дальше", CbNext))
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// SettingsKeyboard shows the opposite action for each flag.
func (b *KeyboardBuilder) SettingsKeyboard(visible, interestSearch bool) *InlineKeyboard {
	kb := NewInlineKeyboard()
	if visible {
		kb.AddRow(CallbackButton("🙈 Скрыть анкету", CbHideProfile))
	} else {
		kb.AddRow(CallbackButton("👁 Показать анкету", CbShowProfile))
	}
	if interestSearch {
		kb.AddRow(CallbackButton("🎲 Случайный поиск", CbRandomSearch))
	} else {
		kb.AddRow(CallbackButton("🎯 Поиск по интересам", CbInterestSearch))
	}
	return kb
}

// ─────────────────────────────────────────────────────────────────────────────
// Wizard
// ─────────────────────────────────────────────────────────────────────────────

// RegionKeyboard lists game regions.
func (b *KeyboardBuilder) RegionKeyboard() *InlineKeyboard {
	row := make([]InlineButton, 0, len(profile.Regions()))
	for _, r := range profile.Regions() {
		row = append(row, CallbackButton(string(r), CbRegion+string(r)))
	}
	return NewInlineKeyboard().AddRow(row...)
}

// PlatformKeyboard lists platforms.
func (b *KeyboardBuilder) PlatformKeyboard() *InlineKeyboard {
	row := make([]InlineButton, 0, len(profile.Platforms()))
	for _, p := range profile.Platforms() {
		row = append(row, CallbackButton(string(p), CbPlatform+string(p)))
	}
	return NewInlineKeyboard().AddRow(row...)
}

// SkipAgeKeyboard lets the user skip the age step.
func (b *KeyboardBuilder) SkipAgeKeyboard() *InlineKeyboard {
	return NewInlineKeyboard().AddRow(CallbackButton("⏭ Пропустить", CbSkipAge))
}

// InterestsKeyboard renders the catalog, marking selected tags.
func (b *KeyboardBuilder) InterestsKeyboard(selected func(tag string) bool) *InlineKeyboard {
	kb := NewInlineKeyboard()
	row := make([]InlineButton, 0, 2)
	for i, tag := range b.catalog {
		label := tag
		if selected(tag) {
			label = "✅ " + tag
		}
		row = append(row, CallbackButton(label, CbInterest+strconv.Itoa(i)))
		if len(row) == 2 {
			kb.AddRow(row...)
			row = make([]InlineButton, 0, 2)
		}
	}
	kb.AddRow(row...)
	return kb.AddRow(CallbackButton("✅ Готово", CbInterestsDone))
}
