package presenter

import (
	"fmt"
	"strings"

	"github.com/waykegoat/MATCH/internal/application/query"
)

// ══════════════════════════════════════════════════════════════════════════════
// LISTS
// Входящие лайки, мэтчи, статистика.
// ══════════════════════════════════════════════════════════════════════════════

// ListView - текст со списком и клавиатурой.
type ListView struct {
	Text     string
	Keyboard *InlineKeyboard
}

// Likes форматирует входящие лайки.
func Likes(res *query.GetRelationsResult, keyboards *KeyboardBuilder) *ListView {
	if res.Total == 0 {
		return &ListView{Text: "💔 Пока никто не лайкнул твою анкету.\nЗагляни в поиск, взаимность начинается с первого лайка!"}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "❤️ Тебя лайкнули (%d):\n", res.Total)
	for _, e := range res.Entries {
		fmt.Fprintf(&sb, "\n• %s", esc(e.Name))
		if len(e.Shared) > 0 {
			fmt.Fprintf(&sb, " (общее: %s)", esc(strings.Join(e.Shared, ", ")))
		}
	}
	if more := res.Total - len(res.Entries); more > 0 {
		fmt.Fprintf(&sb, "\n\n…и ещё %d", more)
	}

	return &ListView{Text: sb.String(), Keyboard: keyboards.LikersKeyboard(res.Entries)}
}

// Matches форматирует мэтчи с контактами.
func Matches(res *query.GetRelationsResult) *ListView {
	if res.Total == 0 {
		return &ListView{Text: "💌 Мэтчей пока нет.\nЛайкай анкеты в поиске: когда симпатия взаимна, здесь появится контакт."}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "💌 Твои мэтчи (%d):\n", res.Total)
	for _, e := range res.Entries {
		if e.Username != "" {
			fmt.Fprintf(&sb, "\n• %s: @%s", esc(e.Name), esc(e.Username))
		} else {
			fmt.Fprintf(&sb, "\n• %s: <a href=\"tg://user?id=%d\">написать</a>", esc(e.Name), e.ID)
		}
	}
	if more := res.Total - len(res.Entries); more > 0 {
		fmt.Fprintf(&sb, "\n\n…и ещё %d", more)
	}
	return &ListView{Text: sb.String()}
}

// Stats форматирует сводку для администратора.
func Stats(st *query.StatsDTO) string {
	var sb strings.Builder
	sb.WriteString("📊 <b>Статистика</b>\n\n")
	fmt.Fprintf(&sb, "Анкет всего: %d\n", st.Total)
	fmt.Fprintf(&sb, "Видимых: %d, скрытых: %d\n", st.Visible, st.Hidden)
	fmt.Fprintf(&sb, "Новых сегодня: %d, за 24ч: %d\n", st.CreatedToday, st.CreatedLast24h)
	fmt.Fprintf(&sb, "С фото: %d\n", st.WithAttachments)
	fmt.Fprintf(&sb, "Лайков: %d\n", st.TotalLikes)
	fmt.Fprintf(&sb, "Мэтчей: %d\n", st.TotalMatches)
	fmt.Fprintf(&sb, "\n🕒 %s", st.GeneratedAt.Format("02.01.2006 15:04"))
	if st.FromCache {
		sb.WriteString(" (кэш)")
	}
	return sb.String()
}
