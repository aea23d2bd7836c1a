package interest

// TagChat - интерес "просто пообщаться", доступен наряду с играми.
const TagChat = "💬 Общение"

// games - каталог игр, предлагаемых в анкете.
var games = []string{
	"Roblox", "Dota 2", "Valorant", "Counter-Strike 2",
	"Overwatch", "Marvel Rivals", "Souls Like", "Minecraft",
	"Arc Riders", "Fortnite", "PUBG", "Mobile Legends", "LOL",
}

// genres - каталог жанров.
var genres = []string{
	"Фэнтези", "Хоррор", "PVP", "PVE",
	"MMO RPG", "Шутеры", "Battle Royale", "Песочницы",
}

// Games возвращает каталог игр вместе с TagChat.
func Games() []string {
	out := make([]string, 0, len(games)+1)
	out = append(out, games...)
	return append(out, TagChat)
}

// Genres возвращает каталог жанров.
func Genres() []string {
	return append([]string(nil), genres...)
}

// Catalog возвращает все предлагаемые теги: игры, жанры и TagChat.
func Catalog() []string {
	out := Games()
	return append(out, genres...)
}
