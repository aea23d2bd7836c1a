// Package profile содержит доменную модель игрового профиля GamerMatch:
// анкету игрока, его фото и книгу лайков (Ledger).
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package profile

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/waykegoat/MATCH/internal/domain/interest"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ID - идентификатор профиля, совпадает с Telegram user id.
type ID int64

// IsValid проверяет, что ID положительный.
func (id ID) IsValid() bool {
	return id > 0
}

// Int64 возвращает значение как int64.
func (id ID) Int64() int64 {
	return int64(id)
}

// String возвращает строковое представление.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// Region - игровой регион.
type Region string

const (
	RegionEU Region = "EU"
	RegionRU Region = "RU"
	RegionSA Region = "SA"
	RegionNA Region = "NA"
)

// Regions возвращает все допустимые регионы в порядке отображения.
func Regions() []Region {
	return []Region{RegionEU, RegionRU, RegionSA, RegionNA}
}

// IsValid проверяет корректность региона.
func (r Region) IsValid() bool {
	switch r {
	case RegionEU, RegionRU, RegionSA, RegionNA:
		return true
	default:
		return false
	}
}

// Platform - игровая платформа.
type Platform string

const (
	PlatformPC     Platform = "PC"
	PlatformMobile Platform = "Mobile"
	PlatformPS     Platform = "PS"
	PlatformXBOX   Platform = "XBOX"
)

// Platforms возвращает все допустимые платформы в порядке отображения.
func Platforms() []Platform {
	return []Platform{PlatformPC, PlatformMobile, PlatformPS, PlatformXBOX}
}

// IsValid проверяет корректность платформы.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformPC, PlatformMobile, PlatformPS, PlatformXBOX:
		return true
	default:
		return false
	}
}

// Ограничения анкеты.
const (
	MaxAttachments = 5
	MinNameLength  = 2
	MaxNameLength  = 50
	MinAge         = 13
	MaxAge         = 100
	MaxAboutLength = 500
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Profile - анкета игрока вместе с книгой лайков.
type Profile struct {
	// ID - Telegram user id, неизменяем после создания.
	ID ID

	// Username - @handle в Telegram (может быть пустым).
	Username string

	// Name - отображаемое имя.
	Name string

	// Age - возраст, 0 если пользователь пропустил шаг.
	Age int

	Region   Region
	Platform Platform

	// About - свободный текст "о себе".
	About string

	// Interests - любимые игры и жанры. Используются только для подбора.
	Interests []string

	// Visible - показывается ли профиль в поиске. По умолчанию true.
	// Скрытый профиль не получает новых лайков, но существующие мэтчи сохраняются.
	Visible bool

	// InterestSearch - подбирать ли кандидатов по общим интересам.
	// По умолчанию true; false означает случайный поиск.
	InterestSearch bool

	// Attachments - file_id фотографий, не более MaxAttachments, порядок важен.
	Attachments []string

	// Ledger - лайки и мэтчи. Меняется только через RecordLike.
	Ledger Ledger

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Details - редактируемая часть анкеты.
type Details struct {
	Username  string
	Name      string
	Age       int
	Region    Region
	Platform  Platform
	About     string
	Interests []string
}

// Validate проверяет инварианты анкеты.
func (d Details) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(d.Name))
	if n < MinNameLength || n > MaxNameLength {
		return ErrInvalidName
	}
	if d.Age != 0 && (d.Age < MinAge || d.Age > MaxAge) {
		return ErrInvalidAge
	}
	if !d.Region.IsValid() {
		return ErrInvalidRegion
	}
	if !d.Platform.IsValid() {
		return ErrInvalidPlatform
	}
	if interest.NewSet(d.Interests).Len() == 0 {
		return ErrNoInterests
	}
	if utf8.RuneCountInString(d.About) > MaxAboutLength {
		return ErrAboutTooLong
	}
	return nil
}

// New создаёт профиль с пустой книгой лайков и явными значениями флагов по умолчанию.
func New(id ID, d Details, now time.Time) (*Profile, error) {
	if !id.IsValid() {
		return nil, ErrInvalidProfileID
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p := &Profile{
		ID:             id,
		Visible:        true,
		InterestSearch: true,
		Attachments:    []string{},
		Ledger:         NewLedger(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	p.applyDetails(d)
	return p, nil
}

// ApplyDetails обновляет анкету. Книга лайков, флаги и фото не трогаются.
func (p *Profile) ApplyDetails(d Details, now time.Time) error {
	if err := d.Validate(); err != nil {
		return err
	}
	p.applyDetails(d)
	p.UpdatedAt = now
	return nil
}

func (p *Profile) applyDetails(d Details) {
	p.Username = strings.TrimPrefix(strings.TrimSpace(d.Username), "@")
	p.Name = strings.TrimSpace(d.Name)
	p.Age = d.Age
	p.Region = d.Region
	p.Platform = d.Platform
	p.About = strings.TrimSpace(d.About)
	p.Interests = interest.NewSet(d.Interests).Tags()
}

// Details возвращает редактируемую часть анкеты.
func (p *Profile) Details() Details {
	return Details{
		Username:  p.Username,
		Name:      p.Name,
		Age:       p.Age,
		Region:    p.Region,
		Platform:  p.Platform,
		About:     p.About,
		Interests: append([]string(nil), p.Interests...),
	}
}

// Mention возвращает @username или имя, если username не задан.
func (p *Profile) Mention() string {
	if p.Username != "" {
		return "@" + p.Username
	}
	return p.Name
}

// ─────────────────────────────────────────────────────────────────────────────
// Settings
// ─────────────────────────────────────────────────────────────────────────────

// SetVisible скрывает или показывает профиль. Возвращает true, если значение изменилось.
func (p *Profile) SetVisible(visible bool, now time.Time) bool {
	if p.Visible == visible {
		return false
	}
	p.Visible = visible
	p.UpdatedAt = now
	return true
}

// SetInterestSearch переключает режим поиска. Возвращает true, если значение изменилось.
func (p *Profile) SetInterestSearch(enabled bool, now time.Time) bool {
	if p.InterestSearch == enabled {
		return false
	}
	p.InterestSearch = enabled
	p.UpdatedAt = now
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Attachments
// ─────────────────────────────────────────────────────────────────────────────

// AddAttachment добавляет фото в конец списка.
// При достижении лимита возвращает ErrAttachmentLimit и ничего не меняет.
func (p *Profile) AddAttachment(ref string, now time.Time) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ErrAttachmentEmpty
	}
	if len(p.Attachments) >= MaxAttachments {
		return ErrAttachmentLimit
	}
	p.Attachments = append(p.Attachments, ref)
	p.UpdatedAt = now
	return nil
}

// RemoveAttachment удаляет фото по индексу (с нуля), сохраняя порядок остальных.
func (p *Profile) RemoveAttachment(index int, now time.Time) (string, error) {
	if index < 0 || index >= len(p.Attachments) {
		return "", ErrAttachmentIndex
	}
	removed := p.Attachments[index]
	next := make([]string, 0, len(p.Attachments)-1)
	next = append(next, p.Attachments[:index]...)
	next = append(next, p.Attachments[index+1:]...)
	p.Attachments = next
	p.UpdatedAt = now
	return removed, nil
}

// ClearAttachments удаляет все фото и возвращает их количество.
func (p *Profile) ClearAttachments(now time.Time) int {
	n := len(p.Attachments)
	if n == 0 {
		return 0
	}
	p.Attachments = []string{}
	p.UpdatedAt = now
	return n
}

// AttachmentSlotsLeft возвращает, сколько ещё фото можно добавить.
func (p *Profile) AttachmentSlotsLeft() int {
	return MaxAttachments - len(p.Attachments)
}

// Clone возвращает глубокую копию профиля.
// Хранилища отдают копии, чтобы вызывающий код не менял общее состояние.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Interests = append([]string(nil), p.Interests...)
	c.Attachments = append([]string{}, p.Attachments...)
	c.Ledger = p.Ledger.Clone()
	return &c
}
