package handler

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE WIZARD
// Имя → регион → платформа → возраст → о себе → интересы.
// Черновик живёт в сессии; в ядро уходит только готовая анкета.
// ══════════════════════════════════════════════════════════════════════════════

const (
	textExpired    = "⌛ Сессия истекла. Начни заново: /start"
	textStepPassed = "Этот шаг уже пройден 👌"
	textUseButtons = "Выбери вариант кнопкой 👇"
)

// EditProfile handles «✏️ Изменить»: restarts the wizard prefilled with the current profile.
func (h *Handlers) EditProfile(ctx context.Context, req Request) (*Response, error) {
	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "edit_profile", err)
	}

	w := session.NewWizard(req.UserID, session.StepName, h.now())
	w.Editing = true
	w.Draft = session.Draft{
		Name:      p.Name,
		Region:    string(p.Region),
		Platform:  string(p.Platform),
		Age:       p.Age,
		About:     p.About,
		Interests: append([]string(nil), p.Interests...),
	}
	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		return h.failure(req, "edit_profile", err)
	}

	return reply("✏️ Редактирование анкеты.\n\n"+h.namePrompt(w), nil), nil
}

// WizardText consumes free text while a wizard is active.
// Returns handled=false when the user has no wizard.
func (h *Handlers) WizardText(ctx context.Context, req Request) (resp *Response, handled bool, err error) {
	w, err := h.deps.Sessions.Get(ctx, req.UserID)
	if errors.Is(err, session.ErrNoSession) {
		return nil, false, nil
	}
	if err != nil {
		resp, err = h.failure(req, "wizard", err)
		return resp, true, err
	}

	text := strings.TrimSpace(req.Text)

	switch w.Step {
	case session.StepName:
		n := utf8.RuneCountInString(text)
		if n < profile.MinNameLength || n > profile.MaxNameLength {
			return reply(fmt.Sprintf("❌ Имя должно быть от %d до %d символов.", profile.MinNameLength, profile.MaxNameLength), nil), true, nil
		}
		w.Draft.Name = text
		w.Advance(session.StepRegion, h.now())
		resp = reply(h.regionPrompt(w), h.keyboards.RegionKeyboard())

	case session.StepAge:
		age, ok := parseAge(text)
		if !ok {
			return reply(fmt.Sprintf("❌ Возраст должен быть числом от %d до %d или «%s».", profile.MinAge, profile.MaxAge, presenter.SkipWord), nil), true, nil
		}
		w.Draft.Age = age
		w.Advance(session.StepAbout, h.now())
		resp = reply(h.aboutPrompt(w), nil)

	case session.StepAbout:
		if strings.EqualFold(text, presenter.SkipWord) {
			text = ""
		}
		if utf8.RuneCountInString(text) > profile.MaxAboutLength {
			return reply(fmt.Sprintf("❌ Слишком длинно: максимум %d символов.", profile.MaxAboutLength), nil), true, nil
		}
		w.Draft.About = text
		w.Advance(session.StepInterests, h.now())
		resp = reply(h.interestsPrompt(), h.keyboards.InterestsKeyboard(w.Draft.HasInterest))

	case session.StepRegion:
		return reply(textUseButtons, h.keyboards.RegionKeyboard()), true, nil
	case session.StepPlatform:
		return reply(textUseButtons, h.keyboards.PlatformKeyboard()), true, nil
	case session.StepInterests:
		return reply(textUseButtons, h.keyboards.InterestsKeyboard(w.Draft.HasInterest)), true, nil
	case session.StepPhotos:
		return reply("📸 Отправь фото или нажми «✅ Готово».", nil), true, nil
	default:
		_ = h.deps.Sessions.Drop(ctx, req.UserID)
		return nil, false, nil
	}

	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		resp, err = h.failure(req, "wizard", err)
		return resp, true, err
	}
	return resp, true, nil
}

// Region handles region_<R>.
func (h *Handlers) Region(ctx context.Context, req Request) (*Response, error) {
	w, resp, err := h.wizardAt(ctx, req, session.StepRegion)
	if w == nil {
		return resp, err
	}

	r := profile.Region(strings.TrimPrefix(req.Text, presenter.CbRegion))
	if !r.IsValid() {
		return toast("⚠️ Неизвестный регион"), nil
	}
	w.Draft.Region = string(r)
	w.Advance(session.StepPlatform, h.now())
	return h.saveStep(ctx, req, w, edit(h.platformPrompt(w), h.keyboards.PlatformKeyboard()))
}

// Platform handles platform_<P>.
func (h *Handlers) Platform(ctx context.Context, req Request) (*Response, error) {
	w, resp, err := h.wizardAt(ctx, req, session.StepPlatform)
	if w == nil {
		return resp, err
	}

	p := profile.Platform(strings.TrimPrefix(req.Text, presenter.CbPlatform))
	if !p.IsValid() {
		return toast("⚠️ Неизвестная платформа"), nil
	}
	w.Draft.Platform = string(p)
	w.Advance(session.StepAge, h.now())
	return h.saveStep(ctx, req, w, edit(h.agePrompt(w), h.keyboards.SkipAgeKeyboard()))
}

// SkipAge handles the «⏭ Пропустить» button on the age step.
func (h *Handlers) SkipAge(ctx context.Context, req Request) (*Response, error) {
	w, resp, err := h.wizardAt(ctx, req, session.StepAge)
	if w == nil {
		return resp, err
	}
	w.Draft.Age = 0
	w.Advance(session.StepAbout, h.now())
	return h.saveStep(ctx, req, w, edit(h.aboutPrompt(w), nil))
}

// ToggleInterest handles interest_<i>.
func (h *Handlers) ToggleInterest(ctx context.Context, req Request) (*Response, error) {
	w, resp, err := h.wizardAt(ctx, req, session.StepInterests)
	if w == nil {
		return resp, err
	}

	i, ok := presenter.IndexSuffix(req.Text, presenter.CbInterest)
	tag, found := h.keyboards.InterestAt(i)
	if !ok || !found {
		return toast("⚠️ Неизвестный интерес"), nil
	}
	w.Draft.ToggleInterest(tag)
	w.UpdatedAt = h.now()
	return h.saveStep(ctx, req, w, edit(h.interestsPrompt(), h.keyboards.InterestsKeyboard(w.Draft.HasInterest)))
}

// InterestsDone handles «✅ Готово»: submits the finished profile.
func (h *Handlers) InterestsDone(ctx context.Context, req Request) (*Response, error) {
	w, resp, err := h.wizardAt(ctx, req, session.StepInterests)
	if w == nil {
		return resp, err
	}
	if len(w.Draft.Interests) == 0 {
		return &Response{Toast: "Выбери хотя бы один интерес", Alert: true}, nil
	}

	res, err := h.deps.SaveProfile.Handle(ctx, command.SaveProfileCommand{
		Submission: submission(req, w.Draft),
	})
	if err != nil {
		return h.failure(req, "save_profile", err)
	}
	if err := h.deps.Sessions.Drop(ctx, req.UserID); err != nil {
		h.logger.Warn("failed to drop wizard session", "telegram_id", req.UserID, logger.Err(err))
	}

	done := "✅ Анкета сохранена!"
	if res.Created {
		done = "🎉 Анкета создана! Теперь можно искать игроков."
	}
	return &Response{Replies: []Reply{
		{Text: done, Edit: true},
		{Text: "Меню ниже 👇", MainMenu: true},
		card(h.cards.OwnProfile(res.Profile)),
	}}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

// wizardAt loads the wizard and checks it is at step. When it is not, the
// returned wizard is nil and resp explains why.
func (h *Handlers) wizardAt(ctx context.Context, req Request, step session.Step) (*session.Wizard, *Response, error) {
	w, err := h.deps.Sessions.Get(ctx, req.UserID)
	if errors.Is(err, session.ErrNoSession) {
		return nil, &Response{Toast: textExpired, Alert: true}, nil
	}
	if err != nil {
		resp, err := h.failure(req, "wizard", err)
		return nil, resp, err
	}
	if w.Step != step {
		return nil, toast(textStepPassed), nil
	}
	return w, nil, nil
}

func (h *Handlers) saveStep(ctx context.Context, req Request, w *session.Wizard, resp *Response) (*Response, error) {
	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		return h.failure(req, "wizard", err)
	}
	return resp, nil
}

func submission(req Request, d session.Draft) command.ProfileSubmission {
	return command.ProfileSubmission{
		UserID:    req.UserID,
		Username:  req.Username,
		Name:      d.Name,
		Age:       d.Age,
		Region:    d.Region,
		Platform:  d.Platform,
		About:     d.About,
		Interests: append([]string(nil), d.Interests...),
	}
}

func parseAge(text string) (int, bool) {
	if strings.EqualFold(text, presenter.SkipWord) {
		return 0, true
	}
	age, err := strconv.Atoi(text)
	if err != nil || age < profile.MinAge || age > profile.MaxAge {
		return 0, false
	}
	return age, true
}

func (h *Handlers) namePrompt(w *session.Wizard) string {
	return "Как тебя зовут?" + current(w, w.Draft.Name)
}

func (h *Handlers) regionPrompt(w *session.Wizard) string {
	return "🌍 Выбери регион:" + current(w, w.Draft.Region)
}

func (h *Handlers) platformPrompt(w *session.Wizard) string {
	return "🎮 На какой платформе играешь?" + current(w, w.Draft.Platform)
}

func (h *Handlers) agePrompt(w *session.Wizard) string {
	age := ""
	if w.Draft.Age > 0 {
		age = strconv.Itoa(w.Draft.Age)
	}
	return fmt.Sprintf("🎂 Сколько тебе лет? Напиши число от %d до %d или «%s».", profile.MinAge, profile.MaxAge, presenter.SkipWord) +
		current(w, age)
}

func (h *Handlers) aboutPrompt(w *session.Wizard) string {
	return fmt.Sprintf("📝 Расскажи немного о себе (до %d символов) или напиши «%s».", profile.MaxAboutLength, presenter.SkipWord) +
		current(w, w.Draft.About)
}

func (h *Handlers) interestsPrompt() string {
	return "🎲 Выбери интересы (можно несколько), затем нажми «✅ Готово»."
}

// current shows the existing value while editing.
func current(w *session.Wizard, value string) string {
	if !w.Editing || value == "" {
		return ""
	}
	return "\n(сейчас: " + escape(value) + ")"
}

func escape(s string) string {
	return html.EscapeString(s)
}
