package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/waykegoat/MATCH/internal/application/command"
	"github.com/waykegoat/MATCH/internal/application/query"
	"github.com/waykegoat/MATCH/internal/domain/profile"
	"github.com/waykegoat/MATCH/internal/interface/telegram/presenter"
	"github.com/waykegoat/MATCH/internal/interface/telegram/session"
	"github.com/waykegoat/MATCH/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PHOTOS
// До profile.MaxAttachments фото. Загрузка идёт через шаг StepPhotos сессии.
// ══════════════════════════════════════════════════════════════════════════════

const textPhotosDisabled = "📸 Загрузка фото временно отключена."

var textPhotoLimit = fmt.Sprintf("❌ Можно загрузить максимум %d фото.", profile.MaxAttachments)

// ManagePhotos handles manage_photos.
func (h *Handlers) ManagePhotos(ctx context.Context, req Request) (*Response, error) {
	if !h.photoUploadsEnabled() {
		return h.maybeToast(req, textPhotosDisabled), nil
	}

	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "manage_photos", err)
	}
	return reply(photosText(len(p.Attachments)), h.keyboards.PhotosKeyboard(len(p.Attachments))), nil
}

// AddPhoto handles add_photo: waits for the next photo message.
func (h *Handlers) AddPhoto(ctx context.Context, req Request) (*Response, error) {
	if !h.photoUploadsEnabled() {
		return h.maybeToast(req, textPhotosDisabled), nil
	}

	w := session.NewWizard(req.UserID, session.StepPhotos, h.now())
	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		return h.failure(req, "add_photo", err)
	}
	return reply("📸 Отправь фото сообщением. Можно несколько подряд.", h.photosDoneKeyboard()), nil
}

// Photo handles an incoming photo message.
func (h *Handlers) Photo(ctx context.Context, req Request) (*Response, error) {
	w, err := h.deps.Sessions.Get(ctx, req.UserID)
	if errors.Is(err, session.ErrNoSession) || (err == nil && w.Step != session.StepPhotos) {
		return reply("Чтобы добавить фото, открой 📝 Моя анкета → 📸 Фото.", nil), nil
	}
	if err != nil {
		return h.failure(req, "photo", err)
	}
	if !h.photoUploadsEnabled() {
		_ = h.deps.Sessions.Drop(ctx, req.UserID)
		return reply(textPhotosDisabled, nil), nil
	}

	res, err := h.deps.Attachments.Handle(ctx, command.ManageAttachmentsCommand{
		ProfileID: req.UserID,
		Action:    command.AttachmentAdd,
		Ref:       req.PhotoID,
	})
	switch {
	case err == nil:
	case errors.Is(err, profile.ErrAttachmentLimit):
		h.dropSession(ctx, req.UserID)
		return reply(textPhotoLimit, h.keyboards.PhotosKeyboard(profile.MaxAttachments)), nil
	default:
		return h.failure(req, "photo", err)
	}

	if res.SlotsLeft == 0 {
		h.dropSession(ctx, req.UserID)
		return reply(fmt.Sprintf("✅ Фото добавлено. Загружено максимум: %d.", profile.MaxAttachments),
			h.keyboards.PhotosKeyboard(len(res.Attachments))), nil
	}

	w.UpdatedAt = h.now()
	if err := h.deps.Sessions.Put(ctx, w); err != nil {
		return h.failure(req, "photo", err)
	}
	return reply(fmt.Sprintf("✅ Фото добавлено (%d/%d). Отправь ещё или нажми «✅ Готово».",
		len(res.Attachments), profile.MaxAttachments), h.photosDoneKeyboard()), nil
}

// DeletePhoto handles delete_photo_<i>.
func (h *Handlers) DeletePhoto(ctx context.Context, req Request) (*Response, error) {
	i, ok := presenter.IndexSuffix(req.Text, presenter.CbDeletePhoto)
	if !ok {
		return toast("⚠️ Неизвестное фото"), nil
	}
	return h.changePhotos(ctx, req, command.ManageAttachmentsCommand{
		ProfileID: req.UserID,
		Action:    command.AttachmentRemove,
		Index:     i,
	}, "🗑 Фото удалено")
}

// DeleteAllPhotos handles delete_all_photos.
func (h *Handlers) DeleteAllPhotos(ctx context.Context, req Request) (*Response, error) {
	return h.changePhotos(ctx, req, command.ManageAttachmentsCommand{
		ProfileID: req.UserID,
		Action:    command.AttachmentClear,
	}, "🗑 Все фото удалены")
}

// PhotosDone handles photos_done: ends the upload and shows the card.
func (h *Handlers) PhotosDone(ctx context.Context, req Request) (*Response, error) {
	h.dropSession(ctx, req.UserID)

	p, err := h.deps.GetProfile.Handle(ctx, query.GetProfileQuery{ProfileID: req.UserID})
	if err != nil {
		return h.failure(req, "photos_done", err)
	}
	return &Response{Replies: []Reply{card(h.cards.OwnProfile(p))}}, nil
}

func (h *Handlers) changePhotos(ctx context.Context, req Request, cmd command.ManageAttachmentsCommand, done string) (*Response, error) {
	res, err := h.deps.Attachments.Handle(ctx, cmd)
	if errors.Is(err, profile.ErrAttachmentIndex) {
		return toast("⚠️ Такого фото уже нет"), nil
	}
	if err != nil {
		return h.failure(req, "change_photos", err)
	}

	resp := edit(photosText(len(res.Attachments)), h.keyboards.PhotosKeyboard(len(res.Attachments)))
	resp.Toast = done
	return resp, nil
}

func (h *Handlers) photosDoneKeyboard() *presenter.InlineKeyboard {
	return presenter.NewInlineKeyboard().AddRow(presenter.CallbackButton("✅ Готово", presenter.CbPhotosDone))
}

func (h *Handlers) dropSession(ctx context.Context, userID int64) {
	if err := h.deps.Sessions.Drop(ctx, userID); err != nil {
		h.logger.Warn("failed to drop session", "telegram_id", userID, logger.Err(err))
	}
}

func photosText(count int) string {
	if count == 0 {
		return fmt.Sprintf("📸 Фото пока нет. Можно добавить до %d.", profile.MaxAttachments)
	}
	return fmt.Sprintf("📸 Фото: %d/%d. Нажми на номер, чтобы удалить.", count, profile.MaxAttachments)
}
