package command

import (
	"context"
	"fmt"
	"time"

	"github.com/waykegoat/MATCH/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANAGE ATTACHMENTS COMMAND
// Фото анкеты: добавить в конец, удалить по номеру, очистить.
// Не более profile.MaxAttachments; при переполнении ничего не меняется.
// ══════════════════════════════════════════════════════════════════════════════

// AttachmentAction - что сделать с фото.
type AttachmentAction string

const (
	AttachmentAdd    AttachmentAction = "add"
	AttachmentRemove AttachmentAction = "remove"
	AttachmentClear  AttachmentAction = "clear"
)

// ManageAttachmentsCommand contains an attachment change.
type ManageAttachmentsCommand struct {
	ProfileID int64
	Action    AttachmentAction

	// Ref - file_id фото (для add).
	Ref string

	// Index - номер фото с нуля (для remove).
	Index int
}

// Validate validates the command.
func (c ManageAttachmentsCommand) Validate() error {
	if !profile.ID(c.ProfileID).IsValid() {
		return profile.ErrInvalidProfileID
	}
	switch c.Action {
	case AttachmentAdd, AttachmentRemove, AttachmentClear:
		return nil
	default:
		return fmt.Errorf("unknown attachment action %q", c.Action)
	}
}

// ManageAttachmentsResult contains the attachment list after the change.
type ManageAttachmentsResult struct {
	Attachments []string

	// Removed - удалённые file_id (remove, clear).
	Removed []string

	// SlotsLeft - сколько ещё фото можно добавить.
	SlotsLeft int
}

// ManageAttachmentsHandler handles the ManageAttachmentsCommand.
type ManageAttachmentsHandler struct {
	repo profile.Repository
	now  func() time.Time
}

// NewManageAttachmentsHandler creates a new ManageAttachmentsHandler.
func NewManageAttachmentsHandler(repo profile.Repository) *ManageAttachmentsHandler {
	return &ManageAttachmentsHandler{repo: repo, now: time.Now}
}

// Handle executes the command.
func (h *ManageAttachmentsHandler) Handle(ctx context.Context, cmd ManageAttachmentsCommand) (*ManageAttachmentsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("manage_attachments: validation failed: %w", err)
	}

	now := h.now()
	var removed []string

	p, err := h.repo.Update(ctx, profile.ID(cmd.ProfileID), func(p *profile.Profile) error {
		removed = nil
		switch cmd.Action {
		case AttachmentAdd:
			return p.AddAttachment(cmd.Ref, now)
		case AttachmentRemove:
			ref, err := p.RemoveAttachment(cmd.Index, now)
			if err != nil {
				return err
			}
			removed = []string{ref}
		case AttachmentClear:
			removed = append([]string(nil), p.Attachments...)
			p.ClearAttachments(now)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("manage_attachments: %s: %w", cmd.Action, err)
	}

	return &ManageAttachmentsResult{
		Attachments: p.Attachments,
		Removed:     removed,
		SlotsLeft:   p.AttachmentSlotsLeft(),
	}, nil
}
