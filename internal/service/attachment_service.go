package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AttachmentInput references a stored file for a ticket.
type AttachmentInput struct {
	TicketID string `json:"ticket_id" validate:"required"`
	FileRef  string `json:"file_ref" validate:"required,max=255"`
}

// AttachmentService manages ticket attachment records.
type AttachmentService struct {
	store repository.Store
}

// NewAttachmentService builds the service.
func NewAttachmentService(store repository.Store) *AttachmentService {
	return &AttachmentService{store: store}
}

// Create attaches a file reference to an existing ticket.
func (s *AttachmentService) Create(ctx context.Context, actor *domain.Actor, input AttachmentInput) (*domain.TicketAttachment, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	input.TicketID = strings.TrimSpace(input.TicketID)
	input.FileRef = strings.TrimSpace(input.FileRef)
	if err := apperrors.ValidateStruct(input); err != nil {
		return nil, err
	}
	if err := requireID("ticket", input.TicketID); err != nil {
		return nil, err
	}

	attachment := &domain.TicketAttachment{TicketID: input.TicketID, FileRef: input.FileRef}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		if _, err := repos.Tickets.GetByID(ctx, input.TicketID); err != nil {
			return apperrors.MapNotFound(err, "ticket", input.TicketID)
		}
		return repos.Attachments.Create(ctx, attachment)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachment, nil
}

// Update replaces the attachment's file reference and, when given, its ticket.
func (s *AttachmentService) Update(ctx context.Context, actor *domain.Actor, id string, ticketID, fileRef *string) (*domain.TicketAttachment, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket attachment", id); err != nil {
		return nil, err
	}
	if fileRef != nil && strings.TrimSpace(*fileRef) == "" {
		return nil, apperrors.NewFieldError("file_ref", "this field is required")
	}

	var attachment *domain.TicketAttachment
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		attachment, err = repos.Attachments.GetByID(ctx, id)
		if err != nil {
			return apperrors.MapNotFound(err, "ticket attachment", id)
		}
		if ticketID != nil && *ticketID != attachment.TicketID {
			if err := requireID("ticket", *ticketID); err != nil {
				return err
			}
			if _, err := repos.Tickets.GetByID(ctx, *ticketID); err != nil {
				return apperrors.MapNotFound(err, "ticket", *ticketID)
			}
			attachment.TicketID = *ticketID
		}
		if fileRef != nil {
			attachment.FileRef = strings.TrimSpace(*fileRef)
		}
		return repos.Attachments.Update(ctx, attachment)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return attachment, nil
}

// Delete removes an attachment record.
func (s *AttachmentService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	if !actor.Authenticated() {
		return errAuthRequired
	}
	if err := requireID("ticket attachment", id); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Attachments.Delete(ctx, id)
	})
	return apperrors.MapNotFound(err, "ticket attachment", id)
}

// Get loads one attachment.
func (s *AttachmentService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.TicketAttachment, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket attachment", id); err != nil {
		return nil, err
	}
	attachment, err := s.store.Repos().Attachments.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapNotFound(err, "ticket attachment", id)
	}
	return attachment, nil
}

// List returns attachments, optionally only those of one ticket.
func (s *AttachmentService) List(ctx context.Context, actor *domain.Actor, ticketID *string) ([]domain.TicketAttachment, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	repos := s.store.Repos()
	var (
		attachments []domain.TicketAttachment
		err         error
	)
	if ticketID != nil {
		if _, parseErr := uuid.Parse(*ticketID); parseErr != nil {
			return []domain.TicketAttachment{}, nil
		}
		attachments, err = repos.Attachments.ListByTicket(ctx, *ticketID)
	} else {
		attachments, err = repos.Attachments.List(ctx)
	}
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	return attachments, nil
}
