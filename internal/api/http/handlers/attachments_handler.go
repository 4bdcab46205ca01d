package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// AttachmentsHandler exposes ticket attachment records.
type AttachmentsHandler struct {
	service *service.AttachmentService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(attachmentService *service.AttachmentService) *AttachmentsHandler {
	return &AttachmentsHandler{service: attachmentService}
}

// List GET /api/ticket-attachments.
func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	attachments, err := h.service.List(c.UserContext(), auth.ActorFromContext(c), queryString(c, "ticket"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentList(attachments)})
}

// Create POST /api/ticket-attachments.
func (h *AttachmentsHandler) Create(c *fiber.Ctx) error {
	var req dto.AttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	input := service.AttachmentInput{}
	if req.TicketID != nil {
		input.TicketID = *req.TicketID
	}
	if req.FileRef != nil {
		input.FileRef = *req.FileRef
	}
	attachment, err := h.service.Create(c.UserContext(), auth.ActorFromContext(c), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Get GET /api/ticket-attachments/:id.
func (h *AttachmentsHandler) Get(c *fiber.Ctx) error {
	attachment, err := h.service.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Update PUT and PATCH /api/ticket-attachments/:id. PUT requires file_ref.
func (h *AttachmentsHandler) Update(c *fiber.Ctx) error {
	var req dto.AttachmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if c.Method() == fiber.MethodPut && req.FileRef == nil {
		return apperrors.NewFieldError("file_ref", "this field is required")
	}
	attachment, err := h.service.Update(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req.TicketID, req.FileRef)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAttachmentResponse(attachment)})
}

// Delete DELETE /api/ticket-attachments/:id.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
