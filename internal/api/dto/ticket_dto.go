package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Status is accepted and ignored; tickets start open.
type CreateTicketRequest struct {
	Priority    domain.TicketPriority `json:"priority" form:"priority" validate:"omitempty,oneof=high medium low"`
	Category    *string               `json:"category" form:"category" validate:"omitempty,max=50"`
	Description string                `json:"description" form:"description" validate:"required"`
	Status      domain.TicketStatus   `json:"status" form:"status"`
}

// UpdateTicketRequest payload. Omitted fields keep their stored value.
type UpdateTicketRequest struct {
	Priority    *domain.TicketPriority `json:"priority" validate:"omitempty,oneof=high medium low"`
	Category    *string                `json:"category" validate:"omitempty,max=50"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status" validate:"omitempty,oneof=open in_progress pending resolved closed"`
}

// AddCommentRequest payload for POST /api/tickets/:id/add_comment.
type AddCommentRequest struct {
	Comment *string              `json:"comment"`
	Status  *domain.TicketStatus `json:"status" validate:"omitempty,oneof=open in_progress pending resolved closed"`
}

// TicketResponse is the ticket representation.
type TicketResponse struct {
	ID           string                `json:"id"`
	CompanyID    *string               `json:"company_id"`
	CreatedByID  string                `json:"created_by_id"`
	AssignedToID *string               `json:"assigned_to_id"`
	Priority     domain.TicketPriority `json:"priority"`
	Category     *string               `json:"category"`
	Description  string                `json:"description"`
	Status       domain.TicketStatus   `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// TicketDetailResponse nests histories and attachments.
type TicketDetailResponse struct {
	TicketResponse
	Histories   []HistoryResponse    `json:"histories"`
	Attachments []AttachmentResponse `json:"attachments"`
}

// HistoryResponse is a ticket history entry.
type HistoryResponse struct {
	ID        string               `json:"id"`
	TicketID  string               `json:"ticket_id"`
	UserID    *string              `json:"user_id"`
	Comment   *string              `json:"comment"`
	Status    *domain.TicketStatus `json:"status"`
	CreatedAt time.Time            `json:"created_at"`
}

// AttachmentRequest payload for attachment writes.
type AttachmentRequest struct {
	TicketID *string `json:"ticket_id"`
	FileRef  *string `json:"file_ref"`
}

// AttachmentResponse is a ticket attachment.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	TicketID   string    `json:"ticket_id"`
	FileRef    string    `json:"file_ref"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           t.ID,
		CompanyID:    t.CompanyID,
		CreatedByID:  t.CreatedByID,
		AssignedToID: t.AssignedToID,
		Priority:     t.Priority,
		Category:     t.Category,
		Description:  t.Description,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NewTicketList maps tickets, never returning nil.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewTicketDetailResponse maps a ticket with its owned records.
func NewTicketDetailResponse(d *domain.TicketDetail) TicketDetailResponse {
	return TicketDetailResponse{
		TicketResponse: NewTicketResponse(&d.Ticket),
		Histories:      NewHistoryList(d.Histories),
		Attachments:    NewAttachmentList(d.Attachments),
	}
}

// NewHistoryResponse maps a history entry.
func NewHistoryResponse(h *domain.TicketHistory) HistoryResponse {
	return HistoryResponse{
		ID:        h.ID,
		TicketID:  h.TicketID,
		UserID:    h.UserID,
		Comment:   h.Comment,
		Status:    h.Status,
		CreatedAt: h.CreatedAt,
	}
}

// NewHistoryList maps history entries.
func NewHistoryList(histories []domain.TicketHistory) []HistoryResponse {
	items := make([]HistoryResponse, 0, len(histories))
	for i := range histories {
		items = append(items, NewHistoryResponse(&histories[i]))
	}
	return items
}

// NewAttachmentResponse maps an attachment.
func NewAttachmentResponse(a *domain.TicketAttachment) AttachmentResponse {
	return AttachmentResponse{ID: a.ID, TicketID: a.TicketID, FileRef: a.FileRef, UploadedAt: a.UploadedAt}
}

// NewAttachmentList maps attachments.
func NewAttachmentList(attachments []domain.TicketAttachment) []AttachmentResponse {
	items := make([]AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, NewAttachmentResponse(&attachments[i]))
	}
	return items
}
