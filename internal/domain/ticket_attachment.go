package domain

import "time"

// TicketAttachment references a stored file owned by a ticket.
type TicketAttachment struct {
	ID         string
	TicketID   string
	FileRef    string
	UploadedAt time.Time
}
