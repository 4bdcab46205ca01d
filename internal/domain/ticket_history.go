package domain

import "time"

// TicketHistory is an immutable comment/status event on a ticket.
// UserID is nil once the author has been deleted.
type TicketHistory struct {
	ID        string
	TicketID  string
	UserID    *string
	Comment   *string
	Status    *TicketStatus
	CreatedAt time.Time
}
