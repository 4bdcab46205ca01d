package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// TicketStatuses lists statuses in display order.
var TicketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusPending,
	TicketStatusResolved,
	TicketStatusClosed,
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	for _, known := range TicketStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityLow    TicketPriority = "low"
)

// TicketPriorities lists priorities in display order.
var TicketPriorities = []TicketPriority{
	TicketPriorityHigh,
	TicketPriorityMedium,
	TicketPriorityLow,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	for _, known := range TicketPriorities {
		if p == known {
			return true
		}
	}
	return false
}

// MaxCategoryLength bounds the free-text category.
const MaxCategoryLength = 50

// Ticket is the aggregate for support requests. CompanyID is fixed at creation.
type Ticket struct {
	ID           string
	CompanyID    *string
	CreatedByID  string
	AssignedToID *string
	Priority     TicketPriority
	Category     *string
	Description  string
	Status       TicketStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TicketDetail bundles a ticket with its owned records.
type TicketDetail struct {
	Ticket         Ticket
	CreatedBy      *User
	AssignedTo     *User
	Company        *Company
	Histories      []TicketHistory
	Attachments    []TicketAttachment
	HistoryAuthors map[string]string
}
