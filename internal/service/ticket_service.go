package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Notifier is told about history entries after they are committed.
type Notifier interface {
	TicketHistoryAdded(ctx context.Context, ticket domain.Ticket, entry domain.TicketHistory)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	store    repository.Store
	notifier Notifier
	logger   *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store    repository.Store
	Notifier Notifier
	Logger   *zap.Logger
}

// TicketCreateInput describes the ticket creation payload. Status is accepted
// for form compatibility but a new ticket always starts open.
type TicketCreateInput struct {
	Priority    domain.TicketPriority
	Category    *string
	Description string
	Status      domain.TicketStatus
}

// TicketUpdateInput overwrites every non-nil field. An empty Category clears it.
type TicketUpdateInput struct {
	Priority    *domain.TicketPriority
	Category    *string
	Description *string
	Status      *domain.TicketStatus
}

// HistoryInput is the payload of a comment or status note.
type HistoryInput struct {
	Comment *string
	Status  *domain.TicketStatus
}

// TicketFilter narrows ticket listings.
type TicketFilter struct {
	CompanyID  *string
	Priority   *domain.TicketPriority
	Status     *domain.TicketStatus
	Category   *string
	SearchTerm *string
	Ordering   string
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		store:    deps.Store,
		notifier: deps.Notifier,
		logger:   logger,
	}
}

// CreateTicket opens a ticket on behalf of the actor and their company.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewFieldError("description", "this field is required")
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewFieldError("priority", "unknown priority")
	}
	category, err := normalizeCategory(input.Category)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		CompanyID:   cloneString(actor.CompanyID()),
		CreatedByID: actor.ID(),
		Priority:    priority,
		Category:    category,
		Description: description,
		Status:      domain.TicketStatusOpen,
	}

	err = s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Tickets.Create(ctx, ticket)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("user_id", ticket.CreatedByID),
		zap.String("priority", string(ticket.Priority)))
	return ticket, nil
}

// UpdateTicket overwrites the supplied fields. It records no history and is
// not restricted to the actor's company.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Actor, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket", ticketID); err != nil {
		return nil, err
	}

	if input.Description != nil && strings.TrimSpace(*input.Description) == "" {
		return nil, apperrors.NewFieldError("description", "this field may not be blank")
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewFieldError("priority", "unknown priority")
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "unknown status")
	}
	var category *string
	if input.Category != nil {
		var err error
		if category, err = normalizeCategory(input.Category); err != nil {
			return nil, err
		}
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = repos.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return apperrors.MapNotFound(err, "ticket", ticketID)
		}
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		if input.Category != nil {
			ticket.Category = category
		}
		if input.Description != nil {
			ticket.Description = strings.TrimSpace(*input.Description)
		}
		if input.Status != nil {
			ticket.Status = *input.Status
		}
		return repos.Tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, apperrors.MapNotFound(err, "ticket", ticketID)
	}
	return ticket, nil
}

// AddHistoryEntry appends a comment or status note. The ticket's own status
// is left untouched. Entries carrying a status notify the ticket creator once
// the transaction has committed.
func (s *TicketService) AddHistoryEntry(ctx context.Context, actor *domain.Actor, ticketID string, input HistoryInput) (*domain.TicketHistory, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket", ticketID); err != nil {
		return nil, err
	}
	if input.Status != nil && !input.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "unknown status")
	}

	userID := actor.ID()
	entry := &domain.TicketHistory{
		TicketID: ticketID,
		UserID:   &userID,
		Comment:  input.Comment,
		Status:   input.Status,
	}

	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		ticket, err = repos.Tickets.GetByID(ctx, ticketID)
		if err != nil {
			return apperrors.MapNotFound(err, "ticket", ticketID)
		}
		return repos.Histories.Create(ctx, entry)
	})
	if err != nil {
		return nil, apperrors.MapNotFound(err, "ticket", ticketID)
	}

	if entry.Status != nil && s.notifier != nil {
		s.notifier.TicketHistoryAdded(ctx, *ticket, *entry)
	}
	return entry, nil
}

// ListTickets returns the tickets visible to the actor: their company's when
// they belong to one, every ticket otherwise.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.Actor, filter TicketFilter) ([]domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	filter.CompanyID = cloneString(actor.CompanyID())
	return s.list(ctx, filter)
}

// SearchTickets backs the API collection, which is not scoped to the actor's company.
func (s *TicketService) SearchTickets(ctx context.Context, actor *domain.Actor, filter TicketFilter) ([]domain.Ticket, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if filter.CompanyID != nil {
		if _, err := uuid.Parse(*filter.CompanyID); err != nil {
			return []domain.Ticket{}, nil
		}
	}
	return s.list(ctx, filter)
}

func (s *TicketService) list(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	if filter.Priority != nil && !filter.Priority.Valid() {
		return nil, apperrors.NewFieldError("priority", "unknown priority")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperrors.NewFieldError("status", "unknown status")
	}
	if !repository.ValidOrdering(filter.Ordering) {
		return nil, apperrors.NewFieldError("ordering", "unsupported ordering")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperrors.NewValidationError("pagination values must not be negative", nil)
	}

	tickets, err := s.store.Repos().Tickets.ListWithFilter(ctx, repository.TicketFilter{
		CompanyID:  filter.CompanyID,
		Priority:   filter.Priority,
		Status:     filter.Status,
		Category:   filter.Category,
		SearchTerm: filter.SearchTerm,
		Ordering:   filter.Ordering,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket loads a ticket with its histories, attachments and related
// records. Any authenticated actor may view any ticket.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.TicketDetail, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket", ticketID); err != nil {
		return nil, err
	}

	repos := s.store.Repos()
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapNotFound(err, "ticket", ticketID)
	}
	histories, err := repos.Histories.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	attachments, err := repos.Attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	detail := &domain.TicketDetail{
		Ticket:         *ticket,
		Histories:      histories,
		Attachments:    attachments,
		HistoryAuthors: map[string]string{},
	}

	ids := []string{ticket.CreatedByID}
	if ticket.AssignedToID != nil {
		ids = append(ids, *ticket.AssignedToID)
	}
	for _, h := range histories {
		if h.UserID != nil {
			ids = append(ids, *h.UserID)
		}
	}
	users, err := repos.Users.ListByIDs(ctx, uniqueStrings(ids))
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for i := range users {
		u := users[i]
		detail.HistoryAuthors[u.ID] = u.Username
		if u.ID == ticket.CreatedByID {
			detail.CreatedBy = &u
		}
		if ticket.AssignedToID != nil && u.ID == *ticket.AssignedToID {
			detail.AssignedTo = &u
		}
	}

	if ticket.CompanyID != nil {
		company, err := repos.Companies.GetByID(ctx, *ticket.CompanyID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		detail.Company = company
	}
	return detail, nil
}

// DeleteTicket removes a ticket; its histories and attachments cascade.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.Actor, ticketID string) error {
	if !actor.Authenticated() {
		return errAuthRequired
	}
	if err := requireID("ticket", ticketID); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Tickets.Delete(ctx, ticketID)
	})
	if err != nil {
		return apperrors.MapNotFound(err, "ticket", ticketID)
	}
	s.logger.Info("ticket deleted", zap.String("ticket_id", ticketID), zap.String("user_id", actor.ID()))
	return nil
}

// ListHistories returns history entries newest first, optionally for one ticket.
func (s *TicketService) ListHistories(ctx context.Context, actor *domain.Actor, filter repository.HistoryFilter) ([]domain.TicketHistory, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if filter.TicketID != nil {
		if _, err := uuid.Parse(*filter.TicketID); err != nil {
			return []domain.TicketHistory{}, nil
		}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, apperrors.NewValidationError("pagination values must not be negative", nil)
	}
	histories, err := s.store.Repos().Histories.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return histories, nil
}

// GetHistory loads one history entry.
func (s *TicketService) GetHistory(ctx context.Context, actor *domain.Actor, historyID string) (*domain.TicketHistory, error) {
	if !actor.Authenticated() {
		return nil, errAuthRequired
	}
	if err := requireID("ticket history", historyID); err != nil {
		return nil, err
	}
	history, err := s.store.Repos().Histories.GetByID(ctx, historyID)
	if err != nil {
		return nil, apperrors.MapNotFound(err, "ticket history", historyID)
	}
	return history, nil
}

func normalizeCategory(category *string) (*string, error) {
	if category == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*category)
	if trimmed == "" {
		return nil, nil
	}
	if len([]rune(trimmed)) > domain.MaxCategoryLength {
		return nil, apperrors.NewFieldError("category", "must be at most 50 characters")
	}
	return &trimmed, nil
}
