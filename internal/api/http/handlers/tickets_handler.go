package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler serves the ticket collection of the JSON API.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.SearchTickets(c.UserContext(), auth.ActorFromContext(c), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.CreateTicket(c.UserContext(), auth.ActorFromContext(c), service.TicketCreateInput{
		Priority:    req.Priority,
		Category:    req.Category,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.service.GetTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(detail)})
}

// UpdateTicket PUT and PATCH /api/tickets/:id. PUT requires a description.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.UpdateTicketRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if c.Method() == fiber.MethodPut && req.Description == nil {
		return apperrors.NewFieldError("description", "this field is required")
	}
	ticket, err := h.service.UpdateTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), service.TicketUpdateInput{
		Priority:    req.Priority,
		Category:    req.Category,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	if err := h.service.DeleteTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddComment POST /api/tickets/:id/add_comment.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	var req dto.AddCommentRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	entry, err := h.service.AddHistoryEntry(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), service.HistoryInput{
		Comment: req.Comment,
		Status:  req.Status,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewHistoryResponse(entry)})
}

// ListHistories GET /api/ticket-histories.
func (h *TicketsHandler) ListHistories(c *fiber.Ctx) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return err
	}
	histories, err := h.service.ListHistories(c.UserContext(), auth.ActorFromContext(c), repository.HistoryFilter{
		TicketID: queryString(c, "ticket"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryList(histories)})
}

// GetHistory GET /api/ticket-histories/:id.
func (h *TicketsHandler) GetHistory(c *fiber.Ctx) error {
	entry, err := h.service.GetHistory(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponse(entry)})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketFilter, error) {
	limit, offset, err := pagination(c)
	if err != nil {
		return service.TicketFilter{}, err
	}
	filter := service.TicketFilter{
		CompanyID:  queryString(c, "company"),
		Category:   queryString(c, "category"),
		SearchTerm: queryString(c, "search"),
		Ordering:   c.Query("ordering"),
		Limit:      limit,
		Offset:     offset,
	}
	if p := queryString(c, "priority"); p != nil {
		priority := domain.TicketPriority(*p)
		filter.Priority = &priority
	}
	if s := queryString(c, "status"); s != nil {
		status := domain.TicketStatus(*s)
		filter.Status = &status
	}
	return filter, nil
}
