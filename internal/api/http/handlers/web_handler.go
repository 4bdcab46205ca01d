package handlers

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/web"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// CSRFContextKey is where the csrf middleware leaves the form token.
const CSRFContextKey = "csrf"

// WebHandler serves the server-rendered pages.
type WebHandler struct {
	tickets   *service.TicketService
	companies *service.CompanyService
	auth      *service.AuthService
	cookies   SessionCookies
	logger    *zap.Logger
}

// WebDependencies bundles what the pages need.
type WebDependencies struct {
	Tickets   *service.TicketService
	Companies *service.CompanyService
	Auth      *service.AuthService
	Cookies   SessionCookies
	Logger    *zap.Logger
}

// NewWebHandler constructs handler.
func NewWebHandler(deps WebDependencies) *WebHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebHandler{
		tickets:   deps.Tickets,
		companies: deps.Companies,
		auth:      deps.Auth,
		cookies:   deps.Cookies,
		logger:    logger,
	}
}

type ticketRow struct {
	ID          string
	Description string
	Category    string
	Priority    domain.TicketPriority
	Status      domain.TicketStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type historyRow struct {
	Author    string
	Comment   string
	Status    string
	CreatedAt time.Time
}

type ticketForm struct {
	Priority    string
	Category    string
	Description string
	Status      string
}

// Index GET /.
func (h *WebHandler) Index(c *fiber.Ctx) error {
	actor := auth.ActorFromContext(c)
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, service.TicketFilter{})
	if err != nil {
		return h.renderError(c, err)
	}
	rows := make([]ticketRow, 0, len(tickets))
	for i := range tickets {
		rows = append(rows, newTicketRow(&tickets[i]))
	}
	return h.render(c, http.StatusOK, "index", fiber.Map{"Tickets": rows})
}

// TicketDetail GET /ticket/:id/.
func (h *WebHandler) TicketDetail(c *fiber.Ctx) error {
	detail, err := h.tickets.GetTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return h.renderError(c, err)
	}

	histories := make([]historyRow, 0, len(detail.Histories))
	for _, entry := range detail.Histories {
		row := historyRow{Author: "-", CreatedAt: entry.CreatedAt}
		if entry.UserID != nil {
			if name, ok := detail.HistoryAuthors[*entry.UserID]; ok {
				row.Author = name
			}
		}
		if entry.Comment != nil {
			row.Comment = *entry.Comment
		}
		if entry.Status != nil {
			row.Status = string(*entry.Status)
		}
		histories = append(histories, row)
	}

	data := fiber.Map{
		"Ticket":      newTicketRow(&detail.Ticket),
		"Histories":   histories,
		"Attachments": detail.Attachments,
	}
	if detail.Company != nil {
		data["Company"] = detail.Company.Name
	}
	if detail.CreatedBy != nil {
		data["CreatedBy"] = detail.CreatedBy.Username
	}
	if detail.AssignedTo != nil {
		data["AssignedTo"] = detail.AssignedTo.Username
	}
	return h.render(c, http.StatusOK, "ticket_detail", data)
}

// NewTicketForm GET /ticket/novo/.
func (h *WebHandler) NewTicketForm(c *fiber.Ctx) error {
	return h.renderTicketForm(c, http.StatusOK, "", ticketForm{Priority: string(domain.TicketPriorityMedium)}, nil)
}

// CreateTicket POST /ticket/novo/.
func (h *WebHandler) CreateTicket(c *fiber.Ctx) error {
	form := readTicketForm(c)
	_, err := h.tickets.CreateTicket(c.UserContext(), auth.ActorFromContext(c), service.TicketCreateInput{
		Priority:    domain.TicketPriority(form.Priority),
		Category:    &form.Category,
		Description: form.Description,
		Status:      domain.TicketStatus(form.Status),
	})
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeValidation) {
			return h.renderTicketForm(c, http.StatusBadRequest, "", form, err)
		}
		return h.renderError(c, err)
	}
	return c.Redirect("/", fiber.StatusFound)
}

// EditTicketForm GET /ticket/:id/editar/.
func (h *WebHandler) EditTicketForm(c *fiber.Ctx) error {
	detail, err := h.tickets.GetTicket(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return h.renderError(c, err)
	}
	t := detail.Ticket
	form := ticketForm{Priority: string(t.Priority), Description: t.Description, Status: string(t.Status)}
	if t.Category != nil {
		form.Category = *t.Category
	}
	return h.renderTicketForm(c, http.StatusOK, t.ID, form, nil)
}

// UpdateTicket POST /ticket/:id/editar/. The form always sends every field.
func (h *WebHandler) UpdateTicket(c *fiber.Ctx) error {
	form := readTicketForm(c)
	priority := domain.TicketPriority(form.Priority)
	status := domain.TicketStatus(form.Status)
	input := service.TicketUpdateInput{
		Category:    &form.Category,
		Description: &form.Description,
	}
	if priority != "" {
		input.Priority = &priority
	}
	if status != "" {
		input.Status = &status
	}

	ticketID := c.Params("id")
	if _, err := h.tickets.UpdateTicket(c.UserContext(), auth.ActorFromContext(c), ticketID, input); err != nil {
		if apperrors.IsCode(err, apperrors.CodeValidation) {
			return h.renderTicketForm(c, http.StatusBadRequest, ticketID, form, err)
		}
		return h.renderError(c, err)
	}
	return c.Redirect("/ticket/"+url.PathEscape(ticketID)+"/", fiber.StatusFound)
}

// LoginForm GET /login/.
func (h *WebHandler) LoginForm(c *fiber.Ctx) error {
	if auth.ActorFromContext(c).Authenticated() {
		return c.Redirect(safeNext(c.Query("next")), fiber.StatusFound)
	}
	return h.render(c, http.StatusOK, "login", fiber.Map{"Next": c.Query("next")})
}

// Login POST /login/.
func (h *WebHandler) Login(c *fiber.Ctx) error {
	username := c.FormValue("username")
	next := c.FormValue("next")
	result, err := h.auth.Login(c.UserContext(), username, c.FormValue("password"))
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			return h.render(c, http.StatusUnauthorized, "login", fiber.Map{
				"Next":     next,
				"Username": username,
				"Error":    "Usuário ou senha inválidos.",
			})
		}
		return h.renderError(c, err)
	}
	h.cookies.Set(c, result.Session.Token, result.Session.ExpiresAt)
	return c.Redirect(safeNext(next), fiber.StatusFound)
}

// Logout GET and POST /logout/.
func (h *WebHandler) Logout(c *fiber.Ctx) error {
	if principal, ok := auth.PrincipalFromContext(c); ok {
		h.auth.Logout(c.UserContext(), principal.Claims)
	}
	h.cookies.Clear(c)
	return c.Redirect(auth.LoginPath, fiber.StatusFound)
}

// RegisterForm GET /register/.
func (h *WebHandler) RegisterForm(c *fiber.Ctx) error {
	return h.renderRegisterForm(c, http.StatusOK, fiber.Map{"Username": "", "Email": "", "CompanyID": ""}, nil)
}

// Register POST /register/.
func (h *WebHandler) Register(c *fiber.Ctx) error {
	input := service.RegisterInput{
		Username: c.FormValue("username"),
		Email:    c.FormValue("email"),
		Password: c.FormValue("password"),
	}
	if companyID := c.FormValue("company_id"); companyID != "" {
		input.CompanyID = &companyID
	}
	values := fiber.Map{"Username": input.Username, "Email": input.Email, "CompanyID": c.FormValue("company_id")}

	result, err := h.auth.RegisterUser(c.UserContext(), input)
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeValidation) || apperrors.IsCode(err, apperrors.CodeConflict) {
			return h.renderRegisterForm(c, http.StatusBadRequest, values, err)
		}
		return h.renderError(c, err)
	}
	h.cookies.Set(c, result.Session.Token, result.Session.ExpiresAt)
	return c.Redirect("/", fiber.StatusFound)
}

func (h *WebHandler) renderTicketForm(c *fiber.Ctx, status int, ticketID string, form ticketForm, err error) error {
	data := fiber.Map{
		"Form":       form,
		"TicketID":   ticketID,
		"Priorities": domain.TicketPriorities,
		"Statuses":   domain.TicketStatuses,
		"Errors":     errorDetails(err),
	}
	if ticketID == "" {
		data["Title"] = "Novo ticket"
		data["Action"] = "/ticket/novo/"
	} else {
		data["Title"] = "Editar ticket"
		data["Action"] = "/ticket/" + url.PathEscape(ticketID) + "/editar/"
	}
	return h.render(c, status, "ticket_form", data)
}

func (h *WebHandler) renderRegisterForm(c *fiber.Ctx, status int, values fiber.Map, err error) error {
	companies, listErr := h.companies.ListActive(c.UserContext())
	if listErr != nil {
		return h.renderError(c, listErr)
	}
	data := fiber.Map{"Companies": companies, "Values": values, "Errors": errorDetails(err)}
	if apperrors.IsCode(err, apperrors.CodeConflict) {
		data["Error"] = "Este nome de usuário já está em uso."
	}
	return h.render(c, status, "register", data)
}

func (h *WebHandler) renderError(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code == apperrors.CodeUnauthorized {
		return c.Redirect(auth.LoginPath+"?next="+url.QueryEscape(c.OriginalURL()), fiber.StatusFound)
	}
	if domainErr.HTTPStatus >= http.StatusInternalServerError {
		h.logger.Error("page failed", zap.String("path", c.Path()), zap.Error(domainErr))
	}
	return h.render(c, domainErr.HTTPStatus, "error", fiber.Map{
		"Status":  domainErr.HTTPStatus,
		"Message": domainErr.Message,
	})
}

func (h *WebHandler) render(c *fiber.Ctx, status int, name string, data fiber.Map) error {
	if actor := auth.ActorFromContext(c); actor.Authenticated() {
		data["User"] = actor.User.Username
	}
	if token, ok := c.Locals(CSRFContextKey).(string); ok {
		data["CSRF"] = token
	}
	return c.Status(status).Render(name, data, web.Layout)
}

func readTicketForm(c *fiber.Ctx) ticketForm {
	return ticketForm{
		Priority:    strings.TrimSpace(c.FormValue("priority")),
		Category:    c.FormValue("category"),
		Description: c.FormValue("description"),
		Status:      strings.TrimSpace(c.FormValue("status")),
	}
}

func newTicketRow(t *domain.Ticket) ticketRow {
	row := ticketRow{
		ID:          t.ID,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Category != nil {
		row.Category = *t.Category
	}
	return row
}

func errorDetails(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	domainErr := apperrors.ToDomainError(err)
	if len(domainErr.Details) == 0 {
		return map[string]any{"__all__": domainErr.Message}
	}
	return domainErr.Details
}

// safeNext only allows local redirect targets.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
