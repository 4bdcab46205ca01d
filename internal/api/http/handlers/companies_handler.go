package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// CompaniesHandler exposes company administration.
type CompaniesHandler struct {
	service *service.CompanyService
}

// NewCompaniesHandler constructs handler.
func NewCompaniesHandler(companyService *service.CompanyService) *CompaniesHandler {
	return &CompaniesHandler{service: companyService}
}

// List GET /api/companies.
func (h *CompaniesHandler) List(c *fiber.Ctx) error {
	companies, err := h.service.List(c.UserContext(), auth.ActorFromContext(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyList(companies)})
}

// Create POST /api/companies.
func (h *CompaniesHandler) Create(c *fiber.Ctx) error {
	var req service.CompanyInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	company, err := h.service.Create(c.UserContext(), auth.ActorFromContext(c), req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Get GET /api/companies/:id.
func (h *CompaniesHandler) Get(c *fiber.Ctx) error {
	company, err := h.service.Get(c.UserContext(), auth.ActorFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Replace PUT /api/companies/:id.
func (h *CompaniesHandler) Replace(c *fiber.Ctx) error {
	var req service.CompanyInput
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	company, err := h.service.Replace(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Update PATCH /api/companies/:id.
func (h *CompaniesHandler) Update(c *fiber.Ctx) error {
	var req service.CompanyPatch
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	company, err := h.service.Update(c.UserContext(), auth.ActorFromContext(c), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCompanyResponse(company)})
}

// Delete DELETE /api/companies/:id.
func (h *CompaniesHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), auth.ActorFromContext(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
