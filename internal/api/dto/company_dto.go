package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyResponse is the company representation.
type CompanyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TaxID     string    `json:"tax_id"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCompanyResponse maps a company.
func NewCompanyResponse(c *domain.Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID,
		Name:      c.Name,
		TaxID:     c.TaxID,
		Address:   c.Address,
		Phone:     c.Phone,
		Email:     c.Email,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewCompanyList maps companies.
func NewCompanyList(companies []domain.Company) []CompanyResponse {
	items := make([]CompanyResponse, 0, len(companies))
	for i := range companies {
		items = append(items, NewCompanyResponse(&companies[i]))
	}
	return items
}
