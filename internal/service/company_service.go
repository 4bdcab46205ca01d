package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// Permissions decides whether a role may act on a resource.
type Permissions interface {
	Allowed(role domain.Role, resource, action string) (bool, error)
}

// CompanyInput is the full set of company fields.
type CompanyInput struct {
	Name    string `json:"name" validate:"required,max=255"`
	TaxID   string `json:"tax_id" validate:"required,max=20"`
	Address string `json:"address" validate:"max=255"`
	Phone   string `json:"phone" validate:"max=20"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Active  *bool  `json:"active"`
}

// CompanyPatch overwrites the non-nil fields.
type CompanyPatch struct {
	Name    *string `json:"name" validate:"omitempty,max=255"`
	TaxID   *string `json:"tax_id" validate:"omitempty,max=20"`
	Address *string `json:"address" validate:"omitempty,max=255"`
	Phone   *string `json:"phone" validate:"omitempty,max=20"`
	Email   *string `json:"email" validate:"omitempty,email,max=254"`
	Active  *bool   `json:"active"`
}

// CompanyService administers tenants. Writes are reserved to admins.
type CompanyService struct {
	store       repository.Store
	permissions Permissions
	logger      *zap.Logger
}

// NewCompanyService builds the service.
func NewCompanyService(store repository.Store, permissions Permissions, logger *zap.Logger) *CompanyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompanyService{store: store, permissions: permissions, logger: logger}
}

// Create registers a company. Duplicate tax ids or emails conflict.
func (s *CompanyService) Create(ctx context.Context, actor *domain.Actor, input CompanyInput) (*domain.Company, error) {
	if err := s.authorize(actor, auth.ActionWrite); err != nil {
		return nil, err
	}
	input = trimCompanyInput(input)
	if err := apperrors.ValidateStruct(input); err != nil {
		return nil, err
	}

	company := &domain.Company{
		Name:    input.Name,
		TaxID:   input.TaxID,
		Address: input.Address,
		Phone:   input.Phone,
		Email:   input.Email,
		Active:  input.Active == nil || *input.Active,
	}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Companies.Create(ctx, company)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("company created", zap.String("company_id", company.ID), zap.String("user_id", actor.ID()))
	return company, nil
}

// Replace overwrites every company field.
func (s *CompanyService) Replace(ctx context.Context, actor *domain.Actor, id string, input CompanyInput) (*domain.Company, error) {
	if err := s.authorize(actor, auth.ActionWrite); err != nil {
		return nil, err
	}
	input = trimCompanyInput(input)
	if err := apperrors.ValidateStruct(input); err != nil {
		return nil, err
	}
	return s.Update(ctx, actor, id, CompanyPatch{
		Name:    &input.Name,
		TaxID:   &input.TaxID,
		Address: &input.Address,
		Phone:   &input.Phone,
		Email:   &input.Email,
		Active:  input.Active,
	})
}

// Update applies a partial change.
func (s *CompanyService) Update(ctx context.Context, actor *domain.Actor, id string, patch CompanyPatch) (*domain.Company, error) {
	if err := s.authorize(actor, auth.ActionWrite); err != nil {
		return nil, err
	}
	if err := requireID("company", id); err != nil {
		return nil, err
	}
	patch = trimCompanyPatch(patch)
	if err := apperrors.ValidateStruct(patch); err != nil {
		return nil, err
	}
	for field, value := range map[string]*string{"name": patch.Name, "tax_id": patch.TaxID, "email": patch.Email} {
		if value != nil && *value == "" {
			return nil, apperrors.NewFieldError(field, "this field may not be blank")
		}
	}

	var company *domain.Company
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		company, err = repos.Companies.GetByID(ctx, id)
		if err != nil {
			return apperrors.MapNotFound(err, "company", id)
		}
		applyCompanyPatch(company, patch)
		return repos.Companies.Update(ctx, company)
	})
	if err != nil {
		return nil, apperrors.MapNotFound(err, "company", id)
	}
	return company, nil
}

// Delete removes a company together with its profiles and tickets.
func (s *CompanyService) Delete(ctx context.Context, actor *domain.Actor, id string) error {
	if err := s.authorize(actor, auth.ActionWrite); err != nil {
		return err
	}
	if err := requireID("company", id); err != nil {
		return err
	}
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		return repos.Companies.Delete(ctx, id)
	})
	if err != nil {
		return apperrors.MapNotFound(err, "company", id)
	}
	s.logger.Info("company deleted", zap.String("company_id", id), zap.String("user_id", actor.ID()))
	return nil
}

// Get loads one company.
func (s *CompanyService) Get(ctx context.Context, actor *domain.Actor, id string) (*domain.Company, error) {
	if err := s.authorize(actor, auth.ActionRead); err != nil {
		return nil, err
	}
	if err := requireID("company", id); err != nil {
		return nil, err
	}
	company, err := s.store.Repos().Companies.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapNotFound(err, "company", id)
	}
	return company, nil
}

// List returns companies ordered by name.
func (s *CompanyService) List(ctx context.Context, actor *domain.Actor) ([]domain.Company, error) {
	if err := s.authorize(actor, auth.ActionRead); err != nil {
		return nil, err
	}
	return s.listCompanies(ctx, false)
}

// ListActive returns the active companies. It needs no actor because the
// sign-up form offers them before anyone is signed in.
func (s *CompanyService) ListActive(ctx context.Context) ([]domain.Company, error) {
	return s.listCompanies(ctx, true)
}

func (s *CompanyService) listCompanies(ctx context.Context, activeOnly bool) ([]domain.Company, error) {
	companies, err := s.store.Repos().Companies.List(ctx, activeOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return companies, nil
}

func (s *CompanyService) authorize(actor *domain.Actor, action string) error {
	if !actor.Authenticated() {
		return errAuthRequired
	}
	if s.permissions == nil {
		return nil
	}
	ok, err := s.permissions.Allowed(actor.Role(), auth.ResourceCompanies, action)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if !ok {
		return apperrors.NewForbidden("only administrators may change companies")
	}
	return nil
}

func trimCompanyInput(in CompanyInput) CompanyInput {
	in.Name = strings.TrimSpace(in.Name)
	in.TaxID = strings.TrimSpace(in.TaxID)
	in.Address = strings.TrimSpace(in.Address)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

func trimCompanyPatch(p CompanyPatch) CompanyPatch {
	for _, field := range []**string{&p.Name, &p.TaxID, &p.Address, &p.Phone, &p.Email} {
		if *field != nil {
			v := strings.TrimSpace(**field)
			*field = &v
		}
	}
	return p
}

func applyCompanyPatch(c *domain.Company, p CompanyPatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.TaxID != nil {
		c.TaxID = *p.TaxID
	}
	if p.Address != nil {
		c.Address = *p.Address
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Active != nil {
		c.Active = *p.Active
	}
}
