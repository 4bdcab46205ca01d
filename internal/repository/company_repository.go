package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CompanyRepository manages company persistence.
type CompanyRepository interface {
	Create(ctx context.Context, company *domain.Company) error
	Update(ctx context.Context, company *domain.Company) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Company, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Company, error)
}

type companyRepository struct {
	db DBTX
}

// NewCompanyRepository builds the repository.
func NewCompanyRepository(db DBTX) CompanyRepository {
	return &companyRepository{db: db}
}

const companyColumns = `id, name, tax_id, address, phone, email, active, created_at, updated_at`

func (r *companyRepository) Create(ctx context.Context, company *domain.Company) error {
	const query = `
        INSERT INTO companies (name, tax_id, address, phone, email, active)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		company.Name,
		company.TaxID,
		company.Address,
		company.Phone,
		company.Email,
		company.Active,
	).Scan(&company.ID, &company.CreatedAt, &company.UpdatedAt)
}

func (r *companyRepository) Update(ctx context.Context, company *domain.Company) error {
	const query = `
        UPDATE companies SET name=$1, tax_id=$2, address=$3, phone=$4, email=$5, active=$6, updated_at=NOW()
        WHERE id=$7
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		company.Name,
		company.TaxID,
		company.Address,
		company.Phone,
		company.Email,
		company.Active,
		company.ID,
	).Scan(&company.UpdatedAt)
}

// Delete removes the company; profiles and tickets cascade.
func (r *companyRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM companies WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *companyRepository) GetByID(ctx context.Context, id string) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id=$1`
	company, err := scanCompany(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return company, nil
}

func (r *companyRepository) List(ctx context.Context, activeOnly bool) ([]domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *company)
	}
	return result, rows.Err()
}

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var company domain.Company
	if err := row.Scan(
		&company.ID,
		&company.Name,
		&company.TaxID,
		&company.Address,
		&company.Phone,
		&company.Email,
		&company.Active,
		&company.CreatedAt,
		&company.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &company, nil
}
