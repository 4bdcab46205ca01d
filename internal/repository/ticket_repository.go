package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// DefaultTicketOrdering matches the newest-first listing of the collection.
const DefaultTicketOrdering = "-created_at"

var ticketOrderColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"priority":   "priority",
	"status":     "status",
}

// TicketFilter captures listing parameters. Nil fields do not filter.
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

// ValidOrdering reports whether ordering names a sortable column, optionally prefixed by '-'.
func ValidOrdering(ordering string) bool {
	if ordering == "" {
		return true
	}
	_, ok := ticketOrderColumns[strings.TrimPrefix(ordering, "-")]
	return ok
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

const ticketColumns = `id, company_id, created_by_id, assigned_to_id, priority, category,
               description, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (company_id, created_by_id, assigned_to_id, priority, category, description, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.CompanyID,
		ticket.CreatedByID,
		ticket.AssignedToID,
		ticket.Priority,
		ticket.Category,
		ticket.Description,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes the mutable fields. company_id and created_by_id are never touched.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assigned_to_id=$1, priority=$2, category=$3, description=$4,
            status=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.AssignedToID,
		ticket.Priority,
		ticket.Category,
		ticket.Description,
		ticket.Status,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

// Delete removes the ticket; histories and attachments cascade.
func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return scanTicket(r.db.QueryRow(ctx, query, id))
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args := buildTicketQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func buildTicketQuery(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CompanyID != nil {
		args = append(args, *filter.CompanyID)
		clauses = append(clauses, fmt.Sprintf("company_id=$%d", len(args)))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		clauses = append(clauses, fmt.Sprintf("priority=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(*filter.SearchTerm))) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(description) LIKE %s ESCAPE '\\' OR LOWER(COALESCE(category, '')) LIKE %s ESCAPE '\\')", placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s`,
		ticketColumns, strings.Join(clauses, " AND "), orderClause(filter.Ordering))

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}
	return query, args
}

// likeEscaper makes LIKE wildcards in a search term match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func orderClause(ordering string) string {
	if !ValidOrdering(ordering) || ordering == "" {
		ordering = DefaultTicketOrdering
	}
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
	}
	column := ticketOrderColumns[strings.TrimPrefix(ordering, "-")]
	return fmt.Sprintf("%s %s, id %s", column, direction, direction)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.CompanyID,
		&ticket.CreatedByID,
		&ticket.AssignedToID,
		&ticket.Priority,
		&ticket.Category,
		&ticket.Description,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
