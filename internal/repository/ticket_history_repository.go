package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketHistoryRepository stores append-only history entries. There is no
// update or delete; rows only disappear with their ticket.
type TicketHistoryRepository interface {
	Create(ctx context.Context, history *domain.TicketHistory) error
	GetByID(ctx context.Context, id string) (*domain.TicketHistory, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error)
	List(ctx context.Context, filter HistoryFilter) ([]domain.TicketHistory, error)
}

// HistoryFilter narrows the read-only history collection.
type HistoryFilter struct {
	TicketID *string
	Limit    int
	Offset   int
}

type ticketHistoryRepository struct {
	db DBTX
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(db DBTX) TicketHistoryRepository {
	return &ticketHistoryRepository{db: db}
}

const historyColumns = `id, ticket_id, user_id, comment, status, created_at`

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	const query = `
        INSERT INTO ticket_histories (ticket_id, user_id, comment, status)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		history.TicketID,
		history.UserID,
		history.Comment,
		history.Status,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *ticketHistoryRepository) GetByID(ctx context.Context, id string) (*domain.TicketHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM ticket_histories WHERE id=$1`
	return scanHistory(r.db.QueryRow(ctx, query, id))
}

// ListByTicket returns entries newest first.
func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.List(ctx, HistoryFilter{TicketID: &ticketID})
}

func (r *ticketHistoryRepository) List(ctx context.Context, filter HistoryFilter) ([]domain.TicketHistory, error) {
	query := `SELECT ` + historyColumns + ` FROM ticket_histories`
	args := []any{}
	if filter.TicketID != nil {
		args = append(args, *filter.TicketID)
		query += ` WHERE ticket_id=$1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		history, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *history)
	}
	return result, rows.Err()
}

func scanHistory(row pgx.Row) (*domain.TicketHistory, error) {
	var history domain.TicketHistory
	if err := row.Scan(
		&history.ID,
		&history.TicketID,
		&history.UserID,
		&history.Comment,
		&history.Status,
		&history.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &history, nil
}
