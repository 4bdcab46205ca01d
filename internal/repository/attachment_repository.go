package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// AttachmentRepository persists attachment metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *domain.TicketAttachment) error
	Update(ctx context.Context, attachment *domain.TicketAttachment) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.TicketAttachment, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error)
	List(ctx context.Context) ([]domain.TicketAttachment, error)
}

type attachmentRepository struct {
	db DBTX
}

// NewAttachmentRepository constructs repository.
func NewAttachmentRepository(db DBTX) AttachmentRepository {
	return &attachmentRepository{db: db}
}

const attachmentColumns = `id, ticket_id, file_ref, uploaded_at`

func (r *attachmentRepository) Create(ctx context.Context, attachment *domain.TicketAttachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, file_ref)
        VALUES ($1,$2)
        RETURNING id, uploaded_at`
	return r.db.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.FileRef,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) Update(ctx context.Context, attachment *domain.TicketAttachment) error {
	cmd, err := r.db.Exec(ctx, `UPDATE ticket_attachments SET file_ref=$1 WHERE id=$2`,
		attachment.FileRef, attachment.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *attachmentRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM ticket_attachments WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE id=$1`
	return scanAttachment(r.db.QueryRow(ctx, query, id))
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC`
	return r.list(ctx, query, ticketID)
}

func (r *attachmentRepository) List(ctx context.Context) ([]domain.TicketAttachment, error) {
	query := `SELECT ` + attachmentColumns + ` FROM ticket_attachments ORDER BY uploaded_at DESC`
	return r.list(ctx, query)
}

func (r *attachmentRepository) list(ctx context.Context, query string, args ...any) ([]domain.TicketAttachment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		attachment, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *attachment)
	}
	return result, rows.Err()
}

func scanAttachment(row pgx.Row) (*domain.TicketAttachment, error) {
	var attachment domain.TicketAttachment
	if err := row.Scan(
		&attachment.ID,
		&attachment.TicketID,
		&attachment.FileRef,
		&attachment.UploadedAt,
	); err != nil {
		return nil, err
	}
	return &attachment, nil
}
