package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories groups every repository bound to the same connection or transaction.
type Repositories struct {
	Companies   CompanyRepository
	Users       UserRepository
	Profiles    ProfileRepository
	Tickets     TicketRepository
	Histories   TicketHistoryRepository
	Attachments AttachmentRepository
}

// Store hands out repositories and runs units of work atomically.
type Store interface {
	Repos() Repositories
	WithinTx(ctx context.Context, fn func(repos Repositories) error) error
}

type pgStore struct {
	pool  *pgxpool.Pool
	repos Repositories
}

// NewStore returns a Postgres-backed store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, repos: newRepositories(pool)}
}

func (s *pgStore) Repos() Repositories {
	return s.repos
}

// WithinTx commits when fn returns nil and rolls back otherwise.
func (s *pgStore) WithinTx(ctx context.Context, fn func(repos Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newRepositories(tx))
	})
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Companies:   NewCompanyRepository(db),
		Users:       NewUserRepository(db),
		Profiles:    NewProfileRepository(db),
		Tickets:     NewTicketRepository(db),
		Histories:   NewTicketHistoryRepository(db),
		Attachments: NewAttachmentRepository(db),
	}
}
