package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type fixture struct {
	store   *Store
	company *domain.Company
	owner   *domain.User
	tech    *domain.User
	ticket  *domain.Ticket
	entry   *domain.TicketHistory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := NewStore()
	repos := store.Repos()

	company := &domain.Company{Name: "Acme", TaxID: "1", Email: "it@acme.test", Active: true}
	require.NoError(t, repos.Companies.Create(ctx, company))
	owner := &domain.User{Username: "alice", Email: "alice@acme.test"}
	require.NoError(t, repos.Users.Create(ctx, owner))
	require.NoError(t, repos.Profiles.Create(ctx, &domain.UserProfile{UserID: owner.ID, CompanyID: &company.ID, Role: domain.RoleUser}))
	tech := &domain.User{Username: "bob"}
	require.NoError(t, repos.Users.Create(ctx, tech))

	ticket := &domain.Ticket{
		CompanyID:    &company.ID,
		CreatedByID:  owner.ID,
		AssignedToID: &tech.ID,
		Priority:     domain.TicketPriorityHigh,
		Description:  "printer broken",
		Status:       domain.TicketStatusOpen,
	}
	require.NoError(t, repos.Tickets.Create(ctx, ticket))
	entry := &domain.TicketHistory{TicketID: ticket.ID, UserID: &tech.ID}
	require.NoError(t, repos.Histories.Create(ctx, entry))
	require.NoError(t, repos.Attachments.Create(ctx, &domain.TicketAttachment{TicketID: ticket.ID, FileRef: "log.txt"}))

	return fixture{store: store, company: company, owner: owner, tech: tech, ticket: ticket, entry: entry}
}

func TestDeleteTicketCascades(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Repos().Tickets.Delete(context.Background(), f.ticket.ID))

	counts := f.store.Counts()
	assert.Zero(t, counts.Tickets)
	assert.Zero(t, counts.Histories)
	assert.Zero(t, counts.Attachments)
}

func TestDeleteCompanyCascades(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Repos().Companies.Delete(context.Background(), f.company.ID))

	counts := f.store.Counts()
	assert.Zero(t, counts.Tickets)
	assert.Zero(t, counts.Profiles)
	assert.Zero(t, counts.Histories)
	assert.Equal(t, 2, counts.Users)
}

func TestDeleteUserNullsReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	require.NoError(t, repos.Users.Delete(ctx, f.tech.ID))

	ticket, err := repos.Tickets.GetByID(ctx, f.ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, ticket.AssignedToID)

	entry, err := repos.Histories.GetByID(ctx, f.entry.ID)
	require.NoError(t, err)
	assert.Nil(t, entry.UserID)
}

func TestDeleteCreatorCascadesTickets(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Repos().Users.Delete(context.Background(), f.owner.ID))

	counts := f.store.Counts()
	assert.Zero(t, counts.Tickets)
	assert.Zero(t, counts.Profiles)
}

func TestWithinTxRollback(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("boom")

	err := f.store.WithinTx(context.Background(), func(repos repository.Repositories) error {
		require.NoError(t, repos.Tickets.Delete(context.Background(), f.ticket.ID))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, f.store.Counts().Tickets)
	assert.Equal(t, 1, f.store.Counts().Histories)
}

func TestUniqueConstraints(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	err := repos.Users.Create(ctx, &domain.User{Username: "alice"})
	assert.True(t, apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict))

	err = repos.Companies.Create(ctx, &domain.Company{Name: "Other", TaxID: "1", Email: "other@acme.test"})
	assert.True(t, apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict))

	err = repos.Profiles.Create(ctx, &domain.UserProfile{UserID: f.owner.ID, Role: domain.RoleUser})
	assert.True(t, apperrors.IsCode(apperrors.MapError(err), apperrors.CodeConflict))
}

func TestListWithFilterOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()
	second := &domain.Ticket{CreatedByID: f.owner.ID, Priority: domain.TicketPriorityLow, Description: "mouse", Status: domain.TicketStatusOpen}
	require.NoError(t, repos.Tickets.Create(ctx, second))

	newest, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, newest, 2)
	assert.Equal(t, second.ID, newest[0].ID)

	oldest, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Ordering: "created_at", Limit: 1})
	require.NoError(t, err)
	require.Len(t, oldest, 1)
	assert.Equal(t, f.ticket.ID, oldest[0].ID)

	paged, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Offset: 5})
	require.NoError(t, err)
	assert.Empty(t, paged)
}

func TestCompanyColumnWidths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()

	err := repos.Companies.Create(ctx, &domain.Company{Name: "Wide", TaxID: "2", Email: "wide@acme.test", Address: strings.Repeat("x", 256)})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "22001", pgErr.Code)
	assert.True(t, apperrors.IsCode(apperrors.MapError(err), apperrors.CodeValidation))

	updated := *f.company
	updated.TaxID = strings.Repeat("9", 21)
	err = repos.Companies.Update(ctx, &updated)
	assert.True(t, apperrors.IsCode(apperrors.MapError(err), apperrors.CodeValidation))
	stored, err := repos.Companies.GetByID(ctx, f.company.ID)
	require.NoError(t, err)
	assert.Equal(t, "1", stored.TaxID)
}

func TestListWithFilterSearchIsLiteral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{CreatedByID: f.owner.ID, Priority: domain.TicketPriorityLow, Description: "disk at 100% usage", Status: domain.TicketStatusOpen}))
	require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{CreatedByID: f.owner.ID, Priority: domain.TicketPriorityLow, Description: "disk at 1000 IOPS", Status: domain.TicketStatusOpen}))

	term := "100%"
	got, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{SearchTerm: &term})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "disk at 100% usage", got[0].Description)

	blank := "  "
	all, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{SearchTerm: &blank})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListWithFilterTiesOrderedByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	repos := f.store.Repos()
	for i := 0; i < 5; i++ {
		require.NoError(t, repos.Tickets.Create(ctx, &domain.Ticket{CreatedByID: f.owner.ID, Priority: domain.TicketPriorityHigh, Description: "dup", Status: domain.TicketStatusOpen}))
	}

	asc, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Ordering: "priority"})
	require.NoError(t, err)
	require.Len(t, asc, 6)
	assert.True(t, sort.SliceIsSorted(asc, func(i, j int) bool { return asc[i].ID < asc[j].ID }))

	desc, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Ordering: "-status"})
	require.NoError(t, err)
	assert.True(t, sort.SliceIsSorted(desc, func(i, j int) bool { return desc[i].ID > desc[j].ID }))

	for offset := 0; offset < 6; offset += 2 {
		page, err := repos.Tickets.ListWithFilter(ctx, repository.TicketFilter{Ordering: "priority", Limit: 2, Offset: offset})
		require.NoError(t, err)
		assert.Equal(t, asc[offset:offset+2], page)
	}
}

func TestMissingRows(t *testing.T) {
	store := NewStore()
	_, err := store.Repos().Tickets.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
	assert.ErrorIs(t, store.Repos().Attachments.Delete(context.Background(), "missing"), pgx.ErrNoRows)
}
