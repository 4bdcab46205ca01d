package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Store is an in-memory repository.Store for local runs without PostgreSQL
// and for tests. WithinTx restores a snapshot when fn fails, mirroring a
// rollback. Referential rules follow the SQL schema.
type Store struct {
	txMu        sync.Mutex
	mu          sync.Mutex
	now         func() time.Time
	last        time.Time
	companies   map[string]domain.Company
	users       map[string]domain.User
	profiles    map[string]domain.UserProfile
	tickets     map[string]domain.Ticket
	histories   map[string]domain.TicketHistory
	attachments map[string]domain.TicketAttachment
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:         time.Now,
		companies:   map[string]domain.Company{},
		users:       map[string]domain.User{},
		profiles:    map[string]domain.UserProfile{},
		tickets:     map[string]domain.Ticket{},
		histories:   map[string]domain.TicketHistory{},
		attachments: map[string]domain.TicketAttachment{},
	}
}

// Repos returns repositories bound to the store.
func (s *Store) Repos() repository.Repositories {
	return repository.Repositories{
		Companies:   companies{s},
		Users:       users{s},
		Profiles:    profiles{s},
		Tickets:     tickets{s},
		Histories:   histories{s},
		Attachments: attachments{s},
	}
}

// WithinTx runs fn with transactions serialized against each other.
func (s *Store) WithinTx(_ context.Context, fn func(repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snapshot := s.snapshot()
	if err := fn(s.Repos()); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) snapshot() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Store{
		companies:   cloneMap(s.companies),
		users:       cloneMap(s.users),
		profiles:    cloneMap(s.profiles),
		tickets:     cloneMap(s.tickets),
		histories:   cloneMap(s.histories),
		attachments: cloneMap(s.attachments),
	}
}

func (s *Store) restore(snap *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = snap.companies
	s.users = snap.users
	s.profiles = snap.profiles
	s.tickets = snap.tickets
	s.histories = snap.histories
	s.attachments = snap.attachments
}

// tick returns a strictly increasing timestamp so ordering by time is stable.
func (s *Store) tick() time.Time {
	t := s.now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

// Counts reports how many records each table holds.
type Counts struct {
	Companies   int
	Users       int
	Profiles    int
	Tickets     int
	Histories   int
	Attachments int
}

// Counts returns the current table sizes.
func (s *Store) Counts() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Counts{
		Companies:   len(s.companies),
		Users:       len(s.users),
		Profiles:    len(s.profiles),
		Tickets:     len(s.tickets),
		Histories:   len(s.histories),
		Attachments: len(s.attachments),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// paginate applies offset then limit; a limit of zero means no limit.
func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func stringTooLong(column string) error {
	return &pgconn.PgError{Code: "22001", ColumnName: column}
}

// checkCompanyWidths mirrors the VARCHAR limits of the companies table.
func checkCompanyWidths(c *domain.Company) error {
	for _, col := range []struct {
		name  string
		value string
		max   int
	}{
		{"name", c.Name, 255},
		{"tax_id", c.TaxID, 20},
		{"address", c.Address, 255},
		{"phone", c.Phone, 20},
		{"email", c.Email, 254},
	} {
		if utf8.RuneCountInString(col.value) > col.max {
			return stringTooLong(col.name)
		}
	}
	return nil
}

func foreignKeyViolation(constraint string) error {
	return &pgconn.PgError{Code: "23503", ConstraintName: constraint}
}

// checkTicketRefsLocked enforces the foreign keys of a ticket row.
func (s *Store) checkTicketRefsLocked(t *domain.Ticket) error {
	if t.CompanyID != nil {
		if _, ok := s.companies[*t.CompanyID]; !ok {
			return foreignKeyViolation("tickets_company_id_fkey")
		}
	}
	if _, ok := s.users[t.CreatedByID]; !ok {
		return foreignKeyViolation("tickets_created_by_id_fkey")
	}
	if t.AssignedToID != nil {
		if _, ok := s.users[*t.AssignedToID]; !ok {
			return foreignKeyViolation("tickets_assigned_to_id_fkey")
		}
	}
	return nil
}

type companies struct{ s *Store }

func (r companies) Create(_ context.Context, c *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := checkCompanyWidths(c); err != nil {
		return err
	}
	for _, existing := range r.s.companies {
		if existing.TaxID == c.TaxID {
			return uniqueViolation("companies_tax_id_key")
		}
		if existing.Email == c.Email {
			return uniqueViolation("companies_email_key")
		}
	}
	c.ID = uuid.NewString()
	c.CreatedAt = r.s.tick()
	c.UpdatedAt = c.CreatedAt
	r.s.companies[c.ID] = *c
	return nil
}

func (r companies) Update(_ context.Context, c *domain.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	if err := checkCompanyWidths(c); err != nil {
		return err
	}
	c.UpdatedAt = r.s.tick()
	r.s.companies[c.ID] = *c
	return nil
}

func (r companies) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.companies[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.companies, id)
	for uid, p := range r.s.profiles {
		if p.CompanyID != nil && *p.CompanyID == id {
			delete(r.s.profiles, uid)
		}
	}
	for tid, t := range r.s.tickets {
		if t.CompanyID != nil && *t.CompanyID == id {
			r.s.deleteTicketLocked(tid)
		}
	}
	return nil
}

func (r companies) GetByID(_ context.Context, id string) (*domain.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &c, nil
}

func (r companies) List(_ context.Context, activeOnly bool) ([]domain.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Company
	for _, c := range r.s.companies {
		if activeOnly && !c.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type users struct{ s *Store }

func (r users) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return uniqueViolation("users_username_key")
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = r.s.tick()
	r.s.users[u.ID] = *u
	return nil
}

func (r users) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.users, id)
	delete(r.s.profiles, id)
	for tid, t := range r.s.tickets {
		switch {
		case t.CreatedByID == id:
			r.s.deleteTicketLocked(tid)
		case t.AssignedToID != nil && *t.AssignedToID == id:
			t.AssignedToID = nil
			r.s.tickets[tid] = t
		}
	}
	for hid, h := range r.s.histories {
		if h.UserID != nil && *h.UserID == id {
			h.UserID = nil
			r.s.histories[hid] = h
		}
	}
	return nil
}

func (r users) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (r users) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r users) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.User
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type profiles struct{ s *Store }

func (r profiles) Create(_ context.Context, p *domain.UserProfile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[p.UserID]; ok {
		return uniqueViolation("user_profiles_pkey")
	}
	if _, ok := r.s.users[p.UserID]; !ok {
		return foreignKeyViolation("user_profiles_user_id_fkey")
	}
	if p.CompanyID != nil {
		if _, ok := r.s.companies[*p.CompanyID]; !ok {
			return foreignKeyViolation("user_profiles_company_id_fkey")
		}
	}
	r.s.profiles[p.UserID] = *p
	return nil
}

func (r profiles) GetByUserID(_ context.Context, userID string) (*domain.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &p, nil
}

type tickets struct{ s *Store }

func (r tickets) Create(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.checkTicketRefsLocked(t); err != nil {
		return err
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.s.tick()
	t.UpdatedAt = t.CreatedAt
	r.s.tickets[t.ID] = *t
	return nil
}

func (r tickets) Update(_ context.Context, t *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[t.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	t.CompanyID = stored.CompanyID
	t.CreatedByID = stored.CreatedByID
	if err := r.s.checkTicketRefsLocked(t); err != nil {
		return err
	}
	t.UpdatedAt = r.s.tick()
	r.s.tickets[t.ID] = *t
	return nil
}

func (r tickets) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[id]; !ok {
		return pgx.ErrNoRows
	}
	r.s.deleteTicketLocked(id)
	return nil
}

func (s *Store) deleteTicketLocked(id string) {
	delete(s.tickets, id)
	for hid, h := range s.histories {
		if h.TicketID == id {
			delete(s.histories, hid)
		}
	}
	for aid, a := range s.attachments {
		if a.TicketID == id {
			delete(s.attachments, aid)
		}
	}
}

func (r tickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &t, nil
}

func (r tickets) ListWithFilter(_ context.Context, f repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Ticket
	for _, t := range r.s.tickets {
		if f.CompanyID != nil && (t.CompanyID == nil || *t.CompanyID != *f.CompanyID) {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Category != nil && (t.Category == nil || *t.Category != *f.Category) {
			continue
		}
		if term := strings.ToLower(strings.TrimSpace(deref(f.SearchTerm))); term != "" {
			category := ""
			if t.Category != nil {
				category = *t.Category
			}
			if !strings.Contains(strings.ToLower(t.Description), term) && !strings.Contains(strings.ToLower(category), term) {
				continue
			}
		}
		out = append(out, t)
	}
	sortTickets(out, f.Ordering)
	return paginate(out, f.Limit, f.Offset), nil
}

func sortTickets(items []domain.Ticket, ordering string) {
	if ordering == "" {
		ordering = repository.DefaultTicketOrdering
	}
	desc := strings.HasPrefix(ordering, "-")
	less := func(a, b domain.Ticket) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch strings.TrimPrefix(ordering, "-") {
	case "updated_at":
		less = func(a, b domain.Ticket) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	case "priority":
		less = func(a, b domain.Ticket) bool { return a.Priority < b.Priority }
	case "status":
		less = func(a, b domain.Ticket) bool { return a.Status < b.Status }
	}
	// id breaks ties, as in the SQL ORDER BY.
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if desc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return a.ID < b.ID
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type histories struct{ s *Store }

func (r histories) Create(_ context.Context, h *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[h.TicketID]; !ok {
		return foreignKeyViolation("ticket_histories_ticket_id_fkey")
	}
	h.ID = uuid.NewString()
	h.CreatedAt = r.s.tick()
	r.s.histories[h.ID] = *h
	return nil
}

func (r histories) GetByID(_ context.Context, id string) (*domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.histories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &h, nil
}

func (r histories) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	return r.List(ctx, repository.HistoryFilter{TicketID: &ticketID})
}

func (r histories) List(_ context.Context, f repository.HistoryFilter) ([]domain.TicketHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketHistory
	for _, h := range r.s.histories {
		if f.TicketID != nil && h.TicketID != *f.TicketID {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, f.Limit, f.Offset), nil
}

type attachments struct{ s *Store }

func (r attachments) Create(_ context.Context, a *domain.TicketAttachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tickets[a.TicketID]; !ok {
		return foreignKeyViolation("ticket_attachments_ticket_id_fkey")
	}
	a.ID = uuid.NewString()
	a.UploadedAt = r.s.tick()
	r.s.attachments[a.ID] = *a
	return nil
}

func (r attachments) Update(_ context.Context, a *domain.TicketAttachment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.attachments[a.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if _, ok := r.s.tickets[a.TicketID]; !ok {
		return foreignKeyViolation("ticket_attachments_ticket_id_fkey")
	}
	a.UploadedAt = stored.UploadedAt
	r.s.attachments[a.ID] = *a
	return nil
}

func (r attachments) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.attachments[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.s.attachments, id)
	return nil
}

func (r attachments) GetByID(_ context.Context, id string) (*domain.TicketAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attachments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (r attachments) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.TicketAttachment
	for _, a := range r.s.attachments {
		if a.TicketID == ticketID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (r attachments) List(_ context.Context) ([]domain.TicketAttachment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.TicketAttachment, 0, len(r.s.attachments))
	for _, a := range r.s.attachments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}
