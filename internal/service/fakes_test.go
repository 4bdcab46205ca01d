package service

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
)

// testStore adds seeding and inspection helpers to the in-memory store.
type testStore struct {
	*memory.Store
}

func newMemStore() *testStore {
	return &testStore{Store: memory.NewStore()}
}

// addUser seeds a user and profile and returns the matching actor.
func (s *testStore) addUser(username, email string, companyID *string, role domain.Role) *domain.Actor {
	ctx := context.Background()
	repos := s.Repos()
	user := &domain.User{Username: username, Email: email}
	if err := repos.Users.Create(ctx, user); err != nil {
		panic(err)
	}
	profile := &domain.UserProfile{UserID: user.ID, CompanyID: companyID, Role: role}
	if err := repos.Profiles.Create(ctx, profile); err != nil {
		panic(err)
	}
	return &domain.Actor{User: user, Profile: profile}
}

func (s *testStore) addCompany(name string) string {
	company := &domain.Company{Name: name, TaxID: name + "-tax", Email: name + "@example.com", Active: true}
	if err := s.Repos().Companies.Create(context.Background(), company); err != nil {
		panic(err)
	}
	return company.ID
}

func (s *testStore) ticket(id string) domain.Ticket {
	ticket, err := s.Repos().Tickets.GetByID(context.Background(), id)
	if err != nil {
		return domain.Ticket{}
	}
	return *ticket
}

func (s *testStore) user(id string) *domain.User {
	user, err := s.Repos().Users.GetByID(context.Background(), id)
	if err != nil {
		return nil
	}
	return user
}

func (s *testStore) profile(userID string) *domain.UserProfile {
	profile, err := s.Repos().Profiles.GetByUserID(context.Background(), userID)
	if err != nil {
		return nil
	}
	return profile
}

func (s *testStore) historyCount() int {
	return s.Counts().Histories
}

// recordingNotifier captures post-commit notifications.
type recordingNotifier struct {
	mu      sync.Mutex
	entries []domain.TicketHistory
}

func (n *recordingNotifier) TicketHistoryAdded(_ context.Context, _ domain.Ticket, entry domain.TicketHistory) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// fakeQueue records enqueued messages, or rejects them when full is set.
type fakeQueue struct {
	mu       sync.Mutex
	full     bool
	messages []notify.Message
}

func (q *fakeQueue) Enqueue(msg notify.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.messages = append(q.messages, msg)
	return true
}

// memRevocations is an in-memory auth.RevocationStore.
type memRevocations struct {
	mu      sync.Mutex
	err     error
	revoked map[string]time.Time
}

func (m *memRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[tokenID] = until
	return nil
}

func (m *memRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}
