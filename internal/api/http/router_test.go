package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/repository/memory"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/internal/web"
)

const sessionCookie = "helpdesk_session"

type revocations struct {
	mu  sync.Mutex
	ids map[string]time.Time
}

func (r *revocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[tokenID] = until
	return nil
}

func (r *revocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.ids[tokenID]
	return ok, nil
}

type testServer struct {
	app    *fiber.App
	store  *memory.Store
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memory.NewStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	revoked := &revocations{ids: map[string]time.Time{}}

	authorizer, err := auth.NewAuthorizer(logger)
	require.NoError(t, err)
	engine, err := web.NewEngine(web.NewMarkdown())
	require.NoError(t, err)

	tickets := service.NewTicketService(service.TicketDependencies{Store: store, Logger: logger})
	authService := service.NewAuthService(service.AuthDependencies{
		Store:       store,
		Tokens:      tokens,
		Revocations: revoked,
		BcryptCost:  bcrypt.MinCost,
		Logger:      logger,
	})
	companies := service.NewCompanyService(store, authorizer, logger)
	cookies := handlers.SessionCookies{Name: sessionCookie}
	repos := store.Repos()

	app := fiber.New(fiber.Config{Views: engine})
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(), 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:      handlers.NewHealthHandler("helpdesk", "test", nil),
		Auth:        handlers.NewAuthHandler(authService, cookies),
		Tickets:     handlers.NewTicketsHandler(tickets),
		Companies:   handlers.NewCompaniesHandler(companies),
		Attachments: handlers.NewAttachmentsHandler(service.NewAttachmentService(store)),
		Web: handlers.NewWebHandler(handlers.WebDependencies{
			Tickets:   tickets,
			Companies: companies,
			Auth:      authService,
			Cookies:   cookies,
			Logger:    logger,
		}),
		AuthMiddleware: auth.NewAuthMiddleware(auth.MiddlewareDeps{
			Tokens:      tokens,
			Users:       repos.Users,
			Profiles:    repos.Profiles,
			Revocations: revoked,
			CookieName:  sessionCookie,
			Logger:      logger,
		}),
		Authorizer: authorizer,
	})

	return &testServer{app: app, store: store, tokens: tokens}
}

// seedUser creates a user with the given role and returns a bearer token for it.
func (s *testServer) seedUser(t *testing.T, username string, role domain.Role) string {
	t.Helper()
	ctx := context.Background()
	repos := s.store.Repos()
	user := &domain.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, repos.Users.Create(ctx, user))
	require.NoError(t, repos.Profiles.Create(ctx, &domain.UserProfile{UserID: user.ID, Role: role}))
	session, err := s.tokens.GenerateToken(user.ID, user.Username)
	require.NoError(t, err)
	return session.Token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func errorCode(payload map[string]any) string {
	errObj, _ := payload["error"].(map[string]any)
	code, _ := errObj["code"].(string)
	return code
}

func TestAPI_RequiresAuthentication(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, http.MethodGet, "/api/tickets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))

	resp, _ = srv.do(t, http.MethodGet, "/api/tickets", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAPI_RegisterLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "s3cret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := payload["data"].(map[string]any)
	assert.Equal(t, "user", data["user"].(map[string]any)["role"])

	resp, payload = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))

	resp, payload = srv.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "alice", "password": "s3cret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := payload["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)

	resp, _ = srv.do(t, http.MethodGet, "/api/tickets", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, payload = srv.do(t, http.MethodGet, "/api/tickets", token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))
}

func TestAPI_DuplicateRegistrationConflicts(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]string{"username": "bob", "password": "pw"}

	resp, _ := srv.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, payload := srv.do(t, http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "CONFLICT", errorCode(payload))
}

func TestAPI_CompanyWritesRequireAdmin(t *testing.T) {
	srv := newTestServer(t)
	userToken := srv.seedUser(t, "carol", domain.RoleUser)
	adminToken := srv.seedUser(t, "root", domain.RoleAdmin)
	company := map[string]any{"name": "Acme", "tax_id": "123", "email": "it@acme.test"}

	resp, payload := srv.do(t, http.MethodPost, "/api/companies", userToken, company)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))

	resp, _ = srv.do(t, http.MethodGet, "/api/companies", userToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, payload = srv.do(t, http.MethodPost, "/api/companies", adminToken, company)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "Acme", payload["data"].(map[string]any)["name"])
}

func TestAPI_TicketLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "dave", domain.RoleTechnician)

	resp, payload := srv.do(t, http.MethodPost, "/api/tickets", token, map[string]any{"description": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))

	resp, payload = srv.do(t, http.MethodPost, "/api/tickets", token, map[string]any{
		"description": "VPN down",
		"priority":    "high",
		"status":      "closed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ticket := payload["data"].(map[string]any)
	ticketID := ticket["id"].(string)
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, "high", ticket["priority"])

	resp, payload = srv.do(t, http.MethodPost, "/api/tickets/"+ticketID+"/add_comment", token, map[string]any{
		"comment": "rebooted the concentrator",
		"status":  "resolved",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "resolved", payload["data"].(map[string]any)["status"])

	resp, payload = srv.do(t, http.MethodGet, "/api/tickets/"+ticketID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	detail := payload["data"].(map[string]any)
	assert.Equal(t, "open", detail["status"])
	assert.Len(t, detail["histories"], 1)

	resp, payload = srv.do(t, http.MethodPost, "/api/tickets/"+ticketID+"/add_comment", token, map[string]any{"status": "bogus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))

	resp, _ = srv.do(t, http.MethodGet, "/api/ticket-histories?ticket="+ticketID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodDelete, "/api/tickets/"+ticketID, token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, payload = srv.do(t, http.MethodGet, "/api/tickets/"+ticketID, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))
}

func TestAPI_UnknownTicketIsNotFound(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "erin", domain.RoleUser)

	resp, _ := srv.do(t, http.MethodGet, "/api/tickets/not-a-uuid", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/tickets/00000000-0000-0000-0000-000000000000/add_comment", token, map[string]any{"comment": "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_InvalidQueryRejected(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "frank", domain.RoleUser)

	resp, _ := srv.do(t, http.MethodGet, "/api/tickets?ordering=color", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodGet, "/api/tickets?limit=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth_Live(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", payload["status"])
}

func TestPages_RedirectToLogin(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login/?next=%2F", resp.Header.Get(fiber.HeaderLocation))
}

func TestPages_LoginFormAndIndex(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.do(t, http.MethodGet, "/login/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "gina", "password": "pw"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	form := url.Values{"username": {"gina"}, "password": {"pw"}, "next": {"/"}}
	req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	var session *http.Cookie
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			session = cookie
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: session.Value})
	resp, err = srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPages_LoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)

	form := url.Values{"username": {"nobody"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/login/", strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func (s *testServer) submit(t *testing.T, path, token string, values url.Values) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	return s.page(t, req)
}

func (s *testServer) get(t *testing.T, path, token string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	return s.page(t, req)
}

func (s *testServer) page(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (s *testServer) onlyTicket(t *testing.T) domain.Ticket {
	t.Helper()
	tickets, err := s.store.Repos().Tickets.ListWithFilter(context.Background(), repository.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	return tickets[0]
}

func TestPages_CreateTicketForm(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "hana", domain.RoleUser)

	resp, _ := srv.get(t, "/ticket/novo/", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.submit(t, "/ticket/novo/", token, url.Values{
		"description": {"Impressora sem toner"},
		"priority":    {"low"},
		"category":    {"Hardware"},
		"status":      {"closed"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	ticket := srv.onlyTicket(t)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityLow, ticket.Priority)
	require.NotNil(t, ticket.Category)
	assert.Equal(t, "Hardware", *ticket.Category)
	assert.Zero(t, srv.store.Counts().Histories)
}

func TestPages_CreateTicketFormRejectsBlankDescription(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "ivan", domain.RoleUser)

	resp, body := srv.submit(t, "/ticket/novo/", token, url.Values{"description": {"   "}, "priority": {"high"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body, `action="/ticket/novo/"`)
	assert.Zero(t, srv.store.Counts().Tickets)
}

func TestPages_EditTicketForm(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "joao", domain.RoleTechnician)

	resp, _ := srv.submit(t, "/ticket/novo/", token, url.Values{
		"description": {"VPN caiu"},
		"priority":    {"medium"},
		"category":    {"Rede"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ticket := srv.onlyTicket(t)

	resp, body := srv.get(t, "/ticket/"+ticket.ID+"/editar/", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "VPN caiu")

	resp, _ = srv.submit(t, "/ticket/"+ticket.ID+"/editar/", token, url.Values{
		"description": {"VPN caiu de novo"},
		"priority":    {""},
		"category":    {""},
		"status":      {"resolved"},
	})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/ticket/"+ticket.ID+"/", resp.Header.Get(fiber.HeaderLocation))

	updated := srv.onlyTicket(t)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	assert.Equal(t, domain.TicketPriorityMedium, updated.Priority)
	assert.Equal(t, "VPN caiu de novo", updated.Description)
	assert.Nil(t, updated.Category)
	assert.Zero(t, srv.store.Counts().Histories)

	resp, _ = srv.submit(t, "/ticket/"+ticket.ID+"/editar/", token, url.Values{"description": {""}, "status": {"open"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.TicketStatusResolved, srv.onlyTicket(t).Status)
}

func TestPages_TicketDetail(t *testing.T) {
	srv := newTestServer(t)
	token := srv.seedUser(t, "kira", domain.RoleUser)

	resp, _ := srv.submit(t, "/ticket/novo/", token, url.Values{"description": {"Monitor **piscando**"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	ticket := srv.onlyTicket(t)

	resp, body := srv.get(t, "/ticket/"+ticket.ID+"/", token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<strong>piscando</strong>")

	resp, _ = srv.get(t, "/ticket/00000000-0000-0000-0000-000000000000/", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = srv.get(t, "/ticket/"+ticket.ID+"/", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestPages_RegisterForm(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := srv.get(t, "/register/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.submit(t, "/register/", "", url.Values{"username": {"lia"}, "email": {"lia@example.com"}, "password": {"pw"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get(fiber.HeaderLocation))

	var session string
	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie {
			session = cookie.Value
		}
	}
	require.NotEmpty(t, session)

	resp, _ = srv.get(t, "/", session)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = srv.submit(t, "/register/", "", url.Values{"username": {"lia"}, "password": {"pw"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
