package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/you/bookauth/internal/app"
	"github.com/you/bookauth/internal/config"
	"github.com/you/bookauth/internal/http/handlers"
)

const (
	rootUsername = "root"
	rootPassword = "root-password-1"
)

const configTemplate = `
app:
  gin_mode: test
database:
  dsn: "sqlite:%s"
  log_level: silent
  max_open_conns: 1
redis:
  addr: "%s"
jwt:
  secret: "e2e-secret-0123456789abcdef0123456789"
  issuer: bookauth-e2e
  access_ttl: 5m
  refresh_ttl: 1h
security:
  bcrypt_cost: 4
  lockout_threshold: 5
  lockout_duration: 30m
  maintenance_interval: 0s
  login_throttle_limit: %d
  login_throttle_window: 1m
log:
  level: error
bootstrap_admin:
  username: ` + rootUsername + `
  email: root@bookstore.test
  password: ` + rootPassword + `
  employee_id: E-0001
`

const ownershipRulesYAML = `
ownershipRules:
  - method: GET
    path: /users/:id/sessions
    source: path
    paramName: id
`

// TestSuite runs the whole service in-process against SQLite and miniredis
type TestSuite struct {
	t         *testing.T
	Container *app.Container
	Server    *httptest.Server
	Redis     *miniredis.Miniredis
	Client    *http.Client
}

type suiteOptions struct {
	throttleLimit int
}

// NewTestSuite boots a fresh service for one test
func NewTestSuite(t *testing.T, opts ...func(*suiteOptions)) *TestSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	o := suiteOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	dir := t.TempDir()
	mr := miniredis.RunT(t)
	cfgPath := filepath.Join(dir, "config.yml")
	yml := fmt.Sprintf(configTemplate, filepath.Join(dir, "bookauth.db"), mr.Addr(), o.throttleLimit)
	require.NoError(t, os.WriteFile(cfgPath, []byte(yml), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ownership_rules.yml"), []byte(ownershipRulesYAML), 0o600))

	cfg, err := config.LoadFrom(cfgPath)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	c, err := app.NewContainer(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.BootstrapAdmin(ctx))

	srv := httptest.NewServer(c.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = c.Close()
	})

	return &TestSuite{
		t:         t,
		Container: c,
		Server:    srv,
		Redis:     mr,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

func withThrottleLimit(n int) func(*suiteOptions) {
	return func(o *suiteOptions) { o.throttleLimit = n }
}

// Response is a buffered HTTP response
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Do sends a JSON request, with a bearer token when token is not empty
func (s *TestSuite) Do(method, path, token string, body interface{}) *Response {
	s.t.Helper()

	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.Server.URL+path, buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "bookauth-e2e")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.Client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: raw}
}

// Data decodes the "data" member of a success response into v
func (r *Response) Data(t *testing.T, v interface{}) {
	t.Helper()
	env := struct {
		Data interface{} `json:"data"`
	}{Data: v}
	require.NoError(t, json.Unmarshal(r.Body, &env), string(r.Body))
}

// Code returns the error code of an error response
func (r *Response) Code(t *testing.T) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(r.Body, &env), string(r.Body))
	return env.Error.Code
}

// Register signs up a customer and returns its tokens
func (s *TestSuite) Register(username, password string) handlers.TokenResponse {
	s.t.Helper()
	resp := s.Do(http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@bookstore.test",
		"password": password,
	})
	require.Equal(s.t, http.StatusCreated, resp.Status, string(resp.Body))
	var tokens handlers.TokenResponse
	resp.Data(s.t, &tokens)
	return tokens
}

// Login authenticates and returns the raw response
func (s *TestSuite) Login(identifier, password string) *Response {
	s.t.Helper()
	return s.Do(http.MethodPost, "/auth/login", "", map[string]string{
		"identifier": identifier,
		"password":   password,
	})
}

// MustLogin authenticates and returns the tokens
func (s *TestSuite) MustLogin(identifier, password string) handlers.TokenResponse {
	s.t.Helper()
	resp := s.Login(identifier, password)
	require.Equal(s.t, http.StatusOK, resp.Status, string(resp.Body))
	var tokens handlers.TokenResponse
	resp.Data(s.t, &tokens)
	return tokens
}

// CreateStaff registers a staff account through the admin API
func (s *TestSuite) CreateStaff(token, username, role, employeeID string) handlers.TokenResponse {
	s.t.Helper()
	resp := s.Do(http.MethodPost, "/admin/accounts", token, map[string]interface{}{
		"username":    username,
		"email":       username + "@bookstore.test",
		"password":    "staff-password-1",
		"role":        role,
		"department":  "Fulfilment",
		"employee_id": employeeID,
	})
	require.Equal(s.t, http.StatusCreated, resp.Status, string(resp.Body))
	var tokens handlers.TokenResponse
	resp.Data(s.t, &tokens)
	return tokens
}
