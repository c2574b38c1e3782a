package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/modplane/modplane/internal/auth"
	"github.com/modplane/modplane/internal/config"
	"github.com/modplane/modplane/internal/ledger"
)

func newTestRouter(t *testing.T, rateLimiting bool) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	database := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { database.Close() })

	handle, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.ndjson"))
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { handle.Close() })

	cfg := &config.Config{}
	cfg.Security.RateLimiting.Enabled = rateLimiting
	cfg.Security.RateLimiting.RequestsPerMinute = 1000
	cfg.Security.RateLimiting.Burst = 1000

	router, bg := NewRouter(cfg, database, handle, nil)
	t.Cleanup(bg.Shutdown)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, mock
}

func TestRouter_VersionAndHealth(t *testing.T) {
	srv, _ := newTestRouter(t, false)

	resp, err := http.Get(srv.URL + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/version status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d, want 200", resp.StatusCode)
	}
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	srv, _ := newTestRouter(t, false)

	resp, err := http.Post(srv.URL+"/api/v1/reports", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /api/v1/reports: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401 without a token", resp.StatusCode)
	}
}

func TestRouter_RoleGateOnOverride(t *testing.T) {
	srv, mock := newTestRouter(t, false)

	token, err := auth.GenerateJWT("usr-1", "casey", "member", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	mock.ExpectQuery(`SELECT id, handle, email, role, created_at FROM users`).
		WithArgs("usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "email", "role", "created_at"}).
			AddRow("usr-1", "casey", "casey@example.com", "member", time.Now().UTC()))

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/reports/rpt-1/override",
		strings.NewReader(`{"new_status":"resolved","reason":"x","human_confirmed":true}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST override: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for a member", resp.StatusCode)
	}
}

func TestRouter_DevLoginDisabledByDefault(t *testing.T) {
	t.Setenv("DEV_MODE", "")
	srv, _ := newTestRouter(t, false)

	resp, err := http.Post(srv.URL+"/api/v1/dev/login", "application/json", strings.NewReader(`{"user_id":"u"}`))
	if err != nil {
		t.Fatalf("POST /api/v1/dev/login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403 outside dev mode", resp.StatusCode)
	}
}
