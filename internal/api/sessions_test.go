package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/auth"
	"github.com/modplane/modplane/internal/ledger"
)

// devFixture registers the dev routes the way the router does, with the dev
// mode gate in front.
func devFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, member("usr-any"))
	f.router.POST("/api/v1/dev/login", DevModeMiddleware(), f.h.DevLoginHandler())
	return f
}

func TestDevLogin_IssuesTokenAndRecordsSignIn(t *testing.T) {
	t.Setenv("DEV_MODE", "true")
	f := devFixture(t)

	f.mock.ExpectQuery(`SELECT id, handle, email, role, created_at FROM users`).
		WithArgs("usr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "handle", "email", "role", "created_at"}).
			AddRow("usr-1", "casey", "casey@example.com", "moderator", time.Now().UTC()))

	w := f.do(t, http.MethodPost, "/api/v1/dev/login", gin.H{"user_id": "usr-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("token missing in response")
	}
	claims, err := auth.ValidateJWT(token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.ActorID != "usr-1" || claims.Role != "moderator" {
		t.Errorf("claims = %s/%s, want usr-1/moderator", claims.ActorID, claims.Role)
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	if records[0].Action != ledger.ActionSignedIn {
		t.Errorf("action = %q, want %q", records[0].Action, ledger.ActionSignedIn)
	}
	if records[0].TargetType != "user" || records[0].TargetID != "usr-1" {
		t.Errorf("target = %s/%s, want user/usr-1", records[0].TargetType, records[0].TargetID)
	}
}

func TestDevLogin_BlockedOutsideDevMode(t *testing.T) {
	t.Setenv("DEV_MODE", "")
	f := devFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/dev/login", gin.H{"user_id": "usr-1"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
}

func TestDevLogin_UnknownUser(t *testing.T) {
	t.Setenv("DEV_MODE", "1")
	f := devFixture(t)

	f.mock.ExpectQuery(`SELECT id, handle, email, role, created_at FROM users`).
		WithArgs("usr-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := f.do(t, http.MethodPost, "/api/v1/dev/login", gin.H{"user_id": "usr-gone"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

func TestSignOut_RecordsLedgerEvent(t *testing.T) {
	f := newFixture(t, member("usr-7"))

	w := f.do(t, http.MethodPost, "/api/v1/auth/signout", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	if records[0].Action != ledger.ActionSignedOut || records[0].ActorID != "usr-7" {
		t.Errorf("record = %s by %s, want %s by usr-7",
			records[0].Action, records[0].ActorID, ledger.ActionSignedOut)
	}
}
