package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/ledger"
)

// seedRecord appends one ledger record directly, for tests that need
// pre-existing audit history.
func (f *fixture) seedRecord(t *testing.T, action, targetType, targetID string) ledger.Record {
	t.Helper()
	rec, err := f.h.ledger.Append(context.Background(), ledger.Input{
		RecordID:   "seed-" + action + "-" + targetID,
		ActorID:    "usr-seed",
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		t.Fatalf("seed append: %v", err)
	}
	return rec
}

// --- create ---

func TestCreateAppeal_ByReporter(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "resolved"))
	f.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rpt-1", "usr-reporter").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectExec(`INSERT INTO appeals`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/appeals", gin.H{
		"reason": "please take another look",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	appeal := decode(t, w)["appeal"].(map[string]any)
	if appeal["status"] != "open" {
		t.Errorf("appeal status = %v, want open", appeal["status"])
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Action != ledger.ActionAppealCreated {
		t.Errorf("action = %q, want %q", rec.Action, ledger.ActionAppealCreated)
	}
	if rec.TargetType != "appeal" || rec.TargetID != appeal["id"] {
		t.Errorf("target = %s/%s, want appeal/%v", rec.TargetType, rec.TargetID, appeal["id"])
	}
	if rec.Metadata["report_id"] != "rpt-1" {
		t.Errorf("metadata report_id = %q, want rpt-1", rec.Metadata["report_id"])
	}
}

func TestCreateAppeal_IneligibleAppellant(t *testing.T) {
	f := newFixture(t, member("usr-bystander"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "resolved"))
	f.mock.ExpectQuery(`SELECT author_id FROM posts`).
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"author_id"}).AddRow("usr-author"))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/appeals", gin.H{
		"reason": "please take another look",
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != "appellant_not_eligible" {
		t.Errorf("code = %v, want appellant_not_eligible", got)
	}
}

func TestCreateAppeal_DuplicateActive(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "resolved"))
	f.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rpt-1", "usr-reporter").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/appeals", gin.H{
		"reason": "second attempt",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != "appeal_already_open" {
		t.Errorf("code = %v, want appeal_already_open", got)
	}
}

// --- appealed record validation ---

func TestCreateAppeal_ValidAppealedRecord(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))
	seeded := f.seedRecord(t, ledger.ActionOverrideApplied, "report", "rpt-1")

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "resolved"))
	f.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("rpt-1", "usr-reporter").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	f.mock.ExpectExec(`INSERT INTO appeals`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/appeals", gin.H{
		"reason":                   "contesting the override",
		"appealed_audit_record_id": seeded.RecordID,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	appeal := decode(t, w)["appeal"].(map[string]any)
	if appeal["appealed_audit_record_id"] != seeded.RecordID {
		t.Errorf("appealed_audit_record_id = %v, want %s", appeal["appealed_audit_record_id"], seeded.RecordID)
	}
}

func TestCreateAppeal_RejectsBadAppealedRecord(t *testing.T) {
	cases := []struct {
		name       string
		action     string
		targetType string
		targetID   string
		recordID   string
	}{
		{"unknown record", ledger.ActionOverrideApplied, "report", "rpt-1", "no-such-record"},
		{"wrong report", ledger.ActionOverrideApplied, "report", "rpt-other", ""},
		{"wrong target type", ledger.ActionSignedIn, "user", "rpt-1", ""},
		{"non-appealable action", ledger.ActionAppealCreated, "appeal", "rpt-1", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, member("usr-reporter"))
			seeded := f.seedRecord(t, tc.action, tc.targetType, tc.targetID)
			recordID := tc.recordID
			if recordID == "" {
				recordID = seeded.RecordID
			}

			w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/appeals", gin.H{
				"reason":                   "contesting",
				"appealed_audit_record_id": recordID,
			})
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
			if got := decode(t, w)["code"]; got != "appealed_record_invalid" {
				t.Errorf("code = %v, want appealed_record_invalid", got)
			}
		})
	}
}

// --- get ---

func TestGetAppeal_NotFound(t *testing.T) {
	f := newFixture(t, member("usr-1"))

	f.mock.ExpectQuery(`SELECT id, report_id, appellant_id`).
		WithArgs("app-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := f.do(t, http.MethodGet, "/api/v1/appeals/app-gone", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

// --- decide ---

func TestDecideAppeal_GrantReopensResolvedReport(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	f.mock.ExpectQuery(`SELECT id, report_id, appellant_id`).
		WithArgs("app-1").
		WillReturnRows(appealRows("app-1", "rpt-1", "usr-reporter", "open"))
	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "resolved"))
	f.mock.ExpectExec(`UPDATE appeals`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectExec(`UPDATE reports SET status`).
		WithArgs("triaged", "rpt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(t, http.MethodPost, "/api/v1/appeals/app-1/decision", gin.H{
		"decision":        "grant",
		"reason":          "original decision was wrong",
		"human_confirmed": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	if body["report_reopened"] != true {
		t.Errorf("report_reopened = %v, want true", body["report_reopened"])
	}
	report := body["report"].(map[string]any)
	if report["status"] != "triaged" {
		t.Errorf("report status = %v, want triaged", report["status"])
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Action != ledger.ActionAppealReviewed {
		t.Errorf("action = %q, want %q", rec.Action, ledger.ActionAppealReviewed)
	}
	if rec.Metadata["decision"] != "grant" || rec.Metadata["report_reopened"] != "true" {
		t.Errorf("decision metadata = %v", rec.Metadata)
	}
	if rec.Metadata["previous_report_status"] != "resolved" || rec.Metadata["report_status"] != "triaged" {
		t.Errorf("report transition metadata = %v", rec.Metadata)
	}
}

func TestDecideAppeal_GrantLeavesTriagedReportUntouched(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	f.mock.ExpectQuery(`SELECT id, report_id, appellant_id`).
		WithArgs("app-1").
		WillReturnRows(appealRows("app-1", "rpt-1", "usr-reporter", "open"))
	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "triaged"))
	f.mock.ExpectExec(`UPDATE appeals`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// No report update expected.

	w := f.do(t, http.MethodPost, "/api/v1/appeals/app-1/decision", gin.H{
		"decision":        "grant",
		"reason":          "reduce severity",
		"human_confirmed": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if body := decode(t, w); body["report_reopened"] != false {
		t.Errorf("report_reopened = %v, want false", body["report_reopened"])
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDecideAppeal_AlreadyDecided(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	f.mock.ExpectQuery(`SELECT id, report_id, appellant_id`).
		WithArgs("app-1").
		WillReturnRows(appealRows("app-1", "rpt-1", "usr-reporter", "upheld"))

	w := f.do(t, http.MethodPost, "/api/v1/appeals/app-1/decision", gin.H{
		"decision":        "grant",
		"reason":          "trying again",
		"human_confirmed": true,
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != "appeal_already_decided" {
		t.Errorf("code = %v, want appeal_already_decided", got)
	}
	if records := f.mustReadLedger(t); len(records) != 0 {
		t.Errorf("rejected decision must not write the ledger, got %d records", len(records))
	}
}
