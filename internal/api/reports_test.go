package api

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/ledger"
)

// --- create ---

func TestCreateReport_AppendsLedgerRecord(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))

	f.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("post-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	f.mock.ExpectExec(`INSERT INTO reports`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(t, http.MethodPost, "/api/v1/reports", gin.H{
		"post_id": "post-1",
		"reason":  "spam",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	body := decode(t, w)
	report, ok := body["report"].(map[string]any)
	if !ok {
		t.Fatalf("report missing in response: %v", body)
	}
	if report["status"] != "open" {
		t.Errorf("report status = %v, want open", report["status"])
	}
	if body["audit_record_id"] == "" || body["audit_record_id"] == nil {
		t.Error("audit_record_id missing in response")
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Action != ledger.ActionReportCreated {
		t.Errorf("action = %q, want %q", rec.Action, ledger.ActionReportCreated)
	}
	if rec.ActorID != "usr-reporter" {
		t.Errorf("actor = %q, want usr-reporter", rec.ActorID)
	}
	if rec.TargetType != "report" || rec.TargetID != report["id"] {
		t.Errorf("target = %s/%s, want report/%v", rec.TargetType, rec.TargetID, report["id"])
	}
	if rec.Metadata["post_id"] != "post-1" {
		t.Errorf("metadata post_id = %q, want post-1", rec.Metadata["post_id"])
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateReport_UnknownPost(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))

	f.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("post-gone").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	w := f.do(t, http.MethodPost, "/api/v1/reports", gin.H{
		"post_id": "post-gone",
		"reason":  "spam",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != "post_not_found" {
		t.Errorf("code = %v, want post_not_found", got)
	}
	if records := f.mustReadLedger(t); len(records) != 0 {
		t.Errorf("failed creation must not write the ledger, got %d records", len(records))
	}
}

func TestCreateReport_MissingFields(t *testing.T) {
	f := newFixture(t, member("usr-reporter"))

	w := f.do(t, http.MethodPost, "/api/v1/reports", gin.H{"post_id": "post-1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
}

// --- get ---

func TestGetReport(t *testing.T) {
	f := newFixture(t, member("usr-1"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "open"))

	w := f.do(t, http.MethodGet, "/api/v1/reports/rpt-1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	report := decode(t, w)["report"].(map[string]any)
	if report["id"] != "rpt-1" {
		t.Errorf("id = %v, want rpt-1", report["id"])
	}
}

func TestGetReport_NotFound(t *testing.T) {
	f := newFixture(t, member("usr-1"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-gone").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := f.do(t, http.MethodGet, "/api/v1/reports/rpt-gone", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", w.Code, w.Body.String())
	}
}

// --- list appeals ---

func TestListReportAppeals(t *testing.T) {
	f := newFixture(t, member("usr-1"))

	f.mock.ExpectQuery(`SELECT status FROM reports`).
		WithArgs("rpt-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("resolved"))
	f.mock.ExpectQuery(`SELECT id, report_id, appellant_id`).
		WithArgs("rpt-1").
		WillReturnRows(appealRows("app-1", "rpt-1", "usr-1", "open"))

	w := f.do(t, http.MethodGet, "/api/v1/reports/rpt-1/appeals", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	appeals, ok := decode(t, w)["appeals"].([]any)
	if !ok || len(appeals) != 1 {
		t.Fatalf("appeals = %v, want one entry", appeals)
	}
}

// --- override ---

func TestApplyOverride_RecordsTransition(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	f.mock.ExpectQuery(`SELECT id, post_id, reporter_id`).
		WithArgs("rpt-1").
		WillReturnRows(reportRows("rpt-1", "post-1", "usr-reporter", "open"))
	f.mock.ExpectExec(`UPDATE reports SET status`).
		WithArgs("resolved", "rpt-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/override", gin.H{
		"new_status":      "resolved",
		"reason":          "clear violation",
		"human_confirmed": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["previous_status"] != "open" {
		t.Errorf("previous_status = %v, want open", body["previous_status"])
	}

	records := f.mustReadLedger(t)
	if len(records) != 1 {
		t.Fatalf("ledger has %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Action != ledger.ActionOverrideApplied {
		t.Errorf("action = %q, want %q", rec.Action, ledger.ActionOverrideApplied)
	}
	if rec.Metadata["previous_status"] != "open" || rec.Metadata["new_status"] != "resolved" {
		t.Errorf("transition metadata = %v", rec.Metadata)
	}
	if rec.ActorID != "adm-1" {
		t.Errorf("actor = %q, want adm-1", rec.ActorID)
	}
}

func TestApplyOverride_RejectsOpenTarget(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/override", gin.H{
		"new_status":      "open",
		"reason":          "undo",
		"human_confirmed": true,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["code"]; got != "invalid_status" {
		t.Errorf("code = %v, want invalid_status", got)
	}
}

func TestApplyOverride_RequiresConfirmation(t *testing.T) {
	f := newFixture(t, admin("adm-1"))

	w := f.do(t, http.MethodPost, "/api/v1/reports/rpt-1/override", gin.H{
		"new_status": "resolved",
		"reason":     "clear violation",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", w.Code, w.Body.String())
	}
	if records := f.mustReadLedger(t); len(records) != 0 {
		t.Errorf("rejected override must not write the ledger, got %d records", len(records))
	}
}
