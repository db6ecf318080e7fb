package store

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/status"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	return s
}

func date(t *testing.T, s string) *time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("parsing date %q: %v", s, err)
	}
	return &parsed
}

func TestCreateApplicationDefaults(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{Company: "Stripe, Inc."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.Status != status.Applied.String() {
		t.Fatalf("missing status must default to Applied, got %q", app.Status)
	}
	if app.NormalizedCompany != "stripe" {
		t.Fatalf("unexpected normalized company: %q", app.NormalizedCompany)
	}
	if app.Source != "email" {
		t.Fatalf("unexpected source: %q", app.Source)
	}

	history, err := s.HistoryFor(app.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].NewStatus != status.Applied.String() {
		t.Fatalf("expected one initial history row, got %+v", history)
	}
}

func TestApplyStatusLifecycle(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{
		Company:   "Stripe",
		Status:    status.Applied,
		EmailDate: date(t, "2024-03-01"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	changed, err := s.ApplyStatus(app, status.Interview, "email:thread", date(t, "2024-03-10"))
	if err != nil || !changed {
		t.Fatalf("expected the forward transition to apply, changed=%v err=%v", changed, err)
	}
	if app.Status != status.Interview.String() {
		t.Fatalf("unexpected status: %q", app.Status)
	}

	// A late-delivered rejection dated before the last recorded email must
	// not regress the application.
	if err := s.TouchLastEmail(app, "Interview invite", "r@stripe.com", date(t, "2024-03-10")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed, err = s.ApplyStatus(app, status.Rejected, "email:company", date(t, "2024-02-15"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatalf("backdated update must be rejected")
	}
	if app.Status != status.Interview.String() {
		t.Fatalf("status must be unchanged, got %q", app.Status)
	}

	changed, err = s.ApplyStatus(app, status.Offer, "email:company", date(t, "2024-03-20"))
	if err != nil || !changed {
		t.Fatalf("expected the offer to apply, changed=%v err=%v", changed, err)
	}

	history, err := s.HistoryFor(app.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 history rows (initial, interview, offer), got %d", len(history))
	}
	if history[2].OldStatus != status.Interview.String() || history[2].NewStatus != status.Offer.String() {
		t.Fatalf("unexpected last transition: %+v", history[2])
	}
}

func TestTouchLastEmailIgnoresOlderEmails(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{
		Company:      "Stripe",
		EmailSubject: "Newest",
		EmailDate:    date(t, "2024-03-10"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.TouchLastEmail(app, "Older", "r@stripe.com", date(t, "2024-03-01")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.EmailSubject != "Newest" {
		t.Fatalf("older email must not overwrite, got %q", app.EmailSubject)
	}

	if err := s.TouchLastEmail(app, "Newer", "r@stripe.com", date(t, "2024-03-20")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.EmailSubject != "Newer" || !app.EmailDate.Equal(*date(t, "2024-03-20")) {
		t.Fatalf("newer email must overwrite, got %q %v", app.EmailSubject, app.EmailDate)
	}
}

func TestFillMissingFields(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{Company: "Stripe", JobTitle: "Data Engineer"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.FillMissingFields(app, "Platform Engineer", "R-12345"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if app.JobTitle != "Data Engineer" {
		t.Fatalf("existing title must not be overwritten, got %q", app.JobTitle)
	}
	if app.ReqID != "R-12345" {
		t.Fatalf("missing req id must be backfilled, got %q", app.ReqID)
	}
}

func TestThreadLookup(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{Company: "Stripe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := &ProcessedEmail{
		UID: 1, Account: "me@example.com", Folder: "INBOX",
		MessageID: "<a@example.com>", ThreadID: "t1",
		IsJobRelated: true, ApplicationID: &app.ID,
	}
	if err := s.SaveProcessedEmail(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, found, err := s.ApplicationIDForThread("t1")
	if err != nil || !found || id != app.ID {
		t.Fatalf("expected thread t1 to resolve to %d, got id=%d found=%v err=%v", app.ID, id, found, err)
	}

	_, found, err = s.ApplicationIDForThread("t2")
	if err != nil || found {
		t.Fatalf("expected a miss for t2, found=%v err=%v", found, err)
	}
}

func TestSaveProcessedEmailUpsert(t *testing.T) {
	s := openTestStore(t)

	rec := &ProcessedEmail{UID: 7, Account: "me@example.com", Folder: "INBOX", Subject: "First pass"}
	if err := s.SaveProcessedEmail(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	firstID := rec.ID

	again := &ProcessedEmail{UID: 7, Account: "me@example.com", Folder: "INBOX", Subject: "Second pass", NeedsReview: true}
	if err := s.SaveProcessedEmail(again); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.ID != firstID {
		t.Fatalf("re-scan must update in place, got new id %d", again.ID)
	}

	stored, err := s.ProcessedEmailByUID(7, "me@example.com", "INBOX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.Subject != "Second pass" || !stored.NeedsReview {
		t.Fatalf("unexpected stored row: %+v", stored)
	}
}

func TestMessageSeen(t *testing.T) {
	s := openTestStore(t)

	rec := &ProcessedEmail{UID: 1, Account: "me@example.com", Folder: "INBOX", MessageID: "<a@example.com>"}
	if err := s.SaveProcessedEmail(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen, err := s.MessageSeen("<a@example.com>", 0)
	if err != nil || !seen {
		t.Fatalf("expected the message id to be seen, seen=%v err=%v", seen, err)
	}
	seen, err = s.MessageSeen("<a@example.com>", rec.ID)
	if err != nil || seen {
		t.Fatalf("the row itself must be excluded, seen=%v err=%v", seen, err)
	}
	seen, err = s.MessageSeen("", 0)
	if err != nil || seen {
		t.Fatalf("empty message ids are never seen, seen=%v err=%v", seen, err)
	}
}

func TestReconcileOrphan(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{Company: "Stripe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := &ProcessedEmail{UID: 1, Account: "a", Folder: "INBOX", IsJobRelated: true, ApplicationID: &app.ID}
	second := &ProcessedEmail{UID: 2, Account: "a", Folder: "INBOX", IsJobRelated: true, ApplicationID: &app.ID}
	for _, rec := range []*ProcessedEmail{first, second} {
		if err := s.SaveProcessedEmail(rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	deleted, err := s.ReconcileOrphan(app.ID, first.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Fatalf("application still referenced by another email must survive")
	}

	second.ApplicationID = nil
	if err := s.SaveProcessedEmail(second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deleted, err = s.ReconcileOrphan(app.ID, first.ID)
	if err != nil || !deleted {
		t.Fatalf("expected the orphan to be deleted, deleted=%v err=%v", deleted, err)
	}
	if _, err := s.ApplicationByID(app.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after reconciliation, got %v", err)
	}
	history, err := s.HistoryFor(app.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("status history must be deleted with the application, got %d rows", len(history))
	}
}

func TestScanState(t *testing.T) {
	s := openTestStore(t)

	uid, err := s.LastUID("me@example.com", "INBOX")
	if err != nil || uid != 0 {
		t.Fatalf("fresh state must be 0, got %d err=%v", uid, err)
	}

	if err := s.UpdateScanState("me@example.com", "INBOX", 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.UpdateScanState("me@example.com", "INBOX", 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	uid, err = s.LastUID("me@example.com", "INBOX")
	if err != nil || uid != 99 {
		t.Fatalf("expected watermark 99, got %d err=%v", uid, err)
	}

	uid, err = s.LastUID("me@example.com", "Archive")
	if err != nil || uid != 0 {
		t.Fatalf("other folders keep their own watermark, got %d err=%v", uid, err)
	}
}

func TestLinkManuallyAndReview(t *testing.T) {
	s := openTestStore(t)

	first, err := s.CreateApplication(NewApplication{Company: "Stripe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.CreateApplication(NewApplication{Company: "Airbnb"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec := &ProcessedEmail{
		UID: 1, Account: "a", Folder: "INBOX",
		IsJobRelated: true, ApplicationID: &first.ID, NeedsReview: true,
	}
	if err := s.SaveProcessedEmail(rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, err := s.PendingReview()
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending review, got %d err=%v", len(pending), err)
	}

	if err := s.LinkManually(rec.ID, second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := s.ProcessedEmailByID(rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.ApplicationID == nil || *stored.ApplicationID != second.ID {
		t.Fatalf("expected the email to point at the second application, got %+v", stored.ApplicationID)
	}
	if stored.LinkMethod != "manual" || stored.NeedsReview {
		t.Fatalf("unexpected review state: method=%q needsReview=%v", stored.LinkMethod, stored.NeedsReview)
	}

	// The previous application lost its only supporting email.
	if _, err := s.ApplicationByID(first.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected the orphaned application to be deleted, got %v", err)
	}

	pending, err = s.PendingReview()
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending reviews, got %d err=%v", len(pending), err)
	}
}
