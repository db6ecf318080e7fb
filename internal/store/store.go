// Package store is the sqlite-backed persistence layer: applications, their
// status history, processed-email bookkeeping and scan state. The resolver
// never sees these rows directly, only Candidate projections.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jackychen-2/job-application-monitor/internal/linking"
	"github.com/jackychen-2/job-application-monitor/internal/status"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the sqlite database at path and migrates
// the schema. Use ":memory:" for tests.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&Application{}, &StatusHistory{}, &ProcessedEmail{}, &ScanState{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// WithTx runs fn inside one transaction. The pipeline wraps each email's
// query-decide-mutate sequence in one of these so a failure rolls back only
// that email's work.
func (s *Store) WithTx(fn func(tx *Store) error) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, logger: s.logger})
	})
}

// Candidates projects every application into the read model consumed by the
// resolver, newest first.
func (s *Store) Candidates() ([]linking.Candidate, error) {
	var apps []Application
	if err := s.db.Order("created_at DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}

	candidates := make([]linking.Candidate, 0, len(apps))
	for _, app := range apps {
		candidates = append(candidates, linking.Candidate{
			ID:                app.ID,
			Company:           app.Company,
			NormalizedCompany: app.NormalizedCompany,
			JobTitle:          app.JobTitle,
			ReqID:             app.ReqID,
			Status:            status.Status(app.Status),
			LastEmailSubject:  app.EmailSubject,
		})
	}
	return candidates, nil
}

func (s *Store) ApplicationByID(id int64) (*Application, error) {
	var app Application
	err := s.db.First(&app, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query application %d: %w", id, err)
	}
	return &app, nil
}

// NewApplication captures the fields of an application created from an email.
type NewApplication struct {
	Company      string
	JobTitle     string
	ReqID        string
	EmailSubject string
	EmailSender  string
	EmailDate    *time.Time
	Status       status.Status
	Source       string
}

// CreateApplication inserts a new application together with its initial
// status history row.
func (s *Store) CreateApplication(in NewApplication) (*Application, error) {
	st := in.Status
	if st == "" || st == status.Unknown {
		st = status.Applied
	}
	source := in.Source
	if source == "" {
		source = "email"
	}

	app := Application{
		Company:           in.Company,
		NormalizedCompany: linking.NormalizeCompany(in.Company),
		JobTitle:          in.JobTitle,
		ReqID:             in.ReqID,
		EmailSubject:      in.EmailSubject,
		EmailSender:       in.EmailSender,
		EmailDate:         in.EmailDate,
		Status:            st.String(),
		Source:            source,
	}
	if err := s.db.Create(&app).Error; err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	history := StatusHistory{
		ApplicationID: app.ID,
		NewStatus:     st.String(),
		ChangeSource:  source,
		ChangedAt:     time.Now().UTC(),
	}
	if err := s.db.Create(&history).Error; err != nil {
		return nil, fmt.Errorf("create initial status history: %w", err)
	}

	s.logger.Info("application created",
		zap.Int64("application_id", app.ID),
		zap.String("company", app.Company),
		zap.String("job_title", app.JobTitle),
		zap.String("status", app.Status),
	)
	return &app, nil
}

// ApplyStatus runs the lifecycle guard and, when the transition is accepted,
// updates the application and appends one history row. Returns whether the
// status actually changed.
func (s *Store) ApplyStatus(app *Application, next status.Status, source string, emailDate *time.Time) (bool, error) {
	verdict := status.Allow(status.Status(app.Status), app.EmailDate, next, emailDate)
	if !verdict.Allow {
		s.logger.Debug("status update rejected",
			zap.Int64("application_id", app.ID),
			zap.String("current", app.Status),
			zap.String("next", next.String()),
			zap.String("reason", verdict.Reason),
		)
		return false, nil
	}

	old := app.Status
	app.Status = next.String()
	if err := s.db.Model(app).Update("status", app.Status).Error; err != nil {
		return false, fmt.Errorf("update application status: %w", err)
	}

	history := StatusHistory{
		ApplicationID: app.ID,
		OldStatus:     old,
		NewStatus:     app.Status,
		ChangeSource:  source,
		ChangedAt:     time.Now().UTC(),
	}
	if err := s.db.Create(&history).Error; err != nil {
		return false, fmt.Errorf("append status history: %w", err)
	}

	s.logger.Info("status updated",
		zap.Int64("application_id", app.ID),
		zap.String("old", old),
		zap.String("new", app.Status),
		zap.String("source", source),
	)
	return true, nil
}

// TouchLastEmail refreshes the application's last-seen email fields. Older
// emails never overwrite: they would corrupt the backward-time guard's
// reference point.
func (s *Store) TouchLastEmail(app *Application, subject, sender string, emailDate *time.Time) error {
	if emailDate != nil && app.EmailDate != nil && emailDate.Before(*app.EmailDate) {
		return nil
	}

	updates := map[string]any{
		"email_subject": subject,
		"email_sender":  sender,
	}
	if emailDate != nil {
		updates["email_date"] = emailDate
	}
	if err := s.db.Model(app).Updates(updates).Error; err != nil {
		return fmt.Errorf("update last email fields: %w", err)
	}

	app.EmailSubject = subject
	app.EmailSender = sender
	if emailDate != nil {
		app.EmailDate = emailDate
	}
	return nil
}

// FillMissingFields backfills title and requisition id learned from a newly
// linked email when the application has none yet.
func (s *Store) FillMissingFields(app *Application, jobTitle, reqID string) error {
	updates := map[string]any{}
	if app.JobTitle == "" && jobTitle != "" {
		updates["job_title"] = jobTitle
		app.JobTitle = jobTitle
	}
	if app.ReqID == "" && reqID != "" {
		updates["req_id"] = reqID
		app.ReqID = reqID
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.Model(app).Updates(updates).Error; err != nil {
		return fmt.Errorf("backfill application fields: %w", err)
	}
	return nil
}

// ApplicationIDForThread implements linking.ThreadLookup: the application the
// most recently processed job-related email in this thread linked to.
func (s *Store) ApplicationIDForThread(threadID string) (int64, bool, error) {
	var email ProcessedEmail
	err := s.db.
		Where("thread_id = ? AND application_id IS NOT NULL AND is_job_related = ?", threadID, true).
		Order("processed_at DESC, id DESC").
		First(&email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query thread link: %w", err)
	}
	return *email.ApplicationID, true, nil
}

// ProcessedEmailByUID returns the bookkeeping row for a mailbox UID, or
// ErrNotFound on first-time processing.
func (s *Store) ProcessedEmailByUID(uid uint32, account, folder string) (*ProcessedEmail, error) {
	var email ProcessedEmail
	err := s.db.
		Where("uid = ? AND account = ? AND folder = ?", uid, account, folder).
		First(&email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query processed email: %w", err)
	}
	return &email, nil
}

// MessageSeen reports whether a message with this global message id was
// already processed under a different UID (mailbox moves, re-delivery).
func (s *Store) MessageSeen(messageID string, excludeEmailID int64) (bool, error) {
	if messageID == "" {
		return false, nil
	}
	var count int64
	err := s.db.Model(&ProcessedEmail{}).
		Where("message_id = ? AND id <> ?", messageID, excludeEmailID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("query message id: %w", err)
	}
	return count > 0, nil
}

// SaveProcessedEmail inserts or updates the bookkeeping row in place so
// repeated scans stay idempotent.
func (s *Store) SaveProcessedEmail(rec *ProcessedEmail) error {
	rec.ProcessedAt = time.Now().UTC()

	existing, err := s.ProcessedEmailByUID(rec.UID, rec.Account, rec.Folder)
	if errors.Is(err, ErrNotFound) {
		if err := s.db.Create(rec).Error; err != nil {
			return fmt.Errorf("insert processed email: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	rec.ID = existing.ID
	if err := s.db.Model(existing).Select(
		"message_id", "thread_id", "subject", "sender", "email_date",
		"is_job_related", "application_id", "link_method", "needs_review", "processed_at",
	).Updates(rec).Error; err != nil {
		return fmt.Errorf("update processed email: %w", err)
	}
	return nil
}

// ReconcileOrphan deletes the previously linked application when no processed
// email other than excludeEmailID still references it. Status history goes
// with it. Returns whether a deletion happened.
func (s *Store) ReconcileOrphan(previousAppID int64, excludeEmailID int64) (bool, error) {
	var remaining int64
	err := s.db.Model(&ProcessedEmail{}).
		Where("application_id = ? AND id <> ?", previousAppID, excludeEmailID).
		Count(&remaining).Error
	if err != nil {
		return false, fmt.Errorf("count supporting emails: %w", err)
	}
	if remaining > 0 {
		return false, nil
	}

	if err := s.db.Where("application_id = ?", previousAppID).Delete(&StatusHistory{}).Error; err != nil {
		return false, fmt.Errorf("delete status history: %w", err)
	}
	if err := s.db.Delete(&Application{}, previousAppID).Error; err != nil {
		return false, fmt.Errorf("delete orphan application: %w", err)
	}

	s.logger.Info("orphan application deleted", zap.Int64("application_id", previousAppID))
	return true, nil
}

// LastUID returns the scan watermark for account+folder, 0 when none.
func (s *Store) LastUID(account, folder string) (uint32, error) {
	var state ScanState
	err := s.db.Where("account = ? AND folder = ?", account, folder).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query scan state: %w", err)
	}
	return state.LastUID, nil
}

// UpdateScanState upserts the scan watermark for account+folder.
func (s *Store) UpdateScanState(account, folder string, lastUID uint32) error {
	now := time.Now().UTC()

	var state ScanState
	err := s.db.Where("account = ? AND folder = ?", account, folder).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.db.Create(&ScanState{
			Account:    account,
			Folder:     folder,
			LastUID:    lastUID,
			LastScanAt: &now,
		}).Error
	}
	if err != nil {
		return fmt.Errorf("query scan state: %w", err)
	}

	return s.db.Model(&state).Updates(map[string]any{
		"last_uid":     lastUID,
		"last_scan_at": &now,
	}).Error
}

// PendingReview lists job-related emails flagged for human review.
func (s *Store) PendingReview() ([]ProcessedEmail, error) {
	var emails []ProcessedEmail
	err := s.db.
		Where("needs_review = ? AND is_job_related = ?", true, true).
		Order("processed_at DESC").
		Find(&emails).Error
	if err != nil {
		return nil, fmt.Errorf("query pending review emails: %w", err)
	}
	return emails, nil
}

// ProcessedEmailByID returns one bookkeeping row by primary key.
func (s *Store) ProcessedEmailByID(id int64) (*ProcessedEmail, error) {
	var email ProcessedEmail
	err := s.db.First(&email, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query processed email %d: %w", id, err)
	}
	return &email, nil
}

// LinkManually points an email at an application with method "manual" and
// clears its review flag, reconciling the orphaned previous link if any.
func (s *Store) LinkManually(emailID, applicationID int64) error {
	email, err := s.ProcessedEmailByID(emailID)
	if err != nil {
		return err
	}
	if _, err := s.ApplicationByID(applicationID); err != nil {
		return err
	}

	previous := email.ApplicationID

	err = s.db.Model(email).Updates(map[string]any{
		"application_id": applicationID,
		"link_method":    string(linking.MethodManual),
		"needs_review":   false,
	}).Error
	if err != nil {
		return fmt.Errorf("link email manually: %w", err)
	}

	if previous != nil && *previous != applicationID {
		if _, err := s.ReconcileOrphan(*previous, emailID); err != nil {
			return err
		}
	}

	s.logger.Info("email manually linked",
		zap.Int64("email_id", emailID),
		zap.Int64("application_id", applicationID),
	)
	return nil
}

// DismissReview clears an email's review flag without changing its link.
func (s *Store) DismissReview(emailID int64) error {
	email, err := s.ProcessedEmailByID(emailID)
	if err != nil {
		return err
	}
	return s.db.Model(email).Update("needs_review", false).Error
}

// Applications lists all applications, newest first.
func (s *Store) Applications() ([]Application, error) {
	var apps []Application
	if err := s.db.Order("created_at DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	return apps, nil
}

// HistoryFor returns the status history of one application, oldest first.
func (s *Store) HistoryFor(applicationID int64) ([]StatusHistory, error) {
	var history []StatusHistory
	err := s.db.
		Where("application_id = ?", applicationID).
		Order("changed_at ASC, id ASC").
		Find(&history).Error
	if err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	return history, nil
}
