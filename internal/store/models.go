package store

import "time"

// Application is a tracked job application. At most one non-deleted row per
// (normalized company, job title, requisition id) triple under normal
// operation; re-application cycles are the sanctioned exception.
type Application struct {
	ID                int64  `gorm:"primaryKey"`
	Company           string `gorm:"size:200;not null;index"`
	NormalizedCompany string `gorm:"size:200;index"`
	JobTitle          string `gorm:"size:300"`
	ReqID             string `gorm:"size:80"`
	EmailSubject      string `gorm:"type:text"`
	EmailSender       string `gorm:"size:300"`
	EmailDate         *time.Time
	Status            string `gorm:"size:50;not null;index"`
	Source            string `gorm:"size:50;not null;default:email"`
	Notes             string `gorm:"type:text"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	StatusHistory []StatusHistory `gorm:"constraint:OnDelete:CASCADE"`
}

// StatusHistory is the append-only audit log of status transitions. Rows are
// never mutated; deletion happens only by cascade with the application.
type StatusHistory struct {
	ID            int64  `gorm:"primaryKey"`
	ApplicationID int64  `gorm:"index;not null"`
	OldStatus     string `gorm:"size:50"`
	NewStatus     string `gorm:"size:50;not null"`
	ChangeSource  string `gorm:"size:100"`
	ChangedAt     time.Time `gorm:"index"`
}

// ProcessedEmail records every scanned message, one row per mailbox UID within
// an account+folder. MessageID is a second, globally unique identity used for
// idempotent re-scans. Rows are mutated in place on re-scan, never duplicated.
type ProcessedEmail struct {
	ID            int64  `gorm:"primaryKey"`
	UID           uint32 `gorm:"uniqueIndex:uniq_uid_account_folder;not null"`
	Account       string `gorm:"uniqueIndex:uniq_uid_account_folder;size:300;not null"`
	Folder        string `gorm:"uniqueIndex:uniq_uid_account_folder;size:100;not null;default:INBOX"`
	MessageID     string `gorm:"uniqueIndex;size:200"`
	ThreadID      string `gorm:"index;size:100"`
	Subject       string `gorm:"type:text"`
	Sender        string `gorm:"size:300"`
	EmailDate     *time.Time
	IsJobRelated  bool   `gorm:"index"`
	ApplicationID *int64 `gorm:"index"`
	LinkMethod    string `gorm:"size:20"`
	NeedsReview   bool   `gorm:"index"`
	ProcessedAt   time.Time
}

// ScanState tracks the last scanned UID per account+folder for incremental
// scans.
type ScanState struct {
	ID         int64  `gorm:"primaryKey"`
	Account    string `gorm:"uniqueIndex:uniq_account_folder;size:300;not null"`
	Folder     string `gorm:"uniqueIndex:uniq_account_folder;size:100;not null;default:INBOX"`
	LastUID    uint32
	LastScanAt *time.Time
}
