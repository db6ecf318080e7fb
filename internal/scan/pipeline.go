// Package scan drives mailbox processing: fetch new emails, extract fields,
// resolve each against tracked applications and persist the outcome, one
// transaction per email.
package scan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
	"github.com/jackychen-2/job-application-monitor/internal/extract"
	"github.com/jackychen-2/job-application-monitor/internal/linking"
	"github.com/jackychen-2/job-application-monitor/internal/mailbox"
	"github.com/jackychen-2/job-application-monitor/internal/store"
)

// Summary reports what a single scan run did. Failures holds one line per
// email that could not be processed; those emails are retried next scan.
type Summary struct {
	Fetched    int
	Processed  int
	JobRelated int
	Created    int
	Updated    int
	Skipped    int
	Errors     int
	Failures   []string
	Cancelled  bool
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
)

// Pipeline processes one account+folder. It owns no scheduling; the
// Coordinator and the CLI decide when Run is called.
type Pipeline struct {
	store    *store.Store
	resolver *linking.Resolver
	source   mailbox.Source
	account  string
	folder   string
	logger   *zap.Logger
}

func NewPipeline(st *store.Store, resolver *linking.Resolver, source mailbox.Source, account, folder string, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if folder == "" {
		folder = "INBOX"
	}
	return &Pipeline{
		store:    st,
		resolver: resolver,
		source:   source,
		account:  account,
		folder:   folder,
		logger:   logger,
	}
}

// Run fetches everything above the stored watermark and processes it in UID
// order. Each email gets its own transaction; a failing email is logged and
// counted, and the watermark stops advancing so it is retried next scan.
// Cancellation is honored between emails, never inside one.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	lastUID, err := p.store.LastUID(p.account, p.folder)
	if err != nil {
		return summary, err
	}

	emails, err := p.source.Fetch(ctx, lastUID)
	if err != nil {
		return summary, fmt.Errorf("fetch emails: %w", err)
	}
	summary.Fetched = len(emails)
	p.logger.Info("scan started",
		zap.String("account", p.account),
		zap.String("folder", p.folder),
		zap.Uint32("since_uid", lastUID),
		zap.Int("fetched", len(emails)),
	)

	advanceWatermark := true
	for _, email := range emails {
		if ctx.Err() != nil {
			summary.Cancelled = true
			p.logger.Info("scan cancelled",
				zap.Int("processed", summary.Processed),
				zap.Int("remaining", summary.Fetched-summary.Processed),
			)
			break
		}

		var result outcome
		err := p.store.WithTx(func(tx *store.Store) error {
			var txErr error
			result, txErr = p.processOne(ctx, tx, email)
			return txErr
		})
		if err != nil {
			summary.Errors++
			summary.Failures = append(summary.Failures, fmt.Sprintf("uid %d: %v", email.UID, err))
			advanceWatermark = false
			p.logger.Error("email processing failed",
				zap.Uint32("uid", email.UID),
				zap.String("subject", email.Subject),
				zap.Error(err),
			)
			continue
		}

		summary.Processed++
		switch result {
		case outcomeCreated:
			summary.JobRelated++
			summary.Created++
		case outcomeUpdated:
			summary.JobRelated++
			summary.Updated++
		default:
			summary.Skipped++
		}

		if advanceWatermark {
			if err := p.store.UpdateScanState(p.account, p.folder, email.UID); err != nil {
				p.logger.Error("watermark update failed", zap.Uint32("uid", email.UID), zap.Error(err))
				advanceWatermark = false
			}
		}
	}

	p.logger.Info("scan finished",
		zap.Int("processed", summary.Processed),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Bool("cancelled", summary.Cancelled),
	)
	return summary, nil
}

// processOne handles a single email inside its transaction. Re-scanning a UID
// reruns the full decision and updates the bookkeeping row in place; if the
// link moved away from an application nothing else references, that orphan is
// deleted.
func (p *Pipeline) processOne(ctx context.Context, tx *store.Store, email mailbox.Email) (outcome, error) {
	var previousAppID *int64
	previous, err := tx.ProcessedEmailByUID(email.UID, p.account, p.folder)
	switch {
	case err == nil:
		previousAppID = previous.ApplicationID
	case errors.Is(err, store.ErrNotFound):
		// First time seeing this UID. A different UID carrying the same
		// message id means the message was moved or re-delivered; do not
		// process it twice.
		seen, err := tx.MessageSeen(email.MessageID, 0)
		if err != nil {
			return outcomeSkipped, err
		}
		if seen {
			p.logger.Debug("duplicate message id, skipping",
				zap.Uint32("uid", email.UID),
				zap.String("message_id", email.MessageID),
			)
			return outcomeSkipped, nil
		}
	default:
		return outcomeSkipped, err
	}

	fields := extract.All(email.Subject, email.Sender, email.Body)
	rec := &store.ProcessedEmail{
		UID:          email.UID,
		Account:      p.account,
		Folder:       p.folder,
		MessageID:    email.MessageID,
		ThreadID:     email.ThreadID,
		Subject:      email.Subject,
		Sender:       email.Sender,
		EmailDate:    email.Date,
		IsJobRelated: fields.JobRelated,
	}

	if !fields.JobRelated {
		if err := tx.SaveProcessedEmail(rec); err != nil {
			return outcomeSkipped, err
		}
		if previousAppID != nil {
			if _, err := tx.ReconcileOrphan(*previousAppID, rec.ID); err != nil {
				return outcomeSkipped, err
			}
		}
		return outcomeSkipped, nil
	}

	result, err := p.resolve(ctx, tx, email, fields)
	if err != nil {
		return outcomeSkipped, err
	}

	linked := outcomeCreated
	var app *store.Application
	if result.Linked() {
		linked = outcomeUpdated
		app, err = tx.ApplicationByID(result.ApplicationID)
		if err != nil {
			return outcomeSkipped, err
		}
		source := "email:" + string(result.Method)
		if _, err := tx.ApplyStatus(app, fields.Status, source, email.Date); err != nil {
			return outcomeSkipped, err
		}
		if err := tx.FillMissingFields(app, fields.JobTitle, fields.ReqID); err != nil {
			return outcomeSkipped, err
		}
		if err := tx.TouchLastEmail(app, email.Subject, email.Sender, email.Date); err != nil {
			return outcomeSkipped, err
		}
	} else {
		app, err = tx.CreateApplication(store.NewApplication{
			Company:      fields.Company,
			JobTitle:     fields.JobTitle,
			ReqID:        fields.ReqID,
			EmailSubject: email.Subject,
			EmailSender:  email.Sender,
			EmailDate:    email.Date,
			Status:       fields.Status,
		})
		if err != nil {
			return outcomeSkipped, err
		}
	}

	rec.ApplicationID = &app.ID
	rec.LinkMethod = string(result.Method)
	rec.NeedsReview = result.NeedsReview || fields.Company == "Unknown"
	if err := tx.SaveProcessedEmail(rec); err != nil {
		return outcomeSkipped, err
	}

	if previousAppID != nil && *previousAppID != app.ID {
		if _, err := tx.ReconcileOrphan(*previousAppID, rec.ID); err != nil {
			return outcomeSkipped, err
		}
	}
	return linked, nil
}

// resolve runs the link tiers in priority order: thread continuity first,
// then the company rules.
func (p *Pipeline) resolve(ctx context.Context, tx *store.Store, email mailbox.Email, fields extract.Fields) (linking.LinkResult, error) {
	result, err := p.resolver.ResolveByThread(tx, email.ThreadID)
	if err != nil {
		return result, err
	}
	if result.Linked() {
		return result, nil
	}

	candidates, err := tx.Candidates()
	if err != nil {
		return result, err
	}

	return p.resolver.ResolveByCompany(ctx, &linking.CompanyRequest{
		Company:         fields.Company,
		Candidates:      candidates,
		ExtractedStatus: fields.Status,
		JobTitle:        fields.JobTitle,
		ReqID:           fields.ReqID,
		Email: linking.EmailContext{
			Subject: email.Subject,
			Sender:  email.Sender,
			Body:    email.Body,
			Date:    email.Date,
		},
		Timeline: func(c linking.Candidate) ai.Timeline {
			return tx.Timeline(c.ID, email.Date)
		},
	}), nil
}
