package store

import (
	"sort"
	"time"

	"github.com/jackychen-2/job-application-monitor/internal/ai"
)

const maxTimelineEvents = 5

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// Timeline assembles the compact per-candidate context used to enrich the
// LLM confirmation prompt: key dates, the day gap, and the most recent email
// and status events merged by timestamp, newest first.
func (s *Store) Timeline(applicationID int64, newEmailDate *time.Time) ai.Timeline {
	timeline := ai.EmptyTimeline()
	timeline.NewEmailDate = formatDate(newEmailDate)

	app, err := s.ApplicationByID(applicationID)
	if err != nil {
		return timeline
	}

	created := app.CreatedAt
	timeline.AppCreatedAt = formatDate(&created)
	timeline.AppLastEmailDate = formatDate(app.EmailDate)
	if newEmailDate != nil && app.EmailDate != nil {
		gap := newEmailDate.Sub(*app.EmailDate)
		if gap < 0 {
			gap = -gap
		}
		timeline.DaysSinceLastEmail = int(gap.Hours() / 24)
	}

	type dated struct {
		at    time.Time
		event ai.TimelineEvent
	}
	var merged []dated

	var emails []ProcessedEmail
	s.db.
		Where("application_id = ?", applicationID).
		Order("email_date DESC, processed_at DESC").
		Limit(maxTimelineEvents).
		Find(&emails)
	for _, email := range emails {
		at := email.ProcessedAt
		if email.EmailDate != nil {
			at = *email.EmailDate
		}
		subject := email.Subject
		if len(subject) > 180 {
			subject = subject[:180]
		}
		merged = append(merged, dated{
			at: at,
			event: ai.TimelineEvent{
				Date:    formatDate(email.EmailDate),
				Subject: subject,
			},
		})
	}

	var history []StatusHistory
	s.db.
		Where("application_id = ?", applicationID).
		Order("changed_at DESC").
		Limit(maxTimelineEvents).
		Find(&history)
	for _, change := range history {
		at := change.ChangedAt
		merged = append(merged, dated{
			at: at,
			event: ai.TimelineEvent{
				Date:   formatDate(&at),
				Status: change.NewStatus,
			},
		})
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].at.After(merged[j].at) })
	if len(merged) > maxTimelineEvents {
		merged = merged[:maxTimelineEvents]
	}
	for _, d := range merged {
		timeline.RecentEvents = append(timeline.RecentEvents, d.event)
	}

	return timeline
}
