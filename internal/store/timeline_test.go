package store

import (
	"fmt"
	"testing"

	"github.com/jackychen-2/job-application-monitor/internal/status"
)

func TestTimeline(t *testing.T) {
	s := openTestStore(t)

	app, err := s.CreateApplication(NewApplication{
		Company:   "Stripe",
		Status:    status.Applied,
		EmailDate: date(t, "2024-03-01"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.ApplyStatus(app, status.Interview, "email:thread", date(t, "2024-03-10")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := uint32(1); i <= 6; i++ {
		rec := &ProcessedEmail{
			UID: i, Account: "a", Folder: "INBOX",
			Subject:       fmt.Sprintf("Email %d", i),
			EmailDate:     date(t, fmt.Sprintf("2024-03-0%d", i)),
			IsJobRelated:  true,
			ApplicationID: &app.ID,
		}
		if err := s.SaveProcessedEmail(rec); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	timeline := s.Timeline(app.ID, date(t, "2024-03-15"))

	if timeline.NewEmailDate != "2024-03-15 00:00:00" {
		t.Fatalf("unexpected new email date: %q", timeline.NewEmailDate)
	}
	if timeline.AppLastEmailDate != "2024-03-01 00:00:00" {
		t.Fatalf("unexpected last email date: %q", timeline.AppLastEmailDate)
	}
	if timeline.DaysSinceLastEmail != 14 {
		t.Fatalf("unexpected day gap: %d", timeline.DaysSinceLastEmail)
	}
	if len(timeline.RecentEvents) == 0 || len(timeline.RecentEvents) > 5 {
		t.Fatalf("expected between 1 and 5 recent events, got %d", len(timeline.RecentEvents))
	}

	unknown := s.Timeline(9999, nil)
	if unknown.DaysSinceLastEmail != -1 || unknown.AppCreatedAt != "" {
		t.Fatalf("unknown applications must yield an empty timeline, got %+v", unknown)
	}
}
