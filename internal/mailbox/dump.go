package mailbox

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DumpSource serves emails from a YAML dump file. The file is re-read on
// every Fetch so a long-running scheduled scan picks up appended messages.
type DumpSource struct {
	path string
}

func NewDumpSource(path string) *DumpSource {
	return &DumpSource{path: path}
}

type dumpFile struct {
	Emails []dumpEmail `yaml:"emails"`
}

type dumpEmail struct {
	UID       uint32 `yaml:"uid"`
	MessageID string `yaml:"message_id"`
	ThreadID  string `yaml:"thread_id"`
	Subject   string `yaml:"subject"`
	Sender    string `yaml:"sender"`
	Date      string `yaml:"date"`
	Body      string `yaml:"body"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDate(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", raw)
}

// Fetch returns the dump's emails above sinceUID, sorted by UID ascending.
func (d *DumpSource) Fetch(_ context.Context, sinceUID uint32) ([]Email, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read mailbox dump %q: %w", d.path, err)
	}

	var file dumpFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse mailbox dump %q: %w", d.path, err)
	}

	emails := make([]Email, 0, len(file.Emails))
	for i, raw := range file.Emails {
		if raw.UID == 0 {
			return nil, fmt.Errorf("mailbox dump %q: email %d has no uid", d.path, i)
		}
		if raw.UID <= sinceUID {
			continue
		}
		date, err := parseDate(raw.Date)
		if err != nil {
			return nil, fmt.Errorf("mailbox dump %q: email uid %d: %w", d.path, raw.UID, err)
		}
		emails = append(emails, Email{
			UID:       raw.UID,
			MessageID: strings.TrimSpace(raw.MessageID),
			ThreadID:  strings.TrimSpace(raw.ThreadID),
			Subject:   raw.Subject,
			Sender:    raw.Sender,
			Date:      date,
			Body:      raw.Body,
		})
	}

	sort.Slice(emails, func(i, j int) bool { return emails[i].UID < emails[j].UID })
	return emails, nil
}
