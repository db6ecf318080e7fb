package mailbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testDump = `emails:
  - uid: 3
    message_id: <c@example.com>
    subject: "Third"
    sender: someone@example.com
    date: "2024-03-03"
  - uid: 1
    message_id: <a@example.com>
    thread_id: t1
    subject: "First"
    sender: someone@example.com
    date: "2024-03-01 09:30:00"
    body: |
      Hello there.
  - uid: 2
    message_id: <b@example.com>
    subject: "Second"
    sender: someone@example.com
`

func writeDump(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mailbox.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing dump: %v", err)
	}
	return path
}

func TestDumpSourceFetch(t *testing.T) {
	source := NewDumpSource(writeDump(t, testDump))

	emails, err := source.Fetch(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emails) != 3 {
		t.Fatalf("expected 3 emails, got %d", len(emails))
	}
	for i, want := range []uint32{1, 2, 3} {
		if emails[i].UID != want {
			t.Fatalf("expected uid order 1,2,3, got %v at %d", emails[i].UID, i)
		}
	}

	if emails[0].ThreadID != "t1" {
		t.Fatalf("unexpected thread id: %q", emails[0].ThreadID)
	}
	if emails[0].Date == nil || emails[0].Date.Format("2006-01-02 15:04:05") != "2024-03-01 09:30:00" {
		t.Fatalf("unexpected date: %v", emails[0].Date)
	}
	if emails[1].Date != nil {
		t.Fatalf("missing dates must stay nil, got %v", emails[1].Date)
	}
}

func TestDumpSourceWatermark(t *testing.T) {
	source := NewDumpSource(writeDump(t, testDump))

	emails, err := source.Fetch(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(emails) != 1 || emails[0].UID != 3 {
		t.Fatalf("expected only uid 3 above the watermark, got %+v", emails)
	}
}

func TestDumpSourceRejectsBadInput(t *testing.T) {
	source := NewDumpSource(writeDump(t, "emails:\n  - uid: 1\n    date: \"yesterday\"\n"))
	if _, err := source.Fetch(context.Background(), 0); err == nil {
		t.Fatalf("expected an error for an unparseable date")
	}

	source = NewDumpSource(writeDump(t, "emails:\n  - subject: no uid\n"))
	if _, err := source.Fetch(context.Background(), 0); err == nil {
		t.Fatalf("expected an error for a missing uid")
	}

	source = NewDumpSource(filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := source.Fetch(context.Background(), 0); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}
