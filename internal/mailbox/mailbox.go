// Package mailbox abstracts where emails come from. The scan pipeline only
// sees the Source interface; the shipped implementation reads a YAML dump
// file, which keeps scans replayable and the pipeline testable without a
// live mailbox.
package mailbox

import (
	"context"
	"time"
)

// Email is one message as handed to the scan pipeline. UID is the mailbox
// sequence identity used for the incremental watermark; MessageID is the
// globally unique header identity.
type Email struct {
	UID       uint32
	MessageID string
	ThreadID  string
	Subject   string
	Sender    string
	Date      *time.Time
	Body      string
}

// Source fetches emails with UID greater than sinceUID, in ascending UID
// order.
type Source interface {
	Fetch(ctx context.Context, sinceUID uint32) ([]Email, error)
}
