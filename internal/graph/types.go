// internal/graph/types.go
package graph

import "errors"

// ErrAuth marks a token or permission failure; the run terminates for this
// backend when it surfaces.
var ErrAuth = errors.New("authorization rejected by mail API")

// MessageID identifies a single message in the mail API.
type MessageID string

// FolderID identifies a mail folder.
type FolderID string

// Folder carries the per-folder statistics surfaced by the mail API.
type Folder struct {
	ID          FolderID
	DisplayName string
	TotalItems  int
	UnreadItems int
	SizeRaw     string // vendor-formatted size string, parsed lazily by report
}

// MailboxStats summarizes a mailbox for inventory reporting.
type MailboxStats struct {
	Mailbox       string
	ItemCount     int
	TotalSizeRaw  string
	QuotaRaw      string
	RetentionHold bool
}

// Query is a ready-made OData predicate over receivedDateTime
// (e.g. `receivedDateTime lt 2024-01-01T00:00:00Z`).
type Query struct {
	Raw string
}

// BatchOutcome reports one multi-operation delete request. Counts come from
// the per-sub-request status codes; Throttled and Denied flag the presence of
// rate-limit (429/503) and permission/quota (403) rejections respectively.
type BatchOutcome struct {
	Succeeded int
	Failed    int
	Throttled bool
	Denied    bool
}
