package graph

import "context"

// BatchLimit is the hard per-request ceiling on delete sub-requests.
const BatchLimit = 20

// Client is the narrow mail-API surface required by mailreaper.
type Client interface {
	ListFolders(ctx context.Context) ([]Folder, error)
	GetFolder(ctx context.Context, id FolderID) (Folder, error)
	// CountMessages returns the number of messages in folder matching q.
	// Implementations fall back to counting minimal-property pages when the
	// count-only call is unavailable.
	CountMessages(ctx context.Context, folder FolderID, q Query) (int, error)
	// ListMessageIDs fetches up to limit identifiers matching q, bodies
	// excluded. Repeated calls re-evaluate q against current server state, so
	// the result set shrinks as deletions land.
	ListMessageIDs(ctx context.Context, folder FolderID, q Query, limit int) ([]MessageID, error)
	// DeleteBatch submits one multi-operation request for at most BatchLimit
	// ids and reports the per-sub-request outcome.
	DeleteBatch(ctx context.Context, ids []MessageID) (BatchOutcome, error)
	GetMailboxStats(ctx context.Context) (MailboxStats, error)
	SetRetentionHold(ctx context.Context, enabled bool) error
}
