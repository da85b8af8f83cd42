package compliance

import "context"

// Client is the narrow bulk-search surface required by mailreaper. The
// search runs asynchronously on the remote service; purge completion is
// never observed here, only the search phase.
type Client interface {
	CreateSearch(ctx context.Context, name, mailbox, query string) (Job, error)
	StartSearch(ctx context.Context, name string) error
	GetSearch(ctx context.Context, name string) (Job, error)
	// CreatePurge submits a hard-delete purge action against a completed
	// search. Irreversible; the remote side may take up to 48h to finish.
	CreatePurge(ctx context.Context, name string) error
	// DeleteSearch removes the job record server-side.
	DeleteSearch(ctx context.Context, name string) error
	// ListSearches returns jobs whose names carry the given prefix, for
	// orphan cleanup after interrupted runs.
	ListSearches(ctx context.Context, prefix string) ([]Job, error)
}
