// internal/compliance/types.go
package compliance

import "strings"

// Status is the lifecycle of a server-side bulk-search job.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
)

// ParseStatus maps the API's status strings onto the closed enum. Unknown
// strings are treated as still running rather than failing the poll loop.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "notstarted", "pending", "starting":
		return StatusPending
	case "succeeded", "completed":
		return StatusCompleted
	default:
		return StatusRunning
	}
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	}
	return "unknown"
}

// Job mirrors the remote bulk-search record. Name is unique per run, derived
// from the mailbox and the engine clock.
type Job struct {
	Name      string
	Query     string
	Status    Status
	Items     int
	SizeBytes int64
}
