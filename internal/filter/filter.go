// Package filter resolves a deletion scope into a single normalized date
// predicate consumable by either backend.
package filter

import (
	"errors"
	"fmt"
	"time"
)

// MaxRangeDays caps the inclusive start/end window.
const MaxRangeDays = 365

var (
	// ErrInvalidRange marks a malformed or oversized start/end window.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrConflictingFilter marks a cutoff-style parameter combined with a range.
	ErrConflictingFilter = errors.New("conflicting filter parameters")
)

// Mode distinguishes the two filter shapes.
type Mode int

const (
	// CutoffBefore selects everything received strictly before a threshold.
	CutoffBefore Mode = iota
	// Range selects everything received within an inclusive window.
	Range
)

// Filter is an immutable, normalized date predicate.
type Filter struct {
	mode   Mode
	cutoff time.Time
	start  time.Time
	end    time.Time
}

// Options carries the raw caller-supplied scope parameters. Exactly one of
// the cutoff-style parameters (OlderThanDays, Before) or the Start/End pair
// may be set.
type Options struct {
	OlderThanDays int
	Before        time.Time
	Start         time.Time
	End           time.Time

	// Now anchors OlderThanDays; defaults to time.Now.
	Now func() time.Time
}

// New validates the options and builds a filter.
func New(opts Options) (Filter, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	hasDays := opts.OlderThanDays > 0
	hasBefore := !opts.Before.IsZero()
	hasStart := !opts.Start.IsZero()
	hasEnd := !opts.End.IsZero()

	if (hasStart || hasEnd) && (hasDays || hasBefore) {
		return Filter{}, fmt.Errorf("%w: date range cannot be combined with an age cutoff", ErrConflictingFilter)
	}
	if hasDays && hasBefore {
		return Filter{}, fmt.Errorf("%w: -older-than and -before are both set", ErrConflictingFilter)
	}

	switch {
	case hasStart || hasEnd:
		if !hasStart || !hasEnd {
			return Filter{}, fmt.Errorf("%w: start and end must both be supplied", ErrInvalidRange)
		}
		if opts.End.Before(opts.Start) {
			return Filter{}, fmt.Errorf("%w: start %s is after end %s",
				ErrInvalidRange, opts.Start.Format(time.DateOnly), opts.End.Format(time.DateOnly))
		}
		if opts.End.Sub(opts.Start) > MaxRangeDays*24*time.Hour {
			return Filter{}, fmt.Errorf("%w: window exceeds %d days", ErrInvalidRange, MaxRangeDays)
		}
		return Filter{mode: Range, start: opts.Start.UTC(), end: opts.End.UTC()}, nil
	case hasBefore:
		return Filter{mode: CutoffBefore, cutoff: opts.Before.UTC()}, nil
	case hasDays:
		cutoff := now().UTC().AddDate(0, 0, -opts.OlderThanDays)
		return Filter{mode: CutoffBefore, cutoff: cutoff}, nil
	default:
		return Filter{}, fmt.Errorf("%w: no scope supplied", ErrInvalidRange)
	}
}

// Mode reports the filter shape.
func (f Filter) Mode() Mode { return f.mode }

// Cutoff returns the threshold for CutoffBefore filters.
func (f Filter) Cutoff() time.Time { return f.cutoff }

// Window returns the inclusive bounds for Range filters.
func (f Filter) Window() (time.Time, time.Time) { return f.start, f.end }

// GraphQuery renders the filter as an OData date comparison over
// receivedDateTime, suitable for $filter and $count calls.
func (f Filter) GraphQuery() string {
	if f.mode == Range {
		return fmt.Sprintf("receivedDateTime ge %s and receivedDateTime le %s",
			f.start.Format(time.RFC3339), f.end.Format(time.RFC3339))
	}
	return fmt.Sprintf("receivedDateTime lt %s", f.cutoff.Format(time.RFC3339))
}

// SearchQuery renders the filter as a KQL content-search query.
func (f Filter) SearchQuery() string {
	if f.mode == Range {
		return fmt.Sprintf("kind:email AND received>=%s AND received<=%s",
			f.start.Format(time.DateOnly), f.end.Format(time.DateOnly))
	}
	return fmt.Sprintf("kind:email AND received<%s", f.cutoff.Format(time.DateOnly))
}

func (f Filter) String() string {
	if f.mode == Range {
		return fmt.Sprintf("range %s..%s", f.start.Format(time.DateOnly), f.end.Format(time.DateOnly))
	}
	return fmt.Sprintf("before %s", f.cutoff.Format(time.DateOnly))
}
