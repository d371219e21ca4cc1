package watch

import "time"

const (
	DefaultStaleAfter = 15 * time.Minute
	DefaultPageSize   = 50
	DefaultWorkers    = 4
)

// Policy holds the tunable refresh values.
type Policy struct {
	// StaleAfter is how long a successful refresh stays fresh.
	StaleAfter time.Duration
	// PageSize caps the number of revisions requested per fetch.
	PageSize int
	// Workers bounds concurrent fetches in RefreshAll.
	Workers int
}

func DefaultPolicy() Policy {
	return Policy{
		StaleAfter: DefaultStaleAfter,
		PageSize:   DefaultPageSize,
		Workers:    DefaultWorkers,
	}
}

// withDefaults fills zero fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.StaleAfter <= 0 {
		p.StaleAfter = d.StaleAfter
	}
	if p.PageSize <= 0 {
		p.PageSize = d.PageSize
	}
	if p.Workers <= 0 {
		p.Workers = d.Workers
	}
	return p
}
