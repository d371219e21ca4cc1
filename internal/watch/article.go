package watch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Article is a tracked wiki page and the revisions fetched for it so far.
//
// Revision membership only changes through Refresh, which is serialised per
// article. Readers (counts, Chronological) may run concurrently with a
// refresh and observe either the whole new batch or none of it.
type Article struct {
	ID     string
	Name   string
	Region Region
	Added  time.Time

	refreshMu sync.Mutex

	mu           sync.RWMutex
	lastReloaded time.Time
	notes        string
	revisions    []*Revision
}

// NewArticle creates an article that has never been reloaded.
func NewArticle(id, name string, region Region, added time.Time) *Article {
	return &Article{
		ID:     id,
		Name:   name,
		Region: region,
		Added:  added,
	}
}

// RestoreArticle rebuilds an article from persisted state.
// Revisions sharing an identity with an earlier one are dropped.
func RestoreArticle(id, name string, region Region, added, lastReloaded time.Time, notes string, revisions []Revision) *Article {
	a := NewArticle(id, name, region, added)
	a.lastReloaded = lastReloaded
	a.notes = notes

	seen := make(map[identity]struct{}, len(revisions))
	a.revisions = make([]*Revision, 0, len(revisions))
	for i := range revisions {
		r := revisions[i]
		key := r.identity()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		a.revisions = append(a.revisions, &r)
	}
	return a
}

// LastReloaded returns the time of the last successful refresh.
// The zero time means the article was never reloaded.
func (a *Article) LastReloaded() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastReloaded
}

// Notes returns the user's free-text notes.
func (a *Article) Notes() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.notes
}

// SetNotes replaces the notes. There are no constraints on the content.
func (a *Article) SetNotes(notes string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notes = notes
}

// Refresh fetches the latest revisions and merges the unseen ones in.
//
// A fetched revision is added only when no stored revision (and no earlier
// record of the same batch) shares its identity; stored copies are never
// overwritten. New revisions start unseen. LastReloaded is advanced to
// clock.Now() only when the fetch succeeded. On failure nothing is mutated
// and the wrapped ErrFetchFailed is returned.
func (a *Article) Refresh(ctx context.Context, src WikiSource, clock Clock, limit int) (int, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	raw, err := src.FetchRevisions(ctx, a.Name, a.Region, limit)
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		return 0, err
	}

	// Membership is stable while refreshMu is held, so the index can be
	// built under the read lock and the append done under the write lock.
	a.mu.RLock()
	known := make(map[identity]struct{}, len(a.revisions)+len(raw))
	for _, r := range a.revisions {
		known[r.identity()] = struct{}{}
	}
	a.mu.RUnlock()

	var fresh []*Revision
	for _, rr := range raw {
		key := identityOf(rr.User, rr.Timestamp)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = struct{}{}
		fresh = append(fresh, &Revision{
			User:      rr.User,
			Timestamp: rr.Timestamp,
			Size:      rr.Size,
			Comment:   rr.Comment,
		})
	}

	now := clock.Now()

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(fresh) > 0 {
		merged := make([]*Revision, 0, len(a.revisions)+len(fresh))
		merged = append(merged, a.revisions...)
		merged = append(merged, fresh...)
		a.revisions = merged
	}
	if now.After(a.lastReloaded) {
		a.lastReloaded = now
	}
	return len(fresh), nil
}

// ShouldRefresh reports whether the last successful refresh is strictly more
// than threshold before now.
func (a *Article) ShouldRefresh(now time.Time, threshold time.Duration) bool {
	return now.Sub(a.LastReloaded()) > threshold
}

// RefreshIfStale refreshes the article only when ShouldRefresh is true.
// It reports whether a refresh was attempted.
func (a *Article) RefreshIfStale(ctx context.Context, src WikiSource, clock Clock, policy Policy) (bool, int, error) {
	policy = policy.withDefaults()
	if !a.ShouldRefresh(clock.Now(), policy.StaleAfter) {
		return false, 0, nil
	}
	added, err := a.Refresh(ctx, src, clock, policy.PageSize)
	return true, added, err
}

// Chronological returns copies of the stored revisions, most recent first.
func (a *Article) Chronological() []Revision {
	out := a.Revisions()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Revisions returns copies of the stored revisions in insertion order.
func (a *Article) Revisions() []Revision {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Revision, len(a.revisions))
	for i, r := range a.revisions {
		out[i] = *r
	}
	return out
}

// CountUnseen returns the number of revisions not yet marked seen.
func (a *Article) CountUnseen() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	n := 0
	for _, r := range a.revisions {
		if !r.Seen {
			n++
		}
	}
	return n
}

// CountTotal returns the number of stored revisions.
func (a *Article) CountTotal() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.revisions)
}

// MarkAllSeen sets Seen to value on every stored revision.
func (a *Article) MarkAllSeen(value bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.revisions {
		r.Seen = value
	}
}

// MarkSeen sets Seen on the revision identified by user and timestamp.
// It returns false when no stored revision matches.
func (a *Article) MarkSeen(user string, ts time.Time, value bool) bool {
	key := identityOf(user, ts)
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.revisions {
		if r.identity() == key {
			r.Seen = value
			return true
		}
	}
	return false
}

// Revision returns a copy of the revision identified by user and timestamp.
func (a *Article) Revision(user string, ts time.Time) (Revision, bool) {
	key := identityOf(user, ts)
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, r := range a.revisions {
		if r.identity() == key {
			return *r, true
		}
	}
	return Revision{}, false
}
