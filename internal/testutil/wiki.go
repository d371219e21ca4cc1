package testutil

import (
	"context"
	"fmt"
	"sync"

	"wikiwatch/internal/watch"
)

type pageKey struct {
	title  string
	region watch.Region
}

// FakeWikiSource is a scriptable in-memory WikiSource. Pages must be
// registered with SetRevisions before Exists reports them.
type FakeWikiSource struct {
	mu      sync.Mutex
	pages   map[pageKey][]watch.RawRevision
	failing map[pageKey]error
	fetches map[pageKey]int

	// OnFetch, if set, runs inside FetchRevisions before the result is
	// returned. Tests use it to hold a fetch open.
	OnFetch func(title string, region watch.Region)
}

var _ watch.WikiSource = (*FakeWikiSource)(nil)

func NewFakeWikiSource() *FakeWikiSource {
	return &FakeWikiSource{
		pages:   make(map[pageKey][]watch.RawRevision),
		failing: make(map[pageKey]error),
		fetches: make(map[pageKey]int),
	}
}

// SetRevisions registers a page and the records FetchRevisions returns for it,
// most recent first.
func (f *FakeWikiSource) SetRevisions(title string, region watch.Region, revs ...watch.RawRevision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[pageKey{title, region}] = append([]watch.RawRevision(nil), revs...)
}

// RemovePage makes the page disappear from the remote wiki.
func (f *FakeWikiSource) RemovePage(title string, region watch.Region) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pages, pageKey{title, region})
}

// SetFailing makes every fetch of the page fail with err. A nil err clears it.
func (f *FakeWikiSource) SetFailing(title string, region watch.Region, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failing, pageKey{title, region})
		return
	}
	f.failing[pageKey{title, region}] = err
}

// Fetches returns how many times the page was fetched.
func (f *FakeWikiSource) Fetches(title string, region watch.Region) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[pageKey{title, region}]
}

func (f *FakeWikiSource) Exists(ctx context.Context, title string, region watch.Region) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pages[pageKey{title, region}]
	return ok
}

func (f *FakeWikiSource) FetchRevisions(ctx context.Context, title string, region watch.Region, limit int) ([]watch.RawRevision, error) {
	key := pageKey{title, region}

	f.mu.Lock()
	f.fetches[key]++
	hook := f.OnFetch
	failErr := f.failing[key]
	revs, ok := f.pages[key]
	revs = append([]watch.RawRevision(nil), revs...)
	f.mu.Unlock()

	if hook != nil {
		hook(title, region)
	}

	if failErr != nil {
		return nil, fmt.Errorf("%w: %w", watch.ErrFetchFailed, failErr)
	}
	if !ok {
		return nil, fmt.Errorf("%w: page %q has no revisions", watch.ErrFetchFailed, title)
	}
	if limit > 0 && len(revs) > limit {
		revs = revs[:limit]
	}
	return revs, nil
}
