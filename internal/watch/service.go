package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WatchService is the orchestration layer the CLI talks to. It loads articles
// from the Store, repairs staleness on demand and persists the result.
type WatchService struct {
	store  Store
	source WikiSource
	logger Logger
	clock  Clock
	idgen  IDGenerator
	policy Policy
	locks  *keyedMutex
}

// NewWatchService creates a WatchService. Zero policy fields take defaults.
func NewWatchService(store Store, source WikiSource, logger Logger, clock Clock, idgen IDGenerator, policy Policy) *WatchService {
	return &WatchService{
		store:  store,
		source: source,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		policy: policy.withDefaults(),
		locks:  newKeyedMutex(),
	}
}

// Policy returns the effective refresh policy.
func (s *WatchService) Policy() Policy {
	return s.policy
}

// ArticleSummary is the list view of an article.
type ArticleSummary struct {
	Article *Article
	Unseen  int
	Total   int
}

// AddArticle starts tracking title on region. The page must exist remotely.
// The first refresh is attempted before the article is stored; its failure
// is not an error and leaves the article unloaded.
func (s *WatchService) AddArticle(ctx context.Context, title string, region Region) (*Article, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("article name is empty")
	}
	if !region.Valid() {
		return nil, fmt.Errorf("invalid wiki region: %d", int(region))
	}

	existing, err := s.store.FindArticleByName(title, region)
	if err != nil {
		return nil, fmt.Errorf("checking for existing article: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s (%s)", ErrAlreadyTracked, title, region.Code())
	}

	if !s.source.Exists(ctx, title, region) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrPageNotFound, title, region.Code())
	}

	article := NewArticle(s.idgen.New(), title, region, s.clock.Now())

	unlock := s.locks.Lock(article.ID)
	defer unlock()

	s.refresh(ctx, article, false)

	if err := s.store.InsertArticle(article); err != nil {
		return nil, fmt.Errorf("inserting article: %w", err)
	}

	s.logger.Info("article tracked", "id", article.ID, "article", title, "region", region.Code())
	return article, nil
}

// RemoveArticle stops tracking an article and discards its revisions.
func (s *WatchService) RemoveArticle(ref string) (*Article, error) {
	article, err := s.ResolveArticle(ref)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(article.ID)
	defer unlock()

	if err := s.store.DeleteArticle(article.ID); err != nil {
		return nil, fmt.Errorf("deleting article: %w", err)
	}

	s.logger.Info("article removed", "id", article.ID, "article", article.Name, "region", article.Region.Code())
	return article, nil
}

// ListArticles returns summaries of the tracked articles matching filter.
// It never contacts the remote wiki.
func (s *WatchService) ListArticles(filter ArticleFilter) ([]*ArticleSummary, error) {
	articles, err := s.store.ListArticles(filter)
	if err != nil {
		return nil, fmt.Errorf("listing articles: %w", err)
	}

	out := make([]*ArticleSummary, len(articles))
	for i, a := range articles {
		out[i] = &ArticleSummary{Article: a, Unseen: a.CountUnseen(), Total: a.CountTotal()}
	}
	return out, nil
}

// OpenArticle loads an article for display, refreshing it first if stale.
func (s *WatchService) OpenArticle(ctx context.Context, ref string) (*Article, error) {
	return s.RefreshArticle(ctx, ref, false)
}

// RefreshArticle refreshes one article. Without force the refresh only
// happens when the article is stale. A failed fetch is logged and otherwise
// ignored; the article is returned unchanged.
func (s *WatchService) RefreshArticle(ctx context.Context, ref string, force bool) (*Article, error) {
	found, err := s.ResolveArticle(ref)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(found.ID)
	defer unlock()

	// Reload under the lock so a refresh that finished while we waited is seen.
	article, err := s.store.FindArticleByID(found.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading article: %w", err)
	}
	if article == nil {
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, ref)
	}

	if s.refresh(ctx, article, force) {
		if err := s.store.SaveArticle(article); err != nil {
			return nil, fmt.Errorf("saving article: %w", err)
		}
	}
	return article, nil
}

// RefreshAll refreshes every tracked article using a bounded pool of workers.
// It returns the number of revisions added across all articles.
func (s *WatchService) RefreshAll(ctx context.Context, force bool) (int, error) {
	articles, err := s.store.ListArticles(ArticleFilter{})
	if err != nil {
		return 0, fmt.Errorf("listing articles: %w", err)
	}

	jobs := make(chan *Article)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		added    int
		firstErr error
	)

	workers := min(s.policy.Workers, len(articles))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				n, err := s.refreshByID(ctx, a.ID, force)
				mu.Lock()
				added += n
				if err != nil && firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
			}
		}()
	}

	for _, a := range articles {
		if ctx.Err() != nil {
			break
		}
		jobs <- a
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return added, firstErr
	}

	s.logger.Info("refresh complete", "articles", len(articles), "added", added)
	return added, nil
}

func (s *WatchService) refreshByID(ctx context.Context, id string, force bool) (int, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	article, err := s.store.FindArticleByID(id)
	if err != nil {
		return 0, fmt.Errorf("reloading article: %w", err)
	}
	if article == nil {
		// Removed since the list was taken.
		return 0, nil
	}

	before := article.CountTotal()
	if !s.refresh(ctx, article, force) {
		return 0, nil
	}
	if err := s.store.SaveArticle(article); err != nil {
		return 0, fmt.Errorf("saving article %s: %w", article.Name, err)
	}
	return article.CountTotal() - before, nil
}

// refresh runs a refresh when forced or stale and reports whether it
// succeeded. Fetch failures are absorbed here: they are only logged, and the
// unchanged LastReloaded makes the next staleness check retry.
func (s *WatchService) refresh(ctx context.Context, article *Article, force bool) bool {
	var (
		attempted bool
		added     int
		err       error
	)
	if force {
		attempted = true
		added, err = article.Refresh(ctx, s.source, s.clock, s.policy.PageSize)
	} else {
		attempted, added, err = article.RefreshIfStale(ctx, s.source, s.clock, s.policy)
	}
	if !attempted {
		s.logger.Debug("article is fresh", "article", article.Name, "region", article.Region.Code())
		return false
	}
	if err != nil {
		s.logger.Warn("refresh failed", "article", article.Name, "region", article.Region.Code(), "error", err)
		return false
	}

	s.logger.Info("article refreshed", "article", article.Name, "region", article.Region.Code(), "added", added)
	return true
}

// MarkAllSeen sets the seen flag of every revision of an article.
func (s *WatchService) MarkAllSeen(ref string, value bool) (*Article, error) {
	return s.update(ref, func(a *Article) error {
		a.MarkAllSeen(value)
		return nil
	})
}

// ViewRevision returns the index-th revision (1-based, most recent first)
// and marks it seen.
func (s *WatchService) ViewRevision(ref string, index int) (*Article, Revision, error) {
	var viewed Revision
	article, err := s.update(ref, func(a *Article) error {
		revs := a.Chronological()
		if index < 1 || index > len(revs) {
			return fmt.Errorf("revision %d out of range (article has %d)", index, len(revs))
		}
		viewed = revs[index-1]
		a.MarkSeen(viewed.User, viewed.Timestamp, true)
		viewed.Seen = true
		return nil
	})
	if err != nil {
		return nil, Revision{}, err
	}
	return article, viewed, nil
}

// MarkRevisionSeen sets the seen flag of the revision identified by user and ts.
func (s *WatchService) MarkRevisionSeen(ref, user string, ts time.Time, value bool) (*Article, error) {
	return s.update(ref, func(a *Article) error {
		if !a.MarkSeen(user, ts, value) {
			return fmt.Errorf("no revision by %s at %s", user, ts.UTC().Format(time.RFC3339))
		}
		return nil
	})
}

// SetNotes replaces the notes of an article.
func (s *WatchService) SetNotes(ref string, notes string) (*Article, error) {
	return s.update(ref, func(a *Article) error {
		a.SetNotes(notes)
		return nil
	})
}

// update applies fn to a freshly loaded article under its lock and saves it.
func (s *WatchService) update(ref string, fn func(*Article) error) (*Article, error) {
	found, err := s.ResolveArticle(ref)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(found.ID)
	defer unlock()

	article, err := s.store.FindArticleByID(found.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading article: %w", err)
	}
	if article == nil {
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, ref)
	}

	if err := fn(article); err != nil {
		return nil, err
	}
	if err := s.store.SaveArticle(article); err != nil {
		return nil, fmt.Errorf("saving article: %w", err)
	}
	return article, nil
}

// ResolveArticle finds an article by reference. A reference is an article ID,
// "<code>:<title>", or a bare title that is tracked on exactly one region.
func (s *WatchService) ResolveArticle(ref string) (*Article, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("article reference is empty")
	}

	if _, err := uuid.Parse(ref); err == nil {
		a, err := s.store.FindArticleByID(ref)
		if err != nil {
			return nil, fmt.Errorf("finding article by id: %w", err)
		}
		if a != nil {
			return a, nil
		}
	}

	if code, title, ok := strings.Cut(ref, ":"); ok {
		if region, err := ParseRegion(code); err == nil {
			a, err := s.store.FindArticleByName(title, region)
			if err != nil {
				return nil, fmt.Errorf("finding article by name: %w", err)
			}
			if a == nil {
				return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, ref)
			}
			return a, nil
		}
	}

	matches, err := s.store.ListArticles(ArticleFilter{Name: ref})
	if err != nil {
		return nil, fmt.Errorf("finding article by name: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrArticleNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		codes := make([]string, len(matches))
		for i, m := range matches {
			codes[i] = m.Region.Code() + ":" + m.Name
		}
		return nil, fmt.Errorf("%w: %s matches %s", ErrAmbiguousRef, ref, strings.Join(codes, ", "))
	}
}

// keyedMutex hands out one mutex per key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock blocks until key is free and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
