// Package scrape fetches public competition pages and extracts typed
// snapshots from their markup.
package scrape

import (
	"context"
	"log"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/hoofs-app/hoofs/internal/model"
)

// Options configures a Scraper.
type Options struct {
	// Fetcher retrieves pages. Required.
	Fetcher Fetcher
	// EventURL maps a numero to its public page URL. Required.
	EventURL func(numero int64) string
	// CacheSize bounds the fingerprint cache (entries).
	CacheSize int
	// CacheTTL expires fingerprints.
	CacheTTL time.Duration
	// Debug enables per-fetch logging.
	Debug bool
}

// Scraper turns event pages into snapshots. Safe for concurrent use.
type Scraper struct {
	fetch    Fetcher
	eventURL func(numero int64) string
	cache    *pageCache
	debug    bool
}

func New(opts Options) *Scraper {
	if opts.Fetcher == nil {
		panic("scrape: Options.Fetcher is required")
	}
	if opts.EventURL == nil {
		panic("scrape: Options.EventURL is required")
	}
	size := opts.CacheSize
	if size <= 0 {
		size = 1024
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Scraper{
		fetch:    opts.Fetcher,
		eventURL: opts.EventURL,
		cache:    newPageCache(size, ttl),
		debug:    opts.Debug,
	}
}

// Fetch retrieves and parses the page for numero. It never returns an error:
// any fetch failure yields an empty snapshot with Fetched=false so the caller
// can record a failed check and move on.
func (s *Scraper) Fetch(ctx context.Context, numero int64) model.Snapshot {
	start := time.Now()
	page, err := s.fetch(ctx, s.eventURL(numero))
	elapsedMs := time.Since(start).Milliseconds()

	snap := model.Snapshot{
		Numero:         numero,
		HTTPStatus:     page.StatusCode,
		ResponseTimeMs: elapsedMs,
		CheckedAtNs:    time.Now().UnixNano(),
	}
	if err != nil {
		log.Printf("[scrape] event %d: fetch failed: %v", numero, err)
		return snap
	}
	if page.StatusCode >= 400 {
		log.Printf("[scrape] event %d: http %d", numero, page.StatusCode)
		return snap
	}

	hash := xxh3.Hash(page.Body)
	parsed, cached := s.cache.lookup(numero, hash)
	if !cached {
		parsed = parsePage(page.Body)
		s.cache.store(numero, hash, parsed)
	}

	snap.Name = parsed.Name
	snap.Venue = parsed.Venue
	snap.StartDate = parsed.StartDate
	snap.EndDate = parsed.EndDate
	snap.Discipline = parsed.Discipline
	snap.Organizer = parsed.Organizer
	snap.Status = parsed.Status
	snap.IsOpen = parsed.IsOpen
	snap.Fetched = true

	if s.debug {
		log.Printf("[scrape] event %d: name=%q venue=%q dates=%s..%s open=%v cached=%v %dms",
			numero, snap.Name, snap.Venue, snap.StartDate, snap.EndDate, snap.IsOpen, cached, elapsedMs)
	}
	return snap
}

// Close releases the fingerprint cache.
func (s *Scraper) Close() {
	s.cache.close()
}
