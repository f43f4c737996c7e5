// Package busy decorates the calendar with read-only busy time taken from the
// viewer's external ICS calendar feed.
package busy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fkhayef/meetsync/internal/availability"
	"github.com/fkhayef/meetsync/internal/color"
	"github.com/fkhayef/meetsync/internal/kvstore"
	"github.com/fkhayef/meetsync/internal/metrics"
)

// FeedKey is the logical storage key of the profile's feed URL
const FeedKey = "calendar-feed"

const (
	// maxFeedSize caps how much of a feed response is read
	maxFeedSize = 10 << 20

	// maxCachedFeeds caps the number of parsed feeds kept in memory
	maxCachedFeeds = 1024
)

// ErrInvalidFeedURL is returned for feed URLs that are not http(s) or webcal
var ErrInvalidFeedURL = errors.New("calendar feed must be an http, https or webcal URL")

type cachedFeed struct {
	events    []feedEvent
	fetchedAt time.Time
}

// Fetcher loads and expands ICS feeds, keeping each parsed feed for a short TTL
type Fetcher struct {
	client  *http.Client
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *metrics.Metrics

	mu    sync.Mutex
	cache map[string]cachedFeed
}

// NewFetcher creates a new feed fetcher that only connects to public addresses
func NewFetcher(timeout, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Fetcher {
	return newFetcher(newClient(timeout, publicOnly), ttl, logger, m)
}

func newFetcher(client *http.Client, ttl time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
		cache:   make(map[string]cachedFeed),
	}
}

// NormalizeURL validates a feed URL, rewriting webcal:// to https://. Hosts
// that name loopback, private or link-local addresses are rejected.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() == "" {
		return "", ErrInvalidFeedURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = strings.ToLower(u.Scheme)
	case "webcal":
		u.Scheme = "https"
	default:
		return "", ErrInvalidFeedURL
	}
	if u.User != nil {
		return "", ErrInvalidFeedURL
	}
	if err := checkHost(u.Hostname()); err != nil {
		return "", err
	}
	return u.String(), nil
}

// SetFeedURL stores the profile's feed URL; an empty URL removes it
func SetFeedURL(ctx context.Context, kv kvstore.Store, raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		if err := kv.Delete(ctx, FeedKey); err != nil {
			return "", fmt.Errorf("failed to clear calendar feed: %w", err)
		}
		return "", nil
	}

	feedURL, err := NormalizeURL(raw)
	if err != nil {
		return "", err
	}
	if err := kv.Set(ctx, FeedKey, []byte(feedURL)); err != nil {
		return "", fmt.Errorf("failed to save calendar feed: %w", err)
	}
	return feedURL, nil
}

// ForProfile returns the busy entries of the profile's feed inside [from, to).
// A profile without a feed, or a feed that cannot be read, yields no entries.
func (f *Fetcher) ForProfile(ctx context.Context, kv kvstore.Store, from, to time.Time) []availability.CalendarEntry {
	raw, ok, err := kv.Get(ctx, FeedKey)
	if err != nil {
		f.logger.WithError(err).Warn("Failed to read calendar feed setting")
		return []availability.CalendarEntry{}
	}
	if !ok || len(raw) == 0 {
		return []availability.CalendarEntry{}
	}
	return f.Entries(ctx, string(raw), from, to)
}

// Entries returns the busy entries of feedURL clipped to [from, to). Fetch
// and parse failures are logged and yield no entries.
func (f *Fetcher) Entries(ctx context.Context, feedURL string, from, to time.Time) []availability.CalendarEntry {
	events, err := f.events(ctx, feedURL)
	if err != nil {
		f.metrics.FeedFetches.WithLabelValues(metrics.OutcomeFailed).Inc()
		f.logger.WithError(err).WithField("host", hostOf(feedURL)).Warn("Failed to load calendar feed")
		return []availability.CalendarEntry{}
	}

	entries := make([]availability.CalendarEntry, 0)
	for _, ev := range events {
		for _, occ := range expand(ev, from, to) {
			style := color.Busy
			entries = append(entries, availability.CalendarEntry{
				ID:             ev.UID + "@" + occ.Start.UTC().Format(time.RFC3339),
				Title:          ev.Summary,
				Start:          maxTime(occ.Start, from),
				End:            minTime(occ.End, to),
				IsExternalBusy: true,
				Color:          &style,
			})
		}
	}
	return entries
}

func (f *Fetcher) events(ctx context.Context, feedURL string) ([]feedEvent, error) {
	f.mu.Lock()
	cached, ok := f.cache[feedURL]
	f.mu.Unlock()
	if ok && time.Since(cached.fetchedAt) < f.ttl {
		f.metrics.FeedFetches.WithLabelValues(metrics.OutcomeCached).Inc()
		return cached.events, nil
	}

	body, err := f.fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	events, err := parseFeed(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar feed: %w", err)
	}

	f.store(feedURL, events, time.Now())

	f.metrics.FeedFetches.WithLabelValues(metrics.OutcomeOK).Inc()
	f.logger.WithFields(logrus.Fields{"host": hostOf(feedURL), "events": len(events)}).Debug("Fetched calendar feed")
	return events, nil
}

// store caches a parsed feed, dropping expired feeds first and an arbitrary
// one when the cache is still full
func (f *Fetcher) store(feedURL string, events []feedEvent, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, cached := range f.cache {
		if now.Sub(cached.fetchedAt) >= f.ttl {
			delete(f.cache, key)
		}
	}
	if _, ok := f.cache[feedURL]; !ok && len(f.cache) >= maxCachedFeeds {
		for key := range f.cache {
			delete(f.cache, key)
			break
		}
	}
	f.cache[feedURL] = cachedFeed{events: events, fetchedAt: now}
}

func (f *Fetcher) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar feed returned %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
}

// hostOf keeps secret feed tokens out of the logs
func hostOf(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
