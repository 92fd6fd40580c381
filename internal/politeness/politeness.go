// Package politeness enforces robots.txt and per-domain rate limiting. It
// shares the pod's store client with the frontier manager — neither owns
// the other; a third party (pod init) constructs both over the same client.
package politeness

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

const (
	robotsTxtPath       = "/robots.txt"
	maxRobotsBodyBytes  = 512 * 1024
	statusSuccessLow    = 200
	statusSuccessHigh   = 300
	fieldNextFetchTime  = "next_fetch_time"
	fieldRobotsTxt      = "robots_txt"
	fieldRobotsExpires  = "robots_expires"
	fieldIsExcluded     = "is_excluded"
	fieldIsSeeded       = "is_seeded"
	domainKeyFmt        = "domain:%s"
	robotsWarmChunkSize = 50
)

// parsedEntry is the in-process cache of a parsed robots.txt, keyed by
// domain, mirroring the bytes+expiry pair persisted in the domain hash.
type parsedEntry struct {
	data      *robotstxt.RobotsData
	allowAll  bool
	expiresAt time.Time
}

// Config configures an Enforcer.
type Config struct {
	PolitenessDelay time.Duration
	RobotsCacheTTL  time.Duration
	UserAgent       string
	HTTPClient      *http.Client
}

// Enforcer is the per-pod politeness gate: robots.txt cache, exclusion
// flags, and the next-fetch-time serializer, all living in the pod's store.
type Enforcer struct {
	storeClient store.Client
	httpClient  *http.Client
	userAgent   string
	delay       time.Duration
	cacheTTL    time.Duration
	log         logger.Interface

	mu     sync.RWMutex
	parsed map[string]*parsedEntry
}

// New constructs an Enforcer over a pod's store client.
func New(storeClient store.Client, cfg Config, log logger.Interface) *Enforcer {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	cacheTTL := cfg.RobotsCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	if log == nil {
		log = logger.NewNoOp()
	}

	return &Enforcer{
		storeClient: storeClient,
		httpClient:  httpClient,
		userAgent:   cfg.UserAgent,
		delay:       cfg.PolitenessDelay,
		cacheTTL:    cacheTTL,
		log:         log,
		parsed:      make(map[string]*parsedEntry),
	}
}

// Initialize loads manual exclusions from a file (one domain per line,
// blank lines and #-comments ignored) into domain hashes. A missing path
// is a no-op: exclusions are optional.
func (e *Enforcer) Initialize(ctx context.Context, exclusionFilePath string, open func(string) (io.ReadCloser, error)) error {
	if exclusionFilePath == "" {
		return nil
	}

	rc, err := open(exclusionFilePath)
	if err != nil {
		return fmt.Errorf("politeness: open exclusion file: %w", err)
	}
	defer rc.Close()

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		domain := strings.ToLower(line)
		key := fmt.Sprintf(domainKeyFmt, domain)
		if err := e.storeClient.HashSet(ctx, key, map[string]string{fieldIsExcluded: "1"}); err != nil {
			e.log.Warn("politeness: failed to set exclusion", "domain", domain, "error", err)
		}
	}

	return scanner.Err()
}

// IsURLAllowed combines the manual exclusion flag with the cached robots.txt
// decision for the URL's path. On cache miss it synchronously fetches and
// caches robots.txt; fetch failure degrades to permissive (allow), logged.
func (e *Enforcer) IsURLAllowed(ctx context.Context, rawURL string) (bool, error) {
	domain, ok := urlutil.ExtractDomain(rawURL)
	if !ok {
		return false, fmt.Errorf("politeness: extract domain from %q", rawURL)
	}

	excluded, err := e.isExcluded(ctx, domain)
	if err != nil {
		return false, err
	}
	if excluded {
		return false, nil
	}

	entry, err := e.getOrFetchEntry(ctx, domain)
	if err != nil {
		return false, err
	}

	if entry.allowAll {
		return true, nil
	}

	path := urlPath(rawURL)

	return entry.data.TestAgent(path, e.userAgent), nil
}

// CanFetchDomainNow reports whether now >= domain.next_fetch_time.
func (e *Enforcer) CanFetchDomainNow(ctx context.Context, domain string) (bool, error) {
	key := fmt.Sprintf(domainKeyFmt, domain)

	raw, ok, err := e.storeClient.HashGet(ctx, key, fieldNextFetchTime)
	if err != nil {
		return false, fmt.Errorf("politeness: read next_fetch_time: %w", err)
	}
	if !ok {
		return true, nil
	}

	nextFetch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return true, nil //nolint:nilerr // malformed field treated as never-fetched
	}

	return time.Now().Unix() >= nextFetch, nil
}

// RecordDomainFetchAttempt sets next_fetch_time = now + politeness_delay,
// taking the max of the configured delay and any robots.txt crawl-delay
// for the engine's user agent.
func (e *Enforcer) RecordDomainFetchAttempt(ctx context.Context, domain string) error {
	delay := e.delay
	if crawlDelay := e.crawlDelay(domain); crawlDelay > delay {
		delay = crawlDelay
	}

	next := time.Now().Add(delay).Unix()
	key := fmt.Sprintf(domainKeyFmt, domain)

	return e.storeClient.HashSet(ctx, key, map[string]string{
		fieldNextFetchTime: strconv.FormatInt(next, 10),
	})
}

// BatchLoadRobotsTxt warms the robots.txt cache for a set of domains, used
// by seed loading before the seed URLs are admitted.
func (e *Enforcer) BatchLoadRobotsTxt(ctx context.Context, domains []string) {
	for i := 0; i < len(domains); i += robotsWarmChunkSize {
		end := i + robotsWarmChunkSize
		if end > len(domains) {
			end = len(domains)
		}

		for _, domain := range domains[i:end] {
			if _, err := e.getOrFetchEntry(ctx, domain); err != nil {
				e.log.Warn("politeness: warm robots.txt failed", "domain", domain, "error", err)
			}
		}
	}
}

func (e *Enforcer) isExcluded(ctx context.Context, domain string) (bool, error) {
	key := fmt.Sprintf(domainKeyFmt, domain)

	val, ok, err := e.storeClient.HashGet(ctx, key, fieldIsExcluded)
	if err != nil {
		return false, fmt.Errorf("politeness: read is_excluded: %w", err)
	}

	return ok && val == "1", nil
}

func (e *Enforcer) crawlDelay(domain string) time.Duration {
	e.mu.RLock()
	entry, ok := e.parsed[domain]
	e.mu.RUnlock()

	if !ok || entry.allowAll || entry.data == nil {
		return 0
	}

	group := entry.data.FindGroup(e.userAgent)
	if group == nil {
		return 0
	}

	return group.CrawlDelay
}

func (e *Enforcer) getOrFetchEntry(ctx context.Context, domain string) (*parsedEntry, error) {
	if entry, ok := e.getCachedEntry(domain); ok {
		return entry, nil
	}

	if entry, ok, err := e.loadPersistedEntry(ctx, domain); err != nil {
		return nil, err
	} else if ok {
		e.setCachedEntry(domain, entry)
		return entry, nil
	}

	return e.fetchAndCache(ctx, domain)
}

func (e *Enforcer) getCachedEntry(domain string) (*parsedEntry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	entry, ok := e.parsed[domain]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}

	return entry, true
}

func (e *Enforcer) setCachedEntry(domain string, entry *parsedEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.parsed[domain] = entry
}

// loadPersistedEntry checks whether another process in this pod already
// cached fresh robots.txt bytes in the domain hash.
func (e *Enforcer) loadPersistedEntry(ctx context.Context, domain string) (*parsedEntry, bool, error) {
	key := fmt.Sprintf(domainKeyFmt, domain)

	fields, err := e.storeClient.HashGetAll(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("politeness: read domain hash: %w", err)
	}

	expiresRaw, ok := fields[fieldRobotsExpires]
	if !ok {
		return nil, false, nil
	}

	expires, err := strconv.ParseInt(expiresRaw, 10, 64)
	if err != nil || time.Now().Unix() >= expires {
		return nil, false, nil
	}

	body := []byte(fields[fieldRobotsTxt])

	return parseRobots(body, false, time.Unix(expires, 0)), true, nil
}

func (e *Enforcer) fetchAndCache(ctx context.Context, domain string) (*parsedEntry, error) {
	robotsURL := "https://" + domain + robotsTxtPath

	body, statusCode, err := e.doFetch(ctx, robotsURL)
	if err != nil {
		e.log.Warn("politeness: robots.txt fetch failed, allowing all", "domain", domain, "error", err)
		return e.persistEntry(ctx, domain, nil, true), nil
	}

	entry := parseRobots(body, !isSuccessStatus(statusCode), time.Now().Add(e.cacheTTL))

	return e.persistEntry(ctx, domain, body, entry.allowAll), nil
}

func (e *Enforcer) persistEntry(ctx context.Context, domain string, body []byte, allowAll bool) *parsedEntry {
	expiresAt := time.Now().Add(e.cacheTTL)
	key := fmt.Sprintf(domainKeyFmt, domain)

	if err := e.storeClient.HashSet(ctx, key, map[string]string{
		fieldRobotsTxt:     string(body),
		fieldRobotsExpires: strconv.FormatInt(expiresAt.Unix(), 10),
	}); err != nil {
		e.log.Warn("politeness: failed to persist robots cache", "domain", domain, "error", err)
	}

	entry := parseRobots(body, allowAll, expiresAt)
	e.setCachedEntry(domain, entry)

	return entry
}

func (e *Enforcer) doFetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("politeness: build request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("politeness: fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("politeness: read robots.txt: %w", err)
	}

	return body, resp.StatusCode, nil
}

func parseRobots(body []byte, forceAllowAll bool, expiresAt time.Time) *parsedEntry {
	if forceAllowAll || len(body) == 0 {
		return &parsedEntry{allowAll: true, expiresAt: expiresAt}
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return &parsedEntry{allowAll: true, expiresAt: expiresAt}
	}

	return &parsedEntry{data: data, expiresAt: expiresAt}
}

func isSuccessStatus(statusCode int) bool {
	return statusCode >= statusSuccessLow && statusCode < statusSuccessHigh
}

func urlPath(rawURL string) string {
	if idx := strings.IndexAny(rawURL, "?#"); idx >= 0 {
		rawURL = rawURL[:idx]
	}
	if i := strings.Index(rawURL, "://"); i >= 0 {
		rest := rawURL[i+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			return rest[slash:]
		}
		return "/"
	}
	return rawURL
}
