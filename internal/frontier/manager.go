// Package frontier implements the per-pod frontier manager: seed loading,
// bloom-deduplicated batched URL admission, and the atomic get-next-URL
// cycle that the fetcher worker pool drives.
package frontier

import (
	"context"
	"fmt"
	"os"

	"github.com/andrewkchan/podcrawl/internal/bloom"
	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/podmap"
	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

const (
	keyFrontierFmt = "frontier:%s"
	keyDomainFmt   = "domain:%s"
	keyDomainsQ    = "domains:queue"
	keySeenBloom   = "seen:bloom"
	fieldIsSeeded  = "is_seeded"
)

// Config configures one pod's Manager.
type Config struct {
	BloomCapacity   uint
	BloomFPR        float64
	Resume          bool
	DebugAssignment bool // read once at construction, per the spec's performance requirement
}

// Manager is the frontier for exactly one pod.
type Manager struct {
	podID           int
	podCount        int
	storeClient     store.Client
	politeness      *politeness.Enforcer
	bloomFilter     *bloom.Filter
	debugAssignment bool
	log             logger.Interface
}

// New constructs a Manager for podID out of podCount total pods, sharing the
// pod's store client and politeness enforcer.
func New(podID, podCount int, storeClient store.Client, enforcer *politeness.Enforcer, log logger.Interface) *Manager {
	if log == nil {
		log = logger.NewNoOp()
	}

	return &Manager{
		podID:       podID,
		podCount:    podCount,
		storeClient: storeClient,
		politeness:  enforcer,
		log:         log.WithPod(podID),
	}
}

// Init runs the once-per-pod startup sequence: ensure the bloom filter,
// and either resume from existing frontier state or clear and prepare for
// seed loading.
func (m *Manager) Init(ctx context.Context, cfg Config) error {
	m.debugAssignment = cfg.DebugAssignment

	if err := m.ensureBloom(ctx, cfg); err != nil {
		return fmt.Errorf("frontier: init bloom: %w", err)
	}

	if cfg.Resume {
		size, err := m.storeClient.ListLen(ctx, keyDomainsQ)
		if err != nil {
			return fmt.Errorf("frontier: resume check: %w", err)
		}
		if size > 0 {
			m.log.Info("frontier: resuming from existing state", "ready_domains", size)
			return nil
		}
		m.log.Info("frontier: resume=true but frontier is empty, falling through to seed loading")
	}

	return m.clear(ctx)
}

// ensureBloom loads the persisted seen:bloom blob when resuming, or creates
// a fresh filter otherwise.
func (m *Manager) ensureBloom(ctx context.Context, cfg Config) error {
	if cfg.Resume {
		if data, ok, err := m.storeClient.Get(ctx, keySeenBloom); err != nil {
			return err
		} else if ok {
			filter, err := bloom.Unmarshal(data)
			if err == nil {
				m.bloomFilter = filter
				return nil
			}
			m.log.Warn("frontier: failed to restore bloom filter, recreating", "error", err)
		}
	}

	m.bloomFilter = bloom.New(cfg.BloomCapacity, cfg.BloomFPR)

	return nil
}

// clear discards the pod's ready-domain queue (the bloom filter is set up
// by ensureBloom, not here). Full removal of every frontier:{domain} and domain:{domain} key
// requires a key-scan the store.Client contract deliberately doesn't
// expose (the spec treats the store as a black box of list/hash/bloom
// primitives, not a key-enumeration service); a non-resume run is expected
// to start against a freshly provisioned store, so those stale keys are
// harmless leftovers rather than a correctness hazard.
func (m *Manager) clear(ctx context.Context) error {
	for {
		_, ok, err := m.storeClient.ListPopHead(ctx, keyDomainsQ)
		if err != nil {
			return fmt.Errorf("frontier: clear domains queue: %w", err)
		}
		if !ok {
			break
		}
	}

	return nil
}

// MarkSeen adds a URL to the in-memory bloom filter directly. Every URL
// admitted via AddURLsBatch is already marked; this exists so the fetcher
// worker pool can redundantly confirm membership for each URL it
// processes, matching the spec's "also adds the URL to
// seen:bloom" requirement without a second store round-trip.
func (m *Manager) MarkSeen(url string) {
	m.bloomFilter.Add(url)
}

// SaveBloomState persists the bloom filter to the seen:bloom key so a
// subsequent resume=true run can restore it.
func (m *Manager) SaveBloomState(ctx context.Context) error {
	data, err := m.bloomFilter.Marshal()
	if err != nil {
		return fmt.Errorf("frontier: marshal bloom: %w", err)
	}

	return m.storeClient.Set(ctx, keySeenBloom, data)
}

// LoadSeeds reads the shared seed file's URLs, retains only those whose
// domain maps to this pod, marks their domains as seeded, warms the robots
// cache for them, and admits them via AddURLsBatch at depth 0.
func (m *Manager) LoadSeeds(ctx context.Context, seedURLs []string) (int, error) {
	owned := make([]string, 0, len(seedURLs))
	domains := make(map[string]struct{})

	for _, raw := range seedURLs {
		normalized, ok := urlutil.Normalize(raw)
		if !ok {
			continue
		}

		domain, ok := urlutil.ExtractDomain(normalized)
		if !ok || podmap.PodForDomain(domain, m.podCount) != m.podID {
			continue
		}

		owned = append(owned, normalized)
		domains[domain] = struct{}{}
	}

	domainList := make([]string, 0, len(domains))
	for d := range domains {
		domainList = append(domainList, d)

		key := fmt.Sprintf(keyDomainFmt, d)
		if err := m.storeClient.HashSet(ctx, key, map[string]string{fieldIsSeeded: "1"}); err != nil {
			m.log.Warn("frontier: failed to mark domain seeded", "domain", d, "error", err)
		}
	}

	m.politeness.BatchLoadRobotsTxt(ctx, domainList)

	return m.AddURLsBatch(ctx, owned, 0)
}

// AddURLsBatch admits urls at the given depth, per the spec's six-step
// processing order: pre-filter, bloom dedup, politeness pre-filter,
// group-by-domain, atomic per-domain write, return count.
func (m *Manager) AddURLsBatch(ctx context.Context, urls []string, depth int) (int, error) {
	candidates := m.preFilter(urls)

	byDomain := make(map[string][]string)

	for _, raw := range candidates {
		normalized, ok := urlutil.Normalize(raw)
		if !ok {
			continue
		}

		if m.debugAssignment {
			m.assertOwnership(normalized)
		}

		if m.bloomFilter.Test(normalized) {
			continue
		}

		allowed, err := m.politeness.IsURLAllowed(ctx, normalized)
		if err != nil {
			m.log.Warn("frontier: politeness check failed, allowing", "url", normalized, "error", err)
			allowed = true
		}
		if !allowed {
			m.bloomFilter.Add(normalized)
			continue
		}

		domain, ok := urlutil.ExtractDomain(normalized)
		if !ok {
			continue
		}

		byDomain[domain] = append(byDomain[domain], normalized)
	}

	added := 0

	for domain, domainURLs := range byDomain {
		count, err := m.writeDomainBatch(ctx, domain, domainURLs, depth)
		if err != nil {
			m.log.Error("frontier: batch write failed for domain, continuing with others", "domain", domain, "error", err)
			continue
		}
		added += count
	}

	return added, nil
}

func (m *Manager) writeDomainBatch(ctx context.Context, domain string, urls []string, depth int) (int, error) {
	entries := make([]string, 0, len(urls))

	for _, u := range urls {
		m.bloomFilter.Add(u)
		entries = append(entries, encodeEntry(u, depth))
	}

	if err := m.storeClient.ListPrepend(ctx, fmt.Sprintf(keyFrontierFmt, domain), entries...); err != nil {
		return 0, fmt.Errorf("prepend frontier entries: %w", err)
	}

	domainKey := fmt.Sprintf(keyDomainFmt, domain)
	if err := m.storeClient.HashSetNX(ctx, domainKey, fieldIsSeeded, "0"); err != nil {
		m.log.Warn("frontier: failed to ensure is_seeded default", "domain", domain, "error", err)
	}

	// Unconditional: the ready-queue rotation plus the politeness gate
	// tolerate duplicate enqueues, so no existence check is needed here.
	if err := m.storeClient.ListAppend(ctx, keyDomainsQ, domain); err != nil {
		return 0, fmt.Errorf("enqueue ready domain: %w", err)
	}

	return len(entries), nil
}

// preFilter drops over-length and non-text-by-extension URLs and removes
// exact duplicates within the batch, preserving first occurrence.
func (m *Manager) preFilter(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))

	for _, u := range urls {
		if len(u) > urlutil.MaxURLLength || urlutil.IsLikelyNonText(u) {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}

	return out
}

func (m *Manager) assertOwnership(normalizedURL string) {
	domain, ok := urlutil.ExtractDomain(normalizedURL)
	if !ok {
		return
	}

	if owner := podmap.PodForDomain(domain, m.podCount); owner != m.podID {
		m.log.Warn("frontier: debug pod assignment mismatch", "url", normalizedURL, "domain", domain, "owner_pod", owner, "this_pod", m.podID)
	}
}

// GetNextURL pops one domain from the ready queue (always re-appending it to
// the tail), applies the politeness gate, and pops + rechecks frontier
// entries for that domain until one passes or the domain empties.
func (m *Manager) GetNextURL(ctx context.Context) (*Entry, error) {
	domain, ok, err := m.storeClient.ListPopHead(ctx, keyDomainsQ)
	if err != nil {
		return nil, fmt.Errorf("frontier: pop ready domain: %w", err)
	}
	if !ok {
		return nil, nil //nolint:nilnil // empty queue is not an error
	}

	defer func() {
		if appendErr := m.storeClient.ListAppend(ctx, keyDomainsQ, domain); appendErr != nil {
			m.log.Error("frontier: failed to re-queue domain", "domain", domain, "error", appendErr)
		}
	}()

	canFetch, err := m.politeness.CanFetchDomainNow(ctx, domain)
	if err != nil {
		return nil, fmt.Errorf("frontier: politeness gate: %w", err)
	}
	if !canFetch {
		return nil, nil //nolint:nilnil // domain on cooldown, rotated to tail
	}

	return m.popNextFromDomain(ctx, domain)
}

func (m *Manager) popNextFromDomain(ctx context.Context, domain string) (*Entry, error) {
	frontierKey := fmt.Sprintf(keyFrontierFmt, domain)

	for {
		raw, ok, err := m.storeClient.ListPopTail(ctx, frontierKey)
		if err != nil {
			return nil, fmt.Errorf("frontier: pop entry: %w", err)
		}
		if !ok {
			return nil, nil //nolint:nilnil // domain temporarily exhausted
		}

		url, depth, ok := decodeEntry(raw)
		if !ok {
			m.log.Warn("frontier: malformed frontier entry, skipping", "domain", domain, "raw", raw)
			continue
		}

		if urlutil.IsLikelyNonText(url) {
			m.log.Debug("frontier: skipping non-text url at get-next", "url", url)
			continue
		}

		allowed, err := m.politeness.IsURLAllowed(ctx, url)
		if err != nil {
			m.log.Warn("frontier: recheck failed, skipping", "url", url, "error", err)
			continue
		}
		if !allowed {
			m.log.Debug("frontier: skipping disallowed url at get-next", "url", url)
			continue
		}

		if err := m.politeness.RecordDomainFetchAttempt(ctx, domain); err != nil {
			return nil, fmt.Errorf("frontier: record fetch attempt: %w", err)
		}

		return &Entry{URL: url, Domain: domain, ID: placeholderID, Depth: depth}, nil
	}
}

// ReadSeedFile parses the seed file format: one absolute URL per line,
// '#' begins a comment, blank lines ignored.
func ReadSeedFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("frontier: read seed file: %w", err)
	}

	return parseLineList(data), nil
}

func parseLineList(data []byte) []string {
	var out []string

	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := trimLine(data[start:i])
			if line != "" && line[0] != '#' {
				out = append(out, line)
			}
			start = i + 1
		}
	}

	return out
}

func trimLine(b []byte) string {
	s := string(b)
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t' || s[0] == '\r') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
