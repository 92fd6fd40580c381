package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/andrewkchan/podcrawl/internal/store"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

const visitedKeyFmt = "visited:%s"

// statsPagesCrawled is a supplement to the spec's required stats:urls_added
// counter: it tracks attempted-or-successful fetches (one increment per
// VisitedRecord write) so the orchestrator can enforce max_pages without a
// key scan.
const statsPagesCrawled = "stats:pages_crawled"

// VisitedRecord is the persisted per-URL fetch outcome, enriched with
// optional conditional-request validators beyond the spec's required
// field set so a resume=true re-crawl can send If-None-Match /
// If-Modified-Since instead of always re-fetching in full.
type VisitedRecord struct {
	URL          string
	StatusCode   int
	ContentPath  string
	ContentType  string
	ETag         string
	LastModified string
}

// WriteVisitedRecord writes the write-once (overwrite-on-refetch) visited
// record for a normalized URL: visited:{sha256(url)[:16]} -> hash.
// contentPath is empty when no content was persisted.
func WriteVisitedRecord(ctx context.Context, storeClient store.Client, rec VisitedRecord) error {
	key := fmt.Sprintf(visitedKeyFmt, urlutil.VisitedKeyHash(rec.URL))

	fields := map[string]string{
		"url":           rec.URL,
		"status_code":   strconv.Itoa(rec.StatusCode),
		"fetched_at":    strconv.FormatInt(time.Now().Unix(), 10),
		"content_path":  rec.ContentPath,
		"content_type":  rec.ContentType,
		"etag":          rec.ETag,
		"last_modified": rec.LastModified,
	}

	if err := storeClient.HashSet(ctx, key, fields); err != nil {
		return fmt.Errorf("fetcher: write visited record: %w", err)
	}

	if _, err := storeClient.Incr(ctx, statsPagesCrawled); err != nil {
		return fmt.Errorf("fetcher: increment pages crawled counter: %w", err)
	}

	return nil
}

// ReadVisitedRecord loads a previously written record, if any, used to
// populate conditional-request headers before re-fetching the same URL.
func ReadVisitedRecord(ctx context.Context, storeClient store.Client, rawURL string) (VisitedRecord, bool, error) {
	key := fmt.Sprintf(visitedKeyFmt, urlutil.VisitedKeyHash(rawURL))

	fields, err := storeClient.HashGetAll(ctx, key)
	if err != nil {
		return VisitedRecord{}, false, fmt.Errorf("fetcher: read visited record: %w", err)
	}
	if len(fields) == 0 {
		return VisitedRecord{}, false, nil
	}

	statusCode, _ := strconv.Atoi(fields["status_code"])

	return VisitedRecord{
		URL:          fields["url"],
		StatusCode:   statusCode,
		ContentPath:  fields["content_path"],
		ContentType:  fields["content_type"],
		ETag:         fields["etag"],
		LastModified: fields["last_modified"],
	}, true, nil
}
