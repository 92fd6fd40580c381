package orchestrator

import (
	"context"
	"time"

	"github.com/andrewkchan/podcrawl/internal/logger"
	"github.com/andrewkchan/podcrawl/internal/store"
)

// watchGlobalEmpty periodically sums len(domains:queue) across every pod's
// store and, once it observes zero for a sustained grace period, cancels
// via signal. It returns when ctx is done.
//
// spec.md's boundary behavior for an empty seed file ("orchestrator
// detects global-empty after the grace period and shuts down") holds even
// though zero pages will ever be crawled in that case, so the grace period
// on sustained queue-emptiness is the sole trigger — it is not additionally
// gated on a nonzero pages-crawled count.
func watchGlobalEmpty(ctx context.Context, clients []store.Client, checkInterval, gracePeriod time.Duration, log logger.Interface, signal func()) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	var emptySince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		total, _, err := sumQueuesAndCrawled(ctx, clients)
		if err != nil {
			log.Warn("orchestrator: global-empty check failed", "error", err.Error())
			continue
		}

		if total > 0 {
			emptySince = time.Time{}
			continue
		}

		if emptySince.IsZero() {
			emptySince = time.Now()
			continue
		}

		if time.Since(emptySince) >= gracePeriod {
			log.Info("orchestrator: all frontiers empty after grace period, signaling shutdown")
			signal()
			return
		}
	}
}

const statsPagesCrawledKey = "stats:pages_crawled"

func sumQueuesAndCrawled(ctx context.Context, clients []store.Client) (totalQueued, totalCrawled int64, err error) {
	for _, client := range clients {
		n, lenErr := client.ListLen(ctx, "domains:queue")
		if lenErr != nil {
			return 0, 0, lenErr
		}
		totalQueued += n

		raw, ok, getErr := client.Get(ctx, statsPagesCrawledKey)
		if getErr != nil {
			return 0, 0, getErr
		}
		if ok {
			totalCrawled += parseCounter(raw)
		}
	}

	return totalQueued, totalCrawled, nil
}

func parseCounter(raw []byte) int64 {
	var n int64
	for _, b := range raw {
		if b < '0' || b > '9' {
			return n
		}
		n = n*10 + int64(b-'0')
	}
	return n
}
