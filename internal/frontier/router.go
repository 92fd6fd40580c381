package frontier

import (
	"context"

	"github.com/andrewkchan/podcrawl/internal/podmap"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

// Router holds one Manager per pod so a parser can route newly discovered
// links to whichever pod owns each link's domain, regardless of which pod's
// parser discovered it.
type Router struct {
	managers []*Manager
}

// NewRouter wires a Router over managers, indexed by pod id.
func NewRouter(managers []*Manager) *Router {
	return &Router{managers: managers}
}

// RouteAndAdd groups urls by owning pod and calls AddURLsBatch on each
// target pod's Manager, returning the total admitted across all pods.
func (r *Router) RouteAndAdd(ctx context.Context, urls []string, depth int) (int, error) {
	byPod := make(map[int][]string)

	for _, u := range urls {
		domain, ok := urlutil.ExtractDomain(u)
		if !ok {
			continue
		}

		pod := podmap.PodForDomain(domain, len(r.managers))
		byPod[pod] = append(byPod[pod], u)
	}

	total := 0

	for pod, podURLs := range byPod {
		added, err := r.managers[pod].AddURLsBatch(ctx, podURLs, depth)
		if err != nil {
			return total, err
		}
		total += added
	}

	return total, nil
}
