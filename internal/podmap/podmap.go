// Package podmap computes the static domain→pod partition shared by every
// worker in the engine: frontier, politeness, fetchers, and parsers all call
// PodForDomain to agree on who owns a given domain's state.
package podmap

import "github.com/cespare/xxhash/v2"

// PodForDomain returns the pod index in [0, n) that owns domain. The mapping
// is a pure function of domain and n: stable across processes and restarts
// for a fixed pod count, and computed with a fast non-cryptographic hash
// since sharding has no adversarial-input requirement.
func PodForDomain(domain string, n int) int {
	if n <= 0 {
		return 0
	}

	sum := xxhash.Sum64String(domain)
	// Keep only the first 32 bits, per the "first 32 bits of fast_hash" contract.
	low32 := uint32(sum)

	return int(low32 % uint32(n))
}
