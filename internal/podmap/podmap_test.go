package podmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/andrewkchan/podcrawl/internal/podmap"
)

func TestPodForDomainIsStable(t *testing.T) {
	t.Parallel()

	first := podmap.PodForDomain("example.com", 16)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, podmap.PodForDomain("example.com", 16))
	}
}

func TestPodForDomainInRange(t *testing.T) {
	t.Parallel()

	domains := []string{"example.com", "other.test", "a.b.c.example.org", ""}
	for _, d := range domains {
		pod := podmap.PodForDomain(d, 16)
		assert.GreaterOrEqual(t, pod, 0)
		assert.Less(t, pod, 16)
	}
}

func TestPodForDomainSingleton(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, podmap.PodForDomain("example.com", 1))
	assert.Equal(t, 0, podmap.PodForDomain("other.test", 1))
}
