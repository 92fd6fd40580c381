package bloom_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/bloom"
)

func TestFilterAddAndTest(t *testing.T) {
	t.Parallel()

	f := bloom.New(1000, 0.01)

	assert.False(t, f.Test("https://example.com/page1"))

	f.Add("https://example.com/page1")

	assert.True(t, f.Test("https://example.com/page1"))
	assert.False(t, f.Test("https://example.com/page2"))
}

func TestFilterFalsePositiveRate(t *testing.T) {
	t.Parallel()

	const (
		numItems   = 5000
		fpRate     = 0.01
		testProbes = 5000
	)

	f := bloom.New(numItems, fpRate)

	for i := 0; i < numItems; i++ {
		f.Add(fmt.Sprintf("https://example.com/added/%d", i))
	}

	falsePositives := 0
	for i := 0; i < testProbes; i++ {
		if f.Test(fmt.Sprintf("https://example.com/notadded/%d", i)) {
			falsePositives++
		}
	}

	rate := float64(falsePositives) / float64(testProbes)
	assert.Less(t, rate, 0.03, "false positive rate %f exceeds 3%%", rate)
}

func TestFilterMarshalRoundTrip(t *testing.T) {
	t.Parallel()

	f := bloom.New(1000, 0.01)
	f.Add("https://example.com/a")

	data, err := f.Marshal()
	require.NoError(t, err)

	restored, err := bloom.Unmarshal(data)
	require.NoError(t, err)

	assert.True(t, restored.Test("https://example.com/a"))
	assert.False(t, restored.Test("https://example.com/b"))
}
