package frontier_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/frontier"
	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store/storetest"
)

func newTestManager(t *testing.T) (*frontier.Manager, *storetest.Memory) {
	t.Helper()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 0}, nil)
	mgr := frontier.New(0, 1, mem, enforcer, nil)

	require.NoError(t, mgr.Init(context.Background(), frontier.Config{BloomCapacity: 1000, BloomFPR: 0.01}))

	return mgr, mem
}

// Scenario D — bloom dedup.
func TestAddURLsBatchDedupesViaBloom(t *testing.T) {
	t.Parallel()

	mgr, mem := newTestManager(t)
	ctx := context.Background()

	added, err := mgr.AddURLsBatch(ctx, []string{
		"http://a.test/1",
		"http://a.test/1",
		"http://a.test/2",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	entries := mem.ListSnapshot("frontier:a.test")
	require.Len(t, entries, 2)
	// LPUSH order: newest at head, so /2 then /1.
	assert.Contains(t, entries[0], "/2")
	assert.Contains(t, entries[1], "/1")
}

// Scenario E — non-text filter at add time.
func TestAddURLsBatchRejectsNonText(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)
	ctx := context.Background()

	added, err := mgr.AddURLsBatch(ctx, []string{
		"http://a.test/doc.pdf",
		"http://a.test/page.html",
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, added)
}

// Scenario F — non-text filter at get-next time (manually injected entry).
func TestGetNextURLSkipsNonTextWithoutReinserting(t *testing.T) {
	t.Parallel()

	mgr, mem := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, mem.ListPrepend(ctx, "frontier:a.test", "http://a.test/img.png|0"))
	require.NoError(t, mem.ListAppend(ctx, "domains:queue", "a.test"))

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	assert.Nil(t, entry)

	assert.Empty(t, mem.ListSnapshot("frontier:a.test"))
}

func TestGetNextURLReturnsEntryAndRecordsFetchAttempt(t *testing.T) {
	t.Parallel()

	mgr, mem := newTestManager(t)
	ctx := context.Background()

	_, err := mgr.AddURLsBatch(ctx, []string{"http://a.test/page"}, 0)
	require.NoError(t, err)

	entry, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "a.test", entry.Domain)
	assert.Equal(t, -1, entry.ID)

	next, ok, err := mem.HashGet(ctx, "domain:a.test", "next_fetch_time")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, next)
}

func TestGetNextURLReturnsNilWhenQueueEmpty(t *testing.T) {
	t.Parallel()

	mgr, _ := newTestManager(t)

	entry, err := mgr.GetNextURL(context.Background())
	require.NoError(t, err)
	assert.Nil(t, entry)
}

// Scenario C — politeness gate rotates the domain instead of blocking.
func TestGetNextURLRespectsPoliteness(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: time.Hour}, nil)
	mgr := frontier.New(0, 1, mem, enforcer, nil)
	ctx := context.Background()

	require.NoError(t, mgr.Init(ctx, frontier.Config{BloomCapacity: 1000, BloomFPR: 0.01}))

	_, err := mgr.AddURLsBatch(ctx, []string{"http://a.test/1", "http://a.test/2"}, 0)
	require.NoError(t, err)

	first, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := mgr.GetNextURL(ctx)
	require.NoError(t, err)
	assert.Nil(t, second, "domain should be on cooldown")

	assert.Equal(t, int64(1), mustListLen(t, mem, "domains:queue"))
}

func mustListLen(t *testing.T, mem *storetest.Memory, key string) int64 {
	t.Helper()
	n, err := mem.ListLen(context.Background(), key)
	require.NoError(t, err)
	return n
}

func TestReadSeedFileHandlesCRLFLineEndings(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seeds.txt")
	data := "https://example.com/a\r\nhttps://example.org/b\r\n# comment\r\n\r\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	urls, err := frontier.ReadSeedFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/a", "https://example.org/b"}, urls)
}
