package content_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/content"
	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

func TestSaveContentToFileWritesUnderContentSubdir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	hash := urlutil.ContentHash("https://example.com/a")

	path, err := content.SaveContentToFile(hash, "hello world", dir)
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, filepath.Join("content", hash+".txt")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestSaveContentToFileOverwritesOnCollision(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	hash := urlutil.ContentHash("https://example.com/b")

	_, err := content.SaveContentToFile(hash, "first", dir)
	require.NoError(t, err)

	path, err := content.SaveContentToFile(hash, "second", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSaveContentToFileRequiresBaseDir(t *testing.T) {
	t.Parallel()

	_, err := content.SaveContentToFile("deadbeef", "text", "")
	assert.Error(t, err)
}

func TestRootForURLIsDeterministicAndInRange(t *testing.T) {
	t.Parallel()

	roots := []string{"/data0", "/data1", "/data2"}

	first, err := content.RootForURL("https://example.com/x", roots)
	require.NoError(t, err)
	assert.Contains(t, roots, first)

	second, err := content.RootForURL("https://example.com/x", roots)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRootForURLRequiresRoots(t *testing.T) {
	t.Parallel()

	_, err := content.RootForURL("https://example.com/x", nil)
	assert.Error(t, err)
}

func TestValidHexHash(t *testing.T) {
	t.Parallel()

	assert.True(t, content.ValidHexHash(urlutil.ContentHash("https://example.com")))
	assert.False(t, content.ValidHexHash("not-hex"))
	assert.False(t, content.ValidHexHash("abcd"))
}
