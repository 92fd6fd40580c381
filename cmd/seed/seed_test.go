package seed

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_ReportsPerPodDistribution(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "seeds.txt")
	require.NoError(t, os.WriteFile(path, []byte("https://example.com/a\nhttps://example.org/b\n"), 0o644))

	var out bytes.Buffer
	require.NoError(t, run(&out, path, 4))

	require.Contains(t, out.String(), "2 seed URLs across 4 pods")
}

func TestRun_MissingFile(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := run(&out, filepath.Join(t.TempDir(), "missing.txt"), 1)
	require.Error(t, err)
}
