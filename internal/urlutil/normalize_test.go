package urlutil_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/urlutil"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "lowercases scheme and host",
			input:  "HTTP://Example.COM/Path",
			want:   "http://example.com/Path",
			wantOK: true,
		},
		{
			name:   "does not upgrade http to https",
			input:  "http://example.com/",
			want:   "http://example.com/",
			wantOK: true,
		},
		{
			name:   "strips default port",
			input:  "https://example.com:443/a",
			want:   "https://example.com/a",
			wantOK: true,
		},
		{
			name:   "keeps non-default port",
			input:  "https://example.com:8443/a",
			want:   "https://example.com:8443/a",
			wantOK: true,
		},
		{
			name:   "strips fragment",
			input:  "https://example.com/a#section",
			want:   "https://example.com/a",
			wantOK: true,
		},
		{
			name:   "strips trailing slash except root",
			input:  "https://example.com/a/",
			want:   "https://example.com/a",
			wantOK: true,
		},
		{
			name:   "resolves dot segments",
			input:  "https://example.com/a/../b",
			want:   "https://example.com/b",
			wantOK: true,
		},
		{
			name:   "strips tracking params and sorts remaining",
			input:  "https://example.com/a?z=1&utm_source=x&a=2",
			want:   "https://example.com/a?a=2&z=1",
			wantOK: true,
		},
		{
			name:   "bare hostname without scheme rejected",
			input:  "example.com/a",
			wantOK: false,
		},
		{
			name:   "empty input rejected",
			input:  "",
			wantOK: false,
		},
		{
			name:   "over-length url rejected",
			input:  "https://example.com/" + strings.Repeat("a", urlutil.MaxURLLength),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := urlutil.Normalize(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	const input = "HTTPS://Example.com:443/a/../b/?utm_source=x&z=1#frag"

	once, ok := urlutil.Normalize(input)
	require.True(t, ok)

	twice, ok := urlutil.Normalize(once)
	require.True(t, ok)

	assert.Equal(t, once, twice)
}

func TestExtractDomain(t *testing.T) {
	t.Parallel()

	domain, ok := urlutil.ExtractDomain("https://Example.COM:8443/a")
	require.True(t, ok)
	assert.Equal(t, "example.com", domain)

	_, ok = urlutil.ExtractDomain("not a url")
	assert.False(t, ok)
}

func TestIsLikelyNonText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://example.com/doc.pdf", true},
		{"https://example.com/image.PNG", true},
		{"https://example.com/archive.tar.gz", true},
		{"https://example.com/page.html", false},
		{"https://example.com/page?download=report.pdf", false},
		{"https://example.com/", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, urlutil.IsLikelyNonText(tt.url), tt.url)
	}
}

func TestContentHashAndVisitedKeyHash(t *testing.T) {
	t.Parallel()

	normalized, ok := urlutil.Normalize("https://example.com/a")
	require.True(t, ok)

	full := urlutil.ContentHash(normalized)
	assert.Len(t, full, 64)

	prefix := urlutil.VisitedKeyHash(normalized)
	assert.Len(t, prefix, 16)
	assert.Equal(t, full[:16], prefix)
}
