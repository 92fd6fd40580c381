package politeness_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrewkchan/podcrawl/internal/politeness"
	"github.com/andrewkchan/podcrawl/internal/store/storetest"
)

func TestCanFetchDomainNowDefaultsToTrue(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 70 * time.Second}, nil)

	allowed, err := enforcer.CanFetchDomainNow(context.Background(), "example.com")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRecordDomainFetchAttemptSetsCooldown(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{PolitenessDelay: 70 * time.Second}, nil)
	ctx := context.Background()

	require.NoError(t, enforcer.RecordDomainFetchAttempt(ctx, "example.com"))

	allowed, err := enforcer.CanFetchDomainNow(ctx, "example.com")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestIsURLAllowedRespectsRobots(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	}))
	defer srv.Close()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{UserAgent: "testbot"}, nil)
	ctx := context.Background()

	host := srv.Listener.Addr().String()

	allowed, err := enforcer.IsURLAllowed(ctx, "http://"+host+"/ok")
	require.NoError(t, err)
	assert.True(t, allowed)

	disallowed, err := enforcer.IsURLAllowed(ctx, "http://"+host+"/private/page")
	require.NoError(t, err)
	assert.False(t, disallowed)
}

func TestIsURLAllowedPermissiveOnFetchFailure(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	enforcer := politeness.New(mem, politeness.Config{
		UserAgent:  "testbot",
		HTTPClient: &http.Client{Timeout: time.Millisecond},
	}, nil)

	allowed, err := enforcer.IsURLAllowed(context.Background(), "http://127.0.0.1:1/page")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestIsURLAllowedRespectsExclusion(t *testing.T) {
	t.Parallel()

	mem := storetest.New()
	ctx := context.Background()

	require.NoError(t, mem.HashSet(ctx, "domain:blocked.test", map[string]string{"is_excluded": "1"}))

	enforcer := politeness.New(mem, politeness.Config{UserAgent: "testbot"}, nil)

	allowed, err := enforcer.IsURLAllowed(ctx, "https://blocked.test/a")
	require.NoError(t, err)
	assert.False(t, allowed)
}
