package stats_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/zephyrtronium/dizzy/metrics"
	"github.com/zephyrtronium/dizzy/stats"
	"github.com/zephyrtronium/dizzy/status"
)

type request struct {
	Auth string
	Type string
	Body string
}

func testServer(t *testing.T, code int) (*httptest.Server, func() []request) {
	t.Helper()
	var mu sync.Mutex
	var reqs []request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, request{Auth: r.Header.Get("Authorization"), Type: r.Header.Get("Content-Type"), Body: string(b)})
		mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []request {
		mu.Lock()
		defer mu.Unlock()
		return reqs
	}
}

func TestPost(t *testing.T) {
	good, goodReqs := testServer(t, http.StatusOK)
	bad, badReqs := testServer(t, http.StatusUnauthorized)
	m := metrics.New(func() float64 { return 0 })
	p := stats.Poster{
		HTTP: good.Client(),
		Sites: []stats.Site{
			{Name: "bad", URL: bad.URL, Token: "nope"},
			{Name: "good", URL: good.URL, Token: "secret"},
		},
		Posts: m.StatsPosts,
	}
	err := p.Post(context.Background(), 42)
	if err == nil {
		t.Error("no error from failing site")
	}
	want := []request{{Auth: "secret", Type: "application/json", Body: `{"server_count":42}`}}
	if diff := cmp.Diff(want, goodReqs()); diff != "" {
		t.Errorf("wrong requests to good site (-want +got):\n%s", diff)
	}
	if n := len(badReqs()); n != 1 {
		t.Errorf("wrong number of requests to bad site: want 1, got %d", n)
	}
	if n := testutil.CollectAndCount(m.StatsPosts); n != 2 {
		t.Errorf("wrong number of post series: want 2, got %d", n)
	}
}

func TestTick(t *testing.T) {
	srv, reqs := testServer(t, http.StatusNoContent)
	p := stats.Poster{
		HTTP:  srv.Client(),
		Sites: []stats.Site{{Name: "list", URL: srv.URL, Token: "secret"}},
	}
	ctx := context.Background()
	c := status.Counts{Users: 100, Guilds: 9}
	// Even hours only log.
	p.Tick(ctx, time.Unix(0, 0).Add(30*time.Minute), c)
	if n := len(reqs()); n != 0 {
		t.Errorf("posted on a logging hour: %d requests", n)
	}
	// Odd hours post.
	p.Tick(ctx, time.Unix(0, 0).Add(90*time.Minute), c)
	got := reqs()
	if len(got) != 1 || got[0].Body != `{"server_count":9}` {
		t.Errorf("wrong requests on a posting hour: %+v", got)
	}
}
