package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeHost(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://archive.today/submit/", "archive.today"},
		{"standard https", "https://OAuth.Reddit.com/r/x", "oauth.reddit.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeHost(tc.input); got != tc.expected {
				t.Errorf("SanitizeHost(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(submissionsTotal.WithLabelValues("replied"))
	ObserveSubmission("replied")
	require.Equal(t, before+1, testutil.ToFloat64(submissionsTotal.WithLabelValues("replied")))

	failedBefore := testutil.ToFloat64(archiveResolutionsTotal.WithLabelValues("failed"))
	ObserveResolution(false)
	require.Equal(t, failedBefore+1, testutil.ToFloat64(archiveResolutionsTotal.WithLabelValues("failed")))

	sweepBefore := testutil.ToFloat64(ledgerSweepsTotal.WithLabelValues("failed"))
	ObserveSweep(errors.New("down"))
	require.Equal(t, sweepBefore+1, testutil.ToFloat64(ledgerSweepsTotal.WithLabelValues("failed")))

	cycleBefore := testutil.ToFloat64(cycleFailuresTotal)
	ObserveCycle(time.Second, errors.New("boom"))
	require.Equal(t, cycleBefore+1, testutil.ToFloat64(cycleFailuresTotal))
	ObserveCycle(time.Second, nil)
	require.Equal(t, cycleBefore+1, testutil.ToFloat64(cycleFailuresTotal))
	require.Greater(t, testutil.ToFloat64(lastSuccessfulCycleSecond), float64(0))
}

func TestPusher(t *testing.T) {
	require.Nil(t, NewPusher("", "job"))
	var nilPusher *Pusher
	require.NoError(t, nilPusher.Push(context.Background()))

	var hits atomic.Int32
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ObserveSubmission("filtered")
	p := NewPusher(srv.URL, "")
	require.NoError(t, p.Push(context.Background()))
	require.Equal(t, int32(1), hits.Load())
	require.True(t, strings.HasPrefix(path.Load().(string), "/metrics/job/"+DefaultJob))
}

// Fuzz test for SanitizeHost.
func FuzzSanitizeHost(f *testing.F) {
	testcases := []string{"http://example.com", "https://redd.it", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeHost(orig) == "" {
			t.Errorf("SanitizeHost(%q) returned an empty string", orig)
		}
	})
}
