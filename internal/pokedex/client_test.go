package pokedex

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CountAndList(t *testing.T) {
	api := newFakeAPI(t, "bulbasaur", "ivysaur", "venusaur")
	c := NewClient(api.URL()+"/", time.Second)

	n, err := c.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := c.List(context.Background(), 2, 1)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "ivysaur", res[0].Name)
	assert.Equal(t, api.entryURL(2), res[0].URL)
}

func TestClient_DetailKeepsUpstreamOrderAndLastDuplicate(t *testing.T) {
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"stats": [
				{"stat": {"name": "hp"}, "base_stat": 35},
				{"stat": {"name": "speed"}, "base_stat": 90},
				{"stat": {"name": "hp"}, "base_stat": 40}
			],
			"types": [
				{"slot": 1, "type": {"name": "water"}},
				{"slot": 2, "type": {"name": "electric"}}
			]
		}`))
	})

	d, err := NewClient(srv.URL, time.Second).Detail(context.Background(), srv.URL+"/pokemon/7/")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"hp": 40, "speed": 90}, d.Stats)
	assert.Equal(t, []string{"water", "electric"}, d.Types)
}

func TestClient_Errors(t *testing.T) {
	cases := []struct {
		name string
		body string
		code int
		want error
	}{
		{"bad status", `{}`, http.StatusTooManyRequests, ErrUpstreamBadStatus},
		{"not json", `<html>`, http.StatusOK, ErrUpstreamBadPayload},
		{"missing count", `{"next": null}`, http.StatusOK, ErrUpstreamBadPayload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.code)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := NewClient(srv.URL, time.Second).Count(context.Background())
			var ue *UpstreamError
			require.ErrorAs(t, err, &ue)
			assert.Equal(t, endpointCount, ue.Op)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestClient_MissingResultsOrDetailFields(t *testing.T) {
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"count": 3}`))
	})
	c := NewClient(srv.URL, time.Second)

	_, err := c.List(context.Background(), 3, 0)
	assert.ErrorIs(t, err, ErrUpstreamBadPayload)

	_, err = c.Detail(context.Background(), srv.URL+"/pokemon/1/")
	assert.ErrorIs(t, err, ErrUpstreamBadPayload)
}

func TestClient_TimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Count(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClient_ForwardsRequestID(t *testing.T) {
	got := make(chan string, 2)
	srv := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		got <- r.Header.Get("X-Request-Id")
		_, _ = w.Write([]byte(`{"count": 1}`))
	})
	c := NewClient(srv.URL, time.Second)

	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-42")
	_, err := c.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, "req-42", <-got)

	_, err = c.Count(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, <-got)
}

func TestClient_RecordsMetrics(t *testing.T) {
	api := newFakeAPI(t, "bulbasaur")
	api.setFailList(true)

	c := NewClient(api.URL(), time.Second)
	c.Metrics = NewMetrics(prometheus.NewRegistry())

	_, err := c.Count(context.Background())
	require.NoError(t, err)
	_, err = c.List(context.Background(), 1, 0)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Upstream.WithLabelValues(endpointCount, resultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Metrics.Upstream.WithLabelValues(endpointList, resultError)))
}
