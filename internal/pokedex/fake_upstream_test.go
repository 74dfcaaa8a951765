package pokedex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAPI serves the three upstream endpoints for a fixed list of names.
// Entry i (1-based) lives at /pokemon/<i>/.
type fakeAPI struct {
	srv   *httptest.Server
	names []string

	countHits  atomic.Int32
	listHits   atomic.Int32
	detailHits atomic.Int32

	mu         sync.Mutex
	failCount  bool
	failList   bool
	failDetail map[int]bool
	countSkew  int
}

func newFakeAPI(t *testing.T, names ...string) *fakeAPI {
	t.Helper()

	f := &fakeAPI{names: names, failDetail: map[int]bool{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /pokemon", f.handleIndex)
	mux.HandleFunc("GET /pokemon/{id}/", f.handleDetail)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) URL() string { return f.srv.URL }

func (f *fakeAPI) entryURL(i int) string {
	return fmt.Sprintf("%s/pokemon/%d/", f.srv.URL, i)
}

func (f *fakeAPI) setFailList(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failList = v
}

func (f *fakeAPI) setFailCount(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCount = v
}

func (f *fakeAPI) setFailDetail(id int, v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failDetail[id] = v
}

// setCountSkew makes the count endpoint report len(names)+n.
func (f *fakeAPI) setCountSkew(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countSkew = n
}

func (f *fakeAPI) handleIndex(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	failCount, failList, skew := f.failCount, f.failList, f.countSkew
	f.mu.Unlock()

	q := r.URL.Query()
	if !q.Has("limit") {
		f.countHits.Add(1)
		if failCount {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		writeTestJSON(w, map[string]any{"count": len(f.names) + skew})
		return
	}

	f.listHits.Add(1)
	if failList {
		http.Error(w, "boom", http.StatusServiceUnavailable)
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	results := []map[string]string{}
	for i := offset; i < len(f.names) && i < offset+limit; i++ {
		results = append(results, map[string]string{"name": f.names[i], "url": f.entryURL(i + 1)})
	}
	writeTestJSON(w, map[string]any{"count": len(f.names) + skew, "results": results})
}

func (f *fakeAPI) handleDetail(w http.ResponseWriter, r *http.Request) {
	f.detailHits.Add(1)

	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id < 1 || id > len(f.names) {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	fail := f.failDetail[id]
	f.mu.Unlock()
	if fail {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}

	writeTestJSON(w, map[string]any{
		"stats": []map[string]any{
			{"stat": map[string]string{"name": "hp"}, "base_stat": id * 10},
			{"stat": map[string]string{"name": "attack"}, "base_stat": id},
		},
		"types": []map[string]any{
			{"type": map[string]string{"name": "grass"}},
			{"type": map[string]string{"name": "poison"}},
		},
	})
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// countingStore counts Save calls on top of another Store.
type countingStore struct {
	Store
	saves atomic.Int32
}

func (s *countingStore) Save(ctx context.Context, st *State) error {
	s.saves.Add(1)
	return s.Store.Save(ctx, st)
}

// testClock is a settable clock for staleness tests.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func numberedNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("mon-%03d", i+1)
	}
	return names
}

// failingStore accepts loads but rejects every Save.
type failingStore struct {
	Store
}

func (failingStore) Save(context.Context, *State) error {
	return errors.New("disk full")
}
