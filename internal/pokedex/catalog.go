package pokedex

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Upstream is the subset of the creature API the catalog needs.
type Upstream interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]Resource, error)
	Detail(ctx context.Context, sourceURL string) (Detail, error)
}

// Catalog answers queries from the persisted snapshot, refreshing it at most
// once per calendar day and backfilling entry detail on first read.
//
// Every query reloads the state from Store; nothing is cached in process.
type Catalog struct {
	store     Store
	upstream  Upstream
	log       *zap.Logger
	metrics   *Metrics
	imageBase string
	now       func() time.Time
	intN      func(n int) int
}

type Option func(*Catalog)

func WithLogger(l *zap.Logger) Option {
	return func(c *Catalog) {
		if l != nil {
			c.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

func WithImageBase(base string) Option {
	return func(c *Catalog) {
		if base != "" {
			c.imageBase = base
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// WithRand replaces the generator used by Random; intN must return a value in [0, n).
func WithRand(intN func(n int) int) Option {
	return func(c *Catalog) { c.intN = intN }
}

func NewCatalog(store Store, upstream Upstream, opts ...Option) *Catalog {
	c := &Catalog{
		store:     store,
		upstream:  upstream,
		log:       zap.NewNop(),
		imageBase: DefaultImageBase,
		now:       time.Now,
		intN:      rand.IntN,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load returns the persisted state, or a new stale state when nothing is
// stored or the stored record cannot be read. It never fails.
func (c *Catalog) Load(ctx context.Context) *State {
	st, ok, err := c.store.Load(ctx)
	if err != nil {
		c.log.Warn("load state failed, starting over", zap.Error(err))
	}
	if err == nil && ok {
		return st
	}

	st = NewState()
	if err := c.store.Save(ctx, st); err != nil {
		c.log.Warn("persist initial state failed", zap.Error(err))
	}
	return st
}

// IsStale reports whether today is a later calendar day than the last refresh.
func (c *Catalog) IsStale(st *State) bool {
	now := c.now()
	return startOfDay(now).After(startOfDay(st.LastUpdate.In(now.Location())))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Refresh replaces st with a full listing from upstream and persists it.
// On upstream failure st is left untouched and nothing is saved.
func (c *Catalog) Refresh(ctx context.Context, st *State) error {
	total, err := c.upstream.Count(ctx)
	if err != nil {
		c.metrics.observeRefresh(resultError, 0)
		return err
	}

	results, err := c.upstream.List(ctx, total, 0)
	if err != nil {
		c.metrics.observeRefresh(resultError, 0)
		return err
	}

	entries := make([]Entry, 0, len(results))
	for i, r := range results {
		id, err := resourceID(r.URL)
		if err != nil {
			c.metrics.observeRefresh(resultError, 0)
			return &UpstreamError{Op: endpointList, Err: err}
		}
		entries = append(entries, Entry{
			Index:     i + 1,
			Name:      r.Name,
			SourceURL: r.URL,
			ImageURL:  c.imageBase + id + ".png",
		})
	}

	if len(entries) != total {
		c.log.Warn("upstream listing size differs from reported count",
			zap.Int("count", total),
			zap.Int("listed", len(entries)),
		)
	}

	*st = State{
		LastUpdate: c.now().Truncate(time.Second),
		Count:      len(entries),
		Entries:    entries,
	}
	if err := c.store.Save(ctx, st); err != nil {
		c.metrics.observeRefresh(resultError, 0)
		return &StorageError{Op: "save", Err: err}
	}

	c.metrics.observeRefresh(resultOK, len(entries))
	c.log.Info("catalog refreshed", zap.Int("count", st.Count))
	return nil
}

// resourceID returns the second-to-last "/" segment of u, which is the
// numeric id for URLs such as https://pokeapi.co/api/v2/pokemon/25/.
func resourceID(u string) (string, error) {
	parts := strings.Split(u, "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" {
		return "", fmt.Errorf("%w: no id in url %q", ErrUpstreamBadPayload, u)
	}
	return parts[len(parts)-2], nil
}

func (c *Catalog) EnsureFresh(ctx context.Context, st *State) error {
	if !c.IsStale(st) {
		return nil
	}
	return c.Refresh(ctx, st)
}

// Backfill fetches detail for every entry at the given positions that does
// not have it yet, saving the whole state after each entry. It stops at the
// first failure; entries filled before it stay persisted.
func (c *Catalog) Backfill(ctx context.Context, st *State, positions []int) error {
	for _, pos := range positions {
		e := &st.Entries[pos]
		if e.HasDetail() {
			continue
		}

		d, err := c.upstream.Detail(ctx, e.SourceURL)
		if err != nil {
			return err
		}
		e.Stats = d.Stats
		e.Types = d.Types

		if err := c.store.Save(ctx, st); err != nil {
			return &StorageError{Op: "save", Err: err}
		}
		c.metrics.observeBackfill()
		c.log.Debug("entry detail backfilled", zap.Int("index", e.Index), zap.String("name", e.Name))
	}
	return nil
}

func (c *Catalog) fresh(ctx context.Context) (*State, error) {
	st := c.Load(ctx)
	if err := c.EnsureFresh(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// List filters entries by a case-insensitive name substring and returns the
// requested 1-based page with detail backfilled.
func (c *Catalog) List(ctx context.Context, filter string, page int) (Page, error) {
	st, err := c.fresh(ctx)
	if err != nil {
		return Page{}, err
	}

	matches := make([]int, 0, len(st.Entries))
	needle := strings.ToLower(filter)
	for i := range st.Entries {
		if needle == "" || strings.Contains(strings.ToLower(st.Entries[i].Name), needle) {
			matches = append(matches, i)
		}
	}

	positions := pageOf(matches, page)
	if err := c.Backfill(ctx, st, positions); err != nil {
		return Page{}, err
	}

	data := make([]Entry, 0, len(positions))
	for _, pos := range positions {
		data = append(data, st.Entries[pos])
	}

	return Page{
		Count:       len(matches),
		NumPages:    NumPages(len(matches)),
		Data:        data,
		Page:        page,
		SearchQuery: filter,
	}, nil
}

// NumPages always counts one page more than the full pages, including when
// total is an exact multiple of PageSize. Clients rely on this count.
func NumPages(total int) int {
	return total/PageSize + 1
}

func pageOf(matches []int, page int) []int {
	if page < 1 {
		return nil
	}
	start := (page - 1) * PageSize
	if start >= len(matches) {
		return nil
	}
	end := min(start+PageSize, len(matches))
	return matches[start:end]
}

// ByID returns the entry with the given 1-based index.
func (c *Catalog) ByID(ctx context.Context, id int) (Entry, error) {
	if id < 1 {
		return Entry{}, validationf("id must be > 0")
	}

	st, err := c.fresh(ctx)
	if err != nil {
		return Entry{}, err
	}
	if id > st.Count || id > len(st.Entries) {
		return Entry{}, notFoundf("pokemon with this id does not exist")
	}

	pos := id - 1
	if err := c.Backfill(ctx, st, []int{pos}); err != nil {
		return Entry{}, err
	}
	return st.Entries[pos], nil
}

// Random returns a uniformly chosen entry.
func (c *Catalog) Random(ctx context.Context) (Entry, error) {
	st, err := c.fresh(ctx)
	if err != nil {
		return Entry{}, err
	}

	n := min(st.Count, len(st.Entries))
	if n < 1 {
		return Entry{}, notFoundf("catalog is empty")
	}

	pos := c.intN(n)
	if err := c.Backfill(ctx, st, []int{pos}); err != nil {
		return Entry{}, err
	}
	return st.Entries[pos], nil
}

// ImageByName returns the image URL of the entry whose name equals name exactly.
func (c *Catalog) ImageByName(ctx context.Context, name string) (Image, error) {
	if name == "" {
		return Image{}, validationf("name is required")
	}

	st, err := c.fresh(ctx)
	if err != nil {
		return Image{}, err
	}

	for i := range st.Entries {
		if st.Entries[i].Name == name {
			return Image{URL: st.Entries[i].ImageURL}, nil
		}
	}
	return Image{}, notFoundf("pokemon not found")
}

// Ping reports whether the backing store is reachable.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}
