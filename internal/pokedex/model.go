package pokedex

import (
	"encoding/json"
	"fmt"
	"time"
)

// PageSize is the number of entries per List page.
const PageSize = 20

// DefaultImageBase is the sprite location used to build Entry.ImageURL.
const DefaultImageBase = "https://raw.githubusercontent.com/PokeAPI/sprites/master/sprites/pokemon/"

// lastUpdateLayout is how last_update is written: local wall-clock time,
// second precision, no zone.
const lastUpdateLayout = "2006-01-02 15:04:05"

// sentinelUpdate is older than any real refresh so a fresh State is always stale.
var sentinelUpdate = time.Date(2021, time.January, 1, 0, 0, 0, 0, time.Local)

type Entry struct {
	Index     int            `json:"index"`
	Name      string         `json:"name"`
	SourceURL string         `json:"url"`
	ImageURL  string         `json:"img_url"`
	Stats     map[string]int `json:"stats"`
	Types     []string       `json:"types"`
}

// HasDetail reports whether stats and types were already backfilled.
func (e *Entry) HasDetail() bool {
	return e.Stats != nil
}

// State is the persisted snapshot of the upstream catalog.
type State struct {
	LastUpdate time.Time `json:"last_update"`
	Count      int       `json:"count"`
	Entries    []Entry   `json:"data"`
}

type stateJSON struct {
	LastUpdate string  `json:"last_update"`
	Count      int     `json:"count"`
	Entries    []Entry `json:"data"`
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(stateJSON{
		LastUpdate: s.LastUpdate.In(time.Local).Format(lastUpdateLayout),
		Count:      s.Count,
		Entries:    s.Entries,
	})
}

func (s *State) UnmarshalJSON(b []byte) error {
	var raw stateJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	last, err := parseLastUpdate(raw.LastUpdate)
	if err != nil {
		return err
	}

	*s = State{LastUpdate: last, Count: raw.Count, Entries: raw.Entries}
	return nil
}

// parseLastUpdate also accepts RFC 3339 records written by earlier builds.
func parseLastUpdate(v string) (time.Time, error) {
	if t, err := time.ParseInLocation(lastUpdateLayout, v, time.Local); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("last_update %q: want %q or RFC 3339", v, lastUpdateLayout)
	}
	return t, nil
}

func NewState() *State {
	return &State{
		LastUpdate: sentinelUpdate,
		Entries:    []Entry{},
	}
}

type Page struct {
	Count       int     `json:"count"`
	NumPages    int     `json:"num_pages"`
	Data        []Entry `json:"data"`
	Page        int     `json:"page"`
	SearchQuery string  `json:"search_query"`
}

type Image struct {
	URL string `json:"img_url"`
}
