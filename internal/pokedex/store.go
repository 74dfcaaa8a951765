package pokedex

import (
	"context"
	"encoding/json"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// Store persists a single State record. Save always overwrites the whole record.
type Store interface {
	Load(ctx context.Context) (*State, bool, error)
	Save(ctx context.Context, st *State) error
	Ping(ctx context.Context) error
}

func encodeState(st *State) ([]byte, error) {
	return json.Marshal(st)
}

func decodeState(b []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, err
	}
	if st.Entries == nil {
		st.Entries = []Entry{}
	}
	return &st, nil
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
