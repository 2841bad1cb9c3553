package catalog

import "context"

// StaticStore serves a fixed in-memory entry list.
type StaticStore struct {
	entries []Entry
}

func NewStaticStore(entries []Entry) *StaticStore {
	return &StaticStore{entries: entries}
}

func (s *StaticStore) List(ctx context.Context) ([]Entry, error) {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *StaticStore) Close() error { return nil }

// FallbackEntries is the sample set served when the live catalog cannot be
// reached. Entries carry a preset "match" score and no embedding.
func FallbackEntries() []Entry {
	return []Entry{
		{
			ID: "sample-ceramic-guard-ultra",
			Attributes: map[string]any{
				"name":  "Ceramic Guard Ultra",
				"price": 89.0,
				"match": 0.8,
			},
		},
		{
			ID: "sample-engine-cleaner-mv40",
			Attributes: map[string]any{
				"name":  "Engine Cleaner MV40",
				"price": 34.50,
				"match": 0.7,
			},
		},
	}
}
