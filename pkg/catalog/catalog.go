// Package catalog lists product catalog entries from the configured store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salesagent/pkg/config"
)

// ErrUnavailable marks a store that could not be reached.
var ErrUnavailable = errors.New("catalog: store unavailable")

// Entry is one catalog product. Embedding is nil when the product was never
// indexed.
type Entry struct {
	ID         string         `json:"id"`
	Attributes map[string]any `json:"attributes"`
	Embedding  []float32      `json:"-"`
}

// Name returns the "name" attribute, or the id when absent.
func (e Entry) Name() string {
	if n, ok := e.Attributes["name"].(string); ok && n != "" {
		return n
	}
	return e.ID
}

// Document is the text embedded when the entry is indexed: its name
// followed by the description and category when present.
func (e Entry) Document() string {
	parts := []string{e.Name()}
	for _, key := range []string{"description", "category"} {
		if v, ok := e.Attributes[key].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, "\n")
}

// Store enumerates catalog entries.
type Store interface {
	// List returns every entry in stable catalog order.
	List(ctx context.Context) ([]Entry, error)
	Close() error
}

// Open builds the store selected by cfg.Type. Without a configured type
// the returned store is unavailable and searches serve the fallback set.
func Open(ctx context.Context, cfg config.CatalogConfig) (Store, error) {
	switch cfg.Type {
	case "", "none":
		return Unavailable(errors.New("no catalog store configured")), nil
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			URL:        cfg.URL,
			APIKey:     cfg.APIKey,
			Collection: cfg.Collection,
			Limit:      cfg.Limit,
		})
	case "firestore":
		return NewFirestoreStore(ctx, cfg.ProjectID, cfg.Database, cfg.Collection)
	default:
		return nil, fmt.Errorf("catalog: unknown store type %q", cfg.Type)
	}
}

// Live reports whether s is backed by a catalog rather than an
// unavailable placeholder.
func Live(s Store) bool {
	_, down := s.(*unavailableStore)
	return !down
}

type unavailableStore struct {
	cause error
}

// Unavailable returns a store whose List always fails with cause. It stands
// in for a store that could not be opened at startup so that searches
// degrade to the fallback set instead of aborting.
func Unavailable(cause error) Store {
	return &unavailableStore{cause: cause}
}

func (u *unavailableStore) List(ctx context.Context) ([]Entry, error) {
	return nil, fmt.Errorf("%w: %v", ErrUnavailable, u.cause)
}

func (u *unavailableStore) Close() error { return nil }
