package catalog

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

// FirestoreStore streams catalog documents from a Firestore collection.
// The "embedding" field holds the vector; every other field is an attribute.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore opens a client on projectID/database. Credentials come
// from the environment (Application Default Credentials).
func NewFirestoreStore(ctx context.Context, projectID, database, collection string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("catalog: firestore project_id is required")
	}
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	if collection == "" {
		collection = "products"
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return nil, fmt.Errorf("catalog: firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

// List reads every document of the collection in document order.
func (f *FirestoreStore) List(ctx context.Context) ([]Entry, error) {
	iter := f.client.Collection(f.collection).Documents(ctx)
	defer iter.Stop()

	var entries []Entry
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: firestore %q: %v", ErrUnavailable, f.collection, err)
		}

		data := doc.Data()
		e := Entry{ID: doc.Ref.ID, Attributes: make(map[string]any, len(data))}
		for k, v := range data {
			if k == "embedding" {
				e.Embedding = toVector(v)
				continue
			}
			e.Attributes[k] = v
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}

// toVector accepts the shapes an embedding field can decode into.
func toVector(v any) []float32 {
	switch vec := v.(type) {
	case firestore.Vector32:
		return []float32(vec)
	case firestore.Vector64:
		out := make([]float32, len(vec))
		for i, f := range vec {
			out[i] = float32(f)
		}
		return out
	case []float64:
		out := make([]float32, len(vec))
		for i, f := range vec {
			out[i] = float32(f)
		}
		return out
	case []any:
		out := make([]float32, 0, len(vec))
		for _, item := range vec {
			switch n := item.(type) {
			case float64:
				out = append(out, float32(n))
			case int64:
				out = append(out, float32(n))
			default:
				return nil
			}
		}
		return out
	default:
		return nil
	}
}
