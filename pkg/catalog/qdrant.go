package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds configuration for connecting to Qdrant.
type QdrantConfig struct {
	URL        string // e.g. "http://localhost:6333"
	APIKey     string
	Collection string
	Limit      int // points per scroll page, default 1000
}

// pointScroller is the part of the Qdrant client List pages through.
type pointScroller interface {
	ScrollAndOffset(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error)
	Close() error
}

// QdrantStore reads catalog points, payload and vector, from a Qdrant collection.
type QdrantStore struct {
	client     pointScroller
	collection string
	limit      uint32
}

// parseQdrantURL extracts host, port, and TLS flag from a Qdrant URL.
// The REST port 6333 is mapped to the gRPC port 6334.
func parseQdrantURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("catalog: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()
	port = 6334

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("catalog: invalid port in qdrant URL: %q", portStr)
		}
		if p != 6333 {
			port = p
		}
	}

	return host, port, useTLS, nil
}

// NewQdrantStore connects to Qdrant over gRPC.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Collection == "" {
		cfg.Collection = "products"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1000
	}

	host, port, useTLS, err := parseQdrantURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		limit:      uint32(cfg.Limit),
	}, nil
}

// List scrolls the whole collection with payloads and vectors, one page of
// Limit points at a time, until Qdrant reports no next offset.
func (q *QdrantStore) List(ctx context.Context) ([]Entry, error) {
	var (
		entries []Entry
		offset  *qdrant.PointId
	)
	for {
		limit := q.limit
		points, next, err := q.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant scroll %q: %v", ErrUnavailable, q.collection, err)
		}

		for _, p := range points {
			entries = append(entries, Entry{
				ID:         pointID(p.GetId()),
				Attributes: payloadMap(p.GetPayload()),
				Embedding:  pointVector(p.GetVectors()),
			})
		}

		if next == nil || len(points) == 0 {
			return entries, nil
		}
		offset = next
	}
}

// Close closes the gRPC connection.
func (q *QdrantStore) Close() error {
	return q.client.Close()
}

func pointID(id *qdrant.PointId) string {
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

func pointVector(v *qdrant.VectorsOutput) []float32 {
	vec := v.GetVector()
	if vec == nil {
		return nil
	}
	if dense := vec.GetDense(); dense != nil {
		return dense.GetData()
	}
	return vec.GetData()
}

func payloadMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = payloadValue(v)
	}
	return out
}

func payloadValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		list := kind.ListValue.GetValues()
		out := make([]any, 0, len(list))
		for _, item := range list {
			out = append(out, payloadValue(item))
		}
		return out
	case *qdrant.Value_StructValue:
		return payloadMap(kind.StructValue.GetFields())
	default:
		return nil
	}
}
