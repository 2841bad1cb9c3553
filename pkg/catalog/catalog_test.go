package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"salesagent/pkg/config"

	"cloud.google.com/go/firestore"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreUpsertAndList(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Upsert(ctx, []Entry{
		{ID: "a", Attributes: map[string]any{"name": "Wax", "price": 12.5}, Embedding: []float32{0.5, -1}},
		{ID: "b", Attributes: map[string]any{"name": "Polish"}},
	}))

	// Updating "a" keeps its position
	require.NoError(t, store.Upsert(ctx, []Entry{
		{ID: "a", Attributes: map[string]any{"name": "Hard Wax"}, Embedding: []float32{1, 2, 3}},
	}))

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "a", entries[0].ID)
	assert.Equal(t, "Hard Wax", entries[0].Name())
	assert.Equal(t, []float32{1, 2, 3}, entries[0].Embedding)
	assert.Equal(t, "b", entries[1].ID)
	assert.Nil(t, entries[1].Embedding)
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{0, 1.5, -2.25, 3e-7}
	assert.Equal(t, v, decodeVector(encodeVector(v)))
	assert.Nil(t, encodeVector(nil))
	assert.Nil(t, decodeVector(nil))
	assert.Len(t, encodeVector(v), 16)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.CatalogConfig{})
	require.NoError(t, err)
	assert.False(t, Live(s))
	_, err = s.List(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)

	s, err = Open(ctx, config.CatalogConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "c.db")})
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, Live(s))

	_, err = Open(ctx, config.CatalogConfig{Type: "mongo"})
	assert.Error(t, err)
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	_, err := Unavailable(cause).List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestStaticStoreReturnsCopy(t *testing.T) {
	s := NewStaticStore(FallbackEntries())
	entries, err := s.List(context.Background())
	require.NoError(t, err)
	entries[0].ID = "changed"

	again, _ := s.List(context.Background())
	assert.Equal(t, "sample-ceramic-guard-ultra", again[0].ID)
}

func TestEntryNameAndDocument(t *testing.T) {
	e := Entry{ID: "x1", Attributes: map[string]any{"description": "Paint sealant"}}
	assert.Equal(t, "x1", e.Name())
	assert.Equal(t, "x1\nPaint sealant", e.Document())

	e.Attributes["name"] = "Sealant"
	e.Attributes["category"] = "Exterior"
	assert.Equal(t, "Sealant\nPaint sealant\nExterior", e.Document())
}

func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		raw     string
		host    string
		port    int
		tls     bool
		wantErr bool
	}{
		{raw: "http://localhost:6333", host: "localhost", port: 6334},
		{raw: "https://xyz.cloud.qdrant.io", host: "xyz.cloud.qdrant.io", port: 6334, tls: true},
		{raw: "http://qdrant:7000", host: "qdrant", port: 7000},
		{raw: "localhost", wantErr: true},
		{raw: "http://qdrant:abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, port, useTLS, err := parseQdrantURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
			assert.Equal(t, tt.tls, useTLS)
		})
	}
}

func TestQdrantPayloadConversion(t *testing.T) {
	payload := map[string]*qdrant.Value{
		"name":  {Kind: &qdrant.Value_StringValue{StringValue: "Wax"}},
		"price": {Kind: &qdrant.Value_DoubleValue{DoubleValue: 12.5}},
		"stock": {Kind: &qdrant.Value_IntegerValue{IntegerValue: 3}},
		"tags": {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: []*qdrant.Value{
			{Kind: &qdrant.Value_BoolValue{BoolValue: true}},
		}}}},
	}

	got := payloadMap(payload)
	assert.Equal(t, "Wax", got["name"])
	assert.Equal(t, 12.5, got["price"])
	assert.Equal(t, int64(3), got["stock"])
	assert.Equal(t, []any{true}, got["tags"])

	assert.Equal(t, "42", pointID(&qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: 42}}))
	assert.Equal(t, "5c56c793-69f3-4fbf-87e6-c4bf54c28c26",
		pointID(&qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: "5c56c793-69f3-4fbf-87e6-c4bf54c28c26"}}))
}

func TestFirestoreToVector(t *testing.T) {
	assert.Equal(t, []float32{1, 2}, toVector(firestore.Vector32{1, 2}))
	assert.Equal(t, []float32{1, 2}, toVector(firestore.Vector64{1, 2}))
	assert.Equal(t, []float32{0.5}, toVector([]float64{0.5}))
	assert.Equal(t, []float32{1, 2}, toVector([]any{float64(1), int64(2)}))
	assert.Nil(t, toVector([]any{"x"}))
	assert.Nil(t, toVector("nope"))
}

type pagedScroller struct {
	points []*qdrant.RetrievedPoint
	calls  int
	err    error
}

func (p *pagedScroller) ScrollAndOffset(ctx context.Context, req *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
	p.calls++
	if p.err != nil {
		return nil, nil, p.err
	}

	start := 0
	if req.Offset != nil {
		start = int(req.Offset.GetNum())
	}
	end := min(start+int(req.GetLimit()), len(p.points))

	var next *qdrant.PointId
	if end < len(p.points) {
		next = p.points[end].GetId()
	}
	return p.points[start:end], next, nil
}

func (p *pagedScroller) Close() error { return nil }

func TestQdrantStoreListFollowsEveryPage(t *testing.T) {
	src := &pagedScroller{}
	for i := range 7 {
		src.points = append(src.points, &qdrant.RetrievedPoint{
			Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Num{Num: uint64(i)}},
			Payload: map[string]*qdrant.Value{
				"name": {Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("product-%d", i)}},
			},
		})
	}
	store := &QdrantStore{client: src, collection: "products", limit: 3}

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 7)
	assert.Equal(t, 3, src.calls)
	for i, e := range entries {
		assert.Equal(t, fmt.Sprint(i), e.ID)
		assert.Equal(t, fmt.Sprintf("product-%d", i), e.Name())
	}
}

func TestQdrantStoreListScrollFailure(t *testing.T) {
	store := &QdrantStore{client: &pagedScroller{err: errors.New("connection refused")}, collection: "products", limit: 3}

	_, err := store.List(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
