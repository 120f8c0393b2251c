// Package index stores chunk vectors in Qdrant and serves the filtered
// similarity searches the retrieval side runs against them.
package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/docloom/docloom/types"
)

// Config locates the Qdrant server and names the chunk collection.
type Config struct {
	Host       string
	Port       int
	Collection string
}

// Store wraps one Qdrant collection of chunk points.
type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant. The collection is created lazily by
// EnsureCollection once the embedding dimension is known.
func New(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, types.E(types.IndexError, "connect to qdrant", err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the collection with the given vector dimension
// if it does not exist yet. Cosine distance matches the embedding models
// the pipeline runs with.
func (s *Store) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return types.E(types.IndexError, "check collection", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return types.E(types.IndexError, "create collection", err)
	}
	return nil
}

// PointID derives the deterministic point ID for a chunk from its file
// path and character interval, so re-indexing a file overwrites its old
// points instead of duplicating them.
func PointID(relativePath string, charStart, charEnd int) string {
	name := fmt.Sprintf("%s:%d:%d", relativePath, charStart, charEnd)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// Record is one chunk ready for upsert.
type Record struct {
	RelativePath string
	CharStart    int
	CharEnd      int
	Vector       []float64
}

// Upsert writes records to the collection, waiting for the write to be
// applied so a search issued right after sees them.
func (s *Store) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		vector := make([]float32, len(r.Vector))
		for i, v := range r.Vector {
			vector[i] = float32(v)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(r.RelativePath, r.CharStart, r.CharEnd)),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				"file_path":  r.RelativePath,
				"char_start": int64(r.CharStart),
				"char_end":   int64(r.CharEnd),
			}),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return types.E(types.IndexError, "upsert points", err)
	}
	return nil
}

// DeleteFile removes every point indexed under relativePath.
func (s *Store) DeleteFile(ctx context.Context, relativePath string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("file_path", relativePath),
			},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		return types.E(types.IndexError, "delete file points", err)
	}
	return nil
}

// Hit is one search result.
type Hit struct {
	RelativePath string
	CharStart    int
	CharEnd      int
	Score        float32
}

// Search returns the limit nearest chunks whose file path is in allow.
// An empty allow list means the caller has access to nothing, so no
// query is issued.
func (s *Store) Search(ctx context.Context, vector []float64, limit int, allow []string) ([]Hit, error) {
	if len(allow) == 0 {
		return nil, nil
	}
	query := make([]float32, len(vector))
	for i, v := range vector {
		query[i] = float32(v)
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeywords("file_path", allow...),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, types.E(types.IndexError, "query points", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		hits = append(hits, Hit{
			RelativePath: payload["file_path"].GetStringValue(),
			CharStart:    int(payload["char_start"].GetIntegerValue()),
			CharEnd:      int(payload["char_end"].GetIntegerValue()),
			Score:        p.GetScore(),
		})
	}
	return hits, nil
}

// Close releases the client connection.
func (s *Store) Close() error {
	return s.client.Close()
}
