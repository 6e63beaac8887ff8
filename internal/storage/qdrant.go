/**
 * Qdrant vector store for transcript embeddings
 *
 * Transcript embeddings power similar-product search. Point IDs derive from
 * the image hash, so the vector write can safely precede the extraction row
 * write and a retried job overwrites its own point instead of accumulating
 * orphans. Uses Qdrant's native gRPC API.
 */

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	qdrant "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// VectorDimensions is the transcript embedding width (voyage-3).
const VectorDimensions = 1024

// VectorStore holds transcript embeddings in a single Qdrant collection.
type VectorStore struct {
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	conn        *grpc.ClientConn
	collection  string
}

// TranscriptPoint is one stored transcript embedding with its payload.
// Score is only set on points returned by SearchTranscripts.
type TranscriptPoint struct {
	ID        string
	Embedding []float32
	Payload   map[string]interface{}
	Score     float32
}

// PointIDForImage derives the Qdrant point ID for an image hash. Point
// identity follows image identity: re-processing the same photo lands on
// the same point.
func PointIDForImage(imageHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(imageHash)).String()
}

// NewVectorStore connects to Qdrant and ensures the collection exists.
func NewVectorStore(address string, collection string) (*VectorStore, error) {
	if address == "" {
		return nil, fmt.Errorf("qdrant address is required")
	}

	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	conn, err := grpc.Dial(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}

	vs := &VectorStore{
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		conn:        conn,
		collection:  collection,
	}

	if err := vs.ensureCollection(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return vs, nil
}

// ensureCollection creates the collection if it doesn't exist
func (vs *VectorStore) ensureCollection(ctx context.Context) error {
	listResp, err := vs.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, col := range listResp.Collections {
		if col.Name == vs.collection {
			return nil
		}
	}

	// Transcript embeddings are voyage-3 vectors: 1024 dimensions, cosine
	// similarity.
	_, err = vs.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: vs.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     VectorDimensions,
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// UpsertTranscript stores or refreshes one transcript embedding. The store
// stamps the point with an indexed_at timestamp.
func (vs *VectorStore) UpsertTranscript(ctx context.Context, point *TranscriptPoint) error {
	if point == nil {
		return fmt.Errorf("point is required")
	}

	if point.ID == "" {
		return fmt.Errorf("point ID is required")
	}

	if len(point.Embedding) != VectorDimensions {
		return fmt.Errorf("invalid vector dimensions: expected %d, got %d", VectorDimensions, len(point.Embedding))
	}

	payload := make(map[string]*qdrant.Value, len(point.Payload)+1)
	for k, v := range point.Payload {
		payload[k] = toQdrantValue(v)
	}
	payload["indexed_at"] = toQdrantValue(time.Now().Unix())

	pointStruct := &qdrant.PointStruct{
		Id: &qdrant.PointId{
			PointIdOptions: &qdrant.PointId_Uuid{
				Uuid: point.ID,
			},
		},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{
				Vector: &qdrant.Vector{
					Data: point.Embedding,
				},
			},
		},
		Payload: payload,
	}

	_, err := vs.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: vs.collection,
		Points:         []*qdrant.PointStruct{pointStruct},
	})

	if err != nil {
		return fmt.Errorf("failed to upsert transcript vector: %w", err)
	}

	return nil
}

// SearchTranscripts returns the stored points nearest to embedding, best
// match first, with payloads and scores.
func (vs *VectorStore) SearchTranscripts(ctx context.Context, embedding []float32, limit int) ([]*TranscriptPoint, error) {
	if len(embedding) != VectorDimensions {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", VectorDimensions, len(embedding))
	}

	if limit <= 0 {
		limit = 10
	}

	results, err := vs.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: vs.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{
				Enable: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	points := make([]*TranscriptPoint, 0, len(results.Result))
	for _, result := range results.Result {
		point := &TranscriptPoint{
			Payload: make(map[string]interface{}, len(result.Payload)),
			Score:   result.Score,
		}
		if result.Id != nil {
			point.ID = result.Id.GetUuid()
		}
		for k, v := range result.Payload {
			if decoded := fromQdrantValue(v); decoded != nil {
				point.Payload[k] = decoded
			}
		}
		points = append(points, point)
	}

	return points, nil
}

// GetTranscript retrieves one stored point with its embedding and payload.
func (vs *VectorStore) GetTranscript(ctx context.Context, pointID string) (*TranscriptPoint, error) {
	if pointID == "" {
		return nil, fmt.Errorf("point ID is required")
	}

	results, err := vs.points.Get(ctx, &qdrant.GetPoints{
		CollectionName: vs.collection,
		Ids: []*qdrant.PointId{
			{
				PointIdOptions: &qdrant.PointId_Uuid{
					Uuid: pointID,
				},
			},
		},
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{
				Enable: true,
			},
		},
		WithVectors: &qdrant.WithVectorsSelector{
			SelectorOptions: &qdrant.WithVectorsSelector_Enable{
				Enable: true,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get vector: %w", err)
	}

	if len(results.Result) == 0 {
		return nil, fmt.Errorf("vector not found: %s", pointID)
	}

	result := results.Result[0]

	point := &TranscriptPoint{
		ID:      pointID,
		Payload: make(map[string]interface{}, len(result.Payload)),
	}

	if result.Vectors != nil {
		if vec := result.Vectors.GetVector(); vec != nil {
			point.Embedding = vec.Data
		}
	}

	for k, v := range result.Payload {
		if decoded := fromQdrantValue(v); decoded != nil {
			point.Payload[k] = decoded
		}
	}

	return point, nil
}

// CollectionInfo returns collection statistics
func (vs *VectorStore) CollectionInfo(ctx context.Context) (map[string]interface{}, error) {
	info, err := vs.collections.Get(ctx, &qdrant.GetCollectionInfoRequest{
		CollectionName: vs.collection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info: %w", err)
	}

	return map[string]interface{}{
		"collection_name": vs.collection,
		"vectors_count":   info.Result.GetVectorsCount(),
		"points_count":    info.Result.GetPointsCount(),
		"indexed_vectors": info.Result.GetIndexedVectorsCount(),
		"status":          info.Result.GetStatus().String(),
	}, nil
}

// Close closes the underlying gRPC connection.
func (vs *VectorStore) Close() error {
	if vs.conn != nil {
		return vs.conn.Close()
	}
	return nil
}

// toQdrantValue maps a Go payload value onto the Qdrant value union. String
// slices (keywords, colors) become list values; anything unrecognized is
// stored as its string form.
func toQdrantValue(v interface{}) *qdrant.Value {
	switch val := v.(type) {
	case string:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: val}}
	case int:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(val)}}
	case int64:
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: val}}
	case float64:
		return &qdrant.Value{Kind: &qdrant.Value_DoubleValue{DoubleValue: val}}
	case bool:
		return &qdrant.Value{Kind: &qdrant.Value_BoolValue{BoolValue: val}}
	case []string:
		values := make([]*qdrant.Value, 0, len(val))
		for _, s := range val {
			values = append(values, &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}})
		}
		return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
	default:
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: fmt.Sprintf("%v", val)}}
	}
}

// fromQdrantValue reverses toQdrantValue. Nested non-string list items are
// dropped; nil marks kinds the store never writes.
func fromQdrantValue(v *qdrant.Value) interface{} {
	switch kind := v.Kind.(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := make([]string, 0, len(kind.ListValue.Values))
		for _, item := range kind.ListValue.Values {
			if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
				items = append(items, s.StringValue)
			}
		}
		return items
	default:
		return nil
	}
}
