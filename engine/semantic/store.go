// Package semantic mirrors built indexes into a Qdrant collection. The
// mirror is write-through and best-effort: the flat index remains the
// authoritative search path, Qdrant gives operators a browsable copy.
package semantic

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vendexa/vendex/engine/domain"
)

// PointsAPI is the subset of the Qdrant points client the mirror uses.
type PointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// CollectionsAPI is the subset of the Qdrant collections client the mirror uses.
type CollectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Mirror is the sole owner of all Qdrant operations.
type Mirror struct {
	conn        *grpc.ClientConn
	points      PointsAPI
	collections CollectionsAPI
	collection  string
}

// New connects a Mirror to Qdrant at the given gRPC address.
func New(addr, collection string) (*Mirror, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &Mirror{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients creates a Mirror from existing clients. The caller owns the
// connection behind them, so Close is a no-op.
func NewWithClients(points PointsAPI, collections CollectionsAPI, collection string) *Mirror {
	return &Mirror{
		points:      points,
		collections: collections,
		collection:  collection,
	}
}

// Close closes the underlying gRPC connection, if the Mirror owns one.
func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (m *Mirror) EnsureCollection(ctx context.Context, dims int) error {
	list, err := m.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == m.collection {
			return nil
		}
	}

	d := uint64(dims)
	_, err = m.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: m.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     d,
					Distance: pb.Distance_Dot,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", m.collection, err)
	}
	return nil
}

// MirrorIndex upserts every vector of a built index with its metadata
// payload. Point IDs are deterministic per (index name, position) so
// re-mirroring a rebuilt index overwrites rather than duplicates.
func (m *Mirror) MirrorIndex(ctx context.Context, indexName string, vectors [][]float32, metas []domain.Metadata) error {
	if len(vectors) == 0 {
		return nil
	}
	if err := m.EnsureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]*pb.PointStruct, len(vectors))
	for i, vec := range vectors {
		payload := make(map[string]*pb.Value, len(metas[i])+1)
		for k, v := range metas[i] {
			payload[k] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
		}
		payload["position"] = &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: int64(i)}}

		pointID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s-%d", indexName, i))).String()
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: pointID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vec},
				},
			},
			Payload: payload,
		}
	}

	wait := true
	_, err := m.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: m.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(points), err)
	}
	return nil
}

// SearchFiltered runs a similarity search against the mirror with optional
// exact-match payload filters. Used for operational spot checks, not the
// serving path.
func (m *Mirror) SearchFiltered(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]domain.SearchResult, error) {
	req := &pb.SearchPoints{
		CollectionName: m.collection,
		Vector:         embedding,
		Limit:          uint64(topK),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}

	if len(filters) > 0 {
		must := make([]*pb.Condition, 0, len(filters))
		for k, v := range filters {
			must = append(must, fieldMatch(k, v))
		}
		req.Filter = &pb.Filter{Must: must}
	}

	resp, err := m.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]domain.SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		meta := domain.Metadata{}
		for k, v := range r.GetPayload() {
			if s := v.GetStringValue(); s != "" {
				meta[k] = s
			}
		}
		results[i] = domain.SearchResult{
			VendorID: meta["vendor_id"],
			Name:     meta["name"],
			Score:    r.GetScore(),
			Meta:     meta,
		}
	}
	return results, nil
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}
