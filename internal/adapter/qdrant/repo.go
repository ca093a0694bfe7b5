// Package qdrant stores chunks as points of a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"impar/api/internal/content"
	"impar/api/internal/store"
)

const (
	keyText     = "text"
	keySource   = "source"
	keyLocation = "location"
	keyType     = "type"

	scrollPageSize = 256
)

type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
	Count(ctx context.Context, in *pb.CountPoints, opts ...grpc.CallOption) (*pb.CountResponse, error)
	Scroll(ctx context.Context, in *pb.ScrollPoints, opts ...grpc.CallOption) (*pb.ScrollResponse, error)
}

type collectionsAPI interface {
	CollectionExists(ctx context.Context, in *pb.CollectionExistsRequest, opts ...grpc.CallOption) (*pb.CollectionExistsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// Repository implements store.Repository on one Qdrant collection using
// cosine distance.
type Repository struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dimensions  uint64
}

func Dial(host string, port int, collection string, dimensions int) (*Repository, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &Repository{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dimensions:  uint64(dimensions),
	}, nil
}

func (r *Repository) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}

func (r *Repository) EnsureCollection(ctx context.Context) error {
	resp, err := r.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: r.collection})
	if err != nil {
		return err
	}
	if resp.GetResult().GetExists() {
		return nil
	}

	_, err = r.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{
			Params: &pb.VectorParams{Size: r.dimensions, Distance: pb.Distance_Cosine},
		}},
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	return err
}

func (r *Repository) Insert(ctx context.Context, records []store.Record) error {
	points := make([]*pb.PointStruct, len(records))
	for i, rec := range records {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: rec.ID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: rec.Vector}}},
			Payload: map[string]*pb.Value{
				keyText:     stringValue(rec.Text),
				keySource:   stringValue(rec.Metadata.Source),
				keyLocation: stringValue(rec.Metadata.Location),
				keyType:     stringValue(string(rec.Metadata.Kind)),
			},
		}
	}

	wait := true
	_, err := r.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collection,
		Wait:           &wait,
		Points:         points,
	})
	return r.mapError(err)
}

func (r *Repository) Query(ctx context.Context, vector []float32, k int, source string) ([]store.Record, error) {
	resp, err := r.points.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collection,
		Vector:         vector,
		Limit:          uint64(k),
		Filter:         sourceFilter(source),
		WithPayload:    withPayload(),
	})
	if err != nil {
		return nil, r.mapError(err)
	}

	records := make([]store.Record, len(resp.GetResult()))
	for i, pt := range resp.GetResult() {
		records[i] = recordFromPayload(pt.GetPayload())
	}
	return records, nil
}

func (r *Repository) HasSource(ctx context.Context, source string) (bool, error) {
	n, err := r.count(ctx, sourceFilter(source), false)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository) DistinctSources(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var sources []string
	var offset *pb.PointId
	limit := uint32(scrollPageSize)

	for {
		resp, err := r.points.Scroll(ctx, &pb.ScrollPoints{
			CollectionName: r.collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload: &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Include{
				Include: &pb.PayloadIncludeSelector{Fields: []string{keySource}},
			}},
		})
		if err != nil {
			return nil, r.mapError(err)
		}
		for _, pt := range resp.GetResult() {
			s := pt.GetPayload()[keySource].GetStringValue()
			if s != "" && !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
		offset = resp.GetNextPageOffset()
		if offset == nil {
			return sources, nil
		}
	}
}

func (r *Repository) Count(ctx context.Context) (int, error) {
	n, err := r.count(ctx, nil, true)
	return int(n), err
}

func (r *Repository) count(ctx context.Context, filter *pb.Filter, exact bool) (uint64, error) {
	resp, err := r.points.Count(ctx, &pb.CountPoints{
		CollectionName: r.collection,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, r.mapError(err)
	}
	return resp.GetResult().GetCount(), nil
}

func (r *Repository) mapError(err error) error {
	if err == nil {
		return nil
	}
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s: %w", r.collection, store.ErrCollectionNotFound)
	}
	return err
}

func sourceFilter(source string) *pb.Filter {
	if source == "" {
		return nil
	}
	return &pb.Filter{Must: []*pb.Condition{{
		ConditionOneOf: &pb.Condition_Field{Field: &pb.FieldCondition{
			Key:   keySource,
			Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: source}},
		}},
	}}}
}

func withPayload() *pb.WithPayloadSelector {
	return &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func recordFromPayload(payload map[string]*pb.Value) store.Record {
	return store.Record{
		Text: payload[keyText].GetStringValue(),
		Metadata: content.Metadata{
			Source:   payload[keySource].GetStringValue(),
			Location: payload[keyLocation].GetStringValue(),
			Kind:     content.Kind(payload[keyType].GetStringValue()),
		},
	}
}
