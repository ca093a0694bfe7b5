package qdrant

import (
	"context"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"impar/api/internal/content"
	"impar/api/internal/store"
)

type MockPoints struct{ mock.Mock }

func (m *MockPoints) Upsert(ctx context.Context, in *pb.UpsertPoints, _ ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.PointsOperationResponse), args.Error(1)
}

func (m *MockPoints) Search(ctx context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.SearchResponse), args.Error(1)
}

func (m *MockPoints) Count(ctx context.Context, in *pb.CountPoints, _ ...grpc.CallOption) (*pb.CountResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.CountResponse), args.Error(1)
}

func (m *MockPoints) Scroll(ctx context.Context, in *pb.ScrollPoints, _ ...grpc.CallOption) (*pb.ScrollResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.ScrollResponse), args.Error(1)
}

type MockCollections struct{ mock.Mock }

func (m *MockCollections) CollectionExists(ctx context.Context, in *pb.CollectionExistsRequest, _ ...grpc.CallOption) (*pb.CollectionExistsResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.CollectionExistsResponse), args.Error(1)
}

func (m *MockCollections) Create(ctx context.Context, in *pb.CreateCollection, _ ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pb.CollectionOperationResponse), args.Error(1)
}

func newTestRepo() (*Repository, *MockPoints, *MockCollections) {
	points := new(MockPoints)
	collections := new(MockCollections)
	return &Repository{points: points, collections: collections, collection: "documents", dimensions: 768}, points, collections
}

func point(text, source, location, kind string) map[string]*pb.Value {
	return map[string]*pb.Value{
		keyText:     stringValue(text),
		keySource:   stringValue(source),
		keyLocation: stringValue(location),
		keyType:     stringValue(kind),
	}
}

func TestRepository_EnsureCollection_Creates(t *testing.T) {
	repo, _, collections := newTestRepo()
	collections.On("CollectionExists", mock.Anything, mock.MatchedBy(func(r *pb.CollectionExistsRequest) bool {
		return r.CollectionName == "documents"
	})).
		Return(&pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: false}}, nil)
	collections.On("Create", mock.Anything, mock.MatchedBy(func(c *pb.CreateCollection) bool {
		params := c.GetVectorsConfig().GetParams()
		return c.CollectionName == "documents" && params.GetSize() == 768 && params.GetDistance() == pb.Distance_Cosine
	})).Return(&pb.CollectionOperationResponse{Result: true}, nil)

	require.NoError(t, repo.EnsureCollection(context.Background()))
	collections.AssertExpectations(t)
}

func TestRepository_EnsureCollection_Exists(t *testing.T) {
	repo, _, collections := newTestRepo()
	collections.On("CollectionExists", mock.Anything, mock.Anything).
		Return(&pb.CollectionExistsResponse{Result: &pb.CollectionExists{Exists: true}}, nil)

	require.NoError(t, repo.EnsureCollection(context.Background()))
	collections.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRepository_Insert(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Upsert", mock.Anything, mock.MatchedBy(func(u *pb.UpsertPoints) bool {
		if len(u.Points) != 1 || !u.GetWait() {
			return false
		}
		p := u.Points[0]
		return p.GetId().GetUuid() == "7d1f0c56-6a0e-4c55-8d5b-9b6a0c1d2e3f" &&
			p.GetPayload()[keySource].GetStringValue() == "scan.png" &&
			p.GetPayload()[keyType].GetStringValue() == "image_ocr"
	})).Return(&pb.PointsOperationResponse{}, nil)

	err := repo.Insert(context.Background(), []store.Record{{
		ID:       "7d1f0c56-6a0e-4c55-8d5b-9b6a0c1d2e3f",
		Text:     "Nota fiscal",
		Vector:   []float32{0.1},
		Metadata: content.Metadata{Source: "scan.png", Location: "full image", Kind: content.KindImageOCR},
	}})

	require.NoError(t, err)
	points.AssertExpectations(t)
}

func TestRepository_QueryFiltersBySource(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Search", mock.Anything, mock.MatchedBy(func(s *pb.SearchPoints) bool {
		must := s.GetFilter().GetMust()
		return s.Limit == 3 && len(must) == 1 &&
			must[0].GetField().GetKey() == keySource &&
			must[0].GetField().GetMatch().GetKeyword() == "faq.pdf"
	})).Return(&pb.SearchResponse{Result: []*pb.ScoredPoint{
		{Payload: point("answer", "faq.pdf", "page 2", "pdf"), Score: 0.9},
	}}, nil)

	got, err := repo.Query(context.Background(), []float32{1, 0}, 3, "faq.pdf")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "answer", got[0].Text)
	assert.Equal(t, content.Metadata{Source: "faq.pdf", Location: "page 2", Kind: content.KindPDF}, got[0].Metadata)
}

func TestRepository_QueryWithoutFilter(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Search", mock.Anything, mock.MatchedBy(func(s *pb.SearchPoints) bool {
		return s.Filter == nil
	})).Return(&pb.SearchResponse{}, nil)

	got, err := repo.Query(context.Background(), []float32{1}, 5, "")

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRepository_MissingCollection(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Count", mock.Anything, mock.Anything).
		Return(nil, status.Error(codes.NotFound, "Collection `documents` doesn't exist!"))

	_, err := repo.HasSource(context.Background(), "a.pdf")

	assert.ErrorIs(t, err, store.ErrCollectionNotFound)
}

func TestRepository_HasSource(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Count", mock.Anything, mock.MatchedBy(func(c *pb.CountPoints) bool {
		return c.GetFilter().GetMust()[0].GetField().GetMatch().GetKeyword() == "https://example.com"
	})).Return(&pb.CountResponse{Result: &pb.CountResult{Count: 4}}, nil)

	ok, err := repo.HasSource(context.Background(), "https://example.com")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_DistinctSourcesPages(t *testing.T) {
	repo, points, _ := newTestRepo()
	next := &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "page-2"}}

	points.On("Scroll", mock.Anything, mock.MatchedBy(func(s *pb.ScrollPoints) bool { return s.Offset == nil })).
		Return(&pb.ScrollResponse{
			Result: []*pb.RetrievedPoint{
				{Payload: map[string]*pb.Value{keySource: stringValue("a.pdf")}},
				{Payload: map[string]*pb.Value{keySource: stringValue("b.csv")}},
			},
			NextPageOffset: next,
		}, nil).Once()
	points.On("Scroll", mock.Anything, mock.MatchedBy(func(s *pb.ScrollPoints) bool { return s.Offset == next })).
		Return(&pb.ScrollResponse{
			Result: []*pb.RetrievedPoint{
				{Payload: map[string]*pb.Value{keySource: stringValue("a.pdf")}},
				{Payload: map[string]*pb.Value{keySource: stringValue("https://go.dev")}},
			},
		}, nil).Once()

	got, err := repo.DistinctSources(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a.pdf", "b.csv", "https://go.dev"}, got)
	points.AssertExpectations(t)
}

func TestRepository_Count(t *testing.T) {
	repo, points, _ := newTestRepo()
	points.On("Count", mock.Anything, mock.MatchedBy(func(c *pb.CountPoints) bool {
		return c.Filter == nil && c.GetExact()
	})).Return(&pb.CountResponse{Result: &pb.CountResult{Count: 12}}, nil)

	n, err := repo.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 12, n)
}
