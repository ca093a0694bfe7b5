package ingest_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"impar/api/internal/content"
	"impar/api/internal/extract"
)

type MockExtractor struct{ mock.Mock }

func (m *MockExtractor) ExtractBatch(ctx context.Context, files []extract.File) ([]content.Unit, error) {
	args := m.Called(ctx, files)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]content.Unit), args.Error(1)
}

type MockStore struct{ mock.Mock }

func (m *MockStore) Add(ctx context.Context, chunks []content.Chunk) error {
	return m.Called(ctx, chunks).Error(0)
}

func (m *MockStore) Exists(ctx context.Context, source string) (bool, error) {
	args := m.Called(ctx, source)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) ListSources(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
