package stats

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockVectorStore struct{ mock.Mock }

func (m *MockVectorStore) ListSources(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockVectorStore) CountChunks(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockJobRepo struct{ mock.Mock }

func (m *MockJobRepo) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestHandler_GetStats_Table(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(*MockVectorStore, *MockJobRepo)
		wantStatus int
		wantError  bool
		checkBody  func(*testing.T, map[string]interface{})
	}{
		{
			name: "Success",
			setupMocks: func(v *MockVectorStore, j *MockJobRepo) {
				v.On("ListSources", mock.Anything).Return([]string{"a.pdf", "b.csv", "https://example.com"}, nil)
				v.On("CountChunks", mock.Anything).Return(100, nil)
				j.On("Count", mock.Anything).Return(5, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 3, data["sources"])
				assert.EqualValues(t, 100, data["chunks"])
				assert.EqualValues(t, 5, data["failed_jobs"])
			},
		},
		{
			name: "Empty store",
			setupMocks: func(v *MockVectorStore, j *MockJobRepo) {
				v.On("ListSources", mock.Anything).Return([]string{}, nil)
				v.On("CountChunks", mock.Anything).Return(0, nil)
				j.On("Count", mock.Anything).Return(0, nil)
			},
			wantStatus: http.StatusOK,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				data := body["data"].(map[string]interface{})
				assert.EqualValues(t, 0, data["sources"])
			},
		},
		{
			name: "ListSources Error",
			setupMocks: func(v *MockVectorStore, j *MockJobRepo) {
				v.On("ListSources", mock.Anything).Return(nil, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "CountChunks Error",
			setupMocks: func(v *MockVectorStore, j *MockJobRepo) {
				v.On("ListSources", mock.Anything).Return([]string{"a.pdf"}, nil)
				v.On("CountChunks", mock.Anything).Return(0, errors.New("weaviate error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
		{
			name: "JobRepo Error",
			setupMocks: func(v *MockVectorStore, j *MockJobRepo) {
				v.On("ListSources", mock.Anything).Return([]string{"a.pdf"}, nil)
				v.On("CountChunks", mock.Anything).Return(4, nil)
				j.On("Count", mock.Anything).Return(0, errors.New("db error"))
			},
			wantStatus: http.StatusInternalServerError,
			wantError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mVector := new(MockVectorStore)
			mJob := new(MockJobRepo)
			tt.setupMocks(mVector, mJob)

			h := NewHandler(mVector, mJob)
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			h.GetStats(w, req)

			resp := w.Result()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]interface{}
			err := json.NewDecoder(resp.Body).Decode(&body)
			assert.NoError(t, err)

			if tt.wantError {
				assert.Contains(t, body, "error")
				errMap := body["error"].(map[string]interface{})
				assert.Equal(t, "INTERNAL_ERROR", errMap["code"])
			} else {
				tt.checkBody(t, body)
			}
		})
	}
}
