package search_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"impar/api/features/search"
	"impar/api/internal/content"
	"impar/api/internal/store"
)

type MockRetriever struct{ mock.Mock }

func (m *MockRetriever) Search(ctx context.Context, query string, k int, source string) ([]content.Chunk, error) {
	args := m.Called(ctx, query, k, source)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]content.Chunk), args.Error(1)
}

func TestHandler_Search(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, "receita", 2, "vendas.csv").Return([]content.Chunk{{
		Text:     "mes: jan\nreceita: 10",
		Metadata: content.Metadata{Source: "vendas.csv", Location: "row 1", Kind: content.KindCSV},
	}}, nil)

	w := httptest.NewRecorder()
	search.NewHandler(r).Search(w, httptest.NewRequest(http.MethodGet, "/search?q=receita&k=2&source=vendas.csv", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []search.Result `json:"data"`
		Meta map[string]int  `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 1, resp.Meta["count"])
	assert.Equal(t, search.Result{Text: "mes: jan\nreceita: 10", Source: "vendas.csv", Location: "row 1", Type: "csv"}, resp.Data[0])
}

func TestHandler_Search_DefaultsAndEmpty(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, "nothing", 0, "").Return([]content.Chunk{}, nil)

	w := httptest.NewRecorder()
	search.NewHandler(r).Search(w, httptest.NewRequest(http.MethodGet, "/search?q=nothing", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[],"meta":{"count":0}}`, w.Body.String())
}

func TestHandler_Search_Validation(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing query", "/search"},
		{"k not a number", "/search?q=x&k=abc"},
		{"k zero", "/search?q=x&k=0"},
		{"k too large", "/search?q=x&k=500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := new(MockRetriever)
			w := httptest.NewRecorder()
			search.NewHandler(r).Search(w, httptest.NewRequest(http.MethodGet, tt.url, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			r.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandler_Search_StoreError(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &store.PersistenceError{Op: "search", Err: store.ErrCollectionNotFound})

	w := httptest.NewRecorder()
	search.NewHandler(r).Search(w, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHandler_Search_UnexpectedError(t *testing.T) {
	r := new(MockRetriever)
	r.On("Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	w := httptest.NewRecorder()
	search.NewHandler(r).Search(w, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
