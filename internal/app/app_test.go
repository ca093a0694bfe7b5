package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"impar/api/internal/config"
	"impar/api/internal/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

type memRepo struct {
	mu      sync.Mutex
	records []store.Record
}

func (r *memRepo) EnsureCollection(context.Context) error { return nil }

func (r *memRepo) Insert(_ context.Context, records []store.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

func (r *memRepo) Query(_ context.Context, _ []float32, k int, source string) ([]store.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []store.Record
	for _, rec := range r.records {
		if source == "" || rec.Metadata.Source == source {
			out = append(out, rec)
		}
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (r *memRepo) HasSource(_ context.Context, source string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Metadata.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) DistinctSources(context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, rec := range r.records {
		if !seen[rec.Metadata.Source] {
			seen[rec.Metadata.Source] = true
			out = append(out, rec.Metadata.Source)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *memRepo) Count(context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records), nil
}

type MockPublisher struct{ mock.Mock }

func (m *MockPublisher) Publish(topic string, body []byte) error {
	return m.Called(topic, body).Error(0)
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		ExtractConcurrency: 2,
		OCRLanguages:       "eng",
		MaxUploadSizeMB:    5,
		QueryLogPath:       filepath.Join(t.TempDir(), "logs", "query.log"),
		ServerPort:         0,
	}
}

func newTestApp(t *testing.T, pub TaskPublisher) (*App, sqlmock.Sqlmock) {
	t.Helper()
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	a, err := New(testConfig(t), db, &memRepo{}, fakeEmbedder{}, pub, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, dbMock
}

func TestNew(t *testing.T) {
	a, _ := newTestApp(t, new(MockPublisher))

	assert.NotNil(t, a.Handler)
	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.ScrapeConsumer)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_UploadThenSearch(t *testing.T) {
	a, _ := newTestApp(t, new(MockPublisher))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("files", "Vendas.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("mes,receita\njan,10\nfev,12\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/chat/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sources", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vendas.csv")

	w = httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=receita&source=vendas.csv", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Meta map[string]int `json:"meta"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Meta["count"])
}

func TestApp_StatsRoute(t *testing.T) {
	a, dbMock := newTestApp(t, new(MockPublisher))
	dbMock.ExpectQuery(`SELECT COUNT\(\*\) FROM failed_jobs`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"sources":0,"chunks":0,"failed_jobs":2}}`, w.Body.String())
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestApp_ScrapeQueueRoute(t *testing.T) {
	pub := new(MockPublisher)
	pub.On("Publish", config.TopicIngestScrape, mock.Anything).Return(nil)
	a, _ := newTestApp(t, pub)

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/scrape/queue", bytes.NewBufferString(`{"url":"https://example.com"}`)))

	assert.Equal(t, http.StatusAccepted, w.Code)
	pub.AssertExpectations(t)
}

func TestApp_UnknownMethod(t *testing.T) {
	a, _ := newTestApp(t, new(MockPublisher))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/sources", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestApp_Preflight(t *testing.T) {
	a, _ := newTestApp(t, new(MockPublisher))

	for _, path := range []string{"/scrape", "/chat/upload", "/search", "/jobs/123/retry"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, path, nil)
			req.Header.Set("Origin", "http://localhost:5173")
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "content-type")
			w := httptest.NewRecorder()

			a.Handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Content-Type")
		})
	}
}

func TestApp_CORSHeadersOnResponses(t *testing.T) {
	a, _ := newTestApp(t, new(MockPublisher))

	w := httptest.NewRecorder()
	a.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}
