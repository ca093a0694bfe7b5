package scrape

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impar/api/internal/content"
)

const wikiPage = `<!DOCTYPE html>
<html>
<head><title>Go</title><style>.x{}</style></head>
<body>
  <header>Site header</header>
  <nav>Menu</nav>
  <div id="content">
    <div id="bodyContent">
      <p>Go is a programming language<sup class="reference">[1]</sup> designed at Google.</p>
      <script>track()</script>
      <ul><li>Concurrency</li><li>  Garbage collection  </li></ul>
      <aside>Related</aside>
    </div>
  </div>
  <footer>Footer</footer>
</body>
</html>`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParse_PrefersBodyContent(t *testing.T) {
	text, err := Parse([]byte(wikiPage))

	require.NoError(t, err)
	assert.Equal(t, "Go is a programming language\ndesigned at Google.\nConcurrency\nGarbage collection", text)
}

func TestParse_FallsBackToBody(t *testing.T) {
	page := `<html><body><header>H</header><main><h1>Title</h1><p>Para</p></main><footer>F</footer></body></html>`

	text, err := Parse([]byte(page))

	require.NoError(t, err)
	assert.Equal(t, "Title\nPara", text)
}

func TestScraper_Scrape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Chrome/120")
		assert.Equal(t, acceptLanguage, r.Header.Get("Accept-Language"))
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		w.Write([]byte(wikiPage))
	}))
	defer ts.Close()

	s := New(ts.Client(), "", quietLogger())
	units, err := s.Scrape(context.Background(), ts.URL+"/wiki/Go")

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, ts.URL+"/wiki/Go", units[0].Source)
	assert.Equal(t, "web page", units[0].Location)
	assert.Equal(t, content.KindWebScrape, units[0].Kind)
	assert.Contains(t, units[0].Text, "Concurrency")
}

func TestScraper_DefaultURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><p>default page</p></body></html>"))
	}))
	defer ts.Close()

	s := New(ts.Client(), ts.URL, quietLogger())
	units, err := s.Scrape(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, ts.URL, units[0].Source)
}

func TestScraper_NoURL(t *testing.T) {
	_, err := New(nil, "", quietLogger()).Scrape(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestScraper_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := New(ts.Client(), "", quietLogger()).Scrape(context.Background(), ts.URL)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, ts.URL, fe.URL)
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestScraper_PageTooLarge(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("a", 200) + "</p></body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer ts.Close()

	s := New(ts.Client(), "", quietLogger())
	s.maxBody = int64(len(page)) - 1

	units, err := s.Scrape(context.Background(), ts.URL)

	assert.Nil(t, units)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, ErrPageTooLarge)
}

func TestScraper_PageAtLimit(t *testing.T) {
	page := "<html><body><p>" + strings.Repeat("a", 200) + "</p></body></html>"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer ts.Close()

	s := New(ts.Client(), "", quietLogger())
	s.maxBody = int64(len(page))

	units, err := s.Scrape(context.Background(), ts.URL)

	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Text, strings.Repeat("a", 200))
}

func TestScraper_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	client := &http.Client{Timeout: 50 * time.Millisecond}
	_, err := New(client, "", quietLogger()).Scrape(context.Background(), ts.URL)

	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestScraper_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(ts.Client(), "", quietLogger()).Scrape(ctx, ts.URL)

	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScraper_EmptyPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body><nav>only chrome</nav><script>x()</script></body></html>"))
	}))
	defer ts.Close()

	_, err := New(ts.Client(), "", quietLogger()).Scrape(context.Background(), ts.URL)

	assert.ErrorIs(t, err, ErrNoContentExtracted)
}
