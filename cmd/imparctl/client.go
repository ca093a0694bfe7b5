package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"impar/api/internal/respond"
)

// Client calls the impar HTTP API.
type Client struct {
	base string
	http *http.Client
}

func NewClient(base string, hc *http.Client) *Client {
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// APIError is the error envelope returned by the API.
type APIError struct {
	Status        int
	Code          string
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d %s, correlation id %s)", e.Message, e.Status, e.Code, e.CorrelationID)
}

type UploadResult struct {
	Filename        string   `json:"filename"`
	ChunksGenerated int      `json:"chunks_generated"`
	Status          string   `json:"status"`
	Skipped         []string `json:"skipped,omitempty"`
}

type ScrapeResult struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	ChunksAdded int    `json:"chunks_added"`
	Source      string `json:"source"`
}

type SearchResult struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Location string `json:"location"`
	Type     string `json:"type"`
}

func (c *Client) Upload(ctx context.Context, paths []string, skipExisting bool) (*UploadResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range paths {
		if err := addFile(mw, p); err != nil {
			return nil, err
		}
	}
	if skipExisting {
		if err := mw.WriteField("skip_existing", "true"); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res UploadResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func addFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

// Scrape scrapes rawURL, or the server default when empty. With queue set
// the page is handed to the worker instead.
func (c *Client) Scrape(ctx context.Context, rawURL string, queue bool) (*ScrapeResult, error) {
	payload, err := json.Marshal(map[string]string{"url": rawURL})
	if err != nil {
		return nil, err
	}
	path := "/scrape"
	if queue {
		path = "/scrape/queue"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var res ScrapeResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Search(ctx context.Context, query string, k int, source string) ([]SearchResult, error) {
	q := url.Values{"q": {query}}
	if k > 0 {
		q.Set("k", strconv.Itoa(k))
	}
	if source != "" {
		q.Set("source", source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var res []SearchResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) Sources(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/sources", nil)
	if err != nil {
		return nil, err
	}

	var res []string
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// do sends req and decodes the "data" member of the response into out.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var envelope respond.ErrorEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, resp.Status)
		}
		return &APIError{
			Status:        resp.StatusCode,
			Code:          envelope.Error.Code,
			Message:       envelope.Error.Message,
			CorrelationID: envelope.CorrelationID,
		}
	}

	var data json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&respond.Envelope{Data: &data}); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return json.Unmarshal(data, out)
}
