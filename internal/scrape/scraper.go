package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"impar/api/internal/content"
	"impar/api/internal/extract"
)

const (
	DefaultTimeout = 10 * time.Second

	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8"
	acceptLanguage = "pt-BR,pt;q=0.9,en-US;q=0.8,en;q=0.7"

	maxBodyBytes = 20 << 20
)

// boilerplate is stripped before text is collected.
const boilerplate = "script, style, nav, footer, header, aside, sup.reference"

type Scraper struct {
	client     *http.Client
	defaultURL string
	maxBody    int64
	logger     *slog.Logger
}

// New builds a Scraper. A nil client gets one with DefaultTimeout.
func New(client *http.Client, defaultURL string, logger *slog.Logger) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{client: client, defaultURL: defaultURL, maxBody: maxBodyBytes, logger: logger}
}

// ResolveURL returns url, or the configured default when url is empty.
func (s *Scraper) ResolveURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		url = s.defaultURL
	}
	if url == "" {
		return "", ErrNoURL
	}
	return url, nil
}

type fetchResult struct {
	body []byte
	err  error
}

// Scrape downloads one page and returns its visible text as a single unit
// sourced by the URL. The download runs on its own goroutine; the caller
// waits for it or for ctx.
func (s *Scraper) Scrape(ctx context.Context, url string) ([]content.Unit, error) {
	url, err := s.ResolveURL(url)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "scraping page", "url", url)

	done := make(chan fetchResult, 1)
	go func() {
		body, err := s.fetch(ctx, url)
		done <- fetchResult{body: body, err: err}
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	}
	if res.err != nil {
		s.logger.ErrorContext(ctx, "scrape failed", "url", url, "error", res.err)
		return nil, res.err
	}

	text, err := Parse(res.body)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to parse page", "url", url, "error", err)
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	if strings.TrimSpace(text) == "" {
		s.logger.WarnContext(ctx, "page has no text", "url", url)
		return nil, fmt.Errorf("%s: %w", url, ErrNoContentExtracted)
	}

	s.logger.InfoContext(ctx, "page scraped", "url", url, "length", len(text))
	return []content.Unit{{
		Text:     text,
		Source:   url,
		Location: content.LocationWebPage,
		Kind:     content.KindWebScrape,
	}}, nil
}

func (s *Scraper) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(body)) > s.maxBody {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("%w: more than %d bytes", ErrPageTooLarge, s.maxBody)}
	}
	return body, nil
}

// Parse strips page chrome and returns the main text, one trimmed line per
// text node. Wikipedia-style #bodyContent is preferred over <body>.
func Parse(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	doc.Find(boilerplate).Remove()

	root := doc.Find("#bodyContent").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}
	return extract.VisibleText(root), nil
}
