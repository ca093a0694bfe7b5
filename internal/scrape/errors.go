package scrape

import (
	"errors"
	"fmt"
)

var (
	ErrFetchFailed        = errors.New("fetch failed")
	ErrNoContentExtracted = errors.New("no content extracted")
	ErrNoURL              = errors.New("no url given and no default configured")
	ErrPageTooLarge       = errors.New("page too large")
)

// FetchError reports a failed page download. StatusCode is zero when no
// response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
