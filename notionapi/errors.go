package notionapi

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrEmptyPageID is returned when a page reference normalizes to nothing.
var ErrEmptyPageID = errors.New("empty page id")

// FetchError reports a failed call against the Notion API. StatusCode is 0
// for transport failures.
type FetchError struct {
	PageID     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch page %q from %s: status %d: %v", e.PageID, e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch page %q from %s: %v", e.PageID, e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Temporary reports whether repeating the request may succeed.
func (e *FetchError) Temporary() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	}
	return false
}
