package githubtree

import (
	"errors"
	"fmt"
)

var (
	errMissingOwner      = errors.New("repository owner is required")
	errMissingRepository = errors.New("repository name is required")
	errNotDirectory      = errors.New("path is not a directory")

	// ErrDepthLimit is reported when a directory lies deeper than Limits.MaxDepth.
	ErrDepthLimit = errors.New("directory depth limit exceeded")
	// ErrNodeLimit is reported when a tree holds more entries than Limits.MaxNodes.
	ErrNodeLimit = errors.New("tree node limit exceeded")
)

// FetchError reports a failed listing request. StatusCode is zero when no response was received.
type FetchError struct {
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (fetchError *FetchError) Error() string {
	displayPath := fetchError.Path
	if displayPath == "" {
		displayPath = "/"
	}
	if fetchError.StatusCode == 0 {
		return fmt.Sprintf("list %s: %v", displayPath, fetchError.Err)
	}
	if fetchError.Message == "" {
		return fmt.Sprintf("list %s: unexpected status %d", displayPath, fetchError.StatusCode)
	}
	return fmt.Sprintf("list %s: unexpected status %d: %s", displayPath, fetchError.StatusCode, fetchError.Message)
}

func (fetchError *FetchError) Unwrap() error {
	return fetchError.Err
}

// LimitError reports a traversal that stopped at a configured bound.
type LimitError struct {
	Path  string
	Limit int
	Err   error
}

func (limitError *LimitError) Error() string {
	return fmt.Sprintf("%v at %q (limit %d)", limitError.Err, limitError.Path, limitError.Limit)
}

func (limitError *LimitError) Unwrap() error {
	return limitError.Err
}
