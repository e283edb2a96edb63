// Package locator extracts repository owner and name from user-supplied locators.
package locator

import (
	"errors"
	"fmt"
	"strings"
)

const (
	segmentSeparator     = "/"
	gitSuffix            = ".git"
	minimumSegmentCount  = 2
	reasonTooFewSegments = "expected at least owner and repository segments"
	reasonEmptyName      = "repository name is empty"
)

// ErrInvalidLocator is matched by every ParseError through errors.Is.
var ErrInvalidLocator = errors.New("invalid repository locator")

// ParseError reports a locator that does not identify a repository.
type ParseError struct {
	Locator string
	Reason  string
}

func (parseError *ParseError) Error() string {
	return fmt.Sprintf("%s %q: %s", ErrInvalidLocator.Error(), parseError.Locator, parseError.Reason)
}

// Is lets errors.Is(err, ErrInvalidLocator) match any ParseError.
func (parseError *ParseError) Is(target error) bool {
	return target == ErrInvalidLocator
}

// Repository identifies a remote repository.
type Repository struct {
	Owner string
	Name  string
}

// String returns the owner/name form.
func (repository Repository) String() string {
	return repository.Owner + segmentSeparator + repository.Name
}

// Parse accepts "owner/name" or any URL whose last two path segments are owner and name.
// A trailing slash and one trailing ".git" suffix are ignored.
func Parse(rawLocator string) (Repository, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(rawLocator), segmentSeparator)
	var segments []string
	for _, segment := range strings.Split(trimmed, segmentSeparator) {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	if len(segments) < minimumSegmentCount {
		return Repository{}, &ParseError{Locator: rawLocator, Reason: reasonTooFewSegments}
	}
	name := strings.TrimSuffix(segments[len(segments)-1], gitSuffix)
	if name == "" {
		return Repository{}, &ParseError{Locator: rawLocator, Reason: reasonEmptyName}
	}
	return Repository{
		Owner: segments[len(segments)-2],
		Name:  name,
	}, nil
}
