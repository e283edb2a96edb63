package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/temirov/reposcope/internal/githubtree"
	"github.com/temirov/reposcope/internal/insights"
	"github.com/temirov/reposcope/internal/llm"
	"github.com/temirov/reposcope/internal/locator"
)

const (
	invalidLocatorFormat     = "Invalid repository locator `%s`: %s."
	githubStatusFormat       = "GitHub request for `%s` failed with status %d."
	githubStatusDetailFormat = "GitHub request for `%s` failed with status %d: %s"
	githubTransportFormat    = "GitHub request for `%s` failed: %v"
	limitFormat              = "Repository is too large to list: %v."
	notConfiguredText        = "AI analysis is not configured for this bot."
	modelStatusFormat        = "The language model request failed with status %d."
	emptyCompletionText      = "The language model returned an empty answer."
	timeoutText              = "The request timed out."
	genericFailureFormat     = "An error occurred while running `%s`: %v"
	rootDisplayPath          = "/"
)

// describeError converts a handler error into the text shown to the user.
func describeError(commandName string, err error) string {
	var parseError *locator.ParseError
	if errors.As(err, &parseError) {
		return fmt.Sprintf(invalidLocatorFormat, parseError.Locator, parseError.Reason)
	}
	var limitError *githubtree.LimitError
	if errors.As(err, &limitError) {
		return fmt.Sprintf(limitFormat, limitError)
	}
	var fetchError *githubtree.FetchError
	if errors.As(err, &fetchError) {
		displayPath := fetchError.Path
		if displayPath == "" {
			displayPath = rootDisplayPath
		}
		if fetchError.StatusCode == 0 {
			return fmt.Sprintf(githubTransportFormat, displayPath, fetchError.Err)
		}
		if fetchError.Message != "" {
			return fmt.Sprintf(githubStatusDetailFormat, displayPath, fetchError.StatusCode, fetchError.Message)
		}
		return fmt.Sprintf(githubStatusFormat, displayPath, fetchError.StatusCode)
	}
	var insightError *insights.APIError
	if errors.As(err, &insightError) {
		if insightError.Message != "" {
			return fmt.Sprintf(githubStatusDetailFormat, insightError.Path, insightError.StatusCode, insightError.Message)
		}
		return fmt.Sprintf(githubStatusFormat, insightError.Path, insightError.StatusCode)
	}
	if errors.Is(err, errAnalyzerMissing) || errors.Is(err, llm.ErrNotConfigured) {
		return notConfiguredText
	}
	var modelError *llm.APIError
	if errors.As(err, &modelError) {
		return fmt.Sprintf(modelStatusFormat, modelError.StatusCode)
	}
	if errors.Is(err, llm.ErrEmptyCompletion) {
		return emptyCompletionText
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutText
	}
	return fmt.Sprintf(genericFailureFormat, commandName, err)
}
