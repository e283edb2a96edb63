// Package insights reads repository metadata beyond the directory tree: contributors,
// recent commits and single file contents.
package insights

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"go.uber.org/zap"

	"github.com/temirov/reposcope/internal/locator"
)

const (
	perPage                 = 100
	shortSHALength          = 7
	defaultMaxContributors  = 500
	defaultCommitLimit      = 10
	contributorsPathFormat  = "repos/%s/contributors"
	commitsPathFormat       = "repos/%s/commits"
	contentsPathFormat      = "repos/%s/contents/%s"
	commitMessageLineBreak  = "\n"
	baseURLTrailingSlash    = "/"
	invalidBaseURLMessage   = "invalid GitHub API base %q: %w"
	unexpectedFailureFormat = "%s: %w"
)

var errNotFile = errors.New("path is not a file")

// APIError reports a GitHub response outside the 2xx range.
type APIError struct {
	Path       string
	StatusCode int
	Message    string
	Err        error
}

func (apiError *APIError) Error() string {
	if apiError.Message == "" {
		return fmt.Sprintf("%s: unexpected status %d", apiError.Path, apiError.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", apiError.Path, apiError.StatusCode, apiError.Message)
}

func (apiError *APIError) Unwrap() error {
	return apiError.Err
}

// Contributor is one account that committed to a repository.
type Contributor struct {
	Login         string
	Contributions int
}

// Commit summarizes one entry of the commit history.
type Commit struct {
	SHA     string
	Author  string
	Message string
	Date    time.Time
}

// Client wraps the go-github REST client.
type Client struct {
	httpClient      *http.Client
	token           string
	github          *gh.Client
	maxContributors int
	reference       string
	logger          *zap.Logger
}

// NewClient returns a Client authenticating with token when it is not empty.
// A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, token string) Client {
	return Client{
		httpClient:      httpClient,
		token:           strings.TrimSpace(token),
		github:          newGitHubClient(httpClient, token),
		maxContributors: defaultMaxContributors,
		logger:          zap.NewNop(),
	}
}

func newGitHubClient(httpClient *http.Client, token string) *gh.Client {
	client := gh.NewClient(httpClient)
	if trimmed := strings.TrimSpace(token); trimmed != "" {
		client = client.WithAuthToken(trimmed)
	}
	return client
}

// WithBaseURL points the client at another API root, such as a GitHub Enterprise server or a test fake.
func (client Client) WithBaseURL(base string) (Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return client, nil
	}
	if !strings.HasSuffix(trimmed, baseURLTrailingSlash) {
		trimmed += baseURLTrailingSlash
	}
	parsed, parseErr := url.Parse(trimmed)
	if parseErr != nil {
		return client, fmt.Errorf(invalidBaseURLMessage, base, parseErr)
	}
	client.github = newGitHubClient(client.httpClient, client.token)
	client.github.BaseURL = parsed
	return client, nil
}

// WithMaxContributors bounds how many contributors are collected across pages. Zero or less keeps the default.
func (client Client) WithMaxContributors(limit int) Client {
	if limit > 0 {
		client.maxContributors = limit
	}
	return client
}

// WithReference reads file contents at a branch, tag or commit instead of the default branch.
func (client Client) WithReference(reference string) Client {
	client.reference = strings.TrimSpace(reference)
	return client
}

func (client Client) WithLogger(logger *zap.Logger) Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	client.logger = logger
	return client
}

// Contributors lists contributors ordered by contribution count, following pagination up to the configured maximum.
func (client Client) Contributors(ctx context.Context, repository locator.Repository) ([]Contributor, error) {
	options := &gh.ListContributorsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	requestPath := fmt.Sprintf(contributorsPathFormat, repository)
	contributors := make([]Contributor, 0)
	for {
		page, response, err := client.github.Repositories.ListContributors(ctx, repository.Owner, repository.Name, options)
		if err != nil {
			return nil, classifyError(requestPath, err)
		}
		for _, contributor := range page {
			contributors = append(contributors, Contributor{
				Login:         contributor.GetLogin(),
				Contributions: contributor.GetContributions(),
			})
			if len(contributors) >= client.maxContributors {
				client.logger.Debug("contributor listing capped",
					zap.String("repository", repository.String()),
					zap.Int("limit", client.maxContributors),
				)
				return contributors, nil
			}
		}
		if response == nil || response.NextPage == 0 {
			return contributors, nil
		}
		options.Page = response.NextPage
	}
}

// Commits returns up to limit commits of the default branch, newest first.
// Zero or less uses the default limit.
func (client Client) Commits(ctx context.Context, repository locator.Repository, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = defaultCommitLimit
	}
	pageSize := limit
	if pageSize > perPage {
		pageSize = perPage
	}
	options := &gh.CommitsListOptions{SHA: client.reference, ListOptions: gh.ListOptions{PerPage: pageSize}}
	requestPath := fmt.Sprintf(commitsPathFormat, repository)
	commits := make([]Commit, 0, limit)
	for {
		page, response, err := client.github.Repositories.ListCommits(ctx, repository.Owner, repository.Name, options)
		if err != nil {
			return nil, classifyError(requestPath, err)
		}
		for _, repositoryCommit := range page {
			commits = append(commits, convertCommit(repositoryCommit))
			if len(commits) >= limit {
				return commits, nil
			}
		}
		if response == nil || response.NextPage == 0 {
			return commits, nil
		}
		options.Page = response.NextPage
	}
}

// FileContent returns the decoded content of the file at filePath.
func (client Client) FileContent(ctx context.Context, repository locator.Repository, filePath string) (string, error) {
	cleanPath := strings.Trim(strings.TrimSpace(filePath), "/")
	requestPath := fmt.Sprintf(contentsPathFormat, repository, cleanPath)
	var options *gh.RepositoryContentGetOptions
	if client.reference != "" {
		options = &gh.RepositoryContentGetOptions{Ref: client.reference}
	}
	file, directory, _, err := client.github.Repositories.GetContents(ctx, repository.Owner, repository.Name, cleanPath, options)
	if err != nil {
		return "", classifyError(requestPath, err)
	}
	if file == nil || directory != nil {
		return "", fmt.Errorf(unexpectedFailureFormat, requestPath, errNotFile)
	}
	content, decodeErr := file.GetContent()
	if decodeErr != nil {
		return "", fmt.Errorf("decode %s: %w", requestPath, decodeErr)
	}
	return content, nil
}

func convertCommit(repositoryCommit *gh.RepositoryCommit) Commit {
	sha := repositoryCommit.GetSHA()
	if len(sha) > shortSHALength {
		sha = sha[:shortSHALength]
	}
	details := repositoryCommit.GetCommit()
	author := repositoryCommit.GetAuthor().GetLogin()
	if author == "" {
		author = details.GetAuthor().GetName()
	}
	message, _, _ := strings.Cut(details.GetMessage(), commitMessageLineBreak)
	return Commit{
		SHA:     sha,
		Author:  author,
		Message: strings.TrimSpace(message),
		Date:    details.GetAuthor().GetDate().Time,
	}
}

func classifyError(requestPath string, err error) error {
	var responseError *gh.ErrorResponse
	if errors.As(err, &responseError) && responseError.Response != nil {
		return &APIError{Path: requestPath, StatusCode: responseError.Response.StatusCode, Message: responseError.Message, Err: err}
	}
	var rateLimitError *gh.RateLimitError
	if errors.As(err, &rateLimitError) && rateLimitError.Response != nil {
		return &APIError{Path: requestPath, StatusCode: rateLimitError.Response.StatusCode, Message: rateLimitError.Message, Err: err}
	}
	var abuseError *gh.AbuseRateLimitError
	if errors.As(err, &abuseError) && abuseError.Response != nil {
		return &APIError{Path: requestPath, StatusCode: abuseError.Response.StatusCode, Message: abuseError.Message, Err: err}
	}
	return fmt.Errorf(unexpectedFailureFormat, requestPath, err)
}
