// Package githubtree walks the GitHub contents API and assembles a repository tree.
package githubtree

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/temirov/reposcope/internal/types"
)

const (
	defaultAPITimeout         = 30 * time.Second
	defaultAPIBaseURL         = "https://api.github.com"
	defaultUserAgent          = "reposcope-tree-fetcher"
	headerAuthorization       = "Authorization"
	headerAccept              = "Accept"
	headerUserAgent           = "User-Agent"
	headerGitHubAPIVersion    = "X-GitHub-Api-Version"
	acceptGitHubJSON          = "application/vnd.github+json"
	githubAPIVersionValue     = "2022-11-28"
	authorizationBearerPrefix = "Bearer "
	authorizationTokenPrefix  = "token "
	referenceQueryParameter   = "ref"
	maxErrorBodyBytes         = 8 * 1024
	maxListingBodyBytes       = 16 << 20
)

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

type apiContent struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Type string `json:"type"`
}

type apiErrorBody struct {
	Message string `json:"message"`
}

// Limits bounds a traversal. Zero values leave the corresponding dimension unbounded.
type Limits struct {
	MaxDepth int
	MaxNodes int
}

// Fetcher lists repository directories through the GitHub contents API.
type Fetcher struct {
	client                   httpClient
	apiBase                  string
	userAgent                string
	timeout                  time.Duration
	authorizationHeaderValue string
	reference                string
	limits                   Limits
	concurrency              int
	logger                   *zap.Logger
}

// NewFetcher returns a Fetcher backed by client, or by a default client when nil.
func NewFetcher(client httpClient) Fetcher {
	if client == nil {
		client = &http.Client{Timeout: defaultAPITimeout}
	}
	return Fetcher{
		client:      client,
		apiBase:     defaultAPIBaseURL,
		userAgent:   defaultUserAgent,
		timeout:     defaultAPITimeout,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
}

func (fetcher Fetcher) WithAPIBase(base string) Fetcher {
	if base == "" {
		return fetcher
	}
	fetcher.apiBase = strings.TrimRight(base, "/")
	return fetcher
}

func (fetcher Fetcher) WithUserAgent(agent string) Fetcher {
	if agent == "" {
		return fetcher
	}
	fetcher.userAgent = agent
	return fetcher
}

// WithTimeout bounds each listing request, including reading its body.
func (fetcher Fetcher) WithTimeout(duration time.Duration) Fetcher {
	if duration <= 0 {
		return fetcher
	}
	fetcher.timeout = duration
	return fetcher
}

// WithAuthorizationToken configures the fetcher to authenticate GitHub API calls.
func (fetcher Fetcher) WithAuthorizationToken(token string) Fetcher {
	fetcher.authorizationHeaderValue = formatAuthorizationHeaderValue(token)
	return fetcher
}

// WithReference pins listings to a branch, tag or commit. Empty means the default branch.
func (fetcher Fetcher) WithReference(reference string) Fetcher {
	fetcher.reference = strings.TrimSpace(reference)
	return fetcher
}

func (fetcher Fetcher) WithLimits(limits Limits) Fetcher {
	fetcher.limits = limits
	return fetcher
}

// WithConcurrency caps the number of outstanding listing requests.
// One keeps the traversal strictly sequential and depth-first.
func (fetcher Fetcher) WithConcurrency(concurrency int) Fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	fetcher.concurrency = concurrency
	return fetcher
}

func (fetcher Fetcher) WithLogger(logger *zap.Logger) Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	fetcher.logger = logger
	return fetcher
}

// traversal holds the per-call state of one Fetch.
type traversal struct {
	fetcher    Fetcher
	owner      string
	repository string
	nodeCount  atomic.Int64
	requests   *semaphore.Weighted
}

// Fetch lists rootPath (empty for the repository root) and every directory below it,
// returning a directory node whose children mirror the remote listing order.
// Any failed listing aborts the whole traversal; no partial tree is returned.
func (fetcher Fetcher) Fetch(ctx context.Context, owner string, repository string, rootPath string) (*types.TreeNode, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, errMissingOwner
	}
	if strings.TrimSpace(repository) == "" {
		return nil, errMissingRepository
	}
	if ctx == nil {
		ctx = context.Background()
	}
	normalizedRoot := strings.Trim(strings.TrimSpace(rootPath), "/")
	walk := &traversal{
		fetcher:    fetcher,
		owner:      owner,
		repository: repository,
	}
	if fetcher.concurrency > 1 {
		walk.requests = semaphore.NewWeighted(int64(fetcher.concurrency))
	}
	children, walkErr := walk.listDirectory(ctx, normalizedRoot, 0)
	if walkErr != nil {
		return nil, walkErr
	}
	rootName := repository
	if normalizedRoot != "" {
		rootName = path.Base(normalizedRoot)
	}
	fetcher.logger.Debug("repository tree fetched",
		zap.String("owner", owner),
		zap.String("repository", repository),
		zap.String("path", normalizedRoot),
		zap.Int64("nodes", walk.nodeCount.Load()),
	)
	return types.NewDirectoryNode(rootName, children...), nil
}

func (walk *traversal) listDirectory(ctx context.Context, directoryPath string, depth int) ([]*types.TreeNode, error) {
	if maxDepth := walk.fetcher.limits.MaxDepth; maxDepth > 0 && depth > maxDepth {
		return nil, &LimitError{Path: directoryPath, Limit: maxDepth, Err: ErrDepthLimit}
	}
	entries, listErr := walk.fetchEntries(ctx, directoryPath)
	if listErr != nil {
		return nil, listErr
	}
	if countErr := walk.countNodes(directoryPath, len(entries)); countErr != nil {
		return nil, countErr
	}

	children := make([]*types.TreeNode, len(entries))
	var directoryIndexes []int
	for index, entry := range entries {
		if types.KindFromRemoteType(entry.Type) == types.NodeKindDirectory {
			directoryIndexes = append(directoryIndexes, index)
			continue
		}
		children[index] = types.NewFileNode(entry.Name)
	}

	if walk.requests == nil {
		for _, index := range directoryIndexes {
			entry := entries[index]
			grandchildren, childErr := walk.listDirectory(ctx, entryPath(directoryPath, entry), depth+1)
			if childErr != nil {
				return nil, childErr
			}
			children[index] = types.NewDirectoryNode(entry.Name, grandchildren...)
		}
		return children, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, index := range directoryIndexes {
		index := index
		entry := entries[index]
		group.Go(func() error {
			grandchildren, childErr := walk.listDirectory(groupCtx, entryPath(directoryPath, entry), depth+1)
			if childErr != nil {
				return childErr
			}
			children[index] = types.NewDirectoryNode(entry.Name, grandchildren...)
			return nil
		})
	}
	if waitErr := group.Wait(); waitErr != nil {
		return nil, waitErr
	}
	return children, nil
}

func (walk *traversal) countNodes(directoryPath string, added int) error {
	total := walk.nodeCount.Add(int64(added))
	if maxNodes := walk.fetcher.limits.MaxNodes; maxNodes > 0 && total > int64(maxNodes) {
		return &LimitError{Path: directoryPath, Limit: maxNodes, Err: ErrNodeLimit}
	}
	return nil
}

func (walk *traversal) fetchEntries(ctx context.Context, directoryPath string) ([]apiContent, error) {
	if walk.requests != nil {
		if acquireErr := walk.requests.Acquire(ctx, 1); acquireErr != nil {
			return nil, &FetchError{Path: directoryPath, Err: acquireErr}
		}
		defer walk.requests.Release(1)
	}
	apiURL, buildErr := walk.fetcher.buildContentsURL(walk.owner, walk.repository, directoryPath)
	if buildErr != nil {
		return nil, &FetchError{Path: directoryPath, Err: buildErr}
	}
	walk.fetcher.logger.Debug("listing directory",
		zap.String("repository", walk.owner+"/"+walk.repository),
		zap.String("path", directoryPath),
	)
	return walk.fetcher.getListing(ctx, apiURL, directoryPath)
}

// getListing performs one contents request. A successful response with an empty body is an empty directory.
func (fetcher Fetcher) getListing(ctx context.Context, apiURL string, directoryPath string) ([]apiContent, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fetcher.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fetcher.timeout)
		defer cancel()
	}
	request, requestErr := fetcher.buildRequest(ctx, apiURL)
	if requestErr != nil {
		return nil, &FetchError{Path: directoryPath, Err: requestErr}
	}
	response, responseErr := fetcher.client.Do(request)
	if responseErr != nil {
		return nil, &FetchError{Path: directoryPath, Err: responseErr}
	}
	defer response.Body.Close()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return nil, &FetchError{
			Path:       directoryPath,
			StatusCode: response.StatusCode,
			Message:    extractErrorMessage(body),
		}
	}
	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxListingBodyBytes))
	if readErr != nil {
		return nil, &FetchError{Path: directoryPath, StatusCode: response.StatusCode, Err: readErr}
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '[' {
		return nil, &FetchError{
			Path:       directoryPath,
			StatusCode: response.StatusCode,
			Message:    errNotDirectory.Error(),
			Err:        errNotDirectory,
		}
	}
	var entries []apiContent
	if decodeErr := json.Unmarshal(trimmed, &entries); decodeErr != nil {
		return nil, &FetchError{
			Path:       directoryPath,
			StatusCode: response.StatusCode,
			Err:        fmt.Errorf("decode listing: %w", decodeErr),
		}
	}
	return entries, nil
}

func (fetcher Fetcher) buildRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if requestErr != nil {
		return nil, requestErr
	}
	if fetcher.userAgent != "" {
		request.Header.Set(headerUserAgent, fetcher.userAgent)
	}
	if fetcher.authorizationHeaderValue != "" {
		request.Header.Set(headerAuthorization, fetcher.authorizationHeaderValue)
	}
	request.Header.Set(headerAccept, acceptGitHubJSON)
	request.Header.Set(headerGitHubAPIVersion, githubAPIVersionValue)
	return request, nil
}

func (fetcher Fetcher) buildContentsURL(owner string, repository string, itemPath string) (string, error) {
	parsedURL, parseErr := url.Parse(fetcher.apiBase)
	if parseErr != nil {
		return "", parseErr
	}
	var builder strings.Builder
	builder.WriteString(strings.TrimSuffix(parsedURL.Path, "/"))
	builder.WriteString("/repos/")
	builder.WriteString(url.PathEscape(owner))
	builder.WriteByte('/')
	builder.WriteString(url.PathEscape(repository))
	builder.WriteString("/contents")
	for _, segment := range strings.Split(strings.Trim(itemPath, "/"), "/") {
		if segment == "" {
			continue
		}
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
	parsedURL.Path = builder.String()
	query := parsedURL.Query()
	if fetcher.reference != "" {
		query.Set(referenceQueryParameter, fetcher.reference)
	}
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func entryPath(parentPath string, entry apiContent) string {
	if entry.Path != "" {
		return entry.Path
	}
	return path.Join(parentPath, entry.Name)
}

func extractErrorMessage(body []byte) string {
	var decoded apiErrorBody
	if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		return decoded.Message
	}
	return strings.TrimSpace(string(body))
}

func formatAuthorizationHeaderValue(rawToken string) string {
	trimmed := strings.TrimSpace(rawToken)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, strings.ToLower(authorizationBearerPrefix)) || strings.HasPrefix(lower, strings.ToLower(authorizationTokenPrefix)) {
		return trimmed
	}
	if strings.Contains(trimmed, ".") || strings.HasPrefix(trimmed, "github_pat_") || strings.HasPrefix(trimmed, "ghp_") {
		return authorizationBearerPrefix + trimmed
	}
	return authorizationTokenPrefix + trimmed
}
