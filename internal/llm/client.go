// Package llm asks an Azure OpenAI chat deployment to analyze and summarize repositories.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/reposcope/internal/tokenizer"
)

const (
	defaultRequestTimeout   = 120 * time.Second
	defaultAPIVersion       = "2024-10-21"
	headerAPIKey            = "api-key"
	headerContentType       = "Content-Type"
	mimeTypeJSON            = "application/json"
	roleSystem              = "system"
	roleUser                = "user"
	apiVersionParameter     = "api-version"
	maxErrorBodyBytes       = 8 * 1024
	truncatedInputNotice    = "\n\n(input truncated to fit the model context)"
	analysisTemperature     = 0.7
	analysisMaxTokens       = 2000
	summaryTemperature      = 0.5
	summaryMaxTokens        = 1500
	deploymentsPathSegment  = "openai/deployments"
	completionsPathSegment  = "chat/completions"
	errorMissingEndpoint    = "language model endpoint is not configured"
	errorMissingDeployment  = "language model deployment is not configured"
	errorMissingCredentials = "language model API key is not configured"
)

// ErrEmptyCompletion is returned when the deployment answers without any choices.
var ErrEmptyCompletion = errors.New("language model returned no completion")

// ErrNotConfigured is returned by operations on a client that lacks endpoint, deployment or key.
var ErrNotConfigured = errors.New("language model is not configured")

// Analyzer is the model capability the bot relies on.
type Analyzer interface {
	AnalyzeStructure(ctx context.Context, renderedTree string) (string, error)
	AnalyzeFile(ctx context.Context, fileContent string) (string, error)
	SummarizeFile(ctx context.Context, fileContent string) (string, error)
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// APIError reports a non-success response from the deployment.
type APIError struct {
	StatusCode int
	Message    string
}

func (apiError *APIError) Error() string {
	if apiError.Message == "" {
		return fmt.Sprintf("language model request failed with status %d", apiError.StatusCode)
	}
	return fmt.Sprintf("language model request failed with status %d: %s", apiError.StatusCode, apiError.Message)
}

// Config describes an Azure OpenAI deployment.
type Config struct {
	Endpoint         string
	APIKey           string
	Deployment       string
	APIVersion       string
	InputTokenBudget int
	Timeout          time.Duration
}

// Validate reports which required setting is missing.
func (config Config) Validate() error {
	switch {
	case strings.TrimSpace(config.Endpoint) == "":
		return fmt.Errorf("%w: %s", ErrNotConfigured, errorMissingEndpoint)
	case strings.TrimSpace(config.Deployment) == "":
		return fmt.Errorf("%w: %s", ErrNotConfigured, errorMissingDeployment)
	case strings.TrimSpace(config.APIKey) == "":
		return fmt.Errorf("%w: %s", ErrNotConfigured, errorMissingCredentials)
	}
	return nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AzureClient implements Analyzer against the Azure OpenAI chat completions API.
type AzureClient struct {
	client  httpClient
	config  Config
	prompts PromptSet
	counter tokenizer.Counter
	logger  *zap.Logger
}

// NewAzureClient returns a client for config. A nil client gets a default with the configured timeout.
func NewAzureClient(client httpClient, config Config) AzureClient {
	if config.Timeout <= 0 {
		config.Timeout = defaultRequestTimeout
	}
	if strings.TrimSpace(config.APIVersion) == "" {
		config.APIVersion = defaultAPIVersion
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	return AzureClient{
		client:  client,
		config:  config,
		prompts: DefaultPromptSet(),
		logger:  zap.NewNop(),
	}
}

func (azureClient AzureClient) WithPrompts(prompts PromptSet) AzureClient {
	azureClient.prompts = prompts
	return azureClient
}

// WithCounter enables input clipping to Config.InputTokenBudget.
func (azureClient AzureClient) WithCounter(counter tokenizer.Counter) AzureClient {
	azureClient.counter = counter
	return azureClient
}

func (azureClient AzureClient) WithLogger(logger *zap.Logger) AzureClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	azureClient.logger = logger
	return azureClient
}

// AnalyzeStructure asks for an architectural reading of a rendered repository tree.
func (azureClient AzureClient) AnalyzeStructure(ctx context.Context, renderedTree string) (string, error) {
	return azureClient.complete(ctx, azureClient.prompts.StructureSystem, azureClient.prompts.StructureTemplate, renderedTree, analysisTemperature, analysisMaxTokens)
}

// AnalyzeFile asks for a review of a single file.
func (azureClient AzureClient) AnalyzeFile(ctx context.Context, fileContent string) (string, error) {
	return azureClient.complete(ctx, azureClient.prompts.FileSystem, azureClient.prompts.FileTemplate, fileContent, analysisTemperature, analysisMaxTokens)
}

// SummarizeFile asks for a concise summary of a single file.
func (azureClient AzureClient) SummarizeFile(ctx context.Context, fileContent string) (string, error) {
	return azureClient.complete(ctx, azureClient.prompts.SummarySystem, azureClient.prompts.SummaryTemplate, fileContent, summaryTemperature, summaryMaxTokens)
}

func (azureClient AzureClient) complete(ctx context.Context, systemPrompt string, userTemplate string, content string, temperature float64, maxTokens int) (string, error) {
	if validationErr := azureClient.config.Validate(); validationErr != nil {
		return "", validationErr
	}
	clipped, clipErr := azureClient.clipInput(content)
	if clipErr != nil {
		return "", clipErr
	}
	payload := chatRequest{
		Messages: []chatMessage{
			{Role: roleSystem, Content: systemPrompt},
			{Role: roleUser, Content: fillTemplate(userTemplate, clipped)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	encoded, encodeErr := json.Marshal(payload)
	if encodeErr != nil {
		return "", fmt.Errorf("encode completion request: %w", encodeErr)
	}
	completionsURL, urlErr := azureClient.completionsURL()
	if urlErr != nil {
		return "", urlErr
	}
	if ctx == nil {
		ctx = context.Background()
	}
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL, bytes.NewReader(encoded))
	if requestErr != nil {
		return "", requestErr
	}
	request.Header.Set(headerContentType, mimeTypeJSON)
	request.Header.Set(headerAPIKey, azureClient.config.APIKey)

	started := time.Now()
	response, responseErr := azureClient.client.Do(request)
	if responseErr != nil {
		return "", fmt.Errorf("language model request: %w", responseErr)
	}
	defer response.Body.Close()
	azureClient.logger.Debug("completion finished",
		zap.String("deployment", azureClient.config.Deployment),
		zap.Int("status", response.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return "", &APIError{StatusCode: response.StatusCode, Message: extractErrorMessage(body)}
	}
	var decoded chatResponse
	if decodeErr := json.NewDecoder(response.Body).Decode(&decoded); decodeErr != nil {
		return "", fmt.Errorf("decode completion response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return CleanMarkdown(decoded.Choices[0].Message.Content), nil
}

func (azureClient AzureClient) clipInput(content string) (string, error) {
	if azureClient.counter == nil || azureClient.config.InputTokenBudget <= 0 {
		return content, nil
	}
	clipped, truncated, err := tokenizer.TruncateToBudget(azureClient.counter, content, azureClient.config.InputTokenBudget)
	if err != nil {
		return "", fmt.Errorf("count prompt tokens: %w", err)
	}
	if !truncated {
		return content, nil
	}
	azureClient.logger.Info("model input truncated",
		zap.Int("budget", azureClient.config.InputTokenBudget),
		zap.String("tokenizer", azureClient.counter.Name()),
	)
	return clipped + truncatedInputNotice, nil
}

func (azureClient AzureClient) completionsURL() (string, error) {
	parsedURL, parseErr := url.Parse(strings.TrimRight(strings.TrimSpace(azureClient.config.Endpoint), "/"))
	if parseErr != nil {
		return "", fmt.Errorf("parse language model endpoint: %w", parseErr)
	}
	parsedURL.Path = strings.TrimSuffix(parsedURL.Path, "/") + "/" + deploymentsPathSegment + "/" + strings.Trim(azureClient.config.Deployment, "/") + "/" + completionsPathSegment
	query := parsedURL.Query()
	query.Set(apiVersionParameter, azureClient.config.APIVersion)
	parsedURL.RawQuery = query.Encode()
	return parsedURL.String(), nil
}

func extractErrorMessage(body []byte) string {
	var decoded chatErrorResponse
	if json.Unmarshal(body, &decoded) == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return strings.TrimSpace(string(body))
}

var _ Analyzer = AzureClient{}
