// Package app wires configuration into the bot and its collaborators.
package app

import (
	"fmt"
	"net/http"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/temirov/reposcope/internal/bot"
	"github.com/temirov/reposcope/internal/config"
	"github.com/temirov/reposcope/internal/githubtree"
	"github.com/temirov/reposcope/internal/insights"
	"github.com/temirov/reposcope/internal/llm"
	"github.com/temirov/reposcope/internal/services/gateway"
	"github.com/temirov/reposcope/internal/tokenizer"
	"github.com/temirov/reposcope/internal/utils"
)

const userAgentFormat = "reposcope/%s"

// gitHubHTTPClient is shared by the tree fetcher and the insights client.
type gitHubHTTPClient struct {
	*http.Client
}

// RegisterProviders registers every component with the container.
func RegisterProviders(container *dig.Container, configuration config.ApplicationConfiguration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	providers := []interface{}{
		func() config.ApplicationConfiguration { return configuration },
		func() *zap.Logger { return logger },
		provideGitHubHTTPClient,
		provideFetcher,
		provideInsights,
		provideCounter,
		provideAnalyzer,
		provideBot,
		provideGateway,
	}
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("register provider: %w", err)
		}
	}
	return nil
}

// NewContainer returns a container with every provider registered.
func NewContainer(configuration config.ApplicationConfiguration, logger *zap.Logger) (*dig.Container, error) {
	container := dig.New()
	if err := RegisterProviders(container, configuration, logger); err != nil {
		return nil, err
	}
	return container, nil
}

// ResolveBot builds the bot and its dependencies.
func ResolveBot(container *dig.Container) (*bot.Bot, error) {
	var resolved *bot.Bot
	if err := container.Invoke(func(instance *bot.Bot) {
		resolved = instance
	}); err != nil {
		return nil, fmt.Errorf("resolve bot: %w", err)
	}
	return resolved, nil
}

// ResolveGateway builds the HTTP gateway.
func ResolveGateway(container *dig.Container) (gateway.Server, error) {
	var resolved gateway.Server
	if err := container.Invoke(func(instance gateway.Server) {
		resolved = instance
	}); err != nil {
		return gateway.Server{}, fmt.Errorf("resolve gateway: %w", err)
	}
	return resolved, nil
}

func provideGitHubHTTPClient(configuration config.ApplicationConfiguration) (gitHubHTTPClient, error) {
	timeout, err := configuration.GitHub.TimeoutDuration()
	if err != nil {
		return gitHubHTTPClient{}, err
	}
	return gitHubHTTPClient{Client: &http.Client{Timeout: timeout}}, nil
}

func provideFetcher(configuration config.ApplicationConfiguration, client gitHubHTTPClient, logger *zap.Logger) githubtree.Fetcher {
	github := configuration.GitHub
	limits := githubtree.Limits{}
	if github.MaxDepth != nil {
		limits.MaxDepth = *github.MaxDepth
	}
	if github.MaxNodes != nil {
		limits.MaxNodes = *github.MaxNodes
	}
	return githubtree.NewFetcher(client.Client).
		WithAPIBase(github.APIBaseOrDefault()).
		WithUserAgent(fmt.Sprintf(userAgentFormat, utils.GetApplicationVersion())).
		WithTimeout(client.Timeout).
		WithAuthorizationToken(github.Token).
		WithReference(github.Reference).
		WithLimits(limits).
		WithConcurrency(github.ConcurrencyOrDefault()).
		WithLogger(logger.Named("githubtree"))
}

func provideInsights(configuration config.ApplicationConfiguration, client gitHubHTTPClient, logger *zap.Logger) (insights.Client, error) {
	github := configuration.GitHub
	insightClient, err := insights.NewClient(client.Client, github.Token).WithBaseURL(github.APIBaseOrDefault())
	if err != nil {
		return insights.Client{}, err
	}
	return insightClient.
		WithMaxContributors(github.MaxContributorsOrDefault()).
		WithReference(github.Reference).
		WithLogger(logger.Named("insights")), nil
}

func provideCounter(configuration config.ApplicationConfiguration, logger *zap.Logger) tokenizer.Counter {
	counter, resolvedModel, err := tokenizer.NewCounter(configuration.LLM.Model)
	if err != nil {
		logger.Warn("token counting disabled", zap.Error(err))
		return nil
	}
	logger.Debug("tokenizer ready", zap.String("model", resolvedModel))
	return counter
}

// provideAnalyzer returns a nil Analyzer when the deployment is not configured so
// that the bot can answer the AI commands with a notice instead of failing to start.
func provideAnalyzer(configuration config.ApplicationConfiguration, counter tokenizer.Counter, logger *zap.Logger) (llm.Analyzer, error) {
	settings := configuration.LLM
	timeout, err := settings.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	modelConfig := llm.Config{
		Endpoint:   settings.Endpoint,
		APIKey:     settings.APIKey,
		Deployment: settings.Deployment,
		APIVersion: settings.APIVersion,
		Timeout:    timeout,
	}
	if settings.InputTokenBudget != nil {
		modelConfig.InputTokenBudget = *settings.InputTokenBudget
	}
	if validationErr := modelConfig.Validate(); validationErr != nil {
		logger.Debug("language model unavailable", zap.Error(validationErr))
		return nil, nil
	}
	prompts, promptsErr := llm.LoadPromptSet(settings.PromptsFile)
	if promptsErr != nil {
		return nil, promptsErr
	}
	client := llm.NewAzureClient(nil, modelConfig).
		WithPrompts(prompts).
		WithLogger(logger.Named("llm"))
	if counter != nil {
		client = client.WithCounter(counter)
	}
	return client, nil
}

func provideBot(configuration config.ApplicationConfiguration, fetcher githubtree.Fetcher, insightClient insights.Client, analyzer llm.Analyzer, logger *zap.Logger) *bot.Bot {
	settings := bot.Settings{
		Prefix:          configuration.Bot.PrefixOrDefault(),
		MaxInlineLength: configuration.Bot.MaxInlineLengthOrDefault(),
		CommitLimit:     configuration.GitHub.CommitLimitOrDefault(),
	}
	return bot.New(fetcher, insightClient, analyzer, settings).WithLogger(logger.Named("bot"))
}

func provideGateway(configuration config.ApplicationConfiguration, instance *bot.Bot, logger *zap.Logger) gateway.Server {
	return gateway.NewServer(gateway.Config{
		Address: configuration.Bot.AddressOrDefault(),
		Token:   configuration.Bot.Token,
	}, instance, logger.Named("gateway"))
}
