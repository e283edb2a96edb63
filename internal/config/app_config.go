// Package config loads reposcope settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/temirov/reposcope/internal/utils"
)

const (
	// DefaultGitHubAPIBase is the public GitHub REST endpoint.
	DefaultGitHubAPIBase = "https://api.github.com"
	// DefaultGitHubTimeout bounds every GitHub request.
	DefaultGitHubTimeout = 30 * time.Second
	// DefaultConcurrency keeps traversal strictly sequential.
	DefaultConcurrency = 1
	// DefaultMaxContributors caps contributor pagination.
	DefaultMaxContributors = 500
	// DefaultCommitLimit is the number of commits the commits command shows.
	DefaultCommitLimit = 10
	// DefaultLanguageModelTimeout bounds a single completion request.
	DefaultLanguageModelTimeout = 120 * time.Second
	// DefaultCommandPrefix starts chat commands.
	DefaultCommandPrefix = "!"
	// DefaultMaxInlineLength is the largest reply sent without an attachment.
	DefaultMaxInlineLength = 1900
	// DefaultGatewayAddress is where serve listens.
	DefaultGatewayAddress = "127.0.0.1:8080"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds every configurable reposcope setting.
type ApplicationConfiguration struct {
	GitHub GitHubConfiguration        `mapstructure:"github"`
	LLM    LanguageModelConfiguration `mapstructure:"llm"`
	Bot    BotConfiguration           `mapstructure:"bot"`
}

// GitHubConfiguration configures the tree fetcher and the insights client.
type GitHubConfiguration struct {
	Token           string `mapstructure:"token"`
	APIBase         string `mapstructure:"api_base"`
	Timeout         string `mapstructure:"timeout"`
	MaxDepth        *int   `mapstructure:"max_depth"`
	MaxNodes        *int   `mapstructure:"max_nodes"`
	Concurrency     *int   `mapstructure:"concurrency"`
	Reference       string `mapstructure:"reference"`
	MaxContributors *int   `mapstructure:"max_contributors"`
	CommitLimit     *int   `mapstructure:"commit_limit"`
}

// LanguageModelConfiguration configures the Azure OpenAI deployment.
type LanguageModelConfiguration struct {
	Endpoint         string `mapstructure:"endpoint"`
	APIKey           string `mapstructure:"api_key"`
	Deployment       string `mapstructure:"deployment"`
	APIVersion       string `mapstructure:"api_version"`
	Model            string `mapstructure:"model"`
	InputTokenBudget *int   `mapstructure:"input_token_budget"`
	Timeout          string `mapstructure:"timeout"`
	PromptsFile      string `mapstructure:"prompts_file"`
}

// BotConfiguration configures reply formatting and the HTTP gateway.
type BotConfiguration struct {
	Prefix          string `mapstructure:"prefix"`
	MaxInlineLength *int   `mapstructure:"max_inline_length"`
	Address         string `mapstructure:"address"`
	Token           string `mapstructure:"token"`
}

// LoadApplicationConfiguration loads configuration from global and local files.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.GitHub = result.GitHub.merge(override.GitHub)
	result.LLM = result.LLM.merge(override.LLM)
	result.Bot = result.Bot.merge(override.Bot)
	return result
}

func (config GitHubConfiguration) merge(override GitHubConfiguration) GitHubConfiguration {
	result := config
	overlayString(&result.Token, override.Token)
	overlayString(&result.APIBase, override.APIBase)
	overlayString(&result.Timeout, override.Timeout)
	overlayString(&result.Reference, override.Reference)
	overlayInt(&result.MaxDepth, override.MaxDepth)
	overlayInt(&result.MaxNodes, override.MaxNodes)
	overlayInt(&result.Concurrency, override.Concurrency)
	overlayInt(&result.MaxContributors, override.MaxContributors)
	overlayInt(&result.CommitLimit, override.CommitLimit)
	return result
}

func (config LanguageModelConfiguration) merge(override LanguageModelConfiguration) LanguageModelConfiguration {
	result := config
	overlayString(&result.Endpoint, override.Endpoint)
	overlayString(&result.APIKey, override.APIKey)
	overlayString(&result.Deployment, override.Deployment)
	overlayString(&result.APIVersion, override.APIVersion)
	overlayString(&result.Model, override.Model)
	overlayString(&result.Timeout, override.Timeout)
	overlayString(&result.PromptsFile, override.PromptsFile)
	overlayInt(&result.InputTokenBudget, override.InputTokenBudget)
	return result
}

func (config BotConfiguration) merge(override BotConfiguration) BotConfiguration {
	result := config
	overlayString(&result.Prefix, override.Prefix)
	overlayString(&result.Address, override.Address)
	overlayString(&result.Token, override.Token)
	overlayInt(&result.MaxInlineLength, override.MaxInlineLength)
	return result
}

// APIBaseOrDefault returns the configured API base or the public GitHub endpoint.
func (config GitHubConfiguration) APIBaseOrDefault() string {
	return stringOrDefault(config.APIBase, DefaultGitHubAPIBase)
}

// TimeoutDuration parses the timeout, falling back to DefaultGitHubTimeout.
func (config GitHubConfiguration) TimeoutDuration() (time.Duration, error) {
	return parseDuration("github.timeout", config.Timeout, DefaultGitHubTimeout)
}

// ConcurrencyOrDefault returns the configured concurrency, at least one.
func (config GitHubConfiguration) ConcurrencyOrDefault() int {
	concurrency := intOrDefault(config.Concurrency, DefaultConcurrency)
	if concurrency < 1 {
		return DefaultConcurrency
	}
	return concurrency
}

// MaxContributorsOrDefault returns the contributor cap.
func (config GitHubConfiguration) MaxContributorsOrDefault() int {
	return intOrDefault(config.MaxContributors, DefaultMaxContributors)
}

// CommitLimitOrDefault returns how many commits to list.
func (config GitHubConfiguration) CommitLimitOrDefault() int {
	return intOrDefault(config.CommitLimit, DefaultCommitLimit)
}

// TimeoutDuration parses the timeout, falling back to DefaultLanguageModelTimeout.
func (config LanguageModelConfiguration) TimeoutDuration() (time.Duration, error) {
	return parseDuration("llm.timeout", config.Timeout, DefaultLanguageModelTimeout)
}

// PrefixOrDefault returns the command prefix.
func (config BotConfiguration) PrefixOrDefault() string {
	return stringOrDefault(config.Prefix, DefaultCommandPrefix)
}

// MaxInlineLengthOrDefault returns the inline reply budget.
func (config BotConfiguration) MaxInlineLengthOrDefault() int {
	return intOrDefault(config.MaxInlineLength, DefaultMaxInlineLength)
}

// AddressOrDefault returns the gateway listen address.
func (config BotConfiguration) AddressOrDefault() string {
	return stringOrDefault(config.Address, DefaultGatewayAddress)
}

func parseDuration(key string, value string, fallback time.Duration) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	duration, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", key, value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("parse %s %q: duration must be positive", key, value)
	}
	return duration, nil
}

func overlayString(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overlayInt(target **int, value *int) {
	if value != nil {
		*target = cloneInt(value)
	}
}

func stringOrDefault(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func intOrDefault(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
