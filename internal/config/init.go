package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/reposcope/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes configuration into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes configuration into the global configuration directory.
	InitTargetGlobal InitTarget = "global"

	defaultConfigurationTemplate = `github:
  # token: ghp_...            # or GITHUB_TOKEN
  api_base: https://api.github.com
  timeout: 30s
  max_depth: 0                # 0 = unbounded
  max_nodes: 0                # 0 = unbounded
  concurrency: 1              # 1 = sequential traversal
  reference: ""
  max_contributors: 500
  commit_limit: 10
llm:
  endpoint: ""                # or AZURE_OPENAI_ENDPOINT
  deployment: ""              # or AZURE_OPENAI_DEPLOYMENT
  api_version: "2024-10-21"   # or AZURE_OPENAI_API_VERSION
  model: gpt-4o
  input_token_budget: 12000
  timeout: 120s
  prompts_file: ""
bot:
  prefix: "!"
  max_inline_length: 1900
  address: 127.0.0.1:8080
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the commented default configuration and returns its path.
// An existing file is only replaced when Force is set.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, err := initDestination(options)
	if err != nil {
		return "", err
	}
	if _, statErr := os.Stat(destinationPath); statErr == nil && !options.Force {
		return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
	} else if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, statErr)
	}
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return "", fmt.Errorf("create configuration directory %s: %w", filepath.Dir(destinationPath), err)
	}
	if err := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), 0o600); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}
	return destinationPath, nil
}

func initDestination(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", err)
		}
		return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName), nil
	}
	return "", fmt.Errorf("unsupported init target %q", options.Target)
}
