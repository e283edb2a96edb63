package config

import "strings"

// Environment variables that override file configuration.
const (
	EnvironmentGitHubToken     = "GITHUB_TOKEN"
	EnvironmentBotToken        = "BOT_TOKEN"
	EnvironmentAzureEndpoint   = "AZURE_OPENAI_ENDPOINT"
	EnvironmentAzureAPIKey     = "AZURE_API_KEY"
	EnvironmentAzureDeployment = "AZURE_OPENAI_DEPLOYMENT"
	EnvironmentAzureAPIVersion = "AZURE_OPENAI_API_VERSION"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnvironment overlays non-empty environment values onto configuration.
// It returns the names of the variables that took effect.
func ApplyEnvironment(configuration ApplicationConfiguration, lookup LookupFunc) (ApplicationConfiguration, []string) {
	if lookup == nil {
		return configuration, nil
	}
	result := configuration
	var applied []string
	bindings := []struct {
		name   string
		target *string
	}{
		{name: EnvironmentGitHubToken, target: &result.GitHub.Token},
		{name: EnvironmentBotToken, target: &result.Bot.Token},
		{name: EnvironmentAzureEndpoint, target: &result.LLM.Endpoint},
		{name: EnvironmentAzureAPIKey, target: &result.LLM.APIKey},
		{name: EnvironmentAzureDeployment, target: &result.LLM.Deployment},
		{name: EnvironmentAzureAPIVersion, target: &result.LLM.APIVersion},
	}
	for _, binding := range bindings {
		value, found := lookup(binding.name)
		if !found || strings.TrimSpace(value) == "" {
			continue
		}
		*binding.target = strings.TrimSpace(value)
		applied = append(applied, binding.name)
	}
	return result, applied
}
