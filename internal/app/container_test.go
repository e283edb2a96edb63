package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/reposcope/internal/bot"
	"github.com/temirov/reposcope/internal/config"
)

func TestResolveBotWithoutLanguageModel(t *testing.T) {
	container, err := NewContainer(config.ApplicationConfiguration{}, nil)
	require.NoError(t, err)

	instance, resolveErr := ResolveBot(container)
	require.NoError(t, resolveErr)
	assert.Len(t, instance.Commands(), 9)
	assert.Equal(t, "!", instance.Prefix())

	reply := instance.Dispatch(context.Background(), bot.Command{Name: bot.CommandAnalyzeRepo, Argument: "octo/widgets"})
	assert.Equal(t, "AI analysis is not configured for this bot.", reply.Text)

	_, gatewayErr := ResolveGateway(container)
	assert.NoError(t, gatewayErr)
}

func TestResolvedBotUsesConfiguredGitHub(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		writer.Header().Set("Content-Type", "application/json")
		switch request.URL.Path {
		case "/repos/octo/widgets/contents":
			fmt.Fprint(writer, `[{"name":"docs","path":"docs","type":"dir"},{"name":"go.mod","path":"go.mod","type":"file"}]`)
		case "/repos/octo/widgets/contents/docs":
			fmt.Fprint(writer, `[]`)
		default:
			writer.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	prefix := "?"
	configuration := config.ApplicationConfiguration{
		GitHub: config.GitHubConfiguration{APIBase: server.URL, Token: "ghp_example"},
		Bot:    config.BotConfiguration{Prefix: prefix},
	}
	container, err := NewContainer(configuration, nil)
	require.NoError(t, err)
	instance, resolveErr := ResolveBot(container)
	require.NoError(t, resolveErr)

	reply, handled := instance.HandleMessage(context.Background(), "?repo_structure octo/widgets", "ada")
	require.True(t, handled)
	assert.Equal(t, "Repository Structure:\n```\n├── docs/\n└── go.mod\n```", reply.Text)
	assert.Equal(t, "Bearer ghp_example", authorization)
}

func TestInvalidTimeoutFailsResolution(t *testing.T) {
	configuration := config.ApplicationConfiguration{GitHub: config.GitHubConfiguration{Timeout: "later"}}
	container, err := NewContainer(configuration, nil)
	require.NoError(t, err)

	_, resolveErr := ResolveBot(container)
	assert.Error(t, resolveErr)
}
