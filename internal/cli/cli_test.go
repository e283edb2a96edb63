package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/reposcope/internal/bot"
	"github.com/temirov/reposcope/internal/utils"
)

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

func noEnvironment(string) (string, bool) {
	return "", false
}

func newGitHubFake(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		switch request.URL.Path {
		case "/repos/octo/widgets/contents":
			fmt.Fprint(writer, `[{"name":"cmd","path":"cmd","type":"dir"},{"name":"README.md","path":"README.md","type":"file"}]`)
		case "/repos/octo/widgets/contents/cmd":
			fmt.Fprint(writer, `[{"name":"main.go","path":"cmd/main.go","type":"file"}]`)
		default:
			writer.WriteHeader(http.StatusNotFound)
			fmt.Fprint(writer, `{"message":"Not Found"}`)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeConfiguration(t *testing.T, content string) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("USERPROFILE", os.Getenv("HOME"))
	path := filepath.Join(t.TempDir(), "reposcope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runCommand(t *testing.T, dependencies Dependencies, arguments ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	dependencies.Stdout = &stdout
	if dependencies.Environment == nil {
		dependencies.Environment = noEnvironment
	}
	rootCommand := NewRootCommand(dependencies)
	rootCommand.SetArgs(normalizeCopyFlagArguments(arguments))
	err := rootCommand.Execute()
	return stdout.String(), err
}

func TestRootCommandRegistersEveryBotCommand(t *testing.T) {
	rootCommand := NewRootCommand(Dependencies{Copier: &recordingCopier{}})
	registered := map[string]bool{}
	for _, command := range rootCommand.Commands() {
		registered[command.Name()] = true
	}
	for _, info := range bot.Catalog() {
		assert.True(t, registered[info.Name], info.Name)
	}
	assert.True(t, registered[serveCommandName])
	assert.True(t, registered[configUse])
}

func TestPingCommand(t *testing.T) {
	configPath := writeConfiguration(t, "bot:\n  prefix: \"!\"\n")
	output, err := runCommand(t, Dependencies{Copier: &recordingCopier{}}, "ping", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "Pong! 🏓\n", output)
}

func TestRepoStructureInlineAndCopy(t *testing.T) {
	server := newGitHubFake(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+server.URL+"\n")
	copier := &recordingCopier{}

	output, err := runCommand(t, Dependencies{Copier: copier}, "repo_structure", "--copy", "octo/widgets", "--config", configPath)
	require.NoError(t, err)
	expected := "Repository Structure:\n```\n├── cmd/\n│   └── main.go\n└── README.md\n```"
	assert.Equal(t, expected+"\n", output)
	assert.Equal(t, []string{expected}, copier.copied)
}

func TestRepoStructureWritesAttachment(t *testing.T) {
	server := newGitHubFake(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+server.URL+"\nbot:\n  max_inline_length: 10\n")
	outputDirectory := filepath.Join(t.TempDir(), "replies")
	copier := &recordingCopier{}

	output, err := runCommand(t, Dependencies{Copier: copier}, "repo_structure", "octo/widgets", "--output-dir", outputDirectory, "--copy", "--config", configPath)
	require.NoError(t, err)
	attachmentPath := filepath.Join(outputDirectory, "repo_structure.txt")
	assert.True(t, strings.HasPrefix(output, "Repository structure is too long, sending as a file:\n"))

	content, readErr := os.ReadFile(attachmentPath)
	require.NoError(t, readErr)
	assert.True(t, strings.HasSuffix(output, "Attachment written to "+attachmentPath+" ("+utils.FormatFileSize(int64(len(content)))+")\n"))
	assert.Equal(t, "├── cmd/\n│   └── main.go\n└── README.md", string(content))
	assert.Equal(t, []string{string(content)}, copier.copied)
}

func TestBotErrorsArePrintedNotReturned(t *testing.T) {
	server := newGitHubFake(t)
	configPath := writeConfiguration(t, "github:\n  api_base: "+server.URL+"\n")

	output, err := runCommand(t, Dependencies{Copier: &recordingCopier{}}, "repo_structure", "octo/missing", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "GitHub request for `/` failed with status 404: Not Found\n", output)
}

func TestEnvironmentOverridesConfiguration(t *testing.T) {
	var authorization string
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		fmt.Fprint(writer, `[]`)
	}))
	defer server.Close()
	configPath := writeConfiguration(t, "github:\n  api_base: "+server.URL+"\n  token: file-token\n")
	environment := func(key string) (string, bool) {
		if key == "GITHUB_TOKEN" {
			return "ghp_environment", true
		}
		return "", false
	}

	_, err := runCommand(t, Dependencies{Copier: &recordingCopier{}, Environment: environment}, "repo_structure", "octo/widgets", "--config", configPath)
	require.NoError(t, err)
	assert.Equal(t, "Bearer ghp_environment", authorization)
}

func TestInvalidConfigurationFails(t *testing.T) {
	configPath := writeConfiguration(t, "github:\n  timeout: whenever\n")
	_, err := runCommand(t, Dependencies{Copier: &recordingCopier{}}, "ping", "--config", configPath)
	assert.Error(t, err)
}

func TestConfigInitGlobal(t *testing.T) {
	homeDirectory := t.TempDir()
	t.Setenv("HOME", homeDirectory)
	t.Setenv("USERPROFILE", homeDirectory)

	output, err := runCommand(t, Dependencies{Copier: &recordingCopier{}}, "config", "init", "--global")
	require.NoError(t, err)
	expectedPath := filepath.Join(homeDirectory, ".reposcope", "config.yaml")
	assert.Equal(t, "Configuration written to "+expectedPath+"\n", output)
	_, statErr := os.Stat(expectedPath)
	assert.NoError(t, statErr)
}
