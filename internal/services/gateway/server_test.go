package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/reposcope/internal/bot"
	"github.com/temirov/reposcope/internal/services/gateway"
)

type recordingDispatcher struct {
	commands []bot.Command
	messages []string
}

func (dispatcher *recordingDispatcher) Commands() []bot.CommandInfo {
	return []bot.CommandInfo{{Name: "ping", Usage: "ping", Description: "Check if the bot is responsive."}}
}

func (dispatcher *recordingDispatcher) HasCommand(name string) bool {
	return name == "ping" || name == "repo_structure"
}

func (dispatcher *recordingDispatcher) Dispatch(_ context.Context, command bot.Command) bot.Reply {
	dispatcher.commands = append(dispatcher.commands, command)
	if command.Name == "repo_structure" {
		return bot.Reply{Text: "too long", Attachment: &bot.Attachment{FileName: "repo_structure.txt", Content: "└── main.go"}}
	}
	return bot.Reply{Text: "Pong! 🏓"}
}

func (dispatcher *recordingDispatcher) HandleMessage(_ context.Context, content string, author string) (bot.Reply, bool) {
	dispatcher.messages = append(dispatcher.messages, content)
	if !strings.HasPrefix(content, "!") {
		return bot.Reply{}, false
	}
	return bot.Reply{Text: "handled for " + author}, true
}

func TestServerRunServesHealth(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := gateway.NewServer(gateway.Config{Address: "127.0.0.1:0"}, &recordingDispatcher{}, nil)
	addressCh := make(chan string, 1)
	errorCh := make(chan error, 1)

	go func() {
		errorCh <- server.Run(ctx, func(address string) {
			addressCh <- address
		})
	}()

	select {
	case address := <-addressCh:
		client := http.Client{Timeout: 2 * time.Second}
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+address+"/healthz", nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		response, err := client.Do(request)
		if err != nil {
			t.Fatalf("perform request: %v", err)
		}
		response.Body.Close()
		if response.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d", response.StatusCode)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server did not start")
	}

	cancel()
	if err := <-errorCh; err != nil {
		t.Fatalf("server error: %v", err)
	}
}

func TestHandlerRoutes(t *testing.T) {
	testCases := []struct {
		name           string
		method         string
		path           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "list commands",
			method:         http.MethodGet,
			path:           "/commands",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"commands":[{"name":"ping","usage":"ping","description":"Check if the bot is responsive."}]}`,
		},
		{
			name:           "text reply",
			method:         http.MethodPost,
			path:           "/commands/ping",
			body:           `{"author":"ada"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"text":"Pong! 🏓"}`,
		},
		{
			name:           "attachment reply",
			method:         http.MethodPost,
			path:           "/commands/repo_structure",
			body:           `{"argument":"octo/widgets","author":"ada"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"text":"too long","attachment":{"fileName":"repo_structure.txt","content":"└── main.go"}}`,
		},
		{
			name:           "unknown command",
			method:         http.MethodPost,
			path:           "/commands/dance",
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"command not found"}`,
		},
		{
			name:           "malformed body",
			method:         http.MethodPost,
			path:           "/commands/ping",
			body:           `{"argument":`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "command message",
			method:         http.MethodPost,
			path:           "/messages",
			body:           `{"content":"!ping","author":"ada"}`,
			expectedStatus: http.StatusOK,
			expectedBody:   `{"text":"handled for ada"}`,
		},
		{
			name:           "chatter is ignored",
			method:         http.MethodPost,
			path:           "/messages",
			body:           `{"content":"nice weather","author":"ada"}`,
			expectedStatus: http.StatusNoContent,
		},
		{
			name:           "empty message",
			method:         http.MethodPost,
			path:           "/messages",
			body:           `{"content":"  "}`,
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"message content is required"}`,
		},
		{
			name:           "wrong method",
			method:         http.MethodGet,
			path:           "/commands/ping",
			expectedStatus: http.StatusMethodNotAllowed,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			handler := gateway.NewServer(gateway.Config{}, &recordingDispatcher{}, nil).Handler()
			request := httptest.NewRequest(testCase.method, testCase.path, strings.NewReader(testCase.body))
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, request)

			assert.Equal(t, testCase.expectedStatus, recorder.Code)
			if testCase.expectedBody != "" {
				assert.JSONEq(t, testCase.expectedBody, recorder.Body.String())
			}
		})
	}
}

func TestHandlerForwardsCommandFields(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handler := gateway.NewServer(gateway.Config{}, dispatcher, nil).Handler()
	request := httptest.NewRequest(http.MethodPost, "/commands/repo_structure", strings.NewReader(`{"argument":"octo/widgets cmd","author":"ada"}`))
	recorder := httptest.NewRecorder()

	handler.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, dispatcher.commands, 1)
	assert.Equal(t, bot.Command{Name: "repo_structure", Argument: "octo/widgets cmd", Author: "ada"}, dispatcher.commands[0])

	var reply bot.Reply
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &reply))
	require.NotNil(t, reply.Attachment)
	assert.Equal(t, "repo_structure.txt", reply.Attachment.FileName)
}

func TestHandlerRequiresToken(t *testing.T) {
	handler := gateway.NewServer(gateway.Config{Token: "s3cret"}, &recordingDispatcher{}, nil).Handler()
	testCases := []struct {
		name           string
		path           string
		authorization  string
		expectedStatus int
	}{
		{name: "missing token", path: "/commands", expectedStatus: http.StatusUnauthorized},
		{name: "wrong token", path: "/commands", authorization: "Bearer nope", expectedStatus: http.StatusUnauthorized},
		{name: "valid token", path: "/commands", authorization: "Bearer s3cret", expectedStatus: http.StatusOK},
		{name: "health is public", path: "/healthz", expectedStatus: http.StatusOK},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, testCase.path, nil)
			if testCase.authorization != "" {
				request.Header.Set("Authorization", testCase.authorization)
			}
			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)
			assert.Equal(t, testCase.expectedStatus, recorder.Code)
		})
	}
}
