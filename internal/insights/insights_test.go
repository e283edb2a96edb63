package insights

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/reposcope/internal/locator"
)

var sampleRepository = locator.Repository{Owner: "octo", Name: "widgets"}

func newTestClient(t *testing.T, handler http.Handler) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.Client(), "ghp_example").WithBaseURL(server.URL)
	require.NoError(t, err)
	return client
}

func TestContributorsFollowsPagination(t *testing.T) {
	var authorization string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/widgets/contributors", func(writer http.ResponseWriter, request *http.Request) {
		authorization = request.Header.Get("Authorization")
		writer.Header().Set("Content-Type", "application/json")
		if request.URL.Query().Get("page") == "2" {
			fmt.Fprint(writer, `[{"login":"carol","contributions":3}]`)
			return
		}
		writer.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/octo/widgets/contributors?page=2>; rel="next"`, request.Host))
		fmt.Fprint(writer, `[{"login":"alice","contributions":42},{"login":"bob","contributions":7}]`)
	})
	client := newTestClient(t, mux)

	contributors, err := client.Contributors(context.Background(), sampleRepository)
	require.NoError(t, err)
	assert.Equal(t, []Contributor{
		{Login: "alice", Contributions: 42},
		{Login: "bob", Contributions: 7},
		{Login: "carol", Contributions: 3},
	}, contributors)
	assert.Equal(t, "Bearer ghp_example", authorization)

	capped, cappedErr := client.WithMaxContributors(2).Contributors(context.Background(), sampleRepository)
	require.NoError(t, cappedErr)
	assert.Len(t, capped, 2)
}

func TestContributorsEmptyRepository(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}))

	contributors, err := client.Contributors(context.Background(), sampleRepository)
	require.NoError(t, err)
	assert.Empty(t, contributors)
}

func TestCommitsConvertsHistory(t *testing.T) {
	var perPage string
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		perPage = request.URL.Query().Get("per_page")
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `[
			{"sha":"0123456789abcdef","author":{"login":"alice"},"commit":{"message":"Add parser\n\nLonger body","author":{"name":"Alice","date":"2024-03-01T10:00:00Z"}}},
			{"sha":"fedcba9876543210","commit":{"message":"Initial commit","author":{"name":"Bob Builder","date":"2024-02-01T09:30:00Z"}}},
			{"sha":"aaaaaaaaaaaaaaaa","commit":{"message":"Beyond the limit"}}
		]`)
	}))

	commits, err := client.Commits(context.Background(), sampleRepository, 2)
	require.NoError(t, err)
	assert.Equal(t, "2", perPage)
	assert.Equal(t, []Commit{
		{SHA: "0123456", Author: "alice", Message: "Add parser", Date: time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)},
		{SHA: "fedcba9", Author: "Bob Builder", Message: "Initial commit", Date: time.Date(2024, time.February, 1, 9, 30, 0, 0, time.UTC)},
	}, commits)
}

func TestFileContent(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("package main\n"))
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/octo/widgets/contents/cmd/main.go", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(writer, `{"type":"file","name":"main.go","path":"cmd/main.go","encoding":"base64","content":%q}`, encoded)
	})
	mux.HandleFunc("/repos/octo/widgets/contents/cmd", func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		fmt.Fprint(writer, `[{"type":"file","name":"main.go","path":"cmd/main.go"}]`)
	})
	client := newTestClient(t, mux)

	content, err := client.FileContent(context.Background(), sampleRepository, "/cmd/main.go")
	require.NoError(t, err)
	assert.Equal(t, "package main\n", content)

	_, directoryErr := client.FileContent(context.Background(), sampleRepository, "cmd")
	assert.ErrorIs(t, directoryErr, errNotFile)
}

func TestFailuresBecomeAPIErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		fmt.Fprint(writer, `{"message":"Not Found"}`)
	}))

	testCases := []struct {
		name         string
		invoke       func() error
		expectedPath string
	}{
		{
			name: "contributors",
			invoke: func() error {
				_, err := client.Contributors(context.Background(), sampleRepository)
				return err
			},
			expectedPath: "repos/octo/widgets/contributors",
		},
		{
			name: "commits",
			invoke: func() error {
				_, err := client.Commits(context.Background(), sampleRepository, 5)
				return err
			},
			expectedPath: "repos/octo/widgets/commits",
		},
		{
			name: "file content",
			invoke: func() error {
				_, err := client.FileContent(context.Background(), sampleRepository, "README.md")
				return err
			},
			expectedPath: "repos/octo/widgets/contents/README.md",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.invoke()
			var apiError *APIError
			require.True(t, errors.As(err, &apiError))
			assert.Equal(t, http.StatusNotFound, apiError.StatusCode)
			assert.Equal(t, "Not Found", apiError.Message)
			assert.Equal(t, testCase.expectedPath, apiError.Path)
		})
	}
}

func TestWithBaseURLRejectsInvalidURL(t *testing.T) {
	_, err := NewClient(nil, "").WithBaseURL("http://[::1")
	assert.Error(t, err)
}
