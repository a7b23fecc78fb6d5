package scraper_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"social-connect-go/internal/config"
	"social-connect-go/internal/scraper"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGithubAPIStub(t *testing.T, wantToken string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/octocat", func(w http.ResponseWriter, r *http.Request) {
		if wantToken != "" {
			assert.Equal(t, "Bearer "+wantToken, r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"login":      "octocat",
			"avatar_url": "https://example.com/a.png",
			"bio":        "builds things",
			"followers":  42,
			"following":  7,
		})
	})
	mux.HandleFunc("/users/octocat/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "updated", r.URL.Query().Get("sort"))
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "hello-world", "language": "Go", "stargazers_count": 10, "html_url": "https://example.com/r"},
			{"name": "dotfiles", "description": "shell setup"},
		})
	})
	mux.HandleFunc("/users/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	})
	return httptest.NewServer(mux)
}

func newTestClient(baseURL, token string) *scraper.GitHubClient {
	return scraper.NewGitHubClient(&config.ScraperConfig{
		BaseURL:        baseURL,
		Token:          token,
		TimeoutSeconds: 5,
		QPM:            6000,
		MaxRepos:       10,
	})
}

func TestFetchGithubProfile(t *testing.T) {
	srv := newGithubAPIStub(t, "secret-token")
	defer srv.Close()

	client := newTestClient(srv.URL, "secret-token")
	data, err := client.FetchGithubProfile(context.Background(), "octocat")
	require.NoError(t, err)

	assert.Equal(t, "octocat", data.Username)
	assert.Equal(t, "https://example.com/a.png", data.AvatarURL)
	assert.Equal(t, 42, data.FollowerCount)
	assert.Equal(t, 7, data.FollowingCount)
	require.Len(t, data.Repositories, 2)
	assert.Equal(t, "hello-world", data.Repositories[0].Name)
	assert.Equal(t, "Go", data.Repositories[0].Language)
	assert.Equal(t, 10, data.Repositories[0].Stars)
	assert.Equal(t, "shell setup", data.Repositories[1].Description)
}

func TestFetchGithubProfileNotFound(t *testing.T) {
	srv := newGithubAPIStub(t, "")
	defer srv.Close()

	client := newTestClient(srv.URL, "")
	_, err := client.FetchGithubProfile(context.Background(), "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
