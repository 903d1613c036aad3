package site

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, client CMS, config Config) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(NewServer(ServerConfig{}, newSite(t, client, config)).Handler())
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for key, values := range header {
		req.Header[key] = values
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServerHome(t *testing.T) {
	server := newTestServer(t, newFakeCMS(), Config{})

	resp, body := get(t, server.URL+"/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, htmlContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "spacetraveling")
	assert.Contains(t, body, "Using Hooks")
	assert.Contains(t, body, "/post/hooks")
	assert.Contains(t, body, "/more/1")

	tag := resp.Header.Get("ETag")
	require.NotEmpty(t, tag)
	resp, _ = get(t, server.URL+"/", http.Header{"If-None-Match": {tag}})
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)
}

func TestServerLoadMore(t *testing.T) {
	server := newTestServer(t, newFakeCMS(), Config{})

	resp, body := get(t, server.URL+"/more/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Using Hooks")
	assert.Contains(t, body, "Create React App")
	assert.NotContains(t, body, "Testing with Jest")
	assert.Contains(t, body, "/more/2")

	resp, body = get(t, server.URL+"/more/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Testing with Jest")
	assert.NotContains(t, body, "Carregar mais posts")

	for _, path := range []string{"/more/3", "/more/0", "/more/abc"} {
		resp, _ = get(t, server.URL+path, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestServerLoadMoreRespectsMaxPages(t *testing.T) {
	server := newTestServer(t, newFakeCMS(), Config{MaxPages: 1})

	resp, body := get(t, server.URL+"/more/1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "/more/2")

	resp, _ = get(t, server.URL+"/more/2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerLoadMoreFailure(t *testing.T) {
	client := newFakeCMS()
	client.setFailing("page-3", true)
	server := newTestServer(t, client, Config{})

	resp, body := get(t, server.URL+"/more/2", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("ETag"))
	assert.Contains(t, body, "Using Hooks")
	assert.Contains(t, body, "Create React App")
	assert.Contains(t, body, loadMoreFailed)
	assert.Contains(t, body, "/more/2")

	client.setFailing("page-3", false)
	resp, body = get(t, server.URL+"/more/2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Testing with Jest")
}

func TestServerPost(t *testing.T) {
	client := newFakeCMS()
	client.docs["broken"] = `{"uid": "broken", "first_publication_date": null, "data": {}}`
	server := newTestServer(t, client, Config{})

	resp, body := get(t, server.URL+"/post/jest", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Testing with Jest")
	assert.Contains(t, body, "Joseph Oliveira")
	assert.Contains(t, body, "useEffect")
	assert.Contains(t, body, "images.example.com/banner.png")

	resp, _ = get(t, server.URL+"/post/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, server.URL+"/post/broken", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, _ = get(t, server.URL+"/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServerHomeUpstreamFailure(t *testing.T) {
	client := newFakeCMS()
	client.setFailing("page-1", true)
	server := newTestServer(t, client, Config{})

	resp, _ := get(t, server.URL+"/", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServerFeed(t *testing.T) {
	server := newTestServer(t, newFakeCMS(), Config{})

	resp, body := get(t, server.URL+"/feed.xml", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/rss+xml; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "https://blog.example.com/post/hooks")
	assert.NotEmpty(t, resp.Header.Get("ETag"))
}

func TestServerAPIPosts(t *testing.T) {
	server := newTestServer(t, newFakeCMS(), Config{})

	resp, body := get(t, server.URL+"/api/posts?more=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pagination models.PostPagination
	require.NoError(t, json.Unmarshal([]byte(body), &pagination))
	assert.Equal(t, []string{"hooks", "cra"}, uidsOf(pagination))
	require.NotNil(t, pagination.NextPage)
	assert.Equal(t, "page-3", *pagination.NextPage)

	resp, _ = get(t, server.URL+"/api/posts?more=7", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = get(t, server.URL+"/api/posts?more=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
