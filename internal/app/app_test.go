package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, config AppConfig, docs ...models.Document) *httptest.Server {
	t.Helper()
	s := storage.NewInMemoryStorage()
	for _, doc := range docs {
		_, err := s.SaveDocument(context.Background(), doc)
		require.NoError(t, err)
	}
	server := httptest.NewServer(New(config, s).Handler())
	t.Cleanup(server.Close)
	return server
}

func publishedAt(day int) *time.Time {
	t := time.Date(2021, time.March, day, 19, 25, 28, 0, time.UTC)
	return &t
}

func threePosts() []models.Document {
	return []models.Document{
		{UID: "a", Type: "post", FirstPublicationDate: publishedAt(3), Data: models.PostData{Title: "A", Subtitle: "sa", Author: "x"}},
		{UID: "b", Type: "post", FirstPublicationDate: publishedAt(2), Data: models.PostData{Title: "B", Subtitle: "sb", Author: "y"}},
		{UID: "c", Type: "post", FirstPublicationDate: publishedAt(1), Data: models.PostData{Title: "C", Subtitle: "sc", Author: "z"}},
	}
}

func getJSON(t *testing.T, target string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(target)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func searchURL(server *httptest.Server, params url.Values) string {
	return server.URL + "/api/v2/documents/search?" + params.Encode()
}

func TestGetAPI(t *testing.T) {
	server := newTestServer(t, AppConfig{Ref: "local"})

	var info struct {
		Refs []ref `json:"refs"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/v2", &info))
	require.Len(t, info.Refs, 1)
	assert.Equal(t, "local", info.Refs[0].Ref)
	assert.True(t, info.Refs[0].IsMasterRef)
}

func TestSearchPaginates(t *testing.T) {
	server := newTestServer(t, AppConfig{}, threePosts()...)

	var first map[string]json.RawMessage
	params := url.Values{"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "pageSize": {"2"}}
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &first))

	var next string
	require.NoError(t, json.Unmarshal(first["next_page"], &next))
	assert.Contains(t, next, server.URL+"/api/v2/documents/search?")
	assert.Contains(t, next, "page=2")
	assert.JSONEq(t, `null`, string(first["prev_page"]))
	assert.JSONEq(t, `3`, string(first["total_results_size"]))
	assert.JSONEq(t, `2`, string(first["total_pages"]))

	var results []struct {
		UID                  string  `json:"uid"`
		FirstPublicationDate *string `json:"first_publication_date"`
	}
	require.NoError(t, json.Unmarshal(first["results"], &results))
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].UID)
	assert.Equal(t, "2021-03-03T19:25:28+0000", *results[0].FirstPublicationDate)
	assert.Equal(t, "b", results[1].UID)

	var second map[string]json.RawMessage
	require.Equal(t, http.StatusOK, getJSON(t, next, &second))
	assert.JSONEq(t, `null`, string(second["next_page"]))
	require.NoError(t, json.Unmarshal(second["results"], &results))
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].UID)
}

func TestSearchFetchProjectsData(t *testing.T) {
	docs := threePosts()
	docs[0].Data.Banner = models.Image{URL: "https://img/a.png"}
	server := newTestServer(t, AppConfig{}, docs[0])

	var response struct {
		Results []struct {
			Data map[string]interface{} `json:"data"`
		} `json:"results"`
	}
	params := url.Values{"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "fetch": {"post.title,post.author"}}
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &response))
	require.Len(t, response.Results, 1)
	assert.Equal(t, map[string]interface{}{"title": "A", "author": "x"}, response.Results[0].Data)
}

func TestSearchByUID(t *testing.T) {
	server := newTestServer(t, AppConfig{}, threePosts()...)

	var response struct {
		Results []struct {
			UID  string          `json:"uid"`
			Data models.PostData `json:"data"`
		} `json:"results"`
	}
	params := url.Values{"ref": {"master"}, "q": {`[[at(my.post.uid, "b")]]`}}
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &response))
	require.Len(t, response.Results, 1)
	assert.Equal(t, "B", response.Results[0].Data.Title)

	params.Set("q", `[[at(my.post.uid, "missing")]]`)
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &response))
	assert.Empty(t, response.Results)
}

func TestSearchRejectsBadRequests(t *testing.T) {
	server := newTestServer(t, AppConfig{}, threePosts()...)

	tests := map[string]url.Values{
		"unknown ref":    {"ref": {"other"}, "q": {`[[at(document.type, "post")]]`}},
		"no predicate":   {"ref": {"master"}},
		"bad predicate":  {"ref": {"master"}, "q": {`[[fulltext(document, "x")]]`}},
		"page size zero": {"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "pageSize": {"0"}},
		"page size big":  {"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "pageSize": {"101"}},
		"bad page":       {"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "page": {"x"}},
		"conflicting": {"ref": {"master"}, "q": {
			`[[at(document.type, "page")]]`,
			`[[at(my.post.uid, "a")]]`,
		}},
	}
	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, getJSON(t, searchURL(server, params), nil))
		})
	}
}

func TestAccessToken(t *testing.T) {
	server := newTestServer(t, AppConfig{AccessToken: "secret"}, threePosts()...)

	assert.Equal(t, http.StatusUnauthorized, getJSON(t, server.URL+"/api/v2", nil))
	assert.Equal(t, http.StatusOK, getJSON(t, server.URL+"/api/v2?access_token=secret", nil))

	params := url.Values{"ref": {"master"}, "q": {`[[at(document.type, "post")]]`}, "pageSize": {"1"}, "access_token": {"secret"}}
	var response struct {
		NextPage string `json:"next_page"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &response))
	assert.Contains(t, response.NextPage, "access_token=secret")
}

func TestAddDocument(t *testing.T) {
	server := newTestServer(t, AppConfig{AccessToken: "secret"})

	body, err := json.Marshal(models.Document{UID: "new", Type: "post", Data: models.PostData{Title: "New"}})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/api/v2/documents", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, server.URL+"/api/v2/documents", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var response struct {
		Results []struct {
			UID string `json:"uid"`
		} `json:"results"`
	}
	params := url.Values{"ref": {"master"}, "q": {`[[at(my.post.uid, "new")]]`}, "access_token": {"secret"}}
	require.Equal(t, http.StatusOK, getJSON(t, searchURL(server, params), &response))
	require.Len(t, response.Results, 1)
}

func TestParsePredicates(t *testing.T) {
	p, err := parsePredicates([]string{`[[at(document.type, "post")]]`, `[[at(my.post.uid,"with \"quotes\"")]]`})
	require.NoError(t, err)
	assert.Equal(t, predicate{kind: "post", uid: `with "quotes"`}, p)
}
