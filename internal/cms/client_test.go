package cms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ikolcov/cmsblog/internal/app"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/posts"
	"github.com/ikolcov/cmsblog/internal/richtext"
	"github.com/ikolcov/cmsblog/internal/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContentAPI(t *testing.T, token string, uids ...string) *httptest.Server {
	t.Helper()
	s := storage.NewInMemoryStorage()
	for i, uid := range uids {
		published := time.Date(2021, time.March, 20-i, 12, 0, 0, 0, time.UTC)
		_, err := s.SaveDocument(context.Background(), models.Document{
			UID:                  uid,
			Type:                 "post",
			FirstPublicationDate: &published,
			Data: models.PostData{
				Title:    "Title " + uid,
				Subtitle: "Subtitle " + uid,
				Author:   "Author " + uid,
				Banner:   models.Image{URL: "https://img/" + uid + ".png"},
				Content: []models.ContentSection{{
					Heading: "Intro",
					Body:    richtext.Body{{Type: richtext.Paragraph, Text: "hello " + uid}},
				}},
			},
		})
		require.NoError(t, err)
	}
	server := httptest.NewServer(app.New(app.AppConfig{AccessToken: token}, s).Handler())
	t.Cleanup(server.Close)
	return server
}

func TestGetByTypeAndFollowCursor(t *testing.T) {
	server := newContentAPI(t, "secret", "a", "b", "c")
	client := New(server.URL+"/api/v2", WithAccessToken("secret"))

	raw, err := client.GetByType(context.Background(), "post", Query{
		Fetch:    []string{"post.title", "post.subtitle", "post.author"},
		PageSize: 2,
		Page:     1,
	})
	require.NoError(t, err)

	first, err := posts.Normalize(raw)
	require.NoError(t, err)
	require.Len(t, first.Results, 2)
	assert.Equal(t, "a", first.Results[0].UID)
	assert.Equal(t, "Title a", first.Results[0].Title)
	require.NotNil(t, first.NextPage)

	controller := posts.NewController(client, first)
	state, err := controller.LoadMore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state.NextPage)
	require.Len(t, state.Results, 3)
	assert.Equal(t, "c", state.Results[2].UID)
}

func TestGetByUID(t *testing.T) {
	server := newContentAPI(t, "", "a", "b")
	client := New(server.URL + "/api/v2")

	raw, err := client.GetByUID(context.Background(), "post", "b")
	require.NoError(t, err)

	detail, err := posts.NormalizeDetail(raw)
	require.NoError(t, err)
	assert.Equal(t, "b", detail.UID)
	assert.Equal(t, "https://img/b.png", detail.Banner.URL)
	require.Len(t, detail.Content, 1)
	assert.Equal(t, "Intro", detail.Content[0].Heading)

	_, err = client.GetByUID(context.Background(), "post", "missing")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestRefIsDiscoveredOnce(t *testing.T) {
	var apiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&apiCalls, 1)
		_, _ = w.Write([]byte(`{"refs": [{"id": "x", "ref": "preview"}, {"id": "master", "ref": "YFzX1BIAACMAkvEq", "isMasterRef": true}]}`))
	})
	mux.HandleFunc("/api/v2/documents/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "YFzX1BIAACMAkvEq", r.URL.Query().Get("ref"))
		assert.Equal(t, `[[at(document.type, "post")]]`, r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`{"next_page": null, "results": []}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL + "/api/v2/")
	for i := 0; i < 3; i++ {
		_, err := client.GetByType(context.Background(), "post", Query{})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&apiCalls))
}

func TestFetchPageErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/unavailable", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := New(server.URL, WithRef("master"))

	_, err := client.FetchPage(context.Background(), server.URL+"/unavailable")
	var transport *models.TransportError
	require.True(t, errors.As(err, &transport))
	assert.Equal(t, http.StatusServiceUnavailable, transport.StatusCode)

	_, err = client.FetchPage(context.Background(), server.URL+"/garbage")
	var parse *models.ParseError
	require.True(t, errors.As(err, &parse))
	var syntax *json.SyntaxError
	assert.True(t, errors.As(err, &syntax))

	_, err = client.FetchPage(context.Background(), "http://127.0.0.1:1/closed")
	require.True(t, errors.As(err, &transport))
	assert.Zero(t, transport.StatusCode)
}

func TestFetchPageUsesCursorVerbatim(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"next_page": null, "results": []}`))
	}))
	defer server.Close()

	client := New(server.URL, WithAccessToken("token"), WithRef("master"))
	_, err := client.FetchPage(context.Background(), server.URL+"/search?page=2&q=%5B%5Bx%5D%5D")
	require.NoError(t, err)
	assert.Equal(t, "page=2&q=%5B%5Bx%5D%5D", got)
}
