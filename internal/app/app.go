// Package app serves documents from a Storage through a Prismic-compatible
// REST API, so the blog can run against local content.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/storage"
	"github.com/ikolcov/cmsblog/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultRef      = "master"
)

type AppConfig struct {
	Port        uint16
	AccessToken string
	Ref         string
}

type App struct {
	config  AppConfig
	storage storage.Storage
}

func New(config AppConfig, storage storage.Storage) *App {
	if config.Ref == "" {
		config.Ref = defaultRef
	}
	return &App{
		config:  config,
		storage: storage,
	}
}

type ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

func (a *App) getAPI(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		utils.Unauthorized(w, models.ErrUnauthorized.Error())
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"refs": []ref{{ID: "master", Ref: a.config.Ref, Label: "Master", IsMasterRef: true}},
	})
}

type searchResponse struct {
	Page             int            `json:"page"`
	ResultsPerPage   int            `json:"results_per_page"`
	ResultsSize      int            `json:"results_size"`
	TotalResultsSize int            `json:"total_results_size"`
	TotalPages       int            `json:"total_pages"`
	NextPage         *string        `json:"next_page"`
	PrevPage         *string        `json:"prev_page"`
	Results          []documentView `json:"results"`
}

type documentView struct {
	ID                   models.DocumentID `json:"id"`
	UID                  string            `json:"uid"`
	Type                 string            `json:"type"`
	Tags                 []string          `json:"tags"`
	Lang                 string            `json:"lang"`
	FirstPublicationDate *string           `json:"first_publication_date"`
	LastPublicationDate  *string           `json:"last_publication_date"`
	Data                 interface{}       `json:"data"`
}

func (a *App) search(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		utils.Unauthorized(w, models.ErrUnauthorized.Error())
		return
	}
	query := r.URL.Query()
	if query.Get("ref") != a.config.Ref {
		utils.BadRequest(w, fmt.Sprintf("ref %q is not a valid release", query.Get("ref")))
		return
	}
	page, err := utils.GetParam(r, "page", 1)
	if err != nil || page < 1 {
		utils.BadRequest(w, "invalid page")
		return
	}
	size, err := utils.GetParam(r, "pageSize", defaultPageSize)
	if err != nil || size < 1 || size > maxPageSize {
		utils.BadRequest(w, "invalid pageSize")
		return
	}
	predicate, err := parsePredicates(query["q"])
	if err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	var docsPage models.DocumentsPage
	if predicate.uid != "" {
		docsPage, err = a.findByUID(r, predicate.kind, predicate.uid, page, size)
	} else {
		docsPage, err = a.storage.GetDocuments(r.Context(), predicate.kind, page, size)
	}
	if errors.Is(err, models.ErrBadRequest) {
		utils.BadRequest(w, err.Error())
		return
	} else if err != nil {
		utils.InternalError(w, err.Error())
		return
	}

	fetch := fetchFields(query.Get("fetch"))
	response := searchResponse{
		Page:             docsPage.Page,
		ResultsPerPage:   docsPage.PageSize,
		ResultsSize:      len(docsPage.Documents),
		TotalResultsSize: docsPage.Total,
		TotalPages:       docsPage.TotalPages(),
		Results:          make([]documentView, 0, len(docsPage.Documents)),
	}
	if docsPage.HasNext() {
		next := pageURL(r, page+1)
		response.NextPage = &next
	}
	if page > 1 {
		prev := pageURL(r, page-1)
		response.PrevPage = &prev
	}
	for _, doc := range docsPage.Documents {
		view, err := newDocumentView(doc, fetch)
		if err != nil {
			utils.InternalError(w, err.Error())
			return
		}
		response.Results = append(response.Results, view)
	}

	_ = utils.RespondJSON(w, http.StatusOK, response)
}

func (a *App) findByUID(r *http.Request, kind, uid string, page, size int) (models.DocumentsPage, error) {
	docsPage := models.DocumentsPage{Page: page, PageSize: size, Documents: []models.Document{}}
	doc, err := a.storage.GetDocument(r.Context(), kind, uid)
	if errors.Is(err, models.ErrNotFound) {
		return docsPage, nil
	} else if err != nil {
		return docsPage, err
	}
	docsPage.Total = 1
	if page == 1 {
		docsPage.Documents = append(docsPage.Documents, doc)
	}
	return docsPage, nil
}

func (a *App) addDocument(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		utils.Unauthorized(w, models.ErrUnauthorized.Error())
		return
	}

	var doc models.Document
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&doc); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}
	now := time.Now().UTC()
	doc.LastPublicationDate = &now

	id, err := a.storage.SaveDocument(r.Context(), doc)
	if errors.Is(err, models.ErrBadRequest) {
		utils.BadRequest(w, "document needs a type and a uid")
		return
	} else if err != nil {
		utils.InternalError(w, err.Error())
		return
	}
	log.Info().Str("type", doc.Type).Str("uid", doc.UID).Msg("document saved")

	_ = utils.RespondJSON(w, http.StatusOK, map[string]models.DocumentID{"id": id})
}

func (a *App) authorized(r *http.Request) bool {
	if a.config.AccessToken == "" {
		return true
	}
	token := r.URL.Query().Get("access_token")
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	}
	return token == a.config.AccessToken
}

var predicatePattern = regexp.MustCompile(`^\[\[at\(\s*(document\.type|my\.([\w-]+)\.uid)\s*,\s*"((?:[^"\\]|\\.)*)"\s*\)\]\]$`)

type predicate struct {
	kind string
	uid  string
}

// parsePredicates understands at(document.type, "...") and
// at(my.<type>.uid, "..."), which is all the blog asks for.
func parsePredicates(values []string) (predicate, error) {
	var p predicate
	for _, value := range values {
		m := predicatePattern.FindStringSubmatch(strings.TrimSpace(value))
		if m == nil {
			return predicate{}, errors.Errorf("unsupported predicate %s", value)
		}
		arg, err := strconv.Unquote(`"` + m[3] + `"`)
		if err != nil {
			return predicate{}, errors.Errorf("bad predicate argument in %s", value)
		}
		if m[1] == "document.type" {
			if p.kind != "" && p.kind != arg {
				return predicate{}, errors.New("conflicting document types")
			}
			p.kind = arg
			continue
		}
		if p.kind != "" && p.kind != m[2] {
			return predicate{}, errors.New("conflicting document types")
		}
		p.kind = m[2]
		p.uid = arg
	}
	if p.kind == "" {
		return predicate{}, errors.New("a document type predicate is required")
	}
	return p, nil
}

func fetchFields(value string) map[string]bool {
	if value == "" {
		return nil
	}
	fields := make(map[string]bool)
	for _, f := range strings.Split(value, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields[f] = true
		}
	}
	return fields
}

// newDocumentView keeps only the data fields named "<type>.<field>" in
// fetch, or all of them when fetch is empty.
func newDocumentView(doc models.Document, fetch map[string]bool) (documentView, error) {
	view := documentView{
		ID:                   doc.ID,
		UID:                  doc.UID,
		Type:                 doc.Type,
		Tags:                 doc.Tags,
		Lang:                 doc.Lang,
		FirstPublicationDate: formatDate(doc.FirstPublicationDate),
		LastPublicationDate:  formatDate(doc.LastPublicationDate),
		Data:                 doc.Data,
	}
	if view.Tags == nil {
		view.Tags = []string{}
	}
	if len(fetch) == 0 {
		return view, nil
	}

	encoded, err := json.Marshal(doc.Data)
	if err != nil {
		return view, err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &data); err != nil {
		return view, err
	}
	for key := range data {
		if !fetch[doc.Type+"."+key] {
			delete(data, key)
		}
	}
	view.Data = data
	return view, nil
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format("2006-01-02T15:04:05-0700")
	return &s
}

func pageURL(r *http.Request, page int) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	query := r.URL.Query()
	query.Set("page", strconv.Itoa(page))
	u := url.URL{
		Scheme:   scheme,
		Host:     r.Host,
		Path:     r.URL.Path,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api/v2", func(r chi.Router) {
		r.Get("/", a.getAPI)
		r.Get("/documents/search", a.search)
		r.Post("/documents", a.addDocument)
	})
	return r
}

func (a *App) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%v", a.config.Port)
	log.Info().Str("addr", addr).Msg("content api started")
	return utils.Serve(ctx, addr, a.Handler())
}
