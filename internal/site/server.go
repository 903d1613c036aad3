package site

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const htmlContentType = "text/html; charset=utf-8"

type ServerConfig struct {
	Port uint16
}

type Server struct {
	config ServerConfig
	site   *Site
}

func NewServer(config ServerConfig, site *Site) *Server {
	return &Server{
		config: config,
		site:   site,
	}
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	s.listing(w, r, 0)
}

func (s *Server) more(w http.ResponseWriter, r *http.Request) {
	more, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || more < 1 || !s.site.withinMaxPages(more) {
		s.fail(w, r, models.ErrNotFound)
		return
	}
	s.listing(w, r, more)
}

func (s *Server) listing(w http.ResponseWriter, r *http.Request, more int) {
	home, err := s.site.HomeProps(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	pagination, loaded, err := s.site.Expand(r.Context(), home.Pagination, more)
	status := http.StatusOK
	if err != nil {
		log.Error().Err(err).Int("more", more).Msg("load more failed")
		status = http.StatusBadGateway
	} else if loaded < more {
		s.fail(w, r, models.ErrNotFound)
		return
	}

	body, err := s.site.RenderHome(pagination, more, status != http.StatusOK)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, status, htmlContentType, body)
}

func (s *Server) post(w http.ResponseWriter, r *http.Request) {
	props, err := s.site.PostProps(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	body, err := s.site.RenderPost(props)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, htmlContentType, body)
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	body, err := s.site.Feed(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.write(w, r, http.StatusOK, "application/rss+xml; charset=utf-8", body)
}

func (s *Server) apiPosts(w http.ResponseWriter, r *http.Request) {
	more, err := utils.GetParam(r, "more", 0)
	if err != nil || more < 0 || !s.site.withinMaxPages(more) {
		utils.BadRequest(w, "invalid more")
		return
	}
	home, err := s.site.HomeProps(r.Context())
	if err != nil {
		utils.RespondError(w, statusOf(err), err.Error())
		return
	}
	pagination, loaded, err := s.site.Expand(r.Context(), home.Pagination, more)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if loaded < more {
		utils.NotFound(w, models.ErrNotFound.Error())
		return
	}
	_ = utils.RespondJSON(w, http.StatusOK, pagination)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.fail(w, r, models.ErrNotFound)
}

// fail renders the error page with the status matching err.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("page failed")
	}
	body, renderErr := s.site.RenderError(status)
	if renderErr != nil {
		http.Error(w, http.StatusText(status), status)
		return
	}
	w.Header().Set("Content-Type", htmlContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// write sends body with an ETag, answering 304 when the client already has it.
func (s *Server) write(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	if status == http.StatusOK {
		tag := etag(body)
		w.Header().Set("ETag", tag)
		if r.Header.Get("If-None-Match") == tag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func etag(body []byte) string {
	d := make([]byte, 8)
	binary.BigEndian.PutUint64(d, xxhash.Sum64(body))
	return "\"" + base64.StdEncoding.EncodeToString(d) + "\""
}

func statusOf(err error) int {
	var transport *models.TransportError
	var parse *models.ParseError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &transport), errors.As(err, &parse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.home)
	r.Get("/more/{n}", s.more)
	r.Get("/post/{slug}", s.post)
	r.Get("/feed.xml", s.feed)
	r.Get("/api/posts", s.apiPosts)
	r.NotFound(s.notFound)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%v", s.config.Port)
	log.Info().Str("addr", addr).Msg("site started")
	return utils.Serve(ctx, addr, s.Handler())
}
