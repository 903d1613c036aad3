package site

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strconv"

	"github.com/ikolcov/cmsblog/internal/dates"
	"github.com/ikolcov/cmsblog/internal/models"
	"github.com/ikolcov/cmsblog/internal/richtext"
	"github.com/pkg/errors"
)

const loadMoreFailed = "Não foi possível carregar mais posts. Tente novamente."

//go:embed templates/*.html
var templatesFS embed.FS

func parseTemplates(formatter *dates.Formatter) (*template.Template, error) {
	return template.New("site").
		Funcs(template.FuncMap{
			"date":     formatter.Format,
			"richtext": richtext.AsHTML,
		}).
		ParseFS(templatesFS, "templates/*.html")
}

type page struct {
	Lang  string
	Site  string
	Title string
}

type homeView struct {
	page
	Posts    []models.Post
	NextHref string
	Notice   string
}

type postView struct {
	page
	Post           models.PostDetail
	ReadingMinutes int
}

type errorView struct {
	page
	Status  int
	Message string
}

func (s *Site) pageFor(title string) page {
	return page{
		Lang:  s.dates.Tag().String(),
		Site:  s.config.Title,
		Title: title,
	}
}

// RenderHome renders the post list reached after more load-more steps. When
// failed is set the list carries a notice and a link retrying the same step.
func (s *Site) RenderHome(pagination models.PostPagination, more int, failed bool) ([]byte, error) {
	view := homeView{
		page:  s.pageFor(""),
		Posts: pagination.Results,
	}
	switch {
	case failed:
		view.Notice = loadMoreFailed
		view.NextHref = listingPath(more)
	case pagination.HasNext() && s.withinMaxPages(more+1):
		view.NextHref = listingPath(more + 1)
	}
	return s.render("home.html", view)
}

func (s *Site) RenderPost(props PostProps) ([]byte, error) {
	return s.render("post.html", postView{
		page:           s.pageFor(props.Post.Title),
		Post:           props.Post,
		ReadingMinutes: props.ReadingMinutes,
	})
}

func (s *Site) RenderError(status int) ([]byte, error) {
	return s.render("error.html", errorView{
		page:    s.pageFor(http.StatusText(status)),
		Status:  status,
		Message: http.StatusText(status),
	})
}

func (s *Site) render(name string, data interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, errors.Wrapf(err, "can't render %s", name)
	}
	b, err := s.minifier.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(err, "can't minify %s", name)
	}
	return b, nil
}

func (s *Site) withinMaxPages(more int) bool {
	return s.config.MaxPages == 0 || more <= s.config.MaxPages
}

func listingPath(more int) string {
	if more == 0 {
		return "/"
	}
	return "/more/" + strconv.Itoa(more)
}
