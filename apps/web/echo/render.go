package echoweb

import (
	"embed"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/learnearn/hub/core/earn"
	"github.com/learnearn/hub/core/screen"
	"github.com/learnearn/hub/core/session"
)

//go:embed templates
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// view is the data every page template receives.
type view struct {
	Title   string
	User    *session.UserProfile
	CSRF    string
	Notice  *screen.Notice
	Message string            // page level error or info line
	Errors  map[string]string // form field errors
	Form    interface{}
	Data    interface{}
}

type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date": earn.DisplayDate,
}

func newRenderer() (*renderer, error) {
	files, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	r := &renderer{pages: make(map[string]*template.Template, len(files))}
	for _, f := range files {
		t, err := template.New(path.Base(layoutFile)).Funcs(templateFuncs).ParseFS(templateFS, layoutFile, f)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", f)
		}
		r.pages[strings.TrimSuffix(path.Base(f), ".html")] = t
	}
	return r, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return errors.Errorf("template %q not found", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

func (s *server) render(ctx echo.Context, code int, name string, v view) error {
	if st := getState(ctx); st != nil && v.User == nil {
		if usr, ok := st.sess.User(ctx.Request().Context()); ok {
			v.User = &usr
		}
	}
	if token, ok := ctx.Get("csrf").(string); ok {
		v.CSRF = token
	}
	if v.Title == "" {
		v.Title = s.deps.Conf.AppName
	}
	return ctx.Render(code, name, v)
}
