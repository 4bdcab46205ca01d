package web

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

// Layout wraps every page.
const Layout = "layout"

// NewEngine returns the fiber view engine over the embedded templates.
func NewEngine(markdown *Markdown) (*html.Engine, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("markdown", markdown.Render)
	engine.AddFunc("datetime", func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("02/01/2006 15:04")
	})
	return engine, nil
}
