package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/user/chatverse/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

// clockLayout is how message times are shown, e.g. "03:04 PM".
const clockLayout = "03:04 PM"

var funcs = template.FuncMap{
	"markdown": render.Markdown,
	"bytes":    func(n int64) string { return humanize.Bytes(uint64(n)) },
	"ago":      humanize.Time,
	"clock":    func(t time.Time) string { return t.Format(clockLayout) },
	"percent":  func(p float64) string { return fmt.Sprintf("%.0f", p*100) },
}

var pages = map[string]*template.Template{
	"chat":   parsePage("chat"),
	"models": parsePage("models"),
	"group":  parsePage("group"),
}

func parsePage(name string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html"))
}

type pageData struct {
	Title   string
	Nav     string
	Notices []notice
	Data    any
}

// elapsedFooter labels a reply with how long it took, e.g. "🕓 1.23s 03:04 PM".
func elapsedFooter(asked, answered time.Time) string {
	return fmt.Sprintf("🕓 %.2fs %s", answered.Sub(asked).Seconds(), answered.Format(clockLayout))
}

// render executes a page into a buffer first so that a template error never
// leaves a half-written response.
func (s *Server) render(w http.ResponseWriter, page, title string, d *sessionData, data any) {
	var buf bytes.Buffer
	err := pages[page].ExecuteTemplate(&buf, "layout", pageData{
		Title:   title,
		Nav:     page,
		Notices: d.takeNotices(),
		Data:    data,
	})
	if err != nil {
		slog.Error("render page failed", "page", page, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
