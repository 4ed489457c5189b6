package server

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/thesyncim/confcheck/pkg/media"
)

//go:embed web
var webFS embed.FS

var (
	staticFS  = mustSub(webFS, "web/static")
	templates = template.Must(template.New("").ParseFS(webFS, "web/*.html"))
)

func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	publisherApp = "publisher"
	viewerApp    = "viewer"
)

// defaultStream is watched when the page URL names no stream.
const defaultStream = "demo"

// appPage is the data the application templates render.
type appPage struct {
	App        string
	StreamName string
	AccountID  string
	Timer      string
	Viewers    string
	Bitrates   []media.Bitrate
	Codecs     []string
	Qualities  []string
}

func newAppPage(app string, r *http.Request) appPage {
	q := r.URL.Query()
	name := q.Get("streamName")
	if name == "" {
		name = defaultStream
	}
	return appPage{
		App:        app,
		StreamName: name,
		AccountID:  q.Get("streamAccountId"),
		Timer:      media.FormatSessionTime(0),
		Viewers:    media.FormatViewerCount(0),
		Bitrates:   media.Bitrates,
		Codecs:     media.Codecs,
		Qualities:  media.Qualities,
	}
}

func (s *Server) handleApp(app string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ExecuteTemplate(w, app+".html", newAppPage(app, r)); err != nil {
			s.log.Error().Err(err).Str("app", app).Msg("failed to render app")
		}
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, "index.html", newAppPage("", r)); err != nil {
		s.log.Error().Err(err).Msg("failed to render index")
	}
}
