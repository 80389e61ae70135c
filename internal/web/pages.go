package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"podvoice/internal/catalog"
	"podvoice/internal/logging"
	"podvoice/internal/textutil"
	"podvoice/internal/voice"
)

//go:embed assets
var assetsFS embed.FS

var pageNames = []string{"home", "search", "podcast", "episode", "help", "error"}

type staticAsset struct {
	contentType string
	body        []byte
}

// pages holds the parsed templates, the rendered help page and the minified
// static assets. Everything is prepared once at startup.
type pages struct {
	templates map[string]*template.Template
	minifier  *minify.M
	help      template.HTML
	static    map[string]staticAsset
}

func newPages() (*pages, error) {
	m := minify.New()
	m.AddFunc("text/html", minhtml.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)

	funcs := template.FuncMap{
		"plain":    textutil.StripHTMLAndURLs,
		"date":     formatDate,
		"duration": formatDuration,
		"score":    func(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) },
		"rank":     func(v float64) string { return strconv.FormatFloat(v*100, 'f', 0, 64) + "%" },
	}
	p := &pages{
		templates: make(map[string]*template.Template, len(pageNames)),
		minifier:  m,
		static:    map[string]staticAsset{},
	}
	for _, name := range pageNames {
		tmpl, err := template.New("layout.html").Funcs(funcs).ParseFS(assetsFS,
			"assets/templates/layout.html",
			"assets/templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		p.templates[name] = tmpl
	}

	help, err := renderHelp()
	if err != nil {
		return nil, err
	}
	p.help = help

	entries, err := fs.ReadDir(assetsFS, "assets/static")
	if err != nil {
		return nil, fmt.Errorf("read static assets: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		raw, err := assetsFS.ReadFile(path.Join("assets/static", entry.Name()))
		if err != nil {
			return nil, err
		}
		contentType := "application/octet-stream"
		switch path.Ext(entry.Name()) {
		case ".js":
			contentType = "application/javascript"
		case ".css":
			contentType = "text/css"
		}
		body := raw
		if minified, err := m.Bytes(contentType, raw); err == nil {
			body = minified
		}
		p.static[entry.Name()] = staticAsset{contentType: contentType + "; charset=utf-8", body: body}
	}
	return p, nil
}

// renderHelp converts the embedded help text to HTML and appends the live
// keyword table, so the reference always matches the classifier.
func renderHelp() (template.HTML, error) {
	raw, err := assetsFS.ReadFile("assets/help.md")
	if err != nil {
		return "", fmt.Errorf("read help: %w", err)
	}
	var doc bytes.Buffer
	doc.Write(raw)
	doc.WriteString("\n\n## Keywords\n\n| Command | Say any of |\n| --- | --- |\n")
	for _, entry := range voice.Keywords() {
		quoted := make([]string, len(entry.Keywords))
		for i, kw := range entry.Keywords {
			quoted[i] = "`" + kw + "`"
		}
		fmt.Fprintf(&doc, "| %s | %s |\n", entry.Command, strings.Join(quoted, ", "))
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var out bytes.Buffer
	if err := md.Convert(doc.Bytes(), &out); err != nil {
		return "", fmt.Errorf("render help: %w", err)
	}
	return template.HTML(out.String()), nil
}

func formatDate(value string) string {
	t, err := catalog.ParseTime(value)
	if err != nil {
		return value
	}
	return t.Format("January 2, 2006")
}

func formatDuration(seconds *int64) string {
	if seconds == nil || *seconds <= 0 {
		return ""
	}
	d := time.Duration(*seconds) * time.Second
	if d >= time.Hour {
		return fmt.Sprintf("%d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

type pageData struct {
	Title string
	Query string
	Data  any
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data pageData) {
	var buf bytes.Buffer
	if err := s.pages.templates[name].ExecuteTemplate(&buf, "layout.html", data); err != nil {
		logging.WithContext(r.Context(), s.log()).Error("render page failed",
			logging.String("page", name),
			logging.Error(err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	body := buf.Bytes()
	if minified, err := s.pages.minifier.Bytes("text/html", body); err == nil {
		body = minified
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request, what string) {
	s.renderPage(w, r, http.StatusNotFound, "error", pageData{
		Title: "Not found",
		Data:  what + " not found",
	})
}

func (s *Server) renderFailure(w http.ResponseWriter, r *http.Request, err error) {
	logging.WithContext(r.Context(), s.log()).Error("page load failed", logging.Error(err))
	s.renderPage(w, r, http.StatusInternalServerError, "error", pageData{
		Title: "Error",
		Data:  "Something went wrong loading this page.",
	})
}

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	trending, err := s.store.ListTrending(r.Context())
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, "home", pageData{Title: "Trending podcasts", Data: trending})
}

func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	var results []catalog.SearchResult
	if q != "" {
		found, err := s.store.Search(r.Context(), q, 0, -1)
		if err != nil {
			s.renderFailure(w, r, err)
			return
		}
		results = found
	}
	s.renderPage(w, r, http.StatusOK, "search", pageData{Title: "Search", Query: q, Data: results})
}

type podcastPage struct {
	Podcast  *catalog.Podcast
	Episodes []catalog.Episode
}

func (s *Server) handlePodcastPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.renderNotFound(w, r, "Podcast")
		return
	}
	podcast, err := s.store.GetPodcast(r.Context(), id)
	if err != nil {
		if catalogNotFound(err) {
			s.renderNotFound(w, r, "Podcast")
			return
		}
		s.renderFailure(w, r, err)
		return
	}
	episodes, err := s.store.ListEpisodes(r.Context(), id, 0)
	if err != nil {
		s.renderFailure(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, "podcast", pageData{
		Title: podcast.Title,
		Data:  podcastPage{Podcast: podcast, Episodes: episodes},
	})
}

type episodePage struct {
	Episode *catalog.EpisodeDetail
	Rates   []float64
}

func (s *Server) handleEpisodePage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.renderNotFound(w, r, "Episode")
		return
	}
	episode, err := s.store.GetEpisode(r.Context(), id)
	if err != nil {
		if catalogNotFound(err) {
			s.renderNotFound(w, r, "Episode")
			return
		}
		s.renderFailure(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, "episode", pageData{
		Title: episode.Title,
		Data:  episodePage{Episode: episode, Rates: s.cfg.Player.PlaybackRates},
	})
}

func (s *Server) handleHelpPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, "help", pageData{Title: "Voice commands", Data: s.pages.help})
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	asset, ok := s.pages.static[r.PathValue("file")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", asset.contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(asset.body)
}
