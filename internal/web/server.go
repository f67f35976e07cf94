// Package web serves the browser UI: the chat page, the model editor and the
// group agent page, plus the websocket streams behind them.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/gateway"
	"github.com/user/chatverse/internal/metrics"
	"github.com/user/chatverse/internal/state"
	"github.com/user/chatverse/internal/types"
)

const cookieName = "chatverse_session"

// Server is the HTTP handler for the UI.
type Server struct {
	backend   *backend.Backend
	sessions  *Sessions
	gateway   *gateway.Gateway
	artifacts types.ArtifactStore
	metrics   *metrics.Metrics
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer wires the UI routes. gw must share sessions. m may be nil.
func NewServer(b *backend.Backend, sessions *Sessions, gw *gateway.Gateway, artifacts types.ArtifactStore, m *metrics.Metrics) *Server {
	s := &Server{
		backend:   b,
		sessions:  sessions,
		gateway:   gw,
		artifacts: artifacts,
		metrics:   m,
		mux:       http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", m.Handler())
	s.mux.HandleFunc("GET /assets/{file...}", s.handleAsset)
	s.mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)

	s.mux.HandleFunc("GET /chat", s.handleChat)
	s.mux.HandleFunc("POST /chat/new", s.handleChatNew)
	s.mux.HandleFunc("POST /chat/select", s.handleChatSelect)
	s.mux.HandleFunc("POST /chat/model", s.handleChatModel)
	s.mux.HandleFunc("POST /chat/args", s.handleChatArgs)
	s.mux.HandleFunc("POST /chat/message", s.handleChatMessage)
	s.mux.HandleFunc("GET /ws/chat", s.handleChatWS)

	s.mux.HandleFunc("GET /models", s.handleModels)
	s.mux.HandleFunc("POST /models/new", s.handleModelNew)
	s.mux.HandleFunc("POST /models/base", s.handleModelBase)
	s.mux.HandleFunc("POST /models/form", s.handleModelForm)
	s.mux.HandleFunc("POST /models/{key}/delete", s.handleModelDelete)
	s.mux.HandleFunc("POST /models/{key}/{mode}", s.handleModelFocus)

	s.mux.HandleFunc("GET /group", s.handleGroup)
	s.mux.HandleFunc("POST /group/select", s.handleGroupSelect)
	s.mux.HandleFunc("POST /group/setting", s.handleGroupSetting)
	s.mux.HandleFunc("POST /group/run", s.handleGroupRun)
	s.mux.HandleFunc("GET /group/{id}/attachments/{name}", s.handleGroupAttachment)
	s.mux.HandleFunc("GET /ws/group", s.handleGroupWS)

	s.handler = m.Middleware(s.mux)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/chat", http.StatusSeeOther)
}

// session returns the caller's session, issuing a cookie on first visit.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*state.Session[*sessionData], error) {
	key := ""
	if c, err := r.Cookie(cookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			key = c.Value
		}
	}
	if key == "" {
		key = uuid.NewString()
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s.resolve(r, key)
}

// existingSession is session for requests that cannot set cookies, such as
// websocket upgrades.
func (s *Server) existingSession(r *http.Request) (*state.Session[*sessionData], error) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return nil, errNoSession
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return nil, errNoSession
	}
	return s.resolve(r, c.Value)
}

var errNoSession = errors.New("no session cookie")

func (s *Server) resolve(r *http.Request, key string) (*state.Session[*sessionData], error) {
	id, err := s.sessions.ResolveOrCreate(r.Context(), types.NewSessionKey("web", key))
	if err != nil {
		return nil, err
	}
	return s.sessions.Session(id)
}

// withSession runs fn with the caller's session locked.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(id types.SessionID, d *sessionData)) {
	sess, err := s.session(w, r)
	if err != nil {
		slog.Error("resolve session failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	sess.Lock()
	defer sess.Unlock()
	fn(sess.ID(), sess.Data)
}

func (s *Server) assetsDir() string {
	return filepath.Join(s.backend.BaseDir(), "assets")
}

// assetURL maps an icon to the URL it is served from.
func (s *Server) assetURL(p string) string {
	if p == "" {
		return ""
	}
	return assetPath(s.assetsDir(), p)
}

// assetPath maps p, relative to dir or absolute, to an /assets URL. A
// relative p that already starts with a relative dir is taken as under dir.
// Absolute paths outside dir have no URL.
func assetPath(dir, p string) string {
	if p == "" {
		return ""
	}
	dir, p = filepath.Clean(dir), filepath.Clean(p)
	if filepath.IsAbs(p) || underDir(dir, p) {
		rel, err := filepath.Rel(dir, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return ""
		}
		p = rel
	}
	return "/assets/" + (&url.URL{Path: filepath.ToSlash(p)}).EscapedPath()
}

func underDir(dir, p string) bool {
	return !filepath.IsAbs(dir) && dir != "." && strings.HasPrefix(p, dir+string(filepath.Separator))
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.PathValue("file"))
	http.ServeFile(w, r, filepath.Join(s.assetsDir(), filepath.FromSlash(name)))
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	name := r.PathValue("name")
	rc, meta, err := s.artifacts.Open(r.Context(), sess.ID(), name)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("open artifact failed", "name", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	download := strings.TrimPrefix(meta.Name, string(sess.ID())+"_")
	w.Header().Set("Content-Type", meta.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+download+`"`)
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, download, meta.CreatedAt, rs)
		return
	}
	io.Copy(w, rc)
}

func formInputs(r *http.Request) form.Values {
	r.ParseForm()
	in := form.Values{}
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			in[k] = vs[0]
		}
	}
	return in
}

func renderForm(root *form.Node, opts form.RenderOptions) (template.HTML, error) {
	var buf bytes.Buffer
	if err := form.Render(&buf, root, opts); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
