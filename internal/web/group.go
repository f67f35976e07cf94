package web

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/gateway"
	"github.com/user/chatverse/internal/render"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// settingPrefix namespaces the group setting inputs.
const settingPrefix = "setting:"

var (
	errNoAgents    = errors.New("no group agents configured")
	errRunInFlight = errors.New("a group run is already in progress")
)

type characterView struct {
	Name        string
	Role        string
	Description string
	IconURL     string
}

type transcriptItem struct {
	Sender         string
	IconURL        string
	User           bool
	HTML           template.HTML
	ImageURL       string
	AttachmentType string
	Time           string
}

type groupView struct {
	Agents     []option
	Agent      *schema.GroupAgent
	IconURL    string
	FlowURL    string
	Characters []characterView
	Setting    template.HTML
	Running    bool
	Transcript []transcriptItem
	Progress   float64
	CostText   string
	Error      string
	Artifact   *types.ArtifactMeta
	Artifacts  []*types.ArtifactMeta
}

func (s *Server) handleGroup(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(id types.SessionID, d *sessionData) {
		view, err := s.groupView(r.Context(), id, d)
		if err != nil {
			d.notify(levelError, "%v", err)
		}
		s.render(w, "group", "Group Chat", d, view)
	})
}

func (s *Server) groupView(ctx context.Context, id types.SessionID, d *sessionData) (*groupView, error) {
	view := &groupView{Running: s.gateway.Busy(id)}
	agent := d.ChosenAgent()
	for _, g := range d.GroupAgents {
		view.Agents = append(view.Agents, option{Key: g.Key, Name: g.Name, Selected: agent != nil && g.Key == agent.Key})
	}
	if agent == nil {
		return view, errNoAgents
	}
	view.Agent = agent
	view.IconURL = s.assetURL(agent.IconPath())
	view.FlowURL = s.assetURL(agent.FlowDiagramPath())
	for _, c := range agent.Characters {
		view.Characters = append(view.Characters, characterView{
			Name:        c.Name,
			Role:        c.Role,
			Description: c.Description,
			IconURL:     s.assetURL(c.IconPath()),
		})
	}

	setting := d.Setting(agent)
	tree, err := form.Serialize(setting, form.EditMode)
	if err != nil {
		return view, err
	}
	if view.Setting, err = renderForm(tree, form.RenderOptions{Edit: true, Prefix: settingPrefix}); err != nil {
		return view, err
	}

	if list, err := s.artifacts.List(ctx, id); err == nil {
		view.Artifacts = list
	} else {
		slog.Warn("list artifacts failed", "session_id", string(id), "error", err)
	}

	conv := d.CurrentGroup
	if conv == nil || conv.Agent.Key != agent.Key {
		return view, nil
	}
	snap := conv.Snapshot()
	for _, it := range snap.Items {
		view.Transcript = append(view.Transcript, s.transcriptItem(conv, it))
	}
	view.Progress = backend.Progress(snap.Cost, setting.Investment)
	view.CostText = backend.CostText(snap.Cost, setting.Investment)
	view.Artifact = snap.Artifact
	if snap.Err != nil {
		view.Error = snap.Err.Error()
	}
	return view, nil
}

func attachmentURL(conv *backend.GroupConversation, path string) string {
	return "/group/" + url.PathEscape(string(conv.ID)) + "/attachments/" + url.PathEscape(filepath.Base(path))
}

func (s *Server) transcriptItem(conv *backend.GroupConversation, it backend.TranscriptItem) transcriptItem {
	out := transcriptItem{
		Sender:  it.Message.SenderName,
		IconURL: s.assetURL(it.Message.Icon),
		User:    it.Message.Type == schema.MessageUser,
		Time:    it.Message.Timestamp.Format(clockLayout),
	}
	if it.Attachment != nil {
		out.ImageURL = attachmentURL(conv, it.Attachment.Text)
		out.AttachmentType = it.Attachment.AttachmentType
		return out
	}
	out.HTML = render.Markdown(it.Message.Text)
	return out
}

func (s *Server) handleGroupSelect(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("agent")
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if _, err := d.Agent(key); err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		d.CurrentAgent = key
	})
	redirect(w, r, "/group")
}

func (s *Server) handleGroupSetting(w http.ResponseWriter, r *http.Request) {
	in := formInputs(r)
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		agent := d.ChosenAgent()
		if agent == nil {
			d.notify(levelWarning, "%v", errNoAgents)
			return
		}
		setting := *d.Setting(agent)
		tree, err := form.Serialize(&setting, form.EditMode)
		if err != nil {
			d.notifyErr(err)
			return
		}
		if err := form.ValidateAndApply(&setting, tree, form.PrefixedInputs{Prefix: settingPrefix, Inputs: in}); err != nil {
			d.notifyErr(err)
			return
		}
		d.SaveSetting(agent.Key, &setting)
		d.notify(levelSuccess, "Settings saved")
	})
	redirect(w, r, "/group")
}

// startRun queues a group run for the chosen agent. The returned channel
// yields the run's result once it finishes.
func (s *Server) startRun(ctx context.Context, id types.SessionID, d *sessionData, idea string, emit func(backend.Event)) (<-chan error, error) {
	if s.gateway.Busy(id) {
		return nil, errRunInFlight
	}
	agent := d.ChosenAgent()
	if agent == nil {
		return nil, errNoAgents
	}
	setting := *d.Setting(agent)
	if err := setting.Validate(); err != nil {
		return nil, err
	}

	conv := backend.NewGroupConversation(agent, idea)
	if emit != nil {
		emit = s.browserEvents(conv, emit)
	}
	done := make(chan error, 1)
	work := func(ctx context.Context) error {
		var runID types.RunID
		if run, ok := gateway.RunFromContext(ctx); ok {
			runID = run.ID
		}
		return s.backend.RunGroup(ctx, id, runID, conv, setting, emit)
	}
	if _, err := s.gateway.Submit(ctx, id, "group", work, gateway.WithOnComplete(func(err error) { done <- err })); err != nil {
		return nil, err
	}
	d.AddGroup(conv)
	return done, nil
}

// browserEvents rewrites the file paths in run events into URLs.
func (s *Server) browserEvents(conv *backend.GroupConversation, emit func(backend.Event)) func(backend.Event) {
	return func(e backend.Event) {
		e.Icon = s.assetURL(e.Icon)
		switch e.Type {
		case backend.EventAttachment:
			e.Text = attachmentURL(conv, e.Text)
		case backend.EventWorkspace:
			e.Text = filepath.Base(e.Text)
		case backend.EventArtifact:
			e.Text = "/artifacts/" + url.PathEscape(e.Text)
		}
		emit(e)
	}
}

// handleGroupRun is the form fallback: it waits for the run to finish.
func (s *Server) handleGroupRun(w http.ResponseWriter, r *http.Request) {
	idea := strings.TrimSpace(r.FormValue("idea"))
	sess, err := s.session(w, r)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if idea == "" {
		redirect(w, r, "/group")
		return
	}

	sess.Lock()
	done, err := s.startRun(r.Context(), sess.ID(), sess.Data, idea, nil)
	if err != nil {
		sess.Data.notify(levelWarning, "%v", err)
	}
	sess.Unlock()

	// A failed run is shown from the conversation itself.
	if done != nil {
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
	}
	redirect(w, r, "/group")
}

type groupRequest struct {
	Idea string `json:"idea"`
}

func (s *Server) handleGroupWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.existingSession(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, ctx, err := s.upgrade(w, r)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.close()

	emit := func(e backend.Event) {
		if err := conn.send(e.Type, e); err != nil {
			slog.Debug("group frame dropped", "type", e.Type, "error", err)
		}
	}
	for {
		var req groupRequest
		if err := conn.read(&req); err != nil {
			return
		}
		idea := strings.TrimSpace(req.Idea)
		if idea == "" {
			continue
		}

		sess.Lock()
		done, err := s.startRun(ctx, sess.ID(), sess.Data, idea, emit)
		sess.Unlock()
		if err != nil {
			emit(backend.Event{Type: backend.EventError, Text: err.Error()})
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// handleGroupAttachment serves an image produced by one of the session's
// group runs.
func (s *Server) handleGroupAttachment(w http.ResponseWriter, r *http.Request) {
	id := types.ConversationID(r.PathValue("id"))
	name := r.PathValue("name")

	var file string
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		for _, g := range d.Groups {
			if g.ID != id {
				continue
			}
			for _, it := range g.Snapshot().Items {
				if it.Attachment != nil && filepath.Base(it.Attachment.Text) == name {
					file = it.Attachment.Text
				}
			}
		}
	})
	if file == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, file)
}
