package web

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/user/chatverse/internal/backend"
	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/models"
	"github.com/user/chatverse/internal/render"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// thinkingText stands in for a reply until its first token arrives.
const thinkingText = "I am thinking..."

// argsPrefix namespaces the sidebar inputs.
const argsPrefix = "args:"

var errNoModels = errors.New("no models configured")

type option struct {
	Key      string
	Name     string
	Selected bool
}

type conversationLink struct {
	ID     string
	Topic  string
	Active bool
}

type chatMessage struct {
	User   bool
	HTML   template.HTML
	Footer string
}

type chatView struct {
	Models        []option
	Locked        bool
	Model         *schema.ModelMetaInfo
	IconURL       string
	ShowIcon      bool
	Args          template.HTML
	HasArgs       bool
	Conversations []conversationLink
	Messages      []chatMessage
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		view, err := s.chatView(d)
		if err != nil {
			d.notify(levelError, "%v", err)
		}
		s.render(w, "chat", "Chat with LLMs", d, view)
	})
}

func (s *Server) chatView(d *sessionData) (*chatView, error) {
	view := &chatView{Locked: d.Current != nil, ShowIcon: d.Current == nil}
	meta := d.Chosen()
	for _, m := range d.Models {
		view.Models = append(view.Models, option{Key: m.Key, Name: m.Name, Selected: meta != nil && m.Key == meta.Key})
	}
	for _, c := range d.SummarizedConversations() {
		view.Conversations = append(view.Conversations, conversationLink{
			ID:     string(c.ID),
			Topic:  c.Topic,
			Active: c == d.Current,
		})
	}
	if meta == nil {
		return view, errNoModels
	}
	view.Model = meta
	view.IconURL = s.assetURL(meta.Icon)

	args := d.RequiredArgs(meta)
	if fields := args.Fields(form.EditMode); len(fields) > 0 {
		tree, err := form.Serialize(args, form.EditMode)
		if err != nil {
			return view, err
		}
		if view.Args, err = renderForm(tree, form.RenderOptions{Edit: true, Prefix: argsPrefix}); err != nil {
			return view, err
		}
		view.HasArgs = true
	}

	if d.Current != nil {
		view.Messages = chatMessages(d.Current.Messages())
	}
	return view, nil
}

// chatMessages renders a history. Replies carry the time taken since the
// message they answer.
func chatMessages(history []schema.Message) []chatMessage {
	out := make([]chatMessage, 0, len(history))
	var asked time.Time
	for _, m := range history {
		if m.Type == schema.MessageUser {
			asked = m.Timestamp
			out = append(out, chatMessage{User: true, HTML: render.Markdown(m.Text), Footer: m.Timestamp.Format(clockLayout)})
			continue
		}
		footer := m.Timestamp.Format(clockLayout)
		if !asked.IsZero() {
			footer = elapsedFooter(asked, m.Timestamp)
		}
		out = append(out, chatMessage{HTML: render.Markdown(m.Text), Footer: footer})
	}
	return out
}

func (s *Server) handleChatNew(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		d.SelectConversation("")
	})
	redirect(w, r, "/chat")
}

func (s *Server) handleChatSelect(w http.ResponseWriter, r *http.Request) {
	id := types.ConversationID(r.FormValue("conversation"))
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if err := d.SelectConversation(id); err != nil {
			d.notify(levelWarning, "%v", err)
		}
	})
	redirect(w, r, "/chat")
}

func (s *Server) handleChatModel(w http.ResponseWriter, r *http.Request) {
	key := r.FormValue("model")
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if d.Current != nil {
			d.notify(levelInfo, "Start a new conversation to change the model")
			return
		}
		if _, err := d.Model(key); err != nil {
			d.notify(levelWarning, "%v", err)
			return
		}
		d.ChosenModel = key
	})
	redirect(w, r, "/chat")
}

// handleChatArgs stores the sidebar values in the session's shared state,
// where the next conversation picks them up.
func (s *Server) handleChatArgs(w http.ResponseWriter, r *http.Request) {
	in := formInputs(r)
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		meta := d.Chosen()
		if meta == nil {
			d.notify(levelWarning, "%v", errNoModels)
			return
		}
		args := d.RequiredArgs(meta)
		tree, err := form.Serialize(args, form.EditMode)
		if err != nil {
			d.notifyErr(err)
			return
		}
		if err := form.ValidateAndApply(args, tree, form.PrefixedInputs{Prefix: argsPrefix, Inputs: in}); err != nil {
			d.notifyErr(err)
			return
		}
		d.SetShared(args.Values())
		d.notify(levelSuccess, "Arguments saved")
	})
	redirect(w, r, "/chat")
}

// conversation returns the current conversation, starting one with the
// chosen model and the sidebar arguments when there is none.
func (s *Server) conversation(d *sessionData, text string) (*backend.Conversation, error) {
	if d.Current != nil {
		return d.Current, nil
	}
	meta := d.Chosen()
	if meta == nil {
		return nil, errNoModels
	}
	conv, err := s.backend.StartConversation(text, meta, d.RequiredArgs(meta).Values())
	if err != nil {
		return nil, err
	}
	d.AddConversation(conv)
	return conv, nil
}

// handleChatMessage is the form fallback for browsers without websockets.
func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.FormValue("message"))
	s.withSession(w, r, func(_ types.SessionID, d *sessionData) {
		if text == "" {
			return
		}
		if err := s.exchange(r.Context(), d, text, func(chatFrame) {}); err != nil {
			slog.Error("chat message failed", "error", err)
			d.notify(levelError, "%v", err)
		}
	})
	redirect(w, r, "/chat")
}

type chatRequest struct {
	Message string `json:"message"`
}

// chatFrame is a server to browser message on /ws/chat.
type chatFrame struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	HTML   string `json:"html,omitempty"`
	Footer string `json:"footer,omitempty"`
	ID     string `json:"id,omitempty"`
}

// Chat frame types.
const (
	frameUser         = "user"
	frameThinking     = "thinking"
	frameToken        = "token"
	frameMessage      = "message"
	frameSummaryToken = "summary_token"
	frameTopic        = "topic"
	frameError        = "error"
)

// exchange sends text to the conversation and, for a new conversation,
// asks the model for a topic. Progress is reported through send.
func (s *Server) exchange(ctx context.Context, d *sessionData, text string, send func(chatFrame)) error {
	asked := time.Now()
	send(chatFrame{Type: frameUser, Text: text, HTML: string(render.Markdown(text)), Footer: asked.Format(clockLayout)})
	send(chatFrame{Type: frameThinking, Text: thinkingText})

	conv, err := s.conversation(d, text)
	if err != nil {
		return err
	}
	reply, err := s.backend.Prompt(ctx, conv, text, models.HandlerFuncs{
		Token: func(tok string) { send(chatFrame{Type: frameToken, Text: tok}) },
	})
	if err != nil {
		return err
	}
	send(chatFrame{
		Type:   frameMessage,
		Text:   reply,
		HTML:   string(render.Markdown(reply)),
		Footer: elapsedFooter(asked, time.Now()),
	})

	if conv.Summarized {
		return nil
	}
	topic, err := s.backend.SummarizeConversation(ctx, conv, text, models.HandlerFuncs{
		Token: func(tok string) { send(chatFrame{Type: frameSummaryToken, Text: tok}) },
	})
	if err != nil {
		slog.Warn("summarize conversation failed", "conversation_id", string(conv.ID), "error", err)
		return nil
	}
	send(chatFrame{Type: frameTopic, Text: topic, ID: string(conv.ID)})
	return nil
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
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

	send := func(f chatFrame) {
		if err := conn.send(f.Type, f); err != nil {
			slog.Debug("chat frame dropped", "type", f.Type, "error", err)
		}
	}
	for {
		var req chatRequest
		if err := conn.read(&req); err != nil {
			return
		}
		text := strings.TrimSpace(req.Message)
		if text == "" {
			continue
		}
		sess.Lock()
		err := s.exchange(ctx, sess.Data, text, send)
		sess.Unlock()
		if err != nil {
			slog.Error("chat message failed", "session_id", string(sess.ID()), "error", err)
			send(chatFrame{Type: frameError, Text: err.Error()})
		}
		if ctx.Err() != nil {
			return
		}
	}
}
