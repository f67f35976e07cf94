package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/user/chatverse/internal/group"
	"github.com/user/chatverse/internal/render"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

// TranscriptFile is written into every exported workspace.
const TranscriptFile = "transcript.md"

// TranscriptItem is one line of a group transcript. Attachment is set when
// the line is a file rather than text.
type TranscriptItem struct {
	Message    schema.GroupMessage
	Attachment *schema.AttachmentMessage
}

// GroupConversation is one run of a group agent. The run writes to it from
// the gateway while pages read it, so every access goes through its lock.
type GroupConversation struct {
	ID    types.ConversationID
	Topic string
	Agent *schema.GroupAgent

	mu            sync.Mutex
	items         []TranscriptItem
	finalArtifact string
	artifact      *types.ArtifactMeta
	cost          float64
	done          bool
	err           error
}

// NewGroupConversation starts a transcript with the user's idea.
func NewGroupConversation(agent *schema.GroupAgent, idea string) *GroupConversation {
	c := &GroupConversation{
		ID:    types.NewConversationID(),
		Topic: idea,
		Agent: agent,
	}
	sender := "You"
	icon := ""
	if u, err := agent.Character(schema.UserRole); err == nil {
		sender = u.Name
		icon = u.IconPath()
	}
	c.items = append(c.items, TranscriptItem{Message: schema.GroupMessage{
		SenderName: sender,
		Icon:       icon,
		Text:       idea,
		Timestamp:  time.Now(),
		Type:       schema.MessageUser,
	}})
	return c
}

// GroupSnapshot is a consistent copy of a GroupConversation.
type GroupSnapshot struct {
	Items         []TranscriptItem
	FinalArtifact string
	Artifact      *types.ArtifactMeta
	Cost          float64
	Done          bool
	Err           error
}

func (c *GroupConversation) Snapshot() GroupSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return GroupSnapshot{
		Items:         append([]TranscriptItem(nil), c.items...),
		FinalArtifact: c.finalArtifact,
		Artifact:      c.artifact,
		Cost:          c.cost,
		Done:          c.done,
		Err:           c.err,
	}
}

func (c *GroupConversation) add(item TranscriptItem) {
	c.mu.Lock()
	c.items = append(c.items, item)
	c.mu.Unlock()
}

// Event is a UI update produced while a group run progresses. It is sent to
// browsers as a websocket frame.
type Event struct {
	Type           string  `json:"type"`
	Sender         string  `json:"sender,omitempty"`
	Icon           string  `json:"icon,omitempty"`
	Text           string  `json:"text,omitempty"`
	AttachmentType string  `json:"attachment_type,omitempty"`
	Progress       float64 `json:"progress,omitempty"`
	Time           string  `json:"time,omitempty"`
}

// Event types.
const (
	EventMessage    = "message"
	EventToken      = "token"
	EventMessageEnd = "message_end"
	EventAttachment = "attachment"
	EventCost       = "cost"
	EventWorkspace  = "workspace"
	EventArtifact   = "artifact"
	EventError      = "error"
	EventDone       = "done"
)

// attachmentExtensions are the file types shown inline in a transcript.
var attachmentExtensions = map[string]bool{"jpg": true, "png": true, "jpeg": true}

// IsAttachment reports whether a generated file is shown in the transcript.
func IsAttachment(path string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return attachmentExtensions[ext]
}

// Progress is the share of the investment spent, capped at 1.
func Progress(cost, investment float64) float64 {
	if investment <= 0 {
		return 1
	}
	p := cost / investment
	if p > 1 {
		return 1
	}
	return p
}

// CostText labels the cost progress bar.
func CostText(cost, investment float64) string {
	return fmt.Sprintf("Cost: %.2f$ / %v $", cost, investment)
}

// GroupRecorder records a run's callbacks into a GroupConversation and
// forwards them as events.
type GroupRecorder struct {
	conv       *GroupConversation
	investment float64
	emit       func(Event)

	current *schema.GroupMessage
	text    strings.Builder
	pending []*schema.AttachmentMessage
}

// NewGroupRecorder records into conv. emit may be nil.
func NewGroupRecorder(conv *GroupConversation, investment float64, emit func(Event)) *GroupRecorder {
	if emit == nil {
		emit = func(Event) {}
	}
	return &GroupRecorder{conv: conv, investment: investment, emit: emit}
}

func (r *GroupRecorder) icon(sender group.SenderInfo) string {
	if c, err := r.conv.Agent.Character(sender.Role); err == nil {
		return c.IconPath()
	}
	return ""
}

func (r *GroupRecorder) OnNewMessage(sender group.SenderInfo) {
	r.current = &schema.GroupMessage{
		SenderName: sender.String(),
		Icon:       r.icon(sender),
		Timestamp:  time.Now(),
		Type:       schema.MessageAI,
	}
	r.text.Reset()
	r.emit(Event{Type: EventMessage, Sender: r.current.SenderName, Icon: r.current.Icon})
}

func (r *GroupRecorder) OnNewToken(token string) {
	r.text.WriteString(token)
	r.emit(Event{Type: EventToken, Text: token})
}

// OnMessageEnd stores the finished message, then releases attachments that
// arrived while it was streaming.
func (r *GroupRecorder) OnMessageEnd() {
	if r.current == nil {
		return
	}
	msg := *r.current
	msg.Text = r.text.String()
	msg.Timestamp = time.Now()
	r.conv.add(TranscriptItem{Message: msg})
	r.current = nil
	r.emit(Event{Type: EventMessageEnd, Sender: msg.SenderName, Text: msg.Text, Time: msg.Timestamp.Format(time.Kitchen)})

	for _, a := range r.pending {
		r.emitAttachment(a)
	}
	r.pending = nil
}

// OnNewFile adds image files to the transcript.
func (r *GroupRecorder) OnNewFile(sender group.SenderInfo, fileType, path string) {
	if !IsAttachment(path) {
		return
	}
	a, err := schema.NewAttachmentMessage(sender.String(), r.icon(sender), path, fileType)
	if err != nil {
		slog.Debug("skipping attachment", "path", path, "error", err)
		return
	}
	r.conv.add(TranscriptItem{Message: a.GroupMessage, Attachment: a})
	if r.current != nil {
		r.pending = append(r.pending, a)
		return
	}
	r.emitAttachment(a)
}

func (r *GroupRecorder) emitAttachment(a *schema.AttachmentMessage) {
	r.emit(Event{Type: EventAttachment, Sender: a.SenderName, Icon: a.Icon, Text: a.Text, AttachmentType: a.AttachmentType})
}

func (r *GroupRecorder) OnCostUpdated(cost float64) {
	r.conv.mu.Lock()
	r.conv.cost = cost
	r.conv.mu.Unlock()
	r.emit(Event{Type: EventCost, Progress: Progress(cost, r.investment), Text: CostText(cost, r.investment)})
}

func (r *GroupRecorder) OnWorkspaceGenerated(path string) {
	r.conv.mu.Lock()
	r.conv.finalArtifact = path
	r.conv.mu.Unlock()
	r.emit(Event{Type: EventWorkspace, Text: path})
}

// RunGroup runs conv's agent on its topic and exports the workspace. The
// outcome is also recorded on conv.
func (b *Backend) RunGroup(ctx context.Context, sessionID types.SessionID, runID types.RunID, conv *GroupConversation, setting schema.GroupSetting, emit func(Event)) error {
	rec := NewGroupRecorder(conv, setting.Investment, emit)
	res, err := b.pipeline.Run(ctx, conv.Agent, setting, conv.Topic, rec)
	if res != nil {
		b.metrics.AddCost(res.Cost)
	}
	if err == nil {
		var meta *types.ArtifactMeta
		meta, err = b.ExportGroupRun(ctx, sessionID, runID, conv)
		if err == nil {
			rec.emit(Event{Type: EventArtifact, Text: meta.Name})
		}
	}

	conv.mu.Lock()
	conv.done = true
	conv.err = err
	conv.mu.Unlock()

	if err != nil {
		rec.emit(Event{Type: EventError, Text: err.Error()})
		return err
	}
	rec.emit(Event{Type: EventDone})
	return nil
}

// ExportGroupRun writes the transcript into the run's workspace and zips
// the workspace for download.
func (b *Backend) ExportGroupRun(ctx context.Context, sessionID types.SessionID, runID types.RunID, conv *GroupConversation) (*types.ArtifactMeta, error) {
	snap := conv.Snapshot()
	if snap.FinalArtifact == "" {
		return nil, fmt.Errorf("export group run: no workspace generated")
	}

	md, err := Transcript(conv, snap.Items)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(snap.FinalArtifact, TranscriptFile), []byte(md), 0o644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	meta, err := b.artifacts.Export(ctx, sessionID, runID, snap.FinalArtifact)
	if err != nil {
		return nil, fmt.Errorf("export group run: %w", err)
	}
	b.metrics.ArtifactExported()

	conv.mu.Lock()
	conv.artifact = meta
	conv.mu.Unlock()
	slog.Info("artifact exported", "session_id", string(sessionID), "name", meta.Name, "size", meta.Size)
	return meta, nil
}

// Transcript renders items as markdown.
func Transcript(conv *GroupConversation, items []TranscriptItem) (string, error) {
	entries := make([]render.Entry, 0, len(items))
	for _, it := range items {
		body := it.Message.Text
		if it.Attachment != nil {
			body = fmt.Sprintf("Attached %s file `%s`", it.Attachment.AttachmentType, filepath.Base(it.Attachment.Text))
		}
		entries = append(entries, render.Entry{
			Heading: it.Message.SenderName,
			Meta:    it.Message.Timestamp.Format("2006-01-02 15:04:05"),
			Body:    body,
		})
	}
	title := conv.Topic
	if conv.Agent != nil {
		title = conv.Agent.Name + ": " + conv.Topic
	}
	md, err := render.Transcript(title, entries)
	if err != nil {
		return "", fmt.Errorf("render transcript: %w", err)
	}
	return md, nil
}
