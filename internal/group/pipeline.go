package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/user/chatverse/internal/models"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/pkg/llm"
)

const (
	DefaultRounds           = 5
	DefaultPricePer1KTokens = 0.002
	DefaultModel            = "gpt-3.5-turbo"
)

var ErrMissingAPIKey = errors.New("OpenAI API key is required")

// Config holds what a pipeline needs beyond the per-run setting.
type Config struct {
	// WorkspaceDir is the directory run workspaces are created under.
	WorkspaceDir     string
	BaseURL          string
	Model            string
	PricePer1KTokens float64
	Rounds           int
	NewProvider      models.ProviderFactory
	Counter          models.TokenCounter
}

// Pipeline runs group agents.
type Pipeline struct {
	cfg Config
}

// New fills unset fields of cfg with defaults.
func New(cfg Config) *Pipeline {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.PricePer1KTokens <= 0 {
		cfg.PricePer1KTokens = DefaultPricePer1KTokens
	}
	if cfg.Rounds <= 0 {
		cfg.Rounds = DefaultRounds
	}
	if cfg.NewProvider == nil {
		cfg.NewProvider = models.OpenAIProvider
	}
	if cfg.Counter == nil {
		cfg.Counter = models.DefaultCounter()
	}
	return &Pipeline{cfg: cfg}
}

// Result summarizes a finished run.
type Result struct {
	Workspace string
	Files     []string
	Cost      float64
	Turns     int
}

type run struct {
	p         *Pipeline
	provider  llm.Provider
	h         Handler
	idea      string
	workspace string
	docs      []document
	result    Result
}

type document struct {
	file string
	text string
}

// Run staffs the agent's characters for setting, lets each hired role take
// one turn on idea and returns the workspace holding their documents. It
// stops early once the spend reaches setting.Investment.
func (p *Pipeline) Run(ctx context.Context, agent *schema.GroupAgent, setting schema.GroupSetting, idea string, h Handler) (*Result, error) {
	if strings.TrimSpace(setting.OpenAIAPIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	hired := RolesToHire(setting)
	cast := make([]*schema.GroupAgentCharacter, len(hired))
	for i, name := range hired {
		c, err := agent.Character(name)
		if err != nil {
			return nil, err
		}
		cast[i] = c
	}

	workspace, err := newWorkspace(p.cfg.WorkspaceDir, idea)
	if err != nil {
		return nil, err
	}

	provider := p.cfg.NewProvider(&llm.Config{
		BaseURL: p.cfg.BaseURL,
		APIKey:  setting.OpenAIAPIKey,
		Model:   p.cfg.Model,
	})
	r := &run{
		p:         p,
		provider:  provider,
		h:         h,
		idea:      idea,
		workspace: workspace,
	}
	r.result.Workspace = workspace

	slog.Info("group run started", "agent", agent.Key, "roles", strings.Join(hired, ","), "workspace", workspace)

	for i, name := range hired {
		if i >= p.cfg.Rounds {
			break
		}
		if err := ctx.Err(); err != nil {
			return &r.result, err
		}
		sender := SenderInfo{Name: cast[i].Name, Role: name}
		if err := r.turn(ctx, sender, roles[name], cast[i].Description, setting); err != nil {
			return &r.result, err
		}
		r.result.Turns++
		if r.result.Cost >= setting.Investment {
			slog.Info("group run stopped at investment", "agent", agent.Key, "cost", r.result.Cost, "investment", setting.Investment)
			break
		}
	}

	h.OnWorkspaceGenerated(workspace)
	slog.Info("group run finished", "agent", agent.Key, "turns", r.result.Turns, "cost", r.result.Cost)
	return &r.result, nil
}

func (r *run) turn(ctx context.Context, sender SenderInfo, ro role, persona string, setting schema.GroupSetting) error {
	prompt := r.prompt(sender, ro.instruction, persona)
	if err := r.speak(ctx, sender, ro.file, prompt); err != nil {
		return err
	}

	if ro.name == RoleEngineer && setting.CodeReview {
		prompt := r.prompt(sender, reviewInstruction, persona)
		if err := r.speak(ctx, sender, reviewFile, prompt); err != nil {
			return err
		}
	}
	return nil
}

// speak streams one message, stores it as file and charges for it.
func (r *run) speak(ctx context.Context, sender SenderInfo, file string, prompt []llm.Message) error {
	r.h.OnNewMessage(sender)

	stream, err := r.provider.Stream(ctx, prompt)
	if err != nil {
		return fmt.Errorf("%s: %w", sender.Role, err)
	}
	text, err := llm.Collect(stream, r.h.OnNewToken)
	if err != nil {
		return fmt.Errorf("%s: %w", sender.Role, err)
	}
	r.h.OnMessageEnd()

	path := filepath.Join(r.workspace, file)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", file, err)
	}
	r.docs = append(r.docs, document{file: file, text: text})
	r.result.Files = append(r.result.Files, path)
	r.h.OnNewFile(sender, strings.TrimPrefix(filepath.Ext(file), "."), path)

	tokens := 0
	for _, m := range prompt {
		tokens += r.p.cfg.Counter.Count(m.Content)
	}
	tokens += r.p.cfg.Counter.Count(text)
	r.result.Cost += float64(tokens) * r.p.cfg.PricePer1KTokens / 1000
	r.h.OnCostUpdated(r.result.Cost)
	return nil
}

func (r *run) prompt(sender SenderInfo, instruction, persona string) []llm.Message {
	system := fmt.Sprintf("You are %s, the %s of a software team.", sender.Name, sender.Role)
	if persona != "" {
		system += " " + persona
	}
	system += " Respond in Markdown."

	var user strings.Builder
	fmt.Fprintf(&user, "Idea:\n%s\n", r.idea)
	for _, d := range r.docs {
		fmt.Fprintf(&user, "\n## %s\n\n%s\n", d.file, d.text)
	}
	fmt.Fprintf(&user, "\n%s", instruction)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user.String()},
	}
}

// newWorkspace creates a fresh directory named after idea under root.
func newWorkspace(root, idea string) (string, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create workspace root: %w", err)
	}
	base := Slug(idea)
	name := base
	for i := 2; ; i++ {
		dir := filepath.Join(root, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create workspace: %w", err)
		}
		name = base + "_" + strconv.Itoa(i)
	}
}

const maxSlug = 40

// Slug turns free text into a lower_snake directory name.
func Slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > maxSlug {
		out = strings.TrimRight(out[:maxSlug], "_")
	}
	if out == "" {
		return "project"
	}
	return out
}
