package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/chatverse/internal/form"
	"github.com/user/chatverse/internal/schema"
	"github.com/user/chatverse/internal/types"
)

var ErrNotFound = errors.New("not found")

// sharedAPIKey is the shared-state entry group settings read their key from.
const sharedAPIKey = "openai_api_key"

// DuplicateNameError rejects a model name another model already uses. Its
// text is shown to the user as is.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("Model with name %s already exists", e.Name)
}

// State is everything one browser session works with. Nothing in it is
// shared with other sessions.
type State struct {
	Shared map[string]any

	Models        []*schema.ModelMetaInfo
	ChosenModel   string
	Conversations []*Conversation
	Current       *Conversation

	GroupAgents  []*schema.GroupAgent
	CurrentAgent string
	Groups       []*GroupConversation
	CurrentGroup *GroupConversation
	Settings     map[string]*schema.GroupSetting
	// savedSettings marks agents whose setting the user submitted. Their API
	// key is never refilled from shared state, so it can be cleared.
	savedSettings map[string]bool
}

// Model returns the session's model with key.
func (s *State) Model(key string) (*schema.ModelMetaInfo, error) {
	for _, m := range s.Models {
		if m.Key == key {
			return m, nil
		}
	}
	return nil, fmt.Errorf("model %s: %w", key, ErrNotFound)
}

// Chosen returns the model picked on the chat page, defaulting to the first.
func (s *State) Chosen() *schema.ModelMetaInfo {
	if m, err := s.Model(s.ChosenModel); err == nil {
		return m
	}
	if len(s.Models) == 0 {
		return nil
	}
	return s.Models[0]
}

// ModelExists reports whether any model other than the one keyed ignore is
// named name.
func ModelExists(models []*schema.ModelMetaInfo, name, ignore string) bool {
	name = strings.TrimSpace(name)
	for _, m := range models {
		if m.Key != ignore && m.Name == name {
			return true
		}
	}
	return false
}

// CheckName fails with a DuplicateNameError when name is taken.
func (s *State) CheckName(name, ignore string) error {
	if ModelExists(s.Models, name, ignore) {
		return &DuplicateNameError{Name: name}
	}
	return nil
}

// SessionModelKey is the key a model created in a session receives.
func SessionModelKey(existing int, name string) string {
	return fmt.Sprintf("%d_%s", existing, name)
}

// AddSessionModel appends m as a non-persistent model of this session.
func (s *State) AddSessionModel(m *schema.ModelMetaInfo) error {
	m.Name = strings.TrimSpace(m.Name)
	if err := s.CheckName(m.Name, ""); err != nil {
		return err
	}
	m.Key = SessionModelKey(len(s.Models), m.Name)
	m.IsPersistent = false
	s.Models = append(s.Models, m)
	return nil
}

// DeleteModel removes the model and every conversation held with it.
func (s *State) DeleteModel(key string) error {
	idx := -1
	for i, m := range s.Models {
		if m.Key == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("model %s: %w", key, ErrNotFound)
	}
	s.Models = append(s.Models[:idx:idx], s.Models[idx+1:]...)

	kept := s.Conversations[:0:0]
	for _, c := range s.Conversations {
		if c.ModelKey != key {
			kept = append(kept, c)
		}
	}
	s.Conversations = kept
	if s.Current != nil && s.Current.ModelKey == key {
		s.Current = nil
	}
	if s.ChosenModel == key {
		s.ChosenModel = ""
	}
	return nil
}

// SessionModels and PersistentModels split the models for the two tabs of
// the models page.
func (s *State) SessionModels() []*schema.ModelMetaInfo    { return s.filterModels(false) }
func (s *State) PersistentModels() []*schema.ModelMetaInfo { return s.filterModels(true) }

func (s *State) filterModels(persistent bool) []*schema.ModelMetaInfo {
	var out []*schema.ModelMetaInfo
	for _, m := range s.Models {
		if m.IsPersistent == persistent {
			out = append(out, m)
		}
	}
	return out
}

// AddConversation records conv and makes it current.
func (s *State) AddConversation(conv *Conversation) {
	s.Conversations = append(s.Conversations, conv)
	s.Current = conv
	s.ChosenModel = conv.ModelKey
}

// SelectConversation makes the conversation with id current. An empty id
// clears the selection so that the next message starts a new one.
func (s *State) SelectConversation(id types.ConversationID) error {
	if id == "" {
		s.Current = nil
		return nil
	}
	for _, c := range s.Conversations {
		if c.ID == id {
			s.Current = c
			s.ChosenModel = c.ModelKey
			return nil
		}
	}
	return fmt.Errorf("conversation %s: %w", id, ErrNotFound)
}

// SummarizedConversations lists the conversations that have a topic, newest
// first.
func (s *State) SummarizedConversations() []*Conversation {
	var out []*Conversation
	for i := len(s.Conversations) - 1; i >= 0; i-- {
		if s.Conversations[i].Summarized {
			out = append(out, s.Conversations[i])
		}
	}
	return out
}

// NewModelFrom returns the record the create form starts from: a copy of
// base that inherits from it.
func NewModelFrom(base *schema.ModelMetaInfo) *schema.ModelMetaInfo {
	m := base.Clone()
	m.Key = ""
	m.InheritsFrom = base.Key
	m.IsPersistent = false
	return m
}

// ModelFactory builds a new model from create-form values. Fields the form
// does not carry are copied from base.
func ModelFactory(base *schema.ModelMetaInfo) form.Factory {
	return func(values map[string]any) (form.Record, error) {
		m := NewModelFrom(base)
		var errs form.ValidationErrors
		for name, v := range values {
			if err := m.SetValue(name, v); err != nil {
				errs.Add(name, "%v", err)
			}
		}
		if err := errs.Err(); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// RequiredArgs returns the sidebar values for meta: shared state first, then
// the model's own llm_arguments, then the type's zero value.
func (s *State) RequiredArgs(meta *schema.ModelMetaInfo) *ArgsRecord {
	fields := meta.RequiredFields()
	values := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := s.Shared[f.Name]; ok && v != nil {
			values[f.Name] = v
		} else if v, ok := meta.LLMArguments[f.Name]; ok && v != nil {
			values[f.Name] = v
		} else {
			values[f.Name] = f.Type.Zero()
		}
	}
	return &ArgsRecord{fields: fields, values: values}
}

// SetShared stores values in the session's shared state.
func (s *State) SetShared(values map[string]any) {
	if s.Shared == nil {
		s.Shared = map[string]any{}
	}
	for k, v := range values {
		s.Shared[k] = v
	}
}

// Agent returns the session's group agent with key.
func (s *State) Agent(key string) (*schema.GroupAgent, error) {
	for _, g := range s.GroupAgents {
		if g.Key == key {
			return g, nil
		}
	}
	return nil, fmt.Errorf("group agent %s: %w", key, ErrNotFound)
}

// ChosenAgent returns the agent picked on the group page, defaulting to the
// first.
func (s *State) ChosenAgent() *schema.GroupAgent {
	if g, err := s.Agent(s.CurrentAgent); err == nil {
		return g
	}
	if len(s.GroupAgents) == 0 {
		return nil
	}
	return s.GroupAgents[0]
}

// Setting returns the session's setting for agent, starting from the
// agent's configured setting. Until the user saves one, an unset API key is
// taken from shared state.
func (s *State) Setting(agent *schema.GroupAgent) *schema.GroupSetting {
	if s.Settings == nil {
		s.Settings = map[string]*schema.GroupSetting{}
	}
	st, ok := s.Settings[agent.Key]
	if !ok {
		c := agent.Setting
		st = &c
		s.Settings[agent.Key] = st
	}
	if st.OpenAIAPIKey == "" && !s.savedSettings[agent.Key] {
		if key, ok := s.Shared[sharedAPIKey].(string); ok {
			st.OpenAIAPIKey = key
		}
	}
	return st
}

// SaveSetting keeps a validated setting and shares its API key with the
// rest of the session. An empty API key stays empty.
func (s *State) SaveSetting(agentKey string, st *schema.GroupSetting) {
	if s.Settings == nil {
		s.Settings = map[string]*schema.GroupSetting{}
	}
	if s.savedSettings == nil {
		s.savedSettings = map[string]bool{}
	}
	s.Settings[agentKey] = st
	s.savedSettings[agentKey] = true
	if st.OpenAIAPIKey != "" {
		s.SetShared(map[string]any{sharedAPIKey: st.OpenAIAPIKey})
	}
}

// AddGroup records conv and makes it current.
func (s *State) AddGroup(conv *GroupConversation) {
	s.Groups = append(s.Groups, conv)
	s.CurrentGroup = conv
}
