package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/user/chatverse/internal/form"
)

const (
	// DefaultIcon is the asset shown for models that do not set one.
	DefaultIcon = "llm_model.png"
	// DefaultSystemMessage primes every model that does not set one.
	DefaultSystemMessage = "You are a helpful assistant that responds in Markdown format."

	minNameLength        = 3
	minDescriptionLength = 20
)

// RequiredArgumentTypes are the widget types a model may ask the chat
// sidebar to collect.
var RequiredArgumentTypes = []form.Type{
	form.String, form.Int, form.Float, form.Bool, form.SecretString, form.LongString,
}

// ModelMetaInfo describes a configured model: how to build it and how the UI
// presents it.
type ModelMetaInfo struct {
	BaseDir              string            `mapstructure:"base_dir"`
	Key                  string            `mapstructure:"key"`
	Name                 string            `mapstructure:"name"`
	Description          string            `mapstructure:"description"`
	LLMModelFile         string            `mapstructure:"llm_model_file"`
	LLMModelClass        string            `mapstructure:"llm_model_class"`
	SupportsStream       bool              `mapstructure:"supports_stream"`
	Icon                 string            `mapstructure:"icon"`
	SystemMessage        string            `mapstructure:"system_message"`
	LLMArguments         map[string]any    `mapstructure:"llm_arguments"`
	MemoryArguments      map[string]any    `mapstructure:"memory_arguments"`
	RequiredLLMArguments map[string]string `mapstructure:"required_llm_arguments"`
	InheritsFrom         string            `mapstructure:"inherits_from"`
	IsPersistent         bool              `mapstructure:"is_persistent"`
}

// DefaultModelMetaInfo returns a record carrying every default value.
func DefaultModelMetaInfo() *ModelMetaInfo {
	return &ModelMetaInfo{
		Icon:                 DefaultIcon,
		SystemMessage:        DefaultSystemMessage,
		LLMArguments:         map[string]any{},
		MemoryArguments:      map[string]any{},
		RequiredLLMArguments: map[string]string{},
		IsPersistent:         true,
	}
}

// NewModelMetaInfo decodes values over the defaults and validates the result.
func NewModelMetaInfo(values map[string]any) (*ModelMetaInfo, error) {
	m := DefaultModelMetaInfo()
	if err := Decode(values, m); err != nil {
		return nil, err
	}
	if m.Icon == "" {
		m.Icon = DefaultIcon
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// IconPath is the icon's location on disk.
func (m *ModelMetaInfo) IconPath() string {
	return filepath.Join(m.BaseDir, "assets", m.Icon)
}

// Validate checks every field and reports all failures at once.
func (m *ModelMetaInfo) Validate() error {
	var errs form.ValidationErrors
	if info, err := os.Stat(m.BaseDir); err != nil || !info.IsDir() {
		errs.Add("base_dir", "base dir %s not found", m.BaseDir)
	}
	if utf8.RuneCountInString(m.Name) < minNameLength {
		errs.Add("name", "must be at least %d characters", minNameLength)
	}
	if utf8.RuneCountInString(m.Description) < minDescriptionLength {
		errs.Add("description", "must be at least %d characters", minDescriptionLength)
	}
	if info, err := os.Stat(m.IconPath()); err != nil || info.IsDir() {
		errs.Add("icon", "icon file %s not found", m.IconPath())
	}
	if (m.LLMModelFile == "" || m.LLMModelClass == "") && m.InheritsFrom == "" {
		errs.Add("", "expected llm_model_file and llm_model_class or inherits_from to be present")
	}
	for _, name := range sortedKeys(m.RequiredLLMArguments) {
		t, err := form.ParseType(m.RequiredLLMArguments[name])
		if err != nil || !requiredArgumentType(t) {
			errs.Add("required_llm_arguments", "%s has unsupported type %q", name, m.RequiredLLMArguments[name])
		}
	}
	return errs.Err()
}

func requiredArgumentType(t form.Type) bool {
	for _, r := range RequiredArgumentTypes {
		if r == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (m *ModelMetaInfo) Clone() *ModelMetaInfo {
	c := *m
	c.LLMArguments = CloneMap(m.LLMArguments)
	c.MemoryArguments = CloneMap(m.MemoryArguments)
	c.RequiredLLMArguments = make(map[string]string, len(m.RequiredLLMArguments))
	for k, v := range m.RequiredLLMArguments {
		c.RequiredLLMArguments[k] = v
	}
	return &c
}

// ToMap returns every field keyed by its snake_case name.
func (m *ModelMetaInfo) ToMap() map[string]any {
	required := make(map[string]any, len(m.RequiredLLMArguments))
	for k, v := range m.RequiredLLMArguments {
		required[k] = v
	}
	return map[string]any{
		"base_dir":               m.BaseDir,
		"key":                    m.Key,
		"name":                   m.Name,
		"description":            m.Description,
		"llm_model_file":         m.LLMModelFile,
		"llm_model_class":        m.LLMModelClass,
		"supports_stream":        m.SupportsStream,
		"icon":                   m.Icon,
		"system_message":         m.SystemMessage,
		"llm_arguments":          CloneMap(m.LLMArguments),
		"memory_arguments":       CloneMap(m.MemoryArguments),
		"required_llm_arguments": required,
		"inherits_from":          m.InheritsFrom,
		"is_persistent":          m.IsPersistent,
	}
}

// Fields lists the descriptor for each mode: the full set when viewing, the
// editable subset otherwise.
func (m *ModelMetaInfo) Fields(mode form.Mode) []form.Field {
	if mode == form.ViewMode {
		return []form.Field{
			{Name: "icon", Title: "The icon for the model", Type: form.ImagePath},
			{Name: "name", Title: "The name of the model", Type: form.String},
			{Name: "description", Title: "The description of the model", Type: form.LongString},
			{Name: "system_message", Title: "The system message for the model", Type: form.LongString},
			{Name: "supports_stream", Title: "Whether the model supports streaming", Type: form.Bool},
			{Name: "llm_model_file", Title: "The model file", Type: form.String},
			{Name: "llm_model_class", Title: "The model class", Type: form.String},
			{Name: "llm_arguments", Title: "The arguments for the LLM Model", Type: form.Dict},
			{Name: "memory_arguments", Title: "The arguments for the chat memory module", Type: form.Dict},
			{Name: "is_persistent", Title: "Whether the model is persistent", Type: form.Bool},
		}
	}
	return []form.Field{
		{Name: "icon", Title: "The icon for the model", Type: form.ImagePath},
		{Name: "name", Title: "The name of the model", Type: form.String, ResetOnCreate: true},
		{Name: "description", Title: "The description of the model", Type: form.LongString, ResetOnCreate: true},
		{Name: "system_message", Title: "The system message for the model", Type: form.LongString},
		{Name: "supports_stream", Title: "Whether the model supports streaming", Type: form.Bool},
		{Name: "llm_arguments", Title: "The arguments for the LLM Model", Type: form.Dict},
		{Name: "memory_arguments", Title: "The arguments for the chat memory module", Type: form.Dict},
	}
}

// RequiredFields describes the arguments the chat sidebar collects for this
// model.
func (m *ModelMetaInfo) RequiredFields() []form.Field {
	fields := make([]form.Field, 0, len(m.RequiredLLMArguments))
	for _, name := range sortedKeys(m.RequiredLLMArguments) {
		t, err := form.ParseType(m.RequiredLLMArguments[name])
		if err != nil {
			continue
		}
		fields = append(fields, form.Field{Name: name, Title: name, Type: t})
	}
	return fields
}

func (m *ModelMetaInfo) Value(name string) any {
	v, ok := m.ToMap()[name]
	if !ok {
		return nil
	}
	return v
}

func (m *ModelMetaInfo) SetValue(name string, v any) error {
	var err error
	switch name {
	case "icon":
		m.Icon, err = asString(v)
	case "name":
		if m.Name, err = asString(v); err == nil {
			m.Name = strings.TrimSpace(m.Name)
		}
	case "description":
		m.Description, err = asString(v)
	case "system_message":
		m.SystemMessage, err = asString(v)
	case "llm_model_file":
		m.LLMModelFile, err = asString(v)
	case "llm_model_class":
		m.LLMModelClass, err = asString(v)
	case "inherits_from":
		m.InheritsFrom, err = asString(v)
	case "supports_stream":
		m.SupportsStream, err = asBool(v)
	case "is_persistent":
		m.IsPersistent, err = asBool(v)
	case "llm_arguments":
		var d map[string]any
		if d, err = asDict(v); err == nil {
			m.LLMArguments = d
		}
	case "memory_arguments":
		var d map[string]any
		if d, err = asDict(v); err == nil {
			m.MemoryArguments = d
		}
	default:
		return fmt.Errorf("%s: not an editable field", name)
	}
	return err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
