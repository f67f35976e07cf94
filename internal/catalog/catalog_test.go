package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver map[string]bool

func (f fakeResolver) Resolve(file, class string) error {
	if !f[file+"/"+class] {
		return fmt.Errorf("class %s not found in model file %s or is not a registered model", class, file)
	}
	return nil
}

var resolver = fakeResolver{"base_model.py/BaseLLMModel": true, "chat_gpt.py/ChatGPT": true}

func appDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	for _, a := range []string{"llm_model.png", "gpt.png", "group.png", "flow.png", "user.png", "pm.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", a), []byte("img"), 0o644))
	}
	return dir
}

const agentsYAML = `
GroupChatAgents:
  startup:
    Name: Startup
    Icon: group.png
    Description: Builds software from an idea
    UsageDescription: Type your idea
    FlowDiagram: flow.png
    Characters:
      - Name: You
        Icon: user.png
        Description: The customer
        Role: User
      - Name: Alice
        Icon: pm.png
        Description: Writes the PRD
        Role: Product Manager
    Examples:
      - Name: Snake
        Description: A snake game
    Setting:
      investment: 1
`

const modelsYAML = `
Models:
  fake:
    Name: Fake Model
    Description: A model that always answers the same thing
    LLMModelFile: base_model.py
    LLMModelClass: BaseLLMModel
    LLMArguments:
      temperature: 0.1
      stop: ["a"]
  gpt:
    name: GPT Model
    description: Talks to the OpenAI chat completion API
    llm_model_file: chat_gpt.py
    llm_model_class: ChatGPT
    icon: gpt.png
    required_llm_arguments:
      openai_api_key: SECRET_STRING
  fake_child:
    InheritsFrom: fake
    Name: Child Model
    LLMArguments:
      max_tokens: 10
      stop: ["b"]
SharedState:
  openai_api_key: sk-shared
`

func TestParse(t *testing.T) {
	dir := appDir(t)
	c, err := Parse([]byte(modelsYAML+agentsYAML), dir, resolver)
	require.NoError(t, err)

	models := c.Models()
	require.Len(t, models, 3)
	assert.Equal(t, []string{"fake", "gpt", "fake_child"}, []string{models[0].Key, models[1].Key, models[2].Key})
	assert.Equal(t, dir, models[0].BaseDir)
	assert.Equal(t, "SECRET_STRING", models[1].RequiredLLMArguments["openai_api_key"])

	child, err := c.Model("fake_child")
	require.NoError(t, err)
	assert.Equal(t, "Child Model", child.Name)
	assert.Equal(t, "A model that always answers the same thing", child.Description)
	assert.Equal(t, "BaseLLMModel", child.LLMModelClass)
	assert.Equal(t, "", child.InheritsFrom)
	assert.Equal(t, 0.1, child.LLMArguments["temperature"])
	assert.Equal(t, 10, child.LLMArguments["max_tokens"])
	assert.Equal(t, []any{"b", "a"}, child.LLMArguments["stop"])

	agents := c.GroupAgents()
	require.Len(t, agents, 1)
	assert.Equal(t, "startup", agents[0].Key)
	assert.Equal(t, "Product Manager", agents[0].Characters[1].Role)
	assert.Equal(t, 1.0, agents[0].Setting.Investment)
	assert.True(t, agents[0].Setting.CodeReview)

	assert.Equal(t, map[string]any{"openai_api_key": "sk-shared"}, c.SharedState())

	_, err = c.Model("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestParseErrors(t *testing.T) {
	dir := appDir(t)
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "duplicate key",
			yaml: `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel}
  fake: {Name: Fake2, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel}
` + agentsYAML,
			want: `model key "fake" already exists`,
		},
		{
			name: "out of order inheritance",
			yaml: `
Models:
  child: {InheritsFrom: fake, Name: Child}
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel}
` + agentsYAML,
			want: `model "fake" not found in models or the config is not in proper order`,
		},
		{
			name: "missing class",
			yaml: `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py}
` + agentsYAML,
			want: "expected llm_model_file and llm_model_class or inherits_from to be present",
		},
		{
			name: "unregistered class",
			yaml: `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: Nope}
` + agentsYAML,
			want: "class Nope not found in model file base_model.py",
		},
		{
			name: "kind conflict",
			yaml: `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel, LLMArguments: {x: 1}}
  child: {InheritsFrom: fake, LLMArguments: {x: [1, 2]}}
` + agentsYAML,
			want: "key x has value [1 2]",
		},
		{
			name: "missing models",
			yaml: agentsYAML,
			want: "models key not found",
		},
		{
			name: "missing agents",
			yaml: `
Models: {}
`,
			want: "group_chat_agents key not found",
		},
		{
			name: "missing icon",
			yaml: `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel, Icon: nope.png}
` + agentsYAML,
			want: "icon file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), dir, resolver)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseMissingBaseDir(t *testing.T) {
	_, err := Parse([]byte(modelsYAML+agentsYAML), filepath.Join(t.TempDir(), "nope"), resolver)
	assert.ErrorContains(t, err, "base dir")
}

func TestMergeMaps(t *testing.T) {
	got, err := mergeMaps(map[string]any{"x": 1}, map[string]any{"y": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, got)

	got, err = mergeMaps(map[string]any{"x": 1, "d": map[string]any{"a": 1, "b": 2}}, map[string]any{"x": int64(7), "d": map[string]any{"b": 0.5}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": int64(7), "d": map[string]any{"a": 1, "b": 0.5}}, got)

	got, err = mergeMaps(map[string]any{"x": 0.1}, map[string]any{"x": 2.5})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"x": 2.5}, got)

	_, err = mergeMaps(map[string]any{"x": 1}, map[string]any{"x": 2.5})
	assert.ErrorContains(t, err, "key x has value 2.5 of type float64 but base has value 1 of type int")

	_, err = mergeMaps(map[string]any{"x": 0.5}, map[string]any{"x": 2})
	assert.Error(t, err)

	_, err = mergeMaps(map[string]any{"x": 1}, map[string]any{"x": []any{1, 2}})
	assert.Error(t, err)

	_, err = mergeMaps(map[string]any{"x": "a"}, map[string]any{"x": true})
	assert.Error(t, err)
}

func TestClearDefaults(t *testing.T) {
	got := clearDefaults(map[string]any{"icon": "llm_model.png", "name": "", "a": nil, "b": 1, "l": []any{}})
	assert.Equal(t, map[string]any{"b": 1, "l": []any{}}, got)
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"LLMModelFile":         "llm_model_file",
		"RequiredLLMArguments": "required_llm_arguments",
		"BaseDir":              "base_dir",
		"GroupChatAgents":      "group_chat_agents",
		"name":                 "name",
		"llm_arguments":        "llm_arguments",
	}
	for in, want := range cases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestNormalizeKeepsArgumentKeys(t *testing.T) {
	got := normalize(map[string]any{"Name": "a", "MaxTokens": 3}, modelFields)
	assert.Equal(t, map[string]any{"name": "a", "MaxTokens": 3}, got)
}

func TestSourceWatchReloads(t *testing.T) {
	dir := appDir(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(modelsYAML+agentsYAML), 0o644))

	src, err := NewSource(path, dir, resolver)
	require.NoError(t, err)
	require.Len(t, src.Current().Models(), 3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- src.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	trimmed := `
Models:
  fake: {Name: Fake, Description: A model that always answers, LLMModelFile: base_model.py, LLMModelClass: BaseLLMModel}
` + agentsYAML
	require.NoError(t, os.WriteFile(path, []byte(trimmed), 0o644))

	require.Eventually(t, func() bool {
		return len(src.Current().Models()) == 1
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("Models: ["), 0o644))
	time.Sleep(500 * time.Millisecond)
	assert.Len(t, src.Current().Models(), 1)

	cancel()
	assert.NoError(t, <-done)
}
