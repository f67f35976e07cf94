// Package catalog loads the YAML file that declares the available models,
// group agents and the initial shared state.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/user/chatverse/internal/schema"
)

var ErrNotFound = errors.New("not found")

// Resolver checks that a model file and class name a known implementation.
type Resolver interface {
	Resolve(file, class string) error
}

// Catalog is a validated config file. Its records are shared and must be
// cloned before they are modified.
type Catalog struct {
	baseDir     string
	models      []*schema.ModelMetaInfo
	modelIndex  map[string]*schema.ModelMetaInfo
	agents      []*schema.GroupAgent
	agentIndex  map[string]*schema.GroupAgent
	sharedState map[string]any
}

// Load reads and validates the catalog at path. Assets and model files are
// resolved against baseDir.
func Load(path, baseDir string, resolver Resolver) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data, baseDir, resolver)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

// Parse validates a catalog document. The first error aborts loading.
func Parse(data []byte, baseDir string, resolver Resolver) (*Catalog, error) {
	if info, err := os.Stat(baseDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("base dir %s not found", baseDir)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("catalog must be a mapping")
	}

	sections := map[string]*yaml.Node{}
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		if s := snakeCase(name); topLevelFields[s] {
			name = s
		}
		if _, ok := sections[name]; !ok {
			sections[name] = root.Content[i+1]
		}
	}

	c := &Catalog{
		baseDir:     baseDir,
		modelIndex:  map[string]*schema.ModelMetaInfo{},
		agentIndex:  map[string]*schema.GroupAgent{},
		sharedState: map[string]any{},
	}

	modelsNode, ok := sections["models"]
	if !ok {
		return nil, fmt.Errorf("models key not found in config file")
	}
	if err := c.parseModels(modelsNode, resolver); err != nil {
		return nil, err
	}

	agentsNode, ok := sections["group_chat_agents"]
	if !ok {
		return nil, fmt.Errorf("group_chat_agents key not found in config file")
	}
	if err := c.parseAgents(agentsNode); err != nil {
		return nil, err
	}

	if n, ok := sections["shared_state"]; ok && n.Kind != yaml.ScalarNode {
		if err := n.Decode(&c.sharedState); err != nil {
			return nil, fmt.Errorf("decode shared state: %w", err)
		}
	}
	return c, nil
}

type entry struct {
	key    string
	values map[string]any
}

// entries walks a mapping node in document order and rejects repeated keys.
func entries(n *yaml.Node, what string) ([]entry, error) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s must be a mapping", what)
	}
	seen := map[string]bool{}
	var out []entry
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		if seen[key] {
			return nil, fmt.Errorf("%s key %q already exists", what, key)
		}
		seen[key] = true
		var values map[string]any
		if err := n.Content[i+1].Decode(&values); err != nil {
			return nil, fmt.Errorf("%s %s: %w", what, key, err)
		}
		if values == nil {
			values = map[string]any{}
		}
		out = append(out, entry{key: key, values: values})
	}
	return out, nil
}

func (c *Catalog) parseModels(n *yaml.Node, resolver Resolver) error {
	list, err := entries(n, "model")
	if err != nil {
		return err
	}
	for _, e := range list {
		values := normalize(e.values, modelFields)
		if _, ok := values["base_dir"]; !ok {
			values["base_dir"] = c.baseDir
		}
		values["key"] = e.key

		parent, _ := values["inherits_from"].(string)
		if parent != "" {
			base, ok := c.modelIndex[parent]
			if !ok {
				return fmt.Errorf("model %q not found in models or the config is not in proper order", parent)
			}
			merged, err := mergeMaps(clearDefaults(base.ToMap()), clearDefaults(values))
			if err != nil {
				return fmt.Errorf("model %s inheriting from %s: %w", e.key, parent, err)
			}
			merged["key"] = e.key
			delete(merged, "inherits_from")
			values = merged
		}

		meta, err := schema.NewModelMetaInfo(values)
		if err != nil {
			return fmt.Errorf("model %s: %w", e.key, err)
		}
		if resolver != nil {
			if err := resolver.Resolve(meta.LLMModelFile, meta.LLMModelClass); err != nil {
				return fmt.Errorf("model %s: %w", e.key, err)
			}
		}
		c.models = append(c.models, meta)
		c.modelIndex[e.key] = meta
	}
	return nil
}

func (c *Catalog) parseAgents(n *yaml.Node) error {
	list, err := entries(n, "group agent")
	if err != nil {
		return err
	}
	for _, e := range list {
		values := normalizeGroup(e.values)
		values["base_dir"] = c.baseDir
		values["key"] = e.key
		agent, err := schema.NewGroupAgent(values)
		if err != nil {
			return fmt.Errorf("group agent %s: %w", e.key, err)
		}
		c.agents = append(c.agents, agent)
		c.agentIndex[e.key] = agent
	}
	return nil
}

func (c *Catalog) BaseDir() string { return c.baseDir }

// Models returns the models in declaration order.
func (c *Catalog) Models() []*schema.ModelMetaInfo {
	return c.models
}

func (c *Catalog) Model(key string) (*schema.ModelMetaInfo, error) {
	m, ok := c.modelIndex[key]
	if !ok {
		return nil, fmt.Errorf("model %s: %w", key, ErrNotFound)
	}
	return m, nil
}

// GroupAgents returns the agents in declaration order.
func (c *Catalog) GroupAgents() []*schema.GroupAgent {
	return c.agents
}

func (c *Catalog) GroupAgent(key string) (*schema.GroupAgent, error) {
	g, ok := c.agentIndex[key]
	if !ok {
		return nil, fmt.Errorf("group agent %s: %w", key, ErrNotFound)
	}
	return g, nil
}

// SharedState returns a copy of the initial values every session starts
// with.
func (c *Catalog) SharedState() map[string]any {
	return schema.CloneMap(c.sharedState)
}
