package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/chatverse/internal/form"
)

// UserRole is the role of the character that stands for the person typing.
const UserRole = "user"

// GroupAgentCharacter is one participant of a group agent.
type GroupAgentCharacter struct {
	Name        string `mapstructure:"name"`
	Icon        string `mapstructure:"icon"`
	Description string `mapstructure:"description"`
	Role        string `mapstructure:"role"`
	BaseDir     string `mapstructure:"base_dir"`
}

// IconPath is the icon's location on disk.
func (c GroupAgentCharacter) IconPath() string {
	return filepath.Join(c.BaseDir, "assets", c.Icon)
}

// GroupExample is a sample idea shown on the group page.
type GroupExample struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// GroupAgent is a multi-character pipeline configured in the catalog.
type GroupAgent struct {
	Key              string                `mapstructure:"key"`
	Name             string                `mapstructure:"name"`
	Icon             string                `mapstructure:"icon"`
	Description      string                `mapstructure:"description"`
	UsageDescription string                `mapstructure:"usage_description"`
	Characters       []GroupAgentCharacter `mapstructure:"characters"`
	BaseDir          string                `mapstructure:"base_dir"`
	Examples         []GroupExample        `mapstructure:"examples"`
	Setting          GroupSetting          `mapstructure:"setting"`
	FlowDiagram      string                `mapstructure:"flow_diagram"`
}

// NewGroupAgent decodes values over the default setting, hands the agent's
// base dir to its characters and validates the result.
func NewGroupAgent(values map[string]any) (*GroupAgent, error) {
	g := &GroupAgent{Setting: *DefaultGroupSetting()}
	if err := Decode(values, g); err != nil {
		return nil, err
	}
	for i := range g.Characters {
		if g.Characters[i].BaseDir == "" {
			g.Characters[i].BaseDir = g.BaseDir
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *GroupAgent) IconPath() string {
	return filepath.Join(g.BaseDir, "assets", g.Icon)
}

func (g *GroupAgent) FlowDiagramPath() string {
	return filepath.Join(g.BaseDir, "assets", g.FlowDiagram)
}

// Validate checks assets and the character roster.
func (g *GroupAgent) Validate() error {
	var errs form.ValidationErrors
	if g.BaseDir == "" {
		errs.Add("base_dir", "base_dir key not found in config file")
	}
	if !isFile(g.IconPath()) {
		errs.Add("icon", "icon path %s does not exist", g.IconPath())
	}
	if !isFile(g.FlowDiagramPath()) {
		errs.Add("flow_diagram", "flow diagram path %s does not exist", g.FlowDiagramPath())
	}
	for _, c := range g.Characters {
		if !isFile(c.IconPath()) {
			errs.Add("characters", "icon path %s does not exist", c.IconPath())
		}
	}
	if err := g.validateRoster(); err != nil {
		errs.Add("characters", "%v", err)
	}
	return errs.Err()
}

func (g *GroupAgent) validateRoster() error {
	if len(g.Characters) == 0 {
		return fmt.Errorf("group agent %s has no characters", g.Name)
	}
	users := 0
	for _, c := range g.Characters {
		if strings.EqualFold(c.Role, UserRole) {
			users++
		}
	}
	switch {
	case users == 0:
		return fmt.Errorf("group agent %s has no user character", g.Name)
	case users > 1:
		return fmt.Errorf("group agent %s has more than one user character", g.Name)
	case len(g.Characters) < 2:
		return fmt.Errorf("group agent %s has less than two characters", g.Name)
	}
	return nil
}

// Character returns the character playing role, compared case-insensitively.
func (g *GroupAgent) Character(role string) (*GroupAgentCharacter, error) {
	for i := range g.Characters {
		if strings.EqualFold(g.Characters[i].Role, role) {
			return &g.Characters[i], nil
		}
	}
	return nil, fmt.Errorf("character with role %s not found in group agent %s", role, g.Name)
}

// Clone returns a copy whose characters, examples and setting are
// independent of g.
func (g *GroupAgent) Clone() *GroupAgent {
	c := *g
	c.Characters = append([]GroupAgentCharacter(nil), g.Characters...)
	c.Examples = append([]GroupExample(nil), g.Examples...)
	return &c
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
