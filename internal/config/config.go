package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models planline.yml.
type Config struct {
	Project struct {
		ID string `yaml:"id"`
	} `yaml:"project"`
	Defaults struct {
		AutoShiftTasks bool `yaml:"auto_shift_tasks"`
	} `yaml:"defaults"`
	Statuses struct {
		// Manual lists the values a pinned project status may take.
		Manual []string `yaml:"manual"`
	} `yaml:"statuses"`
	Stages struct {
		// ToolCatalog lists the tags selectable on robot/system stages.
		ToolCatalog []string `yaml:"tool_catalog"`
	} `yaml:"stages"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; import with pl project config import --file <path>", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Project.ID == "" {
		return fmt.Errorf("config.project.id is required")
	}
	if len(c.Statuses.Manual) == 0 {
		return fmt.Errorf("config.statuses.manual is required")
	}
	for _, s := range c.Statuses.Manual {
		if s == "" {
			return fmt.Errorf("config.statuses.manual contains an empty value")
		}
	}
	for _, tool := range c.Stages.ToolCatalog {
		if tool == "" {
			return fmt.Errorf("config.stages.tool_catalog contains an empty tag")
		}
	}
	return nil
}

// ManualStatusAllowed reports whether v is a permitted pinned status.
func (c *Config) ManualStatusAllowed(v string) bool {
	for _, s := range c.Statuses.Manual {
		if s == v {
			return true
		}
	}
	return false
}

// ToolAllowed reports whether tag is in the stage tool catalog. An empty
// catalog accepts any tag.
func (c *Config) ToolAllowed(tag string) bool {
	if len(c.Stages.ToolCatalog) == 0 {
		return true
	}
	for _, t := range c.Stages.ToolCatalog {
		if t == tag {
			return true
		}
	}
	return false
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planline.yml")
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a project.
func Default(projectID string) *Config {
	var cfg Config
	cfg.Project.ID = projectID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, projectID))).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// GenerateDefault returns default config YAML.
func GenerateDefault(projectID string) string {
	return fmt.Sprintf(defaultTemplate, projectID)
}

const defaultTemplate = `project:
  id: %s

defaults:
  auto_shift_tasks: false

statuses:
  manual:
    - to-start
    - in-progress
    - done
    - suspended
    - discarded

stages:
  tool_catalog:
    - uipath
    - power-automate
    - python
    - selenium
    - api-integration
    - low-code
`
