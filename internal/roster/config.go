package roster

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk roster configuration. Every field is optional;
// anything omitted keeps the built-in default. The file only ever narrows
// or re-points the fixed roster, it cannot add roles.
//
//	agents:
//	  officer:
//	    agent_id: agent_01ab...
//	  security:
//	    agent_id: agent_02cd...
//	    topics: [threat, danger, ...]
type Config struct {
	Agents map[string]AgentConfig `yaml:"agents"`
}

// AgentConfig overrides a single roster entry.
type AgentConfig struct {
	AgentID  string   `yaml:"agent_id"`
	Topics   []string `yaml:"topics"`
	Triggers []string `yaml:"triggers"`
}

// EnvPrefix is the prefix for per-role agent ID overrides, e.g.
// SOCROOM_AGENT_SECURITY. Environment wins over the config file.
const EnvPrefix = "SOCROOM_AGENT_"

// Load builds the registry from defaults, an optional YAML file, and
// environment overrides, in that precedence order.
func Load(path string) (*Registry, error) {
	members := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read roster config: %w", err)
		}
		var cfg Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse roster config: %w", err)
		}
		if err := applyConfig(members, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(members)
	return New(members)
}

func applyConfig(members []Specialist, cfg Config) error {
	for name, ac := range cfg.Agents {
		role, err := ParseRole(name)
		if err != nil {
			return fmt.Errorf("roster config: %w", err)
		}
		for i := range members {
			if members[i].Role != role {
				continue
			}
			if ac.AgentID != "" {
				members[i].AgentID = ac.AgentID
			}
			if len(ac.Topics) > 0 {
				members[i].Topics = ac.Topics
			}
			if len(ac.Triggers) > 0 {
				members[i].Triggers = ac.Triggers
			}
		}
	}
	return nil
}

func applyEnv(members []Specialist) {
	for i := range members {
		key := EnvPrefix + strings.ToUpper(string(members[i].Role))
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			members[i].AgentID = v
		}
	}
}
