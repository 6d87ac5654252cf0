package engine

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendMemory  = "memory"
	BackendProcess = "process"
	BackendRemote  = "remote"
)

// Config is the top-level engine configuration.
type Config struct {
	Backend    BackendConfig `yaml:"backend"`
	Log        LogConfig     `yaml:"log"`
	StackCheck bool          `yaml:"stack_check"` // Compare stack depth around every operation.
}

// BackendConfig selects and configures the interpreter the engine talks to.
type BackendConfig struct {
	Kind    string        `yaml:"kind"` // memory (default), process or remote.
	Memory  MemoryConfig  `yaml:"memory"`
	Process ProcessConfig `yaml:"process"`
	Remote  RemoteConfig  `yaml:"remote"`
}

// MemoryConfig seeds the in-memory reference interpreter.
type MemoryConfig struct {
	Strict      bool               `yaml:"strict"` // Reject unknown parameter names.
	Nodes       []NodeGroupConfig  `yaml:"nodes"`
	Connections []ConnectionConfig `yaml:"connections"`
}

// NodeGroupConfig creates Count nodes of one model.
type NodeGroupConfig struct {
	Model  string         `yaml:"model"`
	Count  int            `yaml:"count"`
	Params map[string]any `yaml:"params"`
}

// ConnectionConfig connects two seeded nodes by id.
type ConnectionConfig struct {
	Source  int64          `yaml:"source"`
	Target  int64          `yaml:"target"`
	Synapse string         `yaml:"synapse"`
	Params  map[string]any `yaml:"params"`
}

// ProcessConfig starts an interpreter child process speaking the line
// protocol on stdio.
type ProcessConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	Dir     string   `yaml:"dir"`
}

// RemoteConfig dials an interpreter served over websocket.
type RemoteConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
}

// LogConfig controls engine logging.
type LogConfig struct {
	Level   string `yaml:"level"`   // debug, info (default), warn or error.
	Channel bool   `yaml:"channel"` // Log every interpreter primitive.
	Trace   bool   `yaml:"trace"`   // Log every event published on the event bus.
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so remote URLs and tokens can live in the environment.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// BackendKind returns the configured backend kind, defaulting to memory.
func (c Config) BackendKind() string {
	if c.Backend.Kind == "" {
		return BackendMemory
	}
	return c.Backend.Kind
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	switch c.BackendKind() {
	case BackendMemory:
		if err := c.Backend.Memory.validate(); err != nil {
			return err
		}
	case BackendProcess:
		if c.Backend.Process.Command == "" {
			return fmt.Errorf("engine: config: process backend: command is required")
		}
	case BackendRemote:
		if c.Backend.Remote.URL == "" {
			return fmt.Errorf("engine: config: remote backend: url is required")
		}
	default:
		return fmt.Errorf("engine: config: unknown backend kind %q", c.Backend.Kind)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("engine: config: log level: %w", err)
	}

	return nil
}

func (m MemoryConfig) validate() error {
	var total int64
	for i, g := range m.Nodes {
		if g.Model == "" {
			return fmt.Errorf("engine: config: node group %d: model is required", i)
		}
		if g.Count <= 0 {
			return fmt.Errorf("engine: config: node group %d (%s): count must be positive", i, g.Model)
		}
		total += int64(g.Count)
	}

	for i, c := range m.Connections {
		for _, id := range []int64{c.Source, c.Target} {
			if id < 1 || id > total {
				return fmt.Errorf("engine: config: connection %d: node %d does not exist", i, id)
			}
		}
	}

	return nil
}

// ParseLevel maps a level name to a slog.Level. An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	if name == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, err
	}
	return l, nil
}
