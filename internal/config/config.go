package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type BridgeConfig struct {
	Name        string        `toml:"name"`
	Addr        string        `toml:"addr"`
	CorsOrigins []string      `toml:"cors_origins"`
	StaticDir   string        `toml:"static_dir"`
	History     HistoryConfig `toml:"history"`
	ROS2        ROS2Config    `toml:"ros2"`
	Runner      RunnerConfig  `toml:"runner"`
}

type HistoryConfig struct {
	Capacity int `toml:"capacity"`
}

type ROS2Config struct {
	Binary      string       `toml:"binary"`
	Package     string       `toml:"package"`
	DefaultNode string       `toml:"default_node"`
	Nodes       []NodeConfig `toml:"nodes"`
}

type NodeConfig struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type RunnerConfig struct {
	Kind string    `toml:"kind"`
	SSH  SSHConfig `toml:"ssh"`
}

type SSHConfig struct {
	Host                 string `toml:"host"`
	Port                 string `toml:"port"`
	User                 string `toml:"user"`
	KeyPath              string `toml:"key_path"`
	KnownHostsPath       string `toml:"known_hosts_path"`
	InsecureSkipHostKeys bool   `toml:"insecure_skip_host_keys"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
}

// DefaultBridgeConfig mirrors the node set shipped with the
// my_robot_controller package.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Name:      "ros2-bridge",
		Addr:      ":8090",
		StaticDir: "web",
		History:   HistoryConfig{Capacity: 100},
		ROS2: ROS2Config{
			Binary:      "ros2",
			Package:     "my_robot_controller",
			DefaultNode: "publisher_node",
			Nodes: []NodeConfig{
				{Name: "publisher_node", Description: "Publisher Node"},
				{Name: "subscriber_node", Description: "Subscriber Node"},
				{Name: "service_node", Description: "Service Node"},
				{Name: "client_node", Description: "Client Node"},
				{Name: "led_client", Description: "LED Client"},
				{Name: "led_service", Description: "LED Service"},
				{Name: "yes_no_service", Description: "Yes/No Service"},
				{Name: "yes_no_client", Description: "Yes/No Client"},
			},
		},
		Runner: RunnerConfig{Kind: "local"},
	}
}

// LoadBridgeConfig reads the TOML file at path, filling defaults for
// fields the file leaves empty. An empty path returns the defaults
// untouched.
func LoadBridgeConfig(path string) (BridgeConfig, error) {
	if path == "" {
		return DefaultBridgeConfig(), nil
	}
	var cfg BridgeConfig
	if err := loadToml(path, &cfg); err != nil {
		return BridgeConfig{}, err
	}
	applyDefaults(&cfg)
	if err := ValidateBridgeConfig(cfg); err != nil {
		return BridgeConfig{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *BridgeConfig) {
	defaults := DefaultBridgeConfig()
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Addr == "" {
		cfg.Addr = defaults.Addr
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = defaults.StaticDir
	}
	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = defaults.History.Capacity
	}
	if cfg.ROS2.Binary == "" {
		cfg.ROS2.Binary = defaults.ROS2.Binary
	}
	if cfg.ROS2.Package == "" {
		cfg.ROS2.Package = defaults.ROS2.Package
	}
	if len(cfg.ROS2.Nodes) == 0 {
		cfg.ROS2.Nodes = defaults.ROS2.Nodes
	}
	if cfg.ROS2.DefaultNode == "" {
		cfg.ROS2.DefaultNode = defaults.ROS2.DefaultNode
	}
	if cfg.Runner.Kind == "" {
		cfg.Runner.Kind = defaults.Runner.Kind
	}
}

func ValidateBridgeConfig(cfg BridgeConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("bridge config missing name")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return fmt.Errorf("bridge config missing addr")
	}
	if cfg.History.Capacity < 0 {
		return fmt.Errorf("history capacity must be positive")
	}
	if strings.TrimSpace(cfg.ROS2.Package) == "" {
		return fmt.Errorf("ros2 package is required")
	}
	for i, node := range cfg.ROS2.Nodes {
		if strings.TrimSpace(node.Name) == "" {
			return fmt.Errorf("ros2 node[%d] missing name", i)
		}
	}
	switch cfg.Runner.Kind {
	case "local":
	case "ssh":
		if strings.TrimSpace(cfg.Runner.SSH.Host) == "" {
			return fmt.Errorf("ssh runner requires host")
		}
		if strings.TrimSpace(cfg.Runner.SSH.User) == "" {
			return fmt.Errorf("ssh runner requires user")
		}
		if strings.TrimSpace(cfg.Runner.SSH.KeyPath) == "" {
			return fmt.Errorf("ssh runner requires key_path")
		}
	default:
		return fmt.Errorf("unknown runner kind %q", cfg.Runner.Kind)
	}
	return nil
}
