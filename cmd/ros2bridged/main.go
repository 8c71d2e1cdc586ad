package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/bridge"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/config"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/launcher"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/logging"
	"github.com/sanketmali2409/ros2-sensor-dashboard/internal/roslog"
)

func main() {
	configPath := flag.String("config", "", "path to bridge config TOML (defaults apply when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "ros2bridged: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	logging.ConfigureRuntime()

	cfg, err := config.LoadBridgeConfig(configPath)
	if err != nil {
		return err
	}

	runner, err := buildRunner(cfg.Runner)
	if err != nil {
		return err
	}

	history := roslog.NewHistory(cfg.History.Capacity)
	l := launcher.New(cfg.ROS2, runner, roslog.NewIngestor(history))

	server := bridge.Appear(cfg, l, history)
	log.Info().
		Str("addr", cfg.Addr).
		Str("package", cfg.ROS2.Package).
		Str("runner", cfg.Runner.Kind).
		Int("history_capacity", history.Capacity()).
		Msg("bridge appearing")
	return server.Serve()
}

func buildRunner(cfg config.RunnerConfig) (launcher.Runner, error) {
	switch cfg.Kind {
	case "", "local":
		return launcher.LocalRunner{}, nil
	case "ssh":
		return launcher.SSHRunner{
			Host:                        cfg.SSH.Host,
			Port:                        cfg.SSH.Port,
			User:                        cfg.SSH.User,
			KeyPath:                     cfg.SSH.KeyPath,
			KnownHostsPath:              cfg.SSH.KnownHostsPath,
			InsecureSkipHostKeyChecking: cfg.SSH.InsecureSkipHostKeys,
			Timeout:                     time.Duration(cfg.SSH.TimeoutSeconds) * time.Second,
		}, nil
	default:
		return nil, fmt.Errorf("unknown runner kind %q", cfg.Kind)
	}
}
