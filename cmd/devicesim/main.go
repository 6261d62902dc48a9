// devicesim simulates a fleet of telemetry devices publishing synthetic
// readings to an MQTT broker.
//
// Usage:
//
//	devicesim --broker localhost --devices 10 --interval 2
//	devicesim --profile home
//	devicesim profiles
//	devicesim history --limit 5
//	devicesim watch --profile fleet
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
	_ "github.com/nerrad567/gray-logic-devicesim/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// options holds the command-line flags shared by every command.
type options struct {
	configPath string
	broker     string
	port       int
	devices    int
	interval   float64
	retry      float64
	profile    string
	topic      string
	seed       uint64
	logLevel   string
}

// newRootCmd builds the command tree. out receives command output (not logs).
func newRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "devicesim",
		Short: "Simulate telemetry devices publishing to an MQTT broker",
		Long: `devicesim publishes one synthetic reading per device per interval to an MQTT
broker, retrying the connection with a fixed delay until the broker is reachable.

Configuration comes from defaults, an optional YAML file (--config or
DEVICESIM_CONFIG), DEVICESIM_* environment variables and these flags, in
increasing order of precedence.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runSimulator(cmd.Context(), cfg)
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file (env DEVICESIM_CONFIG)")
	flags.StringVar(&opts.broker, "broker", "", "MQTT broker host")
	flags.IntVar(&opts.port, "port", 0, "MQTT broker port")
	flags.IntVar(&opts.devices, "devices", 0, "number of simulated devices (numbered profiles)")
	flags.Float64Var(&opts.interval, "interval", 0, "seconds between publish rounds")
	flags.Float64Var(&opts.retry, "retry", 0, "seconds between connection attempts")
	flags.StringVar(&opts.profile, "profile", "", "device profile (see 'devicesim profiles')")
	flags.StringVar(&opts.topic, "topic", "", "topic template override, must contain "+config.TopicPlaceholder)
	flags.Uint64Var(&opts.seed, "seed", 0, "random seed for reproducible payloads (0 = random)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newProfilesCmd(opts),
		newHistoryCmd(opts),
		newWatchCmd(opts),
	)

	return root
}

// loadConfig loads the file and environment, applies explicitly set flags
// and validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = os.Getenv("DEVICESIM_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("broker") {
		cfg.Broker.Host = opts.broker
	}
	if flags.Changed("port") {
		cfg.Broker.Port = opts.port
	}
	if flags.Changed("devices") {
		cfg.Simulation.Devices = opts.devices
	}
	if flags.Changed("interval") {
		cfg.Simulation.Interval = opts.interval
	}
	if flags.Changed("retry") {
		cfg.Simulation.RetryDelay = opts.retry
	}
	if flags.Changed("profile") {
		cfg.Simulation.Profile = opts.profile
	}
	if flags.Changed("topic") {
		cfg.Simulation.TopicTemplate = opts.topic
	}
	if flags.Changed("seed") {
		cfg.Simulation.Seed = opts.seed
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}

	if err := cfg.Validate(simulator.BuiltinProfiles()); err != nil {
		return nil, err
	}
	return cfg, nil
}
