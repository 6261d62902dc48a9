package simulator

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// RunConfig is the resolved, read-only configuration of one run.
type RunConfig struct {
	BrokerHost string
	BrokerPort int

	// Devices is the numbered fleet size. Ignored by fixed-device profiles.
	Devices int

	Interval   time.Duration
	RetryDelay time.Duration

	Profile Profile

	// TopicTemplate overrides Profile.TopicTemplate when set.
	TopicTemplate string

	// Seed for the payload generator. 0 picks a random seed.
	Seed uint64
}

// RunConfigFrom resolves a RunConfig from loaded configuration.
func RunConfigFrom(cfg *config.Config) (RunConfig, error) {
	profile, err := LookupProfile(cfg, cfg.Simulation.Profile)
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		BrokerHost:    cfg.Broker.Host,
		BrokerPort:    cfg.Broker.Port,
		Devices:       cfg.Simulation.Devices,
		Interval:      cfg.GetInterval(),
		RetryDelay:    cfg.GetRetryDelay(),
		Profile:       profile,
		TopicTemplate: cfg.Simulation.TopicTemplate,
		Seed:          cfg.Simulation.Seed,
	}, nil
}

// Template returns the effective topic template.
func (rc RunConfig) Template() string {
	if rc.TopicTemplate != "" {
		return rc.TopicTemplate
	}
	return rc.Profile.TopicTemplate
}

// DeviceIDs returns the run's device set in publish order.
func (rc RunConfig) DeviceIDs() []DeviceID {
	return rc.Profile.DeviceIDs(rc.Devices)
}

// BrokerAddress returns host:port.
func (rc RunConfig) BrokerAddress() string {
	return net.JoinHostPort(rc.BrokerHost, strconv.Itoa(rc.BrokerPort))
}

// Validate checks that the run can start. Every problem is reported in one
// error wrapping ErrInvalidConfig.
func (rc RunConfig) Validate() error {
	var errs []string

	if rc.BrokerHost == "" {
		errs = append(errs, "broker host is required")
	}
	if rc.BrokerPort < 1 || rc.BrokerPort > 65535 {
		errs = append(errs, fmt.Sprintf("broker port %d out of range 1-65535", rc.BrokerPort))
	}
	if !rc.Profile.FixedDevices() && rc.Devices <= 0 {
		errs = append(errs, "device count must be positive")
	}
	if rc.Interval <= 0 {
		errs = append(errs, "publish interval must be positive")
	}
	if rc.RetryDelay <= 0 {
		errs = append(errs, "retry delay must be positive")
	}
	if len(rc.Profile.Fields) == 0 && len(rc.Profile.Devices) == 0 {
		errs = append(errs, fmt.Sprintf("profile %q has no fields", rc.Profile.Name))
	}
	if t := rc.Template(); !strings.Contains(t, config.TopicPlaceholder) {
		errs = append(errs, fmt.Sprintf("topic template %q must contain %s", t, config.TopicPlaceholder))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
