package simulator

import (
	"strings"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// Topic derives the publish topic for a device from a template such as
// "sim/device/{device_id}/telemetry". Every placeholder is replaced.
func Topic(template string, id DeviceID) string {
	return strings.ReplaceAll(template, config.TopicPlaceholder, string(id))
}
