package mqtt

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// TopicPrefix is the base for the simulator's own topics.
const TopicPrefix = "devicesim"

// Topics provides builders for simulator MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	statusTopic := topics.Status("devicesim-1")
//	// Returns: "devicesim/devicesim-1/status"
type Topics struct{}

// Status returns the retained online/offline status topic for a client.
//
// Example: devicesim/devicesim-3f2a/status
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, clientID)
}

// AllStatus returns a wildcard matching every simulator's status topic.
//
// Example: devicesim/+/status
func (Topics) AllStatus() string {
	return TopicPrefix + "/+/status"
}

// DeviceFilter turns a device topic template into a subscription filter
// that matches every device.
//
// Example: "sim/device/{device_id}/telemetry" → "sim/device/+/telemetry"
func (Topics) DeviceFilter(template string) string {
	return strings.ReplaceAll(template, config.TopicPlaceholder, "+")
}

// DeviceFromTopic extracts the device ID from a concrete topic published
// under template. It reports false when the topic does not match.
//
// Example: ("home/{device_id}/state", "home/light1/state") → "light1", true
func (Topics) DeviceFromTopic(template, topic string) (string, bool) {
	tl := strings.Split(template, "/")
	parts := strings.Split(topic, "/")
	if len(tl) != len(parts) {
		return "", false
	}

	var id string
	for i, level := range tl {
		if level == config.TopicPlaceholder {
			if parts[i] == "" || (id != "" && parts[i] != id) {
				return "", false
			}
			id = parts[i]
			continue
		}
		if level != parts[i] {
			return "", false
		}
	}
	return id, id != ""
}
