package mqtt

import (
	"fmt"
	"strings"
)

// DiscoveryPrefix is the Home Assistant MQTT discovery root.
const DiscoveryPrefix = "homeassistant"

// Topic path segments under the bridge prefix.
const (
	segmentState      = "state"
	segmentCommand    = "command"
	segmentAttributes = "attributes"
)

// Topics provides builders for discovery and bridge topics.
// Using these helpers keeps topic naming consistent across the codebase.
//
// Node and channel arguments must already be sanitized; Topics does not
// rewrite them.
//
//	topics := mqtt.NewTopics("msh/2/json")
//	stateTopic := topics.TelemetryState("1234", "device")
//	// Returns: "msh/2/json/1234/device"
type Topics struct {
	prefix string
}

// NewTopics returns a builder for the given bridge prefix.
func NewTopics(prefix string) Topics {
	return Topics{prefix: prefix}
}

// Prefix returns the bridge topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// =============================================================================
// Discovery Topics
// =============================================================================

// SensorConfig returns the discovery topic for one node sensor.
//
// Example: homeassistant/sensor/1234/battery_voltage/config
func (Topics) SensorConfig(nodeID, sensorID string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", DiscoveryPrefix, nodeID, sensorID)
}

// TrackerConfig returns the discovery topic for a node's device tracker.
//
// Example: homeassistant/device_tracker/1234/config
func (Topics) TrackerConfig(nodeID string) string {
	return fmt.Sprintf("%s/device_tracker/%s/config", DiscoveryPrefix, nodeID)
}

// TextConfig returns the discovery topic for a channel text entity.
//
// Example: homeassistant/text/longfast/config
func (Topics) TextConfig(channel string) string {
	return fmt.Sprintf("%s/text/%s/config", DiscoveryPrefix, channel)
}

// =============================================================================
// Bridge Topics
// =============================================================================

// TelemetryState returns the state topic for one telemetry group.
//
// Example: msh/2/json/1234/device
func (t Topics) TelemetryState(nodeID, group string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, nodeID, group)
}

// Attributes returns the position attributes topic for a node.
//
// Example: msh/2/json/1234/attributes
func (t Topics) Attributes(nodeID string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, nodeID, segmentAttributes)
}

// ChannelState returns the state topic of a channel text entity.
//
// Example: msh/2/json/longfast/state
func (t Topics) ChannelState(channel string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, channel, segmentState)
}

// ChannelCommand returns the command topic of a channel text entity.
//
// Example: msh/2/json/longfast/command
func (t Topics) ChannelCommand(channel string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, channel, segmentCommand)
}

// AllChannelCommands returns the wildcard subscription covering every
// channel command topic.
//
// Example: msh/2/json/+/command
func (t Topics) AllChannelCommands() string {
	return fmt.Sprintf("%s/+/%s", t.prefix, segmentCommand)
}

// ChannelFromCommand extracts the channel segment from a command topic.
// It returns false when the topic is outside the prefix or not a channel
// command.
func (t Topics) ChannelFromCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix+"/")
	if !ok {
		return "", false
	}
	channel, ok := strings.CutSuffix(rest, "/"+segmentCommand)
	if !ok || channel == "" || strings.Contains(channel, "/") {
		return "", false
	}
	return channel, true
}
