package bridge

import (
	"fmt"
	"strings"

	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/mqtt"
)

// Fixed discovery field values.
const (
	stateClassMeasurement = "measurement"
	platformMQTT          = "mqtt"
	sourceTypeGPS         = "gps"
	textMode              = "text"
	textIcon              = "mdi:message-text"
	textValueTemplate     = "{{ value_json.text }}"
)

// Message is a rendered MQTT message.
type Message struct {
	Topic   string
	Payload []byte
}

// NodeIdentity identifies the sender of a packet.
type NodeIdentity struct {
	// RawID is the radio's node id, e.g. "!1234abcd".
	RawID string

	// ID is RawID sanitized for topics.
	ID string

	// ShortName is the node's announced short name.
	ShortName string
}

// Discovery renders Home Assistant discovery configs. Rendering is pure:
// the same input always yields byte-identical output.
type Discovery struct {
	topics mqtt.Topics
}

// NewDiscovery returns a renderer for the given topic builder.
func NewDiscovery(topics mqtt.Topics) Discovery {
	return Discovery{topics: topics}
}

// sensorConfig is the discovery payload of a telemetry sensor.
type sensorConfig struct {
	Name              string `json:"name"`
	UniqueID          string `json:"unique_id"`
	StateTopic        string `json:"state_topic"`
	StateClass        string `json:"state_class"`
	Platform          string `json:"platform"`
	DeviceClass       string `json:"device_class,omitempty"`
	UnitOfMeasurement string `json:"unit_of_measurement,omitempty"`
	ValueTemplate     string `json:"value_template"`
}

// trackerConfig is the discovery payload of a node's device tracker.
type trackerConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	JSONAttributesTopic string `json:"json_attributes_topic"`
	SourceType          string `json:"source_type"`
}

// textConfig is the discovery payload of a channel text entity.
type textConfig struct {
	Name          string `json:"name"`
	UniqueID      string `json:"unique_id"`
	CommandTopic  string `json:"command_topic"`
	StateTopic    string `json:"state_topic"`
	ValueTemplate string `json:"value_template"`
	Mode          string `json:"mode"`
	Icon          string `json:"icon"`
}

// Sensor renders the config of one telemetry sensor for a node.
func (d Discovery) Sensor(node NodeIdentity, s SensorDescriptor) (Message, error) {
	return d.render(d.topics.SensorConfig(node.ID, s.ID), sensorConfig{
		Name:              node.ShortName + " " + s.DisplayName,
		UniqueID:          strings.ToLower(node.ShortName) + "_" + s.ID,
		StateTopic:        d.topics.TelemetryState(node.ID, string(s.Group)),
		StateClass:        stateClassMeasurement,
		Platform:          platformMQTT,
		DeviceClass:       s.DeviceClass,
		UnitOfMeasurement: s.Unit,
		ValueTemplate:     valueTemplate(s),
	})
}

// Tracker renders the device tracker config for a node.
func (d Discovery) Tracker(node NodeIdentity) (Message, error) {
	return d.render(d.topics.TrackerConfig(node.ID), trackerConfig{
		Name:                node.ShortName + " Position",
		UniqueID:            strings.ToLower(node.ShortName) + "_position",
		JSONAttributesTopic: d.topics.Attributes(node.ID),
		SourceType:          sourceTypeGPS,
	})
}

// Text renders the text entity config for a channel.
func (d Discovery) Text(ch Channel) (Message, error) {
	return d.render(d.topics.TextConfig(ch.Key), textConfig{
		Name:          ch.Name,
		UniqueID:      "channel_" + ch.Key,
		CommandTopic:  d.topics.ChannelCommand(ch.Key),
		StateTopic:    d.topics.ChannelState(ch.Key),
		ValueTemplate: textValueTemplate,
		Mode:          textMode,
		Icon:          textIcon,
	})
}

func (d Discovery) render(topic string, config any) (Message, error) {
	payload, err := marshalJSON(config)
	if err != nil {
		return Message{}, fmt.Errorf("render %s: %w", topic, err)
	}
	return Message{Topic: topic, Payload: payload}, nil
}

// valueTemplate returns the Jinja template extracting the sensor's value
// from its state JSON.
func valueTemplate(s SensorDescriptor) string {
	if s.Kind == KindInt {
		return "{{ (value_json." + s.SourceProperty + " | int) }}"
	}
	return "{{ (value_json." + s.SourceProperty + " | float) | round(1) }}"
}
