package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

var testNode = NodeIdentity{RawID: "!1234", ID: "1234", ShortName: "AB1"}

func sensorByID(t *testing.T, id string) SensorDescriptor {
	t.Helper()
	for _, s := range sensorDescriptors {
		if s.ID == id {
			return s
		}
	}
	t.Fatalf("no sensor %q", id)
	return SensorDescriptor{}
}

func TestDiscovery_Sensor(t *testing.T) {
	d := NewDiscovery(mqtt.NewTopics("msh/2/json"))

	tests := []struct {
		sensor  string
		topic   string
		payload string
	}{
		{
			sensor: "battery_voltage",
			topic:  "homeassistant/sensor/1234/battery_voltage/config",
			payload: `{"name":"AB1 Battery Voltage","unique_id":"ab1_battery_voltage",` +
				`"state_topic":"msh/2/json/1234/device","state_class":"measurement","platform":"mqtt",` +
				`"device_class":"voltage","unit_of_measurement":"V",` +
				`"value_template":"{{ (value_json.voltage | float) | round(1) }}"}`,
		},
		{
			sensor: "rssi",
			topic:  "homeassistant/sensor/1234/rssi/config",
			payload: `{"name":"AB1 RSSI","unique_id":"ab1_rssi",` +
				`"state_topic":"msh/2/json/1234/device","state_class":"measurement","platform":"mqtt",` +
				`"device_class":"signal_strength","unit_of_measurement":"dBm",` +
				`"value_template":"{{ (value_json.rssi | int) }}"}`,
		},
		{
			sensor: "snr",
			topic:  "homeassistant/sensor/1234/snr/config",
			payload: `{"name":"AB1 SNR","unique_id":"ab1_snr",` +
				`"state_topic":"msh/2/json/1234/device","state_class":"measurement","platform":"mqtt",` +
				`"value_template":"{{ (value_json.snr | float) | round(1) }}"}`,
		},
		{
			sensor: "chutil",
			topic:  "homeassistant/sensor/1234/chutil/config",
			payload: `{"name":"AB1 Channel Util","unique_id":"ab1_chutil",` +
				`"state_topic":"msh/2/json/1234/device","state_class":"measurement","platform":"mqtt",` +
				`"unit_of_measurement":"%",` +
				`"value_template":"{{ (value_json.channelUtilization | float) | round(1) }}"}`,
		},
		{
			sensor: "temperature",
			topic:  "homeassistant/sensor/1234/temperature/config",
			payload: `{"name":"AB1 Temperature","unique_id":"ab1_temperature",` +
				`"state_topic":"msh/2/json/1234/environment","state_class":"measurement","platform":"mqtt",` +
				`"device_class":"temperature","unit_of_measurement":"°C",` +
				`"value_template":"{{ (value_json.temperature | float) | round(1) }}"}`,
		},
		{
			sensor: "ch3_current",
			topic:  "homeassistant/sensor/1234/ch3_current/config",
			payload: `{"name":"AB1 Current Sensor 3","unique_id":"ab1_ch3_current",` +
				`"state_topic":"msh/2/json/1234/power","state_class":"measurement","platform":"mqtt",` +
				`"device_class":"current","unit_of_measurement":"mA",` +
				`"value_template":"{{ (value_json.ch3Current | float) | round(1) }}"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.sensor, func(t *testing.T) {
			msg, err := d.Sensor(testNode, sensorByID(t, tt.sensor))
			require.NoError(t, err)
			assert.Equal(t, tt.topic, msg.Topic)
			assert.Equal(t, tt.payload, string(msg.Payload))
		})
	}
}

func TestDiscovery_Tracker(t *testing.T) {
	d := NewDiscovery(mqtt.NewTopics("msh/2/json"))

	msg, err := d.Tracker(testNode)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant/device_tracker/1234/config", msg.Topic)
	assert.Equal(t,
		`{"name":"AB1 Position","unique_id":"ab1_position","json_attributes_topic":"msh/2/json/1234/attributes","source_type":"gps"}`,
		string(msg.Payload))
}

func TestDiscovery_Text(t *testing.T) {
	d := NewDiscovery(mqtt.NewTopics("msh/2/json"))
	ch := Channel{Index: 1, Name: "Admin!", Key: "admin", Role: radio.RoleSecondary}

	msg, err := d.Text(ch)
	require.NoError(t, err)
	assert.Equal(t, "homeassistant/text/admin/config", msg.Topic)
	assert.Equal(t,
		`{"name":"Admin!","unique_id":"channel_admin","command_topic":"msh/2/json/admin/command",`+
			`"state_topic":"msh/2/json/admin/state","value_template":"{{ value_json.text }}",`+
			`"mode":"text","icon":"mdi:message-text"}`,
		string(msg.Payload))
}

func TestDiscovery_Idempotent(t *testing.T) {
	d := NewDiscovery(mqtt.NewTopics("msh/2/json"))

	for _, s := range sensorDescriptors {
		first, err := d.Sensor(testNode, s)
		require.NoError(t, err)
		second, err := d.Sensor(testNode, s)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestSensorDescriptors_Table(t *testing.T) {
	descs := SensorDescriptors()
	require.Len(t, descs, 17)

	seen := make(map[string]bool)
	for _, s := range descs {
		assert.False(t, seen[s.ID], "duplicate sensor id %q", s.ID)
		seen[s.ID] = true

		assert.NotEmpty(t, s.DisplayName, s.ID)
		assert.NotEmpty(t, s.SourceProperty, s.ID)
		assert.Contains(t, []StateGroup{GroupDevice, GroupEnvironment, GroupPower}, s.Group, s.ID)
		assert.Equal(t, s.ID, Sanitize(s.ID), "sensor id must be topic safe")
	}

	assert.Equal(t, "channelUtilization", sensorByID(t, "airutiltx").SourceProperty)
	assert.Equal(t, KindInt, sensorByID(t, "rssi").Kind)

	// Returned slice is a copy.
	descs[0].ID = "mutated"
	assert.Equal(t, "battery_voltage", sensorDescriptors[0].ID)
}
