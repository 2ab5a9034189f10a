package bridge

// StateGroup is the telemetry state topic a sensor reads from.
type StateGroup string

// Telemetry state groups, in dispatch priority order.
const (
	GroupDevice      StateGroup = "device"
	GroupEnvironment StateGroup = "environment"
	GroupPower       StateGroup = "power"
)

// ValueKind selects the sensor's value template.
type ValueKind int

// Value kinds.
const (
	KindFloat ValueKind = iota
	KindInt
)

// SensorDescriptor describes one Home Assistant sensor announced for every
// node that sends telemetry. Empty DeviceClass or Unit are omitted from the
// discovery config.
type SensorDescriptor struct {
	ID             string
	DisplayName    string
	Group          StateGroup
	DeviceClass    string
	Unit           string
	SourceProperty string
	Kind           ValueKind
}

// sensorDescriptors is announced in this order on every telemetry packet.
//
// airutiltx reads channelUtilization, not airUtilTx.
var sensorDescriptors = [17]SensorDescriptor{
	{ID: "battery_voltage", DisplayName: "Battery Voltage", Group: GroupDevice, DeviceClass: "voltage", Unit: "V", SourceProperty: "voltage", Kind: KindFloat},
	{ID: "battery_percent", DisplayName: "Battery Level", Group: GroupDevice, DeviceClass: "battery", Unit: "%", SourceProperty: "batteryLevel", Kind: KindFloat},
	{ID: "chutil", DisplayName: "Channel Util", Group: GroupDevice, Unit: "%", SourceProperty: "channelUtilization", Kind: KindFloat},
	{ID: "airutiltx", DisplayName: "Air Util Tx", Group: GroupDevice, Unit: "%", SourceProperty: "channelUtilization", Kind: KindFloat},
	{ID: "temperature", DisplayName: "Temperature", Group: GroupEnvironment, DeviceClass: "temperature", Unit: "°C", SourceProperty: "temperature", Kind: KindFloat},
	{ID: "humidity", DisplayName: "Humidity", Group: GroupEnvironment, DeviceClass: "humidity", Unit: "%", SourceProperty: "relativeHumidity", Kind: KindFloat},
	{ID: "pressure", DisplayName: "Pressure", Group: GroupEnvironment, DeviceClass: "atmospheric_pressure", Unit: "hPa", SourceProperty: "barometricPressure", Kind: KindFloat},
	{ID: "voltage", DisplayName: "Voltage", Group: GroupEnvironment, DeviceClass: "voltage", Unit: "V", SourceProperty: "voltage", Kind: KindFloat},
	{ID: "current", DisplayName: "Current", Group: GroupEnvironment, DeviceClass: "current", Unit: "mA", SourceProperty: "current", Kind: KindFloat},
	{ID: "rssi", DisplayName: "RSSI", Group: GroupDevice, DeviceClass: "signal_strength", Unit: "dBm", SourceProperty: "rssi", Kind: KindInt},
	{ID: "snr", DisplayName: "SNR", Group: GroupDevice, SourceProperty: "snr", Kind: KindFloat},
	{ID: "ch1_voltage", DisplayName: "Voltage Sensor 1", Group: GroupPower, DeviceClass: "voltage", Unit: "V", SourceProperty: "ch1Voltage", Kind: KindFloat},
	{ID: "ch1_current", DisplayName: "Current Sensor 1", Group: GroupPower, DeviceClass: "current", Unit: "mA", SourceProperty: "ch1Current", Kind: KindFloat},
	{ID: "ch2_voltage", DisplayName: "Voltage Sensor 2", Group: GroupPower, DeviceClass: "voltage", Unit: "V", SourceProperty: "ch2Voltage", Kind: KindFloat},
	{ID: "ch2_current", DisplayName: "Current Sensor 2", Group: GroupPower, DeviceClass: "current", Unit: "mA", SourceProperty: "ch2Current", Kind: KindFloat},
	{ID: "ch3_voltage", DisplayName: "Voltage Sensor 3", Group: GroupPower, DeviceClass: "voltage", Unit: "V", SourceProperty: "ch3Voltage", Kind: KindFloat},
	{ID: "ch3_current", DisplayName: "Current Sensor 3", Group: GroupPower, DeviceClass: "current", Unit: "mA", SourceProperty: "ch3Current", Kind: KindFloat},
}

// SensorDescriptors returns a copy of the sensor table.
func SensorDescriptors() []SensorDescriptor {
	out := make([]SensorDescriptor, len(sensorDescriptors))
	copy(out, sensorDescriptors[:])
	return out
}
