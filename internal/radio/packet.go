package radio

import "fmt"

// BroadcastAddr is the destination node number for a mesh-wide broadcast.
const BroadcastAddr uint32 = 0xFFFFFFFF

// maxTextPayload is the largest Data.payload the firmware accepts.
const maxTextPayload = 233

// PortNum identifies the application a mesh packet's payload belongs to.
type PortNum uint32

// Application ports the bridge interprets.
const (
	PortUnknown         PortNum = 0
	PortTextMessage     PortNum = 1
	PortPosition        PortNum = 3
	PortNodeInfo        PortNum = 4
	PortDetectionSensor PortNum = 10
	PortTelemetry       PortNum = 67
)

// String returns the firmware name of the port.
func (p PortNum) String() string {
	switch p {
	case PortUnknown:
		return "UNKNOWN_APP"
	case PortTextMessage:
		return "TEXT_MESSAGE_APP"
	case PortPosition:
		return "POSITION_APP"
	case PortNodeInfo:
		return "NODEINFO_APP"
	case PortDetectionSensor:
		return "DETECTION_SENSOR_APP"
	case PortTelemetry:
		return "TELEMETRY_APP"
	default:
		return fmt.Sprintf("PORT_%d", uint32(p))
	}
}

// NodeID formats a node number the way the firmware prints it.
//
// Example: 0x1234abcd → "!1234abcd"
func NodeID(num uint32) string {
	return fmt.Sprintf("!%08x", num)
}

// Metric is one named telemetry reading. Name is the camelCase protobuf
// JSON name of the field it was decoded from.
type Metric struct {
	Name  string
	Value float64
}

// Telemetry holds the metric groups present in a telemetry packet.
// A nil group was absent on the wire. Metrics within a group are in
// protobuf field order.
type Telemetry struct {
	Time        uint32
	Device      []Metric
	Environment []Metric
	Power       []Metric
}

// Position is a decoded position report.
type Position struct {
	Latitude   float64
	Longitude  float64
	Altitude   int32
	SatsInView uint32
}

// Packet is a decoded mesh packet received from the radio.
//
// Optional radio metadata uses pointers: nil means the field was not
// present in the frame.
type Packet struct {
	ID      uint32
	From    uint32
	FromID  string
	To      uint32
	PortNum PortNum
	Payload []byte

	Channel  *uint32
	RxRSSI   *int32
	RxSNR    *float64
	HopStart *uint32
	HopLimit *uint32
	RxTime   uint32
	ViaMQTT  bool

	// Exactly one of these is set according to PortNum, when the payload
	// decoded cleanly.
	Telemetry *Telemetry
	Position  *Position
	Text      string
	User      *User
}

// ChannelIndex returns the packet's channel slot, defaulting to 0.
func (p *Packet) ChannelIndex() int {
	if p.Channel == nil {
		return 0
	}
	return int(*p.Channel)
}

// User is the identity a node announces.
type User struct {
	ID        string
	LongName  string
	ShortName string
}

// NodeInfo is one node directory entry.
type NodeInfo struct {
	Num  uint32
	User User
}

// Role is a channel slot's role on the local node.
type Role int32

// Channel roles as defined by the firmware.
const (
	RoleDisabled  Role = 0
	RolePrimary   Role = 1
	RoleSecondary Role = 2
)

// String returns the firmware name of the role.
func (r Role) String() string {
	switch r {
	case RoleDisabled:
		return "DISABLED"
	case RolePrimary:
		return "PRIMARY"
	case RoleSecondary:
		return "SECONDARY"
	default:
		return fmt.Sprintf("ROLE_%d", int32(r))
	}
}

// ChannelSettings is the local node's configuration of one channel slot.
type ChannelSettings struct {
	Index int
	Name  string
	Role  Role
}

// TextMessage is an outbound text send request.
type TextMessage struct {
	Text         string
	Destination  uint32
	WantAck      bool
	WantResponse bool
	Channel      int
}

// EventKind discriminates radio events.
type EventKind int

// Event kinds delivered on Client.Events().
const (
	EventPacket EventKind = iota
	EventConnected
	EventDisconnected
)

// String returns a short label for logs.
func (k EventKind) String() string {
	switch k {
	case EventPacket:
		return "packet"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a single item from the radio's event stream.
type Event struct {
	Kind   EventKind
	Packet *Packet
	Err    error
}
