package radio

import (
	"fmt"
	"math"
	"strconv"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers from the Meshtastic protobuf definitions (mesh.proto,
// telemetry.proto, config.proto, channel.proto).
const (
	fromRadioPacket         protowire.Number = 2
	fromRadioMyInfo         protowire.Number = 3
	fromRadioNodeInfo       protowire.Number = 4
	fromRadioConfig         protowire.Number = 5
	fromRadioConfigComplete protowire.Number = 7
	fromRadioRebooted       protowire.Number = 8
	fromRadioChannel        protowire.Number = 10

	toRadioPacket     protowire.Number = 1
	toRadioWantConfig protowire.Number = 3
	toRadioDisconnect protowire.Number = 4
	toRadioHeartbeat  protowire.Number = 7

	meshPacketFrom     protowire.Number = 1
	meshPacketTo       protowire.Number = 2
	meshPacketChannel  protowire.Number = 3
	meshPacketDecoded  protowire.Number = 4
	meshPacketID       protowire.Number = 6
	meshPacketRxTime   protowire.Number = 7
	meshPacketRxSNR    protowire.Number = 8
	meshPacketHopLimit protowire.Number = 9
	meshPacketWantAck  protowire.Number = 10
	meshPacketRxRSSI   protowire.Number = 12
	meshPacketViaMQTT  protowire.Number = 14
	meshPacketHopStart protowire.Number = 15

	dataPortNum      protowire.Number = 1
	dataPayload      protowire.Number = 2
	dataWantResponse protowire.Number = 3

	telemetryTime        protowire.Number = 1
	telemetryDevice      protowire.Number = 2
	telemetryEnvironment protowire.Number = 3
	telemetryPower       protowire.Number = 5

	positionLatitude   protowire.Number = 1
	positionLongitude  protowire.Number = 2
	positionAltitude   protowire.Number = 3
	positionSatsInView protowire.Number = 19

	userID        protowire.Number = 1
	userLongName  protowire.Number = 2
	userShortName protowire.Number = 3

	nodeInfoNum  protowire.Number = 1
	nodeInfoUser protowire.Number = 2

	myInfoNodeNum protowire.Number = 1

	channelIndex    protowire.Number = 1
	channelSettings protowire.Number = 2
	channelRole     protowire.Number = 3

	channelSettingsName protowire.Number = 3

	configLoRa protowire.Number = 6

	loraModemPreset protowire.Number = 2
)

// defaultHopLimit is the firmware default for locally originated packets.
const defaultHopLimit = 3

// metricKind is how a metric field is encoded on the wire.
type metricKind int

const (
	metricFloat metricKind = iota
	metricUint
)

type metricField struct {
	num  protowire.Number
	name string
	kind metricKind
}

// Metric tables in field order; the JSON names match protobuf's
// canonical JSON mapping.
var (
	deviceMetricFields = []metricField{
		{1, "batteryLevel", metricUint},
		{2, "voltage", metricFloat},
		{3, "channelUtilization", metricFloat},
		{4, "airUtilTx", metricFloat},
		{5, "uptimeSeconds", metricUint},
	}

	environmentMetricFields = []metricField{
		{1, "temperature", metricFloat},
		{2, "relativeHumidity", metricFloat},
		{3, "barometricPressure", metricFloat},
		{4, "gasResistance", metricFloat},
		{5, "voltage", metricFloat},
		{6, "current", metricFloat},
		{7, "iaq", metricUint},
		{8, "distance", metricFloat},
		{9, "lux", metricFloat},
		{10, "whiteLux", metricFloat},
		{11, "irLux", metricFloat},
		{12, "uvLux", metricFloat},
		{13, "windDirection", metricUint},
		{14, "windSpeed", metricFloat},
	}

	powerMetricFields = []metricField{
		{1, "ch1Voltage", metricFloat},
		{2, "ch1Current", metricFloat},
		{3, "ch2Voltage", metricFloat},
		{4, "ch2Current", metricFloat},
		{5, "ch3Voltage", metricFloat},
		{6, "ch3Current", metricFloat},
	}
)

// field is one decoded protobuf field. Only the member matching typ is set.
type field struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

func (f field) float32() float64 {
	return widenFloat32(math.Float32frombits(f.fixed32))
}

// rangeFields calls fn for every field in a serialized message.
func rangeFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: tag: %w", ErrDecodingFailed, protowire.ParseError(n))
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.Fixed64Type:
			f.fixed64, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %w", ErrDecodingFailed, num, protowire.ParseError(n))
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// widenFloat32 converts a float32 to the float64 with the same shortest
// decimal form, so 4.01f encodes as 4.01 rather than 4.010000228881836.
func widenFloat32(v float32) float64 {
	f, err := strconv.ParseFloat(strconv.FormatFloat(float64(v), 'g', -1, 32), 64)
	if err != nil {
		return float64(v)
	}
	return f
}

// fromRadio is a decoded FromRadio envelope. At most one member is set.
type fromRadio struct {
	packet         *Packet
	myNodeNum      *uint32
	nodeInfo       *NodeInfo
	channel        *ChannelSettings
	modemPreset    *ModemPreset
	configComplete *uint32
	rebooted       bool
}

func decodeFromRadio(b []byte) (fromRadio, error) {
	var msg fromRadio
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case fromRadioPacket:
			p, err := decodeMeshPacket(f.bytes)
			if err != nil {
				return err
			}
			msg.packet = p
		case fromRadioMyInfo:
			num, err := decodeMyNodeNum(f.bytes)
			if err != nil {
				return err
			}
			msg.myNodeNum = &num
		case fromRadioNodeInfo:
			info, err := decodeNodeInfo(f.bytes)
			if err != nil {
				return err
			}
			msg.nodeInfo = info
		case fromRadioConfig:
			preset, ok, err := decodeLoRaPreset(f.bytes)
			if err != nil {
				return err
			}
			if ok {
				msg.modemPreset = &preset
			}
		case fromRadioConfigComplete:
			id := uint32(f.varint)
			msg.configComplete = &id
		case fromRadioRebooted:
			msg.rebooted = protowire.DecodeBool(f.varint)
		case fromRadioChannel:
			ch, err := decodeChannel(f.bytes)
			if err != nil {
				return err
			}
			msg.channel = ch
		}
		return nil
	})
	return msg, err
}

func decodeMeshPacket(b []byte) (*Packet, error) {
	p := &Packet{}
	var data []byte
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case meshPacketFrom:
			p.From = f.fixed32
		case meshPacketTo:
			p.To = f.fixed32
		case meshPacketChannel:
			ch := uint32(f.varint)
			p.Channel = &ch
		case meshPacketDecoded:
			data = f.bytes
		case meshPacketID:
			p.ID = f.fixed32
		case meshPacketRxTime:
			p.RxTime = f.fixed32
		case meshPacketRxSNR:
			snr := f.float32()
			p.RxSNR = &snr
		case meshPacketHopLimit:
			v := uint32(f.varint)
			p.HopLimit = &v
		case meshPacketRxRSSI:
			rssi := int32(f.varint)
			p.RxRSSI = &rssi
		case meshPacketViaMQTT:
			p.ViaMQTT = protowire.DecodeBool(f.varint)
		case meshPacketHopStart:
			v := uint32(f.varint)
			p.HopStart = &v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.FromID = NodeID(p.From)

	if data != nil {
		if err := decodeData(p, data); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// decodeData fills the port, raw payload and the typed payload for the
// ports the bridge understands. A typed payload that fails to parse is
// left nil; the raw bytes are kept.
func decodeData(p *Packet, b []byte) error {
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case dataPortNum:
			p.PortNum = PortNum(f.varint)
		case dataPayload:
			p.Payload = f.bytes
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch p.PortNum {
	case PortTextMessage, PortDetectionSensor:
		p.Text = string(p.Payload)
	case PortTelemetry:
		if t, err := decodeTelemetry(p.Payload); err == nil {
			p.Telemetry = t
		}
	case PortPosition:
		if pos, err := decodePosition(p.Payload); err == nil {
			p.Position = pos
		}
	case PortNodeInfo:
		if u, err := decodeUser(p.Payload); err == nil {
			p.User = u
		}
	}
	return nil
}

func decodeTelemetry(b []byte) (*Telemetry, error) {
	t := &Telemetry{}
	err := rangeFields(b, func(f field) error {
		var err error
		switch f.num {
		case telemetryTime:
			t.Time = f.fixed32
		case telemetryDevice:
			t.Device, err = decodeMetrics(f.bytes, deviceMetricFields)
		case telemetryEnvironment:
			t.Environment, err = decodeMetrics(f.bytes, environmentMetricFields)
		case telemetryPower:
			t.Power, err = decodeMetrics(f.bytes, powerMetricFields)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// decodeMetrics returns the fields present in b, ordered as in table.
// The result is non-nil even when no field is present so an empty group
// is distinguishable from an absent one.
func decodeMetrics(b []byte, table []metricField) ([]Metric, error) {
	values := make(map[protowire.Number]float64, len(table))
	err := rangeFields(b, func(f field) error {
		for _, mf := range table {
			if mf.num != f.num {
				continue
			}
			switch {
			case mf.kind == metricFloat && f.typ == protowire.Fixed32Type:
				values[f.num] = f.float32()
			case mf.kind == metricUint && f.typ == protowire.VarintType:
				values[f.num] = float64(uint32(f.varint))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics := make([]Metric, 0, len(values))
	for _, mf := range table {
		if v, ok := values[mf.num]; ok {
			metrics = append(metrics, Metric{Name: mf.name, Value: v})
		}
	}
	return metrics, nil
}

func decodePosition(b []byte) (*Position, error) {
	pos := &Position{}
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case positionLatitude:
			pos.Latitude = float64(int32(f.fixed32)) * 1e-7
		case positionLongitude:
			pos.Longitude = float64(int32(f.fixed32)) * 1e-7
		case positionAltitude:
			pos.Altitude = int32(f.varint)
		case positionSatsInView:
			pos.SatsInView = uint32(f.varint)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pos, nil
}

func decodeUser(b []byte) (*User, error) {
	u := &User{}
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case userID:
			u.ID = string(f.bytes)
		case userLongName:
			u.LongName = string(f.bytes)
		case userShortName:
			u.ShortName = string(f.bytes)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func decodeNodeInfo(b []byte) (*NodeInfo, error) {
	info := &NodeInfo{}
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case nodeInfoNum:
			info.Num = uint32(f.varint)
		case nodeInfoUser:
			u, err := decodeUser(f.bytes)
			if err != nil {
				return err
			}
			info.User = *u
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

func decodeMyNodeNum(b []byte) (uint32, error) {
	var num uint32
	err := rangeFields(b, func(f field) error {
		if f.num == myInfoNodeNum {
			num = uint32(f.varint)
		}
		return nil
	})
	return num, err
}

func decodeChannel(b []byte) (*ChannelSettings, error) {
	ch := &ChannelSettings{}
	err := rangeFields(b, func(f field) error {
		switch f.num {
		case channelIndex:
			ch.Index = int(int32(f.varint))
		case channelRole:
			ch.Role = Role(int32(f.varint))
		case channelSettings:
			return rangeFields(f.bytes, func(sf field) error {
				if sf.num == channelSettingsName {
					ch.Name = string(sf.bytes)
				}
				return nil
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// decodeLoRaPreset extracts the modem preset from a Config message.
// ok is false when the Config carries a section other than lora.
func decodeLoRaPreset(b []byte) (preset ModemPreset, ok bool, err error) {
	err = rangeFields(b, func(f field) error {
		if f.num != configLoRa {
			return nil
		}
		ok = true
		return rangeFields(f.bytes, func(lf field) error {
			if lf.num == loraModemPreset {
				preset = ModemPreset(lf.varint)
			}
			return nil
		})
	})
	return preset, ok, err
}

// encodeWantConfig builds a ToRadio requesting the node database and
// configuration dump tagged with nonce.
func encodeWantConfig(nonce uint32) []byte {
	b := protowire.AppendTag(nil, toRadioWantConfig, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(nonce))
}

// encodeHeartbeat builds a ToRadio carrying an empty Heartbeat.
func encodeHeartbeat() []byte {
	b := protowire.AppendTag(nil, toRadioHeartbeat, protowire.BytesType)
	return protowire.AppendBytes(b, nil)
}

// encodeDisconnect builds a ToRadio telling the radio the client is leaving.
func encodeDisconnect() []byte {
	b := protowire.AppendTag(nil, toRadioDisconnect, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(true))
}

// encodeTextPacket builds a ToRadio carrying a TEXT_MESSAGE_APP MeshPacket.
func encodeTextPacket(id uint32, msg TextMessage) []byte {
	var data []byte
	data = protowire.AppendTag(data, dataPortNum, protowire.VarintType)
	data = protowire.AppendVarint(data, uint64(PortTextMessage))
	data = protowire.AppendTag(data, dataPayload, protowire.BytesType)
	data = protowire.AppendString(data, msg.Text)
	if msg.WantResponse {
		data = protowire.AppendTag(data, dataWantResponse, protowire.VarintType)
		data = protowire.AppendVarint(data, protowire.EncodeBool(true))
	}

	var pkt []byte
	pkt = protowire.AppendTag(pkt, meshPacketTo, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, msg.Destination)
	if msg.Channel != 0 {
		pkt = protowire.AppendTag(pkt, meshPacketChannel, protowire.VarintType)
		pkt = protowire.AppendVarint(pkt, uint64(msg.Channel))
	}
	pkt = protowire.AppendTag(pkt, meshPacketDecoded, protowire.BytesType)
	pkt = protowire.AppendBytes(pkt, data)
	pkt = protowire.AppendTag(pkt, meshPacketID, protowire.Fixed32Type)
	pkt = protowire.AppendFixed32(pkt, id)
	pkt = protowire.AppendTag(pkt, meshPacketHopLimit, protowire.VarintType)
	pkt = protowire.AppendVarint(pkt, defaultHopLimit)
	if msg.WantAck {
		pkt = protowire.AppendTag(pkt, meshPacketWantAck, protowire.VarintType)
		pkt = protowire.AppendVarint(pkt, protowire.EncodeBool(true))
	}

	b := protowire.AppendTag(nil, toRadioPacket, protowire.BytesType)
	return protowire.AppendBytes(b, pkt)
}
