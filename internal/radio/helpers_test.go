package radio

import (
	"math"
	"net"
	"testing"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// --- protobuf builders ---

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFixed32(b []byte, num protowire.Number, v uint32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	return appendFixed32(b, num, math.Float32bits(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func userMsg(id, long, short string) []byte {
	var b []byte
	b = appendString(b, userID, id)
	b = appendString(b, userLongName, long)
	return appendString(b, userShortName, short)
}

func nodeInfoFromRadio(num uint32, short string) []byte {
	var info []byte
	info = appendVarint(info, nodeInfoNum, uint64(num))
	info = appendMessage(info, nodeInfoUser, userMsg(NodeID(num), "Node "+short, short))
	return appendMessage(nil, fromRadioNodeInfo, info)
}

func myInfoFromRadio(num uint32) []byte {
	return appendMessage(nil, fromRadioMyInfo, appendVarint(nil, myInfoNodeNum, uint64(num)))
}

func channelFromRadio(index int, name string, role Role) []byte {
	var ch []byte
	ch = appendVarint(ch, channelIndex, uint64(index))
	var settings []byte
	if name != "" {
		settings = appendString(settings, channelSettingsName, name)
	}
	ch = appendMessage(ch, channelSettings, settings)
	if role != RoleDisabled {
		ch = appendVarint(ch, channelRole, uint64(role))
	}
	return appendMessage(nil, fromRadioChannel, ch)
}

func loraFromRadio(preset ModemPreset) []byte {
	var lora []byte
	lora = appendVarint(lora, 1, 1) // use_preset
	lora = appendVarint(lora, loraModemPreset, uint64(preset))
	return appendMessage(nil, fromRadioConfig, appendMessage(nil, configLoRa, lora))
}

func configCompleteFromRadio(nonce uint32) []byte {
	return appendVarint(nil, fromRadioConfigComplete, uint64(nonce))
}

func rebootedFromRadio() []byte {
	return appendVarint(nil, fromRadioRebooted, 1)
}

func deviceTelemetry(battery uint32, voltage float32) []byte {
	var dm []byte
	dm = appendVarint(dm, 1, uint64(battery))
	dm = appendFloat(dm, 2, voltage)
	return appendMessage(nil, telemetryDevice, dm)
}

type packetOpt func([]byte) []byte

func withRSSI(rssi int32) packetOpt {
	return func(b []byte) []byte { return appendVarint(b, meshPacketRxRSSI, uint64(int64(rssi))) }
}

func withSNR(snr float32) packetOpt {
	return func(b []byte) []byte { return appendFloat(b, meshPacketRxSNR, snr) }
}

func withChannel(ch uint32) packetOpt {
	return func(b []byte) []byte { return appendVarint(b, meshPacketChannel, uint64(ch)) }
}

func withHops(start, limit uint32) packetOpt {
	return func(b []byte) []byte {
		b = appendVarint(b, meshPacketHopLimit, uint64(limit))
		return appendVarint(b, meshPacketHopStart, uint64(start))
	}
}

func meshPacket(from uint32, port PortNum, payload []byte, opts ...packetOpt) []byte {
	var data []byte
	data = appendVarint(data, dataPortNum, uint64(port))
	data = appendMessage(data, dataPayload, payload)

	var pkt []byte
	pkt = appendFixed32(pkt, meshPacketFrom, from)
	pkt = appendFixed32(pkt, meshPacketTo, BroadcastAddr)
	pkt = appendMessage(pkt, meshPacketDecoded, data)
	pkt = appendFixed32(pkt, meshPacketID, 42)
	for _, opt := range opts {
		pkt = opt(pkt)
	}
	return pkt
}

func packetFromRadio(from uint32, port PortNum, payload []byte, opts ...packetOpt) []byte {
	return appendMessage(nil, fromRadioPacket, meshPacket(from, port, payload, opts...))
}

// --- fake radio ---

// fakeRadio plays the device side of a net.Pipe.
type fakeRadio struct {
	t        *testing.T
	conn     net.Conn
	received chan []byte
}

func newFakeRadio(t *testing.T) (*fakeRadio, net.Conn) {
	t.Helper()

	clientSide, radioSide := net.Pipe()
	f := &fakeRadio{t: t, conn: radioSide, received: make(chan []byte, 32)}

	go func() {
		defer close(f.received)
		fr := newFrameReader(radioSide)
		for {
			payload, err := fr.ReadFrame()
			if err != nil {
				return
			}
			f.received <- payload
		}
	}()

	t.Cleanup(func() { radioSide.Close() })
	return f, clientSide
}

func (f *fakeRadio) send(payload []byte) {
	frame, err := encodeFrame(payload)
	if err != nil {
		f.t.Errorf("encodeFrame: %v", err)
		return
	}
	if _, err := f.conn.Write(frame); err != nil {
		f.t.Errorf("fake radio write: %v", err)
	}
}

// next returns the next ToRadio payload written by the client.
func (f *fakeRadio) next() (map[protowire.Number]field, bool) {
	select {
	case payload, ok := <-f.received:
		if !ok {
			return nil, false
		}
		fields := make(map[protowire.Number]field)
		_ = rangeFields(payload, func(fl field) error {
			fields[fl.num] = fl
			return nil
		})
		return fields, true
	case <-time.After(2 * time.Second):
		f.t.Error("timed out waiting for ToRadio")
		return nil, false
	}
}

// serveHandshake answers the want_config request with a typical dump.
func (f *fakeRadio) serveHandshake() {
	fields, ok := f.next()
	if !ok {
		return
	}
	want, ok := fields[toRadioWantConfig]
	if !ok {
		f.t.Error("first ToRadio was not want_config")
		return
	}
	nonce := uint32(want.varint)

	f.send(myInfoFromRadio(0xdeadbeef))
	f.send(nodeInfoFromRadio(0x00001234, "AB1"))
	f.send(nodeInfoFromRadio(0xdeadbeef, "ME"))
	f.send(channelFromRadio(0, "", RolePrimary))
	f.send(channelFromRadio(1, "Admin!", RoleSecondary))
	f.send(channelFromRadio(2, "", RoleDisabled))
	f.send(loraFromRadio(PresetMediumFast))
	f.send(configCompleteFromRadio(nonce + 1)) // stale request id is ignored
	f.send(configCompleteFromRadio(nonce))
}
