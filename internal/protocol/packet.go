package protocol

import (
	"encoding/binary"
	"math"
)

// Role identifies which of the two nodes produced a packet.
type Role uint8

const (
	RolePlant      Role = 0
	RoleController Role = 1
)

func (r Role) String() string {
	switch r {
	case RolePlant:
		return "plant"
	case RoleController:
		return "controller"
	default:
		return "unknown"
	}
}

// Kind identifies the signal a packet carries.
type Kind uint8

const (
	KindSensorReading   Kind = 0
	KindActuatorCommand Kind = 1
)

func (k Kind) String() string {
	switch k {
	case KindSensorReading:
		return "sensor_reading"
	case KindActuatorCommand:
		return "actuator_command"
	default:
		return "unknown"
	}
}

// PacketSize is the exact wire size of one packet. The link delivers
// whole datagrams or nothing, so there is no framing or length prefix.
const PacketSize = 10

// Packet is the only record exchanged between the two nodes. Sequence is
// a per-sender monotonic counter used solely for loss observation; it
// carries no ordering or deduplication semantics.
type Packet struct {
	Origin   Role
	Kind     Kind
	Value    float32
	Sequence uint32
}

// Encode marshals p into its fixed little-endian wire layout.
func Encode(p Packet) []byte {
	buf := make([]byte, PacketSize)
	buf[0] = byte(p.Origin)
	buf[1] = byte(p.Kind)
	binary.LittleEndian.PutUint32(buf[2:6], math.Float32bits(p.Value))
	binary.LittleEndian.PutUint32(buf[6:10], p.Sequence)
	return buf
}

// Decode unmarshals one packet from b. Any buffer whose length is not
// exactly PacketSize is rejected with ErrBadLength; receivers drop such
// traffic silently.
func Decode(b []byte) (Packet, error) {
	if len(b) != PacketSize {
		return Packet{}, ErrBadLength
	}
	return Packet{
		Origin:   Role(b[0]),
		Kind:     Kind(b[1]),
		Value:    math.Float32frombits(binary.LittleEndian.Uint32(b[2:6])),
		Sequence: binary.LittleEndian.Uint32(b[6:10]),
	}, nil
}
