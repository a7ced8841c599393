package protocol

import "time"

// Kind tags the distinct V2X message kinds carried over each channel.
type Kind string

const (
	KindBSM  Kind = "V2V/BSM"  // basic safety message, vehicle to vehicle
	KindPSM  Kind = "V2P/PSM"  // pedestrian safety message, vehicle to pedestrian
	KindSPaT Kind = "V2I/SPaT" // signal phase and timing, infrastructure to vehicle
)

// Message is implemented by every typed V2X message kind. Fields returns
// the dynamic map handed to a credential holder for signing.
type Message interface {
	Kind() Kind
	Fields() Fields
}

// BasicSafetyMessage is the V2V safety broadcast. Pointer fields are
// placeholders for readings the simulation has no hardware for; they stay
// null on the wire.
type BasicSafetyMessage struct {
	VehicleID    string
	MessageCount int
	Timestamp    time.Time
	Latitude     float64
	Longitude    float64
	Elevation    *float64
	Accuracy     *float64
	Transmission *string
	Speed        float64
	Heading      float64
	Angle        *float64
	AccelSet     *float64
	Brakes       *string
	Size         [2]float64 // length, width
}

func (m BasicSafetyMessage) Kind() Kind { return KindBSM }

func (m BasicSafetyMessage) Fields() Fields {
	return Fields{
		"message_type":  string(KindBSM),
		"vehicle_id":    m.VehicleID,
		"message_count": m.MessageCount,
		"timestamp":     m.Timestamp.UTC().Format(time.RFC3339Nano),
		"latitude":      m.Latitude,
		"longitude":     m.Longitude,
		"elevation":     m.Elevation,
		"accuracy":      m.Accuracy,
		"transmission":  m.Transmission,
		"speed":         m.Speed,
		"heading":       m.Heading,
		"angle":         m.Angle,
		"accelSet":      m.AccelSet,
		"brakes":        m.Brakes,
		"size":          m.Size,
	}
}

// PedestrianSafetyMessage is sent by a vehicle towards a nearby pedestrian.
type PedestrianSafetyMessage struct {
	VehicleID    string
	MessageCount int
	Timestamp    time.Time
	Position     [2]float64 // x, y
	Accuracy     *float64
	Speed        float64
	Heading      float64
}

func (m PedestrianSafetyMessage) Kind() Kind { return KindPSM }

func (m PedestrianSafetyMessage) Fields() Fields {
	return Fields{
		"message_type":  string(KindPSM),
		"vehicle_id":    m.VehicleID,
		"message_count": m.MessageCount,
		"timestamp":     m.Timestamp.UTC().Format(time.RFC3339Nano),
		"position":      m.Position,
		"accuracy":      m.Accuracy,
		"speed":         m.Speed,
		"heading":       m.Heading,
	}
}

// SignalPhaseMessage carries a traffic light's current phase state.
type SignalPhaseMessage struct {
	InfrastructureID string
	MessageCount     int
	Timestamp        time.Time
	State            string
}

func (m SignalPhaseMessage) Kind() Kind { return KindSPaT }

func (m SignalPhaseMessage) Fields() Fields {
	return Fields{
		"message_type":      string(KindSPaT),
		"infrastructure_id": m.InfrastructureID,
		"message_count":     m.MessageCount,
		"timestamp":         m.Timestamp.UTC().Format(time.RFC3339Nano),
		"state":             m.State,
	}
}
