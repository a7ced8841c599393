// Package exchange is the messaging-protocol boundary of the trust plane.
// The geometry layer decides when vehicles are close enough and whether a
// collision is predicted; this package only translates those decisions
// into prepare/verify calls and classifies the outcome.
package exchange

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/holder"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/metrics"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

// ErrNoExchange is returned when an event does not warrant a message
// exchange (no collision predicted on a collision-gated channel).
var ErrNoExchange = errors.New("no exchange warranted for event")

// Event is the externally decided trigger for one potential exchange.
// Proximity and TimeToCollision are computed by the excluded geometry
// layer and consumed here as already-decided numbers.
type Event struct {
	SenderID           string
	ReceiverID         string
	CollisionPredicted bool
	Proximity          float64 // metres
	TimeToCollision    float64 // seconds, meaningful only when predicted
}

// Exchange wires credential holders to the authority's verifier for the
// three channel kinds.
type Exchange struct {
	ca      *authority.Authority
	log     *zap.Logger
	metrics *metrics.Set
	clock   func() time.Time
}

// New builds an Exchange. Logger, metrics and clock may be nil.
func New(ca *authority.Authority, log *zap.Logger, m *metrics.Set, clock func() time.Time) *Exchange {
	if log == nil {
		log = zap.NewNop()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Exchange{ca: ca, log: log, metrics: m, clock: clock}
}

// VehicleToVehicle runs a basic-safety-message exchange: the sender signs
// the BSM and the receiving side verifies the payload against the shared
// authority. Only collision-predicted events trigger an exchange.
func (x *Exchange) VehicleToVehicle(sender *holder.Vehicle, ev Event, msg protocol.BasicSafetyMessage) (protocol.Payload, authority.Verdict, error) {
	if !ev.CollisionPredicted {
		return protocol.Payload{}, authority.Verdict{}, ErrNoExchange
	}

	payload, verdict, err := x.run(sender, msg)
	if err != nil {
		return protocol.Payload{}, authority.Verdict{}, err
	}

	x.log.Warn("potential collision, BSM exchanged",
		zap.String("sender", ev.SenderID),
		zap.String("receiver", ev.ReceiverID),
		zap.Float64("ttc_seconds", ev.TimeToCollision),
		zap.String("status", verdict.String()))
	return payload, verdict, nil
}

// VehicleToPedestrian runs a pedestrian-safety-message exchange. The
// vehicle signs; pedestrians carry no credentials and only verify.
func (x *Exchange) VehicleToPedestrian(sender *holder.Vehicle, ev Event, msg protocol.PedestrianSafetyMessage) (protocol.Payload, authority.Verdict, error) {
	if !ev.CollisionPredicted {
		return protocol.Payload{}, authority.Verdict{}, ErrNoExchange
	}

	payload, verdict, err := x.run(sender, msg)
	if err != nil {
		return protocol.Payload{}, authority.Verdict{}, err
	}

	x.log.Warn("potential collision, PSM exchanged",
		zap.String("vehicle", ev.SenderID),
		zap.String("pedestrian", ev.ReceiverID),
		zap.Float64("ttc_seconds", ev.TimeToCollision),
		zap.String("status", verdict.String()))
	return payload, verdict, nil
}

// InfrastructureToVehicle runs a signal-phase exchange towards a vehicle
// inside the configured range. Proximity alone gates this channel; there
// is no collision prediction for fixed infrastructure.
func (x *Exchange) InfrastructureToVehicle(sender *holder.Infrastructure, ev Event, msg protocol.SignalPhaseMessage) (protocol.Payload, authority.Verdict, error) {
	payload, verdict, err := x.run(sender, msg)
	if err != nil {
		return protocol.Payload{}, authority.Verdict{}, err
	}

	x.log.Debug("SPaT exchanged",
		zap.String("infrastructure", ev.SenderID),
		zap.String("vehicle", ev.ReceiverID),
		zap.Float64("proximity_m", ev.Proximity),
		zap.String("status", verdict.String()))
	return payload, verdict, nil
}

// signer is the common surface of both credential holder variants.
type signer interface {
	PrepareMessage(fields protocol.Fields) (protocol.Payload, error)
}

func (x *Exchange) run(sender signer, msg protocol.Message) (protocol.Payload, authority.Verdict, error) {
	payload, err := sender.PrepareMessage(msg.Fields())
	if err != nil {
		return protocol.Payload{}, authority.Verdict{}, err
	}

	verdict := x.ca.Verify(payload, x.clock())
	x.metrics.ObserveVerdict(verdict.Code.String())
	return payload, verdict, nil
}
