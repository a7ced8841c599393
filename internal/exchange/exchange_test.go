package exchange_test

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/exchange"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/holder"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

func setup(t *testing.T) (*authority.Authority, *exchange.Exchange, *holder.Vehicle) {
	t.Helper()

	key, err := authority.GenerateRootKey(elliptic.P256())
	require.NoError(t, err)
	ca, err := authority.New(key, authority.Options{Organization: "V2X-CP", Validity: 10 * time.Minute})
	require.NoError(t, err)

	v, err := holder.NewVehicle("veh-1", ca, holder.Config{PoolSize: 5, RotationPeriod: 10})
	require.NoError(t, err)

	return ca, exchange.New(ca, nil, nil, nil), v
}

func TestVehicleToVehicleExchange(t *testing.T) {
	_, x, v := setup(t)

	ev := exchange.Event{
		SenderID:           "veh-1",
		ReceiverID:         "veh-2",
		CollisionPredicted: true,
		Proximity:          12.3,
		TimeToCollision:    2.1,
	}
	payload, verdict, err := x.VehicleToVehicle(v, ev, protocol.BasicSafetyMessage{
		VehicleID: "veh-1",
		Timestamp: time.Now(),
		Speed:     13.9,
	})
	require.NoError(t, err)
	assert.True(t, verdict.OK())
	assert.NotEmpty(t, payload.Signature)
	assert.Contains(t, payload.Certificate, "BEGIN CERTIFICATE")
}

func TestNoExchangeWithoutCollisionPrediction(t *testing.T) {
	_, x, v := setup(t)

	ev := exchange.Event{SenderID: "veh-1", ReceiverID: "veh-2", CollisionPredicted: false}

	_, _, err := x.VehicleToVehicle(v, ev, protocol.BasicSafetyMessage{VehicleID: "veh-1"})
	assert.ErrorIs(t, err, exchange.ErrNoExchange)

	_, _, err = x.VehicleToPedestrian(v, ev, protocol.PedestrianSafetyMessage{VehicleID: "veh-1"})
	assert.ErrorIs(t, err, exchange.ErrNoExchange)
}

func TestInfrastructureExchangeIsProximityGated(t *testing.T) {
	ca, x, _ := setup(t)

	inf, err := holder.NewInfrastructure("tl-01", ca, holder.Config{})
	require.NoError(t, err)

	// No collision prediction exists for fixed infrastructure; proximity
	// alone triggers the exchange.
	ev := exchange.Event{SenderID: "tl-01", ReceiverID: "veh-1", Proximity: 80}
	_, verdict, err := x.InfrastructureToVehicle(inf, ev, protocol.SignalPhaseMessage{
		InfrastructureID: "tl-01",
		Timestamp:        time.Now(),
		State:            "GrYr",
	})
	require.NoError(t, err)
	assert.True(t, verdict.OK())
}

func TestExchangeClassifiesRevokedSender(t *testing.T) {
	ca, x, v := setup(t)

	block, _ := pem.Decode(v.ActiveCertificate())
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	ca.Revoke(cert.SerialNumber.String(), "key compromise", ca.Name())

	ev := exchange.Event{SenderID: "veh-1", ReceiverID: "veh-2", CollisionPredicted: true, TimeToCollision: 1.5}
	_, verdict, err := x.VehicleToVehicle(v, ev, protocol.BasicSafetyMessage{VehicleID: "veh-1"})
	require.NoError(t, err)
	assert.Equal(t, authority.CertRevoked, verdict.Code)
	assert.Equal(t, "key compromise", verdict.RevocationReason)
}
