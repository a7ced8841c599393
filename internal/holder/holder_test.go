package holder_test

import (
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/authority"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/holder"
	"github.com/vaibhavgarg9/v2x-communication-simulator/internal/protocol"
)

func newTestAuthority(t *testing.T) *authority.Authority {
	t.Helper()
	key, err := authority.GenerateRootKey(elliptic.P256())
	require.NoError(t, err)
	ca, err := authority.New(key, authority.Options{
		Organization: "V2X-CP",
		Validity:     10 * time.Minute,
	})
	require.NoError(t, err)
	return ca
}

func certSerial(t *testing.T, certPEM string) string {
	t.Helper()
	block, _ := pem.Decode([]byte(certPEM))
	require.NotNil(t, block)
	cert, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	return cert.SerialNumber.String()
}

func TestVehicleRotationAfterNineMessages(t *testing.T) {
	ca := newTestAuthority(t)
	v, err := holder.NewVehicle("veh-1", ca, holder.Config{
		PoolSize:       100,
		RotationPeriod: 10,
	})
	require.NoError(t, err)

	var certs []string
	for i := 0; i < 10; i++ {
		payload, err := v.PrepareMessage(protocol.Fields{"seq": i})
		require.NoError(t, err)
		certs = append(certs, payload.Certificate)
	}

	// Messages 1..9 stay on the first credential; the count reaches 9, so
	// message 10 rotates before it is signed (9 mod (10-1) == 0).
	for i := 1; i < 9; i++ {
		assert.Equal(t, certs[0], certs[i], "message %d must use the first credential", i+1)
	}
	assert.NotEqual(t, certs[0], certs[9], "message 10 must use a rotated credential")
	assert.Equal(t, 1, v.MessageCount(), "count resets on rotation")
}

func TestVehicleBatchRegenerationOnExhaustion(t *testing.T) {
	ca := newTestAuthority(t)
	v, err := holder.NewVehicle("veh-1", ca, holder.Config{
		PoolSize:       3,
		RotationPeriod: 2, // rotate on every message after the first
	})
	require.NoError(t, err)

	firstBatch := map[string]bool{}
	for _, rec := range ca.IssuedTo("veh-1") {
		firstBatch[rec.Serial] = true
	}
	require.Len(t, firstBatch, 3)

	// Messages 1-3 walk the pool to its last slot; message 4 finds
	// index == N-1 and regenerates the whole batch.
	var last protocol.Payload
	for i := 0; i < 4; i++ {
		var err error
		last, err = v.PrepareMessage(protocol.Fields{"seq": i})
		require.NoError(t, err)
	}

	serial := certSerial(t, last.Certificate)
	assert.False(t, firstBatch[serial], "post-exhaustion serial must be disjoint from the first batch")
	assert.Len(t, ca.IssuedTo("veh-1"), 6, "regeneration issues a full new batch")
}

func TestPrepareMessageRoundTrip(t *testing.T) {
	ca := newTestAuthority(t)
	v, err := holder.NewVehicle("veh-1", ca, holder.Config{
		PoolSize:       5,
		RotationPeriod: 10,
	})
	require.NoError(t, err)

	fields := protocol.Fields{
		"message_type": "V2V/BSM",
		"vehicle_id":   "veh-1",
		"speed":        13.9,
		"heading":      90.0,
	}
	payload, err := v.PrepareMessage(fields)
	require.NoError(t, err)

	verdict := ca.Verify(payload, time.Now())
	assert.Equal(t, authority.Verified, verdict.Code)

	// The caller's map is copied, never mutated.
	assert.NotContains(t, fields, protocol.TimestampField)
	assert.Len(t, fields, 4)
}

func TestVehicleRejectsDegenerateRotationPeriod(t *testing.T) {
	ca := newTestAuthority(t)
	_, err := holder.NewVehicle("veh-1", ca, holder.Config{PoolSize: 5, RotationPeriod: 1})
	assert.Error(t, err)

	_, err = holder.NewVehicle("veh-1", ca, holder.Config{PoolSize: 0, RotationPeriod: 10})
	assert.Error(t, err)
}

func TestInfrastructureNeverRotates(t *testing.T) {
	ca := newTestAuthority(t)
	inf, err := holder.NewInfrastructure("tl-01", ca, holder.Config{})
	require.NoError(t, err)

	var first string
	for i := 0; i < 25; i++ {
		payload, err := inf.PrepareMessage(protocol.Fields{"state": "GrYr", "seq": i})
		require.NoError(t, err)
		if i == 0 {
			first = payload.Certificate
		}
		assert.Equal(t, first, payload.Certificate)

		verdict := ca.Verify(payload, time.Now())
		assert.Equal(t, authority.Verified, verdict.Code)
	}

	assert.Equal(t, 25, inf.MessageCount())
	assert.Len(t, ca.IssuedTo("tl-01"), 1, "exactly one credential issued at registration")
}

func TestRevokedVehicleStillSignsLocally(t *testing.T) {
	ca := newTestAuthority(t)
	v, err := holder.NewVehicle("veh-1", ca, holder.Config{PoolSize: 5, RotationPeriod: 10})
	require.NoError(t, err)

	ca.Revoke(certSerial(t, string(v.ActiveCertificate())), "key compromise", "V2X-Root-CA")

	// The holder never consults the CRL; only the verifier enforces it.
	payload, err := v.PrepareMessage(protocol.Fields{"speed": 1.0})
	require.NoError(t, err)

	verdict := ca.Verify(payload, time.Now())
	assert.Equal(t, authority.CertRevoked, verdict.Code)
}
