// Package protocol defines the shared wire types of the trust plane: the
// signed payload envelope, the canonical field-map serialization signed by
// credential holders, and the typed V2X message kinds.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimestampField is the reserved key stamped onto every outgoing message
// immediately before signing. Caller-supplied maps must not set it.
const TimestampField = "security_timestamp"

// Fields is the dynamic field map of one outgoing message.
type Fields map[string]any

// Payload is the transmitted unit: canonical message bytes, a signature
// over those bytes, and the signer's certificate. The private key never
// appears here.
type Payload struct {
	Message     []byte `json:"message"`     // canonical JSON, base64 on the wire
	Signature   string `json:"signature"`   // base64 ASN.1 ECDSA signature
	Certificate string `json:"certificate"` // PEM text
}

// Canonical copies fields, stamps TimestampField with now, and serializes
// the copy to canonical bytes: stable key ordering, compact separators.
// The caller's map is never mutated.
func Canonical(fields Fields, now time.Time) ([]byte, error) {
	stamped := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		stamped[k] = v
	}
	stamped[TimestampField] = now.UTC().Format(time.RFC3339Nano)

	// encoding/json sorts map keys and uses compact separators, which is
	// exactly the canonical form both ends must agree on.
	msg, err := json.Marshal(stamped)
	if err != nil {
		return nil, fmt.Errorf("canonicalize message: %w", err)
	}
	return msg, nil
}
