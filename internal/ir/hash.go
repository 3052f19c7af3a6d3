package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainNetwork = "procnet/network/v1"
	DomainTrace   = "procnet/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// NetworkHash computes the content-addressed identity of a network.
// Two networks with the same channels, procs and nodes in the same
// declaration order hash identically. Stored with recorded runs so a
// replay can refuse to run against a different network.
func NetworkHash(n *Network) (string, error) {
	canonical, err := MarshalCanonical(n.Describe())
	if err != nil {
		return "", fmt.Errorf("NetworkHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainNetwork, canonical), nil
}

// TraceHash computes a digest over an already-canonical description of a
// run's channel events. Used to compare a replay against its recording.
func TraceHash(events []any) (string, error) {
	canonical, err := MarshalCanonical(events)
	if err != nil {
		return "", fmt.Errorf("TraceHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}
