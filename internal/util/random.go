package util

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand/v2"
	"strings"
)

// GenerateRandomID generates a random ID with the specified prefix and hex length.
// The returned ID will be in the format: "{prefix}{hex_string}".
func GenerateRandomID(prefix string, hexLength int) string {
	return prefix + GenerateRandomHex(hexLength)
}

// GenerateRandomHex generates a random hexadecimal string of the specified length.
// Uses math/rand/v2 for non-cryptographic purposes.
func GenerateRandomHex(length int) string {
	if length <= 0 {
		return ""
	}

	const hexChars = "0123456789abcdef"
	var builder strings.Builder
	builder.Grow(length)

	for i := 0; i < length; i++ {
		builder.WriteByte(hexChars[rand.IntN(16)])
	}

	return builder.String()
}

// DerivePatientID derives a stable patient identifier from a profile name.
// The same profile always maps to the same ID, so sessions recorded across
// runs land in the same patient directory. Format: "P_{8 hex chars}".
func DerivePatientID(profileName string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(strings.ToLower(profileName))))
	return "P_" + hex.EncodeToString(sum[:])[:8]
}

// GenerateRunID generates a unique run ID with "run_" prefix, used to tag
// batches of simulated sessions.
func GenerateRunID() string {
	return GenerateRandomID("run_", 16)
}
