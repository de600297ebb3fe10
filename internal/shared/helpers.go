// Package shared provides common utility functions used across multiple
// packages in the reprosign codebase.
package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"
)

// DigestBytes returns the hex SHA-256 digest of raw bytes. Every
// builder and the verification engine hash artifacts with this one
// function so digests are comparable across components.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalDigest hashes the RFC 8785 canonical JSON form of v, so the
// digest is stable across field ordering and encoders.
func CanonicalDigest(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal for canonical digest: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return DigestBytes(canonical), nil
}

// ValidDigest reports whether s looks like a hex SHA-256 digest.
func ValidDigest(s string) bool {
	if len(s) != 64 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// VotePayload is the canonical byte string an authorizer signs to bind
// a vote to one request and one artifact digest.
func VotePayload(requestID, digest, decision string) []byte {
	return []byte(strings.Join([]string{"reprosign.vote", requestID, digest, decision}, ":"))
}

// CommandError wraps a command execution error with its trimmed output
// for cleaner error messages.
func CommandError(output []byte, err error) error {
	return fmt.Errorf("%s: %w", strings.TrimSpace(string(output)), err)
}
