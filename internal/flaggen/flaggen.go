// Package flaggen derives per-student proof tokens. Tokens are never
// stored: verification recomputes them, so the derivation must stay
// byte-stable across releases.
package flaggen

import (
	"fmt"

	"github.com/google/uuid"
)

// Namespace for name-based derivation. This is the RFC 4122 DNS namespace
// and is part of the wire format: changing it invalidates every flag ever
// handed to a student.
var Namespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Derive returns the token a student must submit for an exercise. For a
// fixed (studentID, exerciseID, seed) the result is stable across calls
// and restarts. With an empty studentID there is no identity to bind the
// token to, so a random one is returned instead; it will not verify in a
// later session.
func Derive(studentID string, exerciseID int, seed string) string {
	if studentID == "" {
		return uuid.NewString()
	}
	name := fmt.Sprintf("%s_%d_%s", studentID, exerciseID, seed)
	return uuid.NewSHA1(Namespace, []byte(name)).String()
}
