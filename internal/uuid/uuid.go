// Package uuid wraps UUID generation so the rest of the codebase does not
// depend on a specific implementation.
package uuid

import guuid "github.com/google/uuid"

// New returns a random (v4) UUID string.
func New() string {
	return guuid.NewString()
}
