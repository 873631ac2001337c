package sandbox

import "github.com/google/uuid"

// newUUID backs the prelude's UUID() function with a canonical v4 UUID.
func newUUID() string {
	return uuid.NewString()
}
