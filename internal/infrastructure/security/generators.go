package security

import "github.com/oklog/ulid/v2"

// GenerateULID generates a new ULID string, used for request correlation and
// audit record ids.
func GenerateULID() string {
	return ulid.Make().String()
}
