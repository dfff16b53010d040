package store

import (
	"fmt"
	"regexp"
)

// MaxNameLength is the maximum allowed length of an entry name.
// Matches the VARCHAR(255) constraint of the Postgres schema.
const MaxNameLength = 255

var nameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateName checks that an entry name is safe to use as a file name,
// keychain account, Redis key suffix, or primary key.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("entry name is empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("entry name too long: %d chars (max %d)", len(name), MaxNameLength)
	}
	if !nameRe.MatchString(name) {
		return fmt.Errorf("entry name %q contains invalid characters", name)
	}
	return nil
}
