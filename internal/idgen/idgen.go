// Package idgen generates and validates bead identifiers.
package idgen

import (
	"fmt"
	"regexp"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefix is prepended to every generated bead ID.
const Prefix = "kd-"

// alphabet omits upper case so IDs survive case-insensitive lookups.
const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
const Length = 10

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9]*-[A-Za-z0-9_-]{1,64}$`)

// New returns a fresh bead ID.
func New() (string, error) {
	return NewWithPrefix(Prefix)
}

// NewWithPrefix returns a fresh ID with the given prefix.
func NewWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return prefix + id, nil
}

// Valid reports whether id has the shape of a bead ID: a lower-case prefix,
// a dash, and up to 64 ID characters.
func Valid(id string) bool {
	return idPattern.MatchString(id)
}
