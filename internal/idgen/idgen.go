// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the two kinds of board records.
const (
	TaskPrefix    = "jt-"
	ProjectPrefix = "pj-"
)

// Alphabet defines the character set used for the random portion of the ID.
// Lowercase only; IDs are typed on the command line.
var Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Task returns a new task ID.
func Task() (string, error) {
	return GenerateWithPrefix(TaskPrefix)
}

// Project returns a new project ID.
func Project() (string, error) {
	return GenerateWithPrefix(ProjectPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
