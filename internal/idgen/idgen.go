// Package idgen generates action identifiers backed by nanoid.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ActionPrefix is prepended to every action ID.
const ActionPrefix = "act-"

// alphabet is lower-case only so IDs read cleanly in logs and subjects.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// length is the number of random characters after the prefix.
const length = 12

// Generator returns a new identifier on each call.
type Generator func() (string, error)

// NewActionID returns a random action ID.
func NewActionID() (string, error) {
	return New(ActionPrefix)
}

// New returns a random ID with the given prefix.
func New(prefix string) (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// Sequence returns a deterministic Generator yielding prefix1, prefix2, ...
func Sequence(prefix string) Generator {
	var n atomic.Uint64
	return func() (string, error) {
		return prefix + strconv.FormatUint(n.Add(1), 10), nil
	}
}
