// Package domain holds the value types shared by the reputation engine:
// addresses, vote directions, score arithmetic helpers and the error
// taxonomy surfaced to callers.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Address is an opaque identifier for accounts, fields, posts and comments.
// Accounts registered through signature login use their public key as the
// address; everything else gets a generated one.
type Address string

// NewAddress returns a fresh unique address.
func NewAddress() Address {
	return Address(uuid.New().String())
}

// Direction of a vote.
type Direction int

const (
	Up Direction = iota + 1
	Down
)

// Opposite returns the reversed direction.
func (d Direction) Opposite() Direction {
	if d == Up {
		return Down
	}
	return Up
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection maps the wire spelling of a direction to its value.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "upvote":
		return Up, nil
	case "down", "downvote":
		return Down, nil
	default:
		return 0, fmt.Errorf("unknown vote direction %q", s)
	}
}
