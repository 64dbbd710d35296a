package model

import "time"

type Ticket struct {
	// Position in the service order. Unique among live tickets and never
	// below the current serving number.
	Number int64 `json:"number"`

	// Display label chosen by the client, already trimmed.
	Name string `json:"name"`

	// The time when ticket is created. Only used to break ties.
	CreatedAt time.Time `json:"createdAt"`
}

// Role of a client relative to the serving counter.
type Role string

const (
	NotQueued   Role = "NotQueued"
	Waiting     Role = "Waiting"
	BeingServed Role = "BeingServed"
)

// RoleOf derives a role by comparing the number a client holds with the
// serving counter. A zero number means the client holds no ticket.
func RoleOf(myNumber, serving int64) Role {
	switch {
	case myNumber <= 0:
		return NotQueued
	case myNumber == serving:
		return BeingServed
	case myNumber > serving:
		return Waiting
	default:
		// Passed already, the ticket cannot exist anymore.
		return NotQueued
	}
}
