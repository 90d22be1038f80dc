// Package generation holds the domain types of a generation request and
// the rules governing its lifecycle.
package generation

import (
	"errors"
	"fmt"
)

// Type is the media type a generation produces.
type Type string

const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// Valid reports whether t is a known media type.
func (t Type) Valid() bool {
	return t == TypeImage || t == TypeVideo
}

// Status is the lifecycle state of a generation.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// ErrIllegalTransition is returned when a status change is not permitted.
var ErrIllegalTransition = errors.New("illegal status transition")

// transitions lists the permitted moves. queued -> failed covers a job that
// is given up before it ever ran.
var transitions = map[Status][]Status{
	StatusQueued:  {StatusRunning, StatusFailed},
	StatusRunning: {StatusSuccess, StatusFailed},
	StatusSuccess: nil,
	StatusFailed:  nil,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no further transition can happen from s.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates a move and returns the new status.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	return to, nil
}

// NonTerminal lists the statuses a completion may start from.
func NonTerminal() []Status {
	return []Status{StatusQueued, StatusRunning}
}
