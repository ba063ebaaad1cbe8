package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNotStarted   = errors.New("trading system not started")
	ErrNoInstrument = errors.New("state has no instrument assigned")
	// ErrInvariant marks a programming-contract violation inside the core;
	// the affected instance skips its cycle, other instances continue.
	ErrInvariant = errors.New("trading invariant violated")
	// ErrOrdersOutstanding is returned when an instrument reassignment is
	// attempted while the state still owns orders.
	ErrOrdersOutstanding = errors.New("state has outstanding orders")
)
