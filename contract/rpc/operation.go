package rpc

// Destination names one logical backend queue/topic.
type Destination string

func (d Destination) String() string { return string(d) }

// Operation is a closed identifier selecting a remote behavior on one destination.
// Each destination declares its own string type implementing Operation so a
// proxy bound to that destination only accepts its own operations.
type Operation interface {
	String() string
	Destination() Destination
	// Valid reports whether the value belongs to the destination's enumeration.
	Valid() bool
}
