package capture

import "time"

// Clock abstracts time so transforms and tests stay deterministic.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces unique identifiers for captured items.
type IDGenerator interface {
	NewID() (string, error)
}

// Hasher produces stable content hashes, used to name archived payloads.
type Hasher interface {
	Hash(data []byte) (string, error)
}
