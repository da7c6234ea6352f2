package uow

import "bytes"

// Format turns a closed entry's token stream into one framed byte
// record appended to buf. Implementations may buffer internally but
// must not retain references to the entry after returning.
//
// Error discipline: invariant violations (duplicate keys, missing
// dimension properties) come back as *ValidationError; anything else
// is an I/O-level failure. A format wrapped by a sampler signals a
// sampled-out entry by appending nothing and returning nil; sink
// consumers skip empty buffers silently.
type Format interface {
	Serialize(e Entry, buf *bytes.Buffer) error
}

// Sampler interposes between entry and format, deciding per entry
// whether it is serialized and with what multiplicity.
type Sampler interface {
	Wrap(f Format) Format
}
