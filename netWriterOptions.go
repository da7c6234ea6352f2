package uow

import "time"

// NetWriterOptions customize the network stream writer.
//
// NB: The struct pointer options approach is used to be consistent
// with the options style used across the library.
type NetWriterOptions struct {

	// Network protocol used to reach the collector: "tcp", "tls", or
	// "udp". The default is "tcp".
	Network string

	// Port of the collector. The default is 24224.
	Port int

	// DialTimeout sets the timeout for dialing the collector. The
	// default is 30s.
	DialTimeout time.Duration

	// MaxDialTries limits connection attempts per (re)connect cycle
	// before a Write gives up and returns the dial error. If the
	// value is < 0, a cycle retries until it succeeds. The default
	// is 3.
	MaxDialTries int

	// WriteTimeout controls the deadline for each Write to the
	// collector. If WriteTimeout < 0, no deadline is set. The default
	// is 10 seconds.
	WriteTimeout time.Duration

	// MaxWriteTries controls how many times a frame is retried on
	// timeout before the connection is considered broken and torn
	// down. Must be > 0. The default is 3.
	MaxWriteTries int

	// InsecureSkipVerify controls whether the writer verifies the
	// collector's certificate chain and host name when using TLS.
	InsecureSkipVerify bool

	// SkipEagerDial returns writers that dial the collector lazily on
	// the first Write instead of in the constructor.
	SkipEagerDial bool
}

const (
	defaultNetPort       = 24224
	defaultNetNetwork    = "tcp"
	defaultNetDialTO     = time.Second * 30
	defaultNetDialTries  = 3
	defaultNetWriteTO    = time.Second * 10
	defaultNetWriteTries = 3
)

// DefaultNetWriterOptions returns *NetWriterOptions with all default
// values.
func DefaultNetWriterOptions() *NetWriterOptions {
	return &NetWriterOptions{
		Network:       defaultNetNetwork,
		Port:          defaultNetPort,
		DialTimeout:   defaultNetDialTO,
		MaxDialTries:  defaultNetDialTries,
		WriteTimeout:  defaultNetWriteTO,
		MaxWriteTries: defaultNetWriteTries,
	}
}

// resolve ensures that all options have valid values.
func (o *NetWriterOptions) resolve() {

	// only [tcp|tls|udp]
	if o.Network != "tcp" && o.Network != "tls" && o.Network != "udp" {
		o.Network = defaultNetNetwork
	}

	// constrain to valid range
	if o.Port < 1 || o.Port > 65535 {
		o.Port = defaultNetPort
	}

	// must be positive
	if o.DialTimeout < 1 {
		o.DialTimeout = defaultNetDialTO
	}

	// can be negative (infinity) or positive, but not 0
	if o.MaxDialTries == 0 {
		o.MaxDialTries = defaultNetDialTries
	}

	// can be negative (no deadline) or positive, but not 0
	if o.WriteTimeout == 0 {
		o.WriteTimeout = defaultNetWriteTO
	}

	// must be positive
	if o.MaxWriteTries < 1 {
		o.MaxWriteTries = defaultNetWriteTries
	}
}
