package uow

import (
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

// CongressionalOptions customize the congressional sampler.
type CongressionalOptions struct {

	// TargetRate is the aggregate output rate, in entries per second,
	// the sampler converges on across all sample-group keys. Must be
	// positive; the default is 10.
	TargetRate float64

	// Window is the time constant of the per-key exponentially
	// weighted rate estimate. Shorter windows react faster to traffic
	// shifts; longer windows are steadier. The default is 10s.
	Window time.Duration
}

const (
	defaultTargetRate = 10.0
	defaultWindow     = 10 * time.Second
)

// DefaultCongressionalOptions returns *CongressionalOptions with all
// default values.
func DefaultCongressionalOptions() *CongressionalOptions {
	return &CongressionalOptions{
		TargetRate: defaultTargetRate,
		Window:     defaultWindow,
	}
}

// resolve ensures that all options have valid values.
func (o *CongressionalOptions) resolve() {
	if o.TargetRate <= 0 {
		o.TargetRate = defaultTargetRate
	}
	if o.Window <= 0 {
		o.Window = defaultWindow
	}
}

// CongressionalSampler holds aggregate output near a target rate while
// guaranteeing representation to rare sample-group keys: the target is
// split into equal shares across the live keys (a key is pruned once it
// has been idle for ten windows, checked when a new key arrives), so a
// key producing 5% of traffic gets the same output budget as one
// producing 95%. That keeps error-path entries visible when the base
// rate dwarfs the error rate.
//
// Entries with no sample-group fields all share one key.
type CongressionalSampler struct {
	opts *CongressionalOptions

	mu    sync.Mutex
	state map[string]*keyState

	// injectable for deterministic tests
	clk func() time.Time
	rng func() float64
}

// keyState is the per-key exponentially weighted arrival estimate: a
// decayed count, the last decay instant, and the first-seen instant
// used for warm-up bias correction. The observed rate is
// weight / (window * (1 - exp(-age/window))), which converges to
// weight / window as the key ages but tracks the true rate from the
// first few arrivals instead of underestimating it.
type keyState struct {
	weight float64
	last   time.Time
	first  time.Time
}

// NewCongressionalSampler returns a sampler targeting the configured
// aggregate rate.
func NewCongressionalSampler(opts *CongressionalOptions) *CongressionalSampler {
	if opts == nil {
		opts = DefaultCongressionalOptions()
	} else {
		opts.resolve()
	}
	return &CongressionalSampler{
		opts:  opts,
		state: make(map[string]*keyState),
		clk:   time.Now,
		rng:   rand.Float64,
	}
}

// Wrap implements Sampler.
func (s *CongressionalSampler) Wrap(f Format) Format {
	return &sampledFormat{inner: f, decide: s.decide}
}

// decide updates the key's observed rate and draws the acceptance. The
// per-entry probability is min(1, share/rate) where share is the
// target rate divided by the number of live keys; kept entries carry
// multiplicity 1/p to compensate for the drops.
func (s *CongressionalSampler) decide(e Entry) (float64, bool) {
	key := sampleKey(e.SampleGroup())
	now := s.clk()
	window := s.opts.Window.Seconds()

	s.mu.Lock()

	st, ok := s.state[key]
	if !ok {
		st = &keyState{last: now, first: now}
		s.state[key] = st
		s.pruneLocked(now)
	}

	// decay, then count this arrival
	dt := now.Sub(st.last).Seconds()
	if dt > 0 {
		st.weight *= math.Exp(-dt / window)
		st.last = now
	}
	st.weight++

	age := now.Sub(st.first).Seconds()
	norm := window * -math.Expm1(-age/window)
	share := s.opts.TargetRate / float64(len(s.state))
	weight := st.weight

	s.mu.Unlock()

	if norm <= 0 {
		// first arrival of a key is always kept
		return 1, true
	}

	p := share * norm / weight
	if p >= 1 {
		return 1, true
	}
	if s.rng() >= p {
		return 0, false
	}
	return 1 / p, true
}

// pruneLocked drops keys idle long enough that their weight is
// negligible, so one-off keys do not dilute the shares forever.
// Callers hold mu.
func (s *CongressionalSampler) pruneLocked(now time.Time) {
	idle := 10 * s.opts.Window
	for k, st := range s.state {
		if now.Sub(st.last) > idle {
			delete(s.state, k)
		}
	}
}

// sampleKey joins the sample-group elements into the sampler's
// composite partitioning key.
func sampleKey(groups []SampleGroupElement) string {
	if len(groups) == 0 {
		return ""
	}
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteByte('\x1f')
		}
		b.WriteString(g.Key)
		b.WriteByte('=')
		b.WriteString(g.Value)
	}
	return b.String()
}
