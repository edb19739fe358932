package device

import (
	"context"
	"sync"
)

// SimFleet hands out one simulated session per device name, paced like
// a console line. It stands in for a real transport; production
// deployments plug their own provider into the session manager.
type SimFleet struct {
	perSecond float64
	burst     int

	mu       sync.Mutex
	sessions map[string]*SimSession
}

// NewSimFleet creates a fleet pacing each session to perSecond commands
// with the given burst.
func NewSimFleet(perSecond float64, burst int) *SimFleet {
	return &SimFleet{
		perSecond: perSecond,
		burst:     burst,
		sessions:  make(map[string]*SimSession),
	}
}

// Sim returns the raw simulator for a device so callers can seed state
// and script responses.
func (f *SimFleet) Sim(name string) *SimSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[name]
	if !ok {
		s = NewSimSession(name)
		f.sessions[name] = s
	}
	return s
}

// Session opens the paced command channel to a device.
func (f *SimFleet) Session(_ context.Context, name string) (Session, error) {
	return NewPacedSession(f.Sim(name), f.perSecond, f.burst), nil
}
